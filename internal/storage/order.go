package storage

import (
	"cmp"

	"github.com/mcoot/allfence/internal/model"
)

// Backends return lists in these orders so callers see the same results everywhere

// CompareFencers orders fencers by ID
func CompareFencers(a, b *model.Fencer) int { return cmp.Compare(a.ID, b.ID) }

// CompareClubs orders clubs by ID
func CompareClubs(a, b *model.Club) int { return cmp.Compare(a.ID, b.ID) }

// CompareTournaments orders tournaments by date, then ID
func CompareTournaments(a, b *model.Tournament) int {
	if c := a.Date.Compare(b.Date); c != 0 {
		return c
	}
	return cmp.Compare(a.ID, b.ID)
}

// CompareRegistrations orders registrations by time registered, then fencer
func CompareRegistrations(a, b model.Registration) int {
	if c := a.RegisteredAt.Compare(b.RegisteredAt); c != 0 {
		return c
	}
	return cmp.Compare(a.FencerID, b.FencerID)
}

// CompareEntries orders ranking entries by fencer, then bracket
func CompareEntries(a, b model.RankingEntry) int {
	if c := cmp.Compare(a.FencerID, b.FencerID); c != 0 {
		return c
	}
	return cmp.Compare(a.Bracket, b.Bracket)
}
