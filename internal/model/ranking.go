package model

import "time"

// RankingKey identifies a ranking entry
type RankingKey struct {
	FencerID FencerID
	Bracket  AgeBracket
}

// RankingEntry holds cumulative points for a fencer in one bracket.
// Points always equals the sum of the fencer's result record points in that bracket.
type RankingEntry struct {
	FencerID            FencerID
	Bracket             AgeBracket
	Points              int
	TournamentsAttended int
	UpdatedAt           time.Time
}

// Key returns the entry's identifying key
func (e *RankingEntry) Key() RankingKey {
	return RankingKey{FencerID: e.FencerID, Bracket: e.Bracket}
}

// Apply adds a result record to the entry
func (e *RankingEntry) Apply(r ResultRecord) {
	e.Points += r.Points
	if r.Kind == ResultKindPlacement {
		e.TournamentsAttended++
	}
	e.UpdatedAt = r.RecordedAt
}

// ComputeRankings derives ranking entries from the full result history
func ComputeRankings(records []ResultRecord) map[RankingKey]*RankingEntry {
	entries := make(map[RankingKey]*RankingEntry)
	for _, r := range records {
		key := RankingKey{FencerID: r.FencerID, Bracket: r.Bracket}
		e, ok := entries[key]
		if !ok {
			e = &RankingEntry{FencerID: r.FencerID, Bracket: r.Bracket}
			entries[key] = e
		}
		e.Apply(r)
	}
	return entries
}

// Standing is one row of a leaderboard
type Standing struct {
	Rank   int
	Fencer Fencer
	Entry  RankingEntry
}

// ProgressPoint is one step of a fencer's cumulative points history
type ProgressPoint struct {
	Date         time.Time
	TournamentID TournamentID
	ResultID     ResultID
	Kind         ResultKind
	Bracket      AgeBracket
	Placement    int
	Points       int
	Cumulative   int
}

// RankingDrift describes a ranking entry that disagrees with its result history
type RankingDrift struct {
	FencerID         FencerID
	Bracket          AgeBracket
	StoredPoints     int
	ExpectedPoints   int
	StoredAttended   int
	ExpectedAttended int
}
