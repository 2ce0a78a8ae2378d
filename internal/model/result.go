package model

import (
	"cmp"
	"slices"
	"time"
)

// ResultID uniquely identifies a result record
type ResultID string

// ResultKind distinguishes original placements from compensating corrections
type ResultKind string

const (
	ResultKindPlacement  ResultKind = "placement"
	ResultKindCorrection ResultKind = "correction"
)

// ResultRecord is an immutable, append-only record of points awarded to a fencer
// in a tournament. A correction carries the point delta against the record it supersedes.
type ResultRecord struct {
	ID             ResultID
	TournamentID   TournamentID
	FencerID       FencerID
	Kind           ResultKind
	Placement      int
	Points         int
	Bracket        AgeBracket // as of TournamentDate
	TournamentDate time.Time
	RecordedAt     time.Time
	Supersedes     *ResultID // set on corrections only
	Note           string
}

// TournamentResult is a fencer's effective standing in one tournament after corrections
type TournamentResult struct {
	TournamentID TournamentID
	FencerID     FencerID
	Placement    int
	Points       int      // net of all corrections
	Current      ResultID // latest record for the fencer
	Corrected    bool
}

// SummarizeResults folds a tournament's records, in append order, into one effective
// result per fencer, ordered by placement
func SummarizeResults(records []ResultRecord) []TournamentResult {
	byFencer := make(map[FencerID]*TournamentResult)
	var order []FencerID
	for _, r := range records {
		tr, ok := byFencer[r.FencerID]
		if !ok {
			tr = &TournamentResult{TournamentID: r.TournamentID, FencerID: r.FencerID}
			byFencer[r.FencerID] = tr
			order = append(order, r.FencerID)
		}
		tr.Placement = r.Placement
		tr.Points += r.Points
		tr.Current = r.ID
		if r.Kind == ResultKindCorrection {
			tr.Corrected = true
		}
	}

	results := make([]TournamentResult, 0, len(order))
	for _, id := range order {
		results = append(results, *byFencer[id])
	}
	slices.SortFunc(results, func(a, b TournamentResult) int {
		return cmp.Compare(a.Placement, b.Placement)
	})
	return results
}

// SortChronologically orders records by tournament date, then by time recorded
func SortChronologically(records []ResultRecord) {
	slices.SortStableFunc(records, func(a, b ResultRecord) int {
		if c := a.TournamentDate.Compare(b.TournamentDate); c != 0 {
			return c
		}
		return a.RecordedAt.Compare(b.RecordedAt)
	})
}
