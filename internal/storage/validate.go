package storage

import (
	"fmt"

	"github.com/mcoot/allfence/internal/model"
)

// CheckResultBatch validates a batch of placement records against a tournament's
// existing records. Backends call it inside their atomic unit before writing.
func CheckResultBatch(existing []model.ResultRecord, isRegistered func(model.FencerID) bool, batch []model.ResultRecord) error {
	hasResult := make(map[model.FencerID]bool)
	taken := make(map[int]model.FencerID)
	for _, r := range model.SummarizeResults(existing) {
		hasResult[r.FencerID] = true
		taken[r.Placement] = r.FencerID
	}

	for _, rec := range batch {
		if rec.Placement < 1 {
			return fmt.Errorf("%w: %d", model.ErrInvalidPlacement, rec.Placement)
		}
		if !isRegistered(rec.FencerID) {
			return fmt.Errorf("%w: %s", model.ErrNotRegistered, rec.FencerID)
		}
		if hasResult[rec.FencerID] {
			return fmt.Errorf("%w: %s", model.ErrDuplicateResult, rec.FencerID)
		}
		if holder, ok := taken[rec.Placement]; ok {
			return fmt.Errorf("%w: %d held by %s", model.ErrDuplicatePlacement, rec.Placement, holder)
		}
		hasResult[rec.FencerID] = true
		taken[rec.Placement] = rec.FencerID
	}
	return nil
}

// CheckCorrection validates a correction record against a tournament's existing records
func CheckCorrection(existing []model.ResultRecord, rec model.ResultRecord) error {
	var current *model.TournamentResult
	summary := model.SummarizeResults(existing)
	for i := range summary {
		if summary[i].FencerID == rec.FencerID {
			current = &summary[i]
			break
		}
	}
	if current == nil {
		return fmt.Errorf("%w: %s", model.ErrResultNotFound, rec.FencerID)
	}
	if rec.Supersedes == nil || *rec.Supersedes != current.Current {
		return model.ErrStaleResult
	}
	for _, r := range summary {
		if r.FencerID != rec.FencerID && r.Placement == rec.Placement {
			return fmt.Errorf("%w: %d held by %s", model.ErrDuplicatePlacement, rec.Placement, r.FencerID)
		}
	}
	return nil
}
