// Package results records tournament placements and turns them into ranking points.
package results

import (
	"cmp"
	"context"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"slices"
	"time"

	"github.com/mcoot/allfence/internal/dependencies/clock"
	"github.com/mcoot/allfence/internal/dependencies/random"
	"github.com/mcoot/allfence/internal/metrics"
	"github.com/mcoot/allfence/internal/model"
	"github.com/mcoot/allfence/internal/services/bracket"
	"github.com/mcoot/allfence/internal/services/importer"
	"github.com/mcoot/allfence/internal/services/points"
	"github.com/mcoot/allfence/internal/storage"
)

// MaxImportBytes bounds the size of an uploaded result sheet
const MaxImportBytes = 4 << 20

// Recorder appends result records. It is the only writer of ranking points:
// every record it stores is applied to the fencer's ranking entry in the
// same storage operation.
type Recorder struct {
	storage storage.Storage
	clock   clock.Clock
	random  random.Random
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewRecorder creates a new Recorder
func NewRecorder(storage storage.Storage, clock clock.Clock, random random.Random, metrics *metrics.Metrics, logger *slog.Logger) *Recorder {
	return &Recorder{
		storage: storage,
		clock:   clock,
		random:  random,
		metrics: metrics,
		logger:  logger,
	}
}

// RecordResults stores a batch of placements for a tournament. Either every
// placement is recorded or none is.
func (r *Recorder) RecordResults(ctx context.Context, tournamentID model.TournamentID, placements map[model.FencerID]int) ([]model.ResultRecord, error) {
	if len(placements) == 0 {
		return nil, model.ErrEmptyResults
	}

	// Validate before touching storage, in placement order so errors are stable
	fencerIDs := slices.SortedFunc(maps.Keys(placements), func(a, b model.FencerID) int {
		return cmp.Or(cmp.Compare(placements[a], placements[b]), cmp.Compare(a, b))
	})
	seen := make(map[int]model.FencerID, len(placements))
	for _, id := range fencerIDs {
		p := placements[id]
		if p < 1 {
			return nil, fmt.Errorf("%w: %s has %d", model.ErrInvalidPlacement, id, p)
		}
		if other, ok := seen[p]; ok {
			return nil, fmt.Errorf("%w: %d given to %s and %s", model.ErrDuplicatePlacement, p, other, id)
		}
		seen[p] = id
	}

	t, err := r.storage.GetTournament(ctx, tournamentID)
	if err != nil {
		return nil, err
	}
	if !t.Status.AcceptsResults() {
		return nil, fmt.Errorf("%w: tournament is %s", model.ErrResultsNotAccepted, t.Status)
	}

	now := r.clock.Now()
	records := make([]model.ResultRecord, 0, len(fencerIDs))
	for _, id := range fencerIDs {
		f, err := r.storage.GetFencer(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", err, id)
		}
		b, err := bracket.Classify(f.BirthDate, t.Date)
		if err != nil {
			return nil, err
		}
		// Points only ever land in the tournament's own bracket
		if b != t.Bracket {
			return nil, &model.IneligibleError{
				Reason: model.ReasonBracketMismatch,
				Detail: fmt.Sprintf("%s is %s on %s, tournament is %s", id, b, t.Date.Format(time.DateOnly), t.Bracket),
			}
		}
		pts, err := points.For(placements[id], t.Tier)
		if err != nil {
			return nil, err
		}
		records = append(records, model.ResultRecord{
			ID:             model.ResultID(r.random.UUID()),
			TournamentID:   t.ID,
			FencerID:       id,
			Kind:           model.ResultKindPlacement,
			Placement:      placements[id],
			Points:         pts,
			Bracket:        b,
			TournamentDate: t.Date,
			RecordedAt:     now,
		})
	}

	if err := r.storage.AppendResults(ctx, t.ID, records); err != nil {
		r.logger.Warn("results rejected",
			slog.String("tournament_id", string(t.ID)),
			slog.Int("count", len(records)),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	r.metrics.ResultsRecorded.WithLabelValues(string(t.Tier)).Add(float64(len(records)))
	for _, rec := range records {
		r.metrics.PointsAwarded.WithLabelValues(string(rec.Bracket)).Add(float64(rec.Points))
	}
	r.logger.Info("results recorded",
		slog.String("tournament_id", string(t.ID)),
		slog.String("tier", string(t.Tier)),
		slog.Int("count", len(records)),
	)
	return records, nil
}

// CorrectResult changes a fencer's recorded placement by appending a correction
// that carries the point difference. Earlier records are never modified.
func (r *Recorder) CorrectResult(ctx context.Context, tournamentID model.TournamentID, fencerID model.FencerID, newPlacement int, note string) (*model.ResultRecord, error) {
	if newPlacement < 1 {
		return nil, fmt.Errorf("%w: %d", model.ErrInvalidPlacement, newPlacement)
	}

	t, err := r.storage.GetTournament(ctx, tournamentID)
	if err != nil {
		return nil, err
	}
	if !t.Status.AcceptsResults() {
		return nil, fmt.Errorf("%w: tournament is %s", model.ErrResultsNotAccepted, t.Status)
	}

	history, err := r.storage.ListTournamentResults(ctx, tournamentID)
	if err != nil {
		return nil, err
	}
	var (
		original *model.ResultRecord
		current  *model.TournamentResult
	)
	for i := range history {
		if history[i].FencerID == fencerID && history[i].Kind == model.ResultKindPlacement {
			original = &history[i]
			break
		}
	}
	summary := model.SummarizeResults(history)
	for i := range summary {
		if summary[i].FencerID == fencerID {
			current = &summary[i]
		}
	}
	if original == nil || current == nil {
		return nil, fmt.Errorf("%w: %s in %s", model.ErrResultNotFound, fencerID, tournamentID)
	}
	if current.Placement == newPlacement {
		return nil, model.ErrUnchangedPlacement
	}

	pts, err := points.For(newPlacement, t.Tier)
	if err != nil {
		return nil, err
	}
	supersedes := current.Current
	rec := model.ResultRecord{
		ID:             model.ResultID(r.random.UUID()),
		TournamentID:   t.ID,
		FencerID:       fencerID,
		Kind:           model.ResultKindCorrection,
		Placement:      newPlacement,
		Points:         pts - current.Points,
		Bracket:        original.Bracket,
		TournamentDate: original.TournamentDate,
		RecordedAt:     r.clock.Now(),
		Supersedes:     &supersedes,
		Note:           note,
	}

	if err := r.storage.AppendCorrection(ctx, rec); err != nil {
		return nil, err
	}

	r.metrics.Corrections.Inc()
	r.logger.Info("result corrected",
		slog.String("tournament_id", string(t.ID)),
		slog.String("fencer_id", string(fencerID)),
		slog.Int("from_placement", current.Placement),
		slog.Int("to_placement", newPlacement),
		slog.Int("delta", rec.Points),
	)
	return &rec, nil
}

// ImportResults parses a CSV or XLSX result sheet and records it as one batch
func (r *Recorder) ImportResults(ctx context.Context, tournamentID model.TournamentID, fileName string, data io.Reader) ([]model.ResultRecord, error) {
	parser, err := importer.ParserFor(fileName)
	if err != nil {
		return nil, err
	}
	raw, err := io.ReadAll(io.LimitReader(data, MaxImportBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", fileName, err)
	}
	if len(raw) > MaxImportBytes {
		return nil, fmt.Errorf("%w: file exceeds %d bytes", model.ErrInvalidImport, MaxImportBytes)
	}

	rows, err := parser.Parse(raw)
	if err != nil {
		return nil, err
	}
	placements, err := importer.Placements(rows)
	if err != nil {
		return nil, err
	}

	r.logger.Info("importing results",
		slog.String("tournament_id", string(tournamentID)),
		slog.String("file", fileName),
		slog.Int("rows", len(rows)),
	)
	return r.RecordResults(ctx, tournamentID, placements)
}

// TournamentResults returns each fencer's effective result, ordered by placement
func (r *Recorder) TournamentResults(ctx context.Context, tournamentID model.TournamentID) ([]model.TournamentResult, error) {
	if _, err := r.storage.GetTournament(ctx, tournamentID); err != nil {
		return nil, err
	}
	history, err := r.storage.ListTournamentResults(ctx, tournamentID)
	if err != nil {
		return nil, err
	}
	return model.SummarizeResults(history), nil
}

// TournamentHistory returns every record for a tournament, corrections included, in append order
func (r *Recorder) TournamentHistory(ctx context.Context, tournamentID model.TournamentID) ([]model.ResultRecord, error) {
	if _, err := r.storage.GetTournament(ctx, tournamentID); err != nil {
		return nil, err
	}
	return r.storage.ListTournamentResults(ctx, tournamentID)
}

// FencerResults returns a fencer's records ordered by tournament date
func (r *Recorder) FencerResults(ctx context.Context, fencerID model.FencerID) ([]model.ResultRecord, error) {
	if _, err := r.storage.GetFencer(ctx, fencerID); err != nil {
		return nil, err
	}
	records, err := r.storage.ListFencerResults(ctx, fencerID)
	if err != nil {
		return nil, err
	}
	model.SortChronologically(records)
	return records, nil
}
