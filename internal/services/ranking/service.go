// Package ranking answers leaderboard and progress queries and repairs ranking entries.
package ranking

import (
	"cmp"
	"context"
	"fmt"
	"iter"
	"log/slog"
	"slices"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/mcoot/allfence/internal/dependencies/clock"
	"github.com/mcoot/allfence/internal/metrics"
	"github.com/mcoot/allfence/internal/model"
	"github.com/mcoot/allfence/internal/storage"
)

// Config controls the administrative ranking operations
type Config struct {
	// AllowReset enables ResetAll. Leave it off anywhere rankings matter.
	AllowReset bool
	// VerifyWorkers bounds the number of fencers checked concurrently
	VerifyWorkers int
}

// DefaultConfig returns the production settings
func DefaultConfig() Config {
	return Config{VerifyWorkers: 8}
}

// Service reads ranking entries and result history
type Service struct {
	storage storage.Storage
	clock   clock.Clock
	metrics *metrics.Metrics
	logger  *slog.Logger
	config  Config
}

// New creates a new ranking Service
func New(storage storage.Storage, clock clock.Clock, metrics *metrics.Metrics, logger *slog.Logger, config Config) *Service {
	if config.VerifyWorkers <= 0 {
		config.VerifyWorkers = DefaultConfig().VerifyWorkers
	}
	return &Service{
		storage: storage,
		clock:   clock,
		metrics: metrics,
		logger:  logger,
		config:  config,
	}
}

// LeaderboardQuery selects one bracket, optionally narrowed to a weapon and gender
type LeaderboardQuery struct {
	Bracket model.AgeBracket
	Weapon  model.Weapon
	Gender  model.Gender
}

// Leaderboard ranks every entry in the bracket by points, highest first. Ties
// are broken by fencer ID so repeated queries agree. Entries are read in one
// snapshot.
func (s *Service) Leaderboard(ctx context.Context, q LeaderboardQuery) ([]model.Standing, error) {
	if !q.Bracket.Valid() {
		return nil, fmt.Errorf("%w: %q", model.ErrInvalidBracket, q.Bracket)
	}

	entries, err := s.storage.ListRankingEntries(ctx, q.Bracket)
	if err != nil {
		return nil, err
	}
	fencers, err := s.fencersByID(ctx, model.FencerFilter{Weapon: q.Weapon, Gender: q.Gender})
	if err != nil {
		return nil, err
	}

	standings := make([]model.Standing, 0, len(entries))
	for _, e := range entries {
		f, ok := fencers[e.FencerID]
		if !ok {
			continue
		}
		standings = append(standings, model.Standing{Fencer: *f, Entry: e})
	}
	slices.SortFunc(standings, func(a, b model.Standing) int {
		return cmp.Or(cmp.Compare(b.Entry.Points, a.Entry.Points), cmp.Compare(a.Entry.FencerID, b.Entry.FencerID))
	})
	for i := range standings {
		standings[i].Rank = i + 1
	}
	return standings, nil
}

// CumulativePoints yields a fencer's running total, one step per result record,
// ordered by tournament date and then by time recorded. Each range over the
// sequence replays the history afresh, so it is never out of date with it.
func (s *Service) CumulativePoints(ctx context.Context, fencerID model.FencerID) iter.Seq2[model.ProgressPoint, error] {
	return func(yield func(model.ProgressPoint, error) bool) {
		if _, err := s.storage.GetFencer(ctx, fencerID); err != nil {
			yield(model.ProgressPoint{}, err)
			return
		}
		records, err := s.storage.ListFencerResults(ctx, fencerID)
		if err != nil {
			yield(model.ProgressPoint{}, err)
			return
		}
		model.SortChronologically(records)

		total := 0
		for _, r := range records {
			total += r.Points
			p := model.ProgressPoint{
				Date:         r.TournamentDate,
				TournamentID: r.TournamentID,
				ResultID:     r.ID,
				Kind:         r.Kind,
				Bracket:      r.Bracket,
				Placement:    r.Placement,
				Points:       r.Points,
				Cumulative:   total,
			}
			if !yield(p, nil) {
				return
			}
		}
	}
}

// Progress collects CumulativePoints into a slice
func (s *Service) Progress(ctx context.Context, fencerID model.FencerID) ([]model.ProgressPoint, error) {
	var points []model.ProgressPoint
	for p, err := range s.CumulativePoints(ctx, fencerID) {
		if err != nil {
			return nil, err
		}
		points = append(points, p)
	}
	return points, nil
}

// FencerRankings returns every ranking entry held by a fencer, youngest bracket first
func (s *Service) FencerRankings(ctx context.Context, fencerID model.FencerID) ([]model.RankingEntry, error) {
	if _, err := s.storage.GetFencer(ctx, fencerID); err != nil {
		return nil, err
	}
	entries, err := s.storage.ListFencerRankings(ctx, fencerID)
	if err != nil {
		return nil, err
	}
	slices.SortFunc(entries, func(a, b model.RankingEntry) int {
		return cmp.Compare(bracketOrder(a.Bracket), bracketOrder(b.Bracket))
	})
	return entries, nil
}

func bracketOrder(b model.AgeBracket) int {
	return slices.IndexFunc(model.AgeRanges, func(r model.AgeRange) bool { return r.Bracket == b })
}

// ClubTotal sums the points of the club's current members who fence the weapon.
// It reflects membership now, not when the points were earned.
func (s *Service) ClubTotal(ctx context.Context, clubID model.ClubID, weapon model.Weapon) (*model.ClubStanding, error) {
	club, err := s.storage.GetClub(ctx, clubID)
	if err != nil {
		return nil, err
	}
	standings, err := s.clubStandings(ctx, []*model.Club{club}, weapon)
	if err != nil {
		return nil, err
	}
	return &standings[0], nil
}

// ClubStandings aggregates every club, highest total first. An empty weapon
// aggregates across weapons.
func (s *Service) ClubStandings(ctx context.Context, weapon model.Weapon) ([]model.ClubStanding, error) {
	clubs, err := s.storage.ListClubs(ctx)
	if err != nil {
		return nil, err
	}
	standings, err := s.clubStandings(ctx, clubs, weapon)
	if err != nil {
		return nil, err
	}
	slices.SortStableFunc(standings, func(a, b model.ClubStanding) int {
		return cmp.Or(cmp.Compare(b.TotalPoints, a.TotalPoints), cmp.Compare(a.Club.ID, b.Club.ID))
	})
	return standings, nil
}

func (s *Service) clubStandings(ctx context.Context, clubs []*model.Club, weapon model.Weapon) ([]model.ClubStanding, error) {
	entries, err := s.storage.ListRankingEntries(ctx, "")
	if err != nil {
		return nil, err
	}
	fencers, err := s.fencersByID(ctx, model.FencerFilter{Weapon: weapon})
	if err != nil {
		return nil, err
	}

	points := make(map[model.FencerID]int, len(fencers))
	for _, e := range entries {
		points[e.FencerID] += e.Points
	}

	byClub := make(map[model.ClubID]*model.ClubStanding, len(clubs))
	standings := make([]model.ClubStanding, len(clubs))
	for i, c := range clubs {
		standings[i] = model.ClubStanding{Club: *c, Weapon: weapon}
		byClub[c.ID] = &standings[i]
	}
	for _, f := range fencers {
		if f.ClubID == nil {
			continue
		}
		st, ok := byClub[*f.ClubID]
		if !ok {
			continue
		}
		st.FencerCount++
		st.TotalPoints += points[f.ID]
	}
	for i := range standings {
		if standings[i].FencerCount > 0 {
			standings[i].AveragePoints = float64(standings[i].TotalPoints) / float64(standings[i].FencerCount)
		}
	}
	return standings, nil
}

func (s *Service) fencersByID(ctx context.Context, filter model.FencerFilter) (map[model.FencerID]*model.Fencer, error) {
	fencers, err := s.storage.ListFencers(ctx, filter)
	if err != nil {
		return nil, err
	}
	out := make(map[model.FencerID]*model.Fencer, len(fencers))
	for _, f := range fencers {
		out[f.ID] = f
	}
	return out, nil
}

// ConsistencyReport is the outcome of a VerifyConsistency run
type ConsistencyReport struct {
	Checked int
	Drifts  []model.RankingDrift
}

// Err returns model.ErrRankingDrift when any entry disagreed with its history
func (r *ConsistencyReport) Err() error {
	if len(r.Drifts) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %d entries", model.ErrRankingDrift, len(r.Drifts))
}

// VerifyConsistency recomputes every entry from the result records and reports
// each one whose stored totals differ. Drift means something wrote ranking
// entries outside the recorder, or rankings were reset.
func (s *Service) VerifyConsistency(ctx context.Context) (*ConsistencyReport, error) {
	entries, err := s.storage.ListRankingEntries(ctx, "")
	if err != nil {
		return nil, err
	}
	stored := make(map[model.FencerID][]model.RankingEntry)
	for _, e := range entries {
		stored[e.FencerID] = append(stored[e.FencerID], e)
	}
	// Fencers without entries may still have records
	fencers, err := s.storage.ListFencers(ctx, model.FencerFilter{})
	if err != nil {
		return nil, err
	}

	var (
		mu     sync.Mutex
		drifts []model.RankingDrift
	)
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(s.config.VerifyWorkers)
	for _, f := range fencers {
		g.Go(func() error {
			records, err := s.storage.ListFencerResults(gCtx, f.ID)
			if err != nil {
				return fmt.Errorf("failed to list results for %s: %w", f.ID, err)
			}
			found := compareEntries(f.ID, stored[f.ID], model.ComputeRankings(records))
			if len(found) > 0 {
				mu.Lock()
				drifts = append(drifts, found...)
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	slices.SortFunc(drifts, func(a, b model.RankingDrift) int {
		return cmp.Or(cmp.Compare(a.FencerID, b.FencerID), cmp.Compare(bracketOrder(a.Bracket), bracketOrder(b.Bracket)))
	})
	for _, d := range drifts {
		s.logger.Error("ranking drift detected",
			slog.String("fencer_id", string(d.FencerID)),
			slog.String("bracket", string(d.Bracket)),
			slog.Int("stored_points", d.StoredPoints),
			slog.Int("expected_points", d.ExpectedPoints),
			slog.Int("stored_attended", d.StoredAttended),
			slog.Int("expected_attended", d.ExpectedAttended),
		)
	}
	s.metrics.RankingDrift.Set(float64(len(drifts)))
	s.logger.Info("ranking consistency checked",
		slog.Int("entries", len(entries)),
		slog.Int("drifts", len(drifts)),
	)
	return &ConsistencyReport{Checked: len(entries), Drifts: drifts}, nil
}

func compareEntries(fencerID model.FencerID, stored []model.RankingEntry, expected map[model.RankingKey]*model.RankingEntry) []model.RankingDrift {
	var drifts []model.RankingDrift
	seen := make(map[model.AgeBracket]bool, len(stored))
	for _, e := range stored {
		seen[e.Bracket] = true
		want := model.RankingEntry{}
		if exp, ok := expected[e.Key()]; ok {
			want = *exp
		}
		if e.Points != want.Points || e.TournamentsAttended != want.TournamentsAttended {
			drifts = append(drifts, model.RankingDrift{
				FencerID:         fencerID,
				Bracket:          e.Bracket,
				StoredPoints:     e.Points,
				ExpectedPoints:   want.Points,
				StoredAttended:   e.TournamentsAttended,
				ExpectedAttended: want.TournamentsAttended,
			})
		}
	}
	for key, exp := range expected {
		if !seen[key.Bracket] {
			drifts = append(drifts, model.RankingDrift{
				FencerID:         fencerID,
				Bracket:          key.Bracket,
				ExpectedPoints:   exp.Points,
				ExpectedAttended: exp.TournamentsAttended,
			})
		}
	}
	return drifts
}

// Rebuild recomputes every ranking entry from the result records
func (s *Service) Rebuild(ctx context.Context) (int, error) {
	n, err := s.storage.RebuildRankings(ctx, s.clock.Now())
	if err != nil {
		return 0, err
	}
	s.metrics.RankingDrift.Set(0)
	s.logger.Warn("rankings rebuilt from result history", slog.Int("entries", n))
	return n, nil
}

// ResetAll zeroes every ranking entry but keeps the result records, so
// rankings no longer match history until Rebuild runs. It is refused unless
// enabled in config.
func (s *Service) ResetAll(ctx context.Context) (int, error) {
	if !s.config.AllowReset {
		s.logger.Warn("ranking reset refused")
		return 0, model.ErrResetDisabled
	}
	n, err := s.storage.ResetRankings(ctx, s.clock.Now())
	if err != nil {
		return 0, err
	}
	s.metrics.RankingResets.Inc()
	s.logger.Warn("all rankings reset", slog.Int("entries", n))
	return n, nil
}
