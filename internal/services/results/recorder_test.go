package results

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"

	"github.com/mcoot/allfence/internal/dependencies/mocks"
	"github.com/mcoot/allfence/internal/metrics"
	"github.com/mcoot/allfence/internal/model"
	"github.com/mcoot/allfence/internal/storage/memory"
	"github.com/mcoot/allfence/internal/testutil"
)

type RecorderSuite struct {
	suite.Suite
	storage  *memory.Storage
	clock    *mocks.MockClock
	random   *mocks.MockRandom
	metrics  *metrics.Metrics
	fixtures *testutil.Fixtures
	recorder *Recorder
	ctx      context.Context

	tournament *model.Tournament
	fencers    []*model.Fencer
}

func TestRecorderSuite(t *testing.T) {
	suite.Run(t, new(RecorderSuite))
}

func (s *RecorderSuite) SetupTest() {
	s.storage = memory.New()
	s.clock = mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	s.random = mocks.NewMockRandom()
	s.metrics = metrics.NewNop()
	s.fixtures = testutil.NewFixtures(7, s.clock.Now())
	s.recorder = NewRecorder(s.storage, s.clock, s.random, s.metrics, testutil.NopLogger())
	s.ctx = context.Background()

	// National junior foil on 2024-06-20 with three registered fencers
	s.tournament = s.fixtures.Tournament(time.Date(2024, 6, 20, 0, 0, 0, 0, time.UTC), model.WeaponFoil, model.BracketJunior, model.TierNational)
	s.Require().NoError(s.storage.SaveTournament(s.ctx, s.tournament))
	s.fencers = nil
	for i := range 3 {
		f := s.fixtures.Fencer(model.WeaponFoil, model.GenderMale, time.Date(2006, 1, 1+i, 0, 0, 0, 0, time.UTC))
		s.Require().NoError(s.storage.SaveFencer(s.ctx, f))
		s.Require().NoError(s.storage.AddRegistration(s.ctx, model.Registration{
			TournamentID: s.tournament.ID,
			FencerID:     f.ID,
			Bracket:      model.BracketJunior,
			RegisteredAt: s.clock.Now(),
		}))
		s.fencers = append(s.fencers, f)
	}
	s.setStatus(model.TournamentStatusInProgress)
}

func (s *RecorderSuite) setStatus(to model.TournamentStatus) {
	updated, err := s.storage.UpdateTournamentStatus(s.ctx, s.tournament.ID, s.tournament.Status, to, s.clock.Now())
	s.Require().NoError(err)
	s.tournament = updated
}

func (s *RecorderSuite) id(i int) model.FencerID {
	return s.fencers[i].ID
}

func (s *RecorderSuite) points(i int) int {
	entry, err := s.storage.GetRankingEntry(s.ctx, model.RankingKey{FencerID: s.id(i), Bracket: model.BracketJunior})
	s.Require().NoError(err)
	return entry.Points
}

// RecordResults tests

func (s *RecorderSuite) TestRecordResultsAwardsTierWeightedPoints() {
	records, err := s.recorder.RecordResults(s.ctx, s.tournament.ID, map[model.FencerID]int{
		s.id(0): 1,
		s.id(1): 2,
		s.id(2): 3,
	})
	s.Require().NoError(err)
	s.Require().Len(records, 3)

	// National tier is x1.5: 100, 75, 50 become 150, 113, 75
	s.Equal(150, s.points(0))
	s.Equal(113, s.points(1))
	s.Equal(75, s.points(2))

	first := records[0]
	s.Equal(s.id(0), first.FencerID)
	s.Equal(model.ResultKindPlacement, first.Kind)
	s.Equal(model.BracketJunior, first.Bracket)
	s.Equal(s.tournament.Date, first.TournamentDate)
	s.Equal(s.clock.Now(), first.RecordedAt)
	s.Equal(model.ResultID("00000000-0000-4000-8000-000000000001"), first.ID)

	s.Equal(3.0, promtest.ToFloat64(s.metrics.ResultsRecorded.WithLabelValues("national")))
	s.Equal(338.0, promtest.ToFloat64(s.metrics.PointsAwarded.WithLabelValues("Junior")))
}

func (s *RecorderSuite) TestRecordResultsValidatesInput() {
	tests := []struct {
		name       string
		placements map[model.FencerID]int
		wantErr    error
	}{
		{name: "empty", placements: nil, wantErr: model.ErrEmptyResults},
		{name: "zero placement", placements: map[model.FencerID]int{s.id(0): 0}, wantErr: model.ErrInvalidPlacement},
		{name: "negative placement", placements: map[model.FencerID]int{s.id(0): -2}, wantErr: model.ErrInvalidPlacement},
		{name: "shared placement", placements: map[model.FencerID]int{s.id(0): 1, s.id(1): 1}, wantErr: model.ErrDuplicatePlacement},
		{name: "unknown fencer", placements: map[model.FencerID]int{"F-404": 1}, wantErr: model.ErrFencerNotFound},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			_, err := s.recorder.RecordResults(s.ctx, s.tournament.ID, tt.placements)
			s.ErrorIs(err, tt.wantErr)
			s.Equal(0, s.points(0))
		})
	}
}

func (s *RecorderSuite) TestRecordResultsRejectsFencerOutsideTournamentBracket() {
	// Stored birth date no longer classifies as Junior on the tournament date
	drifted := *s.fencers[1]
	drifted.BirthDate = time.Date(1990, 1, 1, 0, 0, 0, 0, time.UTC)
	s.Require().NoError(s.storage.SaveFencer(s.ctx, &drifted))

	_, err := s.recorder.RecordResults(s.ctx, s.tournament.ID, map[model.FencerID]int{
		s.id(0): 1,
		s.id(1): 2,
	})
	var ineligible *model.IneligibleError
	s.Require().ErrorAs(err, &ineligible)
	s.Equal(model.ReasonBracketMismatch, ineligible.Reason)
	s.Contains(ineligible.Detail, "Senior")

	s.Equal(0, s.points(0))
	s.Equal(0, s.points(1))
	_, err = s.storage.GetRankingEntry(s.ctx, model.RankingKey{FencerID: s.id(1), Bracket: model.BracketSenior})
	s.ErrorIs(err, model.ErrRankingNotFound)
}

func (s *RecorderSuite) TestRecordResultsRequiresRegistration() {
	outsider := s.fixtures.Fencer(model.WeaponFoil, model.GenderMale, time.Date(2006, 3, 3, 0, 0, 0, 0, time.UTC))
	s.Require().NoError(s.storage.SaveFencer(s.ctx, outsider))

	_, err := s.recorder.RecordResults(s.ctx, s.tournament.ID, map[model.FencerID]int{
		s.id(0):     1,
		outsider.ID: 2,
	})
	s.ErrorIs(err, model.ErrNotRegistered)
	s.Equal(0, s.points(0))

	_, err = s.storage.GetRankingEntry(s.ctx, model.RankingKey{FencerID: outsider.ID, Bracket: model.BracketJunior})
	s.ErrorIs(err, model.ErrRankingNotFound)
}

func (s *RecorderSuite) TestRecordResultsTwiceIsRejected() {
	placements := map[model.FencerID]int{s.id(0): 1, s.id(1): 2}
	_, err := s.recorder.RecordResults(s.ctx, s.tournament.ID, placements)
	s.Require().NoError(err)

	_, err = s.recorder.RecordResults(s.ctx, s.tournament.ID, placements)
	s.ErrorIs(err, model.ErrDuplicateResult)
	s.Equal(150, s.points(0))
	s.Equal(113, s.points(1))
}

func (s *RecorderSuite) TestRecordResultsRejectsTakenPlacement() {
	_, err := s.recorder.RecordResults(s.ctx, s.tournament.ID, map[model.FencerID]int{s.id(0): 1})
	s.Require().NoError(err)

	_, err = s.recorder.RecordResults(s.ctx, s.tournament.ID, map[model.FencerID]int{s.id(1): 1})
	s.ErrorIs(err, model.ErrDuplicatePlacement)

	// A later batch may still fill other places
	_, err = s.recorder.RecordResults(s.ctx, s.tournament.ID, map[model.FencerID]int{s.id(1): 2})
	s.NoError(err)
}

func (s *RecorderSuite) TestRecordResultsTournamentStatus() {
	tests := []struct {
		name    string
		path    []model.TournamentStatus
		wantErr error
	}{
		{name: "completed accepts late results", path: []model.TournamentStatus{model.TournamentStatusCompleted}},
		{name: "cancelled", path: []model.TournamentStatus{model.TournamentStatusCancelled}, wantErr: model.ErrResultsNotAccepted},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			s.SetupTest()
			for _, st := range tt.path {
				s.setStatus(st)
			}
			_, err := s.recorder.RecordResults(s.ctx, s.tournament.ID, map[model.FencerID]int{s.id(0): 1})
			if tt.wantErr == nil {
				s.NoError(err)
				return
			}
			s.ErrorIs(err, tt.wantErr)
		})
	}
}

func (s *RecorderSuite) TestRecordResultsBeforeStart() {
	t := s.fixtures.Tournament(s.tournament.Date, model.WeaponFoil, model.BracketJunior, model.TierLocal)
	s.Require().NoError(s.storage.SaveTournament(s.ctx, t))

	_, err := s.recorder.RecordResults(s.ctx, t.ID, map[model.FencerID]int{s.id(0): 1})
	s.ErrorIs(err, model.ErrResultsNotAccepted)

	_, err = s.recorder.RecordResults(s.ctx, "T-404", map[model.FencerID]int{s.id(0): 1})
	s.ErrorIs(err, model.ErrTournamentNotFound)
}

func (s *RecorderSuite) TestConcurrentIdenticalBatchesApplyOnce() {
	placements := map[model.FencerID]int{s.id(0): 1, s.id(1): 2, s.id(2): 3}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	for range 6 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.recorder.RecordResults(s.ctx, s.tournament.ID, placements); err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	s.Equal(1, successes)
	s.Equal(150, s.points(0))
}

// CorrectResult tests

func (s *RecorderSuite) TestCorrectResultAppliesDelta() {
	_, err := s.recorder.RecordResults(s.ctx, s.tournament.ID, map[model.FencerID]int{s.id(0): 2, s.id(1): 3})
	s.Require().NoError(err)
	s.clock.Advance(time.Hour)

	corr, err := s.recorder.CorrectResult(s.ctx, s.tournament.ID, s.id(0), 1, "scoring error")
	s.Require().NoError(err)
	s.Equal(model.ResultKindCorrection, corr.Kind)
	s.Equal(150-113, corr.Points)
	s.Equal(model.BracketJunior, corr.Bracket)
	s.Equal("scoring error", corr.Note)
	s.Require().NotNil(corr.Supersedes)
	s.Equal(model.ResultID("00000000-0000-4000-8000-000000000001"), *corr.Supersedes)
	s.Equal(150, s.points(0))

	results, err := s.recorder.TournamentResults(s.ctx, s.tournament.ID)
	s.Require().NoError(err)
	s.Require().Len(results, 2)
	s.Equal(s.id(0), results[0].FencerID)
	s.Equal(1, results[0].Placement)
	s.True(results[0].Corrected)
	s.Equal(corr.ID, results[0].Current)

	history, err := s.recorder.TournamentHistory(s.ctx, s.tournament.ID)
	s.Require().NoError(err)
	s.Len(history, 3)

	s.Equal(1.0, promtest.ToFloat64(s.metrics.Corrections))
}

func (s *RecorderSuite) TestCorrectResultChains() {
	_, err := s.recorder.RecordResults(s.ctx, s.tournament.ID, map[model.FencerID]int{s.id(0): 1})
	s.Require().NoError(err)

	first, err := s.recorder.CorrectResult(s.ctx, s.tournament.ID, s.id(0), 4, "")
	s.Require().NoError(err)
	second, err := s.recorder.CorrectResult(s.ctx, s.tournament.ID, s.id(0), 3, "")
	s.Require().NoError(err)

	s.Equal(first.ID, *second.Supersedes)
	s.Equal(75, s.points(0))

	entry, err := s.storage.GetRankingEntry(s.ctx, model.RankingKey{FencerID: s.id(0), Bracket: model.BracketJunior})
	s.Require().NoError(err)
	s.Equal(1, entry.TournamentsAttended)
}

func (s *RecorderSuite) TestCorrectResultErrors() {
	_, err := s.recorder.RecordResults(s.ctx, s.tournament.ID, map[model.FencerID]int{s.id(0): 1, s.id(1): 2})
	s.Require().NoError(err)

	tests := []struct {
		name      string
		fencer    model.FencerID
		placement int
		wantErr   error
	}{
		{name: "unchanged", fencer: s.id(0), placement: 1, wantErr: model.ErrUnchangedPlacement},
		{name: "taken", fencer: s.id(0), placement: 2, wantErr: model.ErrDuplicatePlacement},
		{name: "invalid", fencer: s.id(0), placement: 0, wantErr: model.ErrInvalidPlacement},
		{name: "no result", fencer: s.id(2), placement: 5, wantErr: model.ErrResultNotFound},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			_, err := s.recorder.CorrectResult(s.ctx, s.tournament.ID, tt.fencer, tt.placement, "")
			s.ErrorIs(err, tt.wantErr)
		})
	}
	s.Equal(150, s.points(0))
	s.Equal(113, s.points(1))
}

// ImportResults tests

func (s *RecorderSuite) TestImportResultsFromCSV() {
	csv := "Fencer_ID,Place\n" + string(s.id(1)) + ",1\n" + string(s.id(0)) + ",2\n"

	records, err := s.recorder.ImportResults(s.ctx, s.tournament.ID, "results.csv", strings.NewReader(csv))
	s.Require().NoError(err)
	s.Len(records, 2)
	s.Equal(150, s.points(1))
	s.Equal(113, s.points(0))
}

func (s *RecorderSuite) TestImportResultsRejectsBadFiles() {
	tests := []struct {
		name     string
		fileName string
		data     string
	}{
		{name: "unsupported type", fileName: "results.pdf", data: "fencer_id,placement\n"},
		{name: "repeated fencer", fileName: "results.csv", data: "fencer_id,placement\n" + string(s.id(0)) + ",1\n" + string(s.id(0)) + ",2\n"},
		{name: "missing columns", fileName: "results.csv", data: "name\nAda\n"},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			_, err := s.recorder.ImportResults(s.ctx, s.tournament.ID, tt.fileName, strings.NewReader(tt.data))
			s.ErrorIs(err, model.ErrInvalidImport)
		})
	}
	s.Equal(0, s.points(0))
}

func (s *RecorderSuite) TestImportResultsSizeLimit() {
	big := bytes.Repeat([]byte("x"), MaxImportBytes+1)
	_, err := s.recorder.ImportResults(s.ctx, s.tournament.ID, "results.csv", bytes.NewReader(big))
	s.ErrorIs(err, model.ErrInvalidImport)
}

// Listing tests

func (s *RecorderSuite) TestFencerResultsAreChronological() {
	later := s.fixtures.Tournament(time.Date(2024, 9, 1, 0, 0, 0, 0, time.UTC), model.WeaponFoil, model.BracketJunior, model.TierLocal)
	s.Require().NoError(s.storage.SaveTournament(s.ctx, later))
	s.Require().NoError(s.storage.AddRegistration(s.ctx, model.Registration{
		TournamentID: later.ID, FencerID: s.id(0), Bracket: model.BracketJunior, RegisteredAt: s.clock.Now(),
	}))
	_, err := s.storage.UpdateTournamentStatus(s.ctx, later.ID, later.Status, model.TournamentStatusInProgress, s.clock.Now())
	s.Require().NoError(err)

	// Record the later tournament first
	_, err = s.recorder.RecordResults(s.ctx, later.ID, map[model.FencerID]int{s.id(0): 1})
	s.Require().NoError(err)
	s.clock.Advance(time.Hour)
	_, err = s.recorder.RecordResults(s.ctx, s.tournament.ID, map[model.FencerID]int{s.id(0): 2})
	s.Require().NoError(err)

	records, err := s.recorder.FencerResults(s.ctx, s.id(0))
	s.Require().NoError(err)
	s.Require().Len(records, 2)
	s.Equal(s.tournament.ID, records[0].TournamentID)
	s.Equal(later.ID, records[1].TournamentID)
	s.Equal(113+50, s.points(0))

	_, err = s.recorder.FencerResults(s.ctx, "F-404")
	s.ErrorIs(err, model.ErrFencerNotFound)
}
