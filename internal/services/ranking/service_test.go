package ranking

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"

	"github.com/mcoot/allfence/internal/dependencies/mocks"
	"github.com/mcoot/allfence/internal/metrics"
	"github.com/mcoot/allfence/internal/model"
	"github.com/mcoot/allfence/internal/storage/memory"
	"github.com/mcoot/allfence/internal/testutil"
)

type ServiceSuite struct {
	suite.Suite
	storage  *memory.Storage
	clock    *mocks.MockClock
	metrics  *metrics.Metrics
	fixtures *testutil.Fixtures
	service  *Service
	ctx      context.Context
	seq      int
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.storage = memory.New()
	s.clock = mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	s.metrics = metrics.NewNop()
	s.fixtures = testutil.NewFixtures(3, s.clock.Now())
	s.service = New(s.storage, s.clock, s.metrics, testutil.NopLogger(), Config{AllowReset: true})
	s.ctx = context.Background()
	s.seq = 0
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// senior returns a saved adult fencer
func (s *ServiceSuite) senior(weapon model.Weapon, gender model.Gender, club *model.Club) *model.Fencer {
	f := s.fixtures.Fencer(weapon, gender, date(1990, 3, 1))
	if club != nil {
		f.ClubID = &club.ID
	}
	s.Require().NoError(s.storage.SaveFencer(s.ctx, f))
	return f
}

func (s *ServiceSuite) club() *model.Club {
	c := s.fixtures.Club()
	s.Require().NoError(s.storage.SaveClub(s.ctx, c))
	return c
}

// play runs a tournament on the given date in which each fencer takes the
// placement of its position and is awarded the matching points
func (s *ServiceSuite) play(on time.Time, bracket model.AgeBracket, weapon model.Weapon, fencers []*model.Fencer, points []int) *model.Tournament {
	t := s.fixtures.Tournament(on, weapon, bracket, model.TierRegional)
	s.Require().NoError(s.storage.SaveTournament(s.ctx, t))
	for _, f := range fencers {
		s.Require().NoError(s.storage.AddRegistration(s.ctx, model.Registration{
			TournamentID: t.ID, FencerID: f.ID, Bracket: bracket, RegisteredAt: s.clock.Now(),
		}))
	}
	_, err := s.storage.UpdateTournamentStatus(s.ctx, t.ID, t.Status, model.TournamentStatusInProgress, s.clock.Now())
	s.Require().NoError(err)

	records := make([]model.ResultRecord, len(fencers))
	for i, f := range fencers {
		s.seq++
		records[i] = model.ResultRecord{
			ID:             model.ResultID(fmt.Sprintf("R-%03d", s.seq)),
			TournamentID:   t.ID,
			FencerID:       f.ID,
			Kind:           model.ResultKindPlacement,
			Placement:      i + 1,
			Points:         points[i],
			Bracket:        bracket,
			TournamentDate: on,
			RecordedAt:     s.clock.Now(),
		}
	}
	s.Require().NoError(s.storage.AppendResults(s.ctx, t.ID, records))
	s.clock.Advance(time.Minute)
	return t
}

// Leaderboard tests

func (s *ServiceSuite) TestLeaderboardOrdersByPointsThenID() {
	a := s.senior(model.WeaponEpee, model.GenderMale, nil)
	b := s.senior(model.WeaponEpee, model.GenderFemale, nil)
	c := s.senior(model.WeaponEpee, model.GenderMale, nil)
	s.play(date(2024, 2, 1), model.BracketSenior, model.WeaponEpee, []*model.Fencer{c, a, b}, []int{100, 50, 50})

	board, err := s.service.Leaderboard(s.ctx, LeaderboardQuery{Bracket: model.BracketSenior})
	s.Require().NoError(err)

	var got []model.FencerID
	for i, st := range board {
		s.Equal(i+1, st.Rank)
		got = append(got, st.Fencer.ID)
	}
	// a and b tie on 50; a has the smaller ID
	s.Equal([]model.FencerID{c.ID, a.ID, b.ID}, got)
	s.Equal(100, board[0].Entry.Points)

	again, err := s.service.Leaderboard(s.ctx, LeaderboardQuery{Bracket: model.BracketSenior})
	s.Require().NoError(err)
	s.Empty(cmp.Diff(board, again))
}

func (s *ServiceSuite) TestLeaderboardFilters() {
	epeeMan := s.senior(model.WeaponEpee, model.GenderMale, nil)
	epeeWoman := s.senior(model.WeaponEpee, model.GenderFemale, nil)
	sabreMan := s.senior(model.WeaponSabre, model.GenderMale, nil)
	s.play(date(2024, 2, 1), model.BracketSenior, model.WeaponEpee, []*model.Fencer{epeeMan, epeeWoman}, []int{100, 75})
	s.play(date(2024, 2, 2), model.BracketSenior, model.WeaponSabre, []*model.Fencer{sabreMan}, []int{100})

	tests := []struct {
		name  string
		query LeaderboardQuery
		want  []model.FencerID
	}{
		{name: "bracket only", query: LeaderboardQuery{Bracket: model.BracketSenior}, want: []model.FencerID{epeeMan.ID, sabreMan.ID, epeeWoman.ID}},
		{name: "weapon", query: LeaderboardQuery{Bracket: model.BracketSenior, Weapon: model.WeaponEpee}, want: []model.FencerID{epeeMan.ID, epeeWoman.ID}},
		{name: "weapon and gender", query: LeaderboardQuery{Bracket: model.BracketSenior, Weapon: model.WeaponEpee, Gender: model.GenderFemale}, want: []model.FencerID{epeeWoman.ID}},
		{name: "other bracket", query: LeaderboardQuery{Bracket: model.BracketCadet}, want: nil},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			board, err := s.service.Leaderboard(s.ctx, tt.query)
			s.Require().NoError(err)
			var got []model.FencerID
			for _, st := range board {
				got = append(got, st.Fencer.ID)
			}
			s.Equal(tt.want, got)
			if len(board) > 0 {
				s.Equal(1, board[0].Rank)
			}
		})
	}
}

func (s *ServiceSuite) TestLeaderboardRejectsUnknownBracket() {
	_, err := s.service.Leaderboard(s.ctx, LeaderboardQuery{Bracket: "Veteran"})
	s.ErrorIs(err, model.ErrInvalidBracket)
}

// CumulativePoints tests

func (s *ServiceSuite) TestCumulativePointsReplaysChronologically() {
	f := s.senior(model.WeaponFoil, model.GenderMale, nil)
	other := s.senior(model.WeaponFoil, model.GenderMale, nil)
	// Recorded out of date order
	late := s.play(date(2024, 5, 1), model.BracketSenior, model.WeaponFoil, []*model.Fencer{f}, []int{30})
	early := s.play(date(2024, 3, 1), model.BracketSenior, model.WeaponFoil, []*model.Fencer{other, f}, []int{100, 75})

	corr := model.ResultID("R-001")
	s.Require().NoError(s.storage.AppendCorrection(s.ctx, model.ResultRecord{
		ID: "R-fix", TournamentID: late.ID, FencerID: f.ID, Kind: model.ResultKindCorrection,
		Placement: 2, Points: 45, Bracket: model.BracketSenior, TournamentDate: late.Date,
		RecordedAt: s.clock.Now(), Supersedes: &corr,
	}))

	var got []model.ProgressPoint
	for p, err := range s.service.CumulativePoints(s.ctx, f.ID) {
		s.Require().NoError(err)
		got = append(got, p)
	}
	s.Require().Len(got, 3)
	s.Equal(early.ID, got[0].TournamentID)
	s.Equal(75, got[0].Cumulative)
	s.Equal(late.ID, got[1].TournamentID)
	s.Equal(105, got[1].Cumulative)
	s.Equal(model.ResultKindCorrection, got[2].Kind)
	s.Equal(150, got[2].Cumulative)

	entry, err := s.storage.GetRankingEntry(s.ctx, model.RankingKey{FencerID: f.ID, Bracket: model.BracketSenior})
	s.Require().NoError(err)
	s.Equal(got[len(got)-1].Cumulative, entry.Points)
}

func (s *ServiceSuite) TestCumulativePointsIsRestartable() {
	f := s.senior(model.WeaponFoil, model.GenderMale, nil)
	s.play(date(2024, 3, 1), model.BracketSenior, model.WeaponFoil, []*model.Fencer{f}, []int{10})
	s.play(date(2024, 4, 1), model.BracketSenior, model.WeaponFoil, []*model.Fencer{f}, []int{20})

	seq := s.service.CumulativePoints(s.ctx, f.ID)
	for range 2 {
		var totals []int
		for p, err := range seq {
			s.Require().NoError(err)
			totals = append(totals, p.Cumulative)
		}
		s.Equal([]int{10, 30}, totals)
	}

	// Stopping early is allowed
	for p := range seq {
		s.Equal(10, p.Cumulative)
		break
	}

	// New results show up on the next pass
	s.play(date(2024, 5, 1), model.BracketSenior, model.WeaponFoil, []*model.Fencer{f}, []int{5})
	progress, err := s.service.Progress(s.ctx, f.ID)
	s.Require().NoError(err)
	s.Len(progress, 3)
	s.Equal(35, progress[2].Cumulative)
}

func (s *ServiceSuite) TestCumulativePointsUnknownFencer() {
	_, err := s.service.Progress(s.ctx, "F-404")
	s.ErrorIs(err, model.ErrFencerNotFound)
}

// Club tests

func (s *ServiceSuite) TestClubTotalsUseCurrentMembers() {
	home := s.club()
	away := s.club()
	a := s.senior(model.WeaponSabre, model.GenderMale, home)
	b := s.senior(model.WeaponSabre, model.GenderFemale, home)
	c := s.senior(model.WeaponFoil, model.GenderMale, home)
	d := s.senior(model.WeaponSabre, model.GenderMale, away)
	s.play(date(2024, 2, 1), model.BracketSenior, model.WeaponSabre, []*model.Fencer{a, d, b}, []int{100, 75, 50})
	s.play(date(2024, 2, 2), model.BracketSenior, model.WeaponFoil, []*model.Fencer{c}, []int{20})

	total, err := s.service.ClubTotal(s.ctx, home.ID, model.WeaponSabre)
	s.Require().NoError(err)
	s.Equal(150, total.TotalPoints)
	s.Equal(2, total.FencerCount)
	s.InDelta(75.0, total.AveragePoints, 0.001)

	// Moving a fencer moves their points with them
	d.ClubID = &home.ID
	s.Require().NoError(s.storage.SaveFencer(s.ctx, d))
	total, err = s.service.ClubTotal(s.ctx, home.ID, model.WeaponSabre)
	s.Require().NoError(err)
	s.Equal(225, total.TotalPoints)

	standings, err := s.service.ClubStandings(s.ctx, "")
	s.Require().NoError(err)
	s.Require().Len(standings, 2)
	s.Equal(home.ID, standings[0].Club.ID)
	s.Equal(245, standings[0].TotalPoints)
	s.Equal(4, standings[0].FencerCount)
	s.Equal(away.ID, standings[1].Club.ID)
	s.Equal(0, standings[1].FencerCount)
	s.Zero(standings[1].AveragePoints)

	_, err = s.service.ClubTotal(s.ctx, "C-404", model.WeaponSabre)
	s.ErrorIs(err, model.ErrClubNotFound)
}

// FencerRankings tests

func (s *ServiceSuite) TestFencerRankingsAcrossBrackets() {
	f := s.fixtures.Fencer(model.WeaponEpee, model.GenderFemale, date(2007, 6, 1))
	s.Require().NoError(s.storage.SaveFencer(s.ctx, f))
	s.play(date(2024, 1, 10), model.BracketJunior, model.WeaponEpee, []*model.Fencer{f}, []int{40})
	s.play(date(2023, 1, 10), model.BracketCadet, model.WeaponEpee, []*model.Fencer{f}, []int{60})

	entries, err := s.service.FencerRankings(s.ctx, f.ID)
	s.Require().NoError(err)
	s.Require().Len(entries, 2)
	s.Equal(model.BracketCadet, entries[0].Bracket)
	s.Equal(60, entries[0].Points)
	s.Equal(model.BracketJunior, entries[1].Bracket)
	s.Equal(40, entries[1].Points)

	_, err = s.service.FencerRankings(s.ctx, "F-404")
	s.ErrorIs(err, model.ErrFencerNotFound)
}

// Consistency, rebuild and reset tests

func (s *ServiceSuite) TestVerifyConsistencyOnCleanHistory() {
	a := s.senior(model.WeaponFoil, model.GenderMale, nil)
	b := s.senior(model.WeaponFoil, model.GenderMale, nil)
	s.play(date(2024, 2, 1), model.BracketSenior, model.WeaponFoil, []*model.Fencer{a, b}, []int{100, 75})

	report, err := s.service.VerifyConsistency(s.ctx)
	s.Require().NoError(err)
	s.Equal(2, report.Checked)
	s.Empty(report.Drifts)
	s.NoError(report.Err())
	s.Zero(promtest.ToFloat64(s.metrics.RankingDrift))
}

func (s *ServiceSuite) TestResetCreatesDriftAndRebuildRepairsIt() {
	a := s.senior(model.WeaponFoil, model.GenderMale, nil)
	b := s.senior(model.WeaponFoil, model.GenderMale, nil)
	s.play(date(2024, 2, 1), model.BracketSenior, model.WeaponFoil, []*model.Fencer{a, b}, []int{100, 75})

	n, err := s.service.ResetAll(s.ctx)
	s.Require().NoError(err)
	s.Equal(2, n)
	s.Equal(1.0, promtest.ToFloat64(s.metrics.RankingResets))

	report, err := s.service.VerifyConsistency(s.ctx)
	s.Require().NoError(err)
	s.ErrorIs(report.Err(), model.ErrRankingDrift)
	want := []model.RankingDrift{
		{FencerID: a.ID, Bracket: model.BracketSenior, StoredPoints: 0, ExpectedPoints: 100, ExpectedAttended: 1},
		{FencerID: b.ID, Bracket: model.BracketSenior, StoredPoints: 0, ExpectedPoints: 75, ExpectedAttended: 1},
	}
	s.Empty(cmp.Diff(want, report.Drifts))
	s.Equal(2.0, promtest.ToFloat64(s.metrics.RankingDrift))

	_, err = s.service.Rebuild(s.ctx)
	s.Require().NoError(err)
	s.Zero(promtest.ToFloat64(s.metrics.RankingDrift))

	report, err = s.service.VerifyConsistency(s.ctx)
	s.Require().NoError(err)
	s.Empty(report.Drifts)

	board, err := s.service.Leaderboard(s.ctx, LeaderboardQuery{Bracket: model.BracketSenior})
	s.Require().NoError(err)
	s.Equal(100, board[0].Entry.Points)
}

func (s *ServiceSuite) TestResetAllIsDisabledByDefault() {
	service := New(s.storage, s.clock, s.metrics, testutil.NopLogger(), DefaultConfig())
	_, err := service.ResetAll(s.ctx)
	s.ErrorIs(err, model.ErrResetDisabled)
	s.Zero(promtest.ToFloat64(s.metrics.RankingResets))
}
