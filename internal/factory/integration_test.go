package factory

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/allfence/internal/config"
	"github.com/mcoot/allfence/internal/model"
	"github.com/mcoot/allfence/internal/services/ranking"
	"github.com/mcoot/allfence/internal/services/roster"
	"github.com/mcoot/allfence/internal/services/tournament"
)

type IntegrationSuite struct {
	suite.Suite
	app *TestApp
	ctx context.Context
}

func TestIntegrationSuite(t *testing.T) {
	suite.Run(t, new(IntegrationSuite))
}

func (s *IntegrationSuite) SetupTest() {
	s.app = NewTestApp()
	s.ctx = context.Background()
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func (s *IntegrationSuite) createFencer(first string, weapon model.Weapon, birth time.Time, club *model.ClubID) *model.Fencer {
	f, err := s.app.Roster.CreateFencer(s.ctx, roster.FencerInput{
		FirstName: first,
		LastName:  "Tester",
		BirthDate: birth,
		Gender:    model.GenderMale,
		Weapon:    weapon,
		ClubID:    club,
	})
	s.Require().NoError(err)
	return f
}

func (s *IntegrationSuite) transition(id model.TournamentID, to model.TournamentStatus) {
	_, err := s.app.Tournaments.Transition(s.ctx, id, to)
	s.Require().NoError(err)
}

// Test: Complete season flow from roster creation to ranking export
func (s *IntegrationSuite) TestCompleteTournamentFlow() {
	// Step 1: A club and three junior foilists, two of them affiliated
	club, err := s.app.Roster.CreateClub(s.ctx, roster.ClubInput{Name: "Salle Nord", Status: model.ClubStatusActive})
	s.Require().NoError(err)

	alice := s.createFencer("Alice", model.WeaponFoil, date(2006, 3, 1), &club.ID)
	bruno := s.createFencer("Bruno", model.WeaponFoil, date(2006, 4, 1), nil)
	cyril := s.createFencer("Cyril", model.WeaponFoil, date(2007, 5, 1), &club.ID)
	sabreur := s.createFencer("Dmitri", model.WeaponSabre, date(2006, 6, 1), nil)

	// Step 2: A national junior men's foil event
	male := model.GenderMale
	t, err := s.app.Tournaments.Create(s.ctx, tournament.Input{
		Name:     "Junior Nationals",
		Location: "Lyon",
		Date:     date(2024, 6, 20),
		Weapon:   model.WeaponFoil,
		Bracket:  model.BracketJunior,
		Gender:   &male,
		Tier:     model.TierNational,
	})
	s.Require().NoError(err)
	s.Equal(model.TournamentStatusUpcoming, t.Status)

	// Step 3: Registration opens; the sabreur is turned away
	s.transition(t.ID, model.TournamentStatusRegistrationOpen)
	for _, f := range []*model.Fencer{alice, bruno, cyril} {
		reg, err := s.app.Ledger.Register(s.ctx, t.ID, f.ID)
		s.Require().NoError(err)
		s.Equal(model.BracketJunior, reg.Bracket)
	}

	_, err = s.app.Ledger.Register(s.ctx, t.ID, sabreur.ID)
	var ineligible *model.IneligibleError
	s.Require().True(errors.As(err, &ineligible))
	s.Equal(model.ReasonWeaponMismatch, ineligible.Reason)

	participants, err := s.app.Ledger.Participants(s.ctx, t.ID)
	s.Require().NoError(err)
	s.Len(participants, 3)

	// Step 4: The event runs and results come in
	s.transition(t.ID, model.TournamentStatusInProgress)
	_, err = s.app.Recorder.RecordResults(s.ctx, t.ID, map[model.FencerID]int{
		alice.ID: 1,
		bruno.ID: 2,
		cyril.ID: 3,
	})
	s.Require().NoError(err)
	s.transition(t.ID, model.TournamentStatusCompleted)

	// Step 5: A late correction drops Cyril to fourth (45 instead of 75)
	correction, err := s.app.Recorder.CorrectResult(s.ctx, t.ID, cyril.ID, 4, "scoring sheet error")
	s.Require().NoError(err)
	s.Equal(model.ResultKindCorrection, correction.Kind)
	s.Equal(-30, correction.Points)

	// Step 6: The leaderboard reflects tier-weighted points
	q := ranking.LeaderboardQuery{Bracket: model.BracketJunior, Weapon: model.WeaponFoil}
	board, err := s.app.Ranking.Leaderboard(s.ctx, q)
	s.Require().NoError(err)
	s.Require().Len(board, 3)
	s.Equal(alice.ID, board[0].Fencer.ID)
	s.Equal(150, board[0].Entry.Points)
	s.Equal(bruno.ID, board[1].Fencer.ID)
	s.Equal(113, board[1].Entry.Points)
	s.Equal(cyril.ID, board[2].Fencer.ID)
	s.Equal(45, board[2].Entry.Points)
	s.Equal(1, board[2].Entry.TournamentsAttended)
	s.Equal(3, board[2].Rank)

	// Step 7: Club totals follow current membership
	standing, err := s.app.Ranking.ClubTotal(s.ctx, club.ID, model.WeaponFoil)
	s.Require().NoError(err)
	s.Equal(195, standing.TotalPoints)

	// Step 8: Rankings agree with history, before and after a rebuild
	report, err := s.app.Ranking.VerifyConsistency(s.ctx)
	s.Require().NoError(err)
	s.Empty(report.Drifts)

	rebuilt, err := s.app.Ranking.Rebuild(s.ctx)
	s.Require().NoError(err)
	s.Equal(3, rebuilt)

	again, err := s.app.Ranking.Leaderboard(s.ctx, q)
	s.Require().NoError(err)
	s.Equal(board, again)

	// Step 9: A snapshot of the leaderboard lands in the uploader
	result, err := s.app.Exporter.Export(s.ctx, q)
	s.Require().NoError(err)
	s.Equal("rankings/junior/foil/20240101T120000Z.csv", result.Key)

	data, ok := s.app.MockUploader.Object(result.Key)
	s.Require().True(ok)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	s.Len(lines, 4)
	s.Contains(lines[1], "Alice")
}

func (s *IntegrationSuite) TestBootstrapIsIdempotent() {
	s.Require().NoError(s.app.Bootstrap(s.ctx))
	s.Require().NoError(s.app.Bootstrap(s.ctx))

	token, err := s.app.AdminToken(s.ctx)
	s.Require().NoError(err)

	session, err := s.app.AuthService.ValidateToken(token)
	s.Require().NoError(err)
	s.Equal(TestAdminUsername, session.Username)
}

func (s *IntegrationSuite) TestBootstrapSkippedWithoutAdmin() {
	app := NewTestApp(func(cfg *config.Config) {
		cfg.Auth.AdminUsername = ""
	})
	s.Require().NoError(app.Bootstrap(s.ctx))

	_, err := app.AuthService.Login(s.ctx, TestAdminUsername, TestAdminPassword)
	s.Error(err)
}

func (s *IntegrationSuite) TestResetHonoursConfig() {
	app := NewTestApp(func(cfg *config.Config) {
		cfg.Ranking.AllowReset = false
	})
	_, err := app.Ranking.ResetAll(s.ctx)
	s.ErrorIs(err, model.ErrResetDisabled)
}

func (s *IntegrationSuite) TestRateLimiterFollowsConfig() {
	s.Nil(s.app.RateLimiter)

	app := NewTestApp(func(cfg *config.Config) {
		cfg.RateLimit.Enabled = true
	})
	s.NotNil(app.RateLimiter)
}

func (s *IntegrationSuite) TestNewRejectsUnknownStorage() {
	cfg := config.Default()
	cfg.Auth.JWTSecret = "secret"
	cfg.Storage.Type = "cassandra"

	_, err := New(s.ctx, cfg, nil)
	s.ErrorContains(err, "invalid storage type")
}

func (s *IntegrationSuite) TestNewWiresMemoryStorage() {
	cfg := config.Default()
	cfg.Auth.JWTSecret = "secret"
	cfg.Export.Dir = s.T().TempDir()

	app, err := New(s.ctx, cfg, nil)
	s.Require().NoError(err)
	defer func() { s.NoError(app.Close()) }()

	s.NoError(app.Storage.Ping(s.ctx))
	s.NotNil(app.Router())

	families, err := app.Registry.Gather()
	s.Require().NoError(err)
	var names []string
	for _, f := range families {
		names = append(names, f.GetName())
	}
	s.Contains(names, "go_goroutines")
}
