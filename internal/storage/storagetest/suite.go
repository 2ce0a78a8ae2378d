// Package storagetest holds the behaviour every storage backend must share.
// Backends run it from their own tests with a constructor for a clean store.
package storagetest

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/allfence/internal/model"
	"github.com/mcoot/allfence/internal/storage"
)

// Suite is the storage conformance suite
type Suite struct {
	suite.Suite

	// NewStorage returns an empty store for each test
	NewStorage func(t *testing.T) storage.Storage

	store storage.Storage
	ctx   context.Context
	now   time.Time
}

func (s *Suite) SetupTest() {
	s.store = s.NewStorage(s.T())
	s.ctx = context.Background()
	s.now = time.Date(2024, time.June, 1, 12, 0, 0, 0, time.UTC)
}

// Fixtures

func (s *Suite) fencer(id string, weapon model.Weapon, gender model.Gender) *model.Fencer {
	f := &model.Fencer{
		ID:        model.FencerID(id),
		FirstName: "First " + id,
		LastName:  "Last " + id,
		BirthDate: time.Date(2005, time.June, 1, 0, 0, 0, 0, time.UTC),
		Gender:    gender,
		Weapon:    weapon,
		CreatedAt: s.now,
		UpdatedAt: s.now,
	}
	s.Require().NoError(s.store.SaveFencer(s.ctx, f))
	return f
}

func (s *Suite) tournament(id string, status model.TournamentStatus, capacity int) *model.Tournament {
	t := &model.Tournament{
		ID:        model.TournamentID(id),
		Name:      "Open " + id,
		Location:  "Hall",
		Date:      time.Date(2024, time.June, 20, 0, 0, 0, 0, time.UTC),
		Weapon:    model.WeaponFoil,
		Bracket:   model.BracketJunior,
		Tier:      model.TierChampionship,
		Capacity:  capacity,
		Status:    status,
		CreatedAt: s.now,
		UpdatedAt: s.now,
	}
	s.Require().NoError(s.store.SaveTournament(s.ctx, t))
	return t
}

func (s *Suite) register(t *model.Tournament, fencerIDs ...string) {
	for _, id := range fencerIDs {
		err := s.store.AddRegistration(s.ctx, model.Registration{
			TournamentID: t.ID,
			FencerID:     model.FencerID(id),
			Bracket:      t.Bracket,
			RegisteredAt: s.now,
		})
		s.Require().NoError(err)
	}
}

func (s *Suite) setStatus(t *model.Tournament, to model.TournamentStatus) {
	updated, err := s.store.UpdateTournamentStatus(s.ctx, t.ID, t.Status, to, s.now)
	s.Require().NoError(err)
	*t = *updated
}

func (s *Suite) record(t *model.Tournament, fencerID string, placement, points int) model.ResultRecord {
	return model.ResultRecord{
		ID:             model.ResultID(fmt.Sprintf("%s-%s-%d", t.ID, fencerID, placement)),
		TournamentID:   t.ID,
		FencerID:       model.FencerID(fencerID),
		Kind:           model.ResultKindPlacement,
		Placement:      placement,
		Points:         points,
		Bracket:        t.Bracket,
		TournamentDate: t.Date,
		RecordedAt:     s.now,
	}
}

// runningTournament returns an in-progress tournament with the given fencers registered
func (s *Suite) runningTournament(id string, fencerIDs ...string) *model.Tournament {
	t := s.tournament(id, model.TournamentStatusRegistrationOpen, 0)
	for _, fid := range fencerIDs {
		s.fencer(fid, model.WeaponFoil, model.GenderFemale)
	}
	s.register(t, fencerIDs...)
	s.setStatus(t, model.TournamentStatusInProgress)
	return t
}

func (s *Suite) entry(fencerID string, bracket model.AgeBracket) *model.RankingEntry {
	e, err := s.store.GetRankingEntry(s.ctx, model.RankingKey{FencerID: model.FencerID(fencerID), Bracket: bracket})
	s.Require().NoError(err)
	return e
}

// Fencer tests

func (s *Suite) TestSaveAndGetFencer() {
	club := model.ClubID("club-1")
	f := s.fencer("f-1", model.WeaponSabre, model.GenderMale)
	f.ClubID = &club
	s.Require().NoError(s.store.SaveFencer(s.ctx, f))

	got, err := s.store.GetFencer(s.ctx, "f-1")
	s.Require().NoError(err)
	s.Equal("First f-1", got.FirstName)
	s.Equal(model.WeaponSabre, got.Weapon)
	s.Require().NotNil(got.ClubID)
	s.Equal(club, *got.ClubID)
	s.True(got.BirthDate.Equal(f.BirthDate))
}

func (s *Suite) TestGetFencerNotFound() {
	_, err := s.store.GetFencer(s.ctx, "missing")
	s.ErrorIs(err, model.ErrFencerNotFound)
}

func (s *Suite) TestListFencersFilters() {
	s.fencer("f-1", model.WeaponSabre, model.GenderMale)
	s.fencer("f-2", model.WeaponFoil, model.GenderFemale)
	s.fencer("f-3", model.WeaponFoil, model.GenderMale)

	all, err := s.store.ListFencers(s.ctx, model.FencerFilter{})
	s.Require().NoError(err)
	s.Len(all, 3)
	s.Equal(model.FencerID("f-1"), all[0].ID)

	foil, err := s.store.ListFencers(s.ctx, model.FencerFilter{Weapon: model.WeaponFoil, Gender: model.GenderMale})
	s.Require().NoError(err)
	s.Require().Len(foil, 1)
	s.Equal(model.FencerID("f-3"), foil[0].ID)
}

// Club tests

func (s *Suite) TestSaveAndListClubs() {
	year := 1990
	weapon := model.WeaponEpee
	s.Require().NoError(s.store.SaveClub(s.ctx, &model.Club{ID: "c-2", Name: "Beta", Status: model.ClubStatusActive}))
	s.Require().NoError(s.store.SaveClub(s.ctx, &model.Club{
		ID: "c-1", Name: "Alpha", Status: model.ClubStatusPending, FoundedYear: &year, WeaponSpecialization: &weapon,
	}))

	got, err := s.store.GetClub(s.ctx, "c-1")
	s.Require().NoError(err)
	s.Equal("Alpha", got.Name)
	s.Require().NotNil(got.FoundedYear)
	s.Equal(1990, *got.FoundedYear)
	s.Require().NotNil(got.WeaponSpecialization)
	s.Equal(model.WeaponEpee, *got.WeaponSpecialization)

	clubs, err := s.store.ListClubs(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(clubs, 2)
	s.Equal(model.ClubID("c-1"), clubs[0].ID)

	_, err = s.store.GetClub(s.ctx, "missing")
	s.ErrorIs(err, model.ErrClubNotFound)
}

// Tournament tests

func (s *Suite) TestSaveAndGetTournament() {
	female := model.GenderFemale
	t := s.tournament("t-1", model.TournamentStatusUpcoming, 64)
	t.Gender = &female
	s.Require().NoError(s.store.SaveTournament(s.ctx, t))

	got, err := s.store.GetTournament(s.ctx, "t-1")
	s.Require().NoError(err)
	s.Equal(model.TierChampionship, got.Tier)
	s.Equal(64, got.Capacity)
	s.Require().NotNil(got.Gender)
	s.Equal(model.GenderFemale, *got.Gender)
	s.True(got.Date.Equal(t.Date))

	_, err = s.store.GetTournament(s.ctx, "missing")
	s.ErrorIs(err, model.ErrTournamentNotFound)
}

func (s *Suite) TestListTournamentsFilterByStatus() {
	s.tournament("t-1", model.TournamentStatusUpcoming, 0)
	s.tournament("t-2", model.TournamentStatusRegistrationOpen, 0)

	open, err := s.store.ListTournaments(s.ctx, model.TournamentFilter{Status: model.TournamentStatusRegistrationOpen})
	s.Require().NoError(err)
	s.Require().Len(open, 1)
	s.Equal(model.TournamentID("t-2"), open[0].ID)
}

func (s *Suite) TestUpdateTournamentStatusComparesPreviousStatus() {
	t := s.tournament("t-1", model.TournamentStatusUpcoming, 0)

	updated, err := s.store.UpdateTournamentStatus(s.ctx, t.ID, model.TournamentStatusUpcoming, model.TournamentStatusRegistrationOpen, s.now)
	s.Require().NoError(err)
	s.Equal(model.TournamentStatusRegistrationOpen, updated.Status)

	_, err = s.store.UpdateTournamentStatus(s.ctx, t.ID, model.TournamentStatusUpcoming, model.TournamentStatusCancelled, s.now)
	s.ErrorIs(err, model.ErrStaleTournament)
}

// Admin tests

func (s *Suite) TestSaveAndGetAdmin() {
	s.Require().NoError(s.store.SaveAdmin(s.ctx, &model.Admin{Username: "root", PasswordHash: "hash", CreatedAt: s.now}))

	got, err := s.store.GetAdmin(s.ctx, "root")
	s.Require().NoError(err)
	s.Equal("hash", got.PasswordHash)

	_, err = s.store.GetAdmin(s.ctx, "nobody")
	s.ErrorIs(err, model.ErrAdminNotFound)
}

// Registration tests

func (s *Suite) TestAddRegistrationCreatesRankingEntry() {
	t := s.tournament("t-1", model.TournamentStatusRegistrationOpen, 0)
	s.fencer("f-1", model.WeaponFoil, model.GenderFemale)
	s.register(t, "f-1")

	reg, err := s.store.GetRegistration(s.ctx, t.ID, "f-1")
	s.Require().NoError(err)
	s.Equal(model.BracketJunior, reg.Bracket)

	e := s.entry("f-1", model.BracketJunior)
	s.Equal(0, e.Points)
	s.Equal(0, e.TournamentsAttended)
}

func (s *Suite) TestAddRegistrationRejectsDuplicate() {
	t := s.tournament("t-1", model.TournamentStatusRegistrationOpen, 0)
	s.register(t, "f-1")

	err := s.store.AddRegistration(s.ctx, model.Registration{TournamentID: t.ID, FencerID: "f-1", Bracket: t.Bracket, RegisteredAt: s.now})
	s.ErrorIs(err, model.ErrAlreadyRegistered)
}

func (s *Suite) TestAddRegistrationRequiresOpenTournament() {
	t := s.tournament("t-1", model.TournamentStatusUpcoming, 0)

	err := s.store.AddRegistration(s.ctx, model.Registration{TournamentID: t.ID, FencerID: "f-1", Bracket: t.Bracket, RegisteredAt: s.now})
	s.ErrorIs(err, model.ErrRegistrationClosed)

	err = s.store.AddRegistration(s.ctx, model.Registration{TournamentID: "missing", FencerID: "f-1", Bracket: t.Bracket, RegisteredAt: s.now})
	s.ErrorIs(err, model.ErrTournamentNotFound)
}

func (s *Suite) TestAddRegistrationEnforcesCapacity() {
	t := s.tournament("t-1", model.TournamentStatusRegistrationOpen, 64)
	for i := 1; i <= 64; i++ {
		s.register(t, fmt.Sprintf("f-%02d", i))
	}

	err := s.store.AddRegistration(s.ctx, model.Registration{TournamentID: t.ID, FencerID: "f-65", Bracket: t.Bracket, RegisteredAt: s.now})
	s.ErrorIs(err, model.ErrCapacityExceeded)

	regs, err := s.store.ListRegistrations(s.ctx, t.ID)
	s.Require().NoError(err)
	s.Len(regs, 64)
}

func (s *Suite) TestConcurrentRegistrationForLastPlace() {
	t := s.tournament("t-1", model.TournamentStatusRegistrationOpen, 3)
	s.register(t, "f-1", "f-2")

	const racers = 8
	var wg sync.WaitGroup
	errs := make([]error, racers)
	for i := range racers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = s.store.AddRegistration(s.ctx, model.Registration{
				TournamentID: t.ID,
				FencerID:     model.FencerID(fmt.Sprintf("racer-%d", i)),
				Bracket:      t.Bracket,
				RegisteredAt: s.now,
			})
		}()
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
			continue
		}
		s.ErrorIs(err, model.ErrCapacityExceeded)
	}
	s.Equal(1, wins)

	regs, err := s.store.ListRegistrations(s.ctx, t.ID)
	s.Require().NoError(err)
	s.Len(regs, 3)
}

func (s *Suite) TestRemoveRegistration() {
	t := s.tournament("t-1", model.TournamentStatusRegistrationOpen, 0)
	s.register(t, "f-1")

	s.Require().NoError(s.store.RemoveRegistration(s.ctx, t.ID, "f-1"))
	_, err := s.store.GetRegistration(s.ctx, t.ID, "f-1")
	s.ErrorIs(err, model.ErrNotRegistered)

	err = s.store.RemoveRegistration(s.ctx, t.ID, "f-1")
	s.ErrorIs(err, model.ErrNotRegistered)
}

func (s *Suite) TestRemoveRegistrationBlockedByResults() {
	t := s.runningTournament("t-1", "a", "b")
	s.Require().NoError(s.store.AppendResults(s.ctx, t.ID, []model.ResultRecord{s.record(t, "a", 1, 200)}))

	err := s.store.RemoveRegistration(s.ctx, t.ID, "a")
	s.ErrorIs(err, model.ErrResultsAlreadyRecorded)

	s.NoError(s.store.RemoveRegistration(s.ctx, t.ID, "b"))

	s.setStatus(t, model.TournamentStatusCompleted)
	err = s.store.RemoveRegistration(s.ctx, t.ID, "a")
	s.ErrorIs(err, model.ErrResultsAlreadyRecorded)
}

func (s *Suite) TestRemoveRegistrationRequiresOpenOrRunningTournament() {
	t := s.tournament("t-1", model.TournamentStatusRegistrationOpen, 0)
	s.register(t, "f-1")
	s.setStatus(t, model.TournamentStatusCancelled)

	err := s.store.RemoveRegistration(s.ctx, t.ID, "f-1")
	s.ErrorIs(err, model.ErrUnregisterNotAllowed)
}

// Result tests

func (s *Suite) TestAppendResultsUpdatesRankings() {
	t := s.runningTournament("t-1", "a", "b", "c")
	err := s.store.AppendResults(s.ctx, t.ID, []model.ResultRecord{
		s.record(t, "a", 1, 200),
		s.record(t, "b", 2, 150),
		s.record(t, "c", 3, 100),
	})
	s.Require().NoError(err)

	s.Equal(200, s.entry("a", model.BracketJunior).Points)
	s.Equal(150, s.entry("b", model.BracketJunior).Points)
	s.Equal(1, s.entry("c", model.BracketJunior).TournamentsAttended)

	records, err := s.store.ListTournamentResults(s.ctx, t.ID)
	s.Require().NoError(err)
	s.Len(records, 3)

	history, err := s.store.ListFencerResults(s.ctx, "b")
	s.Require().NoError(err)
	s.Require().Len(history, 1)
	s.Equal(2, history[0].Placement)
	s.Equal(model.ResultKindPlacement, history[0].Kind)
}

func (s *Suite) TestAppendResultsRejectsSecondIdenticalBatch() {
	t := s.runningTournament("t-1", "a", "b")
	batch := []model.ResultRecord{s.record(t, "a", 1, 200), s.record(t, "b", 2, 150)}
	s.Require().NoError(s.store.AppendResults(s.ctx, t.ID, batch))

	err := s.store.AppendResults(s.ctx, t.ID, batch)
	s.ErrorIs(err, model.ErrDuplicateResult)
	s.Equal(200, s.entry("a", model.BracketJunior).Points)
	s.Equal(150, s.entry("b", model.BracketJunior).Points)
}

func (s *Suite) TestAppendResultsIsAllOrNothing() {
	t := s.runningTournament("t-1", "a", "b")
	err := s.store.AppendResults(s.ctx, t.ID, []model.ResultRecord{
		s.record(t, "a", 1, 200),
		s.record(t, "stranger", 2, 150),
	})
	s.ErrorIs(err, model.ErrNotRegistered)

	records, err := s.store.ListTournamentResults(s.ctx, t.ID)
	s.Require().NoError(err)
	s.Empty(records)
	s.Equal(0, s.entry("a", model.BracketJunior).Points)
}

func (s *Suite) TestAppendResultsRejectsTakenPlacement() {
	t := s.runningTournament("t-1", "a", "b")
	s.Require().NoError(s.store.AppendResults(s.ctx, t.ID, []model.ResultRecord{s.record(t, "a", 1, 200)}))

	err := s.store.AppendResults(s.ctx, t.ID, []model.ResultRecord{s.record(t, "b", 1, 200)})
	s.ErrorIs(err, model.ErrDuplicatePlacement)
}

func (s *Suite) TestAppendResultsRequiresRunningOrCompletedTournament() {
	t := s.tournament("t-1", model.TournamentStatusRegistrationOpen, 0)
	s.register(t, "a")

	err := s.store.AppendResults(s.ctx, t.ID, []model.ResultRecord{s.record(t, "a", 1, 200)})
	s.ErrorIs(err, model.ErrResultsNotAccepted)

	s.setStatus(t, model.TournamentStatusInProgress)
	s.setStatus(t, model.TournamentStatusCompleted)
	s.NoError(s.store.AppendResults(s.ctx, t.ID, []model.ResultRecord{s.record(t, "a", 1, 200)}))
}

func (s *Suite) TestConcurrentDuplicateResultsApplyOnce() {
	t := s.runningTournament("t-1", "a")

	const racers = 6
	var wg sync.WaitGroup
	errs := make([]error, racers)
	for i := range racers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rec := s.record(t, "a", 1, 200)
			rec.ID = model.ResultID(fmt.Sprintf("race-%d", i))
			errs[i] = s.store.AppendResults(s.ctx, t.ID, []model.ResultRecord{rec})
		}()
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
			continue
		}
		s.ErrorIs(err, model.ErrDuplicateResult)
	}
	s.Equal(1, wins)
	s.Equal(200, s.entry("a", model.BracketJunior).Points)
}

func (s *Suite) TestAppendCorrectionAppliesDelta() {
	t := s.runningTournament("t-1", "a", "b")
	original := s.record(t, "a", 2, 150)
	s.Require().NoError(s.store.AppendResults(s.ctx, t.ID, []model.ResultRecord{original, s.record(t, "b", 3, 100)}))

	correction := s.record(t, "a", 1, 50)
	correction.ID = "corr-1"
	correction.Kind = model.ResultKindCorrection
	correction.Supersedes = &original.ID
	s.Require().NoError(s.store.AppendCorrection(s.ctx, correction))

	e := s.entry("a", model.BracketJunior)
	s.Equal(200, e.Points)
	s.Equal(1, e.TournamentsAttended)

	records, err := s.store.ListTournamentResults(s.ctx, t.ID)
	s.Require().NoError(err)
	s.Len(records, 3)
	summary := model.SummarizeResults(records)
	s.Equal(model.FencerID("a"), summary[0].FencerID)
	s.Equal(200, summary[0].Points)
	s.Equal(model.ResultID("corr-1"), summary[0].Current)
}

func (s *Suite) TestAppendCorrectionRejectsStaleSupersedes() {
	t := s.runningTournament("t-1", "a")
	original := s.record(t, "a", 2, 150)
	s.Require().NoError(s.store.AppendResults(s.ctx, t.ID, []model.ResultRecord{original}))

	first := s.record(t, "a", 1, 50)
	first.ID = "corr-1"
	first.Kind = model.ResultKindCorrection
	first.Supersedes = &original.ID
	s.Require().NoError(s.store.AppendCorrection(s.ctx, first))

	second := s.record(t, "a", 3, -50)
	second.ID = "corr-2"
	second.Kind = model.ResultKindCorrection
	second.Supersedes = &original.ID
	s.ErrorIs(s.store.AppendCorrection(s.ctx, second), model.ErrStaleResult)
	s.Equal(200, s.entry("a", model.BracketJunior).Points)
}

func (s *Suite) TestAppendCorrectionRejectsTakenPlacement() {
	t := s.runningTournament("t-1", "a", "b")
	original := s.record(t, "a", 2, 150)
	s.Require().NoError(s.store.AppendResults(s.ctx, t.ID, []model.ResultRecord{original, s.record(t, "b", 1, 200)}))

	correction := s.record(t, "a", 1, 50)
	correction.Kind = model.ResultKindCorrection
	correction.Supersedes = &original.ID
	s.ErrorIs(s.store.AppendCorrection(s.ctx, correction), model.ErrDuplicatePlacement)
}

func (s *Suite) TestAppendCorrectionRequiresExistingResult() {
	t := s.runningTournament("t-1", "a")
	id := model.ResultID("nothing")
	correction := s.record(t, "a", 1, 200)
	correction.Kind = model.ResultKindCorrection
	correction.Supersedes = &id
	s.ErrorIs(s.store.AppendCorrection(s.ctx, correction), model.ErrResultNotFound)
}

// Ranking tests

func (s *Suite) TestListRankingEntriesByBracket() {
	t := s.runningTournament("t-1", "a", "b")
	s.Require().NoError(s.store.AppendResults(s.ctx, t.ID, []model.ResultRecord{s.record(t, "a", 1, 200)}))

	senior := s.tournament("t-2", model.TournamentStatusRegistrationOpen, 0)
	senior.Bracket = model.BracketSenior
	s.Require().NoError(s.store.SaveTournament(s.ctx, senior))
	s.register(senior, "a")

	junior, err := s.store.ListRankingEntries(s.ctx, model.BracketJunior)
	s.Require().NoError(err)
	s.Len(junior, 2)

	all, err := s.store.ListRankingEntries(s.ctx, "")
	s.Require().NoError(err)
	s.Len(all, 3)

	mine, err := s.store.ListFencerRankings(s.ctx, "a")
	s.Require().NoError(err)
	s.Len(mine, 2)

	_, err = s.store.GetRankingEntry(s.ctx, model.RankingKey{FencerID: "a", Bracket: model.BracketU11})
	s.ErrorIs(err, model.ErrRankingNotFound)
}

func (s *Suite) TestResetKeepsHistoryAndRebuildRestores() {
	t := s.runningTournament("t-1", "a", "b")
	s.Require().NoError(s.store.AppendResults(s.ctx, t.ID, []model.ResultRecord{
		s.record(t, "a", 1, 200),
		s.record(t, "b", 2, 150),
	}))

	n, err := s.store.ResetRankings(s.ctx, s.now)
	s.Require().NoError(err)
	s.Equal(2, n)
	s.Equal(0, s.entry("a", model.BracketJunior).Points)

	records, err := s.store.ListTournamentResults(s.ctx, t.ID)
	s.Require().NoError(err)
	s.Len(records, 2)

	_, err = s.store.RebuildRankings(s.ctx, s.now)
	s.Require().NoError(err)
	s.Equal(200, s.entry("a", model.BracketJunior).Points)
	s.Equal(1, s.entry("b", model.BracketJunior).TournamentsAttended)
}

func (s *Suite) TestPing() {
	s.NoError(s.store.Ping(s.ctx))
}
