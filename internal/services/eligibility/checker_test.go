package eligibility

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/allfence/internal/model"
)

type CheckerSuite struct {
	suite.Suite
	fencer     *model.Fencer
	tournament *model.Tournament
	asOf       time.Time
}

func TestCheckerSuite(t *testing.T) {
	suite.Run(t, new(CheckerSuite))
}

func (s *CheckerSuite) SetupTest() {
	s.asOf = time.Date(2024, time.June, 20, 0, 0, 0, 0, time.UTC)
	s.fencer = &model.Fencer{
		ID:        "f-1",
		BirthDate: time.Date(2005, time.June, 1, 0, 0, 0, 0, time.UTC),
		Gender:    model.GenderFemale,
		Weapon:    model.WeaponFoil,
	}
	s.tournament = &model.Tournament{
		ID:       "t-1",
		Date:     s.asOf,
		Weapon:   model.WeaponFoil,
		Bracket:  model.BracketJunior,
		Tier:     model.TierRegional,
		Capacity: 64,
		Status:   model.TournamentStatusRegistrationOpen,
	}
}

func (s *CheckerSuite) reason(err error) model.IneligibilityReason {
	var ie *model.IneligibleError
	s.Require().ErrorAs(err, &ie)
	return ie.Reason
}

func (s *CheckerSuite) TestEligibleFencerPasses() {
	s.NoError(Check(s.fencer, s.tournament, s.asOf, 0))
}

func (s *CheckerSuite) TestWeaponMismatch() {
	s.fencer.Weapon = model.WeaponSabre
	err := Check(s.fencer, s.tournament, s.asOf, 0)
	s.ErrorIs(err, model.ErrIneligible)
	s.Equal(model.ReasonWeaponMismatch, s.reason(err))
}

func (s *CheckerSuite) TestJuniorRejectedFromSeniorEvent() {
	s.tournament.Bracket = model.BracketSenior
	err := Check(s.fencer, s.tournament, s.asOf, 0)
	s.Equal(model.ReasonBracketMismatch, s.reason(err))
}

func (s *CheckerSuite) TestGenderMismatch() {
	male := model.GenderMale
	s.tournament.Gender = &male
	err := Check(s.fencer, s.tournament, s.asOf, 0)
	s.Equal(model.ReasonGenderMismatch, s.reason(err))
}

func (s *CheckerSuite) TestMixedEventAcceptsAnyGender() {
	s.tournament.Gender = nil
	s.fencer.Gender = model.GenderMale
	s.NoError(Check(s.fencer, s.tournament, s.asOf, 0))
}

func (s *CheckerSuite) TestRegistrationClosed() {
	s.tournament.Status = model.TournamentStatusUpcoming
	err := Check(s.fencer, s.tournament, s.asOf, 0)
	s.ErrorIs(err, model.ErrRegistrationClosed)
	s.Equal(model.ReasonRegistrationClosed, s.reason(err))
}

func (s *CheckerSuite) TestCapacity() {
	s.NoError(Check(s.fencer, s.tournament, s.asOf, 63))

	err := Check(s.fencer, s.tournament, s.asOf, 64)
	s.ErrorIs(err, model.ErrCapacityExceeded)
	s.Equal(model.ReasonCapacityExceeded, s.reason(err))
}

func (s *CheckerSuite) TestUnlimitedCapacity() {
	s.tournament.Capacity = 0
	s.NoError(Check(s.fencer, s.tournament, s.asOf, 10_000))
}

func (s *CheckerSuite) TestMismatchReportedBeforeCapacity() {
	s.fencer.Weapon = model.WeaponEpee
	s.tournament.Status = model.TournamentStatusInProgress
	err := Check(s.fencer, s.tournament, s.asOf, 64)
	s.Equal(model.ReasonWeaponMismatch, s.reason(err))
	s.NotErrorIs(err, model.ErrCapacityExceeded)
}

func (s *CheckerSuite) TestReasonsListsAllFailuresInOrder() {
	s.fencer.Weapon = model.WeaponEpee
	s.tournament.Bracket = model.BracketSenior
	s.tournament.Status = model.TournamentStatusCompleted

	reasons, err := Reasons(s.fencer, s.tournament, s.asOf, 64)
	s.Require().NoError(err)

	var got []model.IneligibilityReason
	for _, r := range reasons {
		got = append(got, r.Reason)
	}
	s.Equal([]model.IneligibilityReason{
		model.ReasonWeaponMismatch,
		model.ReasonBracketMismatch,
		model.ReasonRegistrationClosed,
		model.ReasonCapacityExceeded,
	}, got)
}

func (s *CheckerSuite) TestBirthAfterEvaluationDate() {
	s.fencer.BirthDate = s.asOf.AddDate(0, 0, 1)
	err := Check(s.fencer, s.tournament, s.asOf, 0)
	s.ErrorIs(err, model.ErrInvalidDate)
}
