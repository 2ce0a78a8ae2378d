// Package eligibility decides whether a fencer may register for a tournament.
package eligibility

import (
	"fmt"
	"time"

	"github.com/mcoot/allfence/internal/model"
	"github.com/mcoot/allfence/internal/services/bracket"
)

// Check returns nil when the fencer may register, otherwise the first failing
// reason as an *model.IneligibleError. Checks run in order: weapon, bracket,
// gender, registration status, capacity. registered is the tournament's current
// registration count. A birth date after asOf returns model.ErrInvalidDate.
func Check(fencer *model.Fencer, tournament *model.Tournament, asOf time.Time, registered int) error {
	reasons, err := evaluate(fencer, tournament, asOf, registered, true)
	if err != nil {
		return err
	}
	if len(reasons) == 0 {
		return nil
	}
	return reasons[0]
}

// Reasons returns every failing check, in the same order as Check
func Reasons(fencer *model.Fencer, tournament *model.Tournament, asOf time.Time, registered int) ([]*model.IneligibleError, error) {
	return evaluate(fencer, tournament, asOf, registered, false)
}

func evaluate(fencer *model.Fencer, tournament *model.Tournament, asOf time.Time, registered int, firstOnly bool) ([]*model.IneligibleError, error) {
	var reasons []*model.IneligibleError
	fail := func(reason model.IneligibilityReason, detail string) bool {
		reasons = append(reasons, &model.IneligibleError{Reason: reason, Detail: detail})
		return firstOnly
	}

	if fencer.Weapon != tournament.Weapon {
		if fail(model.ReasonWeaponMismatch, fmt.Sprintf("fencer fences %s, tournament is %s", fencer.Weapon, tournament.Weapon)) {
			return reasons, nil
		}
	}

	b, err := bracket.Classify(fencer.BirthDate, asOf)
	if err != nil {
		return nil, err
	}
	if b != tournament.Bracket {
		if fail(model.ReasonBracketMismatch, fmt.Sprintf("fencer is %s, tournament is %s", b, tournament.Bracket)) {
			return reasons, nil
		}
	}

	if tournament.Gender != nil && fencer.Gender != *tournament.Gender {
		if fail(model.ReasonGenderMismatch, fmt.Sprintf("tournament is restricted to %s", *tournament.Gender)) {
			return reasons, nil
		}
	}

	if !tournament.Status.AcceptsRegistrations() {
		if fail(model.ReasonRegistrationClosed, fmt.Sprintf("tournament is %s", tournament.Status)) {
			return reasons, nil
		}
	}

	if !tournament.HasCapacity(registered) {
		fail(model.ReasonCapacityExceeded, fmt.Sprintf("%d of %d places taken", registered, tournament.Capacity))
	}

	return reasons, nil
}
