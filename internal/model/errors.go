package model

import (
	"errors"
	"fmt"
)

// Common errors used across the application
var (
	// Not found errors
	ErrFencerNotFound     = errors.New("fencer not found")
	ErrClubNotFound       = errors.New("club not found")
	ErrTournamentNotFound = errors.New("tournament not found")
	ErrResultNotFound     = errors.New("result not found")
	ErrRankingNotFound    = errors.New("ranking entry not found")
	ErrAdminNotFound      = errors.New("admin not found")

	// Validation errors
	ErrInvalidDate        = errors.New("birth date is after the evaluation date")
	ErrUnknownTier        = errors.New("unknown competition tier")
	ErrInvalidPlacement   = errors.New("placement must be a positive integer")
	ErrDuplicatePlacement = errors.New("placement is already taken in this tournament")
	ErrEmptyResults       = errors.New("no placements supplied")
	ErrInvalidWeapon      = errors.New("invalid weapon")
	ErrInvalidGender      = errors.New("invalid gender")
	ErrInvalidBracket     = errors.New("invalid age bracket")
	ErrInvalidStatus      = errors.New("invalid status")
	ErrInvalidCapacity    = errors.New("capacity must not be negative")
	ErrMissingName        = errors.New("name is required")
	ErrInvalidImport      = errors.New("invalid results file")

	// Registration errors
	ErrIneligible             = errors.New("fencer is not eligible for this tournament")
	ErrRegistrationClosed     = errors.New("tournament is not accepting registrations")
	ErrAlreadyRegistered      = errors.New("fencer is already registered")
	ErrCapacityExceeded       = errors.New("tournament is full")
	ErrNotRegistered          = errors.New("fencer is not registered for this tournament")
	ErrUnregisterNotAllowed   = errors.New("registrations can no longer be withdrawn")
	ErrResultsAlreadyRecorded = errors.New("results already recorded for this fencer")

	// Result errors
	ErrResultsNotAccepted = errors.New("tournament is not accepting results")
	ErrDuplicateResult    = errors.New("result already recorded for this fencer")
	ErrStaleResult        = errors.New("result was superseded concurrently")
	ErrUnchangedPlacement = errors.New("placement is unchanged")

	// Tournament lifecycle errors
	ErrInvalidTransition = errors.New("invalid tournament status transition")
	ErrStaleTournament   = errors.New("tournament status changed concurrently")

	// Ranking errors
	ErrRankingDrift  = errors.New("ranking entries disagree with result history")
	ErrResetDisabled = errors.New("ranking reset is disabled")
)

// IneligibilityReason names the first check a fencer failed
type IneligibilityReason string

const (
	ReasonWeaponMismatch     IneligibilityReason = "weapon_mismatch"
	ReasonBracketMismatch    IneligibilityReason = "bracket_mismatch"
	ReasonGenderMismatch     IneligibilityReason = "gender_mismatch"
	ReasonRegistrationClosed IneligibilityReason = "registration_closed"
	ReasonCapacityExceeded   IneligibilityReason = "capacity_exceeded"
)

// IneligibleError explains why a fencer may not register for a tournament, or
// may not be credited with a result in it.
// It matches ErrIneligible, and the status and capacity reasons also match
// ErrRegistrationClosed and ErrCapacityExceeded.
type IneligibleError struct {
	Reason IneligibilityReason
	Detail string
}

func (e *IneligibleError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("%s: %s", ErrIneligible.Error(), e.Reason)
	}
	return fmt.Sprintf("%s: %s (%s)", ErrIneligible.Error(), e.Reason, e.Detail)
}

// Is implements errors.Is matching
func (e *IneligibleError) Is(target error) bool {
	switch target {
	case ErrIneligible:
		return true
	case ErrRegistrationClosed:
		return e.Reason == ReasonRegistrationClosed
	case ErrCapacityExceeded:
		return e.Reason == ReasonCapacityExceeded
	}
	return false
}
