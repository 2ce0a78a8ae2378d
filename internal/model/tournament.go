package model

import (
	"strings"
	"time"
)

// TournamentID uniquely identifies a tournament
type TournamentID string

// Tier is the prestige level of a competition
type Tier string

const (
	TierLocal         Tier = "local"
	TierRegional      Tier = "regional"
	TierNational      Tier = "national"
	TierChampionship  Tier = "championship"
	TierInternational Tier = "international"
)

// Tiers lists the tiers in ascending prestige
var Tiers = []Tier{TierLocal, TierRegional, TierNational, TierChampionship, TierInternational}

// ParseTier accepts a tier name in any case
func ParseTier(s string) (Tier, error) {
	t := Tier(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Tiers {
		if t == known {
			return t, nil
		}
	}
	return "", ErrUnknownTier
}

// TournamentStatus is the lifecycle state of a tournament
type TournamentStatus string

const (
	TournamentStatusUpcoming         TournamentStatus = "upcoming"
	TournamentStatusRegistrationOpen TournamentStatus = "registration_open"
	TournamentStatusInProgress       TournamentStatus = "in_progress"
	TournamentStatusCompleted        TournamentStatus = "completed"
	TournamentStatusCancelled        TournamentStatus = "cancelled"
)

// Valid reports whether s is a known status
func (s TournamentStatus) Valid() bool {
	switch s {
	case TournamentStatusUpcoming, TournamentStatusRegistrationOpen, TournamentStatusInProgress,
		TournamentStatusCompleted, TournamentStatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether no further transitions are possible
func (s TournamentStatus) Terminal() bool {
	return s == TournamentStatusCompleted || s == TournamentStatusCancelled
}

// AcceptsRegistrations reports whether fencers may register
func (s TournamentStatus) AcceptsRegistrations() bool {
	return s == TournamentStatusRegistrationOpen
}

// AllowsUnregistration reports whether registrations may be withdrawn
func (s TournamentStatus) AllowsUnregistration() bool {
	return s == TournamentStatusRegistrationOpen || s == TournamentStatusInProgress
}

// AcceptsResults reports whether placements may be recorded or corrected.
// Completed tournaments still accept late results.
func (s TournamentStatus) AcceptsResults() bool {
	return s == TournamentStatusInProgress || s == TournamentStatusCompleted
}

// CanTransitionTo reports whether next follows s in the lifecycle
func (s TournamentStatus) CanTransitionTo(next TournamentStatus) bool {
	if next == TournamentStatusCancelled {
		return !s.Terminal()
	}
	switch s {
	case TournamentStatusUpcoming:
		return next == TournamentStatusRegistrationOpen
	case TournamentStatusRegistrationOpen:
		return next == TournamentStatusInProgress
	case TournamentStatusInProgress:
		return next == TournamentStatusCompleted
	}
	return false
}

// Tournament is a single competition for one weapon, bracket and optional gender
type Tournament struct {
	ID       TournamentID
	Name     string
	Location string
	Date     time.Time // date only, UTC
	Weapon   Weapon
	Bracket  AgeBracket
	Gender   *Gender // nil for mixed events
	Tier     Tier
	Capacity int // 0 means unlimited
	Status   TournamentStatus

	CreatedAt time.Time
	UpdatedAt time.Time
}

// HasCapacity reports whether a tournament with n registrations can take one more
func (t *Tournament) HasCapacity(n int) bool {
	return t.Capacity <= 0 || n < t.Capacity
}

// TournamentFilter narrows tournament listings; zero fields match everything
type TournamentFilter struct {
	Status  TournamentStatus
	Weapon  Weapon
	Bracket AgeBracket
}

// Matches reports whether the tournament passes the filter
func (tf TournamentFilter) Matches(t *Tournament) bool {
	if tf.Status != "" && t.Status != tf.Status {
		return false
	}
	if tf.Weapon != "" && t.Weapon != tf.Weapon {
		return false
	}
	if tf.Bracket != "" && t.Bracket != tf.Bracket {
		return false
	}
	return true
}
