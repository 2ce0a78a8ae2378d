package model

import "time"

// ClubID uniquely identifies a club
type ClubID string

// ClubStatus is the administrative standing of a club
type ClubStatus string

const (
	ClubStatusActive    ClubStatus = "active"
	ClubStatusInactive  ClubStatus = "inactive"
	ClubStatusPending   ClubStatus = "pending"
	ClubStatusSuspended ClubStatus = "suspended"
)

// Valid reports whether s is a known club status
func (s ClubStatus) Valid() bool {
	switch s {
	case ClubStatusActive, ClubStatusInactive, ClubStatusPending, ClubStatusSuspended:
		return true
	}
	return false
}

// Club groups fencers; a fencer belongs to at most one club at a time
type Club struct {
	ID                   ClubID
	Name                 string
	FoundedYear          *int
	Status               ClubStatus
	WeaponSpecialization *Weapon
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// ClubStanding is a snapshot aggregate of a club's member ranking points
type ClubStanding struct {
	Club          Club
	Weapon        Weapon // empty when aggregated across weapons
	TotalPoints   int
	FencerCount   int
	AveragePoints float64
}
