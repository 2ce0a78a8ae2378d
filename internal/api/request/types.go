package request

import (
	"fmt"
	"time"
)

// DateLayout is the wire format for calendar dates
const DateLayout = time.DateOnly

// ParseDate parses a YYYY-MM-DD date as midnight UTC
func ParseDate(field, value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, fmt.Errorf("%s is required", field)
	}
	t, err := time.ParseInLocation(DateLayout, value, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s must be a date in YYYY-MM-DD form", field)
	}
	return t, nil
}

// LoginRequest is the request body for logging in
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// CreateFencerRequest is the request body for creating a fencer
type CreateFencerRequest struct {
	FirstName string  `json:"first_name"`
	LastName  string  `json:"last_name"`
	BirthDate string  `json:"birth_date"`
	Gender    string  `json:"gender"`
	Weapon    string  `json:"weapon"`
	ClubID    *string `json:"club_id,omitempty"`
}

// UpdateFencerRequest is the request body for updating a fencer.
// Omitted fields are left unchanged; clear_club removes the club. Birth date
// and gender are not accepted.
type UpdateFencerRequest struct {
	FirstName *string `json:"first_name,omitempty"`
	LastName  *string `json:"last_name,omitempty"`
	Weapon    *string `json:"weapon,omitempty"`
	ClubID    *string `json:"club_id,omitempty"`
	ClearClub bool    `json:"clear_club,omitempty"`
}

// CreateClubRequest is the request body for creating a club
type CreateClubRequest struct {
	Name                 string  `json:"name"`
	FoundedYear          *int    `json:"founded_year,omitempty"`
	Status               string  `json:"status,omitempty"`
	WeaponSpecialization *string `json:"weapon_specialization,omitempty"`
}

// CreateTournamentRequest is the request body for creating a tournament
type CreateTournamentRequest struct {
	Name     string  `json:"name"`
	Location string  `json:"location"`
	Date     string  `json:"date"`
	Weapon   string  `json:"weapon"`
	Bracket  string  `json:"bracket"`
	Gender   *string `json:"gender,omitempty"`
	Tier     string  `json:"tier"`
	Capacity int     `json:"capacity"`
}

// TransitionRequest is the request body for changing a tournament's status
type TransitionRequest struct {
	Status string `json:"status"`
}

// RegisterRequest is the request body for registering a fencer
type RegisterRequest struct {
	FencerID string `json:"fencer_id"`
}

// Placement is one fencer's finishing position
type Placement struct {
	FencerID  string `json:"fencer_id"`
	Placement int    `json:"placement"`
}

// RecordResultsRequest is the request body for recording a tournament's results
type RecordResultsRequest struct {
	Placements []Placement `json:"placements"`
}

// CorrectionRequest is the request body for correcting one result
type CorrectionRequest struct {
	Placement int    `json:"placement"`
	Note      string `json:"note,omitempty"`
}
