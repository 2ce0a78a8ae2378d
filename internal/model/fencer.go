package model

import (
	"strings"
	"time"
)

// FencerID uniquely identifies a fencer
type FencerID string

// Weapon is one of the three olympic fencing weapons
type Weapon string

const (
	WeaponSabre Weapon = "sabre"
	WeaponFoil  Weapon = "foil"
	WeaponEpee  Weapon = "epee"
)

// Weapons lists every weapon in display order
var Weapons = []Weapon{WeaponSabre, WeaponFoil, WeaponEpee}

// ParseWeapon accepts a weapon name in any case
func ParseWeapon(s string) (Weapon, error) {
	switch Weapon(strings.ToLower(strings.TrimSpace(s))) {
	case WeaponSabre:
		return WeaponSabre, nil
	case WeaponFoil:
		return WeaponFoil, nil
	case WeaponEpee, "épée":
		return WeaponEpee, nil
	}
	return "", ErrInvalidWeapon
}

// Gender of a fencer, or the gender requirement of a tournament
type Gender string

const (
	GenderMale   Gender = "M"
	GenderFemale Gender = "F"
)

// ParseGender normalises the spellings seen in imported data (M/F, male/female, 0/1)
func ParseGender(s string) (Gender, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "m", "male", "0":
		return GenderMale, nil
	case "f", "female", "1":
		return GenderFemale, nil
	}
	return "", ErrInvalidGender
}

// Fencer is a registered athlete
type Fencer struct {
	ID        FencerID
	FirstName string
	LastName  string
	BirthDate time.Time // date only, UTC
	Gender    Gender
	Weapon    Weapon
	ClubID    *ClubID // nil when unaffiliated
	CreatedAt time.Time
	UpdatedAt time.Time
}

// FullName returns "First Last"
func (f *Fencer) FullName() string {
	return strings.TrimSpace(f.FirstName + " " + f.LastName)
}

// InClub reports whether the fencer currently belongs to the given club
func (f *Fencer) InClub(id ClubID) bool {
	return f.ClubID != nil && *f.ClubID == id
}

// FencerFilter narrows fencer listings; zero fields match everything
type FencerFilter struct {
	Weapon Weapon
	Gender Gender
	ClubID ClubID
}

// Matches reports whether the fencer passes the filter
func (ff FencerFilter) Matches(f *Fencer) bool {
	if ff.Weapon != "" && f.Weapon != ff.Weapon {
		return false
	}
	if ff.Gender != "" && f.Gender != ff.Gender {
		return false
	}
	if ff.ClubID != "" && !f.InClub(ff.ClubID) {
		return false
	}
	return true
}
