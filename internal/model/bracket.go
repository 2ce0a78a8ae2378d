package model

import "strings"

// AgeBracket is a named, non-overlapping age range used for ranking and eligibility
type AgeBracket string

const (
	BracketU11    AgeBracket = "U11"    // 0-10
	BracketU13    AgeBracket = "U13"    // 11-12
	BracketU15    AgeBracket = "U15"    // 13-14
	BracketCadet  AgeBracket = "Cadet"  // 15-16
	BracketJunior AgeBracket = "Junior" // 17-19
	BracketSenior AgeBracket = "Senior" // 20+
)

// AgeRange is an inclusive age range; MaxAge < 0 means unbounded
type AgeRange struct {
	Bracket AgeBracket
	MinAge  int
	MaxAge  int
}

// Contains reports whether age falls inside the range
func (r AgeRange) Contains(age int) bool {
	return age >= r.MinAge && (r.MaxAge < 0 || age <= r.MaxAge)
}

// AgeRanges lists the brackets in ascending order. Consecutive ranges are
// contiguous and the last one is unbounded, so every age >= 0 has exactly one bracket.
var AgeRanges = []AgeRange{
	{Bracket: BracketU11, MinAge: 0, MaxAge: 10},
	{Bracket: BracketU13, MinAge: 11, MaxAge: 12},
	{Bracket: BracketU15, MinAge: 13, MaxAge: 14},
	{Bracket: BracketCadet, MinAge: 15, MaxAge: 16},
	{Bracket: BracketJunior, MinAge: 17, MaxAge: 19},
	{Bracket: BracketSenior, MinAge: 20, MaxAge: -1},
}

// Valid reports whether b is one of the six brackets
func (b AgeBracket) Valid() bool {
	for _, r := range AgeRanges {
		if r.Bracket == b {
			return true
		}
	}
	return false
}

// ParseBracket accepts a bracket name in any case
func ParseBracket(s string) (AgeBracket, error) {
	for _, r := range AgeRanges {
		if strings.EqualFold(string(r.Bracket), strings.TrimSpace(s)) {
			return r.Bracket, nil
		}
	}
	return "", ErrInvalidBracket
}
