// Package bracket assigns fencers to age brackets.
//
// A bracket always depends on the date it is evaluated for. Registration and
// results use the tournament date so that a fencer's historical results keep
// the bracket they were earned in as the fencer ages.
package bracket

import (
	"time"

	"github.com/mcoot/allfence/internal/model"
)

// Age returns the fencer's age in whole years on asOf
func Age(birth, asOf time.Time) (int, error) {
	birth, asOf = civil(birth), civil(asOf)
	if birth.After(asOf) {
		return 0, model.ErrInvalidDate
	}

	age := asOf.Year() - birth.Year()
	if asOf.Month() < birth.Month() || (asOf.Month() == birth.Month() && asOf.Day() < birth.Day()) {
		age--
	}
	return age, nil
}

// ForAge returns the bracket containing age. Negative ages fall into the youngest bracket.
func ForAge(age int) model.AgeBracket {
	for _, r := range model.AgeRanges {
		if r.Contains(age) {
			return r.Bracket
		}
	}
	return model.AgeRanges[0].Bracket
}

// Classify returns the fencer's bracket on asOf
func Classify(birth, asOf time.Time) (model.AgeBracket, error) {
	age, err := Age(birth, asOf)
	if err != nil {
		return "", err
	}
	return ForAge(age), nil
}

// civil drops the clock so comparisons are by calendar date
func civil(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
