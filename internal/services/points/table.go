// Package points converts tournament placements into ranking points.
package points

import (
	"github.com/mcoot/allfence/internal/model"
)

// Bucket is a placement range sharing one base value
type Bucket struct {
	From int
	To   int // 0 means unbounded
	Base int
}

// Buckets lists placement ranges in order, with strictly decreasing base values
var Buckets = []Bucket{
	{From: 1, To: 1, Base: 100},
	{From: 2, To: 2, Base: 75},
	{From: 3, To: 3, Base: 50},
	{From: 4, To: 4, Base: 30},
	{From: 5, To: 8, Base: 20},
	{From: 9, To: 16, Base: 10},
	{From: 17, To: 32, Base: 5},
	{From: 33, To: 0, Base: 0},
}

// multipliers are in tenths so rounding stays exact
var multipliers = map[model.Tier]int{
	model.TierLocal:         5,
	model.TierRegional:      10,
	model.TierNational:      15,
	model.TierChampionship:  20,
	model.TierInternational: 25,
}

// Base returns the unweighted points for a placement
func Base(placement int) (int, error) {
	if placement < 1 {
		return 0, model.ErrInvalidPlacement
	}
	for _, b := range Buckets {
		if placement >= b.From && (b.To == 0 || placement <= b.To) {
			return b.Base, nil
		}
	}
	return 0, nil
}

// Multiplier returns the tier's weighting factor
func Multiplier(tier model.Tier) (float64, error) {
	m, ok := multipliers[tier]
	if !ok {
		return 0, model.ErrUnknownTier
	}
	return float64(m) / 10, nil
}

// For returns the points awarded for a placement at a tier, rounded half up
func For(placement int, tier model.Tier) (int, error) {
	m, ok := multipliers[tier]
	if !ok {
		return 0, model.ErrUnknownTier
	}
	base, err := Base(placement)
	if err != nil {
		return 0, err
	}
	return (base*m + 5) / 10, nil
}

// Row is one line of a tier's points table
type Row struct {
	From   int
	To     int
	Base   int
	Points int
}

// Structure returns the full points table for a tier
func Structure(tier model.Tier) ([]Row, error) {
	rows := make([]Row, 0, len(Buckets))
	for _, b := range Buckets {
		p, err := For(b.From, tier)
		if err != nil {
			return nil, err
		}
		rows = append(rows, Row{From: b.From, To: b.To, Base: b.Base, Points: p})
	}
	return rows, nil
}
