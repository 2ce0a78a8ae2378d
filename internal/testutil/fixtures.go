package testutil

import (
	"fmt"
	"time"

	"github.com/brianvoe/gofakeit/v7"

	"github.com/mcoot/allfence/internal/model"
)

// Fixtures builds realistic domain values for tests. The same seed always
// produces the same names; IDs are sequential so tests can refer to them.
type Fixtures struct {
	faker *gofakeit.Faker
	now   time.Time
	seq   int
}

// NewFixtures creates a generator seeded for reproducible output
func NewFixtures(seed int64, now time.Time) *Fixtures {
	return &Fixtures{
		faker: gofakeit.New(uint64(seed)),
		now:   now,
	}
}

func (f *Fixtures) next(prefix string) string {
	f.seq++
	return fmt.Sprintf("%s-%03d", prefix, f.seq)
}

// Fencer returns an unsaved fencer with a random name
func (f *Fixtures) Fencer(weapon model.Weapon, gender model.Gender, birth time.Time) *model.Fencer {
	return &model.Fencer{
		ID:        model.FencerID(f.next("F")),
		FirstName: f.faker.FirstName(),
		LastName:  f.faker.LastName(),
		BirthDate: birth,
		Gender:    gender,
		Weapon:    weapon,
		CreatedAt: f.now,
		UpdatedAt: f.now,
	}
}

// Club returns an unsaved active club
func (f *Fixtures) Club() *model.Club {
	year := f.faker.Number(1900, 2020)
	return &model.Club{
		ID:          model.ClubID(f.next("C")),
		Name:        f.faker.City() + " Fencing Club",
		FoundedYear: &year,
		Status:      model.ClubStatusActive,
		CreatedAt:   f.now,
		UpdatedAt:   f.now,
	}
}

// Tournament returns an unsaved tournament open for registration
func (f *Fixtures) Tournament(date time.Time, weapon model.Weapon, bracket model.AgeBracket, tier model.Tier) *model.Tournament {
	city := f.faker.City()
	return &model.Tournament{
		ID:        model.TournamentID(f.next("T")),
		Name:      city + " " + string(tier) + " Open",
		Location:  city,
		Date:      date,
		Weapon:    weapon,
		Bracket:   bracket,
		Tier:      tier,
		Status:    model.TournamentStatusRegistrationOpen,
		CreatedAt: f.now,
		UpdatedAt: f.now,
	}
}
