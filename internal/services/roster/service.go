// Package roster manages fencers and clubs.
package roster

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/mcoot/allfence/internal/dependencies/clock"
	"github.com/mcoot/allfence/internal/dependencies/random"
	"github.com/mcoot/allfence/internal/model"
	"github.com/mcoot/allfence/internal/storage"
)

// Service manages fencer and club records
type Service struct {
	storage storage.Storage
	clock   clock.Clock
	random  random.Random
	logger  *slog.Logger
}

// New creates a new roster Service
func New(storage storage.Storage, clock clock.Clock, random random.Random, logger *slog.Logger) *Service {
	return &Service{
		storage: storage,
		clock:   clock,
		random:  random,
		logger:  logger,
	}
}

// FencerInput holds the fields for a new fencer
type FencerInput struct {
	FirstName string
	LastName  string
	BirthDate time.Time
	Gender    model.Gender
	Weapon    model.Weapon
	ClubID    *model.ClubID
}

// FencerUpdate holds optional changes to a fencer; nil fields are left alone.
// Birth date and gender fix a fencer's bracket and event eligibility, so they
// are set once at creation and cannot be updated.
type FencerUpdate struct {
	FirstName *string
	LastName  *string
	Weapon    *model.Weapon
	ClubID    *model.ClubID
	ClearClub bool
}

// ClubInput holds the fields for a new club
type ClubInput struct {
	Name                 string
	FoundedYear          *int
	Status               model.ClubStatus
	WeaponSpecialization *model.Weapon
}

// Fencer operations

// CreateFencer validates and stores a new fencer
func (s *Service) CreateFencer(ctx context.Context, in FencerInput) (*model.Fencer, error) {
	now := s.clock.Now()
	fencer := &model.Fencer{
		FirstName: strings.TrimSpace(in.FirstName),
		LastName:  strings.TrimSpace(in.LastName),
		BirthDate: civilDate(in.BirthDate),
		Gender:    in.Gender,
		Weapon:    in.Weapon,
		ClubID:    in.ClubID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.validateFencer(ctx, fencer); err != nil {
		return nil, err
	}

	id, err := random.UniqueID(ctx, s.random, "F-", func(id string) (bool, error) {
		_, err := s.storage.GetFencer(ctx, model.FencerID(id))
		return random.Lookup(err, model.ErrFencerNotFound)
	})
	if err != nil {
		return nil, err
	}
	fencer.ID = model.FencerID(id)

	if err := s.storage.SaveFencer(ctx, fencer); err != nil {
		return nil, err
	}
	s.logger.Info("fencer created",
		slog.String("fencer_id", string(fencer.ID)),
		slog.String("weapon", string(fencer.Weapon)),
	)
	return fencer, nil
}

// GetFencer retrieves a fencer by ID
func (s *Service) GetFencer(ctx context.Context, id model.FencerID) (*model.Fencer, error) {
	return s.storage.GetFencer(ctx, id)
}

// ListFencers returns fencers matching the filter, ordered by ID
func (s *Service) ListFencers(ctx context.Context, filter model.FencerFilter) ([]*model.Fencer, error) {
	return s.storage.ListFencers(ctx, filter)
}

// UpdateFencer applies a partial update to the editable fields
func (s *Service) UpdateFencer(ctx context.Context, id model.FencerID, upd FencerUpdate) (*model.Fencer, error) {
	fencer, err := s.storage.GetFencer(ctx, id)
	if err != nil {
		return nil, err
	}

	if upd.FirstName != nil {
		fencer.FirstName = strings.TrimSpace(*upd.FirstName)
	}
	if upd.LastName != nil {
		fencer.LastName = strings.TrimSpace(*upd.LastName)
	}
	if upd.Weapon != nil {
		fencer.Weapon = *upd.Weapon
	}
	switch {
	case upd.ClearClub:
		fencer.ClubID = nil
	case upd.ClubID != nil:
		fencer.ClubID = upd.ClubID
	}
	fencer.UpdatedAt = s.clock.Now()

	if err := s.validateFencer(ctx, fencer); err != nil {
		return nil, err
	}
	if err := s.storage.SaveFencer(ctx, fencer); err != nil {
		return nil, err
	}
	return fencer, nil
}

func (s *Service) validateFencer(ctx context.Context, f *model.Fencer) error {
	if f.FirstName == "" || f.LastName == "" {
		return model.ErrMissingName
	}
	gender, err := model.ParseGender(string(f.Gender))
	if err != nil {
		return err
	}
	f.Gender = gender
	weapon, err := model.ParseWeapon(string(f.Weapon))
	if err != nil {
		return err
	}
	f.Weapon = weapon
	if f.BirthDate.IsZero() || f.BirthDate.After(clock.Today(s.clock)) {
		return fmt.Errorf("%w: %s", model.ErrInvalidDate, f.BirthDate.Format(time.DateOnly))
	}
	if f.ClubID != nil {
		if _, err := s.storage.GetClub(ctx, *f.ClubID); err != nil {
			return err
		}
	}
	return nil
}

// Club operations

// CreateClub validates and stores a new club
func (s *Service) CreateClub(ctx context.Context, in ClubInput) (*model.Club, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, model.ErrMissingName
	}
	status := in.Status
	if status == "" {
		status = model.ClubStatusActive
	}
	if !status.Valid() {
		return nil, fmt.Errorf("%w: %s", model.ErrInvalidStatus, status)
	}
	if in.WeaponSpecialization != nil {
		if _, err := model.ParseWeapon(string(*in.WeaponSpecialization)); err != nil {
			return nil, err
		}
	}

	id, err := random.UniqueID(ctx, s.random, "C-", func(id string) (bool, error) {
		_, err := s.storage.GetClub(ctx, model.ClubID(id))
		return random.Lookup(err, model.ErrClubNotFound)
	})
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	club := &model.Club{
		ID:                   model.ClubID(id),
		Name:                 name,
		FoundedYear:          in.FoundedYear,
		Status:               status,
		WeaponSpecialization: in.WeaponSpecialization,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	if err := s.storage.SaveClub(ctx, club); err != nil {
		return nil, err
	}
	s.logger.Info("club created", slog.String("club_id", string(club.ID)))
	return club, nil
}

// GetClub retrieves a club by ID
func (s *Service) GetClub(ctx context.Context, id model.ClubID) (*model.Club, error) {
	return s.storage.GetClub(ctx, id)
}

// ListClubs returns every club ordered by ID
func (s *Service) ListClubs(ctx context.Context) ([]*model.Club, error) {
	return s.storage.ListClubs(ctx)
}

func civilDate(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
