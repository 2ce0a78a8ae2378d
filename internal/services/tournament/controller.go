package tournament

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

// Controller manages tournament records and their status state machine
type Controller struct {
	storage storage.Storage
	clock   clock.Clock
	random  random.Random
	logger  *slog.Logger
}

// NewController creates a new tournament Controller
func NewController(storage storage.Storage, clock clock.Clock, random random.Random, logger *slog.Logger) *Controller {
	return &Controller{
		storage: storage,
		clock:   clock,
		random:  random,
		logger:  logger,
	}
}

// Input holds the fields for a new tournament
type Input struct {
	Name     string
	Location string
	Date     time.Time
	Weapon   model.Weapon
	Bracket  model.AgeBracket
	Gender   *model.Gender
	Tier     model.Tier
	Capacity int
}

// Create validates and stores a new tournament in the upcoming state
func (c *Controller) Create(ctx context.Context, in Input) (*model.Tournament, error) {
	t, err := c.build(in)
	if err != nil {
		return nil, err
	}

	id, err := random.UniqueID(ctx, c.random, "T-", func(id string) (bool, error) {
		_, err := c.storage.GetTournament(ctx, model.TournamentID(id))
		return random.Lookup(err, model.ErrTournamentNotFound)
	})
	if err != nil {
		return nil, err
	}
	t.ID = model.TournamentID(id)

	if err := c.storage.SaveTournament(ctx, t); err != nil {
		return nil, err
	}
	c.logger.Info("tournament created",
		slog.String("tournament_id", string(t.ID)),
		slog.String("tier", string(t.Tier)),
		slog.String("bracket", string(t.Bracket)),
	)
	return t, nil
}

func (c *Controller) build(in Input) (*model.Tournament, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, model.ErrMissingName
	}
	if in.Date.IsZero() {
		return nil, fmt.Errorf("%w: tournament date is required", model.ErrInvalidDate)
	}
	weapon, err := model.ParseWeapon(string(in.Weapon))
	if err != nil {
		return nil, err
	}
	bracket, err := model.ParseBracket(string(in.Bracket))
	if err != nil {
		return nil, err
	}
	tier, err := model.ParseTier(string(in.Tier))
	if err != nil {
		return nil, err
	}
	if in.Capacity < 0 {
		return nil, model.ErrInvalidCapacity
	}
	var gender *model.Gender
	if in.Gender != nil {
		g, err := model.ParseGender(string(*in.Gender))
		if err != nil {
			return nil, err
		}
		gender = &g
	}

	y, m, d := in.Date.Date()
	now := c.clock.Now()
	return &model.Tournament{
		Name:      name,
		Location:  strings.TrimSpace(in.Location),
		Date:      time.Date(y, m, d, 0, 0, 0, 0, time.UTC),
		Weapon:    weapon,
		Bracket:   bracket,
		Gender:    gender,
		Tier:      tier,
		Capacity:  in.Capacity,
		Status:    model.TournamentStatusUpcoming,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// Get retrieves a tournament by ID
func (c *Controller) Get(ctx context.Context, id model.TournamentID) (*model.Tournament, error) {
	return c.storage.GetTournament(ctx, id)
}

// List returns tournaments matching the filter, ordered by date
func (c *Controller) List(ctx context.Context, filter model.TournamentFilter) ([]*model.Tournament, error) {
	return c.storage.ListTournaments(ctx, filter)
}

// Transition moves a tournament to the next status. The write is a
// compare-and-set on the status read here, so a concurrent transition
// surfaces as model.ErrStaleTournament rather than being overwritten.
func (c *Controller) Transition(ctx context.Context, id model.TournamentID, to model.TournamentStatus) (*model.Tournament, error) {
	if !to.Valid() {
		return nil, fmt.Errorf("%w: %s", model.ErrInvalidStatus, to)
	}
	t, err := c.storage.GetTournament(ctx, id)
	if err != nil {
		return nil, err
	}
	if !t.Status.CanTransitionTo(to) {
		return nil, fmt.Errorf("%w: %s -> %s", model.ErrInvalidTransition, t.Status, to)
	}

	updated, err := c.storage.UpdateTournamentStatus(ctx, id, t.Status, to, c.clock.Now())
	if err != nil {
		return nil, err
	}
	c.logger.Info("tournament status changed",
		slog.String("tournament_id", string(id)),
		slog.String("from", string(t.Status)),
		slog.String("to", string(to)),
	)
	return updated, nil
}
