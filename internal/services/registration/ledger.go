// Package registration admits fencers to tournaments and withdraws them.
package registration

import (
	"context"
	"errors"
	"log/slog"
	"slices"

	"github.com/mcoot/allfence/internal/dependencies/clock"
	"github.com/mcoot/allfence/internal/metrics"
	"github.com/mcoot/allfence/internal/model"
	"github.com/mcoot/allfence/internal/services/bracket"
	"github.com/mcoot/allfence/internal/services/eligibility"
	"github.com/mcoot/allfence/internal/storage"
)

// Ledger records which fencers are registered for which tournaments
type Ledger struct {
	storage storage.Storage
	clock   clock.Clock
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewLedger creates a new registration Ledger
func NewLedger(storage storage.Storage, clock clock.Clock, metrics *metrics.Metrics, logger *slog.Logger) *Ledger {
	return &Ledger{
		storage: storage,
		clock:   clock,
		metrics: metrics,
		logger:  logger,
	}
}

// Participant is a registration together with the registered fencer
type Participant struct {
	Registration model.Registration
	Fencer       *model.Fencer
}

// EligibilityReport explains whether a fencer may enter a tournament
type EligibilityReport struct {
	TournamentID model.TournamentID
	FencerID     model.FencerID
	Bracket      model.AgeBracket // fencer's bracket on the tournament date
	Eligible     bool
	Reasons      []*model.IneligibleError
}

// Register admits a fencer to a tournament. Eligibility is judged as of the
// tournament date. Storage repeats the status, duplicate and capacity checks
// atomically, so two racing registrations for the last place cannot both win.
func (l *Ledger) Register(ctx context.Context, tournamentID model.TournamentID, fencerID model.FencerID) (*model.Registration, error) {
	reg, err := l.register(ctx, tournamentID, fencerID)
	if err != nil {
		l.metrics.Registrations.WithLabelValues("rejected").Inc()
		return nil, err
	}
	l.metrics.Registrations.WithLabelValues("accepted").Inc()
	l.logger.Info("fencer registered",
		slog.String("tournament_id", string(tournamentID)),
		slog.String("fencer_id", string(fencerID)),
		slog.String("bracket", string(reg.Bracket)),
	)
	return reg, nil
}

func (l *Ledger) register(ctx context.Context, tournamentID model.TournamentID, fencerID model.FencerID) (*model.Registration, error) {
	t, err := l.storage.GetTournament(ctx, tournamentID)
	if err != nil {
		return nil, err
	}
	f, err := l.storage.GetFencer(ctx, fencerID)
	if err != nil {
		return nil, err
	}

	_, err = l.storage.GetRegistration(ctx, tournamentID, fencerID)
	switch {
	case err == nil:
		return nil, model.ErrAlreadyRegistered
	case !errors.Is(err, model.ErrNotRegistered):
		return nil, err
	}

	regs, err := l.storage.ListRegistrations(ctx, tournamentID)
	if err != nil {
		return nil, err
	}
	if err := eligibility.Check(f, t, t.Date, len(regs)); err != nil {
		return nil, err
	}

	reg := model.Registration{
		TournamentID: tournamentID,
		FencerID:     fencerID,
		Bracket:      t.Bracket,
		RegisteredAt: l.clock.Now(),
	}
	if err := l.storage.AddRegistration(ctx, reg); err != nil {
		return nil, err
	}
	return &reg, nil
}

// Unregister withdraws a registration that has no results yet
func (l *Ledger) Unregister(ctx context.Context, tournamentID model.TournamentID, fencerID model.FencerID) error {
	if err := l.storage.RemoveRegistration(ctx, tournamentID, fencerID); err != nil {
		return err
	}
	l.logger.Info("fencer unregistered",
		slog.String("tournament_id", string(tournamentID)),
		slog.String("fencer_id", string(fencerID)),
	)
	return nil
}

// CheckEligibility reports every reason a fencer may not enter a tournament
func (l *Ledger) CheckEligibility(ctx context.Context, tournamentID model.TournamentID, fencerID model.FencerID) (*EligibilityReport, error) {
	t, err := l.storage.GetTournament(ctx, tournamentID)
	if err != nil {
		return nil, err
	}
	f, err := l.storage.GetFencer(ctx, fencerID)
	if err != nil {
		return nil, err
	}
	regs, err := l.storage.ListRegistrations(ctx, tournamentID)
	if err != nil {
		return nil, err
	}

	b, err := bracket.Classify(f.BirthDate, t.Date)
	if err != nil {
		return nil, err
	}
	reasons, err := eligibility.Reasons(f, t, t.Date, len(regs))
	if err != nil {
		return nil, err
	}
	return &EligibilityReport{
		TournamentID: tournamentID,
		FencerID:     fencerID,
		Bracket:      b,
		Eligible:     len(reasons) == 0,
		Reasons:      reasons,
	}, nil
}

// Participants lists a tournament's registrations with fencer details
func (l *Ledger) Participants(ctx context.Context, tournamentID model.TournamentID) ([]Participant, error) {
	if _, err := l.storage.GetTournament(ctx, tournamentID); err != nil {
		return nil, err
	}
	regs, err := l.storage.ListRegistrations(ctx, tournamentID)
	if err != nil {
		return nil, err
	}

	participants := make([]Participant, 0, len(regs))
	for _, reg := range regs {
		f, err := l.storage.GetFencer(ctx, reg.FencerID)
		if err != nil {
			return nil, err
		}
		participants = append(participants, Participant{Registration: reg, Fencer: f})
	}
	return participants, nil
}

// EligibleTournaments lists tournaments on or after today that are open for
// registration and that the fencer could enter now
func (l *Ledger) EligibleTournaments(ctx context.Context, fencerID model.FencerID) ([]*model.Tournament, error) {
	f, err := l.storage.GetFencer(ctx, fencerID)
	if err != nil {
		return nil, err
	}
	open, err := l.storage.ListTournaments(ctx, model.TournamentFilter{
		Status: model.TournamentStatusRegistrationOpen,
		Weapon: f.Weapon,
	})
	if err != nil {
		return nil, err
	}

	today := clock.Today(l.clock)
	var eligible []*model.Tournament
	for _, t := range open {
		if t.Date.Before(today) {
			continue
		}
		regs, err := l.storage.ListRegistrations(ctx, t.ID)
		if err != nil {
			return nil, err
		}
		if slices.ContainsFunc(regs, func(r model.Registration) bool { return r.FencerID == fencerID }) {
			continue
		}
		err = eligibility.Check(f, t, t.Date, len(regs))
		if errors.Is(err, model.ErrIneligible) || errors.Is(err, model.ErrInvalidDate) {
			continue
		}
		if err != nil {
			return nil, err
		}
		eligible = append(eligible, t)
	}
	return eligible, nil
}
