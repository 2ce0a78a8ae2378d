package storage

import (
	"context"
	"time"

	"github.com/mcoot/allfence/internal/model"
)

// Storage defines the interface for data persistence.
//
// Ranking entries have no direct write method. They change only inside the
// atomic operations that also write registrations or result records, which
// keeps every entry equal to the sum of its fencer's result points.
type Storage interface {
	// Fencer operations
	SaveFencer(ctx context.Context, fencer *model.Fencer) error
	GetFencer(ctx context.Context, id model.FencerID) (*model.Fencer, error)
	ListFencers(ctx context.Context, filter model.FencerFilter) ([]*model.Fencer, error)

	// Club operations
	SaveClub(ctx context.Context, club *model.Club) error
	GetClub(ctx context.Context, id model.ClubID) (*model.Club, error)
	ListClubs(ctx context.Context) ([]*model.Club, error)

	// Tournament operations
	SaveTournament(ctx context.Context, tournament *model.Tournament) error
	GetTournament(ctx context.Context, id model.TournamentID) (*model.Tournament, error)
	ListTournaments(ctx context.Context, filter model.TournamentFilter) ([]*model.Tournament, error)
	// UpdateTournamentStatus moves a tournament from one status to another, failing
	// with model.ErrStaleTournament if its current status is not from
	UpdateTournamentStatus(ctx context.Context, id model.TournamentID, from, to model.TournamentStatus, at time.Time) (*model.Tournament, error)

	// Admin operations
	SaveAdmin(ctx context.Context, admin *model.Admin) error
	GetAdmin(ctx context.Context, username string) (*model.Admin, error)

	// Registration operations

	// AddRegistration atomically checks the tournament accepts registrations, the
	// fencer is not yet registered and a place is free, then stores the registration
	// and creates the fencer's ranking entry for the registration bracket if missing
	AddRegistration(ctx context.Context, reg model.Registration) error
	// RemoveRegistration atomically withdraws a registration that has no results
	RemoveRegistration(ctx context.Context, tournamentID model.TournamentID, fencerID model.FencerID) error
	GetRegistration(ctx context.Context, tournamentID model.TournamentID, fencerID model.FencerID) (*model.Registration, error)
	ListRegistrations(ctx context.Context, tournamentID model.TournamentID) ([]model.Registration, error)

	// Result operations

	// AppendResults atomically stores a batch of placement records for one tournament
	// and adds their points to the matching ranking entries. Nothing is written if any
	// fencer is unregistered, already has a result, or takes a placement already held.
	AppendResults(ctx context.Context, tournamentID model.TournamentID, records []model.ResultRecord) error
	// AppendCorrection atomically stores a correction record and applies its point
	// delta, provided the record it supersedes is still the fencer's latest
	AppendCorrection(ctx context.Context, record model.ResultRecord) error
	ListTournamentResults(ctx context.Context, tournamentID model.TournamentID) ([]model.ResultRecord, error)
	ListFencerResults(ctx context.Context, fencerID model.FencerID) ([]model.ResultRecord, error)

	// Ranking operations
	GetRankingEntry(ctx context.Context, key model.RankingKey) (*model.RankingEntry, error)
	// ListRankingEntries returns a snapshot of every entry in a bracket, or of all
	// entries when bracket is empty
	ListRankingEntries(ctx context.Context, bracket model.AgeBracket) ([]model.RankingEntry, error)
	ListFencerRankings(ctx context.Context, fencerID model.FencerID) ([]model.RankingEntry, error)
	// ResetRankings zeroes every entry without touching result records
	ResetRankings(ctx context.Context, at time.Time) (int, error)
	// RebuildRankings recomputes every entry from the result records
	RebuildRankings(ctx context.Context, at time.Time) (int, error)

	// Ping reports whether the backend is reachable
	Ping(ctx context.Context) error
}
