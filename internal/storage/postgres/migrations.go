package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// migration is one forward-only schema change
type migration struct {
	version int
	name    string
	sql     string
}

var migrations = []migration{
	{version: 1, name: "create_roster", sql: migration001},
	{version: 2, name: "create_tournaments", sql: migration002},
	{version: 3, name: "create_results", sql: migration003},
}

const migration001 = `
CREATE TABLE IF NOT EXISTS clubs (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    founded_year INTEGER,
    status TEXT NOT NULL,
    weapon_specialization TEXT,
    created_at TIMESTAMPTZ NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL,
    CONSTRAINT valid_club_status CHECK (status IN ('active', 'inactive', 'pending', 'suspended'))
);

CREATE TABLE IF NOT EXISTS fencers (
    id TEXT PRIMARY KEY,
    first_name TEXT NOT NULL,
    last_name TEXT NOT NULL,
    birth_date DATE NOT NULL,
    gender TEXT NOT NULL,
    weapon TEXT NOT NULL,
    club_id TEXT,
    created_at TIMESTAMPTZ NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_fencers_club_id ON fencers(club_id);

CREATE TABLE IF NOT EXISTS admins (
    username TEXT PRIMARY KEY,
    password_hash TEXT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL
);
`

const migration002 = `
CREATE TABLE IF NOT EXISTS tournaments (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    location TEXT NOT NULL,
    date DATE NOT NULL,
    weapon TEXT NOT NULL,
    bracket TEXT NOT NULL,
    gender TEXT,
    tier TEXT NOT NULL,
    capacity INTEGER NOT NULL DEFAULT 0,
    status TEXT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL,
    CONSTRAINT valid_capacity CHECK (capacity >= 0)
);

CREATE INDEX IF NOT EXISTS idx_tournaments_status ON tournaments(status);

CREATE TABLE IF NOT EXISTS registrations (
    seq BIGSERIAL,
    tournament_id TEXT NOT NULL REFERENCES tournaments(id) ON DELETE CASCADE,
    fencer_id TEXT NOT NULL,
    bracket TEXT NOT NULL,
    registered_at TIMESTAMPTZ NOT NULL,
    PRIMARY KEY (tournament_id, fencer_id)
);
`

const migration003 = `
CREATE TABLE IF NOT EXISTS result_records (
    seq BIGSERIAL PRIMARY KEY,
    id TEXT NOT NULL UNIQUE,
    tournament_id TEXT NOT NULL REFERENCES tournaments(id),
    fencer_id TEXT NOT NULL,
    kind TEXT NOT NULL,
    placement INTEGER NOT NULL,
    points INTEGER NOT NULL,
    bracket TEXT NOT NULL,
    tournament_date DATE NOT NULL,
    recorded_at TIMESTAMPTZ NOT NULL,
    supersedes TEXT,
    note TEXT NOT NULL DEFAULT '',
    CONSTRAINT valid_kind CHECK (kind IN ('placement', 'correction')),
    CONSTRAINT valid_placement CHECK (placement >= 1)
);

-- One original placement per fencer per tournament
CREATE UNIQUE INDEX IF NOT EXISTS uniq_result_placement
    ON result_records(tournament_id, fencer_id) WHERE kind = 'placement';
CREATE INDEX IF NOT EXISTS idx_result_records_fencer ON result_records(fencer_id, seq);
CREATE INDEX IF NOT EXISTS idx_result_records_tournament ON result_records(tournament_id, seq);

CREATE TABLE IF NOT EXISTS ranking_entries (
    fencer_id TEXT NOT NULL,
    bracket TEXT NOT NULL,
    points INTEGER NOT NULL DEFAULT 0,
    tournaments_attended INTEGER NOT NULL DEFAULT 0,
    updated_at TIMESTAMPTZ NOT NULL,
    PRIMARY KEY (fencer_id, bracket)
);
`

// Migrate applies every migration not yet recorded in schema_migrations
func (s *Storage) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`)
	if err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	for _, m := range migrations {
		err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
			// Serialise concurrent migrators
			if _, err := tx.Exec(ctx, "LOCK TABLE schema_migrations IN EXCLUSIVE MODE"); err != nil {
				return err
			}
			var applied bool
			err := tx.QueryRow(ctx, "SELECT EXISTS (SELECT 1 FROM schema_migrations WHERE version = $1)", m.version).Scan(&applied)
			if err != nil || applied {
				return err
			}
			if _, err := tx.Exec(ctx, m.sql); err != nil {
				return err
			}
			_, err = tx.Exec(ctx, "INSERT INTO schema_migrations (version, name) VALUES ($1, $2)", m.version, m.name)
			return err
		})
		if err != nil {
			return fmt.Errorf("migration %03d_%s: %w", m.version, m.name, err)
		}
	}
	return nil
}
