package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mcoot/allfence/internal/model"
	"github.com/mcoot/allfence/internal/storage"
)

// Storage is a PostgreSQL-backed implementation of the storage interface.
//
// Registration and result writes lock the tournament row with SELECT ... FOR
// UPDATE, so concurrent writers for one tournament run one after another.
// Ranking entries are adjusted with in-place increments in the same transaction.
type Storage struct {
	pool *pgxpool.Pool
}

// querier is satisfied by both the pool and a transaction
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// New connects to PostgreSQL and applies pending migrations
func New(ctx context.Context, cfg Config) (*Storage, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("postgres: parse url: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	if cfg.MaxConnIdleTime > 0 {
		poolCfg.MaxConnIdleTime = cfg.MaxConnIdleTime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("postgres: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}

	s := NewWithPool(pool)
	if err := s.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// NewWithPool creates a storage over an existing pool without migrating
func NewWithPool(pool *pgxpool.Pool) *Storage {
	return &Storage{pool: pool}
}

// Close closes the connection pool
func (s *Storage) Close() error {
	s.pool.Close()
	return nil
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func nullable[T ~string](v *T) *string {
	if v == nil {
		return nil
	}
	s := string(*v)
	return &s
}

func fromNullable[T ~string](v *string) *T {
	if v == nil {
		return nil
	}
	t := T(*v)
	return &t
}

// Fencer operations

const fencerColumns = `id, first_name, last_name, birth_date, gender, weapon, club_id, created_at, updated_at`

func (s *Storage) SaveFencer(ctx context.Context, f *model.Fencer) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO fencers (`+fencerColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			first_name = EXCLUDED.first_name,
			last_name = EXCLUDED.last_name,
			birth_date = EXCLUDED.birth_date,
			gender = EXCLUDED.gender,
			weapon = EXCLUDED.weapon,
			club_id = EXCLUDED.club_id,
			updated_at = EXCLUDED.updated_at`,
		string(f.ID), f.FirstName, f.LastName, f.BirthDate, string(f.Gender), string(f.Weapon),
		nullable(f.ClubID), f.CreatedAt, f.UpdatedAt)
	return err
}

func scanFencer(row pgx.Row) (*model.Fencer, error) {
	var (
		f                  model.Fencer
		id, gender, weapon string
		clubID             *string
	)
	err := row.Scan(&id, &f.FirstName, &f.LastName, &f.BirthDate, &gender, &weapon, &clubID, &f.CreatedAt, &f.UpdatedAt)
	if err != nil {
		return nil, err
	}
	f.ID = model.FencerID(id)
	f.Gender = model.Gender(gender)
	f.Weapon = model.Weapon(weapon)
	f.ClubID = fromNullable[model.ClubID](clubID)
	return &f, nil
}

func (s *Storage) GetFencer(ctx context.Context, id model.FencerID) (*model.Fencer, error) {
	f, err := scanFencer(s.pool.QueryRow(ctx, `SELECT `+fencerColumns+` FROM fencers WHERE id = $1`, string(id)))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, model.ErrFencerNotFound
	}
	return f, err
}

func (s *Storage) ListFencers(ctx context.Context, filter model.FencerFilter) ([]*model.Fencer, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+fencerColumns+` FROM fencers
		WHERE ($1 = '' OR weapon = $1) AND ($2 = '' OR gender = $2) AND ($3 = '' OR club_id = $3)
		ORDER BY id`,
		string(filter.Weapon), string(filter.Gender), string(filter.ClubID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var fencers []*model.Fencer
	for rows.Next() {
		f, err := scanFencer(rows)
		if err != nil {
			return nil, err
		}
		fencers = append(fencers, f)
	}
	return fencers, rows.Err()
}

// Club operations

const clubColumns = `id, name, founded_year, status, weapon_specialization, created_at, updated_at`

func (s *Storage) SaveClub(ctx context.Context, c *model.Club) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO clubs (`+clubColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			founded_year = EXCLUDED.founded_year,
			status = EXCLUDED.status,
			weapon_specialization = EXCLUDED.weapon_specialization,
			updated_at = EXCLUDED.updated_at`,
		string(c.ID), c.Name, c.FoundedYear, string(c.Status), nullable(c.WeaponSpecialization), c.CreatedAt, c.UpdatedAt)
	return err
}

func scanClub(row pgx.Row) (*model.Club, error) {
	var (
		c          model.Club
		id, status string
		weapon     *string
	)
	if err := row.Scan(&id, &c.Name, &c.FoundedYear, &status, &weapon, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	c.ID = model.ClubID(id)
	c.Status = model.ClubStatus(status)
	c.WeaponSpecialization = fromNullable[model.Weapon](weapon)
	return &c, nil
}

func (s *Storage) GetClub(ctx context.Context, id model.ClubID) (*model.Club, error) {
	c, err := scanClub(s.pool.QueryRow(ctx, `SELECT `+clubColumns+` FROM clubs WHERE id = $1`, string(id)))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, model.ErrClubNotFound
	}
	return c, err
}

func (s *Storage) ListClubs(ctx context.Context) ([]*model.Club, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+clubColumns+` FROM clubs ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var clubs []*model.Club
	for rows.Next() {
		c, err := scanClub(rows)
		if err != nil {
			return nil, err
		}
		clubs = append(clubs, c)
	}
	return clubs, rows.Err()
}

// Tournament operations

const tournamentColumns = `id, name, location, date, weapon, bracket, gender, tier, capacity, status, created_at, updated_at`

func (s *Storage) SaveTournament(ctx context.Context, t *model.Tournament) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO tournaments (`+tournamentColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			location = EXCLUDED.location,
			date = EXCLUDED.date,
			weapon = EXCLUDED.weapon,
			bracket = EXCLUDED.bracket,
			gender = EXCLUDED.gender,
			tier = EXCLUDED.tier,
			capacity = EXCLUDED.capacity,
			status = EXCLUDED.status,
			updated_at = EXCLUDED.updated_at`,
		string(t.ID), t.Name, t.Location, t.Date, string(t.Weapon), string(t.Bracket), nullable(t.Gender),
		string(t.Tier), t.Capacity, string(t.Status), t.CreatedAt, t.UpdatedAt)
	return err
}

func scanTournament(row pgx.Row) (*model.Tournament, error) {
	var (
		t                                 model.Tournament
		id, weapon, bracket, tier, status string
		gender                            *string
	)
	err := row.Scan(&id, &t.Name, &t.Location, &t.Date, &weapon, &bracket, &gender, &tier, &t.Capacity, &status, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	t.ID = model.TournamentID(id)
	t.Weapon = model.Weapon(weapon)
	t.Bracket = model.AgeBracket(bracket)
	t.Gender = fromNullable[model.Gender](gender)
	t.Tier = model.Tier(tier)
	t.Status = model.TournamentStatus(status)
	return &t, nil
}

func (s *Storage) GetTournament(ctx context.Context, id model.TournamentID) (*model.Tournament, error) {
	return getTournament(ctx, s.pool, id, "")
}

// getTournament loads a tournament, appending lock to the query when given
func getTournament(ctx context.Context, q querier, id model.TournamentID, lock string) (*model.Tournament, error) {
	t, err := scanTournament(q.QueryRow(ctx, `SELECT `+tournamentColumns+` FROM tournaments WHERE id = $1 `+lock, string(id)))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, model.ErrTournamentNotFound
	}
	return t, err
}

func (s *Storage) ListTournaments(ctx context.Context, filter model.TournamentFilter) ([]*model.Tournament, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+tournamentColumns+` FROM tournaments
		WHERE ($1 = '' OR status = $1) AND ($2 = '' OR weapon = $2) AND ($3 = '' OR bracket = $3)
		ORDER BY date, id`,
		string(filter.Status), string(filter.Weapon), string(filter.Bracket))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tournaments []*model.Tournament
	for rows.Next() {
		t, err := scanTournament(rows)
		if err != nil {
			return nil, err
		}
		tournaments = append(tournaments, t)
	}
	return tournaments, rows.Err()
}

func (s *Storage) UpdateTournamentStatus(ctx context.Context, id model.TournamentID, from, to model.TournamentStatus, at time.Time) (*model.Tournament, error) {
	t, err := scanTournament(s.pool.QueryRow(ctx, `
		UPDATE tournaments SET status = $3, updated_at = $4
		WHERE id = $1 AND status = $2
		RETURNING `+tournamentColumns,
		string(id), string(from), string(to), at))
	if !errors.Is(err, pgx.ErrNoRows) {
		return t, err
	}

	// Nothing matched: either the tournament is missing or its status moved on
	if _, err := s.GetTournament(ctx, id); err != nil {
		return nil, err
	}
	return nil, model.ErrStaleTournament
}

// Admin operations

func (s *Storage) SaveAdmin(ctx context.Context, a *model.Admin) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO admins (username, password_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (username) DO UPDATE SET
			password_hash = EXCLUDED.password_hash,
			updated_at = EXCLUDED.updated_at`,
		a.Username, a.PasswordHash, a.CreatedAt, a.UpdatedAt)
	return err
}

func (s *Storage) GetAdmin(ctx context.Context, username string) (*model.Admin, error) {
	var a model.Admin
	err := s.pool.QueryRow(ctx, `SELECT username, password_hash, created_at, updated_at FROM admins WHERE username = $1`, username).
		Scan(&a.Username, &a.PasswordHash, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, model.ErrAdminNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// Registration operations

func (s *Storage) AddRegistration(ctx context.Context, reg model.Registration) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		t, err := getTournament(ctx, tx, reg.TournamentID, "FOR UPDATE")
		if err != nil {
			return err
		}
		if !t.Status.AcceptsRegistrations() {
			return model.ErrRegistrationClosed
		}

		var exists bool
		var count int
		err = tx.QueryRow(ctx, `
			SELECT COALESCE(BOOL_OR(fencer_id = $2), false), COUNT(*)
			FROM registrations WHERE tournament_id = $1`,
			string(reg.TournamentID), string(reg.FencerID)).Scan(&exists, &count)
		if err != nil {
			return err
		}
		if exists {
			return model.ErrAlreadyRegistered
		}
		if !t.HasCapacity(count) {
			return model.ErrCapacityExceeded
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO registrations (tournament_id, fencer_id, bracket, registered_at)
			VALUES ($1, $2, $3, $4)`,
			string(reg.TournamentID), string(reg.FencerID), string(reg.Bracket), reg.RegisteredAt)
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO ranking_entries (fencer_id, bracket, updated_at)
			VALUES ($1, $2, $3)
			ON CONFLICT (fencer_id, bracket) DO NOTHING`,
			string(reg.FencerID), string(reg.Bracket), reg.RegisteredAt)
		return err
	})
}

func (s *Storage) RemoveRegistration(ctx context.Context, tournamentID model.TournamentID, fencerID model.FencerID) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		t, err := getTournament(ctx, tx, tournamentID, "FOR UPDATE")
		if err != nil {
			return err
		}

		var hasResults bool
		err = tx.QueryRow(ctx, `
			SELECT EXISTS (SELECT 1 FROM result_records WHERE tournament_id = $1 AND fencer_id = $2)`,
			string(tournamentID), string(fencerID)).Scan(&hasResults)
		if err != nil {
			return err
		}
		if hasResults {
			return model.ErrResultsAlreadyRecorded
		}
		if !t.Status.AllowsUnregistration() {
			return model.ErrUnregisterNotAllowed
		}

		tag, err := tx.Exec(ctx, `DELETE FROM registrations WHERE tournament_id = $1 AND fencer_id = $2`,
			string(tournamentID), string(fencerID))
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return model.ErrNotRegistered
		}
		return nil
	})
}

func scanRegistration(row pgx.Row) (model.Registration, error) {
	var (
		reg               model.Registration
		tid, fid, bracket string
	)
	err := row.Scan(&tid, &fid, &bracket, &reg.RegisteredAt)
	reg.TournamentID = model.TournamentID(tid)
	reg.FencerID = model.FencerID(fid)
	reg.Bracket = model.AgeBracket(bracket)
	return reg, err
}

func (s *Storage) GetRegistration(ctx context.Context, tournamentID model.TournamentID, fencerID model.FencerID) (*model.Registration, error) {
	reg, err := scanRegistration(s.pool.QueryRow(ctx, `
		SELECT tournament_id, fencer_id, bracket, registered_at FROM registrations
		WHERE tournament_id = $1 AND fencer_id = $2`,
		string(tournamentID), string(fencerID)))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, model.ErrNotRegistered
	}
	if err != nil {
		return nil, err
	}
	return &reg, nil
}

func (s *Storage) ListRegistrations(ctx context.Context, tournamentID model.TournamentID) ([]model.Registration, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT tournament_id, fencer_id, bracket, registered_at FROM registrations
		WHERE tournament_id = $1 ORDER BY registered_at, fencer_id`,
		string(tournamentID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var regs []model.Registration
	for rows.Next() {
		reg, err := scanRegistration(rows)
		if err != nil {
			return nil, err
		}
		regs = append(regs, reg)
	}
	return regs, rows.Err()
}

// Result operations

const resultColumns = `id, tournament_id, fencer_id, kind, placement, points, bracket, tournament_date, recorded_at, supersedes, note`

func (s *Storage) AppendResults(ctx context.Context, tournamentID model.TournamentID, records []model.ResultRecord) error {
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		t, err := getTournament(ctx, tx, tournamentID, "FOR UPDATE")
		if err != nil {
			return err
		}
		if !t.Status.AcceptsResults() {
			return model.ErrResultsNotAccepted
		}
		existing, err := listResults(ctx, tx, `tournament_id = $1`, string(tournamentID))
		if err != nil {
			return err
		}
		regs, err := registeredFencers(ctx, tx, tournamentID)
		if err != nil {
			return err
		}
		isRegistered := func(id model.FencerID) bool {
			_, ok := regs[id]
			return ok
		}
		if err := storage.CheckResultBatch(existing, isRegistered, records); err != nil {
			return err
		}

		for _, rec := range records {
			if err := insertRecord(ctx, tx, rec); err != nil {
				return err
			}
		}
		return nil
	})
	if isUniqueViolation(err) {
		return model.ErrDuplicateResult
	}
	return err
}

func (s *Storage) AppendCorrection(ctx context.Context, record model.ResultRecord) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		t, err := getTournament(ctx, tx, record.TournamentID, "FOR UPDATE")
		if err != nil {
			return err
		}
		if !t.Status.AcceptsResults() {
			return model.ErrResultsNotAccepted
		}
		existing, err := listResults(ctx, tx, `tournament_id = $1`, string(record.TournamentID))
		if err != nil {
			return err
		}
		if err := storage.CheckCorrection(existing, record); err != nil {
			return err
		}
		return insertRecord(ctx, tx, record)
	})
}

// insertRecord stores one record and folds it into its ranking entry
func insertRecord(ctx context.Context, tx pgx.Tx, rec model.ResultRecord) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO result_records (`+resultColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		string(rec.ID), string(rec.TournamentID), string(rec.FencerID), string(rec.Kind), rec.Placement, rec.Points,
		string(rec.Bracket), rec.TournamentDate, rec.RecordedAt, nullable(rec.Supersedes), rec.Note)
	if err != nil {
		return err
	}

	attended := 0
	if rec.Kind == model.ResultKindPlacement {
		attended = 1
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO ranking_entries (fencer_id, bracket, points, tournaments_attended, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (fencer_id, bracket) DO UPDATE SET
			points = ranking_entries.points + EXCLUDED.points,
			tournaments_attended = ranking_entries.tournaments_attended + EXCLUDED.tournaments_attended,
			updated_at = EXCLUDED.updated_at`,
		string(rec.FencerID), string(rec.Bracket), rec.Points, attended, rec.RecordedAt)
	return err
}

func registeredFencers(ctx context.Context, q querier, tournamentID model.TournamentID) (map[model.FencerID]struct{}, error) {
	rows, err := q.Query(ctx, `SELECT fencer_id FROM registrations WHERE tournament_id = $1`, string(tournamentID))
	if err != nil {
		return nil, err
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, err
	}

	set := make(map[model.FencerID]struct{}, len(ids))
	for _, id := range ids {
		set[model.FencerID(id)] = struct{}{}
	}
	return set, nil
}

// listResults returns records matching where, in append order
func listResults(ctx context.Context, q querier, where string, args ...any) ([]model.ResultRecord, error) {
	rows, err := q.Query(ctx, `SELECT `+resultColumns+` FROM result_records WHERE `+where+` ORDER BY seq`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []model.ResultRecord
	for rows.Next() {
		var (
			rec                         model.ResultRecord
			id, tid, fid, kind, bracket string
			supersedes                  *string
		)
		err := rows.Scan(&id, &tid, &fid, &kind, &rec.Placement, &rec.Points, &bracket,
			&rec.TournamentDate, &rec.RecordedAt, &supersedes, &rec.Note)
		if err != nil {
			return nil, err
		}
		rec.ID = model.ResultID(id)
		rec.TournamentID = model.TournamentID(tid)
		rec.FencerID = model.FencerID(fid)
		rec.Kind = model.ResultKind(kind)
		rec.Bracket = model.AgeBracket(bracket)
		rec.Supersedes = fromNullable[model.ResultID](supersedes)
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (s *Storage) ListTournamentResults(ctx context.Context, tournamentID model.TournamentID) ([]model.ResultRecord, error) {
	return listResults(ctx, s.pool, `tournament_id = $1`, string(tournamentID))
}

func (s *Storage) ListFencerResults(ctx context.Context, fencerID model.FencerID) ([]model.ResultRecord, error) {
	return listResults(ctx, s.pool, `fencer_id = $1`, string(fencerID))
}

// Ranking operations

const entryColumns = `fencer_id, bracket, points, tournaments_attended, updated_at`

func scanEntry(row pgx.Row) (model.RankingEntry, error) {
	var (
		e            model.RankingEntry
		fid, bracket string
	)
	err := row.Scan(&fid, &bracket, &e.Points, &e.TournamentsAttended, &e.UpdatedAt)
	e.FencerID = model.FencerID(fid)
	e.Bracket = model.AgeBracket(bracket)
	return e, err
}

func (s *Storage) GetRankingEntry(ctx context.Context, key model.RankingKey) (*model.RankingEntry, error) {
	e, err := scanEntry(s.pool.QueryRow(ctx, `
		SELECT `+entryColumns+` FROM ranking_entries WHERE fencer_id = $1 AND bracket = $2`,
		string(key.FencerID), string(key.Bracket)))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, model.ErrRankingNotFound
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (s *Storage) listEntries(ctx context.Context, where string, args ...any) ([]model.RankingEntry, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+entryColumns+` FROM ranking_entries WHERE `+where+` ORDER BY fencer_id, bracket`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []model.RankingEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *Storage) ListRankingEntries(ctx context.Context, bracket model.AgeBracket) ([]model.RankingEntry, error) {
	return s.listEntries(ctx, `($1 = '' OR bracket = $1)`, string(bracket))
}

func (s *Storage) ListFencerRankings(ctx context.Context, fencerID model.FencerID) ([]model.RankingEntry, error) {
	return s.listEntries(ctx, `fencer_id = $1`, string(fencerID))
}

func (s *Storage) ResetRankings(ctx context.Context, at time.Time) (int, error) {
	tag, err := s.pool.Exec(ctx, `UPDATE ranking_entries SET points = 0, tournaments_attended = 0, updated_at = $1`, at)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func (s *Storage) RebuildRankings(ctx context.Context, at time.Time) (int, error) {
	var count int
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		// Block appends while entries are recomputed
		if _, err := tx.Exec(ctx, `LOCK TABLE result_records IN SHARE MODE`); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `UPDATE ranking_entries SET points = 0, tournaments_attended = 0, updated_at = $1`, at); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `
			INSERT INTO ranking_entries (fencer_id, bracket, points, tournaments_attended, updated_at)
			SELECT fencer_id, bracket, SUM(points), COUNT(*) FILTER (WHERE kind = 'placement'), $1
			FROM result_records GROUP BY fencer_id, bracket
			ON CONFLICT (fencer_id, bracket) DO UPDATE SET
				points = EXCLUDED.points,
				tournaments_attended = EXCLUDED.tournaments_attended,
				updated_at = EXCLUDED.updated_at`, at)
		if err != nil {
			return err
		}
		return tx.QueryRow(ctx, `SELECT COUNT(*) FROM ranking_entries`).Scan(&count)
	})
	return count, err
}

func (s *Storage) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}
