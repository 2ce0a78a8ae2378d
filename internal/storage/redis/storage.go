package redis

import (
	"context"
	"encoding/json"
	"errors"
	"slices"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mcoot/allfence/internal/model"
	"github.com/mcoot/allfence/internal/storage"
)

// ErrContention is returned when an optimistic transaction keeps losing to
// concurrent writers after every retry
var ErrContention = errors.New("redis: transaction retries exhausted")

// Storage is a Redis-backed implementation of the storage interface.
//
// Writes that must stay consistent with each other run as WATCH/MULTI
// transactions: the keys they read are watched, and the whole unit is
// retried if any of them changes before EXEC.
type Storage struct {
	client *redis.Client
	cfg    Config
}

// New creates a new Redis storage instance
func New(cfg Config) (*Storage, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, err
	}

	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns

	client := redis.NewClient(opts)

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return NewWithClient(client, cfg), nil
}

// NewWithClient creates a Redis storage with an existing client (for testing)
func NewWithClient(client *redis.Client, cfg Config) *Storage {
	if cfg.MaxTxRetries <= 0 {
		cfg.MaxTxRetries = DefaultConfig().MaxTxRetries
	}
	return &Storage{
		client: client,
		cfg:    cfg,
	}
}

// Close closes the Redis connection
func (s *Storage) Close() error {
	return s.client.Close()
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

// transact runs fn under WATCH on keys, retrying while the optimistic lock fails
func (s *Storage) transact(ctx context.Context, fn func(tx *redis.Tx) error, keys ...string) error {
	for range s.cfg.MaxTxRetries {
		err := s.client.Watch(ctx, fn, keys...)
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
	}
	return ErrContention
}

// getJSON loads one JSON value, mapping a missing key to notFound
func getJSON[T any](ctx context.Context, c redis.StringCmdable, key string, notFound error) (*T, error) {
	data, err := c.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, notFound
		}
		return nil, err
	}

	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

// listJSON loads every value named in an index set
func listJSON[T any](ctx context.Context, c *redis.Client, indexKey string, key func(string) string) ([]*T, error) {
	ids, err := c.SMembers(ctx, indexKey).Result()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = key(id)
	}
	values, err := c.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	out := make([]*T, 0, len(values))
	for _, raw := range values {
		str, ok := raw.(string)
		if !ok {
			continue // removed between SMEMBERS and MGET
		}
		var v T
		if err := json.Unmarshal([]byte(str), &v); err != nil {
			return nil, err
		}
		out = append(out, &v)
	}
	return out, nil
}

// saveIndexed writes a JSON value and adds its ID to an index set
func (s *Storage) saveIndexed(ctx context.Context, key, indexKey, id string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, key, data, 0)
		pipe.SAdd(ctx, indexKey, id)
		return nil
	})
	return err
}

// Fencer operations

func (s *Storage) SaveFencer(ctx context.Context, fencer *model.Fencer) error {
	return s.saveIndexed(ctx, fencerKey(fencer.ID), fencersIndexKey(), string(fencer.ID), fencer)
}

func (s *Storage) GetFencer(ctx context.Context, id model.FencerID) (*model.Fencer, error) {
	return getJSON[model.Fencer](ctx, s.client, fencerKey(id), model.ErrFencerNotFound)
}

func (s *Storage) ListFencers(ctx context.Context, filter model.FencerFilter) ([]*model.Fencer, error) {
	all, err := listJSON[model.Fencer](ctx, s.client, fencersIndexKey(), func(id string) string {
		return fencerKey(model.FencerID(id))
	})
	if err != nil {
		return nil, err
	}

	fencers := slices.DeleteFunc(all, func(f *model.Fencer) bool { return !filter.Matches(f) })
	slices.SortFunc(fencers, storage.CompareFencers)
	return fencers, nil
}

// Club operations

func (s *Storage) SaveClub(ctx context.Context, club *model.Club) error {
	return s.saveIndexed(ctx, clubKey(club.ID), clubsIndexKey(), string(club.ID), club)
}

func (s *Storage) GetClub(ctx context.Context, id model.ClubID) (*model.Club, error) {
	return getJSON[model.Club](ctx, s.client, clubKey(id), model.ErrClubNotFound)
}

func (s *Storage) ListClubs(ctx context.Context) ([]*model.Club, error) {
	clubs, err := listJSON[model.Club](ctx, s.client, clubsIndexKey(), func(id string) string {
		return clubKey(model.ClubID(id))
	})
	if err != nil {
		return nil, err
	}
	slices.SortFunc(clubs, storage.CompareClubs)
	return clubs, nil
}

// Tournament operations

func (s *Storage) SaveTournament(ctx context.Context, tournament *model.Tournament) error {
	return s.saveIndexed(ctx, tournamentKey(tournament.ID), tournamentsIndexKey(), string(tournament.ID), tournament)
}

func (s *Storage) GetTournament(ctx context.Context, id model.TournamentID) (*model.Tournament, error) {
	return getJSON[model.Tournament](ctx, s.client, tournamentKey(id), model.ErrTournamentNotFound)
}

func (s *Storage) ListTournaments(ctx context.Context, filter model.TournamentFilter) ([]*model.Tournament, error) {
	all, err := listJSON[model.Tournament](ctx, s.client, tournamentsIndexKey(), func(id string) string {
		return tournamentKey(model.TournamentID(id))
	})
	if err != nil {
		return nil, err
	}

	tournaments := slices.DeleteFunc(all, func(t *model.Tournament) bool { return !filter.Matches(t) })
	slices.SortFunc(tournaments, storage.CompareTournaments)
	return tournaments, nil
}

func (s *Storage) UpdateTournamentStatus(ctx context.Context, id model.TournamentID, from, to model.TournamentStatus, at time.Time) (*model.Tournament, error) {
	key := tournamentKey(id)
	var updated *model.Tournament

	err := s.transact(ctx, func(tx *redis.Tx) error {
		t, err := getJSON[model.Tournament](ctx, tx, key, model.ErrTournamentNotFound)
		if err != nil {
			return err
		}
		if t.Status != from {
			return model.ErrStaleTournament
		}
		t.Status = to
		t.UpdatedAt = at

		data, err := json.Marshal(t)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			return nil
		})
		if err == nil {
			updated = t
		}
		return err
	}, key)
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Admin operations

func (s *Storage) SaveAdmin(ctx context.Context, admin *model.Admin) error {
	data, err := json.Marshal(admin)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, adminKey(admin.Username), data, 0).Err()
}

func (s *Storage) GetAdmin(ctx context.Context, username string) (*model.Admin, error) {
	return getJSON[model.Admin](ctx, s.client, adminKey(username), model.ErrAdminNotFound)
}

// Registration operations

func (s *Storage) AddRegistration(ctx context.Context, reg model.Registration) error {
	tKey := tournamentKey(reg.TournamentID)
	regKey := registrationsKey(reg.TournamentID)

	regData, err := json.Marshal(reg)
	if err != nil {
		return err
	}
	entryData, err := json.Marshal(model.RankingEntry{
		FencerID:  reg.FencerID,
		Bracket:   reg.Bracket,
		UpdatedAt: reg.RegisteredAt,
	})
	if err != nil {
		return err
	}

	return s.transact(ctx, func(tx *redis.Tx) error {
		t, err := getJSON[model.Tournament](ctx, tx, tKey, model.ErrTournamentNotFound)
		if err != nil {
			return err
		}
		if !t.Status.AcceptsRegistrations() {
			return model.ErrRegistrationClosed
		}

		exists, err := tx.HExists(ctx, regKey, string(reg.FencerID)).Result()
		if err != nil {
			return err
		}
		if exists {
			return model.ErrAlreadyRegistered
		}
		count, err := tx.HLen(ctx, regKey).Result()
		if err != nil {
			return err
		}
		if !t.HasCapacity(int(count)) {
			return model.ErrCapacityExceeded
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, regKey, string(reg.FencerID), regData)
			pipe.HSetNX(ctx, rankingKey(reg.Bracket), string(reg.FencerID), entryData)
			return nil
		})
		return err
	}, tKey, regKey)
}

func (s *Storage) RemoveRegistration(ctx context.Context, tournamentID model.TournamentID, fencerID model.FencerID) error {
	tKey := tournamentKey(tournamentID)
	regKey := registrationsKey(tournamentID)
	resultsKey := tournamentResultsKey(tournamentID)

	return s.transact(ctx, func(tx *redis.Tx) error {
		t, err := getJSON[model.Tournament](ctx, tx, tKey, model.ErrTournamentNotFound)
		if err != nil {
			return err
		}
		records, err := readRecords(ctx, tx, resultsKey)
		if err != nil {
			return err
		}
		if slices.ContainsFunc(records, func(r model.ResultRecord) bool { return r.FencerID == fencerID }) {
			return model.ErrResultsAlreadyRecorded
		}
		if !t.Status.AllowsUnregistration() {
			return model.ErrUnregisterNotAllowed
		}
		exists, err := tx.HExists(ctx, regKey, string(fencerID)).Result()
		if err != nil {
			return err
		}
		if !exists {
			return model.ErrNotRegistered
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HDel(ctx, regKey, string(fencerID))
			return nil
		})
		return err
	}, tKey, regKey, resultsKey)
}

func (s *Storage) GetRegistration(ctx context.Context, tournamentID model.TournamentID, fencerID model.FencerID) (*model.Registration, error) {
	data, err := s.client.HGet(ctx, registrationsKey(tournamentID), string(fencerID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, model.ErrNotRegistered
		}
		return nil, err
	}

	var reg model.Registration
	if err := json.Unmarshal(data, &reg); err != nil {
		return nil, err
	}
	return &reg, nil
}

func (s *Storage) ListRegistrations(ctx context.Context, tournamentID model.TournamentID) ([]model.Registration, error) {
	all, err := s.client.HGetAll(ctx, registrationsKey(tournamentID)).Result()
	if err != nil {
		return nil, err
	}

	regs := make([]model.Registration, 0, len(all))
	for _, data := range all {
		var reg model.Registration
		if err := json.Unmarshal([]byte(data), &reg); err != nil {
			return nil, err
		}
		regs = append(regs, reg)
	}
	slices.SortFunc(regs, storage.CompareRegistrations)
	return regs, nil
}

// Result operations

func (s *Storage) AppendResults(ctx context.Context, tournamentID model.TournamentID, records []model.ResultRecord) error {
	tKey := tournamentKey(tournamentID)
	regKey := registrationsKey(tournamentID)
	resultsKey := tournamentResultsKey(tournamentID)
	watched := append([]string{tKey, regKey, resultsKey}, bracketKeys(records)...)

	return s.transact(ctx, func(tx *redis.Tx) error {
		t, err := getJSON[model.Tournament](ctx, tx, tKey, model.ErrTournamentNotFound)
		if err != nil {
			return err
		}
		if !t.Status.AcceptsResults() {
			return model.ErrResultsNotAccepted
		}
		existing, err := readRecords(ctx, tx, resultsKey)
		if err != nil {
			return err
		}
		registered, err := tx.HKeys(ctx, regKey).Result()
		if err != nil {
			return err
		}
		isRegistered := func(id model.FencerID) bool { return slices.Contains(registered, string(id)) }
		if err := storage.CheckResultBatch(existing, isRegistered, records); err != nil {
			return err
		}

		return s.appendRecords(ctx, tx, records)
	}, watched...)
}

func (s *Storage) AppendCorrection(ctx context.Context, record model.ResultRecord) error {
	tKey := tournamentKey(record.TournamentID)
	resultsKey := tournamentResultsKey(record.TournamentID)

	return s.transact(ctx, func(tx *redis.Tx) error {
		t, err := getJSON[model.Tournament](ctx, tx, tKey, model.ErrTournamentNotFound)
		if err != nil {
			return err
		}
		if !t.Status.AcceptsResults() {
			return model.ErrResultsNotAccepted
		}
		existing, err := readRecords(ctx, tx, resultsKey)
		if err != nil {
			return err
		}
		if err := storage.CheckCorrection(existing, record); err != nil {
			return err
		}

		return s.appendRecords(ctx, tx, []model.ResultRecord{record})
	}, tKey, resultsKey, rankingKey(record.Bracket))
}

// appendRecords queues the record lists and updated ranking entries in one MULTI.
// The ranking hashes must already be watched by the caller.
func (s *Storage) appendRecords(ctx context.Context, tx *redis.Tx, records []model.ResultRecord) error {
	entries := make(map[model.RankingKey]*model.RankingEntry)
	for _, rec := range records {
		key := model.RankingKey{FencerID: rec.FencerID, Bracket: rec.Bracket}
		entry, ok := entries[key]
		if !ok {
			var err error
			entry, err = readEntry(ctx, tx, key)
			if err != nil {
				return err
			}
			entries[key] = entry
		}
		entry.Apply(rec)
	}

	encoded := make([][]byte, len(records))
	for i, rec := range records {
		data, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		encoded[i] = data
	}

	_, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, rec := range records {
			pipe.RPush(ctx, resultLogKey(), encoded[i])
			pipe.RPush(ctx, tournamentResultsKey(rec.TournamentID), encoded[i])
			pipe.RPush(ctx, fencerResultsKey(rec.FencerID), encoded[i])
		}
		for key, entry := range entries {
			data, err := json.Marshal(entry)
			if err != nil {
				return err
			}
			pipe.HSet(ctx, rankingKey(key.Bracket), string(key.FencerID), data)
		}
		return nil
	})
	return err
}

func (s *Storage) ListTournamentResults(ctx context.Context, tournamentID model.TournamentID) ([]model.ResultRecord, error) {
	return readRecords(ctx, s.client, tournamentResultsKey(tournamentID))
}

func (s *Storage) ListFencerResults(ctx context.Context, fencerID model.FencerID) ([]model.ResultRecord, error) {
	return readRecords(ctx, s.client, fencerResultsKey(fencerID))
}

// readRecords decodes a LIST of result records in append order
func readRecords(ctx context.Context, c redis.ListCmdable, key string) ([]model.ResultRecord, error) {
	values, err := c.LRange(ctx, key, 0, -1).Result()
	if err != nil {
		return nil, err
	}

	records := make([]model.ResultRecord, 0, len(values))
	for _, v := range values {
		var rec model.ResultRecord
		if err := json.Unmarshal([]byte(v), &rec); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

// readEntry loads a ranking entry, starting a fresh one when none exists
func readEntry(ctx context.Context, c redis.HashCmdable, key model.RankingKey) (*model.RankingEntry, error) {
	data, err := c.HGet(ctx, rankingKey(key.Bracket), string(key.FencerID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return &model.RankingEntry{FencerID: key.FencerID, Bracket: key.Bracket}, nil
	}
	if err != nil {
		return nil, err
	}

	var entry model.RankingEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, err
	}
	return &entry, nil
}

func bracketKeys(records []model.ResultRecord) []string {
	var keys []string
	for _, rec := range records {
		key := rankingKey(rec.Bracket)
		if !slices.Contains(keys, key) {
			keys = append(keys, key)
		}
	}
	return keys
}

// Ranking operations

func (s *Storage) GetRankingEntry(ctx context.Context, key model.RankingKey) (*model.RankingEntry, error) {
	data, err := s.client.HGet(ctx, rankingKey(key.Bracket), string(key.FencerID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, model.ErrRankingNotFound
		}
		return nil, err
	}

	var entry model.RankingEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, err
	}
	return &entry, nil
}

func (s *Storage) ListRankingEntries(ctx context.Context, bracket model.AgeBracket) ([]model.RankingEntry, error) {
	keys := allRankingKeys()
	if bracket != "" {
		keys = []string{rankingKey(bracket)}
	}
	return s.snapshotEntries(ctx, keys)
}

func (s *Storage) ListFencerRankings(ctx context.Context, fencerID model.FencerID) ([]model.RankingEntry, error) {
	entries, err := s.snapshotEntries(ctx, allRankingKeys())
	if err != nil {
		return nil, err
	}
	return slices.DeleteFunc(entries, func(e model.RankingEntry) bool { return e.FencerID != fencerID }), nil
}

// snapshotEntries reads several ranking hashes inside one MULTI so the result
// reflects a single point in time
func (s *Storage) snapshotEntries(ctx context.Context, keys []string) ([]model.RankingEntry, error) {
	cmds := make([]*redis.MapStringStringCmd, len(keys))
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, key := range keys {
			cmds[i] = pipe.HGetAll(ctx, key)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	hashes := make([]map[string]string, len(cmds))
	for i, cmd := range cmds {
		hashes[i] = cmd.Val()
	}
	return decodeEntries(hashes)
}

// readEntries reads ranking hashes on a watched connection. It must not open
// its own MULTI, since EXEC would drop the caller's WATCH.
func readEntries(ctx context.Context, tx *redis.Tx, keys []string) ([]model.RankingEntry, error) {
	hashes := make([]map[string]string, len(keys))
	for i, key := range keys {
		h, err := tx.HGetAll(ctx, key).Result()
		if err != nil {
			return nil, err
		}
		hashes[i] = h
	}
	return decodeEntries(hashes)
}

func decodeEntries(hashes []map[string]string) ([]model.RankingEntry, error) {
	var entries []model.RankingEntry
	for _, h := range hashes {
		for _, data := range h {
			var entry model.RankingEntry
			if err := json.Unmarshal([]byte(data), &entry); err != nil {
				return nil, err
			}
			entries = append(entries, entry)
		}
	}
	slices.SortFunc(entries, storage.CompareEntries)
	return entries, nil
}

func (s *Storage) ResetRankings(ctx context.Context, at time.Time) (int, error) {
	keys := allRankingKeys()
	var count int

	err := s.transact(ctx, func(tx *redis.Tx) error {
		entries, err := readEntries(ctx, tx, keys)
		if err != nil {
			return err
		}
		for i := range entries {
			entries[i].Points = 0
			entries[i].TournamentsAttended = 0
			entries[i].UpdatedAt = at
		}
		if err := writeEntries(ctx, tx, keys, entries); err != nil {
			return err
		}
		count = len(entries)
		return nil
	}, keys...)
	return count, err
}

func (s *Storage) RebuildRankings(ctx context.Context, at time.Time) (int, error) {
	keys := allRankingKeys()
	var count int

	err := s.transact(ctx, func(tx *redis.Tx) error {
		current, err := readEntries(ctx, tx, keys)
		if err != nil {
			return err
		}
		records, err := readRecords(ctx, tx, resultLogKey())
		if err != nil {
			return err
		}

		computed := model.ComputeRankings(records)
		entries := make([]model.RankingEntry, 0, len(current)+len(computed))
		for _, e := range current {
			if _, ok := computed[e.Key()]; !ok {
				entries = append(entries, model.RankingEntry{FencerID: e.FencerID, Bracket: e.Bracket, UpdatedAt: at})
			}
		}
		for _, e := range computed {
			e.UpdatedAt = at
			entries = append(entries, *e)
		}
		if err := writeEntries(ctx, tx, keys, entries); err != nil {
			return err
		}
		count = len(entries)
		return nil
	}, append(keys, resultLogKey())...)
	return count, err
}

// writeEntries replaces the ranking hashes with entries in one MULTI
func writeEntries(ctx context.Context, tx *redis.Tx, keys []string, entries []model.RankingEntry) error {
	encoded := make(map[string][]any)
	for _, e := range entries {
		data, err := json.Marshal(e)
		if err != nil {
			return err
		}
		key := rankingKey(e.Bracket)
		encoded[key] = append(encoded[key], string(e.FencerID), data)
	}

	_, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, keys...)
		for key, values := range encoded {
			pipe.HSet(ctx, key, values...)
		}
		return nil
	})
	return err
}

func (s *Storage) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
