package memory

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/mcoot/allfence/internal/model"
	"github.com/mcoot/allfence/internal/storage"
)

// Storage is an in-memory implementation of the storage interface.
// A single mutex makes each operation atomic; values are copied in and out.
type Storage struct {
	mu sync.RWMutex

	fencers       map[model.FencerID]model.Fencer
	clubs         map[model.ClubID]model.Club
	tournaments   map[model.TournamentID]model.Tournament
	admins        map[string]model.Admin
	registrations map[model.TournamentID][]model.Registration
	results       []model.ResultRecord
	byTournament  map[model.TournamentID][]int
	byFencer      map[model.FencerID][]int
	rankings      map[model.RankingKey]model.RankingEntry
}

// New creates a new in-memory storage instance
func New() *Storage {
	return &Storage{
		fencers:       make(map[model.FencerID]model.Fencer),
		clubs:         make(map[model.ClubID]model.Club),
		tournaments:   make(map[model.TournamentID]model.Tournament),
		admins:        make(map[string]model.Admin),
		registrations: make(map[model.TournamentID][]model.Registration),
		byTournament:  make(map[model.TournamentID][]int),
		byFencer:      make(map[model.FencerID][]int),
		rankings:      make(map[model.RankingKey]model.RankingEntry),
	}
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

// Fencer operations

func (s *Storage) SaveFencer(ctx context.Context, fencer *model.Fencer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fencers[fencer.ID] = *fencer
	return nil
}

func (s *Storage) GetFencer(ctx context.Context, id model.FencerID) (*model.Fencer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fencer, ok := s.fencers[id]
	if !ok {
		return nil, model.ErrFencerNotFound
	}
	return &fencer, nil
}

func (s *Storage) ListFencers(ctx context.Context, filter model.FencerFilter) ([]*model.Fencer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var fencers []*model.Fencer
	for _, f := range s.fencers {
		if filter.Matches(&f) {
			fencers = append(fencers, &f)
		}
	}
	slices.SortFunc(fencers, storage.CompareFencers)
	return fencers, nil
}

// Club operations

func (s *Storage) SaveClub(ctx context.Context, club *model.Club) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clubs[club.ID] = *club
	return nil
}

func (s *Storage) GetClub(ctx context.Context, id model.ClubID) (*model.Club, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	club, ok := s.clubs[id]
	if !ok {
		return nil, model.ErrClubNotFound
	}
	return &club, nil
}

func (s *Storage) ListClubs(ctx context.Context) ([]*model.Club, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	clubs := make([]*model.Club, 0, len(s.clubs))
	for _, c := range s.clubs {
		clubs = append(clubs, &c)
	}
	slices.SortFunc(clubs, storage.CompareClubs)
	return clubs, nil
}

// Tournament operations

func (s *Storage) SaveTournament(ctx context.Context, tournament *model.Tournament) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tournaments[tournament.ID] = *tournament
	return nil
}

func (s *Storage) GetTournament(ctx context.Context, id model.TournamentID) (*model.Tournament, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tournaments[id]
	if !ok {
		return nil, model.ErrTournamentNotFound
	}
	return &t, nil
}

func (s *Storage) ListTournaments(ctx context.Context, filter model.TournamentFilter) ([]*model.Tournament, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var tournaments []*model.Tournament
	for _, t := range s.tournaments {
		if filter.Matches(&t) {
			tournaments = append(tournaments, &t)
		}
	}
	slices.SortFunc(tournaments, storage.CompareTournaments)
	return tournaments, nil
}

func (s *Storage) UpdateTournamentStatus(ctx context.Context, id model.TournamentID, from, to model.TournamentStatus, at time.Time) (*model.Tournament, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tournaments[id]
	if !ok {
		return nil, model.ErrTournamentNotFound
	}
	if t.Status != from {
		return nil, model.ErrStaleTournament
	}
	t.Status = to
	t.UpdatedAt = at
	s.tournaments[id] = t
	return &t, nil
}

// Admin operations

func (s *Storage) SaveAdmin(ctx context.Context, admin *model.Admin) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.admins[admin.Username] = *admin
	return nil
}

func (s *Storage) GetAdmin(ctx context.Context, username string) (*model.Admin, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	admin, ok := s.admins[username]
	if !ok {
		return nil, model.ErrAdminNotFound
	}
	return &admin, nil
}

// Registration operations

func (s *Storage) AddRegistration(ctx context.Context, reg model.Registration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tournaments[reg.TournamentID]
	if !ok {
		return model.ErrTournamentNotFound
	}
	if !t.Status.AcceptsRegistrations() {
		return model.ErrRegistrationClosed
	}
	regs := s.registrations[reg.TournamentID]
	if s.findRegistration(reg.TournamentID, reg.FencerID) >= 0 {
		return model.ErrAlreadyRegistered
	}
	if !t.HasCapacity(len(regs)) {
		return model.ErrCapacityExceeded
	}

	s.registrations[reg.TournamentID] = append(regs, reg)
	key := model.RankingKey{FencerID: reg.FencerID, Bracket: reg.Bracket}
	if _, ok := s.rankings[key]; !ok {
		s.rankings[key] = model.RankingEntry{FencerID: reg.FencerID, Bracket: reg.Bracket, UpdatedAt: reg.RegisteredAt}
	}
	return nil
}

func (s *Storage) RemoveRegistration(ctx context.Context, tournamentID model.TournamentID, fencerID model.FencerID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tournaments[tournamentID]
	if !ok {
		return model.ErrTournamentNotFound
	}
	for _, i := range s.byTournament[tournamentID] {
		if s.results[i].FencerID == fencerID {
			return model.ErrResultsAlreadyRecorded
		}
	}
	if !t.Status.AllowsUnregistration() {
		return model.ErrUnregisterNotAllowed
	}
	idx := s.findRegistration(tournamentID, fencerID)
	if idx < 0 {
		return model.ErrNotRegistered
	}
	s.registrations[tournamentID] = slices.Delete(s.registrations[tournamentID], idx, idx+1)
	return nil
}

func (s *Storage) GetRegistration(ctx context.Context, tournamentID model.TournamentID, fencerID model.FencerID) (*model.Registration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx := s.findRegistration(tournamentID, fencerID)
	if idx < 0 {
		return nil, model.ErrNotRegistered
	}
	reg := s.registrations[tournamentID][idx]
	return &reg, nil
}

func (s *Storage) ListRegistrations(ctx context.Context, tournamentID model.TournamentID) ([]model.Registration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	regs := slices.Clone(s.registrations[tournamentID])
	slices.SortStableFunc(regs, storage.CompareRegistrations)
	return regs, nil
}

// findRegistration returns the index of a registration, or -1; callers hold the lock
func (s *Storage) findRegistration(tournamentID model.TournamentID, fencerID model.FencerID) int {
	return slices.IndexFunc(s.registrations[tournamentID], func(r model.Registration) bool {
		return r.FencerID == fencerID
	})
}

// Result operations

func (s *Storage) AppendResults(ctx context.Context, tournamentID model.TournamentID, records []model.ResultRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tournaments[tournamentID]
	if !ok {
		return model.ErrTournamentNotFound
	}
	if !t.Status.AcceptsResults() {
		return model.ErrResultsNotAccepted
	}
	isRegistered := func(id model.FencerID) bool { return s.findRegistration(tournamentID, id) >= 0 }
	if err := storage.CheckResultBatch(s.tournamentResults(tournamentID), isRegistered, records); err != nil {
		return err
	}

	for _, rec := range records {
		s.append(rec)
	}
	return nil
}

func (s *Storage) AppendCorrection(ctx context.Context, record model.ResultRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tournaments[record.TournamentID]
	if !ok {
		return model.ErrTournamentNotFound
	}
	if !t.Status.AcceptsResults() {
		return model.ErrResultsNotAccepted
	}
	if err := storage.CheckCorrection(s.tournamentResults(record.TournamentID), record); err != nil {
		return err
	}

	s.append(record)
	return nil
}

// append stores a record and applies it to its ranking entry; callers hold the lock
func (s *Storage) append(rec model.ResultRecord) {
	idx := len(s.results)
	s.results = append(s.results, rec)
	s.byTournament[rec.TournamentID] = append(s.byTournament[rec.TournamentID], idx)
	s.byFencer[rec.FencerID] = append(s.byFencer[rec.FencerID], idx)

	key := model.RankingKey{FencerID: rec.FencerID, Bracket: rec.Bracket}
	entry, ok := s.rankings[key]
	if !ok {
		entry = model.RankingEntry{FencerID: rec.FencerID, Bracket: rec.Bracket}
	}
	entry.Apply(rec)
	s.rankings[key] = entry
}

func (s *Storage) tournamentResults(tournamentID model.TournamentID) []model.ResultRecord {
	idxs := s.byTournament[tournamentID]
	records := make([]model.ResultRecord, 0, len(idxs))
	for _, i := range idxs {
		records = append(records, s.results[i])
	}
	return records
}

func (s *Storage) ListTournamentResults(ctx context.Context, tournamentID model.TournamentID) ([]model.ResultRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tournamentResults(tournamentID), nil
}

func (s *Storage) ListFencerResults(ctx context.Context, fencerID model.FencerID) ([]model.ResultRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idxs := s.byFencer[fencerID]
	records := make([]model.ResultRecord, 0, len(idxs))
	for _, i := range idxs {
		records = append(records, s.results[i])
	}
	return records, nil
}

// Ranking operations

func (s *Storage) GetRankingEntry(ctx context.Context, key model.RankingKey) (*model.RankingEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.rankings[key]
	if !ok {
		return nil, model.ErrRankingNotFound
	}
	return &entry, nil
}

func (s *Storage) ListRankingEntries(ctx context.Context, bracket model.AgeBracket) ([]model.RankingEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var entries []model.RankingEntry
	for _, e := range s.rankings {
		if bracket == "" || e.Bracket == bracket {
			entries = append(entries, e)
		}
	}
	slices.SortFunc(entries, storage.CompareEntries)
	return entries, nil
}

func (s *Storage) ListFencerRankings(ctx context.Context, fencerID model.FencerID) ([]model.RankingEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var entries []model.RankingEntry
	for _, e := range s.rankings {
		if e.FencerID == fencerID {
			entries = append(entries, e)
		}
	}
	slices.SortFunc(entries, storage.CompareEntries)
	return entries, nil
}

func (s *Storage) ResetRankings(ctx context.Context, at time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, e := range s.rankings {
		e.Points = 0
		e.TournamentsAttended = 0
		e.UpdatedAt = at
		s.rankings[key] = e
	}
	return len(s.rankings), nil
}

func (s *Storage) RebuildRankings(ctx context.Context, at time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	computed := model.ComputeRankings(s.results)
	for key, e := range s.rankings {
		if _, ok := computed[key]; !ok {
			s.rankings[key] = model.RankingEntry{FencerID: e.FencerID, Bracket: e.Bracket, UpdatedAt: at}
		}
	}
	for key, e := range computed {
		e.UpdatedAt = at
		s.rankings[key] = *e
	}
	return len(s.rankings), nil
}

func (s *Storage) Ping(ctx context.Context) error {
	return nil
}
