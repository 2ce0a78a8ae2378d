package response

import (
	"time"

	"github.com/mcoot/allfence/internal/api/request"
	"github.com/mcoot/allfence/internal/model"
	"github.com/mcoot/allfence/internal/services/auth"
	"github.com/mcoot/allfence/internal/services/export"
	"github.com/mcoot/allfence/internal/services/points"
	"github.com/mcoot/allfence/internal/services/ranking"
	"github.com/mcoot/allfence/internal/services/registration"
)

func date(t time.Time) string {
	return t.Format(request.DateLayout)
}

func optional[T ~string](v *T) *string {
	if v == nil {
		return nil
	}
	s := string(*v)
	return &s
}

// AuthResponse is the response for the login endpoint
type AuthResponse struct {
	Username     string    `json:"username"`
	SessionToken string    `json:"session_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// AuthResponseFromSession creates an AuthResponse from a session
func AuthResponseFromSession(s *auth.Session) AuthResponse {
	return AuthResponse{
		Username:     s.Username,
		SessionToken: s.Token,
		ExpiresAt:    s.ExpiresAt,
	}
}

// Fencer represents a fencer in API responses
type Fencer struct {
	ID        string    `json:"id"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	BirthDate string    `json:"birth_date"`
	Gender    string    `json:"gender"`
	Weapon    string    `json:"weapon"`
	ClubID    *string   `json:"club_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// FencerFromModel converts a model.Fencer
func FencerFromModel(f *model.Fencer) Fencer {
	return Fencer{
		ID:        string(f.ID),
		FirstName: f.FirstName,
		LastName:  f.LastName,
		BirthDate: date(f.BirthDate),
		Gender:    string(f.Gender),
		Weapon:    string(f.Weapon),
		ClubID:    optional(f.ClubID),
		CreatedAt: f.CreatedAt,
		UpdatedAt: f.UpdatedAt,
	}
}

// FencersFromModel converts a fencer list
func FencersFromModel(fs []*model.Fencer) []Fencer {
	out := make([]Fencer, len(fs))
	for i, f := range fs {
		out[i] = FencerFromModel(f)
	}
	return out
}

// Club represents a club in API responses
type Club struct {
	ID                   string  `json:"id"`
	Name                 string  `json:"name"`
	FoundedYear          *int    `json:"founded_year"`
	Status               string  `json:"status"`
	WeaponSpecialization *string `json:"weapon_specialization"`
}

// ClubFromModel converts a model.Club
func ClubFromModel(c *model.Club) Club {
	return Club{
		ID:                   string(c.ID),
		Name:                 c.Name,
		FoundedYear:          c.FoundedYear,
		Status:               string(c.Status),
		WeaponSpecialization: optional(c.WeaponSpecialization),
	}
}

// ClubsFromModel converts a club list
func ClubsFromModel(cs []*model.Club) []Club {
	out := make([]Club, len(cs))
	for i, c := range cs {
		out[i] = ClubFromModel(c)
	}
	return out
}

// ClubStanding is a club's aggregated points
type ClubStanding struct {
	Club          Club    `json:"club"`
	Weapon        string  `json:"weapon,omitempty"`
	TotalPoints   int     `json:"total_points"`
	FencerCount   int     `json:"fencer_count"`
	AveragePoints float64 `json:"average_points"`
}

// ClubStandingFromModel converts a model.ClubStanding
func ClubStandingFromModel(s model.ClubStanding) ClubStanding {
	return ClubStanding{
		Club:          ClubFromModel(&s.Club),
		Weapon:        string(s.Weapon),
		TotalPoints:   s.TotalPoints,
		FencerCount:   s.FencerCount,
		AveragePoints: s.AveragePoints,
	}
}

// Tournament represents a tournament in API responses
type Tournament struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Location string  `json:"location"`
	Date     string  `json:"date"`
	Weapon   string  `json:"weapon"`
	Bracket  string  `json:"bracket"`
	Gender   *string `json:"gender"`
	Tier     string  `json:"tier"`
	Capacity int     `json:"capacity"`
	Status   string  `json:"status"`
}

// TournamentFromModel converts a model.Tournament
func TournamentFromModel(t *model.Tournament) Tournament {
	return Tournament{
		ID:       string(t.ID),
		Name:     t.Name,
		Location: t.Location,
		Date:     date(t.Date),
		Weapon:   string(t.Weapon),
		Bracket:  string(t.Bracket),
		Gender:   optional(t.Gender),
		Tier:     string(t.Tier),
		Capacity: t.Capacity,
		Status:   string(t.Status),
	}
}

// TournamentsFromModel converts a tournament list
func TournamentsFromModel(ts []*model.Tournament) []Tournament {
	out := make([]Tournament, len(ts))
	for i, t := range ts {
		out[i] = TournamentFromModel(t)
	}
	return out
}

// Registration represents a registration in API responses
type Registration struct {
	TournamentID string    `json:"tournament_id"`
	FencerID     string    `json:"fencer_id"`
	Bracket      string    `json:"bracket"`
	RegisteredAt time.Time `json:"registered_at"`
}

// RegistrationFromModel converts a model.Registration
func RegistrationFromModel(r model.Registration) Registration {
	return Registration{
		TournamentID: string(r.TournamentID),
		FencerID:     string(r.FencerID),
		Bracket:      string(r.Bracket),
		RegisteredAt: r.RegisteredAt,
	}
}

// Participant is a registration with the registered fencer
type Participant struct {
	Registration
	Fencer Fencer `json:"fencer"`
}

// ParticipantsFromModel converts a participant list
func ParticipantsFromModel(ps []registration.Participant) []Participant {
	out := make([]Participant, len(ps))
	for i, p := range ps {
		out[i] = Participant{
			Registration: RegistrationFromModel(p.Registration),
			Fencer:       FencerFromModel(p.Fencer),
		}
	}
	return out
}

// IneligibleReason is one failed eligibility check
type IneligibleReason struct {
	Reason string `json:"reason"`
	Detail string `json:"detail,omitempty"`
}

// Eligibility explains whether a fencer may enter a tournament
type Eligibility struct {
	TournamentID string             `json:"tournament_id"`
	FencerID     string             `json:"fencer_id"`
	Bracket      string             `json:"bracket"`
	Eligible     bool               `json:"eligible"`
	Reasons      []IneligibleReason `json:"reasons"`
}

// EligibilityFromReport converts a registration.EligibilityReport
func EligibilityFromReport(r *registration.EligibilityReport) Eligibility {
	reasons := make([]IneligibleReason, len(r.Reasons))
	for i, e := range r.Reasons {
		reasons[i] = IneligibleReason{Reason: string(e.Reason), Detail: e.Detail}
	}
	return Eligibility{
		TournamentID: string(r.TournamentID),
		FencerID:     string(r.FencerID),
		Bracket:      string(r.Bracket),
		Eligible:     r.Eligible,
		Reasons:      reasons,
	}
}

// ResultRecord represents an append-only result record
type ResultRecord struct {
	ID             string    `json:"id"`
	TournamentID   string    `json:"tournament_id"`
	FencerID       string    `json:"fencer_id"`
	Kind           string    `json:"kind"`
	Placement      int       `json:"placement"`
	Points         int       `json:"points"`
	Bracket        string    `json:"bracket"`
	TournamentDate string    `json:"tournament_date"`
	RecordedAt     time.Time `json:"recorded_at"`
	Supersedes     *string   `json:"supersedes,omitempty"`
	Note           string    `json:"note,omitempty"`
}

// ResultRecordFromModel converts a model.ResultRecord
func ResultRecordFromModel(r model.ResultRecord) ResultRecord {
	return ResultRecord{
		ID:             string(r.ID),
		TournamentID:   string(r.TournamentID),
		FencerID:       string(r.FencerID),
		Kind:           string(r.Kind),
		Placement:      r.Placement,
		Points:         r.Points,
		Bracket:        string(r.Bracket),
		TournamentDate: date(r.TournamentDate),
		RecordedAt:     r.RecordedAt,
		Supersedes:     optional(r.Supersedes),
		Note:           r.Note,
	}
}

// ResultRecordsFromModel converts a record list
func ResultRecordsFromModel(rs []model.ResultRecord) []ResultRecord {
	out := make([]ResultRecord, len(rs))
	for i, r := range rs {
		out[i] = ResultRecordFromModel(r)
	}
	return out
}

// TournamentResult is a fencer's effective result after corrections
type TournamentResult struct {
	FencerID  string `json:"fencer_id"`
	Placement int    `json:"placement"`
	Points    int    `json:"points"`
	Current   string `json:"current_record_id"`
	Corrected bool   `json:"corrected"`
}

// TournamentResults bundles the effective results with the raw history
type TournamentResults struct {
	TournamentID string             `json:"tournament_id"`
	Results      []TournamentResult `json:"results"`
	History      []ResultRecord     `json:"history,omitempty"`
}

// TournamentResultsFromModel converts effective results and, optionally, their history
func TournamentResultsFromModel(id model.TournamentID, results []model.TournamentResult, history []model.ResultRecord) TournamentResults {
	out := TournamentResults{TournamentID: string(id), Results: make([]TournamentResult, len(results))}
	for i, r := range results {
		out.Results[i] = TournamentResult{
			FencerID:  string(r.FencerID),
			Placement: r.Placement,
			Points:    r.Points,
			Current:   string(r.Current),
			Corrected: r.Corrected,
		}
	}
	if history != nil {
		out.History = ResultRecordsFromModel(history)
	}
	return out
}

// RankingEntry is a fencer's cumulative points in one bracket
type RankingEntry struct {
	FencerID            string    `json:"fencer_id"`
	Bracket             string    `json:"bracket"`
	Points              int       `json:"points"`
	TournamentsAttended int       `json:"tournaments_attended"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// RankingEntryFromModel converts a model.RankingEntry
func RankingEntryFromModel(e model.RankingEntry) RankingEntry {
	return RankingEntry{
		FencerID:            string(e.FencerID),
		Bracket:             string(e.Bracket),
		Points:              e.Points,
		TournamentsAttended: e.TournamentsAttended,
		UpdatedAt:           e.UpdatedAt,
	}
}

// RankingEntriesFromModel converts an entry list
func RankingEntriesFromModel(es []model.RankingEntry) []RankingEntry {
	out := make([]RankingEntry, len(es))
	for i, e := range es {
		out[i] = RankingEntryFromModel(e)
	}
	return out
}

// Standing is one leaderboard row
type Standing struct {
	Rank                int    `json:"rank"`
	Fencer              Fencer `json:"fencer"`
	Points              int    `json:"points"`
	TournamentsAttended int    `json:"tournaments_attended"`
}

// Leaderboard is a ranked list for one bracket
type Leaderboard struct {
	Bracket   string     `json:"bracket"`
	Weapon    string     `json:"weapon,omitempty"`
	Gender    string     `json:"gender,omitempty"`
	Standings []Standing `json:"standings"`
}

// LeaderboardFromModel converts standings for a query
func LeaderboardFromModel(q ranking.LeaderboardQuery, standings []model.Standing) Leaderboard {
	out := Leaderboard{
		Bracket:   string(q.Bracket),
		Weapon:    string(q.Weapon),
		Gender:    string(q.Gender),
		Standings: make([]Standing, len(standings)),
	}
	for i, s := range standings {
		out.Standings[i] = Standing{
			Rank:                s.Rank,
			Fencer:              FencerFromModel(&s.Fencer),
			Points:              s.Entry.Points,
			TournamentsAttended: s.Entry.TournamentsAttended,
		}
	}
	return out
}

// ProgressPoint is one step of cumulative points
type ProgressPoint struct {
	Date         string `json:"date"`
	TournamentID string `json:"tournament_id"`
	ResultID     string `json:"result_id"`
	Kind         string `json:"kind"`
	Bracket      string `json:"bracket"`
	Placement    int    `json:"placement"`
	Points       int    `json:"points"`
	Cumulative   int    `json:"cumulative"`
}

// ProgressFromModel converts a progress series
func ProgressFromModel(ps []model.ProgressPoint) []ProgressPoint {
	out := make([]ProgressPoint, len(ps))
	for i, p := range ps {
		out[i] = ProgressPoint{
			Date:         date(p.Date),
			TournamentID: string(p.TournamentID),
			ResultID:     string(p.ResultID),
			Kind:         string(p.Kind),
			Bracket:      string(p.Bracket),
			Placement:    p.Placement,
			Points:       p.Points,
			Cumulative:   p.Cumulative,
		}
	}
	return out
}

// PointsRow is one placement range of a points table
type PointsRow struct {
	From   int  `json:"from"`
	To     *int `json:"to"` // null when unbounded
	Base   int  `json:"base"`
	Points int  `json:"points"`
}

// PointsTable is the full points structure for a tier
type PointsTable struct {
	Tier       string      `json:"tier"`
	Multiplier float64     `json:"multiplier"`
	Rows       []PointsRow `json:"rows"`
}

// PointsTableFromRows converts a tier's points structure
func PointsTableFromRows(tier model.Tier, multiplier float64, rows []points.Row) PointsTable {
	out := PointsTable{Tier: string(tier), Multiplier: multiplier, Rows: make([]PointsRow, len(rows))}
	for i, r := range rows {
		row := PointsRow{From: r.From, Base: r.Base, Points: r.Points}
		if r.To != 0 {
			to := r.To
			row.To = &to
		}
		out.Rows[i] = row
	}
	return out
}

// Drift is a ranking entry that disagrees with its history
type Drift struct {
	FencerID         string `json:"fencer_id"`
	Bracket          string `json:"bracket"`
	StoredPoints     int    `json:"stored_points"`
	ExpectedPoints   int    `json:"expected_points"`
	StoredAttended   int    `json:"stored_attended"`
	ExpectedAttended int    `json:"expected_attended"`
}

// ConsistencyReport is the outcome of a consistency check
type ConsistencyReport struct {
	Consistent bool    `json:"consistent"`
	Checked    int     `json:"checked"`
	Drifts     []Drift `json:"drifts"`
}

// ConsistencyReportFromModel converts a ranking.ConsistencyReport
func ConsistencyReportFromModel(r *ranking.ConsistencyReport) ConsistencyReport {
	out := ConsistencyReport{Consistent: len(r.Drifts) == 0, Checked: r.Checked, Drifts: make([]Drift, len(r.Drifts))}
	for i, d := range r.Drifts {
		out.Drifts[i] = Drift{
			FencerID:         string(d.FencerID),
			Bracket:          string(d.Bracket),
			StoredPoints:     d.StoredPoints,
			ExpectedPoints:   d.ExpectedPoints,
			StoredAttended:   d.StoredAttended,
			ExpectedAttended: d.ExpectedAttended,
		}
	}
	return out
}

// Affected reports how many entries a maintenance operation touched
type Affected struct {
	Entries int `json:"entries"`
}

// Export describes an uploaded snapshot
type Export struct {
	Key      string `json:"key"`
	Location string `json:"location"`
	ETag     string `json:"etag,omitempty"`
}

// ExportFromResult converts an export.UploadResult
func ExportFromResult(r *export.UploadResult) Export {
	return Export{Key: r.Key, Location: r.Location, ETag: r.ETag}
}
