package api_test

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcoot/allfence/internal/api/apierr"
	"github.com/mcoot/allfence/internal/api/response"
	"github.com/mcoot/allfence/internal/config"
	"github.com/mcoot/allfence/internal/factory"
)

// testServer wraps a test app and its router
type testServer struct {
	t       *testing.T
	app     *factory.TestApp
	handler http.Handler
	token   string
}

func newTestServer(t *testing.T, opts ...func(*config.Config)) *testServer {
	t.Helper()

	app := factory.NewTestApp(opts...)
	token, err := app.AdminToken(t.Context())
	require.NoError(t, err)

	return &testServer{
		t:       t,
		app:     app,
		handler: app.Router(),
		token:   token,
	}
}

func (ts *testServer) request(method, path string, body any, token string) *httptest.ResponseRecorder {
	var reqBody *bytes.Buffer
	if body != nil {
		b, _ := json.Marshal(body)
		reqBody = bytes.NewBuffer(b)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req := httptest.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rr := httptest.NewRecorder()
	ts.handler.ServeHTTP(rr, req)
	return rr
}

// admin sends an authenticated request
func (ts *testServer) admin(method, path string, body any) *httptest.ResponseRecorder {
	return ts.request(method, path, body, ts.token)
}

func decodeBody[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), rr.Body.String())
	return v
}

func errorCode(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	return decodeBody[apierr.ErrorResponse](t, rr).Error.Code
}

func (ts *testServer) createFencer(first, weapon, birth string, club *string) response.Fencer {
	ts.t.Helper()
	rr := ts.admin(http.MethodPost, "/api/v1/fencers", map[string]any{
		"first_name": first,
		"last_name":  "Tester",
		"birth_date": birth,
		"gender":     "M",
		"weapon":     weapon,
		"club_id":    club,
	})
	require.Equal(ts.t, http.StatusCreated, rr.Code, rr.Body.String())
	return decodeBody[response.Fencer](ts.t, rr)
}

func (ts *testServer) createTournament(tier string) response.Tournament {
	ts.t.Helper()
	rr := ts.admin(http.MethodPost, "/api/v1/tournaments", map[string]any{
		"name":     "Junior Cup",
		"location": "Ghent",
		"date":     "2024-06-20",
		"weapon":   "foil",
		"bracket":  "Junior",
		"tier":     tier,
	})
	require.Equal(ts.t, http.StatusCreated, rr.Code, rr.Body.String())
	return decodeBody[response.Tournament](ts.t, rr)
}

func (ts *testServer) transition(id, status string) {
	ts.t.Helper()
	rr := ts.admin(http.MethodPost, "/api/v1/tournaments/"+id+"/status", map[string]string{"status": status})
	require.Equal(ts.t, http.StatusOK, rr.Code, rr.Body.String())
}

func (ts *testServer) register(tournamentID, fencerID string) {
	ts.t.Helper()
	rr := ts.admin(http.MethodPost, "/api/v1/tournaments/"+tournamentID+"/participants", map[string]string{"fencer_id": fencerID})
	require.Equal(ts.t, http.StatusCreated, rr.Code, rr.Body.String())
}

func TestHealthCheck(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.request(http.MethodGet, "/health", nil, "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "ok")
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.request(http.MethodGet, "/api/v1/fencers", nil, "")
	require.Equal(t, http.StatusOK, rr.Code)

	rr = ts.request(http.MethodGet, "/metrics", nil, "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `allfence_http_requests_total{method="GET",route="/api/v1/fencers",status="200"} 1`)
}

func TestUnknownRoute(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.request(http.MethodGet, "/api/v1/duels", nil, "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, apierr.CodeNotFound, errorCode(t, rr))
}

func TestLogin(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.request(http.MethodPost, "/api/v1/admin/login", map[string]string{
		"username": factory.TestAdminUsername,
		"password": factory.TestAdminPassword,
	}, "")
	require.Equal(t, http.StatusOK, rr.Code)

	resp := decodeBody[response.AuthResponse](t, rr)
	assert.Equal(t, factory.TestAdminUsername, resp.Username)
	assert.NotEmpty(t, resp.SessionToken)

	// The issued token authorises writes
	rr = ts.request(http.MethodPost, "/api/v1/clubs", map[string]string{"name": "Salle Sud"}, resp.SessionToken)
	assert.Equal(t, http.StatusCreated, rr.Code)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.request(http.MethodPost, "/api/v1/admin/login", map[string]string{
		"username": factory.TestAdminUsername,
		"password": "not the password",
	}, "")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, apierr.CodeInvalidCredentials, errorCode(t, rr))

	rr = ts.request(http.MethodPost, "/api/v1/admin/login", map[string]string{"username": "admin"}, "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestWritesRequireAdmin(t *testing.T) {
	ts := newTestServer(t)

	body := map[string]string{"name": "Salle Sud"}

	rr := ts.request(http.MethodPost, "/api/v1/clubs", body, "")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, apierr.CodeUnauthorized, errorCode(t, rr))

	rr = ts.request(http.MethodPost, "/api/v1/clubs", body, "forged.token.value")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	// Reads stay public
	rr = ts.request(http.MethodGet, "/api/v1/clubs", nil, "")
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestSessionCookieIsAccepted(t *testing.T) {
	ts := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/clubs", bytes.NewBufferString(`{"name":"Salle Est"}`))
	req.AddCookie(&http.Cookie{Name: "session", Value: ts.token})
	rr := httptest.NewRecorder()
	ts.handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusCreated, rr.Code)
}

func TestTournamentRankingFlow(t *testing.T) {
	ts := newTestServer(t)

	// Club and roster
	rr := ts.admin(http.MethodPost, "/api/v1/clubs", map[string]any{"name": "Salle Nord", "founded_year": 1987})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	club := decodeBody[response.Club](t, rr)

	alice := ts.createFencer("Alice", "foil", "2006-03-01", &club.ID)
	bruno := ts.createFencer("Bruno", "foil", "2006-04-01", nil)
	dmitri := ts.createFencer("Dmitri", "sabre", "2006-06-01", nil)

	tour := ts.createTournament("national")
	assert.Equal(t, "upcoming", tour.Status)

	// Registration is closed until the tournament opens it
	rr = ts.admin(http.MethodPost, "/api/v1/tournaments/"+tour.ID+"/participants", map[string]string{"fencer_id": alice.ID})
	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Equal(t, apierr.CodeRegistrationClosed, errorCode(t, rr))

	ts.transition(tour.ID, "registration_open")
	ts.register(tour.ID, alice.ID)
	ts.register(tour.ID, bruno.ID)

	rr = ts.admin(http.MethodPost, "/api/v1/tournaments/"+tour.ID+"/participants", map[string]string{"fencer_id": alice.ID})
	assert.Equal(t, apierr.CodeAlreadyRegistered, errorCode(t, rr))

	rr = ts.admin(http.MethodPost, "/api/v1/tournaments/"+tour.ID+"/participants", map[string]string{"fencer_id": dmitri.ID})
	assert.Equal(t, http.StatusConflict, rr.Code)
	ineligible := decodeBody[apierr.ErrorResponse](t, rr)
	assert.Equal(t, apierr.CodeIneligible, ineligible.Error.Code)
	assert.Equal(t, "weapon_mismatch", ineligible.Error.Reason)

	rr = ts.request(http.MethodGet, "/api/v1/tournaments/"+tour.ID+"/eligibility/"+dmitri.ID, nil, "")
	require.Equal(t, http.StatusOK, rr.Code)
	report := decodeBody[response.Eligibility](t, rr)
	assert.False(t, report.Eligible)
	require.NotEmpty(t, report.Reasons)
	assert.Equal(t, "weapon_mismatch", report.Reasons[0].Reason)

	rr = ts.request(http.MethodGet, "/api/v1/tournaments/"+tour.ID+"/participants", nil, "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, decodeBody[[]response.Participant](t, rr), 2)

	// Results
	ts.transition(tour.ID, "in_progress")
	rr = ts.admin(http.MethodPost, "/api/v1/tournaments/"+tour.ID+"/results", map[string]any{
		"placements": []map[string]any{
			{"fencer_id": alice.ID, "placement": 1},
			{"fencer_id": bruno.ID, "placement": 2},
		},
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	assert.Len(t, decodeBody[[]response.ResultRecord](t, rr), 2)

	rr = ts.admin(http.MethodPost, "/api/v1/tournaments/"+tour.ID+"/results", map[string]any{
		"placements": []map[string]any{{"fencer_id": alice.ID, "placement": 3}},
	})
	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Equal(t, apierr.CodeDuplicateResult, errorCode(t, rr))

	// Bruno is corrected from second to fourth: 113 becomes 45
	rr = ts.admin(http.MethodPost, "/api/v1/tournaments/"+tour.ID+"/results/"+bruno.ID+"/correction", map[string]any{
		"placement": 4,
		"note":      "bout sheet transposed",
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	correction := decodeBody[response.ResultRecord](t, rr)
	assert.Equal(t, "correction", correction.Kind)
	assert.Equal(t, -68, correction.Points)
	assert.NotNil(t, correction.Supersedes)

	rr = ts.request(http.MethodGet, "/api/v1/tournaments/"+tour.ID+"/results?history=true", nil, "")
	require.Equal(t, http.StatusOK, rr.Code)
	results := decodeBody[response.TournamentResults](t, rr)
	assert.Len(t, results.Results, 2)
	assert.Len(t, results.History, 3)

	// Leaderboard
	rr = ts.request(http.MethodGet, "/api/v1/rankings?bracket=Junior&weapon=foil", nil, "")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	board := decodeBody[response.Leaderboard](t, rr)
	require.Len(t, board.Standings, 2)
	assert.Equal(t, alice.ID, board.Standings[0].Fencer.ID)
	assert.Equal(t, 150, board.Standings[0].Points)
	assert.Equal(t, 1, board.Standings[0].Rank)
	assert.Equal(t, bruno.ID, board.Standings[1].Fencer.ID)
	assert.Equal(t, 45, board.Standings[1].Points)

	// Fencer views
	rr = ts.request(http.MethodGet, "/api/v1/fencers/"+bruno.ID+"/progress", nil, "")
	require.Equal(t, http.StatusOK, rr.Code)
	progress := decodeBody[[]response.ProgressPoint](t, rr)
	require.Len(t, progress, 2)
	assert.Equal(t, 113, progress[0].Cumulative)
	assert.Equal(t, 45, progress[1].Cumulative)

	rr = ts.request(http.MethodGet, "/api/v1/fencers/"+alice.ID+"/rankings", nil, "")
	require.Equal(t, http.StatusOK, rr.Code)
	entries := decodeBody[[]response.RankingEntry](t, rr)
	require.Len(t, entries, 1)
	assert.Equal(t, 1, entries[0].TournamentsAttended)

	// Club total
	rr = ts.request(http.MethodGet, "/api/v1/clubs/"+club.ID+"/total?weapon=foil", nil, "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 150, decodeBody[response.ClubStanding](t, rr).TotalPoints)

	// Maintenance
	rr = ts.admin(http.MethodPost, "/api/v1/rankings/verify", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	consistency := decodeBody[response.ConsistencyReport](t, rr)
	assert.True(t, consistency.Consistent)
	assert.Empty(t, consistency.Drifts)

	rr = ts.admin(http.MethodPost, "/api/v1/rankings/reset", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 2, decodeBody[response.Affected](t, rr).Entries)

	rr = ts.admin(http.MethodPost, "/api/v1/rankings/verify", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.False(t, decodeBody[response.ConsistencyReport](t, rr).Consistent)

	rr = ts.admin(http.MethodPost, "/api/v1/rankings/rebuild", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 2, decodeBody[response.Affected](t, rr).Entries)

	// Export
	rr = ts.admin(http.MethodPost, "/api/v1/rankings/export?bracket=Junior&weapon=foil", nil)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	exported := decodeBody[response.Export](t, rr)
	assert.Equal(t, "rankings/junior/foil/20240101T120000Z.csv", exported.Key)
	assert.Equal(t, 1, ts.app.MockUploader.Len())
}

func TestImportResults(t *testing.T) {
	ts := newTestServer(t)

	alice := ts.createFencer("Alice", "foil", "2006-03-01", nil)
	bruno := ts.createFencer("Bruno", "foil", "2006-04-01", nil)
	tour := ts.createTournament("regional")
	ts.transition(tour.ID, "registration_open")
	ts.register(tour.ID, alice.ID)
	ts.register(tour.ID, bruno.ID)
	ts.transition(tour.ID, "in_progress")

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", "results.csv")
	require.NoError(t, err)
	_, err = part.Write([]byte("Fencer_ID,Place\n" + bruno.ID + ",1\n" + alice.ID + ",2\n"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/tournaments/"+tour.ID+"/results/import", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+ts.token)
	rr := httptest.NewRecorder()
	ts.handler.ServeHTTP(rr, req)

	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	records := decodeBody[[]response.ResultRecord](t, rr)
	require.Len(t, records, 2)

	rr = ts.request(http.MethodGet, "/api/v1/fencers/"+bruno.ID+"/results", nil, "")
	require.Equal(t, http.StatusOK, rr.Code)
	own := decodeBody[[]response.ResultRecord](t, rr)
	require.Len(t, own, 1)
	assert.Equal(t, 1, own[0].Placement)
	assert.Equal(t, 100, own[0].Points)
}

func TestImportRequiresFile(t *testing.T) {
	ts := newTestServer(t)
	tour := ts.createTournament("local")

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField("note", "no file here"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/tournaments/"+tour.ID+"/results/import", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+ts.token)
	rr := httptest.NewRecorder()
	ts.handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, apierr.CodeInvalidRequest, errorCode(t, rr))
}

func TestValidationErrors(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		name       string
		method     string
		path       string
		body       any
		wantStatus int
		wantCode   string
	}{
		{
			name:       "malformed birth date",
			method:     http.MethodPost,
			path:       "/api/v1/fencers",
			body:       map[string]string{"first_name": "A", "last_name": "B", "birth_date": "01/02/2006", "gender": "M", "weapon": "foil"},
			wantStatus: http.StatusBadRequest,
			wantCode:   apierr.CodeInvalidRequest,
		},
		{
			name:       "unknown weapon",
			method:     http.MethodPost,
			path:       "/api/v1/fencers",
			body:       map[string]string{"first_name": "A", "last_name": "B", "birth_date": "2006-01-02", "gender": "M", "weapon": "rapier"},
			wantStatus: http.StatusBadRequest,
			wantCode:   apierr.CodeInvalidField,
		},
		{
			name:       "unknown field",
			method:     http.MethodPost,
			path:       "/api/v1/clubs",
			body:       map[string]string{"name": "Salle", "motto": "en garde"},
			wantStatus: http.StatusBadRequest,
			wantCode:   apierr.CodeInvalidRequest,
		},
		{
			name:       "unknown tier",
			method:     http.MethodPost,
			path:       "/api/v1/tournaments",
			body:       map[string]string{"name": "Cup", "location": "Bruges", "date": "2024-06-20", "weapon": "foil", "bracket": "Junior", "tier": "galactic"},
			wantStatus: http.StatusBadRequest,
			wantCode:   apierr.CodeUnknownTier,
		},
		{
			name:       "missing fencer",
			method:     http.MethodGet,
			path:       "/api/v1/fencers/F-404",
			wantStatus: http.StatusNotFound,
			wantCode:   apierr.CodeFencerNotFound,
		},
		{
			name:       "missing tournament",
			method:     http.MethodGet,
			path:       "/api/v1/tournaments/T-404",
			wantStatus: http.StatusNotFound,
			wantCode:   apierr.CodeTournamentNotFound,
		},
		{
			name:       "leaderboard without bracket",
			method:     http.MethodGet,
			path:       "/api/v1/rankings?weapon=foil",
			wantStatus: http.StatusBadRequest,
			wantCode:   apierr.CodeInvalidRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := ts.admin(tt.method, tt.path, tt.body)
			assert.Equal(t, tt.wantStatus, rr.Code, rr.Body.String())
			assert.Equal(t, tt.wantCode, errorCode(t, rr))
		})
	}
}

func TestFencerIdentityIsImmutable(t *testing.T) {
	ts := newTestServer(t)
	f := ts.createFencer("Ines", "foil", "2005-06-01", nil)

	for _, body := range []map[string]string{
		{"birth_date": "1990-01-01"},
		{"gender": "F"},
	} {
		rr := ts.admin(http.MethodPatch, "/api/v1/fencers/"+f.ID, body)
		assert.Equal(t, http.StatusBadRequest, rr.Code, rr.Body.String())
		assert.Equal(t, apierr.CodeInvalidRequest, errorCode(t, rr))
	}

	rr := ts.admin(http.MethodPatch, "/api/v1/fencers/"+f.ID, map[string]string{"weapon": "epee"})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	updated := decodeBody[response.Fencer](t, rr)
	assert.Equal(t, "epee", updated.Weapon)
	assert.Equal(t, "2005-06-01", updated.BirthDate)
	assert.Equal(t, "M", updated.Gender)
}

func TestInvalidTransition(t *testing.T) {
	ts := newTestServer(t)
	tour := ts.createTournament("local")

	rr := ts.admin(http.MethodPost, "/api/v1/tournaments/"+tour.ID+"/status", map[string]string{"status": "completed"})
	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Equal(t, apierr.CodeInvalidTransition, errorCode(t, rr))
}

func TestPointsTable(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.request(http.MethodGet, "/api/v1/rankings/points-table?tier=national", nil, "")
	require.Equal(t, http.StatusOK, rr.Code)

	tables := decodeBody[[]response.PointsTable](t, rr)
	require.Len(t, tables, 1)
	assert.Equal(t, "national", tables[0].Tier)
	assert.InDelta(t, 1.5, tables[0].Multiplier, 0.0001)
	require.NotEmpty(t, tables[0].Rows)
	assert.Equal(t, 150, tables[0].Rows[0].Points)
	assert.Nil(t, tables[0].Rows[len(tables[0].Rows)-1].To)

	rr = ts.request(http.MethodGet, "/api/v1/rankings/points-table", nil, "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, decodeBody[[]response.PointsTable](t, rr), 5)
}

func TestResetDisabled(t *testing.T) {
	ts := newTestServer(t, func(cfg *config.Config) {
		cfg.Ranking.AllowReset = false
	})

	rr := ts.admin(http.MethodPost, "/api/v1/rankings/reset", nil)
	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.Equal(t, apierr.CodeResetDisabled, errorCode(t, rr))
}

func TestRateLimit(t *testing.T) {
	ts := newTestServer(t, func(cfg *config.Config) {
		cfg.RateLimit.Enabled = true
		cfg.RateLimit.RequestsPerSecond = 0.01
		cfg.RateLimit.Burst = 2
	})

	for range 2 {
		rr := ts.request(http.MethodGet, "/api/v1/clubs", nil, "")
		require.Equal(t, http.StatusOK, rr.Code)
	}

	rr := ts.request(http.MethodGet, "/api/v1/clubs", nil, "")
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Equal(t, apierr.CodeRateLimited, errorCode(t, rr))
	assert.NotEmpty(t, rr.Header().Get("Retry-After"))

	// Operational endpoints are exempt
	rr = ts.request(http.MethodGet, "/health", nil, "")
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestRequestIDIsEchoed(t *testing.T) {
	ts := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/clubs", nil)
	req.Header.Set("X-Request-ID", "req-123")
	rr := httptest.NewRecorder()
	ts.handler.ServeHTTP(rr, req)

	assert.Equal(t, "req-123", rr.Header().Get("X-Request-ID"))
}
