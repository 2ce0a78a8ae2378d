package handler

import (
	"log/slog"
	"net/http"

	"github.com/mcoot/allfence/internal/api/middleware"
	"github.com/mcoot/allfence/internal/api/response"
	"github.com/mcoot/allfence/internal/model"
	"github.com/mcoot/allfence/internal/services/export"
	"github.com/mcoot/allfence/internal/services/points"
	"github.com/mcoot/allfence/internal/services/ranking"
)

// RankingHandler handles leaderboards and ranking maintenance
type RankingHandler struct {
	ranking  *ranking.Service
	exporter *export.Exporter
	logger   *slog.Logger
}

// NewRankingHandler creates a new ranking handler
func NewRankingHandler(ranking *ranking.Service, exporter *export.Exporter, logger *slog.Logger) *RankingHandler {
	return &RankingHandler{
		ranking:  ranking,
		exporter: exporter,
		logger:   logger,
	}
}

func leaderboardQuery(r *http.Request) (ranking.LeaderboardQuery, error) {
	bracket, err := queryBracket(r)
	if err != nil {
		return ranking.LeaderboardQuery{}, err
	}
	if bracket == "" {
		return ranking.LeaderboardQuery{}, NewInvalidRequestError("bracket is required")
	}
	weapon, err := queryWeapon(r)
	if err != nil {
		return ranking.LeaderboardQuery{}, err
	}
	gender, err := queryGender(r)
	if err != nil {
		return ranking.LeaderboardQuery{}, err
	}
	return ranking.LeaderboardQuery{Bracket: bracket, Weapon: weapon, Gender: gender}, nil
}

// Leaderboard handles GET /api/v1/rankings?bracket=&weapon=&gender=
func (h *RankingHandler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	q, err := leaderboardQuery(r)
	if err != nil {
		WriteError(w, err)
		return
	}

	standings, err := h.ranking.Leaderboard(r.Context(), q)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.LeaderboardFromModel(q, standings))
}

// Clubs handles GET /api/v1/rankings/clubs?weapon=
func (h *RankingHandler) Clubs(w http.ResponseWriter, r *http.Request) {
	weapon, err := queryWeapon(r)
	if err != nil {
		WriteError(w, err)
		return
	}

	standings, err := h.ranking.ClubStandings(r.Context(), weapon)
	if err != nil {
		WriteError(w, err)
		return
	}

	out := make([]response.ClubStanding, len(standings))
	for i, s := range standings {
		out[i] = response.ClubStandingFromModel(s)
	}
	response.JSON(w, http.StatusOK, out)
}

// PointsTable handles GET /api/v1/rankings/points-table?tier=
// Without a tier every tier's table is returned.
func (h *RankingHandler) PointsTable(w http.ResponseWriter, r *http.Request) {
	tiers := model.Tiers
	if v := r.URL.Query().Get("tier"); v != "" {
		tier, err := model.ParseTier(v)
		if err != nil {
			WriteError(w, err)
			return
		}
		tiers = []model.Tier{tier}
	}

	out := make([]response.PointsTable, 0, len(tiers))
	for _, tier := range tiers {
		rows, err := points.Structure(tier)
		if err != nil {
			WriteError(w, err)
			return
		}
		multiplier, err := points.Multiplier(tier)
		if err != nil {
			WriteError(w, err)
			return
		}
		out = append(out, response.PointsTableFromRows(tier, multiplier, rows))
	}

	response.JSON(w, http.StatusOK, out)
}

// Verify handles POST /api/v1/rankings/verify. Drift is reported in the body,
// not as an error status.
func (h *RankingHandler) Verify(w http.ResponseWriter, r *http.Request) {
	report, err := h.ranking.VerifyConsistency(r.Context())
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.ConsistencyReportFromModel(report))
}

// Rebuild handles POST /api/v1/rankings/rebuild
func (h *RankingHandler) Rebuild(w http.ResponseWriter, r *http.Request) {
	n, err := h.ranking.Rebuild(r.Context())
	if err != nil {
		WriteError(w, err)
		return
	}

	h.logger.Info("rankings rebuilt via API", slog.String("admin", middleware.Admin(r.Context())))
	response.JSON(w, http.StatusOK, response.Affected{Entries: n})
}

// Reset handles POST /api/v1/rankings/reset
func (h *RankingHandler) Reset(w http.ResponseWriter, r *http.Request) {
	n, err := h.ranking.ResetAll(r.Context())
	if err != nil {
		WriteError(w, err)
		return
	}

	h.logger.Warn("rankings reset via API", slog.String("admin", middleware.Admin(r.Context())))
	response.JSON(w, http.StatusOK, response.Affected{Entries: n})
}

// Export handles POST /api/v1/rankings/export?bracket=&weapon=&gender=
func (h *RankingHandler) Export(w http.ResponseWriter, r *http.Request) {
	q, err := leaderboardQuery(r)
	if err != nil {
		WriteError(w, err)
		return
	}

	result, err := h.exporter.Export(r.Context(), q)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusCreated, response.ExportFromResult(result))
}
