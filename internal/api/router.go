package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mcoot/allfence/internal/api/apierr"
	"github.com/mcoot/allfence/internal/api/handler"
	"github.com/mcoot/allfence/internal/api/middleware"
	"github.com/mcoot/allfence/internal/api/response"
	"github.com/mcoot/allfence/internal/metrics"
	shared "github.com/mcoot/allfence/internal/middleware"
	"github.com/mcoot/allfence/internal/services/auth"
	"github.com/mcoot/allfence/internal/services/export"
	"github.com/mcoot/allfence/internal/services/ranking"
	"github.com/mcoot/allfence/internal/services/registration"
	"github.com/mcoot/allfence/internal/services/results"
	"github.com/mcoot/allfence/internal/services/roster"
	"github.com/mcoot/allfence/internal/services/tournament"
)

// Pinger reports whether the storage backend is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// RouterConfig holds configuration for the API router
type RouterConfig struct {
	Logger   *slog.Logger
	Metrics  *metrics.Metrics
	Gatherer prometheus.Gatherer
	Storage  Pinger

	AuthService *auth.Service
	Roster      *roster.Service
	Tournaments *tournament.Controller
	Ledger      *registration.Ledger
	Recorder    *results.Recorder
	Ranking     *ranking.Service
	Exporter    *export.Exporter

	// RateLimiter is nil when rate limiting is disabled
	RateLimiter *shared.IPRateLimiter
}

// NewRouter creates a new API router with all routes configured
func NewRouter(cfg RouterConfig) http.Handler {
	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(notFound)
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(middleware.Metrics(cfg.Metrics))

	// Create handlers
	adminHandler := handler.NewAdminHandler(cfg.AuthService)
	fencerHandler := handler.NewFencerHandler(cfg.Roster, cfg.Recorder, cfg.Ranking, cfg.Ledger)
	clubHandler := handler.NewClubHandler(cfg.Roster, cfg.Ranking)
	tournamentHandler := handler.NewTournamentHandler(cfg.Tournaments, cfg.Ledger)
	resultsHandler := handler.NewResultsHandler(cfg.Recorder)
	rankingHandler := handler.NewRankingHandler(cfg.Ranking, cfg.Exporter, cfg.Logger)

	// Operational endpoints sit outside the versioned API and are never rate limited
	r.HandleFunc("/health", healthHandler(cfg.Storage)).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)

	// API subrouter with common middleware
	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(middleware.Logging(cfg.Logger))
	if cfg.RateLimiter != nil {
		api.Use(middleware.RateLimit(cfg.RateLimiter))
	}

	api.HandleFunc("/admin/login", adminHandler.Login).Methods(http.MethodPost)

	// Reads are public, everything else needs an admin session
	data := api.NewRoute().Subrouter()
	data.Use(middleware.AdminOnly(cfg.AuthService))

	// Fencer routes
	data.HandleFunc("/fencers", fencerHandler.Create).Methods(http.MethodPost)
	data.HandleFunc("/fencers", fencerHandler.List).Methods(http.MethodGet)
	data.HandleFunc("/fencers/{id}", fencerHandler.Get).Methods(http.MethodGet)
	data.HandleFunc("/fencers/{id}", fencerHandler.Update).Methods(http.MethodPatch)
	data.HandleFunc("/fencers/{id}/results", fencerHandler.Results).Methods(http.MethodGet)
	data.HandleFunc("/fencers/{id}/rankings", fencerHandler.Rankings).Methods(http.MethodGet)
	data.HandleFunc("/fencers/{id}/progress", fencerHandler.Progress).Methods(http.MethodGet)
	data.HandleFunc("/fencers/{id}/eligible-tournaments", fencerHandler.EligibleTournaments).Methods(http.MethodGet)

	// Club routes
	data.HandleFunc("/clubs", clubHandler.Create).Methods(http.MethodPost)
	data.HandleFunc("/clubs", clubHandler.List).Methods(http.MethodGet)
	data.HandleFunc("/clubs/{id}", clubHandler.Get).Methods(http.MethodGet)
	data.HandleFunc("/clubs/{id}/total", clubHandler.Total).Methods(http.MethodGet)

	// Tournament routes
	data.HandleFunc("/tournaments", tournamentHandler.Create).Methods(http.MethodPost)
	data.HandleFunc("/tournaments", tournamentHandler.List).Methods(http.MethodGet)
	data.HandleFunc("/tournaments/{id}", tournamentHandler.Get).Methods(http.MethodGet)
	data.HandleFunc("/tournaments/{id}/status", tournamentHandler.Transition).Methods(http.MethodPost)
	data.HandleFunc("/tournaments/{id}/participants", tournamentHandler.Participants).Methods(http.MethodGet)
	data.HandleFunc("/tournaments/{id}/participants", tournamentHandler.Register).Methods(http.MethodPost)
	data.HandleFunc("/tournaments/{id}/participants/{fencer_id}", tournamentHandler.Unregister).Methods(http.MethodDelete)
	data.HandleFunc("/tournaments/{id}/eligibility/{fencer_id}", tournamentHandler.Eligibility).Methods(http.MethodGet)

	// Result routes
	data.HandleFunc("/tournaments/{id}/results", resultsHandler.List).Methods(http.MethodGet)
	data.HandleFunc("/tournaments/{id}/results", resultsHandler.Record).Methods(http.MethodPost)
	data.HandleFunc("/tournaments/{id}/results/import", resultsHandler.Import).Methods(http.MethodPost)
	data.HandleFunc("/tournaments/{id}/results/{fencer_id}/correction", resultsHandler.Correct).Methods(http.MethodPost)

	// Ranking routes
	data.HandleFunc("/rankings", rankingHandler.Leaderboard).Methods(http.MethodGet)
	data.HandleFunc("/rankings/clubs", rankingHandler.Clubs).Methods(http.MethodGet)
	data.HandleFunc("/rankings/points-table", rankingHandler.PointsTable).Methods(http.MethodGet)
	data.HandleFunc("/rankings/verify", rankingHandler.Verify).Methods(http.MethodPost)
	data.HandleFunc("/rankings/rebuild", rankingHandler.Rebuild).Methods(http.MethodPost)
	data.HandleFunc("/rankings/reset", rankingHandler.Reset).Methods(http.MethodPost)
	data.HandleFunc("/rankings/export", rankingHandler.Export).Methods(http.MethodPost)

	return r
}

func healthHandler(storage Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := storage.Ping(ctx); err != nil {
			response.JSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
		response.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

func notFound(w http.ResponseWriter, r *http.Request) {
	apierr.WriteError(w, apierr.NewNotFoundError(r.URL.Path))
}
