package handler

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/mcoot/allfence/internal/api/request"
	"github.com/mcoot/allfence/internal/api/response"
	"github.com/mcoot/allfence/internal/model"
	"github.com/mcoot/allfence/internal/services/ranking"
	"github.com/mcoot/allfence/internal/services/registration"
	"github.com/mcoot/allfence/internal/services/results"
	"github.com/mcoot/allfence/internal/services/roster"
)

// FencerHandler handles fencer endpoints
type FencerHandler struct {
	roster   *roster.Service
	recorder *results.Recorder
	ranking  *ranking.Service
	ledger   *registration.Ledger
}

// NewFencerHandler creates a new fencer handler
func NewFencerHandler(roster *roster.Service, recorder *results.Recorder, ranking *ranking.Service, ledger *registration.Ledger) *FencerHandler {
	return &FencerHandler{
		roster:   roster,
		recorder: recorder,
		ranking:  ranking,
		ledger:   ledger,
	}
}

func fencerID(r *http.Request) model.FencerID {
	return model.FencerID(mux.Vars(r)["id"])
}

// Create handles POST /api/v1/fencers
func (h *FencerHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req request.CreateFencerRequest
	if err := decode(w, r, &req); err != nil {
		WriteError(w, err)
		return
	}

	birth, err := request.ParseDate("birth_date", req.BirthDate)
	if err != nil {
		WriteError(w, NewInvalidRequestError(err.Error()))
		return
	}

	fencer, err := h.roster.CreateFencer(r.Context(), roster.FencerInput{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		BirthDate: birth,
		Gender:    model.Gender(req.Gender),
		Weapon:    model.Weapon(req.Weapon),
		ClubID:    optionalClub(req.ClubID),
	})
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusCreated, response.FencerFromModel(fencer))
}

// List handles GET /api/v1/fencers?weapon=&gender=&club=
func (h *FencerHandler) List(w http.ResponseWriter, r *http.Request) {
	weapon, err := queryWeapon(r)
	if err != nil {
		WriteError(w, err)
		return
	}
	gender, err := queryGender(r)
	if err != nil {
		WriteError(w, err)
		return
	}

	fencers, err := h.roster.ListFencers(r.Context(), model.FencerFilter{
		Weapon: weapon,
		Gender: gender,
		ClubID: model.ClubID(r.URL.Query().Get("club")),
	})
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.FencersFromModel(fencers))
}

// Get handles GET /api/v1/fencers/{id}
func (h *FencerHandler) Get(w http.ResponseWriter, r *http.Request) {
	fencer, err := h.roster.GetFencer(r.Context(), fencerID(r))
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.FencerFromModel(fencer))
}

// Update handles PATCH /api/v1/fencers/{id}
func (h *FencerHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req request.UpdateFencerRequest
	if err := decode(w, r, &req); err != nil {
		WriteError(w, err)
		return
	}

	upd := roster.FencerUpdate{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		ClubID:    optionalClub(req.ClubID),
		ClearClub: req.ClearClub,
	}
	if req.Weapon != nil {
		wp := model.Weapon(*req.Weapon)
		upd.Weapon = &wp
	}

	fencer, err := h.roster.UpdateFencer(r.Context(), fencerID(r), upd)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.FencerFromModel(fencer))
}

// Results handles GET /api/v1/fencers/{id}/results
func (h *FencerHandler) Results(w http.ResponseWriter, r *http.Request) {
	records, err := h.recorder.FencerResults(r.Context(), fencerID(r))
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.ResultRecordsFromModel(records))
}

// Rankings handles GET /api/v1/fencers/{id}/rankings
func (h *FencerHandler) Rankings(w http.ResponseWriter, r *http.Request) {
	entries, err := h.ranking.FencerRankings(r.Context(), fencerID(r))
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.RankingEntriesFromModel(entries))
}

// Progress handles GET /api/v1/fencers/{id}/progress
func (h *FencerHandler) Progress(w http.ResponseWriter, r *http.Request) {
	progress, err := h.ranking.Progress(r.Context(), fencerID(r))
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.ProgressFromModel(progress))
}

// EligibleTournaments handles GET /api/v1/fencers/{id}/eligible-tournaments
func (h *FencerHandler) EligibleTournaments(w http.ResponseWriter, r *http.Request) {
	tournaments, err := h.ledger.EligibleTournaments(r.Context(), fencerID(r))
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.TournamentsFromModel(tournaments))
}
