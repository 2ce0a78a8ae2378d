package handler

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/mcoot/allfence/internal/api/request"
	"github.com/mcoot/allfence/internal/api/response"
	"github.com/mcoot/allfence/internal/model"
	"github.com/mcoot/allfence/internal/services/registration"
	"github.com/mcoot/allfence/internal/services/tournament"
)

// TournamentHandler handles tournament lifecycle and registration endpoints
type TournamentHandler struct {
	tournaments *tournament.Controller
	ledger      *registration.Ledger
}

// NewTournamentHandler creates a new tournament handler
func NewTournamentHandler(tournaments *tournament.Controller, ledger *registration.Ledger) *TournamentHandler {
	return &TournamentHandler{
		tournaments: tournaments,
		ledger:      ledger,
	}
}

func tournamentID(r *http.Request) model.TournamentID {
	return model.TournamentID(mux.Vars(r)["id"])
}

// Create handles POST /api/v1/tournaments
func (h *TournamentHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req request.CreateTournamentRequest
	if err := decode(w, r, &req); err != nil {
		WriteError(w, err)
		return
	}

	date, err := request.ParseDate("date", req.Date)
	if err != nil {
		WriteError(w, NewInvalidRequestError(err.Error()))
		return
	}

	in := tournament.Input{
		Name:     req.Name,
		Location: req.Location,
		Date:     date,
		Weapon:   model.Weapon(req.Weapon),
		Bracket:  model.AgeBracket(req.Bracket),
		Tier:     model.Tier(req.Tier),
		Capacity: req.Capacity,
	}
	if req.Gender != nil && *req.Gender != "" {
		g := model.Gender(*req.Gender)
		in.Gender = &g
	}

	t, err := h.tournaments.Create(r.Context(), in)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusCreated, response.TournamentFromModel(t))
}

// List handles GET /api/v1/tournaments?status=&weapon=&bracket=
func (h *TournamentHandler) List(w http.ResponseWriter, r *http.Request) {
	weapon, err := queryWeapon(r)
	if err != nil {
		WriteError(w, err)
		return
	}
	bracket, err := queryBracket(r)
	if err != nil {
		WriteError(w, err)
		return
	}
	status := model.TournamentStatus(r.URL.Query().Get("status"))
	if status != "" && !status.Valid() {
		WriteError(w, model.ErrInvalidStatus)
		return
	}

	tournaments, err := h.tournaments.List(r.Context(), model.TournamentFilter{
		Status:  status,
		Weapon:  weapon,
		Bracket: bracket,
	})
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.TournamentsFromModel(tournaments))
}

// Get handles GET /api/v1/tournaments/{id}
func (h *TournamentHandler) Get(w http.ResponseWriter, r *http.Request) {
	t, err := h.tournaments.Get(r.Context(), tournamentID(r))
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.TournamentFromModel(t))
}

// Transition handles POST /api/v1/tournaments/{id}/status
func (h *TournamentHandler) Transition(w http.ResponseWriter, r *http.Request) {
	var req request.TransitionRequest
	if err := decode(w, r, &req); err != nil {
		WriteError(w, err)
		return
	}

	if req.Status == "" {
		WriteError(w, NewInvalidRequestError("status is required"))
		return
	}

	t, err := h.tournaments.Transition(r.Context(), tournamentID(r), model.TournamentStatus(req.Status))
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.TournamentFromModel(t))
}

// Participants handles GET /api/v1/tournaments/{id}/participants
func (h *TournamentHandler) Participants(w http.ResponseWriter, r *http.Request) {
	participants, err := h.ledger.Participants(r.Context(), tournamentID(r))
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.ParticipantsFromModel(participants))
}

// Register handles POST /api/v1/tournaments/{id}/participants
func (h *TournamentHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req request.RegisterRequest
	if err := decode(w, r, &req); err != nil {
		WriteError(w, err)
		return
	}

	if req.FencerID == "" {
		WriteError(w, NewInvalidRequestError("fencer_id is required"))
		return
	}

	reg, err := h.ledger.Register(r.Context(), tournamentID(r), model.FencerID(req.FencerID))
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusCreated, response.RegistrationFromModel(*reg))
}

// Unregister handles DELETE /api/v1/tournaments/{id}/participants/{fencer_id}
func (h *TournamentHandler) Unregister(w http.ResponseWriter, r *http.Request) {
	fencer := model.FencerID(mux.Vars(r)["fencer_id"])

	if err := h.ledger.Unregister(r.Context(), tournamentID(r), fencer); err != nil {
		WriteError(w, err)
		return
	}

	response.NoContent(w)
}

// Eligibility handles GET /api/v1/tournaments/{id}/eligibility/{fencer_id}
func (h *TournamentHandler) Eligibility(w http.ResponseWriter, r *http.Request) {
	fencer := model.FencerID(mux.Vars(r)["fencer_id"])

	report, err := h.ledger.CheckEligibility(r.Context(), tournamentID(r), fencer)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.EligibilityFromReport(report))
}
