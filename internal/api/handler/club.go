package handler

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/mcoot/allfence/internal/api/request"
	"github.com/mcoot/allfence/internal/api/response"
	"github.com/mcoot/allfence/internal/model"
	"github.com/mcoot/allfence/internal/services/ranking"
	"github.com/mcoot/allfence/internal/services/roster"
)

// ClubHandler handles club endpoints
type ClubHandler struct {
	roster  *roster.Service
	ranking *ranking.Service
}

// NewClubHandler creates a new club handler
func NewClubHandler(roster *roster.Service, ranking *ranking.Service) *ClubHandler {
	return &ClubHandler{
		roster:  roster,
		ranking: ranking,
	}
}

// Create handles POST /api/v1/clubs
func (h *ClubHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req request.CreateClubRequest
	if err := decode(w, r, &req); err != nil {
		WriteError(w, err)
		return
	}

	weapon, err := optionalWeapon(req.WeaponSpecialization)
	if err != nil {
		WriteError(w, err)
		return
	}

	club, err := h.roster.CreateClub(r.Context(), roster.ClubInput{
		Name:                 req.Name,
		FoundedYear:          req.FoundedYear,
		Status:               model.ClubStatus(req.Status),
		WeaponSpecialization: weapon,
	})
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusCreated, response.ClubFromModel(club))
}

// List handles GET /api/v1/clubs
func (h *ClubHandler) List(w http.ResponseWriter, r *http.Request) {
	clubs, err := h.roster.ListClubs(r.Context())
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.ClubsFromModel(clubs))
}

// Get handles GET /api/v1/clubs/{id}
func (h *ClubHandler) Get(w http.ResponseWriter, r *http.Request) {
	club, err := h.roster.GetClub(r.Context(), model.ClubID(mux.Vars(r)["id"]))
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.ClubFromModel(club))
}

// Total handles GET /api/v1/clubs/{id}/total?weapon=
func (h *ClubHandler) Total(w http.ResponseWriter, r *http.Request) {
	weapon, err := queryWeapon(r)
	if err != nil {
		WriteError(w, err)
		return
	}

	standing, err := h.ranking.ClubTotal(r.Context(), model.ClubID(mux.Vars(r)["id"]), weapon)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.ClubStandingFromModel(*standing))
}
