package handler

import (
	"net/http"

	"github.com/mcoot/allfence/internal/api/request"
	"github.com/mcoot/allfence/internal/api/response"
	"github.com/mcoot/allfence/internal/services/auth"
)

// AdminHandler handles administrator login
type AdminHandler struct {
	authService *auth.Service
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(authService *auth.Service) *AdminHandler {
	return &AdminHandler{
		authService: authService,
	}
}

// Login handles POST /api/v1/admin/login
func (h *AdminHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req request.LoginRequest
	if err := decode(w, r, &req); err != nil {
		WriteError(w, err)
		return
	}

	if req.Username == "" || req.Password == "" {
		WriteError(w, NewInvalidRequestError("username and password are required"))
		return
	}

	session, err := h.authService.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.AuthResponseFromSession(session))
}
