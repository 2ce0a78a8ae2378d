package apierr

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/mcoot/allfence/internal/model"
	"github.com/mcoot/allfence/internal/services/auth"
)

// APIError represents an API error response
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	// Reason is set for ineligibility errors
	Reason string `json:"reason,omitempty"`
}

// ErrorResponse wraps an APIError
type ErrorResponse struct {
	Error APIError `json:"error"`
}

// Common error codes
const (
	CodeInvalidRequest      = "INVALID_REQUEST"
	CodeUnauthorized        = "UNAUTHORIZED"
	CodeRateLimited         = "RATE_LIMITED"
	CodeNotFound            = "NOT_FOUND"
	CodeFencerNotFound      = "FENCER_NOT_FOUND"
	CodeClubNotFound        = "CLUB_NOT_FOUND"
	CodeTournamentNotFound  = "TOURNAMENT_NOT_FOUND"
	CodeResultNotFound      = "RESULT_NOT_FOUND"
	CodeInvalidDate         = "INVALID_DATE"
	CodeUnknownTier         = "UNKNOWN_TIER"
	CodeInvalidPlacement    = "INVALID_PLACEMENT"
	CodeDuplicatePlacement  = "DUPLICATE_PLACEMENT"
	CodeEmptyResults        = "EMPTY_RESULTS"
	CodeInvalidField        = "INVALID_FIELD"
	CodeInvalidImport       = "INVALID_IMPORT"
	CodeIneligible          = "INELIGIBLE"
	CodeRegistrationClosed  = "REGISTRATION_CLOSED"
	CodeAlreadyRegistered   = "ALREADY_REGISTERED"
	CodeCapacityExceeded    = "CAPACITY_EXCEEDED"
	CodeNotRegistered       = "NOT_REGISTERED"
	CodeUnregisterForbidden = "UNREGISTER_NOT_ALLOWED"
	CodeResultsRecorded     = "RESULTS_ALREADY_RECORDED"
	CodeResultsNotAccepted  = "RESULTS_NOT_ACCEPTED"
	CodeDuplicateResult     = "DUPLICATE_RESULT"
	CodeConflict            = "CONFLICT"
	CodeUnchangedPlacement  = "UNCHANGED_PLACEMENT"
	CodeInvalidTransition   = "INVALID_TRANSITION"
	CodeRankingDrift        = "RANKING_DRIFT"
	CodeResetDisabled       = "RESET_DISABLED"
	CodeUsernameExists      = "USERNAME_EXISTS"
	CodeInvalidCredentials  = "INVALID_CREDENTIALS"
	CodeInternalError       = "INTERNAL_ERROR"
)

// httpError combines an HTTP status code with an APIError
type httpError struct {
	status   int
	apiError APIError
}

// Error implements error interface
func (e *httpError) Error() string {
	return e.apiError.Message
}

// WriteError writes an error response to the response writer
func WriteError(w http.ResponseWriter, err error) {
	he := toHTTPError(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(he.status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{Error: he.apiError})
}

// Status returns the HTTP status err maps to
func Status(err error) int {
	return toHTTPError(err).status
}

// toHTTPError converts an error to an httpError
func toHTTPError(err error) *httpError {
	var he *httpError
	if errors.As(err, &he) {
		return he
	}

	// Ineligibility carries its reason; checked before the sentinels it also matches
	var ineligible *model.IneligibleError
	if errors.As(err, &ineligible) {
		return ineligibleError(ineligible)
	}

	switch {
	// Not found
	case errors.Is(err, model.ErrFencerNotFound):
		return &httpError{http.StatusNotFound, APIError{Code: CodeFencerNotFound, Message: "Fencer not found"}}
	case errors.Is(err, model.ErrClubNotFound):
		return &httpError{http.StatusNotFound, APIError{Code: CodeClubNotFound, Message: "Club not found"}}
	case errors.Is(err, model.ErrTournamentNotFound):
		return &httpError{http.StatusNotFound, APIError{Code: CodeTournamentNotFound, Message: "Tournament not found"}}
	case errors.Is(err, model.ErrResultNotFound):
		return &httpError{http.StatusNotFound, APIError{Code: CodeResultNotFound, Message: "No result recorded for this fencer"}}

	// Validation
	case errors.Is(err, model.ErrInvalidDate):
		return &httpError{http.StatusBadRequest, APIError{Code: CodeInvalidDate, Message: "Birth date is after the tournament date"}}
	case errors.Is(err, model.ErrUnknownTier):
		return &httpError{http.StatusBadRequest, APIError{Code: CodeUnknownTier, Message: "Unknown competition tier"}}
	case errors.Is(err, model.ErrInvalidPlacement):
		return &httpError{http.StatusBadRequest, APIError{Code: CodeInvalidPlacement, Message: "Placement must be a positive integer"}}
	case errors.Is(err, model.ErrDuplicatePlacement):
		return &httpError{http.StatusConflict, APIError{Code: CodeDuplicatePlacement, Message: err.Error()}}
	case errors.Is(err, model.ErrEmptyResults):
		return &httpError{http.StatusBadRequest, APIError{Code: CodeEmptyResults, Message: "No placements supplied"}}
	case errors.Is(err, model.ErrInvalidImport):
		return &httpError{http.StatusBadRequest, APIError{Code: CodeInvalidImport, Message: err.Error()}}
	case errors.Is(err, model.ErrInvalidWeapon),
		errors.Is(err, model.ErrInvalidGender),
		errors.Is(err, model.ErrInvalidBracket),
		errors.Is(err, model.ErrInvalidStatus),
		errors.Is(err, model.ErrInvalidCapacity),
		errors.Is(err, model.ErrMissingName),
		errors.Is(err, auth.ErrWeakPassword):
		return &httpError{http.StatusBadRequest, APIError{Code: CodeInvalidField, Message: err.Error()}}

	// Registration
	case errors.Is(err, model.ErrRegistrationClosed):
		return &httpError{http.StatusConflict, APIError{Code: CodeRegistrationClosed, Message: "Tournament is not accepting registrations"}}
	case errors.Is(err, model.ErrAlreadyRegistered):
		return &httpError{http.StatusConflict, APIError{Code: CodeAlreadyRegistered, Message: "Fencer is already registered"}}
	case errors.Is(err, model.ErrCapacityExceeded):
		return &httpError{http.StatusConflict, APIError{Code: CodeCapacityExceeded, Message: "Tournament is full"}}
	case errors.Is(err, model.ErrNotRegistered):
		return &httpError{http.StatusConflict, APIError{Code: CodeNotRegistered, Message: err.Error()}}
	case errors.Is(err, model.ErrUnregisterNotAllowed):
		return &httpError{http.StatusConflict, APIError{Code: CodeUnregisterForbidden, Message: "Registrations can no longer be withdrawn"}}
	case errors.Is(err, model.ErrResultsAlreadyRecorded):
		return &httpError{http.StatusConflict, APIError{Code: CodeResultsRecorded, Message: "Results already recorded for this fencer"}}

	// Results
	case errors.Is(err, model.ErrResultsNotAccepted):
		return &httpError{http.StatusConflict, APIError{Code: CodeResultsNotAccepted, Message: "Tournament is not accepting results"}}
	case errors.Is(err, model.ErrDuplicateResult):
		return &httpError{http.StatusConflict, APIError{Code: CodeDuplicateResult, Message: err.Error()}}
	case errors.Is(err, model.ErrUnchangedPlacement):
		return &httpError{http.StatusConflict, APIError{Code: CodeUnchangedPlacement, Message: "Placement is unchanged"}}
	case errors.Is(err, model.ErrStaleResult), errors.Is(err, model.ErrStaleTournament):
		return &httpError{http.StatusConflict, APIError{Code: CodeConflict, Message: "Concurrent update, retry the request"}}

	// Lifecycle and rankings
	case errors.Is(err, model.ErrInvalidTransition):
		return &httpError{http.StatusConflict, APIError{Code: CodeInvalidTransition, Message: err.Error()}}
	case errors.Is(err, model.ErrRankingDrift):
		return &httpError{http.StatusConflict, APIError{Code: CodeRankingDrift, Message: err.Error()}}
	case errors.Is(err, model.ErrResetDisabled):
		return &httpError{http.StatusForbidden, APIError{Code: CodeResetDisabled, Message: "Ranking reset is disabled on this server"}}

	// Auth
	case errors.Is(err, auth.ErrInvalidCredentials):
		return &httpError{http.StatusUnauthorized, APIError{Code: CodeInvalidCredentials, Message: "Invalid username or password"}}
	case errors.Is(err, auth.ErrInvalidSession):
		return &httpError{http.StatusUnauthorized, APIError{Code: CodeUnauthorized, Message: "Invalid or expired session"}}
	case errors.Is(err, auth.ErrUsernameExists):
		return &httpError{http.StatusConflict, APIError{Code: CodeUsernameExists, Message: "Username already exists"}}

	default:
		return &httpError{http.StatusInternalServerError, APIError{Code: CodeInternalError, Message: "Internal server error"}}
	}
}

func ineligibleError(e *model.IneligibleError) *httpError {
	code := CodeIneligible
	switch e.Reason {
	case model.ReasonRegistrationClosed:
		code = CodeRegistrationClosed
	case model.ReasonCapacityExceeded:
		code = CodeCapacityExceeded
	}
	return &httpError{http.StatusConflict, APIError{Code: code, Message: e.Error(), Reason: string(e.Reason)}}
}

// NewInvalidRequestError creates an invalid request error
func NewInvalidRequestError(message string) error {
	return &httpError{http.StatusBadRequest, APIError{Code: CodeInvalidRequest, Message: message}}
}

// NewUnauthorizedError creates an unauthorized error
func NewUnauthorizedError() error {
	return &httpError{http.StatusUnauthorized, APIError{Code: CodeUnauthorized, Message: "Authentication required"}}
}

// NewNotFoundError creates an error for an unknown path
func NewNotFoundError(path string) error {
	return &httpError{http.StatusNotFound, APIError{Code: CodeNotFound, Message: "No route for " + path}}
}

// NewRateLimitedError creates a too many requests error
func NewRateLimitedError() error {
	return &httpError{http.StatusTooManyRequests, APIError{Code: CodeRateLimited, Message: "Too many requests"}}
}

// NewInternalError creates an internal server error
func NewInternalError() error {
	return &httpError{http.StatusInternalServerError, APIError{Code: CodeInternalError, Message: "Internal server error"}}
}
