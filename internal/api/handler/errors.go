package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/mcoot/allfence/internal/api/apierr"
	"github.com/mcoot/allfence/internal/model"
)

// Re-export from apierr for convenience
type APIError = apierr.APIError
type ErrorResponse = apierr.ErrorResponse

// WriteError writes an error response to the response writer
func WriteError(w http.ResponseWriter, err error) {
	apierr.WriteError(w, err)
}

// NewInvalidRequestError creates an invalid request error
func NewInvalidRequestError(message string) error {
	return apierr.NewInvalidRequestError(message)
}

// maxBodyBytes bounds JSON request bodies
const maxBodyBytes = 1 << 20

// decode reads a JSON body into v, rejecting unknown fields
func decode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return NewInvalidRequestError("request body is required")
		}
		return NewInvalidRequestError("invalid request body: " + err.Error())
	}
	return nil
}

// Query parameter parsers; empty values parse to the zero value

func queryWeapon(r *http.Request) (model.Weapon, error) {
	v := r.URL.Query().Get("weapon")
	if v == "" {
		return "", nil
	}
	return model.ParseWeapon(v)
}

func queryGender(r *http.Request) (model.Gender, error) {
	v := r.URL.Query().Get("gender")
	if v == "" {
		return "", nil
	}
	return model.ParseGender(v)
}

func queryBracket(r *http.Request) (model.AgeBracket, error) {
	v := r.URL.Query().Get("bracket")
	if v == "" {
		return "", nil
	}
	return model.ParseBracket(v)
}

func queryBool(r *http.Request, name string) bool {
	switch strings.ToLower(r.URL.Query().Get(name)) {
	case "1", "true", "yes":
		return true
	}
	return false
}

// optionalWeapon parses a weapon pointer from a request body
func optionalWeapon(v *string) (*model.Weapon, error) {
	if v == nil {
		return nil, nil
	}
	w, err := model.ParseWeapon(*v)
	if err != nil {
		return nil, err
	}
	return &w, nil
}

func optionalClub(v *string) *model.ClubID {
	if v == nil || *v == "" {
		return nil
	}
	id := model.ClubID(*v)
	return &id
}
