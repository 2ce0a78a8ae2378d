package response

import (
	"encoding/json"
	"net/http"
)

// JSON encodes data before touching the response so an encoding failure
// still yields a clean 500 instead of a truncated body
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	if data == nil {
		w.WriteHeader(status)
		return
	}

	body, err := json.Marshal(data)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"code":"INTERNAL_ERROR","message":"failed to encode response"}` + "\n"))
		return
	}
	w.WriteHeader(status)
	_, _ = w.Write(append(body, '\n'))
}

// NoContent writes a 204 with no body
func NoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}
