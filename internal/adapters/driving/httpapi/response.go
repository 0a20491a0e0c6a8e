package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"generic-role-provider/internal/core/domain"
)

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError answers with status, or with the status mapped from err's
// domain sentinel when status is omitted.
func writeError(w http.ResponseWriter, err error, status ...int) {
	code := statusFor(err)
	if len(status) > 0 {
		code = status[0]
	}
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound),
		errors.Is(err, domain.ErrUserNotFound),
		errors.Is(err, domain.ErrRoleNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrAlreadyExists),
		errors.Is(err, domain.ErrAlreadyInRole),
		errors.Is(err, domain.ErrNotInRole),
		errors.Is(err, domain.ErrRolePopulated):
		return http.StatusConflict
	case errors.Is(err, domain.ErrServiceUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, errors.New("invalid JSON payload"), http.StatusBadRequest)
		return false
	}
	return true
}
