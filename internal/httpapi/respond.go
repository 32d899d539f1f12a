package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/romariotrain/truetestify/internal/auth"
	"github.com/romariotrain/truetestify/internal/billing"
	"github.com/romariotrain/truetestify/internal/review/models"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErrorJSON(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// errorStatus maps a service error to a status code and a message that is
// safe to show the caller.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound, "not found"
	case errors.Is(err, models.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, models.ErrFeatureDisabled):
		return http.StatusForbidden, err.Error()
	case errors.Is(err, models.ErrFileRequired),
		errors.Is(err, models.ErrUnexpectedFile),
		errors.Is(err, models.ErrConsentRequired),
		errors.Is(err, models.ErrInvalidArgument):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, billing.ErrInvalidSignature):
		return http.StatusBadRequest, "invalid webhook signature"
	case errors.Is(err, models.ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge, err.Error()
	case errors.Is(err, models.ErrUnsupportedMedia):
		return http.StatusUnsupportedMediaType, err.Error()
	case errors.Is(err, models.ErrConflict):
		return http.StatusConflict, "already exists"
	case errors.Is(err, models.ErrInvalidTransition):
		return http.StatusConflict, err.Error()
	case errors.Is(err, auth.ErrUnauthorized):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, billing.ErrUnavailable):
		return http.StatusServiceUnavailable, "billing unavailable"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

func writeError(w http.ResponseWriter, log zerolog.Logger, err error) {
	status, msg := errorStatus(err)
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Int("status", status).Msg("request failed")
	}
	writeErrorJSON(w, status, msg)
}
