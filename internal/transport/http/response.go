package httptransport

import (
	"encoding/json"
	"net/http"

	"video-analysis-service/internal/apperrors"
)

type apiError struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, apiError{Message: msg})
}

// renderError maps the application error taxonomy onto HTTP status codes.
// Internal causes are not leaked to the client.
func renderError(w http.ResponseWriter, err error) {
	code := apperrors.CodeOf(err)
	switch code {
	case apperrors.ErrCodeValidation:
		writeErr(w, http.StatusBadRequest, err.Error())
	case apperrors.ErrCodeNotFound:
		writeErr(w, http.StatusNotFound, err.Error())
	case apperrors.ErrCodeForbidden:
		writeErr(w, http.StatusForbidden, err.Error())
	case apperrors.ErrCodeInvalidState:
		writeErr(w, http.StatusConflict, err.Error())
	case apperrors.ErrCodeUpstream:
		writeErr(w, http.StatusBadGateway, err.Error())
	default:
		writeErr(w, http.StatusInternalServerError, "internal server error")
	}
}
