package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/zatekoja/obstetric-locator/internal/infrastructure/observability"
	apperrors "github.com/zatekoja/obstetric-locator/pkg/errors"
)

// ErrorBody is the error envelope returned by every endpoint.
type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail names the error kind and carries a readable message.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func respondWithJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

// respondWithError maps application errors to their status code. Anything
// else is logged and reported as INTERNAL without leaking its text.
func respondWithError(w http.ResponseWriter, r *http.Request, err error) {
	appErr, ok := apperrors.As(err)
	if !ok {
		appErr = apperrors.NewInternalError("unexpected error", err)
	}
	status := appErr.HTTPStatus()
	message := appErr.Message
	if status >= http.StatusInternalServerError {
		observability.LoggerFromContext(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
	}
	if appErr.Type == apperrors.ErrorTypeInternal {
		message = "internal error"
	}
	respondWithJSON(w, status, ErrorBody{Error: ErrorDetail{Code: string(appErr.Type), Message: message}})
}
