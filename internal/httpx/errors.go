package httpx

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ariefcatur/boutique-orders/internal/apperr"
	"go.uber.org/zap"
)

// retryAfterSeconds is advertised on transient failures.
const retryAfterSeconds = "1"

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func statusFor(code apperr.Code) int {
	switch code {
	case apperr.CodeIncompleteData, apperr.CodeInvalidInput, apperr.CodeInvalidStatus, apperr.CodeInsufficientStock:
		return http.StatusBadRequest
	case apperr.CodeNotFound:
		return http.StatusNotFound
	case apperr.CodeConflict:
		return http.StatusConflict
	case apperr.CodeStoreUnavailable, apperr.CodeConstraintViolation:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// writeError renders err as {"error": code, "message": text}. Server side
// failures keep their cause out of the body and in the log.
func writeError(w http.ResponseWriter, r *http.Request, logger *zap.Logger, err error) {
	code := apperr.CodeOf(err)
	status := statusFor(code)

	msg := err.Error()
	var e *apperr.Error
	if errors.As(err, &e) {
		msg = e.Message
	}
	if status >= 500 {
		logger.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("code", string(code)),
			zap.Error(err))
		if code == "" {
			code, msg = "INTERNAL", "internal error"
		}
	}
	if apperr.Retryable(err) {
		w.Header().Set("Retry-After", retryAfterSeconds)
	}
	writeJSON(w, status, errorBody{Error: string(code), Message: msg})
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorBody{Error: string(apperr.CodeInvalidInput), Message: msg})
}
