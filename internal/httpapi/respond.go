package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/trackers-salat/tracker-service/internal/devotion"
	sharederrors "github.com/trackers-salat/tracker-service/internal/shared/errors"
	"github.com/trackers-salat/tracker-service/internal/shared/logging"
)

type errorResponse = sharederrors.ErrorResponse

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, r *http.Request, code, message string) {
	writeJSON(w, sharederrors.ToStatusCode(code), errorResponse{
		Code:      code,
		Message:   message,
		RequestID: middleware.GetReqID(r.Context()),
	})
}

func (h *handler) respondServiceError(w http.ResponseWriter, r *http.Request, err error, userID, resource string) {
	switch {
	case errors.Is(err, devotion.ErrMissingUserID):
		writeError(w, r, sharederrors.CodeUnauthorized, "missing user ID")
	case errors.Is(err, devotion.ErrNotFound):
		writeError(w, r, sharederrors.CodeNotFound, resource+" not found")
	case errors.Is(err, devotion.ErrConflict):
		writeError(w, r, sharederrors.CodeConflict, resource+" already exists")
	case errors.Is(err, devotion.ErrInvalidInput):
		msg := strings.TrimSpace(err.Error())
		if i := strings.Index(msg, ":"); i >= 0 {
			msg = strings.TrimSpace(msg[i+1:])
		}
		writeError(w, r, sharederrors.CodeBadRequest, msg)
	case errors.Is(err, context.DeadlineExceeded):
		logRequestError(r.Context(), h.logger, "service timeout", err, userID)
		writeError(w, r, sharederrors.CodeUnavailable, "service timeout")
	default:
		logRequestError(r.Context(), h.logger, "service error", err, userID)
		writeError(w, r, sharederrors.CodeInternal, "internal server error")
	}
}

func logRequestError(ctx context.Context, logger *slog.Logger, message string, err error, userID string) {
	if logger == nil || err == nil {
		return
	}
	logging.WithRequestID(logger, middleware.GetReqID(ctx)).Error(message,
		slog.String("userId", userID),
		slog.Any("error", err),
	)
}
