package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/trackers-salat/tracker-service/internal/devotion"
	sharederrors "github.com/trackers-salat/tracker-service/internal/shared/errors"
)

// live streams a summary event every time a snapshot of the user's prayers
// or invocations arrives. The stream ends with the request context.
func (h *handler) live(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	days, err := parseDays(r, defaultLiveDays)
	if err != nil || days == 0 {
		writeError(w, r, sharederrors.CodeBadRequest, "days must be a positive integer")
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, r, sharederrors.CodeInternal, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ctx := r.Context()
	err = h.service.Watch(ctx, userID, days, func(summary devotion.Summary) {
		payload, err := json.Marshal(summary)
		if err != nil {
			logRequestError(ctx, h.logger, "encode summary failed", err, userID)
			return
		}
		fmt.Fprintf(w, "event: summary\ndata: %s\n\n", payload)
		flusher.Flush()
	})
	if err != nil {
		logRequestError(ctx, h.logger, "live stream failed", err, userID)
		fmt.Fprintf(w, "event: error\ndata: %q\n\n", "live stream interrupted")
		flusher.Flush()
	}
}
