package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/trackers-salat/tracker-service/internal/shared/dto"
)

// Version is reported by the health endpoint.
const Version = "v0.1.0"

// DefaultRequestTimeout bounds every request, including live streams.
const DefaultRequestTimeout = 60 * time.Second

type routerOptions struct {
	requestTimeout time.Duration
}

// Option customises NewRouter.
type Option func(*routerOptions)

// WithRequestTimeout overrides DefaultRequestTimeout. Non-positive values are ignored.
func WithRequestTimeout(d time.Duration) Option {
	return func(o *routerOptions) {
		if d > 0 {
			o.requestTimeout = d
		}
	}
}

// NewRouter returns a chi router pre-configured with default middleware and a health endpoint.
func NewRouter(service string, logger *slog.Logger, register func(r chi.Router), opts ...Option) *chi.Mux {
	options := routerOptions{requestTimeout: DefaultRequestTimeout}
	for _, opt := range opts {
		opt(&options)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(options.requestTimeout))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, dto.HealthResponse{Status: "ok", Service: service, Version: Version})
	})

	if register != nil {
		register(r)
	}

	return r
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
