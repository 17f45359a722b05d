package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/trackers-salat/tracker-service/internal/devotion"
	sharedauth "github.com/trackers-salat/tracker-service/internal/shared/auth"
	sharederrors "github.com/trackers-salat/tracker-service/internal/shared/errors"
)

const (
	serviceTimeout  = 10 * time.Second
	maxPayloadBytes = 1 << 20 // 1MB
	maxPhotoBytes   = 5 << 20 // 5MB
	photoURLTTL     = 24 * time.Hour

	defaultStatisticsDays = 7
	defaultLiveDays       = 7
)

// PhotoStore persists profile photos and signs read URLs for them.
type PhotoStore interface {
	UploadProfilePhoto(ctx context.Context, userID string, data io.Reader, filename, contentType string) (string, error)
	SignedURL(ctx context.Context, objectPath string, expiration time.Duration) (string, error)
}

type handler struct {
	service *devotion.Service
	photos  PhotoStore
	logger  *slog.Logger
}

// RegisterRoutes mounts the tracker API. photos may be nil, in which case
// photo uploads are rejected.
func RegisterRoutes(r chi.Router, svc *devotion.Service, photos PhotoStore, logger *slog.Logger) {
	h := &handler{service: svc, photos: photos, logger: logger}

	r.Route("/v1/prayers", func(r chi.Router) {
		r.Get("/", h.listPrayers)
		r.Post("/", h.logPrayer)
		r.Patch("/{id}", h.updatePrayer)
		r.Delete("/{id}", h.deletePrayer)
	})

	r.Route("/v1/invocations", func(r chi.Router) {
		r.Get("/", h.listInvocations)
		r.Post("/", h.recordInvocation)
		r.Post("/{id}/increment", h.incrementInvocation)
		r.Delete("/{id}", h.deleteInvocation)
	})

	r.Route("/v1/invocation-options", func(r chi.Router) {
		r.Get("/", h.listInvocationOptions)
		r.Post("/", h.addInvocationOption)
		r.Delete("/", h.removeInvocationOption)
	})

	r.Route("/v1/catalog", func(r chi.Router) {
		r.Get("/", h.listCatalog)
		r.Post("/", h.addCatalogEntry)
		r.Delete("/{id}", h.removeCatalogEntry)
	})

	r.Get("/v1/statistics", h.statistics)
	r.Get("/v1/badges", h.badgeTable)
	r.Get("/v1/badges/me", h.badgeReport)
	r.Get("/v1/profile", h.getProfile)
	r.Post("/v1/profile/photo", h.uploadProfilePhoto)
	r.Get("/v1/live", h.live)
}

// requestUserID prefers the authenticated subject and falls back to the
// X-User-ID header set by trusted proxies.
func requestUserID(r *http.Request) string {
	if user, ok := sharedauth.UserFromContext(r.Context()); ok && user.UserID != "" {
		return user.UserID
	}
	return strings.TrimSpace(r.Header.Get("X-User-ID"))
}

func (h *handler) requireUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID := requestUserID(r)
	if userID == "" {
		writeError(w, r, sharederrors.CodeUnauthorized, "missing user ID")
		return "", false
	}
	return userID, true
}

// parseDays reads the days query parameter. 0 is accepted; callers decide
// what it means.
func parseDays(r *http.Request, fallback int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get("days"))
	if raw == "" {
		return fallback, nil
	}
	days, err := strconv.Atoi(raw)
	if err != nil || days < 0 {
		return 0, fmt.Errorf("days must be a non-negative integer")
	}
	return days, nil
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxPayloadBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return errPayloadTooLarge
		}
		return fmt.Errorf("invalid JSON payload")
	}
	return nil
}

var errPayloadTooLarge = errors.New("payload too large")

func writeDecodeError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, errPayloadTooLarge) {
		writeError(w, r, sharederrors.CodeTooLarge, err.Error())
		return
	}
	writeError(w, r, sharederrors.CodeBadRequest, err.Error())
}

func pathID(r *http.Request) string {
	return strings.TrimSpace(chi.URLParam(r, "id"))
}
