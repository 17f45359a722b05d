package httpapi

import (
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"

	sharederrors "github.com/trackers-salat/tracker-service/internal/shared/errors"
)

var (
	allowedImageExtensions = map[string]struct{}{
		".jpg":  {},
		".jpeg": {},
		".png":  {},
		".webp": {},
		".heic": {},
		".heif": {},
	}
	allowedImageMIMEs = map[string]struct{}{
		"image/jpeg": {},
		"image/png":  {},
		"image/webp": {},
		"image/heic": {},
		"image/heif": {},
	}
)

func (h *handler) statistics(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	days, err := parseDays(r, defaultStatisticsDays)
	if err != nil {
		writeError(w, r, sharederrors.CodeBadRequest, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), serviceTimeout)
	defer cancel()

	stats, err := h.service.Statistics(ctx, userID, days)
	if err != nil {
		h.respondServiceError(w, r, err, userID, "statistics")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *handler) badgeTable(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"items": h.service.BadgeTable()})
}

func (h *handler) badgeReport(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	days, err := parseDays(r, 0)
	if err != nil {
		writeError(w, r, sharederrors.CodeBadRequest, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), serviceTimeout)
	defer cancel()

	report, err := h.service.BadgeReport(ctx, userID, days)
	if err != nil {
		h.respondServiceError(w, r, err, userID, "badge")
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (h *handler) getProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), serviceTimeout)
	defer cancel()

	view, err := h.service.Profile(ctx, userID)
	if err != nil {
		h.respondServiceError(w, r, err, userID, "profile")
		return
	}
	view.PhotoURL = h.resolvePhotoURL(ctx, view.PhotoPath)
	writeJSON(w, http.StatusOK, view)
}

func (h *handler) uploadProfilePhoto(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	if h.photos == nil {
		writeError(w, r, sharederrors.CodeUnavailable, "photo uploads are not configured")
		return
	}

	file, header, err := readPhoto(w, r)
	if err != nil {
		writeDecodeError(w, r, err)
		return
	}
	defer file.Close()
	if err := validateImageFile(header); err != nil {
		writeError(w, r, sharederrors.CodeBadRequest, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), serviceTimeout)
	defer cancel()

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "image/jpeg"
	}
	objectPath, err := h.photos.UploadProfilePhoto(ctx, userID, file, header.Filename, contentType)
	if err != nil {
		logRequestError(r.Context(), h.logger, "photo upload failed", err, userID)
		writeError(w, r, sharederrors.CodeInternal, "failed to upload photo")
		return
	}

	profile, err := h.service.SetProfilePhoto(ctx, userID, objectPath)
	if err != nil {
		h.respondServiceError(w, r, err, userID, "profile")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"user_id":    profile.UserID,
		"photo_url":  h.resolvePhotoURL(ctx, profile.PhotoPath),
		"updated_at": profile.UpdatedAt,
	})
}

func readPhoto(w http.ResponseWriter, r *http.Request) (multipart.File, *multipart.FileHeader, error) {
	ct := strings.ToLower(r.Header.Get("Content-Type"))
	if !strings.HasPrefix(ct, "multipart/form-data") {
		return nil, nil, fmt.Errorf("multipart/form-data payload required")
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxPhotoBytes)
	if err := r.ParseMultipartForm(maxPhotoBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, nil, errPayloadTooLarge
		}
		return nil, nil, fmt.Errorf("invalid multipart payload")
	}
	file, header, err := r.FormFile("photo")
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil, fmt.Errorf("photo file is required")
	}
	if err != nil {
		return nil, nil, fmt.Errorf("invalid photo upload")
	}
	return file, header, nil
}

func validateImageFile(header *multipart.FileHeader) error {
	if header == nil {
		return fmt.Errorf("invalid photo upload")
	}
	ext := strings.ToLower(filepath.Ext(header.Filename))
	if _, ok := allowedImageExtensions[ext]; !ok {
		return fmt.Errorf("unsupported image type; allowed formats: jpg, jpeg, png, webp, heic, heif")
	}
	if ct := strings.ToLower(header.Header.Get("Content-Type")); ct != "" {
		if _, ok := allowedImageMIMEs[ct]; !ok {
			return fmt.Errorf("unsupported image content type; allowed: image/jpeg, image/png, image/webp, image/heic, image/heif")
		}
	}
	return nil
}

func (h *handler) resolvePhotoURL(ctx context.Context, raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}
	if strings.HasPrefix(trimmed, "http://") || strings.HasPrefix(trimmed, "https://") {
		return trimmed
	}
	if h.photos == nil {
		return ""
	}
	url, err := h.photos.SignedURL(ctx, trimmed, photoURLTTL)
	if err != nil {
		logRequestError(ctx, h.logger, "sign photo url failed", err, "")
		return ""
	}
	return url
}
