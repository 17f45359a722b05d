package httpapi

import (
	"context"
	"net/http"
	"strings"

	"github.com/trackers-salat/tracker-service/internal/devotion"
	sharederrors "github.com/trackers-salat/tracker-service/internal/shared/errors"
)

type logPrayerRequest struct {
	Type     string `json:"type"`
	Location string `json:"location"`
	Note     string `json:"note"`
	OnTime   bool   `json:"on_time"`
}

type updatePrayerRequest struct {
	Type     *string `json:"type"`
	Location *string `json:"location"`
	Note     *string `json:"note"`
	OnTime   *bool   `json:"on_time"`
}

type recordInvocationRequest struct {
	Name     string `json:"name"`
	Category string `json:"category"`
	Count    int    `json:"count"`
}

type nameRequest struct {
	Name string `json:"name"`
}

type catalogRequest struct {
	Text string `json:"text"`
}

// ===== Prayers =====

func (h *handler) listPrayers(w http.ResponseWriter, r *http.Request) {
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

	prayers, err := h.service.ListPrayers(ctx, userID, days)
	if err != nil {
		h.respondServiceError(w, r, err, userID, "prayer")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": prayers})
}

func (h *handler) logPrayer(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	var req logPrayerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeDecodeError(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), serviceTimeout)
	defer cancel()

	prayer, err := h.service.LogPrayer(ctx, devotion.PrayerInput{
		UserID:   userID,
		Type:     req.Type,
		Location: req.Location,
		Note:     req.Note,
		OnTime:   req.OnTime,
	})
	if err != nil {
		h.respondServiceError(w, r, err, userID, "prayer")
		return
	}
	writeJSON(w, http.StatusCreated, prayer)
}

func (h *handler) updatePrayer(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	id := pathID(r)
	if id == "" {
		writeError(w, r, sharederrors.CodeBadRequest, "prayer ID required")
		return
	}
	var req updatePrayerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeDecodeError(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), serviceTimeout)
	defer cancel()

	prayer, err := h.service.UpdatePrayer(ctx, userID, id, devotion.PrayerPatch{
		Type:     req.Type,
		Location: req.Location,
		Note:     req.Note,
		OnTime:   req.OnTime,
	})
	if err != nil {
		h.respondServiceError(w, r, err, userID, "prayer")
		return
	}
	writeJSON(w, http.StatusOK, prayer)
}

func (h *handler) deletePrayer(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	id := pathID(r)
	if id == "" {
		writeError(w, r, sharederrors.CodeBadRequest, "prayer ID required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), serviceTimeout)
	defer cancel()

	if err := h.service.DeletePrayer(ctx, userID, id); err != nil {
		h.respondServiceError(w, r, err, userID, "prayer")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ===== Invocations =====

func (h *handler) listInvocations(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	// Without days the list is today's counters.
	days, err := parseDays(r, -1)
	if err != nil {
		writeError(w, r, sharederrors.CodeBadRequest, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), serviceTimeout)
	defer cancel()

	var invocations []devotion.Invocation
	if days < 0 {
		invocations, err = h.service.TodayInvocations(ctx, userID)
	} else {
		invocations, err = h.service.ListInvocations(ctx, userID, days)
	}
	if err != nil {
		h.respondServiceError(w, r, err, userID, "invocation")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": invocations})
}

func (h *handler) recordInvocation(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	var req recordInvocationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeDecodeError(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), serviceTimeout)
	defer cancel()

	inv, err := h.service.RecordInvocation(ctx, devotion.InvocationInput{
		UserID:   userID,
		Name:     req.Name,
		Category: req.Category,
		Count:    req.Count,
	})
	if err != nil {
		h.respondServiceError(w, r, err, userID, "invocation")
		return
	}
	writeJSON(w, http.StatusCreated, inv)
}

func (h *handler) incrementInvocation(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	id := pathID(r)
	if id == "" {
		writeError(w, r, sharederrors.CodeBadRequest, "invocation ID required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), serviceTimeout)
	defer cancel()

	inv, err := h.service.IncrementInvocation(ctx, userID, id)
	if err != nil {
		h.respondServiceError(w, r, err, userID, "invocation")
		return
	}
	writeJSON(w, http.StatusOK, inv)
}

func (h *handler) deleteInvocation(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	id := pathID(r)
	if id == "" {
		writeError(w, r, sharederrors.CodeBadRequest, "invocation ID required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), serviceTimeout)
	defer cancel()

	if err := h.service.DeleteInvocation(ctx, userID, id); err != nil {
		h.respondServiceError(w, r, err, userID, "invocation")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ===== Invocation options =====

func (h *handler) listInvocationOptions(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), serviceTimeout)
	defer cancel()

	options, err := h.service.InvocationOptions(ctx, userID)
	if err != nil {
		h.respondServiceError(w, r, err, userID, "invocation option")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": options})
}

func (h *handler) addInvocationOption(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	var req nameRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeDecodeError(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), serviceTimeout)
	defer cancel()

	opt, err := h.service.AddInvocationOption(ctx, userID, req.Name)
	if err != nil {
		h.respondServiceError(w, r, err, userID, "invocation option")
		return
	}
	writeJSON(w, http.StatusCreated, opt)
}

func (h *handler) removeInvocationOption(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	name := r.URL.Query().Get("name")
	if strings.TrimSpace(name) == "" {
		writeError(w, r, sharederrors.CodeBadRequest, "name query parameter required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), serviceTimeout)
	defer cancel()

	if err := h.service.RemoveInvocationOption(ctx, userID, name); err != nil {
		h.respondServiceError(w, r, err, userID, "invocation option")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ===== Catalog =====

func (h *handler) listCatalog(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), serviceTimeout)
	defer cancel()

	entries, err := h.service.Catalog(ctx)
	if err != nil {
		h.respondServiceError(w, r, err, userID, "catalog entry")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": entries})
}

func (h *handler) addCatalogEntry(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	var req catalogRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeDecodeError(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), serviceTimeout)
	defer cancel()

	entry, err := h.service.AddCatalogEntry(ctx, req.Text)
	if err != nil {
		h.respondServiceError(w, r, err, userID, "catalog entry")
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

func (h *handler) removeCatalogEntry(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	id := pathID(r)
	if id == "" {
		writeError(w, r, sharederrors.CodeBadRequest, "catalog entry ID required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), serviceTimeout)
	defer cancel()

	if err := h.service.RemoveCatalogEntry(ctx, id); err != nil {
		h.respondServiceError(w, r, err, userID, "catalog entry")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
