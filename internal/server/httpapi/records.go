package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/vmartynov/offsync/internal/common"
	"github.com/vmartynov/offsync/internal/server/models"
	"github.com/vmartynov/offsync/internal/server/services"
)

// recordResponse is the wire form of a record. IDs travel as strings so
// clients never depend on the server's identity representation.
type recordResponse struct {
	ID        string         `json:"id"`
	UpdatedAt time.Time      `json:"updated_at"`
	Fields    map[string]any `json:"fields"`
}

func toResponse(rec *models.Record) recordResponse {
	return recordResponse{
		ID:        strconv.FormatInt(rec.ID, 10),
		UpdatedAt: rec.UpdatedAt,
		Fields:    rec.Fields,
	}
}

type listResponse struct {
	Items    []recordResponse `json:"items"`
	NextPage int              `json:"next_page"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (h *Handler) recordID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}

// CreateRecord handles POST /api/{kind}. The request body is the field set;
// the Idempotency-Key header makes retried creates safe.
func (h *Handler) CreateRecord(w http.ResponseWriter, r *http.Request) {
	var fields map[string]any
	if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}

	clientKey := r.Header.Get(common.IdempotencyKeyHeaderName)
	rec, err := h.records.Create(r.Context(), userID(r), chi.URLParam(r, "kind"), clientKey, fields)
	if err != nil {
		h.log.Error(r.Context(), "create failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusCreated, toResponse(rec))
}

// UpdateRecord handles PUT /api/{kind}/{id}. The body carries the changed
// fields; the X-Precondition header is the client's last-seen update time. A
// stale precondition returns 412 with the current record for in-round-trip
// conflict resolution.
func (h *Handler) UpdateRecord(w http.ResponseWriter, r *http.Request) {
	id, err := h.recordID(r)
	if err != nil {
		http.Error(w, "invalid record id", http.StatusBadRequest)
		return
	}

	var changes map[string]any
	if err := json.NewDecoder(r.Body).Decode(&changes); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}

	var precondition *time.Time
	if header := r.Header.Get(common.PreconditionHeaderName); header != "" {
		t, err := time.Parse(time.RFC3339Nano, header)
		if err != nil {
			http.Error(w, "invalid precondition", http.StatusBadRequest)
			return
		}
		precondition = &t
	}

	rec, err := h.records.Update(r.Context(), userID(r), chi.URLParam(r, "kind"), id, changes, precondition)

	var conflict *services.ConflictError
	switch {
	case errors.As(err, &conflict):
		writeJSON(w, http.StatusPreconditionFailed, toResponse(conflict.Current))
	case errors.Is(err, common.ErrorNotFound):
		http.Error(w, "record not found", http.StatusNotFound)
	case err != nil:
		h.log.Error(r.Context(), "update failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	default:
		writeJSON(w, http.StatusOK, toResponse(rec))
	}
}

// DeleteRecord handles DELETE /api/{kind}/{id}. Deleting an absent record
// succeeds.
func (h *Handler) DeleteRecord(w http.ResponseWriter, r *http.Request) {
	id, err := h.recordID(r)
	if err != nil {
		http.Error(w, "invalid record id", http.StatusBadRequest)
		return
	}

	if err := h.records.Delete(r.Context(), userID(r), chi.URLParam(r, "kind"), id); err != nil {
		h.log.Error(r.Context(), "delete failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListRecords handles GET /api/{kind}?updated_since=&page=&per_page=.
func (h *Handler) ListRecords(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	page, _ := strconv.Atoi(query.Get("page"))
	perPage, _ := strconv.Atoi(query.Get("per_page"))

	var updatedSince *time.Time
	if raw := query.Get("updated_since"); raw != "" {
		t, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			http.Error(w, "invalid updated_since", http.StatusBadRequest)
			return
		}
		updatedSince = &t
	}

	rows, nextPage, err := h.records.List(r.Context(), userID(r), chi.URLParam(r, "kind"), updatedSince, page, perPage)
	if err != nil {
		h.log.Error(r.Context(), "list failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	resp := listResponse{Items: make([]recordResponse, 0, len(rows)), NextPage: nextPage}
	for _, rec := range rows {
		resp.Items = append(resp.Items, toResponse(rec))
	}
	writeJSON(w, http.StatusOK, resp)
}
