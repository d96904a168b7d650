package activity

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/meridian-books/meridian/internal/shared"
)

// Handler exposes the activity timeline over HTTP.
type Handler struct {
	Service *Service
	Logger  *slog.Logger
}

// MountRoutes registers the timeline endpoints on the given router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.timeline)
}

type logEntry struct {
	ID            uuid.UUID      `json:"id"`
	CompanyID     uuid.UUID      `json:"company_id"`
	ActorID       uuid.UUID      `json:"actor_id"`
	ActivityType  string         `json:"activity_type"`
	EntityType    string         `json:"entity_type"`
	EntityID      string         `json:"entity_id"`
	Action        string         `json:"action"`
	PreviousState map[string]any `json:"previous_state,omitempty"`
	NewState      map[string]any `json:"new_state,omitempty"`
	Severity      string         `json:"severity"`
	RequestID     string         `json:"request_id,omitempty"`
	At            time.Time      `json:"occurred_at"`
}

type timelineResponse struct {
	Rows   []logEntry `json:"rows"`
	Paging PagingInfo `json:"paging"`
}

func (h *Handler) timeline(w http.ResponseWriter, r *http.Request) {
	filters, err := parseFilters(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	result, err := h.Service.Timeline(r.Context(), filters)
	if err != nil {
		if h.Logger != nil {
			h.Logger.Error("activity timeline query", slog.Any("error", err))
		}
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	rows := make([]logEntry, 0, len(result.Rows))
	for _, row := range result.Rows {
		rows = append(rows, logEntry{
			ID:            row.ID,
			CompanyID:     row.CompanyID,
			ActorID:       row.ActorID,
			ActivityType:  row.ActivityType,
			EntityType:    row.EntityType,
			EntityID:      row.EntityID,
			Action:        row.Action,
			PreviousState: row.PreviousState,
			NewState:      row.NewState,
			Severity:      string(row.Severity),
			RequestID:     row.RequestID,
			At:            row.At,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(timelineResponse{Rows: rows, Paging: result.Paging})
}

func parseFilters(r *http.Request) (Filters, error) {
	q := r.URL.Query()
	filters := Filters{
		EntityType: q.Get("entity_type"),
		Severity:   shared.Severity(q.Get("severity")),
	}

	if v := q.Get("company_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return Filters{}, shared.Ef(shared.KindValidationFailed, "invalid company_id %q", v)
		}
		filters.CompanyID = id
	}
	if v := q.Get("actor_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return Filters{}, shared.Ef(shared.KindValidationFailed, "invalid actor_id %q", v)
		}
		filters.ActorID = id
	}
	if v := q.Get("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return Filters{}, shared.Ef(shared.KindValidationFailed, "invalid from timestamp %q", v)
		}
		filters.From = t
	}
	if v := q.Get("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return Filters{}, shared.Ef(shared.KindValidationFailed, "invalid to timestamp %q", v)
		}
		filters.To = t
	}
	if v := q.Get("page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return Filters{}, shared.Ef(shared.KindValidationFailed, "invalid page %q", v)
		}
		filters.Page = n
	}
	if v := q.Get("page_size"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return Filters{}, shared.Ef(shared.KindValidationFailed, "invalid page_size %q", v)
		}
		filters.PageSize = n
	}

	return filters, nil
}
