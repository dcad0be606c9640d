package audit

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/campfirehq/campfire/pkg/httputil"
)

// Handlers provides the HTTP API over the audit trail.
type Handlers struct {
	store Store
}

// NewHandlers creates new audit handlers.
func NewHandlers(store Store) *Handlers {
	return &Handlers{store: store}
}

// RegisterRoutes registers audit log routes.
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/audit/events", h.listEvents).Methods("GET")
	router.HandleFunc("/audit/events/{id}", h.getEvent).Methods("GET")
	router.HandleFunc("/audit/export", h.exportEvents).Methods("GET")
	router.HandleFunc("/audit/summary", h.getSummary).Methods("GET")
}

// listEvents handles GET /audit/events
func (h *Handlers) listEvents(w http.ResponseWriter, r *http.Request) {
	filter := parseFilter(r)

	logs, total, err := h.store.GetAuditLogs(r.Context(), filter)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"logs":   logs,
		"total":  total,
		"limit":  filter.Limit,
		"offset": filter.Offset,
	})
}

// getEvent handles GET /audit/events/{id}
func (h *Handlers) getEvent(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	entry, err := h.store.GetEntry(r.Context(), id)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	if entry == nil {
		httputil.WriteNotFound(w, "event not found")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, entry)
}

// exportEvents handles GET /audit/export
func (h *Handlers) exportEvents(w http.ResponseWriter, r *http.Request) {
	filter := parseFilter(r)

	format := ExportFormat(httputil.ParseQueryString(r, "format", string(ExportFormatJSON)))

	data, err := h.store.Export(r.Context(), filter, format)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	switch format {
	case ExportFormatCSV:
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", "attachment; filename=audit-logs.csv")
	case ExportFormatNDJSON:
		w.Header().Set("Content-Type", "application/x-ndjson")
		w.Header().Set("Content-Disposition", "attachment; filename=audit-logs.ndjson")
	default:
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Content-Disposition", "attachment; filename=audit-logs.json")
	}

	w.Write(data)
}

// getSummary handles GET /audit/summary?community_id=N&days=N
func (h *Handlers) getSummary(w http.ResponseWriter, r *http.Request) {
	communityID, err := strconv.ParseInt(r.URL.Query().Get("community_id"), 10, 64)
	if err != nil {
		httputil.WriteBadRequest(w, "community_id is required")
		return
	}

	days, err := httputil.ParseQueryInt(r, "days", 30)
	if err != nil || days <= 0 {
		days = 30
	}

	summary, err := h.store.GetSecuritySummary(r.Context(), communityID, days)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, summary)
}

// parseFilter parses a search filter from query parameters.
func parseFilter(r *http.Request) Filter {
	query := r.URL.Query()
	filter := Filter{}

	if userID, err := httputil.ParseQueryInt64(r, "user_id", 0); err == nil && userID != 0 {
		filter.UserID = &userID
	}
	if communityID, err := httputil.ParseQueryInt64(r, "community_id", 0); err == nil && communityID != 0 {
		filter.CommunityID = &communityID
	}

	filter.Action = query.Get("action")
	filter.Resource = query.Get("resource")

	if startStr := query.Get("start_time"); startStr != "" {
		if t, err := time.Parse(time.RFC3339, startStr); err == nil {
			filter.StartTime = &t
		}
	}
	if endStr := query.Get("end_time"); endStr != "" {
		if t, err := time.Parse(time.RFC3339, endStr); err == nil {
			filter.EndTime = &t
		}
	}

	if limit, err := httputil.ParseQueryInt(r, "limit", 100); err == nil {
		filter.Limit = limit
	} else {
		filter.Limit = 100
	}
	if offset, err := httputil.ParseQueryInt(r, "offset", 0); err == nil {
		filter.Offset = offset
	}

	return filter
}
