package audit

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeAuditStore serves canned entries and records the filters it receives.
type fakeAuditStore struct {
	entries    []*Entry
	lastFilter Filter
}

func (f *fakeAuditStore) GetAuditLogs(ctx context.Context, filter Filter) ([]*Entry, int64, error) {
	f.lastFilter = filter
	return f.entries, int64(len(f.entries)), nil
}

func (f *fakeAuditStore) GetEntry(ctx context.Context, id int64) (*Entry, error) {
	for _, e := range f.entries {
		if e.ID == id {
			return e, nil
		}
	}
	return nil, nil
}

func (f *fakeAuditStore) GetSecuritySummary(ctx context.Context, communityID int64, days int) (*SecuritySummary, error) {
	return &SecuritySummary{
		TotalEvents:        int64(len(f.entries)),
		AccessDeniedEvents: int64(len(f.entries)),
		RecentEvents:       f.entries,
	}, nil
}

func (f *fakeAuditStore) CleanupOldLogs(ctx context.Context, retentionDays int) (int64, error) {
	return 0, nil
}

func (f *fakeAuditStore) Export(ctx context.Context, filter Filter, format ExportFormat) ([]byte, error) {
	f.lastFilter = filter
	switch format {
	case ExportFormatCSV:
		return exportCSV(f.entries)
	case ExportFormatNDJSON:
		return exportNDJSON(f.entries)
	default:
		return exportJSON(f.entries)
	}
}

func setupHandlers(entries ...*Entry) (*fakeAuditStore, *mux.Router) {
	store := &fakeAuditStore{entries: entries}
	router := mux.NewRouter()
	NewHandlers(store).RegisterRoutes(router)
	return store, router
}

func deniedEntry(id, userID int64) *Entry {
	return &Entry{
		ID:        id,
		UserID:    &userID,
		Action:    ActionAccessDenied,
		Resource:  "course:write",
		Reason:    "denied",
		CreatedAt: time.Now().UTC(),
	}
}

func TestListEvents(t *testing.T) {
	store, router := setupHandlers(deniedEntry(1, 200), deniedEntry(2, 201))

	req := httptest.NewRequest("GET", "/audit/events?user_id=200&action=ACCESS&limit=25&offset=5", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Logs  []*Entry `json:"logs"`
		Total int64    `json:"total"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Len(t, body.Logs, 2)
	assert.Equal(t, int64(2), body.Total)

	require.NotNil(t, store.lastFilter.UserID)
	assert.Equal(t, int64(200), *store.lastFilter.UserID)
	assert.Equal(t, "ACCESS", store.lastFilter.Action)
	assert.Equal(t, 25, store.lastFilter.Limit)
	assert.Equal(t, 5, store.lastFilter.Offset)
}

func TestListEventsDefaultLimit(t *testing.T) {
	store, router := setupHandlers()

	req := httptest.NewRequest("GET", "/audit/events", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 100, store.lastFilter.Limit)
}

func TestGetEvent(t *testing.T) {
	_, router := setupHandlers(deniedEntry(5, 200))

	req := httptest.NewRequest("GET", "/audit/events/5", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var entry Entry
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &entry))
	assert.Equal(t, int64(5), entry.ID)
}

func TestGetEventNotFound(t *testing.T) {
	_, router := setupHandlers()

	req := httptest.NewRequest("GET", "/audit/events/99", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetEventBadID(t *testing.T) {
	_, router := setupHandlers()

	req := httptest.NewRequest("GET", "/audit/events/abc", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestExportEvents(t *testing.T) {
	tests := []struct {
		format      string
		contentType string
	}{
		{"", "application/json"},
		{"json", "application/json"},
		{"csv", "text/csv"},
		{"ndjson", "application/x-ndjson"},
	}

	for _, tt := range tests {
		t.Run("format_"+tt.format, func(t *testing.T) {
			_, router := setupHandlers(deniedEntry(1, 200))

			url := "/audit/export"
			if tt.format != "" {
				url += "?format=" + tt.format
			}
			req := httptest.NewRequest("GET", url, nil)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, tt.contentType, w.Header().Get("Content-Type"))
			assert.Contains(t, w.Header().Get("Content-Disposition"), "attachment")
		})
	}
}

func TestGetSummary(t *testing.T) {
	_, router := setupHandlers(deniedEntry(1, 200))

	req := httptest.NewRequest("GET", "/audit/summary?community_id=1&days=7", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var summary SecuritySummary
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &summary))
	assert.Equal(t, int64(1), summary.TotalEvents)
}

func TestGetSummaryRequiresCommunityID(t *testing.T) {
	_, router := setupHandlers()

	req := httptest.NewRequest("GET", "/audit/summary", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
