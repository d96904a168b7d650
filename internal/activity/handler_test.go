package activity

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func timelineRouter(repo Repository) http.Handler {
	h := &Handler{Service: NewService(repo)}
	r := chi.NewRouter()
	r.Route("/activity", h.MountRoutes)
	return r
}

func TestHandlerReturnsPage(t *testing.T) {
	router := timelineRouter(&stubRepo{rows: seedRows(3)})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/activity?page_size=2", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp timelineResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Rows, 2)
	assert.True(t, resp.Paging.HasNext)
	assert.Equal(t, "ledger.post", resp.Rows[0].Action)
}

func TestHandlerRejectsBadFilters(t *testing.T) {
	router := timelineRouter(&stubRepo{})

	for _, query := range []string{
		"?company_id=not-a-uuid",
		"?actor_id=nope",
		"?from=yesterday",
		"?page=0",
		"?page_size=-1",
	} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/activity"+query, nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code, query)
	}
}
