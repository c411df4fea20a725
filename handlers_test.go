package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestServer builds a server with the engines preloaded from rows and the
// search index disabled, so handlers exercise the in-memory fallback.
func newTestServer(rows []map[string]interface{}) *server {
	s := newServer(nil)
	s.search = &searchService{indexName: "fragrances"}
	if rows != nil {
		s.engines.Store(newRecommenderSet(rows))
	}
	return s
}

func doJSON(t *testing.T, s *server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	s.routes().ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorResponse {
	t.Helper()
	var resp errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestHandleNoteBased(t *testing.T) {
	s := newTestServer(testRows())

	rec := doJSON(t, s, http.MethodPost, "/api/v1/recommendations/note-based",
		`{"preferred_notes":[{"name":"Vanilla","importance":9}],"limit":10}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp noteBasedResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	assert.NotEmpty(t, resp.RequestID)
	assert.Equal(t, []string{"vanilla"}, resp.UserProfile.LovedNotes)
	assert.Equal(t, 1, resp.UserProfile.TotalPreferences)

	require.Len(t, resp.Recommendations, 3)
	for i, item := range resp.Recommendations {
		assert.Equal(t, i+1, item.Rank)
		assert.Contains(t, item.Explanation.Components, "final_score")
	}
	assert.Equal(t, "f1", resp.Recommendations[0].Fragrance.ID)
	assert.Contains(t, resp.Recommendations[0].Explanation.PrimaryReason, "vanilla")
	assert.Equal(t, []string{"vanilla"}, resp.Recommendations[0].Explanation.SharedNotes)
	assert.NotEmpty(t, resp.Recommendations[0].Explanation.QualityNote)
}

func TestHandleNoteBasedValidation(t *testing.T) {
	s := newTestServer(testRows())

	cases := []struct {
		name string
		body string
	}{
		{"empty preferences", `{"preferred_notes":[],"preferred_accords":[]}`},
		{"blank name", `{"preferred_notes":[{"name":"  ","importance":5}]}`},
		{"importance too high", `{"preferred_notes":[{"name":"vanilla","importance":11}]}`},
		{"importance too low", `{"preferred_notes":[{"name":"vanilla","importance":0}]}`},
		{"duplicate names", `{"preferred_notes":[{"name":"Vanilla","importance":5},{"name":"vanilla","importance":7}]}`},
		{"malformed json", `{"preferred_notes":`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := doJSON(t, s, http.MethodPost, "/api/v1/recommendations/note-based", tc.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, "invalid_request", decodeError(t, rec).ErrorCode)
		})
	}
}

func TestHandleNoteBasedTooManyNotes(t *testing.T) {
	s := newTestServer(testRows())

	prefs := make([]string, 0, maxPreferredNotes+1)
	for i := 0; i <= maxPreferredNotes; i++ {
		prefs = append(prefs, `{"name":"note`+string(rune('a'+i%26))+string(rune('a'+i/26))+`","importance":5}`)
	}
	body := `{"preferred_notes":[` + strings.Join(prefs, ",") + `]}`

	rec := doJSON(t, s, http.MethodPost, "/api/v1/recommendations/note-based", body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleNoteBasedNotInitialized(t *testing.T) {
	s := newTestServer(nil)

	rec := doJSON(t, s, http.MethodPost, "/api/v1/recommendations/note-based",
		`{"preferred_notes":[{"name":"vanilla","importance":9}]}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "service_unavailable", decodeError(t, rec).ErrorCode)
}

func TestHandleSimilaritySingleTarget(t *testing.T) {
	s := newTestServer(testRows())

	// a single id may arrive as a plain string instead of a list
	rec := doJSON(t, s, http.MethodPost, "/api/v1/recommendations/similarity",
		`{"target_fragrance_ids":"f1","limit":5}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp similarityResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	assert.Equal(t, "single", resp.AnalysisType)
	require.Len(t, resp.TargetFragrances, 1)
	assert.Equal(t, "f1", resp.TargetFragrances[0].ID)

	require.Len(t, resp.Recommendations, 2)
	for _, item := range resp.Recommendations {
		assert.NotEqual(t, "f1", item.Fragrance.ID)
		assert.NotContains(t, item.Explanation.Components, "diversity_bonus")
	}
	assert.Contains(t, resp.Recommendations[0].Explanation.PrimaryReason, "first")
}

func TestHandleSimilarityCollection(t *testing.T) {
	s := newTestServer(collectionRows())

	rec := doJSON(t, s, http.MethodPost, "/api/v1/recommendations/similarity",
		`{"target_fragrance_ids":["t1","t2"],"limit":10}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp similarityResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	assert.Equal(t, "collection", resp.AnalysisType)
	require.Len(t, resp.TargetFragrances, 2)
	require.Len(t, resp.Recommendations, 3)
	for _, item := range resp.Recommendations {
		assert.Contains(t, item.Explanation.Components, "diversity_bonus")
	}
}

func TestHandleSimilarityValidation(t *testing.T) {
	s := newTestServer(testRows())

	rec := doJSON(t, s, http.MethodPost, "/api/v1/recommendations/similarity",
		`{"target_fragrance_ids":[]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// whitespace-only ids are dropped before validation
	rec = doJSON(t, s, http.MethodPost, "/api/v1/recommendations/similarity",
		`{"target_fragrance_ids":["  "]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	ids := make([]string, maxTargetFragrances+1)
	for i := range ids {
		ids[i] = `"f1"`
	}
	rec = doJSON(t, s, http.MethodPost, "/api/v1/recommendations/similarity",
		`{"target_fragrance_ids":[`+strings.Join(ids, ",")+`]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleSimilarityUnknownTarget(t *testing.T) {
	s := newTestServer(testRows())

	rec := doJSON(t, s, http.MethodPost, "/api/v1/recommendations/similarity",
		`{"target_fragrance_ids":["no-such-id"]}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", decodeError(t, rec).ErrorCode)
}

func TestHandleSearch(t *testing.T) {
	s := newTestServer(testRows())

	rec := doJSON(t, s, http.MethodGet, "/api/v1/recommendations/search?q=second", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var results []SearchResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &results))
	require.Len(t, results, 1)
	assert.Equal(t, "f2", results[0].ID)
	assert.Equal(t, "Second", results[0].Name)
}

func TestHandleSearchQueryTooShort(t *testing.T) {
	s := newTestServer(testRows())

	rec := doJSON(t, s, http.MethodGet, "/api/v1/recommendations/search?q=a", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleAutocomplete(t *testing.T) {
	s := newTestServer(testRows())

	rec := doJSON(t, s, http.MethodGet, "/api/v1/recommendations/autocomplete?q=fir", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var results []SearchResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &results))
	require.Len(t, results, 1)
	assert.Equal(t, "f1", results[0].ID)

	rec = doJSON(t, s, http.MethodGet, "/api/v1/recommendations/autocomplete", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandlePopular(t *testing.T) {
	rows := append(testRows(),
		row("obscure", "barely rated", []string{"iris"}, nil, nil, nil, 4.5, 12))
	s := newTestServer(rows)

	rec := doJSON(t, s, http.MethodGet, "/api/v1/recommendations/popular?limit=10", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var results []SearchResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &results))
	// the 12-rating fragrance misses the popularity floor
	require.Len(t, results, 3)
	assert.Equal(t, "f1", results[0].ID)
}

func TestHandleHealth(t *testing.T) {
	s := newTestServer(nil)

	rec := doJSON(t, s, http.MethodGet, "/api/v1/recommendations/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	s.engines.Store(newRecommenderSet(testRows()))
	rec = doJSON(t, s, http.MethodGet, "/api/v1/recommendations/health", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var status map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, "healthy", status["status"])
	assert.Equal(t, float64(3), status["catalog_size"])
}

func TestHandleReloadWithoutDatabase(t *testing.T) {
	s := newTestServer(testRows())

	rec := doJSON(t, s, http.MethodPost, "/api/v1/recommendations/reload", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestIDListUnmarshal(t *testing.T) {
	var l idList
	require.NoError(t, json.Unmarshal([]byte(`"abc"`), &l))
	assert.Equal(t, idList{"abc"}, l)

	require.NoError(t, json.Unmarshal([]byte(`["a","b"]`), &l))
	assert.Equal(t, idList{"a", "b"}, l)

	assert.Error(t, json.Unmarshal([]byte(`42`), &l))
}

func TestClampLimit(t *testing.T) {
	assert.Equal(t, defaultLimit, clampLimit(0))
	assert.Equal(t, defaultLimit, clampLimit(-5))
	assert.Equal(t, 25, clampLimit(25))
	assert.Equal(t, maxLimit, clampLimit(1000))
}

func TestQueryLimit(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?limit=30", nil)
	assert.Equal(t, 30, queryLimit(req, 10, 50))

	req = httptest.NewRequest(http.MethodGet, "/?limit=999", nil)
	assert.Equal(t, 50, queryLimit(req, 10, 50))

	req = httptest.NewRequest(http.MethodGet, "/?limit=abc", nil)
	assert.Equal(t, 10, queryLimit(req, 10, 50))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Equal(t, 10, queryLimit(req, 10, 50))
}
