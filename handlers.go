package main

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Request-shape limits, enforced at the API boundary so the engine never sees
// malformed preference lists.
const (
	maxPreferredNotes   = 20
	maxPreferredAccords = 15
	maxTargetFragrances = 10
	maxLimit            = 50
	defaultLimit        = 10
)

// recommenderSet is one immutable engine generation: a catalog snapshot and
// the two recommenders built over it. A reload builds a new set and swaps the
// pointer; in-flight requests keep scoring against the old one.
type recommenderSet struct {
	catalog    *Catalog
	preference *PreferenceRecommender
	similarity *SimilarityRecommender
	loadedAt   time.Time
}

func newRecommenderSet(rows []map[string]interface{}) *recommenderSet {
	catalog := NewCatalogFromRows(rows)
	return &recommenderSet{
		catalog:    catalog,
		preference: NewPreferenceRecommender(catalog),
		similarity: NewSimilarityRecommender(catalog),
		loadedAt:   time.Now(),
	}
}

type server struct {
	db      *sql.DB
	search  *searchService
	engines atomic.Pointer[recommenderSet]
}

func newServer(db *sql.DB) *server {
	return &server{
		db:     db,
		search: newSearchService(),
	}
}

// reload rebuilds the engines from a fresh catalog snapshot and atomically
// swaps them in. The search index rebuild is best effort; a failed rebuild
// leaves the previous index serving.
func (s *server) reload() (*recommenderSet, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not connected")
	}

	rows, err := LoadCatalogRows(s.db)
	if err != nil {
		return nil, err
	}

	set := newRecommenderSet(rows)
	s.engines.Store(set)
	log.Printf("Recommendation engines loaded with %d fragrances", set.catalog.Size())

	if s.search.enabled() {
		if indexed, err := s.search.rebuild(set.catalog); err != nil {
			log.Printf("Warning: search index rebuild failed: %v", err)
		} else {
			log.Printf("Search index rebuilt with %d documents", indexed)
		}
	}
	return set, nil
}

// currentEngines returns the live engine set, or nil before the first
// successful load.
func (s *server) currentEngines() *recommenderSet {
	return s.engines.Load()
}

// ---- request / response shapes ----

type notePreferenceInput struct {
	Name       string `json:"name"`
	Importance int    `json:"importance"`
}

type noteBasedRequest struct {
	PreferredNotes   []notePreferenceInput `json:"preferred_notes"`
	PreferredAccords []notePreferenceInput `json:"preferred_accords"`
	Limit            int                   `json:"limit"`
}

// idList accepts either a single JSON string or an array of strings, the two
// shapes clients send for target_fragrance_ids.
type idList []string

func (l *idList) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*l = idList{single}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err == nil {
		*l = idList(many)
		return nil
	}
	return fmt.Errorf("target_fragrance_ids must be a string or a list of strings")
}

type similarityRequest struct {
	TargetFragranceIDs idList `json:"target_fragrance_ids"`
	Limit              int    `json:"limit"`
}

type fragranceDetail struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Brand       string   `json:"brand"`
	TopNotes    []string `json:"top_notes"`
	MiddleNotes []string `json:"middle_notes"`
	BaseNotes   []string `json:"base_notes"`
	Accords     []string `json:"accords"`
	AvgRating   float64  `json:"avg_rating"`
	NumRatings  int      `json:"num_ratings"`
}

type recommendationExplanation struct {
	PrimaryReason   string             `json:"primary_reason"`
	SharedNotes     []string           `json:"shared_notes"`
	SharedAccords   []string           `json:"shared_accords"`
	QualityNote     string             `json:"quality_note,omitempty"`
	SimilarityScore float64            `json:"similarity_score"`
	Components      map[string]float64 `json:"components"`
}

type recommendationItem struct {
	Fragrance   fragranceDetail           `json:"fragrance"`
	Score       float64                   `json:"score"`
	Explanation recommendationExplanation `json:"explanation"`
	Rank        int                       `json:"rank"`
}

type userPreferenceProfile struct {
	LovedNotes       []string `json:"loved_notes"`
	LikedNotes       []string `json:"liked_notes"`
	DislikedNotes    []string `json:"disliked_notes"`
	LovedAccords     []string `json:"loved_accords"`
	LikedAccords     []string `json:"liked_accords"`
	DislikedAccords  []string `json:"disliked_accords"`
	TotalPreferences int      `json:"total_preferences"`
}

type noteBasedResponse struct {
	RequestID        string                `json:"request_id"`
	UserProfile      userPreferenceProfile `json:"user_profile"`
	Recommendations  []recommendationItem  `json:"recommendations"`
	ProcessingTimeMs float64               `json:"processing_time_ms"`
}

type targetFragranceInfo struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Brand string `json:"brand"`
}

type similarityResponse struct {
	RequestID        string                `json:"request_id"`
	TargetFragrances []targetFragranceInfo `json:"target_fragrances"`
	AnalysisType     string                `json:"analysis_type"`
	Recommendations  []recommendationItem  `json:"recommendations"`
	ProcessingTimeMs float64               `json:"processing_time_ms"`
}

type errorResponse struct {
	ErrorCode string `json:"error_code"`
	Message   string `json:"message"`
}

// ---- handlers ----

func (s *server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/recommendations/note-based", s.handleNoteBased)
	mux.HandleFunc("POST /api/v1/recommendations/similarity", s.handleSimilarity)
	mux.HandleFunc("GET /api/v1/recommendations/search", s.handleSearch)
	mux.HandleFunc("GET /api/v1/recommendations/autocomplete", s.handleAutocomplete)
	mux.HandleFunc("GET /api/v1/recommendations/popular", s.handlePopular)
	mux.HandleFunc("GET /api/v1/recommendations/health", s.handleHealth)
	mux.HandleFunc("POST /api/v1/recommendations/reload", s.handleReload)
	return mux
}

func (s *server) handleNoteBased(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	requestID := uuid.NewString()

	engines := s.currentEngines()
	if engines == nil {
		writeError(w, http.StatusServiceUnavailable, "service_unavailable", "Recommendation service not initialized")
		return
	}

	var req noteBasedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON body: "+err.Error())
		return
	}

	notes, err := validatePreferences(req.PreferredNotes, maxPreferredNotes, "note")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	accords, err := validatePreferences(req.PreferredAccords, maxPreferredAccords, "accord")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	log.Printf("[%s] Note-based recommendation request with %d notes, %d accords", requestID, len(notes), len(accords))

	recommendations, err := engines.preference.Recommend(notes, accords, clampLimit(req.Limit))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	items := make([]recommendationItem, 0, len(recommendations))
	for i, rec := range recommendations {
		items = append(items, preferenceItem(rec, i+1, notes, accords))
	}

	elapsed := float64(time.Since(start).Microseconds()) / 1000.0
	log.Printf("[%s] Returning %d recommendations in %.1fms", requestID, len(items), elapsed)

	writeJSON(w, http.StatusOK, noteBasedResponse{
		RequestID:        requestID,
		UserProfile:      buildUserProfile(notes, accords),
		Recommendations:  items,
		ProcessingTimeMs: elapsed,
	})
}

func (s *server) handleSimilarity(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	requestID := uuid.NewString()

	engines := s.currentEngines()
	if engines == nil {
		writeError(w, http.StatusServiceUnavailable, "service_unavailable", "Recommendation service not initialized")
		return
	}

	var req similarityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON body: "+err.Error())
		return
	}

	targetIDs := make([]string, 0, len(req.TargetFragranceIDs))
	for _, id := range req.TargetFragranceIDs {
		id = strings.TrimSpace(id)
		if id != "" {
			targetIDs = append(targetIDs, id)
		}
	}
	if len(targetIDs) == 0 {
		writeError(w, http.StatusBadRequest, "invalid_request", "At least one target fragrance ID is required")
		return
	}
	if len(targetIDs) > maxTargetFragrances {
		writeError(w, http.StatusBadRequest, "invalid_request",
			fmt.Sprintf("Maximum %d target fragrances allowed", maxTargetFragrances))
		return
	}

	log.Printf("[%s] Similarity request for %d fragrance(s)", requestID, len(targetIDs))

	targets := make([]targetFragranceInfo, 0, len(targetIDs))
	for _, id := range targetIDs {
		f, ok := engines.catalog.Get(id)
		if !ok {
			writeError(w, http.StatusNotFound, "not_found", fmt.Sprintf("Fragrance with ID %s not found", id))
			return
		}
		targets = append(targets, targetFragranceInfo{ID: f.ID, Name: f.Name, Brand: f.Brand})
	}

	analysisType := "single"
	if len(targetIDs) > 1 {
		analysisType = "collection"
	}

	recommendations, err := engines.similarity.Recommend(targetIDs, clampLimit(req.Limit))
	if err != nil {
		if nf, ok := err.(*NotFoundError); ok {
			writeError(w, http.StatusNotFound, "not_found", nf.Error())
			return
		}
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	items := make([]recommendationItem, 0, len(recommendations))
	for i, rec := range recommendations {
		items = append(items, similarityItem(rec, i+1, targets))
	}

	elapsed := float64(time.Since(start).Microseconds()) / 1000.0
	log.Printf("[%s] Returning %d %s recommendations in %.1fms", requestID, len(items), analysisType, elapsed)

	writeJSON(w, http.StatusOK, similarityResponse{
		RequestID:        requestID,
		TargetFragrances: targets,
		AnalysisType:     analysisType,
		Recommendations:  items,
		ProcessingTimeMs: elapsed,
	})
}

func (s *server) handleSearch(w http.ResponseWriter, r *http.Request) {
	engines := s.currentEngines()
	if engines == nil {
		writeError(w, http.StatusServiceUnavailable, "service_unavailable", "Recommendation service not initialized")
		return
	}

	q := r.URL.Query().Get("q")
	if len(strings.TrimSpace(q)) < 2 {
		writeError(w, http.StatusBadRequest, "invalid_request", "Query must be at least 2 characters")
		return
	}
	limit := queryLimit(r, 20, maxLimit)

	results, err := s.searchWithFallback(engines.catalog, q, limit, 0)
	if err != nil {
		log.Printf("Search error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "Search service error")
		return
	}
	writeJSON(w, http.StatusOK, results)
}

func (s *server) handleAutocomplete(w http.ResponseWriter, r *http.Request) {
	engines := s.currentEngines()
	if engines == nil {
		writeError(w, http.StatusServiceUnavailable, "service_unavailable", "Recommendation service not initialized")
		return
	}

	q := r.URL.Query().Get("q")
	if strings.TrimSpace(q) == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "Query is required")
		return
	}
	limit := queryLimit(r, 8, 20)

	// Only suggest fragrances with at least a handful of ratings.
	results, err := s.searchWithFallback(engines.catalog, q, limit, 5)
	if err != nil {
		log.Printf("Autocomplete error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "Autocomplete service error")
		return
	}
	writeJSON(w, http.StatusOK, results)
}

func (s *server) searchWithFallback(catalog *Catalog, q string, limit, minRatings int) ([]SearchResult, error) {
	if s.search.enabled() {
		results, err := s.search.search(q, limit, minRatings)
		if err == nil {
			return results, nil
		}
		log.Printf("Warning: search index query failed, falling back to catalog scan: %v", err)
	}
	return searchCatalog(catalog, q, limit, minRatings), nil
}

func (s *server) handlePopular(w http.ResponseWriter, r *http.Request) {
	engines := s.currentEngines()
	if engines == nil {
		writeError(w, http.StatusServiceUnavailable, "service_unavailable", "Recommendation service not initialized")
		return
	}

	limit := queryLimit(r, 10, maxLimit)
	writeJSON(w, http.StatusOK, popularFragrances(engines.catalog, limit, 100))
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	engines := s.currentEngines()
	status := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().Unix(),
	}
	code := http.StatusOK
	if engines == nil {
		status["status"] = "unavailable"
		status["recommenders"] = "not_loaded"
		code = http.StatusServiceUnavailable
	} else {
		status["recommenders"] = "loaded"
		status["catalog_size"] = engines.catalog.Size()
		status["loaded_at"] = engines.loadedAt.UTC().Format(time.RFC3339)
	}
	writeJSON(w, code, status)
}

func (s *server) handleReload(w http.ResponseWriter, r *http.Request) {
	set, err := s.reload()
	if err != nil {
		log.Printf("Reload failed: %v", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "Reload failed: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":       "success",
		"catalog_size": set.catalog.Size(),
	})
}

// ---- validation ----

func validatePreferences(prefs []notePreferenceInput, max int, kind string) ([]NotePreference, error) {
	if len(prefs) > max {
		return nil, fmt.Errorf("at most %d %s preferences allowed", max, kind)
	}

	out := make([]NotePreference, 0, len(prefs))
	seen := make(map[string]struct{}, len(prefs))
	for _, p := range prefs {
		name := strings.ToLower(strings.TrimSpace(p.Name))
		if name == "" {
			return nil, fmt.Errorf("%s name cannot be empty", kind)
		}
		if p.Importance < 1 || p.Importance > 10 {
			return nil, fmt.Errorf("importance for %s %q must be between 1 and 10", kind, name)
		}
		if _, dup := seen[name]; dup {
			return nil, fmt.Errorf("duplicate %s name: %q", kind, name)
		}
		seen[name] = struct{}{}
		out = append(out, NotePreference{Name: name, Importance: p.Importance})
	}
	return out, nil
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultLimit
	}
	if limit > maxLimit {
		return maxLimit
	}
	return limit
}

func queryLimit(r *http.Request, def, max int) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return def
	}
	if n > max {
		return max
	}
	return n
}

// ---- response formatting ----

func fragranceToDetail(f *Fragrance) fragranceDetail {
	return fragranceDetail{
		ID:          f.ID,
		Name:        f.Name,
		Brand:       f.Brand,
		TopNotes:    f.TopNotes,
		MiddleNotes: f.MiddleNotes,
		BaseNotes:   f.BaseNotes,
		Accords:     f.Accords,
		AvgRating:   f.AvgRating,
		NumRatings:  f.NumRatings,
	}
}

// preferenceItem formats one preference recommendation, surfacing the notes
// and accords shared with what the user actually likes (importance >= 6).
func preferenceItem(rec RecommendationResult, rank int, notes, accords []NotePreference) recommendationItem {
	liked := func(prefs []NotePreference) map[string]struct{} {
		set := make(map[string]struct{})
		for _, p := range prefs {
			if p.Importance >= 6 {
				set[p.Name] = struct{}{}
			}
		}
		return set
	}

	sharedNotes := sortedIntersection(liked(notes), stringSet(rec.Fragrance.Notes))
	sharedAccords := sortedIntersection(liked(accords), stringSet(rec.Fragrance.Accords))

	primaryReason := "Recommended based on your overall preferences"
	if len(sharedAccords) > 0 {
		primaryReason = "Matches your preferred style: " + strings.Join(head(sharedAccords, 2), ", ")
	} else if len(sharedNotes) > 0 {
		primaryReason = "Contains notes you love: " + strings.Join(head(sharedNotes, 3), ", ")
	}

	return recommendationItem{
		Fragrance: fragranceToDetail(rec.Fragrance),
		Score:     rec.Score,
		Explanation: recommendationExplanation{
			PrimaryReason:   primaryReason,
			SharedNotes:     sharedNotes,
			SharedAccords:   sharedAccords,
			QualityNote:     qualityNote(rec.Fragrance),
			SimilarityScore: rec.Score,
			Components:      rec.Explanation,
		},
		Rank: rank,
	}
}

func similarityItem(rec RecommendationResult, rank int, targets []targetFragranceInfo) recommendationItem {
	var primaryReason string
	switch {
	case len(targets) == 1:
		primaryReason = "Similar to " + targets[0].Name
	case len(targets) == 2:
		primaryReason = "Similar to " + targets[0].Name + " and " + targets[1].Name
	default:
		primaryReason = fmt.Sprintf("Similar to %s, %s and %d others",
			targets[0].Name, targets[1].Name, len(targets)-2)
	}

	return recommendationItem{
		Fragrance: fragranceToDetail(rec.Fragrance),
		Score:     rec.Score,
		Explanation: recommendationExplanation{
			PrimaryReason:   primaryReason,
			SharedNotes:     []string{},
			SharedAccords:   []string{},
			QualityNote:     qualityNote(rec.Fragrance),
			SimilarityScore: rec.Score,
			Components:      rec.Explanation,
		},
		Rank: rank,
	}
}

func qualityNote(f *Fragrance) string {
	if f.AvgRating >= 4.0 && f.NumRatings >= 100 {
		return fmt.Sprintf("Highly rated (%.1f/5 from %d reviews)", f.AvgRating, f.NumRatings)
	}
	return ""
}

func buildUserProfile(notes, accords []NotePreference) userPreferenceProfile {
	categorize := func(prefs []NotePreference) (loved, liked, disliked []string) {
		loved, liked, disliked = []string{}, []string{}, []string{}
		for _, p := range prefs {
			switch {
			case p.Importance >= 8:
				loved = append(loved, p.Name)
			case p.Importance >= 6:
				liked = append(liked, p.Name)
			case p.Importance <= 3:
				disliked = append(disliked, p.Name)
			}
		}
		return
	}

	lovedNotes, likedNotes, dislikedNotes := categorize(notes)
	lovedAccords, likedAccords, dislikedAccords := categorize(accords)

	return userPreferenceProfile{
		LovedNotes:       lovedNotes,
		LikedNotes:       likedNotes,
		DislikedNotes:    dislikedNotes,
		LovedAccords:     lovedAccords,
		LikedAccords:     likedAccords,
		DislikedAccords:  dislikedAccords,
		TotalPreferences: len(notes) + len(accords),
	}
}

func sortedIntersection(a, b map[string]struct{}) []string {
	out := []string{}
	for name := range a {
		if _, ok := b[name]; ok {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

func head(values []string, n int) []string {
	if len(values) > n {
		return values[:n]
	}
	return values
}

func writeJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("JSON encode error: %v", err)
	}
}

func writeError(w http.ResponseWriter, code int, errCode, message string) {
	writeJSON(w, code, errorResponse{ErrorCode: errCode, Message: message})
}
