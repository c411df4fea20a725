package main

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"

	meilisearch "github.com/meilisearch/meilisearch-go"
)

// SearchResult is one name-search hit.
type SearchResult struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Brand    string `json:"brand"`
	FullName string `json:"full_name"`
}

// searchService wraps the Meilisearch index used for fragrance name search
// and autocomplete. When MEILI_URL is unset the handlers fall back to an
// in-memory substring scan over the catalog.
type searchService struct {
	baseURL   string
	apiKey    string
	indexName string
}

func newSearchService() *searchService {
	return &searchService{
		baseURL:   os.Getenv("MEILI_URL"),
		apiKey:    os.Getenv("MEILI_API_KEY"),
		indexName: "fragrances",
	}
}

func (s *searchService) enabled() bool {
	return s.baseURL != ""
}

// rebuild recreates the search index from the catalog. Returns the number of
// documents indexed.
func (s *searchService) rebuild(catalog *Catalog) (int, error) {
	if !s.enabled() {
		return 0, fmt.Errorf("search index not configured: MEILI_URL is empty")
	}

	client := meilisearch.New(s.baseURL, meilisearch.WithAPIKey(s.apiKey))
	_, _ = client.DeleteIndex(s.indexName)
	_, _ = client.CreateIndex(&meilisearch.IndexConfig{Uid: s.indexName, PrimaryKey: "id"})

	index := client.Index(s.indexName)
	settings := meilisearch.Settings{
		SearchableAttributes: []string{"name", "brand", "fullName"},
		FilterableAttributes: []string{"totalRatings"},
		SortableAttributes:   []string{"totalRatings"},
	}
	_, _ = index.UpdateSettings(&settings)

	docs := make([]map[string]interface{}, 0, catalog.Size())
	catalog.All(func(f *Fragrance) {
		docs = append(docs, map[string]interface{}{
			"id":           f.ID,
			"name":         displayName(f.Name),
			"brand":        displayName(f.Brand),
			"fullName":     displayName(f.Brand) + " " + displayName(f.Name),
			"totalRatings": f.NumRatings,
		})
	})

	indexed := 0
	batch := 1000
	for start := 0; start < len(docs); start += batch {
		end := start + batch
		if end > len(docs) {
			end = len(docs)
		}
		if _, err := index.AddDocuments(docs[start:end], nil); err != nil {
			return indexed, fmt.Errorf("index fragrances: %w", err)
		}
		indexed += end - start
	}
	return indexed, nil
}

// search queries the Meilisearch index, keeping only fragrances with at least
// minRatings ratings, most-rated first.
func (s *searchService) search(query string, limit, minRatings int) ([]SearchResult, error) {
	client := meilisearch.New(s.baseURL, meilisearch.WithAPIKey(s.apiKey))
	index := client.Index(s.indexName)

	req := &meilisearch.SearchRequest{
		Limit: int64(limit),
		Sort:  []string{"totalRatings:desc"},
	}
	if minRatings > 0 {
		req.Filter = fmt.Sprintf("totalRatings >= %d", minRatings)
	}

	res, err := index.Search(query, req)
	if err != nil {
		return nil, err
	}

	var hits []map[string]interface{}
	b, _ := json.Marshal(res.Hits)
	_ = json.Unmarshal(b, &hits)

	out := make([]SearchResult, 0, len(hits))
	for _, h := range hits {
		id := getString(h, "id")
		if id == "" {
			continue
		}
		out = append(out, SearchResult{
			ID:       id,
			Name:     getString(h, "name"),
			Brand:    getString(h, "brand"),
			FullName: getString(h, "fullName"),
		})
	}
	return out, nil
}

// searchCatalog is the in-memory fallback: substring match over normalized
// name, brand and combined name, most-rated first.
func searchCatalog(catalog *Catalog, query string, limit, minRatings int) []SearchResult {
	normalized := normalizeSearchText(query)
	if normalized == "" {
		return []SearchResult{}
	}
	variants := searchVariants(normalized)

	type scored struct {
		f *Fragrance
	}
	var matches []scored
	catalog.All(func(f *Fragrance) {
		if f.NumRatings < minRatings {
			return
		}
		name := normalizeSearchText(f.Name)
		brand := normalizeSearchText(f.Brand)
		combined := brand + " " + name
		for _, v := range variants {
			if strings.Contains(name, v) || strings.Contains(brand, v) || strings.Contains(combined, v) {
				matches = append(matches, scored{f: f})
				return
			}
		}
	})

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].f.NumRatings != matches[j].f.NumRatings {
			return matches[i].f.NumRatings > matches[j].f.NumRatings
		}
		return matches[i].f.ID < matches[j].f.ID
	})

	if len(matches) > limit {
		matches = matches[:limit]
	}
	out := make([]SearchResult, 0, len(matches))
	for _, m := range matches {
		out = append(out, SearchResult{
			ID:       m.f.ID,
			Name:     displayName(m.f.Name),
			Brand:    displayName(m.f.Brand),
			FullName: displayName(m.f.Brand) + " " + displayName(m.f.Name),
		})
	}
	return out
}

// popularFragrances lists the most-rated well-established fragrances, used
// for initial suggestions before the user has typed anything.
func popularFragrances(catalog *Catalog, limit, minRatings int) []SearchResult {
	var popular []*Fragrance
	catalog.All(func(f *Fragrance) {
		if f.NumRatings >= minRatings {
			popular = append(popular, f)
		}
	})

	sort.Slice(popular, func(i, j int) bool {
		if popular[i].NumRatings != popular[j].NumRatings {
			return popular[i].NumRatings > popular[j].NumRatings
		}
		return popular[i].ID < popular[j].ID
	})

	if len(popular) > limit {
		popular = popular[:limit]
	}
	out := make([]SearchResult, 0, len(popular))
	for _, f := range popular {
		out = append(out, SearchResult{
			ID:       f.ID,
			Name:     f.Name,
			Brand:    f.Brand,
			FullName: f.Brand + " " + f.Name,
		})
	}
	return out
}

var (
	dashUnderscoreRe = regexp.MustCompile(`[-_]+`)
	whitespaceRe     = regexp.MustCompile(`\s+`)
)

// normalizeSearchText lowercases and folds dashes/underscores into spaces so
// "Oud-Wood" and "oud wood" match.
func normalizeSearchText(text string) string {
	text = strings.ToLower(strings.TrimSpace(text))
	text = dashUnderscoreRe.ReplaceAllString(text, " ")
	return whitespaceRe.ReplaceAllString(text, " ")
}

// searchVariants returns the normalized query plus its dashed form, so
// catalogs storing slugged names still match spaced input.
func searchVariants(query string) []string {
	variants := []string{query}
	dashed := strings.ReplaceAll(query, " ", "-")
	if dashed != query {
		variants = append(variants, dashed)
	}
	return variants
}

// displayName turns a stored slug like "oud-wood" into "Oud Wood".
func displayName(name string) string {
	name = strings.ReplaceAll(name, "-", " ")
	name = strings.ReplaceAll(name, "_", " ")
	words := strings.Fields(name)
	for i, w := range words {
		r := []rune(w)
		if len(r) > 0 {
			words[i] = strings.ToUpper(string(r[0])) + string(r[1:])
		}
	}
	return strings.Join(words, " ")
}
