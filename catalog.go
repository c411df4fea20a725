package main

import (
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"github.com/lib/pq"
)

// Fragrance is one catalog entry. Records are immutable after catalog
// construction; a reload builds a whole new catalog.
type Fragrance struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Brand       string   `json:"brand"`
	TopNotes    []string `json:"top_notes"`
	MiddleNotes []string `json:"middle_notes"`
	BaseNotes   []string `json:"base_notes"`
	Notes       []string `json:"-"` // all three positions concatenated, duplicates kept
	Accords     []string `json:"accords"`
	AvgRating   float64  `json:"avg_rating"`
	NumRatings  int      `json:"num_ratings"`
}

// Catalog is the read-only in-memory index both recommenders score against.
// Frequency tables are computed once at construction and never updated.
type Catalog struct {
	fragrances map[string]*Fragrance
	order      []string // insertion order, keeps catalog scans deterministic

	noteFrequencies   map[string]int // note -> number of fragrances containing it
	accordFrequencies map[string]int
	maxRatings        int
}

// NewCatalogFromRows builds a catalog from raw rows. Each row is a flat map
// as produced by the database loader (or any other source); note and accord
// fields may be string slices, comma/semicolon-delimited strings, or absent.
// Malformed fields coerce to safe defaults, they never fail the load.
func NewCatalogFromRows(rows []map[string]interface{}) *Catalog {
	c := &Catalog{
		fragrances:        make(map[string]*Fragrance, len(rows)),
		order:             make([]string, 0, len(rows)),
		noteFrequencies:   make(map[string]int),
		accordFrequencies: make(map[string]int),
		maxRatings:        1, // avoids division by zero on an empty catalog
	}

	noteAliases := BuildNoteAliasMap()
	accordAliases := BuildAccordAliasMap()

	for _, row := range rows {
		id := getString(row, "id")
		if id == "" {
			continue
		}

		top := cleanNameList(row["top_notes"], noteAliases)
		middle := cleanNameList(row["middle_notes"], noteAliases)
		base := cleanNameList(row["base_notes"], noteAliases)

		all := make([]string, 0, len(top)+len(middle)+len(base))
		all = append(all, top...)
		all = append(all, middle...)
		all = append(all, base...)

		f := &Fragrance{
			ID:          id,
			Name:        getString(row, "name"),
			Brand:       getString(row, "brand_name"),
			TopNotes:    top,
			MiddleNotes: middle,
			BaseNotes:   base,
			Notes:       all,
			Accords:     cleanNameList(row["main_accords"], accordAliases),
			AvgRating:   getFloat(row, "average_rating"),
			NumRatings:  getInt(row, "total_ratings"),
		}
		if f.NumRatings < 0 {
			f.NumRatings = 0
		}

		if _, exists := c.fragrances[id]; !exists {
			c.order = append(c.order, id)
		}
		c.fragrances[id] = f
	}

	for _, id := range c.order {
		f := c.fragrances[id]
		for note := range stringSet(f.Notes) {
			c.noteFrequencies[note]++
		}
		for accord := range stringSet(f.Accords) {
			c.accordFrequencies[accord]++
		}
		if f.NumRatings > c.maxRatings {
			c.maxRatings = f.NumRatings
		}
	}

	return c
}

// Get returns the fragrance with the given id.
func (c *Catalog) Get(id string) (*Fragrance, bool) {
	f, ok := c.fragrances[id]
	return f, ok
}

// Size returns the number of fragrances in the catalog.
func (c *Catalog) Size() int {
	return len(c.order)
}

// All iterates the catalog in insertion order.
func (c *Catalog) All(fn func(*Fragrance)) {
	for _, id := range c.order {
		fn(c.fragrances[id])
	}
}

// noteFrequency returns how many fragrances contain the note. Unknown notes
// report 1 so rarity weighting stays finite.
func (c *Catalog) noteFrequency(note string) int {
	if n, ok := c.noteFrequencies[note]; ok {
		return n
	}
	return 1
}

func (c *Catalog) accordFrequency(accord string) int {
	if n, ok := c.accordFrequencies[accord]; ok {
		return n
	}
	return 1
}

// cleanNameList normalizes a note/accord field of unknown shape into a list
// of lowercase trimmed names. Unsupported types degrade to an empty list.
func cleanNameList(value interface{}, aliases map[string]string) []string {
	var raw []string

	switch v := value.(type) {
	case nil:
		return nil
	case []string:
		raw = v
	case []interface{}:
		raw = make([]string, 0, len(v))
		for _, item := range v {
			if item == nil {
				continue
			}
			raw = append(raw, fmt.Sprint(item))
		}
	case string:
		raw = strings.FieldsFunc(v, func(r rune) bool {
			return r == ',' || r == ';'
		})
	default:
		return nil
	}

	out := make([]string, 0, len(raw))
	for _, name := range raw {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" {
			continue
		}
		if canonical, ok := aliases[name]; ok {
			name = canonical
		}
		out = append(out, name)
	}
	return out
}

// getString coerces a row field to a string. Numeric values format to their
// decimal form so ids stored as numbers survive ingestion.
func getString(m map[string]interface{}, key string) string {
	if v, ok := m[key]; ok {
		switch s := v.(type) {
		case string:
			return s
		case fmt.Stringer:
			return s.String()
		case int:
			return strconv.Itoa(s)
		case int64:
			return strconv.FormatInt(s, 10)
		case float64:
			return strconv.FormatFloat(s, 'f', -1, 64)
		}
	}
	return ""
}

func getFloat(m map[string]interface{}, key string) float64 {
	if v, ok := m[key]; ok {
		switch t := v.(type) {
		case float64:
			return t
		case float32:
			return float64(t)
		case int:
			return float64(t)
		case int64:
			return float64(t)
		case string:
			if f, err := strconv.ParseFloat(strings.TrimSpace(t), 64); err == nil {
				return f
			}
		}
	}
	return 0
}

func getInt(m map[string]interface{}, key string) int {
	if v, ok := m[key]; ok {
		switch t := v.(type) {
		case int:
			return t
		case int64:
			return int(t)
		case float64:
			return int(t)
		case float32:
			return int(t)
		}
	}
	return 0
}

func stringSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}

// LoadCatalogRows reads the full fragrance table into the flat row shape the
// catalog ingests. Ordered by id so rebuilt catalogs scan identically.
func LoadCatalogRows(db *sql.DB) ([]map[string]interface{}, error) {
	rows, err := db.Query(
		`SELECT id, name, COALESCE(brand_name, ''), top_notes, middle_notes, base_notes,
		        main_accords, average_rating, total_ratings
		   FROM fragrances
		  ORDER BY id`,
	)
	if err != nil {
		return nil, fmt.Errorf("load fragrances: %w", err)
	}
	defer rows.Close()

	out := make([]map[string]interface{}, 0, 1024)
	for rows.Next() {
		var (
			id, name, brand         string
			top, middle, base, accs pq.StringArray
			avgRating               sql.NullFloat64
			totalRatings            sql.NullInt64
		)
		if err := rows.Scan(&id, &name, &brand, &top, &middle, &base, &accs, &avgRating, &totalRatings); err != nil {
			return nil, fmt.Errorf("scan fragrance: %w", err)
		}
		out = append(out, map[string]interface{}{
			"id":             id,
			"name":           name,
			"brand_name":     brand,
			"top_notes":      []string(top),
			"middle_notes":   []string(middle),
			"base_notes":     []string(base),
			"main_accords":   []string(accs),
			"average_rating": avgRating.Float64,
			"total_ratings":  totalRatings.Int64,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read fragrances: %w", err)
	}
	return out, nil
}
