package main

import (
	"errors"
	"math"
	"strings"
)

// ErrNoPreferences is returned when a preference request carries neither
// notes nor accords.
var ErrNoPreferences = errors.New("at least one note or accord preference is required")

// NotePreference is a user-declared note or accord with an importance rating
// on a 1 (hate) to 10 (love) scale.
type NotePreference struct {
	Name       string
	Importance int
}

// PreferenceRecommender scores the whole catalog against user-declared
// note/accord preferences. It holds no mutable state; concurrent Recommend
// calls are safe.
type PreferenceRecommender struct {
	catalog *Catalog
	weights PreferenceWeights
}

// NewPreferenceRecommender builds a preference recommender over the catalog.
func NewPreferenceRecommender(catalog *Catalog) *PreferenceRecommender {
	return &PreferenceRecommender{
		catalog: catalog,
		weights: DefaultPreferenceWeights(),
	}
}

// Recommend ranks every catalog fragrance against the given preferences,
// highest score first, truncated to limit. At least one of the two preference
// lists must be non-empty.
func (r *PreferenceRecommender) Recommend(preferredNotes, preferredAccords []NotePreference, limit int) ([]RecommendationResult, error) {
	if len(preferredNotes) == 0 && len(preferredAccords) == 0 {
		return nil, ErrNoPreferences
	}
	if limit <= 0 {
		limit = 10
	}

	candidates := make([]RecommendationResult, 0, r.catalog.Size())
	r.catalog.All(func(f *Fragrance) {
		noteMatch := r.notePreferenceMatch(f, preferredNotes)
		accordMatch := r.accordPreferenceMatch(f, preferredAccords)
		quality := r.catalog.QualityScore(f)
		popularity := r.catalog.PopularityScore(f)

		finalScore := noteMatch*r.weights.NoteMatch +
			accordMatch*r.weights.AccordMatch +
			quality*r.weights.Quality +
			popularity*r.weights.Popularity

		candidates = append(candidates, RecommendationResult{
			Fragrance: f,
			Score:     finalScore,
			Explanation: map[string]float64{
				"note_preference_match":   noteMatch,
				"accord_preference_match": accordMatch,
				"quality_score":           quality,
				"popularity_score":        popularity,
				"final_score":             finalScore,
			},
		})
	})

	return rankCandidates(candidates, limit), nil
}

// notePreferenceMatch scores how well the fragrance covers the user's note
// preferences. Matched importance is boosted by an inverse-log rarity
// multiplier and normalized by the total declared importance, so
// missing a heavily weighted note hurts even when everything else matches.
func (r *PreferenceRecommender) notePreferenceMatch(f *Fragrance, prefs []NotePreference) float64 {
	return r.preferenceMatch(f.Notes, prefs, r.catalog.noteFrequency, 0.5, 0.2)
}

// accordPreferenceMatch mirrors notePreferenceMatch with accord constants:
// accords are a coarser, lower-cardinality signal, so rarity matters less
// (0.3 bonus coefficient) and coverage matters more (0.25).
func (r *PreferenceRecommender) accordPreferenceMatch(f *Fragrance, prefs []NotePreference) float64 {
	return r.preferenceMatch(f.Accords, prefs, r.catalog.accordFrequency, 0.3, 0.25)
}

func (r *PreferenceRecommender) preferenceMatch(names []string, prefs []NotePreference, frequency func(string) int, rarityCoeff, coverageCoeff float64) float64 {
	if len(prefs) == 0 || len(names) == 0 {
		return 0.0
	}

	nameSet := stringSet(names)

	totalWeight := 0.0
	matchedWeight := 0.0
	matched := 0

	for _, pref := range prefs {
		name := strings.ToLower(strings.TrimSpace(pref.Name))
		totalWeight += float64(pref.Importance)

		if _, ok := nameSet[name]; !ok {
			continue
		}
		rarityMultiplier := 1 + (1/math.Log(float64(frequency(name))+1))*rarityCoeff
		matchedWeight += float64(pref.Importance) * rarityMultiplier
		matched++
	}

	if totalWeight == 0 {
		return 0.0
	}

	match := matchedWeight / totalWeight
	coverageBonus := float64(matched) / float64(len(prefs)) * coverageCoeff

	return math.Min(match+coverageBonus, 1.0)
}
