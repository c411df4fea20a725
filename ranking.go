package main

import (
	"fmt"
	"math"
	"sort"
)

// RecommendationResult is one scored candidate. The explanation map carries
// every weighted component plus the final score under "final_score" so the
// formatting layer never has to re-derive anything.
type RecommendationResult struct {
	Fragrance   *Fragrance
	Score       float64
	Explanation map[string]float64
}

// rankCandidates sorts by score descending and truncates to limit. Ties break
// on fragrance id ascending so identical inputs always produce identical
// output. Truncation happens only after the full sort; limit never affects
// which candidates were considered.
func rankCandidates(candidates []RecommendationResult, limit int) []RecommendationResult {
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		return candidates[i].Fragrance.ID < candidates[j].Fragrance.ID
	})

	if limit > 0 && len(candidates) > limit {
		candidates = candidates[:limit]
	}
	return candidates
}

// PreferenceWeights are the component weights of the preference recommender.
// They must sum to 1.0.
type PreferenceWeights struct {
	NoteMatch   float64
	AccordMatch float64
	Quality     float64
	Popularity  float64
}

// DefaultPreferenceWeights returns the hand-tuned production weights.
func DefaultPreferenceWeights() PreferenceWeights {
	return PreferenceWeights{
		NoteMatch:   0.45,
		AccordMatch: 0.30,
		Quality:     0.20,
		Popularity:  0.05,
	}
}

func (w PreferenceWeights) Sum() float64 {
	return w.NoteMatch + w.AccordMatch + w.Quality + w.Popularity
}

// Validate checks the weights sum to 1.0 and none are negative.
func (w PreferenceWeights) Validate() error {
	if math.Abs(w.Sum()-1.0) > 1e-9 {
		return fmt.Errorf("preference weights sum to %.6f, must sum to 1.0", w.Sum())
	}
	for _, v := range []float64{w.NoteMatch, w.AccordMatch, w.Quality, w.Popularity} {
		if v < 0 {
			return fmt.Errorf("negative weight: %f", v)
		}
	}
	return nil
}

// SimilarityWeights are the component weights of the similarity recommender.
// The diversity weight applies only in collection mode; in single-target mode
// the four remaining weights sum to 0.98, leaving the 2% diversity headroom
// unused. That asymmetry is intentional and preserved as-is.
type SimilarityWeights struct {
	Note       float64
	Accord     float64
	Quality    float64
	Popularity float64
	Diversity  float64
}

// DefaultSimilarityWeights returns the hand-tuned production weights.
func DefaultSimilarityWeights() SimilarityWeights {
	return SimilarityWeights{
		Note:       0.40,
		Accord:     0.25,
		Quality:    0.25,
		Popularity: 0.08,
		Diversity:  0.02,
	}
}

func (w SimilarityWeights) Sum() float64 {
	return w.Note + w.Accord + w.Quality + w.Popularity + w.Diversity
}

// Validate checks the full collection-mode weight set sums to 1.0.
func (w SimilarityWeights) Validate() error {
	if math.Abs(w.Sum()-1.0) > 1e-9 {
		return fmt.Errorf("similarity weights sum to %.6f, must sum to 1.0", w.Sum())
	}
	for _, v := range []float64{w.Note, w.Accord, w.Quality, w.Popularity, w.Diversity} {
		if v < 0 {
			return fmt.Errorf("negative weight: %f", v)
		}
	}
	return nil
}

// PositionWeights control how much a matching pyramid position adds to note
// similarity. Middle (heart) notes dominate the scent for most of the wear,
// so middle > base > top always holds.
type PositionWeights struct {
	Top    float64
	Middle float64
	Base   float64
}

// DefaultPositionWeights returns the fixed pyramid position weights.
func DefaultPositionWeights() PositionWeights {
	return PositionWeights{
		Top:    0.25,
		Middle: 0.40,
		Base:   0.35,
	}
}
