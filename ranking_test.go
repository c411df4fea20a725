package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRankCandidatesOrdersAndTruncates(t *testing.T) {
	candidates := []RecommendationResult{
		{Fragrance: &Fragrance{ID: "b"}, Score: 0.5},
		{Fragrance: &Fragrance{ID: "c"}, Score: 0.9},
		{Fragrance: &Fragrance{ID: "a"}, Score: 0.5},
		{Fragrance: &Fragrance{ID: "d"}, Score: 0.1},
	}

	ranked := rankCandidates(candidates, 3)

	require.Len(t, ranked, 3)
	assert.Equal(t, "c", ranked[0].Fragrance.ID)
	// equal scores break ties on id ascending
	assert.Equal(t, "a", ranked[1].Fragrance.ID)
	assert.Equal(t, "b", ranked[2].Fragrance.ID)
}

func TestRankCandidatesLimitLargerThanInput(t *testing.T) {
	candidates := []RecommendationResult{
		{Fragrance: &Fragrance{ID: "a"}, Score: 0.5},
	}
	assert.Len(t, rankCandidates(candidates, 10), 1)
}

func TestDefaultPreferenceWeights(t *testing.T) {
	w := DefaultPreferenceWeights()
	require.NoError(t, w.Validate())
	assert.InDelta(t, 1.0, w.Sum(), 1e-9)
}

func TestPreferenceWeightsValidateRejectsBadSum(t *testing.T) {
	w := PreferenceWeights{NoteMatch: 0.5, AccordMatch: 0.5, Quality: 0.5}
	assert.Error(t, w.Validate())
}

func TestDefaultSimilarityWeights(t *testing.T) {
	w := DefaultSimilarityWeights()
	require.NoError(t, w.Validate())
	assert.InDelta(t, 1.0, w.Sum(), 1e-9)

	// single-target mode never applies the diversity weight
	singleModeSum := w.Note + w.Accord + w.Quality + w.Popularity
	assert.InDelta(t, 0.98, singleModeSum, 1e-9)
}

func TestDefaultPositionWeights(t *testing.T) {
	p := DefaultPositionWeights()
	assert.Greater(t, p.Middle, p.Base)
	assert.Greater(t, p.Base, p.Top)
}
