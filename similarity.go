package main

import (
	"errors"
	"fmt"
	"math"
)

// ErrNoTargets is returned when a similarity request carries no target ids.
var ErrNoTargets = errors.New("at least one target fragrance id is required")

// NotFoundError reports a similarity target id absent from the catalog.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("fragrance %s not found", e.ID)
}

// SimilarityRecommender ranks the catalog by similarity to one or more target
// fragrances. A single target uses pairwise weighted-Jaccard scoring; two or
// more targets aggregate into a collection profile with a diversity bonus.
// Stateless across calls; concurrent Recommend calls are safe.
type SimilarityRecommender struct {
	catalog   *Catalog
	weights   SimilarityWeights
	positions PositionWeights
}

// NewSimilarityRecommender builds a similarity recommender over the catalog.
func NewSimilarityRecommender(catalog *Catalog) *SimilarityRecommender {
	return &SimilarityRecommender{
		catalog:   catalog,
		weights:   DefaultSimilarityWeights(),
		positions: DefaultPositionWeights(),
	}
}

// Recommend ranks all catalog fragrances against the targets, excluding the
// targets themselves. Exactly one target selects single-target mode, two or
// more select collection mode. Every target id must exist in the catalog.
func (r *SimilarityRecommender) Recommend(targetIDs []string, limit int) ([]RecommendationResult, error) {
	if len(targetIDs) == 0 {
		return nil, ErrNoTargets
	}
	if limit <= 0 {
		limit = 10
	}

	targets := make([]*Fragrance, 0, len(targetIDs))
	for _, id := range targetIDs {
		f, ok := r.catalog.Get(id)
		if !ok {
			return nil, &NotFoundError{ID: id}
		}
		targets = append(targets, f)
	}

	if len(targets) == 1 {
		return r.recommendSingle(targets[0], limit), nil
	}
	return r.recommendCollection(targets, limit), nil
}

func (r *SimilarityRecommender) recommendSingle(target *Fragrance, limit int) []RecommendationResult {
	candidates := make([]RecommendationResult, 0, r.catalog.Size())

	r.catalog.All(func(candidate *Fragrance) {
		if candidate.ID == target.ID {
			return
		}

		noteSim := r.noteSimilarity(target, candidate)
		accordSim := r.accordSimilarity(target.Accords, candidate.Accords)
		quality := r.catalog.QualityScore(candidate)
		popularity := r.catalog.PopularityScore(candidate)

		finalScore := noteSim*r.weights.Note +
			accordSim*r.weights.Accord +
			quality*r.weights.Quality +
			popularity*r.weights.Popularity

		candidates = append(candidates, RecommendationResult{
			Fragrance: candidate,
			Score:     finalScore,
			Explanation: map[string]float64{
				"note_similarity":   noteSim,
				"accord_similarity": accordSim,
				"quality_score":     quality,
				"popularity_score":  popularity,
				"final_score":       finalScore,
			},
		})
	})

	return rankCandidates(candidates, limit)
}

func (r *SimilarityRecommender) recommendCollection(targets []*Fragrance, limit int) []RecommendationResult {
	targetIDs := make(map[string]struct{}, len(targets))
	for _, t := range targets {
		targetIDs[t.ID] = struct{}{}
	}
	profile := r.newCollectionProfile(targets)

	candidates := make([]RecommendationResult, 0, r.catalog.Size())
	r.catalog.All(func(candidate *Fragrance) {
		if _, isTarget := targetIDs[candidate.ID]; isTarget {
			return
		}

		noteSim := r.collectionNoteSimilarity(profile, candidate)
		accordSim := r.collectionAccordSimilarity(profile, candidate.Accords)
		quality := r.catalog.QualityScore(candidate)
		popularity := r.catalog.PopularityScore(candidate)
		diversity := r.diversityBonus(profile, candidate, len(targets))

		finalScore := noteSim*r.weights.Note +
			accordSim*r.weights.Accord +
			quality*r.weights.Quality +
			popularity*r.weights.Popularity +
			diversity*r.weights.Diversity

		candidates = append(candidates, RecommendationResult{
			Fragrance: candidate,
			Score:     finalScore,
			Explanation: map[string]float64{
				"note_similarity":   noteSim,
				"accord_similarity": accordSim,
				"quality_score":     quality,
				"popularity_score":  popularity,
				"diversity_bonus":   diversity,
				"final_score":       finalScore,
			},
		})
	})

	return rankCandidates(candidates, limit)
}

// noteSimilarity is a weighted Jaccard variant over the two note sets. Notes
// in the intersection contribute inverse-log rarity, boosted when they occupy
// the same pyramid position in both fragrances.
func (r *SimilarityRecommender) noteSimilarity(target, candidate *Fragrance) float64 {
	if len(target.Notes) == 0 || len(candidate.Notes) == 0 {
		return 0.0
	}

	targetSet := stringSet(target.Notes)
	candidateSet := stringSet(candidate.Notes)

	intersection := 0
	weighted := 0.0
	for note := range targetSet {
		if _, ok := candidateSet[note]; !ok {
			continue
		}
		intersection++
		rarity := 1 / math.Log(float64(r.catalog.noteFrequency(note))+1)
		weighted += rarity * r.positionBonus(note, target, candidate)
	}
	if intersection == 0 {
		return 0.0
	}

	union := len(targetSet) + len(candidateSet) - intersection
	jaccard := float64(intersection) / float64(union)
	similarity := jaccard*0.4 + math.Min(weighted/float64(union), 1.0)*0.6

	return math.Min(similarity, 1.0)
}

// positionBonus rewards a shared note for occupying the same pyramid position
// in both fragrances, cumulative across positions and capped at 2.0x.
func (r *SimilarityRecommender) positionBonus(note string, target, candidate *Fragrance) float64 {
	bonus := 1.0

	if containsName(target.TopNotes, note) && containsName(candidate.TopNotes, note) {
		bonus += r.positions.Top
	}
	if containsName(target.MiddleNotes, note) && containsName(candidate.MiddleNotes, note) {
		bonus += r.positions.Middle
	}
	if containsName(target.BaseNotes, note) && containsName(candidate.BaseNotes, note) {
		bonus += r.positions.Base
	}

	return math.Min(bonus, 2.0)
}

// accordSimilarity is the same rarity-weighted Jaccard shape without the
// position concept: accords are unordered tags.
func (r *SimilarityRecommender) accordSimilarity(targetAccords, candidateAccords []string) float64 {
	if len(targetAccords) == 0 || len(candidateAccords) == 0 {
		return 0.0
	}

	targetSet := stringSet(targetAccords)
	candidateSet := stringSet(candidateAccords)

	intersection := 0
	weighted := 0.0
	for accord := range targetSet {
		if _, ok := candidateSet[accord]; !ok {
			continue
		}
		intersection++
		weighted += 1 / math.Log(float64(r.catalog.accordFrequency(accord))+1)
	}
	if intersection == 0 {
		return 0.0
	}

	union := len(targetSet) + len(candidateSet) - intersection
	jaccard := float64(intersection) / float64(union)
	similarity := jaccard*0.3 + math.Min(weighted/float64(union), 1.0)*0.7

	return math.Min(similarity, 1.0)
}

// collectionProfile aggregates the targets' notes and accords into weight
// maps, each target contributing in proportion to its rating with a 0.6
// floor so poorly rated targets still count.
type collectionProfile struct {
	noteWeights       map[string]float64
	accordWeights     map[string]float64
	totalNoteWeight   float64
	totalAccordWeight float64
	quality           float64
	size              int
}

func (r *SimilarityRecommender) newCollectionProfile(targets []*Fragrance) *collectionProfile {
	p := &collectionProfile{
		noteWeights:   make(map[string]float64),
		accordWeights: make(map[string]float64),
		size:          len(targets),
	}

	totalRatings := 0
	totalWeightedRating := 0.0
	for _, f := range targets {
		qualityWeight := math.Max(f.AvgRating/5.0, 0.6)

		for _, note := range f.Notes {
			p.noteWeights[note] += qualityWeight
		}
		for _, accord := range f.Accords {
			p.accordWeights[accord] += qualityWeight
		}

		if f.NumRatings > 0 {
			totalRatings += f.NumRatings
			totalWeightedRating += f.AvgRating * float64(f.NumRatings)
		}
	}

	for _, w := range p.noteWeights {
		p.totalNoteWeight += w
	}
	for _, w := range p.accordWeights {
		p.totalAccordWeight += w
	}

	p.quality = 3.5
	if totalRatings > 0 {
		p.quality = totalWeightedRating / float64(totalRatings)
	}
	return p
}

// collectionNoteSimilarity scores a candidate against the collection profile.
// A note's preference strength is its share of the total profile weight
// rather than a binary presence flag, and the weighted/coverage blend is
// 80/20 because the aggregated signal is more reliable per note.
func (r *SimilarityRecommender) collectionNoteSimilarity(p *collectionProfile, candidate *Fragrance) float64 {
	if p.totalNoteWeight == 0 || len(candidate.Notes) == 0 {
		return 0.0
	}

	candidateSet := stringSet(candidate.Notes)

	weighted := 0.0
	matched := 0
	for note := range candidateSet {
		w, ok := p.noteWeights[note]
		if !ok {
			continue
		}
		matched++
		strength := w / p.totalNoteWeight
		rarity := 1 / math.Log(float64(r.catalog.noteFrequency(note))+1)
		weighted += strength * rarity * r.collectionPositionBonus(note, candidate)
	}

	coverage := float64(matched) / float64(len(candidateSet))
	similarity := weighted*0.8 + coverage*0.2

	return math.Min(similarity, 1.0)
}

// collectionPositionBonus rewards notes landing in meaningful positions of
// the candidate itself; there is no per-target position to compare against.
// Capped at 1.8x.
func (r *SimilarityRecommender) collectionPositionBonus(note string, candidate *Fragrance) float64 {
	bonus := 1.0

	if containsName(candidate.MiddleNotes, note) {
		bonus += r.positions.Middle * 0.8
	}
	if containsName(candidate.BaseNotes, note) {
		bonus += r.positions.Base * 0.9
	}
	if containsName(candidate.TopNotes, note) {
		bonus += r.positions.Top * 0.6
	}

	return math.Min(bonus, 1.8)
}

func (r *SimilarityRecommender) collectionAccordSimilarity(p *collectionProfile, candidateAccords []string) float64 {
	if p.totalAccordWeight == 0 || len(candidateAccords) == 0 {
		return 0.0
	}

	candidateSet := stringSet(candidateAccords)
	if len(candidateSet) == 0 {
		return 0.0
	}

	weighted := 0.0
	matched := 0
	for accord := range candidateSet {
		w, ok := p.accordWeights[accord]
		if !ok {
			continue
		}
		matched++
		strength := w / p.totalAccordWeight
		rarity := 1 / math.Log(float64(r.catalog.accordFrequency(accord))+1)
		weighted += strength * rarity
	}

	coverage := float64(matched) / float64(len(candidateSet))
	similarity := weighted*0.7 + coverage*0.3

	return math.Min(similarity, 1.0)
}

// diversityBonus rewards candidates whose accords are underrepresented in the
// collection profile (share below 0.30), so recommendations broaden the
// collection instead of duplicating it. Only meaningful for 2+ targets.
func (r *SimilarityRecommender) diversityBonus(p *collectionProfile, candidate *Fragrance, numTargets int) float64 {
	if numTargets < 2 || p.totalAccordWeight == 0 {
		return 0.0
	}

	score := 0.0
	for accord := range stringSet(candidate.Accords) {
		representation := p.accordWeights[accord] / p.totalAccordWeight
		if representation < 0.3 {
			score += 0.3 - representation
		}
	}

	return math.Min(score, 0.5)
}

func containsName(names []string, name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}
