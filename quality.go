package main

import "math"

// wilsonZ is the z-value for a 95% confidence interval.
const wilsonZ = 1.96

// wilsonScore returns the Wilson score interval lower bound for a proportion
// of positive ratings. More robust than a raw average for small samples: one
// 5-star rating scores below 500 ratings averaging 4.2.
func wilsonScore(positiveRatings float64, totalRatings int) float64 {
	if totalRatings == 0 {
		return 0.0
	}

	p := positiveRatings / float64(totalRatings)
	n := float64(totalRatings)
	z := wilsonZ

	denominator := 1 + z*z/n
	numerator := p + z*z/(2*n) - z*math.Sqrt((p*(1-p)+z*z/(4*n))/n)

	return math.Max(numerator/denominator, 0.0)
}

// QualityScore converts the fragrance's rating and sample size into a bounded
// confidence-adjusted quality estimate. Only ratings above the 2.5 midpoint
// count as positive evidence.
func (c *Catalog) QualityScore(f *Fragrance) float64 {
	if f.NumRatings == 0 || f.AvgRating == 0 {
		return 0.0
	}

	positiveRatio := math.Max((f.AvgRating-2.5)/2.5, 0)
	if positiveRatio > 1 {
		positiveRatio = 1
	}
	positiveRatings := float64(f.NumRatings) * positiveRatio

	return wilsonScore(positiveRatings, f.NumRatings)
}

// PopularityScore is the log-dampened rating count normalized against the
// most-rated fragrance in the catalog.
func (c *Catalog) PopularityScore(f *Fragrance) float64 {
	if f.NumRatings == 0 {
		return 0.0
	}

	normalized := math.Log(float64(f.NumRatings)+1) / math.Log(float64(c.maxRatings)+1)
	return math.Min(normalized, 1.0)
}
