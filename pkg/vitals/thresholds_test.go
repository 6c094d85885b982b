package vitals

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		name   string
		metric Metric
		value  float64
		want   Rating
	}{
		{"lcp fast paint", LCP, 900, RatingGood},
		{"lcp good boundary", LCP, 1800, RatingGood},
		{"lcp moderate paint", LCP, 2000, RatingNeedsImprovement},
		{"lcp needs improvement boundary", LCP, 2500, RatingNeedsImprovement},
		{"lcp slow paint", LCP, 3000, RatingPoor},
		{"fid responsive", FID, 50, RatingGood},
		{"fid sluggish", FID, 150, RatingNeedsImprovement},
		{"fid unresponsive", FID, 500, RatingPoor},
		{"cls stable", CLS, 0.05, RatingGood},
		{"cls shifting", CLS, 0.2, RatingNeedsImprovement},
		{"cls janky", CLS, 0.4, RatingPoor},
		{"unknown metric", Metric("ttfb"), 100, RatingUnknown},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Classify(tc.metric, tc.value))
		})
	}
}
