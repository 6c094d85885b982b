package vitals

// Metric names the web vitals this package understands
type Metric string

const (
	// LCP is largest contentful paint, in milliseconds
	LCP Metric = "lcp"
	// FID is first input delay, in milliseconds
	FID Metric = "fid"
	// CLS is cumulative layout shift, unitless
	CLS Metric = "cls"
)

// Rating buckets a vital value by user-experience quality
type Rating string

const (
	RatingGood             Rating = "good"
	RatingNeedsImprovement Rating = "needs_improvement"
	RatingPoor             Rating = "poor"
	// RatingUnknown is returned for metrics with no threshold table
	RatingUnknown Rating = "unknown"
)

// Threshold holds the upper bounds of the good and needs-improvement buckets
type Threshold struct {
	Good             float64
	NeedsImprovement float64
}

// thresholds per metric. LCP and FID are milliseconds, CLS is unitless.
var thresholds = map[Metric]Threshold{
	LCP: {Good: 1800, NeedsImprovement: 2500},
	FID: {Good: 100, NeedsImprovement: 300},
	CLS: {Good: 0.1, NeedsImprovement: 0.25},
}

// Classify rates a vital value. Lower is always better: values at or below
// the good bound rate good, at or below the needs-improvement bound rate
// needs_improvement, anything higher rates poor.
func Classify(metric Metric, value float64) Rating {
	t, ok := thresholds[metric]
	if !ok {
		return RatingUnknown
	}
	switch {
	case value <= t.Good:
		return RatingGood
	case value <= t.NeedsImprovement:
		return RatingNeedsImprovement
	default:
		return RatingPoor
	}
}
