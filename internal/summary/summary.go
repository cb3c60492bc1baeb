// Package summary aggregates prediction results into agreement/confidence
// counters. Aggregation is order independent, so large predictions can be
// folded page by page and partial summaries merged.
package summary

import (
	"github.com/verity-ml/predict-cli/internal/model"
)

// DefaultConfidenceThreshold buckets results into above/below confidence
// when no deployment-specific threshold is configured.
const DefaultConfidenceThreshold = 0.8

// Builder accumulates prediction results into a PerformanceSummary.
// The zero value is not usable; construct with New.
type Builder struct {
	s model.PerformanceSummary
}

// New creates a Builder with the given confidence threshold. A threshold
// of 0 falls back to DefaultConfidenceThreshold.
func New(confidenceThreshold float64) *Builder {
	if confidenceThreshold <= 0 {
		confidenceThreshold = DefaultConfidenceThreshold
	}
	return &Builder{s: model.PerformanceSummary{ConfidenceThreshold: confidenceThreshold}}
}

// Add folds one prediction result into the summary. Exactly one of the four
// buckets increments, selected by the result's stored agree flag and its
// confidence relative to the threshold.
func (b *Builder) Add(result model.PredictionResult) *Builder {
	above := result.Confidence >= b.s.ConfidenceThreshold

	switch {
	case result.Agree && above:
		b.s.AgreeAboveThreshold++
	case result.Agree:
		b.s.AgreeBelowThreshold++
	case above:
		b.s.DisagreeAboveThreshold++
	default:
		b.s.DisagreeBelowThreshold++
	}

	b.s.TotalCount++
	return b
}

// AddAll folds a batch of results into the summary.
func (b *Builder) AddAll(results []model.PredictionResult) *Builder {
	for _, r := range results {
		b.Add(r)
	}
	return b
}

// Merge folds another summary into this one. Merge is associative and
// commutative over result order; thresholds must match for the merge to be
// meaningful, and the receiver's threshold wins.
func (b *Builder) Merge(other model.PerformanceSummary) *Builder {
	b.s.TotalCount += other.TotalCount
	b.s.AgreeAboveThreshold += other.AgreeAboveThreshold
	b.s.AgreeBelowThreshold += other.AgreeBelowThreshold
	b.s.DisagreeAboveThreshold += other.DisagreeAboveThreshold
	b.s.DisagreeBelowThreshold += other.DisagreeBelowThreshold
	return b
}

// WithGrandTotal records the total number of document rows. The difference
// between GrandTotal and TotalCount is the number of rows without results,
// which is how pages skipped after retry exhaustion become visible.
func (b *Builder) WithGrandTotal(n int) *Builder {
	b.s.GrandTotal = n
	return b
}

// WithCorrectedRecords records the number of correction rows persisted for
// the prediction. This is an additive signal, not derived from the buckets.
func (b *Builder) WithCorrectedRecords(n int) *Builder {
	b.s.CorrectedRecords = n
	return b
}

// Summary returns the accumulated counters.
func (b *Builder) Summary() model.PerformanceSummary {
	return b.s
}
