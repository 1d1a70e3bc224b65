// Package preprocess implements the staged cleanup pipeline that every
// batch flows through before alignment: missing-value handling, outlier
// handling, resampling, per-tank normalization, and golden-profile
// alignment, in that fixed order.
//
// Stage order is structural: the pipeline enforces it at construction, and
// Fit is never invoked on data already altered by a later stage.
package preprocess

import (
	"math"

	"github.com/brewtrace/brewtrace/internal/ferm"
)

// FitScope declares whether a stage's fitted parameters are shared across
// all groups or learned independently per tank.
type FitScope int

const (
	// ScopeGlobal parameters are shared by every group.
	ScopeGlobal FitScope = iota
	// ScopePerGroup parameters are fitted per tank_id and never pooled,
	// so no tank's statistics leak into another tank's transform.
	ScopePerGroup
)

// Stage is one pipeline step. Concrete stages form a closed, enumerable
// set: missing, outlier, resample, normalize, align.
type Stage interface {
	// Name returns the stage's canonical name, used for order validation.
	Name() string
	// Scope reports whether fitted parameters are global or per-group.
	Scope() FitScope
	// Fit learns the stage's parameters from the batch for the group.
	Fit(batch ferm.BatchSeries, groupKey string) error
	// Transform applies fitted parameters to the batch and returns the
	// transformed copy. The input batch is never modified.
	Transform(batch ferm.BatchSeries) (ferm.BatchSeries, error)
}

// Canonical stage names, in required pipeline order.
const (
	StageMissing   = "missing"
	StageOutlier   = "outlier"
	StageResample  = "resample"
	StageNormalize = "normalize"
	StageAlign     = "align"
)

// stageOrder gives each stage name its mandatory pipeline position.
var stageOrder = map[string]int{
	StageMissing:   0,
	StageOutlier:   1,
	StageResample:  2,
	StageNormalize: 3,
	StageAlign:     4,
}

// imputeSeries fills NaN gaps in-place: interior runs are linearly
// interpolated between their bracketing valid values, leading gaps take the
// first valid value, trailing gaps carry the last valid value forward.
// Returns false when the series has no valid value at all.
func imputeSeries(xs []float64) bool {
	first, last := -1, -1
	for i, v := range xs {
		if !math.IsNaN(v) {
			if first < 0 {
				first = i
			}
			last = i
		}
	}
	if first < 0 {
		return false
	}
	for i := 0; i < first; i++ {
		xs[i] = xs[first]
	}
	for i := last + 1; i < len(xs); i++ {
		xs[i] = xs[last]
	}
	// Interior runs between prev (valid) and next (valid).
	i := first
	for i <= last {
		if !math.IsNaN(xs[i]) {
			i++
			continue
		}
		prev := i - 1
		next := i
		for math.IsNaN(xs[next]) {
			next++
		}
		span := float64(next - prev)
		for j := i; j < next; j++ {
			frac := float64(j-prev) / span
			xs[j] = xs[prev] + (xs[next]-xs[prev])*frac
		}
		i = next + 1
	}
	return true
}
