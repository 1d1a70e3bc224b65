// Package align warps cleaned live batches onto golden profiles. Alignment
// is a pure function of its inputs: each call returns a freshly constructed
// AlignmentResult and holds no state between calls.
package align

import (
	"time"

	"github.com/brewtrace/brewtrace/internal/ferm"
	"github.com/brewtrace/brewtrace/internal/ferm/profile"
)

// AlignmentResult describes how a batch maps onto its golden profile.
// Results are never mutated; re-alignment yields a new result with a new
// RunID.
type AlignmentResult struct {
	RunID          string         `json:"run_id"`
	BatchID        string         `json:"batch_id"`
	ProfileKey     profile.Key    `json:"profile_key"`
	TimeOffset     float64        `json:"time_offset"`     // profile-axis offset, fraction of unit duration
	TimeScale      float64        `json:"time_scale"`      // batch duration relative to nominal, > 0
	AmplitudeScale float64        `json:"amplitude_scale"` // observed signal span relative to nominal amplitude
	QualityScore   float64        `json:"quality_score"`   // in [0,1], higher is better
	Distance       float64        `json:"distance"`        // minimized mean squared deviation
	PhaseLabels    []ferm.Phase   `json:"-"`
	PhaseNames     []string       `json:"phase_labels"`
	AlignedAt      time.Time      `json:"aligned_at"`
}

// LabelAt returns the phase label for sample index i, or PhaseUnknown when
// out of range.
func (r *AlignmentResult) LabelAt(i int) ferm.Phase {
	if i < 0 || i >= len(r.PhaseLabels) {
		return ferm.PhaseUnknown
	}
	return r.PhaseLabels[i]
}

// Dominant returns the most frequent named phase among the labels, used by
// summary output. Ties resolve to the earlier phase in process order.
func (r *AlignmentResult) Dominant() ferm.Phase {
	counts := make(map[ferm.Phase]int)
	for _, p := range r.PhaseLabels {
		counts[p]++
	}
	best := ferm.PhaseUnknown
	bestN := 0
	for _, p := range ferm.OrderedPhases() {
		if counts[p] > bestN {
			best, bestN = p, counts[p]
		}
	}
	return best
}
