// Package profile builds and manages golden profiles: canonical reference
// fermentation curves per (strain, style) combination, normalized to unit
// duration and unit amplitude. Profiles are the alignment targets for live
// batches.
package profile

import (
	"fmt"
	"math"

	"github.com/brewtrace/brewtrace/internal/ferm"
)

// Key identifies a golden profile by strain and style.
type Key struct {
	Strain string `json:"strain"`
	Style  string `json:"style"`
}

func (k Key) String() string { return k.Strain + "/" + k.Style }

// ShapeKind selects the parametric curve used inside one phase segment.
type ShapeKind string

const (
	// ShapeLinear ramps linearly from Start to End over the segment.
	ShapeLinear ShapeKind = "linear"
	// ShapeSaturating rises from Start towards End along a saturating
	// exponential 1-exp(-Rate*t), normalized so the segment ends at End.
	ShapeSaturating ShapeKind = "saturating"
	// ShapeSinePlateau holds a plateau at Start with a bounded half-sine
	// bump of height End-Start peaking mid-segment.
	ShapeSinePlateau ShapeKind = "sine_plateau"
)

// Shape holds the parameters of a segment curve. All values are in the
// profile's normalized amplitude space [0,1].
type Shape struct {
	Kind  ShapeKind `json:"kind"`
	Start float64   `json:"start"`
	End   float64   `json:"end"`
	Rate  float64   `json:"rate,omitempty"` // saturating growth rate; ignored by other kinds
}

// eval computes the curve value at local position t in [0,1].
func (s Shape) eval(t float64) float64 {
	switch s.Kind {
	case ShapeSaturating:
		rate := s.Rate
		if rate <= 0 {
			rate = defaultSaturationRate
		}
		// Normalize so eval(0)=Start and eval(1)=End exactly.
		frac := (1 - math.Exp(-rate*t)) / (1 - math.Exp(-rate))
		return s.Start + (s.End-s.Start)*frac
	case ShapeSinePlateau:
		return s.Start + (s.End-s.Start)*math.Sin(math.Pi*t)
	default:
		return s.Start + (s.End-s.Start)*t
	}
}

// PhaseSegment is one phase's slice of the profile: its relative share of
// the batch duration and the curve shape within it.
type PhaseSegment struct {
	Phase    ferm.Phase `json:"-"`
	Name     string     `json:"phase"`
	Fraction float64    `json:"duration_fraction"`
	Shape    Shape      `json:"shape"`
}

// fractionTolerance bounds the acceptable deviation of the segment fraction
// sum from 1.0.
const fractionTolerance = 1e-6

// GoldenProfile is an immutable canonical fermentation curve. Segments are
// ordered, non-overlapping, and cover [0,1) of normalized batch time;
// amplitude is normalized to [0,1].
type GoldenProfile struct {
	ProfileKey Key            `json:"key"`
	Segments   []PhaseSegment `json:"segments"`
}

// Validate checks the profile invariants: segment fractions sum to 1.0
// within tolerance, every fraction is positive, and segments follow the
// forward phase order with no repeats.
func (p *GoldenProfile) Validate() error {
	if len(p.Segments) == 0 {
		return &ferm.ConfigurationError{Param: "segments", Reason: "profile has no segments"}
	}
	sum := 0.0
	prevOrder := -1
	for _, seg := range p.Segments {
		if seg.Fraction <= 0 {
			return &ferm.ConfigurationError{
				Param:  "duration_fraction",
				Reason: fmt.Sprintf("segment %s has non-positive fraction %g", seg.Phase, seg.Fraction),
			}
		}
		order := phaseOrderIndex(seg.Phase)
		if order < 0 {
			return &ferm.ConfigurationError{Param: "phase", Reason: "segment uses unknown phase"}
		}
		if order <= prevOrder {
			return &ferm.ConfigurationError{
				Param:  "phase",
				Reason: fmt.Sprintf("segment %s out of phase order", seg.Phase),
			}
		}
		prevOrder = order
		sum += seg.Fraction
	}
	if math.Abs(sum-1.0) > fractionTolerance {
		return &ferm.ConfigurationError{
			Param:  "duration_fraction",
			Reason: fmt.Sprintf("segment fractions sum to %g, want 1.0", sum),
		}
	}
	return nil
}

func phaseOrderIndex(p ferm.Phase) int {
	for i, ph := range ferm.OrderedPhases() {
		if ph == p {
			return i
		}
	}
	return -1
}

// Evaluate returns the profile's expected normalized signal at position u on
// the unit time axis. Positions outside [0,1) clamp to the nearest end.
func (p *GoldenProfile) Evaluate(u float64) float64 {
	if u < 0 {
		u = 0
	}
	if u >= 1 {
		u = math.Nextafter(1, 0)
	}
	start := 0.0
	for _, seg := range p.Segments {
		end := start + seg.Fraction
		if u < end || end >= 1-fractionTolerance {
			t := (u - start) / seg.Fraction
			if t < 0 {
				t = 0
			}
			if t > 1 {
				t = 1
			}
			return seg.Shape.eval(t)
		}
		start = end
	}
	// Unreachable for a validated profile.
	return p.Segments[len(p.Segments)-1].Shape.eval(1)
}

// PhaseAt returns the phase whose fraction interval contains position u.
// Positions before the start map to the first phase, positions at or past
// the end map to the last.
func (p *GoldenProfile) PhaseAt(u float64) ferm.Phase {
	if len(p.Segments) == 0 {
		return ferm.PhaseUnknown
	}
	if u < 0 {
		return p.Segments[0].Phase
	}
	start := 0.0
	for _, seg := range p.Segments {
		end := start + seg.Fraction
		if u < end {
			return seg.Phase
		}
		start = end
	}
	return p.Segments[len(p.Segments)-1].Phase
}

// Boundaries returns the cumulative fraction positions at which the profile
// changes phase, excluding 0 and 1. Useful for cross-checking detector
// output against expected phase edges.
func (p *GoldenProfile) Boundaries() []float64 {
	if len(p.Segments) < 2 {
		return nil
	}
	out := make([]float64, 0, len(p.Segments)-1)
	cum := 0.0
	for _, seg := range p.Segments[:len(p.Segments)-1] {
		cum += seg.Fraction
		out = append(out, cum)
	}
	return out
}

// restorePhases rebuilds the non-serialized Phase values from segment names
// after decoding.
func (p *GoldenProfile) restorePhases() {
	for i := range p.Segments {
		p.Segments[i].Phase = ferm.ParsePhase(p.Segments[i].Name)
	}
}
