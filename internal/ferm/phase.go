package ferm

// Phase names a fermentation stage. Phases have a fixed forward order:
// lag, exponential, stationary, decline. PhaseUnknown marks samples the
// aligner could not place with enough confidence.
type Phase int

const (
	PhaseUnknown Phase = iota
	PhaseLag
	PhaseExponential
	PhaseStationary
	PhaseDecline
)

// OrderedPhases lists the named phases in process order, excluding unknown.
func OrderedPhases() []Phase {
	return []Phase{PhaseLag, PhaseExponential, PhaseStationary, PhaseDecline}
}

func (p Phase) String() string {
	switch p {
	case PhaseLag:
		return "lag"
	case PhaseExponential:
		return "exponential"
	case PhaseStationary:
		return "stationary"
	case PhaseDecline:
		return "decline"
	}
	return "unknown"
}

// ParsePhase maps a phase name to its Phase value. Unrecognised names map
// to PhaseUnknown.
func ParsePhase(s string) Phase {
	switch s {
	case "lag":
		return PhaseLag
	case "exponential":
		return PhaseExponential
	case "stationary":
		return PhaseStationary
	case "decline":
		return PhaseDecline
	}
	return PhaseUnknown
}

// order returns the phase's position in the forward progression, with
// unknown sorting before lag so any named phase may follow it.
func (p Phase) order() int {
	switch p {
	case PhaseLag:
		return 1
	case PhaseExponential:
		return 2
	case PhaseStationary:
		return 3
	case PhaseDecline:
		return 4
	}
	return 0
}

// PhaseTracker enforces monotonic forward phase progression for one batch.
// Observed labels may only advance through the phase order as timestamps
// advance; a label that would move backwards is held at the current phase.
// While the tracker is in PhaseUnknown (entered when alignment quality is
// below the configured floor), phase-dependent downstream logic must degrade
// conservatively: Degraded reports that state.
type PhaseTracker struct {
	current  Phase
	degraded bool
}

// NewPhaseTracker creates a tracker starting in PhaseLag, or PhaseUnknown
// when quality is below floor.
func NewPhaseTracker(quality, floor float64) *PhaseTracker {
	if quality < floor {
		return &PhaseTracker{current: PhaseUnknown, degraded: true}
	}
	return &PhaseTracker{current: PhaseLag}
}

// Observe feeds the next per-timestamp label and returns the tracked phase.
// Labels never move the tracker backwards through the phase order.
func (t *PhaseTracker) Observe(label Phase) Phase {
	if t.degraded {
		return PhaseUnknown
	}
	if label.order() > t.current.order() {
		t.current = label
	}
	return t.current
}

// Current returns the tracker's present phase.
func (t *PhaseTracker) Current() Phase { return t.current }

// Degraded reports whether phase-specific downstream rules should be
// suppressed and uncertainty widened.
func (t *PhaseTracker) Degraded() bool { return t.degraded }
