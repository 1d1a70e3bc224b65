package profile

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brewtrace/brewtrace/internal/ferm"
)

func defaultKey() Key { return Key{Strain: "default_strain", Style: "default_style"} }

func TestSynthesizeFractionsSumToOne(t *testing.T) {
	t.Parallel()
	p, err := Synthesize(defaultKey(), DefaultSynthesisConfig())
	require.NoError(t, err)

	sum := 0.0
	for _, seg := range p.Segments {
		assert.Greater(t, seg.Fraction, 0.0)
		sum += seg.Fraction
	}
	assert.InDelta(t, 1.0, sum, 1e-6)
}

func TestSynthesizeSegmentsFollowPhaseOrder(t *testing.T) {
	t.Parallel()
	p, err := Synthesize(defaultKey(), DefaultSynthesisConfig())
	require.NoError(t, err)
	require.Len(t, p.Segments, 4)

	want := ferm.OrderedPhases()
	for i, seg := range p.Segments {
		assert.Equal(t, want[i], seg.Phase)
		assert.Equal(t, want[i].String(), seg.Name)
	}
}

func TestSynthesizeIsDeterministic(t *testing.T) {
	t.Parallel()
	a, err := Synthesize(defaultKey(), DefaultSynthesisConfig())
	require.NoError(t, err)
	b, err := Synthesize(defaultKey(), DefaultSynthesisConfig())
	require.NoError(t, err)

	blobA, err := MarshalProfile(a)
	require.NoError(t, err)
	blobB, err := MarshalProfile(b)
	require.NoError(t, err)
	assert.Equal(t, blobA, blobB)
}

func TestSynthesisConfigValidate(t *testing.T) {
	t.Parallel()

	t.Run("fractions must sum to one", func(t *testing.T) {
		cfg := DefaultSynthesisConfig()
		cfg.Fractions.Lag = 0.5
		var ce *ferm.ConfigurationError
		require.ErrorAs(t, cfg.Validate(), &ce)
	})

	t.Run("fractions must be positive", func(t *testing.T) {
		cfg := DefaultSynthesisConfig()
		cfg.Fractions.Decline = -0.1
		cfg.Fractions.Stationary = 0.7
		var ce *ferm.ConfigurationError
		require.ErrorAs(t, cfg.Validate(), &ce)
	})
}

func TestProfileValidateRejectsOutOfOrderPhases(t *testing.T) {
	t.Parallel()
	p := &GoldenProfile{
		ProfileKey: defaultKey(),
		Segments: []PhaseSegment{
			{Phase: ferm.PhaseExponential, Name: "exponential", Fraction: 0.5, Shape: Shape{Kind: ShapeLinear}},
			{Phase: ferm.PhaseLag, Name: "lag", Fraction: 0.5, Shape: Shape{Kind: ShapeLinear}},
		},
	}
	var ce *ferm.ConfigurationError
	require.ErrorAs(t, p.Validate(), &ce)
}

func TestEvaluateCurveShape(t *testing.T) {
	t.Parallel()
	p, err := Synthesize(defaultKey(), DefaultSynthesisConfig())
	require.NoError(t, err)

	// Segment endpoints from the synthesis levels.
	assert.InDelta(t, 0.0, p.Evaluate(0), 1e-9)
	assert.InDelta(t, 0.05, p.Evaluate(0.10), 1e-9)   // end of lag
	assert.InDelta(t, 0.80, p.Evaluate(0.40), 1e-2)   // end of exponential
	assert.InDelta(t, 1.00, p.Evaluate(0.55), 1e-2)   // plateau peak mid-stationary
	assert.InDelta(t, 0.30, p.Evaluate(0.9999), 1e-2) // end of decline

	// Clamping outside [0,1).
	assert.Equal(t, p.Evaluate(0), p.Evaluate(-0.3))
	assert.InDelta(t, p.Evaluate(0.9999999), p.Evaluate(1.7), 1e-6)

	// Exponential segment is monotonically increasing.
	prev := math.Inf(-1)
	for u := 0.10; u <= 0.40; u += 0.01 {
		v := p.Evaluate(u)
		assert.GreaterOrEqual(t, v, prev)
		prev = v
	}
}

func TestPhaseAtBoundaries(t *testing.T) {
	t.Parallel()
	p, err := Synthesize(defaultKey(), DefaultSynthesisConfig())
	require.NoError(t, err)

	assert.Equal(t, ferm.PhaseLag, p.PhaseAt(0))
	assert.Equal(t, ferm.PhaseLag, p.PhaseAt(-0.1))
	assert.Equal(t, ferm.PhaseExponential, p.PhaseAt(0.10))
	assert.Equal(t, ferm.PhaseStationary, p.PhaseAt(0.40))
	assert.Equal(t, ferm.PhaseDecline, p.PhaseAt(0.70))
	assert.Equal(t, ferm.PhaseDecline, p.PhaseAt(1.5))

	bounds := p.Boundaries()
	require.Len(t, bounds, 3)
	assert.InDelta(t, 0.10, bounds[0], 1e-9)
	assert.InDelta(t, 0.40, bounds[1], 1e-9)
	assert.InDelta(t, 0.70, bounds[2], 1e-9)
}
