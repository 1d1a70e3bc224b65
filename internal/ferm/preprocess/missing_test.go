package preprocess

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brewtrace/brewtrace/internal/ferm"
)

func batchWithGas(t *testing.T, gas []float64) ferm.BatchSeries {
	t.Helper()
	start := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	samples := make([]ferm.SensorSample, len(gas))
	for i, v := range gas {
		samples[i] = ferm.SensorSample{
			Timestamp:    start.Add(time.Duration(i) * 5 * time.Minute),
			TankID:       "tank-1",
			BatchID:      "batch-1",
			Strain:       "ale_strain",
			Style:        "ipa",
			GasRate:      v,
			DissolvedGas: 8.0,
			Pressure:     101.0,
			Temperature:  19.0,
			AgitatorRPM:  60.0,
		}
	}
	return ferm.NewBatchSeries(samples)
}

func TestImputeSeries(t *testing.T) {
	t.Parallel()
	nan := math.NaN()

	t.Run("interior linear interpolation", func(t *testing.T) {
		xs := []float64{1, nan, nan, 4}
		require.True(t, imputeSeries(xs))
		assert.InDelta(t, 2.0, xs[1], 1e-12)
		assert.InDelta(t, 3.0, xs[2], 1e-12)
	})

	t.Run("edge fill", func(t *testing.T) {
		xs := []float64{nan, nan, 5, 6, nan}
		require.True(t, imputeSeries(xs))
		assert.Equal(t, []float64{5, 5, 5, 6, 6}, xs)
	})

	t.Run("all missing", func(t *testing.T) {
		xs := []float64{nan, nan}
		assert.False(t, imputeSeries(xs))
	})
}

func TestMissingStageRejectsSparseRequiredField(t *testing.T) {
	t.Parallel()
	nan := math.NaN()
	stage, err := NewMissingStage(DefaultMissingConfig())
	require.NoError(t, err)

	// 3 of 5 gas readings missing: 60% > the 40% bound.
	batch := batchWithGas(t, []float64{1, nan, nan, nan, 2})
	err = stage.Fit(batch, "tank-1")

	var dq *ferm.DataQualityError
	require.ErrorAs(t, err, &dq)
	assert.Equal(t, "batch-1", dq.BatchID)
	assert.Equal(t, "gas_rate_lpm", dq.Field)
}

func TestMissingStageImputesWithinBound(t *testing.T) {
	t.Parallel()
	nan := math.NaN()
	stage, err := NewMissingStage(DefaultMissingConfig())
	require.NoError(t, err)

	batch := batchWithGas(t, []float64{1, nan, 3, 4, nan, 6})
	require.NoError(t, stage.Fit(batch, "tank-1"))

	out, err := stage.Transform(batch)
	require.NoError(t, err)
	gas := out.Values(ferm.FieldGasRate)
	assert.InDelta(t, 2.0, gas[1], 1e-12)
	assert.InDelta(t, 5.0, gas[4], 1e-12)

	// Input untouched.
	assert.True(t, math.IsNaN(batch.Values(ferm.FieldGasRate)[1]))

	fracs := stage.MissingFractions()
	assert.InDelta(t, 2.0/6.0, fracs[ferm.FieldGasRate], 1e-12)
	assert.Equal(t, 0.0, fracs[ferm.FieldPressure])
}

func TestMissingStageZeroFillsFullyMissingOptionalChannel(t *testing.T) {
	t.Parallel()
	stage, err := NewMissingStage(DefaultMissingConfig())
	require.NoError(t, err)

	batch := batchWithGas(t, []float64{1, 2, 3})
	for i := range batch.Samples {
		batch.Samples[i].AgitatorRPM = math.NaN()
	}
	require.NoError(t, stage.Fit(batch, "tank-1"))

	out, err := stage.Transform(batch)
	require.NoError(t, err)
	for _, v := range out.Values(ferm.FieldAgitatorRPM) {
		assert.Equal(t, 0.0, v)
	}
}

func TestMissingConfigValidate(t *testing.T) {
	t.Parallel()
	for _, bad := range []float64{0, -0.1, 1, 1.5} {
		cfg := DefaultMissingConfig()
		cfg.MaxMissingFraction = bad
		var ce *ferm.ConfigurationError
		require.ErrorAs(t, cfg.Validate(), &ce, "bound %g", bad)
	}
}
