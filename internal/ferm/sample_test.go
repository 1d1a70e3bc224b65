package ferm

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleAt(t time.Time, gas float64) SensorSample {
	return SensorSample{
		Timestamp: t,
		TankID:    "tank-1",
		BatchID:   "batch-1",
		Strain:    "ale_strain",
		Style:     "ipa",
		GasRate:   gas,
	}
}

func TestNewBatchSeriesSortsByTimestamp(t *testing.T) {
	t.Parallel()
	base := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	series := NewBatchSeries([]SensorSample{
		sampleAt(base.Add(10*time.Minute), 2),
		sampleAt(base, 1),
		sampleAt(base.Add(5*time.Minute), 3),
	})

	require.Equal(t, 3, series.Len())
	assert.Equal(t, 1.0, series.Samples[0].GasRate)
	assert.Equal(t, 3.0, series.Samples[1].GasRate)
	assert.Equal(t, 2.0, series.Samples[2].GasRate)
	assert.NoError(t, series.Validate())
}

func TestBatchSeriesCloneIsIndependent(t *testing.T) {
	t.Parallel()
	base := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	series := NewBatchSeries([]SensorSample{sampleAt(base, 1), sampleAt(base.Add(time.Minute), 2)})

	clone := series.Clone()
	clone.Samples[0].GasRate = 99

	assert.Equal(t, 1.0, series.Samples[0].GasRate)
	assert.Equal(t, 99.0, clone.Samples[0].GasRate)
}

func TestBatchSeriesValidate(t *testing.T) {
	t.Parallel()
	base := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	t.Run("empty", func(t *testing.T) {
		err := BatchSeries{}.Validate()
		var dq *DataQualityError
		require.ErrorAs(t, err, &dq)
	})

	t.Run("mixed batch ids", func(t *testing.T) {
		a := sampleAt(base, 1)
		b := sampleAt(base.Add(time.Minute), 2)
		b.BatchID = "batch-2"
		err := BatchSeries{Samples: []SensorSample{a, b}}.Validate()
		var dq *DataQualityError
		require.ErrorAs(t, err, &dq)
		assert.Contains(t, dq.Error(), "multiple batch ids")
	})

	t.Run("out of order", func(t *testing.T) {
		// Built directly, bypassing NewBatchSeries' sort.
		s := BatchSeries{Samples: []SensorSample{
			sampleAt(base.Add(time.Minute), 1),
			sampleAt(base, 2),
		}}
		var dq *DataQualityError
		require.ErrorAs(t, s.Validate(), &dq)
	})
}

func TestMissingFraction(t *testing.T) {
	t.Parallel()
	base := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	series := NewBatchSeries([]SensorSample{
		sampleAt(base, 1),
		sampleAt(base.Add(time.Minute), math.NaN()),
		sampleAt(base.Add(2*time.Minute), 3),
		sampleAt(base.Add(3*time.Minute), math.NaN()),
	})

	assert.InDelta(t, 0.5, series.MissingFraction(FieldGasRate), 1e-12)
	assert.Equal(t, 1.0, BatchSeries{}.MissingFraction(FieldGasRate))
}

func TestIsUniform(t *testing.T) {
	t.Parallel()
	base := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	uniform := NewBatchSeries([]SensorSample{
		sampleAt(base, 1),
		sampleAt(base.Add(5*time.Minute), 2),
		sampleAt(base.Add(10*time.Minute), 3),
	})
	assert.True(t, uniform.IsUniform(5*time.Minute))
	assert.False(t, uniform.IsUniform(time.Minute))

	ragged := NewBatchSeries([]SensorSample{
		sampleAt(base, 1),
		sampleAt(base.Add(5*time.Minute), 2),
		sampleAt(base.Add(12*time.Minute), 3),
	})
	assert.False(t, ragged.IsUniform(5*time.Minute))
}

func TestFieldRoundTrip(t *testing.T) {
	t.Parallel()
	var s SensorSample
	for i, f := range ContinuousFields() {
		s.SetValue(f, float64(i)+0.5)
	}
	for i, f := range ContinuousFields() {
		assert.Equal(t, float64(i)+0.5, s.Value(f), f.String())
	}
}
