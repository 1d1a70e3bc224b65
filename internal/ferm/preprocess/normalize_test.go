package preprocess

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/stat"

	"github.com/brewtrace/brewtrace/internal/ferm"
)

func TestNormalizeStandardCentersAndScales(t *testing.T) {
	t.Parallel()
	stage, err := NewNormalizeStage(DefaultNormalizeConfig())
	require.NoError(t, err)

	batch := batchWithGas(t, []float64{1, 2, 3, 4, 5, 6})
	require.NoError(t, stage.Fit(batch, "tank-1"))

	out, err := stage.Transform(batch)
	require.NoError(t, err)

	gas := out.Values(ferm.FieldGasRate)
	mean, std := stat.MeanStdDev(gas, nil)
	assert.InDelta(t, 0.0, mean, 1e-9)
	assert.InDelta(t, 1.0, std, 1e-6)
}

func TestNormalizeMinMaxScalesIntoUnitRange(t *testing.T) {
	t.Parallel()
	stage, err := NewNormalizeStage(NormalizeConfig{Method: NormalizeMinMax})
	require.NoError(t, err)

	batch := batchWithGas(t, []float64{10, 20, 15, 30})
	require.NoError(t, stage.Fit(batch, "tank-1"))

	out, err := stage.Transform(batch)
	require.NoError(t, err)

	gas := out.Values(ferm.FieldGasRate)
	assert.InDelta(t, 0.0, gas[0], 1e-6)
	assert.InDelta(t, 1.0, gas[3], 1e-6)
	for _, v := range gas {
		assert.GreaterOrEqual(t, v, 0.0)
		assert.LessOrEqual(t, v, 1.0)
	}
}

func TestNormalizeRobustUsesMedianAndIQR(t *testing.T) {
	t.Parallel()
	stage, err := NewNormalizeStage(NormalizeConfig{Method: NormalizeRobust})
	require.NoError(t, err)

	batch := batchWithGas(t, []float64{1, 2, 3, 4, 5, 6, 7, 100})
	require.NoError(t, stage.Fit(batch, "tank-1"))

	out, err := stage.Transform(batch)
	require.NoError(t, err)

	gas := out.Values(ferm.FieldGasRate)
	// The median sample lands near zero even with the extreme value present.
	assert.InDelta(t, 0.0, gas[3], 1.0)
	assert.Greater(t, gas[7], gas[6])
}

func TestNormalizeRequiresOwnTankParameters(t *testing.T) {
	t.Parallel()
	stage, err := NewNormalizeStage(DefaultNormalizeConfig())
	require.NoError(t, err)

	batchA := batchWithGas(t, []float64{1, 2, 3})
	require.NoError(t, stage.Fit(batchA, "tank-1"))

	// A batch from a different tank must not borrow tank-1's parameters.
	batchB := batchWithGas(t, []float64{4, 5, 6})
	for i := range batchB.Samples {
		batchB.Samples[i].TankID = "tank-2"
	}
	_, err = stage.Transform(batchB)
	var dq *ferm.DataQualityError
	require.ErrorAs(t, err, &dq)
	assert.Contains(t, dq.Error(), "tank-2")
}

func TestNormalizePerTankIsolation(t *testing.T) {
	t.Parallel()
	stage, err := NewNormalizeStage(DefaultNormalizeConfig())
	require.NoError(t, err)

	batchA := batchWithGas(t, []float64{1, 2, 3, 4})
	batchB := batchWithGas(t, []float64{100, 200, 300, 400})
	for i := range batchB.Samples {
		batchB.Samples[i].TankID = "tank-2"
		batchB.Samples[i].BatchID = "batch-2"
	}

	require.NoError(t, stage.Fit(batchA, "tank-1"))
	require.NoError(t, stage.Fit(batchB, "tank-2"))

	outA, err := stage.Transform(batchA)
	require.NoError(t, err)
	outB, err := stage.Transform(batchB)
	require.NoError(t, err)

	// Both tanks standardize against their own statistics, so wildly
	// different raw magnitudes produce the same normalized shape.
	gasA := outA.Values(ferm.FieldGasRate)
	gasB := outB.Values(ferm.FieldGasRate)
	for i := range gasA {
		assert.InDelta(t, gasA[i], gasB[i], 1e-9)
	}
}

func TestNormalizeConfigValidate(t *testing.T) {
	t.Parallel()
	var ce *ferm.ConfigurationError
	require.ErrorAs(t, NormalizeConfig{Method: "quantile"}.Validate(), &ce)
	require.NoError(t, DefaultNormalizeConfig().Validate())
}
