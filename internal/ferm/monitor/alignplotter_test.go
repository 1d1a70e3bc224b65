package monitor

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brewtrace/brewtrace/internal/ferm"
	"github.com/brewtrace/brewtrace/internal/ferm/align"
	"github.com/brewtrace/brewtrace/internal/ferm/profile"
)

func TestPlotWritesPNG(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	ap, err := NewAlignPlotter(dir)
	require.NoError(t, err)

	p, err := profile.Synthesize(
		profile.Key{Strain: "ale_strain", Style: "ipa"},
		profile.DefaultSynthesisConfig(),
	)
	require.NoError(t, err)

	cfg := align.DefaultConfig()
	start := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	samples := make([]ferm.SensorSample, 50)
	for i := range samples {
		u := float64(i) / 50.0
		samples[i] = ferm.SensorSample{
			Timestamp: start.Add(time.Duration(u * float64(cfg.NominalDuration))),
			BatchID:   "batch-plot",
			Strain:    "ale_strain",
			Style:     "ipa",
			GasRate:   1.0 + cfg.NominalAmplitude*p.Evaluate(u),
		}
	}
	batch := ferm.NewBatchSeries(samples)

	res, err := align.Align(batch, p, cfg)
	require.NoError(t, err)

	path, err := ap.Plot(batch, p, res, cfg)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "batch-plot_alignment.png"), path)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
}

func TestPlotRejectsEmptyBatch(t *testing.T) {
	t.Parallel()
	ap, err := NewAlignPlotter(t.TempDir())
	require.NoError(t, err)

	_, err = ap.Plot(ferm.BatchSeries{}, nil, &align.AlignmentResult{}, align.DefaultConfig())
	require.Error(t, err)
}
