package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brewtrace/brewtrace/internal/ferm/preprocess"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadPartialConfigKeepsDefaults(t *testing.T) {
	t.Parallel()
	path := writeConfig(t, "tuning.json", `{
		"max_missing_fraction": 0.25,
		"resample_interval": "10m"
	}`)

	cfg, err := Load(path)
	require.NoError(t, err)

	pc := cfg.PipelineConfig()
	assert.Equal(t, 0.25, pc.Missing.MaxMissingFraction)
	assert.Equal(t, 10*time.Minute, pc.Resample.Interval)
	// Unnamed fields keep their compiled-in defaults.
	assert.Equal(t, preprocess.OutlierIQR, pc.Outlier.Method)
	assert.Equal(t, 1.5, pc.Outlier.K)
	assert.Equal(t, 168*time.Hour, pc.Align.NominalDuration)
}

func TestLoadFullOverride(t *testing.T) {
	t.Parallel()
	path := writeConfig(t, "tuning.json", `{
		"outlier_method": "zscore",
		"outlier_k": 2.5,
		"outlier_action": "reimpute",
		"normalize_method": "robust",
		"nominal_duration": "336h",
		"nominal_amplitude": 4.0,
		"scale_min": 0.5,
		"scale_max": 2.0,
		"window_size": 24,
		"changepoint_threshold": 2.0,
		"min_separation": "2h",
		"phase_fractions": {"lag": 0.2, "exponential": 0.3, "stationary": 0.3, "decline": 0.2}
	}`)

	cfg, err := Load(path)
	require.NoError(t, err)

	pc := cfg.PipelineConfig()
	assert.Equal(t, preprocess.OutlierZScore, pc.Outlier.Method)
	assert.Equal(t, 2.5, pc.Outlier.K)
	assert.Equal(t, preprocess.ActionReimpute, pc.Outlier.Action)
	assert.Equal(t, preprocess.NormalizeRobust, pc.Normalize.Method)

	ac := cfg.AlignConfig()
	assert.Equal(t, 336*time.Hour, ac.NominalDuration)
	assert.Equal(t, 4.0, ac.NominalAmplitude)
	assert.Equal(t, 0.5, ac.ScaleMin)
	assert.Equal(t, 2.0, ac.ScaleMax)

	cc := cfg.ChangepointConfig()
	assert.Equal(t, 24, cc.WindowSize)
	assert.Equal(t, 2.0, cc.Threshold)
	assert.Equal(t, 2*time.Hour, cc.MinSeparation)

	sc := cfg.SynthesisConfig()
	assert.Equal(t, 0.2, sc.Fractions.Lag)
	require.NoError(t, sc.Validate())
}

func TestLoadRejectsBadInput(t *testing.T) {
	t.Parallel()

	t.Run("wrong extension", func(t *testing.T) {
		path := writeConfig(t, "tuning.yaml", `{}`)
		_, err := Load(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), ".json")
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "absent.json"))
		require.Error(t, err)
	})

	t.Run("malformed json", func(t *testing.T) {
		path := writeConfig(t, "tuning.json", `{"outlier_k":`)
		_, err := Load(path)
		require.Error(t, err)
	})

	t.Run("bad duration", func(t *testing.T) {
		path := writeConfig(t, "tuning.json", `{"resample_interval": "five minutes"}`)
		_, err := Load(path)
		require.Error(t, err)
	})

	t.Run("out of range fraction", func(t *testing.T) {
		path := writeConfig(t, "tuning.json", `{"max_missing_fraction": 1.2}`)
		_, err := Load(path)
		require.Error(t, err)
	})

	t.Run("window too small", func(t *testing.T) {
		path := writeConfig(t, "tuning.json", `{"window_size": 1}`)
		_, err := Load(path)
		require.Error(t, err)
	})
}

func TestEmptyConfigMatchesDefaults(t *testing.T) {
	t.Parallel()
	cfg := &TuningConfig{}
	require.NoError(t, cfg.Validate())

	assert.Equal(t, preprocess.DefaultConfig(), cfg.PipelineConfig())
}
