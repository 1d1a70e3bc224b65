// Package config loads the pipeline tuning file. The JSON schema uses
// optional pointer fields so a partial file overrides only what it names;
// everything else keeps its compiled-in default.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/brewtrace/brewtrace/internal/ferm/align"
	"github.com/brewtrace/brewtrace/internal/ferm/changepoint"
	"github.com/brewtrace/brewtrace/internal/ferm/preprocess"
	"github.com/brewtrace/brewtrace/internal/ferm/profile"
)

// TuningConfig is the root tuning document. All fields are optional; nil
// means "use default".
type TuningConfig struct {
	// Cleanup stages
	MaxMissingFraction *float64 `json:"max_missing_fraction,omitempty"`
	OutlierMethod      *string  `json:"outlier_method,omitempty"`
	OutlierK           *float64 `json:"outlier_k,omitempty"`
	OutlierAction      *string  `json:"outlier_action,omitempty"`
	ResampleInterval   *string  `json:"resample_interval,omitempty"` // duration string like "5m"
	NormalizeMethod    *string  `json:"normalize_method,omitempty"`

	// Aligner
	NominalDuration  *string  `json:"nominal_duration,omitempty"` // duration string like "168h"
	NominalAmplitude *float64 `json:"nominal_amplitude,omitempty"`
	ScaleMin         *float64 `json:"scale_min,omitempty"`
	ScaleMax         *float64 `json:"scale_max,omitempty"`

	// Changepoint detector
	WindowSize    *int     `json:"window_size,omitempty"`
	CPThreshold   *float64 `json:"changepoint_threshold,omitempty"`
	MinSeparation *string  `json:"min_separation,omitempty"` // duration string like "1h"

	// Golden profile synthesis
	PhaseFractions *profile.Fractions `json:"phase_fractions,omitempty"`
}

// maxFileSize bounds the tuning file to keep a bad path from loading
// something enormous.
const maxFileSize = 1 * 1024 * 1024

// Load reads and validates a tuning file. Fields omitted from the JSON keep
// their defaults, so partial configs are safe.
func Load(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}
	info, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("stat config file: %w", err)
	}
	if info.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxFileSize)
	}
	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	cfg := &TuningConfig{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks field-level plausibility. Cross-field constraints are
// re-checked by the stage constructors the values feed into.
func (c *TuningConfig) Validate() error {
	if c.MaxMissingFraction != nil && (*c.MaxMissingFraction <= 0 || *c.MaxMissingFraction >= 1) {
		return fmt.Errorf("max_missing_fraction must be in (0,1), got %f", *c.MaxMissingFraction)
	}
	if c.OutlierK != nil && *c.OutlierK <= 0 {
		return fmt.Errorf("outlier_k must be positive, got %f", *c.OutlierK)
	}
	for name, field := range map[string]*string{
		"resample_interval": c.ResampleInterval,
		"nominal_duration":  c.NominalDuration,
		"min_separation":    c.MinSeparation,
	} {
		if field != nil && *field != "" {
			if _, err := time.ParseDuration(*field); err != nil {
				return fmt.Errorf("invalid %s %q: %w", name, *field, err)
			}
		}
	}
	if c.WindowSize != nil && *c.WindowSize < 2 {
		return fmt.Errorf("window_size must be at least 2, got %d", *c.WindowSize)
	}
	return nil
}

// PipelineConfig materializes the stage configs, applying overrides on top
// of the stock defaults.
func (c *TuningConfig) PipelineConfig() preprocess.Config {
	cfg := preprocess.DefaultConfig()
	if c.MaxMissingFraction != nil {
		cfg.Missing.MaxMissingFraction = *c.MaxMissingFraction
	}
	if c.OutlierMethod != nil {
		cfg.Outlier.Method = preprocess.OutlierMethod(*c.OutlierMethod)
	}
	if c.OutlierK != nil {
		cfg.Outlier.K = *c.OutlierK
	}
	if c.OutlierAction != nil {
		cfg.Outlier.Action = preprocess.OutlierAction(*c.OutlierAction)
	}
	if d := c.duration(c.ResampleInterval); d > 0 {
		cfg.Resample.Interval = d
	}
	if c.NormalizeMethod != nil {
		cfg.Normalize.Method = preprocess.NormalizeMethod(*c.NormalizeMethod)
	}
	cfg.Align = c.AlignConfig()
	return cfg
}

// AlignConfig materializes the aligner config with overrides applied.
func (c *TuningConfig) AlignConfig() align.Config {
	cfg := align.DefaultConfig()
	if d := c.duration(c.NominalDuration); d > 0 {
		cfg.NominalDuration = d
	}
	if c.NominalAmplitude != nil {
		cfg.NominalAmplitude = *c.NominalAmplitude
	}
	if c.ScaleMin != nil {
		cfg.ScaleMin = *c.ScaleMin
	}
	if c.ScaleMax != nil {
		cfg.ScaleMax = *c.ScaleMax
	}
	return cfg
}

// ChangepointConfig materializes the detector config with overrides applied.
func (c *TuningConfig) ChangepointConfig() changepoint.Config {
	cfg := changepoint.DefaultConfig()
	if c.WindowSize != nil {
		cfg.WindowSize = *c.WindowSize
	}
	if c.CPThreshold != nil {
		cfg.Threshold = *c.CPThreshold
	}
	if d := c.duration(c.MinSeparation); d > 0 {
		cfg.MinSeparation = d
	}
	return cfg
}

// SynthesisConfig materializes profile synthesis with overrides applied.
func (c *TuningConfig) SynthesisConfig() profile.SynthesisConfig {
	cfg := profile.DefaultSynthesisConfig()
	if c.PhaseFractions != nil {
		cfg.Fractions = *c.PhaseFractions
	}
	return cfg
}

func (c *TuningConfig) duration(s *string) time.Duration {
	if s == nil || *s == "" {
		return 0
	}
	d, err := time.ParseDuration(*s)
	if err != nil {
		return 0
	}
	return d
}
