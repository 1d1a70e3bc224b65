package preprocess

import (
	"fmt"
	"math"

	"github.com/brewtrace/brewtrace/internal/ferm"
)

// MissingConfig tunes missing-value handling.
type MissingConfig struct {
	// MaxMissingFraction is the largest tolerable fraction of missing
	// readings in a required field. Batches above it are rejected with a
	// DataQualityError rather than silently patched.
	MaxMissingFraction float64 `json:"max_missing_fraction"`
	// RequiredFields are the channels the bound applies to. Optional
	// channels are imputed regardless of how sparse they are.
	RequiredFields []ferm.Field `json:"-"`
}

// DefaultMissingConfig requires the gas-rate channel to be at least 60%
// observed.
func DefaultMissingConfig() MissingConfig {
	return MissingConfig{
		MaxMissingFraction: 0.4,
		RequiredFields:     []ferm.Field{ferm.FieldGasRate},
	}
}

// Validate rejects out-of-range bounds at construction time.
func (c MissingConfig) Validate() error {
	if c.MaxMissingFraction <= 0 || c.MaxMissingFraction >= 1 {
		return &ferm.ConfigurationError{Param: "max_missing_fraction", Reason: "must be in (0,1)"}
	}
	return nil
}

// MissingStage repairs gaps in sensor channels: linear interpolation for
// interior gaps, fill from the nearest valid reading at the edges.
type MissingStage struct {
	cfg MissingConfig

	// fitted stats, informational
	missingByField map[ferm.Field]float64
}

// NewMissingStage builds the stage, validating its configuration.
func NewMissingStage(cfg MissingConfig) (*MissingStage, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &MissingStage{cfg: cfg}, nil
}

func (s *MissingStage) Name() string    { return StageMissing }
func (s *MissingStage) Scope() FitScope { return ScopeGlobal }

// Fit records per-field missing fractions and rejects batches whose
// required channels are too sparse to repair honestly.
func (s *MissingStage) Fit(batch ferm.BatchSeries, groupKey string) error {
	s.missingByField = make(map[ferm.Field]float64, len(ferm.ContinuousFields()))
	for _, f := range ferm.ContinuousFields() {
		s.missingByField[f] = batch.MissingFraction(f)
	}
	for _, f := range s.cfg.RequiredFields {
		if frac := s.missingByField[f]; frac > s.cfg.MaxMissingFraction {
			return &ferm.DataQualityError{
				BatchID: batch.BatchID(),
				Field:   f.String(),
				Reason: fmt.Sprintf("missing fraction %.2f exceeds bound %.2f",
					frac, s.cfg.MaxMissingFraction),
			}
		}
	}
	return nil
}

// Transform imputes every continuous channel. A channel with no valid
// reading at all is left as NaN only if it is optional; required channels
// were already bounded by Fit.
func (s *MissingStage) Transform(batch ferm.BatchSeries) (ferm.BatchSeries, error) {
	out := batch.Clone()
	for _, f := range ferm.ContinuousFields() {
		vals := out.Values(f)
		if !imputeSeries(vals) {
			// Whole channel missing: zero-fill optional channels so
			// downstream math stays NaN-free.
			for i := range vals {
				vals[i] = 0
			}
		}
		for i := range out.Samples {
			out.Samples[i].SetValue(f, vals[i])
		}
	}
	return out, nil
}

// MissingFractions returns the per-field missing fractions recorded by the
// last Fit. Exposed for pipeline reports.
func (s *MissingStage) MissingFractions() map[ferm.Field]float64 {
	out := make(map[ferm.Field]float64, len(s.missingByField))
	for k, v := range s.missingByField {
		if !math.IsNaN(v) {
			out[k] = v
		}
	}
	return out
}
