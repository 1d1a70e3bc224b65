package preprocess

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/brewtrace/brewtrace/internal/ferm"
)

// NormalizeMethod selects the scaling scheme.
type NormalizeMethod string

const (
	// NormalizeStandard centres on the mean and scales by the standard
	// deviation.
	NormalizeStandard NormalizeMethod = "standard"
	// NormalizeMinMax scales into [0,1] by the observed range.
	NormalizeMinMax NormalizeMethod = "minmax"
	// NormalizeRobust centres on the median and scales by the IQR.
	NormalizeRobust NormalizeMethod = "robust"
)

// NormalizeConfig tunes per-tank normalization.
type NormalizeConfig struct {
	Method NormalizeMethod `json:"method"`
}

// DefaultNormalizeConfig standard-scales each channel.
func DefaultNormalizeConfig() NormalizeConfig {
	return NormalizeConfig{Method: NormalizeStandard}
}

// Validate rejects unknown methods at construction time.
func (c NormalizeConfig) Validate() error {
	switch c.Method {
	case NormalizeStandard, NormalizeMinMax, NormalizeRobust:
		return nil
	}
	return &ferm.ConfigurationError{Param: "normalize.method", Reason: "must be standard, minmax, or robust"}
}

// scaleEpsilon guards denominators when a channel has zero spread.
const scaleEpsilon = 1e-10

type scaler struct {
	shift, scale float64
}

func (sc scaler) apply(v float64) float64 { return (v - sc.shift) / (sc.scale + scaleEpsilon) }

// NormalizeStage fits scale/shift parameters independently per tank group.
// Transform only ever uses the parameters fitted for the batch's own tank;
// statistics are never pooled across tanks, so one tank's distribution
// cannot leak into another's features.
type NormalizeStage struct {
	cfg NormalizeConfig
	// fitted maps groupKey -> field -> scaler.
	fitted map[string]map[ferm.Field]scaler
}

// NewNormalizeStage builds the stage, validating its configuration.
func NewNormalizeStage(cfg NormalizeConfig) (*NormalizeStage, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &NormalizeStage{cfg: cfg, fitted: make(map[string]map[ferm.Field]scaler)}, nil
}

func (s *NormalizeStage) Name() string    { return StageNormalize }
func (s *NormalizeStage) Scope() FitScope { return ScopePerGroup }

// Fit learns scalers for the given group from this batch.
func (s *NormalizeStage) Fit(batch ferm.BatchSeries, groupKey string) error {
	group := make(map[ferm.Field]scaler, len(ferm.ContinuousFields()))
	for _, f := range ferm.ContinuousFields() {
		valid := dropNaN(batch.Values(f))
		if len(valid) == 0 {
			continue
		}
		switch s.cfg.Method {
		case NormalizeStandard:
			mean, std := stat.MeanStdDev(valid, nil)
			if math.IsNaN(std) {
				std = 0
			}
			group[f] = scaler{shift: mean, scale: std}
		case NormalizeMinMax:
			lo, hi := valid[0], valid[0]
			for _, v := range valid {
				if v < lo {
					lo = v
				}
				if v > hi {
					hi = v
				}
			}
			group[f] = scaler{shift: lo, scale: hi - lo}
		case NormalizeRobust:
			sort.Float64s(valid)
			median := stat.Quantile(0.5, stat.LinInterp, valid, nil)
			q1 := stat.Quantile(0.25, stat.LinInterp, valid, nil)
			q3 := stat.Quantile(0.75, stat.LinInterp, valid, nil)
			group[f] = scaler{shift: median, scale: q3 - q1}
		}
	}
	s.fitted[groupKey] = group
	return nil
}

// Transform scales the batch with its own tank's fitted parameters.
func (s *NormalizeStage) Transform(batch ferm.BatchSeries) (ferm.BatchSeries, error) {
	group, ok := s.fitted[batch.TankID()]
	if !ok {
		return ferm.BatchSeries{}, &ferm.DataQualityError{
			BatchID: batch.BatchID(),
			Reason:  "no normalization parameters fitted for tank " + batch.TankID(),
		}
	}
	out := batch.Clone()
	for f, sc := range group {
		for i := range out.Samples {
			v := out.Samples[i].Value(f)
			if math.IsNaN(v) {
				continue
			}
			out.Samples[i].SetValue(f, sc.apply(v))
		}
	}
	return out, nil
}
