package preprocess

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/brewtrace/brewtrace/internal/ferm"
)

// OutlierMethod selects how outlier bounds are derived.
type OutlierMethod string

const (
	// OutlierIQR bounds values to [Q1-k*IQR, Q3+k*IQR].
	OutlierIQR OutlierMethod = "iqr"
	// OutlierZScore bounds values to mean ± k*std.
	OutlierZScore OutlierMethod = "zscore"
)

// OutlierAction selects what happens to a flagged value.
type OutlierAction string

const (
	// ActionClip clamps the value to the violated bound.
	ActionClip OutlierAction = "clip"
	// ActionReimpute nulls the value and re-imputes it with the
	// missing-value semantics.
	ActionReimpute OutlierAction = "reimpute"
)

// OutlierConfig tunes outlier detection and treatment.
type OutlierConfig struct {
	Method OutlierMethod `json:"method"`
	// K is the bound multiplier: IQR multiples for the IQR method,
	// standard deviations for zscore.
	K      float64       `json:"k"`
	Action OutlierAction `json:"action"`
}

// DefaultOutlierConfig uses the IQR fence with the conventional 1.5
// multiplier and clips violations.
func DefaultOutlierConfig() OutlierConfig {
	return OutlierConfig{Method: OutlierIQR, K: 1.5, Action: ActionClip}
}

// Validate rejects unknown methods/actions and non-positive multipliers at
// construction time.
func (c OutlierConfig) Validate() error {
	switch c.Method {
	case OutlierIQR, OutlierZScore:
	default:
		return &ferm.ConfigurationError{Param: "outlier.method", Reason: "must be iqr or zscore"}
	}
	switch c.Action {
	case ActionClip, ActionReimpute:
	default:
		return &ferm.ConfigurationError{Param: "outlier.action", Reason: "must be clip or reimpute"}
	}
	if c.K <= 0 {
		return &ferm.ConfigurationError{Param: "outlier.k", Reason: "must be positive"}
	}
	return nil
}

type bounds struct {
	lo, hi float64
}

// OutlierStage flags readings outside the fitted per-field bounds and
// either clips them or nulls-and-reimputes them.
type OutlierStage struct {
	cfg    OutlierConfig
	fitted map[ferm.Field]bounds
	// flagged counts outliers treated in the last Transform, per field.
	flagged map[ferm.Field]int
}

// NewOutlierStage builds the stage, validating its configuration.
func NewOutlierStage(cfg OutlierConfig) (*OutlierStage, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &OutlierStage{cfg: cfg}, nil
}

func (s *OutlierStage) Name() string    { return StageOutlier }
func (s *OutlierStage) Scope() FitScope { return ScopeGlobal }

// Fit derives per-field bounds from the batch's valid readings.
func (s *OutlierStage) Fit(batch ferm.BatchSeries, groupKey string) error {
	s.fitted = make(map[ferm.Field]bounds, len(ferm.ContinuousFields()))
	for _, f := range ferm.ContinuousFields() {
		valid := dropNaN(batch.Values(f))
		if len(valid) < 4 {
			// Too few readings to estimate a spread; leave unbounded.
			continue
		}
		switch s.cfg.Method {
		case OutlierIQR:
			sort.Float64s(valid)
			q1 := stat.Quantile(0.25, stat.LinInterp, valid, nil)
			q3 := stat.Quantile(0.75, stat.LinInterp, valid, nil)
			iqr := q3 - q1
			s.fitted[f] = bounds{lo: q1 - s.cfg.K*iqr, hi: q3 + s.cfg.K*iqr}
		case OutlierZScore:
			mean, std := stat.MeanStdDev(valid, nil)
			if std == 0 {
				continue
			}
			s.fitted[f] = bounds{lo: mean - s.cfg.K*std, hi: mean + s.cfg.K*std}
		}
	}
	return nil
}

// Transform treats values outside the fitted bounds.
func (s *OutlierStage) Transform(batch ferm.BatchSeries) (ferm.BatchSeries, error) {
	out := batch.Clone()
	s.flagged = make(map[ferm.Field]int)
	for _, f := range ferm.ContinuousFields() {
		b, ok := s.fitted[f]
		if !ok {
			continue
		}
		vals := out.Values(f)
		changed := false
		for i, v := range vals {
			if math.IsNaN(v) || (v >= b.lo && v <= b.hi) {
				continue
			}
			s.flagged[f]++
			changed = true
			switch s.cfg.Action {
			case ActionClip:
				if v < b.lo {
					vals[i] = b.lo
				} else {
					vals[i] = b.hi
				}
			case ActionReimpute:
				vals[i] = math.NaN()
			}
		}
		if s.cfg.Action == ActionReimpute && changed {
			imputeSeries(vals)
		}
		for i := range out.Samples {
			out.Samples[i].SetValue(f, vals[i])
		}
	}
	return out, nil
}

// Flagged returns the per-field outlier counts from the last Transform.
func (s *OutlierStage) Flagged() map[ferm.Field]int { return s.flagged }

func dropNaN(xs []float64) []float64 {
	out := xs[:0]
	for _, v := range xs {
		if !math.IsNaN(v) {
			out = append(out, v)
		}
	}
	return out
}
