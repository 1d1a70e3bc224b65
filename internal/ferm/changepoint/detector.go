// Package changepoint locates statistically significant phase-boundary
// timestamps from rolling statistics over a batch's gas-rate signal.
//
// Detection is advisory: its output cross-validates the aligner's phase
// labels but never overrides them. Disagreement between the two is a
// data-quality signal for downstream consumers.
package changepoint

import (
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/brewtrace/brewtrace/internal/ferm"
	"github.com/brewtrace/brewtrace/internal/ferm/align"
)

// Changepoint marks a timestamp where the process statistically shifts
// regime. From/To phases are PhaseUnknown until labelled against an
// AlignmentResult. Changepoints are derived, ephemeral values recomputed
// per run.
type Changepoint struct {
	Timestamp  time.Time  `json:"timestamp"`
	Confidence float64    `json:"confidence"`
	FromPhase  ferm.Phase `json:"-"`
	ToPhase    ferm.Phase `json:"-"`
	FromName   string     `json:"from_phase"`
	ToName     string     `json:"to_phase"`
}

// Method selects the detection statistic.
type Method string

const (
	// MethodWindow compares the means of adjacent rolling windows.
	MethodWindow Method = "window"
	// MethodCUSUM tracks the cumulative sum of deviations from the
	// series mean.
	MethodCUSUM Method = "cusum"
)

// Config tunes detection. Thresholds are named configuration, never
// inlined literals.
type Config struct {
	Method Method `json:"method"`
	// WindowSize is the rolling window length in samples.
	WindowSize int `json:"window_size"`
	// Threshold is the regime-shift bound in units of the series' global
	// standard deviation.
	Threshold float64 `json:"threshold"`
	// VarianceRatio flags a changepoint when the ratio between adjacent
	// window variances exceeds this bound. Zero disables the test.
	VarianceRatio float64 `json:"variance_ratio"`
	// MinSeparation collapses detections closer than this into one.
	MinSeparation time.Duration `json:"min_separation"`
}

// DefaultConfig uses adjacent twelve-sample windows, a three-sigma mean
// shift, a four-fold variance ratio, and an hour of minimum separation.
func DefaultConfig() Config {
	return Config{
		Method:        MethodWindow,
		WindowSize:    12,
		Threshold:     3.0,
		VarianceRatio: 4.0,
		MinSeparation: time.Hour,
	}
}

// Validate rejects out-of-range tuning at construction time.
func (c Config) Validate() error {
	switch c.Method {
	case MethodWindow, MethodCUSUM:
	default:
		return &ferm.ConfigurationError{Param: "changepoint.method", Reason: "must be window or cusum"}
	}
	if c.WindowSize < 2 {
		return &ferm.ConfigurationError{Param: "changepoint.window_size", Reason: "must be at least 2"}
	}
	if c.Threshold <= 0 {
		return &ferm.ConfigurationError{Param: "changepoint.threshold", Reason: "must be positive"}
	}
	if c.VarianceRatio < 0 {
		return &ferm.ConfigurationError{Param: "changepoint.variance_ratio", Reason: "must be non-negative"}
	}
	if c.MinSeparation < 0 {
		return &ferm.ConfigurationError{Param: "changepoint.min_separation", Reason: "must be non-negative"}
	}
	return nil
}

// Detect returns the batch's changepoints in timestamp order. Detection
// never fails outright: an input too short for the rolling window yields an
// empty sequence and a nil error. Each call is a pure function of its
// inputs.
func Detect(batch ferm.BatchSeries, cfg Config) ([]Changepoint, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	series := batch.Values(ferm.FieldGasRate)
	if len(series) < 2*cfg.WindowSize {
		return []Changepoint{}, nil
	}

	globalStd := stat.StdDev(series, nil)
	if globalStd == 0 || math.IsNaN(globalStd) {
		return []Changepoint{}, nil
	}

	var raw []Changepoint
	switch cfg.Method {
	case MethodCUSUM:
		raw = cusumScan(batch, series, globalStd, cfg)
	default:
		raw = windowScan(batch, series, globalStd, cfg)
	}

	return collapse(raw, cfg.MinSeparation), nil
}

// windowScan compares adjacent rolling windows: a changepoint is flagged
// where the window means differ by more than Threshold global standard
// deviations, or where the variance ratio between windows exceeds the
// significance bound.
func windowScan(batch ferm.BatchSeries, series []float64, globalStd float64, cfg Config) []Changepoint {
	var out []Changepoint
	w := cfg.WindowSize
	for i := w; i <= len(series)-w; i++ {
		before := series[i-w : i]
		after := series[i : i+w]
		meanBefore, varBefore := stat.MeanVariance(before, nil)
		meanAfter, varAfter := stat.MeanVariance(after, nil)

		shift := math.Abs(meanAfter-meanBefore) / globalStd
		flagged := shift > cfg.Threshold
		confidence := sigmoidConfidence(shift / cfg.Threshold)

		if !flagged && cfg.VarianceRatio > 0 && varBefore > 0 && varAfter > 0 {
			ratio := varAfter / varBefore
			if ratio < 1 {
				ratio = 1 / ratio
			}
			if ratio > cfg.VarianceRatio {
				flagged = true
				confidence = sigmoidConfidence(ratio / cfg.VarianceRatio)
			}
		}
		if flagged {
			out = append(out, Changepoint{
				Timestamp:  batch.Samples[i].Timestamp,
				Confidence: confidence,
				FromName:   ferm.PhaseUnknown.String(),
				ToName:     ferm.PhaseUnknown.String(),
			})
		}
	}
	return out
}

// cusumScan flags points where the cumulative sum of deviations from the
// series mean crosses the threshold band.
func cusumScan(batch ferm.BatchSeries, series []float64, globalStd float64, cfg Config) []Changepoint {
	mean := stat.Mean(series, nil)
	bound := cfg.Threshold * globalStd * math.Sqrt(float64(len(series)))
	var out []Changepoint
	cum := 0.0
	for i, v := range series {
		cum += v - mean
		if math.Abs(cum) > bound {
			out = append(out, Changepoint{
				Timestamp:  batch.Samples[i].Timestamp,
				Confidence: sigmoidConfidence(math.Abs(cum) / bound),
				FromName:   ferm.PhaseUnknown.String(),
				ToName:     ferm.PhaseUnknown.String(),
			})
			cum = 0
		}
	}
	return out
}

// collapse enforces the minimum-separation constraint: within each cluster
// of detections closer than minSep, only the highest-confidence point
// survives.
func collapse(points []Changepoint, minSep time.Duration) []Changepoint {
	if len(points) == 0 {
		return []Changepoint{}
	}
	sort.Slice(points, func(i, j int) bool { return points[i].Timestamp.Before(points[j].Timestamp) })

	out := []Changepoint{points[0]}
	for _, cp := range points[1:] {
		last := &out[len(out)-1]
		if cp.Timestamp.Sub(last.Timestamp) < minSep {
			if cp.Confidence > last.Confidence {
				*last = cp
			}
			continue
		}
		out = append(out, cp)
	}
	return out
}

// Label fills From/To phases from the nearest AlignmentResult labels. When
// result is nil the points stay unlabeled. Returns the number of collapsed
// boundaries where the aligner saw no phase change — the
// detector-vs-aligner disagreement count downstream consumers treat as a
// data-quality signal.
func Label(points []Changepoint, result *align.AlignmentResult, timestamps []time.Time) int {
	if result == nil {
		return 0
	}
	disagreements := 0
	for i := range points {
		idx := nearestIndex(timestamps, points[i].Timestamp)
		to := result.LabelAt(idx)
		from := to
		if idx > 0 {
			from = result.LabelAt(idx - 1)
		}
		points[i].FromPhase = from
		points[i].ToPhase = to
		points[i].FromName = from.String()
		points[i].ToName = to.String()
		if from == to {
			disagreements++
		}
	}
	return disagreements
}

// nearestIndex returns the index of the timestamp closest to t.
func nearestIndex(timestamps []time.Time, t time.Time) int {
	best := 0
	bestDelta := time.Duration(math.MaxInt64)
	for i, ts := range timestamps {
		d := ts.Sub(t)
		if d < 0 {
			d = -d
		}
		if d < bestDelta {
			best, bestDelta = i, d
		}
	}
	return best
}

// sigmoidConfidence maps a ratio >= 1 onto (0,1), saturating as the
// statistic grows past the threshold.
func sigmoidConfidence(ratio float64) float64 {
	if ratio < 0 {
		ratio = 0
	}
	return 1 - math.Exp(-ratio)
}
