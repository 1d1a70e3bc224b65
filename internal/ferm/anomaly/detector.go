// Package anomaly flags suspicious batch behaviour from cleaned series,
// alignment output, and golden profiles: stuck fermentations, oxidation
// risk, pressure excursions, and gas activity that departs from the
// expected curve.
package anomaly

import (
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/brewtrace/brewtrace/internal/ferm"
	"github.com/brewtrace/brewtrace/internal/ferm/align"
)

// Kind names an anomaly rule.
type Kind string

const (
	KindStuckFermentation Kind = "stuck_fermentation"
	KindOxidationRisk     Kind = "oxidation_risk"
	KindHighPressure      Kind = "high_pressure"
	KindLowPressure       Kind = "low_pressure"
	KindAbnormalGasCurve  Kind = "abnormal_gas_curve"
)

// Severity ranks an anomaly's urgency.
type Severity string

const (
	SeverityHigh   Severity = "high"
	SeverityMedium Severity = "medium"
)

// Anomaly is one flagged sample.
type Anomaly struct {
	Timestamp time.Time `json:"timestamp"`
	BatchID   string    `json:"batch_id"`
	Kind      Kind      `json:"kind"`
	Severity  Severity  `json:"severity"`
	Value     float64   `json:"value"`
}

// Config tunes the rule set.
type Config struct {
	// StuckWindow is the rolling window (samples) for the gas-rate trend.
	StuckWindow int `json:"stuck_window"`
	// StuckRateThreshold is the rolling gas-rate change below which
	// fermentation is considered stalled, provided cumulative activity is
	// still below StuckQuantile of its eventual range.
	StuckRateThreshold float64 `json:"stuck_rate_threshold"`
	StuckQuantile      float64 `json:"stuck_quantile"`
	// OxidationSigma flags dissolved-gas jumps above mean + sigma*std of
	// the absolute change series.
	OxidationSigma float64 `json:"oxidation_sigma"`
	// Pressure safe operating range, kPa.
	MaxPressure float64 `json:"max_pressure"`
	MinPressure float64 `json:"min_pressure"`
	// CurveSimilarityFloor is the minimum acceptable alignment quality
	// before the whole batch is flagged as off-profile.
	CurveSimilarityFloor float64 `json:"curve_similarity_floor"`
}

// DefaultConfig returns the stock rule thresholds.
func DefaultConfig() Config {
	return Config{
		StuckWindow:          12,
		StuckRateThreshold:   0.01,
		StuckQuantile:        0.7,
		OxidationSigma:       0.5,
		MaxPressure:          150.0,
		MinPressure:          80.0,
		CurveSimilarityFloor: 0.7,
	}
}

// Validate rejects out-of-range thresholds at construction time.
func (c Config) Validate() error {
	if c.StuckWindow < 1 {
		return &ferm.ConfigurationError{Param: "anomaly.stuck_window", Reason: "must be positive"}
	}
	if c.StuckQuantile <= 0 || c.StuckQuantile >= 1 {
		return &ferm.ConfigurationError{Param: "anomaly.stuck_quantile", Reason: "must be in (0,1)"}
	}
	if c.MaxPressure <= c.MinPressure {
		return &ferm.ConfigurationError{Param: "anomaly.max_pressure", Reason: "must exceed min_pressure"}
	}
	if c.CurveSimilarityFloor < 0 || c.CurveSimilarityFloor > 1 {
		return &ferm.ConfigurationError{Param: "anomaly.curve_similarity_floor", Reason: "must be in [0,1]"}
	}
	return nil
}

// Detector applies the rule set. It holds no per-batch state; DetectAll is
// a pure function of its inputs.
type Detector struct {
	cfg Config
}

// NewDetector validates the config and builds a detector.
func NewDetector(cfg Config) (*Detector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Detector{cfg: cfg}, nil
}

// DetectAll runs every rule, deduplicates by timestamp (keeping the
// higher-severity finding), and returns the anomalies in timeline order.
// While the tracker is degraded (alignment quality below the floor, phase
// unknown), phase-dependent rules are suppressed and only the hard safety
// rules (pressure) run. A nil tracker is treated as degraded.
func (d *Detector) DetectAll(batch ferm.BatchSeries, result *align.AlignmentResult, tracker *ferm.PhaseTracker) []Anomaly {
	var all []Anomaly
	all = append(all, d.pressure(batch)...)
	if tracker != nil && !tracker.Degraded() {
		all = append(all, d.stuck(batch)...)
		all = append(all, d.oxidation(batch)...)
		all = append(all, d.offProfile(batch, result)...)
	}
	return dedupe(all)
}

// stuck flags samples where the rolling mean of the gas-rate change sits
// near zero while cumulative activity is still below the configured
// quantile of its range — fermentation that should be producing, and isn't.
func (d *Detector) stuck(batch ferm.BatchSeries) []Anomaly {
	gas := batch.Values(ferm.FieldGasRate)
	if len(gas) < 2 {
		return nil
	}
	sorted := append([]float64(nil), gas...)
	sort.Float64s(sorted)
	quantile := stat.Quantile(d.cfg.StuckQuantile, stat.LinInterp, sorted, nil)

	rate := make([]float64, len(gas))
	rate[0] = math.NaN()
	for i := 1; i < len(gas); i++ {
		rate[i] = gas[i] - gas[i-1]
	}

	var out []Anomaly
	for i := 1; i < len(rate); i++ {
		start := i - d.cfg.StuckWindow + 1
		if start < 1 {
			start = 1
		}
		mean := stat.Mean(rate[start:i+1], nil)
		if mean < d.cfg.StuckRateThreshold && gas[i] < quantile {
			out = append(out, Anomaly{
				Timestamp: batch.Samples[i].Timestamp,
				BatchID:   batch.BatchID(),
				Kind:      KindStuckFermentation,
				Severity:  SeverityHigh,
				Value:     mean,
			})
		}
	}
	return out
}

// oxidation flags sudden dissolved-gas increases.
func (d *Detector) oxidation(batch ferm.BatchSeries) []Anomaly {
	dg := batch.Values(ferm.FieldDissolvedGas)
	if len(dg) < 3 {
		return nil
	}
	change := make([]float64, 0, len(dg)-1)
	for i := 1; i < len(dg); i++ {
		change = append(change, dg[i]-dg[i-1])
	}
	abs := make([]float64, len(change))
	for i, v := range change {
		abs[i] = math.Abs(v)
	}
	mean, std := stat.MeanStdDev(abs, nil)
	if math.IsNaN(std) {
		return nil
	}
	bound := mean + d.cfg.OxidationSigma*std

	var out []Anomaly
	for i, v := range change {
		if v > bound {
			out = append(out, Anomaly{
				Timestamp: batch.Samples[i+1].Timestamp,
				BatchID:   batch.BatchID(),
				Kind:      KindOxidationRisk,
				Severity:  SeverityMedium,
				Value:     v,
			})
		}
	}
	return out
}

// pressure flags readings outside the safe operating range.
func (d *Detector) pressure(batch ferm.BatchSeries) []Anomaly {
	var out []Anomaly
	for _, s := range batch.Samples {
		switch {
		case s.Pressure > d.cfg.MaxPressure:
			out = append(out, Anomaly{
				Timestamp: s.Timestamp, BatchID: s.BatchID,
				Kind: KindHighPressure, Severity: SeverityHigh, Value: s.Pressure,
			})
		case s.Pressure < d.cfg.MinPressure:
			out = append(out, Anomaly{
				Timestamp: s.Timestamp, BatchID: s.BatchID,
				Kind: KindLowPressure, Severity: SeverityMedium, Value: s.Pressure,
			})
		}
	}
	return out
}

// offProfile flags the whole batch when its alignment quality falls below
// the similarity floor: the gas curve does not resemble the golden profile.
func (d *Detector) offProfile(batch ferm.BatchSeries, result *align.AlignmentResult) []Anomaly {
	if result == nil || batch.Len() == 0 {
		return nil
	}
	if result.QualityScore >= d.cfg.CurveSimilarityFloor {
		return nil
	}
	return []Anomaly{{
		Timestamp: batch.Samples[0].Timestamp,
		BatchID:   batch.BatchID(),
		Kind:      KindAbnormalGasCurve,
		Severity:  SeverityMedium,
		Value:     result.QualityScore,
	}}
}

// severityRank orders severities for dedupe.
func severityRank(s Severity) int {
	if s == SeverityHigh {
		return 2
	}
	return 1
}

func dedupe(all []Anomaly) []Anomaly {
	if len(all) == 0 {
		return nil
	}
	byTime := make(map[time.Time]Anomaly, len(all))
	for _, a := range all {
		prev, ok := byTime[a.Timestamp]
		if !ok || severityRank(a.Severity) > severityRank(prev.Severity) {
			byTime[a.Timestamp] = a
		}
	}
	out := make([]Anomaly, 0, len(byTime))
	for _, a := range byTime {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out
}
