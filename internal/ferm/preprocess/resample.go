package preprocess

import (
	"math"
	"time"

	"github.com/brewtrace/brewtrace/internal/ferm"
)

// ResampleConfig tunes grid reindexing.
type ResampleConfig struct {
	// Interval is the uniform grid spacing.
	Interval time.Duration `json:"interval"`
}

// DefaultResampleConfig matches the sensor heads' five-minute cadence.
func DefaultResampleConfig() ResampleConfig {
	return ResampleConfig{Interval: 5 * time.Minute}
}

// Validate rejects non-positive intervals at construction time.
func (c ResampleConfig) Validate() error {
	if c.Interval <= 0 {
		return &ferm.ConfigurationError{Param: "resample.interval", Reason: "must be positive"}
	}
	return nil
}

// ResampleStage reindexes a batch onto a uniform time grid. Continuous
// channels aggregate by mean within each bin; the valve state takes the
// bin's majority value (last observed on a tie). Grid bins with no source
// sample are linearly interpolated from their neighbours.
//
// Resampling already-uniform data at the same interval is a no-op.
type ResampleStage struct {
	cfg ResampleConfig
}

// NewResampleStage builds the stage, validating its configuration.
func NewResampleStage(cfg ResampleConfig) (*ResampleStage, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &ResampleStage{cfg: cfg}, nil
}

func (s *ResampleStage) Name() string    { return StageResample }
func (s *ResampleStage) Scope() FitScope { return ScopeGlobal }

// Fit is a no-op: the grid is fully determined by configuration.
func (s *ResampleStage) Fit(batch ferm.BatchSeries, groupKey string) error { return nil }

// Transform bins the batch onto the uniform grid.
func (s *ResampleStage) Transform(batch ferm.BatchSeries) (ferm.BatchSeries, error) {
	if batch.Len() == 0 {
		return batch.Clone(), nil
	}
	if batch.IsUniform(s.cfg.Interval) {
		return batch.Clone(), nil
	}

	first := batch.Samples[0].Timestamp.Truncate(s.cfg.Interval)
	last := batch.Samples[batch.Len()-1].Timestamp
	nBins := int(last.Sub(first)/s.cfg.Interval) + 1

	type binAgg struct {
		sums       map[ferm.Field]float64
		counts     map[ferm.Field]int
		valveOpen  int
		valveTotal int
		lastValve  bool
	}
	bins := make([]binAgg, nBins)
	for i := range bins {
		bins[i].sums = make(map[ferm.Field]float64)
		bins[i].counts = make(map[ferm.Field]int)
	}

	for _, sample := range batch.Samples {
		idx := int(sample.Timestamp.Sub(first) / s.cfg.Interval)
		if idx < 0 || idx >= nBins {
			continue
		}
		b := &bins[idx]
		for _, f := range ferm.ContinuousFields() {
			v := sample.Value(f)
			if math.IsNaN(v) {
				continue
			}
			b.sums[f] += v
			b.counts[f]++
		}
		b.valveTotal++
		if sample.ValveOpen {
			b.valveOpen++
		}
		b.lastValve = sample.ValveOpen
	}

	meta := batch.Samples[0]
	out := make([]ferm.SensorSample, nBins)
	for i := range out {
		out[i] = ferm.SensorSample{
			Timestamp: first.Add(time.Duration(i) * s.cfg.Interval),
			TankID:    meta.TankID,
			BatchID:   meta.BatchID,
			Strain:    meta.Strain,
			Style:     meta.Style,
		}
		b := &bins[i]
		for _, f := range ferm.ContinuousFields() {
			if n := b.counts[f]; n > 0 {
				out[i].SetValue(f, b.sums[f]/float64(n))
			} else {
				out[i].SetValue(f, math.NaN())
			}
		}
		switch {
		case b.valveTotal == 0:
			// Empty bin: carry the previous grid point's valve state.
			if i > 0 {
				out[i].ValveOpen = out[i-1].ValveOpen
			}
		case b.valveOpen*2 > b.valveTotal:
			out[i].ValveOpen = true
		case b.valveOpen*2 < b.valveTotal:
			out[i].ValveOpen = false
		default:
			out[i].ValveOpen = b.lastValve
		}
	}

	res := ferm.BatchSeries{Samples: out}

	// Interpolate continuous channels across empty grid bins.
	for _, f := range ferm.ContinuousFields() {
		vals := res.Values(f)
		if imputeSeries(vals) {
			for i := range res.Samples {
				res.Samples[i].SetValue(f, vals[i])
			}
		}
	}

	// The grid construction makes duplicates impossible, so a violation
	// here means corrupted input timestamps.
	for i := 1; i < res.Len(); i++ {
		if !res.Samples[i].Timestamp.After(res.Samples[i-1].Timestamp) {
			return ferm.BatchSeries{}, &ferm.DataQualityError{
				BatchID: batch.BatchID(),
				Reason:  "duplicate timestamps after resampling",
			}
		}
	}
	return res, nil
}
