package align

import (
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/brewtrace/brewtrace/internal/ferm"
	"github.com/brewtrace/brewtrace/internal/ferm/profile"
)

// Config bounds the alignment search grid and the quality mapping. All
// thresholds are named configuration, never inlined at call sites.
type Config struct {
	// NominalDuration is the expected wall-clock length of a batch that
	// covers the profile's unit time axis at TimeScale 1.0.
	NominalDuration time.Duration `json:"nominal_duration"`
	// NominalAmplitude is the gas-rate span (max-min, L/min) corresponding
	// to the profile's unit amplitude.
	NominalAmplitude float64 `json:"nominal_amplitude"`

	// Offset grid on the profile's unit time axis.
	OffsetMin  float64 `json:"offset_min"`
	OffsetMax  float64 `json:"offset_max"`
	OffsetStep float64 `json:"offset_step"`

	// Scale grid; candidates are batch-duration multiples of NominalDuration.
	ScaleMin  float64 `json:"scale_min"`
	ScaleMax  float64 `json:"scale_max"`
	ScaleStep float64 `json:"scale_step"`

	// DistancePenalty maps minimum distance to quality via 1/(1+penalty*d).
	DistancePenalty float64 `json:"distance_penalty"`
	// ShortBatchPenalty multiplies the quality score of batches shorter
	// than the profile's shortest expected phase.
	ShortBatchPenalty float64 `json:"short_batch_penalty"`
}

// DefaultConfig returns the stock search grid: offsets spanning a quarter of
// the profile, scales from quarter-speed to triple-length batches.
func DefaultConfig() Config {
	return Config{
		NominalDuration:   168 * time.Hour,
		NominalAmplitude:  2.0,
		OffsetMin:         -0.05,
		OffsetMax:         0.25,
		OffsetStep:        0.01,
		ScaleMin:          0.25,
		ScaleMax:          3.0,
		ScaleStep:         0.05,
		DistancePenalty:   25.0,
		ShortBatchPenalty: 0.5,
	}
}

// Validate rejects malformed grids at construction time.
func (c Config) Validate() error {
	switch {
	case c.NominalDuration <= 0:
		return &ferm.ConfigurationError{Param: "nominal_duration", Reason: "must be positive"}
	case c.NominalAmplitude <= 0:
		return &ferm.ConfigurationError{Param: "nominal_amplitude", Reason: "must be positive"}
	case c.OffsetStep <= 0:
		return &ferm.ConfigurationError{Param: "offset_step", Reason: "must be positive"}
	case c.OffsetMax < c.OffsetMin:
		return &ferm.ConfigurationError{Param: "offset_max", Reason: "must be >= offset_min"}
	case c.ScaleMin <= 0:
		return &ferm.ConfigurationError{Param: "scale_min", Reason: "must be positive"}
	case c.ScaleStep <= 0:
		return &ferm.ConfigurationError{Param: "scale_step", Reason: "must be positive"}
	case c.ScaleMax < c.ScaleMin:
		return &ferm.ConfigurationError{Param: "scale_max", Reason: "must be >= scale_min"}
	case c.DistancePenalty <= 0:
		return &ferm.ConfigurationError{Param: "distance_penalty", Reason: "must be positive"}
	case c.ShortBatchPenalty <= 0 || c.ShortBatchPenalty > 1:
		return &ferm.ConfigurationError{Param: "short_batch_penalty", Reason: "must be in (0,1]"}
	}
	return nil
}

// tieEpsilon treats candidate distances within this margin as ties, which
// are then broken by preferring the time scale closest to 1.0 (least
// distortion).
const tieEpsilon = 1e-9

// Align warps the batch's gas-rate signal onto the profile and returns the
// best-fit offset/scale, a quality score, and per-sample phase labels.
//
// A degenerate signal (all readings equal over more than one sample) returns
// a DataQualityError rather than dividing by zero; the caller decides the
// fallback. A one-sample batch cannot be searched, so it returns a
// best-effort result with a floor quality score instead of failing.
func Align(batch ferm.BatchSeries, p *profile.GoldenProfile, cfg Config) (*AlignmentResult, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := batch.Validate(); err != nil {
		return nil, err
	}

	if batch.Len() == 1 {
		return singleSampleResult(batch, p), nil
	}

	signal := batch.Values(ferm.FieldGasRate)
	lo, hi := minMax(signal)
	if !(hi > lo) {
		return nil, &ferm.DataQualityError{
			BatchID: batch.BatchID(),
			Field:   ferm.FieldGasRate.String(),
			Reason:  "degenerate signal: all gas-rate readings equal",
		}
	}

	// Normalize the signal to [0,1] with the batch's own min/max.
	norm := make([]float64, len(signal))
	for i, v := range signal {
		norm[i] = (v - lo) / (hi - lo)
	}

	// Elapsed time per sample, as a fraction of the nominal duration.
	elapsed := make([]float64, batch.Len())
	t0 := batch.Samples[0].Timestamp
	nominal := cfg.NominalDuration.Seconds()
	for i, s := range batch.Samples {
		elapsed[i] = s.Timestamp.Sub(t0).Seconds() / nominal
	}

	bestOffset, bestScale, bestDist := searchGrid(norm, elapsed, p, cfg)

	quality := 1.0 / (1.0 + cfg.DistancePenalty*bestDist)
	if shortBatch(batch, p, cfg) {
		quality *= cfg.ShortBatchPenalty
	}

	labels := make([]ferm.Phase, batch.Len())
	names := make([]string, batch.Len())
	for i := range batch.Samples {
		ph := p.PhaseAt(bestOffset + elapsed[i]/bestScale)
		labels[i] = ph
		names[i] = ph.String()
	}

	return &AlignmentResult{
		RunID:          uuid.New().String(),
		BatchID:        batch.BatchID(),
		ProfileKey:     p.ProfileKey,
		TimeOffset:     bestOffset,
		TimeScale:      bestScale,
		AmplitudeScale: (hi - lo) / cfg.NominalAmplitude,
		QualityScore:   quality,
		Distance:       bestDist,
		PhaseLabels:    labels,
		PhaseNames:     names,
		AlignedAt:      time.Now().UTC(),
	}, nil
}

// searchGrid evaluates every (offset, scale) candidate and returns the
// minimizer. Ties prefer scale nearest 1.0.
func searchGrid(norm, elapsed []float64, p *profile.GoldenProfile, cfg Config) (offset, scale, dist float64) {
	bestOffset, bestScale := 0.0, 1.0
	bestDist := math.Inf(1)

	for off := cfg.OffsetMin; off <= cfg.OffsetMax+tieEpsilon; off += cfg.OffsetStep {
		for sc := cfg.ScaleMin; sc <= cfg.ScaleMax+tieEpsilon; sc += cfg.ScaleStep {
			d, ok := candidateDistance(norm, elapsed, p, off, sc)
			if !ok {
				continue
			}
			switch {
			case d < bestDist-tieEpsilon:
				bestOffset, bestScale, bestDist = off, sc, d
			case math.Abs(d-bestDist) <= tieEpsilon &&
				math.Abs(sc-1.0) < math.Abs(bestScale-1.0):
				bestOffset, bestScale = off, sc
			}
		}
	}

	if math.IsInf(bestDist, 1) {
		// No candidate produced domain overlap; fall back to identity
		// warp with a worst-case distance so quality bottoms out rather
		// than the result going missing.
		return 0, 1.0, 1.0
	}
	return bestOffset, bestScale, bestDist
}

// candidateDistance computes mean squared deviation between the warped
// batch signal and the profile curve over their shared sampled domain.
// Reports ok=false when fewer than two samples land inside the profile.
func candidateDistance(norm, elapsed []float64, p *profile.GoldenProfile, offset, scale float64) (float64, bool) {
	sum := 0.0
	n := 0
	for i, e := range elapsed {
		u := offset + e/scale
		if u < 0 || u >= 1 {
			continue
		}
		diff := norm[i] - p.Evaluate(u)
		sum += diff * diff
		n++
	}
	if n < 2 {
		return 0, false
	}
	return sum / float64(n), true
}

// shortBatch reports whether the batch is shorter than the profile's
// shortest expected phase at nominal duration.
func shortBatch(batch ferm.BatchSeries, p *profile.GoldenProfile, cfg Config) bool {
	shortest := math.Inf(1)
	for _, seg := range p.Segments {
		if seg.Fraction < shortest {
			shortest = seg.Fraction
		}
	}
	if math.IsInf(shortest, 1) {
		return false
	}
	return batch.Duration() < time.Duration(shortest*float64(cfg.NominalDuration))
}

// singleSampleQuality is the floor score reported for batches too short to
// search; low enough that downstream phase logic degrades conservatively.
const singleSampleQuality = 0.05

func singleSampleResult(batch ferm.BatchSeries, p *profile.GoldenProfile) *AlignmentResult {
	ph := p.PhaseAt(0)
	return &AlignmentResult{
		RunID:          uuid.New().String(),
		BatchID:        batch.BatchID(),
		ProfileKey:     p.ProfileKey,
		TimeOffset:     0,
		TimeScale:      1.0,
		AmplitudeScale: 0,
		QualityScore:   singleSampleQuality,
		Distance:       1.0,
		PhaseLabels:    []ferm.Phase{ph},
		PhaseNames:     []string{ph.String()},
		AlignedAt:      time.Now().UTC(),
	}
}

func minMax(xs []float64) (lo, hi float64) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, v := range xs {
		if math.IsNaN(v) {
			continue
		}
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return lo, hi
}
