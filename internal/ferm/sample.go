// Package ferm contains the core domain types for fermentation batch
// telemetry: sensor samples, batch series, phases, and the error taxonomy
// shared by the preprocessing, alignment, and detection packages.
package ferm

import (
	"math"
	"sort"
	"time"
)

// SensorSample is one reading from a tank's sensor head. Samples are
// immutable once ingested; transforms operate on copies.
type SensorSample struct {
	Timestamp    time.Time `json:"timestamp"`
	TankID       string    `json:"tank_id"`
	BatchID      string    `json:"batch_id"`
	Strain       string    `json:"strain"`
	Style        string    `json:"style"`
	GasRate      float64   `json:"gas_rate_lpm"`      // CO2 off-gas rate, litres/minute
	DissolvedGas float64   `json:"dissolved_gas_ppm"` // dissolved O2, ppm
	Pressure     float64   `json:"pressure_kpa"`
	Temperature  float64   `json:"temperature_c"`
	ValveOpen    bool      `json:"valve_open"`
	AgitatorRPM  float64   `json:"agitator_rpm"`
}

// Field identifies one continuous sensor channel on a SensorSample.
// Stages that operate generically over numeric channels iterate
// ContinuousFields rather than hard-coding struct members.
type Field int

const (
	FieldGasRate Field = iota
	FieldDissolvedGas
	FieldPressure
	FieldTemperature
	FieldAgitatorRPM
)

// ContinuousFields lists every numeric channel in pipeline processing order.
func ContinuousFields() []Field {
	return []Field{FieldGasRate, FieldDissolvedGas, FieldPressure, FieldTemperature, FieldAgitatorRPM}
}

// String returns the wire name for the field, matching the input contract's
// column naming.
func (f Field) String() string {
	switch f {
	case FieldGasRate:
		return "gas_rate_lpm"
	case FieldDissolvedGas:
		return "dissolved_gas_ppm"
	case FieldPressure:
		return "pressure_kpa"
	case FieldTemperature:
		return "temperature_c"
	case FieldAgitatorRPM:
		return "agitator_rpm"
	}
	return "unknown"
}

// Value returns the sample's reading for the given field. Missing readings
// are represented as NaN.
func (s SensorSample) Value(f Field) float64 {
	switch f {
	case FieldGasRate:
		return s.GasRate
	case FieldDissolvedGas:
		return s.DissolvedGas
	case FieldPressure:
		return s.Pressure
	case FieldTemperature:
		return s.Temperature
	case FieldAgitatorRPM:
		return s.AgitatorRPM
	}
	return math.NaN()
}

// SetValue writes a reading for the given field.
func (s *SensorSample) SetValue(f Field, v float64) {
	switch f {
	case FieldGasRate:
		s.GasRate = v
	case FieldDissolvedGas:
		s.DissolvedGas = v
	case FieldPressure:
		s.Pressure = v
	case FieldTemperature:
		s.Temperature = v
	case FieldAgitatorRPM:
		s.AgitatorRPM = v
	}
}

// BatchSeries is the ordered sample sequence for a single batch. After
// resampling, timestamps are unique and evenly spaced.
type BatchSeries struct {
	Samples []SensorSample `json:"samples"`
}

// NewBatchSeries copies the given samples into a series sorted by timestamp.
func NewBatchSeries(samples []SensorSample) BatchSeries {
	out := make([]SensorSample, len(samples))
	copy(out, samples)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return BatchSeries{Samples: out}
}

// Len returns the number of samples.
func (b BatchSeries) Len() int { return len(b.Samples) }

// Clone returns a deep copy. Stages transform clones so callers keep the
// original series untouched.
func (b BatchSeries) Clone() BatchSeries {
	out := make([]SensorSample, len(b.Samples))
	copy(out, b.Samples)
	return BatchSeries{Samples: out}
}

// BatchID returns the batch identifier carried by the samples, or "" for an
// empty series.
func (b BatchSeries) BatchID() string {
	if len(b.Samples) == 0 {
		return ""
	}
	return b.Samples[0].BatchID
}

// TankID returns the tank grouping key carried by the samples.
func (b BatchSeries) TankID() string {
	if len(b.Samples) == 0 {
		return ""
	}
	return b.Samples[0].TankID
}

// Strain returns the strain key carried by the samples.
func (b BatchSeries) Strain() string {
	if len(b.Samples) == 0 {
		return ""
	}
	return b.Samples[0].Strain
}

// Style returns the style key carried by the samples.
func (b BatchSeries) Style() string {
	if len(b.Samples) == 0 {
		return ""
	}
	return b.Samples[0].Style
}

// Duration returns the elapsed time between the first and last sample.
func (b BatchSeries) Duration() time.Duration {
	if len(b.Samples) < 2 {
		return 0
	}
	return b.Samples[len(b.Samples)-1].Timestamp.Sub(b.Samples[0].Timestamp)
}

// Values extracts one channel as a slice, preserving sample order.
func (b BatchSeries) Values(f Field) []float64 {
	out := make([]float64, len(b.Samples))
	for i, s := range b.Samples {
		out[i] = s.Value(f)
	}
	return out
}

// Timestamps extracts the sample timestamps in order.
func (b BatchSeries) Timestamps() []time.Time {
	out := make([]time.Time, len(b.Samples))
	for i, s := range b.Samples {
		out[i] = s.Timestamp
	}
	return out
}

// MissingFraction reports the fraction of samples whose reading for the
// field is NaN. Returns 1.0 for an empty series.
func (b BatchSeries) MissingFraction(f Field) float64 {
	if len(b.Samples) == 0 {
		return 1.0
	}
	missing := 0
	for _, s := range b.Samples {
		if math.IsNaN(s.Value(f)) {
			missing++
		}
	}
	return float64(missing) / float64(len(b.Samples))
}

// Validate checks the invariants a series must hold before entering the
// pipeline: non-empty, sorted timestamps, and a single batch identity.
func (b BatchSeries) Validate() error {
	if len(b.Samples) == 0 {
		return &DataQualityError{Reason: "empty batch series"}
	}
	batchID := b.Samples[0].BatchID
	for i := 1; i < len(b.Samples); i++ {
		if b.Samples[i].Timestamp.Before(b.Samples[i-1].Timestamp) {
			return &DataQualityError{BatchID: batchID, Reason: "samples out of timestamp order"}
		}
		if b.Samples[i].BatchID != batchID {
			return &DataQualityError{BatchID: batchID, Reason: "series mixes multiple batch ids"}
		}
	}
	return nil
}

// IsUniform reports whether consecutive timestamps are spaced exactly at the
// given interval with no duplicates.
func (b BatchSeries) IsUniform(interval time.Duration) bool {
	for i := 1; i < len(b.Samples); i++ {
		if b.Samples[i].Timestamp.Sub(b.Samples[i-1].Timestamp) != interval {
			return false
		}
	}
	return true
}
