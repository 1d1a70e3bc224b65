// Package features derives model-ready feature vectors from cleaned,
// phase-labelled batch series: rolling statistics, lags, polynomial and
// interaction terms, and cyclical temporal encodings. It consumes the
// pipeline's output and feeds the forecasting and anomaly layers.
package features

import (
	"math"
	"strconv"

	"gonum.org/v1/gonum/stat"

	"github.com/brewtrace/brewtrace/internal/ferm"
)

// Config tunes feature extraction. Window and lag units are samples on the
// resampled grid.
type Config struct {
	RollingWindows []int `json:"rolling_windows"`
	Lags           []int `json:"lags"`
	// PolynomialDegree adds v^2..v^degree terms for the gas-rate and
	// temperature channels. Degrees below 2 disable polynomial terms.
	PolynomialDegree int `json:"polynomial_degree"`
}

// DefaultConfig mirrors the half-hour/one-hour/two-hour windows and the
// 5/15/60-minute lags used on the five-minute grid.
func DefaultConfig() Config {
	return Config{
		RollingWindows:   []int{6, 12, 24},
		Lags:             []int{1, 3, 12},
		PolynomialDegree: 2,
	}
}

// Validate rejects non-positive windows or lags at construction time.
func (c Config) Validate() error {
	for _, w := range c.RollingWindows {
		if w < 1 {
			return &ferm.ConfigurationError{Param: "features.rolling_windows", Reason: "windows must be positive"}
		}
	}
	for _, l := range c.Lags {
		if l < 1 {
			return &ferm.ConfigurationError{Param: "features.lags", Reason: "lags must be positive"}
		}
	}
	return nil
}

// Vector is one sample's derived features, keyed by feature name. Missing
// history (e.g. lags before the batch start) yields NaN entries so
// consumers can mask them.
type Vector map[string]float64

// Extract computes a feature vector per sample. phases may be nil when no
// alignment is available; phase encoding then reports -1 (unknown).
func Extract(batch ferm.BatchSeries, phases []ferm.Phase, cfg Config) ([]Vector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	n := batch.Len()
	out := make([]Vector, n)
	for i := range out {
		out[i] = make(Vector)
	}

	gas := batch.Values(ferm.FieldGasRate)
	temp := batch.Values(ferm.FieldTemperature)
	pressure := batch.Values(ferm.FieldPressure)
	dgas := batch.Values(ferm.FieldDissolvedGas)
	rpm := batch.Values(ferm.FieldAgitatorRPM)

	rollingInto(out, "gas_rate", gas, cfg.RollingWindows)
	rollingInto(out, "dissolved_gas", dgas, cfg.RollingWindows)
	lagsInto(out, "gas_rate", gas, cfg.Lags)
	lagsInto(out, "dissolved_gas", dgas, cfg.Lags)
	lagsInto(out, "temperature", temp, cfg.Lags)

	// Estimated attenuation: cumulative off-gas as a fraction of the batch
	// total, a proxy for sugar consumed so far.
	var total, running float64
	for _, g := range gas {
		if !math.IsNaN(g) {
			total += g
		}
	}
	for i := 0; i < n; i++ {
		if !math.IsNaN(gas[i]) {
			running += gas[i]
		}
		if total > 0 {
			out[i]["attenuation_est"] = running / total
		} else {
			out[i]["attenuation_est"] = 0
		}
	}

	for i := 0; i < n; i++ {
		v := out[i]

		// Polynomial terms.
		for d := 2; d <= cfg.PolynomialDegree; d++ {
			v[named("gas_rate_pow", d)] = math.Pow(gas[i], float64(d))
			v[named("temperature_pow", d)] = math.Pow(temp[i], float64(d))
		}

		// Interactions between the driving channels.
		v["gas_rate_x_temperature"] = gas[i] * temp[i]
		v["gas_rate_x_pressure"] = gas[i] * pressure[i]
		v["gas_rate_x_agitator"] = gas[i] * rpm[i]

		// Valve and agitator derived features.
		if batch.Samples[i].ValveOpen {
			v["valve_open"] = 1
		} else {
			v["valve_open"] = 0
		}
		if i > 0 {
			v["gas_rate_delta"] = gas[i] - gas[i-1]
			v["agitator_delta"] = rpm[i] - rpm[i-1]
		} else {
			v["gas_rate_delta"] = math.NaN()
			v["agitator_delta"] = math.NaN()
		}

		// Cyclical clock encoding.
		hour := float64(batch.Samples[i].Timestamp.Hour())
		v["hour_sin"] = math.Sin(2 * math.Pi * hour / 24)
		v["hour_cos"] = math.Cos(2 * math.Pi * hour / 24)
		day := float64(batch.Samples[i].Timestamp.Weekday())
		v["day_sin"] = math.Sin(2 * math.Pi * day / 7)
		v["day_cos"] = math.Cos(2 * math.Pi * day / 7)

		// Phase encoding follows the forward phase order; unknown is -1.
		v["phase"] = encodePhase(phases, i)
	}
	return out, nil
}

func encodePhase(phases []ferm.Phase, i int) float64 {
	if i >= len(phases) {
		return -1
	}
	switch phases[i] {
	case ferm.PhaseLag:
		return 0
	case ferm.PhaseExponential:
		return 1
	case ferm.PhaseStationary:
		return 2
	case ferm.PhaseDecline:
		return 3
	}
	return -1
}

// rollingInto writes trailing-window mean and stddev features. Windows are
// truncated at the batch start rather than emitting NaN, matching the
// min_periods=1 behaviour of the historical tooling.
func rollingInto(out []Vector, name string, xs []float64, windows []int) {
	for _, w := range windows {
		for i := range xs {
			start := i - w + 1
			if start < 0 {
				start = 0
			}
			window := xs[start : i+1]
			mean, std := stat.MeanStdDev(window, nil)
			if math.IsNaN(std) {
				std = 0
			}
			out[i][named(name+"_roll_mean", w)] = mean
			out[i][named(name+"_roll_std", w)] = std
			skew := 0.0
			if len(window) >= 3 && std > 0 {
				skew = stat.Skew(window, nil)
			}
			out[i][named(name+"_roll_skew", w)] = skew
		}
	}
}

func lagsInto(out []Vector, name string, xs []float64, lags []int) {
	for _, l := range lags {
		for i := range xs {
			key := named(name+"_lag", l)
			if i < l {
				out[i][key] = math.NaN()
				continue
			}
			out[i][key] = xs[i-l]
		}
	}
}

func named(prefix string, n int) string {
	return prefix + "_" + strconv.Itoa(n)
}
