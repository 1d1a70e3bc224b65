package profile

import "github.com/brewtrace/brewtrace/internal/ferm"

// Default synthesis constants. The curve levels follow the canonical shape
// observed across reference fermentations: a near-flat lag rising to 5% of
// peak, saturating growth to 80%, a plateau bumping to peak, then monotonic
// decay to 30%.
const (
	defaultLagEnd         = 0.05
	defaultExpEnd         = 0.80
	defaultStationaryPeak = 1.00
	defaultDeclineStart   = 0.90
	defaultDeclineEnd     = 0.30

	defaultSaturationRate = 3.0
)

// Fractions holds the relative duration share of each phase. Values must be
// positive and sum to 1.0 within tolerance.
type Fractions struct {
	Lag         float64 `json:"lag"`
	Exponential float64 `json:"exponential"`
	Stationary  float64 `json:"stationary"`
	Decline     float64 `json:"decline"`
}

// DefaultFractions returns the stock phase duration split.
func DefaultFractions() Fractions {
	return Fractions{Lag: 0.10, Exponential: 0.30, Stationary: 0.30, Decline: 0.30}
}

// SynthesisConfig controls default profile synthesis for keys with no
// curated profile. Identical configs always synthesize bit-identical
// profiles; there is no randomness anywhere in the path.
type SynthesisConfig struct {
	Fractions      Fractions `json:"fractions"`
	SaturationRate float64   `json:"saturation_rate"`
}

// DefaultSynthesisConfig returns the stock synthesis parameters.
func DefaultSynthesisConfig() SynthesisConfig {
	return SynthesisConfig{Fractions: DefaultFractions(), SaturationRate: defaultSaturationRate}
}

// Validate rejects non-positive or non-unit-sum fractions at construction
// time.
func (c SynthesisConfig) Validate() error {
	f := c.Fractions
	for name, v := range map[string]float64{
		"lag": f.Lag, "exponential": f.Exponential, "stationary": f.Stationary, "decline": f.Decline,
	} {
		if v <= 0 {
			return &ferm.ConfigurationError{Param: "fractions." + name, Reason: "must be positive"}
		}
	}
	sum := f.Lag + f.Exponential + f.Stationary + f.Decline
	if diff := sum - 1.0; diff > fractionTolerance || diff < -fractionTolerance {
		return &ferm.ConfigurationError{Param: "fractions", Reason: "must sum to 1.0"}
	}
	if c.SaturationRate < 0 {
		return &ferm.ConfigurationError{Param: "saturation_rate", Reason: "must be non-negative"}
	}
	return nil
}

// Synthesize builds the default golden profile for a key from the config's
// phase fractions and shape levels.
func Synthesize(key Key, cfg SynthesisConfig) (*GoldenProfile, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	rate := cfg.SaturationRate
	if rate == 0 {
		rate = defaultSaturationRate
	}
	p := &GoldenProfile{
		ProfileKey: key,
		Segments: []PhaseSegment{
			{
				Phase:    ferm.PhaseLag,
				Name:     ferm.PhaseLag.String(),
				Fraction: cfg.Fractions.Lag,
				Shape:    Shape{Kind: ShapeLinear, Start: 0, End: defaultLagEnd},
			},
			{
				Phase:    ferm.PhaseExponential,
				Name:     ferm.PhaseExponential.String(),
				Fraction: cfg.Fractions.Exponential,
				Shape:    Shape{Kind: ShapeSaturating, Start: defaultLagEnd, End: defaultExpEnd, Rate: rate},
			},
			{
				Phase:    ferm.PhaseStationary,
				Name:     ferm.PhaseStationary.String(),
				Fraction: cfg.Fractions.Stationary,
				Shape:    Shape{Kind: ShapeSinePlateau, Start: defaultExpEnd, End: defaultStationaryPeak},
			},
			{
				Phase:    ferm.PhaseDecline,
				Name:     ferm.PhaseDecline.String(),
				Fraction: cfg.Fractions.Decline,
				Shape:    Shape{Kind: ShapeLinear, Start: defaultDeclineStart, End: defaultDeclineEnd},
			},
		},
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}
