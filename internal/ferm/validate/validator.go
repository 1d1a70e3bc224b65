// Package validate applies rule-based checks to incoming batch series
// before they enter the pipeline: range bounds, duplicate timestamps per
// group, and missing-fraction limits. It produces a report rather than
// failing fast, so callers can log every violation at once.
package validate

import (
	"fmt"
	"math"
	"time"

	"github.com/brewtrace/brewtrace/internal/ferm"
)

// Violation is one failed rule.
type Violation struct {
	Rule    string `json:"rule"`
	Message string `json:"message"`
}

// Report collects the outcome of a validation run.
type Report struct {
	BatchID    string      `json:"batch_id"`
	Violations []Violation `json:"violations"`
}

// OK reports whether the batch passed every rule.
func (r Report) OK() bool { return len(r.Violations) == 0 }

// Err converts a failed report into a DataQualityError, or returns nil when
// the report is clean.
func (r Report) Err() error {
	if r.OK() {
		return nil
	}
	return &ferm.DataQualityError{
		BatchID: r.BatchID,
		Reason:  fmt.Sprintf("%d validation rule(s) failed, first: %s", len(r.Violations), r.Violations[0].Message),
	}
}

// Rule checks one property of a batch and appends violations to the report.
type Rule func(batch ferm.BatchSeries, rep *Report)

// Validator applies an ordered rule list.
type Validator struct {
	rules []Rule
}

// NewValidator builds an empty validator; add rules with the Add* methods.
func NewValidator() *Validator { return &Validator{} }

// AddRangeRule bounds a channel's valid readings to [min,max].
func (v *Validator) AddRangeRule(f ferm.Field, min, max float64) *Validator {
	v.rules = append(v.rules, func(batch ferm.BatchSeries, rep *Report) {
		below, above := 0, 0
		for _, s := range batch.Samples {
			val := s.Value(f)
			if math.IsNaN(val) {
				continue
			}
			if val < min {
				below++
			}
			if val > max {
				above++
			}
		}
		if below > 0 || above > 0 {
			rep.Violations = append(rep.Violations, Violation{
				Rule:    "range_" + f.String(),
				Message: fmt.Sprintf("%s: %d below %g, %d above %g", f, below, min, above, max),
			})
		}
	})
	return v
}

// AddDuplicateTimestampRule rejects repeated timestamps within the batch.
func (v *Validator) AddDuplicateTimestampRule() *Validator {
	v.rules = append(v.rules, func(batch ferm.BatchSeries, rep *Report) {
		seen := make(map[time.Time]bool, batch.Len())
		dups := 0
		for _, s := range batch.Samples {
			if seen[s.Timestamp] {
				dups++
			}
			seen[s.Timestamp] = true
		}
		if dups > 0 {
			rep.Violations = append(rep.Violations, Violation{
				Rule:    "duplicate_timestamps",
				Message: fmt.Sprintf("%d duplicate timestamps", dups),
			})
		}
	})
	return v
}

// AddMissingFractionRule bounds the missing fraction of a channel.
func (v *Validator) AddMissingFractionRule(f ferm.Field, maxFraction float64) *Validator {
	v.rules = append(v.rules, func(batch ferm.BatchSeries, rep *Report) {
		if frac := batch.MissingFraction(f); frac > maxFraction {
			rep.Violations = append(rep.Violations, Violation{
				Rule:    "missing_" + f.String(),
				Message: fmt.Sprintf("%s: missing fraction %.2f exceeds %.2f", f, frac, maxFraction),
			})
		}
	})
	return v
}

// DefaultValidator carries the stock rule set for fermentation telemetry:
// physically plausible ranges plus structural checks.
func DefaultValidator() *Validator {
	return NewValidator().
		AddDuplicateTimestampRule().
		AddRangeRule(ferm.FieldGasRate, 0, 50).
		AddRangeRule(ferm.FieldPressure, 0, 500).
		AddRangeRule(ferm.FieldTemperature, -10, 60).
		AddMissingFractionRule(ferm.FieldGasRate, 0.4)
}

// Validate runs every rule and returns the report.
func (v *Validator) Validate(batch ferm.BatchSeries) Report {
	rep := Report{BatchID: batch.BatchID()}
	for _, rule := range v.rules {
		rule(batch, &rep)
	}
	return rep
}
