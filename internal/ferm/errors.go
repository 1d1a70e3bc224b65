package ferm

import "fmt"

// DataQualityError reports a per-batch data problem: excess missing data,
// duplicate post-resample timestamps, a degenerate alignment signal.
// It aborts processing for the offending batch only; concurrent batches
// proceed unaffected.
type DataQualityError struct {
	BatchID string
	Field   string
	Reason  string
}

func (e *DataQualityError) Error() string {
	msg := "data quality"
	if e.BatchID != "" {
		msg += " [batch " + e.BatchID + "]"
	}
	if e.Field != "" {
		msg += " [" + e.Field + "]"
	}
	return msg + ": " + e.Reason
}

// ConfigurationError reports an invalid pipeline or detector configuration.
// It is fatal at construction time and never raised during per-batch runtime.
type ConfigurationError struct {
	Param  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration [%s]: %s", e.Param, e.Reason)
}
