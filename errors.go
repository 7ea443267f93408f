package nvdbseg

import (
	"fmt"
)

// ValidationError is returned when a linear interval or position is malformed:
// from > to, or values outside of the declared position domain.
type ValidationError struct {
	From   float64
	To     float64
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid linear interval %v-%v: %s", e.From, e.To, e.Reason)
}

// SchemaError is returned when a dataset lacks columns needed to locate its records
// along the road network.
type SchemaError struct {
	Dataset string
	Column  string
	Reason  string
}

func (e *SchemaError) Error() string {
	if e.Column == "" {
		return fmt.Sprintf("dataset '%s': %s", e.Dataset, e.Reason)
	}
	return fmt.Sprintf("dataset '%s': column '%s': %s", e.Dataset, e.Column, e.Reason)
}

// InvariantViolation signals an internal arithmetic check that failed.
// It is never recovered: continuing would silently corrupt output.
type InvariantViolation struct {
	Op     string
	Detail string
}

func (e *InvariantViolation) Error() string {
	return fmt.Sprintf("%s: invariant violated: %s", e.Op, e.Detail)
}
