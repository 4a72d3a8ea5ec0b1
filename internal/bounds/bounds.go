// Package bounds provides range validation for instrument parameters. A
// failed check rejects the value before any device communication happens and
// the resulting error carries the offending value together with the valid
// range.
package bounds

import "fmt"

// Error reports a value outside its documented range.
type Error struct {
	// What is the parameter being set, e.g. "power level".
	What string
	// Value is the offending value.
	Value float64
	// Min and Max are the inclusive limits of the valid range.
	Min, Max float64
	// Integer indicates the parameter is integer valued, which controls
	// formatting only.
	Integer bool
}

func (e *Error) Error() string {
	if e.Integer {
		return fmt.Sprintf("invalid %s %v: must be in the range [%d, %d]",
			e.What, e.Value, int(e.Min), int(e.Max))
	}
	return fmt.Sprintf("invalid %s %v: must be in the range [%g, %g]",
		e.What, e.Value, e.Min, e.Max)
}

// CheckInt returns an *Error if v is outside [min, max].
func CheckInt(what string, v, min, max int) error {
	if v < min || v > max {
		return &Error{What: what, Value: float64(v), Min: float64(min), Max: float64(max), Integer: true}
	}
	return nil
}

// CheckFloat returns an *Error if v is outside [min, max].
func CheckFloat(what string, v, min, max float64) error {
	if v < min || v > max {
		return &Error{What: what, Value: v, Min: min, Max: max}
	}
	return nil
}
