package validators

import (
	"fmt"
	"math"
)

// RangeError names the field that was out of bounds so the client can
// highlight it
type RangeError struct {
	Field string
	Min   float64
	Max   float64
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("%s must be between %v and %v", e.Field, e.Min, e.Max)
}

func IntRange(field string, v, lo, hi int) error {
	if v < lo || v > hi {
		return &RangeError{Field: field, Min: float64(lo), Max: float64(hi)}
	}

	return nil
}

func FloatRange(field string, v, lo, hi float64) error {
	if math.IsNaN(v) || v < lo || v > hi {
		return &RangeError{Field: field, Min: lo, Max: hi}
	}

	return nil
}
