package utils

import (
	"golang.org/x/exp/constraints"
)

// Clamp limits value to the closed range [low, high]
func Clamp[T constraints.Integer | constraints.Float](value, low, high T) (clamped T) {
	switch {
	case value < low:
		return low
	case value > high:
		return high
	default:
		return value
	}
}

// At returns the element at index, or the last one when index overflows
func At[T any](values []T, index int) (value T) {
	if len(values) == 0 {
		return value
	}
	return values[Clamp(index, 0, len(values)-1)]
}
