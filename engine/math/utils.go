package math

import "golang.org/x/exp/constraints"

// Clamp limits f to [low, high].
func Clamp[T constraints.Ordered](f, low, high T) T {
	return max(low, min(f, high))
}

// Saturate clamps a color or factor component to [0, 1].
func Saturate(f float32) float32 {
	return Clamp(f, 0, 1)
}
