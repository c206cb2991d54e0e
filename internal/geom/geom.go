// Package geom provides the vector and angle math used by the practice
// analysis pipeline. All functions are pure and tolerate degenerate input
// by returning a defined sentinel value instead of NaN.
package geom

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// AngleBetween returns the angle at vertex b formed by the rays b->a and
// b->c, in degrees. The cosine is clamped to [-1, 1] before the inverse
// cosine to absorb floating-point drift. A zero-length ray yields 0.
func AngleBetween(a, b, c r3.Vec) float64 {
	ba := r3.Sub(a, b)
	bc := r3.Sub(c, b)

	normProduct := r3.Norm(ba) * r3.Norm(bc)
	if normProduct == 0 {
		return 0
	}

	cosine := r3.Dot(ba, bc) / normProduct
	cosine = Clamp(cosine, -1, 1)

	return math.Acos(cosine) * 180 / math.Pi
}

// Distance returns the 3D Euclidean distance between a and b.
func Distance(a, b r3.Vec) float64 {
	return r3.Norm(r3.Sub(b, a))
}

// HorizontalAngle returns the angle of the a->b segment projected onto the
// XY plane, measured against the positive X axis, in degrees within
// (-180, 180]. A zero-length projection yields 0.
func HorizontalAngle(a, b r3.Vec) float64 {
	dx := b.X - a.X
	dy := b.Y - a.Y
	if dx == 0 && dy == 0 {
		return 0
	}
	return math.Atan2(dy, dx) * 180 / math.Pi
}

// Clamp limits v to the [lo, hi] interval.
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
