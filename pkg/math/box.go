// Package math provides the bounding-box type shared by the lattice and the mesh pipeline.
package math

import (
	"fmt"
	"math"

	"github.com/ungerik/go3d/float64/vec3"
)

// Box3 is an axis-aligned box in world space.
// The zero value is unset: it has no extent and contains nothing.
type Box3 struct {
	Min vec3.T
	Max vec3.T
	set bool
}

// Unset returns the explicit "no box" value.
func Unset() Box3 {
	return Box3{}
}

// NewBox3 returns a box spanning min..max. Corners are reordered per axis.
func NewBox3(min, max vec3.T) Box3 {
	for i := 0; i < 3; i++ {
		if min[i] > max[i] {
			min[i], max[i] = max[i], min[i]
		}
	}
	return Box3{Min: min, Max: max, set: true}
}

// IsSet reports whether the box holds a value.
func (b Box3) IsSet() bool {
	return b.set
}

// ExpandByPoint grows the box to contain p. Expanding an unset box yields a
// zero-extent box at p.
func (b Box3) ExpandByPoint(p vec3.T) Box3 {
	if !b.set {
		return Box3{Min: p, Max: p, set: true}
	}
	for i := 0; i < 3; i++ {
		b.Min[i] = math.Min(b.Min[i], p[i])
		b.Max[i] = math.Max(b.Max[i], p[i])
	}
	return b
}

// Union returns the smallest box containing both boxes.
func (b Box3) Union(other Box3) Box3 {
	if !other.set {
		return b
	}
	if !b.set {
		return other
	}
	return b.ExpandByPoint(other.Min).ExpandByPoint(other.Max)
}

// Size returns the per-axis extent (zero for an unset box).
func (b Box3) Size() vec3.T {
	if !b.set {
		return vec3.Zero
	}
	return vec3.Sub(&b.Max, &b.Min)
}

// Diagonal returns the length of the min-max diagonal.
func (b Box3) Diagonal() float64 {
	size := b.Size()
	return size.Length()
}

// Center returns the midpoint of the box.
func (b Box3) Center() vec3.T {
	sum := vec3.Add(&b.Min, &b.Max)
	return sum.Scaled(0.5)
}

// Expand grows the box by pad on every side.
func (b Box3) Expand(pad float64) Box3 {
	if !b.set {
		return b
	}
	for i := 0; i < 3; i++ {
		b.Min[i] -= pad
		b.Max[i] += pad
	}
	return b
}

// Padded grows the box by max(ratio*diagonal, minPad) on every side. The
// minimum keeps a flat or point-like mesh from producing a zero-extent domain.
func (b Box3) Padded(ratio, minPad float64) Box3 {
	if !b.set {
		return b
	}
	return b.Expand(math.Max(b.Diagonal()*ratio, minPad))
}

// Contains reports whether p lies inside the box (inclusive).
func (b Box3) Contains(p vec3.T) bool {
	if !b.set {
		return false
	}
	for i := 0; i < 3; i++ {
		if p[i] < b.Min[i] || p[i] > b.Max[i] {
			return false
		}
	}
	return true
}

// Equal reports whether both boxes are unset or have identical corners.
func (b Box3) Equal(other Box3) bool {
	if b.set != other.set {
		return false
	}
	return !b.set || (b.Min == other.Min && b.Max == other.Max)
}

// String implements fmt.Stringer.
func (b Box3) String() string {
	if !b.set {
		return "Box3(unset)"
	}
	return fmt.Sprintf("Box3(%v..%v)", b.Min, b.Max)
}

// Clamp01 restricts v to [0,1].
func Clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
