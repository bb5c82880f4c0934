package ffd

import (
	"github.com/ungerik/go3d/float64/vec3"

	fmath "github.com/Faultbox/ffdlab/pkg/math"
)

// STU is a point in the lattice's parametric space, each axis in [0,1].
type STU [3]float64

// MapToSTU normalizes p against the box min..max.
// An axis with zero extent maps to 0. Points outside the box are clamped onto
// the nearest face, so the volume is never extrapolated.
func MapToSTU(p, min, max vec3.T) STU {
	var stu STU
	for a := 0; a < 3; a++ {
		extent := max[a] - min[a]
		if extent == 0 {
			continue
		}
		stu[a] = fmath.Clamp01((p[a] - min[a]) / extent)
	}
	return stu
}

// MapBox is MapToSTU against a box. An unset box maps everything to the origin.
func MapBox(p vec3.T, box fmath.Box3) STU {
	if !box.IsSet() {
		return STU{}
	}
	return MapToSTU(p, box.Min, box.Max)
}
