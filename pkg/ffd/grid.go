// Package ffd implements classical Free-Form Deformation: a trivariate
// Bernstein-Bezier volume driven by a regular grid of control points.
//
// A vertex is first mapped into the lattice's parametric space (s,t,u) with
// MapToSTU. The deformed position is the Bezier volume evaluated at that
// parameter with the current control points (Evaluate / Evaluator). An
// undeformed lattice from BuildLattice reproduces every point inside its
// box, so only displaced control points move geometry.
package ffd

import (
	"errors"
	"fmt"
)

// MinAxisPoints is the smallest number of control points per axis.
const MinAxisPoints = 2

// ErrInvalidGrid is returned when a grid has an axis with no control points.
var ErrInvalidGrid = errors.New("ffd: invalid grid size")

// GridSize is the number of control points along s, t and u.
type GridSize [3]int

// Count returns ns*nt*nu.
func (g GridSize) Count() int {
	return g[0] * g[1] * g[2]
}

// Degrees returns the Bezier degree per axis (points minus one).
func (g GridSize) Degrees() [3]int {
	return [3]int{g[0] - 1, g[1] - 1, g[2] - 1}
}

// Index returns the flattened control-point index of (i,j,k); k varies fastest.
func (g GridSize) Index(i, j, k int) int {
	return i*(g[1]*g[2]) + j*g[2] + k
}

// Clamped returns the grid with every axis raised to at least MinAxisPoints
// and, when max > 0, lowered to at most max.
func (g GridSize) Clamped(max int) GridSize {
	for a := range g {
		if g[a] < MinAxisPoints {
			g[a] = MinAxisPoints
		}
		if max > 0 && g[a] > max {
			g[a] = max
		}
	}
	return g
}

// Validate checks that every axis has at least one point.
func (g GridSize) Validate() error {
	for a, n := range g {
		if n < 1 {
			return fmt.Errorf("%w: axis %d has %d points", ErrInvalidGrid, a, n)
		}
	}
	return nil
}

// String implements fmt.Stringer.
func (g GridSize) String() string {
	return fmt.Sprintf("%dx%dx%d", g[0], g[1], g[2])
}
