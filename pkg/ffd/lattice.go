package ffd

import (
	"fmt"

	"github.com/ungerik/go3d/float64/vec3"

	fmath "github.com/Faultbox/ffdlab/pkg/math"
)

// Segment is one edge of the lattice wireframe.
type Segment [2]vec3.T

// Cage is the undeformed control lattice for a box: the control points in
// flattened order and the wireframe joining neighbours along each axis.
type Cage struct {
	Grid   GridSize
	Points []vec3.T
	Lines  []Segment
}

// IsEmpty reports whether the cage has no points (unset box).
func (c Cage) IsEmpty() bool {
	return len(c.Points) == 0
}

// Lattice returns a control lattice initialised with the cage points.
func (c Cage) Lattice() *Lattice {
	pts := make([]vec3.T, len(c.Points))
	copy(pts, c.Points)
	return &Lattice{Grid: c.Grid, Points: pts}
}

// BuildLattice lays out a regular grid of control points over box.
// Each axis is clamped to at least two points. Points are emitted with i
// outermost and k innermost; a segment is emitted towards the next point on
// each axis unless the current point is the last one on that axis.
// An unset box yields an empty cage.
func BuildLattice(grid GridSize, box fmath.Box3) Cage {
	if !box.IsSet() {
		return Cage{}
	}

	dims := grid.Clamped(0)
	last := dims.Degrees()

	var step vec3.T
	for a := 0; a < 3; a++ {
		if last[a] == 0 {
			continue
		}
		step[a] = (box.Max[a] - box.Min[a]) / float64(last[a])
	}

	cage := Cage{
		Grid:   dims,
		Points: make([]vec3.T, 0, dims.Count()),
		Lines:  make([]Segment, 0, 3*dims.Count()),
	}

	for i := 0; i < dims[0]; i++ {
		for j := 0; j < dims[1]; j++ {
			for k := 0; k < dims[2]; k++ {
				p := vec3.T{
					box.Min[0] + float64(i)*step[0],
					box.Min[1] + float64(j)*step[1],
					box.Min[2] + float64(k)*step[2],
				}
				cage.Points = append(cage.Points, p)

				if i < last[0] {
					cage.Lines = append(cage.Lines, Segment{p, {p[0] + step[0], p[1], p[2]}})
				}
				if j < last[1] {
					cage.Lines = append(cage.Lines, Segment{p, {p[0], p[1] + step[1], p[2]}})
				}
				if k < last[2] {
					cage.Lines = append(cage.Lines, Segment{p, {p[0], p[1], p[2] + step[2]}})
				}
			}
		}
	}

	return cage
}

// Lattice is the mutable set of control points driving the deformation.
type Lattice struct {
	Grid   GridSize
	Points []vec3.T
}

// Validate checks the length invariant len(Points) == ns*nt*nu.
func (l *Lattice) Validate() error {
	if err := l.Grid.Validate(); err != nil {
		return err
	}
	if len(l.Points) != l.Grid.Count() {
		return fmt.Errorf("%w: %d control points for grid %v (want %d)",
			ErrInvalidGrid, len(l.Points), l.Grid, l.Grid.Count())
	}
	return nil
}

// Move sets control point index to pos.
func (l *Lattice) Move(index int, pos vec3.T) error {
	if index < 0 || index >= len(l.Points) {
		return fmt.Errorf("ffd: control point %d out of range [0,%d)", index, len(l.Points))
	}
	l.Points[index] = pos
	return nil
}

// Clone returns a deep copy.
func (l *Lattice) Clone() *Lattice {
	pts := make([]vec3.T, len(l.Points))
	copy(pts, l.Points)
	return &Lattice{Grid: l.Grid, Points: pts}
}
