package ffd

import (
	"fmt"

	"github.com/ungerik/go3d/float64/vec3"

	"github.com/Faultbox/ffdlab/pkg/bezier"
)

// IndexOverflowError reports control-point indices the grid asked for but the
// control-point slice does not have. It means the grid size and the lattice
// disagree upstream; the affected terms were left out of the sum.
type IndexOverflowError struct {
	Grid    GridSize
	Count   int // len of the control-point slice
	First   int // first index that overflowed
	Skipped int // number of skipped terms
}

func (e *IndexOverflowError) Error() string {
	return fmt.Sprintf("ffd: control point index %d out of bounds (grid %v, %d points, %d terms skipped)",
		e.First, e.Grid, e.Count, e.Skipped)
}

// Evaluator evaluates the Bezier volume for one grid size. It keeps the
// per-axis basis buffers between calls, so reuse one Evaluator for all
// vertices of a frame. An Evaluator is not safe for concurrent use.
type Evaluator struct {
	grid       GridSize
	bs, bt, bu []float64
}

// NewEvaluator returns an Evaluator for grid.
func NewEvaluator(grid GridSize) *Evaluator {
	return &Evaluator{
		grid: grid,
		bs:   make([]float64, 0, max(grid[0], 0)),
		bt:   make([]float64, 0, max(grid[1], 0)),
		bu:   make([]float64, 0, max(grid[2], 0)),
	}
}

// Grid returns the grid size the evaluator was built for.
func (e *Evaluator) Grid() GridSize {
	return e.grid
}

// Point computes
//
//	P(s,t,u) = sum_i sum_j sum_k B(i,l,s) B(j,m,t) B(k,n,u) CP[i,j,k]
//
// with l, m, n the per-axis degrees and CP in flattened lattice order.
// Terms whose index falls outside cps are skipped and reported through an
// *IndexOverflowError; the returned point is the sum of the remaining terms.
func (e *Evaluator) Point(cps []vec3.T, p STU) (vec3.T, error) {
	if err := e.grid.Validate(); err != nil {
		return vec3.Zero, err
	}

	ns, nt, nu := e.grid[0], e.grid[1], e.grid[2]
	e.bs = bezier.Basis(ns-1, p[0], e.bs)
	e.bt = bezier.Basis(nt-1, p[1], e.bt)
	e.bu = bezier.Basis(nu-1, p[2], e.bu)

	var (
		position vec3.T
		overflow *IndexOverflowError
	)

	for i := 0; i < ns; i++ {
		bs := e.bs[i]
		for j := 0; j < nt; j++ {
			bst := bs * e.bt[j]
			row := e.grid.Index(i, j, 0)

			for k := 0; k < nu; k++ {
				index := row + k
				if index >= len(cps) {
					if overflow == nil {
						overflow = &IndexOverflowError{Grid: e.grid, Count: len(cps), First: index}
					}
					overflow.Skipped++
					continue
				}

				scaled := cps[index].Scaled(bst * e.bu[k])
				position.Add(&scaled)
			}
		}
	}

	if overflow != nil {
		return position, overflow
	}
	return position, nil
}

// Evaluate is the one-shot form of Evaluator.Point.
func Evaluate(cps []vec3.T, p STU, grid GridSize) (vec3.T, error) {
	return NewEvaluator(grid).Point(cps, p)
}
