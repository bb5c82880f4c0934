// Package editor holds the interaction state around a deformation pipeline:
// the domain padding policy, grid edits, control point selection and
// scripted drags. The pipeline itself never sees selection or animation.
package editor

import (
	"context"
	"errors"
	"fmt"

	"github.com/ungerik/go3d/float64/vec3"
	"go.uber.org/zap"

	"github.com/Faultbox/ffdlab/internal/logger"
	"github.com/Faultbox/ffdlab/internal/pipeline"
	"github.com/Faultbox/ffdlab/pkg/ffd"
	fmath "github.com/Faultbox/ffdlab/pkg/math"
)

// ErrNoSelection is returned by DragSelected when nothing is selected.
var ErrNoSelection = errors.New("editor: no control point selected")

// Config holds the editor policy.
type Config struct {
	Grid          ffd.GridSize
	MaxGrid       int
	PaddingRatio  float64
	MinPadding    float64
	DefaultDomain fmath.Box3
	PickRadius    float64
}

// DefaultConfig returns the default policy: a 3x3x3 lattice, at most 11
// points per axis, domains padded by max(5% of the diagonal, 0.1) and a
// +-20 cube before any asset has loaded.
func DefaultConfig() Config {
	return Config{
		Grid:          ffd.GridSize{3, 3, 3},
		MaxGrid:       11,
		PaddingRatio:  0.05,
		MinPadding:    0.1,
		DefaultDomain: fmath.NewBox3(vec3.T{-20, -20, -20}, vec3.T{20, 20, 20}),
		PickRadius:    DefaultPickRadius,
	}
}

// Editor drives a pipeline on behalf of a user interface.
type Editor struct {
	p        *pipeline.Pipeline
	cfg      Config
	selected int
	drags    []*Drag
	log      *zap.Logger
}

// New attaches an editor to p. It takes over p.OnBounds, applies the
// configured grid and sets the default domain.
func New(p *pipeline.Pipeline, cfg Config) (*Editor, error) {
	e := &Editor{p: p, cfg: cfg, selected: -1, log: logger.Named("editor")}
	p.OnBounds = e.boundsChanged

	if _, err := e.SetGridSize(cfg.Grid); err != nil {
		return nil, err
	}
	if err := p.SetDomain(cfg.DefaultDomain); err != nil {
		return nil, err
	}
	return e, nil
}

// Pipeline returns the driven pipeline.
func (e *Editor) Pipeline() *pipeline.Pipeline { return e.p }

// boundsChanged pads the new mesh bounds into the deformation domain. A
// failed load reports an unset box, which removes the lattice.
func (e *Editor) boundsChanged(b fmath.Box3) {
	domain := b.Padded(e.cfg.PaddingRatio, e.cfg.MinPadding)
	if err := e.p.SetDomain(domain); err != nil {
		e.log.Warn("applying domain", zap.Stringer("domain", domain), zap.Error(err))
	}
}

// Load switches to another asset. Selection and running drags are dropped.
func (e *Editor) Load(ctx context.Context, name string) {
	e.clearInteraction()
	e.p.Load(ctx, name)
}

// SetGridSize clamps every axis to [2, MaxGrid] and resizes the lattice.
// It returns the size actually applied.
func (e *Editor) SetGridSize(grid ffd.GridSize) (ffd.GridSize, error) {
	grid = grid.Clamped(e.cfg.MaxGrid)
	if grid != e.p.Grid() {
		e.clearInteraction()
	}
	return grid, e.p.SetGridSize(grid)
}

// SetAxis changes the number of points along one axis.
func (e *Editor) SetAxis(axis, n int) (ffd.GridSize, error) {
	if axis < 0 || axis > 2 {
		return e.p.Grid(), fmt.Errorf("editor: axis %d out of range", axis)
	}
	grid := e.p.Grid()
	grid[axis] = n
	return e.SetGridSize(grid)
}

// Select marks control point index as the drag target.
func (e *Editor) Select(index int) error {
	if n := len(e.p.ControlPoints()); index < 0 || index >= n {
		return fmt.Errorf("editor: control point %d out of range [0,%d)", index, n)
	}
	e.selected = index
	return nil
}

// Deselect clears the selection.
func (e *Editor) Deselect() { e.selected = -1 }

// Selected returns the selected control point.
func (e *Editor) Selected() (int, bool) {
	return e.selected, e.selected >= 0
}

// DragSelected moves the selected control point to pos.
func (e *Editor) DragSelected(pos vec3.T) error {
	if e.selected < 0 {
		return ErrNoSelection
	}
	return e.p.MoveControlPoint(e.selected, pos)
}

// NudgeSelected moves the selected control point by delta.
func (e *Editor) NudgeSelected(delta vec3.T) error {
	if e.selected < 0 {
		return ErrNoSelection
	}
	pos := e.p.ControlPoints()[e.selected]
	return e.p.MoveControlPoint(e.selected, vec3.Add(&pos, &delta))
}

// Reset restores the undeformed lattice and clears the selection.
func (e *Editor) Reset() error {
	e.clearInteraction()
	return e.p.ResetLattice()
}

func (e *Editor) clearInteraction() {
	e.selected = -1
	e.drags = nil
}
