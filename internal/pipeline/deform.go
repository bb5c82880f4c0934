package pipeline

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/ungerik/go3d/float64/vec3"
	"go.uber.org/zap"

	"github.com/Faultbox/ffdlab/pkg/ffd"
	fmath "github.com/Faultbox/ffdlab/pkg/math"
)

// FrameStats counts deformation work.
type FrameStats struct {
	Frames       int           // deformation passes run
	CacheBuilds  int           // coordinate cache rebuilds
	Vertices     int           // vertices written by the last pass
	SkippedParts int           // parts skipped by the last pass
	Last         time.Duration // duration of the last pass
}

// Stats returns the deformation counters.
func (p *Pipeline) Stats() FrameStats { return p.stats }

// SetDomain sets the box the lattice spans. Changing it rebuilds the
// undeformed lattice and the coordinate cache; setting the same box again
// keeps the current control points. An unset box removes the lattice and
// leaves the working mesh as it is.
func (p *Pipeline) SetDomain(box fmath.Box3) error {
	if box.Equal(p.domain) && p.lattice.Points != nil {
		return p.refresh()
	}

	p.domain = box
	p.invalidateCache()
	p.resetLattice()
	p.log.Debug("domain set", zap.Stringer("domain", box))
	return p.refresh()
}

// SetControlPoints replaces all control points. The slice is copied.
func (p *Pipeline) SetControlPoints(points []vec3.T) error {
	p.lattice.Points = append(p.lattice.Points[:0:0], points...)
	return p.refresh()
}

// MoveControlPoint moves one control point and re-deforms.
func (p *Pipeline) MoveControlPoint(index int, pos vec3.T) error {
	if err := p.lattice.Move(index, pos); err != nil {
		return err
	}
	return p.refresh()
}

// ResetLattice restores the undeformed lattice and re-deforms.
func (p *Pipeline) ResetLattice() error {
	p.resetLattice()
	return p.refresh()
}

func (p *Pipeline) resetLattice() {
	p.cage = ffd.BuildLattice(p.grid, p.domain)
	if p.cage.IsEmpty() {
		p.lattice = &ffd.Lattice{Grid: p.grid}
		return
	}
	p.lattice = p.cage.Lattice()
}

func (p *Pipeline) invalidateCache() {
	p.cache = nil
	p.cacheValid = false
}

// refresh brings the working mesh up to date with the lattice, rebuilding the
// coordinate cache first if it was invalidated.
func (p *Pipeline) refresh() error {
	if p.state != StateReady || !p.domain.IsSet() {
		return nil
	}
	if !p.cacheValid {
		p.buildCache()
	}
	return p.deform()
}

// buildCache maps every baked vertex into the domain's unit cube.
func (p *Pipeline) buildCache() {
	start := time.Now()
	p.cache = make([][]ffd.STU, p.baked.Len())
	total := 0
	for i := range p.cache {
		part := p.baked.Part(i)
		stu := make([]ffd.STU, part.VertexCount())
		for v := range stu {
			stu[v] = ffd.MapBox(part.WorldPosition(v), p.domain)
		}
		p.cache[i] = stu
		total += len(stu)
	}
	p.cacheValid = true
	p.stats.CacheBuilds++
	p.log.Debug("coordinate cache built",
		zap.Int("parts", len(p.cache)),
		zap.Int("vertices", total),
		zap.Uint64("generation", p.generation),
		zap.Duration("took", time.Since(start)))
}

// deform evaluates every cached coordinate against the lattice and writes
// the results into the working mesh. A part whose sizes disagree with the
// cache, or that fails to evaluate, is skipped and keeps its previous frame;
// parts beyond the shortest of the baked, working and cached lists are
// skipped too. A lattice whose length disagrees with the grid skips the
// whole pass.
func (p *Pipeline) deform() error {
	if want, got := p.grid.Count(), len(p.lattice.Points); want != got {
		err := &IntegrityError{Part: -1, What: "control points", Want: want, Got: got}
		p.log.Warn("lattice does not match grid; frame skipped",
			zap.Stringer("grid", p.grid), zap.Int("want", want), zap.Int("got", got))
		return err
	}

	start := time.Now()
	var errs []error
	written, skipped := 0, 0
	points := p.lattice.Points

	parts := min(p.baked.Len(), p.working.Len(), len(p.cache))
	if most := max(p.baked.Len(), p.working.Len(), len(p.cache)); most != parts {
		err := &IntegrityError{Part: -1, What: "part count", Want: p.baked.Len(), Got: p.working.Len()}
		if err.Want == err.Got {
			err.What, err.Got = "cached part count", len(p.cache)
		}
		p.log.Error("data integrity violation", zap.String("what", err.What),
			zap.Int("want", err.Want), zap.Int("got", err.Got))
		errs = append(errs, err)
		skipped += most - parts
	}

	for i := 0; i < parts; i++ {
		geo := p.working.Part(i).Geometry
		stu := p.cache[i]

		if geo.VertexCount() != len(stu) {
			errs = append(errs, &IntegrityError{Part: i, What: "vertex count", Want: len(stu), Got: geo.VertexCount()})
			p.log.Error("data integrity violation",
				zap.Int("part", i),
				zap.String("name", p.working.Part(i).Name),
				zap.Int("cached", len(stu)),
				zap.Int("vertices", geo.VertexCount()))
			skipped++
			continue
		}

		// Evaluate the whole part before touching its buffers so a failure
		// leaves the previous frame in place.
		out, err := p.evaluatePart(points, stu)
		if err != nil {
			errs = append(errs, fmt.Errorf("part %d: %w", i, err))
			p.log.Error("deformation failed", zap.Int("part", i), zap.Error(err))
			skipped++
			continue
		}
		for v, pos := range out {
			geo.SetPosition(v, pos)
		}
		geo.ComputeVertexNormals()
		written += len(stu)
	}

	p.stats.Frames++
	p.stats.Vertices = written
	p.stats.SkippedParts = skipped
	p.stats.Last = time.Since(start)
	return errors.Join(errs...)
}

// evaluatePart deforms one part's cached coordinates into the scratch buffer.
func (p *Pipeline) evaluatePart(points []vec3.T, stu []ffd.STU) ([]mgl32.Vec3, error) {
	out := p.scratch[:0]
	for _, c := range stu {
		pos, err := p.eval.Point(points, c)
		if err != nil {
			return nil, err
		}
		out = append(out, mgl32.Vec3{float32(pos[0]), float32(pos[1]), float32(pos[2])})
	}
	p.scratch = out
	return out, nil
}
