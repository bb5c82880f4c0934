// Package pipeline keeps a read-only baked mesh and a deformable working
// mesh consistent while the asset, the domain and the control lattice
// change.
//
// Loading is the only asynchronous step. Every load is tagged with a
// generation number; a result whose generation is no longer current is
// discarded without touching any state. Everything else runs on the
// caller's goroutine, and a Pipeline must be driven from one goroutine.
package pipeline

import (
	"context"
	"fmt"
	"sync"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/ungerik/go3d/float64/vec3"
	"go.uber.org/zap"

	"github.com/Faultbox/ffdlab/internal/bake"
	"github.com/Faultbox/ffdlab/internal/logger"
	"github.com/Faultbox/ffdlab/internal/mesh"
	"github.com/Faultbox/ffdlab/internal/scene"
	"github.com/Faultbox/ffdlab/pkg/ffd"
	fmath "github.com/Faultbox/ffdlab/pkg/math"
)

// Loader produces the scene of a named asset. Load runs on its own
// goroutine and must honour ctx cancellation.
type Loader interface {
	Load(ctx context.Context, name string) (*scene.Scene, error)
}

// State is the pipeline's position in its load cycle.
type State int

const (
	StateEmpty State = iota
	StateBaking
	StateReady
)

func (s State) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StateBaking:
		return "baking"
	case StateReady:
		return "ready"
	default:
		return "unknown"
	}
}

// DefaultGrid is the lattice size used when Options.Grid is zero.
var DefaultGrid = ffd.GridSize{3, 3, 3}

// Options configures a Pipeline.
type Options struct {
	Grid ffd.GridSize
	// Scales maps asset names to the uniform scale applied before baking.
	Scales map[string]float32
}

type loadResult struct {
	gen   uint64
	name  string
	scene *scene.Scene
	err   error
}

// Pipeline is the dual-mesh deformation pipeline.
type Pipeline struct {
	// OnBounds receives the world-space bounds of every new baked mesh, and
	// an unset box when a load fails. It runs on the goroutine calling Poll
	// or Await and may call back into the pipeline, typically SetDomain.
	OnBounds func(fmath.Box3)

	loader Loader
	scales map[string]float32
	log    *zap.Logger

	state      State
	generation uint64
	asset      string
	loadCtx    context.Context
	cancel     context.CancelFunc // cancels the pending load and abandons its result
	results    chan loadResult

	baked   *mesh.Baked
	working *mesh.Working

	grid    ffd.GridSize
	domain  fmath.Box3
	cage    ffd.Cage
	lattice *ffd.Lattice
	eval    *ffd.Evaluator

	cache      [][]ffd.STU
	cacheValid bool
	scratch    []mgl32.Vec3

	stats FrameStats
}

// New returns an empty pipeline loading through loader.
func New(loader Loader, opts Options) *Pipeline {
	grid := opts.Grid
	if grid == (ffd.GridSize{}) {
		grid = DefaultGrid
	}
	grid = grid.Clamped(0)
	return &Pipeline{
		loader:  loader,
		scales:  opts.Scales,
		log:     logger.Named("pipeline"),
		results: make(chan loadResult, 4),
		grid:    grid,
		eval:    ffd.NewEvaluator(grid),
		lattice: &ffd.Lattice{Grid: grid},
	}
}

// State returns the current state.
func (p *Pipeline) State() State { return p.state }

// Generation returns the current generation token.
func (p *Pipeline) Generation() uint64 { return p.generation }

// Asset returns the name of the current (or pending) asset.
func (p *Pipeline) Asset() string { return p.asset }

// Baked returns the read-only baked mesh, nil unless Ready.
func (p *Pipeline) Baked() *mesh.Baked { return p.baked }

// Deformed returns the working mesh for rendering, nil unless Ready.
func (p *Pipeline) Deformed() *mesh.Working { return p.working }

// WorkingMesh is Deformed for callers that need a mesh: it fails with
// ErrNotReady unless an asset is baked.
func (p *Pipeline) WorkingMesh() (*mesh.Working, error) {
	if p.state != StateReady || p.working == nil {
		return nil, fmt.Errorf("%w (state %s)", ErrNotReady, p.state)
	}
	return p.working, nil
}

// Load starts loading name and discards everything derived from the
// previous asset. The result is applied by a later Poll or Await.
func (p *Pipeline) Load(ctx context.Context, name string) {
	p.generation++
	p.asset = name
	p.baked, p.working = nil, nil
	p.invalidateCache()
	p.state = StateBaking
	p.loadCtx = ctx

	p.log.Info("loading asset", zap.String("asset", name), zap.Uint64("generation", p.generation))
	p.startLoad()
}

// startLoad runs the loader for the current asset and generation.
func (p *Pipeline) startLoad() {
	if p.cancel != nil {
		p.cancel()
	}
	ctx, cancel := context.WithCancel(p.loadCtx)
	abandoned := make(chan struct{})
	p.cancel = sync.OnceFunc(func() {
		cancel()
		close(abandoned)
	})

	gen, name, loader, results := p.generation, p.asset, p.loader, p.results
	go func() {
		sc, err := loader.Load(ctx, name)
		// A superseded or closed load is stale; nobody will read it once
		// the buffer is full.
		select {
		case results <- loadResult{gen: gen, name: name, scene: sc, err: err}:
		case <-abandoned:
		}
	}()
}

// Poll applies every load result that has arrived without blocking. It
// returns the failure of the current load, if that is what arrived.
func (p *Pipeline) Poll() error {
	for {
		select {
		case r := <-p.results:
			if current, err := p.apply(r); current && err != nil {
				return err
			}
		default:
			return nil
		}
	}
}

// Await blocks until the current load has been applied or ctx is done.
// It returns immediately when no load is pending.
func (p *Pipeline) Await(ctx context.Context) error {
	for p.state == StateBaking {
		select {
		case r := <-p.results:
			if current, err := p.apply(r); current {
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// apply installs a load result. Stale results are dropped.
func (p *Pipeline) apply(r loadResult) (current bool, err error) {
	if r.gen != p.generation || p.state != StateBaking {
		p.log.Debug("discarding stale load",
			zap.String("asset", r.name),
			zap.Uint64("generation", r.gen),
			zap.Uint64("current", p.generation))
		return false, nil
	}
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}

	if r.err != nil {
		return true, p.fail(fmt.Errorf("%w: %s: %w", ErrLoadFailed, r.name, r.err))
	}

	baked, stats, err := bake.Bake(r.scene, bake.Options{Scale: p.scales[r.name]})
	if err != nil {
		return true, p.fail(fmt.Errorf("%w: %s: %w", ErrLoadFailed, r.name, err))
	}

	p.baked = baked
	p.working = mesh.NewWorking(baked)
	p.state = StateReady
	p.log.Info("asset ready",
		zap.String("asset", r.name),
		zap.Uint64("generation", r.gen),
		zap.Int("parts", stats.Parts),
		zap.Int("instances", stats.Instances),
		zap.Int("vertices", stats.Vertices))

	if p.OnBounds != nil {
		p.OnBounds(baked.Bounds())
	}
	// The callback may have loaded something else, or already deformed
	// through SetDomain.
	if p.state != StateReady || p.baked != baked || p.cacheValid {
		return true, nil
	}
	return true, p.refresh()
}

func (p *Pipeline) fail(err error) error {
	p.baked, p.working = nil, nil
	p.invalidateCache()
	p.state = StateEmpty
	p.log.Error("asset load failed", zap.String("asset", p.asset), zap.Error(err))
	if p.OnBounds != nil {
		p.OnBounds(fmath.Unset())
	}
	return err
}

// Close cancels any in-flight load and releases its goroutine.
func (p *Pipeline) Close() {
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
}

// Grid returns the lattice dimensions.
func (p *Pipeline) Grid() ffd.GridSize { return p.grid }

// Domain returns the deformation domain.
func (p *Pipeline) Domain() fmath.Box3 { return p.domain }

// Cage returns the undeformed lattice built for the current domain.
func (p *Pipeline) Cage() ffd.Cage { return p.cage }

// ControlPoints returns a copy of the current control points.
func (p *Pipeline) ControlPoints() []vec3.T {
	return append([]vec3.T(nil), p.lattice.Points...)
}

// SetGridSize changes the lattice dimensions. The lattice is rebuilt
// undeformed for the current domain. A load in flight is restarted under
// the new generation.
func (p *Pipeline) SetGridSize(grid ffd.GridSize) error {
	if err := grid.Validate(); err != nil {
		return err
	}
	if grid.Clamped(0) != grid {
		return fmt.Errorf("%w: %v has an axis below %d points", ffd.ErrInvalidGrid, grid, ffd.MinAxisPoints)
	}
	if grid == p.grid {
		return nil
	}

	p.generation++
	p.grid = grid
	p.eval = ffd.NewEvaluator(grid)
	p.invalidateCache()
	p.resetLattice()
	p.log.Debug("grid resized", zap.Stringer("grid", grid), zap.Uint64("generation", p.generation))

	switch p.state {
	case StateBaking:
		p.log.Info("reissuing load after resize", zap.String("asset", p.asset), zap.Uint64("generation", p.generation))
		p.startLoad()
		return nil
	case StateReady:
		return p.refresh()
	}
	return nil
}
