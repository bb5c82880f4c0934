package pipeline

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ungerik/go3d/float64/vec3"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/Faultbox/ffdlab/internal/logger"
	"github.com/Faultbox/ffdlab/internal/primitive"
	"github.com/Faultbox/ffdlab/internal/scene"
	"github.com/Faultbox/ffdlab/pkg/ffd"
	fmath "github.com/Faultbox/ffdlab/pkg/math"
)

// fakeLoader serves scenes from a map. A gated name blocks until its gate is
// closed or, unless it is stubborn, the context is cancelled.
type fakeLoader struct {
	mu       sync.Mutex
	scenes   map[string]*scene.Scene
	gates    map[string]chan struct{}
	stubborn map[string]bool
	calls    []string
}

func newFakeLoader() *fakeLoader {
	return &fakeLoader{
		scenes: map[string]*scene.Scene{
			"pair":      pairScene(),
			"instanced": instancedScene(),
		},
		gates:    make(map[string]chan struct{}),
		stubborn: make(map[string]bool),
	}
}

func (f *fakeLoader) gate(name string) chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	g := make(chan struct{})
	f.gates[name] = g
	f.scenes[name] = pairScene()
	return g
}

// stubbornGate is a gate that ignores cancellation.
func (f *fakeLoader) stubbornGate(name string) chan struct{} {
	g := f.gate(name)
	f.mu.Lock()
	f.stubborn[name] = true
	f.mu.Unlock()
	return g
}

func (f *fakeLoader) Load(ctx context.Context, name string) (*scene.Scene, error) {
	f.mu.Lock()
	f.calls = append(f.calls, name)
	g := f.gates[name]
	stubborn := f.stubborn[name]
	sc, ok := f.scenes[name]
	f.mu.Unlock()

	switch {
	case g != nil && stubborn:
		<-g
	case g != nil:
		select {
		case <-g:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if !ok {
		return nil, fmt.Errorf("no asset %q", name)
	}
	return sc.Clone(), nil
}

func (f *fakeLoader) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func cube() *scene.Geometry {
	return primitive.Box(2, 2, 2, 1, 1, 1)
}

// pairScene holds two unit cubes side by side: x in [-1,1] and [3,5].
func pairScene() *scene.Scene {
	sc := scene.New("pair")
	sc.AddMesh(sc.Root(), "left", cube(), mgl32.Ident4())
	sc.AddMesh(sc.Root(), "right", cube(), mgl32.Translate3D(4, 0, 0))
	return sc
}

func instancedScene() *scene.Scene {
	sc := scene.New("instanced")
	sc.AddInstanced(sc.Root(), "crates", cube(), mgl32.Ident4(), []mgl32.Mat4{
		mgl32.Translate3D(-3, 0, 0),
		mgl32.Ident4(),
		mgl32.Translate3D(3, 0, 0),
	})
	return sc
}

// newTestPipeline returns a pipeline whose OnBounds sets the domain to the
// exact mesh bounds, plus the observed log.
func newTestPipeline(t *testing.T, opts Options) (*Pipeline, *fakeLoader, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	logger.Replace(zap.New(core))
	t.Cleanup(func() { logger.Replace(nil) })

	loader := newFakeLoader()
	p := New(loader, opts)
	p.OnBounds = func(b fmath.Box3) {
		if b.IsSet() {
			require.NoError(t, p.SetDomain(b))
		}
	}
	t.Cleanup(p.Close)
	return p, loader, logs
}

func ready(t *testing.T, p *Pipeline, name string) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p.Load(ctx, name)
	require.NoError(t, p.Await(ctx))
	require.Equal(t, StateReady, p.State())
}

func assertVec(t *testing.T, want vec3.T, got mgl32.Vec3, msgAndArgs ...interface{}) {
	t.Helper()
	for i := 0; i < 3; i++ {
		assert.InDelta(t, want[i], float64(got[i]), 1e-4, msgAndArgs...)
	}
}

// assertUndeformed checks that every working vertex sits at its baked
// world position.
func assertUndeformed(t *testing.T, p *Pipeline) {
	t.Helper()
	w := p.Deformed()
	require.Equal(t, p.Baked().Len(), w.Len())
	for i := 0; i < w.Len(); i++ {
		geo := w.Part(i).Geometry
		for v := 0; v < geo.VertexCount(); v++ {
			assertVec(t, p.Baked().Part(i).WorldPosition(v), geo.Position(v), "part %d vertex %d", i, v)
		}
	}
}

func TestLoadAndAwait(t *testing.T) {
	var bounds []fmath.Box3
	p, _, logs := newTestPipeline(t, Options{})
	onBounds := p.OnBounds
	p.OnBounds = func(b fmath.Box3) {
		bounds = append(bounds, b)
		onBounds(b)
	}

	assert.Equal(t, StateEmpty, p.State())
	ready(t, p, "pair")

	assert.Equal(t, uint64(1), p.Generation())
	assert.Equal(t, "pair", p.Asset())
	require.Len(t, bounds, 1)
	assert.InDelta(t, -1, bounds[0].Min[0], 1e-6)
	assert.InDelta(t, 5, bounds[0].Max[0], 1e-6)

	assert.Equal(t, 2, p.Deformed().Len())
	w, err := p.WorkingMesh()
	require.NoError(t, err)
	assert.Same(t, p.Deformed(), w)
	assert.Equal(t, 27, len(p.ControlPoints()))
	assert.Equal(t, 54, len(p.Cage().Lines))
	assertUndeformed(t, p)

	assert.Equal(t, 1, logs.FilterMessage("asset ready").Len())
	assert.Equal(t, 1, p.Stats().CacheBuilds)
	assert.Equal(t, 1, p.Stats().Frames)
}

func TestWorkingBuffersAreIndependent(t *testing.T) {
	p, _, _ := newTestPipeline(t, Options{})
	ready(t, p, "pair")

	before := p.Baked().Part(0).WorldPosition(0)
	require.NoError(t, p.MoveControlPoint(0, vec3.T{-10, -10, -10}))
	after := p.Baked().Part(0).WorldPosition(0)

	assert.Equal(t, before, after, "baked mesh never changes")
}

func TestStaleLoadDiscarded(t *testing.T) {
	p, loader, logs := newTestPipeline(t, Options{})
	gate := loader.stubbornGate("slow")
	ctx := context.Background()

	p.Load(ctx, "slow")
	p.Load(ctx, "pair")
	assert.Equal(t, uint64(2), p.Generation())

	require.NoError(t, p.Await(ctx))
	assert.Equal(t, StateReady, p.State())
	assert.Equal(t, "pair", p.Asset())
	deformed := p.Deformed()

	// The slow load ignores cancellation, so its result arrives after the
	// newer one has been applied and must not touch anything.
	close(gate)
	select {
	case r := <-p.results:
		current, err := p.apply(r)
		assert.False(t, current)
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("stale result never delivered")
	}

	assert.Equal(t, StateReady, p.State())
	assert.Same(t, deformed, p.Deformed())
	assert.Equal(t, 1, logs.FilterMessage("discarding stale load").Len())
}

func TestLoadFailure(t *testing.T) {
	var bounds []fmath.Box3
	p, _, logs := newTestPipeline(t, Options{})
	ready(t, p, "pair")
	p.OnBounds = func(b fmath.Box3) { bounds = append(bounds, b) }

	ctx := context.Background()
	p.Load(ctx, "missing")
	err := p.Await(ctx)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrLoadFailed)
	assert.Equal(t, StateEmpty, p.State())
	assert.Nil(t, p.Deformed())
	assert.Nil(t, p.Baked())
	_, err = p.WorkingMesh()
	assert.ErrorIs(t, err, ErrNotReady)
	require.Len(t, bounds, 1)
	assert.False(t, bounds[0].IsSet())
	assert.Equal(t, 1, logs.FilterMessage("asset load failed").Len())

	// Lattice edits without a mesh are harmless.
	assert.NoError(t, p.MoveControlPoint(0, vec3.T{1, 2, 3}))
}

func TestPollFailure(t *testing.T) {
	p, loader, _ := newTestPipeline(t, Options{})
	p.Load(context.Background(), "missing")

	require.Eventually(t, func() bool { return loader.callCount() == 1 && len(p.results) == 1 },
		5*time.Second, time.Millisecond)
	assert.ErrorIs(t, p.Poll(), ErrLoadFailed)
	assert.Equal(t, StateEmpty, p.State())
	assert.NoError(t, p.Poll())
}

func TestPollReady(t *testing.T) {
	p, _, _ := newTestPipeline(t, Options{})
	p.Load(context.Background(), "pair")

	deadline := time.Now().Add(5 * time.Second)
	for p.State() != StateReady {
		require.NoError(t, p.Poll())
		if time.Now().After(deadline) {
			t.Fatal("load never applied")
		}
		time.Sleep(time.Millisecond)
	}
	assertUndeformed(t, p)
}

func TestAwaitContextDone(t *testing.T) {
	p, loader, _ := newTestPipeline(t, Options{})
	loader.gate("slow")
	p.Load(context.Background(), "slow")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, p.Await(ctx), context.DeadlineExceeded)
	assert.Equal(t, StateBaking, p.State())
}

func TestCloseReleasesLoaders(t *testing.T) {
	p, _, _ := newTestPipeline(t, Options{})
	before := runtime.NumGoroutine()

	// More loads than the result buffer holds, none of them collected.
	for i := 0; i < 3*cap(p.results); i++ {
		p.Load(context.Background(), "pair")
	}
	p.Close()

	assert.Eventually(t, func() bool {
		return runtime.NumGoroutine() <= before
	}, 5*time.Second, 10*time.Millisecond)
}

func TestAwaitAfterManyLoads(t *testing.T) {
	p, _, _ := newTestPipeline(t, Options{})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	for i := 0; i < 3*cap(p.results); i++ {
		p.Load(ctx, "pair")
	}
	p.Load(ctx, "instanced")

	require.NoError(t, p.Await(ctx))
	assert.Equal(t, StateReady, p.State())
	assert.Equal(t, "instanced", p.Asset())
	assert.Equal(t, 3, p.Baked().Len())
}

func TestAwaitWithoutLoad(t *testing.T) {
	p, _, _ := newTestPipeline(t, Options{})
	assert.NoError(t, p.Await(context.Background()))
}

func TestCornerDisplacement(t *testing.T) {
	p, _, _ := newTestPipeline(t, Options{Grid: ffd.GridSize{2, 2, 2}})
	ready(t, p, "pair")

	// Control point 0 sits on the domain's min corner (-1,-1,-1), which the
	// left cube's corner vertices share.
	d := vec3.T{-0.5, 0.25, 0}
	corner := p.ControlPoints()[0]
	moved := vec3.Add(&corner, &d)
	require.NoError(t, p.MoveControlPoint(0, moved))

	left := p.Deformed().Part(0).Geometry
	baked := p.Baked().Part(0)
	hits := 0
	for v := 0; v < left.VertexCount(); v++ {
		orig := baked.WorldPosition(v)
		if orig == (vec3.T{-1, -1, -1}) {
			assertVec(t, moved, left.Position(v))
			hits++
		}
	}
	assert.Equal(t, 3, hits, "one corner vertex per adjacent face")

	// The opposite corner of the domain is untouched.
	right := p.Deformed().Part(1).Geometry
	for v := 0; v < right.VertexCount(); v++ {
		if p.Baked().Part(1).WorldPosition(v) == (vec3.T{5, 1, 1}) {
			assertVec(t, vec3.T{5, 1, 1}, right.Position(v))
		}
	}

	require.NoError(t, p.ResetLattice())
	assertUndeformed(t, p)
}

func TestCacheNotRebuiltOnDrag(t *testing.T) {
	p, _, _ := newTestPipeline(t, Options{})
	ready(t, p, "pair")
	require.Equal(t, 1, p.Stats().CacheBuilds)

	for i := 0; i < 5; i++ {
		require.NoError(t, p.MoveControlPoint(13, vec3.T{2, float64(i), 0}))
	}
	points := p.ControlPoints()
	require.NoError(t, p.SetControlPoints(points))
	require.NoError(t, p.ResetLattice())

	assert.Equal(t, 1, p.Stats().CacheBuilds)
	assert.Equal(t, 8, p.Stats().Frames)

	// Same box again: nothing to rebuild, deformation kept.
	require.NoError(t, p.MoveControlPoint(13, vec3.T{2, 4, 0}))
	require.NoError(t, p.SetDomain(p.Domain()))
	assert.Equal(t, 1, p.Stats().CacheBuilds)
	assert.Equal(t, vec3.T{2, 4, 0}, p.ControlPoints()[13])

	// Resizing bumps the generation and rebuilds.
	gen := p.Generation()
	require.NoError(t, p.SetGridSize(ffd.GridSize{4, 3, 2}))
	assert.Equal(t, gen+1, p.Generation())
	assert.Equal(t, 2, p.Stats().CacheBuilds)
	assert.Len(t, p.ControlPoints(), 24)
	assertUndeformed(t, p)

	// A new box rebuilds too.
	box := p.Domain().Expand(1)
	require.NoError(t, p.SetDomain(box))
	assert.Equal(t, 3, p.Stats().CacheBuilds)
	assertUndeformed(t, p)
}

func TestSetGridSizeInvalid(t *testing.T) {
	p, _, _ := newTestPipeline(t, Options{})
	assert.ErrorIs(t, p.SetGridSize(ffd.GridSize{1, 3, 3}), ffd.ErrInvalidGrid)
	assert.Equal(t, DefaultGrid, p.Grid())

	require.NoError(t, p.SetGridSize(DefaultGrid))
	assert.Equal(t, uint64(0), p.Generation(), "unchanged grid is a no-op")
}

func TestResizeDuringBakingReissuesLoad(t *testing.T) {
	p, loader, logs := newTestPipeline(t, Options{})
	gate := loader.gate("gated")
	ctx := context.Background()

	p.Load(ctx, "gated")
	require.NoError(t, p.SetGridSize(ffd.GridSize{4, 4, 4}))
	assert.Equal(t, uint64(2), p.Generation())
	assert.Equal(t, StateBaking, p.State())

	close(gate)
	require.NoError(t, p.Await(ctx))

	assert.Equal(t, StateReady, p.State())
	assert.Len(t, p.ControlPoints(), 64)
	assert.Eventually(t, func() bool { return loader.callCount() == 2 }, 5*time.Second, time.Millisecond)
	assert.Equal(t, 1, logs.FilterMessage("reissuing load after resize").Len())
	assertUndeformed(t, p)
}

func TestIntegrityViolationSkipsPart(t *testing.T) {
	p, _, logs := newTestPipeline(t, Options{Grid: ffd.GridSize{2, 2, 2}})
	ready(t, p, "pair")

	left := p.Deformed().Part(0).Geometry
	left.Positions = left.Positions[:len(left.Positions)-3]
	snapshot := append([]float32(nil), left.Positions...)

	err := p.MoveControlPoint(7, vec3.T{8, 2, 2})
	require.Error(t, err)

	var integrity *IntegrityError
	require.True(t, errors.As(err, &integrity))
	assert.Equal(t, 0, integrity.Part)
	assert.Equal(t, 24, integrity.Want)
	assert.Equal(t, 23, integrity.Got)

	assert.Equal(t, snapshot, left.Positions, "skipped part untouched")
	assert.Equal(t, 1, p.Stats().SkippedParts)
	assert.Equal(t, 24, p.Stats().Vertices)
	assert.Equal(t, 1, logs.FilterMessage("data integrity violation").Len())

	// The other part was still deformed: its max corner follows point 7.
	right := p.Deformed().Part(1)
	for v := 0; v < right.Geometry.VertexCount(); v++ {
		if p.Baked().Part(1).WorldPosition(v) == (vec3.T{5, 1, 1}) {
			assertVec(t, vec3.T{8, 2, 2}, right.Geometry.Position(v))
		}
	}
}

func TestControlPointMismatchKeepsFrame(t *testing.T) {
	p, _, logs := newTestPipeline(t, Options{})
	ready(t, p, "pair")
	require.NoError(t, p.MoveControlPoint(0, vec3.T{-3, -3, -3}))
	snapshot := append([]float32(nil), p.Deformed().Part(0).Geometry.Positions...)
	frames := p.Stats().Frames

	err := p.SetControlPoints(p.ControlPoints()[:20])

	var integrity *IntegrityError
	require.True(t, errors.As(err, &integrity))
	assert.Equal(t, -1, integrity.Part)
	assert.Equal(t, 27, integrity.Want)
	assert.Equal(t, 20, integrity.Got)
	assert.Equal(t, snapshot, p.Deformed().Part(0).Geometry.Positions)
	assert.Equal(t, frames, p.Stats().Frames)
	assert.Equal(t, 1, logs.FilterMessage("lattice does not match grid; frame skipped").Len())
}

func TestPartCountMismatch(t *testing.T) {
	p, _, logs := newTestPipeline(t, Options{})
	ready(t, p, "pair")
	right := append([]float32(nil), p.Deformed().Part(1).Geometry.Positions...)
	p.cache = p.cache[:1]

	err := p.MoveControlPoint(0, vec3.T{-3, -1, -1})

	var integrity *IntegrityError
	require.True(t, errors.As(err, &integrity))
	assert.Equal(t, -1, integrity.Part)
	assert.Equal(t, "cached part count", integrity.What)
	assert.Equal(t, 2, integrity.Want)
	assert.Equal(t, 1, integrity.Got)
	assert.Equal(t, 1, logs.FilterMessage("data integrity violation").Len())

	// Only the part without a cache entry is skipped.
	assert.Equal(t, 1, p.Stats().SkippedParts)
	assert.Equal(t, 24, p.Stats().Vertices)
	assert.Equal(t, right, p.Deformed().Part(1).Geometry.Positions)

	left := p.Deformed().Part(0).Geometry
	hits := 0
	for v := 0; v < left.VertexCount(); v++ {
		if p.Baked().Part(0).WorldPosition(v) == (vec3.T{-1, -1, -1}) {
			assertVec(t, vec3.T{-3, -1, -1}, left.Position(v))
			hits++
		}
	}
	assert.Equal(t, 3, hits)
}

func TestEvaluationFailureKeepsFrame(t *testing.T) {
	p, _, logs := newTestPipeline(t, Options{})
	ready(t, p, "pair")
	require.NoError(t, p.MoveControlPoint(0, vec3.T{-3, -3, -3}))
	left := p.Deformed().Part(0).Geometry
	positions := append([]float32(nil), left.Positions...)
	normals := append([]float32(nil), left.Normals...)

	// An evaluator sized for a larger grid reads past the 27 control points.
	p.eval = ffd.NewEvaluator(ffd.GridSize{3, 3, 4})
	err := p.MoveControlPoint(0, vec3.T{-5, -5, -5})

	var overflow *ffd.IndexOverflowError
	require.True(t, errors.As(err, &overflow))
	assert.Equal(t, positions, left.Positions)
	assert.Equal(t, normals, left.Normals)
	assert.Equal(t, 2, p.Stats().SkippedParts)
	assert.Equal(t, 0, p.Stats().Vertices)
	assert.Equal(t, 2, logs.FilterMessage("deformation failed").Len())
}

func TestMoveControlPointOutOfRange(t *testing.T) {
	p, _, _ := newTestPipeline(t, Options{})
	ready(t, p, "pair")
	assert.Error(t, p.MoveControlPoint(27, vec3.T{}))
	assert.Error(t, p.MoveControlPoint(-1, vec3.T{}))
}

func TestUnsetDomain(t *testing.T) {
	p, _, _ := newTestPipeline(t, Options{})
	ready(t, p, "pair")
	require.NoError(t, p.MoveControlPoint(0, vec3.T{-4, -4, -4}))
	snapshot := append([]float32(nil), p.Deformed().Part(0).Geometry.Positions...)

	require.NoError(t, p.SetDomain(fmath.Unset()))
	assert.True(t, p.Cage().IsEmpty())
	assert.Empty(t, p.ControlPoints())
	assert.Equal(t, snapshot, p.Deformed().Part(0).Geometry.Positions)
}

func TestDomainKeptAcrossBakes(t *testing.T) {
	p, _, _ := newTestPipeline(t, Options{})
	p.OnBounds = nil

	box := fmath.NewBox3(vec3.T{-20, -20, -20}, vec3.T{20, 20, 20})
	require.NoError(t, p.SetDomain(box))
	assert.Len(t, p.ControlPoints(), 27)

	ready(t, p, "pair")
	assert.True(t, p.Domain().Equal(box))
	assert.Equal(t, 1, p.Stats().CacheBuilds)
	assertUndeformed(t, p)

	require.NoError(t, p.MoveControlPoint(26, vec3.T{25, 25, 25}))
	ready(t, p, "instanced")
	assert.Equal(t, vec3.T{25, 25, 25}, p.ControlPoints()[26], "lattice survives a new bake")
	assert.Equal(t, 2, p.Stats().CacheBuilds)
}

func TestInstancedAssetAndScale(t *testing.T) {
	p, _, _ := newTestPipeline(t, Options{Scales: map[string]float32{"instanced": 0.5}})
	ready(t, p, "instanced")

	require.Equal(t, 3, p.Baked().Len())
	assert.Equal(t, "crates_instance_2", p.Baked().Part(2).Name())

	box := p.Baked().Bounds()
	assert.InDelta(t, -2, box.Min[0], 1e-5)
	assert.InDelta(t, 2, box.Max[0], 1e-5)
	assert.InDelta(t, 0.5, box.Max[1], 1e-5)
	assertUndeformed(t, p)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "empty", StateEmpty.String())
	assert.Equal(t, "baking", StateBaking.String())
	assert.Equal(t, "ready", StateReady.String())
	assert.Equal(t, "unknown", State(7).String())
}

func TestIntegrityErrorMessage(t *testing.T) {
	assert.Equal(t, "pipeline: integrity: part 2: vertex count: want 10, got 9",
		(&IntegrityError{Part: 2, What: "vertex count", Want: 10, Got: 9}).Error())
	assert.Equal(t, "pipeline: integrity: part count: want 3, got 2",
		(&IntegrityError{Part: -1, What: "part count", Want: 3, Got: 2}).Error())
}

func BenchmarkDrag(b *testing.B) {
	loader := newFakeLoader()
	loader.scenes["sphere"], _ = primitive.Scene("sphere")
	p := New(loader, Options{Grid: ffd.GridSize{4, 4, 4}})
	p.OnBounds = func(box fmath.Box3) { _ = p.SetDomain(box.Padded(0.05, 0.1)) }
	ctx := context.Background()
	p.Load(ctx, "sphere")
	if err := p.Await(ctx); err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = p.MoveControlPoint(21, vec3.T{float64(i % 7), 0, 0})
	}
}
