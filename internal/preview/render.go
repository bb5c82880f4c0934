package preview

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"
	"strings"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/ungerik/go3d/float64/vec3"
	"golang.org/x/image/draw"

	"github.com/Faultbox/ffdlab/internal/mesh"
	"github.com/Faultbox/ffdlab/pkg/ffd"
)

// ErrEmpty is returned when there is nothing to draw.
var ErrEmpty = errors.New("preview: nothing to render")

// View selects the camera orientation.
type View int

const (
	ViewIso View = iota
	ViewFront
	ViewSide
	ViewTop
)

var viewNames = map[View]string{
	ViewIso:   "iso",
	ViewFront: "front",
	ViewSide:  "side",
	ViewTop:   "top",
}

func (v View) String() string {
	if name, ok := viewNames[v]; ok {
		return name
	}
	return fmt.Sprintf("View(%d)", int(v))
}

// ParseView maps a view name to a View.
func ParseView(name string) (View, error) {
	for v, n := range viewNames {
		if strings.EqualFold(n, name) {
			return v, nil
		}
	}
	return ViewIso, fmt.Errorf("preview: unknown view %q", name)
}

// rotation turns world space into view space, looking down -Z.
func (v View) rotation() mgl32.Mat4 {
	switch v {
	case ViewFront:
		return mgl32.Ident4()
	case ViewSide:
		return mgl32.HomogRotate3DY(-math.Pi / 2)
	case ViewTop:
		return mgl32.HomogRotate3DX(math.Pi / 2)
	default:
		return mgl32.HomogRotate3DX(float32(math.Atan(1 / math.Sqrt2))).
			Mul4(mgl32.HomogRotate3DY(-math.Pi / 4))
	}
}

// Options controls a render.
type Options struct {
	Width       int
	Height      int
	Supersample int
	Margin      int
	View        View
	Background  color.NRGBA
	Surface     color.NRGBA
	CageColor   color.NRGBA
	PointColor  color.NRGBA
	SelectColor color.NRGBA
}

// DefaultOptions returns a 512x512 isometric render at 2x supersampling.
func DefaultOptions() Options {
	return Options{
		Width:       512,
		Height:      512,
		Supersample: 2,
		Margin:      16,
		View:        ViewIso,
		Background:  color.NRGBA{R: 24, G: 26, B: 30, A: 255},
		Surface:     color.NRGBA{R: 170, G: 180, B: 200, A: 255},
		CageColor:   color.NRGBA{R: 255, G: 170, B: 40, A: 255},
		PointColor:  color.NRGBA{R: 255, G: 220, B: 120, A: 255},
		SelectColor: color.NRGBA{R: 255, G: 60, B: 60, A: 255},
	}
}

// Overlay is the lattice drawn over the mesh. Lines come from the cage,
// Points are the current control points. Selected is -1 for none.
type Overlay struct {
	Lines    []ffd.Segment
	Points   []vec3.T
	Selected int
}

// DeformedLines rebuilds the cage wireframe through the current control
// points so the overlay follows drags.
func DeformedLines(grid ffd.GridSize, points []vec3.T) []ffd.Segment {
	if len(points) != grid.Count() {
		return nil
	}
	var lines []ffd.Segment
	for i := 0; i < grid[0]; i++ {
		for j := 0; j < grid[1]; j++ {
			for k := 0; k < grid[2]; k++ {
				p := points[grid.Index(i, j, k)]
				if i+1 < grid[0] {
					lines = append(lines, ffd.Segment{p, points[grid.Index(i+1, j, k)]})
				}
				if j+1 < grid[1] {
					lines = append(lines, ffd.Segment{p, points[grid.Index(i, j+1, k)]})
				}
				if k+1 < grid[2] {
					lines = append(lines, ffd.Segment{p, points[grid.Index(i, j, k+1)]})
				}
			}
		}
	}
	return lines
}

// light is the fixed key light direction in view space.
var light = mgl32.Vec3{0.35, 0.6, 0.72}.Normalize()

const (
	ambient = 0.35
	direct  = 0.65
)

// shade scales c by a double-sided Lambert term for face normal n.
func shade(c color.NRGBA, n mgl32.Vec3) color.NRGBA {
	k := ambient + direct*math.Abs(float64(n.Dot(light)))
	if k > 1 {
		k = 1
	}
	return color.NRGBA{
		R: uint8(float64(c.R)*k + 0.5),
		G: uint8(float64(c.G)*k + 0.5),
		B: uint8(float64(c.B)*k + 0.5),
		A: c.A,
	}
}

// projector maps view-space points into the supersampled frame.
type projector struct {
	rot           mgl32.Mat4
	center        [2]float64
	scale         float64
	width, height float64
}

func (pr *projector) view(p mgl32.Vec3) mgl32.Vec3 {
	return mgl32.TransformCoordinate(p, pr.rot)
}

func (pr *projector) screen(v mgl32.Vec3) [3]float64 {
	return [3]float64{
		pr.width/2 + (float64(v[0])-pr.center[0])*pr.scale,
		pr.height/2 - (float64(v[1])-pr.center[1])*pr.scale,
		float64(v[2]),
	}
}

func toVec(p vec3.T) mgl32.Vec3 {
	return mgl32.Vec3{float32(p[0]), float32(p[1]), float32(p[2])}
}

// Render draws w and the optional overlay. The framing fits everything
// drawn, so the lattice never leaves the picture.
func Render(w *mesh.Working, overlay *Overlay, opts Options) (*image.NRGBA, error) {
	if opts.Width <= 0 || opts.Height <= 0 {
		return nil, fmt.Errorf("preview: invalid size %dx%d", opts.Width, opts.Height)
	}
	ss := max(opts.Supersample, 1)
	width, height := opts.Width*ss, opts.Height*ss

	pr := &projector{rot: opts.View.rotation(), width: float64(width), height: float64(height)}

	lo := [2]float64{math.Inf(1), math.Inf(1)}
	hi := [2]float64{math.Inf(-1), math.Inf(-1)}
	grow := func(p mgl32.Vec3) {
		v := pr.view(p)
		for a := 0; a < 2; a++ {
			lo[a] = math.Min(lo[a], float64(v[a]))
			hi[a] = math.Max(hi[a], float64(v[a]))
		}
	}
	if w != nil {
		for i := 0; i < w.Len(); i++ {
			geo := w.Part(i).Geometry
			for v := 0; v < geo.VertexCount(); v++ {
				grow(geo.Position(v))
			}
		}
	}
	if overlay != nil {
		for _, p := range overlay.Points {
			grow(toVec(p))
		}
		for _, s := range overlay.Lines {
			grow(toVec(s[0]))
			grow(toVec(s[1]))
		}
	}
	if lo[0] > hi[0] {
		return nil, ErrEmpty
	}

	span := math.Max(hi[0]-lo[0], hi[1]-lo[1])
	if span < 1e-9 {
		span = 1
	}
	margin := float64(opts.Margin * ss)
	usable := math.Min(float64(width), float64(height)) - 2*margin
	if usable <= 0 {
		usable = math.Min(float64(width), float64(height))
	}
	pr.center = [2]float64{(lo[0] + hi[0]) / 2, (lo[1] + hi[1]) / 2}
	pr.scale = usable / span

	fb := newFrameBuffer(width, height, opts.Background)
	if w != nil {
		drawMesh(fb, pr, w, opts.Surface)
	}
	if overlay != nil {
		drawOverlay(fb, pr, overlay, opts, ss)
	}

	if ss == 1 {
		return fb.img, nil
	}
	dst := image.NewNRGBA(image.Rect(0, 0, opts.Width, opts.Height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), fb.img, fb.img.Bounds(), draw.Src, nil)
	return dst, nil
}

func drawMesh(fb *frameBuffer, pr *projector, w *mesh.Working, surface color.NRGBA) {
	for i := 0; i < w.Len(); i++ {
		geo := w.Part(i).Geometry
		n := geo.VertexCount()
		tri := func(a, b, c int) {
			if a >= n || b >= n || c >= n {
				return
			}
			va, vb, vc := pr.view(geo.Position(a)), pr.view(geo.Position(b)), pr.view(geo.Position(c))
			normal := vb.Sub(va).Cross(vc.Sub(va))
			if normal.Len() == 0 {
				return
			}
			col := shade(surface, normal.Normalize())
			fb.fillTriangle(pr.screen(va), pr.screen(vb), pr.screen(vc), col)
		}
		if len(geo.Indices) > 0 {
			for t := 0; t+2 < len(geo.Indices); t += 3 {
				tri(int(geo.Indices[t]), int(geo.Indices[t+1]), int(geo.Indices[t+2]))
			}
			continue
		}
		for t := 0; t+2 < n; t += 3 {
			tri(t, t+1, t+2)
		}
	}
}

func drawOverlay(fb *frameBuffer, pr *projector, o *Overlay, opts Options, ss int) {
	for _, s := range o.Lines {
		fb.line(pr.screen(pr.view(toVec(s[0]))), pr.screen(pr.view(toVec(s[1]))), opts.CageColor)
	}
	for i, p := range o.Points {
		col, r := opts.PointColor, ss
		if i == o.Selected {
			col, r = opts.SelectColor, 2*ss
		}
		fb.dot(pr.screen(pr.view(toVec(p))), r, col)
	}
}
