// Package preview renders a deformed mesh and its control cage into an
// image without a GPU: an orthographic z-buffered rasterizer with flat
// shading, a wireframe overlay for the lattice and WebP or PNG output.
package preview

import (
	"image"
	"image/color"
	"math"
)

// frameBuffer holds colour and depth for one render. Larger depth values are
// closer to the viewer.
type frameBuffer struct {
	width, height int
	img           *image.NRGBA
	depth         []float64
}

func newFrameBuffer(width, height int, bg color.NRGBA) *frameBuffer {
	fb := &frameBuffer{
		width:  width,
		height: height,
		img:    image.NewNRGBA(image.Rect(0, 0, width, height)),
		depth:  make([]float64, width*height),
	}
	for i := range fb.depth {
		fb.depth[i] = math.Inf(-1)
	}
	for i := 0; i < len(fb.img.Pix); i += 4 {
		fb.img.Pix[i] = bg.R
		fb.img.Pix[i+1] = bg.G
		fb.img.Pix[i+2] = bg.B
		fb.img.Pix[i+3] = bg.A
	}
	return fb
}

func (fb *frameBuffer) set(x, y int, c color.NRGBA) {
	if x < 0 || y < 0 || x >= fb.width || y >= fb.height {
		return
	}
	i := y*fb.img.Stride + x*4
	fb.img.Pix[i] = c.R
	fb.img.Pix[i+1] = c.G
	fb.img.Pix[i+2] = c.B
	fb.img.Pix[i+3] = c.A
}

// fillTriangle rasterizes a screen-space triangle with barycentric depth
// interpolation.
func (fb *frameBuffer) fillTriangle(a, b, c [3]float64, col color.NRGBA) {
	minX := int(math.Floor(math.Min(math.Min(a[0], b[0]), c[0])))
	maxX := int(math.Ceil(math.Max(math.Max(a[0], b[0]), c[0])))
	minY := int(math.Floor(math.Min(math.Min(a[1], b[1]), c[1])))
	maxY := int(math.Ceil(math.Max(math.Max(a[1], b[1]), c[1])))
	minX = max(minX, 0)
	minY = max(minY, 0)
	maxX = min(maxX, fb.width-1)
	maxY = min(maxY, fb.height-1)
	if minX > maxX || minY > maxY {
		return
	}

	det := (b[1]-c[1])*(a[0]-c[0]) + (c[0]-b[0])*(a[1]-c[1])
	if math.Abs(det) < 1e-12 {
		return
	}
	inv := 1 / det

	for y := minY; y <= maxY; y++ {
		py := float64(y) + 0.5
		for x := minX; x <= maxX; x++ {
			px := float64(x) + 0.5
			w0 := ((b[1]-c[1])*(px-c[0]) + (c[0]-b[0])*(py-c[1])) * inv
			w1 := ((c[1]-a[1])*(px-c[0]) + (a[0]-c[0])*(py-c[1])) * inv
			w2 := 1 - w0 - w1
			if w0 < 0 || w1 < 0 || w2 < 0 {
				continue
			}
			z := w0*a[2] + w1*b[2] + w2*c[2]
			i := y*fb.width + x
			if z <= fb.depth[i] {
				continue
			}
			fb.depth[i] = z
			fb.set(x, y, col)
		}
	}
}

// line draws a segment on top of everything already rendered.
func (fb *frameBuffer) line(a, b [3]float64, col color.NRGBA) {
	dx, dy := b[0]-a[0], b[1]-a[1]
	steps := int(math.Ceil(math.Max(math.Abs(dx), math.Abs(dy))))
	if steps == 0 {
		fb.set(int(a[0]), int(a[1]), col)
		return
	}
	for s := 0; s <= steps; s++ {
		t := float64(s) / float64(steps)
		fb.set(int(a[0]+dx*t), int(a[1]+dy*t), col)
	}
}

// dot draws a filled square of the given radius centred on p.
func (fb *frameBuffer) dot(p [3]float64, radius int, col color.NRGBA) {
	cx, cy := int(p[0]), int(p[1])
	for y := cy - radius; y <= cy+radius; y++ {
		for x := cx - radius; x <= cx+radius; x++ {
			fb.set(x, y, col)
		}
	}
}
