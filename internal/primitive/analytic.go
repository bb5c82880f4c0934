package primitive

import (
	"github.com/chewxy/math32"

	"github.com/Faultbox/ffdlab/internal/scene"
)

// builder accumulates an indexed geometry.
type builder struct {
	pos  []float32
	nrm  []float32
	idx  []uint32
	next uint32
}

func (b *builder) vertex(p, n [3]float32) uint32 {
	b.pos = append(b.pos, p[0], p[1], p[2])
	b.nrm = append(b.nrm, n[0], n[1], n[2])
	b.next++
	return b.next - 1
}

func (b *builder) tri(a, c, d uint32) {
	b.idx = append(b.idx, a, c, d)
}

func (b *builder) geometry() *scene.Geometry {
	return &scene.Geometry{Positions: b.pos, Normals: b.nrm, Indices: b.idx}
}

func unit(v [3]float32) [3]float32 {
	l := math32.Sqrt(v[0]*v[0] + v[1]*v[1] + v[2]*v[2])
	if l == 0 {
		return v
	}
	return [3]float32{v[0] / l, v[1] / l, v[2] / l}
}

// Sphere builds a UV sphere centred at the origin with the poles on Y.
// The first and last rings each collapse to a single pole position; the
// degenerate triangles touching the poles are not emitted.
func Sphere(radius float32, widthSegments, heightSegments int) *scene.Geometry {
	widthSegments = max(widthSegments, 3)
	heightSegments = max(heightSegments, 2)

	var b builder
	grid := make([][]uint32, heightSegments+1)

	for iy := 0; iy <= heightSegments; iy++ {
		v := float32(iy) / float32(heightSegments)
		theta := v * math32.Pi
		row := make([]uint32, widthSegments+1)

		for ix := 0; ix <= widthSegments; ix++ {
			u := float32(ix) / float32(widthSegments)
			phi := u * 2 * math32.Pi

			p := [3]float32{
				-radius * math32.Cos(phi) * math32.Sin(theta),
				radius * math32.Cos(theta),
				radius * math32.Sin(phi) * math32.Sin(theta),
			}
			row[ix] = b.vertex(p, unit(p))
		}
		grid[iy] = row
	}

	for iy := 0; iy < heightSegments; iy++ {
		for ix := 0; ix < widthSegments; ix++ {
			a := grid[iy][ix+1]
			c := grid[iy][ix]
			d := grid[iy+1][ix]
			e := grid[iy+1][ix+1]

			if iy != 0 {
				b.tri(a, c, e)
			}
			if iy != heightSegments-1 {
				b.tri(c, d, e)
			}
		}
	}

	return b.geometry()
}

// Box builds an axis-aligned box centred at the origin with every face split
// into a grid of segments. Faces do not share vertices, so edges stay sharp.
func Box(width, height, depth float32, widthSegments, heightSegments, depthSegments int) *scene.Geometry {
	ws := max(widthSegments, 1)
	hs := max(heightSegments, 1)
	ds := max(depthSegments, 1)

	var b builder
	const x, y, z = 0, 1, 2

	b.plane(z, y, x, -1, -1, depth, height, width, ds, hs)
	b.plane(z, y, x, 1, -1, depth, height, -width, ds, hs)
	b.plane(x, z, y, 1, 1, width, depth, height, ws, ds)
	b.plane(x, z, y, 1, -1, width, depth, -height, ws, ds)
	b.plane(x, y, z, 1, -1, width, height, depth, ws, hs)
	b.plane(x, y, z, -1, -1, width, height, -depth, ws, hs)

	return b.geometry()
}

// plane emits one face of a box. u and v are the in-plane axes, w the normal
// axis; depth's sign selects the side.
func (b *builder) plane(u, v, w int, udir, vdir, width, height, depth float32, gridX, gridY int) {
	segW := width / float32(gridX)
	segH := height / float32(gridY)
	normal := float32(1)
	if depth < 0 {
		normal = -1
	}

	offset := b.next
	for iy := 0; iy <= gridY; iy++ {
		py := float32(iy)*segH - height/2
		for ix := 0; ix <= gridX; ix++ {
			px := float32(ix)*segW - width/2

			var p, n [3]float32
			p[u] = px * udir
			p[v] = py * vdir
			p[w] = depth / 2
			n[w] = normal
			b.vertex(p, n)
		}
	}

	stride := uint32(gridX + 1)
	for iy := uint32(0); iy < uint32(gridY); iy++ {
		for ix := uint32(0); ix < uint32(gridX); ix++ {
			a := offset + ix + stride*iy
			c := offset + ix + stride*(iy+1)
			d := offset + ix + 1 + stride*(iy+1)
			e := offset + ix + 1 + stride*iy
			b.tri(a, c, e)
			b.tri(c, d, e)
		}
	}
}

// Cylinder builds a closed cylinder (or cone frustum) along Y centred at the
// origin.
func Cylinder(radiusTop, radiusBottom, height float32, radialSegments, heightSegments int) *scene.Geometry {
	radialSegments = max(radialSegments, 3)
	heightSegments = max(heightSegments, 1)

	var b builder
	half := height / 2
	slope := (radiusBottom - radiusTop) / height

	rows := make([][]uint32, heightSegments+1)
	for iy := 0; iy <= heightSegments; iy++ {
		v := float32(iy) / float32(heightSegments)
		radius := v*(radiusBottom-radiusTop) + radiusTop
		row := make([]uint32, radialSegments+1)

		for ix := 0; ix <= radialSegments; ix++ {
			theta := float32(ix) / float32(radialSegments) * 2 * math32.Pi
			sin, cos := math32.Sin(theta), math32.Cos(theta)
			row[ix] = b.vertex(
				[3]float32{radius * sin, -v*height + half, radius * cos},
				unit([3]float32{sin, slope, cos}),
			)
		}
		rows[iy] = row
	}

	for ix := 0; ix < radialSegments; ix++ {
		for iy := 0; iy < heightSegments; iy++ {
			a := rows[iy][ix]
			c := rows[iy+1][ix]
			d := rows[iy+1][ix+1]
			e := rows[iy][ix+1]
			b.tri(a, c, e)
			b.tri(c, d, e)
		}
	}

	b.cap(true, radiusTop, half, radialSegments)
	b.cap(false, radiusBottom, half, radialSegments)

	return b.geometry()
}

func (b *builder) cap(top bool, radius, half float32, radialSegments int) {
	sign := float32(-1)
	if top {
		sign = 1
	}
	n := [3]float32{0, sign, 0}

	centers := b.next
	for ix := 0; ix < radialSegments; ix++ {
		b.vertex([3]float32{0, half * sign, 0}, n)
	}

	rim := b.next
	for ix := 0; ix <= radialSegments; ix++ {
		theta := float32(ix) / float32(radialSegments) * 2 * math32.Pi
		b.vertex([3]float32{radius * math32.Sin(theta), half * sign, radius * math32.Cos(theta)}, n)
	}

	for ix := uint32(0); ix < uint32(radialSegments); ix++ {
		c := centers + ix
		i := rim + ix
		if top {
			b.tri(i, i+1, c)
		} else {
			b.tri(i+1, i, c)
		}
	}
}

// Torus builds a ring of the given radius around Z, swept by a tube.
func Torus(radius, tube float32, radialSegments, tubularSegments int) *scene.Geometry {
	radialSegments = max(radialSegments, 3)
	tubularSegments = max(tubularSegments, 3)

	var b builder
	for j := 0; j <= radialSegments; j++ {
		v := float32(j) / float32(radialSegments) * 2 * math32.Pi
		for i := 0; i <= tubularSegments; i++ {
			u := float32(i) / float32(tubularSegments) * 2 * math32.Pi

			p := [3]float32{
				(radius + tube*math32.Cos(v)) * math32.Cos(u),
				(radius + tube*math32.Cos(v)) * math32.Sin(u),
				tube * math32.Sin(v),
			}
			center := [3]float32{radius * math32.Cos(u), radius * math32.Sin(u), 0}
			b.vertex(p, unit([3]float32{p[0] - center[0], p[1] - center[1], p[2] - center[2]}))
		}
	}

	stride := uint32(tubularSegments + 1)
	for j := uint32(1); j <= uint32(radialSegments); j++ {
		for i := uint32(1); i <= uint32(tubularSegments); i++ {
			a := stride*j + i - 1
			c := stride*(j-1) + i - 1
			d := stride*(j-1) + i
			e := stride*j + i
			b.tri(a, c, e)
			b.tri(c, d, e)
		}
	}

	return b.geometry()
}
