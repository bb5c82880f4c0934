package scene

import (
	"github.com/go-gl/mathgl/mgl32"
	"github.com/ungerik/go3d/float64/vec3"

	fmath "github.com/Faultbox/ffdlab/pkg/math"
)

// Geometry is an indexed (or, with no indices, triangle-soup) triangle mesh.
// All arrays are flat: three floats per vertex position and normal, three
// indices per triangle.
type Geometry struct {
	Positions []float32
	Normals   []float32
	Indices   []uint32
}

// VertexCount returns the number of vertices.
func (g *Geometry) VertexCount() int {
	return len(g.Positions) / 3
}

// TriangleCount returns the number of triangles.
func (g *Geometry) TriangleCount() int {
	if len(g.Indices) > 0 {
		return len(g.Indices) / 3
	}
	return g.VertexCount() / 3
}

// IsEmpty returns true if the geometry has no vertices.
func (g *Geometry) IsEmpty() bool {
	return len(g.Positions) < 3
}

// Position returns vertex i.
func (g *Geometry) Position(i int) mgl32.Vec3 {
	return mgl32.Vec3{g.Positions[3*i], g.Positions[3*i+1], g.Positions[3*i+2]}
}

// SetPosition overwrites vertex i.
func (g *Geometry) SetPosition(i int, p mgl32.Vec3) {
	g.Positions[3*i] = p[0]
	g.Positions[3*i+1] = p[1]
	g.Positions[3*i+2] = p[2]
}

// Clone returns a copy that shares no buffers with g.
func (g *Geometry) Clone() *Geometry {
	return &Geometry{
		Positions: append([]float32(nil), g.Positions...),
		Normals:   append([]float32(nil), g.Normals...),
		Indices:   append([]uint32(nil), g.Indices...),
	}
}

// ApplyMatrix transforms positions by m and normals by its normal matrix,
// folding the transform permanently into the vertex data.
func (g *Geometry) ApplyMatrix(m mgl32.Mat4) {
	for i := 0; i < g.VertexCount(); i++ {
		g.SetPosition(i, mgl32.TransformCoordinate(g.Position(i), m))
	}

	if len(g.Normals) != len(g.Positions) {
		return
	}
	normalMatrix := m.Mat3().Inv().Transpose()
	for i := 0; i+2 < len(g.Normals); i += 3 {
		n := normalMatrix.Mul3x1(mgl32.Vec3{g.Normals[i], g.Normals[i+1], g.Normals[i+2]})
		n = normalize(n)
		g.Normals[i], g.Normals[i+1], g.Normals[i+2] = n[0], n[1], n[2]
	}
}

// ComputeVertexNormals rebuilds the normal buffer from the current positions.
// Indexed geometry gets area-weighted normals averaged over the faces that
// share a vertex; triangle soup gets one flat normal per face.
func (g *Geometry) ComputeVertexNormals() {
	if cap(g.Normals) < len(g.Positions) {
		g.Normals = make([]float32, len(g.Positions))
	} else {
		g.Normals = g.Normals[:len(g.Positions)]
		clear(g.Normals)
	}

	n := g.VertexCount()
	accumulate := func(a, b, c int) {
		if a >= n || b >= n || c >= n {
			return
		}
		pa, pb, pc := g.Position(a), g.Position(b), g.Position(c)
		face := pc.Sub(pb).Cross(pa.Sub(pb))
		for _, v := range [3]int{a, b, c} {
			g.Normals[3*v] += face[0]
			g.Normals[3*v+1] += face[1]
			g.Normals[3*v+2] += face[2]
		}
	}

	if len(g.Indices) > 0 {
		for i := 0; i+2 < len(g.Indices); i += 3 {
			accumulate(int(g.Indices[i]), int(g.Indices[i+1]), int(g.Indices[i+2]))
		}
	} else {
		for i := 0; i+2 < n; i += 3 {
			accumulate(i, i+1, i+2)
		}
	}

	for i := 0; i+2 < len(g.Normals); i += 3 {
		v := normalize(mgl32.Vec3{g.Normals[i], g.Normals[i+1], g.Normals[i+2]})
		g.Normals[i], g.Normals[i+1], g.Normals[i+2] = v[0], v[1], v[2]
	}
}

// Bounds returns the box of the positions transformed by m.
func (g *Geometry) Bounds(m mgl32.Mat4) fmath.Box3 {
	box := fmath.Unset()
	for i := 0; i < g.VertexCount(); i++ {
		p := mgl32.TransformCoordinate(g.Position(i), m)
		box = box.ExpandByPoint(vec3.T{float64(p[0]), float64(p[1]), float64(p[2])})
	}
	return box
}

// normalize leaves zero vectors at zero instead of producing NaN.
func normalize(v mgl32.Vec3) mgl32.Vec3 {
	if v.Len() == 0 {
		return v
	}
	return v.Normalize()
}
