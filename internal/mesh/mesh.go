// Package mesh defines the two meshes of the deformation pipeline: the
// read-only Baked mesh and the mutable Working mesh cloned from it.
//
// Both store their parts in a flat slice. Part i of a Working mesh is always
// the clone of part i of the Baked mesh it came from, which is what lets a
// per-part cache built against one be applied to the other.
package mesh

import (
	"github.com/go-gl/mathgl/mgl32"
	"github.com/ungerik/go3d/float64/vec3"

	"github.com/Faultbox/ffdlab/internal/scene"
	fmath "github.com/Faultbox/ffdlab/pkg/math"
)

// Part is one standalone mesh of a Baked mesh.
type Part struct {
	name  string
	world mgl32.Mat4
	geo   *scene.Geometry
}

// NewPart wraps geo with its world transform. The part takes ownership of geo;
// the caller must not modify it afterwards.
func NewPart(name string, world mgl32.Mat4, geo *scene.Geometry) Part {
	return Part{name: name, world: world, geo: geo}
}

// Name returns the part name.
func (p *Part) Name() string { return p.name }

// World returns the part's world transform.
func (p *Part) World() mgl32.Mat4 { return p.world }

// VertexCount returns the number of vertices.
func (p *Part) VertexCount() int { return p.geo.VertexCount() }

// TriangleCount returns the number of triangles.
func (p *Part) TriangleCount() int { return p.geo.TriangleCount() }

// WorldPosition returns vertex i transformed into world space.
func (p *Part) WorldPosition(i int) vec3.T {
	w := mgl32.TransformCoordinate(p.geo.Position(i), p.world)
	return vec3.T{float64(w[0]), float64(w[1]), float64(w[2])}
}

// Baked is the read-only geometry source: instancing already flattened,
// never modified after construction.
type Baked struct {
	name   string
	parts  []Part
	bounds fmath.Box3
}

// NewBaked builds a Baked mesh from parts in their final traversal order.
func NewBaked(name string, parts []Part) *Baked {
	b := &Baked{name: name, parts: parts}
	for i := range parts {
		b.bounds = b.bounds.Union(parts[i].geo.Bounds(parts[i].world))
	}
	return b
}

// Name returns the asset name the mesh was baked from.
func (b *Baked) Name() string { return b.name }

// Len returns the number of parts.
func (b *Baked) Len() int { return len(b.parts) }

// Part returns part i.
func (b *Baked) Part(i int) *Part { return &b.parts[i] }

// Bounds returns the world-space box of all parts; unset when the mesh has
// no vertices.
func (b *Baked) Bounds() fmath.Box3 { return b.bounds }

// VertexCount returns the total number of vertices over all parts.
func (b *Baked) VertexCount() int {
	total := 0
	for i := range b.parts {
		total += b.parts[i].VertexCount()
	}
	return total
}

// WorkingPart is the mutable clone of a baked part. Its geometry is stored in
// world space, so a renderer draws it with an identity transform.
type WorkingPart struct {
	Name     string
	Geometry *scene.Geometry
}

// Working is the deformable render target.
type Working struct {
	parts []WorkingPart
}

// NewWorking clones every part of b into independently owned buffers with the
// part's world transform folded in.
func NewWorking(b *Baked) *Working {
	w := &Working{parts: make([]WorkingPart, len(b.parts))}
	for i := range b.parts {
		geo := b.parts[i].geo.Clone()
		geo.ApplyMatrix(b.parts[i].world)
		if len(geo.Normals) != len(geo.Positions) {
			geo.ComputeVertexNormals()
		}
		w.parts[i] = WorkingPart{Name: b.parts[i].name, Geometry: geo}
	}
	return w
}

// Len returns the number of parts.
func (w *Working) Len() int { return len(w.parts) }

// Part returns part i.
func (w *Working) Part(i int) *WorkingPart { return &w.parts[i] }

// VertexCount returns the total number of vertices over all parts.
func (w *Working) VertexCount() int {
	total := 0
	for i := range w.parts {
		total += w.parts[i].Geometry.VertexCount()
	}
	return total
}

// Bounds returns the current world-space box of the working geometry.
func (w *Working) Bounds() fmath.Box3 {
	box := fmath.Unset()
	for i := range w.parts {
		box = box.Union(w.parts[i].Geometry.Bounds(mgl32.Ident4()))
	}
	return box
}
