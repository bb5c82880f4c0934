// Package bake flattens loaded scenes into standalone meshes.
//
// Deformation works on world-space vertex positions. A node that draws one
// shared geometry through many instance matrices cannot be deformed in place:
// moving the shared vertices once would move every instance identically,
// regardless of where it sits inside the lattice. Baking gives every
// instance its own vertex buffer with its transform folded in.
package bake

import (
	"errors"
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"

	"github.com/Faultbox/ffdlab/internal/logger"
	"github.com/Faultbox/ffdlab/internal/mesh"
	"github.com/Faultbox/ffdlab/internal/scene"
)

// ErrNilScene is returned by Bake when there is nothing to bake.
var ErrNilScene = errors.New("bake: nil scene")

// Options controls Bake.
type Options struct {
	// Scale is applied uniformly at the scene root before baking.
	// Zero means 1.
	Scale float32
}

// Stats describes one bake.
type Stats struct {
	InstancedNodes int
	Instances      int
	Parts          int
	Vertices       int
}

// Instances replaces every instanced node of sc by one mesh node per instance.
// Each new mesh gets a copy of the shared geometry with
// nodeTransform * instanceTransform applied to its vertices and an identity
// local transform, and is attached to the instanced node's parent. The
// instanced node is then removed. It returns the number of meshes created.
func Instances(sc *scene.Scene) int {
	produced := 0
	for _, id := range sc.Find(scene.KindInstanced) {
		node := sc.Node(id)
		if node == nil {
			continue
		}

		// AddMesh grows the arena, so copy what we need out of node first.
		name, parent, base := node.Name, node.Parent(), node.Local
		shared, instances := node.Geometry, node.Instances

		if shared != nil {
			for i, instance := range instances {
				geo := shared.Clone()
				geo.ApplyMatrix(base.Mul4(instance))
				sc.AddMesh(parent, fmt.Sprintf("%s_instance_%d", name, i), geo, mgl32.Ident4())
				produced++
			}
		} else {
			logger.L().Warn("instanced node without geometry", zap.String("node", name))
		}

		sc.Remove(id)
	}
	return produced
}

// Bake copies src, applies the root scale, flattens instancing and records
// every mesh node as a part of the returned Baked mesh, in scene walk order.
// src is not modified and shares no buffers with the result.
func Bake(src *scene.Scene, opts Options) (*mesh.Baked, Stats, error) {
	if src == nil {
		return nil, Stats{}, ErrNilScene
	}

	sc := src.Clone()
	if opts.Scale != 0 && opts.Scale != 1 {
		root := sc.Node(sc.Root())
		root.Local = mgl32.Scale3D(opts.Scale, opts.Scale, opts.Scale).Mul4(root.Local)
	}

	stats := Stats{InstancedNodes: len(sc.Find(scene.KindInstanced))}
	stats.Instances = Instances(sc)

	var parts []mesh.Part
	for _, id := range sc.Find(scene.KindMesh) {
		node := sc.Node(id)
		if node.Geometry == nil {
			continue
		}
		parts = append(parts, mesh.NewPart(node.Name, sc.World(id), node.Geometry))
		stats.Vertices += node.Geometry.VertexCount()
	}
	stats.Parts = len(parts)

	logger.L().Debug("baked scene",
		zap.String("scene", src.Name),
		zap.Int("instancedNodes", stats.InstancedNodes),
		zap.Int("instances", stats.Instances),
		zap.Int("parts", stats.Parts),
		zap.Int("vertices", stats.Vertices))

	return mesh.NewBaked(src.Name, parts), stats, nil
}
