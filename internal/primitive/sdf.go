package primitive

import (
	"fmt"
	"math"

	"github.com/deadsy/sdfx/render"
	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"

	"github.com/Faultbox/ffdlab/internal/scene"
)

// DefaultMeshCells is the marching cubes resolution along the longest axis.
const DefaultMeshCells = 48

// RoundBox tessellates a box with rounded edges centred at the origin.
func RoundBox(size, round float64, cells int) (*scene.Geometry, error) {
	s, err := sdf.Box3D(v3.Vec{X: size, Y: size, Z: size}, round)
	if err != nil {
		return nil, fmt.Errorf("round box: %w", err)
	}
	return tessellate(s, cells), nil
}

// RoundCylinder tessellates a cylinder along Z with rounded rims. It is
// rotated onto Y to match the analytic cylinder.
func RoundCylinder(height, radius, round float64, cells int) (*scene.Geometry, error) {
	s, err := sdf.Cylinder3D(height, radius, round)
	if err != nil {
		return nil, fmt.Errorf("round cylinder: %w", err)
	}
	return tessellate(sdf.Transform3D(s, sdf.RotateX(-math.Pi/2)), cells), nil
}

// tessellate meshes s with marching cubes. The output is triangle soup with
// flat per-face normals.
func tessellate(s sdf.SDF3, cells int) *scene.Geometry {
	if cells <= 0 {
		cells = DefaultMeshCells
	}
	triangles := render.ToTriangles(s, render.NewMarchingCubesUniform(cells))

	g := &scene.Geometry{
		Positions: make([]float32, 0, len(triangles)*9),
		Normals:   make([]float32, 0, len(triangles)*9),
	}
	for _, tri := range triangles {
		n := tri.Normal()
		for j := 0; j < 3; j++ {
			v := tri[j]
			g.Positions = append(g.Positions, float32(v.X), float32(v.Y), float32(v.Z))
			g.Normals = append(g.Normals, float32(n.X), float32(n.Y), float32(n.Z))
		}
	}
	return g
}
