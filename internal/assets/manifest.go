package assets

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/go-gl/mathgl/mgl32"
	"gopkg.in/yaml.v3"

	"github.com/Faultbox/ffdlab/internal/scene"
)

// Manifest describes a scene assembled from primitives and OBJ files.
//
//	name: street
//	scale: 0.3
//	nodes:
//	  - name: posts
//	    geometry: cylinder
//	    instances:
//	      - translate: [-20, 0, 0]
//	      - translate: [20, 0, 0]
type Manifest struct {
	Name  string         `yaml:"name"`
	Scale float32        `yaml:"scale"`
	Nodes []ManifestNode `yaml:"nodes"`
}

// ManifestNode is one node of a manifest. Geometry is a primitive name or an
// OBJ path relative to the manifest file. A node with instances becomes an
// instanced node drawing its geometry once per instance transform.
type ManifestNode struct {
	Name      string         `yaml:"name"`
	Geometry  string         `yaml:"geometry,omitempty"`
	Transform `yaml:",inline"`
	Instances []Transform    `yaml:"instances,omitempty"`
	Children  []ManifestNode `yaml:"children,omitempty"`
}

// Transform is a translate / rotate (degrees, applied X then Y then Z) /
// scale triple. Missing parts default to identity.
type Transform struct {
	Translate *[3]float32 `yaml:"translate,omitempty"`
	Rotate    *[3]float32 `yaml:"rotate,omitempty"`
	Scale     *[3]float32 `yaml:"scale,omitempty"`
}

// Matrix returns T * Rz * Ry * Rx * S.
func (t Transform) Matrix() mgl32.Mat4 {
	m := mgl32.Ident4()
	if t.Translate != nil {
		m = m.Mul4(mgl32.Translate3D(t.Translate[0], t.Translate[1], t.Translate[2]))
	}
	if t.Rotate != nil {
		m = m.Mul4(mgl32.HomogRotate3DZ(mgl32.DegToRad(t.Rotate[2])))
		m = m.Mul4(mgl32.HomogRotate3DY(mgl32.DegToRad(t.Rotate[1])))
		m = m.Mul4(mgl32.HomogRotate3DX(mgl32.DegToRad(t.Rotate[0])))
	}
	if t.Scale != nil {
		m = m.Mul4(mgl32.Scale3D(t.Scale[0], t.Scale[1], t.Scale[2]))
	}
	return m
}

// ParseManifest decodes a YAML manifest.
func ParseManifest(r io.Reader) (*Manifest, error) {
	var mf Manifest
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&mf); err != nil {
		return nil, fmt.Errorf("parsing manifest: %w", err)
	}
	return &mf, nil
}

// geometrySource resolves a manifest geometry reference. dir is the
// manifest's directory.
type geometrySource func(ref, dir string) (*scene.Geometry, error)

// build assembles the scene described by mf. The manifest scale is folded
// into the root transform.
func (mf *Manifest) build(name, dir string, geometry geometrySource) (*scene.Scene, error) {
	if mf.Name != "" {
		name = mf.Name
	}
	sc := scene.New(name)
	if mf.Scale != 0 && mf.Scale != 1 {
		sc.Node(sc.Root()).Local = mgl32.Scale3D(mf.Scale, mf.Scale, mf.Scale)
	}

	var add func(parent scene.NodeID, n ManifestNode) error
	add = func(parent scene.NodeID, n ManifestNode) error {
		var geo *scene.Geometry
		if n.Geometry != "" {
			g, err := geometry(n.Geometry, dir)
			if err != nil {
				return fmt.Errorf("node %q: %w", n.Name, err)
			}
			geo = g
		}

		var id scene.NodeID
		switch {
		case len(n.Instances) > 0:
			if geo == nil {
				return fmt.Errorf("node %q: instances without geometry", n.Name)
			}
			instances := make([]mgl32.Mat4, len(n.Instances))
			for i, t := range n.Instances {
				instances[i] = t.Matrix()
			}
			id = sc.AddInstanced(parent, n.Name, geo, n.Matrix(), instances)
		case geo != nil:
			id = sc.AddMesh(parent, n.Name, geo, n.Matrix())
		default:
			id = sc.AddGroup(parent, n.Name, n.Matrix())
		}

		for _, child := range n.Children {
			if err := add(id, child); err != nil {
				return err
			}
		}
		return nil
	}

	for _, n := range mf.Nodes {
		if err := add(sc.Root(), n); err != nil {
			return nil, err
		}
	}
	return sc, nil
}

// flatten merges every mesh of sc into one geometry in root space.
func flatten(sc *scene.Scene) *scene.Geometry {
	out := &scene.Geometry{}
	for _, id := range sc.Find(scene.KindMesh) {
		node := sc.Node(id)
		if node.Geometry == nil {
			continue
		}
		geo := node.Geometry.Clone()
		geo.ApplyMatrix(sc.World(id))
		if len(geo.Normals) != len(geo.Positions) {
			geo.ComputeVertexNormals()
		}

		base := uint32(out.VertexCount())
		out.Positions = append(out.Positions, geo.Positions...)
		out.Normals = append(out.Normals, geo.Normals...)
		if len(geo.Indices) > 0 {
			for _, i := range geo.Indices {
				out.Indices = append(out.Indices, base+i)
			}
		} else {
			for i := uint32(0); i < uint32(geo.VertexCount()); i++ {
				out.Indices = append(out.Indices, base+i)
			}
		}
	}
	return out
}

func resolveRelative(ref, dir string) string {
	if filepath.IsAbs(ref) {
		return ref
	}
	return filepath.Join(dir, ref)
}
