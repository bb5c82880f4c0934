// Package primitive generates the built-in test shapes that can be loaded by
// name instead of from a file.
package primitive

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/Faultbox/ffdlab/internal/scene"
)

// ErrUnknown is returned for a name that is not a primitive.
var ErrUnknown = errors.New("unknown primitive")

type factory func() (*scene.Geometry, error)

func analytic(g func() *scene.Geometry) factory {
	return func() (*scene.Geometry, error) { return g(), nil }
}

var factories = map[string]factory{
	"sphere": analytic(func() *scene.Geometry { return Sphere(15, 64, 64) }),
	"cube":   analytic(func() *scene.Geometry { return Box(20, 20, 20, 16, 16, 16) }),
	"cylinder": analytic(func() *scene.Geometry {
		return Cylinder(10, 10, 30, 32, 8)
	}),
	"torus": analytic(func() *scene.Geometry { return Torus(15, 6, 16, 100) }),
	"roundbox": func() (*scene.Geometry, error) {
		return RoundBox(20, 3, DefaultMeshCells)
	},
	"roundcylinder": func() (*scene.Geometry, error) {
		return RoundCylinder(30, 10, 2, DefaultMeshCells)
	},
}

var aliases = map[string]string{
	"box":   "cube",
	"donut": "torus",
}

// canonical resolves aliases and case.
func canonical(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	if target, ok := aliases[name]; ok {
		return target
	}
	return name
}

// Names returns the primitive names in sorted order, aliases excluded.
func Names() []string {
	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Has reports whether name (or an alias of it) is a primitive.
func Has(name string) bool {
	_, ok := factories[canonical(name)]
	return ok
}

// New builds the geometry of the named primitive.
func New(name string) (*scene.Geometry, error) {
	f, ok := factories[canonical(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknown, name)
	}
	return f()
}

// Scene wraps the named primitive in a scene holding a single mesh node.
func Scene(name string) (*scene.Scene, error) {
	geo, err := New(name)
	if err != nil {
		return nil, err
	}
	key := canonical(name)
	sc := scene.New(key)
	sc.AddMesh(sc.Root(), key, geo, mgl32.Ident4())
	return sc, nil
}
