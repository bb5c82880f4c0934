package assets

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/Faultbox/ffdlab/internal/mesh"
	"github.com/Faultbox/ffdlab/internal/scene"
)

// objCorner is one v/vt/vn reference of a face, zero-based; -1 when absent.
type objCorner struct {
	v, vn int
}

type objObject struct {
	name  string
	faces [][]objCorner
}

type objDecoder struct {
	positions []float32
	normals   []float32
	objects   []*objObject
	current   *objObject
	line      int
}

// DecodeOBJ parses a Wavefront OBJ stream into a scene with one mesh node per
// object or group. Faces with more than three corners are fan-triangulated.
// Materials and texture coordinates are ignored.
func DecodeOBJ(r io.Reader, name string) (*scene.Scene, error) {
	dec := &objDecoder{}
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)

	for sc.Scan() {
		dec.line++
		if err := dec.parseLine(strings.TrimSpace(sc.Text())); err != nil {
			return nil, fmt.Errorf("obj %s line %d: %w", name, dec.line, err)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading obj %s: %w", name, err)
	}

	out := scene.New(name)
	for _, obj := range dec.objects {
		if len(obj.faces) == 0 {
			continue
		}
		geo, err := dec.geometry(obj)
		if err != nil {
			return nil, fmt.Errorf("obj %s object %q: %w", name, obj.name, err)
		}
		out.AddMesh(out.Root(), obj.name, geo, mgl32.Ident4())
	}
	return out, nil
}

func (dec *objDecoder) parseLine(line string) error {
	if line == "" || line[0] == '#' {
		return nil
	}
	fields := strings.Fields(line)

	switch fields[0] {
	case "o", "g":
		name := fmt.Sprintf("object%d", len(dec.objects))
		if len(fields) > 1 {
			name = strings.Join(fields[1:], " ")
		}
		dec.current = &objObject{name: name}
		dec.objects = append(dec.objects, dec.current)
	case "v":
		return parseFloats(fields[1:], &dec.positions)
	case "vn":
		return parseFloats(fields[1:], &dec.normals)
	case "f":
		return dec.parseFace(fields[1:])
	}
	return nil
}

func parseFloats(fields []string, dst *[]float32) error {
	if len(fields) < 3 {
		return fmt.Errorf("expected 3 components, got %d", len(fields))
	}
	for _, f := range fields[:3] {
		v, err := strconv.ParseFloat(f, 32)
		if err != nil {
			return err
		}
		*dst = append(*dst, float32(v))
	}
	return nil
}

func (dec *objDecoder) parseFace(fields []string) error {
	if len(fields) < 3 {
		return fmt.Errorf("face with %d corners", len(fields))
	}
	if dec.current == nil {
		dec.current = &objObject{name: "default"}
		dec.objects = append(dec.objects, dec.current)
	}

	face := make([]objCorner, len(fields))
	for i, f := range fields {
		parts := strings.Split(f, "/")

		v, err := objIndex(parts[0], len(dec.positions)/3)
		if err != nil {
			return err
		}
		corner := objCorner{v: v, vn: -1}

		if len(parts) >= 3 && parts[2] != "" {
			if corner.vn, err = objIndex(parts[2], len(dec.normals)/3); err != nil {
				return err
			}
		}
		face[i] = corner
	}
	dec.current.faces = append(dec.current.faces, face)
	return nil
}

// objIndex converts a one-based (or negative, relative) OBJ index.
func objIndex(s string, count int) (int, error) {
	val, err := strconv.Atoi(s)
	if err != nil {
		return 0, err
	}
	switch {
	case val > 0:
		return val - 1, nil
	case val < 0:
		return count + val, nil
	default:
		return 0, fmt.Errorf("index 0")
	}
}

// geometry builds an indexed geometry for one object, sharing a vertex
// between faces only when position and normal references both match.
func (dec *objDecoder) geometry(obj *objObject) (*scene.Geometry, error) {
	geo := &scene.Geometry{}
	seen := make(map[objCorner]uint32)
	withNormals := true

	vertex := func(c objCorner) (uint32, error) {
		if idx, ok := seen[c]; ok {
			return idx, nil
		}
		if c.v < 0 || 3*c.v+2 >= len(dec.positions) {
			return 0, fmt.Errorf("vertex index %d out of range", c.v+1)
		}
		idx := uint32(geo.VertexCount())
		geo.Positions = append(geo.Positions, dec.positions[3*c.v:3*c.v+3]...)

		if c.vn >= 0 && 3*c.vn+2 < len(dec.normals) {
			geo.Normals = append(geo.Normals, dec.normals[3*c.vn:3*c.vn+3]...)
		} else {
			withNormals = false
		}
		seen[c] = idx
		return idx, nil
	}

	for _, face := range obj.faces {
		first, err := vertex(face[0])
		if err != nil {
			return nil, err
		}
		for i := 1; i+1 < len(face); i++ {
			b, err := vertex(face[i])
			if err != nil {
				return nil, err
			}
			c, err := vertex(face[i+1])
			if err != nil {
				return nil, err
			}
			geo.Indices = append(geo.Indices, first, b, c)
		}
	}

	if !withNormals {
		geo.ComputeVertexNormals()
	}
	return geo, nil
}

// WriteOBJ writes every part of w as a named object with positions, normals
// and triangle faces.
func WriteOBJ(out io.Writer, w *mesh.Working) error {
	bw := bufio.NewWriter(out)
	offset, normalOffset := 1, 1

	for i := 0; i < w.Len(); i++ {
		part := w.Part(i)
		geo := part.Geometry
		fmt.Fprintf(bw, "o %s\n", part.Name)

		for v := 0; v < geo.VertexCount(); v++ {
			fmt.Fprintf(bw, "v %g %g %g\n", geo.Positions[3*v], geo.Positions[3*v+1], geo.Positions[3*v+2])
		}
		hasNormals := len(geo.Normals) == len(geo.Positions)
		if hasNormals {
			for v := 0; v < geo.VertexCount(); v++ {
				fmt.Fprintf(bw, "vn %g %g %g\n", geo.Normals[3*v], geo.Normals[3*v+1], geo.Normals[3*v+2])
			}
		}

		face := func(a, b, c int) {
			if hasNormals {
				fmt.Fprintf(bw, "f %d//%d %d//%d %d//%d\n",
					a+offset, a+normalOffset, b+offset, b+normalOffset, c+offset, c+normalOffset)
			} else {
				fmt.Fprintf(bw, "f %d %d %d\n", a+offset, b+offset, c+offset)
			}
		}
		if len(geo.Indices) > 0 {
			for t := 0; t+2 < len(geo.Indices); t += 3 {
				face(int(geo.Indices[t]), int(geo.Indices[t+1]), int(geo.Indices[t+2]))
			}
		} else {
			for t := 0; t+2 < geo.VertexCount(); t += 3 {
				face(t, t+1, t+2)
			}
		}
		offset += geo.VertexCount()
		if hasNormals {
			normalOffset += geo.VertexCount()
		}
	}
	return bw.Flush()
}
