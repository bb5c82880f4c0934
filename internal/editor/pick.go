package editor

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/ungerik/go3d/float64/vec3"

	fmath "github.com/Faultbox/ffdlab/pkg/math"
)

// DefaultPickRadius is the radius of the sphere a control point presents to
// picking rays.
const DefaultPickRadius = 0.8

// Ray represents a ray in 3D space with origin and direction.
type Ray struct {
	Origin    vec3.T
	Direction vec3.T // normalized
}

// NewRay returns a ray with a normalized direction.
func NewRay(origin, direction vec3.T) Ray {
	return Ray{Origin: origin, Direction: direction.Normalized()}
}

// ScreenToRay converts pixel coordinates to a world-space ray through the
// near and far planes. invViewProj is the inverse view-projection matrix.
func ScreenToRay(screenX, screenY, viewportW, viewportH float32, invViewProj mgl32.Mat4) Ray {
	ndcX := 2*screenX/viewportW - 1
	ndcY := 1 - 2*screenY/viewportH

	unproject := func(z float32) vec3.T {
		p := invViewProj.Mul4x1(mgl32.Vec4{ndcX, ndcY, z, 1})
		if p[3] != 0 {
			p = p.Mul(1 / p[3])
		}
		return vec3.T{float64(p[0]), float64(p[1]), float64(p[2])}
	}

	near, far := unproject(-1), unproject(1)
	return NewRay(near, vec3.Sub(&far, &near))
}

// At returns the point at distance t along the ray.
func (r Ray) At(t float64) vec3.T {
	d := r.Direction.Scaled(t)
	return vec3.Add(&r.Origin, &d)
}

// IntersectSphere returns the distance to the nearest hit in front of the
// origin.
func (r Ray) IntersectSphere(center vec3.T, radius float64) (float64, bool) {
	oc := vec3.Sub(&r.Origin, &center)
	b := vec3.Dot(&oc, &r.Direction)
	c := vec3.Dot(&oc, &oc) - radius*radius
	disc := b*b - c
	if disc < 0 {
		return 0, false
	}
	sq := math.Sqrt(disc)
	if t := -b - sq; t >= 0 {
		return t, true
	}
	if t := -b + sq; t >= 0 {
		return t, true // origin inside the sphere
	}
	return 0, false
}

// IntersectPlane intersects the ray with the plane through point with the
// given normal.
func (r Ray) IntersectPlane(point, normal vec3.T) (vec3.T, bool) {
	denom := vec3.Dot(&normal, &r.Direction)
	if math.Abs(denom) < 1e-9 {
		return vec3.T{}, false // parallel
	}
	diff := vec3.Sub(&point, &r.Origin)
	t := vec3.Dot(&diff, &normal) / denom
	if t < 0 {
		return vec3.T{}, false // behind the origin
	}
	return r.At(t), true
}

// IntersectBox tests the ray against an axis-aligned box with the slab
// method. A ray starting inside the box reports the exit distance.
func (r Ray) IntersectBox(box fmath.Box3) (float64, bool) {
	if !box.IsSet() {
		return 0, false
	}
	tmin, tmax := math.Inf(-1), math.Inf(1)
	for a := 0; a < 3; a++ {
		if r.Direction[a] == 0 {
			if r.Origin[a] < box.Min[a] || r.Origin[a] > box.Max[a] {
				return 0, false
			}
			continue
		}
		t1 := (box.Min[a] - r.Origin[a]) / r.Direction[a]
		t2 := (box.Max[a] - r.Origin[a]) / r.Direction[a]
		if t1 > t2 {
			t1, t2 = t2, t1
		}
		tmin = math.Max(tmin, t1)
		tmax = math.Min(tmax, t2)
	}
	if tmax < tmin || tmax < 0 {
		return 0, false
	}
	if tmin < 0 {
		return tmax, true
	}
	return tmin, true
}

// closestOnAxis returns the parameter s of the point p+s*axis closest to the
// ray, or false when the two are parallel.
func (r Ray) closestOnAxis(p, axis vec3.T) (float64, bool) {
	axis = axis.Normalized()
	w := vec3.Sub(&p, &r.Origin)
	b := vec3.Dot(&axis, &r.Direction)
	d := vec3.Dot(&axis, &w)
	e := vec3.Dot(&r.Direction, &w)
	denom := 1 - b*b
	if denom < 1e-9 {
		return 0, false
	}
	return (b*e - d) / denom, true
}

// Pick selects the control point nearest along r whose pick sphere the ray
// hits. It reports false and leaves the selection unchanged on a miss.
func (e *Editor) Pick(r Ray) (int, bool) {
	radius := e.cfg.PickRadius
	if radius <= 0 {
		radius = DefaultPickRadius
	}
	if _, ok := r.IntersectBox(e.p.Domain().Expand(radius)); !ok {
		return -1, false
	}

	best, bestT := -1, math.Inf(1)
	for i, p := range e.p.ControlPoints() {
		if t, ok := r.IntersectSphere(p, radius); ok && t < bestT {
			best, bestT = i, t
		}
	}
	if best < 0 {
		return -1, false
	}
	e.selected = best
	return best, true
}

// DragOnPlane moves the selected control point to where r crosses the plane
// through the point with the given normal, typically the view direction.
func (e *Editor) DragOnPlane(r Ray, normal vec3.T) error {
	if e.selected < 0 {
		return ErrNoSelection
	}
	pos, ok := r.IntersectPlane(e.p.ControlPoints()[e.selected], normal)
	if !ok {
		return nil
	}
	return e.p.MoveControlPoint(e.selected, pos)
}

// DragAlongAxis moves the selected control point along axis to the spot
// nearest r, the way a translate gizmo handle behaves.
func (e *Editor) DragAlongAxis(r Ray, axis vec3.T) error {
	if e.selected < 0 {
		return ErrNoSelection
	}
	p := e.p.ControlPoints()[e.selected]
	s, ok := r.closestOnAxis(p, axis)
	if !ok {
		return nil
	}
	step := axis.Normalized()
	step.Scale(s)
	return e.p.MoveControlPoint(e.selected, vec3.Add(&p, &step))
}
