package editor

import (
	"errors"
	"fmt"
	"sort"

	"github.com/tanema/gween"
	"github.com/tanema/gween/ease"
	"github.com/ungerik/go3d/float64/vec3"
)

var easings = map[string]ease.TweenFunc{
	"linear":     ease.Linear,
	"inOutQuad":  ease.InOutQuad,
	"inOutCubic": ease.InOutCubic,
	"inOutSine":  ease.InOutSine,
	"outBounce":  ease.OutBounce,
	"outElastic": ease.OutElastic,
}

// Easing looks up an easing function by name.
func Easing(name string) (ease.TweenFunc, error) {
	fn, ok := easings[name]
	if !ok {
		return nil, fmt.Errorf("editor: unknown easing %q (have %v)", name, EasingNames())
	}
	return fn, nil
}

// EasingNames returns the known easing names, sorted.
func EasingNames() []string {
	names := make([]string, 0, len(easings))
	for name := range easings {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Drag moves one control point along a tween.
type Drag struct {
	Index  int
	tweens [3]*gween.Tween
	Done   bool
}

// step advances the drag by dt seconds and returns the new position.
func (d *Drag) step(dt float32) vec3.T {
	var pos vec3.T
	done := true
	for i, tw := range d.tweens {
		val, finished := tw.Update(dt)
		pos[i] = float64(val)
		if !finished {
			done = false
		}
	}
	d.Done = done
	return pos
}

// Animate starts moving control point index from its current position to
// the target over duration seconds. A drag already running on the same
// point is replaced.
func (e *Editor) Animate(index int, to vec3.T, duration float32, fn ease.TweenFunc) (*Drag, error) {
	points := e.p.ControlPoints()
	if index < 0 || index >= len(points) {
		return nil, fmt.Errorf("editor: control point %d out of range [0,%d)", index, len(points))
	}
	if fn == nil {
		fn = ease.Linear
	}

	from := points[index]
	d := &Drag{Index: index}
	for i := range d.tweens {
		d.tweens[i] = gween.New(float32(from[i]), float32(to[i]), duration, fn)
	}

	drags := e.drags[:0]
	for _, other := range e.drags {
		if other.Index != index {
			drags = append(drags, other)
		}
	}
	e.drags = append(drags, d)
	return d, nil
}

// Animating reports whether any drag is still running.
func (e *Editor) Animating() bool {
	return len(e.drags) > 0
}

// Update advances every running drag by dt seconds and re-deforms. Finished
// drags are dropped.
func (e *Editor) Update(dt float32) error {
	var errs []error
	running := e.drags[:0]
	for _, d := range e.drags {
		if err := e.p.MoveControlPoint(d.Index, d.step(dt)); err != nil {
			errs = append(errs, err)
			continue
		}
		if !d.Done {
			running = append(running, d)
		}
	}
	e.drags = running
	return errors.Join(errs...)
}
