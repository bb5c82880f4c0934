package pipeline

import (
	"errors"
	"fmt"
)

// ErrLoadFailed wraps every asset load or bake failure delivered by Poll and
// Await.
var ErrLoadFailed = errors.New("pipeline: asset load failed")

// ErrNotReady is returned by operations that need a baked mesh.
var ErrNotReady = errors.New("pipeline: no baked mesh")

// IntegrityError reports a disagreement between the baked mesh, the working
// mesh, the coordinate cache and the control lattice. The affected part (or
// the whole frame, when Part is -1) was skipped and left as it was.
type IntegrityError struct {
	Part int    // part index, -1 when not part-specific
	What string // what disagreed
	Want int
	Got  int
}

func (e *IntegrityError) Error() string {
	if e.Part < 0 {
		return fmt.Sprintf("pipeline: integrity: %s: want %d, got %d", e.What, e.Want, e.Got)
	}
	return fmt.Sprintf("pipeline: integrity: part %d: %s: want %d, got %d", e.Part, e.What, e.Want, e.Got)
}
