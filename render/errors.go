package render

// Error values surfaced by the render pipeline. These are returned by
// identity so that callers can distinguish them; failures originating in the
// OS or other packages are wrapped with context instead.

import (
	"github.com/karlmutch/errors"
)

var (
	// ErrInvalidArg is returned for nil or empty inputs to plan mutation
	ErrInvalidArg = errors.New("invalid argument")

	// ErrUnresolvableConflict is returned when a new mapping conflicts with
	// an immutable multi group target already in the plan
	ErrUnresolvableConflict = errors.New("unable to add mapping")

	// ErrNotFound is returned when removing a target that is not in the plan
	ErrNotFound = errors.New("no such target in render plan")

	// ErrNotRunning is returned for plan mutations before start or after stop
	ErrNotRunning = errors.New("render pipeline is not running")

	// ErrAlreadyRunning is returned when starting a pipeline twice
	ErrAlreadyRunning = errors.New("render pipeline is already initialized")

	// ErrRender indicates a per entry failure during render; it is logged
	// and the entry skipped for the frame
	ErrRender = errors.New("renderable failed to render")

	// ErrInvalidToken is returned for framebuffer writes against a closed or
	// stale frame token
	ErrInvalidToken = errors.New("invalid frame token")

	// ErrOutOfRange is returned for framebuffer accesses beyond its capacity
	ErrOutOfRange = errors.New("framebuffer access out of range")

	// ErrBusyFrame is returned when starting a frame while one is open
	ErrBusyFrame = errors.New("a frame is already open")
)
