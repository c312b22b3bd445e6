package gpu

import "time"

// DefaultFenceTimeout bounds how long a filter call waits for the device.
const DefaultFenceTimeout = 10 * time.Second

// WorkgroupSize is the edge length of the square compute workgroup.
const WorkgroupSize = 8

// State is the lifecycle of a Context.
//
//	Uninitialized → Initializing → Ready | Unavailable
//
// Initialisation is attempted once. Unavailable is terminal.
type State int32

const (
	StateUninitialized State = iota
	StateInitializing
	StateReady
	StateUnavailable
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitializing:
		return "initializing"
	case StateReady:
		return "ready"
	case StateUnavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}

// Config configures a Context.
type Config struct {
	// FenceTimeout bounds each wait for submitted work. Zero means
	// DefaultFenceTimeout.
	FenceTimeout time.Duration `json:"fence_timeout" yaml:"fence_timeout"`
}

func (c Config) fenceTimeout() time.Duration {
	if c.FenceTimeout <= 0 {
		return DefaultFenceTimeout
	}
	return c.FenceTimeout
}

// DispatchSize returns the workgroup counts covering a width×height image.
func DispatchSize(width, height int) (x, y uint32) {
	return uint32((width + WorkgroupSize - 1) / WorkgroupSize),
		uint32((height + WorkgroupSize - 1) / WorkgroupSize)
}
