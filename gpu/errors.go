package gpu

import "errors"

var (
	// ErrUnavailable means no usable compute device was found, initialisation
	// failed earlier, or the context was shut down. It is permanent for the
	// lifetime of a Context.
	ErrUnavailable = errors.New("gpu: compute device unavailable")
	// ErrFenceTimeout means submitted work did not complete within the
	// configured fence timeout.
	ErrFenceTimeout = errors.New("gpu: fence wait timed out")
)
