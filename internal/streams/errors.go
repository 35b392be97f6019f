package streams

import "errors"

// errAlreadyTerminated is returned by Close when called after a terminal
// callback has already fired.
var errAlreadyTerminated = errors.New("streams: already terminated")

// ErrUnsupported reports an operation an operator cannot perform. Skip
// does not return it; Skip reports an unsupported skip with ok=false.
var ErrUnsupported = errors.New("streams: unsupported")
