// Package streams implements the lazy byte stream abstraction:
// a finite or indefinite byte sequence produced asynchronously, with
// backpressure, cancellation, and an optional zero-copy splice path.
//
// The original C++ hierarchy (src/istream.h) uses virtual OnData/OnDirect/
// OnEof/OnError callbacks on a class an operator inherits from. Go has no
// virtual dispatch story that reads naturally that way, so every operator
// here is a concrete type implementing the single Stream interface, and
// the Handler callbacks report their outcome through return values (a
// consumed count and error from OnData, a Status from OnDirect) instead of
// relying on a destruct-observer to detect reentrant destruction.
package streams

import "context"

// SourceKind is a zero-copy source kind bitmask.
type SourceKind uint8

const (
	SourceNone   SourceKind = 0
	SourceFile   SourceKind = 1 << iota
	SourcePipe
	SourceSocket
	SourceAny = SourceFile | SourcePipe | SourceSocket
)

// LengthKind classifies a stream's declared length.
type LengthKind uint8

const (
	LengthUnknown LengthKind = iota
	LengthExact
	LengthEstimate
)

// Length is the optional declared length of a stream.
type Length struct {
	Kind  LengthKind
	Value int64
}

// Status is returned by Handler.OnDirect, replacing the destruct-observer
// pattern the original uses to detect that a callback destroyed the stream
// out from under it.
type Status int

const (
	StatusOK Status = iota
	StatusClosed
	StatusBlocking
	StatusEOF
	StatusErrno
)

// Handler receives data from a Stream. At most one Handler is installed on
// a Stream at a time.
type Handler interface {
	// OnData offers up to len(p) bytes. It must return the number of bytes
	// consumed, which may be less than len(p) to signal backpressure — the
	// stream must not call OnData again until the consumer re-enters Read.
	OnData(p []byte) (int, error)

	// OnDirect is called instead of OnData when direct (splice) mode was
	// negotiated. kind identifies the source, fd is the source descriptor,
	// max bounds the transfer size. Returns bytes transferred and a Status.
	OnDirect(kind SourceKind, fd uintptr, max int) (int, Status)

	// OnEOF is the terminal success callback.
	OnEOF()

	// OnError is the terminal failure callback.
	OnError(err error)
}

// Stream is a finite or indefinite lazy byte sequence with exactly one
// producer and at most one consumer.
type Stream interface {
	// SetHandler installs the consumer's Handler. Calling Read before a
	// Handler is installed is a programming error.
	SetHandler(h Handler)

	// Read requests progress. The stream performs zero or more OnData/
	// OnDirect callbacks, optionally followed by a terminal callback,
	// before or after Read returns.
	Read(ctx context.Context)

	// SetDirect sets the mask of zero-copy source kinds the consumer will
	// accept via OnDirect. A zero mask disables direct mode.
	SetDirect(mask SourceKind)

	// Available reports the declared length. partial=false requests only
	// an exact/estimate figure; partial=true allows a lower-bound guess.
	Available(partial bool) Length

	// Skip advances past n bytes without materializing them. Returns the
	// number of bytes actually skipped and ok=false if unsupported.
	Skip(n int64) (skipped int64, ok bool)

	// Close is valid only before a terminal callback has fired; it is
	// idempotent before termination and an error after. Closing cascades
	// upstream through the chain.
	Close() error
}

// terminated is embedded by operators to provide the idempotent-before-
// termination Close discipline uniformly.
type terminated struct {
	done bool
}

func (t *terminated) markDone() bool {
	if t.done {
		return false
	}
	t.done = true
	return true
}

func (t *terminated) isDone() bool { return t.done }
