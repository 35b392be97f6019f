package streams

import "context"

// Hold reference-counts a shared source so that multiple consumers may be
// attached across time without each one cascading Close upstream (spec
// §4.1 operator list: "hold"; §4.1 Cancellation: "each operator forwards
// close to its source except for hold and tee which decrement reference
// counts").
type Hold struct {
	src      Stream
	refs     *int
	released bool
	h        Handler
}

// NewHold wraps src with an initial refcount of 1. Call Ref to hand out
// additional references before the consumer for this one finishes.
func NewHold(src Stream) *Hold {
	refs := new(int)
	*refs = 1
	hd := &Hold{src: src, refs: refs}
	src.SetHandler(hd)
	return hd
}

// Ref increments the shared refcount and returns a new Hold view sharing
// the same underlying source.
func (hd *Hold) Ref() *Hold {
	*hd.refs++
	return &Hold{src: hd.src, refs: hd.refs}
}

func (hd *Hold) SetHandler(h Handler)      { hd.h = h }
func (hd *Hold) SetDirect(mask SourceKind) { hd.src.SetDirect(mask) }
func (hd *Hold) Available(partial bool) Length { return hd.src.Available(partial) }
func (hd *Hold) Skip(n int64) (int64, bool)    { return hd.src.Skip(n) }

func (hd *Hold) Close() error {
	if hd.released {
		return errAlreadyTerminated
	}
	hd.released = true
	*hd.refs--
	if *hd.refs <= 0 {
		return hd.src.Close()
	}
	return nil
}

func (hd *Hold) Read(ctx context.Context) { hd.src.Read(ctx) }

func (hd *Hold) OnData(p []byte) (int, error) { return hd.h.OnData(p) }
func (hd *Hold) OnDirect(k SourceKind, fd uintptr, max int) (int, Status) {
	return hd.h.OnDirect(k, fd, max)
}
func (hd *Hold) OnEOF()            { hd.h.OnEOF() }
func (hd *Hold) OnError(err error) { hd.h.OnError(err) }
