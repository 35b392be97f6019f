package streams

import "context"

// Delayed is a Stream whose real source is not known yet at construction
// time. A
// Read before the source is set is a no-op; once Provide is called, the
// next Read drives the real source. Closing before the source arrives
// cancels delivery of a later-provided source.
type Delayed struct {
	terminated
	h        Handler
	src      Stream
	pending  bool
	closeErr error
}

func NewDelayed() *Delayed { return &Delayed{} }

// Provide installs the real source. If the consumer already closed this
// Delayed, src is closed immediately instead.
func (d *Delayed) Provide(src Stream) {
	if d.isDone() {
		src.Close()
		return
	}
	d.src = src
	src.SetHandler(d)
	d.pending = false
}

func (d *Delayed) SetHandler(h Handler) { d.h = h }
func (d *Delayed) SetDirect(mask SourceKind) {
	if d.src != nil {
		d.src.SetDirect(mask)
	}
}
func (d *Delayed) Available(partial bool) Length {
	if d.src == nil {
		return Length{Kind: LengthUnknown}
	}
	return d.src.Available(partial)
}
func (d *Delayed) Skip(n int64) (int64, bool) {
	if d.src == nil {
		return 0, false
	}
	return d.src.Skip(n)
}
func (d *Delayed) Close() error {
	if !d.markDone() {
		return errAlreadyTerminated
	}
	if d.src != nil {
		return d.src.Close()
	}
	return nil
}
func (d *Delayed) Read(ctx context.Context) {
	if d.isDone() {
		return
	}
	if d.src == nil {
		d.pending = true
		return
	}
	d.src.Read(ctx)
}

func (d *Delayed) OnData(p []byte) (int, error) { return d.h.OnData(p) }
func (d *Delayed) OnDirect(k SourceKind, fd uintptr, max int) (int, Status) {
	return d.h.OnDirect(k, fd, max)
}
func (d *Delayed) OnEOF() {
	if d.markDone() {
		d.h.OnEOF()
	}
}
func (d *Delayed) OnError(err error) {
	if d.markDone() {
		d.h.OnError(err)
	}
}
