package streams

import "context"

// ByteDrip is a test aid that delivers its source one byte at a time,
// forcing every operator above it to exercise its backpressure and
// partial-read paths.
type ByteDrip struct {
	terminated
	data []byte
	pos  int
	h    Handler
}

func NewByteDrip(p []byte) *ByteDrip { return &ByteDrip{data: p} }

func (d *ByteDrip) SetHandler(h Handler)      { d.h = h }
func (d *ByteDrip) SetDirect(SourceKind)      {}
func (d *ByteDrip) Available(bool) Length     { return Length{Kind: LengthExact, Value: int64(len(d.data) - d.pos)} }
func (d *ByteDrip) Skip(n int64) (int64, bool) {
	remaining := int64(len(d.data) - d.pos)
	if n > remaining {
		n = remaining
	}
	d.pos += int(n)
	return n, true
}
func (d *ByteDrip) Close() error {
	if !d.markDone() {
		return errAlreadyTerminated
	}
	return nil
}

func (d *ByteDrip) Read(ctx context.Context) {
	if d.isDone() || d.h == nil {
		return
	}
	if d.pos >= len(d.data) {
		if d.markDone() {
			d.h.OnEOF()
		}
		return
	}
	n, err := d.h.OnData(d.data[d.pos : d.pos+1])
	if n > 0 {
		d.pos++
	}
	if err != nil {
		if d.markDone() {
			d.h.OnError(err)
		}
	}
}
