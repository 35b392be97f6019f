package streams

import (
	"container/list"
	"context"
)

// tee is the shared core behind a pair of TeeOutput streams that both read
// from one upstream producer. Each output
// has an independent read offset into a buffer of not-yet-fully-consumed
// chunks; the buffer only drops a chunk once both outputs have advanced
// past it. The slower output back-pressures the faster one: once the
// faster output has consumed everything buffered, its Read does not pull
// from the source again until the slower open output has caught up.
type tee struct {
	src      Stream
	chunks   *list.List // of []byte
	outA, outB *TeeOutput
	srcDone  bool
	srcErr   error
}

// NewTee splits src into two independently-consumable streams.
func NewTee(src Stream) (a, b *TeeOutput) {
	t := &tee{chunks: list.New()}
	t.outA = &TeeOutput{t: t, isA: true}
	t.outB = &TeeOutput{t: t, isA: false}
	t.src = src
	src.SetHandler(t)
	return t.outA, t.outB
}

func (t *tee) OnData(p []byte) (int, error) {
	cp := make([]byte, len(p))
	copy(cp, p)
	t.chunks.PushBack(&teeChunk{data: cp})
	t.deliver()
	return len(p), nil
}

func (t *tee) OnDirect(kind SourceKind, fd uintptr, max int) (int, Status) {
	// Splicing into two independent offsets isn't representable without a
	// copy, so tee always materializes via OnData; direct mode is never
	// negotiated on the upstream side (see TeeOutput.SetDirect no-op on t.src).
	return 0, StatusBlocking
}

func (t *tee) OnEOF() {
	t.srcDone = true
	t.deliver()
}

func (t *tee) OnError(err error) {
	t.srcDone = true
	t.srcErr = err
	t.deliver()
}

type teeChunk struct {
	data []byte
}

// deliver pushes buffered chunks to whichever outputs still have handlers
// and haven't consumed them, then evicts chunks both sides have passed.
func (t *tee) deliver() {
	for _, out := range []*TeeOutput{t.outA, t.outB} {
		if out.h == nil || out.closed {
			continue
		}
		t.deliverTo(out)
	}
	t.evict()
	if t.srcDone && t.chunks.Len() == 0 {
		for _, out := range []*TeeOutput{t.outA, t.outB} {
			if out.h == nil || out.closed || out.finished {
				continue
			}
			out.finished = true
			if t.srcErr != nil {
				out.h.OnError(t.srcErr)
			} else {
				out.h.OnEOF()
			}
		}
	}
}

func (t *tee) deliverTo(out *TeeOutput) {
	e := t.chunks.Front()
	idx := 0
	for e != nil {
		if idx < out.consumedChunks {
			e = e.Next()
			idx++
			continue
		}
		chunk := e.Value.(*teeChunk)
		rest := chunk.data[out.offsetInFront:]
		if len(rest) == 0 {
			out.consumedChunks++
			out.offsetInFront = 0
			e = e.Next()
			idx++
			continue
		}
		n, err := out.h.OnData(rest)
		if n > 0 {
			out.offsetInFront += n
		}
		if err != nil {
			out.closed = true
			out.finished = true
			out.h.OnError(err)
			return
		}
		if n < len(rest) {
			// backpressure: this output stalls until re-read
			return
		}
		out.consumedChunks++
		out.offsetInFront = 0
		e = e.Next()
		idx++
	}
}

// evict drops leading chunks both outputs (that are still open) have
// fully consumed.
func (t *tee) evict() {
	minConsumed := t.chunks.Len()
	for _, out := range []*TeeOutput{t.outA, t.outB} {
		if out.closed {
			continue
		}
		if out.consumedChunks < minConsumed {
			minConsumed = out.consumedChunks
		}
	}
	for i := 0; i < minConsumed; i++ {
		t.chunks.Remove(t.chunks.Front())
	}
	t.outA.consumedChunks -= minConsumed
	t.outB.consumedChunks -= minConsumed
	if t.outA.consumedChunks < 0 {
		t.outA.consumedChunks = 0
	}
	if t.outB.consumedChunks < 0 {
		t.outB.consumedChunks = 0
	}
}

func (t *tee) closeOutput(isA bool) error {
	out := t.outA
	if !isA {
		out = t.outB
	}
	if out.closed {
		return errAlreadyTerminated
	}
	out.closed = true
	t.evict()
	// Both sides decrement a refcount on the shared source, same discipline
	// as Hold.
	if t.outA.closed && t.outB.closed {
		return t.src.Close()
	}
	return nil
}

// TeeOutput is one of the two consumer-facing ends produced by NewTee.
type TeeOutput struct {
	t              *tee
	isA            bool
	h              Handler
	consumedChunks int
	offsetInFront  int
	closed         bool
	finished       bool
}

func (o *TeeOutput) SetHandler(h Handler) { o.h = h }
func (o *TeeOutput) SetDirect(SourceKind) {} // tee never offers direct mode, see tee.OnDirect
func (o *TeeOutput) Available(partial bool) Length {
	return o.t.src.Available(partial)
}
func (o *TeeOutput) Skip(n int64) (int64, bool) { return 0, false }
func (o *TeeOutput) Close() error               { return o.t.closeOutput(o.isA) }
func (o *TeeOutput) Read(ctx context.Context) {
	if o.closed || o.finished {
		return
	}
	if o.t.chunks.Len() > o.consumedChunks || o.t.srcDone {
		o.t.deliver()
		return
	}
	other := o.t.outB
	if !o.isA {
		other = o.t.outA
	}
	if other.h != nil && !other.closed && !other.finished && other.consumedChunks < o.t.chunks.Len() {
		return
	}
	o.t.src.Read(ctx)
}
