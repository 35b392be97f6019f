package streams

import (
	"context"
	"os"
)

// AutoPipe interposes a kernel pipe between a non-splice-capable source
// and a consumer that only accepts direct-mode transfers, making any
// source splice-capable. Bytes are
// copied once, through the pipe, in exchange for being able to hand the
// consumer a plain file descriptor via OnDirect(SourcePipe, ...).
type AutoPipe struct {
	terminated
	src    Stream
	h      Handler
	r, w   *os.File
	srcEOF bool
}

func NewAutoPipe(src Stream) (*AutoPipe, error) {
	r, w, err := os.Pipe()
	if err != nil {
		return nil, err
	}
	ap := &AutoPipe{src: src, r: r, w: w}
	src.SetHandler(ap)
	return ap, nil
}

func (ap *AutoPipe) SetHandler(h Handler)      { ap.h = h }
func (ap *AutoPipe) SetDirect(mask SourceKind) {} // consumer always gets SourcePipe
func (ap *AutoPipe) Available(partial bool) Length {
	return ap.src.Available(partial)
}
func (ap *AutoPipe) Skip(n int64) (int64, bool) { return 0, false }
func (ap *AutoPipe) Close() error {
	if !ap.markDone() {
		return errAlreadyTerminated
	}
	ap.r.Close()
	ap.w.Close()
	return ap.src.Close()
}

func (ap *AutoPipe) Read(ctx context.Context) {
	if ap.isDone() {
		return
	}
	if ap.srcEOF {
		if ap.markDone() {
			ap.r.Close()
			ap.h.OnEOF()
		}
		return
	}
	ap.src.Read(ctx)
}

func (ap *AutoPipe) OnData(p []byte) (int, error) {
	n, err := ap.w.Write(p)
	if err != nil {
		return n, err
	}
	avail, _ := ap.h.OnDirect(SourcePipe, ap.r.Fd(), n)
	return avail, nil
}

func (ap *AutoPipe) OnDirect(SourceKind, uintptr, int) (int, Status) { return 0, StatusBlocking }

func (ap *AutoPipe) OnEOF() {
	ap.srcEOF = true
	ap.w.Close()
}

func (ap *AutoPipe) OnError(err error) {
	if ap.markDone() {
		ap.w.Close()
		ap.r.Close()
		ap.h.OnError(err)
	}
}
