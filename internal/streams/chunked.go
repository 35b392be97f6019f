package streams

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
)

// ChunkedEncoder wraps src, re-emitting it as an HTTP/1.1 chunked body:
// each OnData delivery becomes one chunk envelope, terminated by the
// "0\r\n\r\n" final chunk.
type ChunkedEncoder struct {
	terminated
	src    Stream
	h      Handler
	pend   []byte // unflushed envelope bytes (header or trailer)
	srcEOF bool
}

func NewChunkedEncoder(src Stream) *ChunkedEncoder {
	e := &ChunkedEncoder{src: src}
	src.SetHandler(e)
	return e
}

func (e *ChunkedEncoder) SetHandler(h Handler)      { e.h = h }
func (e *ChunkedEncoder) SetDirect(SourceKind)      {} // chunked framing always copies
func (e *ChunkedEncoder) Available(bool) Length     { return Length{Kind: LengthUnknown} }
func (e *ChunkedEncoder) Skip(int64) (int64, bool)  { return 0, false }
func (e *ChunkedEncoder) Close() error {
	if !e.markDone() {
		return errAlreadyTerminated
	}
	return e.src.Close()
}

func (e *ChunkedEncoder) Read(ctx context.Context) {
	if e.isDone() {
		return
	}
	if len(e.pend) > 0 {
		n, err := e.h.OnData(e.pend)
		e.pend = e.pend[n:]
		if err != nil {
			if e.markDone() {
				e.h.OnError(err)
			}
		}
		return
	}
	if e.srcEOF {
		if e.markDone() {
			e.h.OnEOF()
		}
		return
	}
	e.src.Read(ctx)
}

func (e *ChunkedEncoder) OnData(p []byte) (int, error) {
	envelope := fmt.Appendf(nil, "%x\r\n", len(p))
	envelope = append(envelope, p...)
	envelope = append(envelope, '\r', '\n')
	n, err := e.h.OnData(envelope)
	if n < len(envelope) {
		e.pend = envelope[n:]
	}
	if err != nil {
		return len(p), err
	}
	return len(p), nil
}

func (e *ChunkedEncoder) OnDirect(SourceKind, uintptr, int) (int, Status) { return 0, StatusBlocking }

func (e *ChunkedEncoder) OnEOF() {
	e.srcEOF = true
	e.pend = append(e.pend, []byte("0\r\n\r\n")...)
	n, err := e.h.OnData(e.pend)
	e.pend = e.pend[n:]
	if err == nil && len(e.pend) == 0 {
		if e.markDone() {
			e.h.OnEOF()
		}
	}
}

func (e *ChunkedEncoder) OnError(err error) {
	if e.markDone() {
		e.h.OnError(err)
	}
}

// ChunkEvent names the extra terminal event of a chunked body, distinct
// from stream EOF. ChunkedDecoder reports that event through its OnEnd
// callback; it does not produce ChunkEvent values.
type ChunkEvent int

const (
	ChunkEventNone ChunkEvent = iota
	ChunkEventEnd
)

// ChunkedDecoder parses an HTTP/1.1 chunked body out of a raw byte stream
//. When Verbatim is set, the
// original chunk envelopes are re-emitted unchanged instead of being
// stripped — used for pass-through proxying.
type ChunkedDecoder struct {
	terminated
	src      Stream
	h        Handler
	Verbatim bool
	OnEnd    func() // invoked once the terminating 0-chunk + trailer CRLF is seen

	buf           bytes.Buffer
	state         dechunkState
	chunkRemain   int64
	sawEnd        bool
}

type dechunkState int

const (
	dsSize dechunkState = iota
	dsSizeCR
	dsData
	dsDataCR
	dsDataLF
	dsTrailerCR
	dsDone
)

func NewChunkedDecoder(src Stream) *ChunkedDecoder {
	d := &ChunkedDecoder{src: src}
	src.SetHandler(d)
	return d
}

func (d *ChunkedDecoder) SetHandler(h Handler)     { d.h = h }
func (d *ChunkedDecoder) SetDirect(SourceKind)     {} // parsing requires materialized bytes
func (d *ChunkedDecoder) Available(bool) Length    { return Length{Kind: LengthUnknown} }
func (d *ChunkedDecoder) Skip(int64) (int64, bool) { return 0, false }
func (d *ChunkedDecoder) Close() error {
	if !d.markDone() {
		return errAlreadyTerminated
	}
	return d.src.Close()
}
func (d *ChunkedDecoder) Read(ctx context.Context) {
	if d.isDone() {
		return
	}
	d.src.Read(ctx)
}

func (d *ChunkedDecoder) OnDirect(SourceKind, uintptr, int) (int, Status) { return 0, StatusBlocking }

func (d *ChunkedDecoder) OnEOF() {
	if !d.sawEnd {
		if d.markDone() {
			d.h.OnError(fmt.Errorf("streams: chunked body ended before terminating chunk"))
		}
		return
	}
	if d.markDone() {
		d.h.OnEOF()
	}
}

func (d *ChunkedDecoder) OnError(err error) {
	if d.markDone() {
		d.h.OnError(err)
	}
}

// OnData runs the chunk-framing state machine over p, forwarding decoded
// (or, in Verbatim mode, raw) bytes to the downstream handler.
func (d *ChunkedDecoder) OnData(p []byte) (int, error) {
	d.buf.Write(p)
	var out bytes.Buffer
	b := d.buf.Bytes()
	i := 0

	flushRaw := func(from, to int) {
		if d.Verbatim && to > from {
			out.Write(b[from:to])
		}
	}

loop:
	for i < len(b) {
		switch d.state {
		case dsDone:
			break loop
		case dsSize:
			j := i
			for j < len(b) && b[j] != '\r' {
				j++
			}
			if j >= len(b) {
				break loop // need more data for the size line
			}
			sizeField := b[i:j]
			if semi := bytes.IndexByte(sizeField, ';'); semi >= 0 {
				sizeField = sizeField[:semi]
			}
			n, err := strconv.ParseInt(string(bytes.TrimSpace(sizeField)), 16, 64)
			if err != nil {
				return 0, fmt.Errorf("streams: malformed chunk size: %w", err)
			}
			flushRaw(i, j+1)
			d.chunkRemain = n
			i = j + 1
			d.state = dsSizeCR
		case dsSizeCR:
			if b[i] != '\n' {
				return 0, fmt.Errorf("streams: malformed chunk size line")
			}
			flushRaw(i, i+1)
			i++
			if d.chunkRemain == 0 {
				d.state = dsTrailerCR
			} else {
				d.state = dsData
			}
		case dsData:
			avail := len(b) - i
			take := avail
			if int64(take) > d.chunkRemain {
				take = int(d.chunkRemain)
			}
			if !d.Verbatim {
				out.Write(b[i : i+take])
			} else {
				out.Write(b[i : i+take])
			}
			i += take
			d.chunkRemain -= int64(take)
			if d.chunkRemain == 0 {
				d.state = dsDataCR
			} else {
				break loop // need more data
			}
		case dsDataCR:
			if i >= len(b) {
				break loop
			}
			if b[i] != '\r' {
				return 0, fmt.Errorf("streams: malformed chunk trailer")
			}
			flushRaw(i, i+1)
			i++
			d.state = dsDataLF
		case dsDataLF:
			if i >= len(b) {
				break loop
			}
			if b[i] != '\n' {
				return 0, fmt.Errorf("streams: malformed chunk trailer")
			}
			flushRaw(i, i+1)
			i++
			d.state = dsSize
		case dsTrailerCR:
			// Trailers are not supported; require an immediate empty trailer section.
			if i+1 >= len(b) {
				break loop
			}
			if b[i] != '\r' || b[i+1] != '\n' {
				return 0, fmt.Errorf("streams: chunk trailers are not supported")
			}
			flushRaw(i, i+2)
			i += 2
			d.state = dsDone
			d.sawEnd = true
			if d.OnEnd != nil {
				d.OnEnd()
			}
		}
	}

	d.buf.Next(i)
	if out.Len() == 0 {
		return len(p), nil
	}
	consumed, err := d.h.OnData(out.Bytes())
	_ = consumed
	return len(p), err
}

// DechunkVerbatim is a convenience constructor for the pass-through mode,
// where the chunk framing itself is preserved in the output rather than
// stripped.
func DechunkVerbatim(src Stream) *ChunkedDecoder {
	d := NewChunkedDecoder(src)
	d.Verbatim = true
	return d
}
