package streams

import "context"

const growingChunkSize = 2048

// GrowingBuffer materializes a chain of small buffers that can be written
// to incrementally while a reader drains it concurrently, interleaved with
// Skip.
type GrowingBuffer struct {
	terminated
	chunks  [][]byte
	total   int64
	readPos int64 // absolute offset into the logical concatenation
	closed4write bool
	h       Handler
}

func NewGrowingBuffer() *GrowingBuffer { return &GrowingBuffer{} }

// Write appends p, copying it into fixed-size chunks.
func (g *GrowingBuffer) Write(p []byte) (int, error) {
	written := 0
	for len(p) > 0 {
		if len(g.chunks) == 0 || len(g.chunks[len(g.chunks)-1]) == growingChunkSize {
			g.chunks = append(g.chunks, make([]byte, 0, growingChunkSize))
		}
		last := &g.chunks[len(g.chunks)-1]
		room := growingChunkSize - len(*last)
		n := len(p)
		if n > room {
			n = room
		}
		*last = append(*last, p[:n]...)
		p = p[n:]
		written += n
		g.total += int64(n)
	}
	return written, nil
}

// CloseForWrite marks the buffer as complete; subsequent reads past the
// written data deliver EOF instead of blocking.
func (g *GrowingBuffer) CloseForWrite() { g.closed4write = true }

func (g *GrowingBuffer) SetHandler(h Handler) { g.h = h }
func (g *GrowingBuffer) SetDirect(SourceKind) {}
func (g *GrowingBuffer) Available(partial bool) Length {
	remaining := g.total - g.readPos
	if g.closed4write {
		return Length{Kind: LengthExact, Value: remaining}
	}
	return Length{Kind: LengthEstimate, Value: remaining}
}

func (g *GrowingBuffer) Skip(n int64) (int64, bool) {
	remaining := g.total - g.readPos
	if n > remaining {
		n = remaining
	}
	g.readPos += n
	return n, true
}

func (g *GrowingBuffer) Close() error {
	if !g.markDone() {
		return errAlreadyTerminated
	}
	return nil
}

func (g *GrowingBuffer) Read(ctx context.Context) {
	if g.isDone() || g.h == nil {
		return
	}
	if g.readPos >= g.total {
		if g.closed4write {
			if g.markDone() {
				g.h.OnEOF()
			}
		}
		return
	}
	// locate chunk containing readPos
	offset := g.readPos
	for _, c := range g.chunks {
		if offset < int64(len(c)) {
			n, err := g.h.OnData(c[offset:])
			g.readPos += int64(n)
			if err != nil {
				if g.markDone() {
					g.h.OnError(err)
				}
			}
			return
		}
		offset -= int64(len(c))
	}
}

// Bytes returns the full concatenation of what's been written so far,
// ignoring any Skip-advanced read position. Intended for tests and for
// callers that want the whole buffer at once rather than streaming it.
func (g *GrowingBuffer) Bytes() []byte {
	out := make([]byte, 0, g.total)
	for _, c := range g.chunks {
		out = append(out, c...)
	}
	return out
}
