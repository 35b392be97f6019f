package streams

import "context"

// Memory is a Stream over an in-memory byte slice. It never blocks and
// never supports direct mode (it holds no file descriptor).
type Memory struct {
	terminated
	data []byte
	pos  int
	h    Handler
}

// NewMemory wraps p as a Stream. p is not copied; the caller must not
// mutate it while the stream is alive.
func NewMemory(p []byte) *Memory {
	return &Memory{data: p}
}

// NewString wraps a copy of s as a Stream; the string-to-bytes
// conversion happens once, here.
func NewString(s string) *Memory {
	return &Memory{data: []byte(s)}
}

func (m *Memory) SetHandler(h Handler)         { m.h = h }
func (m *Memory) SetDirect(mask SourceKind)    {}
func (m *Memory) Available(partial bool) Length {
	return Length{Kind: LengthExact, Value: int64(len(m.data) - m.pos)}
}

func (m *Memory) Skip(n int64) (int64, bool) {
	remaining := int64(len(m.data) - m.pos)
	if n > remaining {
		n = remaining
	}
	m.pos += int(n)
	return n, true
}

func (m *Memory) Read(ctx context.Context) {
	if m.isDone() || m.h == nil {
		return
	}
	if m.pos >= len(m.data) {
		if m.markDone() {
			m.h.OnEOF()
		}
		return
	}
	n, err := m.h.OnData(m.data[m.pos:])
	m.pos += n
	if err != nil {
		if m.markDone() {
			m.h.OnError(err)
		}
		return
	}
	if m.pos >= len(m.data) {
		if m.markDone() {
			m.h.OnEOF()
		}
	}
}

func (m *Memory) Close() error {
	if !m.markDone() {
		return errAlreadyTerminated
	}
	return nil
}
