package streams

import (
	"bytes"
	"context"
	"testing"
)

type collector struct {
	buf  bytes.Buffer
	done chan struct{}
	err  error
	max  int // max bytes to accept per OnData, 0 = unlimited
}

func newCollector() *collector { return &collector{done: make(chan struct{}, 1)} }

func (c *collector) OnData(p []byte) (int, error) {
	n := len(p)
	if c.max > 0 && n > c.max {
		n = c.max
	}
	c.buf.Write(p[:n])
	return n, nil
}
func (c *collector) OnDirect(SourceKind, uintptr, int) (int, Status) { return 0, StatusBlocking }
func (c *collector) OnEOF()                                         { c.done <- struct{}{} }
func (c *collector) OnError(err error)                              { c.err = err; c.done <- struct{}{} }

func drain(t *testing.T, s Stream) *collector {
	t.Helper()
	c := newCollector()
	s.SetHandler(c)
	for i := 0; i < 10000; i++ {
		select {
		case <-c.done:
			return c
		default:
		}
		s.Read(context.Background())
	}
	t.Fatal("stream never terminated")
	return nil
}

func TestMemoryStreamDeliversAllBytes(t *testing.T) {
	c := drain(t, NewMemory([]byte("hello world")))
	if c.err != nil {
		t.Fatalf("unexpected error: %v", c.err)
	}
	if c.buf.String() != "hello world" {
		t.Fatalf("got %q", c.buf.String())
	}
}

func TestEmptyStreamIsEmptyAndEOF(t *testing.T) {
	c := drain(t, NewNull())
	if c.err != nil || c.buf.Len() != 0 {
		t.Fatalf("expected empty eof, got %q err=%v", c.buf.String(), c.err)
	}
}

func TestHeadTruncates(t *testing.T) {
	c := drain(t, NewHead(NewMemory([]byte("hello world")), 5))
	if c.buf.String() != "hello" {
		t.Fatalf("got %q", c.buf.String())
	}
}

func TestCatConcatenates(t *testing.T) {
	c := drain(t, NewCat(NewMemory([]byte("foo")), NewMemory([]byte("bar")), NewNull(), NewMemory([]byte("baz"))))
	if c.buf.String() != "foobarbaz" {
		t.Fatalf("got %q", c.buf.String())
	}
}

func TestByteDripDeliversByteAtATime(t *testing.T) {
	c := drain(t, NewByteDrip([]byte("abc")))
	if c.buf.String() != "abc" {
		t.Fatalf("got %q", c.buf.String())
	}
}

func TestChunkedRoundTrip(t *testing.T) {
	original := []byte("the quick brown fox jumps over the lazy dog")
	enc := NewChunkedEncoder(NewMemory(original))
	encoded, err := SinkToBuffer(context.Background(), enc)
	if err != nil {
		t.Fatal(err)
	}
	dec := NewChunkedDecoder(NewMemory(encoded))
	decoded, err := SinkToBuffer(context.Background(), dec)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(decoded, original) {
		t.Fatalf("round trip mismatch: got %q want %q", decoded, original)
	}
}

func TestChunkedDecoderVerbatim(t *testing.T) {
	raw := []byte("3\r\nfoo\r\n0\r\n\r\n")
	dec := NewChunkedDecoder(NewMemory(raw))
	dec.Verbatim = true
	out, err := SinkToBuffer(context.Background(), dec)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(out, raw) {
		t.Fatalf("verbatim mismatch: got %q want %q", out, raw)
	}
}

func TestGrowingBufferConcatenatesWritesInterleavedWithReads(t *testing.T) {
	g := NewGrowingBuffer()
	g.Write([]byte("a"))
	g.Skip(0)
	g.Write([]byte("b"))
	g.Write([]byte("c"))
	g.CloseForWrite()
	c := drain(t, g)
	if c.buf.String() != "abc" {
		t.Fatalf("got %q", c.buf.String())
	}
}

func TestGrowingBufferSkip(t *testing.T) {
	g := NewGrowingBuffer()
	g.Write([]byte("abcdef"))
	g.CloseForWrite()
	skipped, ok := g.Skip(3)
	if !ok || skipped != 3 {
		t.Fatalf("skip failed: %d %v", skipped, ok)
	}
	c := drain(t, g)
	if c.buf.String() != "def" {
		t.Fatalf("got %q", c.buf.String())
	}
}

func TestTeeSplitsIndependentOffsets(t *testing.T) {
	a, b := NewTee(NewMemory([]byte("split me")))
	ca := newCollector()
	cb := newCollector()
	cb.max = 1 // force b to be the slow consumer
	a.SetHandler(ca)
	b.SetHandler(cb)

	for i := 0; i < 10000; i++ {
		doneA, doneB := false, false
		select {
		case <-ca.done:
			doneA = true
		default:
		}
		select {
		case <-cb.done:
			doneB = true
		default:
		}
		if doneA && doneB {
			break
		}
		if !doneA {
			a.Read(context.Background())
		}
		if !doneB {
			b.Read(context.Background())
		}
	}
	if ca.buf.String() != "split me" {
		t.Fatalf("a got %q", ca.buf.String())
	}
	if cb.buf.String() != "split me" {
		t.Fatalf("b got %q", cb.buf.String())
	}
}

func TestCloseIdempotentBeforeTerminationErrorAfter(t *testing.T) {
	s := NewMemory([]byte("x"))
	if err := s.Close(); err != nil {
		t.Fatalf("first close: %v", err)
	}
	if err := s.Close(); err == nil {
		t.Fatal("expected error on second close")
	}
}
