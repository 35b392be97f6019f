package socket

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"testing"
	"time"

	"github.com/danielloader/beng-proxy/internal/perror"
	"github.com/danielloader/beng-proxy/internal/streams"
)

func TestReadDrainsFIFOThenEOFOnPeerClose(t *testing.T) {
	server, client := net.Pipe()
	sock := New(client, nil)

	go func() {
		server.Write([]byte("hello"))
		server.Close()
	}()

	got, err := io.ReadAll(sock)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if string(got) != "hello" {
		t.Fatalf("got %q, want %q", got, "hello")
	}
}

func TestReadTimeoutDestroysSocketByDefault(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	sock := New(client, nil)
	sock.SetDeadlines(5*time.Millisecond, 0)

	_, err := sock.Read(make([]byte, 16))
	var pe *perror.Error
	if !errors.As(err, &pe) || pe.Kind != perror.KindSocket || pe.Reason != perror.ReasonTimeout {
		t.Fatalf("expected Socket(Timeout), got %v", err)
	}
	if sock.State() != StateDestroyed {
		t.Fatalf("state = %v, want destroyed", sock.State())
	}
}

// absorbingHandler absorbs every timeout, exercising the "handler
// absorbed it, caller retries" branch of spec §4.2's on_timeout
// contract.
type absorbingHandler struct{ passthroughHandler }

func (absorbingHandler) OnTimeout() bool { return true }

func TestReadTimeoutAbsorbedByHandlerDoesNotDestroy(t *testing.T) {
	server, client := net.Pipe()
	sock := New(client, nil)
	sock.SetHandler(absorbingHandler{})
	sock.SetDeadlines(5*time.Millisecond, 0)

	done := make(chan struct{})
	go func() {
		time.Sleep(20 * time.Millisecond)
		server.Write([]byte("ok"))
		close(done)
	}()

	buf := make([]byte, 16)
	var n int
	var err error
	for i := 0; i < 50; i++ {
		n, err = sock.Read(buf)
		if err == nil {
			break
		}
	}
	<-done
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(buf[:n]) != "ok" {
		t.Fatalf("got %q", buf[:n])
	}
}

func TestWriteTimeoutReturnsWouldBlock(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	sock := New(client, nil)
	sock.SetDeadlines(0, 5*time.Millisecond)

	// Nobody reads from server, so the pipe write blocks until the
	// write deadline fires.
	_, err := sock.Write([]byte("hello"))
	if !errors.Is(err, ErrWouldBlock) {
		t.Fatalf("got %v, want ErrWouldBlock", err)
	}
}

func TestWriteAfterDestroyedReturnsErrDestroyed(t *testing.T) {
	server, client := net.Pipe()
	sock := New(client, nil)
	server.Close()
	client.Close()
	sock.state = StateDestroyed

	_, err := sock.Write([]byte("x"))
	if !errors.Is(err, ErrDestroyed) {
		t.Fatalf("got %v, want ErrDestroyed", err)
	}
}

// lineHandler buffers until it sees a full line, returning Again so the
// socket re-offers the same bytes without another syscall, and More
// while it's still waiting for one (spec §4.2's Again/More contract).
type lineHandler struct {
	lines [][]byte
}

func (h *lineHandler) OnData(buf []byte) (int, Result) {
	i := bytes.IndexByte(buf, '\n')
	if i < 0 {
		return 0, ResultMore
	}
	h.lines = append(h.lines, append([]byte(nil), buf[:i]...))
	return i + 1, ResultAgain
}
func (h *lineHandler) OnDirect(streams.SourceKind, uintptr, int) (int, Result) { return 0, ResultBlocking }
func (h *lineHandler) OnClosed([]byte)                                        {}
func (h *lineHandler) OnWrite()                                               {}
func (h *lineHandler) OnTimeout() bool                                        { return false }
func (h *lineHandler) OnError(error)                                         {}

func TestPumpAgainReprocessesBufferedLinesWithoutExtraSyscalls(t *testing.T) {
	server, client := net.Pipe()
	sock := New(client, nil)
	h := &lineHandler{}
	sock.SetHandler(h)

	go func() {
		server.Write([]byte("one\ntwo\nthree\n"))
		server.Close()
	}()

	err := sock.Pump(context.Background())
	if err != io.EOF {
		t.Fatalf("Pump: %v", err)
	}
	if len(h.lines) != 3 || string(h.lines[0]) != "one" || string(h.lines[2]) != "three" {
		t.Fatalf("got %q", h.lines)
	}
}

// stubbornHandler always declines to make progress, to exercise the
// buffer-overflow abort.
type stubbornHandler struct{ passthroughHandler }

func (stubbornHandler) OnData([]byte) (int, Result) { return 0, ResultAgain }

func TestPumpOverflowAbortsWhenHandlerNeverProgresses(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	sock := New(client, nil)
	sock.SetHandler(stubbornHandler{})
	sock.SetMaxBuffered(8)

	go func() {
		server.Write([]byte("0123456789abcdef"))
	}()

	err := sock.Pump(context.Background())
	var pe *perror.Error
	if !errors.As(err, &pe) || pe.Kind != perror.KindSocket || pe.Reason != perror.ReasonBufferOverflow {
		t.Fatalf("expected Socket(BufferOverflow), got %v", err)
	}
	if sock.State() != StateDestroyed {
		t.Fatalf("state = %v, want destroyed", sock.State())
	}
}

func TestGracefulMarksSocketWithoutClosingIt(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()
	sock := New(client, nil)

	if sock.IsGraceful() {
		t.Fatal("expected fresh socket to not be graceful")
	}
	sock.Graceful()
	if !sock.IsGraceful() {
		t.Fatal("expected Graceful to mark the socket")
	}
	if sock.State() != StateConnected {
		t.Fatalf("state = %v, want connected (graceful defers closing)", sock.State())
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	sock := New(client, nil)

	if err := sock.Close(); err != nil {
		t.Fatalf("first Close: %v", err)
	}
	if err := sock.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}
