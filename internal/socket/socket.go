// Package socket implements the buffered-socket state machine shared by
// both HTTP/1.1 receivers (spec §4.2): a non-blocking-style wrapper over
// a net.Conn with an owned FIFO input buffer drawn from a shared slab
// pool, independent read/write deadlines, and a Handler callback set
// that mirrors on_data/on_direct/on_closed/on_write/on_timeout/on_error.
//
// The original reactor drives this state machine from socket-readiness
// callbacks; this port keeps the goroutine-per-connection blocking
// model internal/http1 already documents and expresses backpressure
// through the Handler's return values instead of an event loop, the
// same status-enum-over-destruct-observer trade the package doc for
// internal/streams makes for the Istream hierarchy.
package socket

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"time"

	"github.com/danielloader/beng-proxy/internal/perror"
	"github.com/danielloader/beng-proxy/internal/slab"
	"github.com/danielloader/beng-proxy/internal/streams"
)

// State is one of the four lifecycle states spec §3 "Buffered socket"
// names.
type State int

const (
	StateDisconnected State = iota
	StateConnected
	StateEnded    // peer sent FIN; input may still hold data
	StateDestroyed
)

// Result is returned by Handler.OnData/OnDirect, replacing the
// original's reactor-driven event scheduling with an explicit status
// the caller inspects before touching the socket again.
type Result int

const (
	ResultOK Result = iota
	ResultPartial
	ResultMore
	ResultAgain
	ResultBlocking
	ResultClosed
)

// Handler is the consumer installed on a BufferedSocket.
type Handler interface {
	// OnData offers buffered bytes. It returns how many it consumed (the
	// remainder stays buffered) and a Result describing what it wants
	// next.
	OnData(buf []byte) (consumed int, result Result)

	// OnDirect is offered instead of OnData when a non-zero direct mask
	// is set and the underlying conn exposes a raw descriptor; declining
	// (ResultBlocking) falls back to OnData for the same bytes.
	OnDirect(kind streams.SourceKind, fd uintptr, max int) (int, Result)

	// OnClosed fires once, when the peer sends FIN; remaining is
	// whatever is still sitting in the input FIFO at that moment.
	OnClosed(remaining []byte)

	// OnWrite fires after a successful Write, so a handler driving its
	// own output queue can push more.
	OnWrite()

	// OnTimeout fires when a read or write deadline expires. Returning
	// false destroys the socket with a timeout error; true means the
	// handler absorbed it and the caller should retry.
	OnTimeout() bool

	// OnError is the terminal failure callback.
	OnError(err error)
}

// passthroughHandler is installed by default: it declines to consume
// anything, so every byte read off the wire lands in the input FIFO for
// a pull-style consumer (bufio.Reader via BufferedSocket.Read) to drain
// at its own pace — spec §4.2's "More" means exactly this.
type passthroughHandler struct{}

func (passthroughHandler) OnData(buf []byte) (int, Result) { return 0, ResultMore }
func (passthroughHandler) OnDirect(streams.SourceKind, uintptr, int) (int, Result) {
	return 0, ResultBlocking
}
func (passthroughHandler) OnClosed([]byte)  {}
func (passthroughHandler) OnWrite()         {}
func (passthroughHandler) OnTimeout() bool  { return false }
func (passthroughHandler) OnError(error)    {}

// DefaultMaxBuffered bounds the input FIFO before Again-without-progress
// is treated as overflow (spec §4.2 "the socket aborts with input buffer
// overflow once the buffer is full").
const DefaultMaxBuffered = 16 * slab.Size

// BufferedSocket wraps one accepted or dialled net.Conn with the FIFO
// input buffer, deadlines, and handler dispatch spec §4.2 describes.
type BufferedSocket struct {
	conn    net.Conn
	pool    *slab.Pool
	handler Handler

	input       bytes.Buffer
	maxBuffered int
	directMask  streams.SourceKind

	state    State
	graceful bool

	readTimeout  time.Duration
	writeTimeout time.Duration
}

// New wraps conn. pool may be nil, in which case slabs are allocated
// directly instead of drawn from the shared pool.
func New(conn net.Conn, pool *slab.Pool) *BufferedSocket {
	return &BufferedSocket{
		conn:        conn,
		pool:        pool,
		handler:     passthroughHandler{},
		maxBuffered: DefaultMaxBuffered,
		state:       StateConnected,
	}
}

// SetHandler installs h. A nil Handler restores the pull-style default.
func (s *BufferedSocket) SetHandler(h Handler) {
	if h == nil {
		h = passthroughHandler{}
	}
	s.handler = h
}

// SetDirect sets the zero-copy source-kind mask offered to OnDirect. A
// zero mask (the default) disables direct mode.
func (s *BufferedSocket) SetDirect(mask streams.SourceKind) { s.directMask = mask }

// SetDeadlines installs the independent read/write deadlines spec §4.2
// describes. A zero duration disables that deadline.
func (s *BufferedSocket) SetDeadlines(read, write time.Duration) {
	s.readTimeout = read
	s.writeTimeout = write
}

// SetMaxBuffered overrides DefaultMaxBuffered, the input-FIFO ceiling
// that turns a no-progress Again into a buffer-overflow abort.
func (s *BufferedSocket) SetMaxBuffered(n int) { s.maxBuffered = n }

// State reports the current lifecycle state.
func (s *BufferedSocket) State() State { return s.state }

// Graceful marks the connection to finish its in-flight request, refuse
// any further one, and then close (spec §4.2 "Graceful shutdown").
func (s *BufferedSocket) Graceful() { s.graceful = true }

// IsGraceful reports whether Graceful has been called.
func (s *BufferedSocket) IsGraceful() bool { return s.graceful }

// Read implements io.Reader by draining the input FIFO, filling it from
// the wire (through the handler) as needed. This is what lets
// bufio.NewReader(sock) feed internal/http1's framing unchanged while
// the deadline, slab-pool, and overflow discipline below stay in
// force.
func (s *BufferedSocket) Read(p []byte) (int, error) {
	for {
		if s.input.Len() > 0 {
			return s.input.Read(p)
		}
		if s.state == StateEnded || s.state == StateDestroyed {
			return 0, io.EOF
		}
		if err := s.fill(); err != nil {
			return 0, err
		}
	}
}

// fill performs one read syscall (or, with a non-empty direct mask and
// an fd-capable conn, one splice attempt first) and offers the result to
// the handler once. Any bytes the handler didn't consume are appended
// to the input FIFO.
func (s *BufferedSocket) fill() error {
	if s.state == StateDestroyed {
		return perror.New(perror.KindSocket, perror.ReasonIO, errors.New("socket destroyed"))
	}

	var buf []byte
	if s.pool != nil {
		buf = s.pool.Get()
		defer s.pool.Put(buf)
	} else {
		buf = make([]byte, slab.Size)
	}

	if s.readTimeout > 0 {
		s.conn.SetReadDeadline(time.Now().Add(s.readTimeout))
	} else {
		s.conn.SetReadDeadline(time.Time{})
	}

	n, err := s.conn.Read(buf)
	if n > 0 {
		consumed, result := s.dispatch(buf[:n])
		if consumed < n {
			s.input.Write(buf[consumed:n])
		}
		if result == ResultClosed {
			s.state = StateDestroyed
		}
	}
	if err == nil {
		return nil
	}

	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		if s.handler.OnTimeout() {
			return nil
		}
		s.state = StateDestroyed
		return perror.New(perror.KindSocket, perror.ReasonTimeout, err)
	}
	if errors.Is(err, io.EOF) {
		s.state = StateEnded
		s.handler.OnClosed(s.input.Bytes())
		if s.input.Len() == 0 {
			return io.EOF
		}
		return nil
	}
	s.state = StateDestroyed
	s.handler.OnError(err)
	return perror.New(perror.KindSocket, perror.ReasonIO, err)
}

// dispatch offers chunk to the handler, preferring OnDirect when a
// direct mask is set and the conn exposes a raw fd, falling back to
// OnData exactly as spec §4.1's "Direct (zero-copy) mode" describes for
// streams.
func (s *BufferedSocket) dispatch(chunk []byte) (int, Result) {
	if s.directMask != streams.SourceNone {
		if fd, ok := rawFD(s.conn); ok {
			if consumed, result := s.handler.OnDirect(streams.SourceSocket, fd, len(chunk)); result != ResultBlocking {
				return consumed, result
			}
		}
	}
	return s.handler.OnData(chunk)
}

// driveHandler re-invokes OnData against already-buffered bytes without
// a new syscall, honoring Again (spec §4.2 "Again means the handler
// wishes to re-process what is already in the buffer ... it must make
// forward progress or the socket aborts with input buffer overflow").
func (s *BufferedSocket) driveHandler() error {
	for s.input.Len() > 0 {
		consumed, result := s.handler.OnData(s.input.Bytes())
		if consumed > 0 {
			s.input.Next(consumed)
		}
		switch result {
		case ResultAgain:
			if consumed > 0 {
				continue
			}
			if s.input.Len() >= s.maxBuffered {
				s.state = StateDestroyed
				err := perror.New(perror.KindSocket, perror.ReasonBufferOverflow, nil)
				s.handler.OnError(err)
				return err
			}
			return nil
		case ResultClosed:
			s.state = StateDestroyed
			return nil
		default: // Ok, Partial, More, Blocking: wait for more bytes or the consumer to pull.
			return nil
		}
	}
	return nil
}

// Pump actively drives a push-style Handler until eof, a terminal
// error, or ctx is cancelled. Pull-style consumers (the common case,
// via Read) never need this; it exists for a Handler that wants to
// process bytes in place rather than copy them out through Read,
// mirroring streams.Stream.Read's push-or-pull duality.
func (s *BufferedSocket) Pump(ctx context.Context) error {
	for {
		if err := s.driveHandler(); err != nil {
			return err
		}
		if s.state == StateDestroyed {
			return nil
		}
		if s.state == StateEnded && s.input.Len() == 0 {
			return io.EOF
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if err := s.fill(); err != nil {
			return err
		}
	}
}

// Write performs one deadline-bounded write. A timed-out write maps to
// ErrWouldBlock (spec §4.2 "Write path" sentinel); the caller must not
// touch the socket again after ErrDestroyed.
func (s *BufferedSocket) Write(p []byte) (int, error) {
	if s.state == StateDestroyed {
		return 0, ErrDestroyed
	}
	if s.writeTimeout > 0 {
		s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
	} else {
		s.conn.SetWriteDeadline(time.Time{})
	}
	n, err := s.conn.Write(p)
	if err == nil {
		s.handler.OnWrite()
		return n, nil
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return n, ErrWouldBlock
	}
	s.state = StateDestroyed
	return n, ErrDestroyed
}

// ErrWouldBlock is returned by Write when the write deadline expires
// before the full buffer was written.
var ErrWouldBlock = errors.New("socket: write would block")

// ErrDestroyed is returned by Write once the socket has failed; callers
// must not touch the socket again.
var ErrDestroyed = errors.New("socket: destroyed")

// Close tears the socket down and releases the underlying conn; it does
// not call OnClosed. Idempotent: a call on a socket that is already
// destroyed (by an earlier Close or an I/O error) still closes the conn
// and returns nil.
func (s *BufferedSocket) Close() error {
	wasDestroyed := s.state == StateDestroyed
	s.state = StateDestroyed
	err := s.conn.Close()
	if wasDestroyed {
		return nil
	}
	return err
}
