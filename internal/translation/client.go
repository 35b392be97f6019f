package translation

import (
	"bufio"
	"context"
	"net"
	"time"

	"github.com/danielloader/beng-proxy/internal/perror"
)

// sessionWriter buffers one request session's packets before they are
// flushed as a single write.
type sessionWriter struct {
	buf []byte
}

func (w *sessionWriter) writeCommand(cmd Command, payload []byte) error {
	return WritePacket(&bufWriter{w}, cmd, payload)
}

func (w *sessionWriter) writeString(cmd Command, s string) error {
	return w.writeCommand(cmd, []byte(s))
}

// bufWriter adapts sessionWriter's []byte buffer to io.Writer.
type bufWriter struct{ w *sessionWriter }

func (b *bufWriter) Write(p []byte) (int, error) {
	b.w.buf = append(b.w.buf, p...)
	return len(p), nil
}

// Client speaks the translation protocol over a fresh UNIX-domain
// connection per round trip, repeating CHECK re-entry cycles
// transparently. PREVIOUS is not followed automatically; Previous
// re-submits a request with it set.
type Client struct {
	SocketPath string
	Dialer     net.Dialer
	Timeout    time.Duration
}

func NewClient(socketPath string) *Client {
	return &Client{SocketPath: socketPath, Timeout: 10 * time.Second}
}

// Request performs one (possibly multi-round, via CHECK) translation
// lookup and returns the final Response.
func (c *Client) Request(ctx context.Context, req *Request) (*Response, error) {
	conn, err := c.dial(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	resp, err := c.roundTrip(conn, req)
	if err != nil {
		return nil, err
	}

	// CHECK re-entry: the server wants the client to re-submit with the
	// CHECK token echoed, possibly more than once.
	for len(resp.Check) > 0 {
		next := *req
		next.Check = resp.Check
		conn2, derr := c.dial(ctx)
		if derr != nil {
			return nil, derr
		}
		resp, err = c.roundTrip(conn2, &next)
		conn2.Close()
		if err != nil {
			return nil, err
		}
	}

	return resp, nil
}

// Previous re-submits the same request with PREVIOUS set, per a server
// response that asked for it.
func (c *Client) Previous(ctx context.Context, req *Request) (*Response, error) {
	next := *req
	next.wantPrevious = true
	conn, err := c.dial(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()
	return c.roundTrip(conn, &next)
}

func (c *Client) dial(ctx context.Context) (net.Conn, error) {
	dctx, cancel := context.WithTimeout(ctx, c.Timeout)
	defer cancel()
	conn, err := c.Dialer.DialContext(dctx, "unix", c.SocketPath)
	if err != nil {
		return nil, perror.New(perror.KindTranslation, "dial_failed", err)
	}
	return conn, nil
}

func (c *Client) roundTrip(conn net.Conn, req *Request) (*Response, error) {
	sw := &sessionWriter{}
	if err := req.Encode(sw); err != nil {
		return nil, err
	}
	if _, err := conn.Write(sw.buf); err != nil {
		return nil, perror.New(perror.KindTranslation, "session_write", err)
	}

	r := bufio.NewReader(conn)
	resp := &Response{}
	for {
		pkt, err := ReadPacket(r)
		if err != nil {
			return nil, err
		}
		if pkt.Command == CmdBegin {
			continue
		}
		if pkt.Command == CmdEnd {
			break
		}
		resp.Apply(pkt)
	}
	return resp, nil
}
