// Package orchestrator ties the framing, translation, cache, upstream,
// header-forwarding, and session layers into the per-request lifecycle:
// one long-lived Handler configured at startup, one lifecycle method
// invoked per accepted connection.
package orchestrator

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/danielloader/beng-proxy/internal/headers"
	"github.com/danielloader/beng-proxy/internal/http1"
	"github.com/danielloader/beng-proxy/internal/perror"
	"github.com/danielloader/beng-proxy/internal/resource"
	"github.com/danielloader/beng-proxy/internal/respcache"
	"github.com/danielloader/beng-proxy/internal/session"
	"github.com/danielloader/beng-proxy/internal/slab"
	"github.com/danielloader/beng-proxy/internal/socket"
	"github.com/danielloader/beng-proxy/internal/streams"
	"github.com/danielloader/beng-proxy/internal/translation"
	"github.com/danielloader/beng-proxy/internal/upstream"
)

// Default per-request read/write deadlines (spec §5 "Deadlines: ...
// per-request read 30 s (write 30 s)").
const (
	DefaultReadTimeout  = 30 * time.Second
	DefaultWriteTimeout = 30 * time.Second
)

// SessionCookieName is the proxy's own session cookie, excluded from
// ModeBoth cookie forwarding and stripped from upstream Set-Cookie values
// under the same mode.
const SessionCookieName = "beng_proxy_session"

// Composer lowers a container-processor transformation chain into the
// response body; left nil, container processing is skipped
// and the body passes through unmodified.
type Composer interface {
	Compose(ctx context.Context, body []byte, chain resource.Chain, widgetPath string, sess *session.Session) ([]byte, error)
}

// Handler is the long-lived, configured-once proxy core; one is shared
// across every accepted connection.
type Handler struct {
	Translation *translation.Cache
	RespCache   *respcache.Cache
	Sessions    *session.Store
	Failures    *upstream.FailureTable
	Balancer    *upstream.Balancer
	Pool        *upstream.Pool

	HeaderSettings headers.Settings
	LocalHost      string

	Composer Composer

	// Slab backs every accepted connection's buffered-socket input FIFO
	// (spec §5 "shared pool of 4 KiB slabs"). Nil allocates unpooled.
	Slab *slab.Pool

	// ReadTimeout/WriteTimeout are the per-request deadlines applied to
	// the accepted connection's buffered socket (spec §5, §4.2). Zero
	// falls back to DefaultReadTimeout/DefaultWriteTimeout.
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Serve runs the HTTP/1.1 request loop for one accepted connection until
// the peer closes it, a framing error occurs, or ctx is cancelled (spec
// §4.3 connection lifecycle, §4.7 "each suspending on I/O, cancellable at
// any suspension"). The connection is wrapped in a buffered socket (spec
// §4.2) so every request is bounded by independent read/write deadlines
// and its input FIFO is drawn from the shared slab pool rather than an
// unbounded bufio allocation.
func (h *Handler) Serve(ctx context.Context, conn net.Conn) {
	sock := socket.New(conn, h.Slab)
	defer sock.Close()

	readTimeout, writeTimeout := h.ReadTimeout, h.WriteTimeout
	if readTimeout <= 0 {
		readTimeout = DefaultReadTimeout
	}
	if writeTimeout <= 0 {
		writeTimeout = DefaultWriteTimeout
	}
	sock.SetDeadlines(readTimeout, writeTimeout)

	br := bufio.NewReader(sock)

	for {
		if sock.IsGraceful() {
			return
		}

		handle := NewCancelHandle(ctx)
		req, err := http1.ReadRequest(br)
		if err != nil {
			if err != io.EOF {
				h.writeErrorResponse(sock, req, err)
			}
			handle.Cancel()
			return
		}

		select {
		case <-ctx.Done():
			sock.Graceful()
		default:
		}

		keepAlive, err := h.handleRequest(handle, conn, sock, req)
		handle.Cancel()
		if err != nil || !keepAlive || sock.IsGraceful() {
			return
		}
	}
}

// handleRequest runs steps 2 through 10 of spec §4.7 for one parsed
// request, returning whether the connection should stay open for
// another request.
func (h *Handler) handleRequest(handle *CancelHandle, conn net.Conn, sock *socket.BufferedSocket, req *http1.Request) (keepAlive bool, err error) {
	ctx := handle.Context()

	if req.Body != nil {
		handle.Defer(req.Body)
	}
	if req.Expect100 {
		if err := http1.WriteContinue(sock); err != nil {
			return false, err
		}
	}

	dissected := Dissect(req.Target)
	clientHeader := toHTTPHeader(req.Header)
	remoteHost, _, _ := net.SplitHostPort(conn.RemoteAddr().String())

	sess := h.sessionFor(clientHeader)

	tReq := &translation.Request{
		Host:        req.Header.Get("Host"),
		URI:         dissected.Base,
		RemoteHost:  remoteHost,
		UserAgent:   req.Header.Get("User-Agent"),
		QueryString: dissected.Query,
	}
	if sess != nil {
		tReq.Session = []byte(sess.ID)
	}

	tResp, err := h.Translation.Lookup(ctx, tReq, clientHeader)
	if err != nil {
		h.writeErrorResponse(sock, req, err)
		return false, err
	}

	if sess != nil {
		if len(tResp.Session) > 0 {
			sess = h.Sessions.GetOrCreate(string(tResp.Session))
		}
		if tResp.Realm != "" {
			sess.Realm = tResp.Realm
		}
	}

	// REDIRECT takes precedence over any resource address in the same
	// response.
	if tResp.Redirect != "" {
		drainBody(ctx, req.Body)
		return h.writeShortCircuit(sock, req, http.StatusFound, http.Header{"Location": {tResp.Redirect}})
	}
	if tResp.Bounce != "" {
		drainBody(ctx, req.Body)
		return h.writeShortCircuit(sock, req, http.StatusFound, http.Header{"Location": {tResp.Bounce}})
	}
	if tResp.Status != 0 && tResp.Address.Kind == resource.KindNone {
		drainBody(ctx, req.Body)
		return h.writeShortCircuit(sock, req, tResp.Status, nil)
	}

	fwdCtx := headers.RequestContext{
		WithBody:          req.Method != http.MethodHead,
		LocalHost:         h.LocalHost,
		RemoteHost:        remoteHost,
		SessionCookieName: SessionCookieName,
		SessionLanguage:   sessionLanguage(sess),
		SessionUser:       sessionUser(sess),
	}
	upstreamHeader := headers.ForwardRequest(clientHeader, h.HeaderSettings, fwdCtx)

	// The session's cookie jar (accumulated from this backend's prior
	// Set-Cookie responses) is what the backend expects back on the
	// *request*; it is never appropriate on a client-bound response
	// (scenario A: request 2 must carry the jar from request 1's
	// response, request 3 the jar from request 2's).
	if sess != nil {
		if jarHeader := sess.Jar(req.Header.Get("Host")).Header(); jarHeader != "" {
			upstreamHeader.Set("Cookie", jarHeader)
		}
	}

	status, respHeader, body, cacheable, maxAge, err := h.loadResource(ctx, req, dissected, tResp, upstreamHeader, sess)
	if err != nil {
		h.writeErrorResponse(sock, req, err)
		return false, err
	}

	if len(tResp.Filters) > 0 && h.Composer != nil {
		chain := tResp.Chain()
		if chain.HasContainerProcessor() {
			widgetPath := dissected.PathInfo
			body, err = h.Composer.Compose(ctx, body, chain, widgetPath, sess)
			if err != nil {
				h.writeErrorResponse(sock, req, err)
				return false, err
			}
		}
	}

	if cacheable {
		varyHeader := map[string][]string(clientHeader)
		_ = h.RespCache.Store(ctx, req.Method, dissected.Base, status, respHeader, body, varyHeader, maxAge, h.RespCache.Remote != nil)
	}

	relocate := func(uri string) (string, bool) { return uri, false }
	respCtx := headers.ResponseContext{
		LocalHost:         h.LocalHost,
		SessionCookieName: SessionCookieName,
		Relocate:          relocate,
	}
	outHeader := headers.ForwardResponse(status, respHeader, h.HeaderSettings, respCtx)

	if sess != nil {
		if setCookies, ok := respHeader["Set-Cookie"]; ok {
			sess.Jar(req.Header.Get("Host")).Update(setCookies)
		}
	}

	return h.writeResponse(sock, req, status, outHeader, body)
}

// loadResource consults the response cache, falling back to an upstream
// fetch on a miss or a stale hit. Concurrent misses for the same key are
// not coalesced: each one fetches from upstream on its own.
func (h *Handler) loadResource(ctx context.Context, req *http1.Request, dissected DissectedURI, tResp *translation.Response, upstreamHeader http.Header, sess *session.Session) (status int, respHeader http.Header, body []byte, cacheable bool, maxAge time.Duration, err error) {
	if entry, ok := h.RespCache.Lookup(req.Method, dissected.Base, map[string][]string(upstreamHeader)); ok && !entry.Stale() {
		b, berr := h.RespCache.Body(ctx, entry)
		if berr == nil {
			drainBody(ctx, req.Body)
			return entry.Status, entry.Header, b, false, 0, nil
		}
	}

	status, respHeader, body, err = h.fetchUpstream(ctx, req.Method, tResp.Address, upstreamHeader, req.Body)
	if err != nil {
		return 0, nil, nil, false, 0, err
	}
	return status, respHeader, body, true, tResp.MaxAge, nil
}

// Fetch issues a standalone request to addr, bypassing translation and
// the response cache. It is the widget composer's Dispatcher hook onto
// this Handler's balancer/pool.
func (h *Handler) Fetch(ctx context.Context, method string, addr resource.Address, header http.Header) (status int, respHeader http.Header, body []byte, err error) {
	return h.fetchUpstream(ctx, method, addr, header, nil)
}

// fetchUpstream dials the resource address's HTTP variant through the
// balancer and pool, issuing the request and draining the response body
// into memory.
func (h *Handler) fetchUpstream(ctx context.Context, method string, addr resource.Address, header http.Header, reqBody streams.Stream) (status int, respHeader http.Header, body []byte, err error) {
	if addr.Kind != resource.KindHTTP || addr.HTTP == nil {
		return 0, nil, nil, perror.New(perror.KindUpstream, perror.ReasonNoAddresses, nil)
	}
	httpAddr := addr.HTTP

	addrs := httpAddr.Addresses
	if len(addrs) == 0 && httpAddr.HostPort != "" {
		addrs = []string{httpAddr.HostPort}
	}

	conn, picked, err := h.Balancer.DialWithRetry(ctx, addrs, "")
	if err != nil {
		return 0, nil, nil, err
	}
	// The connection goes back to the pool or is dropped, never both, once
	// the body has been drained.
	reuse := true
	defer func() {
		if reuse {
			h.Pool.Put(picked, conn)
		} else {
			h.Pool.Drop(conn)
		}
	}()

	target := httpAddr.Path
	if target == "" {
		target = "/"
	}

	h1Header := toHTTP1Header(header)
	if err := http1.WriteRequestHead(conn, method, target, h1Header); err != nil {
		reuse = false
		return 0, nil, nil, perror.New(perror.KindUpstream, perror.ReasonConnectRefused, err)
	}
	if reqBody != nil {
		if berr := streams.SinkToWriter(ctx, reqBody, conn); berr != nil {
			reuse = false
			return 0, nil, nil, berr
		}
	}

	br := bufio.NewReader(conn)
	resp, err := http1.ReadResponse(br, method, false)
	if err != nil {
		reuse = false
		return 0, nil, nil, err
	}
	if !resp.KeepAlive {
		reuse = false
	}

	var payload []byte
	if resp.Body != nil {
		payload, err = streams.SinkToBuffer(ctx, resp.Body)
		if err != nil {
			reuse = false
			return 0, nil, nil, err
		}
	}

	return resp.Status, toHTTPHeader(resp.Header), payload, nil
}

// drainBody discards a request body the handler decided not to forward,
// so a pipelined keep-alive connection's framing stays in sync (spec
// §4.3 "excess after response" is the mirror-image failure this avoids).
func drainBody(ctx context.Context, body streams.Stream) {
	if body == nil {
		return
	}
	streams.SinkToWriter(ctx, body, io.Discard)
}

func sessionLanguage(sess *session.Session) string {
	if sess == nil {
		return ""
	}
	return sess.Language
}

func sessionUser(sess *session.Session) string {
	if sess == nil {
		return ""
	}
	return sess.User
}

func (h *Handler) sessionFor(clientHeader http.Header) *session.Session {
	if h.Sessions == nil {
		return nil
	}
	for _, c := range clientHeader["Cookie"] {
		if id, ok := extractCookie(c, SessionCookieName); ok {
			return h.Sessions.GetOrCreate(id)
		}
	}
	return h.Sessions.New()
}

func extractCookie(cookieHeader, name string) (string, bool) {
	for _, pair := range strings.Split(cookieHeader, ";") {
		k, v, found := strings.Cut(strings.TrimSpace(pair), "=")
		if found && k == name {
			return strings.TrimSpace(v), true
		}
	}
	return "", false
}

func (h *Handler) writeShortCircuit(w io.Writer, req *http1.Request, status int, extra http.Header) (bool, error) {
	header := http.Header{}
	for k, v := range extra {
		header[k] = v
	}
	return h.writeResponse(w, req, status, header, nil)
}

func (h *Handler) writeResponse(w io.Writer, req *http1.Request, status int, header http.Header, body []byte) (bool, error) {
	header.Set("Content-Length", strconv.Itoa(len(body)))
	if err := http1.WriteResponseHead(w, status, "", toHTTP1Header(header)); err != nil {
		return false, err
	}
	if req.Method != http.MethodHead && len(body) > 0 {
		if _, err := w.Write(body); err != nil {
			return false, err
		}
	}
	return req.KeepAlive, nil
}

// writeErrorResponse synthesizes the response for a framing/upstream/
// translation/widget failure that occurred before any response headers
// were written (spec §7 propagation rule). req is nil when the failure
// happened while parsing the request line itself; an HTTP/0.9 request
// line gets the plain-text refusal spec §6 mandates instead of a normal
// status-coded response, since an 0.9 peer cannot parse a status line.
func (h *Handler) writeErrorResponse(w io.Writer, req *http1.Request, err error) {
	var pe *perror.Error
	if errors.As(err, &pe) && pe.Kind == perror.KindFraming && pe.Reason == perror.ReasonUnsupportedVersion && req == nil {
		http1.WriteHTTP09Refusal(w)
		return
	}

	status := perror.HTTPStatus(err)
	header := http1.Header{}
	body := []byte(http.StatusText(status))
	header.Add("Content-Length", strconv.Itoa(len(body)))
	header.Add("Content-Type", "text/plain; charset=utf-8")
	if werr := http1.WriteResponseHead(w, status, "", header); werr != nil {
		return
	}
	w.Write(body)
}

func toHTTPHeader(h http1.Header) http.Header {
	out := make(http.Header, len(h))
	for name, values := range h {
		canonical := http.CanonicalHeaderKey(name)
		out[canonical] = append(out[canonical], values...)
	}
	return out
}

func toHTTP1Header(h http.Header) http1.Header {
	out := make(http1.Header, len(h))
	for name, values := range h {
		for _, v := range values {
			out.Add(name, v)
		}
	}
	return out
}
