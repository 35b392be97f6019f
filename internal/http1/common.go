// Package http1 implements the symmetric HTTP/1.1 framing state machine
// shared by the client and server receivers:
//
//	START → HEADERS → (BODY | END) → END → [new START or close]
//
// Go's goroutine-per-connection model is the idiomatic replacement for the
// original's single-threaded callback reactor; each connection's request loop here
// runs as ordinary blocking code on its own goroutine rather than as a
// state machine driven by socket readiness callbacks, while still
// enforcing a header-size budget, chunked/content-length framing rules,
// and keep-alive semantics.
package http1

import (
	"bufio"
	"errors"
	"strconv"
	"strings"

	"github.com/danielloader/beng-proxy/internal/perror"
)

// MaxHeaderBytes is the total header budget per request.
const MaxHeaderBytes = 64 * 1024

// recognizedMethods is the literal-prefix table the server receiver
// matches request lines against.
var recognizedMethods = map[string]bool{
	"GET": true, "HEAD": true, "POST": true, "PUT": true, "DELETE": true,
	"OPTIONS": true, "TRACE": true, "PROPFIND": true, "PROPPATCH": true,
	"MKCOL": true, "MOVE": true, "COPY": true, "LOCK": true, "UNLOCK": true,
}

// Header is a lowercase-keyed multi-map, matching spec §4.3 "Header names
// are lowercased on insertion."
type Header map[string][]string

func (h Header) Add(name, value string) {
	name = strings.ToLower(name)
	h[name] = append(h[name], value)
}

func (h Header) Get(name string) string {
	v := h[strings.ToLower(name)]
	if len(v) == 0 {
		return ""
	}
	return v[0]
}

func (h Header) Has(name string) bool {
	_, ok := h[strings.ToLower(name)]
	return ok
}

// tokenContains reports whether value (a comma-separated header value)
// contains token, case-insensitively.
func tokenContains(value, token string) bool {
	for _, part := range strings.Split(value, ",") {
		if strings.EqualFold(strings.TrimSpace(part), token) {
			return true
		}
	}
	return false
}

// bodyFraming is resolved from headers during the HEADERS→(BODY|END)
// transition.
type bodyFraming struct {
	kind          bodyKind
	contentLength int64
}

type bodyKind int

const (
	bodyNone bodyKind = iota
	bodyContentLength
	bodyChunked
	bodyCloseDelimited // client-side only: no Content-Length, no chunked, body runs to EOF
)

// resolveBodyFraming applies spec §4.3's HEADERS transition rules. Per the
// documented Open Question, Transfer-Encoding: chunked silently wins if
// both headers are present (legacy behavior retained deliberately).
func resolveBodyFraming(h Header, allowCloseDelimited bool) (bodyFraming, error) {
	te := h.Get("Transfer-Encoding")
	if te != "" && tokenContains(te, "chunked") {
		return bodyFraming{kind: bodyChunked}, nil
	}
	cl := h.Get("Content-Length")
	if cl == "" {
		if allowCloseDelimited {
			return bodyFraming{kind: bodyCloseDelimited}, nil
		}
		return bodyFraming{kind: bodyNone}, nil
	}
	n, err := strconv.ParseInt(strings.TrimSpace(cl), 10, 64)
	if err != nil || n < 0 {
		return bodyFraming{}, perror.New(perror.KindFraming, perror.ReasonInvalidContentLength, nil)
	}
	if n == 0 {
		return bodyFraming{kind: bodyNone}, nil
	}
	return bodyFraming{kind: bodyContentLength, contentLength: n}, nil
}

// keepAliveFromRequest applies spec §4.3 "Keep-alive": disabled on HTTP/1.0
// always, disabled on any `Connection: close` token match.
func keepAliveFromRequest(minorVersion int, h Header) bool {
	if minorVersion < 1 {
		return false
	}
	if conn := h.Get("Connection"); conn != "" && tokenContains(conn, "close") {
		return false
	}
	return true
}

// isEmptyBodied reports whether a response must have no body regardless
// of what the application supplies.
func isEmptyBodied(status int, requestMethod string) bool {
	if requestMethod == "HEAD" {
		return true
	}
	if status >= 100 && status < 200 {
		return true
	}
	switch status {
	case 204, 205, 304:
		return true
	}
	return false
}

// readHeaderLines reads CRLF/LF-terminated header lines until a blank
// line, enforcing MaxHeaderBytes. Continuation lines are not
// supported, matching spec: "collapsed into a single header value only
// when the source already does so" — i.e. never, here.
func readHeaderLines(r *bufio.Reader, budget int) ([]string, int, error) {
	var lines []string
	total := 0
	for {
		line, err := r.ReadString('\n')
		total += len(line)
		if total > budget {
			return nil, total, perror.New(perror.KindFraming, perror.ReasonHeadersTooLarge, nil)
		}
		if err != nil {
			var pe *perror.Error
			if errors.As(err, &pe) && pe.Kind == perror.KindSocket {
				return nil, total, err
			}
			return nil, total, perror.New(perror.KindFraming, perror.ReasonPrematureEOF, err)
		}
		trimmed := strings.TrimRight(line, "\r\n")
		if trimmed == "" {
			return lines, total, nil
		}
		lines = append(lines, trimmed)
	}
}

func parseHeaderLines(lines []string) Header {
	h := make(Header, len(lines))
	for _, line := range lines {
		name, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		h.Add(strings.TrimSpace(name), strings.TrimSpace(value))
	}
	return h
}

// IsUpgrade reports whether the request/response signals a protocol
// upgrade.
func IsUpgrade(h Header) bool {
	conn := h.Get("Connection")
	return h.Has("Upgrade") && tokenContains(conn, "upgrade")
}
