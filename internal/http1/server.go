package http1

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/danielloader/beng-proxy/internal/perror"
	"github.com/danielloader/beng-proxy/internal/streams"
)

// Request is the server-side parsed HTTP/1.1 request.
type Request struct {
	Method       string
	Target       string
	MinorVersion int
	Header       Header
	Body         streams.Stream // nil if the request has no body
	KeepAlive    bool
	Expect100    bool
	Upgrade      bool

	bodyReader io.Reader
}

// ReadRequest parses one request off r. HTTP/0.9 is rejected outright; HTTP/1.0 is
// accepted with keep-alive forced off.
func ReadRequest(r *bufio.Reader) (*Request, error) {
	line, err := r.ReadString('\n')
	if err != nil {
		if err == io.EOF && line == "" {
			return nil, io.EOF // clean connection close between requests
		}
		var pe *perror.Error
		if errors.As(err, &pe) && pe.Kind == perror.KindSocket {
			return nil, err
		}
		return nil, perror.New(perror.KindFraming, perror.ReasonPrematureEOF, err)
	}
	line = strings.TrimRight(line, "\r\n")

	method, target, version, ok := parseRequestLine(line)
	if !ok {
		return nil, perror.New(perror.KindFraming, perror.ReasonMalformedRequestLine, nil)
	}
	if !recognizedMethods[method] {
		return nil, perror.New(perror.KindFraming, perror.ReasonUnsupportedMethod, nil)
	}
	if version == "" {
		// HTTP/0.9 has no version token at all.
		return nil, perror.New(perror.KindFraming, perror.ReasonUnsupportedVersion, nil)
	}
	minor, ok := parseHTTPVersion(version)
	if !ok {
		return nil, perror.New(perror.KindFraming, perror.ReasonUnsupportedVersion, nil)
	}

	lines, _, err := readHeaderLines(r, MaxHeaderBytes-len(line))
	if err != nil {
		return nil, err
	}
	header := parseHeaderLines(lines)

	req := &Request{
		Method:       method,
		Target:       target,
		MinorVersion: minor,
		Header:       header,
		KeepAlive:    keepAliveFromRequest(minor, header),
		Upgrade:      IsUpgrade(header),
	}

	if req.Upgrade {
		// The framing layer steps out; the caller owns the raw connection
		// from here.
		return req, nil
	}

	framing, err := resolveBodyFraming(header, false)
	if err != nil {
		return nil, err
	}

	if v := header.Get("Expect"); strings.EqualFold(v, "100-continue") {
		req.Expect100 = true
	}

	switch framing.kind {
	case bodyNone:
		// HEADERS→END directly.
	case bodyContentLength:
		lr := io.LimitReader(r, framing.contentLength)
		req.bodyReader = lr
		req.Body = streams.NewFromReader(lr, streams.Length{Kind: streams.LengthExact, Value: framing.contentLength})
	case bodyChunked:
		req.bodyReader = newChunkedBodyReader(r)
		req.Body = streams.NewFromReader(req.bodyReader, streams.Length{Kind: streams.LengthUnknown})
	}

	return req, nil
}

func parseRequestLine(line string) (method, target, version string, ok bool) {
	parts := strings.Split(line, " ")
	if len(parts) == 2 {
		// A second token that looks like a version string but left the
		// target empty (e.g. "POST HTTP/1.1") is a malformed request
		// line, not HTTP/0.9 — genuine 0.9 never has a version token at
		// all ("GET /path").
		if strings.HasPrefix(parts[1], "HTTP/") {
			return "", "", "", false
		}
		return parts[0], parts[1], "", true
	}
	if len(parts) != 3 {
		return "", "", "", false
	}
	return parts[0], parts[1], parts[2], true
}

func parseHTTPVersion(v string) (minor int, ok bool) {
	if !strings.HasPrefix(v, "HTTP/1.") {
		return 0, false
	}
	switch v {
	case "HTTP/1.0":
		return 0, true
	case "HTTP/1.1":
		return 1, true
	default:
		return 0, false
	}
}

// WriteContinue emits the 100-continue interim response when the handler
// starts reading a body whose request announced Expect: 100-continue.
func WriteContinue(w io.Writer) error {
	_, err := io.WriteString(w, "HTTP/1.1 100 Continue\r\n\r\n")
	return err
}

// WriteHTTP09Refusal writes the plain-text refusal spec §6 mandates for
// HTTP/0.9 requests.
func WriteHTTP09Refusal(w io.Writer) error {
	_, err := io.WriteString(w, "This server requires HTTP 1.1.")
	return err
}

// WriteResponseHead writes the status line and headers for a server
// response. body, if non-nil, is then written by the caller either
// directly (Content-Length framing) or through a ChunkedWriter.
func WriteResponseHead(w io.Writer, status int, statusText string, header Header) error {
	if statusText == "" {
		statusText = "OK"
	}
	if _, err := fmt.Fprintf(w, "HTTP/1.1 %d %s\r\n", status, statusText); err != nil {
		return err
	}
	for name, values := range header {
		for _, v := range values {
			if _, err := fmt.Fprintf(w, "%s: %s\r\n", canonicalHeaderName(name), v); err != nil {
				return err
			}
		}
	}
	_, err := io.WriteString(w, "\r\n")
	return err
}

func canonicalHeaderName(name string) string {
	parts := strings.Split(name, "-")
	for i, p := range parts {
		if p == "" {
			continue
		}
		parts[i] = strings.ToUpper(p[:1]) + p[1:]
	}
	return strings.Join(parts, "-")
}
