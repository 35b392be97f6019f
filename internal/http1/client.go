package http1

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/danielloader/beng-proxy/internal/perror"
	"github.com/danielloader/beng-proxy/internal/streams"
)

// Response is the client-side parsed HTTP/1.1 response.
type Response struct {
	Status       int
	StatusText   string
	MinorVersion int
	Header       Header
	Body         streams.Stream // nil if forced to END
	KeepAlive    bool
	Upgrade      bool

	bodyReader io.Reader
}

// ReadResponse parses one response off r for a request made with method.
// An interim 100 Continue is consumed and the response after it is
// returned. suppressContinue reports that a 100 has already been consumed
// for this request, so a further 100 fails as a double_100_continue
// framing error.
func ReadResponse(r *bufio.Reader, requestMethod string, suppressContinue bool) (*Response, error) {
	status, statusText, minor, err := readStatusLine(r)
	if err != nil {
		return nil, err
	}

	if status == 100 {
		// Consume the interim response's (empty) header block.
		if _, _, err := readHeaderLines(r, MaxHeaderBytes); err != nil {
			return nil, err
		}
		if suppressContinue {
			// A 100 was already consumed for this request; a second one is
			// a protocol error.
			return nil, perror.New(perror.KindFraming, "double_100_continue", nil)
		}
		next, err := ReadResponse(r, requestMethod, true)
		if err != nil {
			return nil, err
		}
		if next.Status == 100 {
			return nil, perror.New(perror.KindFraming, "double_100_continue", nil)
		}
		return next, nil
	}

	lines, _, err := readHeaderLines(r, MaxHeaderBytes)
	if err != nil {
		return nil, err
	}
	header := parseHeaderLines(lines)

	resp := &Response{
		Status:       status,
		StatusText:   statusText,
		MinorVersion: minor,
		Header:       header,
		KeepAlive:    keepAliveFromRequest(minor, header),
		Upgrade:      IsUpgrade(header),
	}

	if resp.Upgrade {
		return resp, nil
	}

	// Forced END regardless of headers.
	if requestMethod == "HEAD" || (status >= 100 && status < 200) || status == 204 || status == 205 || status == 304 {
		return resp, nil
	}

	framing, err := resolveBodyFraming(header, true)
	if err != nil {
		return nil, err
	}

	switch framing.kind {
	case bodyNone:
	case bodyContentLength:
		lr := io.LimitReader(r, framing.contentLength)
		resp.bodyReader = lr
		resp.Body = streams.NewFromReader(lr, streams.Length{Kind: streams.LengthExact, Value: framing.contentLength})
	case bodyChunked:
		resp.bodyReader = newChunkedBodyReader(r)
		resp.Body = streams.NewFromReader(resp.bodyReader, streams.Length{Kind: streams.LengthUnknown})
	case bodyCloseDelimited:
		// Runs to connection close (spec seed test B); keep-alive must be
		// false in this case regardless of what headers said.
		resp.KeepAlive = false
		resp.bodyReader = r
		resp.Body = streams.NewFromReader(r, streams.Length{Kind: streams.LengthUnknown})
	}

	return resp, nil
}

func readStatusLine(r *bufio.Reader) (status int, text string, minor int, err error) {
	line, rerr := r.ReadString('\n')
	if rerr != nil {
		return 0, "", 0, perror.New(perror.KindFraming, perror.ReasonPrematureEOF, rerr)
	}
	line = strings.TrimRight(line, "\r\n")
	parts := strings.SplitN(line, " ", 3)
	if len(parts) < 2 {
		return 0, "", 0, perror.New(perror.KindFraming, perror.ReasonMalformedStatusLine, nil)
	}
	m, ok := parseHTTPVersion(parts[0])
	if !ok {
		return 0, "", 0, perror.New(perror.KindFraming, perror.ReasonUnsupportedVersion, nil)
	}
	code, cerr := strconv.Atoi(parts[1])
	if cerr != nil || code < 100 || code > 599 {
		return 0, "", 0, perror.New(perror.KindFraming, perror.ReasonMalformedStatusLine, nil)
	}
	txt := ""
	if len(parts) == 3 {
		txt = parts[2]
	}
	return code, txt, m, nil
}

// WriteRequestHead writes a request line and headers to w.
func WriteRequestHead(w io.Writer, method, target string, header Header) error {
	if _, err := fmt.Fprintf(w, "%s %s HTTP/1.1\r\n", method, target); err != nil {
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
