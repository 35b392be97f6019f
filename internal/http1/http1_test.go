package http1

import (
	"bufio"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/danielloader/beng-proxy/internal/perror"
	"github.com/danielloader/beng-proxy/internal/streams"
)

func TestContentLengthDeliversExactBytesThenEnd(t *testing.T) {
	raw := "POST /x HTTP/1.1\r\nContent-Length: 5\r\n\r\nhello"
	r := bufio.NewReader(strings.NewReader(raw))
	req, err := ReadRequest(r)
	if err != nil {
		t.Fatal(err)
	}
	got, err := streams.SinkToBuffer(context.Background(), req.Body)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "hello" {
		t.Fatalf("got %q", got)
	}
}

func TestMalformedRequestLine(t *testing.T) {
	raw := "POST HTTP/1.1\r\n\r\n"
	r := bufio.NewReader(strings.NewReader(raw))
	_, err := ReadRequest(r)
	var pe *perror.Error
	if !errors.As(err, &pe) || pe.Kind != perror.KindFraming || pe.Reason != perror.ReasonMalformedRequestLine {
		t.Fatalf("expected MalformedRequestLine, got %v", err)
	}
}

func TestChunkedRequestBodyDecodesPayload(t *testing.T) {
	raw := "POST /x HTTP/1.1\r\nTransfer-Encoding: chunked\r\n\r\n3\r\nfoo\r\n0\r\n\r\n"
	r := bufio.NewReader(strings.NewReader(raw))
	req, err := ReadRequest(r)
	if err != nil {
		t.Fatal(err)
	}
	got, err := streams.SinkToBuffer(context.Background(), req.Body)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "foo" {
		t.Fatalf("got %q", got)
	}
}

func TestHTTP10ForcesKeepAliveOff(t *testing.T) {
	raw := "GET / HTTP/1.0\r\n\r\n"
	r := bufio.NewReader(strings.NewReader(raw))
	req, err := ReadRequest(r)
	if err != nil {
		t.Fatal(err)
	}
	if req.KeepAlive {
		t.Fatal("expected keep-alive disabled on HTTP/1.0")
	}
}

func TestConnectionCloseDisablesKeepAlive(t *testing.T) {
	raw := "GET / HTTP/1.1\r\nConnection: close\r\n\r\n"
	r := bufio.NewReader(strings.NewReader(raw))
	req, err := ReadRequest(r)
	if err != nil {
		t.Fatal(err)
	}
	if req.KeepAlive {
		t.Fatal("expected keep-alive disabled")
	}
}

func TestCloseDelimitedResponseBody(t *testing.T) {
	raw := "HTTP/1.1 200 OK\r\nConnection: close\r\n\r\n" + strings.Repeat("x", 256)
	r := bufio.NewReader(strings.NewReader(raw))
	resp, err := ReadResponse(r, "GET", false)
	if err != nil {
		t.Fatal(err)
	}
	if resp.Status != 200 {
		t.Fatalf("got status %d", resp.Status)
	}
	got, err := streams.SinkToBuffer(context.Background(), resp.Body)
	if err != nil && err != io.EOF {
		t.Fatal(err)
	}
	if len(got) != 256 {
		t.Fatalf("expected 256 bytes, got %d", len(got))
	}
	if resp.KeepAlive {
		t.Fatal("close-delimited body must disable keep-alive")
	}
}

func TestHeadersTooLarge(t *testing.T) {
	var b strings.Builder
	b.WriteString("GET / HTTP/1.1\r\n")
	for i := 0; i < 2000; i++ {
		b.WriteString("X-Pad: 0123456789012345678901234567890123456789\r\n")
	}
	b.WriteString("\r\n")
	r := bufio.NewReader(strings.NewReader(b.String()))
	_, err := ReadRequest(r)
	var pe *perror.Error
	if !errors.As(err, &pe) || pe.Reason != perror.ReasonHeadersTooLarge {
		t.Fatalf("expected HeadersTooLarge, got %v", err)
	}
}
