package translation

import (
	"bufio"
	"bytes"
	"testing"
)

func TestWritePacketThenReadPacketRoundTrips(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteString(&buf, CmdURI, "/index.html"); err != nil {
		t.Fatal(err)
	}
	if buf.Len()%4 != 0 {
		t.Fatalf("expected 4-byte aligned frame, got %d bytes", buf.Len())
	}
	pkt, err := ReadPacket(bufio.NewReader(&buf))
	if err != nil {
		t.Fatal(err)
	}
	if pkt.Command != CmdURI || string(pkt.Payload) != "/index.html" {
		t.Fatalf("got %v %q", pkt.Command, pkt.Payload)
	}
}

func TestWritePacketPadsToFourBytes(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteString(&buf, CmdHost, "a"); err != nil { // 4(header)+1(payload)=5, needs 3 pad
		t.Fatal(err)
	}
	if buf.Len() != 8 {
		t.Fatalf("expected 8 byte frame, got %d", buf.Len())
	}
}

func TestReadPacketEmptyPayload(t *testing.T) {
	var buf bytes.Buffer
	if err := WritePacket(&buf, CmdEnd, nil); err != nil {
		t.Fatal(err)
	}
	if buf.Len() != 4 {
		t.Fatalf("expected 4 byte frame for empty payload, got %d", buf.Len())
	}
	pkt, err := ReadPacket(bufio.NewReader(&buf))
	if err != nil {
		t.Fatal(err)
	}
	if pkt.Command != CmdEnd || len(pkt.Payload) != 0 {
		t.Fatalf("got %v %q", pkt.Command, pkt.Payload)
	}
}

func TestResponseApplyAccumulatesMultipleVary(t *testing.T) {
	resp := &Response{}
	resp.Apply(Packet{Command: CmdVary, Payload: []byte("Accept-Encoding")})
	resp.Apply(Packet{Command: CmdVary, Payload: []byte("Cookie")})
	if len(resp.Vary) != 2 || resp.Vary[0] != "Accept-Encoding" || resp.Vary[1] != "Cookie" {
		t.Fatalf("got %v", resp.Vary)
	}
}

func TestResponseApplyProxyAddress(t *testing.T) {
	resp := &Response{}
	resp.Apply(Packet{Command: CmdProxy, Payload: []byte("10.0.0.1:8080")})
	if resp.Address.HTTP == nil || resp.Address.HTTP.HostPort != "10.0.0.1:8080" {
		t.Fatalf("got %+v", resp.Address)
	}
}
