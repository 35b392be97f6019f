package translation

import (
	"bufio"
	"encoding/binary"
	"io"

	"github.com/danielloader/beng-proxy/internal/perror"
)

// Packet is one decoded TLV unit: a command plus its raw payload.
type Packet struct {
	Command Command
	Payload []byte
}

// maxPayload bounds a single packet's payload; the length field is a
// u16 so this can never exceed 65535, but we also refuse absurdly large
// allocations defensively.
const maxPayload = 65535

// ReadPacket decodes one packet from r: {length:u16 LE}{command:u16 LE}
// {payload:length bytes} followed by zero-padding out to a 4-byte
// boundary.
func ReadPacket(r *bufio.Reader) (Packet, error) {
	var head [4]byte
	if _, err := io.ReadFull(r, head[:]); err != nil {
		return Packet{}, perror.New(perror.KindTranslation, "packet_header_read", err)
	}
	length := binary.LittleEndian.Uint16(head[0:2])
	cmd := binary.LittleEndian.Uint16(head[2:4])

	payload := make([]byte, length)
	if length > 0 {
		if _, err := io.ReadFull(r, payload); err != nil {
			return Packet{}, perror.New(perror.KindTranslation, "packet_payload_read", err)
		}
	}

	if pad := paddingFor(4 + int(length)); pad > 0 {
		if _, err := r.Discard(pad); err != nil {
			return Packet{}, perror.New(perror.KindTranslation, "packet_padding_read", err)
		}
	}

	return Packet{Command: Command(cmd), Payload: payload}, nil
}

// WritePacket encodes and writes one packet to w, including its 4-byte
// padding.
func WritePacket(w io.Writer, cmd Command, payload []byte) error {
	if len(payload) > maxPayload {
		return perror.New(perror.KindTranslation, "payload_too_large", nil)
	}
	var head [4]byte
	binary.LittleEndian.PutUint16(head[0:2], uint16(len(payload)))
	binary.LittleEndian.PutUint16(head[2:4], uint16(cmd))
	if _, err := w.Write(head[:]); err != nil {
		return perror.New(perror.KindTranslation, "packet_header_write", err)
	}
	if len(payload) > 0 {
		if _, err := w.Write(payload); err != nil {
			return perror.New(perror.KindTranslation, "packet_payload_write", err)
		}
	}
	if pad := paddingFor(4 + len(payload)); pad > 0 {
		var zeros [3]byte
		if _, err := w.Write(zeros[:pad]); err != nil {
			return perror.New(perror.KindTranslation, "packet_padding_write", err)
		}
	}
	return nil
}

func paddingFor(n int) int {
	const align = 4
	r := n % align
	if r == 0 {
		return 0
	}
	return align - r
}

// WriteString is a convenience wrapper for packets whose payload is a
// NUL-free string attribute (HOST, URI, and so on).
func WriteString(w io.Writer, cmd Command, s string) error {
	return WritePacket(w, cmd, []byte(s))
}
