package ingest

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrProtocolViolation is returned for frames that break the ingest wire
// protocol. It terminates only the offending session.
var ErrProtocolViolation = errors.New("ingest protocol violation")

// Frame types on the ingest wire. Every frame is a 1-byte type, a 4-byte
// big-endian payload length, and the payload.
const (
	frameHandshake    byte = 0x01
	frameHandshakeAck byte = 0x02
	frameChunk        byte = 0x03
	framePing         byte = 0x04
	framePong         byte = 0x05
	frameClose        byte = 0x06
	frameError        byte = 0x07
)

// handshakeMagic prefixes the handshake payload; the remainder is the
// publisher id.
const handshakeMagic = "VCST/1 "

// Chunk payloads start with one flag byte followed by the media bytes.
const chunkFlagKeyframe = 0x01

type frame struct {
	typ     byte
	payload []byte
}

// readFrame reads one frame from r. A frame advertising a payload larger
// than maxPayload is a protocol violation, reported before any of the
// payload is consumed.
func readFrame(r io.Reader, maxPayload int) (frame, error) {
	var hdr [5]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return frame{}, err
	}
	n := binary.BigEndian.Uint32(hdr[1:])
	if int64(n) > int64(maxPayload) {
		return frame{}, fmt.Errorf("%w: frame payload %d exceeds limit %d", ErrProtocolViolation, n, maxPayload)
	}
	payload := make([]byte, n)
	if _, err := io.ReadFull(r, payload); err != nil {
		return frame{}, err
	}
	return frame{typ: hdr[0], payload: payload}, nil
}

// writeFrame writes one frame to w.
func writeFrame(w io.Writer, typ byte, payload []byte) error {
	buf := make([]byte, 5+len(payload))
	buf[0] = typ
	binary.BigEndian.PutUint32(buf[1:5], uint32(len(payload)))
	copy(buf[5:], payload)
	_, err := w.Write(buf)
	return err
}

// parseHandshake validates a handshake frame and extracts the publisher id.
func parseHandshake(f frame) (string, error) {
	if f.typ != frameHandshake {
		return "", fmt.Errorf("%w: expected handshake frame, got 0x%02x", ErrProtocolViolation, f.typ)
	}
	p := string(f.payload)
	if !strings.HasPrefix(p, handshakeMagic) {
		return "", fmt.Errorf("%w: bad handshake magic", ErrProtocolViolation)
	}
	id := strings.TrimPrefix(p, handshakeMagic)
	if id == "" {
		return "", fmt.Errorf("%w: empty publisher id", ErrProtocolViolation)
	}
	return id, nil
}

// handshakePayload builds the handshake payload for publisher id. Exported
// behavior is exercised by client tooling and tests.
func handshakePayload(publisherID string) []byte {
	return []byte(handshakeMagic + publisherID)
}
