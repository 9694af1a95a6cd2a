package ingest

import (
	"bytes"
	"errors"
	"testing"
)

func TestFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	payload := []byte("media bytes")
	if err := writeFrame(&buf, frameChunk, payload); err != nil {
		t.Fatalf("writeFrame: %v", err)
	}

	f, err := readFrame(&buf, 1024)
	if err != nil {
		t.Fatalf("readFrame: %v", err)
	}
	if f.typ != frameChunk {
		t.Errorf("expected chunk frame, got 0x%02x", f.typ)
	}
	if !bytes.Equal(f.payload, payload) {
		t.Errorf("payload mismatch: %q", f.payload)
	}
}

func TestReadFrame_oversizedPayloadRejected(t *testing.T) {
	var buf bytes.Buffer
	if err := writeFrame(&buf, frameChunk, make([]byte, 100)); err != nil {
		t.Fatalf("writeFrame: %v", err)
	}

	if _, err := readFrame(&buf, 50); !errors.Is(err, ErrProtocolViolation) {
		t.Errorf("expected ErrProtocolViolation, got %v", err)
	}
}

func TestParseHandshake(t *testing.T) {
	id, err := parseHandshake(frame{typ: frameHandshake, payload: handshakePayload("pub-1")})
	if err != nil {
		t.Fatalf("parseHandshake: %v", err)
	}
	if id != "pub-1" {
		t.Errorf("expected pub-1, got %q", id)
	}
}

func TestParseHandshake_rejected(t *testing.T) {
	cases := []frame{
		{typ: frameChunk, payload: handshakePayload("pub-1")},
		{typ: frameHandshake, payload: []byte("WRONG pub-1")},
		{typ: frameHandshake, payload: []byte(handshakeMagic)},
	}
	for _, f := range cases {
		if _, err := parseHandshake(f); !errors.Is(err, ErrProtocolViolation) {
			t.Errorf("frame %+v: expected ErrProtocolViolation, got %v", f, err)
		}
	}
}
