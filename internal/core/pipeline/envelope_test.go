package pipeline

import (
	"bytes"
	"testing"
	"time"
)

func TestEnvelopeRoundTrip(t *testing.T) {
	in := FrameEnvelope{
		SourceID:   "camera1",
		CapturedAt: time.UnixMilli(1756700000123),
		Payload:    []byte{0xFF, 0xD8, 0x01, 0x02, 0xFF, 0xD9},
	}
	out, err := DecodeEnvelope(in.Encode())
	if err != nil {
		t.Fatal(err)
	}
	if out.SourceID != in.SourceID {
		t.Fatalf("source id %q != %q", out.SourceID, in.SourceID)
	}
	if !out.CapturedAt.Equal(in.CapturedAt) {
		t.Fatalf("captured at %v != %v", out.CapturedAt, in.CapturedAt)
	}
	if !bytes.Equal(out.Payload, in.Payload) {
		t.Fatalf("payload mismatch: %v", out.Payload)
	}
}

func TestDecodeEnvelopeRejectsCorrupt(t *testing.T) {
	cases := map[string][]byte{
		"empty":        nil,
		"too short":    {1, 0, 0},
		"bad version":  append([]byte{9}, make([]byte, 12)...),
		"truncated id": {1, 0, 0, 0, 0, 0, 0, 0, 0, 0, 200},
	}
	for name, b := range cases {
		if _, err := DecodeEnvelope(b); err == nil {
			t.Errorf("%s: expect error", name)
		}
	}
}
