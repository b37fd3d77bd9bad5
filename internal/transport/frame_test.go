package transport

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"
)

func TestEncodeFrame(t *testing.T) {
	payload := []byte{OpReadMem, 1, 2, 3}
	raw, err := EncodeFrame(0xDEAD0042, payload)
	if err != nil {
		t.Fatalf("EncodeFrame() error = %v", err)
	}

	if len(raw) != FrameHeaderSize+len(payload) {
		t.Fatalf("len = %d, want %d", len(raw), FrameHeaderSize+len(payload))
	}
	if raw[0] != FrameSync || raw[1] != FrameVersion {
		t.Errorf("header = % x", raw[:2])
	}
	if id := binary.LittleEndian.Uint32(raw[2:6]); id != 0xDEAD0042 {
		t.Errorf("message id = 0x%08x", id)
	}
	if l := binary.LittleEndian.Uint16(raw[6:8]); int(l) != len(payload) {
		t.Errorf("length field = %d, want %d", l, len(payload))
	}
	if !bytes.Equal(raw[FrameHeaderSize:], payload) {
		t.Errorf("payload = % x", raw[FrameHeaderSize:])
	}
}

func TestEncodeFrameOversizedPayload(t *testing.T) {
	_, err := EncodeFrame(1, make([]byte, MaxPayloadSize+1))
	var pe *ProtocolError
	if !errors.As(err, &pe) {
		t.Fatalf("error = %v, want *ProtocolError", err)
	}
}

func TestParseFrameRoundTrip(t *testing.T) {
	payload := []byte{OpWriteMem, 0xAA, 0xBB}
	raw, err := EncodeFrame(7, payload)
	if err != nil {
		t.Fatalf("EncodeFrame() error = %v", err)
	}

	f, err := ParseFrame(raw)
	if err != nil {
		t.Fatalf("ParseFrame() error = %v", err)
	}
	if f.MessageID != 7 {
		t.Errorf("MessageID = %d, want 7", f.MessageID)
	}
	if !bytes.Equal(f.Payload, payload) {
		t.Errorf("Payload = % x, want % x", f.Payload, payload)
	}
}

func TestParseFrameRejectsMalformed(t *testing.T) {
	valid, _ := EncodeFrame(1, []byte{OpHalt})

	corrupt := func(mutate func([]byte)) []byte {
		raw := make([]byte, len(valid))
		copy(raw, valid)
		mutate(raw)
		return raw
	}

	tests := []struct {
		name string
		raw  []byte
	}{
		{"empty", nil},
		{"truncated header", valid[:FrameHeaderSize-1]},
		{"bad sync", corrupt(func(b []byte) { b[0] = 0x5A })},
		{"bad version", corrupt(func(b []byte) { b[1] = 0x02 })},
		{"length overstates payload", corrupt(func(b []byte) { b[6] = 9 })},
		{"length understates payload", corrupt(func(b []byte) { b[6] = 0 })},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseFrame(tt.raw)
			var pe *ProtocolError
			if !errors.As(err, &pe) {
				t.Fatalf("error = %v, want *ProtocolError", err)
			}
		})
	}
}

func TestBuildRequests(t *testing.T) {
	read := buildReadRequest(0x20000400, 64)
	if read[0] != OpReadMem {
		t.Errorf("read op = 0x%02x", read[0])
	}
	if addr := binary.LittleEndian.Uint32(read[1:5]); addr != 0x20000400 {
		t.Errorf("read addr = 0x%08x", addr)
	}
	if n := binary.LittleEndian.Uint32(read[5:9]); n != 64 {
		t.Errorf("read len = %d", n)
	}

	write := buildWriteRequest(0x20000800, []byte{1, 2, 3})
	if write[0] != OpWriteMem {
		t.Errorf("write op = 0x%02x", write[0])
	}
	if addr := binary.LittleEndian.Uint32(write[1:5]); addr != 0x20000800 {
		t.Errorf("write addr = 0x%08x", addr)
	}
	if !bytes.Equal(write[5:], []byte{1, 2, 3}) {
		t.Errorf("write data = % x", write[5:])
	}
}

func TestOpString(t *testing.T) {
	tests := []struct {
		op   byte
		want string
	}{
		{OpReadMem, "read-mem"},
		{OpWriteMem, "write-mem"},
		{OpHalt, "halt"},
		{OpRun, "run"},
		{OpReset, "reset"},
		{OpReadRegs, "read-regs"},
		{0x7F, "unknown(0x7f)"},
	}
	for _, tt := range tests {
		if got := OpString(tt.op); got != tt.want {
			t.Errorf("OpString(0x%02x) = %q, want %q", tt.op, got, tt.want)
		}
	}
}
