package transport

import (
	"encoding/binary"
	"fmt"
)

// Bridge frame constants. Every websocket binary message between rttap and
// a probe bridge carries exactly one frame.
const (
	FrameSync    = 0xA5
	FrameVersion = 0x01
	// FrameHeaderSize is sync + version + 4-byte ID + 2-byte length
	FrameHeaderSize = 8
	// MaxPayloadSize bounds a single frame payload (16-bit length field)
	MaxPayloadSize = 0xFFFF
)

// Operation codes (first payload byte of a request; echoed in the response).
const (
	OpReadMem   = 0x01
	OpWriteMem  = 0x02
	OpHalt      = 0x03
	OpRun       = 0x04
	OpReset     = 0x05
	OpReadRegs  = 0x06
)

// Response status codes (second payload byte of a response).
const (
	StatusOK      = 0x00
	StatusError   = 0x01 // remainder of payload is a UTF-8 message
	StatusTimeout = 0x02
)

// Frame represents a parsed bridge frame.
type Frame struct {
	Sync      byte   // Should be FrameSync
	Version   byte   // Should be FrameVersion
	MessageID uint32 // 4-byte message counter (little-endian)
	Length    uint16 // 2-byte payload length (little-endian)
	Payload   []byte // Operation byte plus arguments / results
}

// EncodeFrame serializes a frame with the given message ID and payload.
func EncodeFrame(messageID uint32, payload []byte) ([]byte, error) {
	if len(payload) > MaxPayloadSize {
		return nil, &ProtocolError{Reason: fmt.Sprintf("payload too large (%d bytes)", len(payload))}
	}
	buf := make([]byte, FrameHeaderSize+len(payload))
	buf[0] = FrameSync
	buf[1] = FrameVersion
	binary.LittleEndian.PutUint32(buf[2:6], messageID)
	binary.LittleEndian.PutUint16(buf[6:8], uint16(len(payload)))
	copy(buf[FrameHeaderSize:], payload)
	return buf, nil
}

// ParseFrame parses a complete bridge frame from a websocket message.
func ParseFrame(raw []byte) (*Frame, error) {
	if len(raw) < FrameHeaderSize {
		return nil, &ProtocolError{Reason: "frame too small", Frame: raw}
	}
	f := &Frame{
		Sync:      raw[0],
		Version:   raw[1],
		MessageID: binary.LittleEndian.Uint32(raw[2:6]),
		Length:    binary.LittleEndian.Uint16(raw[6:8]),
	}
	if f.Sync != FrameSync {
		return nil, &ProtocolError{Reason: fmt.Sprintf("bad sync byte 0x%02x", f.Sync), Frame: raw}
	}
	if f.Version != FrameVersion {
		return nil, &ProtocolError{Reason: fmt.Sprintf("unsupported version 0x%02x", f.Version), Frame: raw}
	}
	if int(f.Length) != len(raw)-FrameHeaderSize {
		return nil, &ProtocolError{
			Reason: fmt.Sprintf("length field %d does not match payload %d", f.Length, len(raw)-FrameHeaderSize),
			Frame:  raw,
		}
	}
	f.Payload = raw[FrameHeaderSize:]
	return f, nil
}

// String returns a debug representation of the frame
func (f *Frame) String() string {
	op := "empty"
	if len(f.Payload) > 0 {
		op = OpString(f.Payload[0])
	}
	return fmt.Sprintf("Frame{ID=%d, Op=%s, Length=%d}", f.MessageID, op, f.Length)
}

// OpString returns a human-readable operation name
func OpString(op byte) string {
	switch op {
	case OpReadMem:
		return "read-mem"
	case OpWriteMem:
		return "write-mem"
	case OpHalt:
		return "halt"
	case OpRun:
		return "run"
	case OpReset:
		return "reset"
	case OpReadRegs:
		return "read-regs"
	default:
		return fmt.Sprintf("unknown(0x%02x)", op)
	}
}

// buildReadRequest encodes a memory read request payload.
func buildReadRequest(addr uint32, n int) []byte {
	p := make([]byte, 9)
	p[0] = OpReadMem
	binary.LittleEndian.PutUint32(p[1:5], addr)
	binary.LittleEndian.PutUint32(p[5:9], uint32(n))
	return p
}

// buildWriteRequest encodes a memory write request payload.
func buildWriteRequest(addr uint32, data []byte) []byte {
	p := make([]byte, 5+len(data))
	p[0] = OpWriteMem
	binary.LittleEndian.PutUint32(p[1:5], addr)
	copy(p[5:], data)
	return p
}
