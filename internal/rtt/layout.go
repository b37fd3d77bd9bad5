package rtt

import "encoding/binary"

// RTT control block layout. This is the external SEGGER convention and is
// treated as versionless: a fixed-length ASCII signature, the two channel
// counts, then the up-descriptor array immediately followed by the
// down-descriptor array. All fields are 32-bit little-endian.
const (
	// SignatureSize is the length of the null-padded ASCII signature.
	SignatureSize = 16

	offMaxUpChannels   = 16
	offMaxDownChannels = 20
	offChannelArrays   = 24

	// ChannelDescSize is the size of one channel descriptor in target RAM.
	ChannelDescSize = 24

	descOffName      = 0
	descOffBuffer    = 4
	descOffSize      = 8
	descOffWriteOff  = 12
	descOffReadOff   = 16
	descOffFlags     = 20

	// maxChannelCount rejects control block candidates whose channel
	// counts are garbage (signature matched against stale RAM from a
	// previous boot, counts not yet initialized).
	maxChannelCount = 64

	// maxChannelNameLen bounds the NUL-terminated name read through the
	// transport.
	maxChannelNameLen = 64
)

const signatureText = "SEGGER RTT"

// Signature returns the exact byte pattern a genuine control block starts
// with: the ASCII signature null-padded to SignatureSize. Validation is a
// byte-for-byte compare against this, never a fuzzy match, so partially
// initialized memory cannot produce false positives.
func Signature() []byte {
	sig := make([]byte, SignatureSize)
	copy(sig, signatureText)
	return sig
}

// channelDesc is a raw channel descriptor as read from target RAM.
type channelDesc struct {
	NamePtr   uint32
	BufferPtr uint32
	Size      uint32
	WriteOff  uint32
	ReadOff   uint32
	Flags     uint32
}

// parseChannelDesc decodes one descriptor from a ChannelDescSize-byte slab.
func parseChannelDesc(raw []byte) channelDesc {
	return channelDesc{
		NamePtr:   binary.LittleEndian.Uint32(raw[descOffName:]),
		BufferPtr: binary.LittleEndian.Uint32(raw[descOffBuffer:]),
		Size:      binary.LittleEndian.Uint32(raw[descOffSize:]),
		WriteOff:  binary.LittleEndian.Uint32(raw[descOffWriteOff:]),
		ReadOff:   binary.LittleEndian.Uint32(raw[descOffReadOff:]),
		Flags:     binary.LittleEndian.Uint32(raw[descOffFlags:]),
	}
}
