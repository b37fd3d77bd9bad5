package rtt

import (
	"encoding/binary"

	"github.com/muurk/rttap/internal/transport"
)

// Direction distinguishes the two channel id spaces. Up is target-to-host
// (logging), Down is host-to-target (commands).
type Direction int

const (
	Up Direction = iota
	Down
)

func (d Direction) String() string {
	switch d {
	case Up:
		return "up"
	case Down:
		return "down"
	default:
		return "invalid"
	}
}

// Channel is one discovered RTT channel. IDs are slot indices scoped per
// direction: up 0 and down 0 are distinct channels. A slot the firmware
// left unconfigured has BufferSize 0 and transfers nothing.
type Channel struct {
	ID         int
	Direction  Direction
	Name       string
	BufferAddr uint32
	BufferSize uint32

	// descAddr is where this channel's descriptor lives in target RAM;
	// the ring offsets are re-read from it on every transfer.
	descAddr uint32
}

// ringOffsets fetches the live write/read offsets for a channel.
func ringOffsets(mem transport.Memory, descAddr uint32) (wr, rd uint32, err error) {
	raw, err := mem.ReadMemory(descAddr+descOffWriteOff, 8)
	if err != nil {
		return 0, 0, err
	}
	return binary.LittleEndian.Uint32(raw[0:4]), binary.LittleEndian.Uint32(raw[4:8]), nil
}

func writeU32(mem transport.Memory, addr, v uint32) error {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	return mem.WriteMemory(addr, buf[:])
}

// readUp drains up to max bytes from an up channel's ring buffer. Returns
// however many bytes were available; zero is valid and means the target has
// written nothing new. Never blocks waiting for data.
func readUp(mem transport.Memory, ch *Channel, max int) ([]byte, error) {
	if ch.BufferSize == 0 || max <= 0 {
		return nil, nil
	}

	wr, rd, err := ringOffsets(mem, ch.descAddr)
	if err != nil {
		return nil, err
	}
	// Offsets past the buffer mean the block is mid-initialization;
	// nothing there is trustworthy yet.
	if wr >= ch.BufferSize || rd >= ch.BufferSize {
		return nil, nil
	}

	avail := (wr + ch.BufferSize - rd) % ch.BufferSize
	n := avail
	if uint32(max) < n {
		n = uint32(max)
	}
	if n == 0 {
		return nil, nil
	}

	out := make([]byte, 0, n)
	remaining := n
	for remaining > 0 {
		contiguous := ch.BufferSize - rd
		if contiguous > remaining {
			contiguous = remaining
		}
		piece, err := mem.ReadMemory(ch.BufferAddr+rd, int(contiguous))
		if err != nil {
			return nil, err
		}
		out = append(out, piece...)
		rd = (rd + contiguous) % ch.BufferSize
		remaining -= contiguous
	}

	// Hand the space back to the target only after the data is safely out.
	if err := writeU32(mem, ch.descAddr+descOffReadOff, rd); err != nil {
		return nil, err
	}
	return out, nil
}

// writeDown pushes as many bytes as currently fit into a down channel's
// ring buffer and returns the count written. The ring keeps one byte free
// to distinguish full from empty. Never retries; the caller decides what
// to do with a short write.
func writeDown(mem transport.Memory, ch *Channel, data []byte) (int, error) {
	if ch.BufferSize == 0 || len(data) == 0 {
		return 0, nil
	}

	wr, rd, err := ringOffsets(mem, ch.descAddr)
	if err != nil {
		return 0, err
	}
	if wr >= ch.BufferSize || rd >= ch.BufferSize {
		return 0, nil
	}

	space := (rd + ch.BufferSize - wr - 1) % ch.BufferSize
	n := uint32(len(data))
	if space < n {
		n = space
	}
	if n == 0 {
		return 0, nil
	}

	written := uint32(0)
	for written < n {
		contiguous := ch.BufferSize - wr
		if contiguous > n-written {
			contiguous = n - written
		}
		if err := mem.WriteMemory(ch.BufferAddr+wr, data[written:written+contiguous]); err != nil {
			return int(written), err
		}
		wr = (wr + contiguous) % ch.BufferSize
		written += contiguous
	}

	// Publish the new write offset only after the payload landed.
	if err := writeU32(mem, ch.descAddr+descOffWriteOff, wr); err != nil {
		return int(written), err
	}
	return int(written), nil
}

// readChannelName reads a bounded NUL-terminated name through the
// transport. A null pointer or unreadable name degrades to "" rather than
// failing discovery; names are cosmetic.
func readChannelName(mem transport.Memory, namePtr uint32) string {
	if namePtr == 0 {
		return ""
	}
	raw, err := mem.ReadMemory(namePtr, maxChannelNameLen)
	if err != nil {
		return ""
	}
	for i, b := range raw {
		if b == 0 {
			return string(raw[:i])
		}
	}
	return string(raw)
}
