package rtt

import (
	"encoding/binary"
	"testing"

	"github.com/muurk/rttap/internal/transport"
)

// fakeRAM is an in-memory transport.Memory backed by one contiguous RAM
// window. Accesses outside the window fail the way a real probe bridge
// reports a bad address.
type fakeRAM struct {
	base   uint32
	data   []byte
	reads  int
	writes int
}

func newFakeRAM(base uint32, size int) *fakeRAM {
	return &fakeRAM{base: base, data: make([]byte, size)}
}

func (m *fakeRAM) contains(addr uint32, n int) bool {
	if n < 0 || addr < m.base {
		return false
	}
	return uint64(addr)+uint64(n) <= uint64(m.base)+uint64(len(m.data))
}

func (m *fakeRAM) ReadMemory(addr uint32, n int) ([]byte, error) {
	m.reads++
	if !m.contains(addr, n) {
		return nil, &transport.MemoryAccessError{Op: "read", Addr: addr, Len: n}
	}
	out := make([]byte, n)
	copy(out, m.data[addr-m.base:])
	return out, nil
}

func (m *fakeRAM) WriteMemory(addr uint32, data []byte) error {
	m.writes++
	if !m.contains(addr, len(data)) {
		return &transport.MemoryAccessError{Op: "write", Addr: addr, Len: len(data)}
	}
	copy(m.data[addr-m.base:], data)
	return nil
}

func (m *fakeRAM) put32(addr, v uint32) {
	binary.LittleEndian.PutUint32(m.data[addr-m.base:], v)
}

func (m *fakeRAM) get32(addr uint32) uint32 {
	return binary.LittleEndian.Uint32(m.data[addr-m.base:])
}

func (m *fakeRAM) copyIn(addr uint32, b []byte) {
	copy(m.data[addr-m.base:], b)
}

// testLayout describes where installControlBlock placed everything.
type testLayout struct {
	cbAddr    uint32
	up0Desc   uint32
	up0Buf    uint32
	up0Size   uint32
	down0Desc uint32
	down0Buf  uint32
	down0Size uint32
}

// installControlBlock writes a valid control block into the fake RAM:
// two up channels (terminal + one unconfigured slot) and one down channel.
// The down channel name pointer is deliberately unreadable to exercise the
// cosmetic-name degradation path.
func installControlBlock(m *fakeRAM, offset uint32) testLayout {
	l := testLayout{
		cbAddr:    m.base + offset,
		up0Size:   64,
		down0Size: 16,
	}
	l.up0Desc = l.cbAddr + offChannelArrays
	l.down0Desc = l.cbAddr + offChannelArrays + 2*ChannelDescSize
	l.up0Buf = m.base + 0x1000
	l.down0Buf = m.base + 0x1100
	nameAddr := m.base + 0x1200

	m.copyIn(l.cbAddr, Signature())
	m.put32(l.cbAddr+offMaxUpChannels, 2)
	m.put32(l.cbAddr+offMaxDownChannels, 1)

	m.put32(l.up0Desc+descOffName, nameAddr)
	m.put32(l.up0Desc+descOffBuffer, l.up0Buf)
	m.put32(l.up0Desc+descOffSize, l.up0Size)

	// up slot 1 left all-zero: unconfigured

	m.put32(l.down0Desc+descOffName, 0x0fff0000) // unreadable
	m.put32(l.down0Desc+descOffBuffer, l.down0Buf)
	m.put32(l.down0Desc+descOffSize, l.down0Size)

	m.copyIn(nameAddr, []byte("Terminal\x00"))
	return l
}

const testRAMBase = 0x20000000

func newTestTarget(t *testing.T) (*fakeRAM, testLayout) {
	t.Helper()
	m := newFakeRAM(testRAMBase, 0x2000)
	return m, installControlBlock(m, 0x100)
}

func testScanRanges(m *fakeRAM) []ScanRange {
	return []ScanRange{{Start: m.base, End: m.base + uint32(len(m.data))}}
}
