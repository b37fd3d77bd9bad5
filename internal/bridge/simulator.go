package bridge

import (
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/muurk/rttap/internal/rtt"
	"github.com/muurk/rttap/internal/transport"
)

// SimConfig describes the simulated target's memory map and RTT layout.
type SimConfig struct {
	// RAMBase and RAMSize define the only readable/writable window.
	// Defaults: 0x20000000, 64 KiB.
	RAMBase uint32
	RAMSize uint32

	// ControlBlockOffset is where in RAM the control block is placed.
	// Default: 0x0a00.
	ControlBlockOffset uint32

	// Ring buffer sizes for the single up and single down channel.
	// Defaults: 1024 and 256.
	UpBufferSize   uint32
	DownBufferSize uint32
}

// DefaultSimConfig returns a SimConfig with sensible defaults.
func DefaultSimConfig() SimConfig {
	return SimConfig{
		RAMBase:            0x20000000,
		RAMSize:            64 * 1024,
		ControlBlockOffset: 0x0a00,
		UpBufferSize:       1024,
		DownBufferSize:     256,
	}
}

// SimTarget is an in-memory target with a live RTT control block, used by
// the bundled bridge daemon and the transport tests. It implements
// transport.Target and transport.RegisterReader. All methods are safe for
// concurrent use.
type SimTarget struct {
	cfg SimConfig

	mu     sync.Mutex
	ram    []byte
	halted bool

	cbAddr   uint32
	upDesc   uint32 // descriptor addresses inside RAM
	downDesc uint32
}

// NewSimTarget builds the RAM image and initializes the control block the
// way target-side RTT startup code would.
func NewSimTarget(cfg SimConfig) *SimTarget {
	if cfg.RAMSize == 0 {
		cfg = DefaultSimConfig()
	}
	t := &SimTarget{cfg: cfg}
	t.initRAM()
	return t
}

// initRAM lays out, from the control block offset upward: the control
// block (signature, counts, one up + one down descriptor), the channel
// name string, then the two ring buffers.
func (t *SimTarget) initRAM() {
	t.ram = make([]byte, t.cfg.RAMSize)
	le := binary.LittleEndian

	cb := t.cfg.ControlBlockOffset
	t.cbAddr = t.cfg.RAMBase + cb

	copy(t.ram[cb:], rtt.Signature())
	le.PutUint32(t.ram[cb+16:], 1) // up channel count
	le.PutUint32(t.ram[cb+20:], 1) // down channel count

	t.upDesc = cb + 24
	t.downDesc = cb + 24 + rtt.ChannelDescSize

	nameOff := cb + 24 + 2*rtt.ChannelDescSize
	copy(t.ram[nameOff:], "Terminal\x00")

	upBuf := nameOff + 16
	downBuf := upBuf + t.cfg.UpBufferSize

	t.writeDesc(t.upDesc, t.cfg.RAMBase+nameOff, t.cfg.RAMBase+upBuf, t.cfg.UpBufferSize)
	t.writeDesc(t.downDesc, t.cfg.RAMBase+nameOff, t.cfg.RAMBase+downBuf, t.cfg.DownBufferSize)
}

func (t *SimTarget) writeDesc(off, namePtr, bufPtr, size uint32) {
	le := binary.LittleEndian
	le.PutUint32(t.ram[off+0:], namePtr)
	le.PutUint32(t.ram[off+4:], bufPtr)
	le.PutUint32(t.ram[off+8:], size)
	le.PutUint32(t.ram[off+12:], 0) // write offset
	le.PutUint32(t.ram[off+16:], 0) // read offset
	le.PutUint32(t.ram[off+20:], 0) // flags
}

// ControlBlockAddr returns where the simulated control block lives.
func (t *SimTarget) ControlBlockAddr() uint32 {
	return t.cbAddr
}

func (t *SimTarget) checkRange(addr uint32, n int) error {
	end := uint64(addr) + uint64(n)
	if addr < t.cfg.RAMBase || end > uint64(t.cfg.RAMBase)+uint64(t.cfg.RAMSize) {
		return fmt.Errorf("access outside RAM: 0x%08x+%d", addr, n)
	}
	return nil
}

// ReadMemory implements transport.Memory.
func (t *SimTarget) ReadMemory(addr uint32, n int) ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.checkRange(addr, n); err != nil {
		return nil, err
	}
	off := addr - t.cfg.RAMBase
	out := make([]byte, n)
	copy(out, t.ram[off:])
	return out, nil
}

// WriteMemory implements transport.Memory.
func (t *SimTarget) WriteMemory(addr uint32, data []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.checkRange(addr, len(data)); err != nil {
		return err
	}
	copy(t.ram[addr-t.cfg.RAMBase:], data)
	return nil
}

// Halt implements transport.Target.
func (t *SimTarget) Halt() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.halted = true
	return nil
}

// Run implements transport.Target.
func (t *SimTarget) Run() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.halted = false
	return nil
}

// Reset implements transport.Target: the RAM image is rebuilt, which also
// re-initializes the control block as a fresh boot would.
func (t *SimTarget) Reset() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.initRAM()
	t.halted = false
	return nil
}

// ReadRegisters implements transport.RegisterReader with a plausible
// snapshot: SP in RAM, PC and LR in flash-looking space.
func (t *SimTarget) ReadRegisters() ([]uint32, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	regs := make([]uint32, 17)
	for i := 0; i < 13; i++ {
		regs[i] = uint32(i)
	}
	regs[13] = t.cfg.RAMBase + t.cfg.RAMSize - 0x100 // sp
	regs[14] = 0x08000101                            // lr (Thumb bit set)
	regs[15] = 0x080001f0                            // pc
	regs[16] = 0x61000000                            // xpsr
	return regs, nil
}

// EmitUp plays the firmware side of the up channel: it copies as much of
// data as fits into the up ring and advances the write offset. Returns the
// number of bytes placed.
func (t *SimTarget) EmitUp(data []byte) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.producerWrite(t.upDesc, data)
}

// DrainDown plays the firmware side of the down channel: it consumes up to
// max pending bytes written by the host.
func (t *SimTarget) DrainDown(max int) []byte {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.consumerRead(t.downDesc, max)
}

func (t *SimTarget) producerWrite(desc uint32, data []byte) int {
	le := binary.LittleEndian
	bufPtr := le.Uint32(t.ram[desc+4:]) - t.cfg.RAMBase
	size := le.Uint32(t.ram[desc+8:])
	wr := le.Uint32(t.ram[desc+12:])
	rd := le.Uint32(t.ram[desc+16:])

	space := (rd + size - wr - 1) % size
	n := uint32(len(data))
	if space < n {
		n = space
	}
	for i := uint32(0); i < n; i++ {
		t.ram[bufPtr+(wr+i)%size] = data[i]
	}
	le.PutUint32(t.ram[desc+12:], (wr+n)%size)
	return int(n)
}

func (t *SimTarget) consumerRead(desc uint32, max int) []byte {
	le := binary.LittleEndian
	bufPtr := le.Uint32(t.ram[desc+4:]) - t.cfg.RAMBase
	size := le.Uint32(t.ram[desc+8:])
	wr := le.Uint32(t.ram[desc+12:])
	rd := le.Uint32(t.ram[desc+16:])

	avail := (wr + size - rd) % size
	n := avail
	if uint32(max) < n {
		n = uint32(max)
	}
	out := make([]byte, n)
	for i := uint32(0); i < n; i++ {
		out[i] = t.ram[bufPtr+(rd+i)%size]
	}
	le.PutUint32(t.ram[desc+16:], (rd+n)%size)
	return out
}

var _ transport.Target = (*SimTarget)(nil)
var _ transport.RegisterReader = (*SimTarget)(nil)
