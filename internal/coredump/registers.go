package coredump

import "fmt"

// NumRegisters is the fixed register count in a snapshot.
const NumRegisters = 17

// Indices into a Registers snapshot. The order R0-R12, SP, LR, PC, xPSR is
// a wire contract with consuming debuggers, not an internal choice.
const (
	RegSP   = 13
	RegLR   = 14
	RegPC   = 15
	RegXPSR = 16
)

var registerNames = [NumRegisters]string{
	"r0", "r1", "r2", "r3", "r4", "r5", "r6", "r7",
	"r8", "r9", "r10", "r11", "r12",
	"sp", "lr", "pc", "xpsr",
}

// Registers is a snapshot of the 17 core CPU registers.
type Registers [NumRegisters]uint32

// RegisterName returns the conventional lowercase name for index i.
func RegisterName(i int) string {
	if i < 0 || i >= NumRegisters {
		return fmt.Sprintf("reg%d", i)
	}
	return registerNames[i]
}

// RegistersFromSlice validates and converts a transport register payload.
func RegistersFromSlice(vals []uint32) (Registers, error) {
	var r Registers
	if len(vals) != NumRegisters {
		return r, fmt.Errorf("expected %d registers, got %d", NumRegisters, len(vals))
	}
	copy(r[:], vals)
	return r, nil
}

// Region is one captured span of target memory.
type Region struct {
	// Name labels the region in raw-mode manifests. Empty names get a
	// positional default when written.
	Name string
	// Base is the region's virtual address on the target.
	Base uint32
	// Data is the captured memory contents.
	Data []byte
}
