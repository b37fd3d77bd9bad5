package transport

// Memory is the narrow memory-access capability consumed by the RTT core.
// Implementations make no guarantee about atomicity beyond a single call;
// callers that need exclusive access must serialize externally.
type Memory interface {
	// ReadMemory reads n bytes of target memory starting at addr.
	// A short read is an error; implementations return either the full
	// buffer or a *MemoryAccessError / *TimeoutError.
	ReadMemory(addr uint32, n int) ([]byte, error)

	// WriteMemory writes data to target memory starting at addr.
	WriteMemory(addr uint32, data []byte) error
}

// Target combines memory access with core run control. This is the full
// capability a debug-probe bridge exposes; the scanner and channel layers
// only require Memory.
type Target interface {
	Memory

	// Halt stops the target core.
	Halt() error
	// Run resumes the target core.
	Run() error
	// Reset resets the target core.
	Reset() error
}

// RegisterReader is implemented by transports that can snapshot CPU
// registers from a halted core. The slice is ordered R0-R12, SP, LR, PC,
// xPSR and always has 17 entries.
type RegisterReader interface {
	ReadRegisters() ([]uint32, error)
}
