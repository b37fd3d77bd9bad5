package transport

import (
	"errors"
	"fmt"
)

// MemoryAccessError represents a failed target memory read or write.
// This is a transport-level failure (bad address, core unpowered, probe
// dropped) and is never retried below the attach orchestrator.
type MemoryAccessError struct {
	// Op is "read" or "write"
	Op string
	// Addr is the target address of the failed access
	Addr uint32
	// Len is the requested length in bytes
	Len int
	// Underlying error if any
	Err error
}

func (e *MemoryAccessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("memory %s of %d bytes at 0x%08x failed: %v", e.Op, e.Len, e.Addr, e.Err)
	}
	return fmt.Sprintf("memory %s of %d bytes at 0x%08x failed", e.Op, e.Len, e.Addr)
}

func (e *MemoryAccessError) Unwrap() error {
	return e.Err
}

// TimeoutError represents a bridge operation that did not complete in time.
// Distinct from MemoryAccessError: a timeout usually means "not ready yet"
// rather than "broken".
type TimeoutError struct {
	// Op is the operation that timed out
	Op string
	// Timeout is the duration that was exceeded
	Timeout string
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("bridge operation %q timed out after %s\n"+
		"Hint: the target may be held in reset or the probe bridge is stalled",
		e.Op, e.Timeout)
}

// BridgeConnectionError represents a failure to reach the probe bridge.
// This typically means rttap-bridged (or a compatible bridge) is not running
// or the URL is wrong.
type BridgeConnectionError struct {
	// URL is the bridge websocket URL that failed to connect
	URL string
	// Underlying error
	Err error
}

func (e *BridgeConnectionError) Error() string {
	return fmt.Sprintf("failed to connect to probe bridge at %s: %v\n"+
		"Hint: Ensure the bridge daemon is running and the device is connected.\n"+
		"Start a simulated bridge with: rttap-bridged --listen :9160",
		e.URL, e.Err)
}

func (e *BridgeConnectionError) Unwrap() error {
	return e.Err
}

// ProtocolError represents a malformed or unexpected bridge frame.
type ProtocolError struct {
	// Reason describes what was wrong with the frame
	Reason string
	// Frame holds the offending bytes (may be truncated)
	Frame []byte
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("bridge protocol error: %s (frame length %d)", e.Reason, len(e.Frame))
}

// IsMemoryAccess reports whether err is a transport memory access failure.
func IsMemoryAccess(err error) bool {
	var mae *MemoryAccessError
	return errors.As(err, &mae)
}

// IsTimeout reports whether err is a bridge timeout.
func IsTimeout(err error) bool {
	var te *TimeoutError
	return errors.As(err, &te)
}
