// Package transport defines the target memory transport consumed by the
// RTT core and provides a websocket client for debug-probe bridges.
//
// The core never talks to USB/SWD hardware directly. A probe bridge daemon
// (OpenOCD-style, or the bundled rttap-bridged simulator) owns the wire and
// exposes memory reads/writes, run control, and register snapshots over a
// small binary frame protocol carried in websocket binary messages:
//
//	byte 0    sync (0xA5)
//	byte 1    version (0x01)
//	bytes 2-5 message ID (little-endian)
//	bytes 6-7 payload length (little-endian)
//	bytes 8+  payload: op byte, then arguments (request)
//	          or op byte, status byte, then results (response)
//
// Each request gets exactly one response with the same message ID. One
// websocket message carries one frame; there is no streaming or pipelining,
// which keeps the bridge trivially implementable in firmware-adjacent
// tooling.
//
// Error taxonomy: *MemoryAccessError for failed reads/writes (never retried
// at this layer), *TimeoutError for "not ready yet", *BridgeConnectionError
// for an unreachable bridge, *ProtocolError for malformed frames.
package transport
