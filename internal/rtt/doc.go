// Package rtt locates, validates, and drives a live RTT control block in
// target RAM through an opaque memory transport.
//
// # Discovery
//
// A control block is found by one of three strategies, in preference order:
// an exact-address probe (explicit address or one resolved from the
// firmware ELF's control block symbol), a ranged scan over caller-supplied
// memory ranges, and a full scan over the configured RAM map. Validation
// is an exact byte-for-byte compare of the null-padded ASCII signature.
//
// # Attachment
//
// Session.Attach wraps the strategies in a retry loop sized for targets
// that are still booting: a bounded attempt budget with a linearly growing,
// capped inter-attempt delay, the strategy ladder rotated each attempt.
// The loop is caller-driven and cooperative - each attempt issues bounded
// memory reads then sleeps - and honors context cancellation between
// attempts. Transport failures abort immediately; only "not found yet" is
// retried.
//
// # Channels
//
// Discovered up (target-to-host) and down (host-to-target) channels live
// in two parallel lists so their per-direction id spaces cannot collide.
// Reads drain whatever is available without blocking; writes push what
// fits and report the count.
//
// All session operations serialize on one mutex: the debug-port transport
// underneath is not safely shareable.
package rtt
