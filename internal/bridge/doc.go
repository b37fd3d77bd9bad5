// Package bridge implements the server side of the probe bridge protocol
// plus an in-memory simulated target.
//
// A real deployment puts a hardware probe driver behind this server; the
// bundled SimTarget stands in for one during development and tests. It
// keeps a RAM image with a fully initialized RTT control block (one up and
// one down channel) and exposes firmware-side helpers (EmitUp, DrainDown)
// so the host-side ring arithmetic can be exercised end to end.
//
// The server speaks the frame protocol defined in the transport package:
// one request frame per websocket binary message, one response with the
// same message ID.
package bridge
