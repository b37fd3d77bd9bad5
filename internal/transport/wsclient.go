package transport

import (
	"context"
	"encoding/binary"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/muurk/rttap/internal/logging"
)

// Config holds the configuration for a probe bridge connection.
type Config struct {
	// URL is the bridge websocket endpoint.
	// Default: "ws://localhost:9160/debug"
	URL string

	// Timeout bounds each single bridge round trip (one memory operation).
	// Attach-level retry budgets are layered on top of this by the caller.
	// Default: 5 seconds
	Timeout time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		URL:     "ws://localhost:9160/debug",
		Timeout: 5 * time.Second,
	}
}

// Client is a Target implementation backed by a websocket probe bridge.
// All operations are serialized through one connection; the zero value is
// not usable, construct with Dial.
type Client struct {
	config Config
	logger *zap.Logger

	mu     sync.Mutex
	conn   *websocket.Conn
	nextID uint32
}

// Dial connects to the probe bridge described by config.
func Dial(ctx context.Context, config Config, logger *zap.Logger) (*Client, error) {
	if config.URL == "" {
		config = DefaultConfig()
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultConfig().Timeout
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, config.URL, nil)
	if err != nil {
		return nil, &BridgeConnectionError{URL: config.URL, Err: err}
	}

	logger.Info("connected to probe bridge", zap.String("url", config.URL))

	return &Client{
		config: config,
		logger: logger,
		conn:   conn,
	}, nil
}

// Close shuts down the bridge connection. Safe to call more than once.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

// roundTrip sends one request frame and waits for the matching response.
// Responses are [op, status, body...]; op must echo the request.
func (c *Client) roundTrip(payload []byte) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return nil, &BridgeConnectionError{URL: c.config.URL, Err: fmt.Errorf("connection closed")}
	}

	c.nextID++
	id := c.nextID
	op := payload[0]

	frame, err := EncodeFrame(id, payload)
	if err != nil {
		return nil, err
	}

	deadline := time.Now().Add(c.config.Timeout)
	if err := c.conn.SetWriteDeadline(deadline); err != nil {
		return nil, fmt.Errorf("failed to set write deadline: %w", err)
	}
	if err := c.conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
		return nil, c.classify(op, err)
	}

	if err := c.conn.SetReadDeadline(deadline); err != nil {
		return nil, fmt.Errorf("failed to set read deadline: %w", err)
	}

	// Discard stale responses until the matching message ID arrives.
	for {
		msgType, raw, err := c.conn.ReadMessage()
		if err != nil {
			return nil, c.classify(op, err)
		}
		if msgType != websocket.BinaryMessage {
			continue
		}

		resp, err := ParseFrame(raw)
		if err != nil {
			return nil, err
		}
		if resp.MessageID != id {
			c.logger.Debug("discarding stale bridge frame",
				zap.Uint32("got_id", resp.MessageID),
				zap.Uint32("want_id", id),
			)
			continue
		}
		if len(resp.Payload) < 2 {
			return nil, &ProtocolError{Reason: "response payload too short", Frame: raw}
		}
		if resp.Payload[0] != op {
			return nil, &ProtocolError{
				Reason: fmt.Sprintf("response op %s does not match request %s",
					OpString(resp.Payload[0]), OpString(op)),
				Frame: raw,
			}
		}

		switch resp.Payload[1] {
		case StatusOK:
			return resp.Payload[2:], nil
		case StatusTimeout:
			return nil, &TimeoutError{Op: OpString(op), Timeout: c.config.Timeout.String()}
		case StatusError:
			return nil, fmt.Errorf("bridge reported failure for %s: %s",
				OpString(op), string(resp.Payload[2:]))
		default:
			return nil, &ProtocolError{
				Reason: fmt.Sprintf("unknown status 0x%02x", resp.Payload[1]),
				Frame:  raw,
			}
		}
	}
}

// classify maps socket errors to the transport taxonomy.
func (c *Client) classify(op byte, err error) error {
	if ne, ok := err.(net.Error); ok && ne.Timeout() {
		return &TimeoutError{Op: OpString(op), Timeout: c.config.Timeout.String()}
	}
	return err
}

// ReadMemory implements Memory.
func (c *Client) ReadMemory(addr uint32, n int) ([]byte, error) {
	body, err := c.roundTrip(buildReadRequest(addr, n))
	if err != nil {
		if IsTimeout(err) {
			return nil, err
		}
		return nil, &MemoryAccessError{Op: "read", Addr: addr, Len: n, Err: err}
	}
	if len(body) != n {
		return nil, &MemoryAccessError{
			Op:   "read",
			Addr: addr,
			Len:  n,
			Err:  fmt.Errorf("short read: got %d bytes", len(body)),
		}
	}
	logging.LogMemoryRead(addr, body)
	return body, nil
}

// WriteMemory implements Memory.
func (c *Client) WriteMemory(addr uint32, data []byte) error {
	if _, err := c.roundTrip(buildWriteRequest(addr, data)); err != nil {
		if IsTimeout(err) {
			return err
		}
		return &MemoryAccessError{Op: "write", Addr: addr, Len: len(data), Err: err}
	}
	logging.LogMemoryWrite(addr, data)
	return nil
}

// Halt implements Target.
func (c *Client) Halt() error {
	_, err := c.roundTrip([]byte{OpHalt})
	return err
}

// Run implements Target.
func (c *Client) Run() error {
	_, err := c.roundTrip([]byte{OpRun})
	return err
}

// Reset implements Target.
func (c *Client) Reset() error {
	_, err := c.roundTrip([]byte{OpReset})
	return err
}

// ReadRegisters implements RegisterReader. The bridge returns the 17 core
// registers in R0-R12, SP, LR, PC, xPSR order.
func (c *Client) ReadRegisters() ([]uint32, error) {
	body, err := c.roundTrip([]byte{OpReadRegs})
	if err != nil {
		return nil, err
	}
	if len(body)%4 != 0 || len(body) == 0 {
		return nil, &ProtocolError{Reason: fmt.Sprintf("register payload of %d bytes", len(body))}
	}
	regs := make([]uint32, len(body)/4)
	for i := range regs {
		regs[i] = binary.LittleEndian.Uint32(body[i*4 : i*4+4])
	}
	return regs, nil
}
