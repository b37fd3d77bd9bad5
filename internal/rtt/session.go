package rtt

import (
	"context"
	"encoding/binary"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/rttap/internal/elfsym"
	"github.com/muurk/rttap/internal/logging"
	"github.com/muurk/rttap/internal/transport"
)

// State is the attachment state of a session.
type State int

const (
	Detached State = iota
	Attaching
	Attached
)

func (s State) String() string {
	switch s {
	case Detached:
		return "detached"
	case Attaching:
		return "attaching"
	case Attached:
		return "attached"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// DefaultControlBlockSymbol is the linker symbol firmware images give the
// RTT control block. Resolving it from the firmware ELF turns an attach
// into a single exact-address probe.
const DefaultControlBlockSymbol = "_SEGGER_RTT"

// DefaultRAMRanges is the full-scan universe when the caller has not
// configured the target's memory map: the standard Cortex-M SRAM window.
var DefaultRAMRanges = []ScanRange{{Start: 0x20000000, End: 0x20010000}}

// AttachConfig holds the strategy inputs and retry budget for one attach.
type AttachConfig struct {
	// ControlBlockAddr is an explicit address hint. Zero means none.
	ControlBlockAddr uint32

	// SymbolTable enables ELF-assisted attach: SymbolHint is looked up and
	// probed before any scanning. Nil disables the symbol strategy.
	SymbolTable *elfsym.Table

	// SymbolHint is the control block symbol name.
	// Default: DefaultControlBlockSymbol
	SymbolHint string

	// ScanRanges are caller-specified ranges for the ranged-scan strategy.
	ScanRanges []ScanRange

	// RAMRanges is the full-scan universe. Default: DefaultRAMRanges.
	RAMRanges []ScanRange

	// MaxAttempts bounds how many full strategy-ladder passes are made.
	// Right after reset/flash the firmware may not have initialized the
	// control block yet, so a single pass is rarely enough.
	MaxAttempts int

	// Inter-attempt delay grows by DelayStep from BaseDelay, capped at
	// MaxDelay, so slow boots are tolerated without busy-looping.
	BaseDelay time.Duration
	DelayStep time.Duration
	MaxDelay  time.Duration
}

// DefaultAttachConfig returns an AttachConfig with sensible defaults.
func DefaultAttachConfig() AttachConfig {
	return AttachConfig{
		SymbolHint:  DefaultControlBlockSymbol,
		RAMRanges:   DefaultRAMRanges,
		MaxAttempts: 10,
		BaseDelay:   50 * time.Millisecond,
		DelayStep:   100 * time.Millisecond,
		MaxDelay:    500 * time.Millisecond,
	}
}

// retryDelay is the pure backoff schedule: base + step*attempt, capped at
// max. attempt is zero-based and counts completed attempts.
func retryDelay(cfg AttachConfig, attempt int) time.Duration {
	d := cfg.BaseDelay + time.Duration(attempt)*cfg.DelayStep
	if d > cfg.MaxDelay {
		d = cfg.MaxDelay
	}
	if d < 0 {
		d = 0
	}
	return d
}

// Session owns one target connection's RTT state: the validated control
// block address and the discovered channel lists. The transport handle is
// exclusively owned while the session exists; every operation serializes
// on one mutex because the underlying debug-port transport is not safely
// shareable. Channel lists are rebuilt on every attach, never cached
// across sessions.
type Session struct {
	mem    transport.Memory
	logger *zap.Logger

	mu     sync.Mutex
	state  State
	cbAddr uint32
	up     []Channel
	down   []Channel

	// sleep is swapped out by tests so the backoff schedule can be
	// exercised without real time passing.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewSession creates a detached session over the given memory transport.
func NewSession(mem transport.Memory, logger *zap.Logger) *Session {
	return &Session{
		mem:    mem,
		logger: logger,
		state:  Detached,
		sleep:  sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// State returns the current attachment state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// ControlBlockAddr returns the validated control block address, or zero
// when detached.
func (s *Session) ControlBlockAddr() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cbAddr
}

// Channels returns a copy of the discovered channel list for one direction.
func (s *Session) Channels(dir Direction) []Channel {
	s.mu.Lock()
	defer s.mu.Unlock()
	var src []Channel
	if dir == Up {
		src = s.up
	} else {
		src = s.down
	}
	out := make([]Channel, len(src))
	copy(out, src)
	return out
}

// locateStrategy is one rung of the attach ladder.
type locateStrategy struct {
	name   string
	locate func() (uint32, bool, error)
}

// Attach runs the strategy ladder until a control block validates or the
// retry budget is exhausted. The ladder is rotated by attempt index so a
// poisoned address hint cannot permanently mask a later scan success.
// On exhaustion the session ends Detached with a *ControlBlockNotFoundError
// carrying the full diagnostic trail. Transport failures abort immediately
// and are never retried here.
func (s *Session) Attach(ctx context.Context, cfg AttachConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == Attached {
		return &StateError{Op: "attach", State: s.state}
	}
	s.state = Attaching

	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	if cfg.SymbolHint == "" {
		cfg.SymbolHint = DefaultControlBlockSymbol
	}
	if len(cfg.RAMRanges) == 0 {
		cfg.RAMRanges = DefaultRAMRanges
	}

	scanner := NewScanner(s.mem, s.logger)
	ladder := s.buildLadder(scanner, cfg)

	var (
		tried  []string
		probed []uint32
	)
	seenStrategy := make(map[string]bool)
	seenProbe := make(map[uint32]bool)

	for attempt := 0; attempt < cfg.MaxAttempts; attempt++ {
		if attempt > 0 {
			if err := s.sleep(ctx, retryDelay(cfg, attempt-1)); err != nil {
				s.state = Detached
				return err
			}
		}

		for j := range ladder {
			st := ladder[(attempt+j)%len(ladder)]
			if !seenStrategy[st.name] {
				seenStrategy[st.name] = true
				tried = append(tried, st.name)
			}

			addr, found, err := st.locate()
			if err != nil {
				// Transport-level failure: abort, do not retry.
				s.state = Detached
				return fmt.Errorf("attach aborted during %s: %w", st.name, err)
			}
			if !found {
				if addr != 0 && !seenProbe[addr] {
					seenProbe[addr] = true
					probed = append(probed, addr)
				}
				continue
			}

			up, down, err := s.discoverChannels(addr)
			if err != nil {
				if transport.IsMemoryAccess(err) || transport.IsTimeout(err) {
					s.state = Detached
					return fmt.Errorf("attach aborted reading channel table: %w", err)
				}
				// Signature matched but the channel table is garbage:
				// stale RAM from a previous boot. Keep scanning.
				s.logger.Warn("rejecting control block candidate",
					zap.String("addr", fmt.Sprintf("0x%08x", addr)),
					zap.Error(err),
				)
				if !seenProbe[addr] {
					seenProbe[addr] = true
					probed = append(probed, addr)
				}
				continue
			}

			s.cbAddr = addr
			s.up = up
			s.down = down
			s.state = Attached
			s.logger.Info("attached to RTT control block",
				zap.String("addr", fmt.Sprintf("0x%08x", addr)),
				zap.String("strategy", st.name),
				zap.Int("attempt", attempt+1),
				zap.Int("up_channels", len(up)),
				zap.Int("down_channels", len(down)),
			)
			return nil
		}
	}

	s.state = Detached
	return &ControlBlockNotFoundError{
		Strategies: tried,
		Probed:     probed,
		Attempts:   cfg.MaxAttempts,
	}
}

// buildLadder assembles the strategy ladder in preference order:
// exact-address probe (explicit or ELF-resolved), ranged scan, full scan.
func (s *Session) buildLadder(scanner *Scanner, cfg AttachConfig) []locateStrategy {
	var ladder []locateStrategy

	hint := cfg.ControlBlockAddr
	if hint == 0 && cfg.SymbolTable != nil {
		if sym, ok := cfg.SymbolTable.Lookup(cfg.SymbolHint); ok {
			hint = sym.Addr
			s.logger.Debug("resolved control block symbol",
				zap.String("symbol", cfg.SymbolHint),
				zap.String("addr", fmt.Sprintf("0x%08x", hint)),
			)
		}
	}
	if hint != 0 {
		hintAddr := hint
		ladder = append(ladder, locateStrategy{
			name: "address-hint",
			locate: func() (uint32, bool, error) {
				ok, err := scanner.Probe(hintAddr)
				return hintAddr, ok, err
			},
		})
	}

	if len(cfg.ScanRanges) > 0 {
		ranges := cfg.ScanRanges
		ladder = append(ladder, locateStrategy{
			name: "ranged-scan",
			locate: func() (uint32, bool, error) {
				return scanner.ScanRanges(ranges)
			},
		})
	}

	ranges := cfg.RAMRanges
	ladder = append(ladder, locateStrategy{
		name: "full-scan",
		locate: func() (uint32, bool, error) {
			return scanner.ScanRanges(ranges)
		},
	})

	return ladder
}

// discoverChannels reads the channel counts and descriptor arrays from a
// validated control block. Up and down stay in two separate slices so the
// two id spaces can never collide.
func (s *Session) discoverChannels(cbAddr uint32) (up, down []Channel, err error) {
	counts, err := s.mem.ReadMemory(cbAddr+offMaxUpChannels, 8)
	if err != nil {
		return nil, nil, err
	}
	numUp := binary.LittleEndian.Uint32(counts[0:4])
	numDown := binary.LittleEndian.Uint32(counts[4:8])

	if numUp > maxChannelCount || numDown > maxChannelCount {
		return nil, nil, fmt.Errorf("implausible channel counts %d up / %d down", numUp, numDown)
	}

	up, err = s.readChannelArray(cbAddr+offChannelArrays, int(numUp), Up)
	if err != nil {
		return nil, nil, err
	}
	downBase := cbAddr + offChannelArrays + numUp*ChannelDescSize
	down, err = s.readChannelArray(downBase, int(numDown), Down)
	if err != nil {
		return nil, nil, err
	}
	return up, down, nil
}

func (s *Session) readChannelArray(base uint32, count int, dir Direction) ([]Channel, error) {
	if count == 0 {
		return nil, nil
	}
	raw, err := s.mem.ReadMemory(base, count*ChannelDescSize)
	if err != nil {
		return nil, err
	}

	channels := make([]Channel, 0, count)
	for i := 0; i < count; i++ {
		desc := parseChannelDesc(raw[i*ChannelDescSize:])
		ch := Channel{
			ID:         i,
			Direction:  dir,
			Name:       readChannelName(s.mem, desc.NamePtr),
			BufferAddr: desc.BufferPtr,
			BufferSize: desc.Size,
			descAddr:   base + uint32(i)*ChannelDescSize,
		}
		channels = append(channels, ch)
	}
	return channels, nil
}

// Detach releases the channel state. Idempotent: detaching a detached
// session is a no-op. The memory transport itself belongs to the caller
// and stays open.
func (s *Session) Detach() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == Detached {
		return
	}
	s.logger.Info("detached from RTT control block",
		zap.String("addr", fmt.Sprintf("0x%08x", s.cbAddr)),
	)
	s.state = Detached
	s.cbAddr = 0
	s.up = nil
	s.down = nil
}

// ReadUp drains up to max bytes from the given up channel. Zero bytes is a
// valid result and means nothing was pending; the call never blocks.
func (s *Session) ReadUp(id, max int) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != Attached {
		return nil, &StateError{Op: "read channel", State: s.state}
	}
	if id < 0 || id >= len(s.up) {
		return nil, &ChannelNotFoundError{Direction: Up, ID: id, Count: len(s.up)}
	}

	data, err := readUp(s.mem, &s.up[id], max)
	if err != nil {
		return nil, err
	}
	if len(data) > 0 {
		logging.LogChannelIO("up", id, data)
	}
	return data, nil
}

// WriteDown pushes as many bytes as fit into the given down channel and
// returns the count written. Short writes are reported, never retried.
func (s *Session) WriteDown(id int, data []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != Attached {
		return 0, &StateError{Op: "write channel", State: s.state}
	}
	if id < 0 || id >= len(s.down) {
		return 0, &ChannelNotFoundError{Direction: Down, ID: id, Count: len(s.down)}
	}

	n, err := writeDown(s.mem, &s.down[id], data)
	if err != nil {
		return n, err
	}
	if n > 0 {
		logging.LogChannelIO("down", id, data[:n])
	}
	return n, nil
}
