package rtt

import (
	"bytes"
	"fmt"

	"go.uber.org/zap"

	"github.com/muurk/rttap/internal/transport"
)

// DefaultScanChunkSize is how much target RAM a single scan read covers.
// Larger chunks mean fewer round trips through the probe bridge; each read
// is still one bounded transport operation.
const DefaultScanChunkSize = 1024

// ScanRange is a half-open [Start, End) byte range of target RAM.
type ScanRange struct {
	Start uint32 `yaml:"start"`
	End   uint32 `yaml:"end"`
}

func (r ScanRange) String() string {
	return fmt.Sprintf("0x%08x-0x%08x", r.Start, r.End)
}

// Scanner locates the RTT control block in live target memory. It issues
// bounded reads through the transport and never retries on its own; retry
// policy belongs to the attach orchestrator.
type Scanner struct {
	mem       transport.Memory
	logger    *zap.Logger
	chunkSize int
}

// NewScanner creates a scanner over the given memory transport.
func NewScanner(mem transport.Memory, logger *zap.Logger) *Scanner {
	return &Scanner{
		mem:       mem,
		logger:    logger,
		chunkSize: DefaultScanChunkSize,
	}
}

// Probe reads a signature-sized prefix at addr and reports whether it is a
// genuine control block. A failed read is a transport error, not a failed
// validation.
func (s *Scanner) Probe(addr uint32) (bool, error) {
	prefix, err := s.mem.ReadMemory(addr, SignatureSize)
	if err != nil {
		return false, err
	}

	ok := bytes.Equal(prefix, Signature())
	s.logger.Debug("control block probe",
		zap.String("addr", fmt.Sprintf("0x%08x", addr)),
		zap.Bool("valid", ok),
	)
	return ok, nil
}

// ScanRanges sweeps the given ranges in order and returns the address of
// the first valid control block. The second return is false when no range
// contained one.
func (s *Scanner) ScanRanges(ranges []ScanRange) (uint32, bool, error) {
	for _, r := range ranges {
		addr, found, err := s.scanRange(r)
		if err != nil {
			return 0, false, err
		}
		if found {
			return addr, true, nil
		}
	}
	return 0, false, nil
}

// scanRange reads one range in chunks, overlapping each read by one byte
// less than the signature so a control block straddling a chunk boundary
// is still found.
func (s *Scanner) scanRange(r ScanRange) (uint32, bool, error) {
	if r.End <= r.Start {
		return 0, false, nil
	}

	sig := Signature()
	s.logger.Debug("scanning range for control block", zap.String("range", r.String()))

	for base := r.Start; base < r.End; {
		n := s.chunkSize
		if remaining := r.End - base; uint32(n) > remaining {
			n = int(remaining)
		}
		if n < SignatureSize {
			return 0, false, nil
		}

		chunk, err := s.mem.ReadMemory(base, n)
		if err != nil {
			return 0, false, err
		}

		if idx := bytes.Index(chunk, sig); idx >= 0 {
			addr := base + uint32(idx)
			s.logger.Info("control block located by scan",
				zap.String("addr", fmt.Sprintf("0x%08x", addr)),
				zap.String("range", r.String()),
			)
			return addr, true, nil
		}

		// Step back so a signature split across the boundary still lands
		// fully inside the next chunk.
		step := uint32(n - (SignatureSize - 1))
		if base+step <= base {
			break
		}
		base += step
	}
	return 0, false, nil
}
