package rtt

import (
	"testing"

	"go.uber.org/zap"

	"github.com/muurk/rttap/internal/transport"
)

func TestProbe(t *testing.T) {
	ram, layout := newTestTarget(t)
	scanner := NewScanner(ram, zap.NewNop())

	ok, err := scanner.Probe(layout.cbAddr)
	if err != nil {
		t.Fatalf("Probe() error = %v", err)
	}
	if !ok {
		t.Error("Probe() rejected a valid control block")
	}

	ok, err = scanner.Probe(layout.cbAddr + 1)
	if err != nil {
		t.Fatalf("Probe() error = %v", err)
	}
	if ok {
		t.Error("Probe() accepted a misaligned address")
	}
}

// Validation is byte-for-byte: any single corrupted signature byte,
// including the null padding, must fail the probe.
func TestProbeRejectsCorruptedSignature(t *testing.T) {
	for i := 0; i < SignatureSize; i++ {
		ram, layout := newTestTarget(t)
		ram.data[layout.cbAddr-ram.base+uint32(i)] ^= 0xff

		scanner := NewScanner(ram, zap.NewNop())
		ok, err := scanner.Probe(layout.cbAddr)
		if err != nil {
			t.Fatalf("byte %d: Probe() error = %v", i, err)
		}
		if ok {
			t.Errorf("byte %d: Probe() accepted a corrupted signature", i)
		}
	}
}

func TestProbeTransportError(t *testing.T) {
	ram, _ := newTestTarget(t)
	scanner := NewScanner(ram, zap.NewNop())

	_, err := scanner.Probe(0x60000000)
	if err == nil {
		t.Fatal("Probe() outside RAM expected error")
	}
	if !transport.IsMemoryAccess(err) {
		t.Errorf("error = %v, want memory access failure", err)
	}
}

func TestScanRanges(t *testing.T) {
	ram, layout := newTestTarget(t)

	tests := []struct {
		name      string
		ranges    []ScanRange
		wantFound bool
		wantAddr  uint32
	}{
		{
			name:      "full window",
			ranges:    testScanRanges(ram),
			wantFound: true,
			wantAddr:  layout.cbAddr,
		},
		{
			name:      "range past the block",
			ranges:    []ScanRange{{Start: ram.base + 0x400, End: ram.base + 0x800}},
			wantFound: false,
		},
		{
			name:      "empty range",
			ranges:    []ScanRange{{Start: ram.base + 0x100, End: ram.base + 0x100}},
			wantFound: false,
		},
		{
			name:      "inverted range",
			ranges:    []ScanRange{{Start: ram.base + 0x800, End: ram.base + 0x400}},
			wantFound: false,
		},
		{
			name:      "range shorter than signature",
			ranges:    []ScanRange{{Start: ram.base, End: ram.base + 4}},
			wantFound: false,
		},
		{
			name: "second range hits",
			ranges: []ScanRange{
				{Start: ram.base + 0x400, End: ram.base + 0x800},
				{Start: ram.base, End: ram.base + 0x400},
			},
			wantFound: true,
			wantAddr:  layout.cbAddr,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scanner := NewScanner(ram, zap.NewNop())
			addr, found, err := scanner.ScanRanges(tt.ranges)
			if err != nil {
				t.Fatalf("ScanRanges() error = %v", err)
			}
			if found != tt.wantFound {
				t.Fatalf("ScanRanges() found = %v, want %v", found, tt.wantFound)
			}
			if found && addr != tt.wantAddr {
				t.Errorf("ScanRanges() addr = 0x%08x, want 0x%08x", addr, tt.wantAddr)
			}
		})
	}
}

// A signature straddling a chunk boundary must still be found; the scanner
// overlaps consecutive reads by one byte less than the signature length.
func TestScanChunkBoundaryStraddle(t *testing.T) {
	ram := newFakeRAM(testRAMBase, 0x400)
	sigAddr := ram.base + 57 // spans bytes 57..72 with a 64-byte chunk
	ram.copyIn(sigAddr, Signature())

	scanner := NewScanner(ram, zap.NewNop())
	scanner.chunkSize = 64

	addr, found, err := scanner.ScanRanges(testScanRanges(ram))
	if err != nil {
		t.Fatalf("ScanRanges() error = %v", err)
	}
	if !found {
		t.Fatal("ScanRanges() missed a signature straddling the chunk boundary")
	}
	if addr != sigAddr {
		t.Errorf("ScanRanges() addr = 0x%08x, want 0x%08x", addr, sigAddr)
	}
}

func TestScanRangesTransportError(t *testing.T) {
	ram, _ := newTestTarget(t)
	scanner := NewScanner(ram, zap.NewNop())

	_, _, err := scanner.ScanRanges([]ScanRange{{Start: 0x60000000, End: 0x60001000}})
	if err == nil {
		t.Fatal("ScanRanges() outside RAM expected error")
	}
	if !transport.IsMemoryAccess(err) {
		t.Errorf("error = %v, want memory access failure", err)
	}
}
