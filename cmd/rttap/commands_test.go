package main

import (
	"testing"

	"github.com/muurk/rttap/internal/rtt"
)

func TestParseAddr(t *testing.T) {
	tests := []struct {
		in      string
		want    uint32
		wantErr bool
	}{
		{"0x20000000", 0x20000000, false},
		{"536870912", 0x20000000, false},
		{"0", 0, false},
		{"0x1_0000_0000", 0, true}, // above 32 bits
		{"sram", 0, true},
		{"", 0, true},
	}
	for _, tt := range tests {
		got, err := parseAddr(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseAddr(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if err == nil && got != tt.want {
			t.Errorf("parseAddr(%q) = 0x%08x, want 0x%08x", tt.in, got, tt.want)
		}
	}
}

func TestParseScanRange(t *testing.T) {
	tests := []struct {
		in      string
		want    rtt.ScanRange
		wantErr bool
	}{
		{"0x20000000-0x20010000", rtt.ScanRange{Start: 0x20000000, End: 0x20010000}, false},
		{"0x20000000", rtt.ScanRange{}, true},
		{"0x20010000-0x20000000", rtt.ScanRange{}, true}, // inverted
		{"0x20000000-0x20000000", rtt.ScanRange{}, true}, // empty
		{"abc-def", rtt.ScanRange{}, true},
	}
	for _, tt := range tests {
		got, err := parseScanRange(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseScanRange(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if err == nil && got != tt.want {
			t.Errorf("parseScanRange(%q) = %+v, want %+v", tt.in, got, tt.want)
		}
	}
}
