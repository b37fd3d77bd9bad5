package logging

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestInitializeSilentByDefault(t *testing.T) {
	t.Setenv(LogLevelEnvVar, "")
	if err := Initialize(""); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	if GetLogger() == nil {
		t.Fatal("GetLogger() = nil")
	}
	// Silent logger must swallow everything without side effects.
	Info("should not appear")
	Debug("should not appear")
}

func TestInitializeLevels(t *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "error", "bogus"} {
		if err := Initialize(level); err != nil {
			t.Errorf("Initialize(%q) error = %v", level, err)
		}
	}
	Initialize("") // restore silent mode for other tests
}

func TestMemoryLogHelpers(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	prev := logger
	logger = zap.New(core)
	defer func() { logger = prev }()

	LogMemoryRead(0x20000400, []byte{0xDE, 0xAD, 0xBE, 0xEF})
	LogMemoryWrite(0x20000404, []byte("hi"))

	entries := logs.All()
	if len(entries) != 2 {
		t.Fatalf("logged %d entries, want 2", len(entries))
	}

	read := entries[0]
	if read.Message != "target memory read" {
		t.Errorf("read message = %q", read.Message)
	}
	fields := read.ContextMap()
	if fields["addr"] != "0x20000400" || fields["hex"] != "deadbeef" {
		t.Errorf("read fields = %v", fields)
	}
	if fields["length"] != int64(4) {
		t.Errorf("read length = %v, want 4", fields["length"])
	}

	write := entries[1]
	if write.Message != "target memory write" {
		t.Errorf("write message = %q", write.Message)
	}
	if got := write.ContextMap()["hex"]; got != "6869" {
		t.Errorf("write hex = %v", got)
	}
}

func TestHexDump(t *testing.T) {
	if got := hexDump(nil); got != "" {
		t.Errorf("hexDump(nil) = %q", got)
	}
	if got := hexDump([]byte{0xDE, 0xAD}); got != "dead" {
		t.Errorf("hexDump = %q", got)
	}

	big := make([]byte, 300)
	got := hexDump(big)
	if len(got) != 256*2+3 {
		t.Errorf("hexDump(300 bytes) length = %d, want truncation at 256 bytes plus ellipsis", len(got))
	}
}

func TestAsciiDump(t *testing.T) {
	tests := []struct {
		name string
		in   []byte
		want string
	}{
		{"empty", nil, ""},
		{"printable", []byte("SEGGER RTT"), "SEGGER RTT"},
		{"control bytes", []byte{'o', 'k', 0x00, 0x1b, 0x7f}, "ok..."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := asciiDump(tt.in); got != tt.want {
				t.Errorf("asciiDump(% x) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
