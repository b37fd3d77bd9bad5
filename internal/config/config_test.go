package config

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/muurk/rttap/internal/rtt"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Bridge.URL != "ws://localhost:9160/debug" {
		t.Errorf("Bridge.URL = %q", cfg.Bridge.URL)
	}
	if cfg.Attach.ControlBlockSymbol != rtt.DefaultControlBlockSymbol {
		t.Errorf("ControlBlockSymbol = %q", cfg.Attach.ControlBlockSymbol)
	}
	if cfg.Attach.MaxAttempts != 10 {
		t.Errorf("MaxAttempts = %d", cfg.Attach.MaxAttempts)
	}
	if cfg.Attach.BaseDelay != "50ms" {
		t.Errorf("BaseDelay = %q", cfg.Attach.BaseDelay)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("config dir override uses XDG_CONFIG_HOME")
	}
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg := Default()
	cfg.FirmwareELF = "/srv/builds/app.elf"
	cfg.Bridge.URL = "ws://probe-host:7331/debug"
	cfg.Attach.MaxAttempts = 25
	cfg.Attach.RAMRanges = []rtt.ScanRange{{Start: 0x20000000, End: 0x20040000}}

	if err := Save(cfg); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded, err := loadFromDisk()
	if err != nil {
		t.Fatalf("loadFromDisk() error = %v", err)
	}
	if loaded.FirmwareELF != cfg.FirmwareELF {
		t.Errorf("FirmwareELF = %q", loaded.FirmwareELF)
	}
	if loaded.Bridge.URL != cfg.Bridge.URL {
		t.Errorf("Bridge.URL = %q", loaded.Bridge.URL)
	}
	if loaded.Attach.MaxAttempts != 25 {
		t.Errorf("MaxAttempts = %d", loaded.Attach.MaxAttempts)
	}
	if len(loaded.Attach.RAMRanges) != 1 || loaded.Attach.RAMRanges[0].End != 0x20040000 {
		t.Errorf("RAMRanges = %+v", loaded.Attach.RAMRanges)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("config dir override uses XDG_CONFIG_HOME")
	}
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg, err := loadFromDisk()
	if err != nil {
		t.Fatalf("loadFromDisk() error = %v", err)
	}
	if cfg.Bridge.URL != Default().Bridge.URL {
		t.Errorf("missing file should yield defaults, got %q", cfg.Bridge.URL)
	}
}

func TestLoadMalformedFile(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("config dir override uses XDG_CONFIG_HOME")
	}
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)

	cfgDir := filepath.Join(dir, appName)
	if err := os.MkdirAll(cfgDir, 0o700); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(cfgDir, configFile), []byte("{{not yaml"), 0o600); err != nil {
		t.Fatal(err)
	}

	if _, err := loadFromDisk(); err == nil {
		t.Error("loadFromDisk() expected error for malformed YAML")
	}
}

func TestBridgeOptions(t *testing.T) {
	tests := []struct {
		name    string
		cfg     BridgeConfig
		wantErr bool
		verify  func(t *testing.T, url string, timeout time.Duration)
	}{
		{
			name: "defaults",
			cfg:  BridgeConfig{},
			verify: func(t *testing.T, url string, timeout time.Duration) {
				if url != "ws://localhost:9160/debug" || timeout != 5*time.Second {
					t.Errorf("got %q / %v", url, timeout)
				}
			},
		},
		{
			name: "custom",
			cfg:  BridgeConfig{URL: "ws://10.0.0.5:9160/debug", Timeout: "250ms"},
			verify: func(t *testing.T, url string, timeout time.Duration) {
				if url != "ws://10.0.0.5:9160/debug" || timeout != 250*time.Millisecond {
					t.Errorf("got %q / %v", url, timeout)
				}
			},
		},
		{
			name:    "invalid timeout",
			cfg:     BridgeConfig{Timeout: "fast"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &Config{Bridge: tt.cfg}
			opts, err := c.BridgeOptions()
			if (err != nil) != tt.wantErr {
				t.Fatalf("BridgeOptions() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.verify != nil {
				tt.verify(t, opts.URL, opts.Timeout)
			}
		})
	}
}

func TestAttachOptions(t *testing.T) {
	c := &Config{Attach: AttachConfig{
		ControlBlockSymbol: "__rtt_cb",
		RAMRanges:          []rtt.ScanRange{{Start: 0x10000000, End: 0x10008000}},
		MaxAttempts:        3,
		BaseDelay:          "10ms",
		DelayStep:          "20ms",
		MaxDelay:           "1s",
	}}

	opts, err := c.AttachOptions()
	if err != nil {
		t.Fatalf("AttachOptions() error = %v", err)
	}
	if opts.SymbolHint != "__rtt_cb" {
		t.Errorf("SymbolHint = %q", opts.SymbolHint)
	}
	if opts.MaxAttempts != 3 {
		t.Errorf("MaxAttempts = %d", opts.MaxAttempts)
	}
	if opts.BaseDelay != 10*time.Millisecond || opts.DelayStep != 20*time.Millisecond || opts.MaxDelay != time.Second {
		t.Errorf("delays = %v/%v/%v", opts.BaseDelay, opts.DelayStep, opts.MaxDelay)
	}
	if len(opts.RAMRanges) != 1 || opts.RAMRanges[0].Start != 0x10000000 {
		t.Errorf("RAMRanges = %+v", opts.RAMRanges)
	}

	c.Attach.DelayStep = "soon"
	if _, err := c.AttachOptions(); err == nil {
		t.Error("AttachOptions() expected error for invalid delay")
	}
}
