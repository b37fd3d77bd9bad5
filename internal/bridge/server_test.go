package bridge

import (
	"bytes"
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/rttap/internal/coredump"
	"github.com/muurk/rttap/internal/rtt"
	"github.com/muurk/rttap/internal/transport"
)

// newTestBridge serves the frame protocol over a real websocket and dials
// it with the production client.
func newTestBridge(t *testing.T) (*transport.Client, *SimTarget) {
	t.Helper()

	target := NewSimTarget(DefaultSimConfig())
	srv := httptest.NewServer(NewServer(target, zap.NewNop()).Handler())
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/debug"
	client, err := transport.Dial(context.Background(), transport.Config{
		URL:     url,
		Timeout: 5 * time.Second,
	}, zap.NewNop())
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client, target
}

func TestBridgeMemoryRoundTrip(t *testing.T) {
	client, target := newTestBridge(t)

	addr := DefaultSimConfig().RAMBase + 0x4000
	payload := []byte("written through the bridge")
	if err := client.WriteMemory(addr, payload); err != nil {
		t.Fatalf("WriteMemory() error = %v", err)
	}

	got, err := client.ReadMemory(addr, len(payload))
	if err != nil {
		t.Fatalf("ReadMemory() error = %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Errorf("ReadMemory() = %q, want %q", got, payload)
	}

	sig, err := client.ReadMemory(target.ControlBlockAddr(), rtt.SignatureSize)
	if err != nil {
		t.Fatalf("ReadMemory() error = %v", err)
	}
	if !bytes.Equal(sig, rtt.Signature()) {
		t.Errorf("signature over bridge = %q", sig)
	}
}

func TestBridgeMemoryErrors(t *testing.T) {
	client, _ := newTestBridge(t)

	_, err := client.ReadMemory(0x60000000, 16)
	if err == nil {
		t.Fatal("ReadMemory() outside RAM expected error")
	}
	if !transport.IsMemoryAccess(err) {
		t.Errorf("error = %v, want memory access failure", err)
	}

	if err := client.WriteMemory(0x60000000, []byte{1}); !transport.IsMemoryAccess(err) {
		t.Errorf("WriteMemory() error = %v, want memory access failure", err)
	}
}

func TestBridgeExecutionControl(t *testing.T) {
	client, _ := newTestBridge(t)

	if err := client.Halt(); err != nil {
		t.Fatalf("Halt() error = %v", err)
	}
	if err := client.Run(); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if err := client.Reset(); err != nil {
		t.Fatalf("Reset() error = %v", err)
	}
}

func TestBridgeReadRegisters(t *testing.T) {
	client, _ := newTestBridge(t)

	vals, err := client.ReadRegisters()
	if err != nil {
		t.Fatalf("ReadRegisters() error = %v", err)
	}
	regs, err := coredump.RegistersFromSlice(vals)
	if err != nil {
		t.Fatalf("RegistersFromSlice() error = %v", err)
	}
	if regs[coredump.RegPC] == 0 {
		t.Error("pc = 0 over bridge")
	}
}

// Full stack: production websocket client, frame protocol, scan-based
// attach, channel traffic both directions, then a core capture of live RAM.
func TestBridgeEndToEnd(t *testing.T) {
	client, target := newTestBridge(t)
	simCfg := DefaultSimConfig()

	session := rtt.NewSession(client, zap.NewNop())
	cfg := rtt.DefaultAttachConfig()
	cfg.RAMRanges = []rtt.ScanRange{{Start: simCfg.RAMBase, End: simCfg.RAMBase + simCfg.RAMSize}}
	cfg.MaxAttempts = 1
	if err := session.Attach(context.Background(), cfg); err != nil {
		t.Fatalf("Attach() error = %v", err)
	}
	if session.ControlBlockAddr() != target.ControlBlockAddr() {
		t.Errorf("attached at 0x%08x, control block at 0x%08x",
			session.ControlBlockAddr(), target.ControlBlockAddr())
	}

	target.EmitUp([]byte("hello from firmware\n"))
	data, err := session.ReadUp(0, 4096)
	if err != nil {
		t.Fatalf("ReadUp() error = %v", err)
	}
	if !bytes.Equal(data, []byte("hello from firmware\n")) {
		t.Errorf("ReadUp() = %q", data)
	}

	if _, err := session.WriteDown(0, []byte("reboot\n")); err != nil {
		t.Fatalf("WriteDown() error = %v", err)
	}
	if got := target.DrainDown(256); !bytes.Equal(got, []byte("reboot\n")) {
		t.Errorf("DrainDown() = %q", got)
	}

	// Core capture of the first RAM page over the live bridge.
	if err := client.Halt(); err != nil {
		t.Fatalf("Halt() error = %v", err)
	}
	vals, err := client.ReadRegisters()
	if err != nil {
		t.Fatalf("ReadRegisters() error = %v", err)
	}
	regs, err := coredump.RegistersFromSlice(vals)
	if err != nil {
		t.Fatalf("RegistersFromSlice() error = %v", err)
	}
	mem, err := client.ReadMemory(simCfg.RAMBase, 4096)
	if err != nil {
		t.Fatalf("ReadMemory() error = %v", err)
	}

	core := coredump.Encode(regs, []coredump.Region{{Base: simCfg.RAMBase, Data: mem}})
	if len(core) == 0 {
		t.Fatal("Encode() produced an empty core")
	}
	if err := client.Run(); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
}
