package ui

import (
	"strings"
	"testing"
)

func TestHeaderRender(t *testing.T) {
	h := &Header{
		Title:   "rtt attach",
		Command: "rttap attach",
		Params: map[string]string{
			"Bridge":   "ws://localhost:9160/debug",
			"Attempts": "10",
		},
		Width: 80,
	}

	out := h.Render()
	if !strings.Contains(out, "RTT ATTACH") {
		t.Error("rendered header missing uppercased title")
	}
	if !strings.Contains(out, "rttap attach") {
		t.Error("rendered header missing command line")
	}
	for _, want := range []string{"Bridge:", "Attempts:", "ws://localhost:9160/debug"} {
		if !strings.Contains(out, want) {
			t.Errorf("rendered header missing %q", want)
		}
	}

	// Sorted params: Attempts before Bridge regardless of map order.
	if strings.Index(out, "Attempts:") > strings.Index(out, "Bridge:") {
		t.Error("params are not sorted")
	}
}

func TestHeaderRenderNoParams(t *testing.T) {
	h := &Header{Title: "discover", Command: "rttap discover", Width: 10}
	out := h.Render()
	if !strings.Contains(out, "DISCOVER") {
		t.Error("rendered header missing title")
	}
	// Undersized widths are clamped, never panic.
	for _, line := range strings.Split(out, "\n") {
		if len(line) == 0 {
			t.Error("empty line in render")
		}
	}
}

func TestGetTerminalWidthFallback(t *testing.T) {
	// Under go test stdout is not a tty, so the fallback applies.
	if w := GetTerminalWidth(); w < MinTerminalWidth || w > MaxContentWidth {
		t.Errorf("GetTerminalWidth() = %d, want within [%d, %d]", w, MinTerminalWidth, MaxContentWidth)
	}
}
