// Package ui provides the styled terminal output for rttap commands:
// command headers, success/failure result boxes, and the live RTT log
// viewer TUI.
//
// Headers and result boxes are plain lipgloss renders printed once; only
// the log viewer runs a full Bubble Tea program. Anything that should stay
// machine-readable (piped output, raw dumps) bypasses this package.
package ui
