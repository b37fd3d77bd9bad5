package rtt

import (
	"errors"
	"fmt"
	"strings"
)

// ControlBlockNotFoundError is the terminal failure of an attach: no
// candidate address validated against the signature within the retry
// budget. It carries enough diagnostic state to tell "firmware does not
// link RTT" apart from "target still booting".
type ControlBlockNotFoundError struct {
	// Strategies lists the strategy names tried, in order
	Strategies []string
	// Probed lists candidate addresses that failed validation
	Probed []uint32
	// Attempts is the number of full strategy-ladder passes made
	Attempts int
}

func (e *ControlBlockNotFoundError) Error() string {
	probed := "none"
	if len(e.Probed) > 0 {
		addrs := make([]string, 0, len(e.Probed))
		for _, a := range e.Probed {
			addrs = append(addrs, fmt.Sprintf("0x%08x", a))
		}
		probed = strings.Join(addrs, ", ")
	}
	strategies := "none"
	if len(e.Strategies) > 0 {
		strategies = strings.Join(e.Strategies, ", ")
	}
	return fmt.Sprintf("RTT control block not found after %d attempt(s)\n"+
		"  strategies tried: %s\n"+
		"  addresses probed: %s\n"+
		"Hint: if the target was just reset it may still be booting - increase\n"+
		"the attempt budget. If this persists on a settled target, the firmware\n"+
		"probably does not initialize RTT at all.",
		e.Attempts, strategies, probed)
}

// ChannelNotFoundError represents an out-of-range channel index. Ids are
// scoped per direction, so the same numeric id can exist both up and down.
type ChannelNotFoundError struct {
	// Direction the lookup was made in
	Direction Direction
	// ID is the requested channel index
	ID int
	// Count is the number of channels discovered in that direction
	Count int
}

func (e *ChannelNotFoundError) Error() string {
	return fmt.Sprintf("no %s channel %d (session has %d %s channel(s))",
		e.Direction, e.ID, e.Count, e.Direction)
}

// StateError represents an operation attempted in the wrong session state,
// e.g. reading a channel while detached.
type StateError struct {
	// Op is the rejected operation
	Op string
	// State is the session state at the time
	State State
}

func (e *StateError) Error() string {
	return fmt.Sprintf("cannot %s while session is %s", e.Op, e.State)
}

// IsControlBlockNotFound reports whether err is a terminal scan failure.
func IsControlBlockNotFound(err error) bool {
	var cbe *ControlBlockNotFoundError
	return errors.As(err, &cbe)
}

// IsChannelNotFound reports whether err is an out-of-range channel index.
func IsChannelNotFound(err error) bool {
	var cne *ChannelNotFoundError
	return errors.As(err, &cne)
}
