package elfsym

import (
	"errors"
	"fmt"
)

// ParseError represents a malformed or unreadable firmware ELF.
// Parse failures are local and never auto-retried.
type ParseError struct {
	// Path is the ELF file path, empty when loading from memory
	Path string
	// Underlying error from debug/elf
	Err error
}

func (e *ParseError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("failed to parse firmware ELF %s: %v\n"+
			"Hint: pass the unstripped .elf build artifact, not a .bin or .hex image",
			e.Path, e.Err)
	}
	return fmt.Sprintf("failed to parse firmware ELF: %v", e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// IsParseError reports whether err is an ELF parse failure.
func IsParseError(err error) bool {
	var pe *ParseError
	return errors.As(err, &pe)
}
