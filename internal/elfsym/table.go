package elfsym

import (
	"bytes"
	"debug/elf"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/muurk/rttap/internal/logging"
)

// DefaultMaxZeroSizeOffset is the containment heuristic for function symbols
// whose size metadata is missing (common for startup code and vector-table
// handlers emitted by assembler). An address more than this many bytes past
// such a symbol is treated as unmapped. Inherited convention; overridable
// per table via SetMaxZeroSizeOffset.
const DefaultMaxZeroSizeOffset = 4096

// Symbol is one function symbol from the firmware ELF. The Thumb tag bit
// has already been cleared from Addr. Size 0 means the ELF did not record
// a size. Immutable once loaded.
type Symbol struct {
	Name string
	Addr uint32
	Size uint32
}

// Resolved is the result of mapping a raw program counter to a symbol.
type Resolved struct {
	Name   string
	Base   uint32
	Offset uint32
}

// String formats the location the way debugger backtraces expect:
// "name" at offset 0, "name+0x1f" otherwise.
func (r Resolved) String() string {
	if r.Offset == 0 {
		return r.Name
	}
	return fmt.Sprintf("%s+0x%x", r.Name, r.Offset)
}

// Table is a sorted, address-deduplicated function symbol table. It is
// built once per ELF load and read-only afterwards, so concurrent Resolve
// calls are safe without locking.
type Table struct {
	syms              []Symbol
	byName            map[string]Symbol
	maxZeroSizeOffset uint32
}

// Load parses the ELF at path and builds a symbol table.
func Load(path string) (*Table, error) {
	f, err := elf.Open(path)
	if err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}
	defer f.Close()

	t, err := build(f)
	if err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}

	logging.Debug("loaded firmware symbol table",
		zap.String("path", path),
		zap.Int("functions", len(t.syms)),
	)
	return t, nil
}

// LoadBytes builds a symbol table from an in-memory ELF image.
func LoadBytes(data []byte) (*Table, error) {
	f, err := elf.NewFile(bytes.NewReader(data))
	if err != nil {
		return nil, &ParseError{Err: err}
	}
	defer f.Close()

	t, err := build(f)
	if err != nil {
		return nil, &ParseError{Err: err}
	}
	return t, nil
}

// build extracts function symbols, clears the Thumb tag bit, and hands
// the list to NewTable.
func build(f *elf.File) (*Table, error) {
	elfSyms, err := f.Symbols()
	if err != nil {
		return nil, fmt.Errorf("no symbol table: %w", err)
	}

	syms := make([]Symbol, 0, len(elfSyms))
	for _, s := range elfSyms {
		if elf.ST_TYPE(s.Info) != elf.STT_FUNC {
			continue
		}
		if s.Value == 0 || s.Name == "" {
			continue
		}
		syms = append(syms, Symbol{
			Name: s.Name,
			Addr: uint32(s.Value) &^ 1, // clear Thumb tag bit
			Size: uint32(s.Size),
		})
	}

	return NewTable(syms), nil
}

// NewTable builds a table directly from a symbol list, for callers whose
// symbols come from somewhere other than an ELF image. The list is sorted
// by address and deduplicated; when two symbols share an address the first
// one in the input wins.
func NewTable(input []Symbol) *Table {
	syms := make([]Symbol, len(input))
	copy(syms, input)

	// Stable sort so the input encounter order breaks address ties,
	// then keep the first symbol of each address run.
	sort.SliceStable(syms, func(i, j int) bool { return syms[i].Addr < syms[j].Addr })

	deduped := syms[:0]
	byName := make(map[string]Symbol, len(syms))
	var prev uint32
	for i, s := range syms {
		if i > 0 && s.Addr == prev {
			continue
		}
		deduped = append(deduped, s)
		prev = s.Addr
		if _, ok := byName[s.Name]; !ok {
			byName[s.Name] = s
		}
	}

	return &Table{
		syms:              deduped,
		byName:            byName,
		maxZeroSizeOffset: DefaultMaxZeroSizeOffset,
	}
}

// SetMaxZeroSizeOffset overrides the containment heuristic for symbols
// without size metadata. Intended for targets whose handlers are known to
// exceed the default.
func (t *Table) SetMaxZeroSizeOffset(n uint32) {
	t.maxZeroSizeOffset = n
}

// Count returns the number of function symbols in the table.
func (t *Table) Count() int {
	return len(t.syms)
}

// Symbols returns a copy of the sorted symbol list.
func (t *Table) Symbols() []Symbol {
	out := make([]Symbol, len(t.syms))
	copy(out, t.syms)
	return out
}

// Lookup finds a symbol by exact name. Used to seed the control block
// scanner with an address hint (e.g. "_SEGGER_RTT").
func (t *Table) Lookup(name string) (Symbol, bool) {
	s, ok := t.byName[name]
	return s, ok
}

// Resolve maps a raw program counter to a symbol plus offset. The Thumb
// tag bit is cleared before lookup. Returns false when the address precedes
// the first symbol, falls in a gap between sized functions, or exceeds the
// zero-size containment heuristic.
func (t *Table) Resolve(addr uint32) (Resolved, bool) {
	addr &^= 1

	// Greatest symbol address <= addr.
	i := sort.Search(len(t.syms), func(i int) bool { return t.syms[i].Addr > addr }) - 1
	if i < 0 {
		return Resolved{}, false
	}

	s := t.syms[i]
	offset := addr - s.Addr
	if s.Size > 0 {
		if offset >= s.Size {
			return Resolved{}, false
		}
	} else if offset > t.maxZeroSizeOffset {
		return Resolved{}, false
	}

	return Resolved{Name: s.Name, Base: s.Addr, Offset: offset}, true
}
