// Package elfsym loads function symbols from a firmware ELF and resolves
// raw program counters to symbol+offset locations.
//
// The loader filters the ELF symtab to function-type symbols with a nonzero
// value and a non-empty name, clears the architecture's Thumb tag bit from
// each address, sorts ascending by address, and dedupes by address with a
// first-encountered-wins policy. The resulting Table is immutable and safe
// for concurrent Resolve calls.
//
// Resolution is a binary search for the greatest symbol address at or below
// the target. Containment uses the recorded symbol size when present; for
// symbols without size metadata a fixed heuristic window applies (see
// DefaultMaxZeroSizeOffset).
//
// Tables are rebuilt per ELF load; there is no cross-session caching.
package elfsym
