// Package coredump serializes captured CPU and memory state into
// post-mortem debugging files.
//
// The primary output is a minimal valid ELF32 core object for EM_ARM: one
// note segment whose single NT_PRSTATUS note embeds the 17 core registers
// at a fixed offset in an ARM elf_prstatus descriptor, then one
// readable+writable PT_LOAD segment per captured memory region, in input
// order. Any ELF-aware debugger can open the result in place of a live
// connection.
//
// Encode is a pure function from (registers, regions) to bytes, with no
// device I/O, so output is deterministic and byte-for-byte testable.
//
// An alternate raw mode writes a JSON manifest plus one binary file per
// region for tooling that does not speak ELF.
package coredump
