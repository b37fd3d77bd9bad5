package coredump

import (
	"debug/elf"
	"encoding/binary"
)

// ELF32 core layout constants. Sizes come from the 32-bit ELF spec; the
// prstatus descriptor layout is the ARM Linux elf_prstatus that every
// ELF-aware debugger expects for an EM_ARM core.
const (
	ehSize    = 52 // ELF32 file header
	phentSize = 32 // ELF32 program header entry

	noteName = "CORE"

	// PrStatusSize is the size of the ARM elf_prstatus descriptor.
	PrStatusSize = 148
	// PrStatusRegsOffset is where the register block starts inside the
	// prstatus descriptor. Both values are a wire-compatibility contract
	// with consuming debuggers.
	PrStatusRegsOffset = 72

	// the gregset holds r0-r15, cpsr, orig_r0
	gregsetCount = 18
)

// noteSize is the full PT_NOTE segment size: 12-byte note header, the
// name "CORE" NUL-padded to 4-byte alignment, then the descriptor.
const noteSize = 12 + 8 + PrStatusSize

// Encode serializes a register snapshot and zero or more memory regions
// into a minimal valid ELF32 core object. Pure transform: no I/O, fully
// deterministic, byte-for-byte testable.
//
// Layout: file header, program headers (PT_NOTE first, then one PT_LOAD
// per region in input order), the note segment, then each region's bytes.
// All multi-byte fields are little-endian.
func Encode(regs Registers, regions []Region) []byte {
	phnum := 1 + len(regions)
	noteOff := uint32(ehSize + phnum*phentSize)

	total := int(noteOff) + noteSize
	for _, r := range regions {
		total += len(r.Data)
	}
	buf := make([]byte, total)

	writeFileHeader(buf, phnum)

	// PT_NOTE program header
	ph := buf[ehSize:]
	putProgHeader(ph, progHeader{
		Type:   uint32(elf.PT_NOTE),
		Off:    noteOff,
		Filesz: noteSize,
		Align:  4,
	})

	// PT_LOAD program headers, in input order
	off := noteOff + noteSize
	for i, r := range regions {
		putProgHeader(ph[(i+1)*phentSize:], progHeader{
			Type:   uint32(elf.PT_LOAD),
			Off:    off,
			Vaddr:  r.Base,
			Filesz: uint32(len(r.Data)),
			Memsz:  uint32(len(r.Data)),
			Flags:  uint32(elf.PF_R | elf.PF_W),
			Align:  1,
		})
		off += uint32(len(r.Data))
	}

	writeNote(buf[noteOff:], regs)

	off = noteOff + noteSize
	for _, r := range regions {
		copy(buf[off:], r.Data)
		off += uint32(len(r.Data))
	}

	return buf
}

func writeFileHeader(buf []byte, phnum int) {
	le := binary.LittleEndian

	ident := []byte{0x7f, 'E', 'L', 'F',
		byte(elf.ELFCLASS32), byte(elf.ELFDATA2LSB), byte(elf.EV_CURRENT),
		byte(elf.ELFOSABI_NONE), 0, 0, 0, 0, 0, 0, 0, 0}
	copy(buf, ident)

	le.PutUint16(buf[16:], uint16(elf.ET_CORE))
	le.PutUint16(buf[18:], uint16(elf.EM_ARM))
	le.PutUint32(buf[20:], uint32(elf.EV_CURRENT))
	le.PutUint32(buf[24:], 0)      // e_entry
	le.PutUint32(buf[28:], ehSize) // e_phoff: program headers follow immediately
	le.PutUint32(buf[32:], 0)      // e_shoff
	le.PutUint32(buf[36:], 0)      // e_flags
	le.PutUint16(buf[40:], ehSize)
	le.PutUint16(buf[42:], phentSize)
	le.PutUint16(buf[44:], uint16(phnum))
	le.PutUint16(buf[46:], 0) // e_shentsize
	le.PutUint16(buf[48:], 0) // e_shnum
	le.PutUint16(buf[50:], uint16(elf.SHN_UNDEF))
}

type progHeader struct {
	Type   uint32
	Off    uint32
	Vaddr  uint32
	Filesz uint32
	Memsz  uint32
	Flags  uint32
	Align  uint32
}

func putProgHeader(buf []byte, h progHeader) {
	le := binary.LittleEndian
	le.PutUint32(buf[0:], h.Type)
	le.PutUint32(buf[4:], h.Off)
	le.PutUint32(buf[8:], h.Vaddr)
	le.PutUint32(buf[12:], 0) // p_paddr
	le.PutUint32(buf[16:], h.Filesz)
	le.PutUint32(buf[20:], h.Memsz)
	le.PutUint32(buf[24:], h.Flags)
	le.PutUint32(buf[28:], h.Align)
}

// writeNote emits the single process-status note. The descriptor is an
// ARM elf_prstatus: everything zero except the register block, which holds
// r0-r15 and cpsr straight from the snapshot with orig_r0 left zero.
func writeNote(buf []byte, regs Registers) {
	le := binary.LittleEndian

	le.PutUint32(buf[0:], uint32(len(noteName)+1)) // namesz includes the NUL
	le.PutUint32(buf[4:], PrStatusSize)
	le.PutUint32(buf[8:], uint32(elf.NT_PRSTATUS))
	copy(buf[12:], noteName) // NUL padding to 8 bytes is already zeroed

	desc := buf[12+8:]
	for i := 0; i < NumRegisters; i++ {
		le.PutUint32(desc[PrStatusRegsOffset+4*i:], regs[i])
	}
}
