// Package bootload implements the second-stage loader's external
// interface: ELF32 big-endian validation and segment loading, an XMODEM
// receiver, and the kzload> command shell.
package bootload

import (
	"bytes"
	"debug/elf"
	"fmt"

	"kozos-go/errcode"
)

// Memory is the destination address space the loader copies program
// segments into. It stands in for "physical address" on real hardware; the
// host/test implementation is just a byte slice with a base offset.
type Memory interface {
	// WriteAt copies data starting at the given physical address.
	WriteAt(addr uint32, data []byte) error
	// ZeroAt zero-fills n bytes starting at the given physical address.
	ZeroAt(addr uint32, n int) error
}

// Image is a validated, loaded executable: the set of segments it asked to
// be placed in memory and the address execution should begin at.
type Image struct {
	Entry    uint32
	Segments []Segment
}

// Segment is one PT_LOAD program header's effect on Memory.
type Segment struct {
	PhysAddr   uint32
	FileSize   int
	MemorySize int
}

// acceptedMachines is exactly the original's two-target allowlist: Hitachi
// H8/300 and H8/300H.
var acceptedMachines = map[elf.Machine]bool{
	elf.EM_H8_300:  true,
	elf.EM_H8_300H: true,
}

// Validate checks magic, class, byte order, type, and machine exactly as
// elf_check does, returning a descriptive error instead of a boolean so
// cli.go can report why a load was rejected.
func Validate(data []byte) (*elf.File, error) {
	if len(data) < 4 || !bytes.Equal(data[:4], []byte{0x7f, 'E', 'L', 'F'}) {
		return nil, &errcode.E{C: errcode.InvalidHeader, Op: "elf.Validate", Msg: "bad magic"}
	}
	f, err := elf.NewFile(bytes.NewReader(data))
	if err != nil {
		return nil, &errcode.E{C: errcode.InvalidHeader, Op: "elf.Validate", Err: err}
	}
	if f.Class != elf.ELFCLASS32 {
		return nil, &errcode.E{C: errcode.InvalidHeader, Op: "elf.Validate", Msg: "not ELFCLASS32"}
	}
	if f.Data != elf.ELFDATA2MSB {
		return nil, &errcode.E{C: errcode.InvalidHeader, Op: "elf.Validate", Msg: "not big-endian"}
	}
	if f.Type != elf.ET_EXEC {
		return nil, &errcode.E{C: errcode.InvalidHeader, Op: "elf.Validate", Msg: "not ET_EXEC"}
	}
	if f.Version != elf.EV_CURRENT {
		return nil, &errcode.E{C: errcode.InvalidHeader, Op: "elf.Validate", Msg: "bad version"}
	}
	if !acceptedMachines[f.Machine] {
		return nil, &errcode.E{C: errcode.InvalidMachine, Op: "elf.Validate", Msg: fmt.Sprintf("machine %v unsupported", f.Machine)}
	}
	return f, nil
}

// Load validates data, then for every PT_LOAD program header copies
// FileSiz bytes from the file to its physical address and zero-fills the
// remaining MemSiz-FileSiz bytes (BSS), exactly as elf_load_program does.
// It returns the image (for dump/inspection) with the entry address set.
func Load(data []byte, mem Memory) (*Image, error) {
	f, err := Validate(data)
	if err != nil {
		return nil, err
	}

	img := &Image{Entry: uint32(f.Entry)}
	for _, ph := range f.Progs {
		if ph.Type != elf.PT_LOAD {
			continue
		}
		seg := Segment{
			PhysAddr:   uint32(ph.Paddr),
			FileSize:   int(ph.Filesz),
			MemorySize: int(ph.Memsz),
		}
		if seg.FileSize > 0 {
			buf := make([]byte, seg.FileSize)
			n, err := ph.ReadAt(buf, 0)
			if err != nil && n != seg.FileSize {
				return nil, &errcode.E{C: errcode.InvalidHeader, Op: "elf.Load", Err: err}
			}
			if err := mem.WriteAt(seg.PhysAddr, buf); err != nil {
				return nil, &errcode.E{C: errcode.Error, Op: "elf.Load", Err: err}
			}
		}
		if bss := seg.MemorySize - seg.FileSize; bss > 0 {
			if err := mem.ZeroAt(seg.PhysAddr+uint32(seg.FileSize), bss); err != nil {
				return nil, &errcode.E{C: errcode.Error, Op: "elf.Load", Err: err}
			}
		}
		img.Segments = append(img.Segments, seg)
	}
	return img, nil
}
