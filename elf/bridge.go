// Package elf defines the consumer-side contract this core expects from an
// already-parsed ELF file, plus the bridge that lifts its loadable
// segments into a flash data vector (spec.md §4.7, §6.4). Parsing an ELF
// file (e.g. with the standard library's debug/elf) remains the caller's
// job; this package never opens a file.
package elf

import "github.com/cesanta/psdb/flash"

// PTLoad is the ELF program header type for a loadable segment (the
// architecture's fixed value, matching debug/elf.PT_LOAD).
const PTLoad uint32 = 1

// Segment is the subset of an ELF program header burn_elf needs (spec.md
// §6.4).
type Segment interface {
	Type() uint32
	PAddr() uint32
	MemSize() uint32
	FileSize() uint32
	Data() ([]byte, error)
}

// Segments is an already-parsed ELF file's program header table.
type Segments interface {
	Segments() []Segment
}

// BurnELF lifts every PT_LOAD segment into an ALP whose payload is
// seg.Data() zero-padded out to p_memsz, then burns the resulting data
// vector via base (spec.md §4.5's burn_elf). Segments outside flash range
// flow through BurnDV's drop-on-out-of-range policy via blockbuf.
func BurnELF(base *flash.Base, segs Segments) error {
	var dv flash.DV
	for _, seg := range segs.Segments() {
		if seg.Type() != PTLoad {
			continue
		}
		data, err := seg.Data()
		if err != nil {
			return err
		}
		if pad := int(seg.MemSize()) - int(seg.FileSize()); pad > 0 {
			padded := make([]byte, len(data)+pad)
			copy(padded, data)
			data = padded
		}
		dv = append(dv, flash.ALP{Addr: seg.PAddr(), Data: data})
	}
	return base.BurnDV(dv)
}
