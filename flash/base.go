package flash

import (
	"bytes"

	"github.com/cesanta/psdb/blockbuf"
	"github.com/cesanta/psdb/internal/ourutil"
	"github.com/cesanta/psdb/pdberr"
)

// Driver is what a concrete flash device (e.g. flash/stm32h7) must supply.
// Base drives these primitives to implement the generic erase/program/
// verify orchestration (spec.md §4.5); the driver owns its own register
// window and unlock discipline.
type Driver interface {
	EraseSector(n int) error
	Write(addr uint32, data []byte) error
	Read(addr uint32, length int) ([]byte, error)
	// ProgramGranule is the device's minimum program unit in bytes (32 on
	// dual-bank H7); trim units must never be rounded below it (spec.md §9
	// bullet 5).
	ProgramGranule() int
}

// Base is the device-generic flash engine: geometry plus a driver.
// Grounded on targets/flash.py's Flash class, which composes exactly this
// way (geometry fields plus delegate erase_sector/write/read methods).
type Base struct {
	Geometry Geometry
	Driver   Driver
}

func (b *Base) EraseSector(n int) error { return b.Driver.EraseSector(n) }

// EraseSectors erases every sector with its bit set in mask.
func (b *Base) EraseSectors(mask SectorMask) error {
	for i := 0; i < mask.N(); i++ {
		if !mask.Get(i) {
			continue
		}
		if err := b.Driver.EraseSector(i); err != nil {
			return err
		}
	}
	return nil
}

// Erase erases every sector touched by the range [addr, addr+length).
func (b *Base) Erase(addr uint32, length int) error {
	mask, err := MaskForALP(b.Geometry, addr, length)
	if err != nil {
		return err
	}
	return b.EraseSectors(mask)
}

// EraseAll erases the whole device.
func (b *Base) EraseAll() error {
	mask := NewSectorMask(b.Geometry.NSectors)
	for i := 0; i < b.Geometry.NSectors; i++ {
		mask.Set(i)
	}
	return b.EraseSectors(mask)
}

// ReadAll reads the entire flash image.
func (b *Base) ReadAll() ([]byte, error) {
	return b.Driver.Read(b.Geometry.BaseAddr, int(b.Geometry.Size()))
}

// Write delegates directly to the driver; the target region must already
// be erased (all 0xFF), per spec.md §4.5.
func (b *Base) Write(addr uint32, data []byte) error {
	return b.Driver.Write(addr, data)
}

const trimChunk = 64

// trimTrailingFF drops trailing runs of 0xFF in chunks of 64 bytes
// (spec.md §4.5's 64-byte trim), rounded up to a multiple of the device's
// program granule, then pads the remainder up to the granule with zero
// bytes, since writes must land on granule-aligned boundaries (spec.md §9
// bullet 5). A block left entirely 0xFF trims to zero length and is not
// padded -- it needs no write at all.
func trimTrailingFF(data []byte, granule int) []byte {
	chunk := trimChunk
	if rem := chunk % granule; rem != 0 {
		chunk += granule - rem
	}
	end := len(data)
	for end >= chunk && isAllFF(data[end-chunk:end]) {
		end -= chunk
	}
	if end == 0 {
		return nil
	}
	out := make([]byte, end)
	copy(out, data[:end])
	if rem := len(out) % granule; rem != 0 {
		out = append(out, make([]byte, granule-rem)...)
	}
	return out
}

func isAllFF(b []byte) bool {
	for _, v := range b {
		if v != 0xFF {
			return false
		}
	}
	return true
}

// BurnDV implements the erase/program/verify orchestration from spec.md
// §4.5: compact dv into sector-sized blocks, erase the touched sectors,
// write each block's trimmed contents, then verify by reading back.
func (b *Base) BurnDV(dv DV) error {
	firstBlock := b.Geometry.BaseAddr / b.Geometry.SectorSize
	bb := blockbuf.New(b.Geometry.SectorSize, firstBlock, uint32(b.Geometry.NSectors))
	for _, alp := range dv {
		bb.Write(alp.Addr, alp.Data)
	}

	blocks := bb.Blocks()
	if len(blocks) == 0 {
		return nil
	}

	mask := NewSectorMask(b.Geometry.NSectors)
	for _, blk := range blocks {
		m, err := MaskForALP(b.Geometry, blk.Addr, len(blk.Data))
		if err != nil {
			return err
		}
		mask = mask.Or(m)
	}
	if err := b.EraseSectors(mask); err != nil {
		return err
	}

	granule := b.Driver.ProgramGranule()
	trimmed := make([][]byte, len(blocks))
	for i, blk := range blocks {
		trimmed[i] = trimTrailingFF(blk.Data, granule)
		if len(trimmed[i]) == 0 {
			continue
		}
		ourutil.Reportf("  writing %7d bytes @ 0x%08x", len(trimmed[i]), blk.Addr)
		if err := b.Driver.Write(blk.Addr, trimmed[i]); err != nil {
			return err
		}
	}

	for i, blk := range blocks {
		if len(trimmed[i]) == 0 {
			continue
		}
		got, err := b.Driver.Read(blk.Addr, len(trimmed[i]))
		if err != nil {
			return err
		}
		if !bytes.Equal(got, trimmed[i]) {
			return pdberr.Errorf(pdberr.KindVerifyMismatch, "verify mismatch at 0x%08x", blk.Addr)
		}
	}
	return nil
}
