package flash

import (
	"github.com/boljen/go-bitmap"

	"github.com/cesanta/psdb/pdberr"
)

// SectorMask is a bitmask of a device's sectors that need erasing. Backed
// by bitmap.Bitmap rather than a bare integer (spec.md §4.5 DOMAIN STACK
// note) since nsectors can exceed a native machine word on larger
// dual-bank layouts; Uint32 is a convenience for the common case.
type SectorMask struct {
	bm bitmap.Bitmap
	n  int
}

// NewSectorMask returns an all-clear mask over n sectors.
func NewSectorMask(n int) SectorMask {
	return SectorMask{bm: bitmap.New(n), n: n}
}

func (m SectorMask) N() int { return m.n }

func (m SectorMask) Set(i int)        { m.bm.Set(i, true) }
func (m SectorMask) Get(i int) bool   { return m.bm.Get(i) }
func (m SectorMask) Clear(i int)      { m.bm.Set(i, false) }

// Or returns the bitwise union of m and other; both must share N().
func (m SectorMask) Or(other SectorMask) SectorMask {
	out := NewSectorMask(m.n)
	for i := 0; i < m.n; i++ {
		if m.Get(i) || other.Get(i) {
			out.Set(i)
		}
	}
	return out
}

// Uint32 packs the mask into a uint32, valid whenever N() <= 32 (true for
// every concrete driver in this repository; see spec.md §4.5 DOMAIN STACK
// note).
func (m SectorMask) Uint32() uint32 {
	var v uint32
	limit := m.n
	if limit > 32 {
		limit = 32
	}
	for i := 0; i < limit; i++ {
		if m.Get(i) {
			v |= 1 << uint(i)
		}
	}
	return v
}

func roundUp(x, align uint32) uint32 {
	return ((x + align - 1) / align) * align
}

// MaskForALP computes the sector mask an ALP at (addr, length) touches,
// rounding the start down and the end up to sector boundaries (spec.md
// §4.5's mask_for_alp algorithm).
func MaskForALP(g Geometry, addr uint32, length int) (SectorMask, error) {
	begin := addr &^ (g.SectorSize - 1)
	end := roundUp(addr+uint32(length), g.SectorSize)
	firstSector := int((begin - g.BaseAddr) / g.SectorSize)
	count := int((end - begin) / g.SectorSize)

	if firstSector < 0 || firstSector+count > g.NSectors {
		return SectorMask{}, pdberr.Errorf(pdberr.KindRange,
			"mask_for_alp: addr=0x%08x length=%d outside flash range [0x%08x, 0x%08x)",
			addr, length, g.BaseAddr, g.BaseAddr+g.Size())
	}

	m := NewSectorMask(g.NSectors)
	for i := firstSector; i < firstSector+count; i++ {
		m.Set(i)
	}
	return m, nil
}
