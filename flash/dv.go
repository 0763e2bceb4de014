package flash

import "github.com/cesanta/psdb/pdberr"

// ALP is an address-length pair: an address plus its payload (spec.md
// §3). Invariant for stored ALPs: len(Data) > 0.
type ALP struct {
	Addr uint32
	Data []byte
}

// DV is an ordered data vector: the unit burn_dv and the ELF-to-DV bridge
// both consume (spec.md §3).
type DV []ALP

// DVOverlapsRegion reports whether any ALP in dv overlaps the byte range
// [addr, addr+size) (spec.md §8 invariant 2): true iff there exists an ALP
// with addr < alp.Addr+len(alp.Data) && addr+size > alp.Addr.
func DVOverlapsRegion(dv DV, addr uint32, size uint32) bool {
	for _, alp := range dv {
		alpEnd := alp.Addr + uint32(len(alp.Data))
		regionEnd := addr + size
		if addr < alpEnd && regionEnd > alp.Addr {
			return true
		}
	}
	return false
}

// MergeDVs merges two externally supplied data vectors, appending rhs's
// ALPs after lhs's (spec.md §7's dv-overlap kind). Unlike BurnDV's
// last-writer-wins compaction of a single caller's DV, this rejects the
// input outright the moment an rhs ALP overlaps anything already in the
// merged vector, rather than letting the later write silently win.
func MergeDVs(lhs, rhs DV) (DV, error) {
	dv := make(DV, len(lhs), len(lhs)+len(rhs))
	copy(dv, lhs)
	for _, alp := range rhs {
		if DVOverlapsRegion(dv, alp.Addr, uint32(len(alp.Data))) {
			return nil, pdberr.Errorf(pdberr.KindDVOverlap, "ALP(0x%08x, %d) overlaps", alp.Addr, len(alp.Data))
		}
		dv = append(dv, alp)
	}
	return dv, nil
}
