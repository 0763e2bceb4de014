// Package accessport models the ARM CoreSight Access Ports the memory
// layer falls back to when it cannot safely offload a transfer to the
// probe (spec.md §4.4): AHB-APs target system memory, APB-APs target
// debug peripherals, and any other AP type is driven the same explicit
// way APB-APs are, since only AHB-APs are ever eligible for probe offload.
//
// Discovery of which AP sits at which index is a CoreSight ROM-table
// concern and is explicitly out of this core's scope (spec.md §1); this
// package only supplies the AP type itself and its register-level memory
// access, grounded on stlink.py's self.aps[ap_num]._read_32(addr)-style
// fallback path.
package accessport

import (
	"encoding/binary"

	"github.com/cesanta/psdb/pdberr"
)

// Kind distinguishes AHB-APs (eligible for probe offload) from every other
// AP type (spec.md §3's AP variant).
type Kind int

const (
	KindAHB Kind = iota
	KindAPB
	KindOther
)

// AP is the abstraction the memory layer drives when offload is unsafe.
// Every method performs its access via explicit MEM-AP register writes
// through the probe, never via the probe's bulk commands.
type AP interface {
	Kind() Kind
	Num() int

	Read8(addr uint32) (byte, error)
	Read16(addr uint32) (uint16, error)
	Read32(addr uint32) (uint32, error)
	Write8(v byte, addr uint32) error
	Write16(v uint16, addr uint32) error
	Write32(v uint32, addr uint32) error
	ReadBulk(addr uint32, size int) ([]byte, error)
	WriteBulk(data []byte, addr uint32) error
}

// MEM-AP register offsets within the AP's own register bank (ARM ADIv5),
// driven here via probe.ReadAPReg/WriteAPReg rather than the probe's bulk
// memory commands -- this is the architecture's fixed register layout, not
// an example-repo convention.
const (
	regCSW = 0x00
	regTAR = 0x04
	regDRW = 0x0C
)

// CSW.Size field values (bits [2:0]); CSW.AddrInc is left at "increment
// single" (bits [5:4] = 0b01) for every access here since this package
// never streams more than one transfer element per register dance.
const (
	cswSizeByte byte = 0b000
	cswSizeHalf byte = 0b001
	cswSizeWord byte = 0b010
	cswAddrIncSingle = 1 << 4
)

// ProbeOps is the subset of *probe.Probe a RegisterAP drives: plain AP
// register read/write. Accepting this narrow interface rather than
// *probe.Probe directly keeps the register-level framing logic (CSW/TAR
// setup, byte/halfword lane selection) testable without a real USB probe;
// *probe.Probe satisfies it with no adaptation.
type ProbeOps interface {
	ReadAPReg(apsel byte, addr uint32) (uint32, error)
	WriteAPReg(apsel byte, addr, value uint32) error
}

// RegisterAP drives a single AP entirely through ReadAPReg/WriteAPReg. It
// is the only AP implementation in this package; AHB-APs only ever reach
// it when a caller explicitly wants a non-offloaded access (the mem
// package itself never calls into an AHB RegisterAP -- it offloads to the
// probe instead, per the Kind() check in mem.Access).
type RegisterAP struct {
	probe ProbeOps
	num   int
	kind  Kind
}

// NewRegisterAP wraps probe's AP register commands as an AP of the given
// kind at the given AP-select index.
func NewRegisterAP(p ProbeOps, num int, kind Kind) *RegisterAP {
	return &RegisterAP{probe: p, num: num, kind: kind}
}

func (a *RegisterAP) Kind() Kind { return a.kind }
func (a *RegisterAP) Num() int   { return a.num }

func (a *RegisterAP) setCSW(size byte) error {
	return a.probe.WriteAPReg(byte(a.num), regCSW, uint32(size)|cswAddrIncSingle)
}

func (a *RegisterAP) Read32(addr uint32) (uint32, error) {
	if addr%4 != 0 {
		return 0, pdberr.Errorf(pdberr.KindAlignment, "AP read32: addr 0x%08x not 4-byte aligned", addr)
	}
	if err := a.setCSW(cswSizeWord); err != nil {
		return 0, err
	}
	if err := a.probe.WriteAPReg(byte(a.num), regTAR, addr); err != nil {
		return 0, err
	}
	return a.probe.ReadAPReg(byte(a.num), regDRW)
}

func (a *RegisterAP) Write32(v uint32, addr uint32) error {
	if addr%4 != 0 {
		return pdberr.Errorf(pdberr.KindAlignment, "AP write32: addr 0x%08x not 4-byte aligned", addr)
	}
	if err := a.setCSW(cswSizeWord); err != nil {
		return err
	}
	if err := a.probe.WriteAPReg(byte(a.num), regTAR, addr); err != nil {
		return err
	}
	return a.probe.WriteAPReg(byte(a.num), regDRW, v)
}

func (a *RegisterAP) Read16(addr uint32) (uint16, error) {
	if addr%2 != 0 {
		return 0, pdberr.Errorf(pdberr.KindAlignment, "AP read16: addr 0x%08x not 2-byte aligned", addr)
	}
	if err := a.setCSW(cswSizeHalf); err != nil {
		return 0, err
	}
	if err := a.probe.WriteAPReg(byte(a.num), regTAR, addr); err != nil {
		return 0, err
	}
	v, err := a.probe.ReadAPReg(byte(a.num), regDRW)
	if err != nil {
		return 0, err
	}
	// DRW mirrors the addressed halfword into the correspondingly-aligned
	// lane of the 32-bit register.
	if addr&2 != 0 {
		return uint16(v >> 16), nil
	}
	return uint16(v), nil
}

func (a *RegisterAP) Write16(v uint16, addr uint32) error {
	if addr%2 != 0 {
		return pdberr.Errorf(pdberr.KindAlignment, "AP write16: addr 0x%08x not 2-byte aligned", addr)
	}
	if err := a.setCSW(cswSizeHalf); err != nil {
		return err
	}
	if err := a.probe.WriteAPReg(byte(a.num), regTAR, addr); err != nil {
		return err
	}
	word := uint32(v)
	if addr&2 != 0 {
		word <<= 16
	}
	return a.probe.WriteAPReg(byte(a.num), regDRW, word)
}

func (a *RegisterAP) Read8(addr uint32) (byte, error) {
	if err := a.setCSW(cswSizeByte); err != nil {
		return 0, err
	}
	if err := a.probe.WriteAPReg(byte(a.num), regTAR, addr); err != nil {
		return 0, err
	}
	v, err := a.probe.ReadAPReg(byte(a.num), regDRW)
	if err != nil {
		return 0, err
	}
	return byte(v >> ((addr & 3) * 8)), nil
}

func (a *RegisterAP) Write8(v byte, addr uint32) error {
	if err := a.setCSW(cswSizeByte); err != nil {
		return err
	}
	if err := a.probe.WriteAPReg(byte(a.num), regTAR, addr); err != nil {
		return err
	}
	shift := (addr & 3) * 8
	return a.probe.WriteAPReg(byte(a.num), regDRW, uint32(v)<<shift)
}

// ReadBulk/WriteBulk perform a register-by-register transfer one 32-bit
// word at a time (falling back to byte/halfword ops for any unaligned
// edge), since this AP is never offloaded to the probe's bulk commands.
func (a *RegisterAP) ReadBulk(addr uint32, size int) ([]byte, error) {
	out := make([]byte, 0, size)
	for len(out) < size {
		remaining := size - len(out)
		cur := addr + uint32(len(out))
		switch {
		case cur%4 == 0 && remaining >= 4:
			v, err := a.Read32(cur)
			if err != nil {
				return nil, err
			}
			var b [4]byte
			binary.LittleEndian.PutUint32(b[:], v)
			out = append(out, b[:]...)
		case cur%2 == 0 && remaining >= 2:
			v, err := a.Read16(cur)
			if err != nil {
				return nil, err
			}
			var b [2]byte
			binary.LittleEndian.PutUint16(b[:], v)
			out = append(out, b[:]...)
		default:
			v, err := a.Read8(cur)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
	}
	return out, nil
}

func (a *RegisterAP) WriteBulk(data []byte, addr uint32) error {
	for i := 0; i < len(data); {
		cur := addr + uint32(i)
		remaining := len(data) - i
		switch {
		case cur%4 == 0 && remaining >= 4:
			if err := a.Write32(binary.LittleEndian.Uint32(data[i:i+4]), cur); err != nil {
				return err
			}
			i += 4
		case cur%2 == 0 && remaining >= 2:
			if err := a.Write16(binary.LittleEndian.Uint16(data[i:i+2]), cur); err != nil {
				return err
			}
			i += 2
		default:
			if err := a.Write8(data[i], cur); err != nil {
				return err
			}
			i++
		}
	}
	return nil
}
