package stm32h7

import (
	"github.com/cesanta/psdb/flash"
	"github.com/cesanta/psdb/mem"
	"github.com/cesanta/psdb/pdberr"
)

const (
	sectorSize     uint32 = 128 * 1024
	programGranule        = 32
	bankRegStride  uint32 = 0x100
)

// Flash is an STM32H7 dual-bank NOR flash driver instance implementing
// flash.Driver (spec.md §4.6). Geometry: sector_size = 128 KiB; nbanks = 1
// if flash_size == 128 KiB else 2; sectors_per_bank = nsectors / nbanks.
type Flash struct {
	geometry flash.Geometry
	mem      *mem.Access
	apNum    int
	banks    []*Bank
}

// New builds a driver for a device of flashSize bytes mapped at baseAddr,
// with bank 0's register window at regBase (subsequent banks at
// regBase + 0x100*bankNum, spec.md §4.6).
func New(m *mem.Access, apNum int, baseAddr, flashSize, regBase uint32) *Flash {
	nbanks := 1
	if flashSize != sectorSize {
		nbanks = 2
	}
	nsectors := int(flashSize / sectorSize)
	sectorsPerBank := nsectors / nbanks

	banks := make([]*Bank, nbanks)
	for i := range banks {
		banks[i] = NewBank(m, apNum, regBase+uint32(i)*bankRegStride, i, sectorsPerBank)
	}

	return &Flash{
		geometry: flash.Geometry{
			BaseAddr:       baseAddr,
			SectorSize:     sectorSize,
			NSectors:       nsectors,
			SectorsPerBank: sectorsPerBank,
			NBanks:         nbanks,
		},
		mem:   m,
		apNum: apNum,
		banks: banks,
	}
}

// Geometry exposes the derived layout, for constructing a flash.Base.
func (f *Flash) Geometry() flash.Geometry { return f.geometry }

func (f *Flash) ProgramGranule() int { return programGranule }

func (f *Flash) EraseSector(n int) error {
	if n < 0 || n >= f.geometry.NSectors {
		return pdberr.Errorf(pdberr.KindRange, "sector %d out of range [0, %d)", n, f.geometry.NSectors)
	}
	bankNum := n / f.geometry.SectorsPerBank
	localN := n % f.geometry.SectorsPerBank
	return f.banks[bankNum].eraseSector(localN)
}

// Write requires target halted (the caller's responsibility per spec.md
// §4.6), addr % 32 == 0, len(data) % 32 == 0, and the write lying wholly
// inside one bank and inside flash.
func (f *Flash) Write(addr uint32, data []byte) error {
	if addr%programGranule != 0 {
		return pdberr.Errorf(pdberr.KindAlignment, "write addr 0x%08x not %d-byte aligned", addr, programGranule)
	}
	if len(data)%programGranule != 0 {
		return pdberr.Errorf(pdberr.KindAlignment, "write length %d not a multiple of %d", len(data), programGranule)
	}
	bank, err := f.bankFor(addr, len(data))
	if err != nil {
		return err
	}
	return bank.unlocked(func() error {
		if err := bank.writeReg(regCCR, ccrClearErrors); err != nil {
			return err
		}
		if err := f.mem.WriteBulk(data, addr, f.apNum); err != nil {
			return err
		}
		return bank.waitIdle()
	})
}

// Read performs a plain AHB bulk read; flash need not be unlocked to read.
func (f *Flash) Read(addr uint32, length int) ([]byte, error) {
	return f.mem.ReadBulk(addr, length, f.apNum)
}

func (f *Flash) bankSize() uint32 {
	return f.geometry.SectorSize * uint32(f.geometry.SectorsPerBank)
}

func (f *Flash) bankFor(addr uint32, length int) (*Bank, error) {
	if addr < f.geometry.BaseAddr || addr-f.geometry.BaseAddr+uint32(length) > f.geometry.Size() {
		return nil, pdberr.Errorf(pdberr.KindRange, "write at 0x%08x length %d outside flash", addr, length)
	}
	offset := addr - f.geometry.BaseAddr
	bankNum := offset / f.bankSize()
	if offset+uint32(length) > (bankNum+1)*f.bankSize() {
		return nil, pdberr.Errorf(pdberr.KindRange, "write at 0x%08x length %d crosses bank boundary", addr, length)
	}
	return f.banks[bankNum], nil
}
