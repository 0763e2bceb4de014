// Package stm32h7 is a flash.Driver for STM32H7-family dual-bank NOR
// flash: the register window, unlock/relock discipline, erase-sector
// sequence, program, and read (spec.md §4.6). Grounded directly on
// original_source/psdb/targets/stm32h7/flash.py (FlashBank,
// UnlockedContextManager, FLASH.erase_sector/write/read) -- the spec pins
// exact register offsets and bit positions, so this is the most literal
// port in the repository.
package stm32h7

import (
	"time"

	"github.com/cesanta/psdb/mem"
	"github.com/cesanta/psdb/pdberr"
)

// Register offsets relative to a bank's base (bank_base + 0x100*bank_num,
// spec.md §4.6), matching the STM32H7 reference manual's FLASH_KEYRx/
// FLASH_CRx/FLASH_SRx/FLASH_CCRx layout.
const (
	regKEYR = 0x04
	regCR   = 0x0C
	regSR   = 0x10
	regCCR  = 0x14
)

const (
	key1 uint32 = 0x45670123
	key2 uint32 = 0xCDEF89AB

	crLock     uint32 = 1 << 0
	crPG       uint32 = 1 << 1
	crSER      uint32 = 1 << 2
	crStart    uint32 = 1 << 7
	crSNBShift        = 8

	srBusyMask  uint32 = 0x7        // BSY | QW | WBNE, bits [2:0]
	srErrorMask uint32 = 0x0FEE0000

	ccrClearErrors uint32 = 0x0FEF0000
)

// Bank drives one FLASH bank's register window.
type Bank struct {
	mem            *mem.Access
	apNum          int
	base           uint32
	num            int
	sectorsPerBank int
}

// NewBank wraps the register window at regBase for bank num.
func NewBank(m *mem.Access, apNum int, regBase uint32, num, sectorsPerBank int) *Bank {
	return &Bank{mem: m, apNum: apNum, base: regBase, num: num, sectorsPerBank: sectorsPerBank}
}

func (b *Bank) reg(offset uint32) uint32 { return b.base + offset }

func (b *Bank) readReg(offset uint32) (uint32, error) {
	return b.mem.Read32(b.reg(offset), b.apNum)
}

func (b *Bank) writeReg(offset uint32, v uint32) error {
	return b.mem.Write32(v, b.reg(offset), b.apNum)
}

// unlocked runs fn with the bank unlocked, guaranteeing relock on every
// exit path (spec.md §4.6's unlock discipline; §9 bullet 2's scoped-guard
// realization of Python's UnlockedContextManager).
func (b *Bank) unlocked(fn func() error) error {
	cr, err := b.readReg(regCR)
	if err != nil {
		return err
	}
	if cr&crLock != 0 {
		if err := b.writeReg(regKEYR, key1); err != nil {
			return err
		}
		if err := b.writeReg(regKEYR, key2); err != nil {
			return err
		}
		cr, err = b.readReg(regCR)
		if err != nil {
			return err
		}
		if cr&crLock != 0 {
			return pdberr.Errorf(pdberr.KindFlashError, "bank %d: KEYR unlock sequence failed, CR.LOCK still set", b.num)
		}
	}
	if cr&crPG == 0 {
		if err := b.writeReg(regCR, cr|crPG); err != nil {
			return err
		}
	}

	ferr := fn()

	if cr, rerr := b.readReg(regCR); rerr == nil {
		b.writeReg(regCR, (cr&^crPG)|crLock)
	}
	return ferr
}

// waitIdle polls SR until BSY/QW/WBNE are clear, then checks for error
// bits (spec.md §4.6). No internal deadline, per spec.md §5 -- callers
// that want a bound wrap the call themselves.
func (b *Bank) waitIdle() error {
	for {
		sr, err := b.readReg(regSR)
		if err != nil {
			return err
		}
		if sr&srBusyMask == 0 {
			if sr&srErrorMask != 0 {
				return pdberr.Errorf(pdberr.KindFlashError, "bank %d: SR error bits set: 0x%08x", b.num, sr)
			}
			return nil
		}
		time.Sleep(time.Millisecond)
	}
}

// eraseSector erases sector localN, 0-based within this bank (spec.md
// §4.6's erase-sector sequence: clear errors, set SNB/START/SER in one
// write, poll idle).
func (b *Bank) eraseSector(localN int) error {
	return b.unlocked(func() error {
		if err := b.writeReg(regCCR, ccrClearErrors); err != nil {
			return err
		}
		cr, err := b.readReg(regCR)
		if err != nil {
			return err
		}
		cr |= uint32(localN) << crSNBShift
		cr |= crStart
		cr |= crSER
		if err := b.writeReg(regCR, cr); err != nil {
			return err
		}
		return b.waitIdle()
	})
}
