package stm32h7

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlashGeometrySingleBank(t *testing.T) {
	chip := newFakeChip(0x52002000)
	m := newTestAccess(chip)
	f := New(m, 0, 0x08000000, 128*1024, 0x52002000)

	g := f.Geometry()
	assert.Equal(t, 1, g.NBanks)
	assert.Equal(t, 1, g.SectorsPerBank)
	assert.Equal(t, uint32(128*1024), g.Size())
}

func TestFlashGeometryDualBank(t *testing.T) {
	chip := newFakeChip(0x52002000)
	m := newTestAccess(chip)
	f := New(m, 0, 0x08000000, 2*1024*1024, 0x52002000)

	g := f.Geometry()
	assert.Equal(t, 2, g.NBanks)
	assert.Equal(t, 8, g.SectorsPerBank)
	assert.Equal(t, 16, g.NSectors)
}

func TestFlashEraseSectorDispatchesToBank(t *testing.T) {
	chip := newFakeChip(0x52002000)
	m := newTestAccess(chip)
	f := New(m, 0, 0x08000000, 2*1024*1024, 0x52002000)

	// Sector 9 is local sector 1 of bank 1, whose register window sits at
	// regBase + 0x100.
	require.NoError(t, f.EraseSector(9))
	assert.Equal(t, []eraseEvent{{1, 1}}, chip.eraseLog)
}

func TestFlashEraseSectorOutOfRange(t *testing.T) {
	chip := newFakeChip(0x52002000)
	m := newTestAccess(chip)
	f := New(m, 0, 0x08000000, 128*1024, 0x52002000)

	err := f.EraseSector(100)
	assert.Error(t, err)
}

func TestFlashWriteReadRoundTrip(t *testing.T) {
	chip := newFakeChip(0x52002000)
	m := newTestAccess(chip)
	f := New(m, 0, 0x08000000, 128*1024, 0x52002000)

	data := make([]byte, programGranule)
	for i := range data {
		data[i] = byte(i)
	}
	require.NoError(t, f.Write(0x08000000, data))

	got, err := f.Read(0x08000000, len(data))
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestFlashWriteRejectsMisalignedAddr(t *testing.T) {
	chip := newFakeChip(0x52002000)
	m := newTestAccess(chip)
	f := New(m, 0, 0x08000000, 128*1024, 0x52002000)

	err := f.Write(0x08000001, make([]byte, programGranule))
	assert.Error(t, err)
}

func TestFlashWriteRejectsBankCrossing(t *testing.T) {
	chip := newFakeChip(0x52002000)
	m := newTestAccess(chip)
	f := New(m, 0, 0x08000000, 2*1024*1024, 0x52002000)

	bankSize := f.bankSize()
	data := make([]byte, 2*programGranule)
	err := f.Write(0x08000000+bankSize-uint32(programGranule), data)
	assert.Error(t, err)
}
