package elf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cesanta/psdb/flash"
)

type fakeSegment struct {
	typ            uint32
	paddr          uint32
	memSize        uint32
	data           []byte
	errOnReadData  error
}

func (s *fakeSegment) Type() uint32      { return s.typ }
func (s *fakeSegment) PAddr() uint32     { return s.paddr }
func (s *fakeSegment) MemSize() uint32   { return s.memSize }
func (s *fakeSegment) FileSize() uint32  { return uint32(len(s.data)) }
func (s *fakeSegment) Data() ([]byte, error) {
	if s.errOnReadData != nil {
		return nil, s.errOnReadData
	}
	return s.data, nil
}

type fakeSegments struct{ segs []Segment }

func (f *fakeSegments) Segments() []Segment { return f.segs }

// fakeDriver is a trivial in-memory flash.Driver, just enough to let
// flash.Base.BurnDV run end to end against BurnELF's output.
type fakeDriver struct {
	geometry flash.Geometry
	mem      map[uint32]byte
}

func newFakeDriver() *fakeDriver {
	return &fakeDriver{
		geometry: flash.Geometry{BaseAddr: 0x08000000, SectorSize: 0x1000, NSectors: 16},
		mem:      make(map[uint32]byte),
	}
}

func (d *fakeDriver) EraseSector(n int) error {
	base := d.geometry.BaseAddr + uint32(n)*d.geometry.SectorSize
	for i := uint32(0); i < d.geometry.SectorSize; i++ {
		d.mem[base+i] = 0xFF
	}
	return nil
}

func (d *fakeDriver) Write(addr uint32, data []byte) error {
	for i, b := range data {
		d.mem[addr+uint32(i)] = b
	}
	return nil
}

func (d *fakeDriver) Read(addr uint32, length int) ([]byte, error) {
	out := make([]byte, length)
	for i := range out {
		out[i] = d.mem[addr+uint32(i)]
	}
	return out, nil
}

func (d *fakeDriver) ProgramGranule() int { return 1 }

func TestBurnELFSkipsNonLoadSegments(t *testing.T) {
	drv := newFakeDriver()
	base := &flash.Base{Geometry: drv.geometry, Driver: drv}

	segs := &fakeSegments{segs: []Segment{
		&fakeSegment{typ: 2, paddr: 0x08000000, memSize: 4, data: []byte{1, 2, 3, 4}}, // PT_NOTE, skipped
		&fakeSegment{typ: PTLoad, paddr: 0x08000100, memSize: 4, data: []byte{0xAA, 0xBB, 0xCC, 0xDD}},
	}}

	require.NoError(t, BurnELF(base, segs))

	got, err := drv.Read(0x08000100, 4)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xAA, 0xBB, 0xCC, 0xDD}, got)

	// The PT_NOTE segment's region was never written; it stays erased.
	got, err = drv.Read(0x08000000, 4)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xFF, 0xFF, 0xFF, 0xFF}, got)
}

func TestBurnELFZeroPadsBSS(t *testing.T) {
	drv := newFakeDriver()
	base := &flash.Base{Geometry: drv.geometry, Driver: drv}

	segs := &fakeSegments{segs: []Segment{
		&fakeSegment{typ: PTLoad, paddr: 0x08000200, memSize: 8, data: []byte{1, 2, 3, 4}},
	}}

	require.NoError(t, BurnELF(base, segs))

	got, err := drv.Read(0x08000200, 8)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3, 4, 0, 0, 0, 0}, got)
}

func TestBurnELFPropagatesDataError(t *testing.T) {
	drv := newFakeDriver()
	base := &flash.Base{Geometry: drv.geometry, Driver: drv}

	segs := &fakeSegments{segs: []Segment{
		&fakeSegment{typ: PTLoad, paddr: 0x08000000, memSize: 4, errOnReadData: assert.AnError},
	}}

	assert.Error(t, BurnELF(base, segs))
}
