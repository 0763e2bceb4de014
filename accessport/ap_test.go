package accessport

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeProbeOps is a tiny in-memory AP register file: reg[0]=CSW, reg[4]=TAR,
// reg[0xC]=DRW, exactly mirroring the three MEM-AP registers RegisterAP
// drives. A DRW write updates only the byte lanes selected by CSW.Size and
// TAR, as a MEM-AP does for byte and halfword accesses.
type fakeProbeOps struct {
	csw, tar, drw uint32
	mem           map[uint32]uint32
}

func newFakeProbeOps() *fakeProbeOps {
	return &fakeProbeOps{mem: make(map[uint32]uint32)}
}

func (f *fakeProbeOps) ReadAPReg(apsel byte, addr uint32) (uint32, error) {
	switch addr {
	case regCSW:
		return f.csw, nil
	case regTAR:
		return f.tar, nil
	case regDRW:
		return f.mem[f.tar&^3], nil
	}
	return 0, nil
}

func (f *fakeProbeOps) WriteAPReg(apsel byte, addr, value uint32) error {
	switch addr {
	case regCSW:
		f.csw = value
	case regTAR:
		f.tar = value
	case regDRW:
		mask := uint32(0xFFFFFFFF)
		switch byte(f.csw & 0x7) {
		case cswSizeByte:
			mask = 0xFF << ((f.tar & 3) * 8)
		case cswSizeHalf:
			mask = 0xFFFF << ((f.tar & 2) * 8)
		}
		word := f.tar &^ 3
		f.mem[word] = f.mem[word]&^mask | value&mask
	}
	return nil
}

func TestRegisterAPWord(t *testing.T) {
	ops := newFakeProbeOps()
	ap := NewRegisterAP(ops, 0, KindAPB)

	require.NoError(t, ap.Write32(0xDEADBEEF, 0x1000))
	v, err := ap.Read32(0x1000)
	require.NoError(t, err)
	assert.Equal(t, uint32(0xDEADBEEF), v)
}

func TestRegisterAPHalfword(t *testing.T) {
	ops := newFakeProbeOps()
	ap := NewRegisterAP(ops, 0, KindAPB)

	require.NoError(t, ap.Write16(0xBEEF, 0x1002))
	v, err := ap.Read16(0x1002)
	require.NoError(t, err)
	assert.Equal(t, uint16(0xBEEF), v)
}

func TestRegisterAPByte(t *testing.T) {
	ops := newFakeProbeOps()
	ap := NewRegisterAP(ops, 0, KindAPB)

	require.NoError(t, ap.Write8(0xAB, 0x1001))
	v, err := ap.Read8(0x1001)
	require.NoError(t, err)
	assert.Equal(t, byte(0xAB), v)
}

func TestRegisterAPBulkRoundTrip(t *testing.T) {
	ops := newFakeProbeOps()
	ap := NewRegisterAP(ops, 0, KindOther)

	data := []byte{1, 2, 3, 4, 5, 6, 7}
	require.NoError(t, ap.WriteBulk(data, 0x2000))

	got, err := ap.ReadBulk(0x2000, len(data))
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestRegisterAPAlignmentErrors(t *testing.T) {
	ops := newFakeProbeOps()
	ap := NewRegisterAP(ops, 0, KindAPB)

	_, err := ap.Read32(1)
	assert.Error(t, err)
	_, err = ap.Read16(1)
	assert.Error(t, err)
}
