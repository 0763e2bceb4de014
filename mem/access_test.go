package mem

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cesanta/psdb/accessport"
)

// fakeProbe records every offloaded read it receives, so tests can assert
// no probe bulk command was issued on a non-AHB AP (spec.md §8 invariant
// 6), and can verify 1 KiB window splitting (spec.md §8 scenario 5).
type fakeProbe struct {
	mem        []byte // backing store, indexed by addr modulo its length
	read32Log  []uint32
	bulkReads  []struct{ addr uint32; n int } // n is the transfer length in bytes
}

func newFakeProbe(size int) *fakeProbe {
	m := make([]byte, size)
	for i := range m {
		m[i] = byte(i)
	}
	return &fakeProbe{mem: m}
}

func (f *fakeProbe) Read32(addr uint32, apNum int) (uint32, error) {
	f.read32Log = append(f.read32Log, addr)
	return 0, nil
}
func (f *fakeProbe) Write32(v, addr uint32, apNum int) error { return nil }

func (f *fakeProbe) BulkRead8(addr uint32, n int, apNum int) ([]byte, error) {
	f.bulkReads = append(f.bulkReads, struct {
		addr uint32
		n    int
	}{addr, n})
	off := addr % uint32(len(f.mem))
	return f.mem[off : off+uint32(n)], nil
}
func (f *fakeProbe) BulkRead16(addr uint32, n int, apNum int) ([]byte, error) {
	f.bulkReads = append(f.bulkReads, struct {
		addr uint32
		n    int
	}{addr, n * 2})
	off := addr % uint32(len(f.mem))
	return f.mem[off : off+uint32(n)*2], nil
}
func (f *fakeProbe) BulkRead32(addr uint32, n int, apNum int) ([]byte, error) {
	f.bulkReads = append(f.bulkReads, struct {
		addr uint32
		n    int
	}{addr, n * 4})
	off := addr % uint32(len(f.mem))
	return f.mem[off : off+uint32(n)*4], nil
}
func (f *fakeProbe) BulkWrite8(data []byte, addr uint32, apNum int) error  { return nil }
func (f *fakeProbe) BulkWrite16(data []byte, addr uint32, apNum int) error { return nil }
func (f *fakeProbe) BulkWrite32(data []byte, addr uint32, apNum int) error { return nil }

// fakeAP is an AP of whatever Kind a test gives it. Its methods return
// zero values and record that they were called, to confirm whether the
// via-AP path was taken.
type fakeAP struct {
	kind    accessport.Kind
	called  bool
}

func (a *fakeAP) Kind() accessport.Kind { return a.kind }
func (a *fakeAP) Num() int              { return 0 }
func (a *fakeAP) Read8(addr uint32) (byte, error) { a.called = true; return 0, nil }
func (a *fakeAP) Read16(addr uint32) (uint16, error) { a.called = true; return 0, nil }
func (a *fakeAP) Read32(addr uint32) (uint32, error) { a.called = true; return 0, nil }
func (a *fakeAP) Write8(v byte, addr uint32) error   { a.called = true; return nil }
func (a *fakeAP) Write16(v uint16, addr uint32) error { a.called = true; return nil }
func (a *fakeAP) Write32(v uint32, addr uint32) error { a.called = true; return nil }
func (a *fakeAP) ReadBulk(addr uint32, size int) ([]byte, error) {
	a.called = true
	return make([]byte, size), nil
}
func (a *fakeAP) WriteBulk(data []byte, addr uint32) error { a.called = true; return nil }

func TestOffloadDecisionSkipsProbeForNonAHB(t *testing.T) {
	fp := newFakeProbe(4096)
	ap := &fakeAP{kind: accessport.KindAPB}
	a := New(fp, map[int]accessport.AP{0: ap})

	_, err := a.ReadBulk(0x1000, 64, 0)
	require.NoError(t, err)

	assert.True(t, ap.called, "via-AP path should have been used")
	assert.Empty(t, fp.bulkReads, "no probe bulk command may be issued on a non-AHB AP")
}

func TestBulkReadSplitsAt1KiBWindow(t *testing.T) {
	fp := newFakeProbe(4096)
	ap := &fakeAP{kind: accessport.KindAHB}
	a := New(fp, map[int]accessport.AP{0: ap})

	_, err := a.ReadBulk(0x200003F0, 0x40, 0)
	require.NoError(t, err)

	require.NotEmpty(t, fp.bulkReads)
	for _, r := range fp.bulkReads {
		start := r.addr
		end := r.addr + uint32(r.n) // exclusive; n is recorded in bytes
		assert.True(t, start/1024 == (end-1)/1024, "read at 0x%08x len %d crosses a 1 KiB window", r.addr, r.n)
	}

	// The window boundary at 0x20000400 must separate two groups of reads:
	// nothing crosses from below 0x400 to at/above it within one call.
	var sawBelow, sawAtOrAbove bool
	for _, r := range fp.bulkReads {
		if r.addr < 0x20000400 {
			sawBelow = true
		} else {
			sawAtOrAbove = true
		}
	}
	assert.True(t, sawBelow)
	assert.True(t, sawAtOrAbove)
}

func TestRead32RequiresAlignment(t *testing.T) {
	fp := newFakeProbe(16)
	ap := &fakeAP{kind: accessport.KindAHB}
	a := New(fp, map[int]accessport.AP{0: ap})

	_, err := a.Read32(1, 0)
	assert.Error(t, err)
}

func TestUnknownAPFailsClosed(t *testing.T) {
	a := New(newFakeProbe(16), map[int]accessport.AP{})
	_, err := a.Read32(0, 5)
	assert.Error(t, err)
}
