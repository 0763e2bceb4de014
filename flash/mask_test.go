package flash

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testGeometry() Geometry {
	return Geometry{
		BaseAddr:       0x08000000,
		SectorSize:     128 * 1024,
		NSectors:       16,
		SectorsPerBank: 8,
		NBanks:         2,
	}
}

func TestMaskForALP(t *testing.T) {
	g := testGeometry()

	t.Run("zero length", func(t *testing.T) {
		m, err := MaskForALP(g, g.BaseAddr, 0)
		require.NoError(t, err)
		assert.Equal(t, uint32(0), m.Uint32())
	})

	t.Run("one byte", func(t *testing.T) {
		m, err := MaskForALP(g, g.BaseAddr, 1)
		require.NoError(t, err)
		assert.Equal(t, uint32(0b1), m.Uint32())
	})

	t.Run("straddles sector boundary", func(t *testing.T) {
		m, err := MaskForALP(g, g.BaseAddr+g.SectorSize-1, 2)
		require.NoError(t, err)
		assert.Equal(t, uint32(0b11), m.Uint32())
	})

	t.Run("out of range", func(t *testing.T) {
		_, err := MaskForALP(g, g.BaseAddr+g.Size()-1, 2)
		assert.Error(t, err)
	})

	t.Run("popcount equals ceil((addr%S+len)/S) and is contiguous", func(t *testing.T) {
		addr := g.BaseAddr + g.SectorSize + 100
		length := int(2*g.SectorSize) - 50
		m, err := MaskForALP(g, addr, length)
		require.NoError(t, err)

		offset := addr % g.SectorSize
		want := (int(offset) + length + int(g.SectorSize) - 1) / int(g.SectorSize)

		popcount, firstSet, lastSet := 0, -1, -1
		for i := 0; i < m.N(); i++ {
			if m.Get(i) {
				popcount++
				if firstSet == -1 {
					firstSet = i
				}
				lastSet = i
			}
		}
		assert.Equal(t, want, popcount)
		assert.Equal(t, popcount, lastSet-firstSet+1, "set bits must form a contiguous run")
	})
}

func TestDVOverlapsRegion(t *testing.T) {
	dv := DV{{Addr: 5, Data: []byte("12345")}}

	for start := uint32(4); start <= 9; start++ {
		assert.True(t, DVOverlapsRegion(dv, start, 2), "start=%d", start)
	}
	assert.False(t, DVOverlapsRegion(dv, 3, 2))
	assert.False(t, DVOverlapsRegion(dv, 10, 2))
}
