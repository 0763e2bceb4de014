package blockbuf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteWithinRange(t *testing.T) {
	d := New(16, 0, 4)
	d.Write(5, []byte("ab"))

	blocks := d.Blocks()
	require.Len(t, blocks, 1)
	assert.Equal(t, uint32(0), blocks[0].Addr)
	assert.Equal(t, byte('a'), blocks[0].Data[5])
	assert.Equal(t, byte('b'), blocks[0].Data[6])
	assert.Equal(t, byte(0xFF), blocks[0].Data[0])
}

func TestWriteSpansBlocks(t *testing.T) {
	d := New(4, 0, 4)
	d.Write(2, []byte("abcdef"))

	blocks := d.Blocks()
	require.Len(t, blocks, 2)
	assert.Equal(t, []byte{0xFF, 0xFF, 'a', 'b'}, blocks[0].Data)
	assert.Equal(t, []byte{'c', 'd', 'e', 'f'}, blocks[1].Data)
}

func TestWriteOutOfRangeDropped(t *testing.T) {
	d := New(16, 0, 1)
	d.Write(16, []byte("xyz"))
	assert.Empty(t, d.Blocks())
}

func TestLaterWriteOverwritesEarlier(t *testing.T) {
	d := New(16, 0, 1)
	d.Write(0, []byte("AAAA"))
	d.Write(1, []byte("B"))

	blocks := d.Blocks()
	require.Len(t, blocks, 1)
	assert.Equal(t, []byte("ABAA"), blocks[0].Data[:4])
}
