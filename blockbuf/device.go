// Package blockbuf provides a sparse, block-indexed RAM buffer used to
// compact an arbitrary data vector into sector-aligned blocks before flash
// programming (spec.md §3, §9 bullet 3). It never allocates storage for
// the whole flash image: blocks are created lazily, on first write.
//
// Grounded on the call-site contract in original_source/psdb/targets/flash.py's
// Flash.burn_dv (psdb.block.RAMBD / BlockOutOfRangeException) -- the Python
// RAMBD class itself was not retrieved, only its usage, so this shape is
// derived from that contract plus spec.md §3/§9.
package blockbuf

import "github.com/cesanta/psdb/pdberr"

// Block is one populated block: its base address and accumulated bytes.
// Data always spans the device's full block size; bytes never written
// read as 0xFF, the erased-flash value.
type Block struct {
	Addr uint32
	Data []byte
}

// Device is a RAM-backed block buffer spanning [FirstBlock, FirstBlock+N)
// at BlockSize granularity. Writes outside that range are silently
// dropped, matching burn_dv's "catch out-of-range for that block device
// and silently drop those bytes" step.
type Device struct {
	blockSize  uint32
	firstBlock uint32
	nblocks    uint32
	blocks     map[uint32]*Block
}

// New creates a block buffer covering nblocks blocks of blockSize bytes
// each, starting at block index firstBlock (baseAddr / blockSize in the
// flash-burn caller).
func New(blockSize uint32, firstBlock, nblocks uint32) *Device {
	return &Device{
		blockSize:  blockSize,
		firstBlock: firstBlock,
		nblocks:    nblocks,
		blocks:     make(map[uint32]*Block),
	}
}

// blockIndex returns the block index addr falls into, and whether that
// index is within [firstBlock, firstBlock+nblocks).
func (d *Device) blockIndex(addr uint32) (uint32, bool) {
	idx := addr / d.blockSize
	if idx < d.firstBlock || idx >= d.firstBlock+d.nblocks {
		return 0, false
	}
	return idx, true
}

// Write stores data starting at addr, splitting across block boundaries as
// needed. Bytes that land in an out-of-range block are dropped rather than
// erroring, per spec.md §3's Block buffer invariant. Within a block, later
// writes overwrite earlier ones at the same offset (spec.md §8 scenario 4).
func (d *Device) Write(addr uint32, data []byte) {
	for len(data) > 0 {
		idx, ok := d.blockIndex(addr)
		offset := addr % d.blockSize
		n := d.blockSize - offset
		if uint32(len(data)) < n {
			n = uint32(len(data))
		}
		if ok {
			blk := d.blocks[idx]
			if blk == nil {
				blk = &Block{Addr: idx * d.blockSize, Data: make([]byte, d.blockSize)}
				for i := range blk.Data {
					blk.Data[i] = 0xFF
				}
				d.blocks[idx] = blk
			}
			copy(blk.Data[offset:offset+n], data[:n])
		}
		addr += n
		data = data[n:]
	}
}

// BlockOutOfRangeError describes a block index outside [firstBlock,
// firstBlock+nblocks). No operation in this package returns it: Write
// drops out-of-range bytes silently.
type BlockOutOfRangeError struct {
	Index uint32
}

func (e *BlockOutOfRangeError) Error() string {
	return pdberr.Errorf(pdberr.KindRange, "block index %d out of range", e.Index).Error()
}

// Blocks returns every populated block, in ascending address order.
func (d *Device) Blocks() []*Block {
	indices := make([]uint32, 0, len(d.blocks))
	for idx := range d.blocks {
		indices = append(indices, idx)
	}
	for i := 1; i < len(indices); i++ {
		for j := i; j > 0 && indices[j-1] > indices[j]; j-- {
			indices[j-1], indices[j] = indices[j], indices[j-1]
		}
	}
	out := make([]*Block, len(indices))
	for i, idx := range indices {
		out[i] = d.blocks[idx]
	}
	return out
}
