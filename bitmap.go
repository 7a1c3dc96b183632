package blockfs

import (
	bitmap "github.com/boljen/go-bitmap"
)

// Bitmap is the free-space allocator. It caches the trailing K
// bitmap blocks of the image in memory and is authoritative until Persist
// writes it back. Bit i of the underlying buffer represents block index i;
// 1 means in-use.
type Bitmap struct {
	dev  *BlockDevice
	base int64 // first bitmap block index (N-K)
	k    int64 // number of bitmap blocks
	n    int64 // total block count

	buf bitmap.Bitmap
}

// loadBitmap reads the trailing K blocks into memory and reserves block 0
// and the K bitmap blocks themselves.
func loadBitmap(dev *BlockDevice, n, k int64) (*Bitmap, error) {
	base := n - k
	raw := make([]byte, k*BlockSize)
	for i := int64(0); i < k; i++ {
		blk, err := dev.ReadBlock(base + i)
		if err != nil {
			return nil, err
		}
		copy(raw[i*BlockSize:(i+1)*BlockSize], blk)
	}

	b := &Bitmap{
		dev:  dev,
		base: base,
		k:    k,
		n:    n,
		buf:  bitmap.Bitmap(raw),
	}

	// reserved bits: block 0 (root) and the K trailing bitmap blocks.
	b.buf.Set(0, true)
	for i := base; i < n; i++ {
		b.buf.Set(int(i), true)
	}

	return b, nil
}

// Allocate returns the lowest free block index in [1, N-K), marking it used
// in memory. Write-back is the caller's responsibility via Persist.
func (b *Bitmap) Allocate() (int64, error) {
	for i := int64(1); i < b.base; i++ {
		if !b.buf.Get(int(i)) {
			b.buf.Set(int(i), true)
			return i, nil
		}
	}
	return 0, ErrNoSpace
}

// Free clears the bit for index, a no-op if it was already free.
func (b *Bitmap) Free(index int64) {
	b.buf.Set(int(index), false)
}

// IsSet reports whether the given block index is currently marked in-use.
func (b *Bitmap) IsSet(index int64) bool {
	return b.buf.Get(int(index))
}

// Persist writes the in-memory bitmap back to the trailing K blocks.
func (b *Bitmap) Persist() error {
	raw := b.buf.Data(false)
	for i := int64(0); i < b.k; i++ {
		chunk := raw[i*BlockSize : (i+1)*BlockSize]
		if err := b.dev.WriteBlock(b.base+i, chunk); err != nil {
			return err
		}
	}
	return nil
}

// SetCount returns the number of bits currently marked in-use, used by
// Verify.
func (b *Bitmap) SetCount() int {
	count := 0
	for i := int64(0); i < b.n; i++ {
		if b.buf.Get(int(i)) {
			count++
		}
	}
	return count
}
