package blockfs

// The file I/O engine walks a file's linked data-block chain for
// arbitrary (offset, length) spans, allocating new blocks on grow. It
// operates purely on a *FileSlot plus the image's device and bitmap; the
// dispatcher (image.go) is responsible for locating the slot and persisting
// the enclosing directory-entry record around these calls.

// walkChain returns the block index reached after hopping n times from
// start, following next_block links.
func walkChain(dev *BlockDevice, start int64, hops int) (int64, error) {
	cur := start
	for i := 0; i < hops; i++ {
		blk, err := dev.ReadBlock(cur)
		if err != nil {
			return 0, err
		}
		db := UnmarshalDataBlock(blk)
		cur = db.NextBlock
	}
	return cur, nil
}

// readFile copies up to size bytes starting at offset from the file's data
// chain into buf, returning the number of bytes delivered.
func readFile(dev *BlockDevice, f *FileSlot, buf []byte, size int, offset int64) (int, error) {
	if size == 0 {
		return 0, nil
	}
	if offset < 0 || offset > int64(f.Size) {
		return 0, ErrTooLarge
	}

	remaining := int64(f.Size) - offset
	if int64(size) > remaining {
		size = int(remaining)
	}
	if size == 0 {
		return 0, nil
	}

	startBlockIndex := int(offset / DataBytesPerBlock)
	startOffset := int(offset % DataBytesPerBlock)

	cur, err := walkChain(dev, f.StartBlock, startBlockIndex)
	if err != nil {
		return 0, err
	}

	delivered := 0
	within := startOffset
	for delivered < size {
		blk, err := dev.ReadBlock(cur)
		if err != nil {
			return delivered, err
		}
		db := UnmarshalDataBlock(blk)

		avail := DataBytesPerBlock - within
		want := size - delivered
		n := avail
		if want < n {
			n = want
		}
		copy(buf[delivered:delivered+n], db.Data[within:within+n])
		delivered += n
		within = 0

		if delivered < size {
			cur = db.NextBlock
		}
	}

	return delivered, nil
}

// writeFile copies size bytes from buf into the file's data chain starting
// at offset, allocating and linking new blocks only where the existing
// chain doesn't already reach far enough, and returns the number of bytes
// written. f.Size is updated to max(f.Size, offset+size); the caller
// persists the enclosing directory-entry and the bitmap.
//
// A write that ends before the file's previous end must leave the rest of
// the chain exactly as it was: the link out of the last block this call
// touches is only ever taken from what was already on disk, never forced
// to zero, so an in-place overwrite can never orphan the blocks beyond it.
//
// Blocks allocated by this call are never read back from disk; whatever a
// previous owner left in them (including a stale next_block link) must not
// leak into the new chain.
//
// On a mid-chain allocation failure every block allocated during this call
// is freed, the link that led into the first of them is severed, and
// f.Size is left untouched, so the chain and the bitmap are as they were on
// entry. Bytes already copied into existing blocks before the failure stay
// written; they are not restored.
func writeFile(dev *BlockDevice, bm *Bitmap, f *FileSlot, buf []byte, size int, offset int64) (int, error) {
	if size == 0 {
		return 0, nil
	}
	if offset < 0 || offset > int64(f.Size) {
		return 0, ErrTooLarge
	}

	newSize := uint64(offset) + uint64(size)
	if newSize < f.Size {
		newSize = f.Size
	}

	startBlockIndex := int(offset / DataBytesPerBlock)
	startOffset := int(offset % DataBytesPerBlock)

	var allocated []int64
	linkFrom := int64(-1)
	rollback := func() {
		for _, idx := range allocated {
			bm.Free(idx)
		}
		if linkFrom >= 0 {
			if blk, err := dev.ReadBlock(linkFrom); err == nil {
				db := UnmarshalDataBlock(blk)
				db.NextBlock = 0
				dev.WriteBlock(linkFrom, db.MarshalBinary())
			}
		}
	}
	allocate := func(from int64) (int64, error) {
		next, err := bm.Allocate()
		if err != nil {
			return 0, err
		}
		if len(allocated) == 0 {
			linkFrom = from
		}
		allocated = append(allocated, next)
		return next, nil
	}

	// Seek to the block containing offset. An append that starts exactly on
	// the first byte past the last block extends the chain by one here,
	// since offset <= f.Size bounds the walk to at most one block past the
	// current end.
	cur := f.StartBlock
	fresh := false
	for i := 0; i < startBlockIndex; i++ {
		var db *DataBlock
		if fresh {
			db = &DataBlock{}
		} else {
			blk, err := dev.ReadBlock(cur)
			if err != nil {
				rollback()
				return 0, err
			}
			db = UnmarshalDataBlock(blk)
		}
		if db.NextBlock == 0 {
			next, err := allocate(cur)
			if err != nil {
				rollback()
				return 0, err
			}
			db.NextBlock = next
			if err := dev.WriteBlock(cur, db.MarshalBinary()); err != nil {
				rollback()
				return 0, err
			}
			cur = next
			fresh = true
		} else {
			cur = db.NextBlock
			fresh = false
		}
	}

	written := 0
	within := startOffset
	for written < size {
		var db *DataBlock
		if fresh {
			db = &DataBlock{}
		} else {
			blk, err := dev.ReadBlock(cur)
			if err != nil {
				rollback()
				return written, err
			}
			db = UnmarshalDataBlock(blk)
		}

		avail := DataBytesPerBlock - within
		n := size - written
		if n > avail {
			n = avail
		}
		copy(db.Data[within:within+n], buf[written:written+n])
		written += n

		nextFresh := false
		if written < size && db.NextBlock == 0 {
			next, err := allocate(cur)
			if err != nil {
				rollback()
				return written, err
			}
			db.NextBlock = next
			nextFresh = true
		}

		if err := dev.WriteBlock(cur, db.MarshalBinary()); err != nil {
			rollback()
			return written, err
		}

		within = 0
		if written < size {
			cur = db.NextBlock
			fresh = nextFresh
		}
	}

	f.Size = newSize
	return written, nil
}
