package blockfs

import (
	"fmt"

	"github.com/hashicorp/go-multierror"
)

// Verify re-derives every structural invariant and closed-form property
// (P1-P4) from the on-disk state alone, and reports every violation found
// rather than stopping at the first. It returns nil if the image is fully
// consistent.
func (img *Image) Verify() error {
	img.mu.Lock()
	defer img.mu.Unlock()

	var result *multierror.Error

	root, err := img.readRoot()
	if err != nil {
		return multierror.Append(result, fmt.Errorf("reading root record: %w", err)).ErrorOrNil()
	}

	// I1: n_directories in range.
	if root.NumDirectories < 0 || root.NumDirectories > MaxDirectories {
		result = multierror.Append(result, fmt.Errorf("I1: n_directories=%d out of range [0,%d]", root.NumDirectories, MaxDirectories))
	}

	reachable := map[int64]bool{0: true}
	for i := int64(img.n - img.k); i < img.n; i++ {
		reachable[i] = true
	}

	seenDirNames := map[string]bool{}

	for i := int32(0); i < root.NumDirectories && i < MaxDirectories; i++ {
		slot := root.Directories[i]
		dn := slot.Name.String()

		// I2: non-empty, unique.
		if dn == "" {
			result = multierror.Append(result, fmt.Errorf("I2: directory slot %d has empty name", i))
		}
		if seenDirNames[dn] {
			result = multierror.Append(result, fmt.Errorf("I2: directory name %q is duplicated", dn))
		}
		seenDirNames[dn] = true

		// I3: start_block in-range, in-use, and reachable. An out-of-range
		// index is reported, not chased: indexing the bitmap or device with
		// it would panic.
		if slot.StartBlock < 1 || slot.StartBlock >= img.n-img.k {
			result = multierror.Append(result, fmt.Errorf("I3: directory %q start_block %d out of range", dn, slot.StartBlock))
			continue
		}
		if !img.bm.IsSet(slot.StartBlock) {
			result = multierror.Append(result, fmt.Errorf("I3: directory %q start_block %d not marked in-use", dn, slot.StartBlock))
		}
		reachable[slot.StartBlock] = true

		dir, err := img.readDirEntry(slot.StartBlock)
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("I3: directory %q: %w", dn, err))
			continue
		}

		// I4: n_files in range, unique (name, ext) pairs.
		if dir.NumFiles < 0 || dir.NumFiles > MaxFiles {
			result = multierror.Append(result, fmt.Errorf("I4: directory %q n_files=%d out of range [0,%d]", dn, dir.NumFiles, MaxFiles))
		}

		seenFileNames := map[string]bool{}
		for j := int32(0); j < dir.NumFiles && j < MaxFiles; j++ {
			f := dir.Files[j]
			key := f.Name.String() + "." + f.Ext.String()
			if seenFileNames[key] {
				result = multierror.Append(result, fmt.Errorf("I4: file %q in directory %q is duplicated", key, dn))
			}
			seenFileNames[key] = true

			// I5/P4: chain length matches ceil(size / DataBytesPerBlock).
			wantLen := ChainLength(f.Size)
			gotLen, chainReachable, err := img.walkAndCountChain(f.StartBlock)
			if err != nil {
				result = multierror.Append(result, fmt.Errorf("I5: file %q in %q: %w", key, dn, err))
				continue
			}
			for _, idx := range chainReachable {
				reachable[idx] = true
				if !img.bm.IsSet(idx) {
					result = multierror.Append(result, fmt.Errorf("I5: file %q in %q: block %d not marked in-use", key, dn, idx))
				}
			}
			if gotLen != wantLen {
				result = multierror.Append(result, fmt.Errorf("I5/P4: file %q in %q has chain length %d, want %d", key, dn, gotLen, wantLen))
			}
		}
	}

	// I6 / P2: every set bit is reachable, every reachable block is set.
	for i := int64(1); i < img.n; i++ {
		set := img.bm.IsSet(i)
		if set && !reachable[i] {
			result = multierror.Append(result, fmt.Errorf("I6/P2: block %d is marked in-use but not reachable from root", i))
		}
		if !set && reachable[i] {
			result = multierror.Append(result, fmt.Errorf("I6/P2: block %d is reachable from root but marked free", i))
		}
	}

	// P3: accounting identity.
	wantSet := len(reachable)
	gotSet := img.bm.SetCount()
	if wantSet != gotSet {
		result = multierror.Append(result, fmt.Errorf("P3: %d blocks set in bitmap, expected %d reachable blocks", gotSet, wantSet))
	}

	return result.ErrorOrNil()
}

// walkAndCountChain follows a file's data-block chain to completion,
// returning its length and the list of block indices visited. It never
// panics on a corrupt chain (e.g. one that cycles or runs past N); Verify
// must report a corruption, not crash on it.
func (img *Image) walkAndCountChain(start int64) (int, []int64, error) {
	var visited []int64
	seen := map[int64]bool{}
	cur := start
	for {
		if cur < 1 || cur >= img.n-img.k {
			return 0, nil, fmt.Errorf("chain references out-of-range block %d", cur)
		}
		if seen[cur] {
			return 0, nil, fmt.Errorf("chain cycles back to block %d", cur)
		}
		seen[cur] = true
		visited = append(visited, cur)

		blk, err := img.dev.ReadBlock(cur)
		if err != nil {
			return 0, nil, err
		}
		db := UnmarshalDataBlock(blk)
		if db.NextBlock == 0 {
			break
		}
		cur = db.NextBlock
	}
	return len(visited), visited, nil
}
