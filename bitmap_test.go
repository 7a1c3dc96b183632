package blockfs

import (
	"path/filepath"
	"testing"
)

func newTestBitmap(t *testing.T) (*Bitmap, *BlockDevice, int64, int64) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "disk.img")
	size := int64(BlockSize * 20)
	dev, err := createBlockDevice(path, size)
	if err != nil {
		t.Fatalf("createBlockDevice: %s", err)
	}
	t.Cleanup(func() { dev.Close() })

	n, k := BlockCount(size)
	bm, err := loadBitmap(dev, n, k)
	if err != nil {
		t.Fatalf("loadBitmap: %s", err)
	}
	return bm, dev, n, k
}

func TestBitmapReservedBits(t *testing.T) {
	bm, _, n, k := newTestBitmap(t)

	if !bm.IsSet(0) {
		t.Error("block 0 (root) should be reserved")
	}
	for i := n - k; i < n; i++ {
		if !bm.IsSet(i) {
			t.Errorf("bitmap block %d should be reserved", i)
		}
	}
}

func TestBitmapAllocateFree(t *testing.T) {
	bm, _, _, _ := newTestBitmap(t)

	a, err := bm.Allocate()
	if err != nil {
		t.Fatalf("Allocate: %s", err)
	}
	if a != 1 {
		t.Errorf("first Allocate() = %d, want 1", a)
	}
	if !bm.IsSet(a) {
		t.Error("allocated block should be marked in-use")
	}

	b, err := bm.Allocate()
	if err != nil {
		t.Fatalf("Allocate: %s", err)
	}
	if b != 2 {
		t.Errorf("second Allocate() = %d, want 2", b)
	}

	bm.Free(a)
	if bm.IsSet(a) {
		t.Error("freed block should no longer be in-use")
	}

	c, err := bm.Allocate()
	if err != nil {
		t.Fatalf("Allocate: %s", err)
	}
	if c != a {
		t.Errorf("Allocate() after Free(%d) = %d, want lowest free index %d", a, c, a)
	}
}

func TestBitmapExhaustion(t *testing.T) {
	bm, _, n, k := newTestBitmap(t)

	usable := int(n - k - 1) // [1, n-k)
	for i := 0; i < usable; i++ {
		if _, err := bm.Allocate(); err != nil {
			t.Fatalf("Allocate() #%d: %s", i, err)
		}
	}
	if _, err := bm.Allocate(); err != ErrNoSpace {
		t.Errorf("Allocate() on exhausted bitmap: got %v, want ErrNoSpace", err)
	}
}

func TestBitmapPersistReload(t *testing.T) {
	bm, dev, n, k := newTestBitmap(t)

	a, _ := bm.Allocate()
	if err := bm.Persist(); err != nil {
		t.Fatalf("Persist: %s", err)
	}

	reloaded, err := loadBitmap(dev, n, k)
	if err != nil {
		t.Fatalf("loadBitmap: %s", err)
	}
	if !reloaded.IsSet(a) {
		t.Errorf("reloaded bitmap lost allocation of block %d", a)
	}
}

func TestBitmapSetCount(t *testing.T) {
	bm, _, _, k := newTestBitmap(t)

	base := bm.SetCount() // root + bitmap blocks
	if want := int(1 + k); base != want {
		t.Fatalf("initial SetCount() = %d, want %d", base, want)
	}

	bm.Allocate()
	bm.Allocate()
	if got, want := bm.SetCount(), base+2; got != want {
		t.Errorf("SetCount() after two allocations = %d, want %d", got, want)
	}
}
