package blockfs

import (
	"io/fs"
	"log"
	"sync"
	"time"
)

// Attr is the fixed attribute set getattr returns: mode, link count,
// and size. Owner/permission bits beyond the type are not modeled.
type Attr struct {
	Mode  fs.FileMode
	Nlink uint32
	Size  uint64
}

// DirEntry is one rendered entry from Readdir: either a sub-directory name
// or a file rendered as "name" or "name.ext".
type DirEntry struct {
	Name  string
	IsDir bool
}

// Image is the dispatcher: the top-level handle bundling the block
// device and bitmap allocator for one mounted .disk file. It composes the
// path parser, directory index, and file I/O engine to implement every
// host-facing operation.
//
// Image carries one coarse lock around every exported method that touches
// the device or the bitmap (Truncate and OpenPath touch neither and take no
// lock). The
// documented concurrency model is a single in-process caller, but the
// FUSE adapter dispatches host requests from multiple kernel-request
// goroutines, so the coarse lock a multi-threaded host would need is
// already in place here rather than retrofitted later.
type Image struct {
	mu sync.Mutex

	dev *BlockDevice
	bm  *Bitmap

	n, k int64
}

// Open opens an existing, pre-zeroed disk image at path.
func Open(path string) (*Image, error) {
	dev, err := openBlockDevice(path)
	if err != nil {
		return nil, err
	}
	size, err := dev.Size()
	if err != nil {
		dev.Close()
		return nil, err
	}

	n, k := BlockCount(size)
	bm, err := loadBitmap(dev, n, k)
	if err != nil {
		dev.Close()
		return nil, err
	}

	log.Printf("blockfs: opened image %s (n=%d k=%d)", path, n, k)

	return &Image{dev: dev, bm: bm, n: n, k: k}, nil
}

// Format creates a fresh disk image of sizeBytes at path, zero-fills it,
// reserves block 0 and the trailing K bitmap blocks, and returns it opened.
// This is a bootstrap step: in normal operation a pre-zeroed image is
// assumed to already exist.
func Format(path string, sizeBytes int64) (*Image, error) {
	dev, err := createBlockDevice(path, sizeBytes)
	if err != nil {
		return nil, err
	}

	n, k := BlockCount(sizeBytes)

	zero := make([]byte, BlockSize)
	if err := dev.WriteBlock(0, zero); err != nil {
		dev.Close()
		return nil, err
	}

	bm, err := loadBitmap(dev, n, k)
	if err != nil {
		dev.Close()
		return nil, err
	}
	if err := bm.Persist(); err != nil {
		dev.Close()
		return nil, err
	}

	log.Printf("blockfs: formatted image %s (%d bytes, n=%d k=%d)", path, sizeBytes, n, k)

	return &Image{dev: dev, bm: bm, n: n, k: k}, nil
}

// Close releases the backing file.
func (img *Image) Close() error {
	img.mu.Lock()
	defer img.mu.Unlock()
	return img.dev.Close()
}

func (img *Image) readRoot() (*RootRecord, error) {
	blk, err := img.dev.ReadBlock(0)
	if err != nil {
		return nil, err
	}
	return UnmarshalRootRecord(blk), nil
}

func (img *Image) writeRoot(r *RootRecord) error {
	return img.dev.WriteBlock(0, r.MarshalBinary())
}

func (img *Image) readDirEntry(block int64) (*DirEntryRecord, error) {
	blk, err := img.dev.ReadBlock(block)
	if err != nil {
		return nil, err
	}
	return UnmarshalDirEntryRecord(blk), nil
}

func (img *Image) writeDirEntry(block int64, d *DirEntryRecord) error {
	return img.dev.WriteBlock(block, d.MarshalBinary())
}

// Getattr implements getattr.
func (img *Image) Getattr(path string) (Attr, error) {
	img.mu.Lock()
	defer img.mu.Unlock()

	p, err := ParsePath(path)
	if err != nil {
		return Attr{}, err
	}

	switch p.Kind {
	case KindRoot:
		return Attr{Mode: DirMode, Nlink: DirNlink}, nil
	case KindDirOnly:
		root, err := img.readRoot()
		if err != nil {
			return Attr{}, err
		}
		if findDirectory(root, p.Dir) < 0 {
			return Attr{}, ErrNotFound
		}
		return Attr{Mode: DirMode, Nlink: DirNlink}, nil
	default: // KindFile
		_, f, err := img.lookupFile(p)
		if err != nil {
			return Attr{}, err
		}
		return Attr{Mode: FileMode, Nlink: FileNlink, Size: f.Size}, nil
	}
}

// Readdir implements readdir: "." and ".." always come first.
func (img *Image) Readdir(path string) ([]DirEntry, error) {
	img.mu.Lock()
	defer img.mu.Unlock()

	p, err := ParsePath(path)
	if err != nil {
		return nil, err
	}

	entries := []DirEntry{{Name: ".", IsDir: true}, {Name: "..", IsDir: true}}

	switch p.Kind {
	case KindRoot:
		root, err := img.readRoot()
		if err != nil {
			return nil, err
		}
		for i := int32(0); i < root.NumDirectories; i++ {
			entries = append(entries, DirEntry{Name: root.Directories[i].Name.String(), IsDir: true})
		}
		return entries, nil
	case KindDirOnly:
		root, err := img.readRoot()
		if err != nil {
			return nil, err
		}
		block := findDirectory(root, p.Dir)
		if block < 0 {
			return nil, ErrNotFound
		}
		dir, err := img.readDirEntry(block)
		if err != nil {
			return nil, err
		}
		for i := int32(0); i < dir.NumFiles; i++ {
			f := &dir.Files[i]
			entries = append(entries, DirEntry{Name: renderFileName(f), IsDir: false})
		}
		return entries, nil
	default:
		return nil, ErrNotFound
	}
}

func renderFileName(f *FileSlot) string {
	name := f.Name.String()
	ext := f.Ext.String()
	if ext == "" {
		return name
	}
	return name + "." + ext
}

// Mkdir implements mkdir.
func (img *Image) Mkdir(path string) error {
	img.mu.Lock()
	defer img.mu.Unlock()

	p, err := ParsePath(path)
	if err != nil {
		return err
	}
	if p.Kind != KindDirOnly {
		return ErrNotPermitted
	}

	root, err := img.readRoot()
	if err != nil {
		return err
	}
	if findDirectory(root, p.Dir) >= 0 {
		return ErrAlreadyExists
	}
	if root.NumDirectories >= MaxDirectories {
		return ErrNoSpace
	}

	nm, err := newName(p.Dir)
	if err != nil {
		return err
	}

	block, err := img.bm.Allocate()
	if err != nil {
		return err
	}

	newDir := &DirEntryRecord{}
	if err := img.writeDirEntry(block, newDir); err != nil {
		img.bm.Free(block)
		return err
	}

	root.Directories[root.NumDirectories] = DirSlot{Name: nm, StartBlock: block}
	root.NumDirectories++

	if err := img.writeRoot(root); err != nil {
		img.bm.Free(block)
		return err
	}
	if err := img.bm.Persist(); err != nil {
		return err
	}

	return nil
}

// Mknod implements mknod.
func (img *Image) Mknod(path string) error {
	img.mu.Lock()
	defer img.mu.Unlock()

	p, err := ParsePath(path)
	if err != nil {
		return err
	}
	if p.Kind != KindFile {
		return ErrNotPermitted
	}

	root, err := img.readRoot()
	if err != nil {
		return err
	}
	dirBlock := findDirectory(root, p.Dir)
	if dirBlock < 0 {
		return ErrNotFound
	}
	dir, err := img.readDirEntry(dirBlock)
	if err != nil {
		return err
	}
	if findFile(dir, p.Name, p.Ext) >= 0 {
		return ErrAlreadyExists
	}
	if dir.NumFiles >= MaxFiles {
		return ErrNoSpace
	}

	nm, err := newName(p.Name)
	if err != nil {
		return err
	}
	xt, err := newExt(p.Ext)
	if err != nil {
		return err
	}

	block, err := img.bm.Allocate()
	if err != nil {
		return err
	}

	initial := &DataBlock{}
	if err := img.dev.WriteBlock(block, initial.MarshalBinary()); err != nil {
		img.bm.Free(block)
		return err
	}

	dir.Files[dir.NumFiles] = FileSlot{Name: nm, Ext: xt, Size: 0, StartBlock: block}
	dir.NumFiles++

	if err := img.writeDirEntry(dirBlock, dir); err != nil {
		img.bm.Free(block)
		return err
	}
	if err := img.bm.Persist(); err != nil {
		return err
	}

	return nil
}

// lookupFile resolves a KindFile path to its enclosing directory block and
// file slot.
func (img *Image) lookupFile(p ParsedPath) (dirBlock int64, f FileSlot, err error) {
	root, err := img.readRoot()
	if err != nil {
		return 0, FileSlot{}, err
	}
	dirBlock = findDirectory(root, p.Dir)
	if dirBlock < 0 {
		return 0, FileSlot{}, ErrNotFound
	}
	dir, err := img.readDirEntry(dirBlock)
	if err != nil {
		return 0, FileSlot{}, err
	}
	idx := findFile(dir, p.Name, p.Ext)
	if idx < 0 {
		return 0, FileSlot{}, ErrNotFound
	}
	return dirBlock, dir.Files[idx], nil
}

// Read implements read: delegates to the file I/O engine.
func (img *Image) Read(path string, buf []byte, size int, offset int64) (int, error) {
	img.mu.Lock()
	defer img.mu.Unlock()

	p, err := ParsePath(path)
	if err != nil {
		return 0, err
	}
	if p.Kind != KindFile {
		return 0, ErrIsDirectory
	}

	_, f, err := img.lookupFile(p)
	if err != nil {
		return 0, err
	}

	return readFile(img.dev, &f, buf, size, offset)
}

// Write implements write: delegates to the file I/O engine, then
// persists the mutated directory-entry and bitmap in the documented write
// order (data blocks, then directory-entry, then bitmap).
func (img *Image) Write(path string, buf []byte, size int, offset int64) (int, error) {
	img.mu.Lock()
	defer img.mu.Unlock()

	p, err := ParsePath(path)
	if err != nil {
		return 0, err
	}
	if p.Kind != KindFile {
		return 0, ErrIsDirectory
	}

	root, err := img.readRoot()
	if err != nil {
		return 0, err
	}
	dirBlock := findDirectory(root, p.Dir)
	if dirBlock < 0 {
		return 0, ErrNotFound
	}
	dir, err := img.readDirEntry(dirBlock)
	if err != nil {
		return 0, err
	}
	idx := findFile(dir, p.Name, p.Ext)
	if idx < 0 {
		return 0, ErrNotFound
	}

	n, err := writeFile(img.dev, img.bm, &dir.Files[idx], buf, size, offset)
	if err != nil {
		return n, err
	}

	if err := img.writeDirEntry(dirBlock, dir); err != nil {
		return n, err
	}
	if err := img.bm.Persist(); err != nil {
		return n, err
	}

	return n, nil
}

// Rmdir implements rmdir: a successful no-op once the target exists.
// The on-disk layout reserves space for real deletion; this core never
// frees the chain or clears bitmap bits.
func (img *Image) Rmdir(path string) error {
	img.mu.Lock()
	defer img.mu.Unlock()

	p, err := ParsePath(path)
	if err != nil {
		return err
	}
	if p.Kind != KindDirOnly {
		return ErrNotPermitted
	}
	root, err := img.readRoot()
	if err != nil {
		return err
	}
	if findDirectory(root, p.Dir) < 0 {
		return ErrNotFound
	}
	return nil
}

// Unlink implements unlink: a successful no-op once the target exists.
func (img *Image) Unlink(path string) error {
	img.mu.Lock()
	defer img.mu.Unlock()

	p, err := ParsePath(path)
	if err != nil {
		return err
	}
	if p.Kind != KindFile {
		return ErrIsDirectory
	}
	if _, _, err := img.lookupFile(p); err != nil {
		return err
	}
	return nil
}

// Truncate, OpenPath, and FlushPath implement truncate/open/flush:
// always-succeeding no-ops, preserving the host contract that these calls
// must not fail even though the core never shrinks or closes anything.
func (img *Image) Truncate(path string, size int64) error {
	return nil
}

func (img *Image) OpenPath(path string) error {
	return nil
}

func (img *Image) FlushPath(path string) error {
	img.mu.Lock()
	defer img.mu.Unlock()
	return img.dev.Flush()
}

// Stats reports the image's block layout and current bitmap usage, for the
// CLI's info subcommand and for tests.
func (img *Image) Stats() (n, k int64, used int) {
	img.mu.Lock()
	defer img.mu.Unlock()
	return img.n, img.k, img.bm.SetCount()
}

// ModTime is a fixed value since the core doesn't track per-entry
// timestamps; the FUSE adapter reports this for every entry.
var ModTime = time.Unix(0, 0)
