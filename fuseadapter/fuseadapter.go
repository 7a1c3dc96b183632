//go:build fuse

// Package fuseadapter is the host filesystem-in-user-space integration that
// dispatches FUSE callbacks onto a *blockfs.Image. It is kept thin, with
// every real decision (parsing, allocation, chain traversal) delegated to
// the core.
package fuseadapter

import (
	"github.com/hanwen/go-fuse/v2/fuse"
	"github.com/hanwen/go-fuse/v2/fuse/nodefs"
	"github.com/hanwen/go-fuse/v2/fuse/pathfs"

	"github.com/nblk/blockfs"
)

// FileSystem adapts a *blockfs.Image to go-fuse's pathfs.FileSystem
// interface. The path-based API fits here: the core's entire identity
// model is path-based, with no stable inode numbers to hand the
// low-level API.
type FileSystem struct {
	pathfs.FileSystem
	img *blockfs.Image
}

// New wraps img for mounting with pathfs.NewPathNodeFs.
func New(img *blockfs.Image) *FileSystem {
	return &FileSystem{
		FileSystem: pathfs.NewDefaultFileSystem(),
		img:        img,
	}
}

func hostPath(name string) string {
	if name == "" {
		return "/"
	}
	return "/" + name
}

func status(err error) fuse.Status {
	if err == nil {
		return fuse.OK
	}
	return fuse.Status(blockfs.Errno(err))
}

func fillAttr(out *fuse.Attr, a blockfs.Attr) {
	out.Mode = blockfs.ModeToUnix(a.Mode)
	out.Nlink = a.Nlink
	out.Size = a.Size
	out.Blocks = (a.Size + uint64(blockfs.BlockSize) - 1) / uint64(blockfs.BlockSize)
	out.Blksize = blockfs.BlockSize
	mt := uint64(blockfs.ModTime.Unix())
	out.Atime = mt
	out.Mtime = mt
	out.Ctime = mt
}

func (fs *FileSystem) GetAttr(name string, context *fuse.Context) (*fuse.Attr, fuse.Status) {
	a, err := fs.img.Getattr(hostPath(name))
	if err != nil {
		return nil, status(err)
	}
	out := &fuse.Attr{}
	fillAttr(out, a)
	return out, fuse.OK
}

func (fs *FileSystem) OpenDir(name string, context *fuse.Context) ([]fuse.DirEntry, fuse.Status) {
	entries, err := fs.img.Readdir(hostPath(name))
	if err != nil {
		return nil, status(err)
	}
	out := make([]fuse.DirEntry, 0, len(entries))
	for _, e := range entries {
		mode := blockfs.ModeToUnix(blockfs.FileMode)
		if e.IsDir {
			mode = blockfs.ModeToUnix(blockfs.DirMode)
		}
		out = append(out, fuse.DirEntry{Name: e.Name, Mode: mode})
	}
	return out, fuse.OK
}

func (fs *FileSystem) StatFs(name string) *fuse.StatfsOut {
	n, _, used := fs.img.Stats()
	return &fuse.StatfsOut{
		Blocks:  uint64(n),
		Bfree:   uint64(n - int64(used)),
		Bavail:  uint64(n - int64(used)),
		Bsize:   blockfs.BlockSize,
		NameLen: blockfs.MaxFilename,
	}
}

func (fs *FileSystem) Mkdir(name string, mode uint32, context *fuse.Context) fuse.Status {
	return status(fs.img.Mkdir(hostPath(name)))
}

func (fs *FileSystem) Mknod(name string, mode uint32, dev uint32, context *fuse.Context) fuse.Status {
	return status(fs.img.Mknod(hostPath(name)))
}

func (fs *FileSystem) Rmdir(name string, context *fuse.Context) fuse.Status {
	return status(fs.img.Rmdir(hostPath(name)))
}

func (fs *FileSystem) Unlink(name string, context *fuse.Context) fuse.Status {
	return status(fs.img.Unlink(hostPath(name)))
}

func (fs *FileSystem) Truncate(name string, size uint64, context *fuse.Context) fuse.Status {
	return status(fs.img.Truncate(hostPath(name), int64(size)))
}

func (fs *FileSystem) Open(name string, flags uint32, context *fuse.Context) (nodefs.File, fuse.Status) {
	if err := fs.img.OpenPath(hostPath(name)); err != nil {
		return nil, status(err)
	}
	return &file{File: nodefs.NewDefaultFile(), fs: fs, path: hostPath(name)}, fuse.OK
}

// file implements nodefs.File by delegating every call back to the Image;
// it holds no data of its own, matching the core's contract that every
// mutating call persists before returning.
type file struct {
	nodefs.File
	fs   *FileSystem
	path string
}

func (f *file) Read(dest []byte, off int64) (fuse.ReadResult, fuse.Status) {
	n, err := f.fs.img.Read(f.path, dest, len(dest), off)
	if err != nil {
		return nil, status(err)
	}
	return fuse.ReadResultData(dest[:n]), fuse.OK
}

func (f *file) Write(data []byte, off int64) (uint32, fuse.Status) {
	n, err := f.fs.img.Write(f.path, data, len(data), off)
	if err != nil {
		return uint32(n), status(err)
	}
	return uint32(n), fuse.OK
}

func (f *file) Flush() fuse.Status {
	return status(f.fs.img.FlushPath(f.path))
}

func (f *file) GetAttr(out *fuse.Attr) fuse.Status {
	a, err := f.fs.img.Getattr(f.path)
	if err != nil {
		return status(err)
	}
	fillAttr(out, a)
	return fuse.OK
}

// Mount mounts img at mountpoint and serves FUSE requests until the server
// is unmounted, then returns nil.
func Mount(img *blockfs.Image, mountpoint string) error {
	nfs := pathfs.NewPathNodeFs(New(img), nil)
	server, _, err := nodefs.MountRoot(mountpoint, nfs.Root(), nil)
	if err != nil {
		return err
	}
	server.Serve()
	return nil
}
