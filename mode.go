package blockfs

import (
	"io/fs"
)

// blockfs internal modes are based on linux, so use these methods:
// based on: https://golang.org/src/os/stat_linux.go

const (
	S_IFMT  = 0xf000
	S_IFREG = 0x8000
	S_IFDIR = 0x4000

	S_IRUSR = 0x100
	S_IWUSR = 0x80
	S_IXUSR = 0x40
	S_IRGRP = 0x20
	S_IWGRP = 0x10
	S_IXGRP = 0x8
	S_IROTH = 0x4
	S_IWOTH = 0x2
	S_IXOTH = 0x1
)

// getattr returns fixed mode bits: the core has no concept of per-entry
// permissions or ownership.
const (
	DirMode  fs.FileMode = fs.ModeDir | 0755
	FileMode fs.FileMode = 0666

	DirNlink  = 2
	FileNlink = 1
)

func UnixToMode(mode uint32) fs.FileMode {
	res := fs.FileMode(mode & 0777)

	if mode&S_IFDIR == S_IFDIR {
		res |= fs.ModeDir
	}

	return res
}

func ModeToUnix(mode fs.FileMode) uint32 {
	res := uint32(mode.Perm())

	if mode&fs.ModeDir == fs.ModeDir {
		res |= S_IFDIR
	} else {
		res |= S_IFREG
	}

	return res
}
