package blockfs

import (
	"errors"

	"golang.org/x/sys/unix"
)

// Package-specific error variables that can be used with errors.Is() for error handling.
var (
	// ErrNotFound is returned when a named directory or file does not exist.
	ErrNotFound = errors.New("blockfs: not found")

	// ErrAlreadyExists is returned when a directory or file with that name already exists in the target scope.
	ErrAlreadyExists = errors.New("blockfs: already exists")

	// ErrNameTooLong is returned when a path component exceeds MaxFilename or MaxExtension.
	ErrNameTooLong = errors.New("blockfs: name too long")

	// ErrBadPath is returned when a path has no leading slash, is empty, or descends more than two levels.
	ErrBadPath = errors.New("blockfs: malformed path")

	// ErrNotPermitted is returned when an operation is attempted at an illegal hierarchy level.
	ErrNotPermitted = errors.New("blockfs: not permitted at this path level")

	// ErrNoSpace is returned when the allocator has no free block, or a parent container is at capacity.
	ErrNoSpace = errors.New("blockfs: no space left on device")

	// ErrTooLarge is returned when an offset is beyond the current file size.
	ErrTooLarge = errors.New("blockfs: offset beyond end of file")

	// ErrIsDirectory is returned when read/write is invoked on a directory path.
	ErrIsDirectory = errors.New("blockfs: is a directory")

	// ErrIOError wraps a failure opening or accessing the backing block device.
	ErrIOError = errors.New("blockfs: I/O error")
)

// Errno maps one of the sentinel errors above to the syscall errno the FUSE
// adapter relays to the kernel. Any error not recognized here maps to EIO,
// matching the "core recovers nothing, dispatcher only translates" policy.
func Errno(err error) unix.Errno {
	switch {
	case errors.Is(err, ErrNotFound):
		return unix.ENOENT
	case errors.Is(err, ErrAlreadyExists):
		return unix.EEXIST
	case errors.Is(err, ErrNameTooLong):
		return unix.ENAMETOOLONG
	case errors.Is(err, ErrBadPath):
		return unix.EINVAL
	case errors.Is(err, ErrNotPermitted):
		return unix.EPERM
	case errors.Is(err, ErrNoSpace):
		return unix.ENOSPC
	case errors.Is(err, ErrTooLarge):
		return unix.EFBIG
	case errors.Is(err, ErrIsDirectory):
		return unix.EISDIR
	case errors.Is(err, ErrIOError):
		return unix.EIO
	case err == nil:
		return 0
	default:
		return unix.EIO
	}
}
