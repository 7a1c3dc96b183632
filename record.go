package blockfs

import (
	"encoding/binary"
)

// byteOrder pins integer encoding to little-endian.
var byteOrder = binary.LittleEndian

// name is a fixed-length, zero-padded, null-terminated byte array used for
// both directory and file base names. Comparison and printing treat it as
// null-terminated.
type name [MaxFilename + 1]byte

func newName(s string) (name, error) {
	var n name
	if len(s) > MaxFilename {
		return n, ErrNameTooLong
	}
	copy(n[:], s)
	return n, nil
}

func (n name) String() string {
	for i, b := range n {
		if b == 0 {
			return string(n[:i])
		}
	}
	return string(n[:])
}

// ext is a fixed-length, zero-padded, null-terminated byte array for the
// 3-byte extension.
type ext [MaxExtension + 1]byte

func newExt(s string) (ext, error) {
	var e ext
	if len(s) > MaxExtension {
		return e, ErrNameTooLong
	}
	copy(e[:], s)
	return e, nil
}

func (e ext) String() string {
	for i, b := range e {
		if b == 0 {
			return string(e[:i])
		}
	}
	return string(e[:])
}

// DirSlot is one entry in the root record: a sub-directory's name and the
// block index of its directory-entry record.
type DirSlot struct {
	Name       name
	StartBlock int64
}

// RootRecord is the block 0 record: a count of valid sub-directory
// slots followed by the fixed-size slot array, zero-padded to BlockSize.
type RootRecord struct {
	NumDirectories int32
	Directories    [MaxDirectories]DirSlot
}

// MarshalBinary encodes the root record into a zero-padded BlockSize buffer.
// The layout is packed field-by-field; it never relies on Go struct layout.
func (r *RootRecord) MarshalBinary() []byte {
	buf := make([]byte, BlockSize)
	byteOrder.PutUint32(buf[0:4], uint32(r.NumDirectories))
	off := countFieldSize
	for i := 0; i < MaxDirectories; i++ {
		d := &r.Directories[i]
		copy(buf[off:off+MaxFilename+1], d.Name[:])
		byteOrder.PutUint64(buf[off+MaxFilename+1:off+dirEntrySize], uint64(d.StartBlock))
		off += dirEntrySize
	}
	return buf
}

// UnmarshalRootRecord decodes a BlockSize buffer into a RootRecord.
func UnmarshalRootRecord(buf []byte) *RootRecord {
	r := &RootRecord{}
	r.NumDirectories = int32(byteOrder.Uint32(buf[0:4]))
	off := countFieldSize
	for i := 0; i < MaxDirectories; i++ {
		d := &r.Directories[i]
		copy(d.Name[:], buf[off:off+MaxFilename+1])
		d.StartBlock = int64(byteOrder.Uint64(buf[off+MaxFilename+1 : off+dirEntrySize]))
		off += dirEntrySize
	}
	return r
}

// FileSlot is one entry in a directory-entry record: a file's 8.3 name,
// its recorded size, and the start block of its data-block chain.
type FileSlot struct {
	Name       name
	Ext        ext
	Size       uint64
	StartBlock int64
}

// DirEntryRecord is a sub-directory's own block: a count of valid
// file slots followed by the fixed-size slot array, zero-padded to BlockSize.
type DirEntryRecord struct {
	NumFiles int32
	Files    [MaxFiles]FileSlot
}

// MarshalBinary encodes the directory-entry record into a zero-padded
// BlockSize buffer.
func (d *DirEntryRecord) MarshalBinary() []byte {
	buf := make([]byte, BlockSize)
	byteOrder.PutUint32(buf[0:4], uint32(d.NumFiles))
	off := countFieldSize
	for i := 0; i < MaxFiles; i++ {
		f := &d.Files[i]
		p := off
		copy(buf[p:p+MaxFilename+1], f.Name[:])
		p += MaxFilename + 1
		copy(buf[p:p+MaxExtension+1], f.Ext[:])
		p += MaxExtension + 1
		byteOrder.PutUint64(buf[p:p+8], f.Size)
		p += 8
		byteOrder.PutUint64(buf[p:p+8], uint64(f.StartBlock))
		off += fileEntrySize
	}
	return buf
}

// UnmarshalDirEntryRecord decodes a BlockSize buffer into a DirEntryRecord.
func UnmarshalDirEntryRecord(buf []byte) *DirEntryRecord {
	d := &DirEntryRecord{}
	d.NumFiles = int32(byteOrder.Uint32(buf[0:4]))
	off := countFieldSize
	for i := 0; i < MaxFiles; i++ {
		f := &d.Files[i]
		p := off
		copy(f.Name[:], buf[p:p+MaxFilename+1])
		p += MaxFilename + 1
		copy(f.Ext[:], buf[p:p+MaxExtension+1])
		p += MaxExtension + 1
		f.Size = byteOrder.Uint64(buf[p : p+8])
		p += 8
		f.StartBlock = int64(byteOrder.Uint64(buf[p : p+8]))
		off += fileEntrySize
	}
	return d
}

// DataBlock is one block of a file's linked data chain: an 8-byte
// next_block link (0 means end of chain) followed by BlockSize-8 payload
// bytes.
type DataBlock struct {
	NextBlock int64
	Data      [DataBytesPerBlock]byte
}

// MarshalBinary encodes the data block into a BlockSize buffer.
func (b *DataBlock) MarshalBinary() []byte {
	buf := make([]byte, BlockSize)
	byteOrder.PutUint64(buf[0:8], uint64(b.NextBlock))
	copy(buf[8:], b.Data[:])
	return buf
}

// UnmarshalDataBlock decodes a BlockSize buffer into a DataBlock.
func UnmarshalDataBlock(buf []byte) *DataBlock {
	b := &DataBlock{}
	b.NextBlock = int64(byteOrder.Uint64(buf[0:8]))
	copy(b.Data[:], buf[8:])
	return b
}
