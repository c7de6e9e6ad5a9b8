package datafile

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/hupe1980/tigstore/internal/fs"
)

const (
	// lengthPrefixSize is the 4-byte record length written before each payload.
	lengthPrefixSize = 4

	// MaxOffset is the largest record offset a metadata slot can address
	// (40 bits).
	MaxOffset = (1 << 40) - 1
)

var (
	// ErrOffsetRange is returned when a record would start past MaxOffset.
	ErrOffsetRange = errors.New("datafile: offset exceeds 40-bit range")

	// ErrShortRecord is returned when a record extends past the end of the
	// file, either because the offset is bogus or the tail write was torn.
	ErrShortRecord = errors.New("datafile: record extends past end of file")

	// ErrReadOnly is returned on appends to a file opened read-only.
	ErrReadOnly = errors.New("datafile: file is read-only")
)

// File is one version's payload file: an append-only stream of
// length-prefixed records addressed by byte offset.
//
// The file keeps a single position cursor. Appends leave the cursor at EOF
// and remember that with atEOF, so consecutive appends skip the seek; any
// read moves the cursor and invalidates the flag.
type File struct {
	f        fs.File
	path     string
	size     int64
	atEOF    bool
	writable bool
}

// Open opens (creating, if writable) the payload file at path.
func Open(fsys fs.FileSystem, path string, writable bool) (*File, error) {
	flag := os.O_RDONLY
	if writable {
		flag = os.O_RDWR | os.O_CREATE
	}
	f, err := fsys.OpenFile(path, flag, 0o600)
	if err != nil {
		return nil, fmt.Errorf("datafile: open %s: %w", path, err)
	}
	st, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("datafile: stat %s: %w", path, err)
	}
	return &File{
		f:        f,
		path:     path,
		size:     st.Size(),
		writable: writable,
	}, nil
}

// Size returns the current end-of-file offset.
func (d *File) Size() int64 {
	return d.size
}

// Path returns the file path.
func (d *File) Path() string {
	return d.path
}

// Append writes one record at end-of-file and returns the offset where it
// begins. The payload is framed with a 4-byte little-endian length.
func (d *File) Append(payload []byte) (uint64, error) {
	if !d.writable {
		return 0, ErrReadOnly
	}
	if int64(len(payload)) > int64(^uint32(0)) {
		return 0, fmt.Errorf("datafile: payload of %d bytes exceeds frame limit", len(payload))
	}

	off := d.size
	if off > MaxOffset {
		return 0, fmt.Errorf("%w: %d", ErrOffsetRange, off)
	}

	if !d.atEOF {
		if _, err := d.f.Seek(0, io.SeekEnd); err != nil {
			return 0, fmt.Errorf("datafile: seek to end of %s: %w", d.path, err)
		}
		d.atEOF = true
	}

	// One buffer, one write: the length prefix must not land without its
	// payload on a clean return.
	rec := make([]byte, lengthPrefixSize+len(payload))
	binary.LittleEndian.PutUint32(rec[:lengthPrefixSize], uint32(len(payload)))
	copy(rec[lengthPrefixSize:], payload)

	if _, err := d.f.Write(rec); err != nil {
		d.atEOF = false // cursor position is now unknown
		return 0, fmt.Errorf("datafile: append to %s at offset %d: %w", d.path, off, err)
	}

	d.size += int64(len(rec))
	return uint64(off), nil
}

// ReadRecordAt reads and unframes the record beginning at off.
func (d *File) ReadRecordAt(off uint64) ([]byte, error) {
	if int64(off)+lengthPrefixSize > d.size {
		return nil, fmt.Errorf("%w: offset %d, file size %d", ErrShortRecord, off, d.size)
	}

	d.atEOF = false
	if _, err := d.f.Seek(int64(off), io.SeekStart); err != nil {
		return nil, fmt.Errorf("datafile: seek %s to offset %d: %w", d.path, off, err)
	}

	var prefix [lengthPrefixSize]byte
	if _, err := io.ReadFull(d.f, prefix[:]); err != nil {
		return nil, fmt.Errorf("datafile: read length prefix at offset %d: %w", off, err)
	}
	n := binary.LittleEndian.Uint32(prefix[:])

	if int64(off)+lengthPrefixSize+int64(n) > d.size {
		return nil, fmt.Errorf("%w: offset %d declares %d bytes, file size %d", ErrShortRecord, off, n, d.size)
	}

	payload := make([]byte, n)
	if _, err := io.ReadFull(d.f, payload); err != nil {
		return nil, fmt.Errorf("datafile: read %d-byte record at offset %d: %w", n, off, err)
	}
	return payload, nil
}

// Sync flushes the file to stable storage.
func (d *File) Sync() error {
	return d.f.Sync()
}

// Close closes the underlying file.
func (d *File) Close() error {
	return d.f.Close()
}

// RecordSize returns the number of file bytes one payload of n bytes
// occupies, frame included.
func RecordSize(n int) int64 {
	return int64(lengthPrefixSize + n)
}
