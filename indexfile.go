package tigstore

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hupe1980/tigstore/internal/mmap"
	"github.com/hupe1980/tigstore/tig"
)

// Metadata index file format (little-endian):
//
//	[Magic:8 "tgStore1"][Version:4][SlotCount:4][Slots: count * 28]
//
// The index is written as a whole at version transitions and on close, via a
// temp file renamed into place so readers never observe a partial index.
const (
	indexMagic      = "tgStore1"
	indexHeaderSize = 8 + 4 + 4
)

func (s *Store) indexPath(version uint32) string {
	return filepath.Join(s.path, fmt.Sprintf("seqDB.v%03d.tig", version))
}

func (s *Store) dataPath(version uint32) string {
	return filepath.Join(s.path, fmt.Sprintf("seqDB.v%03d.dat", version))
}

func (s *Store) writeIndex(version uint32) error {
	buf := make([]byte, indexHeaderSize+len(s.slots)*slotSize)
	copy(buf[0:8], indexMagic)
	binary.LittleEndian.PutUint32(buf[8:12], version)
	binary.LittleEndian.PutUint32(buf[12:16], uint32(len(s.slots)))

	off := indexHeaderSize
	for i := range s.slots {
		s.slots[i].encode(buf[off : off+slotSize])
		off += slotSize
	}

	final := s.indexPath(version)
	tmp := final + ".tmp"

	f, err := s.opts.FS.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("create index temp file: %w", err)
	}
	if _, err := f.Write(buf); err != nil {
		_ = f.Close()
		_ = s.opts.FS.Remove(tmp)
		return fmt.Errorf("write index: %w", err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = s.opts.FS.Remove(tmp)
		return fmt.Errorf("sync index: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = s.opts.FS.Remove(tmp)
		return fmt.Errorf("close index: %w", err)
	}
	if err := s.opts.FS.Rename(tmp, final); err != nil {
		_ = s.opts.FS.Remove(tmp)
		return fmt.Errorf("rename index into place: %w", err)
	}
	return nil
}

func (s *Store) readIndex(version uint32) error {
	path := s.indexPath(version)

	m, err := mmap.Open(path)
	if err != nil {
		return fmt.Errorf("open index %s: %w", path, err)
	}
	defer m.Close()

	data := m.Data
	if len(data) < indexHeaderSize {
		return &CorruptStoreError{Path: path, Reason: "index file too small for header"}
	}
	if string(data[0:8]) != indexMagic {
		return &CorruptStoreError{Path: path, Reason: fmt.Sprintf("bad index magic %q", data[0:8])}
	}
	if v := binary.LittleEndian.Uint32(data[8:12]); v != version {
		return &CorruptStoreError{Path: path, Reason: fmt.Sprintf("index header says version %d, file name says %d", v, version)}
	}

	count := binary.LittleEndian.Uint32(data[12:16])
	want := indexHeaderSize + int(count)*slotSize
	if len(data) != want {
		return &CorruptStoreError{Path: path, Reason: fmt.Sprintf("index is %d bytes, expected %d for %d slots", len(data), want, count)}
	}

	s.slots = make([]slot, count)
	s.cached = make([]*tig.Tig, count)
	off := indexHeaderSize
	for i := range s.slots {
		s.slots[i].decode(data[off : off+slotSize])
		off += slotSize
	}
	return nil
}

// verifyOffsets checks every live slot against the length of its data file.
// A slot referencing past EOF means the store was damaged, typically by a
// torn tail write.
func (s *Store) verifyOffsets() error {
	sizes := make(map[uint32]int64)

	for i := range s.slots {
		sl := &s.slots[i]
		if sl.deleted || sl.version == 0 {
			continue
		}
		size, ok := sizes[sl.version]
		if !ok {
			st, err := s.opts.FS.Stat(s.dataPath(sl.version))
			if err != nil {
				return &CorruptStoreError{
					Path:   s.dataPath(sl.version),
					Reason: fmt.Sprintf("slot %d references version %d but its data file is unreadable", i, sl.version),
					cause:  err,
				}
			}
			size = st.Size()
			sizes[sl.version] = size
		}
		if int64(sl.offset) >= size {
			return &CorruptStoreError{
				Path:   s.dataPath(sl.version),
				Reason: fmt.Sprintf("slot %d references offset %d past end of file (%d bytes)", i, sl.offset, size),
			}
		}
	}
	return nil
}
