package tigstore

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/hupe1980/tigstore/internal/cache"
	"github.com/hupe1980/tigstore/internal/datafile"
	"github.com/hupe1980/tigstore/tig"
)

// Mode selects how a store is opened.
type Mode int

const (
	// ModeCreate makes a brand-new store writing version v, purging any
	// files already at the path.
	ModeCreate Mode = iota
	// ModeReadOnly opens version v for reading.
	ModeReadOnly
	// ModeWrite reads version v and writes version v+1, purging v+1 first.
	ModeWrite
	// ModeAppend reads version v and writes version v+1 without purging.
	ModeAppend
	// ModeModify reads and rewrites version v in place.
	ModeModify
)

func (m Mode) String() string {
	switch m {
	case ModeCreate:
		return "create"
	case ModeReadOnly:
		return "read-only"
	case ModeWrite:
		return "write"
	case ModeAppend:
		return "append"
	case ModeModify:
		return "modify"
	default:
		return "invalid"
	}
}

func (m Mode) writable() bool {
	return m != ModeReadOnly
}

// Store is a disk-resident, memory-cached database of tigs with a linear
// version history.
//
// The store is not internally synchronized; callers with multiple goroutines
// must serialize access externally.
//
// Ownership: Insert consumes its argument (the store owns the tig
// afterwards, whether or not it is cached). Load returns a borrow that stays
// owned by the store and is valid until the tig is unloaded or the store
// closes. Copy fills a caller-owned tig.
type Store struct {
	path string
	mode Mode
	opts Options

	originalVersion uint32 // version the store was opened against
	currentVersion  uint32 // version being written (equals original when read-only)

	slots  []slot
	cached []*tig.Tig

	data map[uint32]*datafile.File

	blocks *cache.LRUBlockCache // nil when disabled

	closed bool
}

// Open opens the store at path against the given version. A version of 0
// means version 1.
func Open(path string, version uint32, mode Mode, optFns ...func(*Options)) (*Store, error) {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	if version == 0 {
		version = 1
	}
	if version > MaxVersion {
		return nil, fmt.Errorf("open version %d: %w", version, ErrVersionOverflow)
	}

	s := &Store{
		path:            path,
		mode:            mode,
		opts:            opts,
		originalVersion: version,
		currentVersion:  version,
		data:            make(map[uint32]*datafile.File),
	}
	if opts.BlockCacheBytes > 0 {
		s.blocks = cache.NewLRUBlockCache(opts.BlockCacheBytes, opts.Resources)
	}

	switch mode {
	case ModeCreate:
		if err := opts.FS.MkdirAll(path, 0o750); err != nil {
			return nil, fmt.Errorf("create store directory %s: %w", path, err)
		}
		if err := s.purgeAll(); err != nil {
			return nil, err
		}

	case ModeReadOnly, ModeModify:
		if err := s.readIndex(version); err != nil {
			return nil, err
		}
		if err := s.verifyOffsets(); err != nil {
			return nil, err
		}

	case ModeWrite, ModeAppend:
		if version+1 > MaxVersion {
			return nil, fmt.Errorf("cannot write version %d: %w", version+1, ErrVersionOverflow)
		}
		if err := s.readIndex(version); err != nil {
			return nil, err
		}
		if err := s.verifyOffsets(); err != nil {
			return nil, err
		}
		if mode == ModeWrite {
			if err := s.purgeVersion(version + 1); err != nil {
				return nil, err
			}
		}
		s.currentVersion = version + 1

	default:
		return nil, fmt.Errorf("invalid open mode %d", mode)
	}

	opts.Logger.Info("opened tig store",
		"path", path,
		"mode", mode.String(),
		"version", s.originalVersion,
		"writing", s.currentVersion,
		"tigs", len(s.slots),
	)
	return s, nil
}

// NumTigs returns the number of tig identifiers in the store, deleted ones
// included.
func (s *Store) NumTigs() uint32 {
	return uint32(len(s.slots))
}

// CurrentVersion returns the version the store is writing (or, read-only,
// reading).
func (s *Store) CurrentVersion() uint32 {
	return s.currentVersion
}

// Insert adds or replaces a tig. The store takes ownership of t
// unconditionally; the caller must not touch it after the call unless it was
// kept in cache, in which case t remains accessible as the cached object.
//
// A tig with ID NoID is assigned the next dense identifier. A tig carrying
// an existing identifier replaces that tig (and clears its deleted flag).
// An identifier past the current count extends the store, marking the
// intermediate slots deleted.
func (s *Store) Insert(t *tig.Tig, keepInCache bool) (uint32, error) {
	if err := s.checkWritable(); err != nil {
		return 0, err
	}

	id := t.ID
	if id == tig.NoID {
		id = uint32(len(s.slots))
	}
	for uint32(len(s.slots)) <= id {
		s.slots = append(s.slots, slot{deleted: true})
		s.cached = append(s.cached, nil)
	}
	t.ID = id

	sl := &s.slots[id]
	sl.deleted = false
	sl.setFrom(t)
	s.cached[id] = nil

	if keepInCache {
		s.cached[id] = t
		sl.flushNeeded = true
		return id, nil
	}

	if err := s.writeTig(t, sl); err != nil {
		return id, err
	}
	return id, nil
}

// Delete marks a tig as removed and drops any cached object without
// persisting it. The identifier is not reused, but a later Insert at the
// same identifier revives the slot with new content.
func (s *Store) Delete(id uint32) error {
	if err := s.checkWritable(); err != nil {
		return err
	}
	s.mustHave(id)

	sl := &s.slots[id]
	sl.deleted = true
	sl.flushNeeded = false
	s.cached[id] = nil
	return nil
}

// Load returns the cached tig for id, reading and caching it first if
// needed. The returned tig is owned by the store; it stays valid until the
// id is unloaded or the store closes. Repeated loads return the same object.
func (s *Store) Load(id uint32) (*tig.Tig, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	s.mustHave(id)

	sl := &s.slots[id]
	if sl.deleted {
		return nil, ErrTigDeleted
	}
	if c := s.cached[id]; c != nil {
		return c, nil
	}

	t := &tig.Tig{}
	if err := s.readTig(id, sl, t); err != nil {
		return nil, err
	}
	s.cached[id] = t
	return t, nil
}

// Copy reads the tig for id into out without caching. The caller owns out.
func (s *Store) Copy(id uint32, out *tig.Tig) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	s.mustHave(id)

	sl := &s.slots[id]
	if sl.deleted {
		return ErrTigDeleted
	}

	if c := s.cached[id]; c != nil {
		out.ID = c.ID
		out.SourceID = c.SourceID
		out.SourceBgn = c.SourceBgn
		out.SourceEnd = c.SourceEnd
		out.Class = c.Class
		out.SuggestRepeat = c.SuggestRepeat
		out.SuggestCircular = c.SuggestCircular
		out.Children = append(out.Children[:0], c.Children...)
		return nil
	}

	return s.readTig(id, sl, out)
}

// Unload drops the cached tig for id. Unless discard is set, pending
// changes are flushed to the writable data file first; with discard they are
// lost.
func (s *Store) Unload(id uint32, discard bool) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	s.mustHave(id)

	sl := &s.slots[id]
	c := s.cached[id]
	if c == nil {
		return nil
	}
	if sl.flushNeeded && !discard {
		if err := s.writeTig(c, sl); err != nil {
			return err
		}
	}
	sl.flushNeeded = false
	s.cached[id] = nil
	return nil
}

// FlushDisk persists the cached tig for id if it has pending changes. The
// cached object stays cached.
func (s *Store) FlushDisk(id uint32) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	s.mustHave(id)

	sl := &s.slots[id]
	c := s.cached[id]
	if c == nil || !sl.flushNeeded {
		return nil
	}
	return s.writeTig(c, sl)
}

// FlushDiskAll persists every cached tig with pending changes.
func (s *Store) FlushDiskAll() error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	for id := range s.slots {
		sl := &s.slots[id]
		c := s.cached[id]
		if c == nil || !sl.flushNeeded {
			continue
		}
		if err := s.writeTig(c, sl); err != nil {
			return err
		}
	}
	return nil
}

// FlushCache is a synonym for Unload.
func (s *Store) FlushCache(id uint32, discard bool) error {
	return s.Unload(id, discard)
}

// FlushCacheAll unloads every cached tig, flushing pending changes first
// unless discard is set. This is deliberately expensive; it exists to
// reclaim memory before heavy external work.
func (s *Store) FlushCacheAll(discard bool) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	if !discard {
		if err := s.FlushDiskAll(); err != nil {
			return err
		}
	}
	for id := range s.slots {
		s.slots[id].flushNeeded = false
		s.cached[id] = nil
	}
	return nil
}

// NextVersion advances the store to the next version: all pending changes
// are flushed into the current data file, the metadata index is written for
// the current version, and a fresh data file is started.
//
// Once NextVersion returns, all prior mutations are persistent. Readers of
// earlier versions see exactly the state at that version's transition.
func (s *Store) NextVersion() error {
	if err := s.checkWritable(); err != nil {
		return err
	}
	if s.currentVersion+1 > MaxVersion {
		return fmt.Errorf("advance past version %d: %w", s.currentVersion, ErrVersionOverflow)
	}

	if err := s.FlushDiskAll(); err != nil {
		return err
	}
	if df, ok := s.data[s.currentVersion]; ok {
		if err := df.Sync(); err != nil {
			return &IOError{Op: "sync", Version: s.currentVersion, Offset: uint64(df.Size()), cause: err}
		}
	}
	if err := s.writeIndex(s.currentVersion); err != nil {
		return err
	}

	from := s.currentVersion
	s.currentVersion++
	if _, err := s.getDataFile(s.currentVersion, true); err != nil {
		return err
	}

	s.opts.Logger.LogVersionTransition(from, s.currentVersion)
	return nil
}

// Close flushes pending state (when writable), writes the current version's
// index, and releases all file handles. The store must not be used after
// Close.
func (s *Store) Close() error {
	if s.closed {
		return nil
	}

	var firstErr error
	if s.mode.writable() {
		if err := s.FlushDiskAll(); err != nil {
			firstErr = err
		}
		if df, ok := s.data[s.currentVersion]; ok && firstErr == nil {
			if err := df.Sync(); err != nil {
				firstErr = &IOError{Op: "sync", Version: s.currentVersion, Offset: uint64(df.Size()), cause: err}
			}
		}
		if firstErr == nil {
			if err := s.writeIndex(s.currentVersion); err != nil {
				firstErr = err
			}
		}
	}

	s.closed = true
	for id := range s.cached {
		s.cached[id] = nil
	}
	for v, df := range s.data {
		if err := df.Close(); err != nil && firstErr == nil {
			firstErr = &IOError{Op: "close", Version: v, cause: err}
		}
	}
	s.data = nil
	if s.blocks != nil {
		_ = s.blocks.Close()
	}

	s.opts.Logger.Info("closed tig store", "path", s.path, "version", s.currentVersion)
	return firstErr
}

// DeletedIDs returns a bitmap of the identifiers currently marked deleted.
func (s *Store) DeletedIDs() *roaring.Bitmap {
	bm := roaring.New()
	for id := range s.slots {
		if s.slots[id].deleted {
			bm.Add(uint32(id))
		}
	}
	return bm
}

// --- internals ---

func (s *Store) checkOpen() error {
	if s.closed {
		return ErrClosed
	}
	return nil
}

func (s *Store) checkWritable() error {
	if s.closed {
		return ErrClosed
	}
	if !s.mode.writable() {
		return fmt.Errorf("%w: store opened %s", ErrInvalidMode, s.mode)
	}
	return nil
}

// mustHave panics on an out-of-range identifier: that is a contract
// violation by the caller, not a runtime condition.
func (s *Store) mustHave(id uint32) {
	if id >= uint32(len(s.slots)) {
		panic(fmt.Sprintf("tigstore: tig id %d out of range (store has %d tigs)", id, len(s.slots)))
	}
}

func (s *Store) getDataFile(version uint32, needWrite bool) (*datafile.File, error) {
	if df, ok := s.data[version]; ok {
		return df, nil
	}
	writable := needWrite || (s.mode.writable() && version == s.currentVersion)
	df, err := datafile.Open(s.opts.FS, s.dataPath(version), writable)
	if err != nil {
		return nil, &IOError{Op: "open", Version: version, cause: err}
	}
	s.data[version] = df
	return df, nil
}

// writeTig encodes t and appends it to the current writable data file,
// updating the slot's payload location.
func (s *Store) writeTig(t *tig.Tig, sl *slot) error {
	buf, err := tig.Encode(t)
	if err != nil {
		return &CorruptPayloadError{TigID: t.ID, cause: err}
	}
	if len(buf) != tig.EncodedLen(t) {
		// Codec self-disagreement is a bug, not a runtime condition.
		panic(fmt.Sprintf("tigstore: codec produced %d bytes, declared %d", len(buf), tig.EncodedLen(t)))
	}

	df, err := s.getDataFile(s.currentVersion, true)
	if err != nil {
		return err
	}
	off, err := df.Append(buf)
	if err != nil {
		return &IOError{Op: "append", Version: s.currentVersion, Offset: uint64(df.Size()), cause: err}
	}
	if s.opts.SyncOnFlush {
		if err := df.Sync(); err != nil {
			return &IOError{Op: "sync", Version: s.currentVersion, Offset: off, cause: err}
		}
	}

	sl.version = s.currentVersion
	sl.offset = off
	sl.childrenLen = uint32(len(t.Children))
	sl.flushNeeded = false

	if s.blocks != nil {
		s.blocks.Set(cache.BlockKey{Version: sl.version, Offset: sl.offset}, buf)
	}

	s.opts.Logger.LogFlush(t.ID, sl.version, sl.offset, nil)
	return nil
}

// readPayload fetches the raw record for a slot, through the block cache
// when one is configured.
func (s *Store) readPayload(id uint32, sl *slot) ([]byte, error) {
	if sl.version == 0 {
		return nil, &CorruptStoreError{
			Path:   s.path,
			Reason: fmt.Sprintf("slot %d has no payload location", id),
		}
	}

	key := cache.BlockKey{Version: sl.version, Offset: sl.offset}
	if s.blocks != nil {
		if raw, ok := s.blocks.Get(key); ok {
			return raw, nil
		}
	}

	df, err := s.getDataFile(sl.version, false)
	if err != nil {
		return nil, err
	}
	raw, err := df.ReadRecordAt(sl.offset)
	if err != nil {
		if errors.Is(err, datafile.ErrShortRecord) {
			return nil, &CorruptStoreError{
				Path:   df.Path(),
				Reason: fmt.Sprintf("slot %d references a record past end of file", id),
				cause:  err,
			}
		}
		return nil, &IOError{Op: "read", Version: sl.version, Offset: sl.offset, cause: err}
	}

	if s.blocks != nil {
		s.blocks.Set(key, raw)
	}
	return raw, nil
}

// readTig decodes the payload for a slot into t. The slot's embedded
// scalars are overlaid afterwards: they may be newer than the payload.
func (s *Store) readTig(id uint32, sl *slot, t *tig.Tig) error {
	raw, err := s.readPayload(id, sl)
	if err != nil {
		return err
	}
	if err := tig.DecodeInto(t, raw); err != nil {
		return &CorruptPayloadError{TigID: id, cause: err}
	}
	t.ID = id
	sl.applyTo(t)
	return nil
}

// purgeVersion removes the index and data files for one version.
func (s *Store) purgeVersion(version uint32) error {
	for _, p := range []string{s.indexPath(version), s.dataPath(version)} {
		if err := s.opts.FS.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("purge %s: %w", p, err)
		}
	}
	return nil
}

// purgeAll removes every store file at the path. Used by ModeCreate.
func (s *Store) purgeAll() error {
	entries, err := s.opts.FS.ReadDir(s.path)
	if err != nil {
		return fmt.Errorf("scan store directory %s: %w", s.path, err)
	}
	for _, e := range entries {
		name := e.Name()
		if !strings.HasPrefix(name, "seqDB.v") {
			continue
		}
		if err := s.opts.FS.Remove(filepath.Join(s.path, name)); err != nil {
			return fmt.Errorf("purge %s: %w", name, err)
		}
	}
	return nil
}
