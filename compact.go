package tigstore

import (
	"context"
	"encoding/binary"
	"fmt"
	"os"
	"sort"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/hupe1980/tigstore/internal/datafile"
)

// CompactionPlan describes how much space a compaction of the current data
// file would reclaim.
type CompactionPlan struct {
	Version          uint32
	Live             *roaring.Bitmap // tig ids whose payload lives in this file
	LiveBytes        int64
	TotalBytes       int64
	ReclaimableBytes int64
}

// PlanCompaction inspects the current version's data file and reports the
// live record set and the bytes that deletes and re-flushes have stranded.
func (s *Store) PlanCompaction() (*CompactionPlan, error) {
	if err := s.checkWritable(); err != nil {
		return nil, err
	}

	plan := &CompactionPlan{
		Version: s.currentVersion,
		Live:    roaring.New(),
	}

	df, ok := s.data[s.currentVersion]
	if !ok {
		// Nothing written yet this version.
		return plan, nil
	}
	plan.TotalBytes = df.Size()

	for id := range s.slots {
		sl := &s.slots[id]
		if sl.deleted || sl.version != s.currentVersion {
			continue
		}
		plan.Live.Add(uint32(id))
		plan.LiveBytes += datafile.RecordSize(int(payloadLen(sl)))
	}
	plan.ReclaimableBytes = plan.TotalBytes - plan.LiveBytes
	return plan, nil
}

// payloadLen computes the encoded payload size a slot's record occupies,
// from the header layout and the children count kept in the slot.
func payloadLen(sl *slot) uint32 {
	const (
		headerLen = 20
		childLen  = 28
	)
	return headerLen + childLen*sl.childrenLen
}

// Compact rewrites the current version's data file keeping only live
// records, updating every affected slot's offset. Stranded bytes come from
// deletes and from re-flushing a cached tig more than once in a session.
//
// The rewrite goes to a temp file renamed over the original, so a crash
// mid-compaction leaves the store untouched. Reads against the compacted
// version through the block cache are invalidated.
func (s *Store) Compact(ctx context.Context) error {
	plan, err := s.PlanCompaction()
	if err != nil {
		return err
	}
	if plan.ReclaimableBytes <= 0 || plan.Live.IsEmpty() {
		s.opts.Logger.LogCompaction(plan.Version, 0, 0, nil)
		return nil
	}

	df := s.data[plan.Version]

	// Copy live records in file order for sequential reads.
	ids := plan.Live.ToArray()
	sort.Slice(ids, func(i, j int) bool {
		return s.slots[ids[i]].offset < s.slots[ids[j]].offset
	})

	path := s.dataPath(plan.Version)
	tmp := path + ".compact"

	out, err := s.opts.FS.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return &IOError{Op: "compact", Version: plan.Version, cause: err}
	}

	fail := func(cause error) error {
		_ = out.Close()
		_ = s.opts.FS.Remove(tmp)
		err := &IOError{Op: "compact", Version: plan.Version, cause: cause}
		s.opts.Logger.LogCompaction(plan.Version, 0, 0, err)
		return err
	}

	newOffsets := make(map[uint32]uint64, len(ids))
	var (
		written int64
		prefix  [4]byte
	)
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return fail(err)
		}
		raw, err := df.ReadRecordAt(s.slots[id].offset)
		if err != nil {
			return fail(err)
		}
		if s.opts.Resources != nil {
			if err := s.opts.Resources.AcquireIO(ctx, int(datafile.RecordSize(len(raw)))); err != nil {
				return fail(err)
			}
		}
		newOffsets[id] = uint64(written)
		binary.LittleEndian.PutUint32(prefix[:], uint32(len(raw)))
		if _, err := out.Write(prefix[:]); err != nil {
			return fail(err)
		}
		if _, err := out.Write(raw); err != nil {
			return fail(err)
		}
		written += datafile.RecordSize(len(raw))
	}
	if err := out.Sync(); err != nil {
		return fail(err)
	}
	if err := out.Close(); err != nil {
		_ = s.opts.FS.Remove(tmp)
		return &IOError{Op: "compact", Version: plan.Version, cause: err}
	}

	// Swap the compacted file in and reopen the handle.
	if err := df.Close(); err != nil {
		_ = s.opts.FS.Remove(tmp)
		return &IOError{Op: "compact", Version: plan.Version, cause: err}
	}
	delete(s.data, plan.Version)
	if err := s.opts.FS.Rename(tmp, path); err != nil {
		_ = s.opts.FS.Remove(tmp)
		return &IOError{Op: "compact", Version: plan.Version, cause: fmt.Errorf("rename compacted file: %w", err)}
	}
	if _, err := s.getDataFile(plan.Version, true); err != nil {
		return err
	}

	for id, off := range newOffsets {
		s.slots[id].offset = off
	}
	if s.blocks != nil {
		s.blocks.InvalidateVersion(plan.Version)
	}

	s.opts.Logger.LogCompaction(plan.Version, plan.Live.GetCardinality(), plan.ReclaimableBytes, nil)
	return nil
}
