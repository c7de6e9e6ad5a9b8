package tigstore

import (
	"encoding/binary"

	"github.com/hupe1980/tigstore/tig"
)

// On-disk slot layout (little-endian, 28 bytes):
//
//	[SourceID:4][SourceBgn:4][SourceEnd:4][ChildrenLen:4]
//	[Class:1][Flags:1][Padding:2]
//	[Packed:8]  10-bit version | 40-bit offset | 14-bit reserved
//
// The packed word uses explicit shifts so the bit positions are fixed by
// this file, not by any compiler's bitfield layout. Reserved bits are
// written as zero and ignored on read.
const (
	slotSize = 28

	slotVersionBits  = 10
	slotOffsetBits   = 40
	slotReservedBits = 14

	slotVersionShift = slotOffsetBits + slotReservedBits
	slotOffsetShift  = slotReservedBits

	slotVersionMask = (1 << slotVersionBits) - 1
	slotOffsetMask  = (1 << slotOffsetBits) - 1

	slotFlagSuggestRepeat   = 1 << 0
	slotFlagSuggestCircular = 1 << 1
	slotFlagDeleted         = 1 << 2

	// MaxVersion is the largest version a slot can reference.
	MaxVersion = slotVersionMask
)

// slot is the in-memory metadata entry for one tig identifier. It embeds a
// copy of the scalar attributes so reads of those never touch the payload.
type slot struct {
	sourceID    uint32
	sourceBgn   uint32
	sourceEnd   uint32
	childrenLen uint32

	class           tig.Class
	suggestRepeat   bool
	suggestCircular bool
	deleted         bool

	version uint32 // data file holding the payload; 0 means none yet
	offset  uint64 // payload offset within that file

	// flushNeeded is in-memory only: the cached tig for this slot has
	// changes not yet persisted. Never written to disk.
	flushNeeded bool
}

func (s *slot) encode(buf []byte) {
	binary.LittleEndian.PutUint32(buf[0:4], s.sourceID)
	binary.LittleEndian.PutUint32(buf[4:8], s.sourceBgn)
	binary.LittleEndian.PutUint32(buf[8:12], s.sourceEnd)
	binary.LittleEndian.PutUint32(buf[12:16], s.childrenLen)
	buf[16] = byte(s.class)

	var flags byte
	if s.suggestRepeat {
		flags |= slotFlagSuggestRepeat
	}
	if s.suggestCircular {
		flags |= slotFlagSuggestCircular
	}
	if s.deleted {
		flags |= slotFlagDeleted
	}
	buf[17] = flags
	buf[18] = 0
	buf[19] = 0

	packed := uint64(s.version&slotVersionMask)<<slotVersionShift |
		(s.offset&slotOffsetMask)<<slotOffsetShift
	binary.LittleEndian.PutUint64(buf[20:28], packed)
}

func (s *slot) decode(buf []byte) {
	s.sourceID = binary.LittleEndian.Uint32(buf[0:4])
	s.sourceBgn = binary.LittleEndian.Uint32(buf[4:8])
	s.sourceEnd = binary.LittleEndian.Uint32(buf[8:12])
	s.childrenLen = binary.LittleEndian.Uint32(buf[12:16])
	s.class = tig.Class(buf[16])

	flags := buf[17]
	s.suggestRepeat = flags&slotFlagSuggestRepeat != 0
	s.suggestCircular = flags&slotFlagSuggestCircular != 0
	s.deleted = flags&slotFlagDeleted != 0

	packed := binary.LittleEndian.Uint64(buf[20:28])
	s.version = uint32(packed >> slotVersionShift & slotVersionMask)
	s.offset = packed >> slotOffsetShift & slotOffsetMask

	s.flushNeeded = false
}

// setFrom copies the scalar attributes and derived children length out of a
// tig into the slot. The payload location is left untouched.
func (s *slot) setFrom(t *tig.Tig) {
	s.sourceID = t.SourceID
	s.sourceBgn = t.SourceBgn
	s.sourceEnd = t.SourceEnd
	s.childrenLen = uint32(len(t.Children))
	s.class = t.Class
	s.suggestRepeat = t.SuggestRepeat
	s.suggestCircular = t.SuggestCircular
}

// applyTo overlays the slot's scalar attributes onto a decoded tig. The slot
// is authoritative: scalar setters update it without rewriting the payload,
// so a freshly decoded payload may carry stale scalars.
func (s *slot) applyTo(t *tig.Tig) {
	t.SourceID = s.sourceID
	t.SourceBgn = s.sourceBgn
	t.SourceEnd = s.sourceEnd
	t.Class = s.class
	t.SuggestRepeat = s.suggestRepeat
	t.SuggestCircular = s.suggestCircular
}
