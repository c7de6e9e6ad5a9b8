package tigstore

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hupe1980/tigstore/tig"
)

func TestSlotRoundTrip(t *testing.T) {
	in := slot{
		sourceID:        42,
		sourceBgn:       100,
		sourceEnd:       9000,
		childrenLen:     17,
		class:           tig.ClassContig,
		suggestRepeat:   true,
		suggestCircular: false,
		deleted:         true,
		version:         513,
		offset:          1 << 39,
		flushNeeded:     true,
	}

	var buf [slotSize]byte
	in.encode(buf[:])

	var out slot
	out.decode(buf[:])

	assert.Equal(t, in.sourceID, out.sourceID)
	assert.Equal(t, in.sourceBgn, out.sourceBgn)
	assert.Equal(t, in.sourceEnd, out.sourceEnd)
	assert.Equal(t, in.childrenLen, out.childrenLen)
	assert.Equal(t, in.class, out.class)
	assert.Equal(t, in.suggestRepeat, out.suggestRepeat)
	assert.Equal(t, in.suggestCircular, out.suggestCircular)
	assert.Equal(t, in.deleted, out.deleted)
	assert.Equal(t, in.version, out.version)
	assert.Equal(t, in.offset, out.offset)

	// flushNeeded is session state, never persisted.
	assert.False(t, out.flushNeeded)
}

func TestSlotPackedExtremes(t *testing.T) {
	in := slot{
		version: MaxVersion,
		offset:  (1 << slotOffsetBits) - 1,
	}

	var buf [slotSize]byte
	in.encode(buf[:])

	var out slot
	out.decode(buf[:])

	assert.Equal(t, uint32(MaxVersion), out.version)
	assert.Equal(t, uint64((1<<slotOffsetBits)-1), out.offset)
}

func TestSlotSetFromApplyTo(t *testing.T) {
	src := &tig.Tig{
		ID:              7,
		SourceID:        3,
		SourceBgn:       10,
		SourceEnd:       20,
		Class:           tig.ClassBubble,
		SuggestCircular: true,
		Children:        make([]tig.Child, 5),
	}

	var sl slot
	sl.setFrom(src)
	assert.Equal(t, uint32(5), sl.childrenLen)

	// Change the slot copy, overlay it onto a stale decode.
	sl.class = tig.ClassContig
	sl.sourceEnd = 99

	stale := src.Clone()
	stale.Class = tig.ClassBubble
	stale.SourceEnd = 20

	sl.applyTo(stale)
	assert.Equal(t, tig.ClassContig, stale.Class)
	assert.Equal(t, uint32(99), stale.SourceEnd)
	assert.True(t, stale.SuggestCircular)
}
