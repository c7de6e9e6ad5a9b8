package tig

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// On-disk payload layout (little-endian). The length prefix that precedes a
// payload in a data file is written by the data file layer, not here.
//
//	Header (20 bytes):
//	  [SourceID:4][SourceBgn:4][SourceEnd:4][Class:1][Flags:1][Reserved:2][ChildCount:4]
//	Children (28 bytes each):
//	  [ReadID:4][Flags:1][Reserved:3][Bgn:4][End:4][AnchorID:4][AHang:4][BHang:4]
const (
	headerSize = 20
	childSize  = 28

	flagSuggestRepeat   = 1 << 0
	flagSuggestCircular = 1 << 1

	childFlagForward = 1 << 0

	// MaxChildren is the sanity limit on the child count of a single tig.
	// A decoded count above this limit is treated as corruption, not as a
	// very large tig.
	MaxChildren = 1 << 28
)

// ErrCorrupt is returned when a payload cannot be decoded. Wrapped errors
// carry the specific reason; test with errors.Is.
var ErrCorrupt = errors.New("corrupt tig payload")

// EncodedLen returns the exact size of the encoding of t.
func EncodedLen(t *Tig) int {
	return headerSize + len(t.Children)*childSize
}

// Encode serializes t. The tig ID is not part of the payload; it lives in
// the metadata slot.
func Encode(t *Tig) ([]byte, error) {
	if len(t.Children) > MaxChildren {
		return nil, fmt.Errorf("tig %d: %d children exceeds limit %d", t.ID, len(t.Children), MaxChildren)
	}
	if !t.Class.Valid() {
		return nil, fmt.Errorf("tig %d: invalid class tag %d", t.ID, t.Class)
	}

	buf := make([]byte, EncodedLen(t))

	binary.LittleEndian.PutUint32(buf[0:4], t.SourceID)
	binary.LittleEndian.PutUint32(buf[4:8], t.SourceBgn)
	binary.LittleEndian.PutUint32(buf[8:12], t.SourceEnd)
	buf[12] = byte(t.Class)

	var flags byte
	if t.SuggestRepeat {
		flags |= flagSuggestRepeat
	}
	if t.SuggestCircular {
		flags |= flagSuggestCircular
	}
	buf[13] = flags
	// buf[14:16] reserved, zero.
	binary.LittleEndian.PutUint32(buf[16:20], uint32(len(t.Children)))

	off := headerSize
	for i := range t.Children {
		c := &t.Children[i]
		binary.LittleEndian.PutUint32(buf[off:], c.ReadID)
		if c.Forward {
			buf[off+4] = childFlagForward
		}
		// buf[off+5:off+8] reserved, zero.
		binary.LittleEndian.PutUint32(buf[off+8:], uint32(c.Bgn))
		binary.LittleEndian.PutUint32(buf[off+12:], uint32(c.End))
		binary.LittleEndian.PutUint32(buf[off+16:], c.AnchorID)
		binary.LittleEndian.PutUint32(buf[off+20:], uint32(c.AHang))
		binary.LittleEndian.PutUint32(buf[off+24:], uint32(c.BHang))
		off += childSize
	}

	return buf, nil
}

// Decode parses a payload into a fresh tig.
func Decode(data []byte) (*Tig, error) {
	t := &Tig{}
	if err := DecodeInto(t, data); err != nil {
		return nil, err
	}
	return t, nil
}

// DecodeInto parses a payload into t, reusing its children slice when the
// capacity allows. The tig ID is left untouched.
func DecodeInto(t *Tig, data []byte) error {
	if len(data) < headerSize {
		return fmt.Errorf("%w: truncated header (%d bytes)", ErrCorrupt, len(data))
	}

	class := Class(data[12])
	if !class.Valid() {
		return fmt.Errorf("%w: unrecognized class tag %d", ErrCorrupt, data[12])
	}

	count := binary.LittleEndian.Uint32(data[16:20])
	if count > MaxChildren {
		return fmt.Errorf("%w: child count %d exceeds limit %d", ErrCorrupt, count, MaxChildren)
	}
	want := headerSize + int(count)*childSize
	if len(data) != want {
		return fmt.Errorf("%w: payload is %d bytes, expected %d for %d children", ErrCorrupt, len(data), want, count)
	}

	t.SourceID = binary.LittleEndian.Uint32(data[0:4])
	t.SourceBgn = binary.LittleEndian.Uint32(data[4:8])
	t.SourceEnd = binary.LittleEndian.Uint32(data[8:12])
	t.Class = class
	t.SuggestRepeat = data[13]&flagSuggestRepeat != 0
	t.SuggestCircular = data[13]&flagSuggestCircular != 0

	if cap(t.Children) >= int(count) {
		t.Children = t.Children[:count]
	} else {
		t.Children = make([]Child, count)
	}

	off := headerSize
	for i := range t.Children {
		c := &t.Children[i]
		c.ReadID = binary.LittleEndian.Uint32(data[off:])
		c.Forward = data[off+4]&childFlagForward != 0
		c.Bgn = int32(binary.LittleEndian.Uint32(data[off+8:]))
		c.End = int32(binary.LittleEndian.Uint32(data[off+12:]))
		c.AnchorID = binary.LittleEndian.Uint32(data[off+16:])
		c.AHang = int32(binary.LittleEndian.Uint32(data[off+20:]))
		c.BHang = int32(binary.LittleEndian.Uint32(data[off+24:]))
		off += childSize
	}

	return nil
}
