package tig

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTig() *Tig {
	return &Tig{
		ID:              3,
		SourceID:        100,
		SourceBgn:       10,
		SourceEnd:       900,
		Class:           ClassContig,
		SuggestRepeat:   true,
		SuggestCircular: false,
		Children: []Child{
			{ReadID: 7, Forward: true, Bgn: 0, End: 50, AnchorID: 0, AHang: 0, BHang: -3},
			{ReadID: 9, Forward: false, Bgn: 40, End: 120, AnchorID: 7, AHang: 12, BHang: 0},
		},
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	orig := sampleTig()

	buf, err := Encode(orig)
	require.NoError(t, err)
	assert.Len(t, buf, EncodedLen(orig))

	got, err := Decode(buf)
	require.NoError(t, err)

	// The payload does not carry the ID.
	got.ID = orig.ID
	assert.True(t, got.Equal(orig))
}

func TestEncodeDecodeNoChildren(t *testing.T) {
	orig := &Tig{SourceID: 1, Class: ClassUnassembled}

	buf, err := Encode(orig)
	require.NoError(t, err)
	assert.Len(t, buf, headerSize)

	got, err := Decode(buf)
	require.NoError(t, err)
	assert.True(t, got.Equal(orig))
}

func TestDecodeTruncatedHeader(t *testing.T) {
	_, err := Decode(make([]byte, headerSize-1))
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestDecodeTruncatedChildren(t *testing.T) {
	buf, err := Encode(sampleTig())
	require.NoError(t, err)

	_, err = Decode(buf[:len(buf)-1])
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestDecodeTrailingGarbage(t *testing.T) {
	buf, err := Encode(sampleTig())
	require.NoError(t, err)

	_, err = Decode(append(buf, 0xff))
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestDecodeBadClassTag(t *testing.T) {
	buf, err := Encode(sampleTig())
	require.NoError(t, err)

	buf[12] = 0xee
	_, err = Decode(buf)
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestDecodeChildCountOverLimit(t *testing.T) {
	buf, err := Encode(&Tig{Class: ClassContig})
	require.NoError(t, err)

	binary.LittleEndian.PutUint32(buf[16:20], MaxChildren+1)
	_, err = Decode(buf)
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestEncodeInvalidClass(t *testing.T) {
	_, err := Encode(&Tig{Class: Class(200)})
	assert.Error(t, err)
}

func TestDecodeIntoReusesChildren(t *testing.T) {
	buf, err := Encode(sampleTig())
	require.NoError(t, err)

	reuse := &Tig{Children: make([]Child, 0, 16)}
	require.NoError(t, err)
	require.NoError(t, DecodeInto(reuse, buf))
	assert.Len(t, reuse.Children, 2)
	assert.Equal(t, 16, cap(reuse.Children))
}

func TestCloneIsDeep(t *testing.T) {
	orig := sampleTig()
	c := orig.Clone()
	require.True(t, c.Equal(orig))

	c.Children[0].ReadID = 999
	assert.Equal(t, uint32(7), orig.Children[0].ReadID)
	assert.False(t, c.Equal(orig))
}

func TestClassString(t *testing.T) {
	assert.Equal(t, "contig", ClassContig.String())
	assert.Equal(t, "invalid", Class(99).String())
	assert.True(t, ClassBubble.Valid())
	assert.False(t, Class(99).Valid())
}
