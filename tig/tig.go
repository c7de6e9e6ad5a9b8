package tig

// Class tags a tig with its role in the assembly.
type Class uint8

const (
	// ClassUnset marks a tig that has not been classified yet.
	ClassUnset Class = iota
	// ClassUnassembled marks a tig holding reads that did not assemble.
	ClassUnassembled
	// ClassBubble marks a tig that is a bubble in the assembly graph.
	ClassBubble
	// ClassContig marks a proper contig.
	ClassContig

	classMax
)

func (c Class) String() string {
	switch c {
	case ClassUnset:
		return "unset"
	case ClassUnassembled:
		return "unassembled"
	case ClassBubble:
		return "bubble"
	case ClassContig:
		return "contig"
	default:
		return "invalid"
	}
}

// Valid reports whether c is a known class tag.
func (c Class) Valid() bool {
	return c < classMax
}

// Child is one read placed into a tig: the read, its orientation, its
// coordinate interval within the tig, and alignment metadata relating it to
// the anchoring read.
type Child struct {
	ReadID   uint32
	Forward  bool
	Bgn, End int32

	// Alignment metadata.
	AnchorID     uint32
	AHang, BHang int32
}

// NoID marks a tig that has not been inserted into a store yet.
const NoID = ^uint32(0)

// New returns an empty tig with no identifier assigned.
func New() *Tig {
	return &Tig{ID: NoID}
}

// Tig is an assembled contig record.
//
// ID is assigned by the store on first insertion and never changes after
// that. The remaining header fields are individually mutable through the
// store's scalar setters without rewriting the payload.
type Tig struct {
	ID uint32

	SourceID  uint32
	SourceBgn uint32
	SourceEnd uint32

	Class           Class
	SuggestRepeat   bool
	SuggestCircular bool

	Children []Child
}

// Clone returns a deep copy of t.
func (t *Tig) Clone() *Tig {
	c := *t
	if t.Children != nil {
		c.Children = make([]Child, len(t.Children))
		copy(c.Children, t.Children)
	}
	return &c
}

// Equal reports field-wise equality, children included.
func (t *Tig) Equal(o *Tig) bool {
	if t.ID != o.ID ||
		t.SourceID != o.SourceID ||
		t.SourceBgn != o.SourceBgn ||
		t.SourceEnd != o.SourceEnd ||
		t.Class != o.Class ||
		t.SuggestRepeat != o.SuggestRepeat ||
		t.SuggestCircular != o.SuggestCircular ||
		len(t.Children) != len(o.Children) {
		return false
	}
	for i := range t.Children {
		if t.Children[i] != o.Children[i] {
			return false
		}
	}
	return true
}

// Reset clears t for reuse, keeping the children slice capacity.
func (t *Tig) Reset() {
	t.ID = 0
	t.SourceID = 0
	t.SourceBgn = 0
	t.SourceEnd = 0
	t.Class = ClassUnset
	t.SuggestRepeat = false
	t.SuggestCircular = false
	t.Children = t.Children[:0]
}
