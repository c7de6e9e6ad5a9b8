package tigstore

import (
	"github.com/hupe1980/tigstore/tig"
)

// Scalar accessors answer metadata questions from the in-memory slots
// without touching the payload files. Setters update the slot (persisted at
// the next index write) and the cached tig when one exists; the payload on
// disk is deliberately left stale, which is why loads overlay slot scalars
// after decoding.
//
// All accessors panic on an out-of-range identifier.

// SourceID returns the identifier of the object this tig was derived from.
func (s *Store) SourceID(id uint32) uint32 {
	s.mustHave(id)
	return s.slots[id].sourceID
}

// SourceCoords returns the coordinate interval on the source object.
func (s *Store) SourceCoords(id uint32) (bgn, end uint32) {
	s.mustHave(id)
	return s.slots[id].sourceBgn, s.slots[id].sourceEnd
}

// Class returns the tig's classification.
func (s *Store) Class(id uint32) tig.Class {
	s.mustHave(id)
	return s.slots[id].class
}

// SuggestRepeat reports whether the tig is flagged as a suspected repeat.
func (s *Store) SuggestRepeat(id uint32) bool {
	s.mustHave(id)
	return s.slots[id].suggestRepeat
}

// SuggestCircular reports whether the tig is flagged as suspected circular.
func (s *Store) SuggestCircular(id uint32) bool {
	s.mustHave(id)
	return s.slots[id].suggestCircular
}

// NumChildren returns the number of placed reads, without loading the
// payload.
func (s *Store) NumChildren(id uint32) uint32 {
	s.mustHave(id)
	return s.slots[id].childrenLen
}

// Version returns the store version holding the tig's payload. Zero means
// the tig has never been flushed.
func (s *Store) Version(id uint32) uint32 {
	s.mustHave(id)
	return s.slots[id].version
}

// IsDeleted reports whether the tig is marked deleted.
func (s *Store) IsDeleted(id uint32) bool {
	s.mustHave(id)
	return s.slots[id].deleted
}

// SetSource records the source object and interval a tig was derived from.
func (s *Store) SetSource(id uint32, sourceID, bgn, end uint32) error {
	if err := s.checkWritable(); err != nil {
		return err
	}
	s.mustHave(id)

	sl := &s.slots[id]
	sl.sourceID = sourceID
	sl.sourceBgn = bgn
	sl.sourceEnd = end
	if c := s.cached[id]; c != nil {
		c.SourceID = sourceID
		c.SourceBgn = bgn
		c.SourceEnd = end
	}
	return nil
}

// SetClass reclassifies a tig.
func (s *Store) SetClass(id uint32, class tig.Class) error {
	if err := s.checkWritable(); err != nil {
		return err
	}
	s.mustHave(id)

	s.slots[id].class = class
	if c := s.cached[id]; c != nil {
		c.Class = class
	}
	return nil
}

// SetSuggestRepeat flags or unflags a tig as a suspected repeat.
func (s *Store) SetSuggestRepeat(id uint32, v bool) error {
	if err := s.checkWritable(); err != nil {
		return err
	}
	s.mustHave(id)

	s.slots[id].suggestRepeat = v
	if c := s.cached[id]; c != nil {
		c.SuggestRepeat = v
	}
	return nil
}

// SetSuggestCircular flags or unflags a tig as suspected circular.
func (s *Store) SetSuggestCircular(id uint32, v bool) error {
	if err := s.checkWritable(); err != nil {
		return err
	}
	s.mustHave(id)

	s.slots[id].suggestCircular = v
	if c := s.cached[id]; c != nil {
		c.SuggestCircular = v
	}
	return nil
}
