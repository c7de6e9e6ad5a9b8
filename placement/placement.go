package placement

import (
	"sort"

	"github.com/hupe1980/tigstore/tig"
)

// NoCluster marks a placement that should be ignored by cluster grouping.
const NoCluster = int32(-1)

// Interval is a directed coordinate range on a tig or read. Bgn greater
// than End means the placement is reverse-complemented.
type Interval struct {
	Bgn, End int32
}

// IsReverse reports whether the interval runs backwards.
func (iv Interval) IsReverse() bool {
	return iv.Bgn > iv.End
}

// Min returns the lower coordinate.
func (iv Interval) Min() int32 {
	if iv.Bgn < iv.End {
		return iv.Bgn
	}
	return iv.End
}

// Max returns the upper coordinate.
func (iv Interval) Max() int32 {
	if iv.Bgn > iv.End {
		return iv.Bgn
	}
	return iv.End
}

// Length returns the span of the interval.
func (iv Interval) Length() int32 {
	return iv.Max() - iv.Min()
}

// Reversed returns the interval with its direction flipped.
func (iv Interval) Reversed() Interval {
	return Interval{Bgn: iv.End, End: iv.Bgn}
}

// less orders by lower then upper coordinate, ignoring direction.
func (iv Interval) less(o Interval) bool {
	if iv.Min() != o.Min() {
		return iv.Min() < o.Min()
	}
	return iv.Max() < o.Max()
}

// Placement is one candidate location of a read in a tig, derived from the
// read's overlaps to reads already placed there.
type Placement struct {
	ReadID uint32 // the read being placed
	RefID  uint32 // the placed read whose overlap anchored this placement
	TigID  uint32

	ClusterID int32 // NoCluster when the placement is to be ignored

	Position Interval // location in the tig
	Verified Interval // portion of Position confirmed by overlaps
	Covered  Interval // portion of the read covered by overlaps

	Coverage float64 // fraction of the read covered

	Errors  float64 // alignment errors summed over supporting overlaps
	Aligned uint32  // aligned bases summed over supporting overlaps

	FirstSupport uint32 // first tig read supporting this placement
	LastSupport  uint32 // last tig read supporting this placement
}

// ErrorRate returns the aggregate alignment error rate.
func (p *Placement) ErrorRate() float64 {
	if p.Aligned == 0 {
		return 0
	}
	return p.Errors / float64(p.Aligned)
}

// Flags restrict which placements a Placer reports.
type Flags uint32

const (
	// All reports every placement.
	All Flags = 0
	// FullMatch reports only placements covering the whole read.
	FullMatch Flags = 1 << 0
	// NoExtend reports only placements fully contained in the tig.
	NoExtend Flags = 1 << 1
)

// Placer computes candidate placements for a read against a target tig.
// Implementations consult an overlap source; the store itself only carries
// the tig layout.
type Placer interface {
	PlaceRead(target *tig.Tig, readID uint32, flags Flags) ([]Placement, error)
}

// SortByLocation orders placements by tig, orientation, then position. Used
// to cluster placements into overlapping regions; ties are not meaningful.
func SortByLocation(ps []Placement) {
	sort.Slice(ps, func(i, j int) bool {
		a, b := &ps[i], &ps[j]
		if a.TigID != b.TigID {
			return a.TigID < b.TigID
		}
		if a.Position.IsReverse() != b.Position.IsReverse() {
			return !a.Position.IsReverse()
		}
		return a.Position.less(b.Position)
	})
}

// SortByCluster groups placements by cluster. Ties can reorder when the
// input overlaps change; callers must not depend on intra-cluster order.
func SortByCluster(ps []Placement) {
	sort.Slice(ps, func(i, j int) bool {
		return ps[i].ClusterID < ps[j].ClusterID
	})
}

// Filter drops placements a flag set excludes: partial-read placements
// under FullMatch, tig-extending placements under NoExtend. readLen and
// tigLen bound the checks. Filters in place and returns the kept prefix.
func Filter(ps []Placement, flags Flags, readLen, tigLen int32) []Placement {
	kept := ps[:0]
	for _, p := range ps {
		if flags&FullMatch != 0 {
			if p.Covered.Min() != 0 || p.Covered.Max() != readLen {
				continue
			}
		}
		if flags&NoExtend != 0 {
			if p.Position.Min() < 0 || p.Position.Max() > tigLen {
				continue
			}
		}
		kept = append(kept, p)
	}
	return kept
}
