package testutil

import (
	"math/rand"
	"sync"

	"github.com/hupe1980/tigstore/placement"
	"github.com/hupe1980/tigstore/tig"
)

// RNG is a seeded random generator for reproducible test data. Thread-safe.
type RNG struct {
	rand *rand.Rand
	seed int64
	mu   sync.Mutex
}

// NewRNG creates a new RNG with the given seed.
func NewRNG(seed int64) *RNG {
	return &RNG{
		rand: rand.New(rand.NewSource(seed)),
		seed: seed,
	}
}

// Reset rewinds the RNG to its initial seed.
func (r *RNG) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rand.Seed(r.seed)
}

// Seed returns the initial seed.
func (r *RNG) Seed() int64 {
	return r.seed
}

// Intn returns a non-negative pseudo-random number in [0,n).
func (r *RNG) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Intn(n)
}

// Uint32 returns a pseudo-random uint32.
func (r *RNG) Uint32() uint32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Uint32()
}

// Float64 returns a pseudo-random number in [0.0,1.0).
func (r *RNG) Float64() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Float64()
}

// RandomTig builds a tig with the given number of children laid end to end
// with small overlaps, the way a layout from an assembly looks.
func (r *RNG) RandomTig(children int) *tig.Tig {
	t := tig.New()
	t.SourceID = r.Uint32() % 10000
	t.Class = tig.ClassContig

	pos := int32(0)
	for i := 0; i < children; i++ {
		length := int32(500 + r.Intn(19500)) // 500..20000 bp
		child := tig.Child{
			ReadID:  r.Uint32()%1_000_000 + 1,
			Forward: r.Intn(2) == 0,
			Bgn:     pos,
			End:     pos + length,
		}
		if i > 0 {
			child.AnchorID = t.Children[i-1].ReadID
			child.AHang = int32(r.Intn(2000))
			child.BHang = -int32(r.Intn(2000))
		}
		t.Children = append(t.Children, child)
		pos += length - int32(r.Intn(400)) // overlap the next read a little
	}
	if children > 0 {
		t.SourceEnd = uint32(t.Children[children-1].End)
	}
	return t
}

// RandomTigs builds count tigs with child counts in [minChildren, maxChildren].
func (r *RNG) RandomTigs(count, minChildren, maxChildren int) []*tig.Tig {
	tigs := make([]*tig.Tig, count)
	for i := range tigs {
		n := minChildren
		if maxChildren > minChildren {
			n += r.Intn(maxChildren - minChildren + 1)
		}
		tigs[i] = r.RandomTig(n)
	}
	return tigs
}

// RandomPlacements builds count placements of one read scattered over
// tigCount tigs, for exercising the placement sorts and filters.
func (r *RNG) RandomPlacements(count int, readID uint32, tigCount int) []placement.Placement {
	ps := make([]placement.Placement, count)
	for i := range ps {
		bgn := int32(r.Intn(100000))
		end := bgn + int32(500+r.Intn(19500))
		if r.Intn(2) == 0 {
			bgn, end = end, bgn
		}
		ps[i] = placement.Placement{
			ReadID:    readID,
			RefID:     r.Uint32()%1_000_000 + 1,
			TigID:     uint32(r.Intn(tigCount)),
			ClusterID: int32(r.Intn(8)),
			Position:  placement.Interval{Bgn: bgn, End: end},
			Aligned:   uint32(1000 + r.Intn(9000)),
			Errors:    r.Float64() * 50,
		}
	}
	return ps
}
