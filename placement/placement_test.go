package placement

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIntervalDirection(t *testing.T) {
	fwd := Interval{Bgn: 10, End: 50}
	rev := Interval{Bgn: 50, End: 10}

	assert.False(t, fwd.IsReverse())
	assert.True(t, rev.IsReverse())
	assert.Equal(t, int32(10), rev.Min())
	assert.Equal(t, int32(50), rev.Max())
	assert.Equal(t, int32(40), fwd.Length())
	assert.Equal(t, fwd, rev.Reversed())
}

func TestErrorRate(t *testing.T) {
	p := Placement{Errors: 3, Aligned: 1000}
	assert.InDelta(t, 0.003, p.ErrorRate(), 1e-9)

	empty := Placement{}
	assert.Zero(t, empty.ErrorRate())
}

func TestSortByLocation(t *testing.T) {
	ps := []Placement{
		{TigID: 2, Position: Interval{Bgn: 0, End: 10}},
		{TigID: 1, Position: Interval{Bgn: 90, End: 40}}, // reverse
		{TigID: 1, Position: Interval{Bgn: 50, End: 100}},
		{TigID: 1, Position: Interval{Bgn: 5, End: 60}},
	}

	SortByLocation(ps)

	// Tig 1 first, forward before reverse, then by position.
	assert.Equal(t, uint32(1), ps[0].TigID)
	assert.Equal(t, Interval{Bgn: 5, End: 60}, ps[0].Position)
	assert.Equal(t, Interval{Bgn: 50, End: 100}, ps[1].Position)
	assert.True(t, ps[2].Position.IsReverse())
	assert.Equal(t, uint32(2), ps[3].TigID)
}

func TestSortByCluster(t *testing.T) {
	ps := []Placement{
		{ClusterID: 3},
		{ClusterID: NoCluster},
		{ClusterID: 1},
	}

	SortByCluster(ps)

	assert.Equal(t, NoCluster, ps[0].ClusterID)
	assert.Equal(t, int32(1), ps[1].ClusterID)
	assert.Equal(t, int32(3), ps[2].ClusterID)
}

func TestFilterFullMatch(t *testing.T) {
	ps := []Placement{
		{ReadID: 1, Covered: Interval{Bgn: 0, End: 100}},
		{ReadID: 2, Covered: Interval{Bgn: 10, End: 100}},
		{ReadID: 3, Covered: Interval{Bgn: 0, End: 90}},
	}

	kept := Filter(ps, FullMatch, 100, 1000)
	assert.Len(t, kept, 1)
	assert.Equal(t, uint32(1), kept[0].ReadID)
}

func TestFilterNoExtend(t *testing.T) {
	ps := []Placement{
		{ReadID: 1, Position: Interval{Bgn: 0, End: 500}},
		{ReadID: 2, Position: Interval{Bgn: -20, End: 400}},
		{ReadID: 3, Position: Interval{Bgn: 800, End: 1100}},
	}

	kept := Filter(ps, NoExtend, 100, 1000)
	assert.Len(t, kept, 1)
	assert.Equal(t, uint32(1), kept[0].ReadID)
}

func TestFilterAllKeepsEverything(t *testing.T) {
	ps := []Placement{
		{ReadID: 1, Covered: Interval{Bgn: 10, End: 50}, Position: Interval{Bgn: -5, End: 40}},
	}

	kept := Filter(ps, All, 100, 1000)
	assert.Len(t, kept, 1)
}
