package planner

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIDEqualityWinsOverMatch(t *testing.T) {
	p := Select(Constraints{IDEquality: true, HasMatch: true})
	require.Equal(t, IDLookup, p.Strategy)
	require.Equal(t, CostIDLookup, p.Cost)
}

func TestMatchWinsOverFullScan(t *testing.T) {
	p := Select(Constraints{HasMatch: true})
	require.Equal(t, MatchScan, p.Strategy)
	require.Equal(t, CostMatchScan, p.Cost)
}

func TestNoConstraintsIsFullScan(t *testing.T) {
	p := Select(Constraints{})
	require.Equal(t, FullScan, p.Strategy)
	require.Equal(t, CostFullScan, p.Cost)
}

func TestCostOrdering(t *testing.T) {
	require.Less(t, CostIDLookup, CostMatchScan)
	require.Less(t, CostMatchScan, CostFullScan)
}

func TestMatchScanSupportsAscendingOrder(t *testing.T) {
	p := Select(Constraints{HasMatch: true, RequestedOrder: OrderAsc})
	require.Equal(t, MatchScan, p.Strategy)
	require.Equal(t, OrderAsc, p.Ordering, "ascending MATCH_SCAN must be supported, not a TODO")
}

func TestMatchScanSupportsDescendingOrder(t *testing.T) {
	p := Select(Constraints{HasMatch: true, RequestedOrder: OrderDesc})
	require.Equal(t, OrderDesc, p.Ordering)
}

func TestStrategyString(t *testing.T) {
	cases := map[Strategy]string{
		FullScan:  "FULL_SCAN",
		MatchScan: "MATCH_SCAN",
		IDLookup:  "ID_LOOKUP",
	}
	for s, want := range cases {
		require.Equal(t, want, s.String())
	}
}
