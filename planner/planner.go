// Package planner implements strategy selection (§4.I): given the
// constraints available on a query, choose exactly one scan strategy and
// at most one row-id ordering to feed the cursor.
package planner

// Strategy is one of the scan strategies the planner may select.
type Strategy int

const (
	// FullScan walks every row in id order, verifying each with the
	// match verifier if a MATCH constraint is present. Used when no
	// narrower strategy applies.
	FullScan Strategy = iota
	// MatchScan evaluates a trigram expression tree to produce candidate
	// ids, then verifies each against the row text.
	MatchScan
	// IDLookup is a direct equality lookup on the row-id column.
	IDLookup
)

func (s Strategy) String() string {
	switch s {
	case FullScan:
		return "FULL_SCAN"
	case MatchScan:
		return "MATCH_SCAN"
	case IDLookup:
		return "ID_LOOKUP"
	default:
		return "UNKNOWN"
	}
}

// Cost estimates, fixed per strategy as specified (§4.I): ID_LOOKUP is
// cheapest, MATCH_SCAN moderate, FULL_SCAN expensive.
const (
	CostIDLookup = 1.0
	CostMatchScan = 19.0
	CostFullScan  = 5e5
)

// Ordering is the row-id ordering applied on top of a strategy. At most
// one of Asc/Desc may be requested; ordering applies only to the row-id
// column.
type Ordering int

const (
	OrderNone Ordering = iota
	OrderAsc
	OrderDesc
)

// Constraints summarises what the host's query offers the planner.
type Constraints struct {
	// IDEquality is true when the query constrains the row-id column by
	// equality.
	IDEquality bool
	// HasMatch is true when a MATCH operator constrains the indexed
	// text column.
	HasMatch bool
	// RequestedOrder is the ordering the host would prefer, if any; the
	// planner honours it when the chosen strategy supports it.
	RequestedOrder Ordering
}

// Plan is the strategy descriptor returned to the host.
type Plan struct {
	Strategy Strategy
	Ordering Ordering
	Cost     float64
}

// Select picks exactly one strategy (and at most one ordering) for the
// given constraints.
//
// Every strategy here supports both ascending and descending id
// ordering: MATCH_SCAN in ascending order was left an explicit TODO in
// the system this design is adapted from ("ascending MATCH_SCAN order is
// a TODO at source level"); this implementation treats ascending
// MATCH_SCAN as a required, fully supported case rather than a gap, since
// the expression-tree evaluator (package query) already yields ids in
// ascending order directly, and iterating a slice of candidates in
// reverse supplies descending order without re-walking the tree.
func Select(c Constraints) Plan {
	switch {
	case c.IDEquality:
		return Plan{Strategy: IDLookup, Ordering: c.RequestedOrder, Cost: CostIDLookup}
	case c.HasMatch:
		return Plan{Strategy: MatchScan, Ordering: c.RequestedOrder, Cost: CostMatchScan}
	default:
		return Plan{Strategy: FullScan, Ordering: c.RequestedOrder, Cost: CostFullScan}
	}
}
