package prefilter

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gotrigram/trigram/doclist"
	"github.com/gotrigram/trigram/pending"
	"github.com/gotrigram/trigram/query"
	"github.com/gotrigram/trigram/trgerr"
)

func universalLoader(t *testing.T) query.Loader {
	t.Helper()
	return func(tg pending.Trigram) ([]byte, bool, error) {
		return doclist.EncodeAll([]int64{1}), true, nil
	}
}

func TestLiteralYieldsSubstringFilter(t *testing.T) {
	_, expr, err := Compile([]byte("hello"), universalLoader(t), Options{})
	require.NoError(t, err)
	require.False(t, query.IsAny(expr) || query.IsNone(expr), "expected a real filter for a 5-byte literal, got sentinel")
}

func TestShortLiteralIsAny(t *testing.T) {
	_, expr, err := Compile([]byte("ab"), universalLoader(t), Options{})
	require.NoError(t, err)
	require.True(t, query.IsAny(expr), "a 2-byte literal has no trigram, should lower to Any")
}

func TestDotStarIsAny(t *testing.T) {
	_, expr, err := Compile([]byte(".*"), universalLoader(t), Options{})
	require.NoError(t, err)
	require.True(t, query.IsAny(expr), ".* has no required substring, should lower to Any")
}

func TestDotStarForbidFullScanErrors(t *testing.T) {
	_, _, err := Compile([]byte(".*"), universalLoader(t), Options{ForbidFullMatchScan: true})
	require.True(t, trgerr.Is(err, trgerr.NoPrefilter), "expected NoPrefilter error, got %v", err)
}

func TestAlternationOfLiteralsIsOr(t *testing.T) {
	_, expr, err := Compile([]byte("(?:foobar|bazquux)"), universalLoader(t), Options{})
	require.NoError(t, err)
	require.False(t, query.IsAny(expr) || query.IsNone(expr), "alternation of two literals should yield a real filter")
}

func TestAlternationWithShortBranchIsAny(t *testing.T) {
	// One branch ("x") is too short to contribute a trigram -> ALL, which
	// under OR collapses the whole alternation to ALL.
	_, expr, err := Compile([]byte("(?:foobarbaz|x)"), universalLoader(t), Options{})
	require.NoError(t, err)
	require.True(t, query.IsAny(expr), "OR with an ALL branch should collapse to Any")
}

func TestConcatMergesAdjacentLiterals(t *testing.T) {
	// "ab" then "cd" concatenated should merge into the literal "abcd"
	// (4 bytes, 2 trigrams), not two separate 2-byte sub-trigram atoms.
	// The capture groups keep the parser from fusing them into one literal.
	_, expr, err := Compile([]byte("(ab)(cd)"), universalLoader(t), Options{})
	require.NoError(t, err)
	require.False(t, query.IsAny(expr), "concatenation of literals totalling 4 bytes should yield a real filter, not Any")
}

func TestBadPatternErrors(t *testing.T) {
	_, _, err := Compile([]byte("a("), universalLoader(t), Options{})
	require.True(t, trgerr.Is(err, trgerr.BadPattern), "expected BadPattern for unbalanced paren, got %v", err)
}

func TestPlusRequiresSubexpression(t *testing.T) {
	_, expr, err := Compile([]byte("(?:abcde)+"), universalLoader(t), Options{})
	require.NoError(t, err)
	require.False(t, query.IsAny(expr), "+ requires at least one occurrence, its literal should still filter")
}

func TestStarDoesNotRequireSubexpression(t *testing.T) {
	_, expr, err := Compile([]byte("(?:abcde)*"), universalLoader(t), Options{})
	require.NoError(t, err)
	require.True(t, query.IsAny(expr), "* allows zero occurrences, should lower to Any")
}

func TestFoldAndNoneDominates(t *testing.T) {
	atom := &node{kind: kindAtom, atoms: [][]byte{[]byte("abc")}}
	got := foldAnd([]*node{atom, noneNode})
	require.Equal(t, kindNone, got.kind, "foldAnd with a NONE child should yield NONE")
}

func TestFoldOrAllDominates(t *testing.T) {
	atom := &node{kind: kindAtom, atoms: [][]byte{[]byte("abc")}}
	got := foldOr([]*node{atom, allNode})
	require.Equal(t, kindAll, got.kind, "foldOr with an ALL child should yield ALL")
}

func TestCharClassCrossProduct(t *testing.T) {
	// "h[ae]l" should lower to OR(substr("hal"), substr("hel")), not
	// collapse the class to ALL.
	_, expr, err := Compile([]byte("h[ae]l"), universalLoader(t), Options{})
	require.NoError(t, err)
	require.False(t, query.IsAny(expr) || query.IsNone(expr), "expected a real filter for h[ae]l, got sentinel")
}

func TestCharClassCrossProductForbidFullScanDoesNotError(t *testing.T) {
	_, _, err := Compile([]byte("h[ae]l"), universalLoader(t), Options{ForbidFullMatchScan: true})
	require.NoError(t, err, "h[ae]l is filterable, forbid_full_match_scan should not reject it")
}

func TestLargeCharClassFallsBackToAll(t *testing.T) {
	_, expr, err := Compile([]byte("[a-z]"), universalLoader(t), Options{})
	require.NoError(t, err)
	require.True(t, query.IsAny(expr), "a 26-character class exceeds the expansion bound, should lower to Any")
}

func TestFoldAndEmptyIsAll(t *testing.T) {
	require.Equal(t, kindAll, foldAnd(nil).kind, "empty AND should be ALL")
}

func TestFoldOrEmptyIsNone(t *testing.T) {
	require.Equal(t, kindNone, foldOr(nil).kind, "empty OR should be NONE")
}
