package verify

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMatchSubstring(t *testing.T) {
	require.True(t, MatchSubstring([]byte("hello world"), []byte("wor")))
	require.False(t, MatchSubstring([]byte("hello world"), []byte("xyz")))
}

func TestSubstringExtentsNonOverlapping(t *testing.T) {
	// "aaaa" searched for "aa": non-overlapping occurrences at [0,2) and
	// [2,4), not the overlapping [0,2),[1,3),[2,4).
	got := SubstringExtents([]byte("aaaa"), []byte("aa"))
	want := []Extent{{0, 2}, {2, 4}}
	require.Equal(t, want, got)
}

func TestSubstringExtentsMultipleOccurrences(t *testing.T) {
	got := SubstringExtents([]byte("foo bar foo baz foo"), []byte("foo"))
	want := []Extent{{0, 3}, {8, 11}, {16, 19}}
	require.Equal(t, want, got)
}

func TestSubstringExtentsNoMatch(t *testing.T) {
	require.Nil(t, SubstringExtents([]byte("hello"), []byte("xyz")))
}

func TestMatchRegexpIsUnanchored(t *testing.T) {
	re := regexp.MustCompile("wor.d")
	require.True(t, MatchRegexp(re, []byte("hello world")))
	require.False(t, MatchRegexp(re, []byte("hello")))
}

func TestRegexpExtentsInOrder(t *testing.T) {
	re := regexp.MustCompile("[0-9]+")
	got := RegexpExtents(re, []byte("a12 b345 c6"))
	want := []Extent{{1, 3}, {5, 8}, {10, 11}}
	require.Equal(t, want, got)
}

func TestRegexpExtentsNoMatch(t *testing.T) {
	re := regexp.MustCompile("[0-9]+")
	require.Nil(t, RegexpExtents(re, []byte("abc")))
}
