package pending

import (
	"math/rand/v2"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAddThenRemoveIsEmpty(t *testing.T) {
	tb := New()
	require.True(t, tb.Add(42, 100), "Add reported no-op on first insertion")
	require.True(t, tb.Remove(42, 100), "Remove reported no-op")
	added, removed := tb.Find(42)
	require.Empty(t, added)
	require.Empty(t, removed)
	require.True(t, tb.IsEmpty(), "table not empty after cancel-out")
}

func TestRemoveThenAddIsEmpty(t *testing.T) {
	tb := New()
	tb.Remove(7, 5)
	tb.Add(7, 5)
	added, removed := tb.Find(7)
	require.Empty(t, added)
	require.Empty(t, removed)
}

func TestAddTwiceIsNoOp(t *testing.T) {
	tb := New()
	require.True(t, tb.Add(1, 9), "first Add should not be a no-op")
	require.False(t, tb.Add(1, 9), "second Add of the same id should be a no-op")
	added, _ := tb.Find(1)
	require.Equal(t, []int64{9}, added)
}

func TestRemoveTwiceIsNoOp(t *testing.T) {
	tb := New()
	require.True(t, tb.Remove(1, 9), "first Remove should not be a no-op")
	require.False(t, tb.Remove(1, 9), "second Remove of the same id should be a no-op")
}

func TestChainOrderedByTrigram(t *testing.T) {
	tb := New()
	// Pick trigrams known to collide in the same bucket.
	var collide []Trigram
	seen := map[uint32]Trigram{}
	for tg := Trigram(0); len(collide) < 4; tg++ {
		h := hashOf(tg)
		if first, ok := seen[h]; ok {
			collide = append(collide, first, tg)
			break
		}
		seen[h] = tg
	}
	for i := len(collide) - 1; i >= 0; i-- {
		tb.Add(collide[i], 1)
	}
	h := hashOf(collide[0])
	var order []Trigram
	for e := tb.buckets[h]; e != nil; e = e.next {
		order = append(order, e.trigram)
	}
	for i := 1; i < len(order); i++ {
		require.Less(t, order[i-1], order[i], "chain not ascending: %v", order)
	}
}

func TestDrainVisitsEveryEntryOnce(t *testing.T) {
	tb := New()
	want := map[Trigram][]int64{}
	for i := 0; i < 500; i++ {
		tg := Trigram(i * 17)
		id := int64(i)
		tb.Add(tg, id)
		want[tg] = append(want[tg], id)
	}
	got := map[Trigram][]int64{}
	err := tb.Drain(func(c Change) error {
		got[c.Trigram] = append(got[c.Trigram], c.Added...)
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, want, got)
	require.True(t, tb.IsEmpty(), "table not empty after Drain")
}

func TestDrainSkipsAnnihilatedEntries(t *testing.T) {
	tb := New()
	tb.Add(9, 1)
	tb.Remove(9, 1) // cancels out, should not surface via Drain
	tb.Add(10, 2)   // a real, non-empty entry
	var visited []Trigram
	err := tb.Drain(func(c Change) error {
		visited = append(visited, c.Trigram)
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, []Trigram{10}, visited, "Drain should skip the fully cancelled trigram 9")
}

func TestResetDiscardsPending(t *testing.T) {
	tb := New()
	tb.Add(1, 1)
	tb.Add(2, 2)
	tb.Reset()
	require.True(t, tb.IsEmpty(), "table not empty after Reset")
	require.Zero(t, tb.ApproxMemory())
}

func TestAddRemoveIdempotenceRandom(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 4))
	for trial := 0; trial < 200; trial++ {
		tb := New()
		tg := Trigram(rng.IntN(100))
		id := int64(rng.IntN(1000))
		// Apply a random sequence of add/remove for the same id and track
		// the expected final state with a simple reference model.
		state := 0 // 0 = absent, 1 = added, -1 = removed
		for step := 0; step < 20; step++ {
			if rng.IntN(2) == 0 {
				tb.Add(tg, id)
				if state == -1 {
					state = 0
				} else {
					state = 1
				}
			} else {
				tb.Remove(tg, id)
				if state == 1 {
					state = 0
				} else {
					state = -1
				}
			}
		}
		added, removed := tb.Find(tg)
		switch state {
		case 0:
			require.Emptyf(t, added, "trial %d", trial)
			require.Emptyf(t, removed, "trial %d", trial)
		case 1:
			require.Equalf(t, []int64{id}, added, "trial %d", trial)
			require.Emptyf(t, removed, "trial %d", trial)
		case -1:
			require.Equalf(t, []int64{id}, removed, "trial %d", trial)
			require.Emptyf(t, added, "trial %d", trial)
		}
	}
}

func TestMultipleIdsStaySortedAndDisjoint(t *testing.T) {
	rng := rand.New(rand.NewPCG(11, 13))
	tb := New()
	const tg = Trigram(55)
	addedSet := map[int64]bool{}
	removedSet := map[int64]bool{}
	for i := 0; i < 300; i++ {
		id := int64(rng.IntN(100))
		if rng.IntN(2) == 0 {
			tb.Add(tg, id)
			addedSet[id] = true
			delete(removedSet, id)
		} else {
			tb.Remove(tg, id)
			removedSet[id] = true
			delete(addedSet, id)
		}
	}
	added, removed := tb.Find(tg)
	require.Equal(t, sortedKeys(addedSet), added)
	require.Equal(t, sortedKeys(removedSet), removed)
	for _, a := range added {
		for _, r := range removed {
			require.NotEqual(t, r, a, "added and removed both contain %d", a)
		}
	}
}

func sortedKeys(m map[int64]bool) []int64 {
	var out []int64
	for k := range m {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
