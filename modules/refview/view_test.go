package refview

import (
	"testing"

	"github.com/jjvcs/opgraph/modules/objectid"
	"github.com/stretchr/testify/require"
)

func cid(s string) objectid.CommitID {
	return objectid.CommitID(objectid.Hash([]byte(s)))
}

func TestRefTargetMergeTrivialShortcuts(t *testing.T) {
	a, b := Normal(cid("a")), Normal(cid("b"))

	// other unchanged vs base -> keep self.
	require.True(t, a.Merge(a, a).Equal(a))
	require.True(t, b.Merge(a, a).Equal(b))

	// self unchanged vs base -> take other.
	require.True(t, a.Merge(a, b).Equal(b))

	// both sides made the same change -> no conflict.
	require.True(t, b.Merge(a, b).Equal(b))
}

func TestRefTargetMergeDivergentProducesConflict(t *testing.T) {
	base, self, other := Normal(cid("base")), Normal(cid("self")), Normal(cid("other"))
	merged := self.Merge(base, other)
	require.True(t, merged.IsConflict())
	require.ElementsMatch(t, []objectid.CommitID{cid("base")}, merged.Removes())
	require.ElementsMatch(t, []objectid.CommitID{cid("self"), cid("other")}, merged.Adds())
}

func TestRefTargetNormalizeCancelsMatchedPairs(t *testing.T) {
	x := cid("x")
	t1 := Conflict([]objectid.CommitID{x}, []objectid.CommitID{x})
	require.True(t, t1.IsAbsent())
}

func TestViewEnsureNonEmptyHeadsKeepsExistingHead(t *testing.T) {
	v := New()
	v.AddHeadRaw(cid("root"))
	v.EnsureNonEmptyHeads(cid("root"))
	require.ElementsMatch(t, []objectid.CommitID{cid("root")}, v.Heads())
}

func TestDiffRefsOmitsEqualEntries(t *testing.T) {
	base := map[string]RefTarget{"main": Normal(cid("a")), "topic": Normal(cid("b"))}
	other := map[string]RefTarget{"main": Normal(cid("a")), "topic": Normal(cid("c"))}
	diff := DiffRefs(base, other)
	require.Len(t, diff, 1)
	require.Equal(t, "topic", diff[0].Name)
}
