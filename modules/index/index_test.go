package index

import (
	"testing"
	"time"

	"github.com/jjvcs/opgraph/modules/commit"
	"github.com/jjvcs/opgraph/modules/objectid"
	"github.com/stretchr/testify/require"
)

func mkCommit(name string, parents ...objectid.CommitID) *commit.Commit {
	return &commit.Commit{
		ID:        objectid.CommitIDFromHex("") ,
		Parents:   parents,
		ChangeID:  objectid.ChangeID(objectid.Hash([]byte("change-" + name))),
		Committer: commit.Signature{When: time.Unix(int64(len(name)), 0)},
	}
}

func withID(c *commit.Commit, name string) *commit.Commit {
	c.ID = objectid.CommitID(objectid.Hash([]byte(name)))
	return c
}

func buildLinearIndex() (*ReadonlyIndex, map[string]objectid.CommitID) {
	ids := map[string]objectid.CommitID{}
	mi := NewMutable(nil)
	root := withID(mkCommit("root"), "root")
	ids["root"] = root.ID
	mi.AddCommit(root)

	a := withID(mkCommit("a", root.ID), "a")
	ids["a"] = a.ID
	mi.AddCommit(a)

	b := withID(mkCommit("b", a.ID), "b")
	ids["b"] = b.ID
	mi.AddCommit(b)

	return mi.Freeze(), ids
}

func TestIndexAncestryAndHeads(t *testing.T) {
	idx, ids := buildLinearIndex()
	require.True(t, idx.IsAncestor(ids["root"], ids["b"]))
	require.True(t, idx.IsAncestor(ids["a"], ids["b"]))
	require.False(t, idx.IsAncestor(ids["b"], ids["a"]))
	require.False(t, idx.IsAncestor(ids["a"], ids["a"]))

	heads := idx.Heads([]objectid.CommitID{ids["root"], ids["a"], ids["b"]})
	require.Equal(t, []objectid.CommitID{ids["b"]}, heads)

	roots := idx.Roots([]objectid.CommitID{ids["root"], ids["a"], ids["b"]})
	require.Equal(t, []objectid.CommitID{ids["root"]}, roots)
}

func TestIndexTopoOrderRespectsParents(t *testing.T) {
	idx, ids := buildLinearIndex()
	order := idx.TopoOrder([]objectid.CommitID{ids["b"], ids["root"], ids["a"]})
	require.Equal(t, []objectid.CommitID{ids["root"], ids["a"], ids["b"]}, order)
}

func TestResolvePrefixSingleMatch(t *testing.T) {
	idx, ids := buildLinearIndex()
	full := ids["a"].String()
	res := idx.ResolvePrefix(mustPrefix(full[:4]))
	require.Equal(t, objectid.SingleMatch, res.Kind)
	require.Equal(t, ids["a"], res.Payload)
}

func mustPrefix(s string) objectid.HexPrefix {
	p, ok := objectid.NewHexPrefix(s)
	if !ok {
		panic("bad prefix")
	}
	return p
}

func TestChangeIDIndexShortestUniquePrefix(t *testing.T) {
	idx, ids := buildLinearIndex()
	visible := []objectid.CommitID{ids["root"], ids["a"], ids["b"]}
	ci := NewChangeIDIndex(idx, visible)
	for _, id := range visible {
		e, _ := idx.Entry(id)
		n := ci.ShortestUniquePrefixLen(e.ChangeID)
		require.Greater(t, n, 0)
		p, ok := objectid.NewChangeHexPrefix(e.ChangeID.String()[:n])
		require.True(t, ok)
		res := ci.ResolvePrefix(p)
		require.Equal(t, objectid.SingleMatch, res.Kind)
	}
}
