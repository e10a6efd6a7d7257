package commit

import (
	"bytes"
	"testing"
	"time"

	"github.com/jjvcs/opgraph/modules/objectid"
	"github.com/stretchr/testify/require"
)

func sampleCommit() *Commit {
	when := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	return &Commit{
		Tree:     objectid.TreeID(objectid.Hash([]byte("tree"))),
		ChangeID: objectid.ChangeID(objectid.Hash([]byte("change"))),
		Parents:  []objectid.CommitID{objectid.CommitIDFromHex("ab")},
		Author:   Signature{Name: "A", Email: "a@example.com", When: when},
		Committer: Signature{
			Name: "A", Email: "a@example.com", When: when,
		},
		Description: "a change\n",
	}
}

func TestCommitEncodeDecodeRoundTrip(t *testing.T) {
	c := sampleCommit()
	var buf bytes.Buffer
	require.NoError(t, c.Encode(&buf))

	id := objectid.CommitID(objectid.Hash(buf.Bytes()))
	decoded, err := Decode(id, bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)

	require.Equal(t, c.Tree, decoded.Tree)
	require.Equal(t, c.ChangeID, decoded.ChangeID)
	require.Equal(t, c.Parents, decoded.Parents)
	require.Equal(t, c.Description, decoded.Description)
	require.Equal(t, c.Author.Name, decoded.Author.Name)
	require.Equal(t, c.Author.Email, decoded.Author.Email)
	require.True(t, c.Author.When.Equal(decoded.Author.When))
}

func TestSubjectIsFirstLine(t *testing.T) {
	c := sampleCommit()
	require.Equal(t, "a change", c.Subject())
}
