package refview

import (
	"bytes"
	"testing"

	"github.com/jjvcs/opgraph/modules/objectid"
	"github.com/stretchr/testify/require"
)

func TestCodecRoundTrip(t *testing.T) {
	v := New()
	v.AddHeadRaw(cid("head1"))
	v.AddHeadRaw(cid("head2"))
	v.SetWorkingCopy(objectid.WorkspaceID("default"), cid("wc1"))
	v.SetWorkingCopy(objectid.WorkspaceID("second workspace"), cid("wc2"))
	v.SetLocalBranch("main", Normal(cid("m")))
	v.SetLocalBranch("topic", Conflict([]objectid.CommitID{cid("b")}, []objectid.CommitID{cid("b1"), cid("b2")}))
	v.SetTag("v1.0", Normal(cid("t")))
	v.SetGitRef("refs/heads/main", Normal(cid("m")))
	v.SetGitHead(Normal(cid("m")))
	v.SetRemoteBranch("main", "origin", RemoteRef{Target: Normal(cid("rm")), State: RemoteRefTracking})
	v.SetRemoteBranch("feature", "upstream fork", RemoteRef{Target: Normal(cid("rf")), State: RemoteRefNew})

	var buf bytes.Buffer
	require.NoError(t, Encode(v, &buf))

	decoded, err := Decode(&buf)
	require.NoError(t, err)

	require.ElementsMatch(t, v.Heads(), decoded.Heads())
	wc1, ok1 := decoded.WorkingCopy("default")
	require.True(t, ok1)
	require.Equal(t, cid("wc1"), wc1)
	wc2, ok2 := decoded.WorkingCopy(objectid.WorkspaceID("second workspace"))
	require.True(t, ok2)
	require.Equal(t, cid("wc2"), wc2)

	require.True(t, decoded.LocalBranch("main").Equal(Normal(cid("m"))))
	require.True(t, decoded.LocalBranch("topic").IsConflict())
	require.True(t, decoded.Tag("v1.0").Equal(Normal(cid("t"))))
	require.True(t, decoded.GitRef("refs/heads/main").Equal(Normal(cid("m"))))
	require.True(t, decoded.GitHead().Equal(Normal(cid("m"))))

	main := decoded.RemoteBranch("main", "origin")
	require.True(t, main.IsTracking())
	require.True(t, main.Target.Equal(Normal(cid("rm"))))

	feature := decoded.RemoteBranch("feature", "upstream fork")
	require.False(t, feature.IsTracking())
	require.True(t, feature.Target.Equal(Normal(cid("rf"))))
}

func TestCodecEmptyView(t *testing.T) {
	v := New()
	v.EnsureNonEmptyHeads(cid("root"))
	var buf bytes.Buffer
	require.NoError(t, Encode(v, &buf))
	decoded, err := Decode(&buf)
	require.NoError(t, err)
	require.ElementsMatch(t, []objectid.CommitID{cid("root")}, decoded.Heads())
}
