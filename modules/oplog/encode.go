package oplog

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/jjvcs/opgraph/modules/objectid"
	"github.com/jjvcs/opgraph/modules/refview"
	"github.com/jjvcs/opgraph/modules/store"
)

// encodeOperation produces the deterministic byte form an operation is
// content-addressed over: parent ids (ordered), view id, timestamps,
// description, host/user, and a sorted tag map -- mirroring the plain-text,
// line-oriented encodings the reference VCS favours for metadata objects
// (reflog entries, commit headers) over a binary struct dump.
func encodeOperation(data store.OperationData) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "view %s\n", data.ViewID)
	for _, p := range data.Parents {
		fmt.Fprintf(&buf, "parent %s\n", p)
	}
	fmt.Fprintf(&buf, "start %d\nend %d\n", data.Metadata.StartTime, data.Metadata.EndTime)
	fmt.Fprintf(&buf, "host %s\nuser %s\n", data.Metadata.Hostname, data.Metadata.Username)
	fmt.Fprintf(&buf, "desc %s\n", data.Metadata.Description)
	keys := make([]string, 0, len(data.Metadata.Tags))
	for k := range data.Metadata.Tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&buf, "tag %s=%s\n", k, data.Metadata.Tags[k])
	}
	return buf.Bytes()
}

func hashOperation(data store.OperationData) objectid.OperationID {
	return objectid.OperationID(objectid.Hash(encodeOperation(data)))
}

// viewFingerprint produces a deterministic byte form of a view's contents,
// used to content-address it the same way a commit's encoded bytes address
// a commit.
func viewFingerprint(v *refview.View) []byte {
	var buf bytes.Buffer
	for _, h := range v.Heads() {
		fmt.Fprintf(&buf, "head %s\n", h)
	}
	for _, ws := range v.WorkspaceIDs() {
		id, _ := v.WorkingCopy(ws)
		fmt.Fprintf(&buf, "wc %s %s\n", ws, id)
	}
	writeRefMap(&buf, "branch", v.LocalBranches())
	writeRefMap(&buf, "tag", v.Tags())
	writeRefMap(&buf, "gitref", v.GitRefs())
	fmt.Fprintf(&buf, "githead adds=%v removes=%v\n", v.GitHead().Adds(), v.GitHead().Removes())
	remotes := make([]string, 0, len(v.RemoteBranches()))
	for key, r := range v.RemoteBranches() {
		remotes = append(remotes, fmt.Sprintf("remote %+v tracking=%v adds=%v removes=%v\n", key, r.IsTracking(), r.Target.Adds(), r.Target.Removes()))
	}
	sort.Strings(remotes)
	for _, line := range remotes {
		buf.WriteString(line)
	}
	return buf.Bytes()
}

func writeRefMap(buf *bytes.Buffer, kind string, m map[string]refview.RefTarget) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		t := m[k]
		fmt.Fprintf(buf, "%s %s adds=%v removes=%v\n", kind, k, t.Adds(), t.Removes())
	}
}
