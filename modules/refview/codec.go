package refview

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/jjvcs/opgraph/modules/objectid"
)

// viewWireVersion tags the encoded form so a reader can reject a view
// written by an incompatible future encoder, the way the commit and
// operation wire forms carry a magic/version (spec §3, §6.2).
const viewWireVersion = 1

// Encode writes the full, round-trippable wire form of v: every head,
// workspace pointer, ref namespace and git HEAD, one line per entry. Unlike
// the lossy viewFingerprint package oplog hashes views with, this is the
// form a store backend persists to read back a View unchanged (spec §4.1
// OpStore.ReadView/WriteView).
func Encode(v *View, w io.Writer) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "view %d\n", viewWireVersion)
	for _, h := range v.Heads() {
		fmt.Fprintf(bw, "head %s\n", h)
	}
	for _, ws := range v.WorkspaceIDs() {
		id, _ := v.WorkingCopy(ws)
		fmt.Fprintf(bw, "wc %s %s\n", escape(string(ws)), id)
	}
	writeRefTargets(bw, "branch", v.localBranches)
	writeRefTargets(bw, "tag", v.tags)
	writeRefTargets(bw, "gitref", v.gitRefs)
	writeRefTarget(bw, "githead", v.gitHead)
	for _, name := range sortedRemoteBranchNames(v.remoteBranches) {
		r := v.remoteBranches[name]
		tracking := 0
		if r.IsTracking() {
			tracking = 1
		}
		fmt.Fprintf(bw, "remote %s %s %d", escape(name.Name), escape(name.Remote), tracking)
		writeIDList(bw, "removes", r.Target.Removes())
		writeIDList(bw, "adds", r.Target.Adds())
		fmt.Fprint(bw, "\n")
	}
	return bw.Flush()
}

func writeRefTargets(bw *bufio.Writer, kind string, m map[string]RefTarget) {
	names := make([]string, 0, len(m))
	for n := range m {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		fmt.Fprintf(bw, "%s %s", kind, escape(n))
		writeIDList(bw, "removes", m[n].Removes())
		writeIDList(bw, "adds", m[n].Adds())
		fmt.Fprint(bw, "\n")
	}
}

func writeRefTarget(bw *bufio.Writer, kind string, t RefTarget) {
	if t.IsAbsent() {
		return
	}
	fmt.Fprintf(bw, "%s", kind)
	writeIDList(bw, "removes", t.Removes())
	writeIDList(bw, "adds", t.Adds())
	fmt.Fprint(bw, "\n")
}

func writeIDList(bw *bufio.Writer, label string, ids []objectid.CommitID) {
	fmt.Fprintf(bw, " %s=%d", label, len(ids))
	for _, id := range ids {
		fmt.Fprintf(bw, " %s", id)
	}
}

func sortedRemoteBranchNames(m map[remoteBranchKey]RemoteRef) []remoteBranchKey {
	out := make([]remoteBranchKey, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return remoteBranchKeyLess(out[i], out[j]) })
	return out
}

func remoteBranchKeyLess(a, b remoteBranchKey) bool {
	if a.Name != b.Name {
		return a.Name < b.Name
	}
	return a.Remote < b.Remote
}

// escape percent-encodes spaces so names containing whitespace survive the
// space-separated line format; names in practice never contain '%'.
func escape(s string) string {
	return strings.ReplaceAll(s, " ", "%20")
}

func unescape(s string) string {
	return strings.ReplaceAll(s, "%20", " ")
}

// Decode parses the wire form written by Encode.
func Decode(r io.Reader) (*View, error) {
	v := New()
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 16*1024*1024)
	first := true
	for sc.Scan() {
		line := sc.Text()
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if first {
			if len(fields) != 2 || fields[0] != "view" {
				return nil, fmt.Errorf("refview: decode: bad header %q", line)
			}
			if fields[1] != strconv.Itoa(viewWireVersion) {
				return nil, fmt.Errorf("refview: decode: unsupported view version %q", fields[1])
			}
			first = false
			continue
		}
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "head":
			v.AddHeadRaw(objectid.CommitIDFromHex(fields[1]))
		case "wc":
			v.SetWorkingCopy(objectid.WorkspaceID(unescape(fields[1])), objectid.CommitIDFromHex(fields[2]))
		case "branch":
			name, t, err := decodeNamedTarget(fields[1:])
			if err != nil {
				return nil, err
			}
			v.SetLocalBranch(name, t)
		case "tag":
			name, t, err := decodeNamedTarget(fields[1:])
			if err != nil {
				return nil, err
			}
			v.SetTag(name, t)
		case "gitref":
			name, t, err := decodeNamedTarget(fields[1:])
			if err != nil {
				return nil, err
			}
			v.SetGitRef(name, t)
		case "githead":
			t, err := decodeTarget(fields[1:])
			if err != nil {
				return nil, err
			}
			v.SetGitHead(t)
		case "remote":
			if len(fields) < 4 {
				return nil, fmt.Errorf("refview: decode: bad remote line %q", line)
			}
			name := unescape(fields[1])
			remote := unescape(fields[2])
			trackingN, err := strconv.Atoi(fields[3])
			if err != nil {
				return nil, fmt.Errorf("refview: decode: bad tracking flag: %w", err)
			}
			t, err := decodeTarget(fields[4:])
			if err != nil {
				return nil, err
			}
			state := RemoteRefNew
			if trackingN != 0 {
				state = RemoteRefTracking
			}
			v.SetRemoteBranch(name, remote, RemoteRef{Target: t, State: state})
		default:
			return nil, fmt.Errorf("refview: decode: unknown line kind %q", fields[0])
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return v, nil
}

func decodeNamedTarget(fields []string) (string, RefTarget, error) {
	if len(fields) < 1 {
		return "", RefTarget{}, fmt.Errorf("refview: decode: missing name")
	}
	name := unescape(fields[0])
	t, err := decodeTarget(fields[1:])
	return name, t, err
}

func decodeTarget(fields []string) (RefTarget, error) {
	var removes, adds []objectid.CommitID
	i := 0
	for i < len(fields) {
		kv := strings.SplitN(fields[i], "=", 2)
		if len(kv) != 2 {
			return RefTarget{}, fmt.Errorf("refview: decode: bad count field %q", fields[i])
		}
		n, err := strconv.Atoi(kv[1])
		if err != nil {
			return RefTarget{}, fmt.Errorf("refview: decode: bad count: %w", err)
		}
		i++
		ids := make([]objectid.CommitID, 0, n)
		for k := 0; k < n; k++ {
			if i >= len(fields) {
				return RefTarget{}, fmt.Errorf("refview: decode: truncated id list")
			}
			ids = append(ids, objectid.CommitIDFromHex(fields[i]))
			i++
		}
		switch kv[0] {
		case "removes":
			removes = ids
		case "adds":
			adds = ids
		default:
			return RefTarget{}, fmt.Errorf("refview: decode: unknown list kind %q", kv[0])
		}
	}
	return Conflict(removes, adds), nil
}
