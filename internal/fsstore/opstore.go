package fsstore

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/jjvcs/opgraph/modules/objectid"
	"github.com/jjvcs/opgraph/modules/refview"
	"github.com/jjvcs/opgraph/modules/store"
)

// RootOperationID is the sentinel operation id: no parents, the empty view
// (spec §3 "Operation"). It is deterministic (content-addressed over a
// fixed, empty-view operation record) so every fresh repository using this
// backend starts from the same id.
func (s *Store) RootOperationID() objectid.OperationID {
	data := s.rootOperationData()
	return data.ID
}

func (s *Store) rootOperationData() store.OperationData {
	data := store.OperationData{
		ViewID: s.emptyViewID(),
		Metadata: store.OperationMetadata{
			Description: "initialize repo",
			Tags:        map[string]string{},
		},
	}
	data.ID = hashOperationData(data)
	return data
}

// emptyViewID is the content-address of the all-empty View, computed
// without touching disk so RootOperationID is a pure function of s's
// configuration (the root commit id never varies, so in practice this is a
// constant across every fsstore.Store).
func (s *Store) emptyViewID() objectid.ViewID {
	v := refview.New()
	v.EnsureNonEmptyHeads(s.RootCommitID())
	var buf bytes.Buffer
	_ = refview.Encode(v, &buf)
	return objectid.ViewID(objectid.Hash(buf.Bytes()))
}

// hashOperationData content-addresses an operation record over its
// deterministic encoding (spec §6.2: parent ids and view id are
// content-addressed; this extends the same treatment to the whole record so
// two processes recording the identical operation agree on its id).
func hashOperationData(data store.OperationData) objectid.OperationID {
	return objectid.OperationID(objectid.Hash(encodeOperationData(data)))
}

func encodeOperationData(data store.OperationData) []byte {
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

func decodeOperationData(id objectid.OperationID, plaintext []byte) (store.OperationData, error) {
	data := store.OperationData{ID: id, Metadata: store.OperationMetadata{Tags: map[string]string{}}}
	for _, line := range strings.Split(string(plaintext), "\n") {
		if line == "" {
			continue
		}
		fields := strings.SplitN(line, " ", 2)
		if len(fields) != 2 {
			continue
		}
		switch fields[0] {
		case "view":
			data.ViewID = objectid.ViewID(objectid.FromHex(fields[1]))
		case "parent":
			data.Parents = append(data.Parents, objectid.OperationIDFromHex(fields[1]))
		case "start":
			n, err := strconv.ParseInt(fields[1], 10, 64)
			if err != nil {
				return store.OperationData{}, fmt.Errorf("fsstore: bad start time: %w", err)
			}
			data.Metadata.StartTime = n
		case "end":
			n, err := strconv.ParseInt(fields[1], 10, 64)
			if err != nil {
				return store.OperationData{}, fmt.Errorf("fsstore: bad end time: %w", err)
			}
			data.Metadata.EndTime = n
		case "host":
			data.Metadata.Hostname = fields[1]
		case "user":
			data.Metadata.Username = fields[1]
		case "desc":
			data.Metadata.Description = fields[1]
		case "tag":
			kv := strings.SplitN(fields[1], "=", 2)
			if len(kv) == 2 {
				data.Metadata.Tags[kv[0]] = kv[1]
			}
		}
	}
	return data, nil
}

// ReadOperation reads an operation record; the sentinel root operation is
// synthesised rather than read from disk, matching CommitStore.GetCommit's
// treatment of the root commit.
func (s *Store) ReadOperation(ctx context.Context, id objectid.OperationID) (store.OperationData, error) {
	root := s.rootOperationData()
	if id == root.ID {
		return root, nil
	}
	if v, ok := s.cacheGet("op:" + id.String()); ok {
		return v.(store.OperationData), nil
	}
	plaintext, err := readObject(s.shardPath("operation", id.AsID()))
	if err != nil {
		return store.OperationData{}, fmt.Errorf("fsstore: read operation %s: %w", id, err)
	}
	data, err := decodeOperationData(id, plaintext)
	if err != nil {
		return store.OperationData{}, err
	}
	s.cacheSet("op:"+id.String(), data, int64(len(plaintext)))
	return data, nil
}

func (s *Store) WriteOperation(ctx context.Context, data store.OperationData) (objectid.OperationID, error) {
	plaintext := encodeOperationData(data)
	id := objectid.OperationID(objectid.Hash(plaintext))
	data.ID = id
	if err := writeObject(s.shardPath("operation", id.AsID()), plaintext, s.method); err != nil {
		return objectid.OperationID{}, fmt.Errorf("fsstore: write operation %s: %w", id, err)
	}
	s.cacheSet("op:"+id.String(), data, int64(len(plaintext)))
	return id, nil
}

func (s *Store) ReadView(ctx context.Context, id objectid.ViewID) (*refview.View, error) {
	if id == s.emptyViewID() {
		v := refview.New()
		v.EnsureNonEmptyHeads(s.RootCommitID())
		return v, nil
	}
	if v, ok := s.cacheGet("view:" + id.String()); ok {
		return v.(*refview.View).Clone(), nil
	}
	plaintext, err := readObject(s.shardPath("view", id.AsID()))
	if err != nil {
		return nil, fmt.Errorf("fsstore: read view %s: %w", id, err)
	}
	v, err := refview.Decode(bytes.NewReader(plaintext))
	if err != nil {
		return nil, err
	}
	s.cacheSet("view:"+id.String(), v, int64(len(plaintext)))
	return v.Clone(), nil
}

func (s *Store) WriteView(ctx context.Context, v *refview.View) (objectid.ViewID, error) {
	var buf bytes.Buffer
	if err := refview.Encode(v, &buf); err != nil {
		return objectid.ViewID{}, err
	}
	id := objectid.ViewID(objectid.Hash(buf.Bytes()))
	if err := writeObject(s.shardPath("view", id.AsID()), buf.Bytes(), s.method); err != nil {
		return objectid.ViewID{}, fmt.Errorf("fsstore: write view %s: %w", id, err)
	}
	s.cacheSet("view:"+id.String(), v.Clone(), int64(buf.Len()))
	return id, nil
}
