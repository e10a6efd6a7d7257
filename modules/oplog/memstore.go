package oplog

import (
	"context"
	"sync"

	"github.com/jjvcs/opgraph/modules/objectid"
	"github.com/jjvcs/opgraph/modules/refview"
	"github.com/jjvcs/opgraph/modules/store"
)

// MemOpStore is an in-memory OpStore + OpHeadsStore with a mutex-guarded,
// race-safe head set, used by tests (internal/fsstore keeps its own
// lock-file-based head set instead). Content addressing is simulated by hashing the caller-supplied
// metadata plus parent/view ids, mirroring the real encoding §6.2
// describes without mandating a byte layout.
type MemOpStore struct {
	mu      sync.Mutex
	ops     map[objectid.OperationID]store.OperationData
	views   map[objectid.ViewID]*refview.View
	root    objectid.OperationID
	heads   map[objectid.OperationID]struct{}
}

// NewMemOpStore returns a store pre-seeded with the sentinel root operation
// (no parents, an empty view) as spec §3 requires.
func NewMemOpStore() *MemOpStore {
	s := &MemOpStore{
		ops:   map[objectid.OperationID]store.OperationData{},
		views: map[objectid.ViewID]*refview.View{},
		heads: map[objectid.OperationID]struct{}{},
	}
	emptyView := refview.New()
	viewID, _ := s.WriteView(context.Background(), emptyView)
	rootData := store.OperationData{
		ViewID: viewID,
		Metadata: store.OperationMetadata{
			Description: "initialize repo",
			Tags:        map[string]string{},
		},
	}
	rootID := hashOperation(rootData)
	rootData.ID = rootID
	s.ops[rootID] = rootData
	s.root = rootID
	s.heads[rootID] = struct{}{}
	return s
}

func (s *MemOpStore) RootOperationID() objectid.OperationID { return s.root }

func (s *MemOpStore) ReadOperation(_ context.Context, id objectid.OperationID) (store.OperationData, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.ops[id]
	if !ok {
		return store.OperationData{}, &NotFoundError{ID: id}
	}
	return data, nil
}

func (s *MemOpStore) WriteOperation(_ context.Context, data store.OperationData) (objectid.OperationID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data.ID = hashOperation(data)
	s.ops[data.ID] = data
	return data.ID, nil
}

func (s *MemOpStore) ReadView(_ context.Context, id objectid.ViewID) (*refview.View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.views[id]
	if !ok {
		return nil, &ViewNotFoundError{ID: id}
	}
	return v.Clone(), nil
}

func (s *MemOpStore) WriteView(_ context.Context, v *refview.View) (objectid.ViewID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := objectid.ViewID(objectid.Hash(viewFingerprint(v)))
	s.views[id] = v.Clone()
	return id, nil
}

// GetOpHeads returns the current head set.
func (s *MemOpStore) GetOpHeads(_ context.Context) ([]objectid.OperationID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]objectid.OperationID, 0, len(s.heads))
	for id := range s.heads {
		out = append(out, id)
	}
	return out, nil
}

// UpdateOpHeads implements the race-safe contract of spec §4.1: it removes
// whichever of oldIDs are still present and inserts newID, all under one
// lock acquisition so two concurrent callers each see a consistent
// before/after snapshot.
func (s *MemOpStore) UpdateOpHeads(_ context.Context, oldIDs []objectid.OperationID, newID objectid.OperationID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range oldIDs {
		delete(s.heads, id)
	}
	s.heads[newID] = struct{}{}
	return nil
}

type NotFoundError struct{ ID objectid.OperationID }

func (e *NotFoundError) Error() string { return "oplog: operation not found: " + e.ID.String() }

type ViewNotFoundError struct{ ID objectid.ViewID }

func (e *ViewNotFoundError) Error() string { return "oplog: view not found: " + e.ID.String() }
