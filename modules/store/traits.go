// Package store declares the capability traits every concrete backend
// satisfies: CommitStore, OpStore, OpHeadsStore, IndexStore, SubmoduleStore
// and Signer. Nothing in the rest of this module depends on a concrete
// backend's storage format; they only depend on these interfaces, the way
// the reference VCS's refs.Backend and object.Backend decouple the
// high-level object model from on-disk layout.
package store

import (
	"context"

	"github.com/jjvcs/opgraph/modules/commit"
	"github.com/jjvcs/opgraph/modules/objectid"
	"github.com/jjvcs/opgraph/modules/refview"
)

// Signer optionally signs commits at write time. A backend with no signing
// configured returns (nil, nil) from Sign.
type Signer interface {
	Sign(ctx context.Context, data []byte) (signature []byte, err error)
}

// CommitStore is the content-addressed store for commit objects and the
// trees/files/conflicts they reference. Writing identical content always
// returns the same id (spec §4.1).
type CommitStore interface {
	RootCommitID() objectid.CommitID
	// WriteCommit stores c and returns its content-addressed id. It must
	// reject an attempt to rewrite the root commit (spec §4.1).
	WriteCommit(ctx context.Context, c *commit.Commit, signer Signer) (objectid.CommitID, error)
	GetCommit(ctx context.Context, id objectid.CommitID) (*commit.Commit, error)
	CommitIDLength() int
	ChangeIDLength() int
}

// ErrRewriteRoot is returned by WriteCommit when asked to rewrite the root
// commit; this is always a fatal, API-boundary error per spec §7.
var ErrRewriteRoot = rewriteRootError{}

type rewriteRootError struct{}

func (rewriteRootError) Error() string { return "store: refusing to rewrite the root commit" }

// OperationData is the content-addressed payload of an operation record
// (spec §3 "Operation"): the parent ids and view id every caller needs to
// walk the DAG, plus the typed OperationMetadata declared below.
type OperationData struct {
	ID       objectid.OperationID
	Parents  []objectid.OperationID
	ViewID   objectid.ViewID
	Metadata OperationMetadata
}

// OperationMetadata carries the descriptive fields attached to an
// operation: who ran it, from where, when, and why (spec §6.2).
type OperationMetadata struct {
	StartTime   int64
	EndTime     int64
	Description string
	Hostname    string
	Username    string
	Tags        map[string]string
}

// OpStore is the content-addressed store for operations and views.
type OpStore interface {
	RootOperationID() objectid.OperationID
	ReadOperation(ctx context.Context, id objectid.OperationID) (OperationData, error)
	WriteOperation(ctx context.Context, data OperationData) (objectid.OperationID, error)
	ReadView(ctx context.Context, id objectid.ViewID) (*refview.View, error)
	WriteView(ctx context.Context, v *refview.View) (objectid.ViewID, error)
}

// OpHeadsStore maintains the durable set of current op-heads. Every method
// must be race-safe against concurrent callers (spec §4.1): two processes
// calling UpdateOpHeads concurrently must both succeed, and the resulting
// head-set must be the union minus whatever each legitimately removed.
type OpHeadsStore interface {
	GetOpHeads(ctx context.Context) ([]objectid.OperationID, error)
	// UpdateOpHeads atomically removes any subset of oldIDs still present
	// and inserts newID.
	UpdateOpHeads(ctx context.Context, oldIDs []objectid.OperationID, newID objectid.OperationID) error
}

// IndexStore produces a ReadonlyIndex guaranteed to have indexed every
// commit reachable from op's view heads (spec §4.1). The concrete Index
// type lives in package index; this trait only needs to name it
// structurally to avoid a dependency from package store onto package
// index's implementation details, so it is expressed as `any` and
// type-asserted by callers that already depend on package index directly
// (package repo's ReadonlyRepo.Index does, through indexFromStore).
type IndexStore interface {
	GetIndexAtOp(ctx context.Context, op OperationData, commits CommitStore) (any, error)
}

// SubmoduleStore is a capability placeholder: the spec treats submodules as
// an opaque store whose format is out of scope (spec §1), so the trait only
// needs enough surface for a mutable repo to notice one exists.
type SubmoduleStore interface {
	HasSubmodules(ctx context.Context) (bool, error)
}

// Factory builds one store instance given a repository-relative root path.
type Factory func(root string) (any, error)

// Factories maps a backend-name string (as found in a store's adjacent
// "type" file, spec §6.1) to the factory that constructs it. Adding a
// backend means registering a new factory; no inheritance hierarchy is
// required (spec §9 "Polymorphic stores").
type Factories struct {
	Commit     map[string]Factory
	Op         map[string]Factory
	OpHeads    map[string]Factory
	Index      map[string]Factory
	Submodule  map[string]Factory
}

// NewFactories returns an empty registry for a backend to fill in (as
// internal/fsstore's Register does).
func NewFactories() *Factories {
	return &Factories{
		Commit:    map[string]Factory{},
		Op:        map[string]Factory{},
		OpHeads:   map[string]Factory{},
		Index:     map[string]Factory{},
		Submodule: map[string]Factory{},
	}
}

// ErrUnsupportedType is returned by a load command when a store's "type"
// file names a backend with no registered factory (spec §6.1).
type ErrUnsupportedType struct {
	Store     string
	StoreType string
}

func (e *ErrUnsupportedType) Error() string {
	return "store: unsupported " + e.Store + " type " + e.StoreType
}
