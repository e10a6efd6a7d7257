// Package fsstore is the one concrete, file-tree-backed store implementation
// in this module: a reference CommitStore, OpStore, OpHeadsStore and
// SubmoduleStore, laid out content-addressed under <root>/objects the way
// the reference VCS's backend.Database shards blobs on disk, fronted by the
// same dgraph-io/ristretto in-process cache and klauspost/compress
// zstd/gzip encoding (spec §4.9 "Domain stack").
//
// Every object -- commit, operation, view -- is written compressed under a
// small fixed header (magic, version, compression method, uncompressed
// size) exactly mirroring fileStorer.hashToInternal's layout, but the
// content hash is always taken over the *uncompressed* plaintext so that
// switching CompressionAlgo never changes an object's id.
package fsstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dgraph-io/ristretto/v2"

	"github.com/jjvcs/opgraph/internal/vcslog"
	"github.com/jjvcs/opgraph/modules/commit"
	"github.com/jjvcs/opgraph/modules/objectid"
	"github.com/jjvcs/opgraph/modules/store"
)

// CompressMethod mirrors the teacher's backend.CompressMethod enum, trimmed
// to the two algorithms klauspost/compress gives this module (spec §4.9).
type CompressMethod uint16

const (
	MethodStore CompressMethod = iota
	MethodZstd
	MethodGzip
)

func methodFromAlgo(algo string) CompressMethod {
	switch algo {
	case "gzip":
		return MethodGzip
	case "none":
		return MethodStore
	default: // "zstd" or unset
		return MethodZstd
	}
}

// Option configures a Store, following the teacher's backend.Option
// functional-options pattern.
type Option func(*Store)

// WithCompressionAlgo selects "zstd" (default), "gzip" or "none".
func WithCompressionAlgo(algo string) Option {
	return func(s *Store) {
		if algo != "" {
			s.method = methodFromAlgo(algo)
		}
	}
}

// WithEnableCache toggles the ristretto-backed object cache (default: on),
// mirroring backend.WithEnableLRU.
func WithEnableCache(enable bool) Option {
	return func(s *Store) { s.cacheEnabled = enable }
}

// WithSigner installs a commit signer; a nil signer (the default) means
// commits are written unsigned.
func WithSigner(signer store.Signer) Option {
	return func(s *Store) { s.signer = signer }
}

// Store bundles every store-trait implementation this backend provides over
// one root directory: objects/ (commits, operations, views), op_heads/
// (head-set file plus lock), and submodules/ (existence probe only, spec §1
// treats submodule formats as out of scope).
type Store struct {
	root         string
	method       CompressMethod
	cacheEnabled bool
	cache        *ristretto.Cache[string, any]
	signer       store.Signer

	commitIDLen int
	changeIDLen int
}

// Open creates (if absent) and returns a Store rooted at dir, the way
// NewDatabase(root, opts...) reloads a teacher-style Database in one call.
func Open(dir string, opts ...Option) (*Store, error) {
	s := &Store{
		root:        dir,
		method:      MethodZstd,
		cacheEnabled: true,
		commitIDLen: objectid.DigestSize,
		changeIDLen: objectid.DigestSize,
	}
	for _, o := range opts {
		o(s)
	}
	for _, sub := range []string{"objects", "op_heads", "submodules"} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0o755); err != nil {
			return nil, fmt.Errorf("fsstore: mkdir %s: %w", sub, err)
		}
	}
	if s.cacheEnabled {
		cache, err := ristretto.NewCache(&ristretto.Config[string, any]{
			NumCounters: 100_000,
			MaxCost:     50_000,
			BufferItems: 64,
		})
		if err != nil {
			return nil, fmt.Errorf("fsstore: new cache: %w", err)
		}
		s.cache = cache
	}
	vcslog.Logger().WithField("root", dir).Debug("fsstore: opened")
	return s, nil
}

// Close releases the cache, mirroring Database.Close's CompareAndSwap guard
// (a single Store is never expected to be closed twice, so this keeps the
// simpler "close is idempotent" contract rather than erroring on a repeat
// call).
func (s *Store) Close() error {
	if s.cache != nil {
		s.cache.Close()
	}
	return nil
}

func (s *Store) objectsRoot() string { return filepath.Join(s.root, "objects") }

// shardPath lays out content-addressed objects the way fileStorer.path
// does: <root>/objects/<kind>/<first-2-hex>/<rest-hex>.
func (s *Store) shardPath(kind string, id objectid.ID) string {
	hex := id.String()
	return filepath.Join(s.objectsRoot(), kind, hex[:2], hex[2:])
}

func (s *Store) cacheGet(key string) (any, bool) {
	if s.cache == nil {
		return nil, false
	}
	return s.cache.Get(key)
}

func (s *Store) cacheSet(key string, val any, cost int64) {
	if s.cache == nil {
		return
	}
	s.cache.Set(key, val, cost)
}

var _ store.CommitStore = (*Store)(nil)
var _ store.OpStore = (*Store)(nil)
var _ store.OpHeadsStore = (*Store)(nil)
var _ store.SubmoduleStore = (*Store)(nil)
var _ store.IndexStore = (*Store)(nil)

// RootCommitID is the fixed sentinel id every repository's history bottoms
// out at (spec §3 "Commit").
func (s *Store) RootCommitID() objectid.CommitID { return objectid.CommitID(objectid.Zero) }

func (s *Store) CommitIDLength() int { return s.commitIDLen }
func (s *Store) ChangeIDLength() int { return s.changeIDLen }

// WriteCommit rejects rewriting the root commit and otherwise stores c
// content-addressed, per spec §4.1.
func (s *Store) WriteCommit(ctx context.Context, c *commit.Commit, signer store.Signer) (objectid.CommitID, error) {
	if c.IsRoot() {
		return objectid.CommitID{}, store.ErrRewriteRoot
	}
	plaintext, err := encodeCommit(c)
	if err != nil {
		return objectid.CommitID{}, err
	}
	id := objectid.CommitID(objectid.Hash(plaintext))
	if signer == nil {
		signer = s.signer
	}
	if signer != nil {
		sig, err := signer.Sign(ctx, plaintext)
		if err != nil {
			return objectid.CommitID{}, fmt.Errorf("fsstore: sign commit: %w", err)
		}
		c.IsSigned = sig != nil
	}
	path := s.shardPath("commit", id.AsID())
	if err := writeObject(path, plaintext, s.method); err != nil {
		return objectid.CommitID{}, fmt.Errorf("fsstore: write commit %s: %w", id, err)
	}
	s.cacheSet("commit:"+id.String(), cloneCommit(c, id), int64(len(plaintext)))
	vcslog.WithCommit(id.String()).Debug("fsstore: wrote commit")
	return id, nil
}

func (s *Store) GetCommit(ctx context.Context, id objectid.CommitID) (*commit.Commit, error) {
	if id == s.RootCommitID() {
		return rootCommit(), nil
	}
	if v, ok := s.cacheGet("commit:" + id.String()); ok {
		return v.(*commit.Commit), nil
	}
	path := s.shardPath("commit", id.AsID())
	plaintext, err := readObject(path)
	if err != nil {
		return nil, fmt.Errorf("fsstore: read commit %s: %w", id, err)
	}
	c, err := decodeCommit(id, plaintext)
	if err != nil {
		return nil, err
	}
	s.cacheSet("commit:"+id.String(), c, int64(len(plaintext)))
	return c, nil
}

// HasSubmodules reports whether the repository-relative submodules/
// directory has ever been populated; the format of its contents is out of
// scope (spec §1), so this is a bare existence probe.
func (s *Store) HasSubmodules(_ context.Context) (bool, error) {
	entries, err := os.ReadDir(filepath.Join(s.root, "submodules"))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return len(entries) > 0, nil
}

func rootCommit() *commit.Commit {
	return &commit.Commit{ID: objectid.CommitID(objectid.Zero)}
}

func cloneCommit(c *commit.Commit, id objectid.CommitID) *commit.Commit {
	cp := *c
	cp.ID = id
	cp.Parents = append([]objectid.CommitID(nil), c.Parents...)
	return &cp
}
