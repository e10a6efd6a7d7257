package fsstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/jjvcs/opgraph/modules/objectid"
)

const (
	opHeadsFile = "heads"
	lockFile    = "heads.lock"
	lockRetries = 200
	lockWait    = 10 * time.Millisecond
)

func (s *Store) opHeadsPath() string { return filepath.Join(s.root, "op_heads", opHeadsFile) }
func (s *Store) opHeadsLockPath() string { return filepath.Join(s.root, "op_heads", lockFile) }

// withOpHeadsLock serialises read-modify-rename sequences across processes
// using an exclusive-create sentinel file, the same advisory-lock
// convention the teacher's refs/filesystem.go uses for atomic ref updates
// (spec §4.9): os.O_EXCL fails if another process already holds the lock,
// so callers spin with a short sleep until it is released.
func (s *Store) withOpHeadsLock(fn func() error) error {
	path := s.opHeadsLockPath()
	var f *os.File
	var err error
	for i := 0; i < lockRetries; i++ {
		f, err = os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err == nil {
			break
		}
		if !os.IsExist(err) {
			return err
		}
		time.Sleep(lockWait)
	}
	if err != nil {
		return fmt.Errorf("fsstore: op-heads lock timed out: %w", err)
	}
	defer func() {
		_ = f.Close()
		_ = os.Remove(path)
	}()
	return fn()
}

func (s *Store) readOpHeadsLocked() ([]objectid.OperationID, error) {
	b, err := os.ReadFile(s.opHeadsPath())
	if err != nil {
		if os.IsNotExist(err) {
			return []objectid.OperationID{s.RootOperationID()}, nil
		}
		return nil, err
	}
	var out []objectid.OperationID
	for _, line := range strings.Split(strings.TrimSpace(string(b)), "\n") {
		if line == "" {
			continue
		}
		out = append(out, objectid.OperationIDFromHex(line))
	}
	if len(out) == 0 {
		return []objectid.OperationID{s.RootOperationID()}, nil
	}
	return out, nil
}

func (s *Store) writeOpHeadsLocked(ids []objectid.OperationID) error {
	sorted := append([]objectid.OperationID(nil), ids...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].AsID().Less(sorted[j].AsID()) })
	var b strings.Builder
	for _, id := range sorted {
		b.WriteString(id.String())
		b.WriteByte('\n')
	}
	path := s.opHeadsPath()
	tmp := fmt.Sprintf("%s.tmp-%d", path, os.Getpid())
	if err := os.WriteFile(tmp, []byte(b.String()), 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}

// GetOpHeads returns the current head set, seeded with the root operation
// when no head file has ever been written (spec §3 "the store contains a
// sentinel root operation").
func (s *Store) GetOpHeads(ctx context.Context) ([]objectid.OperationID, error) {
	var out []objectid.OperationID
	err := s.withOpHeadsLock(func() error {
		heads, err := s.readOpHeadsLocked()
		out = heads
		return err
	})
	return out, err
}

// UpdateOpHeads atomically removes any subset of oldIDs still present and
// inserts newID (spec §4.1): the whole read-modify-write happens under the
// lock acquired by withOpHeadsLock, so two concurrent callers each observe
// a consistent before/after snapshot and the resulting head-set is the
// union minus whatever each legitimately removed.
func (s *Store) UpdateOpHeads(ctx context.Context, oldIDs []objectid.OperationID, newID objectid.OperationID) error {
	return s.withOpHeadsLock(func() error {
		current, err := s.readOpHeadsLocked()
		if err != nil {
			return err
		}
		remove := make(map[objectid.OperationID]bool, len(oldIDs))
		for _, id := range oldIDs {
			remove[id] = true
		}
		next := make([]objectid.OperationID, 0, len(current)+1)
		seen := map[objectid.OperationID]bool{}
		for _, id := range current {
			if remove[id] {
				continue
			}
			if !seen[id] {
				seen[id] = true
				next = append(next, id)
			}
		}
		if !seen[newID] {
			next = append(next, newID)
		}
		return s.writeOpHeadsLocked(next)
	})
}
