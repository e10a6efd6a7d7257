package fsstore

import (
	"os"
	"path/filepath"

	"github.com/jjvcs/opgraph/modules/store"
)

// BackendName is the string this backend writes into each store
// subdirectory's adjacent "type" file (spec §6.1).
const BackendName = "fs"

// Register installs this backend's factories for every store kind it
// implements into f, so a load command resolving a "type" file containing
// "fs" finds a constructor (spec §9 "Polymorphic stores": "adding a backend
// means registering a new factory").
func Register(f *store.Factories) {
	factory := func(root string) (any, error) { return Open(root) }
	f.Commit[BackendName] = factory
	f.Op[BackendName] = factory
	f.OpHeads[BackendName] = factory
	f.Index[BackendName] = factory
	f.Submodule[BackendName] = factory
}

// InitRepository lays out a fresh repository directory at dir: one
// subdirectory per store kind, each carrying a "type" file naming this
// backend, matching the init command's documented layout (spec §6.1).
func InitRepository(dir string) error {
	for _, sub := range []string{"store", "op_store", "op_heads", "index", "submodule_store"} {
		path := filepath.Join(dir, sub)
		if err := os.MkdirAll(path, 0o755); err != nil {
			return err
		}
		if err := os.WriteFile(filepath.Join(path, "type"), []byte(BackendName+"\n"), 0o644); err != nil {
			return err
		}
	}
	if _, err := Open(dir); err != nil {
		return err
	}
	return nil
}

// LoadType reads the "type" file adjacent to a store subdirectory,
// defaulting per spec §6.1: "git_target" present with no "type" file means
// "git" (out of scope here), otherwise "local" -- this module's equivalent
// default is this backend's own name, since it is the only one registered.
func LoadType(storeDir string) (string, error) {
	b, err := os.ReadFile(filepath.Join(storeDir, "type"))
	if err != nil {
		if os.IsNotExist(err) {
			return BackendName, nil
		}
		return "", err
	}
	typ := string(b)
	for len(typ) > 0 && (typ[len(typ)-1] == '\n' || typ[len(typ)-1] == '\r') {
		typ = typ[:len(typ)-1]
	}
	if typ == "" {
		return BackendName, nil
	}
	return typ, nil
}
