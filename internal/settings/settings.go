// Package settings is the TOML-backed configuration layer, following the
// teacher's zeta/config.Core pattern: plain structs with "toml:...,omitempty"
// tags, an Overwrite(other) merge method per level, and a User sub-struct
// carrying commit authorship.
package settings

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/jjvcs/opgraph/modules/revset"
)

var ErrInvalidArgument = errors.New("settings: invalid argument")

// User is the commit-authorship identity, installed into new commits'
// Author/Committer signatures.
type User struct {
	Name  string `toml:"name,omitempty"`
	Email string `toml:"email,omitempty"`
}

func (u *User) Empty() bool {
	return u == nil || len(u.Name) == 0 || len(u.Email) == 0
}

func overwriteString(a, b string) string {
	if len(b) != 0 {
		return b
	}
	return a
}

func (u *User) Overwrite(o *User) {
	if o == nil {
		return
	}
	u.Name = overwriteString(u.Name, o.Name)
	u.Email = overwriteString(u.Email, o.Email)
}

// AliasFunctionDecl is one `name(params...) -> body` function-alias
// declaration as loaded from TOML (spec §4.6.4 / §4.8).
type AliasFunctionDecl struct {
	Params []string `toml:"params,omitempty"`
	Body   string   `toml:"body,omitempty"`
}

// RepoSettings is the per-repository configuration, analogous to the
// teacher's Core: the fields that control storage and query behaviour
// rather than user identity.
type RepoSettings struct {
	// HashAlgo is fixed at "blake3" but kept as a string field for forward
	// compatibility, exactly like the teacher's Core.HashALGO.
	HashAlgo string `toml:"hash-algo,omitempty"`
	// CompressionAlgo is one of "zstd", "gzip", "none"; consumed by
	// internal/fsstore.
	CompressionAlgo string `toml:"compression-algo,omitempty"`

	RevsetAliases        map[string]string            `toml:"revset-aliases,omitempty"`
	RevsetAliasFunctions map[string]AliasFunctionDecl `toml:"revset-alias-functions,omitempty"`
}

func (c *RepoSettings) Overwrite(o *RepoSettings) {
	if o == nil {
		return
	}
	c.HashAlgo = overwriteString(c.HashAlgo, o.HashAlgo)
	c.CompressionAlgo = overwriteString(c.CompressionAlgo, o.CompressionAlgo)
	for k, v := range o.RevsetAliases {
		if c.RevsetAliases == nil {
			c.RevsetAliases = map[string]string{}
		}
		c.RevsetAliases[k] = v
	}
	for k, v := range o.RevsetAliasFunctions {
		if c.RevsetAliasFunctions == nil {
			c.RevsetAliasFunctions = map[string]AliasFunctionDecl{}
		}
		c.RevsetAliasFunctions[k] = v
	}
}

// BuildAliasMap installs this repository's configured revset aliases into a
// fresh revset.AliasMap, the way the teacher loads core.* keys into Core at
// repo-open time.
func (c *RepoSettings) BuildAliasMap() (*revset.AliasMap, error) {
	m := revset.NewAliasMap()
	functions := make(map[string]revset.FunctionDecl, len(c.RevsetAliasFunctions))
	for name, decl := range c.RevsetAliasFunctions {
		functions[name] = revset.FunctionDecl{Params: decl.Params, Body: decl.Body}
	}
	if err := m.LoadAll(c.RevsetAliases, functions); err != nil {
		return nil, err
	}
	return m, nil
}

// DefaultRepoSettings returns the settings a freshly initialised repository
// starts with.
func DefaultRepoSettings() *RepoSettings {
	return &RepoSettings{HashAlgo: "blake3", CompressionAlgo: "zstd"}
}

// Settings is the top-level file shape read from and written to
// "<repo>/settings.toml".
type Settings struct {
	User User         `toml:"user,omitempty"`
	Repo RepoSettings `toml:"repo,omitempty"`
}

func (s *Settings) Overwrite(o *Settings) {
	s.User.Overwrite(&o.User)
	s.Repo.Overwrite(&o.Repo)
}

// Load reads settings.toml from dir; a missing file yields the defaults
// rather than an error, matching LoadGlobal's "not found is fine" handling.
func Load(dir string) (*Settings, error) {
	s := &Settings{Repo: *DefaultRepoSettings()}
	path := filepath.Join(dir, "settings.toml")
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, err
	}
	if _, err := toml.DecodeFile(path, s); err != nil {
		return nil, err
	}
	return s, nil
}

// Save atomically writes s to "<dir>/settings.toml": encode to a temp file
// alongside the destination, then rename over it.
func Save(dir string, s *Settings) error {
	if s == nil || len(dir) == 0 {
		return ErrInvalidArgument
	}
	path := filepath.Join(dir, "settings.toml")
	tmp := fmt.Sprintf("%s/.settings-%d.toml", dir, time.Now().UnixNano())
	fd, err := os.Create(tmp)
	if err != nil {
		return err
	}
	enc := toml.NewEncoder(fd)
	enc.Indent = ""
	encErr := enc.Encode(s)
	closeErr := fd.Close()
	if encErr != nil {
		_ = os.Remove(tmp)
		return encErr
	}
	if closeErr != nil {
		_ = os.Remove(tmp)
		return closeErr
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}
