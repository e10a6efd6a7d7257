// Package objectid defines the opaque, content-addressed identifiers shared
// by every layer of the repository model: commit ids, change ids, operation
// ids and view ids are all fixed-size BLAKE3 digests, distinguished only at
// the type level so the compiler rejects mixing them up.
package objectid

import (
	"encoding/hex"
	"encoding/json"

	"github.com/zeebo/blake3"
)

// DigestSize is the number of bytes in an identifier.
const DigestSize = 32

// reverseHexTable maps an ASCII hex digit to its nibble value, matching the
// decode table used throughout the reference VCS's plumbing package.
var reverseHexTable = [256]byte{}

func init() {
	for i := range reverseHexTable {
		reverseHexTable[i] = 0xff
	}
	for i := byte(0); i <= 9; i++ {
		reverseHexTable['0'+i] = i
	}
	for i := byte(0); i <= 5; i++ {
		reverseHexTable['a'+i] = 10 + i
		reverseHexTable['A'+i] = 10 + i
	}
}

// ID is a fixed-size, content-addressed byte string.
type ID [DigestSize]byte

// Zero is the all-zero id, used as a sentinel (never a real hash output).
var Zero ID

// Hash returns the content-addressed id of b.
func Hash(b []byte) ID {
	var id ID
	sum := blake3.Sum256(b)
	copy(id[:], sum[:])
	return id
}

// FromHex parses a hex string into an ID. Malformed input yields the zero id,
// matching the reference VCS's lenient plumbing.NewHash.
func FromHex(s string) ID {
	b, _ := hex.DecodeString(s)
	var id ID
	copy(id[:], b)
	return id
}

// String returns the canonical lowercase hex form.
func (id ID) String() string {
	return hex.EncodeToString(id[:])
}

// IsZero reports whether id is the sentinel zero value.
func (id ID) IsZero() bool {
	return id == Zero
}

// Less provides a total, deterministic order over ids (byte-wise), used
// wherever the spec requires "a stable iteration order" without mandating
// what it is (see spec Open Question 3).
func (id ID) Less(other ID) bool {
	for i := range id {
		if id[i] != other[i] {
			return id[i] < other[i]
		}
	}
	return false
}

func (id ID) MarshalJSON() ([]byte, error) {
	return json.Marshal(id.String())
}

func (id *ID) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	*id = FromHex(s)
	return nil
}

func (id ID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

func (id *ID) UnmarshalText(text []byte) error {
	*id = FromHex(string(text))
	return nil
}

// CommitID identifies a commit object.
type CommitID ID

func (id CommitID) String() string  { return ID(id).String() }
func (id CommitID) IsZero() bool    { return ID(id).IsZero() }
func (id CommitID) Bytes() []byte   { return ID(id)[:] }
func (id CommitID) AsID() ID        { return ID(id) }
func CommitIDFromHex(s string) CommitID { return CommitID(FromHex(s)) }

// OperationID identifies an operation record.
type OperationID ID

func (id OperationID) String() string { return ID(id).String() }
func (id OperationID) IsZero() bool   { return ID(id).IsZero() }
func (id OperationID) AsID() ID       { return ID(id) }
func OperationIDFromHex(s string) OperationID { return OperationID(FromHex(s)) }

// ViewID identifies a stored view snapshot.
type ViewID ID

func (id ViewID) String() string { return ID(id).String() }
func (id ViewID) AsID() ID       { return ID(id) }

// TreeID identifies a tree object (opaque to this module; the store traits
// only need to move it around and compare it for equality).
type TreeID ID

func (id TreeID) String() string { return ID(id).String() }
func (id TreeID) IsZero() bool   { return ID(id).IsZero() }

// WorkspaceID names a workspace (a checkout of the repository).
type WorkspaceID string

// DefaultWorkspaceID is the workspace id used when a repository has never
// had additional workspaces created.
const DefaultWorkspaceID WorkspaceID = "default"
