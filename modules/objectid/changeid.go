package objectid

// ChangeID identifies a change: a logical unit of work that survives
// rewrites of the commit that currently represents it. Internally it is a
// plain digest; only its *display* form uses the reverse hex alphabet
// described by the spec ("z" instead of "0", "k" instead of "f", ...), so
// that change ids are visually distinct from commit ids at a glance.
type ChangeID ID

// reverseHexAlphabet maps a hex nibble (0-15) to its display rune. It is the
// hex alphabet reversed: 0->z, 1->y, ..., 15->k. This matches the common
// convention (used by the reference implementation this spec distils) of
// giving change ids their own alphabet so they are never confused with
// commit-id hex strings textually.
const reverseHexAlphabet = "zyxwvutsrqponmlk"

func (id ChangeID) AsID() ID { return ID(id) }

// String renders the change id using the reverse hex display alphabet.
func (id ChangeID) String() string {
	out := make([]byte, 0, len(id)*2)
	for _, b := range id {
		out = append(out, reverseHexAlphabet[b>>4], reverseHexAlphabet[b&0x0f])
	}
	return string(out)
}

func (id ChangeID) IsZero() bool { return ID(id).IsZero() }

var reverseHexDecodeTable = func() [256]byte {
	var t [256]byte
	for i := range t {
		t[i] = 0xff
	}
	for nibble, r := range []byte(reverseHexAlphabet) {
		t[r] = byte(nibble)
	}
	return t
}()

// ChangeIDFromReverseHex parses a change id rendered in the reverse hex
// display alphabet. Malformed input yields the zero id.
func ChangeIDFromReverseHex(s string) ChangeID {
	var id ChangeID
	nibbles := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		v := reverseHexDecodeTable[s[i]]
		if v == 0xff {
			return ChangeID{}
		}
		nibbles = append(nibbles, v)
	}
	for i := 0; i+1 < len(nibbles) && i/2 < len(id); i += 2 {
		id[i/2] = nibbles[i]<<4 | nibbles[i+1]
	}
	return id
}

// NewChangeHexPrefix parses s -- a prefix typed by a user in the reverse
// hex display alphabet (e.g. "zy" rather than "01") -- into the same
// byte-level HexPrefix ChangeIDIndex.ResolvePrefix expects, converting
// alphabets before delegating to NewHexPrefix.
func NewChangeHexPrefix(s string) (HexPrefix, bool) {
	out := make([]byte, len(s))
	for i := 0; i < len(s); i++ {
		v := reverseHexDecodeTable[s[i]]
		if v == 0xff {
			return HexPrefix{}, false
		}
		out[i] = "0123456789abcdef"[v]
	}
	return NewHexPrefix(string(out))
}
