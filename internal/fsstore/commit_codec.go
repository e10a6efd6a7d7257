package fsstore

import (
	"bytes"

	"github.com/jjvcs/opgraph/modules/commit"
	"github.com/jjvcs/opgraph/modules/objectid"
)

func encodeCommit(c *commit.Commit) ([]byte, error) {
	var buf bytes.Buffer
	if err := c.Encode(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeCommit(id objectid.CommitID, plaintext []byte) (*commit.Commit, error) {
	return commit.Decode(id, bytes.NewReader(plaintext))
}
