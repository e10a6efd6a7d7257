// Package commit defines the Commit object and its content-addressed wire
// encoding, adapted from the reference VCS's object.Commit to carry the
// change-id abstraction the spec layers over commits.
package commit

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/jjvcs/opgraph/modules/objectid"
)

// commitMagic tags the encoded bytes so a store can sanity-check the object
// kind before decoding, matching the reference VCS's 4-byte object magics.
var commitMagic = [4]byte{'O', 'C', 0x00, 0x01}

const dateFormat = "Mon Jan 02 15:04:05 2006 -0700"

// Signature identifies the author or committer of a commit.
type Signature struct {
	Name  string
	Email string
	When  time.Time
}

func (s Signature) String() string {
	return fmt.Sprintf("%s <%s> %d %s", s.Name, s.Email, s.When.Unix(), s.When.Format("-0700"))
}

// Decode parses the "Name <email> unix-ts -0700" form written by String.
func (s *Signature) Decode(b []byte) {
	open := bytes.LastIndexByte(b, '<')
	closeIdx := bytes.LastIndexByte(b, '>')
	if open == -1 || closeIdx == -1 || closeIdx < open {
		return
	}
	s.Name = string(bytes.TrimSpace(b[:open]))
	s.Email = string(b[open+1 : closeIdx])
	rest := closeIdx + 2
	if rest >= len(b) {
		return
	}
	fields := strings.Fields(string(b[rest:]))
	if len(fields) == 0 {
		return
	}
	ts, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil {
		return
	}
	s.When = time.Unix(ts, 0).UTC()
	if len(fields) < 2 || len(fields[1]) != 5 {
		return
	}
	tz := fields[1]
	hours, err1 := strconv.ParseInt(tz[0:3], 10, 64)
	mins, err2 := strconv.ParseInt(tz[3:], 10, 64)
	if err1 != nil || err2 != nil {
		return
	}
	if hours < 0 {
		mins *= -1
	}
	s.When = s.When.In(time.FixedZone("", int(hours*3600+mins*60)))
}

// Commit is an immutable, content-addressed node in the commit DAG. Once
// written to a CommitStore its id is fixed; "rewriting" a commit means
// writing a new Commit and recording the replacement in a transaction's
// rewrite bookkeeping (see package repo), never mutating this value.
type Commit struct {
	ID          objectid.CommitID
	Parents     []objectid.CommitID
	Tree        objectid.TreeID
	ChangeID    objectid.ChangeID
	Author      Signature
	Committer   Signature
	Description string
	IsSigned    bool
}

// IsRoot reports whether c is the fixed sentinel root commit (no parents
// and the well-known all-zero commit id).
func (c *Commit) IsRoot() bool {
	return len(c.Parents) == 0 && c.ID == objectid.CommitID(objectid.Zero)
}

// Discardable reports whether c changes nothing relative to its parents and
// carries no description, per the spec's definition of a discardable
// commit: a candidate for implicit abandonment when a working copy moves
// away from it (spec §4.5.3).
func (c *Commit) Discardable(parentTree objectid.TreeID) bool {
	return c.Tree == parentTree && strings.TrimSpace(c.Description) == ""
}

// Encode writes the content-addressed wire form of c (excluding ID, which is
// derived from this encoding by the store).
func (c *Commit) Encode(w io.Writer) error {
	if _, err := w.Write(commitMagic[:]); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "tree %s\n", c.Tree.String()); err != nil {
		return err
	}
	for _, p := range c.Parents {
		if _, err := fmt.Fprintf(w, "parent %s\n", p.String()); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintf(w, "change %s\n", c.ChangeID.String()); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "author %s\ncommitter %s\n", c.Author.String(), c.Committer.String()); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "\n%s", c.Description); err != nil {
		return err
	}
	return nil
}

// Decode parses the wire form written by Encode. id is supplied by the
// caller (the store already knows it, having content-addressed the bytes).
func Decode(id objectid.CommitID, r io.Reader) (*Commit, error) {
	br := bufReader(r)
	defer putBufReader(br)
	var magic [4]byte
	if _, err := io.ReadFull(br, magic[:]); err != nil {
		return nil, fmt.Errorf("commit: short read: %w", err)
	}
	if magic != commitMagic {
		return nil, fmt.Errorf("commit: bad magic")
	}
	c := &Commit{ID: id}
	var message strings.Builder
	finishedHeaders := false
	for {
		line, readErr := br.ReadString('\n')
		if readErr != nil && readErr != io.EOF {
			return nil, readErr
		}
		text := strings.TrimSuffix(line, "\n")
		if !finishedHeaders {
			if text == "" {
				finishedHeaders = true
				if readErr == io.EOF {
					break
				}
				continue
			}
			fields := strings.SplitN(text, " ", 2)
			if len(fields) == 2 {
				switch fields[0] {
				case "tree":
					c.Tree = objectid.TreeID(objectid.FromHex(fields[1]))
				case "parent":
					c.Parents = append(c.Parents, objectid.CommitIDFromHex(fields[1]))
				case "change":
					c.ChangeID = objectid.ChangeIDFromReverseHex(fields[1])
				case "author":
					c.Author.Decode([]byte(fields[1]))
				case "committer":
					c.Committer.Decode([]byte(fields[1]))
				}
			}
		} else {
			message.WriteString(line)
		}
		if readErr == io.EOF {
			break
		}
	}
	c.Description = message.String()
	return c, nil
}

// Subject returns the first line of the description.
func (c *Commit) Subject() string {
	if i := strings.IndexAny(c.Description, "\r\n"); i != -1 {
		return c.Description[0:i]
	}
	return c.Description
}

// String renders c the way "jj log" would print a single entry header.
func (c *Commit) String() string {
	return fmt.Sprintf("commit %s\nchange %s\nAuthor: %s\nDate:   %s\n\n    %s\n",
		c.ID, c.ChangeID, c.Author.String(), c.Author.When.Format(dateFormat), c.Subject())
}
