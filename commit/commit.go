// Package commit implements the immutable commit record from spec §3 and
// §4.4: identity, parentage, the root-tree reference, and the canonical
// byte serialization commits are hashed from.
package commit

import (
	"bytes"
	"encoding/binary"
	"io"
	"sort"

	"github.com/code-mvp/ledger/hashutil"
	"github.com/code-mvp/ledger/status"
)

// Commit is an immutable, content-addressed versioned snapshot of a
// page: its id, its parents, the root of its value tree, and metadata.
type Commit struct {
	ID         hashutil.ID
	ParentIDs  []hashutil.ID
	RootTreeID hashutil.ID
	Timestamp  int64 // Unix nanoseconds
	Generation uint64
}

// FromContentAndParents constructs a new commit whose generation is one
// more than the maximum parent generation (spec §4.4). parents may be
// empty only for the initial commit.
func FromContentAndParents(rootTreeID hashutil.ID, parents []*Commit, timestamp int64) (*Commit, error) {
	var generation uint64
	parentIDs := make([]hashutil.ID, 0, len(parents))
	for _, p := range parents {
		if p.Generation+1 > generation {
			generation = p.Generation + 1
		}
		parentIDs = append(parentIDs, p.ID)
	}
	c := &Commit{
		ParentIDs:  sortedIDs(parentIDs),
		RootTreeID: rootTreeID,
		Timestamp:  timestamp,
		Generation: generation,
	}
	id, err := hashutil.Sum(Encode(c))
	if err != nil {
		return nil, status.Wrap(status.IOError, "hash commit", err)
	}
	c.ID = id
	return c, nil
}

// InitialCommit builds the generation-0 commit seeded by spec §4.6 Init:
// no parents, the canonical empty tree as its root.
func InitialCommit(emptyTreeID hashutil.ID, timestamp int64) (*Commit, error) {
	return FromContentAndParents(emptyTreeID, nil, timestamp)
}

func sortedIDs(ids []hashutil.ID) []hashutil.ID {
	sorted := make([]hashutil.ID, len(ids))
	copy(sorted, ids)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Hex() < sorted[j].Hex() })
	return sorted
}

// Encode produces the canonical serialization: generation and timestamp
// as fixed-width big-endian integers, then the root tree id, then the
// parent ids in sorted order (spec §4.4).
func Encode(c *Commit) []byte {
	var buf bytes.Buffer
	var width [8]byte

	binary.BigEndian.PutUint64(width[:], c.Generation)
	buf.Write(width[:])

	binary.BigEndian.PutUint64(width[:], uint64(c.Timestamp))
	buf.Write(width[:])

	buf.Write(c.RootTreeID[:])

	binary.BigEndian.PutUint64(width[:], uint64(len(c.ParentIDs)))
	buf.Write(width[:])
	for _, p := range sortedIDs(c.ParentIDs) {
		buf.Write(p[:])
	}
	return buf.Bytes()
}

// Parse recovers a Commit's fields from its canonical bytes and
// recomputes the id for verification (spec §4.4).
func Parse(data []byte) (*Commit, error) {
	r := bytes.NewReader(data)
	var width [8]byte

	if _, err := io.ReadFull(r, width[:]); err != nil {
		return nil, formatErr("read generation", err)
	}
	generation := binary.BigEndian.Uint64(width[:])

	if _, err := io.ReadFull(r, width[:]); err != nil {
		return nil, formatErr("read timestamp", err)
	}
	timestamp := int64(binary.BigEndian.Uint64(width[:]))

	var rootTreeID hashutil.ID
	if _, err := io.ReadFull(r, rootTreeID[:]); err != nil {
		return nil, formatErr("read root tree id", err)
	}

	if _, err := io.ReadFull(r, width[:]); err != nil {
		return nil, formatErr("read parent count", err)
	}
	parentCount := binary.BigEndian.Uint64(width[:])

	parentIDs := make([]hashutil.ID, 0, parentCount)
	for i := uint64(0); i < parentCount; i++ {
		var p hashutil.ID
		if _, err := io.ReadFull(r, p[:]); err != nil {
			return nil, formatErr("read parent id", err)
		}
		parentIDs = append(parentIDs, p)
	}
	if r.Len() != 0 {
		return nil, status.New(status.FormatError, "trailing bytes after commit")
	}

	id, err := hashutil.Sum(data)
	if err != nil {
		return nil, status.Wrap(status.IOError, "hash commit", err)
	}

	return &Commit{
		ID:         id,
		ParentIDs:  parentIDs,
		RootTreeID: rootTreeID,
		Timestamp:  timestamp,
		Generation: generation,
	}, nil
}

func formatErr(msg string, cause error) error {
	return status.Wrap(status.FormatError, "commit: "+msg, cause)
}
