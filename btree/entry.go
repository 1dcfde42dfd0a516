package btree

import "github.com/code-mvp/ledger/hashutil"

// Priority is the sync hint attached to an Entry (spec §3): EAGER values
// must be fetched eagerly alongside their commit, LAZY ones can be
// fetched on demand.
type Priority uint8

const (
	Eager Priority = iota
	Lazy
)

func (p Priority) String() string {
	if p == Lazy {
		return "LAZY"
	}
	return "EAGER"
}

// Entry is a single (key, value reference, priority) triple stored in a
// TreeNode.
type Entry struct {
	Key      string
	ValueID  hashutil.ID
	Priority Priority
}
