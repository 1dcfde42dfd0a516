package btree

import (
	"context"

	"github.com/code-mvp/ledger/hashutil"
	"github.com/code-mvp/ledger/objectstore"
	"github.com/code-mvp/ledger/status"
)

// MaxEntries bounds how many entries a single node holds before the
// builder splits it into children (spec §4.2: "up to 16 entries per
// node").
const MaxEntries = 16

// Node is an immutable B-tree node: an ordered run of entries and the
// n+1 child references straddling them (spec §3). A zero hashutil.ID
// in Children marks an empty slot.
type Node struct {
	ID       hashutil.ID
	Entries  []Entry
	Children []hashutil.ID
}

// EntryCount returns the number of entries held directly in this node.
func (n *Node) EntryCount() int {
	return len(n.Entries)
}

// GetEntry returns the i'th entry, 0 <= i < EntryCount().
func (n *Node) GetEntry(i int) (Entry, error) {
	if i < 0 || i >= len(n.Entries) {
		return Entry{}, status.New(status.InternalError, "entry index out of range")
	}
	return n.Entries[i], nil
}

// GetChild loads and returns the child at slot i, 0 <= i <= EntryCount().
// Returns status.NoSuchChild if the slot is empty, distinct from
// status.NotFound (spec §4.2).
func (n *Node) GetChild(ctx context.Context, store objectstore.ObjectStore, i int) (*Node, error) {
	if i < 0 || i >= len(n.Children) {
		return nil, status.New(status.InternalError, "child index out of range")
	}
	id := n.Children[i]
	if id.IsZero() {
		return nil, status.New(status.NoSuchChild, "child slot is empty")
	}
	return Load(ctx, store, id)
}

// ChildIsEmpty reports whether slot i holds no child, without touching
// storage.
func (n *Node) ChildIsEmpty(i int) bool {
	return n.Children[i].IsZero()
}

// Load deserializes the node stored under id.
func Load(ctx context.Context, store objectstore.ObjectStore, id hashutil.ID) (*Node, error) {
	obj, err := store.GetObject(ctx, id)
	if err != nil {
		return nil, err
	}
	n, err := Decode(obj.Data())
	if err != nil {
		return nil, err
	}
	n.ID = id
	return n, nil
}

// LoadSync is the non-async variant, for bootstrap/test callers.
func LoadSync(store objectstore.ObjectStore, id hashutil.ID) (*Node, error) {
	obj, err := store.GetObjectSync(id)
	if err != nil {
		return nil, err
	}
	n, err := Decode(obj.Data())
	if err != nil {
		return nil, err
	}
	n.ID = id
	return n, nil
}
