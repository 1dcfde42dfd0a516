package btree

import (
	"context"
	"sort"

	"github.com/code-mvp/ledger/hashutil"
	"github.com/code-mvp/ledger/objectstore"
)

// Build assembles a persistent tree from entries (which must already be
// de-duplicated by key) and writes every novel node through store,
// returning the root id. The split is driven solely by sorted key order
// (spec §4.2), so the same key set always yields the same nodes
// regardless of how the caller originally applied Puts and Deletes —
// the property journal.Commit relies on for testable-property #6.
func Build(ctx context.Context, store objectstore.ObjectStore, entries []Entry) (hashutil.ID, error) {
	sorted := make([]Entry, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Key < sorted[j].Key })
	return build(ctx, store, sorted)
}

func build(ctx context.Context, store objectstore.ObjectStore, entries []Entry) (hashutil.ID, error) {
	n := len(entries)
	if n <= MaxEntries {
		return writeLeaf(ctx, store, entries)
	}

	const childCount = MaxEntries + 1
	remaining := n - MaxEntries
	baseGroup := remaining / childCount
	extra := remaining % childCount

	node := &Node{
		Entries:  make([]Entry, 0, MaxEntries),
		Children: make([]hashutil.ID, 0, childCount),
	}

	idx := 0
	for c := 0; c < childCount; c++ {
		groupSize := baseGroup
		if c < extra {
			groupSize++
		}
		group := entries[idx : idx+groupSize]
		idx += groupSize

		var childID hashutil.ID
		if groupSize > 0 {
			var err error
			childID, err = build(ctx, store, group)
			if err != nil {
				return hashutil.Zero, err
			}
		}
		node.Children = append(node.Children, childID)

		if c < childCount-1 {
			node.Entries = append(node.Entries, entries[idx])
			idx++
		}
	}

	return writeNode(ctx, store, node)
}

func writeLeaf(ctx context.Context, store objectstore.ObjectStore, entries []Entry) (hashutil.ID, error) {
	children := make([]hashutil.ID, len(entries)+1)
	node := &Node{Entries: append([]Entry(nil), entries...), Children: children}
	return writeNode(ctx, store, node)
}

func writeNode(ctx context.Context, store objectstore.ObjectStore, node *Node) (hashutil.ID, error) {
	data := Encode(node)
	id, err := store.AddObject(data)
	if err != nil {
		return hashutil.Zero, err
	}
	node.ID = id
	return id, nil
}

// EmptyTree builds and writes the canonical empty tree: a single leaf
// with no entries, used as the root of the initial commit.
func EmptyTree(ctx context.Context, store objectstore.ObjectStore) (hashutil.ID, error) {
	return Build(ctx, store, nil)
}
