package btree

import (
	"context"

	"github.com/code-mvp/ledger/hashutil"
	"github.com/code-mvp/ledger/objectstore"
)

// ToMap walks the tree rooted at rootID and returns its entries keyed
// by Entry.Key, for callers (journal.Commit) that need to apply a batch
// of Puts/Deletes on top of an existing tree.
func ToMap(ctx context.Context, store objectstore.ObjectStore, rootID hashutil.ID) (map[string]Entry, error) {
	root, err := Load(ctx, store, rootID)
	if err != nil {
		return nil, err
	}
	it := NewIterator(ctx, store, root)
	out := make(map[string]Entry, root.EntryCount())
	for !it.Done() {
		e := it.Entry()
		out[e.Key] = e
		it.Next()
	}
	if err := it.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
