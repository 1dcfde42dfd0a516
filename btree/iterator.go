package btree

import (
	"context"

	"github.com/code-mvp/ledger/objectstore"
)

// frame is one level of the traversal stack: entryIndex == -1 means "no
// entry yielded yet from this node", childIndex == -1 means "no child
// explored yet" (spec §4.3).
type frame struct {
	node       *Node
	entryIndex int
	childIndex int
}

// Iterator yields the entries of a tree in key order: in-order, lazy,
// finite, not restartable. Modeled directly on the original Ledger
// BTreeIterator (storage/impl/btree/btree_iterator.cc): a stack of
// (node, entry_index, child_index) frames replaces recursion so a
// copy-on-write tree can be walked without materializing it.
type Iterator struct {
	ctx     context.Context
	store   objectstore.ObjectStore
	stack   []frame
	current Entry
	done    bool
	err     error
}

// NewIterator returns an iterator positioned at the first entry of the
// tree rooted at root.
func NewIterator(ctx context.Context, store objectstore.ObjectStore, root *Node) *Iterator {
	it := &Iterator{ctx: ctx, store: store}

	current := root
	for current != nil {
		it.stack = append(it.stack, frame{node: current, entryIndex: -1, childIndex: 0})
		if current.ChildIsEmpty(0) {
			break
		}
		next, err := current.GetChild(ctx, store, 0)
		if err != nil {
			it.err = err
			return it
		}
		current = next
	}
	it.advance()
	return it
}

// Done reports whether the traversal is exhausted.
func (it *Iterator) Done() bool {
	return it.done || it.err != nil
}

// Err returns any error encountered while loading nodes; once non-nil,
// the iterator is also Done.
func (it *Iterator) Err() error {
	return it.err
}

// Entry returns the entry at the iterator's current position. Only
// valid when !Done().
func (it *Iterator) Entry() Entry {
	return it.current
}

// Next advances the iterator. Must not be called once Done().
func (it *Iterator) Next() {
	if it.Done() {
		return
	}
	it.advance()
}

func (it *Iterator) advance() {
	directionUp := false
	for len(it.stack) > 0 {
		top := &it.stack[len(it.stack)-1]

		if directionUp {
			top.entryIndex++
			if top.entryIndex < top.node.EntryCount() {
				entry, err := top.node.GetEntry(top.entryIndex)
				if err != nil {
					it.err = err
					it.done = true
					return
				}
				it.current = entry
				return
			}
			it.stack = it.stack[:len(it.stack)-1]
			continue
		}

		top.childIndex++
		if top.childIndex <= top.node.EntryCount() {
			if top.node.ChildIsEmpty(top.childIndex) {
				directionUp = true
				continue
			}
			child, err := top.node.GetChild(it.ctx, it.store, top.childIndex)
			if err != nil {
				it.err = err
				it.done = true
				return
			}
			it.stack = append(it.stack, frame{node: child, entryIndex: -1, childIndex: -1})
			continue
		}
		directionUp = true
		it.stack = it.stack[:len(it.stack)-1]
	}
	it.done = true
}
