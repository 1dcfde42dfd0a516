package objectstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/code-mvp/ledger/hashutil"
	"github.com/code-mvp/ledger/status"
)

// MemStore is an in-memory ObjectStore, used in tests and by bootstrap
// callers that don't need durability — mirroring the teacher's habit
// of shipping an InMemory* sibling next to every persistent storage
// implementation (commonspace/spacestorage.InMemorySpaceStorage).
type MemStore struct {
	mu   sync.RWMutex
	data map[hashutil.ID][]byte
}

func NewMemStore() *MemStore {
	return &MemStore{data: make(map[hashutil.ID][]byte)}
}

func (m *MemStore) AddObject(data []byte) (hashutil.ID, error) {
	id, err := hashutil.Sum(data)
	if err != nil {
		return hashutil.Zero, status.Wrap(status.IOError, "hash object", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.data[id]; !ok {
		cp := make([]byte, len(data))
		copy(cp, data)
		m.data[id] = cp
	}
	return id, nil
}

func (m *MemStore) AddObjectFromStream(ctx context.Context, r io.Reader, expectedSize int64) (hashutil.ID, error) {
	var buf bytes.Buffer
	n, err := io.Copy(&buf, r)
	if err != nil {
		return hashutil.Zero, status.Wrap(status.IOError, "drain object stream", err)
	}
	select {
	case <-ctx.Done():
		return hashutil.Zero, status.Wrap(status.IOError, "object stream aborted", ctx.Err())
	default:
	}
	if expectedSize >= 0 && n != expectedSize {
		return hashutil.Zero, status.New(status.IOError,
			fmt.Sprintf("stream length mismatch: expected %d, got %d", expectedSize, n))
	}
	return m.AddObject(buf.Bytes())
}

func (m *MemStore) GetObject(ctx context.Context, id hashutil.ID) (Object, error) {
	return m.GetObjectSync(id)
}

func (m *MemStore) GetObjectSync(id hashutil.ID) (Object, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.data[id]
	if !ok {
		return nil, errNotFound(id)
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	return object{id: id, data: cp}, nil
}
