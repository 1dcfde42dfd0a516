package objectstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	blocks "github.com/ipfs/go-block-format"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/code-mvp/ledger/hashutil"
	"github.com/code-mvp/ledger/status"
)

// FSObjectStore persists objects under <root>/objects/<hex(id)>, the
// layout spec §6 mandates.
type FSObjectStore struct {
	root  string
	group singleflight.Group
}

// NewFS opens the object directory under root, creating objects/ (and
// root itself, if absent) when it does not exist yet.
func NewFS(root string) (*FSObjectStore, error) {
	dir := objectsDir(root)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, status.Wrap(status.IOError, "create objects dir", err)
	}
	return &FSObjectStore{root: root}, nil
}

func objectsDir(root string) string {
	return filepath.Join(root, "objects")
}

func (s *FSObjectStore) pathFor(id hashutil.ID) string {
	return filepath.Join(objectsDir(s.root), id.Hex())
}

func (s *FSObjectStore) AddObject(data []byte) (hashutil.ID, error) {
	id, err := hashutil.Sum(data)
	if err != nil {
		return hashutil.Zero, status.Wrap(status.IOError, "hash object", err)
	}
	if err := s.writeIfAbsent(id, data); err != nil {
		return hashutil.Zero, err
	}
	return id, nil
}

func (s *FSObjectStore) AddObjectFromStream(ctx context.Context, r io.Reader, expectedSize int64) (hashutil.ID, error) {
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
	return s.AddObject(buf.Bytes())
}

func (s *FSObjectStore) writeIfAbsent(id hashutil.ID, data []byte) error {
	path := s.pathFor(id)
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return status.Wrap(status.IOError, "write object", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return status.Wrap(status.IOError, "finalize object", err)
	}
	return nil
}

func (s *FSObjectStore) GetObject(ctx context.Context, id hashutil.ID) (Object, error) {
	v, err, _ := s.group.Do(id.Hex(), func() (any, error) {
		return s.readAndVerify(id)
	})
	if err != nil {
		return nil, err
	}
	return v.(Object), nil
}

func (s *FSObjectStore) GetObjectSync(id hashutil.ID) (Object, error) {
	return s.readAndVerify(id)
}

func (s *FSObjectStore) readAndVerify(id hashutil.ID) (Object, error) {
	data, err := os.ReadFile(s.pathFor(id))
	if os.IsNotExist(err) {
		return nil, errNotFound(id)
	}
	if err != nil {
		return nil, status.Wrap(status.IOError, "read object", err)
	}
	sum, err := hashutil.Sum(data)
	if err != nil {
		return nil, status.Wrap(status.IOError, "hash object", err)
	}
	if sum != id {
		log.Warn("stored object hash mismatch", zap.String("id", id.Hex()))
		return nil, status.New(status.FormatError, "object content does not hash to id")
	}
	c, err := id.CID()
	if err != nil {
		return nil, status.Wrap(status.InternalError, "derive cid", err)
	}
	block, err := blocks.NewBlockWithCid(data, c)
	if err != nil {
		log.Warn("stored object hash mismatch", zap.String("id", id.Hex()))
		return nil, status.Wrap(status.FormatError, "object content does not hash to id", err)
	}
	return newObject(id, block), nil
}
