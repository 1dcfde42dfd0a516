// Package objectstore implements the content-addressed blob layer
// described in spec §4.1: objects are immutable byte blobs addressed
// by the SHA-256 of their bytes, written once and deduplicated by
// identity.
package objectstore

import (
	"context"
	"io"

	blocks "github.com/ipfs/go-block-format"

	"github.com/code-mvp/ledger/applog"
	"github.com/code-mvp/ledger/hashutil"
	"github.com/code-mvp/ledger/status"
)

var log = applog.NewNamed("objectstore")

// Object is an immutable blob exposed by the store: its id and its
// bytes, travelling together. FSObjectStore reads bytes into a
// github.com/ipfs/go-block-format Block and copies the Block's raw data
// into the Object; the Block itself is not kept.
type Object interface {
	ID() hashutil.ID
	Data() []byte
}

type object struct {
	id   hashutil.ID
	data []byte
}

func (o object) ID() hashutil.ID { return o.id }
func (o object) Data() []byte    { return o.data }

func newObject(id hashutil.ID, block blocks.Block) Object {
	return object{id: id, data: block.RawData()}
}

// ObjectStore is the content-addressed blob persistence layer.
type ObjectStore interface {
	// AddObject writes data under Sum(data) and returns its id. Idempotent.
	AddObject(data []byte) (hashutil.ID, error)

	// AddObjectFromStream drains r while hashing it. When expectedSize is
	// >= 0, a realized length different from expectedSize fails with
	// status.IOError. A negative expectedSize accepts any length.
	AddObjectFromStream(ctx context.Context, r io.Reader, expectedSize int64) (hashutil.ID, error)

	// GetObject returns the object addressed by id, or a status.NotFound /
	// status.IOError / status.FormatError *status.Error.
	GetObject(ctx context.Context, id hashutil.ID) (Object, error)

	// GetObjectSync is the blocking variant, for bootstrap and test callers
	// not running on the owning task runner (spec §5).
	GetObjectSync(id hashutil.ID) (Object, error)
}

var (
	errNotFound = func(id hashutil.ID) error {
		return status.New(status.NotFound, "object not found: "+id.Hex())
	}
)
