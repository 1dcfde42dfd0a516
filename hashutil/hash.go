// Package hashutil computes the content-addressed identifiers used
// throughout the page storage engine: ObjectId and CommitId are both
// the raw SHA-256 digest of the addressed bytes (spec §3). Digests are
// produced through the multihash/cid stack the rest of the content
// addressing ecosystem in this module's lineage already depends on,
// rather than calling crypto/sha256 directly, so a digest can always be
// round-tripped into a CID for human-readable logging.
package hashutil

import (
	"encoding/hex"

	"github.com/ipfs/go-cid"
	mh "github.com/multiformats/go-multihash"
)

// Size is the width, in bytes, of every ObjectId and CommitId.
const Size = 32

// ID is a raw 32-byte SHA-256 digest, fixed-width and directly
// comparable. ObjectId and CommitId are both instances of ID.
type ID [Size]byte

var Zero ID

// Sum hashes data and returns its ID.
func Sum(data []byte) (ID, error) {
	digest, err := mh.Sum(data, mh.SHA2_256, -1)
	if err != nil {
		return Zero, err
	}
	decoded, err := mh.Decode(digest)
	if err != nil {
		return Zero, err
	}
	var id ID
	copy(id[:], decoded.Digest)
	return id, nil
}

// Hex renders id as lowercase hex, the on-disk filename the spec's
// object/head/commit/unsynced directories index by.
func (id ID) Hex() string {
	return hex.EncodeToString(id[:])
}

// FromHex parses the hex form produced by Hex.
func FromHex(s string) (ID, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return Zero, err
	}
	if len(b) != Size {
		return Zero, ErrBadLength
	}
	var id ID
	copy(id[:], b)
	return id, nil
}

// Bytes returns a copy of the underlying digest.
func (id ID) Bytes() []byte {
	b := make([]byte, Size)
	copy(b, id[:])
	return b
}

// IsZero reports whether id is the zero value (never a valid content
// address, since SHA-256 of any input is astronomically unlikely to be
// all-zero; used as a sentinel for "no id").
func (id ID) IsZero() bool {
	return id == Zero
}

// CID renders id as a CIDv1 (raw codec, sha2-256 multihash) for use in
// log lines, never for on-disk paths.
func (id ID) CID() (cid.Cid, error) {
	digest, err := mh.Encode(id[:], mh.SHA2_256)
	if err != nil {
		return cid.Undef, err
	}
	return cid.NewCidV1(cid.Raw, digest), nil
}

// String implements fmt.Stringer, preferring the CID form and falling
// back to hex if CID construction somehow fails.
func (id ID) String() string {
	c, err := id.CID()
	if err != nil {
		return id.Hex()
	}
	return c.String()
}

var ErrBadLength = errBadLength{}

type errBadLength struct{}

func (errBadLength) Error() string { return "hashutil: id must be exactly 32 bytes" }
