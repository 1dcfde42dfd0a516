package btree

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/code-mvp/ledger/hashutil"
	"github.com/code-mvp/ledger/status"
)

// Encode produces the canonical serialized form of a node: its entries
// in order, then its child references. The result is itself stored as
// an Object, so a node is addressable by its own content (spec §4.2).
//
// Layout (all integers are unsigned LEB128 varints via
// encoding/binary.{Put,}Uvarint, the same primitive the IPLD/CID stack
// this module addresses content with builds its own varint framing on
// top of):
//
//	uvarint(entryCount)
//	entryCount * { uvarint(len(key)) key-bytes 32-byte-value-id 1-byte-priority }
//	(entryCount+1) * { 1-byte-present-flag [32-byte-child-id] }
func Encode(n *Node) []byte {
	var buf bytes.Buffer
	var scratch [binary.MaxVarintLen64]byte

	putUvarint := func(v uint64) {
		l := binary.PutUvarint(scratch[:], v)
		buf.Write(scratch[:l])
	}

	putUvarint(uint64(len(n.Entries)))
	for _, e := range n.Entries {
		putUvarint(uint64(len(e.Key)))
		buf.WriteString(e.Key)
		buf.Write(e.ValueID[:])
		buf.WriteByte(byte(e.Priority))
	}
	for _, c := range n.Children {
		if c.IsZero() {
			buf.WriteByte(0)
		} else {
			buf.WriteByte(1)
			buf.Write(c[:])
		}
	}
	return buf.Bytes()
}

// Decode parses bytes produced by Encode. Returns status.FormatError on
// any structural inconsistency (spec §7).
func Decode(data []byte) (*Node, error) {
	r := bytes.NewReader(data)

	entryCount, err := binary.ReadUvarint(r)
	if err != nil {
		return nil, formatErr("read entry count", err)
	}

	n := &Node{
		Entries:  make([]Entry, 0, entryCount),
		Children: make([]hashutil.ID, 0, entryCount+1),
	}

	for i := uint64(0); i < entryCount; i++ {
		keyLen, err := binary.ReadUvarint(r)
		if err != nil {
			return nil, formatErr("read key length", err)
		}
		keyBuf := make([]byte, keyLen)
		if _, err := io.ReadFull(r, keyBuf); err != nil {
			return nil, formatErr("read key", err)
		}
		var valueID hashutil.ID
		if _, err := io.ReadFull(r, valueID[:]); err != nil {
			return nil, formatErr("read value id", err)
		}
		priorityByte, err := r.ReadByte()
		if err != nil {
			return nil, formatErr("read priority", err)
		}
		n.Entries = append(n.Entries, Entry{
			Key:      string(keyBuf),
			ValueID:  valueID,
			Priority: Priority(priorityByte),
		})
	}

	for i := uint64(0); i < entryCount+1; i++ {
		flag, err := r.ReadByte()
		if err != nil {
			return nil, formatErr("read child flag", err)
		}
		if flag == 0 {
			n.Children = append(n.Children, hashutil.Zero)
			continue
		}
		var childID hashutil.ID
		if _, err := io.ReadFull(r, childID[:]); err != nil {
			return nil, formatErr("read child id", err)
		}
		n.Children = append(n.Children, childID)
	}

	if r.Len() != 0 {
		return nil, status.New(status.FormatError, "trailing bytes after node")
	}
	return n, nil
}

func formatErr(msg string, cause error) error {
	return status.Wrap(status.FormatError, "tree node: "+msg, cause)
}
