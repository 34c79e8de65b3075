package znode

import (
	"github.com/fxamacker/cbor/v2"
	"github.com/mikekulinski/zkstate/pkg/zookeeper"
)

var snapshotMode cbor.EncMode

func init() {
	var err error
	snapshotMode, err = cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
}

type snapshotEntry struct {
	Path     string
	Data     []byte
	ACL      []zookeeper.ACL
	Stat     zookeeper.Stat
	Sequence uint32
}

// Snapshot encodes the whole tree in canonical CBOR. Two trees that hold the same nodes with the
// same data and metadata produce the same bytes, whatever order their transactions arrived in.
func (d *DB) Snapshot() ([]byte, error) {
	entries := make([]snapshotEntry, 0, d.size)
	d.Walk(func(z *ZNode) {
		e := snapshotEntry{
			Path:     z.Path,
			Stat:     z.Stat,
			Sequence: z.Sequence,
		}
		// Empty and missing values encode differently, so only keep non-empty ones.
		if len(z.Data) > 0 {
			e.Data = z.Data
		}
		if len(z.ACL) > 0 {
			e.ACL = z.ACL
		}
		entries = append(entries, e)
	})
	return snapshotMode.Marshal(entries)
}

// Walk visits every node depth first, parents before children and siblings in name order.
func (d *DB) Walk(fn func(*ZNode)) {
	walk(d.root, fn)
}

func walk(z *ZNode, fn func(*ZNode)) {
	fn(z)
	for _, name := range z.ChildNames() {
		walk(z.Children[name], fn)
	}
}
