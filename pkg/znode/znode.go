package znode

import (
	"slices"
	"strings"

	"github.com/mikekulinski/zkstate/pkg/zookeeper"
)

type ZNode struct {
	// Path is the absolute path of the node. The root is "/".
	Path string
	Stat zookeeper.Stat
	// ACL is stored and returned as is. It is never enforced.
	ACL      []zookeeper.ACL
	Children map[string]*ZNode
	// Sequence is the counter appended to the name of the next sequential child.
	Sequence uint32

	// Data is the data stored here by the client.
	Data []byte

	parent *ZNode
}

func newZNode(path string, parent *ZNode) *ZNode {
	return &ZNode{
		Path: path,
		// Init the children to an empty map instead of nil to avoid panics when writing to
		// a nil map.
		Children: map[string]*ZNode{},
		parent:   parent,
	}
}

// Name is the last element of the path.
func (z *ZNode) Name() string {
	return z.Path[strings.LastIndexByte(z.Path, '/')+1:]
}

func (z *ZNode) IsEphemeral() bool {
	return z.Stat.EphemeralOwner != 0
}

// ChildNames returns the names of the children in lexicographic order.
func (z *ZNode) ChildNames() []string {
	names := make([]string, 0, len(z.Children))
	for name := range z.Children {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func (z *ZNode) link(child *ZNode) {
	z.Children[child.Name()] = child
	z.Stat.NumChildren = int32(len(z.Children))
}

func (z *ZNode) unlink(child *ZNode) {
	delete(z.Children, child.Name())
	z.Stat.NumChildren = int32(len(z.Children))
}

// touchChildren records a change to the set of children made by the transaction at zxid.
func (z *ZNode) touchChildren(zxid, time int64) {
	z.Stat.Cversion++
	z.Stat.Pzxid = zxid
	z.Stat.Mtime = time
}
