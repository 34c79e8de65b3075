package znode

import (
	"bytes"
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/mikekulinski/zkstate/pkg/txn"
	"github.com/mikekulinski/zkstate/pkg/zookeeper"
)

// DB is the source of truth for all the data stored in the server. It does no locking of its own:
// the server applies every transaction, and serves every read, inside a single critical section.
type DB struct {
	root *ZNode
	// size counts every node, the root included.
	size int
}

func NewDB() *DB {
	return &DB{
		root: newZNode("/", nil),
		size: 1,
	}
}

// Get returns the node at path, or nil if there is none.
func (d *DB) Get(path string) *ZNode {
	if path == "/" {
		return d.root
	}
	return findZNode(d.root, splitPathIntoNodeNames(path))
}

func (d *DB) Size() int {
	return d.size
}

// findZNode will search down to the tree and return the node specified by the names.
// If the node could not be found, then we will return nil.
func findZNode(start *ZNode, names []string) *ZNode {
	node := start
	for _, name := range names {
		z, ok := node.Children[name]
		if !ok {
			return nil
		}
		node = z
	}
	return node
}

func splitPathIntoNodeNames(path string) []string {
	// Since we have a leading /, then we expect the first name to be empty.
	return strings.Split(path, "/")[1:]
}

// lookup validates path and returns the node stored there.
func (d *DB) lookup(path string) (*ZNode, error) {
	if err := ValidatePath(path, false); err != nil {
		return nil, err
	}
	node := d.Get(path)
	if node == nil {
		return nil, fmt.Errorf("%w: %s", zookeeper.ErrNoNode, path)
	}
	return node, nil
}

func (d *DB) Create(rec txn.Record, req *zookeeper.CreateRequest) (*zookeeper.CreateResult, error) {
	res, _, err := d.create(rec, req)
	return res, err
}

func (d *DB) create(rec txn.Record, req *zookeeper.CreateRequest) (*zookeeper.CreateResult, undo, error) {
	if !req.Flags.Valid() {
		return nil, nil, fmt.Errorf("%w: unknown create mode %d", zookeeper.ErrBadArguments, req.Flags)
	}
	sequential := req.Flags.IsSequential()
	if err := ValidatePath(req.Path, sequential); err != nil {
		return nil, nil, err
	}
	if req.Path == "/" && !sequential {
		return nil, nil, fmt.Errorf("%w: the root already exists", zookeeper.ErrBadArguments)
	}
	if req.Flags.IsEphemeral() && rec.SessionID() == 0 {
		return nil, nil, fmt.Errorf("%w: ephemeral node %s needs an owning session", zookeeper.ErrBadArguments, req.Path)
	}

	// Search down the tree until we hit the parent where we'll be creating this new node.
	parentPath, name := splitPath(req.Path)
	parent := d.Get(parentPath)
	if parent == nil {
		return nil, nil, fmt.Errorf("%w: parent of %s", zookeeper.ErrNoNode, req.Path)
	}
	if parent.IsEphemeral() {
		return nil, nil, fmt.Errorf("%w: %s", zookeeper.ErrNoChildrenForEphemerals, parentPath)
	}
	if sequential {
		if parent.Sequence == math.MaxUint32 {
			return nil, nil, fmt.Errorf("%w: sequence exhausted under %s", zookeeper.ErrBadArguments, parentPath)
		}
		name += fmt.Sprintf("%010d", parent.Sequence)
	}
	path := joinPath(parentPath, name)
	if _, ok := parent.Children[name]; ok {
		return nil, nil, fmt.Errorf("%w: %s", zookeeper.ErrNodeExists, path)
	}

	u := &createUndo{
		path:           path,
		parentStat:     parent.Stat,
		parentSequence: parent.Sequence,
	}

	z := int64(rec.Zxid)
	node := newZNode(path, parent)
	node.Data = bytes.Clone(req.Data)
	node.ACL = slices.Clone(req.ACL)
	node.Stat = zookeeper.Stat{
		Czxid:      z,
		Mzxid:      z,
		Pzxid:      z,
		Ctime:      rec.Time,
		Mtime:      rec.Time,
		DataLength: int32(len(req.Data)),
	}
	if req.Flags.IsEphemeral() {
		node.Stat.EphemeralOwner = rec.SessionID()
	}

	parent.link(node)
	parent.touchChildren(z, rec.Time)
	// Make sure to increment the counter so the next sequential node will have the next number.
	if sequential {
		parent.Sequence++
	}
	d.size++

	res := &zookeeper.CreateResult{Path: path}
	if req.ReturnStat {
		stat := node.Stat
		res.Stat = &stat
	}
	return res, u, nil
}

func (d *DB) Delete(rec txn.Record, req *zookeeper.DeleteRequest) (*zookeeper.DeleteResult, error) {
	res, _, err := d.delete(rec, req)
	return res, err
}

func (d *DB) delete(rec txn.Record, req *zookeeper.DeleteRequest) (*zookeeper.DeleteResult, undo, error) {
	if req.Path == "/" {
		return nil, nil, fmt.Errorf("%w: cannot delete the root", zookeeper.ErrBadArguments)
	}
	node, err := d.lookup(req.Path)
	if err != nil {
		return nil, nil, err
	}
	if !isValidVersion(req.Version, node.Stat.Version) {
		return nil, nil, fmt.Errorf("%w: %s is at version %d, not %d", zookeeper.ErrBadVersion, req.Path, node.Stat.Version, req.Version)
	}
	if len(node.Children) > 0 {
		return nil, nil, fmt.Errorf("%w: %s", zookeeper.ErrNotEmpty, req.Path)
	}

	parent := node.parent
	u := &deleteUndo{
		node:       node,
		parentStat: parent.Stat,
	}
	// Delete the actual node from the tree.
	parent.unlink(node)
	parent.touchChildren(int64(rec.Zxid), rec.Time)
	d.size--
	return &zookeeper.DeleteResult{}, u, nil
}

func (d *DB) SetData(rec txn.Record, req *zookeeper.SetDataRequest) (*zookeeper.SetDataResult, error) {
	res, _, err := d.setData(rec, req)
	return res, err
}

func (d *DB) setData(rec txn.Record, req *zookeeper.SetDataRequest) (*zookeeper.SetDataResult, undo, error) {
	node, err := d.lookup(req.Path)
	if err != nil {
		return nil, nil, err
	}
	if !isValidVersion(req.Version, node.Stat.Version) {
		return nil, nil, fmt.Errorf("%w: %s is at version %d, not %d", zookeeper.ErrBadVersion, req.Path, node.Stat.Version, req.Version)
	}

	u := &setDataUndo{
		node: node,
		data: node.Data,
		stat: node.Stat,
	}
	node.Data = bytes.Clone(req.Data)
	node.Stat.Version++
	node.Stat.Mzxid = int64(rec.Zxid)
	node.Stat.Mtime = rec.Time
	node.Stat.DataLength = int32(len(req.Data))
	return &zookeeper.SetDataResult{Stat: node.Stat}, u, nil
}

// Check fails unless the node exists at the expected data version. It never changes the tree.
func (d *DB) Check(req *zookeeper.CheckRequest) (*zookeeper.CheckResult, error) {
	node, err := d.lookup(req.Path)
	if err != nil {
		return nil, err
	}
	if !isValidVersion(req.Version, node.Stat.Version) {
		return nil, fmt.Errorf("%w: %s is at version %d, not %d", zookeeper.ErrBadVersion, req.Path, node.Stat.Version, req.Version)
	}
	return &zookeeper.CheckResult{}, nil
}

// SetACL replaces the ACL of a node. The version is compared against the ACL version.
func (d *DB) SetACL(req *zookeeper.SetACLRequest) (*zookeeper.SetACLResult, error) {
	node, err := d.lookup(req.Path)
	if err != nil {
		return nil, err
	}
	if !isValidVersion(req.Version, node.Stat.Aversion) {
		return nil, fmt.Errorf("%w: acl of %s is at version %d, not %d", zookeeper.ErrBadVersion, req.Path, node.Stat.Aversion, req.Version)
	}
	node.ACL = slices.Clone(req.ACL)
	node.Stat.Aversion++
	return &zookeeper.SetACLResult{Stat: node.Stat}, nil
}

func (d *DB) Exists(req *zookeeper.ExistsRequest) (*zookeeper.ExistsResult, error) {
	node, err := d.lookup(req.Path)
	if err != nil {
		return nil, err
	}
	return &zookeeper.ExistsResult{Stat: node.Stat}, nil
}

func (d *DB) GetData(req *zookeeper.GetDataRequest) (*zookeeper.GetDataResult, error) {
	node, err := d.lookup(req.Path)
	if err != nil {
		return nil, err
	}
	return &zookeeper.GetDataResult{
		Data: bytes.Clone(node.Data),
		Stat: node.Stat,
	}, nil
}

func (d *DB) GetChildren(req *zookeeper.GetChildrenRequest) (*zookeeper.GetChildrenResult, error) {
	node, err := d.lookup(req.Path)
	if err != nil {
		return nil, err
	}
	res := &zookeeper.GetChildrenResult{Children: node.ChildNames()}
	if req.WithStat {
		stat := node.Stat
		res.Stat = &stat
	}
	return res, nil
}

func (d *DB) GetACL(req *zookeeper.GetACLRequest) (*zookeeper.GetACLResult, error) {
	node, err := d.lookup(req.Path)
	if err != nil {
		return nil, err
	}
	return &zookeeper.GetACLResult{
		ACL:  slices.Clone(node.ACL),
		Stat: node.Stat,
	}, nil
}

// Sync has nothing to wait for on a single server, it only echoes the path back.
func (d *DB) Sync(req *zookeeper.SyncRequest) (*zookeeper.SyncResult, error) {
	if err := ValidatePath(req.Path, false); err != nil {
		return nil, err
	}
	return &zookeeper.SyncResult{Path: req.Path}, nil
}
