package znode

import (
	"fmt"

	"github.com/mikekulinski/zkstate/pkg/txn"
	"github.com/mikekulinski/zkstate/pkg/zookeeper"
)

// undo restores the tree to the state it was in before one sub-operation of a multi was applied.
type undo interface {
	revert(d *DB)
}

type createUndo struct {
	path           string
	parentStat     zookeeper.Stat
	parentSequence uint32
}

func (u *createUndo) revert(d *DB) {
	node := d.Get(u.path)
	parent := node.parent
	parent.unlink(node)
	parent.Stat = u.parentStat
	parent.Sequence = u.parentSequence
	d.size--
}

type deleteUndo struct {
	node       *ZNode
	parentStat zookeeper.Stat
}

func (u *deleteUndo) revert(d *DB) {
	parent := u.node.parent
	parent.link(u.node)
	parent.Stat = u.parentStat
	d.size++
}

type setDataUndo struct {
	node *ZNode
	data []byte
	stat zookeeper.Stat
}

func (u *setDataUndo) revert(*DB) {
	u.node.Data = u.data
	u.node.Stat = u.stat
}

// Multi applies the sub-operations of req in order, all of them under the zxid of rec. Either
// every sub-operation takes effect or none does.
//
// When a sub-operation fails, the ones applied before it are rolled back and Multi returns both a
// result and the error of the failing sub-operation. The result holds an ErrorResult per
// sub-operation: CodeOK for the ones before the failure, the failing code for the failure itself
// and CodeRuntimeInconsistency for the ones that were never attempted.
//
// Only create, delete, setData and check may appear in a multi. Anything else is reported as a
// zookeeper.ErrProtocolViolation before the tree is touched.
func (d *DB) Multi(rec txn.Record, req *zookeeper.MultiRequest) (*zookeeper.MultiResult, error) {
	for i, op := range req.Ops {
		switch op.(type) {
		case *zookeeper.CreateRequest, *zookeeper.DeleteRequest, *zookeeper.SetDataRequest, *zookeeper.CheckRequest:
		default:
			return nil, fmt.Errorf("%w: %s at index %d of a multi", zookeeper.ErrProtocolViolation, opName(op), i)
		}
	}

	undos := make([]undo, 0, len(req.Ops))
	committed := false
	// Roll back on failure and also when a sub-operation panics, so the tree is never left half applied.
	defer func() {
		if !committed {
			for i := len(undos) - 1; i >= 0; i-- {
				undos[i].revert(d)
			}
		}
	}()

	results := make([]zookeeper.Result, 0, len(req.Ops))
	for i, op := range req.Ops {
		r, u, err := d.applySubOp(rec, op)
		if err != nil {
			return failedMulti(len(req.Ops), i, err), err
		}
		if u != nil {
			undos = append(undos, u)
		}
		results = append(results, r)
	}
	committed = true
	return &zookeeper.MultiResult{Results: results}, nil
}

func (d *DB) applySubOp(rec txn.Record, op zookeeper.Op) (zookeeper.Result, undo, error) {
	switch o := op.(type) {
	case *zookeeper.CreateRequest:
		return d.create(rec, o)
	case *zookeeper.DeleteRequest:
		return d.delete(rec, o)
	case *zookeeper.SetDataRequest:
		return d.setData(rec, o)
	case *zookeeper.CheckRequest:
		res, err := d.Check(o)
		return res, nil, err
	default:
		return nil, nil, fmt.Errorf("%w: %s inside a multi", zookeeper.ErrProtocolViolation, opName(op))
	}
}

func failedMulti(n, failed int, err error) *zookeeper.MultiResult {
	results := make([]zookeeper.Result, n)
	for i := range results {
		code := zookeeper.CodeOK
		switch {
		case i == failed:
			code = zookeeper.CodeOf(err)
		case i > failed:
			code = zookeeper.CodeRuntimeInconsistency
		}
		results[i] = &zookeeper.ErrorResult{Err: code}
	}
	return &zookeeper.MultiResult{Results: results}
}

func opName(op zookeeper.Op) string {
	if op == nil {
		return "<nil>"
	}
	return op.OpCode().String()
}
