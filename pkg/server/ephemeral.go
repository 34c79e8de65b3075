package server

import (
	"errors"
	"fmt"
	"slices"

	"github.com/mikekulinski/zkstate/pkg/txn"
	"github.com/mikekulinski/zkstate/pkg/znode"
	"github.com/mikekulinski/zkstate/pkg/zookeeper"
)

// EphemeralIndex remembers which session owns which ephemeral node. The two maps always mirror
// each other: a path is in byPath exactly when it is in the set of its owner in bySession.
type EphemeralIndex struct {
	bySession map[int64]map[string]struct{}
	byPath    map[string]int64
}

func NewEphemeralIndex() *EphemeralIndex {
	return &EphemeralIndex{
		bySession: map[int64]map[string]struct{}{},
		byPath:    map[string]int64{},
	}
}

func (x *EphemeralIndex) add(session int64, path string) {
	paths, ok := x.bySession[session]
	if !ok {
		paths = map[string]struct{}{}
		x.bySession[session] = paths
	}
	paths[path] = struct{}{}
	x.byPath[path] = session
}

func (x *EphemeralIndex) remove(path string) {
	session, ok := x.byPath[path]
	if !ok {
		return
	}
	delete(x.byPath, path)
	delete(x.bySession[session], path)
	if len(x.bySession[session]) == 0 {
		delete(x.bySession, session)
	}
}

// Owner returns the session owning the ephemeral node at path.
func (x *EphemeralIndex) Owner(path string) (int64, bool) {
	session, ok := x.byPath[path]
	return session, ok
}

// Paths returns the ephemeral nodes owned by session in lexicographic order.
func (x *EphemeralIndex) Paths(session int64) []string {
	paths := make([]string, 0, len(x.bySession[session]))
	for path := range x.bySession[session] {
		paths = append(paths, path)
	}
	slices.Sort(paths)
	return paths
}

// Sessions returns every session owning at least one ephemeral node, in order.
func (x *EphemeralIndex) Sessions() []int64 {
	sessions := make([]int64, 0, len(x.bySession))
	for session := range x.bySession {
		sessions = append(sessions, session)
	}
	slices.Sort(sessions)
	return sessions
}

func (x *EphemeralIndex) Len() int {
	return len(x.byPath)
}

// Apply brings the index up to date with a dispatched transaction. Closing a session also removes
// the nodes it owns from the tree, all of them under the zxid of the close.
func (x *EphemeralIndex) Apply(db *znode.DB, rec txn.Record, resp zookeeper.Response) error {
	if resp.Err != zookeeper.CodeOK {
		return nil
	}
	if _, ok := rec.Op().(*zookeeper.CloseSessionRequest); ok {
		return x.closeSession(db, rec)
	}
	x.observe(rec.SessionID(), rec.Op(), resp.Result)
	return nil
}

func (x *EphemeralIndex) observe(session int64, op zookeeper.Op, result zookeeper.Result) {
	switch o := op.(type) {
	case *zookeeper.CreateRequest:
		if r, ok := result.(*zookeeper.CreateResult); ok && o.Flags.IsEphemeral() {
			x.add(session, r.Path)
		}
	case *zookeeper.DeleteRequest:
		// Any session may delete an ephemeral node, not only its owner.
		x.remove(o.Path)
	case *zookeeper.MultiRequest:
		r, ok := result.(*zookeeper.MultiResult)
		if !ok || len(r.Results) != len(o.Ops) {
			return
		}
		for i, sub := range o.Ops {
			x.observe(session, sub, r.Results[i])
		}
	}
}

func (x *EphemeralIndex) closeSession(db *znode.DB, rec txn.Record) error {
	session := rec.SessionID()
	for _, path := range x.Paths(session) {
		_, err := db.Delete(rec, &zookeeper.DeleteRequest{Path: path, Version: -1})
		if err != nil && !errors.Is(err, zookeeper.ErrNoNode) {
			return fmt.Errorf("delete ephemeral %s of session 0x%x: %w", path, session, err)
		}
		if err != nil {
			_serverLogger.Warnf("ephemeral %s of session 0x%x was already gone", path, session)
		}
		x.remove(path)
	}
	return nil
}
