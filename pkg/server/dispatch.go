package server

import (
	"errors"
	"fmt"
	"runtime/debug"

	"github.com/mikekulinski/zkstate/pkg/txn"
	"github.com/mikekulinski/zkstate/pkg/zookeeper"
)

// dispatch runs the operator for the request held by rec and turns its outcome into a response.
// A panic in an operator becomes a system error response, and the server carries on with the next
// request. The returned error is only set for a protocol violation.
func (s *Server) dispatch(rec txn.Record) (resp zookeeper.Response, fault error) {
	resp = zookeeper.Response{
		Xid:  rec.Request.Xid,
		Zxid: int64(rec.Zxid),
	}
	defer func() {
		if r := recover(); r != nil {
			_serverLogger.Errorf("recovered from panic while applying %s (%s): %v\n%s", rec.Zxid, opName(rec.Op()), r, debug.Stack())
			s.metrics.recoveredPanics.Inc()
			resp = errorResponse(rec.Request.Xid, int64(rec.Zxid), zookeeper.CodeSystemError)
			fault = nil
		}
	}()

	result, err := s.operate(rec)
	switch {
	case err == nil:
		resp.Result = result
	case errors.Is(err, zookeeper.ErrProtocolViolation):
		_serverLogger.Errorf("session 0x%x xid %d at %s: %s", rec.SessionID(), rec.Request.Xid, rec.Zxid, err)
		s.metrics.protocolViolations.Inc()
		resp = errorResponse(rec.Request.Xid, int64(rec.Zxid), zookeeper.CodeSystemError)
		fault = err
	default:
		resp.Err = zookeeper.CodeOf(err)
		if result != nil {
			// A failed multi still reports the outcome of each sub-operation.
			resp.Result = result
		} else {
			resp.Result = &zookeeper.ErrorResult{Err: resp.Err}
		}
		_serverLogger.Debugf("session 0x%x xid %d at %s failed: %s", rec.SessionID(), rec.Request.Xid, rec.Zxid, err)
	}
	return resp, fault
}

// operate is the table of operators, one per kind of request. The switch covers every
// implementation of zookeeper.Op.
func (s *Server) operate(rec txn.Record) (zookeeper.Result, error) {
	switch op := rec.Op().(type) {
	case *zookeeper.CreateRequest:
		return result(s.db.Create(rec, op))
	case *zookeeper.DeleteRequest:
		return result(s.db.Delete(rec, op))
	case *zookeeper.SetDataRequest:
		return result(s.db.SetData(rec, op))
	case *zookeeper.CheckRequest:
		return result(s.db.Check(op))
	case *zookeeper.SetACLRequest:
		return result(s.db.SetACL(op))
	case *zookeeper.ExistsRequest:
		return result(s.db.Exists(op))
	case *zookeeper.GetDataRequest:
		return result(s.db.GetData(op))
	case *zookeeper.GetChildrenRequest:
		return result(s.db.GetChildren(op))
	case *zookeeper.GetACLRequest:
		return result(s.db.GetACL(op))
	case *zookeeper.SyncRequest:
		return result(s.db.Sync(op))
	case *zookeeper.MultiRequest:
		res, err := s.db.Multi(rec, op)
		if res == nil {
			return nil, err
		}
		return res, err
	case *zookeeper.PingRequest:
		return &zookeeper.PingResult{}, nil
	case *zookeeper.CloseSessionRequest:
		// The ephemeral nodes of the session are removed by the ephemeral stage.
		return &zookeeper.CloseSessionResult{}, nil
	case nil:
		return nil, fmt.Errorf("%w: request without an operation", zookeeper.ErrProtocolViolation)
	default:
		// Only reachable if a new Op is added without an operator.
		return nil, fmt.Errorf("%w: no operator for %T (%s)", zookeeper.ErrProtocolViolation, op, op.OpCode())
	}
}

// result drops the typed nil an operator returns together with an error, so it does not end up
// as a non-nil zookeeper.Result.
func result[R zookeeper.Result](r R, err error) (zookeeper.Result, error) {
	if err != nil {
		return nil, err
	}
	return r, nil
}
