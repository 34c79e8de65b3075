package server

import (
	"errors"
	"fmt"
	"time"

	"github.com/mikekulinski/zkstate/pkg/zookeeper"
	"github.com/mikekulinski/zkstate/pkg/zxid"
)

// ErrZxidAhead means a client has seen a zxid this server never handed out, so it was connected to
// a server with more recent state.
var ErrZxidAhead = errors.New("server: client has seen a zxid ahead of the server")

// connect is the connect surface. A zero session id asks for a new session, anything else asks to
// re-attach. A re-attach to a session that is gone, or with the wrong password, is answered with a
// zero session id and timeout, which tells the client its session expired.
func (s *Service) connect(req zookeeper.ConnectRequest) (zookeeper.ConnectResponse, error) {
	if last := s.server.LastZxid(); zxid.ZXID(req.LastZxidSeen) > last {
		return zookeeper.ConnectResponse{}, fmt.Errorf("%w: client has seen %s, server is at %s", ErrZxidAhead, zxid.ZXID(req.LastZxidSeen), last)
	}

	if req.SessionID == 0 {
		sess := s.sessions.Create(time.Duration(req.TimeoutMs) * time.Millisecond)
		s.server.metrics.sessions.Set(float64(s.sessions.Len()))
		_serverLogger.Infof("established session 0x%x with timeout %s", sess.ID, sess.Timeout)
		return zookeeper.ConnectResponse{
			TimeoutMs: int32(sess.Timeout.Milliseconds()),
			SessionID: sess.ID,
			Passwd:    sess.Passwd,
		}, nil
	}

	sess, err := s.sessions.Reattach(req.SessionID, req.Passwd)
	if err != nil {
		_serverLogger.Infof("refusing to re-attach session 0x%x: %s", req.SessionID, err)
		return zookeeper.ConnectResponse{Passwd: make([]byte, 16)}, nil
	}
	return zookeeper.ConnectResponse{
		TimeoutMs: int32(sess.Timeout.Milliseconds()),
		SessionID: sess.ID,
		Passwd:    sess.Passwd,
	}, nil
}
