package server

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mikekulinski/zkstate/pkg/session"
	"github.com/mikekulinski/zkstate/pkg/zookeeper"
	"github.com/mikekulinski/zkstate/pkg/zxid"
)

const (
	ExecutorActor = "actor"
	ExecutorSync  = "sync"
)

// ServerTaskExecutor is what a transport talks to. Its three surfaces are independent of each other:
// Anonymous serves four-letter commands that need no session, Connect opens and re-attaches
// sessions and Session carries the requests of an established session.
type ServerTaskExecutor struct {
	Anonymous TaskExecutor[zookeeper.FourLetterRequest, zookeeper.FourLetterResponse]
	Connect   TaskExecutor[zookeeper.ConnectRequest, zookeeper.ConnectResponse]
	Session   TaskExecutor[zookeeper.SessionRequest, zookeeper.Response]
}

type ServiceOptions struct {
	// Executor is ExecutorActor or ExecutorSync.
	Executor    string
	MailboxSize int
	// Settings are printed by the conf command.
	Settings map[string]string
}

// Service puts a session table in front of a Server and exposes both through a ServerTaskExecutor.
type Service struct {
	server   *Server
	sessions *session.Table
	settings map[string]string
	executor ServerTaskExecutor
	stops    []func()
}

func NewService(srv *Server, sessions *session.Table, opts ServiceOptions) *Service {
	s := &Service{
		server:   srv,
		sessions: sessions,
		settings: opts.Settings,
	}
	s.executor = ServerTaskExecutor{
		Anonymous: newExecutor(s, opts, s.command),
		Connect:   newExecutor(s, opts, s.connect),
		Session:   newExecutor(s, opts, s.submit),
	}
	return s
}

func newExecutor[I, O any](s *Service, opts ServiceOptions, h Handler[I, O]) TaskExecutor[I, O] {
	if opts.Executor == ExecutorSync {
		return NewProcessorExecutor(h)
	}
	size := opts.MailboxSize
	if size <= 0 {
		size = 1
	}
	actor := NewActor(h, size)
	s.stops = append(s.stops, actor.Stop)
	return actor
}

func (s *Service) Executor() ServerTaskExecutor {
	return s.executor
}

func (s *Service) Server() *Server {
	return s.server
}

func (s *Service) Sessions() *session.Table {
	return s.sessions
}

// Stop stops the executors. Tasks still waiting fail with ErrExecutorStopped.
func (s *Service) Stop() {
	for _, stop := range s.stops {
		stop()
	}
}

// submit is the session surface. Requests of unknown or expired sessions are turned away before
// they are given a zxid.
func (s *Service) submit(req zookeeper.SessionRequest) (zookeeper.Response, error) {
	resp, err := s.server.ProcessSession(req, s.sessions)
	if _, ok := req.Op.(*zookeeper.CloseSessionRequest); ok && resp.Err == zookeeper.CodeOK {
		s.server.metrics.sessions.Set(float64(s.sessions.Len()))
	}
	return resp, err
}

func (s *Service) removeSession(id int64) {
	s.sessions.Remove(id)
	s.server.metrics.sessions.Set(float64(s.sessions.Len()))
}

// ExpireSessions closes every session past its deadline through the server, which removes their
// ephemeral nodes. It returns how many sessions were closed.
func (s *Service) ExpireSessions() int {
	// Expired marks the sessions closing, so the gate refuses them from here on and nothing can
	// create an ephemeral node for them after their close is applied.
	expired := s.sessions.Expired()
	for _, id := range expired {
		resp, err := s.server.Process(zookeeper.SessionRequest{
			SessionID: id,
			Op:        &zookeeper.CloseSessionRequest{},
		})
		if err != nil || resp.Err != zookeeper.CodeOK {
			_serverLogger.Errorf("closing expired session 0x%x failed: code %d, %v", id, resp.Err, err)
		} else {
			_serverLogger.Infof("expired session 0x%x at %s", id, zxid.ZXID(resp.Zxid))
		}
		s.removeSession(id)
	}
	return len(expired)
}

// RunExpiry looks for expired sessions every interval until ctx ends.
func (s *Service) RunExpiry(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("expiry interval must be positive, got %s", interval)
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return ctx.Err()
		case <-ticker.C:
			s.ExpireSessions()
		}
	}
}
