package server

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mikekulinski/zkstate/pkg/session"
	"github.com/mikekulinski/zkstate/pkg/zookeeper"
	"github.com/mikekulinski/zkstate/pkg/zxid"
	"github.com/stretchr/testify/suite"
)

type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type ServiceTestSuite struct {
	suite.Suite
	executorKind string

	clock   *manualClock
	service *Service
	exec    ServerTaskExecutor
}

func TestServiceActor(t *testing.T) {
	suite.Run(t, &ServiceTestSuite{executorKind: ExecutorActor})
}

func TestServiceSync(t *testing.T) {
	suite.Run(t, &ServiceTestSuite{executorKind: ExecutorSync})
}

func (s *ServiceTestSuite) SetupTest() {
	s.clock = &manualClock{now: testNow}
	srv := NewServer(Options{Clock: s.clock})
	sessions := session.NewTable(session.Config{
		ServerID:   1,
		MinTimeout: 2 * time.Second,
		MaxTimeout: 10 * time.Second,
	}, s.clock)
	s.service = NewService(srv, sessions, ServiceOptions{
		Executor:    s.executorKind,
		MailboxSize: 16,
		Settings:    map[string]string{"tickTime": "2000", "clientPort": "2181"},
	})
	s.exec = s.service.Executor()
}

func (s *ServiceTestSuite) TearDownTest() {
	s.service.Stop()
}

func (s *ServiceTestSuite) connect(timeout int32) zookeeper.ConnectResponse {
	resp, err := s.exec.Connect.Submit(zookeeper.ConnectRequest{TimeoutMs: timeout}).Get(context.Background())
	s.Require().NoError(err)
	s.Require().NotZero(resp.SessionID)
	return resp
}

func (s *ServiceTestSuite) submit(id int64, op zookeeper.Op) (zookeeper.Response, error) {
	return s.exec.Session.Submit(zookeeper.SessionRequest{SessionID: id, Xid: 1, Op: op}).Get(context.Background())
}

func (s *ServiceTestSuite) TestConnect_NewSession() {
	resp := s.connect(60_000)
	s.Equal(int32(10_000), resp.TimeoutMs)
	s.Len(resp.Passwd, 16)
	s.Equal(1, s.service.Sessions().Len())
}

func (s *ServiceTestSuite) TestConnect_Reattach() {
	first := s.connect(5_000)

	again, err := s.exec.Connect.Submit(zookeeper.ConnectRequest{
		SessionID: first.SessionID,
		Passwd:    first.Passwd,
	}).Get(context.Background())
	s.Require().NoError(err)
	s.Equal(first.SessionID, again.SessionID)
	s.Equal(first.TimeoutMs, again.TimeoutMs)

	refused, err := s.exec.Connect.Submit(zookeeper.ConnectRequest{
		SessionID: first.SessionID,
		Passwd:    []byte("not the password"),
	}).Get(context.Background())
	s.Require().NoError(err)
	s.Zero(refused.SessionID)
	s.Zero(refused.TimeoutMs)
}

func (s *ServiceTestSuite) TestConnect_ZxidAhead() {
	_, err := s.exec.Connect.Submit(zookeeper.ConnectRequest{LastZxidSeen: 10}).Get(context.Background())
	s.ErrorIs(err, ErrZxidAhead)
	s.Zero(s.service.Sessions().Len())
}

func (s *ServiceTestSuite) TestSession_UnknownSessionGetsNoZxid() {
	resp, err := s.submit(12345, &zookeeper.CreateRequest{Path: "/a"})
	s.ErrorIs(err, zookeeper.ErrSessionExpired)
	s.Equal(zookeeper.CodeSessionExpired, resp.Err)
	s.Equal(zxid.Zero, s.service.Server().LastZxid())
}

func (s *ServiceTestSuite) TestSession_CloseRemovesSession() {
	sess := s.connect(5_000)
	resp, err := s.submit(sess.SessionID, &zookeeper.CreateRequest{Path: "/e", Flags: zookeeper.ModeEphemeral})
	s.Require().NoError(err)
	s.Require().Equal(zookeeper.CodeOK, resp.Err)

	resp, err = s.submit(sess.SessionID, &zookeeper.CloseSessionRequest{})
	s.Require().NoError(err)
	s.Equal(zookeeper.CodeOK, resp.Err)
	s.Empty(s.service.Server().Ephemerals())
	s.Zero(s.service.Sessions().Len())

	_, err = s.submit(sess.SessionID, &zookeeper.PingRequest{})
	s.ErrorIs(err, zookeeper.ErrSessionExpired)
}

func (s *ServiceTestSuite) TestSession_CloseRacesEphemeralCreates() {
	const (
		rounds  = 20
		workers = 4
		creates = 100
	)
	for round := 0; round < rounds; round++ {
		id := s.connect(5_000).SessionID

		var wg sync.WaitGroup
		for w := 0; w < workers; w++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := 0; i < creates; i++ {
					if _, err := s.submit(id, &zookeeper.CreateRequest{Path: "/e-", Flags: zookeeper.ModeEphemeralSequential}); err != nil {
						return
					}
				}
			}()
		}
		resp, err := s.submit(id, &zookeeper.CloseSessionRequest{})
		s.Require().NoError(err)
		s.Require().Equal(zookeeper.CodeOK, resp.Err)
		wg.Wait()

		_, ok := s.service.Sessions().Get(id)
		s.Require().False(ok, "round %d", round)
		s.Require().Empty(s.service.Server().Ephemerals()[id], "round %d: session 0x%x is closed", round, id)
	}
	s.Empty(s.service.Server().Ephemerals())
	// Every node created was ephemeral, so only the root is left.
	s.Equal(1, s.service.Server().Stats().NodeCount)
}

func (s *ServiceTestSuite) TestSession_ProtocolViolationFailsTheFuture() {
	sess := s.connect(5_000)
	resp, err := s.submit(sess.SessionID, &zookeeper.MultiRequest{Ops: []zookeeper.Op{&zookeeper.CloseSessionRequest{}}})
	s.ErrorIs(err, zookeeper.ErrProtocolViolation)
	s.Equal(zookeeper.CodeSystemError, resp.Err)
	// The session survives a violation.
	s.Equal(1, s.service.Sessions().Len())
}

func (s *ServiceTestSuite) TestExpireSessions() {
	short := s.connect(2_000)
	long := s.connect(10_000)
	for _, id := range []int64{short.SessionID, long.SessionID} {
		resp, err := s.submit(id, &zookeeper.CreateRequest{Path: "/e-", Flags: zookeeper.ModeEphemeralSequential})
		s.Require().NoError(err)
		s.Require().Equal(zookeeper.CodeOK, resp.Err)
	}

	s.clock.Advance(3 * time.Second)
	s.Equal(1, s.service.ExpireSessions())
	s.Equal(map[int64][]string{long.SessionID: {"/e-0000000001"}}, s.service.Server().Ephemerals())
	s.Equal(1, s.service.Sessions().Len())

	_, err := s.submit(short.SessionID, &zookeeper.PingRequest{})
	s.ErrorIs(err, zookeeper.ErrSessionExpired)
	s.Zero(s.service.ExpireSessions())
}

func (s *ServiceTestSuite) TestRunExpiry() {
	s.Error(s.service.RunExpiry(context.Background(), 0))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s.NoError(s.service.RunExpiry(ctx, time.Millisecond))

	ctx, cancel = context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()
	s.ErrorIs(s.service.RunExpiry(ctx, time.Millisecond), context.DeadlineExceeded)
}

func (s *ServiceTestSuite) TestCommands() {
	sess := s.connect(5_000)
	_, err := s.submit(sess.SessionID, &zookeeper.CreateRequest{Path: "/eph", Flags: zookeeper.ModeEphemeral})
	s.Require().NoError(err)

	tests := []struct {
		word     string
		contains []string
	}{
		{
			word:     "ruok",
			contains: []string{"imok"},
		},
		{
			word:     "srvr",
			contains: []string{"Zxid: 0x1", "Node count: 2", "Mode: standalone"},
		},
		{
			word:     "dump",
			contains: []string{"Sessions with Ephemerals (1)", "\t/eph\n"},
		},
		{
			word:     "conf",
			contains: []string{"clientPort=2181\ntickTime=2000\n"},
		},
		{
			word:     "envi",
			contains: []string{"go.version=", "os.name="},
		},
	}
	for _, test := range tests {
		s.Run(test.word, func() {
			resp, err := s.exec.Anonymous.Submit(zookeeper.FourLetterRequest{Word: test.word}).Get(context.Background())
			s.Require().NoError(err)
			for _, c := range test.contains {
				s.True(strings.Contains(resp.Text, c), "%q does not contain %q", resp.Text, c)
			}
		})
	}

	_, err = s.exec.Anonymous.Submit(zookeeper.FourLetterRequest{Word: "kill"}).Get(context.Background())
	s.ErrorIs(err, ErrUnknownCommand)
}
