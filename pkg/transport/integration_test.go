package transport

import (
	"context"
	"net"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/mikekulinski/zkstate/pkg/server"
	"github.com/mikekulinski/zkstate/pkg/session"
	"github.com/mikekulinski/zkstate/pkg/zookeeper"
	"github.com/stretchr/testify/suite"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
)

const sessionTimeout = 10 * time.Second

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

type integrationTestSuite struct {
	suite.Suite

	clock    *manualClock
	service  *server.Service
	server   *grpc.Server
	listener *bufconn.Listener
	clients  []*Client
}

func (i *integrationTestSuite) SetupTest() {
	i.clock = &manualClock{now: time.UnixMilli(1_700_000_000_000)}
	zk := server.NewServer(server.Options{Clock: i.clock})
	sessions := session.NewTable(session.Config{
		ServerID:   1,
		MinTimeout: time.Second,
		MaxTimeout: time.Minute,
	}, i.clock)
	i.service = server.NewService(zk, sessions, server.ServiceOptions{
		Executor:    server.ExecutorActor,
		MailboxSize: 64,
	})

	i.listener = bufconn.Listen(1 << 20)
	i.server = NewGRPCServer(i.service.Executor(), i.service.Sessions())
	go func() {
		// Serve only returns once the server is stopped.
		_ = i.server.Serve(i.listener)
	}()
}

func (i *integrationTestSuite) TearDownTest() {
	for _, c := range i.clients {
		_ = c.conn.Close()
	}
	i.clients = nil
	i.server.GracefulStop()
	i.service.Stop()
}

func (i *integrationTestSuite) dial() *Client {
	c, err := Dial("bufnet", grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
		return i.listener.DialContext(ctx)
	}))
	i.Require().NoError(err)
	i.clients = append(i.clients, c)
	return c
}

func (i *integrationTestSuite) connect() *Client {
	c := i.dial()
	i.Require().NoError(c.Connect(context.Background(), sessionTimeout))
	i.Require().NotZero(c.SessionID())
	return c
}

func (i *integrationTestSuite) TestCreateThenGetData() {
	ctx := context.Background()
	client := i.connect()

	name, err := client.Create(ctx, "/zoo", []byte("Secrets hahahahaha!!"), zookeeper.ModePersistent)
	i.Require().NoError(err)
	i.Equal("/zoo", name)
	name, err = client.Create(ctx, "/zoo/giraffe", []byte("More secrets"), zookeeper.ModePersistent)
	i.Require().NoError(err)
	i.Equal("/zoo/giraffe", name)

	data, stat, err := client.GetData(ctx, "/zoo")
	i.Require().NoError(err)
	i.Equal([]byte("Secrets hahahahaha!!"), data)
	i.Equal(int32(0), stat.Version)
	i.Equal(int32(1), stat.NumChildren)

	data, _, err = client.GetData(ctx, "/zoo/giraffe")
	i.Require().NoError(err)
	i.Equal([]byte("More secrets"), data)

	children, err := client.GetChildren(ctx, "/zoo")
	i.Require().NoError(err)
	i.Equal([]string{"giraffe"}, children)

	i.Equal(int64(5), client.LastZxid())
}

func (i *integrationTestSuite) TestSetDataAndVersions() {
	ctx := context.Background()
	client := i.connect()

	_, err := client.Create(ctx, "/zoo", nil, zookeeper.ModePersistent)
	i.Require().NoError(err)
	stat, err := client.SetData(ctx, "/zoo", []byte("v1"), 0)
	i.Require().NoError(err)
	i.Equal(int32(1), stat.Version)

	_, err = client.SetData(ctx, "/zoo", []byte("v2"), 0)
	i.ErrorIs(err, zookeeper.ErrBadVersion)
	i.ErrorIs(client.Delete(ctx, "/zoo", 0), zookeeper.ErrBadVersion)
	i.NoError(client.Delete(ctx, "/zoo", 1))

	_, err = client.Exists(ctx, "/zoo")
	i.ErrorIs(err, zookeeper.ErrNoNode)
	i.NoError(client.Sync(ctx, "/"))
	i.NoError(client.Ping(ctx))
}

func (i *integrationTestSuite) TestSequentialNames() {
	ctx := context.Background()
	client := i.connect()

	_, err := client.Create(ctx, "/queue", nil, zookeeper.ModePersistent)
	i.Require().NoError(err)
	for _, expected := range []string{"/queue/item-0000000000", "/queue/item-0000000001"} {
		name, err := client.Create(ctx, "/queue/item-", nil, zookeeper.ModePersistentSequential)
		i.Require().NoError(err)
		i.Equal(expected, name)
	}
}

func (i *integrationTestSuite) TestFailedMulti() {
	ctx := context.Background()
	client := i.connect()

	results, err := client.Multi(ctx,
		&zookeeper.CreateRequest{Path: "/a"},
		&zookeeper.DeleteRequest{Path: "/missing", Version: -1},
		&zookeeper.CreateRequest{Path: "/b"},
	)
	i.ErrorIs(err, zookeeper.ErrNoNode)
	i.Equal([]zookeeper.Result{
		&zookeeper.ErrorResult{Err: zookeeper.CodeOK},
		&zookeeper.ErrorResult{Err: zookeeper.CodeNoNode},
		&zookeeper.ErrorResult{Err: zookeeper.CodeRuntimeInconsistency},
	}, results)

	_, err = client.Exists(ctx, "/a")
	i.ErrorIs(err, zookeeper.ErrNoNode)
}

func (i *integrationTestSuite) TestProtocolViolation() {
	client := i.connect()

	_, err := client.Multi(context.Background(), &zookeeper.CloseSessionRequest{})
	i.ErrorIs(err, zookeeper.ErrSystemError)
}

func (i *integrationTestSuite) TestEphemeral_SessionDeletesNode() {
	ctx := context.Background()
	owner := i.connect()
	watcher := i.connect()

	_, err := owner.Create(ctx, "/zoo", []byte("here"), zookeeper.ModeEphemeral)
	i.Require().NoError(err)
	stat, err := watcher.Exists(ctx, "/zoo")
	i.Require().NoError(err)
	i.Equal(owner.SessionID(), stat.EphemeralOwner)

	i.Require().NoError(owner.Close(ctx))

	_, err = watcher.Exists(ctx, "/zoo")
	i.ErrorIs(err, zookeeper.ErrNoNode)
	i.Empty(i.service.Server().Ephemerals())
}

func (i *integrationTestSuite) TestEphemeral_NodeManuallyDeleted() {
	ctx := context.Background()
	owner := i.connect()
	other := i.connect()

	_, err := owner.Create(ctx, "/zoo", nil, zookeeper.ModePersistent)
	i.Require().NoError(err)
	_, err = owner.Create(ctx, "/zoo/giraffe", nil, zookeeper.ModeEphemeral)
	i.Require().NoError(err)

	i.Require().NoError(other.Delete(ctx, "/zoo/giraffe", -1))
	i.Empty(i.service.Server().Ephemerals())

	// Closing the owner has nothing left to delete.
	i.Require().NoError(owner.Close(ctx))
	children, err := other.GetChildren(ctx, "/zoo")
	i.Require().NoError(err)
	i.Empty(children)
}

func (i *integrationTestSuite) TestExpiredSession() {
	ctx := context.Background()
	client := i.connect()
	_, err := client.Create(ctx, "/zoo", nil, zookeeper.ModeEphemeral)
	i.Require().NoError(err)

	i.clock.Advance(2 * sessionTimeout)
	i.Equal(1, i.service.ExpireSessions())

	_, err = client.Exists(ctx, "/zoo")
	i.ErrorIs(err, zookeeper.ErrSessionExpired)
	i.ErrorIs(client.Connect(ctx, sessionTimeout), zookeeper.ErrSessionExpired)
	i.Zero(client.SessionID())

	// A new session sees the ephemeral node gone.
	i.Require().NoError(client.Connect(ctx, sessionTimeout))
	_, err = client.Exists(ctx, "/zoo")
	i.ErrorIs(err, zookeeper.ErrNoNode)
}

func (i *integrationTestSuite) TestReattach() {
	ctx := context.Background()
	client := i.connect()
	id := client.SessionID()

	i.Require().NoError(client.Connect(ctx, sessionTimeout))
	i.Equal(id, client.SessionID())
	i.Equal(sessionTimeout, client.Timeout())
}

func (i *integrationTestSuite) TestCommand() {
	client := i.dial()

	text, err := client.Command(context.Background(), "ruok")
	i.Require().NoError(err)
	i.Equal("imok", text)

	_, err = client.Command(context.Background(), "kill")
	i.Equal(codes.InvalidArgument, status.Code(err))
}

func (i *integrationTestSuite) TestNoSession() {
	client := i.dial()

	_, err := client.Exists(context.Background(), "/")
	i.ErrorIs(err, ErrNoSession)

	// Without the header the server cannot tell which session a request belongs to.
	req := &SubmitRequest{Xid: 1, Op: zookeeper.OpEnvelope{Ping: &zookeeper.PingRequest{}}}
	err = client.conn.Invoke(context.Background(), "/"+ServiceName+"/Submit", req, &zookeeper.ResponseEnvelope{})
	i.Equal(codes.Unauthenticated, status.Code(err))
}

func (i *integrationTestSuite) TestWrongPassword() {
	ctx := context.Background()
	owner := i.connect()
	_, err := owner.Create(ctx, "/lock", nil, zookeeper.ModeEphemeral)
	i.Require().NoError(err)

	// Another client that only knows the session id cannot act for the session.
	intruder := i.dial()
	intruder.sessionID = owner.SessionID()
	intruder.passwd = []byte("0123456789abcdef")
	i.Equal(codes.Unauthenticated, status.Code(intruder.Delete(ctx, "/lock", -1)))
	_, err = intruder.Do(ctx, &zookeeper.CloseSessionRequest{})
	i.Equal(codes.Unauthenticated, status.Code(err))

	// Nor one that sends the id without any password.
	idOnly := metadata.AppendToOutgoingContext(ctx, SessionIDHeader, strconv.FormatInt(owner.SessionID(), 16))
	req := &SubmitRequest{Xid: 1, Op: zookeeper.OpEnvelope{CloseSession: &zookeeper.CloseSessionRequest{}}}
	err = i.dial().conn.Invoke(idOnly, "/"+ServiceName+"/Submit", req, &zookeeper.ResponseEnvelope{})
	i.Equal(codes.Unauthenticated, status.Code(err))

	_, ok := i.service.Sessions().Get(owner.SessionID())
	i.True(ok)
	stat, err := owner.Exists(ctx, "/lock")
	i.Require().NoError(err)
	i.Equal(owner.SessionID(), stat.EphemeralOwner)
}

func (i *integrationTestSuite) TestConnectAheadOfServer() {
	client := i.dial()
	client.lastZxid.Store(100)

	err := client.Connect(context.Background(), sessionTimeout)
	i.Equal(codes.OutOfRange, status.Code(err))
}

func TestIntegrationTestSuite(t *testing.T) {
	suite.Run(t, new(integrationTestSuite))
}
