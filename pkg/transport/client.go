package transport

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mikekulinski/zkstate/pkg/zookeeper"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
)

// ErrNoSession is returned by session calls made before Connect succeeded.
var ErrNoSession = errors.New("transport: not connected")

type Client struct {
	conn *grpc.ClientConn

	mu        *sync.Mutex
	sessionID int64
	passwd    []byte
	timeout   time.Duration

	xid      atomic.Int32
	lastZxid atomic.Int64
}

var _ zookeeper.Zookeeper = (*Client)(nil)

// Dial opens a connection to target. The session is not established until Connect is called.
func Dial(target string, opts ...grpc.DialOption) (*Client, error) {
	c := &Client{mu: &sync.Mutex{}}
	opts = append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.ForceCodec(Codec{})),
		grpc.WithChainUnaryInterceptor(sessionUnaryInterceptor(c.credentials)),
	}, opts...)
	conn, err := grpc.Dial(target, opts...)
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", target, err)
	}
	c.conn = conn
	return c, nil
}

// sessionUnaryInterceptor returns a gRPC unary interceptor that adds the session id and password to
// outgoing calls once there is a session.
func sessionUnaryInterceptor(credentials func() (int64, []byte)) grpc.UnaryClientInterceptor {
	return func(ctx context.Context, method string, req, reply interface{}, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		if id, passwd := credentials(); id != 0 {
			ctx = setSessionHeaders(ctx, id, passwd)
		}
		return invoker(ctx, method, req, reply, cc, opts...)
	}
}

func (c *Client) credentials() (int64, []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID, c.passwd
}

func (c *Client) SessionID() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

// Timeout is the session timeout negotiated by the server.
func (c *Client) Timeout() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.timeout
}

// Connect establishes a session, or re-attaches to the one the client already holds.
func (c *Client) Connect(ctx context.Context, timeout time.Duration) error {
	c.mu.Lock()
	req := &zookeeper.ConnectRequest{
		LastZxidSeen: c.lastZxid.Load(),
		TimeoutMs:    int32(timeout.Milliseconds()),
		SessionID:    c.sessionID,
		Passwd:       c.passwd,
	}
	c.mu.Unlock()

	resp := &zookeeper.ConnectResponse{}
	if err := c.conn.Invoke(ctx, "/"+ServiceName+"/Connect", req, resp); err != nil {
		return fromStatus(err)
	}
	if resp.SessionID == 0 {
		c.reset()
		return fmt.Errorf("%w: session 0x%x", zookeeper.ErrSessionExpired, req.SessionID)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.sessionID = resp.SessionID
	c.passwd = resp.Passwd
	c.timeout = time.Duration(resp.TimeoutMs) * time.Millisecond
	return nil
}

func (c *Client) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sessionID = 0
	c.passwd = nil
	c.timeout = 0
}

// Command sends a four-letter word and returns the server's answer.
func (c *Client) Command(ctx context.Context, word string) (string, error) {
	resp := &zookeeper.FourLetterResponse{}
	if err := c.conn.Invoke(ctx, "/"+ServiceName+"/Command", &zookeeper.FourLetterRequest{Word: word}, resp); err != nil {
		return "", fromStatus(err)
	}
	return resp.Text, nil
}

// Do sends op for the current session. The error is nil exactly when the response code is OK.
func (c *Client) Do(ctx context.Context, op zookeeper.Op) (zookeeper.Response, error) {
	if c.SessionID() == 0 {
		return zookeeper.Response{}, ErrNoSession
	}
	wrapped, err := zookeeper.WrapOp(op)
	if err != nil {
		return zookeeper.Response{}, err
	}
	req := &SubmitRequest{Xid: c.xid.Add(1), Op: wrapped}

	envelope := &zookeeper.ResponseEnvelope{}
	if err := c.conn.Invoke(ctx, "/"+ServiceName+"/Submit", req, envelope); err != nil {
		return zookeeper.Response{}, fromStatus(err)
	}
	resp, err := envelope.Response()
	if err != nil {
		return zookeeper.Response{}, err
	}
	c.lastZxid.Store(resp.Zxid)
	return resp, resp.Err.Err()
}

// LastZxid is the zxid of the last response the client received.
func (c *Client) LastZxid() int64 {
	return c.lastZxid.Load()
}

func (c *Client) Create(ctx context.Context, path string, data []byte, mode zookeeper.CreateMode) (string, error) {
	resp, err := c.Do(ctx, &zookeeper.CreateRequest{
		Path:  path,
		Data:  data,
		ACL:   zookeeper.WorldACL(zookeeper.PermAll),
		Flags: mode,
	})
	if err != nil {
		return "", err
	}
	return resp.Result.(*zookeeper.CreateResult).Path, nil
}

func (c *Client) Delete(ctx context.Context, path string, version int32) error {
	_, err := c.Do(ctx, &zookeeper.DeleteRequest{Path: path, Version: version})
	return err
}

func (c *Client) Exists(ctx context.Context, path string) (zookeeper.Stat, error) {
	resp, err := c.Do(ctx, &zookeeper.ExistsRequest{Path: path})
	if err != nil {
		return zookeeper.Stat{}, err
	}
	return resp.Result.(*zookeeper.ExistsResult).Stat, nil
}

func (c *Client) GetData(ctx context.Context, path string) ([]byte, zookeeper.Stat, error) {
	resp, err := c.Do(ctx, &zookeeper.GetDataRequest{Path: path})
	if err != nil {
		return nil, zookeeper.Stat{}, err
	}
	result := resp.Result.(*zookeeper.GetDataResult)
	return result.Data, result.Stat, nil
}

func (c *Client) SetData(ctx context.Context, path string, data []byte, version int32) (zookeeper.Stat, error) {
	resp, err := c.Do(ctx, &zookeeper.SetDataRequest{Path: path, Data: data, Version: version})
	if err != nil {
		return zookeeper.Stat{}, err
	}
	return resp.Result.(*zookeeper.SetDataResult).Stat, nil
}

func (c *Client) GetChildren(ctx context.Context, path string) ([]string, error) {
	resp, err := c.Do(ctx, &zookeeper.GetChildrenRequest{Path: path})
	if err != nil {
		return nil, err
	}
	return resp.Result.(*zookeeper.GetChildrenResult).Children, nil
}

func (c *Client) Sync(ctx context.Context, path string) error {
	_, err := c.Do(ctx, &zookeeper.SyncRequest{Path: path})
	return err
}

func (c *Client) Multi(ctx context.Context, ops ...zookeeper.Op) ([]zookeeper.Result, error) {
	resp, err := c.Do(ctx, &zookeeper.MultiRequest{Ops: ops})
	if multi, ok := resp.Result.(*zookeeper.MultiResult); ok {
		return multi.Results, err
	}
	return nil, err
}

// Ping keeps the session alive.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.Do(ctx, &zookeeper.PingRequest{})
	return err
}

// Close ends the session, if there is one, and closes the connection.
func (c *Client) Close(ctx context.Context) error {
	var closeErr error
	if c.SessionID() != 0 {
		_, closeErr = c.Do(ctx, &zookeeper.CloseSessionRequest{})
		c.reset()
	}
	return errors.Join(closeErr, c.conn.Close())
}

// fromStatus turns the statuses the server produces for session problems back into sentinel errors.
func fromStatus(err error) error {
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	switch st.Code() {
	case codes.FailedPrecondition:
		return fmt.Errorf("%w: %s", zookeeper.ErrSessionExpired, st.Message())
	case codes.Internal:
		return fmt.Errorf("%w: %s", zookeeper.ErrSystemError, st.Message())
	}
	return err
}
