package transport

import (
	"context"
	"errors"
	"time"

	"github.com/mikekulinski/zkstate/pkg/logging"
	"github.com/mikekulinski/zkstate/pkg/server"
	"github.com/mikekulinski/zkstate/pkg/session"
	"github.com/mikekulinski/zkstate/pkg/zookeeper"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var _transportLogger = logging.NewLogger("transport")

// Authenticator checks the password a call presents for its session. *session.Table implements it.
type Authenticator interface {
	Authenticate(id int64, passwd []byte) error
}

// Server serves the Coordinator service on top of a ServerTaskExecutor.
type Server struct {
	executor server.ServerTaskExecutor
	auth     Authenticator
}

var _ CoordinatorServer = (*Server)(nil)

var _ Authenticator = (*session.Table)(nil)

func NewServer(executor server.ServerTaskExecutor, auth Authenticator) *Server {
	return &Server{executor: executor, auth: auth}
}

// NewGRPCServer returns a grpc.Server with the Coordinator service registered and the CBOR codec
// forced for every call.
func NewGRPCServer(executor server.ServerTaskExecutor, auth Authenticator, opts ...grpc.ServerOption) *grpc.Server {
	opts = append(opts,
		grpc.ForceServerCodec(Codec{}),
		grpc.ChainUnaryInterceptor(loggingInterceptor),
	)
	s := grpc.NewServer(opts...)
	RegisterCoordinatorServer(s, NewServer(executor, auth))
	return s
}

func (s *Server) Command(ctx context.Context, req *zookeeper.FourLetterRequest) (*zookeeper.FourLetterResponse, error) {
	resp, err := s.executor.Anonymous.Submit(*req).Get(ctx)
	if err != nil {
		return nil, toStatus(err)
	}
	return &resp, nil
}

func (s *Server) Connect(ctx context.Context, req *zookeeper.ConnectRequest) (*zookeeper.ConnectResponse, error) {
	resp, err := s.executor.Connect.Submit(*req).Get(ctx)
	if err != nil {
		return nil, toStatus(err)
	}
	return &resp, nil
}

func (s *Server) Submit(ctx context.Context, req *SubmitRequest) (*zookeeper.ResponseEnvelope, error) {
	id, passwd, err := extractSessionHeaders(ctx)
	if err != nil {
		return nil, status.Error(codes.Unauthenticated, err.Error())
	}
	// The id alone is guessable, the password handed out by Connect is not.
	if err := s.auth.Authenticate(id, passwd); err != nil {
		return nil, toStatus(err)
	}
	op, err := req.Op.Op()
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	resp, err := s.executor.Session.Submit(zookeeper.SessionRequest{
		SessionID: id,
		Xid:       req.Xid,
		Op:        op,
	}).Get(ctx)
	if err != nil {
		return nil, toStatus(err)
	}
	wrapped, err := zookeeper.WrapResponse(resp)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return &wrapped, nil
}

// toStatus maps a fault of the executor onto a gRPC status. Response codes never get here, only
// errors that mean the request could not be answered normally.
func toStatus(err error) error {
	var c codes.Code
	switch {
	case errors.Is(err, zookeeper.ErrSessionExpired):
		c = codes.FailedPrecondition
	case errors.Is(err, session.ErrBadPassword):
		c = codes.Unauthenticated
	case errors.Is(err, server.ErrZxidAhead):
		c = codes.OutOfRange
	case errors.Is(err, server.ErrUnknownCommand):
		c = codes.InvalidArgument
	case errors.Is(err, server.ErrExecutorStopped):
		c = codes.Unavailable
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return status.FromContextError(err).Err()
	default:
		// Protocol violations and panics.
		c = codes.Internal
	}
	return status.Error(c, err.Error())
}

func loggingInterceptor(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
	start := time.Now()
	resp, err := handler(ctx, req)
	entry := _transportLogger.WithField("method", info.FullMethod).WithField("took", time.Since(start))
	if err != nil {
		entry.Warnf("call failed: %v", err)
	} else {
		entry.Debug("call served")
	}
	return resp, err
}
