package transport

import (
	"context"

	"github.com/mikekulinski/zkstate/pkg/zookeeper"
	"google.golang.org/grpc"
)

const ServiceName = "zkstate.Coordinator"

// SubmitRequest is one request of an established session. The session itself is named by the
// x-session-id header and authenticated by x-session-passwd.
type SubmitRequest struct {
	Xid int32                `cbor:"1,keyasint"`
	Op  zookeeper.OpEnvelope `cbor:"2,keyasint"`
}

// CoordinatorServer is implemented by Server. The interface exists so the service descriptor can
// be registered the same way a generated one is.
type CoordinatorServer interface {
	Command(context.Context, *zookeeper.FourLetterRequest) (*zookeeper.FourLetterResponse, error)
	Connect(context.Context, *zookeeper.ConnectRequest) (*zookeeper.ConnectResponse, error)
	Submit(context.Context, *SubmitRequest) (*zookeeper.ResponseEnvelope, error)
}

func RegisterCoordinatorServer(s grpc.ServiceRegistrar, srv CoordinatorServer) {
	s.RegisterService(&_Coordinator_serviceDesc, srv)
}

func _Coordinator_Command_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(zookeeper.FourLetterRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(CoordinatorServer).Command(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: "/" + ServiceName + "/Command",
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(CoordinatorServer).Command(ctx, req.(*zookeeper.FourLetterRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _Coordinator_Connect_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(zookeeper.ConnectRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(CoordinatorServer).Connect(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: "/" + ServiceName + "/Connect",
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(CoordinatorServer).Connect(ctx, req.(*zookeeper.ConnectRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _Coordinator_Submit_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(SubmitRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(CoordinatorServer).Submit(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: "/" + ServiceName + "/Submit",
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(CoordinatorServer).Submit(ctx, req.(*SubmitRequest))
	}
	return interceptor(ctx, in, info, handler)
}

var _Coordinator_serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*CoordinatorServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Command",
			Handler:    _Coordinator_Command_Handler,
		},
		{
			MethodName: "Connect",
			Handler:    _Coordinator_Connect_Handler,
		},
		{
			MethodName: "Submit",
			Handler:    _Coordinator_Submit_Handler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "zkstate",
}
