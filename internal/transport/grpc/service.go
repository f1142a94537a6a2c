package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name, also used for health.
const ServiceName = "slotkeeper.v1.Bookings"

const (
	BookSlotMethod       = "/" + ServiceName + "/BookSlot"
	RescheduleSlotMethod = "/" + ServiceName + "/RescheduleSlot"
	CancelSlotMethod     = "/" + ServiceName + "/CancelSlot"
)

// BookingsServiceServer carries requests and responses as google.protobuf.Struct
// so clients need no generated stubs.
type BookingsServiceServer interface {
	BookSlot(context.Context, *structpb.Struct) (*structpb.Struct, error)
	RescheduleSlot(context.Context, *structpb.Struct) (*structpb.Struct, error)
	CancelSlot(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

func RegisterBookingsServiceServer(s grpc.ServiceRegistrar, srv BookingsServiceServer) {
	s.RegisterService(&bookingsServiceDesc, srv)
}

var bookingsServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*BookingsServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "BookSlot", Handler: unaryHandler(BookSlotMethod, BookingsServiceServer.BookSlot)},
		{MethodName: "RescheduleSlot", Handler: unaryHandler(RescheduleSlotMethod, BookingsServiceServer.RescheduleSlot)},
		{MethodName: "CancelSlot", Handler: unaryHandler(CancelSlotMethod, BookingsServiceServer.CancelSlot)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "slotkeeper/v1/bookings.proto",
}

type structMethod func(BookingsServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(fullMethod string, call structMethod) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(BookingsServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(BookingsServiceServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// BookingsClient is a thin client over a connection to a Bookings server.
type BookingsClient struct {
	cc grpc.ClientConnInterface
}

func NewBookingsClient(cc grpc.ClientConnInterface) *BookingsClient {
	return &BookingsClient{cc: cc}
}

func (c *BookingsClient) BookSlot(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, BookSlotMethod, in, opts)
}

func (c *BookingsClient) RescheduleSlot(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, RescheduleSlotMethod, in, opts)
}

func (c *BookingsClient) CancelSlot(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, CancelSlotMethod, in, opts)
}

func (c *BookingsClient) invoke(ctx context.Context, method string, in *structpb.Struct, opts []grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
