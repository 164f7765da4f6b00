// Package rpc exposes the recommendation planner over gRPC. Messages are
// structpb.Struct values, so no generated code is involved.
package rpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// #region service-desc
const (
	serviceName     = "trustplanner.v1.Planner"
	recommendMethod = "/" + serviceName + "/Recommend"
)

// PlannerServiceServer is implemented by Server.
type PlannerServiceServer interface {
	Recommend(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

// PlannerServiceClient is the client side of the service.
type PlannerServiceClient interface {
	Recommend(ctx context.Context, req *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
}

var plannerServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*PlannerServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Recommend", Handler: recommendHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "trustplanner/v1/planner",
}

// RegisterPlannerServiceServer registers srv on s.
func RegisterPlannerServiceServer(s grpc.ServiceRegistrar, srv PlannerServiceServer) {
	s.RegisterService(&plannerServiceDesc, srv)
}

func recommendHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(PlannerServiceServer).Recommend(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: recommendMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(PlannerServiceServer).Recommend(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// #endregion service-desc

// #region service-client
type plannerServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewPlannerServiceClient wraps a connection.
func NewPlannerServiceClient(cc grpc.ClientConnInterface) PlannerServiceClient {
	return &plannerServiceClient{cc: cc}
}

func (c *plannerServiceClient) Recommend(ctx context.Context, req *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, recommendMethod, req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// #endregion service-client
