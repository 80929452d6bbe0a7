// Package adminserver hand-wires the admin surface's gRPC service
// descriptor (window.current, window.force_close, window.rollback,
// reconciliation.trigger, reconciliation.summary, payment.status)
// against google.golang.org/grpc, in the shape protoc-gen-go-grpc
// would emit from an admin.proto this environment has no protoc to run.
package adminserver

import (
	"context"

	"google.golang.org/grpc"

	"github.com/paynet/nexus-clearing/internal/rpc/adminpb"
)

// AdminServer is the admin surface's service contract.
type AdminServer interface {
	CurrentWindow(context.Context, *adminpb.WindowCurrentRequest) (*adminpb.WindowMessage, error)
	ForceCloseWindow(context.Context, *adminpb.WindowForceCloseRequest) (*adminpb.WindowMessage, error)
	RollbackWindow(context.Context, *adminpb.WindowRollbackRequest) (*adminpb.WindowMessage, error)
	TriggerReconciliation(context.Context, *adminpb.ReconciliationTriggerRequest) (*adminpb.ReconciliationTriggerResponse, error)
	ReconciliationSummary(context.Context, *adminpb.ReconciliationSummaryRequest) (*adminpb.ReconciliationSummaryResponse, error)
	PaymentStatus(context.Context, *adminpb.PaymentStatusRequest) (*adminpb.PaymentStatusResponse, error)
}

const serviceName = "admin.Admin"

func _Admin_CurrentWindow_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(adminpb.WindowCurrentRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AdminServer).CurrentWindow(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/CurrentWindow"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(AdminServer).CurrentWindow(ctx, req.(*adminpb.WindowCurrentRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _Admin_ForceCloseWindow_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(adminpb.WindowForceCloseRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AdminServer).ForceCloseWindow(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/ForceCloseWindow"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(AdminServer).ForceCloseWindow(ctx, req.(*adminpb.WindowForceCloseRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _Admin_RollbackWindow_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(adminpb.WindowRollbackRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AdminServer).RollbackWindow(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/RollbackWindow"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(AdminServer).RollbackWindow(ctx, req.(*adminpb.WindowRollbackRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _Admin_TriggerReconciliation_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(adminpb.ReconciliationTriggerRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AdminServer).TriggerReconciliation(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/TriggerReconciliation"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(AdminServer).TriggerReconciliation(ctx, req.(*adminpb.ReconciliationTriggerRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _Admin_ReconciliationSummary_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(adminpb.ReconciliationSummaryRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AdminServer).ReconciliationSummary(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/ReconciliationSummary"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(AdminServer).ReconciliationSummary(ctx, req.(*adminpb.ReconciliationSummaryRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _Admin_PaymentStatus_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(adminpb.PaymentStatusRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AdminServer).PaymentStatus(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/PaymentStatus"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(AdminServer).PaymentStatus(ctx, req.(*adminpb.PaymentStatusRequest))
	}
	return interceptor(ctx, in, info, handler)
}

var adminServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*AdminServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "CurrentWindow", Handler: _Admin_CurrentWindow_Handler},
		{MethodName: "ForceCloseWindow", Handler: _Admin_ForceCloseWindow_Handler},
		{MethodName: "RollbackWindow", Handler: _Admin_RollbackWindow_Handler},
		{MethodName: "TriggerReconciliation", Handler: _Admin_TriggerReconciliation_Handler},
		{MethodName: "ReconciliationSummary", Handler: _Admin_ReconciliationSummary_Handler},
		{MethodName: "PaymentStatus", Handler: _Admin_PaymentStatus_Handler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "admin.proto",
}

// RegisterAdminServer registers srv against s, the same call shape
// protoc-gen-go-grpc's Register<Service>Server would produce.
func RegisterAdminServer(s grpc.ServiceRegistrar, srv AdminServer) {
	s.RegisterService(&adminServiceDesc, srv)
}

// adminClient is the generated-style client stub, used by cmd/nexusctl.
type adminClient struct {
	cc grpc.ClientConnInterface
}

// NewAdminClient wraps conn as an AdminClient.
func NewAdminClient(conn grpc.ClientConnInterface) AdminClient {
	return &adminClient{cc: conn}
}

// AdminClient is the client-side counterpart of AdminServer.
type AdminClient interface {
	CurrentWindow(ctx context.Context, in *adminpb.WindowCurrentRequest, opts ...grpc.CallOption) (*adminpb.WindowMessage, error)
	ForceCloseWindow(ctx context.Context, in *adminpb.WindowForceCloseRequest, opts ...grpc.CallOption) (*adminpb.WindowMessage, error)
	RollbackWindow(ctx context.Context, in *adminpb.WindowRollbackRequest, opts ...grpc.CallOption) (*adminpb.WindowMessage, error)
	TriggerReconciliation(ctx context.Context, in *adminpb.ReconciliationTriggerRequest, opts ...grpc.CallOption) (*adminpb.ReconciliationTriggerResponse, error)
	ReconciliationSummary(ctx context.Context, in *adminpb.ReconciliationSummaryRequest, opts ...grpc.CallOption) (*adminpb.ReconciliationSummaryResponse, error)
	PaymentStatus(ctx context.Context, in *adminpb.PaymentStatusRequest, opts ...grpc.CallOption) (*adminpb.PaymentStatusResponse, error)
}

func (c *adminClient) CurrentWindow(ctx context.Context, in *adminpb.WindowCurrentRequest, opts ...grpc.CallOption) (*adminpb.WindowMessage, error) {
	out := new(adminpb.WindowMessage)
	if err := c.cc.Invoke(ctx, "/"+serviceName+"/CurrentWindow", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *adminClient) ForceCloseWindow(ctx context.Context, in *adminpb.WindowForceCloseRequest, opts ...grpc.CallOption) (*adminpb.WindowMessage, error) {
	out := new(adminpb.WindowMessage)
	if err := c.cc.Invoke(ctx, "/"+serviceName+"/ForceCloseWindow", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *adminClient) RollbackWindow(ctx context.Context, in *adminpb.WindowRollbackRequest, opts ...grpc.CallOption) (*adminpb.WindowMessage, error) {
	out := new(adminpb.WindowMessage)
	if err := c.cc.Invoke(ctx, "/"+serviceName+"/RollbackWindow", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *adminClient) TriggerReconciliation(ctx context.Context, in *adminpb.ReconciliationTriggerRequest, opts ...grpc.CallOption) (*adminpb.ReconciliationTriggerResponse, error) {
	out := new(adminpb.ReconciliationTriggerResponse)
	if err := c.cc.Invoke(ctx, "/"+serviceName+"/TriggerReconciliation", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *adminClient) ReconciliationSummary(ctx context.Context, in *adminpb.ReconciliationSummaryRequest, opts ...grpc.CallOption) (*adminpb.ReconciliationSummaryResponse, error) {
	out := new(adminpb.ReconciliationSummaryResponse)
	if err := c.cc.Invoke(ctx, "/"+serviceName+"/ReconciliationSummary", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *adminClient) PaymentStatus(ctx context.Context, in *adminpb.PaymentStatusRequest, opts ...grpc.CallOption) (*adminpb.PaymentStatusResponse, error) {
	out := new(adminpb.PaymentStatusResponse)
	if err := c.cc.Invoke(ctx, "/"+serviceName+"/PaymentStatus", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
