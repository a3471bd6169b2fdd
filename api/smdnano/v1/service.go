package smdnanov1

import (
	"context"

	"google.golang.org/grpc"
)

const ServiceName = "smdnano.v1.Broker"

const (
	MethodGetPolicy    = "/" + ServiceName + "/GetPolicy"
	MethodGenerate     = "/" + ServiceName + "/Generate"
	MethodFill         = "/" + ServiceName + "/Fill"
	MethodInvalidate   = "/" + ServiceName + "/Invalidate"
	MethodOpenTab      = "/" + ServiceName + "/OpenTab"
	MethodNavigate     = "/" + ServiceName + "/Navigate"
	MethodCloseTab     = "/" + ServiceName + "/CloseTab"
	MethodQueryContext = "/" + ServiceName + "/QueryContext"
)

// BrokerServer is implemented by the broker daemon.
type BrokerServer interface {
	GetPolicy(context.Context, *PolicyRequest) (*PolicyResponse, error)
	Generate(context.Context, *GenerateRequest) (*GenerateResponse, error)
	Fill(context.Context, *FillRequest) (*FillResponse, error)
	Invalidate(context.Context, *InvalidateRequest) (*InvalidateResponse, error)
	OpenTab(context.Context, *OpenTabRequest) (*OpenTabResponse, error)
	Navigate(context.Context, *NavigateRequest) (*NavigateResponse, error)
	CloseTab(context.Context, *CloseTabRequest) (*CloseTabResponse, error)
	QueryContext(context.Context, *QueryContextRequest) (*QueryContextResponse, error)
}

// unaryHandler adapts a typed method to grpc.MethodHandler.
func unaryHandler[Req, Resp any](fullMethod string, call func(BrokerServer, context.Context, *Req) (*Resp, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(BrokerServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(BrokerServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// ServiceDesc describes smdnano.v1.Broker for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*BrokerServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetPolicy", Handler: unaryHandler(MethodGetPolicy, BrokerServer.GetPolicy)},
		{MethodName: "Generate", Handler: unaryHandler(MethodGenerate, BrokerServer.Generate)},
		{MethodName: "Fill", Handler: unaryHandler(MethodFill, BrokerServer.Fill)},
		{MethodName: "Invalidate", Handler: unaryHandler(MethodInvalidate, BrokerServer.Invalidate)},
		{MethodName: "OpenTab", Handler: unaryHandler(MethodOpenTab, BrokerServer.OpenTab)},
		{MethodName: "Navigate", Handler: unaryHandler(MethodNavigate, BrokerServer.Navigate)},
		{MethodName: "CloseTab", Handler: unaryHandler(MethodCloseTab, BrokerServer.CloseTab)},
		{MethodName: "QueryContext", Handler: unaryHandler(MethodQueryContext, BrokerServer.QueryContext)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "smdnano/v1/broker",
}

// RegisterBrokerServer registers srv on s.
func RegisterBrokerServer(s grpc.ServiceRegistrar, srv BrokerServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// BrokerClient is the client side of smdnano.v1.Broker.
type BrokerClient struct {
	cc grpc.ClientConnInterface
}

// NewBrokerClient wraps cc. Every call is sent with the JSON codec.
func NewBrokerClient(cc grpc.ClientConnInterface) *BrokerClient {
	return &BrokerClient{cc: cc}
}

func invoke[Req, Resp any](ctx context.Context, c *BrokerClient, method string, in *Req, opts []grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := c.cc.Invoke(ctx, method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *BrokerClient) GetPolicy(ctx context.Context, in *PolicyRequest, opts ...grpc.CallOption) (*PolicyResponse, error) {
	return invoke[PolicyRequest, PolicyResponse](ctx, c, MethodGetPolicy, in, opts)
}

func (c *BrokerClient) Generate(ctx context.Context, in *GenerateRequest, opts ...grpc.CallOption) (*GenerateResponse, error) {
	return invoke[GenerateRequest, GenerateResponse](ctx, c, MethodGenerate, in, opts)
}

func (c *BrokerClient) Fill(ctx context.Context, in *FillRequest, opts ...grpc.CallOption) (*FillResponse, error) {
	return invoke[FillRequest, FillResponse](ctx, c, MethodFill, in, opts)
}

func (c *BrokerClient) Invalidate(ctx context.Context, in *InvalidateRequest, opts ...grpc.CallOption) (*InvalidateResponse, error) {
	return invoke[InvalidateRequest, InvalidateResponse](ctx, c, MethodInvalidate, in, opts)
}

func (c *BrokerClient) OpenTab(ctx context.Context, in *OpenTabRequest, opts ...grpc.CallOption) (*OpenTabResponse, error) {
	return invoke[OpenTabRequest, OpenTabResponse](ctx, c, MethodOpenTab, in, opts)
}

func (c *BrokerClient) Navigate(ctx context.Context, in *NavigateRequest, opts ...grpc.CallOption) (*NavigateResponse, error) {
	return invoke[NavigateRequest, NavigateResponse](ctx, c, MethodNavigate, in, opts)
}

func (c *BrokerClient) CloseTab(ctx context.Context, in *CloseTabRequest, opts ...grpc.CallOption) (*CloseTabResponse, error) {
	return invoke[CloseTabRequest, CloseTabResponse](ctx, c, MethodCloseTab, in, opts)
}

func (c *BrokerClient) QueryContext(ctx context.Context, in *QueryContextRequest, opts ...grpc.CallOption) (*QueryContextResponse, error) {
	return invoke[QueryContextRequest, QueryContextResponse](ctx, c, MethodQueryContext, in, opts)
}
