// Package visualiser streams per-frame summaries to remote viewers over
// gRPC and renders top-down cluster plots.
//
// Messages are google.protobuf.Struct values so the service needs no
// generated code: the request carries stream options and each response is
// one frame summary (see Summary for its fields).
package visualiser

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	ServiceName        = "tabletop.v1.Visualiser"
	streamFramesMethod = "/" + ServiceName + "/StreamFrames"
)

// VisualiserServer is the server side of the Visualiser service.
type VisualiserServer interface {
	StreamFrames(req *structpb.Struct, stream FrameStreamServer) error
}

// FrameStreamServer sends frame summaries to one client.
type FrameStreamServer interface {
	Send(*structpb.Struct) error
	grpc.ServerStream
}

// ServiceDesc describes the Visualiser service for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*VisualiserServer)(nil),
	Methods:     []grpc.MethodDesc{},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "StreamFrames",
			Handler:       streamFramesHandler,
			ServerStreams: true,
		},
	},
	Metadata: "tabletop/v1/visualiser.proto",
}

// RegisterService registers srv on s.
func RegisterService(s grpc.ServiceRegistrar, srv VisualiserServer) {
	s.RegisterService(&ServiceDesc, srv)
}

func streamFramesHandler(srv interface{}, stream grpc.ServerStream) error {
	req := new(structpb.Struct)
	if err := stream.RecvMsg(req); err != nil {
		return err
	}
	return srv.(VisualiserServer).StreamFrames(req, &frameStreamServer{stream})
}

type frameStreamServer struct {
	grpc.ServerStream
}

func (s *frameStreamServer) Send(m *structpb.Struct) error {
	return s.ServerStream.SendMsg(m)
}

// Client calls the Visualiser service.
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient wraps an established connection.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// FrameStream receives frame summaries.
type FrameStream interface {
	Recv() (*structpb.Struct, error)
	grpc.ClientStream
}

// StreamFrames opens a summary stream. A nil req requests the defaults.
func (c *Client) StreamFrames(ctx context.Context, req *structpb.Struct, opts ...grpc.CallOption) (FrameStream, error) {
	stream, err := c.cc.NewStream(ctx, &ServiceDesc.Streams[0], streamFramesMethod, opts...)
	if err != nil {
		return nil, err
	}
	if req == nil {
		req = &structpb.Struct{}
	}
	if err := stream.SendMsg(req); err != nil {
		return nil, err
	}
	if err := stream.CloseSend(); err != nil {
		return nil, err
	}
	return &frameStreamClient{stream}, nil
}

type frameStreamClient struct {
	grpc.ClientStream
}

func (x *frameStreamClient) Recv() (*structpb.Struct, error) {
	m := new(structpb.Struct)
	if err := x.ClientStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}
