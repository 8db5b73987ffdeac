// Package grpc exposes the conversation flow over gRPC.
//
// There is no generated code: the service is described by a hand-written
// grpc.ServiceDesc whose requests and responses are google.protobuf.Struct
// values carrying the same camelCase fields as the JSON API.
package grpc

import (
	"context"
	"net"

	"github.com/dmitrijs2005/failseed/internal/logging"
	"github.com/dmitrijs2005/failseed/internal/server/metrics"
	"github.com/dmitrijs2005/failseed/internal/server/models"
	"github.com/dmitrijs2005/failseed/internal/server/services"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

const serviceName = "failseed.ConversationService"

// Conversations is the part of the conversation service reachable over gRPC.
type Conversations interface {
	Start(ctx context.Context, owner, text string) (*services.Reply, error)
	Continue(ctx context.Context, owner, entryID, message string) (*services.Reply, error)
	Finalize(ctx context.Context, owner, entryID string) (*models.Entry, error)
	ListCompleted(ctx context.Context, owner string) ([]*models.Entry, error)
}

// ConversationServer is the server API of failseed.ConversationService.
type ConversationServer interface {
	StartConversation(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ContinueConversation(context.Context, *structpb.Struct) (*structpb.Struct, error)
	FinalizeConversation(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListGrowths(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

var conversationServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*ConversationServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "StartConversation", Handler: unaryHandler("StartConversation", ConversationServer.StartConversation)},
		{MethodName: "ContinueConversation", Handler: unaryHandler("ContinueConversation", ConversationServer.ContinueConversation)},
		{MethodName: "FinalizeConversation", Handler: unaryHandler("FinalizeConversation", ConversationServer.FinalizeConversation)},
		{MethodName: "ListGrowths", Handler: unaryHandler("ListGrowths", ConversationServer.ListGrowths)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "failseed/conversation.proto",
}

// unaryHandler adapts a ConversationServer method to grpc.MethodHandler,
// running it through the interceptor chain like generated code does.
func unaryHandler(method string, call func(ConversationServer, context.Context, *structpb.Struct) (*structpb.Struct, error)) grpc.MethodHandler {
	fullMethod := "/" + serviceName + "/" + method
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(ConversationServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(ConversationServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// RegisterConversationServer registers srv on s.
func RegisterConversationServer(s grpc.ServiceRegistrar, srv ConversationServer) {
	s.RegisterService(&conversationServiceDesc, srv)
}

type GRPCServer struct {
	address       string
	conversations Conversations
	logger        logging.Logger
	metrics       *metrics.Metrics
	jwtSecret     []byte
}

// NewGRPCServer builds the server; m may be nil.
func NewGRPCServer(a string, l logging.Logger, conv Conversations, secretKey string, m *metrics.Metrics) *GRPCServer {
	return &GRPCServer{
		address:       a,
		logger:        l.With("module", "grpc_server"),
		conversations: conv,
		metrics:       m,
		jwtSecret:     []byte(secretKey),
	}
}

func (s *GRPCServer) Run(ctx context.Context) error {

	// announces address
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	return s.serve(ctx, listen)
}

func (s *GRPCServer) serve(ctx context.Context, listen net.Listener) error {

	// creates gRPC-server
	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(s.observationInterceptor, s.accessTokenInterceptor))

	// registers service
	RegisterConversationServer(srv, s)

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gRPC server...")
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", listen.Addr().String())

	// starts accepting incoming connections
	if err := srv.Serve(listen); err != nil {
		return err
	}

	return nil
}

var _ ConversationServer = (*GRPCServer)(nil)
