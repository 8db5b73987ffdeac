package grpc

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/dmitrijs2005/failseed/internal/common"
	"github.com/dmitrijs2005/failseed/internal/server/auth"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// accessTokenInterceptor requires a valid access token for every method of the
// conversation service and stores the resolved owner in the context.
func (s *GRPCServer) accessTokenInterceptor(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {

	if strings.HasPrefix(info.FullMethod, "/"+serviceName+"/") {

		var accessToken string
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			values := md.Get(common.AccessTokenHeaderName)
			if len(values) > 0 {
				accessToken = values[0]
			}
		}
		if len(accessToken) == 0 {
			return nil, status.Error(codes.Unauthenticated, "missing token")
		}

		claims, err := auth.ParseToken(accessToken, s.jwtSecret)
		if err != nil {
			if errors.Is(err, common.ErrTokenExpired) {
				return nil, status.Error(codes.Unauthenticated, "token expired")
			}
			return nil, status.Error(codes.Unauthenticated, "invalid token")
		}

		ctx = auth.WithOwner(ctx, auth.Owner{ID: claims.UserID, Guest: claims.Guest})
	}

	return handler(ctx, req)
}

// observationInterceptor logs each call and records it in the request metrics.
func (s *GRPCServer) observationInterceptor(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
	start := time.Now()
	resp, err := handler(ctx, req)
	elapsed := time.Since(start)

	code := status.Code(err)
	if s.metrics != nil {
		s.metrics.ObserveRequest("grpc", info.FullMethod, code.String(), elapsed)
	}
	s.logger.Info(ctx, "grpc request", "method", info.FullMethod, "code", code.String(), "duration", elapsed)

	return resp, err
}
