package grpc

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dmitrijs2005/failseed/internal/common"
	"github.com/dmitrijs2005/failseed/internal/logging"
	"github.com/dmitrijs2005/failseed/internal/server/auth"
	"github.com/dmitrijs2005/failseed/internal/server/metrics"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

const startMethod = "/" + serviceName + "/StartConversation"

// helper to build server
func newTestServer(secret string) *GRPCServer {
	return NewGRPCServer("", logging.Nop(), nil, secret, nil)
}

func withToken(token string) context.Context {
	md := metadata.New(map[string]string{common.AccessTokenHeaderName: token})
	return metadata.NewIncomingContext(context.Background(), md)
}

func TestInterceptor_OtherService_AllowsWithoutToken(t *testing.T) {
	s := newTestServer("secret")

	info := &grpc.UnaryServerInfo{FullMethod: "/grpc.health.v1.Health/Check"}
	handlerCalled := false

	h := func(ctx context.Context, req interface{}) (interface{}, error) {
		handlerCalled = true
		return "ok", nil
	}

	resp, err := s.accessTokenInterceptor(context.Background(), nil, info, h)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !handlerCalled {
		t.Fatal("handler was not called")
	}
	if resp != "ok" {
		t.Fatalf("unexpected handler resp: %v", resp)
	}
}

func TestInterceptor_MissingToken(t *testing.T) {
	s := newTestServer("secret")
	info := &grpc.UnaryServerInfo{FullMethod: startMethod}

	h := func(ctx context.Context, req interface{}) (interface{}, error) {
		t.Fatal("handler should not be called when token missing")
		return nil, nil
	}

	_, err := s.accessTokenInterceptor(context.Background(), nil, info, h)
	if status.Code(err) != codes.Unauthenticated {
		t.Fatalf("expected Unauthenticated, got %v", status.Code(err))
	}
	if status.Convert(err).Message() != "missing token" {
		t.Fatalf("expected 'missing token', got %q", status.Convert(err).Message())
	}
}

func TestInterceptor_InvalidToken(t *testing.T) {
	s := newTestServer("secret")
	info := &grpc.UnaryServerInfo{FullMethod: startMethod}

	h := func(ctx context.Context, req interface{}) (interface{}, error) {
		t.Fatal("handler should not be called for invalid token")
		return nil, nil
	}

	_, err := s.accessTokenInterceptor(withToken("not-a-valid-jwt"), nil, info, h)
	if status.Code(err) != codes.Unauthenticated {
		t.Fatalf("expected Unauthenticated, got %v", status.Code(err))
	}
}

func TestInterceptor_ExpiredToken(t *testing.T) {
	secret := "secret"
	s := newTestServer(secret)
	token, err := auth.GenerateToken("u1", []byte(secret), -time.Minute)
	if err != nil {
		t.Fatalf("GenerateToken error: %v", err)
	}

	h := func(ctx context.Context, req interface{}) (interface{}, error) {
		t.Fatal("handler should not be called for expired token")
		return nil, nil
	}

	_, err = s.accessTokenInterceptor(withToken(token), nil, &grpc.UnaryServerInfo{FullMethod: startMethod}, h)
	if status.Convert(err).Message() != "token expired" {
		t.Fatalf("expected 'token expired', got %v", err)
	}
}

func TestInterceptor_ValidToken_SetsOwner(t *testing.T) {
	secret := "super-secret"
	s := newTestServer(secret)

	token, err := auth.GenerateGuestToken("guest:123", []byte(secret), time.Hour)
	if err != nil {
		t.Fatalf("GenerateGuestToken error: %v", err)
	}

	var got auth.Owner
	h := func(ctx context.Context, req interface{}) (interface{}, error) {
		got, err = auth.OwnerFromContext(ctx)
		return "ok", err
	}

	resp, err := s.accessTokenInterceptor(withToken(token), nil, &grpc.UnaryServerInfo{FullMethod: startMethod}, h)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp != "ok" {
		t.Fatalf("unexpected handler resp: %v", resp)
	}
	if got.ID != "guest:123" || !got.Guest {
		t.Fatalf("owner not propagated in context: %+v", got)
	}
}

func TestObservationInterceptor_RecordsCode(t *testing.T) {
	m := metrics.New()
	s := NewGRPCServer("", logging.Nop(), nil, "k", m)
	info := &grpc.UnaryServerInfo{FullMethod: startMethod}

	_, _ = s.observationInterceptor(context.Background(), nil, info, func(ctx context.Context, req interface{}) (interface{}, error) {
		return nil, status.Error(codes.NotFound, "nope")
	})
	_, _ = s.observationInterceptor(context.Background(), nil, info, func(ctx context.Context, req interface{}) (interface{}, error) {
		return "ok", nil
	})

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rec.Body.String()
	for _, want := range []string{
		`failseed_requests_total{route="` + startMethod + `",status="NotFound",transport="grpc"} 1`,
		`failseed_requests_total{route="` + startMethod + `",status="OK",transport="grpc"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("metrics output lacks %q", want)
		}
	}
}
