package grpc

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/dmitrijs2005/failseed/internal/common"
	"github.com/dmitrijs2005/failseed/internal/logging"
	"github.com/dmitrijs2005/failseed/internal/server/auth"
	"github.com/dmitrijs2005/failseed/internal/server/services"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"
)

func TestRun_StopsOnContextCancel(t *testing.T) {
	t.Parallel()

	srv := NewGRPCServer("127.0.0.1:0", logging.Nop(), &fakeConversations{}, "secret", nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- srv.Run(ctx)
	}()

	select {
	case err := <-done:
		t.Fatalf("server exited too early: %v", err)
	case <-time.After(150 * time.Millisecond):
	}

	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned error on graceful stop: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop within timeout after context cancel")
	}
}

func TestRun_ReturnsErrorOnBadAddress(t *testing.T) {
	t.Parallel()

	srv := NewGRPCServer("127.0.0.1:99999", logging.Nop(), &fakeConversations{}, "secret", nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := srv.Run(ctx); err == nil {
		t.Fatal("expected error from Run on bad address, got nil")
	}
}

// dialBuffered serves s on an in-memory listener and returns a connected client.
func dialBuffered(t *testing.T, s *GRPCServer) *grpc.ClientConn {
	t.Helper()

	lis := bufconn.Listen(1 << 20)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- s.serve(ctx, lis) }()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	t.Cleanup(func() {
		_ = conn.Close()
		cancel()
		<-done
	})
	return conn
}

func TestServe_RoundTripThroughInterceptors(t *testing.T) {
	secret := "round-trip"
	f := &fakeConversations{reply: &services.Reply{EntryID: "e1", Message: "Tell me more."}}
	conn := dialBuffered(t, NewGRPCServer("", logging.Nop(), f, secret, nil))

	in, err := structpb.NewStruct(map[string]any{"text": "forgot my keys"})
	if err != nil {
		t.Fatalf("NewStruct: %v", err)
	}

	// no token
	out := new(structpb.Struct)
	err = conn.Invoke(context.Background(), startMethod, in, out)
	if status.Code(err) != codes.Unauthenticated {
		t.Fatalf("expected Unauthenticated without token, got %v", err)
	}

	token, err := auth.GenerateToken("u9", []byte(secret), time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	ctx := metadata.AppendToOutgoingContext(context.Background(), common.AccessTokenHeaderName, token)

	if err := conn.Invoke(ctx, startMethod, in, out); err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if f.owner != "u9" || f.text != "forgot my keys" {
		t.Fatalf("unexpected service call: owner=%q text=%q", f.owner, f.text)
	}
	if out.AsMap()["entryId"] != "e1" {
		t.Fatalf("unexpected response: %v", out.AsMap())
	}

	f.err = common.ErrorNotFound
	cont, _ := structpb.NewStruct(map[string]any{"entryId": "missing", "message": "x"})
	err = conn.Invoke(ctx, "/"+serviceName+"/ContinueConversation", cont, new(structpb.Struct))
	if status.Code(err) != codes.NotFound {
		t.Fatalf("expected NotFound, got %v", err)
	}
}
