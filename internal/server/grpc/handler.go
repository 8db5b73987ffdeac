package grpc

import (
	"context"
	"errors"
	"time"

	"github.com/dmitrijs2005/failseed/internal/common"
	"github.com/dmitrijs2005/failseed/internal/server/auth"
	"github.com/dmitrijs2005/failseed/internal/server/services"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

func (s *GRPCServer) StartConversation(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	owner, err := auth.OwnerFromContext(ctx)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}

	reply, err := s.conversations.Start(ctx, owner.ID, stringField(req, "text"))
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	s.event("started")

	return replyStruct(reply)
}

func (s *GRPCServer) ContinueConversation(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	owner, err := auth.OwnerFromContext(ctx)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	entryID := stringField(req, "entryId")
	if entryID == "" {
		return nil, status.Error(codes.InvalidArgument, "entryId is required")
	}

	reply, err := s.conversations.Continue(ctx, owner.ID, entryID, stringField(req, "message"))
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	s.event("continued")

	return replyStruct(reply)
}

func (s *GRPCServer) FinalizeConversation(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	owner, err := auth.OwnerFromContext(ctx)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	entryID := stringField(req, "entryId")
	if entryID == "" {
		return nil, status.Error(codes.InvalidArgument, "entryId is required")
	}

	e, err := s.conversations.Finalize(ctx, owner.ID, entryID)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	s.event("finalized")

	return structpb.NewStruct(map[string]any{
		"entryId":  e.ID,
		"growth":   optional(e.Growth),
		"hint":     optional(e.Hint),
		"category": optional(e.Category),
	})
}

func (s *GRPCServer) ListGrowths(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	owner, err := auth.OwnerFromContext(ctx)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}

	list, err := s.conversations.ListCompleted(ctx, owner.ID)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}

	entries := make([]any, 0, len(list))
	for _, e := range list {
		entries = append(entries, map[string]any{
			"id":          e.ID,
			"text":        e.Text,
			"turnCount":   e.TurnCount,
			"growth":      optional(e.Growth),
			"hint":        optional(e.Hint),
			"hintStatus":  string(e.HintStatus),
			"category":    optional(e.Category),
			"isCompleted": e.IsCompleted,
			"createdAt":   e.CreatedAt.UTC().Format(time.RFC3339Nano),
		})
	}

	return structpb.NewStruct(map[string]any{"entries": entries})
}

func (s *GRPCServer) event(name string) {
	if s.metrics != nil {
		s.metrics.ConversationEvent(name)
	}
}

// toStatus maps a service error onto a gRPC status. Internal details are
// logged and never sent to the caller.
func (s *GRPCServer) toStatus(ctx context.Context, err error) error {
	var safety *services.SafetyConcernError
	switch {
	case errors.As(err, &safety):
		s.event("safety")
		st := status.New(codes.InvalidArgument, safety.Error())
		resources := make([]any, 0, len(safety.Resources))
		for _, r := range safety.Resources {
			resources = append(resources, r)
		}
		detail, derr := structpb.NewStruct(map[string]any{"resources": resources})
		if derr == nil {
			if withDetails, werr := st.WithDetails(detail); werr == nil {
				st = withDetails
			}
		}
		return st.Err()
	case errors.Is(err, common.ErrorNotFound):
		return status.Error(codes.NotFound, "entry not found")
	case errors.Is(err, common.ErrInputTooLarge):
		return status.Error(codes.ResourceExhausted, "message is too long")
	case errors.Is(err, common.ErrValidation):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, common.ErrAlreadyCompleted):
		return status.Error(codes.FailedPrecondition, "conversation already completed")
	case errors.Is(err, common.ErrTurnLimitReached):
		return status.Error(codes.FailedPrecondition, "turn limit reached")
	case errors.Is(err, common.ErrVersionConflict):
		return status.Error(codes.Aborted, "conversation was updated concurrently")
	case errors.Is(err, common.ErrorUnauthorized),
		errors.Is(err, common.ErrInvalidToken),
		errors.Is(err, common.ErrTokenExpired):
		return status.Error(codes.Unauthenticated, "unauthorized")
	case errors.Is(err, common.ErrGenerationFailed):
		s.logger.Error(ctx, "generation failed", "error", err)
		return status.Error(codes.Unavailable, "reply generation failed")
	default:
		s.logger.Error(ctx, "request failed", "error", err)
		return status.Error(codes.Internal, "internal error")
	}
}

func replyStruct(r *services.Reply) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		"entryId":        r.EntryID,
		"message":        r.Message,
		"shouldFinalize": r.ShouldFinalize,
	})
}

func stringField(in *structpb.Struct, key string) string {
	if in == nil {
		return ""
	}
	return in.GetFields()[key].GetStringValue()
}

// optional turns a nullable column into a Struct value (null when unset).
func optional(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}
