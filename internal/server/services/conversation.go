package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dmitrijs2005/failseed/internal/common"
	"github.com/dmitrijs2005/failseed/internal/logging"
	"github.com/dmitrijs2005/failseed/internal/server/config"
	"github.com/dmitrijs2005/failseed/internal/server/llm"
	"github.com/dmitrijs2005/failseed/internal/server/models"
	"github.com/dmitrijs2005/failseed/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/failseed/internal/server/safety"
	"github.com/google/uuid"
)

// Generator is the part of the LLM gateway the conversation flow needs.
type Generator interface {
	Continue(ctx context.Context, req llm.ContinuationRequest) (*llm.ContinuationResult, error)
	Finalize(ctx context.Context, transcript string) (*llm.FinalizationResult, error)
}

// SafetyConcernError is returned instead of a model reply when a user
// message trips the danger filter. Nothing is sent to the model or stored.
type SafetyConcernError struct {
	Resources []string
}

func (e *SafetyConcernError) Error() string { return safety.Message }

func (e *SafetyConcernError) Unwrap() error { return common.ErrSafetyConcern }

// Reply is the assistant's answer to one user turn.
type Reply struct {
	EntryID        string
	Message        string
	ShouldFinalize bool
	TurnCount      int
}

// ConversationService drives an entry from its first message through
// finalization. Each call does at most one model request.
type ConversationService struct {
	db            *sql.DB
	repomanager   repomanager.RepositoryManager
	gateway       Generator
	logger        logging.Logger
	maxInputChars int
	maxTurns      int
	now           func() time.Time
}

func NewConversationService(db *sql.DB, m repomanager.RepositoryManager, g Generator, l logging.Logger, cfg *config.Config) *ConversationService {
	return &ConversationService{
		db:            db,
		repomanager:   m,
		gateway:       g,
		logger:        l.With("module", "conversation"),
		maxInputChars: cfg.MaxInputChars,
		maxTurns:      cfg.MaxTurns,
		now:           time.Now,
	}
}

// Start screens text, asks the model for the first reply and creates the
// entry with the opening exchange.
func (s *ConversationService) Start(ctx context.Context, owner, text string) (*Reply, error) {
	if err := s.screen(ctx, text); err != nil {
		return nil, err
	}

	res, err := s.gateway.Continue(ctx, llm.ContinuationRequest{Message: text, Turn: 1})
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	e := &models.Entry{
		ID:         uuid.NewString(),
		Owner:      owner,
		Text:       text,
		TurnCount:  1,
		HintStatus: models.HintNone,
		CreatedAt:  now,
		History: []models.Message{
			{Role: models.RoleUser, Content: text, Timestamp: now},
			{Role: models.RoleAssistant, Content: res.Message, Timestamp: now},
		},
	}
	if err := s.repomanager.Entries(s.db).Create(ctx, e); err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "conversation started", "entry_id", e.ID)
	return &Reply{EntryID: e.ID, Message: res.Message, ShouldFinalize: s.shouldFinalize(res, 1), TurnCount: 1}, nil
}

// Continue adds one user turn to an ongoing entry.
func (s *ConversationService) Continue(ctx context.Context, owner, entryID, message string) (*Reply, error) {
	repo := s.repomanager.Entries(s.db)

	e, err := s.load(ctx, owner, entryID)
	if err != nil {
		return nil, err
	}
	if e.IsCompleted {
		return nil, common.ErrAlreadyCompleted
	}
	if err := s.screen(ctx, message); err != nil {
		return nil, err
	}

	turn := e.UserMessages() + 1
	if s.maxTurns > 0 && turn > s.maxTurns {
		return nil, common.ErrTurnLimitReached
	}

	res, err := s.gateway.Continue(ctx, llm.ContinuationRequest{History: e.History, Message: message, Turn: turn})
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	updated, err := repo.AppendTurn(ctx, e.ID, owner, e.TurnCount,
		models.Message{Role: models.RoleUser, Content: message, Timestamp: now},
		models.Message{Role: models.RoleAssistant, Content: res.Message, Timestamp: now})
	if err != nil {
		if errors.Is(err, common.ErrVersionConflict) {
			s.logger.Warn(ctx, "concurrent continuation rejected", "entry_id", e.ID, "turn", turn)
		}
		return nil, err
	}

	return &Reply{EntryID: updated.ID, Message: res.Message, ShouldFinalize: s.shouldFinalize(res, updated.TurnCount), TurnCount: updated.TurnCount}, nil
}

// Finalize distills the conversation and completes the entry. A failed model
// call leaves the entry ongoing.
func (s *ConversationService) Finalize(ctx context.Context, owner, entryID string) (*models.Entry, error) {
	e, err := s.load(ctx, owner, entryID)
	if err != nil {
		return nil, err
	}
	if e.IsCompleted {
		return nil, common.ErrAlreadyCompleted
	}

	res, err := s.gateway.Finalize(ctx, e.Transcript())
	if err != nil {
		return nil, err
	}

	done, err := s.repomanager.Entries(s.db).Finalize(ctx, e.ID, owner, e.TurnCount, res.Growth, res.Hint, res.Category)
	if err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "conversation finalized", "entry_id", done.ID, "turns", done.TurnCount, "category", res.Category)
	return done, nil
}

// UpdateHintStatus records what the user did with the hint of a finalized entry.
func (s *ConversationService) UpdateHintStatus(ctx context.Context, owner, entryID string, status models.HintStatus) (*models.Entry, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: unknown hint status %q", common.ErrValidation, status)
	}
	if !validID(entryID) {
		return nil, common.ErrorNotFound
	}
	return s.repomanager.Entries(s.db).UpdateHintStatus(ctx, entryID, owner, status)
}

// Get returns one of the owner's entries, ongoing or completed.
func (s *ConversationService) Get(ctx context.Context, owner, entryID string) (*models.Entry, error) {
	return s.load(ctx, owner, entryID)
}

// ListCompleted returns the owner's finalized entries, newest first.
func (s *ConversationService) ListCompleted(ctx context.Context, owner string) ([]*models.Entry, error) {
	return s.repomanager.Entries(s.db).ListCompleted(ctx, owner)
}

// Delete removes the owner's entry. Unknown or foreign ids report false.
func (s *ConversationService) Delete(ctx context.Context, owner, entryID string) (bool, error) {
	if !validID(entryID) {
		return false, nil
	}
	ok, err := s.repomanager.Entries(s.db).Delete(ctx, entryID, owner)
	if err != nil {
		return false, err
	}
	if ok {
		s.logger.Info(ctx, "entry deleted", "entry_id", entryID)
	}
	return ok, nil
}

// Analytics summarises the owner's completed entries.
func (s *ConversationService) Analytics(ctx context.Context, owner string) (*models.Analytics, error) {
	repo := s.repomanager.Entries(s.db)

	total, err := repo.CountByOwner(ctx, owner)
	if err != nil {
		return nil, err
	}
	completed, err := repo.ListCompleted(ctx, owner)
	if err != nil {
		return nil, err
	}

	a := &models.Analytics{
		Total:        total,
		Completed:    len(completed),
		ByCategory:   make(map[string]int),
		ByHintStatus: make(map[models.HintStatus]int),
	}
	turns := 0
	for _, e := range completed {
		category := models.CategoryOther
		if e.Category != nil {
			category = *e.Category
		}
		a.ByCategory[category]++
		a.ByHintStatus[e.HintStatus]++
		turns += e.TurnCount
	}
	if len(completed) > 0 {
		a.AverageTurns = float64(turns) / float64(len(completed))
	}
	return a, nil
}

// screen applies the checks that must pass before a message may reach the model.
func (s *ConversationService) screen(ctx context.Context, message string) error {
	if strings.TrimSpace(message) == "" {
		return fmt.Errorf("%w: message is empty", common.ErrValidation)
	}
	if safety.IsDangerous(message) {
		s.logger.Warn(ctx, "message withheld by safety filter")
		return &SafetyConcernError{Resources: safety.Resources()}
	}
	if s.maxInputChars > 0 && utf8.RuneCountInString(message) > s.maxInputChars {
		return fmt.Errorf("%w: message exceeds %d characters", common.ErrInputTooLarge, s.maxInputChars)
	}
	return nil
}

func (s *ConversationService) load(ctx context.Context, owner, entryID string) (*models.Entry, error) {
	if !validID(entryID) {
		return nil, common.ErrorNotFound
	}
	return s.repomanager.Entries(s.db).Get(ctx, entryID, owner)
}

// shouldFinalize passes the model's advice through, but forces it once the
// turn cap is reached.
func (s *ConversationService) shouldFinalize(res *llm.ContinuationResult, turn int) bool {
	return res.ShouldFinalize || (s.maxTurns > 0 && turn >= s.maxTurns)
}

func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
