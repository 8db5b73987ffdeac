package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/failseed/internal/common"
	"github.com/dmitrijs2005/failseed/internal/logging"
	"github.com/dmitrijs2005/failseed/internal/server/models"
)

// Observer receives one call per model request. outcome is "ok",
// "transient", "error" or "invalid".
type Observer interface {
	ObserveGeneration(provider string, kind Kind, outcome string, elapsed time.Duration)
}

// ContinuationRequest carries one user turn to the gateway. History is the
// conversation before Message; Turn is the 1-based index of Message.
type ContinuationRequest struct {
	History []models.Message
	Message string
	Turn    int
}

// Gateway turns conversation state into prompts, calls the model once and
// validates its reply. Every failure is reported as common.ErrGenerationFailed.
type Gateway struct {
	completer Completer
	policy    *Policy
	logger    logging.Logger
	observer  Observer
	now       func() time.Time
}

// NewGateway builds a Gateway. observer may be nil.
func NewGateway(c Completer, p *Policy, l logging.Logger, observer Observer) *Gateway {
	return &Gateway{
		completer: c,
		policy:    p,
		logger:    l.With("module", "llm_gateway", "provider", c.Name()),
		observer:  observer,
		now:       time.Now,
	}
}

// Continue asks the model for the next assistant message.
func (g *Gateway) Continue(ctx context.Context, req ContinuationRequest) (*ContinuationResult, error) {
	prompt, err := g.policy.ContinuationPrompt(renderHistory(req.History), req.Message, req.Turn)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrGenerationFailed, err)
	}

	res, err := g.generate(ctx, prompt)
	if err != nil {
		return nil, err
	}
	cont, ok := res.(*ContinuationResult)
	if !ok {
		return nil, fmt.Errorf("%w: unexpected %s result", common.ErrGenerationFailed, res.kind())
	}
	return cont, nil
}

// Finalize distills a transcript into a growth statement, an optional hint
// and a category. Growth is cut to the policy's line limit and an unknown
// category is replaced by keyword matching.
func (g *Gateway) Finalize(ctx context.Context, transcript string) (*FinalizationResult, error) {
	prompt, err := g.policy.FinalizationPrompt(transcript)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrGenerationFailed, err)
	}

	res, err := g.generate(ctx, prompt)
	if err != nil {
		return nil, err
	}
	fin, ok := res.(*FinalizationResult)
	if !ok {
		return nil, fmt.Errorf("%w: unexpected %s result", common.ErrGenerationFailed, res.kind())
	}

	fin.Growth = truncateLines(fin.Growth, g.policy.Finalization.MaxGrowthLines)
	if !models.IsCategory(fin.Category) {
		fallback := Categorize(transcript + " " + fin.Growth)
		g.logger.Debug(ctx, "model category replaced", "returned", fin.Category, "fallback", fallback)
		fin.Category = fallback
	}
	return fin, nil
}

func (g *Gateway) generate(ctx context.Context, prompt Prompt) (Result, error) {
	start := g.now()

	raw, err := g.completer.Complete(ctx, prompt)
	if err != nil {
		outcome := "error"
		if IsTransient(err) || errors.Is(err, context.DeadlineExceeded) {
			outcome = "transient"
		}
		g.observe(prompt.Kind, outcome, start)
		g.logger.Error(ctx, "model call failed", "kind", prompt.Kind, "transient", outcome == "transient", "error", err)
		return nil, fmt.Errorf("%w: %v", common.ErrGenerationFailed, err)
	}
	if raw == "" {
		g.observe(prompt.Kind, "invalid", start)
		g.logger.Warn(ctx, "model returned empty response", "kind", prompt.Kind)
		return nil, fmt.Errorf("%w: empty response", common.ErrGenerationFailed)
	}

	res, err := decode(prompt.Kind, raw)
	if err != nil {
		g.observe(prompt.Kind, "invalid", start)
		g.logger.Warn(ctx, "model response rejected", "kind", prompt.Kind, "error", err)
		return nil, fmt.Errorf("%w: %v", common.ErrGenerationFailed, err)
	}

	g.observe(prompt.Kind, "ok", start)
	return res, nil
}

func (g *Gateway) observe(kind Kind, outcome string, start time.Time) {
	if g.observer != nil {
		g.observer.ObserveGeneration(g.completer.Name(), kind, outcome, g.now().Sub(start))
	}
}

func renderHistory(history []models.Message) string {
	e := models.Entry{History: history}
	return e.Transcript()
}
