package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// MockProvider returns deterministic, schema-valid replies without any
// network access. It backs local development when no API key is configured.
type MockProvider struct {
	// FinalizeAfter is the turn from which shouldFinalize is true.
	FinalizeAfter int
}

func NewMockProvider() *MockProvider {
	return &MockProvider{FinalizeAfter: 4}
}

func (p *MockProvider) Name() string { return "mock" }

func (p *MockProvider) Complete(ctx context.Context, prompt Prompt) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", &ProviderError{Provider: p.Name(), Transient: true, Err: err}
	}

	var payload any
	switch prompt.Kind {
	case KindContinuation:
		payload = map[string]any{
			"message":        fmt.Sprintf("なるほど、そう感じたんですね。（%d回目）もう少し聞かせてもらえますか？", prompt.Turn),
			"shouldFinalize": prompt.Turn >= p.FinalizeAfter,
		}
	case KindFinalization:
		payload = map[string]any{
			"growth":   "うまくいかなかった経験を言葉にして振り返ることができた",
			"hint":     "次に同じ場面が来たら、まず5分だけ状況を書き出してみる",
			"category": Categorize(prompt.User),
		}
	default:
		return "", &ProviderError{Provider: p.Name(), Err: fmt.Errorf("unknown prompt kind %q", prompt.Kind)}
	}

	b, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(b)), nil
}
