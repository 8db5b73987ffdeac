package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Result is either a *ContinuationResult or a *FinalizationResult.
type Result interface {
	kind() Kind
}

// ContinuationResult is the model's reply to one user turn.
type ContinuationResult struct {
	Message        string
	ShouldFinalize bool
}

// FinalizationResult is the insight distilled from a whole conversation.
// Growth holds at most the policy's line limit.
type FinalizationResult struct {
	Growth   string
	Hint     *string
	Category string
}

func (*ContinuationResult) kind() Kind { return KindContinuation }
func (*FinalizationResult) kind() Kind { return KindFinalization }

var (
	errNoJSON        = errors.New("no JSON object in model response")
	errSchemaMissing = errors.New("model response does not match schema")
)

type continuationPayload struct {
	Message        *string `json:"message"`
	ShouldFinalize *bool   `json:"shouldFinalize"`
}

type finalizationPayload struct {
	Growth   *string `json:"growth"`
	Hint     *string `json:"hint"`
	Category string  `json:"category"`
}

// decode validates raw model output against the schema for kind.
func decode(kind Kind, raw string) (Result, error) {
	body := ExtractJSON(raw)
	if body == "" {
		return nil, errNoJSON
	}

	switch kind {
	case KindContinuation:
		var p continuationPayload
		if err := json.Unmarshal([]byte(body), &p); err != nil {
			return nil, fmt.Errorf("parse continuation: %w", err)
		}
		if p.Message == nil || strings.TrimSpace(*p.Message) == "" || p.ShouldFinalize == nil {
			return nil, fmt.Errorf("%w: continuation needs message and shouldFinalize", errSchemaMissing)
		}
		return &ContinuationResult{Message: strings.TrimSpace(*p.Message), ShouldFinalize: *p.ShouldFinalize}, nil

	case KindFinalization:
		var p finalizationPayload
		if err := json.Unmarshal([]byte(body), &p); err != nil {
			return nil, fmt.Errorf("parse finalization: %w", err)
		}
		if p.Growth == nil || strings.TrimSpace(*p.Growth) == "" {
			return nil, fmt.Errorf("%w: finalization needs growth", errSchemaMissing)
		}
		res := &FinalizationResult{Growth: strings.TrimSpace(*p.Growth), Category: strings.TrimSpace(p.Category)}
		if p.Hint != nil {
			if h := strings.TrimSpace(*p.Hint); h != "" {
				res.Hint = &h
			}
		}
		return res, nil

	default:
		return nil, fmt.Errorf("unknown result kind %q", kind)
	}
}

// truncateLines keeps the first max lines of s.
func truncateLines(s string, max int) string {
	if max <= 0 {
		return s
	}
	lines := strings.Split(s, "\n")
	if len(lines) <= max {
		return s
	}
	return strings.Join(lines[:max], "\n")
}
