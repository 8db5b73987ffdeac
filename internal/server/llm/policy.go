package llm

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"
	"text/template"

	"github.com/dmitrijs2005/failseed/internal/server/models"
	"gopkg.in/yaml.v3"
)

//go:embed policy.yaml
var defaultPolicyYAML []byte

// Policy holds the prompt texts and the limits the gateway applies.
// It is loaded once at startup and never mutated afterwards.
type Policy struct {
	Continuation ContinuationPolicy `yaml:"continuation"`
	Finalization FinalizationPolicy `yaml:"finalization"`

	templates *template.Template
}

type ContinuationPolicy struct {
	System         string `yaml:"system"`
	FirstMessage   string `yaml:"first_message"`
	WithHistory    string `yaml:"with_history"`
	EarlyTurn      string `yaml:"early_turn"`
	LateTurn       string `yaml:"late_turn"`
	EarlyTurnLimit int    `yaml:"early_turn_limit"`
}

type FinalizationPolicy struct {
	System         string `yaml:"system"`
	User           string `yaml:"user"`
	MaxGrowthLines int    `yaml:"max_growth_lines"`
}

// DefaultPolicy returns the built-in prompt policy.
func DefaultPolicy() (*Policy, error) {
	return parsePolicy(defaultPolicyYAML, nil)
}

// LoadPolicy reads a YAML policy file. Keys missing from the file keep their
// built-in values. An empty path yields the default policy.
func LoadPolicy(path string) (*Policy, error) {
	if path == "" {
		return DefaultPolicy()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read prompt policy: %w", err)
	}
	return parsePolicy(defaultPolicyYAML, data)
}

func parsePolicy(base, override []byte) (*Policy, error) {
	p := &Policy{}
	if err := yaml.Unmarshal(base, p); err != nil {
		return nil, fmt.Errorf("parse prompt policy: %w", err)
	}
	if override != nil {
		if err := yaml.Unmarshal(override, p); err != nil {
			return nil, fmt.Errorf("parse prompt policy: %w", err)
		}
	}
	if err := p.compile(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Policy) compile() error {
	if p.Continuation.EarlyTurnLimit < 0 {
		return errors.New("prompt policy: early_turn_limit must not be negative")
	}
	if p.Finalization.MaxGrowthLines <= 0 {
		return errors.New("prompt policy: max_growth_lines must be positive")
	}

	root := template.New("policy").Option("missingkey=error")
	sources := map[string]string{
		"continuation.system":        p.Continuation.System,
		"continuation.first_message": p.Continuation.FirstMessage,
		"continuation.with_history":  p.Continuation.WithHistory,
		"continuation.early_turn":    p.Continuation.EarlyTurn,
		"continuation.late_turn":     p.Continuation.LateTurn,
		"finalization.system":        p.Finalization.System,
		"finalization.user":          p.Finalization.User,
	}
	for name, src := range sources {
		if strings.TrimSpace(src) == "" {
			return fmt.Errorf("prompt policy: %s is empty", name)
		}
		if _, err := root.New(name).Parse(src); err != nil {
			return fmt.Errorf("prompt policy: %s: %w", name, err)
		}
	}
	p.templates = root
	return nil
}

func (p *Policy) render(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := p.templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return buf.String(), nil
}

type continuationData struct {
	History string
	Message string
	Turn    int
}

type finalizationData struct {
	Transcript     string
	Categories     string
	MaxGrowthLines int
}

// ContinuationPrompt renders the prompt for one user turn. history is the
// flattened transcript so far, empty on the first turn.
func (p *Policy) ContinuationPrompt(history, message string, turn int) (Prompt, error) {
	data := continuationData{History: history, Message: message, Turn: turn}

	system, err := p.render("continuation.system", data)
	if err != nil {
		return Prompt{}, err
	}

	body := "continuation.with_history"
	if history == "" {
		body = "continuation.first_message"
	}
	user, err := p.render(body, data)
	if err != nil {
		return Prompt{}, err
	}

	guidance := "continuation.late_turn"
	if turn <= p.Continuation.EarlyTurnLimit {
		guidance = "continuation.early_turn"
	}
	hint, err := p.render(guidance, data)
	if err != nil {
		return Prompt{}, err
	}

	return Prompt{Kind: KindContinuation, System: system, User: user + "\n\n" + hint, Turn: turn}, nil
}

// FinalizationPrompt renders the prompt that distills a finished transcript.
func (p *Policy) FinalizationPrompt(transcript string) (Prompt, error) {
	data := finalizationData{
		Transcript:     transcript,
		Categories:     strings.Join(models.Categories, ", "),
		MaxGrowthLines: p.Finalization.MaxGrowthLines,
	}

	system, err := p.render("finalization.system", data)
	if err != nil {
		return Prompt{}, err
	}
	user, err := p.render("finalization.user", data)
	if err != nil {
		return Prompt{}, err
	}
	return Prompt{Kind: KindFinalization, System: system, User: user}, nil
}
