package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/genai"
)

const defaultGeminiModel = "gemini-2.5-flash"

type generateContentFunc func(ctx context.Context, model string, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)

// GeminiProvider completes prompts with the Gemini API, constraining the
// reply with a response schema.
type GeminiProvider struct {
	generate    generateContentFunc
	model       string
	temperature float32
}

func NewGeminiProvider(ctx context.Context, apiKey, baseURL, model string, temperature float64, httpClient *http.Client) (*GeminiProvider, error) {
	cc := &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: httpClient,
	}
	if baseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: baseURL}
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}
	if model == "" {
		model = defaultGeminiModel
	}
	return &GeminiProvider{
		generate:    client.Models.GenerateContent,
		model:       model,
		temperature: float32(temperature),
	}, nil
}

func (p *GeminiProvider) Name() string { return "gemini" }

func (p *GeminiProvider) Complete(ctx context.Context, prompt Prompt) (string, error) {
	temp := p.temperature
	cfg := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(prompt.System, genai.RoleUser),
		Temperature:       &temp,
		ResponseMIMEType:  "application/json",
		ResponseSchema:    geminiSchema(prompt.Kind),
	}

	res, err := p.generate(ctx, p.model, genai.Text(prompt.User), cfg)
	if err != nil {
		return "", &ProviderError{
			Provider:  p.Name(),
			Transient: errors.Is(err, context.DeadlineExceeded),
			Err:       err,
		}
	}
	if res == nil {
		return "", &ProviderError{Provider: p.Name(), Err: errors.New("nil response")}
	}
	return res.Text(), nil
}

func geminiSchema(kind Kind) *genai.Schema {
	switch kind {
	case KindContinuation:
		return &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"message":        {Type: genai.TypeString},
				"shouldFinalize": {Type: genai.TypeBoolean},
			},
			Required: []string{"message", "shouldFinalize"},
		}
	case KindFinalization:
		return &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"growth":   {Type: genai.TypeString},
				"hint":     {Type: genai.TypeString},
				"category": {Type: genai.TypeString},
			},
			Required: []string{"growth"},
		}
	}
	return nil
}
