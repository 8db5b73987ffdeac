package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	openai "github.com/sashabaranov/go-openai"
)

const defaultOpenAIModel = openai.GPT4oMini

// OpenAIProvider completes prompts with the chat completions API in JSON mode.
// Any OpenAI-compatible endpoint works through BaseURL.
type OpenAIProvider struct {
	client      *openai.Client
	model       string
	temperature float32
}

func NewOpenAIProvider(apiKey, baseURL, model string, temperature float64, httpClient *http.Client) *OpenAIProvider {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if httpClient != nil {
		cfg.HTTPClient = httpClient
	}
	if model == "" {
		model = defaultOpenAIModel
	}
	return &OpenAIProvider{
		client:      openai.NewClientWithConfig(cfg),
		model:       model,
		temperature: float32(temperature),
	}
}

func (p *OpenAIProvider) Name() string { return "openai" }

func (p *OpenAIProvider) Complete(ctx context.Context, prompt Prompt) (string, error) {
	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       p.model,
		Temperature: p.temperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: prompt.System},
			{Role: openai.ChatMessageRoleUser, Content: prompt.User},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return "", classifyOpenAIError(err)
	}
	if len(resp.Choices) == 0 {
		return "", &ProviderError{Provider: p.Name(), Err: errors.New("no choices in response")}
	}
	return resp.Choices[0].Message.Content, nil
}

func classifyOpenAIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &ProviderError{
			Provider:   "openai",
			StatusCode: apiErr.HTTPStatusCode,
			Transient:  transientStatus(apiErr.HTTPStatusCode),
			Err:        fmt.Errorf("%s", apiErr.Message),
		}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return &ProviderError{
			Provider:   "openai",
			StatusCode: reqErr.HTTPStatusCode,
			Transient:  transientStatus(reqErr.HTTPStatusCode),
			Err:        err,
		}
	}
	return &ProviderError{Provider: "openai", Transient: true, Err: err}
}
