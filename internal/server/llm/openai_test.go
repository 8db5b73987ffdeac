package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newOpenAIServer(t *testing.T, status int, body string, seen *map[string]any) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		if seen != nil {
			require.NoError(t, json.NewDecoder(r.Body).Decode(seen))
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestOpenAIProvider_Complete(t *testing.T) {
	var req map[string]any
	srv := newOpenAIServer(t, http.StatusOK, `{
		"id": "chatcmpl-1",
		"object": "chat.completion",
		"created": 1,
		"model": "gpt-4o-mini",
		"choices": [{"index": 0, "message": {"role": "assistant", "content": "{\"message\":\"hi\",\"shouldFinalize\":false}"}, "finish_reason": "stop"}]
	}`, &req)

	p := NewOpenAIProvider("sk-test", srv.URL+"/v1", "", 0.5, &http.Client{Timeout: 5 * time.Second})
	out, err := p.Complete(context.Background(), Prompt{Kind: KindContinuation, System: "sys", User: "usr", Turn: 1})
	require.NoError(t, err)
	assert.Equal(t, `{"message":"hi","shouldFinalize":false}`, out)

	assert.Equal(t, "gpt-4o-mini", req["model"])
	assert.Equal(t, map[string]any{"type": "json_object"}, req["response_format"])
	msgs, ok := req["messages"].([]any)
	require.True(t, ok)
	require.Len(t, msgs, 2)
	assert.Equal(t, "system", msgs[0].(map[string]any)["role"])
	assert.Equal(t, "usr", msgs[1].(map[string]any)["content"])
}

func TestOpenAIProvider_NoChoices(t *testing.T) {
	srv := newOpenAIServer(t, http.StatusOK, `{"id": "x", "object": "chat.completion", "choices": []}`, nil)

	p := NewOpenAIProvider("sk-test", srv.URL+"/v1", "gpt-test", 0, nil)
	_, err := p.Complete(context.Background(), Prompt{Kind: KindContinuation})

	var pe *ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "openai", pe.Provider)
	assert.False(t, pe.Transient)
}

func TestOpenAIProvider_APIErrors(t *testing.T) {
	tests := []struct {
		status    int
		transient bool
	}{
		{http.StatusTooManyRequests, true},
		{http.StatusInternalServerError, true},
		{http.StatusUnauthorized, false},
		{http.StatusBadRequest, false},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			srv := newOpenAIServer(t, tt.status, `{"error": {"message": "nope", "type": "invalid_request_error"}}`, nil)

			p := NewOpenAIProvider("sk-test", srv.URL+"/v1", "gpt-test", 0, nil)
			_, err := p.Complete(context.Background(), Prompt{Kind: KindFinalization})

			var pe *ProviderError
			require.ErrorAs(t, err, &pe)
			assert.Equal(t, tt.status, pe.StatusCode)
			assert.Equal(t, tt.transient, pe.Transient)
		})
	}
}

func TestOpenAIProvider_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	p := NewOpenAIProvider("sk-test", url+"/v1", "gpt-test", 0, &http.Client{Timeout: time.Second})
	_, err := p.Complete(context.Background(), Prompt{Kind: KindContinuation})
	assert.True(t, IsTransient(err))
}
