package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func newTestClient(t *testing.T, h http.HandlerFunc) *APIClient {
	t.Helper()
	ts := httptest.NewServer(h)
	t.Cleanup(ts.Close)
	return New(ts.URL+"/", 5*time.Second)
}

func TestLogin_StoresTokens(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/auth/login", r.URL.Path)
		assert.Empty(t, r.Header.Get("Authorization"))

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "alice@example.com", body["email"])

		writeJSON(w, http.StatusOK, map[string]string{"accessToken": "a1", "refreshToken": "r1"})
	})

	res, err := c.Login(context.Background(), "alice@example.com", "secret123")
	require.NoError(t, err)
	assert.Equal(t, "a1", res.AccessToken)
	assert.Equal(t, TokenPair{AccessToken: "a1", RefreshToken: "r1"}, c.Tokens())
}

func TestGuest_HasNoRefreshToken(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusCreated, map[string]any{"accessToken": "g1", "user": map[string]any{"id": "guest:1", "guest": true}})
	})
	c.SetTokens("old", "old-refresh")

	res, err := c.Guest(context.Background())
	require.NoError(t, err)
	assert.True(t, res.User.Guest)
	assert.Equal(t, TokenPair{AccessToken: "g1"}, c.Tokens())
}

func TestStart_SendsBearer(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		writeJSON(w, http.StatusOK, map[string]any{"message": "What happened?", "shouldFinalize": false, "entryId": "e1"})
	})
	c.SetTokens("tok", "")

	reply, err := c.Start(context.Background(), "I missed the train")
	require.NoError(t, err)
	assert.Equal(t, &Reply{Message: "What happened?", EntryID: "e1"}, reply)
}

func TestErrors_AreTyped(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/entry/missing":
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "not_found", "message": "gone"})
		case "/api/conversation/start":
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": "safety_concern", "message": "please reach out", "resources": []string{"hotline"}})
		default:
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized", "message": "invalid token"})
		}
	})
	c.SetTokens("tok", "ref")
	ctx := context.Background()

	_, err := c.Entry(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = c.Start(ctx, "x")
	resources, ok := IsSafetyConcern(err)
	assert.True(t, ok)
	assert.Equal(t, []string{"hotline"}, resources)

	// an invalid (not expired) token is not refreshed
	_, err = c.Grows(ctx)
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.Equal(t, "ref", c.Tokens().RefreshToken)
}

func TestDo_RefreshesExpiredTokenOnce(t *testing.T) {
	var calls, refreshes atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/auth/refresh":
			refreshes.Add(1)
			var body map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "r1", body["refreshToken"])
			writeJSON(w, http.StatusOK, map[string]string{"accessToken": "a2", "refreshToken": "r2"})
		case "/api/grows":
			calls.Add(1)
			if r.Header.Get("Authorization") != "Bearer a2" {
				writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized", "message": "token expired"})
				return
			}
			writeJSON(w, http.StatusOK, []map[string]any{{"id": "e1", "isCompleted": true}})
		}
	})
	c.SetTokens("a1", "r1")

	var persisted TokenPair
	c.OnRefresh(func(p TokenPair) { persisted = p })

	list, err := c.Grows(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, int32(1), refreshes.Load())
	assert.Equal(t, TokenPair{AccessToken: "a2", RefreshToken: "r2"}, persisted)
}

func TestDo_RefreshFailureReturnsOriginalError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/auth/refresh" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized", "message": "refresh token expired"})
			return
		}
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized", "message": "token expired"})
	})
	c.SetTokens("a1", "r1")

	_, err := c.Analytics(context.Background())
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "token expired", apiErr.Message)
}

func TestDelete_And_UpdateHint(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodDelete && r.URL.Path == "/api/entry/e1":
			writeJSON(w, http.StatusOK, map[string]bool{"success": true})
		case r.Method == http.MethodDelete && r.URL.Path == "/api/entry/gone":
			writeJSON(w, http.StatusOK, map[string]bool{"success": false})
		case r.Method == http.MethodPatch && r.URL.Path == "/api/entry/e1/hint":
			var body map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			writeJSON(w, http.StatusOK, map[string]any{"id": "e1", "hintStatus": body["hintStatus"]})
		default:
			http.NotFound(w, r)
		}
	})
	ctx := context.Background()

	ok, err := c.Delete(ctx, "e1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = c.Delete(ctx, "gone")
	require.NoError(t, err)
	assert.False(t, ok)

	e, err := c.UpdateHint(ctx, "e1", "tried")
	require.NoError(t, err)
	assert.Equal(t, "tried", e.HintStatus)
}

func TestUnavailable(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	url := ts.URL
	ts.Close()

	c := New(url, time.Second)
	_, err := c.Login(context.Background(), "a@b.c", "password")
	assert.ErrorIs(t, err, ErrUnavailable)
}
