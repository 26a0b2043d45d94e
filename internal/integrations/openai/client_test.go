package openai

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"portfolio-functions/internal/domain"
)

// fakeKeys is a KeySource stub that counts lookups.
type fakeKeys struct {
	key   string
	err   error
	calls int
}

func (f *fakeKeys) APIKey(context.Context) (string, error) {
	f.calls++
	return f.key, f.err
}

var testParams = domain.CompletionParams{Model: "llama-mock", Temperature: 0.7, MaxTokens: 500, TopP: 1}

func TestChatURL(t *testing.T) {
	cases := []struct {
		base string
		want string
	}{
		{"https://api.groq.com/openai/v1", "https://api.groq.com/openai/v1/chat/completions"},
		{"https://api.openai.com/v1/", "https://api.openai.com/v1/chat/completions"},
		{"http://localhost:8080", "http://localhost:8080/v1/chat/completions"},
		{"", "https://api.groq.com/openai/v1/chat/completions"},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, chatURL(tc.base), "base=%q", tc.base)
	}
}

func TestNewClient_NilKeySource(t *testing.T) {
	_, err := NewClient(nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "nil")
}

func TestNewClient_Defaults(t *testing.T) {
	c, err := NewClient(StaticKey("k"), WithBaseURL("  "))
	require.NoError(t, err)
	require.Equal(t, DefaultBaseURL, c.baseURL)
}

func TestStaticKey(t *testing.T) {
	key, err := StaticKey(" gsk-1 ").APIKey(context.Background())
	require.NoError(t, err)
	require.Equal(t, "gsk-1", key)

	_, err = StaticKey("").APIKey(context.Background())
	require.ErrorIs(t, err, ErrMissingAPIKey)
}

func TestResolveAPIKey_CachedAfterSuccess(t *testing.T) {
	keys := &fakeKeys{key: "gsk-from-ssm"}
	c, err := NewClient(keys)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		key, err := c.resolveAPIKey(context.Background())
		require.NoError(t, err)
		require.Equal(t, "gsk-from-ssm", key)
	}
	require.Equal(t, 1, keys.calls)
}

func TestResolveAPIKey_RetriedAfterFailure(t *testing.T) {
	keys := &fakeKeys{err: errors.New("ssm unavailable")}
	c, err := NewClient(keys)
	require.NoError(t, err)

	_, err = c.resolveAPIKey(context.Background())
	require.Error(t, err)

	keys.err = nil
	keys.key = "gsk-late"
	key, err := c.resolveAPIKey(context.Background())
	require.NoError(t, err)
	require.Equal(t, "gsk-late", key)
	require.Equal(t, 2, keys.calls)
}

func TestResolveAPIKey_BlankKey(t *testing.T) {
	c, err := NewClient(&fakeKeys{key: " "})
	require.NoError(t, err)
	_, err = c.resolveAPIKey(context.Background())
	require.ErrorIs(t, err, ErrMissingAPIKey)
}

func newTestClient(t *testing.T, srv *httptest.Server) *Client {
	t.Helper()
	c, err := NewClient(
		StaticKey("gsk-test"),
		WithBaseURL(srv.URL),
		WithHTTPClient(&http.Client{Timeout: 2 * time.Second}),
	)
	require.NoError(t, err)
	return c
}

func TestClient_Chat_HappyPath(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/chat/completions", r.URL.Path)
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "Bearer gsk-test", r.Header.Get("Authorization"))
		reqBody, err := io.ReadAll(r.Body)
		require.NoError(t, err)

		var got map[string]any
		require.NoError(t, json.Unmarshal(reqBody, &got))
		require.Equal(t, "llama-mock", got["model"])
		require.InDelta(t, 0.7, got["temperature"], 1e-9)
		require.InDelta(t, 500, got["max_tokens"], 1e-9)
		require.InDelta(t, 1, got["top_p"], 1e-9)
		require.Equal(t, false, got["stream"])

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(200)
		_, _ = w.Write([]byte(`{
			"id": "chatcmpl-123",
			"object": "chat.completion",
			"created": 1670000000,
			"choices": [{
				"index": 0,
				"message": { "role": "assistant", "content": "Hello from mock" }
			}]
		}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	resp, err := c.Chat(context.Background(), testParams, []domain.ChatMessage{{Role: "user", Content: "hi"}})
	require.NoError(t, err)
	require.Equal(t, "Hello from mock", resp)
}

func TestClient_Chat_MissingKey(t *testing.T) {
	c, err := NewClient(StaticKey(""))
	require.NoError(t, err)
	_, err = c.Chat(context.Background(), testParams, nil)
	require.ErrorIs(t, err, ErrMissingAPIKey)
}

func TestClient_Chat_StatusErrors(t *testing.T) {
	for _, status := range []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusTooManyRequests, http.StatusInternalServerError} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"error":"nope"}`))
		}))

		c := newTestClient(t, srv)
		_, err := c.Chat(context.Background(), testParams, []domain.ChatMessage{{Role: "user", Content: "hi"}})
		srv.Close()

		require.Error(t, err)
		require.Contains(t, err.Error(), "unexpected status")
		var statusErr *HTTPStatusError
		require.ErrorAs(t, err, &statusErr)
		require.Equal(t, status, statusErr.HTTPStatusCode())
	}
}

func TestClient_Chat_InvalidJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(200)
		_, _ = w.Write([]byte(`not-a-json`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	_, err := c.Chat(context.Background(), testParams, nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "decode response")
}

func TestClient_Chat_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(200)
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	c.httpClient = &http.Client{Timeout: 50 * time.Millisecond}
	_, err := c.Chat(context.Background(), testParams, nil)
	require.Error(t, err)
}

func TestClient_Chat_NetworkError(t *testing.T) {
	c, err := NewClient(StaticKey("gsk-test"))
	require.NoError(t, err)
	c.baseURL = "http://127.0.0.1:1"
	c.httpClient = &http.Client{Timeout: 100 * time.Millisecond}

	_, err = c.Chat(context.Background(), testParams, nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "request failed")
}

func TestClient_Chat_EmptyModel(t *testing.T) {
	c, err := NewClient(StaticKey("gsk-test"))
	require.NoError(t, err)
	_, err = c.Chat(context.Background(), domain.CompletionParams{}, nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "model")
}

func TestClient_Chat_NoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(200)
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	_, err := c.Chat(context.Background(), testParams, nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "no choices")
}
