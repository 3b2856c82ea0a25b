package providers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ai_chat/internal/models"
)

type capturedRequest struct {
	method string
	path   string
	query  string
	header http.Header
	body   map[string]any
}

// newTestServer answers every request with status/body and records the last request.
func newTestServer(t *testing.T, status int, body string) (*httptest.Server, *capturedRequest) {
	t.Helper()
	captured := &capturedRequest{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured.method = r.Method
		captured.path = r.URL.Path
		captured.query = r.URL.RawQuery
		captured.header = r.Header.Clone()
		captured.body = nil
		if data, _ := io.ReadAll(r.Body); len(data) > 0 {
			_ = json.Unmarshal(data, &captured.body)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, captured
}

func testRegistry(baseURL string) *Registry {
	return NewRegistry(Options{
		Overrides: map[models.ProviderID]Override{
			models.ProviderOpenAI:     {Endpoint: baseURL + "/openai/chat", ValidateURL: baseURL + "/openai/models"},
			models.ProviderGoogleAI:   {Endpoint: baseURL + "/google/generate", ValidateURL: baseURL + "/google/models"},
			models.ProviderOpenRouter: {Endpoint: baseURL + "/openrouter/chat", ValidateURL: baseURL + "/openrouter/models"},
			models.ProviderAnthropic:  {Endpoint: baseURL + "/anthropic/messages"},
		},
		OpenRouterReferer: "http://localhost:5173",
	})
}

func adapterFor(t *testing.T, r *Registry, id models.ProviderID) Adapter {
	t.Helper()
	a, ok := r.Adapter(id)
	require.True(t, ok)
	return a
}

var sampleHistory = []models.ChatTurn{
	{Role: models.RoleUser, Content: "first question"},
	{Role: models.RoleAssistant, Content: "first answer"},
}

func TestOpenRouterAdapter_DefaultIdentity(t *testing.T) {
	srv, captured := newTestServer(t, http.StatusOK, `{"choices":[{"message":{"content":"R"}}]}`)
	r := NewRegistry(Options{
		Overrides: map[models.ProviderID]Override{models.ProviderOpenRouter: {Endpoint: srv.URL}},
	})

	_, err := adapterFor(t, r, models.ProviderOpenRouter).Invoke(context.Background(), nil, "hi", "sk-or-test")
	require.NoError(t, err)
	assert.Equal(t, DefaultOpenRouterReferer, captured.header.Get("HTTP-Referer"))
	assert.Equal(t, DefaultOpenRouterTitle, captured.header.Get("X-Title"))
}

func TestOpenAIAdapter_Invoke(t *testing.T) {
	srv, captured := newTestServer(t, http.StatusOK, `{"choices":[{"message":{"content":"X"}}]}`)
	a := adapterFor(t, testRegistry(srv.URL), models.ProviderOpenAI)

	text, err := a.Invoke(context.Background(), sampleHistory, "next", "sk-test")
	require.NoError(t, err)
	assert.Equal(t, "X", text)

	assert.Equal(t, http.MethodPost, captured.method)
	assert.Equal(t, "/openai/chat", captured.path)
	assert.Equal(t, "Bearer sk-test", captured.header.Get("Authorization"))
	assert.Equal(t, "gpt-3.5-turbo", captured.body["model"])
	assert.EqualValues(t, 1000, captured.body["max_tokens"])
	assert.EqualValues(t, 0.7, captured.body["temperature"])

	messages := captured.body["messages"].([]any)
	require.Len(t, messages, 3)
	last := messages[2].(map[string]any)
	assert.Equal(t, "user", last["role"])
	assert.Equal(t, "next", last["content"])
	assert.Equal(t, "assistant", messages[1].(map[string]any)["role"])
}

func TestGoogleAdapter_Invoke(t *testing.T) {
	srv, captured := newTestServer(t, http.StatusOK, `{"candidates":[{"content":{"parts":[{"text":"G"}]}}]}`)
	a := adapterFor(t, testRegistry(srv.URL), models.ProviderGoogleAI)

	text, err := a.Invoke(context.Background(), sampleHistory, "next", "AIza-test")
	require.NoError(t, err)
	assert.Equal(t, "G", text)

	assert.Equal(t, "key=AIza-test", captured.query)
	assert.Empty(t, captured.header.Get("Authorization"))

	contents := captured.body["contents"].([]any)
	require.Len(t, contents, 3)
	assert.Equal(t, "user", contents[0].(map[string]any)["role"])
	assert.Equal(t, "model", contents[1].(map[string]any)["role"])
	lastParts := contents[2].(map[string]any)["parts"].([]any)
	assert.Equal(t, "next", lastParts[0].(map[string]any)["text"])

	cfg := captured.body["generationConfig"].(map[string]any)
	assert.EqualValues(t, 0.7, cfg["temperature"])
	assert.EqualValues(t, 40, cfg["topK"])
	assert.EqualValues(t, 0.95, cfg["topP"])
	assert.EqualValues(t, 1000, cfg["maxOutputTokens"])

	safety := captured.body["safetySettings"].([]any)
	assert.Len(t, safety, 4)
	assert.Equal(t, "BLOCK_MEDIUM_AND_ABOVE", safety[0].(map[string]any)["threshold"])
}

func TestGoogleAdapter_SafetyDisabled(t *testing.T) {
	srv, captured := newTestServer(t, http.StatusOK, `{"candidates":[{"content":{"parts":[{"text":"G"}]}}]}`)
	r := NewRegistry(Options{
		Overrides:             map[models.ProviderID]Override{models.ProviderGoogleAI: {Endpoint: srv.URL}},
		DisableSafetySettings: true,
	})

	_, err := adapterFor(t, r, models.ProviderGoogleAI).Invoke(context.Background(), nil, "hi", "k")
	require.NoError(t, err)
	_, present := captured.body["safetySettings"]
	assert.False(t, present)
}

func TestOpenRouterAdapter_Invoke(t *testing.T) {
	srv, captured := newTestServer(t, http.StatusOK, `{"choices":[{"message":{"content":"R"}}]}`)
	a := adapterFor(t, testRegistry(srv.URL), models.ProviderOpenRouter)

	text, err := a.Invoke(context.Background(), nil, "hi", "sk-or-test")
	require.NoError(t, err)
	assert.Equal(t, "R", text)

	assert.Equal(t, "Bearer sk-or-test", captured.header.Get("Authorization"))
	assert.Equal(t, "http://localhost:5173", captured.header.Get("HTTP-Referer"))
	assert.Equal(t, "AI Chat Application", captured.header.Get("X-Title"))
	assert.Equal(t, "deepseek/deepseek-r1-0528:free", captured.body["model"])
}

func TestAnthropicAdapter_Invoke(t *testing.T) {
	srv, captured := newTestServer(t, http.StatusOK, `{"content":[{"text":"Y"}]}`)
	a := adapterFor(t, testRegistry(srv.URL), models.ProviderAnthropic)

	text, err := a.Invoke(context.Background(), sampleHistory, "next", "sk-ant-test")
	require.NoError(t, err)
	assert.Equal(t, "Y", text)

	assert.Equal(t, "sk-ant-test", captured.header.Get("x-api-key"))
	assert.Equal(t, "2023-06-01", captured.header.Get("anthropic-version"))
	assert.Equal(t, "claude-3-haiku-20240307", captured.body["model"])
	assert.EqualValues(t, 1000, captured.body["max_tokens"])
	_, hasTemperature := captured.body["temperature"]
	assert.False(t, hasTemperature)
	assert.Len(t, captured.body["messages"].([]any), 3)
}

func TestAdapters_HTTPStatusError(t *testing.T) {
	srv, _ := newTestServer(t, http.StatusTooManyRequests, `{"error":{"message":"Rate limit reached"}}`)
	r := testRegistry(srv.URL)

	for _, id := range models.ProviderIDs() {
		t.Run(string(id), func(t *testing.T) {
			_, err := adapterFor(t, r, id).Invoke(context.Background(), nil, "hi", "key")
			require.Error(t, err)

			var pe *ProviderError
			require.True(t, errors.As(err, &pe))
			assert.Equal(t, KindHTTPStatus, pe.Kind)
			assert.Equal(t, http.StatusTooManyRequests, pe.StatusCode)
			assert.Equal(t, "Rate limit reached", pe.Message)
			assert.True(t, strings.HasSuffix(err.Error(), "API error: 429 - Rate limit reached"), err.Error())
		})
	}
}

func TestAdapters_HTTPStatusUnknownError(t *testing.T) {
	srv, _ := newTestServer(t, http.StatusInternalServerError, `not json`)
	_, err := adapterFor(t, testRegistry(srv.URL), models.ProviderOpenAI).Invoke(context.Background(), nil, "hi", "key")
	require.Error(t, err)
	assert.Equal(t, "OpenAI API error: 500 - Unknown error", err.Error())
}

func TestAdapters_ParseError(t *testing.T) {
	tests := []struct {
		id   models.ProviderID
		body string
	}{
		{models.ProviderOpenAI, `{"choices":[]}`},
		{models.ProviderGoogleAI, `{"candidates":[{"content":{"parts":[]}}]}`},
		{models.ProviderOpenRouter, `{"choices":[{"message":{"content":""}}]}`},
		{models.ProviderAnthropic, `{"id":"msg_1"}`},
	}

	for _, tt := range tests {
		t.Run(string(tt.id), func(t *testing.T) {
			srv, _ := newTestServer(t, http.StatusOK, tt.body)
			_, err := adapterFor(t, testRegistry(srv.URL), tt.id).Invoke(context.Background(), nil, "hi", "key")
			assert.True(t, IsKind(err, KindParse), "got %v", err)
		})
	}
}

func TestAdapters_MissingCredential(t *testing.T) {
	r := testRegistry("http://127.0.0.1:0")
	for _, id := range models.ProviderIDs() {
		_, err := adapterFor(t, r, id).Invoke(context.Background(), nil, "hi", "")
		assert.True(t, IsKind(err, KindCredentialMissing), "%s: got %v", id, err)
		assert.ErrorIs(t, err, ErrMissingCredential)
	}
}

func TestAdapters_NetworkErrorHidesKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	a := adapterFor(t, testRegistry(url), models.ProviderGoogleAI)
	_, err := a.Invoke(context.Background(), nil, "hi", "AIzaSecretValue")
	require.Error(t, err)
	assert.True(t, IsKind(err, KindNetwork), "got %v", err)
	assert.NotContains(t, err.Error(), "AIzaSecretValue")
}

func TestAnthropicAdapter_400DependsOnCallKind(t *testing.T) {
	srv, captured := newTestServer(t, http.StatusBadRequest, `{"error":{"message":"max_tokens too small"}}`)
	a := adapterFor(t, testRegistry(srv.URL), models.ProviderAnthropic)

	result := a.Validate(context.Background(), "sk-ant-test")
	assert.Equal(t, ValidationResult{Valid: true}, result)
	assert.EqualValues(t, 1, captured.body["max_tokens"])
	messages := captured.body["messages"].([]any)
	assert.Equal(t, "test", messages[0].(map[string]any)["content"])

	_, err := a.Invoke(context.Background(), nil, "hi", "sk-ant-test")
	var pe *ProviderError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, KindHTTPStatus, pe.Kind)
	assert.Equal(t, http.StatusBadRequest, pe.StatusCode)
}

func TestAdapters_Validate(t *testing.T) {
	t.Run("openai ok", func(t *testing.T) {
		srv, captured := newTestServer(t, http.StatusOK, `{"data":[]}`)
		result := adapterFor(t, testRegistry(srv.URL), models.ProviderOpenAI).Validate(context.Background(), "sk-test")
		assert.True(t, result.Valid)
		assert.Equal(t, http.MethodGet, captured.method)
		assert.Equal(t, "/openai/models", captured.path)
	})

	t.Run("google uses query key", func(t *testing.T) {
		srv, captured := newTestServer(t, http.StatusOK, `{"models":[]}`)
		result := adapterFor(t, testRegistry(srv.URL), models.ProviderGoogleAI).Validate(context.Background(), "AIza-test")
		assert.True(t, result.Valid)
		assert.Equal(t, "/google/models", captured.path)
		assert.Equal(t, "key=AIza-test", captured.query)
	})

	t.Run("remote message surfaced", func(t *testing.T) {
		srv, _ := newTestServer(t, http.StatusUnauthorized, `{"error":{"message":"Incorrect API key provided"}}`)
		result := adapterFor(t, testRegistry(srv.URL), models.ProviderOpenRouter).Validate(context.Background(), "bad")
		assert.Equal(t, ValidationResult{Error: "Incorrect API key provided"}, result)
	})

	t.Run("default message", func(t *testing.T) {
		srv, _ := newTestServer(t, http.StatusForbidden, ``)
		result := adapterFor(t, testRegistry(srv.URL), models.ProviderOpenAI).Validate(context.Background(), "bad")
		assert.Equal(t, ValidationResult{Error: "Invalid API key"}, result)
	})

	t.Run("anthropic 401 invalid", func(t *testing.T) {
		srv, _ := newTestServer(t, http.StatusUnauthorized, `{"error":{"message":"invalid x-api-key"}}`)
		result := adapterFor(t, testRegistry(srv.URL), models.ProviderAnthropic).Validate(context.Background(), "bad")
		assert.False(t, result.Valid)
		assert.Equal(t, "invalid x-api-key", result.Error)
	})

	t.Run("empty key", func(t *testing.T) {
		result := adapterFor(t, testRegistry("http://127.0.0.1:0"), models.ProviderOpenAI).Validate(context.Background(), "  ")
		assert.False(t, result.Valid)
		assert.NotEmpty(t, result.Error)
	})
}
