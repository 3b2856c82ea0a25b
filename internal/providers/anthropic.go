package providers

import (
	"context"
	"encoding/json"
	"net/http"

	"ai_chat/internal/models"
)

const (
	anthropicDefaultEndpoint = "https://api.anthropic.com/v1/messages"
	anthropicDefaultModel    = "claude-3-haiku-20240307"
	anthropicVersion         = "2023-06-01"
)

type anthropicRequest struct {
	Model     string        `json:"model"`
	MaxTokens int           `json:"max_tokens"`
	Messages  []chatMessage `json:"messages"`
}

type anthropicResponse struct {
	Content []struct {
		Text string `json:"text"`
	} `json:"content"`
}

// AnthropicAdapter speaks the Anthropic messages API
type AnthropicAdapter struct {
	endpoint
	auth Authenticator
}

func newAnthropicAdapter(p models.Provider, validateURL string, t *transport) *AnthropicAdapter {
	return &AnthropicAdapter{
		endpoint: endpoint{provider: p, validateURL: validateURL, http: t},
		auth:     NewSimpleAPIKeyAuth("x-api-key", ""),
	}
}

func (a *AnthropicAdapter) headers() map[string]string {
	return map[string]string{"anthropic-version": anthropicVersion}
}

// Invoke sends a messages request. Any non-2xx status, 400 included, fails.
func (a *AnthropicAdapter) Invoke(ctx context.Context, history []models.ChatTurn, message, credential string) (string, error) {
	if credential == "" {
		return "", missingCredential(a.name())
	}

	rep, err := a.http.do(ctx, a.name(), call{
		method: http.MethodPost,
		url:    a.provider.Endpoint,
		body: anthropicRequest{
			Model:     a.provider.Model,
			MaxTokens: defaultMaxTokens,
			Messages:  buildChatMessages(history, message),
		},
		headers:    a.headers(),
		auth:       a.auth,
		credential: credential,
	})
	if err != nil {
		return "", err
	}
	if !rep.ok() {
		return "", httpStatusError(a.name(), rep)
	}

	var resp anthropicResponse
	if err := json.Unmarshal(rep.body, &resp); err != nil {
		return "", parseError(a.name(), "malformed JSON body")
	}
	if len(resp.Content) == 0 {
		return "", parseError(a.name(), "missing content[0].text")
	}
	if resp.Content[0].Text == "" {
		return "", parseError(a.name(), "empty completion")
	}
	return resp.Content[0].Text, nil
}

// Validate sends a one-token request. A 400 means the key passed
// authentication and only the payload was rejected, so it counts as valid.
func (a *AnthropicAdapter) Validate(ctx context.Context, credential string) ValidationResult {
	return a.http.validate(ctx, a.name(), call{
		method: http.MethodPost,
		url:    a.validateURL,
		body: anthropicRequest{
			Model:     a.provider.Model,
			MaxTokens: 1,
			Messages:  []chatMessage{{Role: string(models.RoleUser), Content: "test"}},
		},
		headers:    a.headers(),
		auth:       a.auth,
		credential: credential,
	}, func(status int) bool {
		return status == http.StatusBadRequest
	})
}

func (a *AnthropicAdapter) sealed() {}
