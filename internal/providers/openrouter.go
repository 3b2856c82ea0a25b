package providers

import (
	"context"
	"net/http"

	"ai_chat/internal/models"
)

const (
	openRouterDefaultEndpoint    = "https://openrouter.ai/api/v1/chat/completions"
	openRouterDefaultValidateURL = "https://openrouter.ai/api/v1/models"
	openRouterDefaultModel       = "deepseek/deepseek-r1-0528:free"
	DefaultOpenRouterTitle       = "AI Chat Application"
	DefaultOpenRouterReferer     = "http://localhost:8080"
)

// OpenRouterAdapter speaks OpenRouter's OpenAI-compatible API. OpenRouter
// asks callers to identify themselves with a referer and a title.
type OpenRouterAdapter struct {
	endpoint
	auth    Authenticator
	referer string
	title   string
}

func newOpenRouterAdapter(p models.Provider, validateURL, referer, title string, t *transport) *OpenRouterAdapter {
	if title == "" {
		title = DefaultOpenRouterTitle
	}
	if referer == "" {
		referer = DefaultOpenRouterReferer
	}
	return &OpenRouterAdapter{
		endpoint: endpoint{provider: p, validateURL: validateURL, http: t},
		auth:     NewBearerAuth(),
		referer:  referer,
		title:    title,
	}
}

func (a *OpenRouterAdapter) headers() map[string]string {
	return map[string]string{
		"HTTP-Referer": a.referer,
		"X-Title":      a.title,
	}
}

// Invoke sends a chat completion request to OpenRouter
func (a *OpenRouterAdapter) Invoke(ctx context.Context, history []models.ChatTurn, message, credential string) (string, error) {
	if credential == "" {
		return "", missingCredential(a.name())
	}

	rep, err := a.http.do(ctx, a.name(), call{
		method:     http.MethodPost,
		url:        a.provider.Endpoint,
		body:       newChatCompletionRequest(a.provider.Model, history, message),
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

	return parseChatCompletion(a.name(), rep.body)
}

// Validate lists models with the key
func (a *OpenRouterAdapter) Validate(ctx context.Context, credential string) ValidationResult {
	return a.http.validate(ctx, a.name(), call{
		method:     http.MethodGet,
		url:        a.validateURL,
		auth:       a.auth,
		credential: credential,
	}, nil)
}

func (a *OpenRouterAdapter) sealed() {}
