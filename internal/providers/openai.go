package providers

import (
	"context"
	"net/http"

	"ai_chat/internal/models"
)

const (
	openAIDefaultEndpoint    = "https://api.openai.com/v1/chat/completions"
	openAIDefaultValidateURL = "https://api.openai.com/v1/models"
	openAIDefaultModel       = "gpt-3.5-turbo"
)

// endpoint holds what every adapter needs to reach its service
type endpoint struct {
	provider    models.Provider
	validateURL string
	http        *transport
}

func (e *endpoint) ID() models.ProviderID {
	return e.provider.ID
}

func (e *endpoint) name() string {
	return e.provider.Name
}

// OpenAIAdapter speaks the OpenAI chat completions API
type OpenAIAdapter struct {
	endpoint
	auth Authenticator
}

func newOpenAIAdapter(p models.Provider, validateURL string, t *transport) *OpenAIAdapter {
	return &OpenAIAdapter{
		endpoint: endpoint{provider: p, validateURL: validateURL, http: t},
		auth:     NewBearerAuth(),
	}
}

// Invoke sends a chat completion request to OpenAI
func (a *OpenAIAdapter) Invoke(ctx context.Context, history []models.ChatTurn, message, credential string) (string, error) {
	if credential == "" {
		return "", missingCredential(a.name())
	}

	rep, err := a.http.do(ctx, a.name(), call{
		method:     http.MethodPost,
		url:        a.provider.Endpoint,
		body:       newChatCompletionRequest(a.provider.Model, history, message),
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
func (a *OpenAIAdapter) Validate(ctx context.Context, credential string) ValidationResult {
	return a.http.validate(ctx, a.name(), call{
		method:     http.MethodGet,
		url:        a.validateURL,
		auth:       a.auth,
		credential: credential,
	}, nil)
}

func (a *OpenAIAdapter) sealed() {}
