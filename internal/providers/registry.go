package providers

import (
	"ai_chat/internal/models"
)

// Entry pairs a provider descriptor with the adapter bound to it
type Entry struct {
	Provider models.Provider
	Adapter  Adapter
}

// Registry is the fixed set of completion providers. Adapters are resolved
// once in NewRegistry; the registry is read-only afterwards.
type Registry struct {
	entries []Entry
	byID    map[models.ProviderID]Adapter
}

// DefaultProviders returns the built-in descriptors in registry order.
func DefaultProviders() []models.Provider {
	return []models.Provider{
		{
			ID:            models.ProviderOpenAI,
			Name:          "OpenAI",
			Endpoint:      openAIDefaultEndpoint,
			Model:         openAIDefaultModel,
			Priority:      0,
			CredentialKey: "OPENAI_API_KEY",
		},
		{
			ID:            models.ProviderGoogleAI,
			Name:          "Google AI Studio",
			Endpoint:      googleEndpointFor(googleDefaultModel),
			Model:         googleDefaultModel,
			Priority:      1,
			CredentialKey: "GOOGLE_AI_API_KEY",
		},
		{
			ID:            models.ProviderOpenRouter,
			Name:          "OpenRouter",
			Endpoint:      openRouterDefaultEndpoint,
			Model:         openRouterDefaultModel,
			Priority:      2,
			CredentialKey: "OPENROUTER_API_KEY",
		},
		{
			ID:            models.ProviderAnthropic,
			Name:          "Anthropic",
			Endpoint:      anthropicDefaultEndpoint,
			Model:         anthropicDefaultModel,
			Priority:      3,
			CredentialKey: "ANTHROPIC_API_KEY",
		},
	}
}

// NewRegistry builds the four adapters with opts applied
func NewRegistry(opts Options) *Registry {
	t := newTransport(opts.HTTPClient, opts.Timeout)

	r := &Registry{byID: make(map[models.ProviderID]Adapter)}
	for _, p := range DefaultProviders() {
		ov := opts.Overrides[p.ID]
		if ov.Model != "" {
			p.Model = ov.Model
			if p.ID == models.ProviderGoogleAI {
				p.Endpoint = googleEndpointFor(p.Model)
			}
		}
		if ov.Endpoint != "" {
			p.Endpoint = ov.Endpoint
		}

		var adapter Adapter
		switch p.ID {
		case models.ProviderOpenAI:
			adapter = newOpenAIAdapter(p, orDefault(ov.ValidateURL, openAIDefaultValidateURL), t)
		case models.ProviderGoogleAI:
			adapter = newGoogleAdapter(p, orDefault(ov.ValidateURL, googleDefaultValidateURL), !opts.DisableSafetySettings, t)
		case models.ProviderOpenRouter:
			adapter = newOpenRouterAdapter(p, orDefault(ov.ValidateURL, openRouterDefaultValidateURL), opts.OpenRouterReferer, opts.OpenRouterTitle, t)
		case models.ProviderAnthropic:
			adapter = newAnthropicAdapter(p, orDefault(ov.ValidateURL, p.Endpoint), t)
		}

		r.entries = append(r.entries, Entry{Provider: p, Adapter: adapter})
		r.byID[p.ID] = adapter
	}

	return r
}

// ListProviders returns a copy of the descriptors in registry order
func (r *Registry) ListProviders() []models.Provider {
	out := make([]models.Provider, len(r.entries))
	for i, e := range r.entries {
		out[i] = e.Provider
	}
	return out
}

// Entries returns a copy of the provider/adapter pairs in registry order
func (r *Registry) Entries() []Entry {
	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}

// Adapter returns the adapter bound to id
func (r *Registry) Adapter(id models.ProviderID) (Adapter, bool) {
	a, ok := r.byID[id]
	return a, ok
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
