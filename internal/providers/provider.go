package providers

import (
	"context"
	"net/http"
	"time"

	"ai_chat/internal/models"
)

const (
	defaultMaxTokens   = 1000
	defaultTemperature = 0.7
)

// Adapter is implemented by each concrete completion provider. The set is
// closed: only adapters defined in this package satisfy it.
type Adapter interface {
	// ID returns the provider identifier this adapter speaks for
	ID() models.ProviderID

	// Invoke sends history plus the new user message and returns the reply text.
	// Failures are always *ProviderError.
	Invoke(ctx context.Context, history []models.ChatTurn, message, credential string) (string, error)

	// Validate checks whether credential is accepted by the remote service
	Validate(ctx context.Context, credential string) ValidationResult

	sealed()
}

// ValidationResult is the outcome of a key test
type ValidationResult struct {
	Valid bool   `json:"valid"`
	Error string `json:"error,omitempty"`
}

// Options configures the adapters built by NewRegistry.
type Options struct {
	// Overrides replaces the default endpoint or model of a provider
	Overrides map[models.ProviderID]Override

	// HTTPClient is shared by all adapters; nil means a client with Timeout
	HTTPClient *http.Client
	Timeout    time.Duration

	// OpenRouterReferer and OpenRouterTitle identify the calling application
	OpenRouterReferer string
	OpenRouterTitle   string

	// DisableSafetySettings omits the Google safety thresholds
	DisableSafetySettings bool
}

// Override carries per-provider endpoint settings. Empty fields keep defaults.
type Override struct {
	Endpoint string
	Model    string
	// ValidateURL is the base used by key tests (models listing or messages)
	ValidateURL string
}
