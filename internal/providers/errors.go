package providers

import (
	"errors"
	"fmt"
)

// ErrMissingCredential is wrapped by ProviderError when no API key was supplied
var ErrMissingCredential = errors.New("API key not configured")

// ErrorKind classifies a provider failure
type ErrorKind string

const (
	KindCredentialMissing ErrorKind = "credential_missing"
	KindHTTPStatus        ErrorKind = "http_status"
	KindParse             ErrorKind = "parse"
	KindNetwork           ErrorKind = "network"
)

const unknownRemoteError = "Unknown error"

// ProviderError is returned by every adapter failure.
type ProviderError struct {
	Provider   string // display name
	Kind       ErrorKind
	StatusCode int
	Message    string
	Err        error
}

func (e *ProviderError) Error() string {
	switch e.Kind {
	case KindHTTPStatus:
		return fmt.Sprintf("%s API error: %d - %s", e.Provider, e.StatusCode, e.Message)
	case KindCredentialMissing:
		return fmt.Sprintf("%s API key not configured", e.Provider)
	case KindParse:
		return fmt.Sprintf("%s API error: invalid response: %s", e.Provider, e.Message)
	default:
		return fmt.Sprintf("%s API error: request failed: %s", e.Provider, e.Message)
	}
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// IsKind reports whether err is a ProviderError of the given kind
func IsKind(err error, kind ErrorKind) bool {
	var pe *ProviderError
	return errors.As(err, &pe) && pe.Kind == kind
}

func missingCredential(name string) *ProviderError {
	return &ProviderError{Provider: name, Kind: KindCredentialMissing, Err: ErrMissingCredential}
}

func parseError(name, msg string) *ProviderError {
	return &ProviderError{Provider: name, Kind: KindParse, Message: msg}
}
