package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	defaultRequestTimeout = 60 * time.Second
	maxResponseBytes      = 4 << 20
	invalidKeyMessage     = "Invalid API key"
)

// transport is the HTTP plumbing shared by all adapters.
type transport struct {
	client *http.Client
}

func newTransport(client *http.Client, timeout time.Duration) *transport {
	if client == nil {
		if timeout <= 0 {
			timeout = defaultRequestTimeout
		}
		client = &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		}
	}
	return &transport{client: client}
}

type call struct {
	method     string
	url        string
	body       any
	headers    map[string]string
	auth       Authenticator
	credential string
}

type reply struct {
	status int
	body   []byte
}

func (r *reply) ok() bool {
	return r.status >= 200 && r.status < 300
}

// do performs one request. It never retries.
func (t *transport) do(ctx context.Context, name string, c call) (*reply, error) {
	var reader io.Reader
	if c.body != nil {
		data, err := json.Marshal(c.body)
		if err != nil {
			return nil, &ProviderError{Provider: name, Kind: KindParse, Message: "failed to marshal request", Err: err}
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, c.method, c.url, reader)
	if err != nil {
		return nil, networkError(name, err)
	}
	if c.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	authCtx, err := c.auth.Authenticate(ctx, c.credential)
	if err != nil {
		return nil, missingCredential(name)
	}
	if err := authCtx.ApplyToRequest(ctx, req); err != nil {
		return nil, networkError(name, err)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, networkError(name, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, networkError(name, err)
	}

	return &reply{status: resp.StatusCode, body: body}, nil
}

// validate runs a key test request. accept may widen the set of statuses
// that count as a valid key.
func (t *transport) validate(ctx context.Context, name string, c call, accept func(status int) bool) ValidationResult {
	if strings.TrimSpace(c.credential) == "" {
		return ValidationResult{Error: "API key is required"}
	}

	rep, err := t.do(ctx, name, c)
	if err != nil {
		var pe *ProviderError
		if errors.As(err, &pe) && pe.Message != "" {
			return ValidationResult{Error: pe.Message}
		}
		return ValidationResult{Error: err.Error()}
	}

	if rep.ok() || (accept != nil && accept(rep.status)) {
		return ValidationResult{Valid: true}
	}

	msg := remoteErrorMessage(rep.body)
	if msg == "" {
		msg = invalidKeyMessage
	}
	return ValidationResult{Error: msg}
}

// networkError drops the request URL from transport errors; Google carries
// the key in the query string.
func networkError(name string, err error) *ProviderError {
	var ue *url.Error
	if errors.As(err, &ue) {
		err = ue.Err
	}
	return &ProviderError{Provider: name, Kind: KindNetwork, Message: err.Error(), Err: err}
}

func httpStatusError(name string, rep *reply) *ProviderError {
	msg := remoteErrorMessage(rep.body)
	if msg == "" {
		msg = unknownRemoteError
	}
	return &ProviderError{Provider: name, Kind: KindHTTPStatus, StatusCode: rep.status, Message: msg}
}

// remoteErrorMessage extracts error.message (or a bare error string) from a
// JSON error body.
func remoteErrorMessage(body []byte) string {
	var envelope struct {
		Error json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil || len(envelope.Error) == 0 {
		return ""
	}

	var detail struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(envelope.Error, &detail); err == nil {
		return detail.Message
	}

	var plain string
	if err := json.Unmarshal(envelope.Error, &plain); err == nil {
		return plain
	}
	return ""
}
