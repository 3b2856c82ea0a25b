package providers

import (
	"context"
	"fmt"
	"net/http"
)

// Authenticator places a credential onto an outgoing request
type Authenticator interface {
	Authenticate(ctx context.Context, credential string) (AuthContext, error)
}

// AuthContext holds authentication information for a single request
type AuthContext interface {
	ApplyToRequest(ctx context.Context, req *http.Request) error
}

// SimpleAPIKeyAuth implements header-based API key authentication
type SimpleAPIKeyAuth struct {
	headerName string // e.g., "Authorization"
	prefix     string // e.g., "Bearer "
}

// NewSimpleAPIKeyAuth creates a header authenticator
func NewSimpleAPIKeyAuth(headerName, prefix string) *SimpleAPIKeyAuth {
	if headerName == "" {
		headerName = "Authorization"
	}
	return &SimpleAPIKeyAuth{
		headerName: headerName,
		prefix:     prefix,
	}
}

// NewBearerAuth creates an Authorization: Bearer authenticator
func NewBearerAuth() *SimpleAPIKeyAuth {
	return NewSimpleAPIKeyAuth("Authorization", "Bearer ")
}

// Authenticate returns an auth context with the API key
func (a *SimpleAPIKeyAuth) Authenticate(ctx context.Context, credential string) (AuthContext, error) {
	if credential == "" {
		return nil, ErrMissingCredential
	}
	return &headerAuthContext{
		value:      a.prefix + credential,
		headerName: a.headerName,
	}, nil
}

type headerAuthContext struct {
	value      string
	headerName string
}

func (c *headerAuthContext) ApplyToRequest(ctx context.Context, req *http.Request) error {
	req.Header.Set(c.headerName, c.value)
	return nil
}

// QueryAPIKeyAuth passes the API key as a URL query parameter (Google style)
type QueryAPIKeyAuth struct {
	param string
}

// NewQueryAPIKeyAuth creates a query-parameter authenticator
func NewQueryAPIKeyAuth(param string) *QueryAPIKeyAuth {
	if param == "" {
		param = "key"
	}
	return &QueryAPIKeyAuth{param: param}
}

// Authenticate returns an auth context with the API key
func (a *QueryAPIKeyAuth) Authenticate(ctx context.Context, credential string) (AuthContext, error) {
	if credential == "" {
		return nil, ErrMissingCredential
	}
	return &queryAuthContext{param: a.param, value: credential}, nil
}

type queryAuthContext struct {
	param string
	value string
}

func (c *queryAuthContext) ApplyToRequest(ctx context.Context, req *http.Request) error {
	if req.URL == nil {
		return fmt.Errorf("request has no URL")
	}
	q := req.URL.Query()
	q.Set(c.param, c.value)
	req.URL.RawQuery = q.Encode()
	return nil
}
