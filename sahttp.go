// Package sahttp is a minimal HTTP/1.1 client that talks to peers over raw TCP
// sockets: it renders the request text itself, parses the reply as it streams
// in and follows redirects.
package sahttp

import (
	"context"

	"github.com/WhileEndless/go-sahttp/pkg/client"
	"github.com/WhileEndless/go-sahttp/pkg/endpoint"
	"github.com/WhileEndless/go-sahttp/pkg/errors"
	"github.com/WhileEndless/go-sahttp/pkg/timing"
)

// Version is the current version of the sahttp library
const Version = "1.0.0"

// Re-export key types for easier usage
type (
	// Client issues requests against one endpoint.
	Client = client.Client

	// Result is the outcome of one Get or Post.
	Result = client.Result

	// Option configures a Client.
	Option = client.Option

	// RequestOption configures a single call.
	RequestOption = client.RequestOption

	// ProgressFunc and ReceiveFunc are the streaming callbacks.
	ProgressFunc = client.ProgressFunc
	ReceiveFunc  = client.ReceiveFunc

	// Endpoint is a parsed URL.
	Endpoint = endpoint.Endpoint

	// Metrics captures timing information for an attempt.
	Metrics = timing.Metrics

	// Error represents a structured error with context information.
	Error = errors.Error
)

// Re-export error types for convenience
const (
	ErrorTypeDNS        = errors.ErrorTypeDNS
	ErrorTypeConnection = errors.ErrorTypeConnection
	ErrorTypeTimeout    = errors.ErrorTypeTimeout
	ErrorTypeProtocol   = errors.ErrorTypeProtocol
	ErrorTypeIO         = errors.ErrorTypeIO
	ErrorTypeValidation = errors.ErrorTypeValidation
	ErrorTypeParse      = errors.ErrorTypeParse
	ErrorTypeRedirect   = errors.ErrorTypeRedirect
)

// New parses rawURL and connects to it.
func New(ctx context.Context, rawURL string, opts ...Option) (*Client, error) {
	return client.New(ctx, rawURL, opts...)
}

// Get is a one-shot GET of rawURL.
func Get(ctx context.Context, rawURL string, opts []Option, reqOpts ...RequestOption) (*Result, error) {
	c, err := client.New(ctx, rawURL, opts...)
	if err != nil {
		return nil, err
	}
	defer c.Close()
	return c.Get(ctx, "", reqOpts...)
}

// ParseURL decomposes an absolute http URL.
func ParseURL(rawURL string) (Endpoint, error) {
	return endpoint.Parse(rawURL)
}

// IsTimeoutError checks if an error is a timeout error.
func IsTimeoutError(err error) bool {
	return errors.IsTimeoutError(err)
}

// GetErrorType returns the error type if it's a structured error.
func GetErrorType(err error) string {
	return string(errors.GetErrorType(err))
}
