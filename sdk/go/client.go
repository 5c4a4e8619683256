// Package restobject is the public client for REST APIs addressed as route
// trees, with typed helpers for the demo customers API.
package restobject

import (
	"context"
	"net/http"
	"time"

	"restobject/internal/auth"
	"restobject/internal/dai"
	"restobject/internal/rest"
	"restobject/internal/transport"
)

type (
	Endpoint = rest.Endpoint
	Status   = dai.Status
	APIError = transport.APIError
)

const (
	Pending   = dai.Pending
	Resolved  = dai.Resolved
	Rejected  = dai.Rejected
	Destroyed = dai.Destroyed
)

const DefaultRoot = "/example/api"

// Client is a route tree bound to one HTTP API.
type Client struct {
	rest *rest.Client
	root *Endpoint
}

type options struct {
	tokens     transport.TokenSource
	httpClient *http.Client
	timeout    time.Duration
	restOpts   []rest.Option
}

type Option func(*options)

// WithBearerToken sends a fixed token.
func WithBearerToken(token string) Option {
	return func(o *options) { o.tokens = transport.StaticToken(token) }
}

// WithSecret mints short-lived tokens for subject from an HS256 secret.
func WithSecret(secret, subject string) Option {
	return func(o *options) { o.tokens = &auth.Minter{Secret: secret, Subject: subject} }
}

func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.httpClient = c }
}

// WithTimeout bounds each request.
func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

// WithContext cancels all requests when ctx is done.
func WithContext(ctx context.Context) Option {
	return func(o *options) { o.restOpts = append(o.restOpts, rest.WithContext(ctx)) }
}

func WithCacheSize(n int) Option {
	return func(o *options) { o.restOpts = append(o.restOpts, rest.WithCacheSize(n)) }
}

// New creates a client for baseURL rooted at root ("/" when empty).
func New(baseURL, root string, opts ...Option) (*Client, error) {
	o := options{timeout: 10 * time.Second}
	for _, opt := range opts {
		opt(&o)
	}
	tr := transport.New(baseURL)
	tr.Tokens = o.tokens
	tr.HTTPClient = o.httpClient
	tr.Timeout = o.timeout
	rc, err := rest.New(tr, append(o.restOpts, rest.WithTimeout(o.timeout))...)
	if err != nil {
		return nil, err
	}
	ep, err := rc.Root(root)
	if err != nil {
		rc.Close()
		return nil, err
	}
	return &Client{rest: rc, root: ep}, nil
}

// Root is the endpoint every path starts from.
func (c *Client) Root() *Endpoint { return c.root }

// Path navigates from the root through keys.
func (c *Client) Path(keys ...string) *Endpoint { return c.root.Path(keys...) }

// Close cancels requests in flight.
func (c *Client) Close() { c.rest.Close() }
