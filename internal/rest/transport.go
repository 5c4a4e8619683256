package rest

import (
	"context"
	"net/http"
)

// HTTPMethods maps the data commands to the HTTP verbs the demo API expects.
var HTTPMethods = map[string]string{
	CommandCreate: http.MethodPut,
	CommandRead:   http.MethodGet,
	CommandUpdate: http.MethodPost,
	CommandDelete: http.MethodDelete,
}

// Request is one data command ready to be sent.
type Request struct {
	Command string
	Method  string
	URL     string
	Body    any
	Params  map[string]any
}

// Transport executes requests. Send is called on its own goroutine and its
// result settles the command.
type Transport interface {
	Send(ctx context.Context, req Request) (any, error)
}

// TransportFunc adapts a function to Transport.
type TransportFunc func(ctx context.Context, req Request) (any, error)

func (f TransportFunc) Send(ctx context.Context, req Request) (any, error) { return f(ctx, req) }
