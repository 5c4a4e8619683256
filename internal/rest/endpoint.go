package rest

import (
	"context"
	"encoding/json"
	"fmt"

	"restobject/internal/dai"
	"restobject/internal/future"
)

// Endpoint is a route or command result in the tree. Every method returns
// immediately; failures surface through Wait.
type Endpoint struct {
	client *Client
	ref    *dai.Reference
}

func (e *Endpoint) wrap(ref *dai.Reference) *Endpoint {
	return &Endpoint{client: e.client, ref: ref}
}

func (e *Endpoint) Reference() *dai.Reference { return e.ref }

func (e *Endpoint) Status() dai.Status { return e.ref.Status() }

// URL is the route this endpoint resolved to, empty while pending or when
// it holds data.
func (e *Endpoint) URL() string {
	u, _ := e.client.URL(e.ref)
	return u
}

// Route addresses p relative to this endpoint without sending a request.
func (e *Endpoint) Route(p string) *Endpoint {
	return e.wrap(e.ref.Call(CommandRoute, p, nil))
}

// PreventDefault marks the endpoint as a route to address, not data to fetch.
func (e *Endpoint) PreventDefault() *Endpoint {
	return e.wrap(e.ref.Call(CommandPreventDefault, "", nil))
}

func (e *Endpoint) Create(body any) *Endpoint {
	return e.wrap(e.ref.Call(CommandCreate, "", body))
}

// Read fetches the endpoint; params become the query string.
func (e *Endpoint) Read(params map[string]any) *Endpoint {
	var value any
	if params != nil {
		value = params
	}
	return e.wrap(e.ref.Call(CommandRead, "", value))
}

func (e *Endpoint) Update(body any) *Endpoint {
	return e.wrap(e.ref.Call(CommandUpdate, "", body))
}

func (e *Endpoint) Delete() *Endpoint {
	return e.wrap(e.ref.Call(CommandDelete, "", nil))
}

// Navigate addresses the child route key.
func (e *Endpoint) Navigate(key string) *Endpoint {
	return e.wrap(e.ref.Navigate(key))
}

// Path navigates through keys in order.
func (e *Endpoint) Path(keys ...string) *Endpoint {
	cur := e
	for _, key := range keys {
		cur = cur.Navigate(key)
	}
	return cur
}

// Assign updates the child route key with value.
func (e *Endpoint) Assign(key string, value any) *Endpoint {
	return e.wrap(e.ref.Assign(key, value))
}

// Invoke creates a record at this route from a single value.
func (e *Endpoint) Invoke(values ...any) *Endpoint {
	return e.wrap(e.ref.Invoke(values...))
}

// Remove deletes the child route key.
func (e *Endpoint) Remove(key string) *Endpoint {
	return e.wrap(e.ref.Remove(key))
}

// Wait blocks until the endpoint settles. Routes yield their reference,
// data commands yield the decoded response.
func (e *Endpoint) Wait(ctx context.Context) (any, error) {
	return e.ref.Wait(ctx)
}

// Decode waits and unmarshals the response into out.
func (e *Endpoint) Decode(ctx context.Context, out any) error {
	v, err := e.Wait(ctx)
	if err != nil {
		return err
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode response: %w", err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// Destroy releases the route held by this endpoint.
func (e *Endpoint) Destroy() *future.Future {
	return e.ref.Destroy()
}

// Deepest returns the most recently derived endpoint that is still pending.
func (e *Endpoint) Deepest() *Endpoint {
	return e.wrap(GetDeepestChild(e.ref))
}
