// Package rest addresses a REST API as a tree of routes. Every route is a
// pooled resource, so commands against a route that is still being resolved
// are queued and replayed in order once it is known.
package rest

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"time"

	"github.com/golang/glog"

	"restobject/internal/dai"
	"restobject/internal/future"
	"restobject/internal/resource"
)

const (
	CommandCreate         = "create"
	CommandRead           = "read"
	CommandUpdate         = "update"
	CommandDelete         = "delete"
	CommandRoute          = "route"
	CommandPreventDefault = "preventDefault"
)

// RouteType is the resource type of route identities.
const RouteType = "route"

var (
	ErrBulkUnsupported = errors.New("invoke with several values is not supported")
	ErrUnknownRoute    = errors.New("route is not registered")
	ErrNoTransport     = errors.New("transport is required")
	ErrClosed          = errors.New("client is closed")
)

type Option func(*Client)

// WithContext sets the parent context of every request.
func WithContext(ctx context.Context) Option {
	return func(c *Client) { c.parent = ctx }
}

// WithTimeout bounds each request; zero means no limit.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// WithCacheSize sets how many route references are memoized. A negative
// size disables the cache.
func WithCacheSize(n int) Option {
	return func(c *Client) { c.cacheSize = n }
}

// Client binds a route pool and the REST command table to a Transport.
type Client struct {
	transport Transport
	routes    *resource.Pool
	dai       *dai.Interface
	timeout   time.Duration
	cacheSize int

	parent   context.Context
	ctx      context.Context
	cancel   context.CancelFunc
	inflight sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

func New(t Transport, opts ...Option) (*Client, error) {
	if t == nil {
		return nil, ErrNoTransport
	}
	resource.AddValidKinds(reflect.String)

	c := &Client{transport: t, routes: resource.NewPool(), parent: context.Background()}
	for _, opt := range opts {
		opt(c)
	}
	c.ctx, c.cancel = context.WithCancel(c.parent)

	daiOpts := []dai.Option{
		dai.WithStructural(true),
		dai.WithOwnPool(),
		dai.WithDestroyHandler(c.destroyRoute),
	}
	if c.cacheSize >= 0 {
		cache, err := dai.NewLRUCache(c.cacheSize)
		if err != nil {
			return nil, fmt.Errorf("create route cache: %w", err)
		}
		daiOpts = append(daiOpts, dai.WithCache(cache))
	}
	iface, err := dai.New(c.descriptors(), daiOpts...)
	if err != nil {
		return nil, fmt.Errorf("register rest commands: %w", err)
	}
	c.dai = iface
	return c, nil
}

func (c *Client) descriptors() []*dai.Descriptor {
	return []*dai.Descriptor{
		dai.NewDescriptor(CommandCreate, c.withRoute(c.handleCreate)),
		dai.NewDescriptor(CommandRead, c.withRoute(c.handleRead)),
		dai.NewDescriptor(CommandUpdate, c.withRoute(c.handleUpdate)),
		dai.NewDescriptor(CommandDelete, c.withRoute(c.handleDelete)),
		dai.NewDescriptor(CommandRoute, c.withRoute(c.handleRoute), dai.Cacheable()),
		dai.NewDescriptor(CommandPreventDefault, c.handlePreventDefault),
		dai.NewDescriptor(dai.CommandNavigate, c.withRoute(c.handleRoute), dai.Cacheable()),
		dai.NewDescriptor(dai.CommandAssign, c.withRoute(c.handleAssign)),
		dai.NewDescriptor(dai.CommandInvoke, c.withRoute(c.handleInvoke)),
		dai.NewDescriptor(dai.CommandRemove, c.withRoute(c.handleRemove)),
	}
}

// Root registers path as a route and returns its endpoint. An empty path
// means "/".
func (c *Client) Root(p string) (*Endpoint, error) {
	if p == "" {
		p = "/"
	}
	ident, err := c.routes.Set(p, RouteType)
	if err != nil {
		return nil, fmt.Errorf("register root route: %w", err)
	}
	ref, ok := c.dai.Parse(ident.Record().Envelope()).(*dai.Reference)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownRoute, p)
	}
	return &Endpoint{client: c, ref: ref}, nil
}

func (c *Client) Routes() *resource.Pool { return c.routes }

func (c *Client) Interface() *dai.Interface { return c.dai }

// URL returns the route a reference resolved to.
func (c *Client) URL(ref *dai.Reference) (string, bool) {
	rec, ok := ref.Record()
	if !ok || rec.PoolID != c.routes.ID() {
		return "", false
	}
	ident := c.routes.GetByID(rec.ID)
	if ident == nil {
		return "", false
	}
	u, ok := ident.Value().(string)
	return u, ok
}

// Close cancels requests in flight and waits for them to return. Commands
// dispatched afterwards are rejected with ErrClosed.
func (c *Client) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	c.cancel()
	c.inflight.Wait()
}

type routeHandler func(base string, parent *dai.Reference, pack *dai.Package, deferred *future.Deferred)

// withRoute resolves the parent's URL before calling fn.
func (c *Client) withRoute(fn routeHandler) dai.HandlerFunc {
	return func(parent *dai.Reference, pack *dai.Package, deferred *future.Deferred, _ *dai.Reference) {
		base, ok := c.URL(parent)
		if !ok {
			deferred.Reject(fmt.Errorf("%w: %s", ErrUnknownRoute, pack.Target))
			return
		}
		fn(base, parent, pack, deferred)
	}
}

func (c *Client) handleCreate(base string, _ *dai.Reference, pack *dai.Package, d *future.Deferred) {
	c.send(CommandCreate, base, pack.Value, nil, d)
}

func (c *Client) handleRead(base string, _ *dai.Reference, pack *dai.Package, d *future.Deferred) {
	params, _ := pack.Value.(map[string]any)
	c.send(CommandRead, base, nil, params, d)
}

func (c *Client) handleUpdate(base string, _ *dai.Reference, pack *dai.Package, d *future.Deferred) {
	c.send(CommandUpdate, base, pack.Value, nil, d)
}

func (c *Client) handleDelete(base string, _ *dai.Reference, _ *dai.Package, d *future.Deferred) {
	c.send(CommandDelete, base, nil, nil, d)
}

func (c *Client) handleRoute(base string, _ *dai.Reference, pack *dai.Package, d *future.Deferred) {
	ident, err := c.routes.Set(CompileURL(base, pack.Command), RouteType)
	if err != nil {
		d.Reject(err)
		return
	}
	d.Resolve(ident.Record().Envelope())
}

// handlePreventDefault settles with the parent's own route so the result is
// addressed as a route instead of being fetched.
func (c *Client) handlePreventDefault(parent *dai.Reference, pack *dai.Package, d *future.Deferred, _ *dai.Reference) {
	rec, ok := parent.Record()
	if !ok {
		d.Reject(fmt.Errorf("%w: %s", ErrUnknownRoute, pack.Target))
		return
	}
	d.Resolve(rec.Envelope())
}

func (c *Client) handleAssign(base string, _ *dai.Reference, pack *dai.Package, d *future.Deferred) {
	c.send(CommandUpdate, CompileURL(base, pack.Command), pack.Value, nil, d)
}

func (c *Client) handleInvoke(base string, _ *dai.Reference, pack *dai.Package, d *future.Deferred) {
	values, _ := pack.Value.([]any)
	switch len(values) {
	case 0:
		c.send(CommandCreate, base, nil, nil, d)
	case 1:
		c.send(CommandCreate, base, values[0], nil, d)
	default:
		d.Reject(fmt.Errorf("%w: got %d values", ErrBulkUnsupported, len(values)))
	}
}

func (c *Client) handleRemove(base string, _ *dai.Reference, pack *dai.Package, d *future.Deferred) {
	c.send(CommandDelete, CompileURL(base, pack.Command), nil, nil, d)
}

func (c *Client) destroyRoute(_ *dai.Reference, pack *dai.Package, d *future.Deferred, _ *dai.Reference) {
	c.routes.Remove(pack.Target)
	d.Resolve(nil)
}

// send runs the request on its own goroutine. Resources inside the body are
// replaced by their wire records and records in the response are parsed.
func (c *Client) send(command, url string, body any, params map[string]any, d *future.Deferred) {
	req := Request{Command: command, Method: HTTPMethods[command], URL: url, Params: params}
	if body != nil {
		req.Body = c.dai.ToJSON(body)
	}
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		d.Reject(fmt.Errorf("%s %s: %w", req.Method, req.URL, ErrClosed))
		return
	}
	c.inflight.Add(1)
	c.mu.Unlock()
	go func() {
		defer c.inflight.Done()
		ctx, cancel := c.requestContext()
		defer cancel()
		glog.V(2).Infof("[rest] %s %s", req.Method, req.URL)
		res, err := c.transport.Send(ctx, req)
		if err != nil {
			d.Reject(fmt.Errorf("%s %s: %w", req.Method, req.URL, err))
			return
		}
		d.Resolve(c.dai.Parse(res))
	}()
}

func (c *Client) requestContext() (context.Context, context.CancelFunc) {
	if c.timeout > 0 {
		return context.WithTimeout(c.ctx, c.timeout)
	}
	return context.WithCancel(c.ctx)
}

// GetDeepestChild follows the most recent pending child down to the leaf.
func GetDeepestChild(ref *dai.Reference) *dai.Reference {
	for {
		child := ref.LastChild()
		if child == nil {
			return ref
		}
		ref = child
	}
}
