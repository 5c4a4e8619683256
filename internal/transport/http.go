// Package transport sends rest requests as JSON over HTTP.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/golang/glog"
	"github.com/oklog/ulid/v2"

	"restobject/internal/rest"
)

const RequestIDHeader = "X-Request-Id"

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// TokenSource supplies bearer tokens; auth.Minter implements it.
type TokenSource interface {
	Token() (string, error)
}

// StaticToken is a TokenSource returning a fixed token.
type StaticToken string

func (s StaticToken) Token() (string, error) { return string(s), nil }

// HTTP is a rest.Transport over net/http.
type HTTP struct {
	BaseURL    string
	Tokens     TokenSource
	HTTPClient *http.Client
	Timeout    time.Duration
}

var _ rest.Transport = (*HTTP)(nil)

// New creates a transport with sane defaults.
func New(baseURL string) *HTTP {
	return &HTTP{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
	}
}

func (h *HTTP) Send(ctx context.Context, r rest.Request) (any, error) {
	method := r.Method
	if method == "" {
		method = rest.HTTPMethods[r.Command]
	}
	if method == "" {
		return nil, fmt.Errorf("no http method for command %q", r.Command)
	}
	target := h.base() + "/" + strings.TrimLeft(r.URL, "/")
	if len(r.Params) > 0 {
		sep := "?"
		if strings.Contains(target, "?") {
			sep = "&"
		}
		target += sep + encodeParams(r.Params)
	}

	var body io.Reader
	if r.Body != nil {
		var buf bytes.Buffer
		if err := json.NewEncoder(&buf).Encode(r.Body); err != nil {
			return nil, fmt.Errorf("encode body: %w", err)
		}
		body = &buf
	}
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json; charset=utf-8")
	}
	req.Header.Set("Accept", "application/json")
	requestID := ulid.Make().String()
	req.Header.Set(RequestIDHeader, requestID)
	if h.Tokens != nil {
		token, err := h.Tokens.Token()
		if err != nil {
			return nil, fmt.Errorf("bearer token: %w", err)
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	glog.V(1).Infof("[transport] %s %s id=%s", method, target, requestID)
	resp, err := h.client().Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return out, nil
}

func (h *HTTP) client() *http.Client {
	if h.HTTPClient != nil {
		return h.HTTPClient
	}
	return &http.Client{Timeout: h.Timeout}
}

func (h *HTTP) base() string {
	return strings.TrimRight(h.BaseURL, "/")
}

// encodeParams renders params in key order; slices repeat the key.
func encodeParams(params map[string]any) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	values := url.Values{}
	for _, k := range keys {
		switch v := params[k].(type) {
		case []any:
			for _, item := range v {
				values.Add(k, fmt.Sprint(item))
			}
		case []string:
			for _, item := range v {
				values.Add(k, item)
			}
		default:
			values.Add(k, fmt.Sprint(v))
		}
	}
	return values.Encode()
}
