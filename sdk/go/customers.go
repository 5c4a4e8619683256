package restobject

import (
	"context"
	"errors"
	"strconv"
)

// Customer is the customers API record.
type Customer struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Company   string `json:"company,omitempty"`
	Age       int    `json:"age,omitempty"`
	Phone     string `json:"phone,omitempty"`
	Address   string `json:"address,omitempty"`
	CreatedAt string `json:"created_at,omitempty"`
	UpdatedAt string `json:"updated_at,omitempty"`
}

type CustomerSummary struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Event represents a log entry.
type Event struct {
	ID         int64          `json:"id"`
	TS         string         `json:"ts"`
	Type       string         `json:"type"`
	EntityKind string         `json:"entity_kind"`
	EntityID   string         `json:"entity_id"`
	ActorID    string         `json:"actor_id"`
	RequestID  string         `json:"request_id"`
	Payload    map[string]any `json:"payload"`
}

// PaginatedEvents wraps list responses with cursors.
type PaginatedEvents struct {
	Items      []Event `json:"items"`
	NextCursor string  `json:"next_cursor"`
}

type mutation struct {
	Success bool   `json:"success"`
	ID      string `json:"id"`
}

var ErrNotAccepted = errors.New("request not accepted")

func (c *Client) customers() *Endpoint {
	return c.Path("portal", "users", "customers")
}

func (c *Client) ListCustomers(ctx context.Context) ([]CustomerSummary, error) {
	var resp []CustomerSummary
	err := c.customers().Read(nil).Decode(ctx, &resp)
	return resp, err
}

func (c *Client) GetCustomer(ctx context.Context, id string) (Customer, error) {
	var resp Customer
	err := c.customers().Navigate(id).Read(nil).Decode(ctx, &resp)
	return resp, err
}

// CreateCustomer stores cust and returns its new id.
func (c *Client) CreateCustomer(ctx context.Context, cust Customer) (string, error) {
	var resp mutation
	if err := c.customers().Create(cust).Decode(ctx, &resp); err != nil {
		return "", err
	}
	if !resp.Success {
		return "", ErrNotAccepted
	}
	return resp.ID, nil
}

func (c *Client) UpdateCustomer(ctx context.Context, cust Customer) error {
	var resp mutation
	if err := c.customers().Navigate(cust.ID).Update(cust).Decode(ctx, &resp); err != nil {
		return err
	}
	if !resp.Success {
		return ErrNotAccepted
	}
	return nil
}

func (c *Client) DeleteCustomer(ctx context.Context, id string) error {
	var resp mutation
	if err := c.customers().Remove(id).Decode(ctx, &resp); err != nil {
		return err
	}
	if !resp.Success {
		return ErrNotAccepted
	}
	return nil
}

// EventsPage returns a paginated event listing.
func (c *Client) EventsPage(ctx context.Context, limit int, cursor string) (PaginatedEvents, error) {
	params := map[string]any{}
	if limit > 0 {
		params["limit"] = strconv.Itoa(limit)
	}
	if cursor != "" {
		params["cursor"] = cursor
	}
	var resp PaginatedEvents
	err := c.Path("events").Read(params).Decode(ctx, &resp)
	return resp, err
}
