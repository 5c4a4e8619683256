package restobject_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"restobject/internal/app"
	"restobject/internal/db"
	"restobject/internal/server"
	restobject "restobject/sdk/go"
)

func newClient(t *testing.T, secret string, opts ...restobject.Option) *restobject.Client {
	t.Helper()
	conn, r, err := app.Open(context.Background(), db.Config{Workspace: t.TempDir()}, 2)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	handler, err := server.New(server.Config{Repo: r, Auth: server.AuthConfig{JWTSecret: secret}})
	require.NoError(t, err)
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := restobject.New(srv.URL, restobject.DefaultRoot, opts...)
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return c
}

func testCtx(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestCustomersRoundTrip(t *testing.T) {
	c := newClient(t, "s3cret", restobject.WithSecret("s3cret", "sdk"))
	ctx := testCtx(t)

	list, err := c.ListCustomers(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	id, err := c.CreateCustomer(ctx, restobject.Customer{Name: "Peter", Company: "Beds Inc", Age: 43})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	got, err := c.GetCustomer(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Peter", got.Name)
	assert.Equal(t, 43, got.Age)

	got.Phone = "555-0100"
	require.NoError(t, c.UpdateCustomer(ctx, got))
	got, err = c.GetCustomer(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "555-0100", got.Phone)

	require.NoError(t, c.DeleteCustomer(ctx, id))
	_, err = c.GetCustomer(ctx, id)
	var apiErr *restobject.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)

	page, err := c.EventsPage(ctx, 2, "")
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	assert.Equal(t, "customer.deleted", page.Items[0].Type)
	assert.Equal(t, "sdk", page.Items[0].ActorID)
	assert.NotEmpty(t, page.NextCursor)
}

func TestUnauthorizedWithoutToken(t *testing.T) {
	c := newClient(t, "s3cret")
	_, err := c.ListCustomers(testCtx(t))
	var apiErr *restobject.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
}

func TestPathResolvesWithoutRequests(t *testing.T) {
	c := newClient(t, "")
	ep := c.Path("portal", "users")
	_, err := ep.Wait(testCtx(t))
	require.NoError(t, err)
	assert.Equal(t, restobject.Resolved, ep.Status())
	assert.Equal(t, restobject.DefaultRoot+"/portal/users", ep.URL())
}
