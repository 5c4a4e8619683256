package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"restobject/internal/app"
	"restobject/internal/auth"
	"restobject/internal/db"
	"restobject/internal/domain"
	"restobject/internal/rest"
	"restobject/internal/transport"
)

const seedCount = 3

type testServer struct {
	URL    string
	client *http.Client
	close  func()
}

func (s *testServer) Client() *http.Client { return s.client }
func (s *testServer) Close()               { s.close() }

func newTestServer(t *testing.T, authCfg AuthConfig) (*testServer, func()) {
	t.Helper()
	conn, r, err := app.Open(context.Background(), db.Config{Workspace: t.TempDir()}, seedCount)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	handler, err := New(Config{Repo: r, Auth: authCfg})
	if err != nil {
		t.Fatalf("build handler: %v", err)
	}
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &http.Server{Handler: handler}
	go srv.Serve(ln)
	testSrv := &testServer{
		URL:    "http://" + ln.Addr().String(),
		client: &http.Client{},
		close: func() {
			srv.Shutdown(context.Background())
			ln.Close()
			conn.Close()
		},
	}
	return testSrv, func() { testSrv.Close() }
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	res, err := client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return res, data
}

func customersURL(srv *testServer) string {
	return srv.URL + DefaultBasePath + customersPath
}

func expectRejected(t *testing.T, res *http.Response, data []byte, what string) {
	t.Helper()
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("%s status %d: %s", what, res.StatusCode, string(data))
	}
	var body struct {
		Success bool `json:"success"`
		Error   struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(data, &body); err != nil {
		t.Fatalf("%s: unmarshal error body: %v", what, err)
	}
	if body.Success || body.Error.Code == "" {
		t.Fatalf("%s: unexpected error body %s", what, string(data))
	}
}

func TestCustomerLifecycle(t *testing.T) {
	srv, cleanup := newTestServer(t, AuthConfig{})
	defer cleanup()
	client := srv.Client()

	listRes, listBody := doJSON(t, client, http.MethodGet, customersURL(srv), nil, nil)
	if listRes.StatusCode != http.StatusOK {
		t.Fatalf("list status %d: %s", listRes.StatusCode, string(listBody))
	}
	var list []domain.CustomerSummary
	if err := json.Unmarshal(listBody, &list); err != nil {
		t.Fatalf("unmarshal list: %v", err)
	}
	if len(list) != seedCount {
		t.Fatalf("expected %d seeded customers, got %d", seedCount, len(list))
	}

	createRes, createBody := doJSON(t, client, http.MethodPut, customersURL(srv), map[string]any{
		"name":    "Meg Doe",
		"company": "Table Inc",
		"age":     31,
	}, map[string]string{RequestIDHeader: "req-create"})
	if createRes.StatusCode != http.StatusOK {
		t.Fatalf("create status %d: %s", createRes.StatusCode, string(createBody))
	}
	if got := createRes.Header.Get(RequestIDHeader); got != "req-create" {
		t.Fatalf("expected request id echoed, got %q", got)
	}
	var created successResponse
	if err := json.Unmarshal(createBody, &created); err != nil {
		t.Fatalf("unmarshal create: %v", err)
	}
	if !created.Success || created.ID == "" {
		t.Fatalf("unexpected create response %s", string(createBody))
	}
	itemURL := customersURL(srv) + "/" + created.ID

	getRes, getBody := doJSON(t, client, http.MethodGet, itemURL, nil, nil)
	if getRes.StatusCode != http.StatusOK {
		t.Fatalf("get status %d: %s", getRes.StatusCode, string(getBody))
	}
	var c domain.Customer
	if err := json.Unmarshal(getBody, &c); err != nil {
		t.Fatalf("unmarshal customer: %v", err)
	}
	if c.Name != "Meg Doe" || c.Age != 31 || c.CreatedAt == "" {
		t.Fatalf("unexpected customer %+v", c)
	}

	res, body := doJSON(t, client, http.MethodPost, itemURL, map[string]any{"id": "999", "name": "Other"}, nil)
	expectRejected(t, res, body, "mismatched update")

	c.Name = "Meg Griffin"
	updRes, updBody := doJSON(t, client, http.MethodPost, itemURL, c, nil)
	if updRes.StatusCode != http.StatusOK {
		t.Fatalf("update status %d: %s", updRes.StatusCode, string(updBody))
	}
	_, getBody = doJSON(t, client, http.MethodGet, itemURL, nil, nil)
	if err := json.Unmarshal(getBody, &c); err != nil {
		t.Fatalf("unmarshal updated customer: %v", err)
	}
	if c.Name != "Meg Griffin" {
		t.Fatalf("expected updated name, got %q", c.Name)
	}

	res, body = doJSON(t, client, http.MethodPut, itemURL, map[string]any{"name": "x"}, nil)
	expectRejected(t, res, body, "put on item")

	delRes, delBody := doJSON(t, client, http.MethodDelete, itemURL, nil, nil)
	if delRes.StatusCode != http.StatusOK {
		t.Fatalf("delete status %d: %s", delRes.StatusCode, string(delBody))
	}
	res, body = doJSON(t, client, http.MethodGet, itemURL, nil, nil)
	expectRejected(t, res, body, "get deleted")
	res, body = doJSON(t, client, http.MethodDelete, itemURL, nil, nil)
	expectRejected(t, res, body, "delete twice")

	evRes, evBody := doJSON(t, client, http.MethodGet, srv.URL+DefaultBasePath+"/events?entity_id="+created.ID, nil, nil)
	if evRes.StatusCode != http.StatusOK {
		t.Fatalf("events status %d: %s", evRes.StatusCode, string(evBody))
	}
	var evts paginatedEvents
	if err := json.Unmarshal(evBody, &evts); err != nil {
		t.Fatalf("unmarshal events: %v", err)
	}
	var types []string
	for _, e := range evts.Items {
		types = append(types, e.Type)
	}
	want := []string{"customer.deleted", "customer.updated", "customer.created"}
	if len(types) != len(want) {
		t.Fatalf("expected events %v, got %v", want, types)
	}
	for i := range want {
		if types[i] != want[i] {
			t.Fatalf("expected events %v, got %v", want, types)
		}
	}
	last := evts.Items[len(evts.Items)-1]
	if last.RequestID != "req-create" || last.ActorID != "anonymous" {
		t.Fatalf("unexpected create event %+v", last)
	}
}

func TestCreateRequiresName(t *testing.T) {
	srv, cleanup := newTestServer(t, AuthConfig{})
	defer cleanup()
	res, body := doJSON(t, srv.Client(), http.MethodPut, customersURL(srv), map[string]any{"name": "  "}, nil)
	expectRejected(t, res, body, "blank name")
	res, body = doJSON(t, srv.Client(), http.MethodGet, customersURL(srv)+"/abc", nil, nil)
	expectRejected(t, res, body, "non-numeric id")
}

func TestEventsPagination(t *testing.T) {
	srv, cleanup := newTestServer(t, AuthConfig{})
	defer cleanup()
	for _, name := range []string{"A", "B", "C"} {
		res, body := doJSON(t, srv.Client(), http.MethodPut, customersURL(srv), map[string]any{"name": name}, nil)
		if res.StatusCode != http.StatusOK {
			t.Fatalf("create %s status %d: %s", name, res.StatusCode, string(body))
		}
	}
	url := srv.URL + DefaultBasePath + "/events?type=customer.created&limit=2"
	_, body := doJSON(t, srv.Client(), http.MethodGet, url, nil, nil)
	var page paginatedEvents
	if err := json.Unmarshal(body, &page); err != nil {
		t.Fatalf("unmarshal page: %v", err)
	}
	if len(page.Items) != 2 || page.NextCursor == "" {
		t.Fatalf("unexpected first page %s", string(body))
	}
	seen := map[string]bool{}
	for _, e := range page.Items {
		seen[e.EntityID] = true
	}
	_, body = doJSON(t, srv.Client(), http.MethodGet, url+"&cursor="+page.NextCursor, nil, nil)
	page = paginatedEvents{}
	if err := json.Unmarshal(body, &page); err != nil {
		t.Fatalf("unmarshal page: %v", err)
	}
	if len(page.Items) != 1 || page.NextCursor != "" {
		t.Fatalf("unexpected second page %s", string(body))
	}
	seen[page.Items[0].EntityID] = true
	if len(seen) != 3 {
		t.Fatalf("expected every created customer across pages, got %v", seen)
	}

	res, body := doJSON(t, srv.Client(), http.MethodGet, url+"&cursor=nope", nil, nil)
	expectRejected(t, res, body, "bad cursor")
}

func TestBearerAuth(t *testing.T) {
	const secret = "test-secret"
	srv, cleanup := newTestServer(t, AuthConfig{JWTSecret: secret})
	defer cleanup()
	client := srv.Client()

	healthRes, _ := doJSON(t, client, http.MethodGet, srv.URL+DefaultBasePath+"/health", nil, nil)
	if healthRes.StatusCode != http.StatusOK {
		t.Fatalf("health should not require auth, got %d", healthRes.StatusCode)
	}
	res, body := doJSON(t, client, http.MethodGet, customersURL(srv), nil, nil)
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d: %s", res.StatusCode, string(body))
	}
	res, _ = doJSON(t, client, http.MethodGet, customersURL(srv), nil, map[string]string{"Authorization": "Bearer nope"})
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 with bad token, got %d", res.StatusCode)
	}

	token, err := auth.Mint(secret, "stewie", nil, time.Minute, time.Now())
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	headers := map[string]string{"Authorization": "Bearer " + token}
	res, body = doJSON(t, client, http.MethodPut, customersURL(srv), map[string]any{"name": "Brian"}, headers)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("create with token status %d: %s", res.StatusCode, string(body))
	}
	_, body = doJSON(t, client, http.MethodGet, srv.URL+DefaultBasePath+"/events?type=customer.created", nil, headers)
	var evts paginatedEvents
	if err := json.Unmarshal(body, &evts); err != nil {
		t.Fatalf("unmarshal events: %v", err)
	}
	if len(evts.Items) != 1 || evts.Items[0].ActorID != "stewie" {
		t.Fatalf("expected event by stewie, got %s", string(body))
	}
}

func TestRESTClientRoundTrip(t *testing.T) {
	const secret = "test-secret"
	srv, cleanup := newTestServer(t, AuthConfig{JWTSecret: secret})
	defer cleanup()

	tr := transport.New(srv.URL)
	tr.Tokens = &auth.Minter{Secret: secret, Subject: "rest-client"}
	c, err := rest.New(tr, rest.WithTimeout(5*time.Second))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	defer c.Close()
	root, err := c.Root(DefaultBasePath)
	if err != nil {
		t.Fatalf("root: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	customers := root.Path("portal", "users", "customers")
	var list []domain.CustomerSummary
	if err := customers.Read(nil).Decode(ctx, &list); err != nil {
		t.Fatalf("read list: %v", err)
	}
	if len(list) != seedCount {
		t.Fatalf("expected %d customers, got %d", seedCount, len(list))
	}

	var created successResponse
	if err := customers.Create(map[string]any{"name": "Lois", "age": 40}).Decode(ctx, &created); err != nil {
		t.Fatalf("create: %v", err)
	}
	item := customers.Navigate(created.ID)
	if customers.Navigate(created.ID).Reference() != item.Reference() {
		t.Fatalf("expected navigate to be memoized")
	}
	var got domain.Customer
	if err := item.Read(nil).Decode(ctx, &got); err != nil {
		t.Fatalf("read item: %v", err)
	}
	if got.Name != "Lois" || got.Age != 40 {
		t.Fatalf("unexpected customer %+v", got)
	}
	if got := item.URL(); got != DefaultBasePath+customersPath+"/"+created.ID {
		t.Fatalf("unexpected item url %q", got)
	}

	got.Name = "Lois Griffin"
	if _, err := item.Update(got).Wait(ctx); err != nil {
		t.Fatalf("update: %v", err)
	}
	if _, err := customers.Remove(created.ID).Wait(ctx); err != nil {
		t.Fatalf("remove: %v", err)
	}

	_, err = item.Read(nil).Wait(ctx)
	var apiErr *transport.APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 after delete, got %v", err)
	}
}
