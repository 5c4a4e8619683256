package server

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/oklog/ulid/v2"

	"restobject/internal/domain"
	"restobject/internal/events"
	"restobject/internal/repo"
)

const (
	DefaultBasePath = "/example/api"
	RequestIDHeader = "X-Request-Id"
	customersPath   = "/portal/users/customers"
)

// Config for the HTTP API handler.
type Config struct {
	Repo     repo.Repo
	BasePath string
	Auth     AuthConfig
	Now      func() time.Time
	Logger   *log.Logger
}

type apiErrorBody struct {
	Code    string         `json:"code" example:"not_found"`
	Message string         `json:"message" example:"customer not found"`
	Details map[string]any `json:"details,omitempty" jsonschema:"type=object,additionalProperties=true"`
}

type requestIDKey struct{}

// apiError keeps the {success:false} shape clients of the customers API
// rely on and adds a structured error.
type apiError struct {
	status  int
	Success bool         `json:"success"`
	Body    apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

type service struct {
	repo   repo.Repo
	events events.Writer
	now    func() time.Time
}

// New returns an HTTP handler exposing the customers API.
func New(cfg Config) (http.Handler, error) {
	if cfg.Repo.DB == nil {
		return nil, errors.New("server: repo is required")
	}
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = DefaultBasePath
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	basePath = strings.TrimRight(basePath, "/")
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	if cfg.Auth.Logger == nil {
		cfg.Auth.Logger = cfg.Logger
	}

	huma.DefaultArrayNullable = false
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, "", msg, nil)
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		if status == http.StatusUnprocessableEntity {
			status = http.StatusBadRequest
		}
		var details map[string]any
		if len(errs) > 0 {
			details = map[string]any{"errors": errs}
		}
		return newAPIError(status, "", msg, details)
	}

	router := chi.NewRouter()
	router.Use(requestIDMiddleware)
	router.Use(newAuthMiddleware(basePath, cfg.Auth))
	hcfg := huma.DefaultConfig("RESTObject demo API", "0.1.0")
	hcfg.OpenAPIPath = basePath + "/openapi"
	hcfg.DocsPath = ""
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	svc := service{repo: cfg.Repo, events: events.Writer{DB: cfg.Repo.DB, Now: now}, now: now}
	registerHealth(group)
	registerCustomers(group, svc)
	registerEvents(group, svc)

	return router, nil
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(RequestIDHeader))
		if id == "" {
			id = ulid.Make().String()
		}
		w.Header().Set(RequestIDHeader, id)
		ctx := context.WithValue(r.Context(), requestIDKey{}, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func requestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

func newAPIError(status int, code, message string, details map[string]any) huma.StatusError {
	if code == "" {
		code = defaultCodeForStatus(status)
	}
	return &apiError{
		status: status,
		Body: apiErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
}

// handleError maps store errors onto the API. Unknown customers answer 400
// like every other rejected customer request.
func handleError(err error) huma.StatusError {
	if err == nil {
		return nil
	}
	var se huma.StatusError
	if errors.As(err, &se) {
		return se
	}
	if errors.Is(err, repo.ErrNotFound) {
		return newAPIError(http.StatusBadRequest, "not_found", "customer not found", nil)
	}
	return newAPIError(http.StatusInternalServerError, "internal_error", "internal error", map[string]any{"error": err.Error()})
}

func defaultCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusUnauthorized:
		return "unauthorized"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusInternalServerError:
		return "internal_error"
	default:
		return strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	}
}

func registerHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"status": "ok"}}, nil
	})
}

func registerCustomers(api huma.API, s service) {
	huma.Register(api, huma.Operation{
		OperationID: "list-customers",
		Method:      http.MethodGet,
		Path:        customersPath,
		Summary:     "List customers",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []domain.CustomerSummary `json:"body"`
	}, error) {
		list, err := s.repo.ListCustomers(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.CustomerSummary `json:"body"`
		}{Body: list}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "create-customer",
		Method:      http.MethodPut,
		Path:        customersPath,
		Summary:     "Create customer",
		Errors:      []int{http.StatusBadRequest, http.StatusInternalServerError},
	}, func(ctx context.Context, input *struct {
		Body customerInput `json:"body"`
	}) (*struct {
		Body successResponse `json:"body"`
	}, error) {
		if strings.TrimSpace(input.Body.Name) == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "name is required", nil)
		}
		ts := s.now().UTC().Format(time.RFC3339)
		c := input.Body.customer()
		c.CreatedAt, c.UpdatedAt = ts, ts
		var id string
		err := s.mutate(ctx, func(tx *sql.Tx) (events.Entry, error) {
			var err error
			id, err = s.repo.InsertCustomerTx(ctx, tx, c)
			return events.Entry{Type: "customer.created", EntityID: id, Payload: events.EventPayload{"name": c.Name}}, err
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body successResponse `json:"body"`
		}{Body: successResponse{Success: true, ID: id}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-customer",
		Method:      http.MethodGet,
		Path:        customersPath + "/{id}",
		Summary:     "Get customer",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *customerPath) (*struct {
		Body domain.Customer `json:"body"`
	}, error) {
		c, err := s.repo.GetCustomer(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Customer `json:"body"`
		}{Body: c}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-customer",
		Method:      http.MethodPost,
		Path:        customersPath + "/{id}",
		Summary:     "Update customer",
		Description: "The body id must match the path id.",
		Errors:      []int{http.StatusBadRequest, http.StatusInternalServerError},
	}, func(ctx context.Context, input *struct {
		ID   string              `path:"id"`
		Body customerUpdateInput `json:"body"`
	}) (*struct {
		Body successResponse `json:"body"`
	}, error) {
		if input.Body.ID != input.ID {
			return nil, newAPIError(http.StatusBadRequest, "id_mismatch", "body id does not match path id", map[string]any{"id": input.ID})
		}
		if strings.TrimSpace(input.Body.Name) == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "name is required", nil)
		}
		c := input.Body.customer()
		c.UpdatedAt = s.now().UTC().Format(time.RFC3339)
		err := s.mutate(ctx, func(tx *sql.Tx) (events.Entry, error) {
			err := s.repo.UpdateCustomerTx(ctx, tx, c)
			return events.Entry{Type: "customer.updated", EntityID: c.ID, Payload: events.EventPayload{"name": c.Name}}, err
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body successResponse `json:"body"`
		}{Body: successResponse{Success: true}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-customer",
		Method:      http.MethodDelete,
		Path:        customersPath + "/{id}",
		Summary:     "Delete customer",
		Errors:      []int{http.StatusBadRequest, http.StatusInternalServerError},
	}, func(ctx context.Context, input *customerPath) (*struct {
		Body successResponse `json:"body"`
	}, error) {
		err := s.mutate(ctx, func(tx *sql.Tx) (events.Entry, error) {
			err := s.repo.DeleteCustomerTx(ctx, tx, input.ID)
			return events.Entry{Type: "customer.deleted", EntityID: input.ID}, err
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body successResponse `json:"body"`
		}{Body: successResponse{Success: true}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "put-customer",
		Method:      http.MethodPut,
		Path:        customersPath + "/{id}",
		Summary:     "Not supported; customers are created on the collection",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *customerPath) (*struct{}, error) {
		return nil, newAPIError(http.StatusBadRequest, "bad_request", "use PUT on the collection to create customers", map[string]any{"id": input.ID})
	})
}

func registerEvents(api huma.API, s service) {
	huma.Register(api, huma.Operation{
		OperationID: "list-events",
		Method:      http.MethodGet,
		Path:        "/events",
		Summary:     "List recent audit events",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Type     string `query:"type"`
		EntityID string `query:"entity_id"`
		Limit    int    `query:"limit" default:"50"`
		Cursor   string `query:"cursor"`
	}) (*struct {
		Body paginatedEvents `json:"body"`
	}, error) {
		limit := normalizeLimit(input.Limit)
		var cursorID int64
		if input.Cursor != "" {
			parsed, err := strconv.ParseInt(input.Cursor, 10, 64)
			if err != nil {
				return nil, newAPIError(http.StatusBadRequest, "bad_request", "invalid cursor", map[string]any{"cursor": input.Cursor})
			}
			cursorID = parsed
		}
		items, err := s.repo.LatestEvents(ctx, limit+1, cursorID, input.Type, input.EntityID)
		if err != nil {
			return nil, handleError(err)
		}
		resp := paginatedEvents{Items: []EventResponse{}}
		if len(items) > limit {
			resp.NextCursor = strconv.FormatInt(items[limit-1].ID, 10)
			items = items[:limit]
		}
		for _, evt := range items {
			resp.Items = append(resp.Items, eventResponse(evt))
		}
		return &struct {
			Body paginatedEvents `json:"body"`
		}{Body: resp}, nil
	})
}

func normalizeLimit(limit int) int {
	switch {
	case limit <= 0:
		return 50
	case limit > 500:
		return 500
	default:
		return limit
	}
}

// mutate runs fn and appends the event it returns in one transaction.
func (s service) mutate(ctx context.Context, fn func(tx *sql.Tx) (events.Entry, error)) error {
	tx, err := s.repo.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	entry, err := fn(tx)
	if err != nil {
		return err
	}
	entry.EntityKind = "customer"
	entry.RequestID = requestIDFromContext(ctx)
	if p, ok := principalFromContext(ctx); ok {
		entry.ActorID = p.Subject
	}
	if err := s.events.Append(ctx, tx, entry); err != nil {
		return err
	}
	return tx.Commit()
}
