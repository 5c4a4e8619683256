package server

import (
	"encoding/json"

	"restobject/internal/domain"
)

// Request payloads

type customerPath struct {
	ID string `path:"id"`
}

type customerInput struct {
	_       struct{} `json:"-" additionalProperties:"true"`
	Name    string   `json:"name"`
	Company string   `json:"company,omitempty"`
	Age     int      `json:"age,omitempty" minimum:"0"`
	Phone   string   `json:"phone,omitempty"`
	Address string   `json:"address,omitempty"`
}

func (in customerInput) customer() domain.Customer {
	return domain.Customer{
		Name:    in.Name,
		Company: in.Company,
		Age:     in.Age,
		Phone:   in.Phone,
		Address: in.Address,
	}
}

// customerUpdateInput carries the record back as it was read, so unknown
// fields such as timestamps are accepted and ignored.
type customerUpdateInput struct {
	_       struct{} `json:"-" additionalProperties:"true"`
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Company string   `json:"company,omitempty"`
	Age     int      `json:"age,omitempty" minimum:"0"`
	Phone   string   `json:"phone,omitempty"`
	Address string   `json:"address,omitempty"`
}

func (in customerUpdateInput) customer() domain.Customer {
	return domain.Customer{
		ID:      in.ID,
		Name:    in.Name,
		Company: in.Company,
		Age:     in.Age,
		Phone:   in.Phone,
		Address: in.Address,
	}
}

// Response payloads

type successResponse struct {
	Success bool   `json:"success"`
	ID      string `json:"id,omitempty"`
}

type EventResponse struct {
	ID         int64          `json:"id"`
	TS         string         `json:"ts" format:"date-time"`
	Type       string         `json:"type"`
	EntityKind string         `json:"entity_kind"`
	EntityID   string         `json:"entity_id,omitempty"`
	ActorID    string         `json:"actor_id"`
	RequestID  string         `json:"request_id,omitempty"`
	Payload    map[string]any `json:"payload"`
}

type paginatedEvents struct {
	Items      []EventResponse `json:"items"`
	NextCursor string          `json:"next_cursor,omitempty"`
}

func eventResponse(e domain.Event) EventResponse {
	return EventResponse{
		ID:         e.ID,
		TS:         e.TS,
		Type:       e.Type,
		EntityKind: e.EntityKind,
		EntityID:   e.EntityID,
		ActorID:    e.ActorID,
		RequestID:  e.RequestID,
		Payload:    decodeJSONMap(e.Payload),
	}
}

func decodeJSONMap(raw string) map[string]any {
	if raw == "" {
		return nil
	}
	var obj map[string]any
	if err := json.Unmarshal([]byte(raw), &obj); err != nil {
		return nil
	}
	return obj
}
