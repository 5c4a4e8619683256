package domain

type Customer struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Company   string `json:"company,omitempty"`
	Age       int    `json:"age,omitempty"`
	Phone     string `json:"phone,omitempty"`
	Address   string `json:"address,omitempty"`
	CreatedAt string `json:"created_at,omitempty" format:"date-time"`
	UpdatedAt string `json:"updated_at,omitempty" format:"date-time"`
}

// CustomerSummary is the list projection of a customer.
type CustomerSummary struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	ActorID    string `json:"actor_id"`
	RequestID  string `json:"request_id,omitempty"`
	Payload    string `json:"payload_json"`
}
