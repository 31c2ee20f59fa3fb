package backend

import "time"

// MessageRow is one row of the hosted messages relation, as returned by the
// store's filtered selects and carried on the realtime insert channel.
// ServiceType and RequestStatus come from the service_requests join when the
// row links a request; they are empty otherwise.
type MessageRow struct {
	ID               string     `json:"id"`
	SenderID         string     `json:"sender_id"`
	RecipientID      string     `json:"recipient_id"`
	Content          string     `json:"content"`
	Kind             string     `json:"kind,omitempty"`
	ServiceRequestID string     `json:"service_request_id,omitempty"`
	ServiceType      string     `json:"service_type,omitempty"`
	RequestStatus    string     `json:"request_status,omitempty"`
	Meta             string     `json:"meta,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	ReadAt           *time.Time `json:"read_at,omitempty"`
}

// UserRow is one row of the hosted users relation.
type UserRow struct {
	ID          string
	DisplayName string
	AvatarURL   string
}

// ServiceRequestRow is one row of the hosted service_requests relation.
// The chat client reads these; it never writes them.
type ServiceRequestRow struct {
	ID           string
	OwnerID      string
	ProviderID   string
	ServiceType  string
	Status       string
	ScheduledFor time.Time
	PriceCents   int64
}
