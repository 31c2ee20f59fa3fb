package convo

import (
	"encoding/json"
	"time"

	"github.com/pawkit/pawchat/internal/backend"
)

// Kind classifies how a message renders in the timeline.
type Kind string

const (
	KindText           Kind = "text"
	KindImage          Kind = "image"
	KindSystem         Kind = "system"
	KindServiceRequest Kind = "service-request"
	KindStatusUpdate   Kind = "status-update"
	KindPayment        Kind = "payment"
	KindNotification   Kind = "notification"
)

// DeliveryStatus tracks locally-originated messages only. Remote messages
// carry an empty status.
type DeliveryStatus string

const (
	StatusSending   DeliveryStatus = "sending"
	StatusSent      DeliveryStatus = "sent"
	StatusDelivered DeliveryStatus = "delivered"
	StatusRead      DeliveryStatus = "read"
	StatusError     DeliveryStatus = "error"
)

// StatusMeta is the structured payload of status-update and payment
// messages, stored as JSON in the row's meta column.
type StatusMeta struct {
	Transition    string `json:"transition,omitempty"`
	RequestTitle  string `json:"request_title,omitempty"`
	TransactionID string `json:"transaction_id,omitempty"`
}

// IsZero reports whether no meta fields are set.
func (m StatusMeta) IsZero() bool {
	return m == StatusMeta{}
}

// Message is the client-side shape of one chat message.
type Message struct {
	ID               string
	ConversationID   string
	SenderID         string
	RecipientID      string
	Content          string
	Kind             Kind
	CreatedAt        time.Time
	ReadAt           *time.Time
	ServiceRequestID string
	Meta             StatusMeta

	// Status is set only for messages this client originated.
	Status DeliveryStatus
	// LocalOnly marks an entry that exists only in this client's timeline:
	// an optimistic send not yet confirmed, or a fallback annotation after a
	// failed status write.
	LocalOnly bool
}

// RenderKind returns the kind a renderer should dispatch on. A status-update
// without its transition payload (or an unrecognized kind) degrades to the
// plain system rendering instead of failing.
func (m Message) RenderKind() Kind {
	switch m.Kind {
	case KindText, KindImage, KindSystem, KindServiceRequest, KindNotification:
		return m.Kind
	case KindStatusUpdate:
		if m.Meta.Transition == "" {
			return KindSystem
		}
		return KindStatusUpdate
	case KindPayment:
		if m.Meta.TransactionID == "" {
			return KindSystem
		}
		return KindPayment
	default:
		return KindSystem
	}
}

// Partner is the other participant of a conversation as shown in the list.
type Partner struct {
	ID          string
	DisplayName string
	AvatarURL   string
}

// Conversation is the derived, materialized view over messages for one
// unordered participant pair.
type Conversation struct {
	ID               string
	Partner          Partner
	LastMessage      string
	LastMessageKind  Kind
	LastMessageAt    time.Time
	UnreadCount      int
	ServiceRequestID string
	ServiceType      string
}

// MessageFromRow maps a stored row to the client shape. A stored kind wins;
// legacy rows without one default to service-request when linked to a
// request and text otherwise. Image/system/status kinds are never inferred
// from bare rows.
func MessageFromRow(self string, row backend.MessageRow) Message {
	kind := Kind(row.Kind)
	if kind == "" {
		if row.ServiceRequestID != "" {
			kind = KindServiceRequest
		} else {
			kind = KindText
		}
	}
	var meta StatusMeta
	if row.Meta != "" {
		// Malformed meta degrades to the system rendering via RenderKind.
		_ = json.Unmarshal([]byte(row.Meta), &meta)
	}
	return Message{
		ID:               row.ID,
		ConversationID:   ConversationID(row.SenderID, row.RecipientID),
		SenderID:         row.SenderID,
		RecipientID:      row.RecipientID,
		Content:          row.Content,
		Kind:             kind,
		CreatedAt:        row.CreatedAt,
		ReadAt:           row.ReadAt,
		ServiceRequestID: row.ServiceRequestID,
		Meta:             meta,
	}
}
