// Package booking models service requests between pet owners and
// providers and the status vocabulary rendered inside conversations.
package booking

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pawkit/pawchat/internal/backend"
)

// Status is the lifecycle state of a service request.
type Status string

const (
	StatusPending   Status = "pending"
	StatusAccepted  Status = "accepted"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// Transition names a status change announced inside a conversation.
type Transition string

const (
	TransitionAccepted  Transition = "accepted"
	TransitionDeclined  Transition = "declined"
	TransitionCompleted Transition = "completed"
	TransitionScheduled Transition = "scheduled"
	TransitionPaid      Transition = "paid"
)

// ServiceRequest is the client-side view of a request row.
type ServiceRequest struct {
	ID           string
	OwnerID      string
	ProviderID   string
	ServiceType  string
	Status       Status
	ScheduledFor time.Time
	PriceCents   int64
}

// RequestStore is the subset of the backend client the lookup needs.
type RequestStore interface {
	ServiceRequestByID(ctx context.Context, id string) (*backend.ServiceRequestRow, error)
}

// Lookup resolves service requests referenced by messages.
type Lookup struct {
	store RequestStore
}

func NewLookup(store RequestStore) *Lookup {
	return &Lookup{store: store}
}

// ByID fetches one request. A missing row yields (nil, nil) so callers can
// render the message without its booking context.
func (l *Lookup) ByID(ctx context.Context, id string) (*ServiceRequest, error) {
	row, err := l.store.ServiceRequestByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("fetching service request %s: %w", id, err)
	}
	if row == nil {
		return nil, nil
	}
	return &ServiceRequest{
		ID:           row.ID,
		OwnerID:      row.OwnerID,
		ProviderID:   row.ProviderID,
		ServiceType:  row.ServiceType,
		Status:       Status(row.Status),
		ScheduledFor: row.ScheduledFor,
		PriceCents:   row.PriceCents,
	}, nil
}

// Title turns a service type slug into a display title,
// "dog-walking" becoming "Dog Walking".
func Title(serviceType string) string {
	if serviceType == "" {
		return "Service"
	}
	parts := strings.Split(serviceType, "-")
	for i, p := range parts {
		if p == "" {
			continue
		}
		parts[i] = strings.ToUpper(p[:1]) + p[1:]
	}
	return strings.Join(parts, " ")
}

// StatusContent builds the body of a status-update message.
func StatusContent(serviceType string, tr Transition) string {
	title := Title(serviceType)
	switch tr {
	case TransitionAccepted:
		return fmt.Sprintf("%s request accepted", title)
	case TransitionDeclined:
		return fmt.Sprintf("%s request declined", title)
	case TransitionCompleted:
		return fmt.Sprintf("%s marked as completed", title)
	case TransitionScheduled:
		return fmt.Sprintf("%s scheduled", title)
	case TransitionPaid:
		return fmt.Sprintf("Payment received for %s", title)
	default:
		return fmt.Sprintf("%s request updated", title)
	}
}

// PaymentContent builds the body of a payment confirmation message.
func PaymentContent(serviceType string, priceCents int64) string {
	return fmt.Sprintf("Payment of $%d.%02d confirmed for %s",
		priceCents/100, priceCents%100, Title(serviceType))
}

// Hint carries the icon and color a view uses for a service type.
type Hint struct {
	Icon  string
	Color string
}

// TypeHint maps known service types to display hints. Unknown types get a
// neutral hint rather than an error.
func TypeHint(serviceType string) Hint {
	switch serviceType {
	case "dog-walking":
		return Hint{Icon: "🐕", Color: "green"}
	case "pet-sitting":
		return Hint{Icon: "🏠", Color: "blue"}
	case "grooming":
		return Hint{Icon: "✂", Color: "purple"}
	case "veterinary":
		return Hint{Icon: "⚕", Color: "red"}
	case "boarding":
		return Hint{Icon: "🛏", Color: "teal"}
	case "training":
		return Hint{Icon: "🎓", Color: "orange"}
	default:
		return Hint{Icon: "•", Color: "gray"}
	}
}
