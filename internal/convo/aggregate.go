package convo

import (
	"context"
	"sort"

	"github.com/pawkit/pawchat/internal/backend"
)

// FallbackDisplayName labels partners that no longer resolve in the users
// directory (deleted accounts). The conversation still renders.
const FallbackDisplayName = "Unknown user"

// PartnerResolver resolves a user id to its display identity.
type PartnerResolver interface {
	Resolve(ctx context.Context, userID string) (Partner, error)
}

// Aggregate derives the conversation list from the flat message rows where
// self is a participant. Exactly one conversation per unordered partner
// pair; each holds the newest message of the pair and the count of unread
// partner-sent messages across the whole input. Output is sorted by last
// message time descending.
func Aggregate(ctx context.Context, self string, rows []backend.MessageRow, resolver PartnerResolver) []Conversation {
	byID := make(map[string]*Conversation)

	for _, row := range rows {
		partnerID := row.SenderID
		if partnerID == self {
			partnerID = row.RecipientID
		}
		id := ConversationID(self, partnerID)

		c, seen := byID[id]
		if !seen {
			c = &Conversation{
				ID:      id,
				Partner: resolvePartner(ctx, resolver, partnerID),
			}
			byID[id] = c
		}

		// Rows arrive newest-first, but tolerate out-of-order input.
		if row.CreatedAt.After(c.LastMessageAt) {
			msg := MessageFromRow(self, row)
			c.LastMessage = msg.Content
			c.LastMessageKind = msg.Kind
			c.LastMessageAt = msg.CreatedAt
		}
		if row.ServiceRequestID != "" && c.ServiceRequestID == "" {
			c.ServiceRequestID = row.ServiceRequestID
			c.ServiceType = row.ServiceType
		}
		// Self-pairs (notes to self) never count as unread.
		if row.SenderID == partnerID && partnerID != self && row.ReadAt == nil {
			c.UnreadCount++
		}
	}

	out := make([]Conversation, 0, len(byID))
	for _, c := range byID {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].LastMessageAt.After(out[j].LastMessageAt)
	})
	return out
}

func resolvePartner(ctx context.Context, resolver PartnerResolver, partnerID string) Partner {
	if resolver != nil {
		if p, err := resolver.Resolve(ctx, partnerID); err == nil && p.DisplayName != "" {
			return p
		}
	}
	return Partner{ID: partnerID, DisplayName: FallbackDisplayName}
}
