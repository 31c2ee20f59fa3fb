package convo

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/pawkit/pawchat/internal/backend"
	"go.uber.org/zap"
)

// InsertStream delivers row-insert events from the message store. The
// transport cannot filter by an OR-of-two-directions predicate, so the
// stream is table-wide and relevance filtering happens here.
type InsertStream interface {
	SubscribeInserts(name string, handler func(backend.MessageRow)) (func(), error)
}

// ReadMarker marks incoming messages read, best-effort.
type ReadMarker interface {
	MarkRead(ctx context.Context, ids []string)
}

// SubscriptionManager opens one realtime subscription per active
// conversation and tears it down on conversation change or screen close.
type SubscriptionManager struct {
	self   string
	stream InsertStream
	marker ReadMarker
	logger *zap.Logger
}

// NewSubscriptionManager creates a manager acting as userID. marker may be
// nil to disable auto read-marking (tests).
func NewSubscriptionManager(userID string, stream InsertStream, marker ReadMarker, logger *zap.Logger) *SubscriptionManager {
	return &SubscriptionManager{
		self:   userID,
		stream: stream,
		marker: marker,
		logger: logger,
	}
}

// Subscribe opens a uniquely named subscription for the conversation with
// otherUserID. Events whose participant set is not exactly {self, other}
// are dropped silently. Relevant events are normalized and passed to
// onMessage; arrivals addressed to the current user are additionally
// read-marked asynchronously.
func (m *SubscriptionManager) Subscribe(otherUserID string, onMessage func(Message)) (*Subscription, error) {
	convID := ConversationID(m.self, otherUserID)
	// Unique name per call avoids cross-talk when re-subscribing to the
	// same conversation.
	name := fmt.Sprintf("%s-%s", convID, uuid.NewString()[:8])

	unsub, err := m.stream.SubscribeInserts(name, func(row backend.MessageRow) {
		if !m.relevant(row, otherUserID) {
			return
		}
		msg := MessageFromRow(m.self, row)
		onMessage(msg)
		if row.RecipientID == m.self && m.marker != nil {
			go m.marker.MarkRead(context.Background(), []string{row.ID})
		}
	})
	if err != nil {
		return nil, fmt.Errorf("subscribe conversation %s: %w", convID, err)
	}

	return &Subscription{conversationID: convID, unsub: unsub}, nil
}

func (m *SubscriptionManager) relevant(row backend.MessageRow, otherUserID string) bool {
	return (row.SenderID == m.self && row.RecipientID == otherUserID) ||
		(row.SenderID == otherUserID && row.RecipientID == m.self)
}

// Subscription is a handle on one open realtime subscription.
type Subscription struct {
	conversationID string
	once           sync.Once
	unsub          func()
}

// ConversationID returns the conversation this subscription is scoped to.
func (s *Subscription) ConversationID() string { return s.conversationID }

// Unsubscribe tears the subscription down. Idempotent: calling it twice
// neither errors nor re-fires the callback.
func (s *Subscription) Unsubscribe() {
	s.once.Do(func() {
		if s.unsub != nil {
			s.unsub()
		}
	})
}
