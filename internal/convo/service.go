package convo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/pawkit/pawchat/internal/backend"
	"go.uber.org/zap"
)

// Typed fetch errors, surfaced into store state rather than thrown into
// render paths.
var (
	ErrConversationsFetch = errors.New("conversations fetch failed")
	ErrMessagesFetch      = errors.New("messages fetch failed")
)

// MessageStore is the slice of the backend SDK the service depends on.
type MessageStore interface {
	MessagesInvolving(ctx context.Context, userID string) ([]backend.MessageRow, error)
	MessagesBetween(ctx context.Context, a, b string, before time.Time, limit int) ([]backend.MessageRow, error)
	InsertMessage(ctx context.Context, row backend.MessageRow) (backend.MessageRow, error)
	MarkMessagesRead(ctx context.Context, ids []string, at time.Time) error
}

// InsertPublisher fans an inserted row out on the realtime channel.
type InsertPublisher interface {
	PublishInsert(pairKey string, row backend.MessageRow) error
}

// SendExtra carries optional send parameters.
type SendExtra struct {
	ServiceRequestID string
	Meta             StatusMeta
}

// Service loads and sends messages for the current user.
type Service struct {
	self     string
	store    MessageStore
	pub      InsertPublisher
	resolver PartnerResolver
	logger   *zap.Logger
}

// NewService creates a message service acting as userID. pub may be nil when
// no realtime channel is available; sends still work, only the fan-out is
// skipped.
func NewService(userID string, store MessageStore, pub InsertPublisher, resolver PartnerResolver, logger *zap.Logger) *Service {
	return &Service{
		self:     userID,
		store:    store,
		pub:      pub,
		resolver: resolver,
		logger:   logger,
	}
}

// UserID returns the identity this service acts as.
func (s *Service) UserID() string { return s.self }

// ListConversations fetches every message involving the current user and
// aggregates the conversation list. On failure the typed error is returned
// and the caller must keep its previous cached list.
func (s *Service) ListConversations(ctx context.Context) ([]Conversation, error) {
	rows, err := s.store.MessagesInvolving(ctx, s.self)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConversationsFetch, err)
	}
	return Aggregate(ctx, s.self, rows, s.resolver), nil
}

// ListMessages loads one page of the conversation's history, newest first,
// and fires read-marking for unread messages addressed to the current user.
// Read-marking never blocks the returned list.
func (s *Service) ListMessages(ctx context.Context, conversationID string, before time.Time, limit int) (msgs []Message, hasMore bool, cursor time.Time, err error) {
	a, b, err := Participants(conversationID)
	if err != nil {
		return nil, false, time.Time{}, fmt.Errorf("%w: %v", ErrMessagesFetch, err)
	}
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.store.MessagesBetween(ctx, a, b, before, limit)
	if err != nil {
		return nil, false, time.Time{}, fmt.Errorf("%w: %v", ErrMessagesFetch, err)
	}

	var unread []string
	msgs = make([]Message, 0, len(rows))
	for _, row := range rows {
		msgs = append(msgs, MessageFromRow(s.self, row))
		if row.RecipientID == s.self && row.ReadAt == nil {
			unread = append(unread, row.ID)
		}
	}
	if len(unread) > 0 {
		go s.MarkRead(context.WithoutCancel(ctx), unread)
	}

	hasMore = len(rows) == limit
	if len(rows) > 0 {
		cursor = rows[len(rows)-1].CreatedAt
	}
	return msgs, hasMore, cursor, nil
}

// SendMessage inserts one message row and returns the confirmed Message.
// Returns nil on failure; it never panics and callers must treat nil as
// "not sent".
func (s *Service) SendMessage(ctx context.Context, recipientID, content string, kind Kind, extra SendExtra) *Message {
	if kind == "" {
		kind = KindText
	}
	row := backend.MessageRow{
		SenderID:         s.self,
		RecipientID:      recipientID,
		Content:          content,
		Kind:             string(kind),
		ServiceRequestID: extra.ServiceRequestID,
	}
	if !extra.Meta.IsZero() {
		data, err := json.Marshal(extra.Meta)
		if err != nil {
			s.logger.Error("marshal message meta", zap.Error(err))
			return nil
		}
		row.Meta = string(data)
	}

	inserted, err := s.store.InsertMessage(ctx, row)
	if err != nil {
		s.logger.Error("send message failed",
			zap.Error(err),
			zap.String("recipient", recipientID),
			zap.String("kind", string(kind)))
		return nil
	}

	pairKey := ConversationID(s.self, recipientID)
	if s.pub != nil {
		if err := s.pub.PublishInsert(pairKey, inserted); err != nil {
			// The row is persisted; the partner catches up on next fetch.
			s.logger.Warn("publish insert event failed", zap.Error(err), zap.String("message_id", inserted.ID))
		}
	}

	msg := MessageFromRow(s.self, inserted)
	return &msg
}

// SendStatus persists a status-update message for a service-request
// transition. Same nil-on-failure contract as SendMessage.
func (s *Service) SendStatus(ctx context.Context, recipientID, requestID, content string, meta StatusMeta) *Message {
	return s.SendMessage(ctx, recipientID, content, KindStatusUpdate, SendExtra{
		ServiceRequestID: requestID,
		Meta:             meta,
	})
}

// MarkRead sets read_at on the given messages. Best-effort: failures are
// logged and swallowed, because failing to mark read must never block
// message display.
func (s *Service) MarkRead(ctx context.Context, ids []string) {
	if len(ids) == 0 {
		return
	}
	if err := s.store.MarkMessagesRead(ctx, ids, time.Now()); err != nil {
		s.logger.Warn("mark read failed", zap.Error(err), zap.Int("count", len(ids)))
	}
}
