package convo

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pawkit/pawchat/internal/booking"
	"github.com/pawkit/pawchat/internal/bus"
	"github.com/pawkit/pawchat/internal/conn"
	"go.uber.org/zap"
)

// Phase is the lifecycle of an open thread.
type Phase string

const (
	PhaseLoading Phase = "loading"
	PhaseReady   Phase = "ready"
	PhaseError   Phase = "error"
)

const defaultPageSize = 50

// ThreadController owns one open conversation: the initial fetch, the
// realtime subscription, optimistic sends and their convergence with the
// server echo, typing and receipt callbacks, and resync after reconnect.
type ThreadController struct {
	svc      *Service
	state    *State
	subs     *SubscriptionManager
	presence PresenceAndReceipts
	bus      *bus.Bus
	logger   *zap.Logger

	self     string
	other    string
	convID   string
	pageSize int

	mu     sync.Mutex
	phase  Phase
	closed bool
	sub    *Subscription

	cancelTyping   func()
	cancelReceipts func()
	stopResync     func()
}

// NewThreadController prepares a controller for the conversation with
// otherUserID. Nothing happens until Open.
func NewThreadController(svc *Service, state *State, subs *SubscriptionManager, presence PresenceAndReceipts, b *bus.Bus, otherUserID string, logger *zap.Logger) *ThreadController {
	return &ThreadController{
		svc:      svc,
		state:    state,
		subs:     subs,
		presence: presence,
		bus:      b,
		logger:   logger,
		self:     svc.UserID(),
		other:    otherUserID,
		convID:   ConversationID(svc.UserID(), otherUserID),
		pageSize: defaultPageSize,
		phase:    PhaseLoading,
	}
}

// ConversationID returns the id of the thread this controller owns.
func (t *ThreadController) ConversationID() string { return t.convID }

// Phase reports the thread lifecycle phase.
func (t *ThreadController) Phase() Phase {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.phase
}

func (t *ThreadController) setPhase(p Phase) {
	t.mu.Lock()
	t.phase = p
	t.mu.Unlock()
}

func (t *ThreadController) isClosed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

// Open activates the thread: marks it active in state, performs the initial
// page fetch, subscribes to realtime inserts, and wires typing, receipt and
// reconnect listeners. Safe to call once per controller.
func (t *ThreadController) Open(ctx context.Context) error {
	t.state.SetActive(t.convID)
	t.state.ClearUnread(t.convID)

	if err := t.fetch(ctx, time.Time{}); err != nil {
		return err
	}

	sub, err := t.subs.Subscribe(t.other, t.onRealtime)
	if err != nil {
		t.logger.Warn("realtime subscribe failed, thread is poll-only",
			zap.String("conversation_id", t.convID), zap.Error(err))
		sub = nil
	}
	cancelTyping := t.presence.SubscribeTyping(t.convID, func(typing bool) {
		if t.state.Active() == t.convID {
			t.state.SetTyping(typing)
		}
	})
	cancelReceipts := t.presence.SubscribeReceipts(t.convID, func(messageID string, status DeliveryStatus) {
		t.state.SetMessageStatus(messageID, status)
	})
	stopResync := t.watchReconnect(ctx)

	t.mu.Lock()
	if t.closed {
		// Close ran while the fetch was in flight; tear down everything
		// just wired instead of leaking it.
		t.mu.Unlock()
		if sub != nil {
			sub.Unsubscribe()
		}
		cancelTyping()
		cancelReceipts()
		stopResync()
		return nil
	}
	t.sub = sub
	t.cancelTyping = cancelTyping
	t.cancelReceipts = cancelReceipts
	t.stopResync = stopResync
	t.mu.Unlock()
	return nil
}

// fetch loads one page ending before the cursor; a zero cursor loads the
// newest page and replaces the timeline.
func (t *ThreadController) fetch(ctx context.Context, before time.Time) error {
	t.setPhase(PhaseLoading)
	t.state.SetThreadLoading(true)
	defer t.state.SetThreadLoading(false)

	msgs, hasMore, cursor, err := t.svc.ListMessages(ctx, t.convID, before, t.pageSize)
	if t.isClosed() {
		// The view is gone; its results must not land in whichever
		// conversation is active now.
		return err
	}
	if err != nil {
		t.setPhase(PhaseError)
		t.state.SetThreadError("Could not load messages")
		return err
	}
	t.state.SetThreadError("")
	if before.IsZero() {
		t.state.SetMessages(msgs, hasMore, cursor)
	} else {
		t.state.AppendOlder(msgs, hasMore, cursor)
	}
	t.setPhase(PhaseReady)
	return nil
}

// LoadOlder fetches the next page back in time, if one exists.
func (t *ThreadController) LoadOlder(ctx context.Context) error {
	hasMore, cursor := t.state.Pagination()
	if !hasMore {
		return nil
	}
	return t.fetch(ctx, cursor)
}

// Refresh re-fetches the newest page, used after reconnect to pick up
// anything missed while the realtime channel was down.
func (t *ThreadController) Refresh(ctx context.Context) error {
	return t.fetch(ctx, time.Time{})
}

// onRealtime handles an insert arriving on the realtime channel. The
// subscription manager has already filtered for this conversation.
func (t *ThreadController) onRealtime(msg Message) {
	if t.isClosed() {
		return
	}
	t.state.UpsertMessage(msg)
	t.state.TouchConversation(t.convID, msg, false)
	if msg.RecipientID == t.self {
		// The thread is on screen, so the arrival is both delivered
		// and read from the partner's point of view.
		t.presence.ReportDelivered(msg.ID)
		t.presence.ReportRead(msg.ID)
	}
}

// NotifyComposing forwards the local user's composer activity to the
// presence channel.
func (t *ThreadController) NotifyComposing(active bool) {
	if t.isClosed() {
		return
	}
	t.presence.ReportTyping(t.convID, active)
}

// Send performs an optimistic send: a temporary message appears immediately
// in sending state, then either converges onto the confirmed server row or
// flips to error for resend.
func (t *ThreadController) Send(ctx context.Context, content string) {
	if content == "" {
		return
	}
	tempID := "tmp-" + uuid.NewString()
	now := time.Now()
	t.state.UpsertMessage(Message{
		ID:             tempID,
		ConversationID: t.convID,
		SenderID:       t.self,
		RecipientID:    t.other,
		Content:        content,
		Kind:           KindText,
		CreatedAt:      now,
		Status:         StatusSending,
		LocalOnly:      true,
	})
	t.state.SetSending(true)
	defer t.state.SetSending(false)

	sent := t.svc.SendMessage(ctx, t.other, content, KindText, SendExtra{})
	if sent == nil {
		t.state.SetMessageStatus(tempID, StatusError)
		t.bus.Publish(bus.Event{
			Kind:      "convo.message_send_failed",
			Timestamp: time.Now(),
			Payload:   MessageSentEvent{ConversationID: t.convID, MessageID: tempID},
		})
		return
	}

	confirmed := *sent
	confirmed.Status = StatusSent
	t.state.ReplaceMessage(tempID, confirmed)
	t.state.TouchConversation(t.convID, confirmed, false)
	t.bus.Publish(bus.Event{
		Kind:      "convo.message_sent",
		Timestamp: time.Now(),
		Payload:   MessageSentEvent{ConversationID: t.convID, MessageID: confirmed.ID},
	})
}

// Resend retries a failed optimistic message. The temporary entry is reused
// as the placeholder for the new attempt.
func (t *ThreadController) Resend(ctx context.Context, tempID string) {
	msg, ok := t.state.MessageByID(tempID)
	if !ok || !msg.LocalOnly {
		return
	}
	t.state.SetMessageStatus(tempID, StatusSending)
	t.state.SetSending(true)
	defer t.state.SetSending(false)

	sent := t.svc.SendMessage(ctx, t.other, msg.Content, msg.Kind, SendExtra{
		ServiceRequestID: msg.ServiceRequestID,
		Meta:             msg.Meta,
	})
	if sent == nil {
		t.state.SetMessageStatus(tempID, StatusError)
		return
	}
	confirmed := *sent
	confirmed.Status = StatusSent
	t.state.ReplaceMessage(tempID, confirmed)
	t.state.TouchConversation(t.convID, confirmed, false)
	t.bus.Publish(bus.Event{
		Kind:      "convo.message_sent",
		Timestamp: time.Now(),
		Payload:   MessageSentEvent{ConversationID: t.convID, MessageID: confirmed.ID},
	})
}

// ApplyTransition announces a service-request status change inside the
// conversation. The announcement is a durable message; when persisting it
// fails the thread still shows a local-only entry so the action is not
// silently lost. A paid transition additionally posts the payment
// confirmation.
func (t *ThreadController) ApplyTransition(ctx context.Context, req booking.ServiceRequest, tr booking.Transition) {
	content := booking.StatusContent(req.ServiceType, tr)
	meta := StatusMeta{
		Transition:   string(tr),
		RequestTitle: booking.Title(req.ServiceType),
	}

	sent := t.svc.SendStatus(ctx, t.other, req.ID, content, meta)
	if sent == nil {
		t.state.UpsertMessage(Message{
			ID:               "tmp-" + uuid.NewString(),
			ConversationID:   t.convID,
			SenderID:         t.self,
			RecipientID:      t.other,
			Content:          content,
			Kind:             KindStatusUpdate,
			CreatedAt:        time.Now(),
			ServiceRequestID: req.ID,
			Meta:             meta,
			Status:           StatusError,
			LocalOnly:        true,
		})
		return
	}
	t.state.UpsertMessage(*sent)
	t.state.TouchConversation(t.convID, *sent, false)

	if tr != booking.TransitionPaid {
		return
	}
	payMeta := StatusMeta{
		RequestTitle:  booking.Title(req.ServiceType),
		TransactionID: "txn_" + uuid.NewString()[:12],
	}
	payment := t.svc.SendMessage(ctx, t.other, booking.PaymentContent(req.ServiceType, req.PriceCents), KindPayment, SendExtra{
		ServiceRequestID: req.ID,
		Meta:             payMeta,
	})
	if payment == nil {
		t.logger.Warn("payment confirmation send failed",
			zap.String("service_request_id", req.ID))
		return
	}
	t.state.UpsertMessage(*payment)
	t.state.TouchConversation(t.convID, *payment, false)
}

// watchReconnect re-fetches the thread whenever the connection recovers,
// closing the gap the realtime channel left while down. The returned stop
// function is idempotent.
func (t *ThreadController) watchReconnect(ctx context.Context) (stop func()) {
	ch, unsub := t.bus.Subscribe("conn.status_changed", 8)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case evt := <-ch:
				change, ok := evt.Payload.(conn.StatusChange)
				if !ok || change.To != conn.Ready || change.From != conn.Reconnecting {
					continue
				}
				if err := t.Refresh(ctx); err != nil {
					t.logger.Warn("post-reconnect refresh failed",
						zap.String("conversation_id", t.convID), zap.Error(err))
				}
			case <-done:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
	var once sync.Once
	return func() {
		once.Do(func() {
			close(done)
			unsub()
		})
	}
}

// Close tears the thread down: realtime subscription, presence callbacks,
// reconnect watcher, active marker. Idempotent, and safe to call while Open
// is still running; whichever finishes second does the teardown.
func (t *ThreadController) Close() {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.closed = true
	sub := t.sub
	t.sub = nil
	cancelTyping := t.cancelTyping
	cancelReceipts := t.cancelReceipts
	stopResync := t.stopResync
	t.mu.Unlock()

	if sub != nil {
		sub.Unsubscribe()
	}
	if cancelTyping != nil {
		cancelTyping()
	}
	if cancelReceipts != nil {
		cancelReceipts()
	}
	if stopResync != nil {
		stopResync()
	}
	if t.state.Active() == t.convID {
		t.state.SetActive("")
	}
}
