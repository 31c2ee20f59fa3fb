package convo

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pawkit/pawchat/internal/backend"
	"github.com/pawkit/pawchat/internal/booking"
	"github.com/pawkit/pawchat/internal/bus"
	"github.com/pawkit/pawchat/internal/conn"
	"go.uber.org/zap"
)

type threadFixture struct {
	store  *fakeStore
	stream *fakeStream
	state  *State
	bus    *bus.Bus
	ctrl   *ThreadController
}

func newThreadFixture(t *testing.T) *threadFixture {
	t.Helper()
	return newThreadFixtureWithPresence(t, NopPresence{})
}

func newThreadFixtureWithPresence(t *testing.T, presence PresenceAndReceipts) *threadFixture {
	t.Helper()
	store := newFakeStore()
	stream := newFakeStream()
	b := bus.New()
	svc := newTestService(store)
	state := NewState()
	subs := NewSubscriptionManager("alice", stream, nil, zap.NewNop())
	ctrl := NewThreadController(svc, state, subs, presence, b, "bob", zap.NewNop())
	return &threadFixture{store: store, stream: stream, state: state, bus: b, ctrl: ctrl}
}

// recordingPresence captures outgoing presence reports.
type recordingPresence struct {
	mu        sync.Mutex
	typing    []bool
	delivered []string
	read      []string
}

func (p *recordingPresence) ReportTyping(_ string, active bool) {
	p.mu.Lock()
	p.typing = append(p.typing, active)
	p.mu.Unlock()
}

func (p *recordingPresence) SubscribeTyping(string, func(bool)) (cancel func()) {
	return func() {}
}

func (p *recordingPresence) ReportDelivered(messageID string) {
	p.mu.Lock()
	p.delivered = append(p.delivered, messageID)
	p.mu.Unlock()
}

func (p *recordingPresence) ReportRead(messageID string) {
	p.mu.Lock()
	p.read = append(p.read, messageID)
	p.mu.Unlock()
}

func (p *recordingPresence) SubscribeReceipts(string, func(string, DeliveryStatus)) (cancel func()) {
	return func() {}
}

func TestThreadOpenLoadsAndSubscribes(t *testing.T) {
	f := newThreadFixture(t)
	at := time.Now().Add(-time.Hour)
	readAt := at
	f.store.rows = []backend.MessageRow{
		{ID: "m1", SenderID: "bob", RecipientID: "alice", Content: "hi", CreatedAt: at, ReadAt: &readAt},
	}

	if err := f.ctrl.Open(context.Background()); err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer f.ctrl.Close()

	if f.ctrl.Phase() != PhaseReady {
		t.Fatalf("phase = %s, want ready", f.ctrl.Phase())
	}
	if f.state.Active() != f.ctrl.ConversationID() {
		t.Fatalf("active = %q", f.state.Active())
	}
	if got := f.state.Messages(); len(got) != 1 || got[0].ID != "m1" {
		t.Fatalf("timeline = %v", got)
	}

	// Realtime arrival lands in the timeline and bumps the list preview.
	f.state.SetConversations([]Conversation{{ID: f.ctrl.ConversationID()}}, true)
	f.stream.push(backend.MessageRow{ID: "m2", SenderID: "bob", RecipientID: "alice", Content: "new", CreatedAt: time.Now()})
	if got := f.state.Messages(); len(got) != 2 {
		t.Fatalf("realtime arrival missing, timeline = %v", got)
	}
	if got := f.state.Conversations(); got[0].LastMessage != "new" {
		t.Fatalf("preview = %q, want bumped to newest", got[0].LastMessage)
	}
}

func TestThreadOpenFetchError(t *testing.T) {
	f := newThreadFixture(t)
	f.store.fetchErr = errors.New("db down")

	if err := f.ctrl.Open(context.Background()); err == nil {
		t.Fatal("Open should propagate the fetch error")
	}
	if f.ctrl.Phase() != PhaseError {
		t.Fatalf("phase = %s, want error", f.ctrl.Phase())
	}
	if f.state.ThreadError() == "" {
		t.Fatal("thread error not surfaced")
	}
}

func TestThreadSendOptimisticConvergence(t *testing.T) {
	f := newThreadFixture(t)
	if err := f.ctrl.Open(context.Background()); err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer f.ctrl.Close()

	f.ctrl.Send(context.Background(), "hello bob")

	msgs := f.state.Messages()
	if len(msgs) != 1 {
		t.Fatalf("timeline has %d entries after send, want exactly 1", len(msgs))
	}
	if strings.HasPrefix(msgs[0].ID, "tmp-") {
		t.Fatalf("temporary id %q survived confirmation", msgs[0].ID)
	}
	if msgs[0].Status != StatusSent || msgs[0].LocalOnly {
		t.Fatalf("confirmed entry = %+v", msgs[0])
	}
}

func TestThreadSendFailureAndResend(t *testing.T) {
	f := newThreadFixture(t)
	if err := f.ctrl.Open(context.Background()); err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer f.ctrl.Close()

	f.store.setInsertErr(errors.New("insert rejected"))
	f.ctrl.Send(context.Background(), "doomed")

	msgs := f.state.Messages()
	if len(msgs) != 1 || msgs[0].Status != StatusError || !msgs[0].LocalOnly {
		t.Fatalf("failed send entry = %+v, want local error entry", msgs[0])
	}
	tempID := msgs[0].ID

	f.store.setInsertErr(nil)
	f.ctrl.Resend(context.Background(), tempID)

	msgs = f.state.Messages()
	if len(msgs) != 1 {
		t.Fatalf("resend left %d entries, want 1", len(msgs))
	}
	if msgs[0].ID == tempID || msgs[0].Status != StatusSent {
		t.Fatalf("resent entry = %+v, want confirmed", msgs[0])
	}
	if msgs[0].Content != "doomed" {
		t.Fatalf("resend content = %q", msgs[0].Content)
	}
}

func TestThreadApplyTransition(t *testing.T) {
	f := newThreadFixture(t)
	if err := f.ctrl.Open(context.Background()); err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer f.ctrl.Close()

	req := booking.ServiceRequest{ID: "req_1", ServiceType: "dog-walking", PriceCents: 3500}
	f.ctrl.ApplyTransition(context.Background(), req, booking.TransitionAccepted)

	msgs := f.state.Messages()
	if len(msgs) != 1 {
		t.Fatalf("got %d entries, want 1", len(msgs))
	}
	if msgs[0].Kind != KindStatusUpdate || msgs[0].Meta.Transition != "accepted" {
		t.Fatalf("status entry = %+v", msgs[0])
	}
	if msgs[0].Content != "Dog Walking request accepted" {
		t.Fatalf("content = %q", msgs[0].Content)
	}
}

func TestThreadApplyTransitionPaid(t *testing.T) {
	f := newThreadFixture(t)
	if err := f.ctrl.Open(context.Background()); err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer f.ctrl.Close()

	req := booking.ServiceRequest{ID: "req_1", ServiceType: "grooming", PriceCents: 4550}
	f.ctrl.ApplyTransition(context.Background(), req, booking.TransitionPaid)

	msgs := f.state.Messages()
	if len(msgs) != 2 {
		t.Fatalf("paid transition produced %d entries, want status + payment", len(msgs))
	}
	var payment *Message
	for i := range msgs {
		if msgs[i].Kind == KindPayment {
			payment = &msgs[i]
		}
	}
	if payment == nil {
		t.Fatal("payment confirmation missing")
	}
	if !strings.HasPrefix(payment.Meta.TransactionID, "txn_") {
		t.Fatalf("transaction id = %q", payment.Meta.TransactionID)
	}
	if payment.Content != "Payment of $45.50 confirmed for Grooming" {
		t.Fatalf("payment content = %q", payment.Content)
	}
}

func TestThreadApplyTransitionWriteFailureKeepsLocalEntry(t *testing.T) {
	f := newThreadFixture(t)
	if err := f.ctrl.Open(context.Background()); err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer f.ctrl.Close()

	f.store.setInsertErr(errors.New("insert rejected"))
	req := booking.ServiceRequest{ID: "req_1", ServiceType: "dog-walking"}
	f.ctrl.ApplyTransition(context.Background(), req, booking.TransitionCompleted)

	msgs := f.state.Messages()
	if len(msgs) != 1 {
		t.Fatalf("got %d entries, want 1 local fallback", len(msgs))
	}
	if !msgs[0].LocalOnly || msgs[0].Status != StatusError {
		t.Fatalf("fallback entry = %+v, want local-only error entry", msgs[0])
	}
	if msgs[0].Kind != KindStatusUpdate {
		t.Fatalf("fallback kind = %q", msgs[0].Kind)
	}
}

func TestThreadRefreshesAfterReconnect(t *testing.T) {
	f := newThreadFixture(t)
	if err := f.ctrl.Open(context.Background()); err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer f.ctrl.Close()

	// A row lands while the realtime channel is down.
	at := time.Now()
	readAt := at
	f.store.rows = append(f.store.rows, backend.MessageRow{
		ID: "missed", SenderID: "bob", RecipientID: "alice",
		Content: "sent while offline", CreatedAt: at, ReadAt: &readAt,
	})

	f.bus.Publish(bus.Event{
		Kind:      "conn.status_changed",
		Timestamp: time.Now(),
		Payload:   conn.StatusChange{From: conn.Reconnecting, To: conn.Ready},
	})

	deadline := time.After(time.Second)
	for {
		if _, ok := f.state.MessageByID("missed"); ok {
			return
		}
		select {
		case <-deadline:
			t.Fatal("missed row never resynced after reconnect")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

// TestThreadCloseDuringOpen closes the thread while the initial fetch is
// still blocked. Everything Open wires afterwards must be torn down again:
// no live subscription, and no fetch result or late arrival landing in
// whichever conversation the user opened next.
func TestThreadCloseDuringOpen(t *testing.T) {
	f := newThreadFixture(t)
	gate := make(chan struct{})
	started := make(chan struct{}, 1)
	f.store.fetchGate = gate
	f.store.fetchStarted = started
	at := time.Now()
	readAt := at
	f.store.rows = []backend.MessageRow{
		{ID: "m1", SenderID: "bob", RecipientID: "alice", Content: "hi", CreatedAt: at, ReadAt: &readAt},
	}

	openDone := make(chan struct{})
	go func() {
		_ = f.ctrl.Open(context.Background())
		close(openDone)
	}()

	<-started
	f.ctrl.Close()
	close(gate)
	<-openDone

	if n := f.stream.activeCount(); n != 0 {
		t.Fatalf("%d realtime subscriptions survived Close", n)
	}
	if got := f.state.Messages(); len(got) != 0 {
		t.Fatalf("closed thread's fetch populated the timeline: %v", got)
	}

	// The user has moved on to carol; bob's traffic must not reach her
	// timeline through a leftover handler.
	f.state.SetActive(ConversationID("alice", "carol"))
	f.stream.push(backend.MessageRow{ID: "stray", SenderID: "bob", RecipientID: "alice", CreatedAt: time.Now()})
	if _, ok := f.state.MessageByID("stray"); ok {
		t.Fatal("closed thread delivered into another conversation's timeline")
	}
}

// TestThreadReportsIncomingReceipts checks that a realtime arrival on an
// open thread reports delivered and read for the incoming message, and that
// the controller's own echo reports nothing.
func TestThreadReportsIncomingReceipts(t *testing.T) {
	presence := &recordingPresence{}
	f := newThreadFixtureWithPresence(t, presence)
	if err := f.ctrl.Open(context.Background()); err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer f.ctrl.Close()

	f.stream.push(backend.MessageRow{ID: "in", SenderID: "bob", RecipientID: "alice", CreatedAt: time.Now()})
	f.stream.push(backend.MessageRow{ID: "echo", SenderID: "alice", RecipientID: "bob", CreatedAt: time.Now()})

	presence.mu.Lock()
	defer presence.mu.Unlock()
	if len(presence.delivered) != 1 || presence.delivered[0] != "in" {
		t.Fatalf("delivered reports = %v, want [in]", presence.delivered)
	}
	if len(presence.read) != 1 || presence.read[0] != "in" {
		t.Fatalf("read reports = %v, want [in]", presence.read)
	}
}

func TestThreadNotifyComposing(t *testing.T) {
	presence := &recordingPresence{}
	f := newThreadFixtureWithPresence(t, presence)
	if err := f.ctrl.Open(context.Background()); err != nil {
		t.Fatalf("Open: %v", err)
	}

	f.ctrl.NotifyComposing(true)
	f.ctrl.NotifyComposing(false)
	f.ctrl.Close()
	f.ctrl.NotifyComposing(true) // closed threads stay silent

	presence.mu.Lock()
	defer presence.mu.Unlock()
	if len(presence.typing) != 2 || !presence.typing[0] || presence.typing[1] {
		t.Fatalf("typing reports = %v, want [true false]", presence.typing)
	}
}

func TestThreadCloseClearsActive(t *testing.T) {
	f := newThreadFixture(t)
	if err := f.ctrl.Open(context.Background()); err != nil {
		t.Fatalf("Open: %v", err)
	}

	f.ctrl.Close()
	if f.state.Active() != "" {
		t.Fatalf("active = %q after close", f.state.Active())
	}

	// No realtime delivery after close.
	f.stream.push(backend.MessageRow{ID: "late", SenderID: "bob", RecipientID: "alice", CreatedAt: time.Now()})
	if _, ok := f.state.MessageByID("late"); ok {
		t.Fatal("message delivered after close")
	}
}
