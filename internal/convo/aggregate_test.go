package convo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pawkit/pawchat/internal/backend"
)

type staticResolver struct {
	names map[string]string
}

func (r *staticResolver) Resolve(_ context.Context, id string) (Partner, error) {
	name, ok := r.names[id]
	if !ok {
		return Partner{}, errors.New("not found")
	}
	return Partner{ID: id, DisplayName: name}, nil
}

func row(t *testing.T, id, sender, recipient string, at time.Time, read bool) backend.MessageRow {
	t.Helper()
	r := backend.MessageRow{
		ID:          id,
		SenderID:    sender,
		RecipientID: recipient,
		Content:     "msg " + id,
		CreatedAt:   at,
	}
	if read {
		readAt := at.Add(time.Minute)
		r.ReadAt = &readAt
	}
	return r
}

func TestAggregateOneConversationPerPair(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rows := []backend.MessageRow{
		row(t, "m4", "bob", "alice", base.Add(3*time.Minute), false),
		row(t, "m3", "alice", "bob", base.Add(2*time.Minute), true),
		row(t, "m2", "carol", "alice", base.Add(time.Minute), false),
		row(t, "m1", "bob", "alice", base, false),
	}
	resolver := &staticResolver{names: map[string]string{"bob": "Bob", "carol": "Carol"}}

	list := Aggregate(context.Background(), "alice", rows, resolver)
	if len(list) != 2 {
		t.Fatalf("got %d conversations, want 2", len(list))
	}
	// Newest conversation first.
	if list[0].Partner.ID != "bob" || list[1].Partner.ID != "carol" {
		t.Fatalf("order = %s, %s; want bob, carol", list[0].Partner.ID, list[1].Partner.ID)
	}
	if list[0].LastMessage != "msg m4" {
		t.Fatalf("bob last message = %q, want msg m4", list[0].LastMessage)
	}
	// Unread counts partner-sent unread rows across the whole input, not
	// just the newest one.
	if list[0].UnreadCount != 2 {
		t.Fatalf("bob unread = %d, want 2", list[0].UnreadCount)
	}
	if list[1].UnreadCount != 1 {
		t.Fatalf("carol unread = %d, want 1", list[1].UnreadCount)
	}
}

func TestAggregateOutOfOrderInput(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rows := []backend.MessageRow{
		row(t, "old", "bob", "alice", base, true),
		row(t, "new", "bob", "alice", base.Add(time.Hour), true),
	}
	list := Aggregate(context.Background(), "alice", rows, &staticResolver{names: map[string]string{"bob": "Bob"}})
	if len(list) != 1 {
		t.Fatalf("got %d conversations, want 1", len(list))
	}
	if list[0].LastMessage != "msg new" {
		t.Fatalf("last message = %q, want the newer row regardless of input order", list[0].LastMessage)
	}
}

func TestAggregateUnknownPartnerFallback(t *testing.T) {
	rows := []backend.MessageRow{
		row(t, "m1", "ghost", "alice", time.Now(), false),
	}
	list := Aggregate(context.Background(), "alice", rows, &staticResolver{names: map[string]string{}})
	if len(list) != 1 {
		t.Fatalf("got %d conversations, want 1", len(list))
	}
	if list[0].Partner.DisplayName != FallbackDisplayName {
		t.Fatalf("display name = %q, want %q", list[0].Partner.DisplayName, FallbackDisplayName)
	}
}

func TestAggregateServiceRequestLink(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	linked := row(t, "m1", "bob", "alice", base, true)
	linked.ServiceRequestID = "req_1"
	linked.ServiceType = "dog-walking"
	rows := []backend.MessageRow{
		row(t, "m2", "alice", "bob", base.Add(time.Minute), true),
		linked,
	}
	list := Aggregate(context.Background(), "alice", rows, &staticResolver{names: map[string]string{"bob": "Bob"}})
	if list[0].ServiceRequestID != "req_1" || list[0].ServiceType != "dog-walking" {
		t.Fatalf("request link = %q/%q, want req_1/dog-walking",
			list[0].ServiceRequestID, list[0].ServiceType)
	}
}

func TestAggregateEmptyInput(t *testing.T) {
	list := Aggregate(context.Background(), "alice", nil, nil)
	if len(list) != 0 {
		t.Fatalf("got %d conversations from empty input", len(list))
	}
}

func TestAggregateSelfPairNeverUnread(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rows := []backend.MessageRow{
		row(t, "n2", "alice", "alice", base.Add(time.Minute), false),
		row(t, "n1", "alice", "alice", base, false),
	}
	list := Aggregate(context.Background(), "alice", rows, &staticResolver{names: map[string]string{"alice": "Alice"}})
	if len(list) != 1 {
		t.Fatalf("got %d conversations, want 1", len(list))
	}
	if list[0].UnreadCount != 0 {
		t.Fatalf("notes-to-self unread = %d, want 0", list[0].UnreadCount)
	}
}
