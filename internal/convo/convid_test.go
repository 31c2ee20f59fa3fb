package convo

import "testing"

func TestConversationIDSymmetry(t *testing.T) {
	a := ConversationID("user_owner", "user_provider")
	b := ConversationID("user_provider", "user_owner")
	if a != b {
		t.Fatalf("ConversationID not symmetric: %q vs %q", a, b)
	}
	if a != "user_owner:user_provider" {
		t.Fatalf("ConversationID = %q, want sorted pair", a)
	}
}

func TestParticipants(t *testing.T) {
	a, b, err := Participants("alice:bob")
	if err != nil {
		t.Fatalf("Participants: %v", err)
	}
	if a != "alice" || b != "bob" {
		t.Fatalf("Participants = %q, %q", a, b)
	}

	if _, _, err := Participants("no-separator"); err == nil {
		t.Fatal("expected error for malformed id")
	}
}

func TestPartnerOf(t *testing.T) {
	id := ConversationID("alice", "bob")
	got, err := PartnerOf(id, "alice")
	if err != nil || got != "bob" {
		t.Fatalf("PartnerOf(alice) = %q, %v, want bob", got, err)
	}
	got, err = PartnerOf(id, "bob")
	if err != nil || got != "alice" {
		t.Fatalf("PartnerOf(bob) = %q, %v, want alice", got, err)
	}
	if _, err := PartnerOf(id, "carol"); err == nil {
		t.Fatal("expected error for non-participant")
	}
}
