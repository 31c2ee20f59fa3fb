package booking

import (
	"context"
	"errors"
	"testing"

	"github.com/pawkit/pawchat/internal/backend"
)

type fakeRequestStore struct {
	rows map[string]*backend.ServiceRequestRow
	err  error
}

func (f *fakeRequestStore) ServiceRequestByID(_ context.Context, id string) (*backend.ServiceRequestRow, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.rows[id], nil
}

func TestLookupByID(t *testing.T) {
	store := &fakeRequestStore{rows: map[string]*backend.ServiceRequestRow{
		"req_1": {ID: "req_1", OwnerID: "alice", ProviderID: "bob", ServiceType: "dog-walking", Status: "pending", PriceCents: 3500},
	}}
	lookup := NewLookup(store)

	req, err := lookup.ByID(context.Background(), "req_1")
	if err != nil {
		t.Fatalf("ByID: %v", err)
	}
	if req.Status != StatusPending || req.PriceCents != 3500 {
		t.Fatalf("request = %+v", req)
	}

	// Missing rows resolve to nil, not an error.
	req, err = lookup.ByID(context.Background(), "req_missing")
	if err != nil || req != nil {
		t.Fatalf("missing row: %v, %v", req, err)
	}

	store.err = errors.New("db down")
	if _, err := lookup.ByID(context.Background(), "req_1"); err == nil {
		t.Fatal("expected store error to propagate")
	}
}

func TestTitle(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"dog-walking", "Dog Walking"},
		{"grooming", "Grooming"},
		{"pet-sitting", "Pet Sitting"},
		{"", "Service"},
	}
	for _, tc := range cases {
		if got := Title(tc.in); got != tc.want {
			t.Errorf("Title(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestStatusContent(t *testing.T) {
	if got := StatusContent("dog-walking", TransitionAccepted); got != "Dog Walking request accepted" {
		t.Fatalf("accepted content = %q", got)
	}
	if got := StatusContent("grooming", TransitionDeclined); got != "Grooming request declined" {
		t.Fatalf("declined content = %q", got)
	}
	if got := StatusContent("boarding", Transition("bogus")); got != "Boarding request updated" {
		t.Fatalf("unknown transition content = %q", got)
	}
}

func TestPaymentContent(t *testing.T) {
	if got := PaymentContent("grooming", 4550); got != "Payment of $45.50 confirmed for Grooming" {
		t.Fatalf("payment content = %q", got)
	}
	if got := PaymentContent("dog-walking", 500); got != "Payment of $5.00 confirmed for Dog Walking" {
		t.Fatalf("payment content = %q", got)
	}
}

func TestTypeHintUnknown(t *testing.T) {
	if got := TypeHint("llama-shearing"); got.Icon != "•" {
		t.Fatalf("unknown hint = %+v", got)
	}
	if got := TypeHint("dog-walking"); got.Color != "green" {
		t.Fatalf("dog-walking hint = %+v", got)
	}
}
