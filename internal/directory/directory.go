// Package directory resolves user ids to display profiles, caching
// successful lookups for the lifetime of the process.
package directory

import (
	"context"
	"fmt"
	"sync"

	"github.com/pawkit/pawchat/internal/backend"
	"github.com/pawkit/pawchat/internal/convo"
)

// UserStore is the subset of the backend client the directory needs.
type UserStore interface {
	UserByID(ctx context.Context, id string) (*backend.UserRow, error)
	ListUsers(ctx context.Context, excludeID string) ([]backend.UserRow, error)
}

// Directory caches profile lookups. It satisfies convo.PartnerResolver.
type Directory struct {
	store UserStore

	mu    sync.RWMutex
	cache map[string]convo.Partner
}

func New(store UserStore) *Directory {
	return &Directory{store: store, cache: make(map[string]convo.Partner)}
}

// Resolve returns the profile for a user id. Missing users are an error so
// the caller can substitute its placeholder name; only successful lookups
// are cached.
func (d *Directory) Resolve(ctx context.Context, id string) (convo.Partner, error) {
	d.mu.RLock()
	p, ok := d.cache[id]
	d.mu.RUnlock()
	if ok {
		return p, nil
	}

	row, err := d.store.UserByID(ctx, id)
	if err != nil {
		return convo.Partner{}, fmt.Errorf("resolving user %s: %w", id, err)
	}
	if row == nil {
		return convo.Partner{}, fmt.Errorf("user %s not found", id)
	}

	p = convo.Partner{ID: row.ID, DisplayName: row.DisplayName, AvatarURL: row.AvatarURL}
	d.mu.Lock()
	d.cache[id] = p
	d.mu.Unlock()
	return p, nil
}

// ListOthers returns every user except the given one, for the
// new-conversation picker.
func (d *Directory) ListOthers(ctx context.Context, selfID string) ([]convo.Partner, error) {
	rows, err := d.store.ListUsers(ctx, selfID)
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	out := make([]convo.Partner, 0, len(rows))
	for _, row := range rows {
		out = append(out, convo.Partner{ID: row.ID, DisplayName: row.DisplayName, AvatarURL: row.AvatarURL})
	}
	return out, nil
}
