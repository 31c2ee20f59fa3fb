// Package identity holds the authenticated user for the running profile.
package identity

// Identity is the local user's id, fixed for the process lifetime.
type Identity struct {
	userID string
}

func New(userID string) *Identity {
	return &Identity{userID: userID}
}

// UserID returns the local user's id.
func (i *Identity) UserID() string {
	return i.userID
}
