package convo

import (
	"fmt"
	"strings"
)

// ConversationID derives the deterministic id for the unordered pair of
// participants: the lexicographically sorted join of both ids. Both
// participants compute the identical id regardless of who sent which row.
func ConversationID(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return a + ":" + b
}

// Participants resolves a conversation id back to its two participant ids.
func Participants(conversationID string) (string, string, error) {
	a, b, ok := strings.Cut(conversationID, ":")
	if !ok || a == "" || b == "" {
		return "", "", fmt.Errorf("malformed conversation id %q", conversationID)
	}
	return a, b, nil
}

// PartnerOf returns the participant of conversationID that is not self.
func PartnerOf(conversationID, self string) (string, error) {
	a, b, err := Participants(conversationID)
	if err != nil {
		return "", err
	}
	switch self {
	case a:
		return b, nil
	case b:
		return a, nil
	default:
		return "", fmt.Errorf("user %s is not a participant of %s", self, conversationID)
	}
}
