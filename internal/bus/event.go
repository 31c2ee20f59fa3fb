package bus

import "time"

// Event is a domain event published in-process.
//
// Kinds are dot-separated and namespaced by the publishing subsystem:
//
//	convo.*    conversation and message lifecycle (convo.message_upserted,
//	           convo.message_sent, convo.message_send_failed)
//	conn.*     backend connection state (conn.status_changed)
//	presence.* typing and receipt signals (presence.typing)
type Event struct {
	Kind      string
	Timestamp time.Time
	Payload   any
}
