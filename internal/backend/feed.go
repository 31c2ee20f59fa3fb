package backend

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// insertSubject is the table-keyed subject carrying row-insert events for
// the messages relation. Events are additionally published on
// insertSubject.<pairKey> so consumers that can scope at the broker get a
// per-conversation stream; the client-side filter in convo remains the
// authoritative relevance check.
const insertSubject = "pawchat.messages.insert"

// InsertEvent is the JSON envelope for a row-insert notification.
type InsertEvent struct {
	Table string     `json:"table"`
	Row   MessageRow `json:"row"`
}

// FeedOptions configures the realtime connection.
type FeedOptions struct {
	URL          string
	OnDisconnect func(error)
	OnReconnect  func()
}

// Feed is the realtime insert-event channel of the hosted store.
type Feed struct {
	nc     *nats.Conn
	logger *zap.Logger
}

// ConnectFeed dials the realtime channel with unlimited reconnects and a
// short reconnect wait. Disconnect/reconnect callbacks drive the connection
// state machine.
func ConnectFeed(opts FeedOptions, logger *zap.Logger) (*Feed, error) {
	natsOpts := []nats.Option{
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2 * time.Second),
		nats.ReconnectJitter(250*time.Millisecond, time.Second),
	}
	if opts.OnDisconnect != nil {
		natsOpts = append(natsOpts, nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			opts.OnDisconnect(err)
		}))
	}
	if opts.OnReconnect != nil {
		natsOpts = append(natsOpts, nats.ReconnectHandler(func(_ *nats.Conn) {
			opts.OnReconnect()
		}))
	}

	nc, err := nats.Connect(opts.URL, natsOpts...)
	if err != nil {
		return nil, fmt.Errorf("connect realtime feed: %w", err)
	}
	return &Feed{nc: nc, logger: logger}, nil
}

// Close drains and closes the connection.
func (f *Feed) Close() {
	if f.nc != nil {
		f.nc.Close()
	}
}

// PublishInsert fans out a freshly inserted row, emulating the hosted
// store's server-side insert notification. pairKey is the conversation id of
// the row's participant pair.
func (f *Feed) PublishInsert(pairKey string, row MessageRow) error {
	data, err := json.Marshal(InsertEvent{Table: "messages", Row: row})
	if err != nil {
		return fmt.Errorf("marshal insert event: %w", err)
	}
	if err := f.nc.Publish(insertSubject, data); err != nil {
		return fmt.Errorf("publish insert event: %w", err)
	}
	// Broker-scoped copy; best-effort.
	if err := f.nc.Publish(insertSubject+"."+pairKey, data); err != nil {
		f.logger.Warn("publish scoped insert event failed", zap.Error(err), zap.String("pair", pairKey))
	}
	return nil
}

// SubscribeInserts delivers every messages-relation insert event to handler.
// name identifies the subscriber in logs only; the transport cannot filter
// by participant pair, so relevance filtering is the caller's job. The
// returned function tears the subscription down.
func (f *Feed) SubscribeInserts(name string, handler func(MessageRow)) (func(), error) {
	sub, err := f.nc.Subscribe(insertSubject, func(msg *nats.Msg) {
		var evt InsertEvent
		if err := json.Unmarshal(msg.Data, &evt); err != nil {
			f.logger.Warn("malformed insert event", zap.Error(err), zap.String("subscriber", name))
			return
		}
		if evt.Table != "messages" {
			return
		}
		handler(evt.Row)
	})
	if err != nil {
		return nil, fmt.Errorf("subscribe inserts (%s): %w", name, err)
	}
	f.logger.Info("insert subscription opened", zap.String("subscriber", name))
	return func() {
		_ = sub.Unsubscribe()
		f.logger.Info("insert subscription closed", zap.String("subscriber", name))
	}, nil
}
