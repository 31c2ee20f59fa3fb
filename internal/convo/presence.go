package convo

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/pawkit/pawchat/internal/bus"
	"go.uber.org/zap"
)

// MessageSentEvent is the bus payload published once a send is confirmed
// (kind "convo.message_sent").
type MessageSentEvent struct {
	ConversationID string
	MessageID      string
}

// PresenceAndReceipts is the capability behind typing indicators and
// delivery/read receipts. The thread controller is unaware of which
// implementation it talks to: simulated timers today, real server
// acknowledgments once the backend grows a presence protocol.
type PresenceAndReceipts interface {
	ReportTyping(conversationID string, typing bool)
	SubscribeTyping(conversationID string, fn func(bool)) (cancel func())
	ReportDelivered(messageID string)
	ReportRead(messageID string)
	SubscribeReceipts(conversationID string, fn func(messageID string, status DeliveryStatus)) (cancel func())
}

// NopPresence is the do-nothing implementation.
type NopPresence struct{}

func (NopPresence) ReportTyping(string, bool) {}
func (NopPresence) SubscribeTyping(string, func(bool)) (cancel func()) {
	return func() {}
}
func (NopPresence) ReportDelivered(string) {}
func (NopPresence) ReportRead(string)      {}
func (NopPresence) SubscribeReceipts(string, func(string, DeliveryStatus)) (cancel func()) {
	return func() {}
}

// SimOptions tunes the simulated presence timers. The defaults approximate
// a responsive partner; tests inject short delays.
type SimOptions struct {
	DeliverAfter   time.Duration
	ReadAfter      time.Duration
	TypingInterval time.Duration
	TypingChance   float64
	TypingDuration time.Duration
}

func (o SimOptions) withDefaults() SimOptions {
	if o.DeliverAfter <= 0 {
		o.DeliverAfter = 800 * time.Millisecond
	}
	if o.ReadAfter <= 0 {
		o.ReadAfter = 2500 * time.Millisecond
	}
	if o.TypingInterval <= 0 {
		o.TypingInterval = 7 * time.Second
	}
	if o.TypingChance <= 0 {
		o.TypingChance = 0.3
	}
	if o.TypingDuration <= 0 {
		o.TypingDuration = 3 * time.Second
	}
	return o
}

// SimulatedPresence fakes the partner's side: sent messages advance to
// delivered then read on timers, and a periodic coin flip raises the typing
// flag. It listens for convo.message_sent events on the bus, the same
// signal a real implementation would take from server acknowledgments.
type SimulatedPresence struct {
	opts   SimOptions
	bus    *bus.Bus
	logger *zap.Logger

	mu          sync.Mutex
	nextID      int
	typingSubs  map[string]map[int]func(bool)
	receiptSubs map[string]map[int]func(string, DeliveryStatus)

	cancel context.CancelFunc
}

// NewSimulatedPresence creates the simulated implementation.
func NewSimulatedPresence(b *bus.Bus, opts SimOptions, logger *zap.Logger) *SimulatedPresence {
	return &SimulatedPresence{
		opts:        opts.withDefaults(),
		bus:         b,
		logger:      logger,
		typingSubs:  make(map[string]map[int]func(bool)),
		receiptSubs: make(map[string]map[int]func(string, DeliveryStatus)),
	}
}

// Start begins consuming message_sent events. Stop tears everything down.
func (p *SimulatedPresence) Start(ctx context.Context) {
	ctx, p.cancel = context.WithCancel(ctx)
	ch, unsub := p.bus.Subscribe("convo.message_sent", 64)

	go func() {
		defer unsub()
		for {
			select {
			case evt := <-ch:
				sent, ok := evt.Payload.(MessageSentEvent)
				if !ok {
					continue
				}
				p.scheduleReceipts(ctx, sent)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop stops all simulation timers and subscriptions.
func (p *SimulatedPresence) Stop() {
	if p.cancel != nil {
		p.cancel()
	}
}

func (p *SimulatedPresence) scheduleReceipts(ctx context.Context, sent MessageSentEvent) {
	go func() {
		select {
		case <-time.After(p.opts.DeliverAfter):
			p.emitReceipt(sent.ConversationID, sent.MessageID, StatusDelivered)
		case <-ctx.Done():
			return
		}
		select {
		case <-time.After(p.opts.ReadAfter):
			p.emitReceipt(sent.ConversationID, sent.MessageID, StatusRead)
		case <-ctx.Done():
		}
	}()
}

func (p *SimulatedPresence) emitReceipt(conversationID, messageID string, status DeliveryStatus) {
	p.mu.Lock()
	subs := make([]func(string, DeliveryStatus), 0, len(p.receiptSubs[conversationID]))
	for _, fn := range p.receiptSubs[conversationID] {
		subs = append(subs, fn)
	}
	p.mu.Unlock()
	for _, fn := range subs {
		fn(messageID, status)
	}
}

// ReportTyping publishes the local user's typing state. No server protocol
// exists yet, so this only informs in-process listeners.
func (p *SimulatedPresence) ReportTyping(conversationID string, typing bool) {
	p.bus.Publish(bus.Event{
		Kind:      "presence.typing",
		Timestamp: time.Now(),
		Payload:   map[string]any{"conversation_id": conversationID, "typing": typing},
	})
}

// SubscribeTyping starts the randomized partner-typing simulation for one
// conversation. The cancel function stops it and lowers the flag.
func (p *SimulatedPresence) SubscribeTyping(conversationID string, fn func(bool)) (cancel func()) {
	p.mu.Lock()
	id := p.nextID
	p.nextID++
	if p.typingSubs[conversationID] == nil {
		p.typingSubs[conversationID] = make(map[int]func(bool))
	}
	p.typingSubs[conversationID][id] = fn
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(p.opts.TypingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if rand.Float64() >= p.opts.TypingChance {
					continue
				}
				fn(true)
				select {
				case <-time.After(p.opts.TypingDuration):
					fn(false)
				case <-done:
					return
				}
			case <-done:
				return
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			close(done)
			p.mu.Lock()
			delete(p.typingSubs[conversationID], id)
			p.mu.Unlock()
			fn(false)
		})
	}
}

// ReportDelivered records a delivered receipt for an incoming message. The
// simulation has no server to tell.
func (p *SimulatedPresence) ReportDelivered(messageID string) {
	p.logger.Debug("delivered receipt (simulated)", zap.String("message_id", messageID))
}

// ReportRead records a read receipt for an incoming message.
func (p *SimulatedPresence) ReportRead(messageID string) {
	p.logger.Debug("read receipt (simulated)", zap.String("message_id", messageID))
}

// SubscribeReceipts registers for delivery-status advances of the local
// user's sent messages in one conversation.
func (p *SimulatedPresence) SubscribeReceipts(conversationID string, fn func(string, DeliveryStatus)) (cancel func()) {
	p.mu.Lock()
	id := p.nextID
	p.nextID++
	if p.receiptSubs[conversationID] == nil {
		p.receiptSubs[conversationID] = make(map[int]func(string, DeliveryStatus))
	}
	p.receiptSubs[conversationID][id] = fn
	p.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			p.mu.Lock()
			delete(p.receiptSubs[conversationID], id)
			p.mu.Unlock()
		})
	}
}
