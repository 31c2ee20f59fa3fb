package convo

import (
	"sort"
	"strings"
	"sync"
	"time"
)

// Filters are pure view-side filters over the conversation list; nothing is
// persisted server-side.
type Filters struct {
	Search      string
	Archived    bool
	ServiceType string
	Role        string // "owner" or "provider" view; empty shows both
}

// State is the client-side conversation cache: a normalized by-id map plus
// ordered id list for the conversation list, and the active conversation's
// message timeline. All mutations are serialized through one mutex; readers
// get snapshots. Messages are held newest-first.
type State struct {
	mu sync.RWMutex

	conversations map[string]Conversation
	order         []string
	listLoading   bool
	listError     string

	active        string
	messages      []Message
	threadLoading bool
	sending       bool
	threadError   string
	hasMore       bool
	cursor        time.Time
	partnerTyping bool

	filters Filters

	refreshCh chan struct{}
}

// NewState creates an empty state container.
func NewState() *State {
	return &State{
		conversations: make(map[string]Conversation),
		refreshCh:     make(chan struct{}, 1),
	}
}

// RefreshCh returns the channel that signals UI refresh. Signals coalesce.
func (s *State) RefreshCh() <-chan struct{} {
	return s.refreshCh
}

func (s *State) signalRefresh() {
	select {
	case s.refreshCh <- struct{}{}:
	default:
	}
}

// SetConversations merges a fetched list into the cache: upsert per id,
// preserving map identity across refreshes. Ids absent from the fetch are
// pruned only when the fetch is authoritative (a complete list), so a
// partial update never makes conversations vanish.
func (s *State) SetConversations(list []Conversation, authoritative bool) {
	s.mu.Lock()
	if authoritative {
		s.conversations = make(map[string]Conversation, len(list))
	}
	for _, c := range list {
		s.conversations[c.ID] = c
	}
	s.reorderLocked()
	s.listError = ""
	s.mu.Unlock()
	s.signalRefresh()
}

// UpsertConversation updates or inserts a single conversation, used for
// incremental realtime bumps without a full re-fetch.
func (s *State) UpsertConversation(c Conversation) {
	s.mu.Lock()
	s.conversations[c.ID] = c
	s.reorderLocked()
	s.mu.Unlock()
	s.signalRefresh()
}

// TouchConversation advances a conversation's last-message preview in place.
// Unknown ids are ignored; the next full fetch will materialize them.
func (s *State) TouchConversation(id string, msg Message, incrementUnread bool) {
	s.mu.Lock()
	c, ok := s.conversations[id]
	if !ok {
		s.mu.Unlock()
		return
	}
	if msg.CreatedAt.After(c.LastMessageAt) {
		c.LastMessage = msg.Content
		c.LastMessageKind = msg.Kind
		c.LastMessageAt = msg.CreatedAt
	}
	if incrementUnread {
		c.UnreadCount++
	}
	s.conversations[id] = c
	s.reorderLocked()
	s.mu.Unlock()
	s.signalRefresh()
}

// ClearUnread zeroes a conversation's unread badge (after read-marking).
func (s *State) ClearUnread(id string) {
	s.mu.Lock()
	if c, ok := s.conversations[id]; ok {
		c.UnreadCount = 0
		s.conversations[id] = c
	}
	s.mu.Unlock()
	s.signalRefresh()
}

func (s *State) reorderLocked() {
	s.order = s.order[:0]
	for id := range s.conversations {
		s.order = append(s.order, id)
	}
	sort.Slice(s.order, func(i, j int) bool {
		return s.conversations[s.order[i]].LastMessageAt.After(s.conversations[s.order[j]].LastMessageAt)
	})
}

// Conversations returns an ordered snapshot of the cached list.
func (s *State) Conversations() []Conversation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Conversation, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.conversations[id])
	}
	return out
}

// VisibleConversations returns the ordered snapshot with view filters
// applied.
func (s *State) VisibleConversations() []Conversation {
	s.mu.RLock()
	filters := s.filters
	s.mu.RUnlock()

	all := s.Conversations()
	if filters == (Filters{}) {
		return all
	}
	out := all[:0:0]
	for _, c := range all {
		if filters.Search != "" &&
			!containsFold(c.Partner.DisplayName, filters.Search) &&
			!containsFold(c.LastMessage, filters.Search) {
			continue
		}
		if filters.ServiceType != "" && c.ServiceType != filters.ServiceType {
			continue
		}
		out = append(out, c)
	}
	return out
}

// SetFilters replaces the active view filters.
func (s *State) SetFilters(f Filters) {
	s.mu.Lock()
	s.filters = f
	s.mu.Unlock()
	s.signalRefresh()
}

// CurrentFilters returns the active view filters.
func (s *State) CurrentFilters() Filters {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.filters
}

// BeginListLoad flips the conversation-list loading flag on and reports
// whether the caller won. A false return means a fetch is already in flight
// and the caller must not start another; the winner ends the load with
// SetListLoading(false).
func (s *State) BeginListLoad() bool {
	s.mu.Lock()
	if s.listLoading {
		s.mu.Unlock()
		return false
	}
	s.listLoading = true
	s.mu.Unlock()
	s.signalRefresh()
	return true
}

// SetListLoading toggles the conversation-list loading flag.
func (s *State) SetListLoading(v bool) {
	s.mu.Lock()
	s.listLoading = v
	s.mu.Unlock()
	s.signalRefresh()
}

// ListLoading reports whether a conversation-list fetch is in flight.
func (s *State) ListLoading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listLoading
}

// SetListError records a fetch error for the conversation list. The cached
// list is left intact: stale-but-available beats empty.
func (s *State) SetListError(msg string) {
	s.mu.Lock()
	s.listError = msg
	s.mu.Unlock()
	s.signalRefresh()
}

// ListError returns the current conversation-list error, empty when none.
func (s *State) ListError() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listError
}

// SetActive switches the active conversation and clears the timeline. The
// caller is responsible for triggering a fresh fetch.
func (s *State) SetActive(id string) {
	s.mu.Lock()
	s.active = id
	s.messages = nil
	s.threadError = ""
	s.partnerTyping = false
	s.hasMore = false
	s.cursor = time.Time{}
	s.mu.Unlock()
	s.signalRefresh()
}

// Active returns the active conversation id, empty when none is open.
func (s *State) Active() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active
}

// SetMessages replaces the active timeline after a full fetch.
func (s *State) SetMessages(list []Message, hasMore bool, cursor time.Time) {
	s.mu.Lock()
	s.messages = append(s.messages[:0:0], list...)
	s.sortMessagesLocked()
	s.hasMore = hasMore
	s.cursor = cursor
	s.threadError = ""
	s.mu.Unlock()
	s.signalRefresh()
}

// AppendOlder adds an older page to the timeline (pagination).
func (s *State) AppendOlder(list []Message, hasMore bool, cursor time.Time) {
	s.mu.Lock()
	s.messages = append(s.messages, list...)
	s.dedupMessagesLocked()
	s.sortMessagesLocked()
	s.hasMore = hasMore
	s.cursor = cursor
	s.mu.Unlock()
	s.signalRefresh()
}

// UpsertMessage inserts or updates one message by id, used for optimistic
// sends and realtime arrivals. The same logical message arriving through
// both the send path and the realtime echo converges to a single entry. An
// incoming empty delivery status never clobbers a known one.
func (s *State) UpsertMessage(msg Message) {
	s.mu.Lock()
	s.upsertMessageLocked(msg)
	s.sortMessagesLocked()
	s.mu.Unlock()
	s.signalRefresh()
}

// ReplaceMessage swaps a temporary optimistic entry for its server-confirmed
// counterpart. If the realtime echo already delivered the confirmed message,
// the temp entry is simply dropped. Reports whether the temp id was found.
func (s *State) ReplaceMessage(tempID string, msg Message) bool {
	s.mu.Lock()
	found := false
	kept := s.messages[:0]
	for _, m := range s.messages {
		if m.ID == tempID {
			found = true
			continue
		}
		kept = append(kept, m)
	}
	s.messages = kept
	s.upsertMessageLocked(msg)
	s.sortMessagesLocked()
	s.mu.Unlock()
	s.signalRefresh()
	return found
}

func (s *State) upsertMessageLocked(msg Message) {
	for i, m := range s.messages {
		if m.ID == msg.ID {
			if msg.Status == "" {
				msg.Status = m.Status
			}
			s.messages[i] = msg
			return
		}
	}
	s.messages = append(s.messages, msg)
}

func (s *State) dedupMessagesLocked() {
	seen := make(map[string]bool, len(s.messages))
	kept := s.messages[:0]
	for _, m := range s.messages {
		if seen[m.ID] {
			continue
		}
		seen[m.ID] = true
		kept = append(kept, m)
	}
	s.messages = kept
}

func (s *State) sortMessagesLocked() {
	sort.SliceStable(s.messages, func(i, j int) bool {
		return s.messages[i].CreatedAt.After(s.messages[j].CreatedAt)
	})
}

// SetMessageStatus advances the delivery status of a locally-originated
// message. Reports whether the id was found.
func (s *State) SetMessageStatus(id string, status DeliveryStatus) bool {
	s.mu.Lock()
	found := false
	for i, m := range s.messages {
		if m.ID == id {
			s.messages[i].Status = status
			found = true
			break
		}
	}
	s.mu.Unlock()
	if found {
		s.signalRefresh()
	}
	return found
}

// MessageByID returns a snapshot of one timeline entry.
func (s *State) MessageByID(id string) (Message, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, m := range s.messages {
		if m.ID == id {
			return m, true
		}
	}
	return Message{}, false
}

// Messages returns a newest-first snapshot of the active timeline.
func (s *State) Messages() []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append(s.messages[:0:0], s.messages...)
}

// SetThreadLoading toggles the active-thread loading flag.
func (s *State) SetThreadLoading(v bool) {
	s.mu.Lock()
	s.threadLoading = v
	s.mu.Unlock()
	s.signalRefresh()
}

// ThreadLoading reports whether a thread fetch is in flight.
func (s *State) ThreadLoading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.threadLoading
}

// SetSending toggles the composer's sending flag. Orthogonal to the screen
// phase: a send in flight does not block reading.
func (s *State) SetSending(v bool) {
	s.mu.Lock()
	s.sending = v
	s.mu.Unlock()
	s.signalRefresh()
}

// Sending reports whether a send is in flight.
func (s *State) Sending() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sending
}

// SetThreadError records a fetch error for the active thread. Previously
// loaded messages remain visible.
func (s *State) SetThreadError(msg string) {
	s.mu.Lock()
	s.threadError = msg
	s.mu.Unlock()
	s.signalRefresh()
}

// ThreadError returns the current thread error, empty when none.
func (s *State) ThreadError() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.threadError
}

// SetTyping toggles the partner-is-typing flag for the active thread.
func (s *State) SetTyping(v bool) {
	s.mu.Lock()
	changed := s.partnerTyping != v
	s.partnerTyping = v
	s.mu.Unlock()
	if changed {
		s.signalRefresh()
	}
}

// Typing reports whether the partner-is-typing flag is set.
func (s *State) Typing() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.partnerTyping
}

// Pagination returns the thread's pagination cursor.
func (s *State) Pagination() (hasMore bool, cursor time.Time) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.hasMore, s.cursor
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
