package hub

import (
	"sync"
	"time"
)

// typingTimeout is how long a typing indicator survives without a refresh.
// Expiry is owned by the tracker, never by the client: an indicator from a
// dropped connection disappears within this window on its own.
const typingTimeout = 3 * time.Second

type typingKey struct {
	chatID   string
	userID   string
	clientID string
}

// TypingTracker holds short-lived typing state with automatic expiry. Entries
// are per connection so one device dropping never clears another device's
// indicator, but broadcasts are per user: callers emit start on the user's
// first indicator in a chat and stop on their last. The onExpire callback
// runs on the timer goroutine.
type TypingTracker struct {
	mu       sync.Mutex
	timers   map[typingKey]*time.Timer
	onExpire func(chatID, userID string)
	timeout  time.Duration
}

func NewTypingTracker(onExpire func(chatID, userID string)) *TypingTracker {
	return &TypingTracker{
		timers:   make(map[typingKey]*time.Timer),
		onExpire: onExpire,
		timeout:  typingTimeout,
	}
}

// Start registers or refreshes a connection's typing indicator. Returns true
// when this is the user's first active indicator in the chat.
func (t *TypingTracker) Start(chatID, userID, clientID string) bool {
	key := typingKey{chatID: chatID, userID: userID, clientID: clientID}

	t.mu.Lock()
	defer t.mu.Unlock()

	if timer, ok := t.timers[key]; ok {
		timer.Reset(t.timeout)
		return false
	}

	first := !t.userActiveLocked(chatID, userID)
	t.timers[key] = time.AfterFunc(t.timeout, func() {
		if t.Stop(chatID, userID, clientID) {
			t.onExpire(chatID, userID)
		}
	})
	return first
}

// Stop removes a connection's typing indicator. Returns true when the user
// now has no indicator left in the chat.
func (t *TypingTracker) Stop(chatID, userID, clientID string) bool {
	key := typingKey{chatID: chatID, userID: userID, clientID: clientID}

	t.mu.Lock()
	defer t.mu.Unlock()

	timer, ok := t.timers[key]
	if !ok {
		return false
	}
	timer.Stop()
	delete(t.timers, key)
	return !t.userActiveLocked(chatID, userID)
}

// ClearClient drops every indicator held by one connection and returns the
// chat ids where the user now has none left, so the hub can broadcast stop
// events on disconnect without silencing the user's other devices.
func (t *TypingTracker) ClearClient(clientID, userID string) []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	var chatIDs []string
	for key, timer := range t.timers {
		if key.clientID != clientID {
			continue
		}
		timer.Stop()
		delete(t.timers, key)
		if !t.userActiveLocked(key.chatID, userID) {
			chatIDs = append(chatIDs, key.chatID)
		}
	}
	return chatIDs
}

// Active reports whether any of the user's connections currently shows as
// typing in the chat.
func (t *TypingTracker) Active(chatID, userID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.userActiveLocked(chatID, userID)
}

func (t *TypingTracker) userActiveLocked(chatID, userID string) bool {
	for key := range t.timers {
		if key.chatID == chatID && key.userID == userID {
			return true
		}
	}
	return false
}

// StopAll cancels every timer. Used during hub shutdown.
func (t *TypingTracker) StopAll() {
	t.mu.Lock()
	defer t.mu.Unlock()

	for key, timer := range t.timers {
		timer.Stop()
		delete(t.timers, key)
	}
}
