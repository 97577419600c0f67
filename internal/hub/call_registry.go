package hub

import (
	"sync"

	"github.com/google/uuid"
)

// callEntry maps a connection-scoped temp-id to its owner. The temp-id is the
// only identifier the signaling channel exposes: a caller learns the callee's
// ephemeral key and temp-id, never a durable identity.
type callEntry struct {
	tempID    string
	userID    string
	publicKey string
	client    *Client
}

// CallRegistry holds the durable-to-ephemeral mapping for call signaling.
// Entries live exactly as long as the owning connection.
type CallRegistry struct {
	mu       sync.RWMutex
	byTempID map[string]*callEntry
	byUser   map[string]string // userID -> most recently registered temp-id
	byClient map[string]string // clientID -> temp-id
}

func NewCallRegistry() *CallRegistry {
	return &CallRegistry{
		byTempID: make(map[string]*callEntry),
		byUser:   make(map[string]string),
		byClient: make(map[string]string),
	}
}

// Register mints a fresh temp-id for the connection. Re-registering replaces
// the connection's previous entry (a new key pair invalidates the old one).
func (r *CallRegistry) Register(c *Client, publicKey string) string {
	tempID := uuid.New().String()

	r.mu.Lock()
	defer r.mu.Unlock()

	if old, ok := r.byClient[c.ID]; ok {
		delete(r.byTempID, old)
	}

	r.byTempID[tempID] = &callEntry{
		tempID:    tempID,
		userID:    c.userID,
		publicKey: publicKey,
		client:    c,
	}
	r.byUser[c.userID] = tempID
	r.byClient[c.ID] = tempID

	return tempID
}

// Resolve looks up an entry by temp-id.
func (r *CallRegistry) Resolve(tempID string) (*callEntry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.byTempID[tempID]
	return entry, ok
}

// ResolveUser returns the user's current entry, i.e. the one belonging to the
// connection that registered most recently.
func (r *CallRegistry) ResolveUser(userID string) (*callEntry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tempID, ok := r.byUser[userID]
	if !ok {
		return nil, false
	}
	entry, ok := r.byTempID[tempID]
	return entry, ok
}

// Purge removes the connection's entry. Returns the temp-id it held, so the
// call handler can tear down sessions addressed to it.
func (r *CallRegistry) Purge(c *Client) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	tempID, ok := r.byClient[c.ID]
	if !ok {
		return "", false
	}

	delete(r.byClient, c.ID)
	delete(r.byTempID, tempID)
	if r.byUser[c.userID] == tempID {
		delete(r.byUser, c.userID)
	}
	return tempID, true
}

// Count returns the number of live entries.
func (r *CallRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byTempID)
}
