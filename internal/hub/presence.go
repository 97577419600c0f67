package hub

import (
	"sync"
	"time"

	"github.com/pomsfgend/Messenger-sub000/internal/model"
)

// PresenceTracker maps user id to online state. Records are never deleted;
// a stale offline record is indistinguishable from a user who left for good.
type PresenceTracker struct {
	mu      sync.RWMutex
	records map[string]*model.PresenceRecord
}

func NewPresenceTracker() *PresenceTracker {
	return &PresenceTracker{
		records: make(map[string]*model.PresenceRecord),
	}
}

// Connect marks the user online. Returns true if this was an offline-to-online
// transition, so callers broadcast only on real state changes.
func (p *PresenceTracker) Connect(userID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	rec, ok := p.records[userID]
	if !ok {
		p.records[userID] = &model.PresenceRecord{UserID: userID, IsOnline: true}
		return true
	}
	if rec.IsOnline {
		return false
	}
	rec.IsOnline = true
	rec.LastSeen = nil
	return true
}

// Disconnect marks the user offline and stamps lastSeen.
func (p *PresenceTracker) Disconnect(userID string) time.Time {
	now := time.Now().UTC()

	p.mu.Lock()
	defer p.mu.Unlock()

	rec, ok := p.records[userID]
	if !ok {
		rec = &model.PresenceRecord{UserID: userID}
		p.records[userID] = rec
	}
	rec.IsOnline = false
	rec.LastSeen = &now
	return now
}

// Get returns a copy of the user's presence record.
func (p *PresenceTracker) Get(userID string) (model.PresenceRecord, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	rec, ok := p.records[userID]
	if !ok {
		return model.PresenceRecord{}, false
	}
	return *rec, true
}

// OnlineCount returns the number of users currently online.
func (p *PresenceTracker) OnlineCount() int {
	p.mu.RLock()
	defer p.mu.RUnlock()

	n := 0
	for _, rec := range p.records {
		if rec.IsOnline {
			n++
		}
	}
	return n
}
