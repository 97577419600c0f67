package model

import "time"

// PresenceRecord tracks a user's online state. LastSeen is nil while online.
// Records are created on first connect and updated on every connect and
// disconnect; stale offline entries are harmless and never reaped.
type PresenceRecord struct {
	UserID   string     `json:"userId"`
	IsOnline bool       `json:"isOnline"`
	LastSeen *time.Time `json:"lastSeen,omitempty"`
}
