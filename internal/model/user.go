package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// User roles
const (
	RoleUser      = "user"
	RoleModerator = "moderator"
	RoleAdmin     = "admin"
)

// User represents a user document in MongoDB. The relay only reads users;
// the identity service owns the collection.
type User struct {
	ID          primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	UserID      string             `json:"userId" bson:"user_id"`
	Username    string             `json:"username" bson:"username"`
	DisplayName string             `json:"displayName" bson:"display_name"`
	Avatar      string             `json:"avatar" bson:"avatar"`
	Role        string             `json:"role" bson:"role"`
	IsBanned    bool               `json:"isBanned" bson:"is_banned"`
	MutedUntil  *time.Time         `json:"mutedUntil" bson:"muted_until"`
	MutedReason string             `json:"mutedReason,omitempty" bson:"muted_reason"`
	Privacy     PrivacySettings    `json:"privacy" bson:"privacy"`
	CreatedAt   time.Time          `json:"createdAt" bson:"created_at"`
	UpdatedAt   *time.Time         `json:"updatedAt" bson:"updated_at"`
}

// PrivacySettings holds per-user visibility flags
type PrivacySettings struct {
	ShowLastSeen bool `json:"showLastSeen" bson:"show_last_seen"`
	ShowTyping   bool `json:"showTyping" bson:"show_typing"`
}

// MuteStatus is the result of a mute/ban check against the identity store
type MuteStatus struct {
	Muted     bool       `json:"muted"`
	Reason    string     `json:"reason,omitempty"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
}

// IsMutedAt reports whether the user's mute window covers the given instant.
// A ban counts as an open-ended mute.
func (u *User) IsMutedAt(now time.Time) bool {
	if u.IsBanned {
		return true
	}
	return u.MutedUntil != nil && u.MutedUntil.After(now)
}

// PublicProfile is the subset of User exposed over the HTTP API
type PublicProfile struct {
	UserID      string `json:"userId"`
	Username    string `json:"username"`
	DisplayName string `json:"displayName"`
	Avatar      string `json:"avatar"`
	Role        string `json:"role"`
}

// Public strips fields that must never leave the identity store.
func (u *User) Public() PublicProfile {
	return PublicProfile{
		UserID:      u.UserID,
		Username:    u.Username,
		DisplayName: u.DisplayName,
		Avatar:      u.Avatar,
		Role:        u.Role,
	}
}

// Session maps an opaque handshake token to a durable user id
type Session struct {
	ID        primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	Token     string             `json:"-" bson:"token"`
	UserID    string             `json:"userId" bson:"user_id"`
	CreatedAt time.Time          `json:"createdAt" bson:"created_at"`
	ExpiresAt *time.Time         `json:"expiresAt" bson:"expires_at"`
}
