package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Message content types
const (
	MessageTypeText        = "text"
	MessageTypeImage       = "image"
	MessageTypeVideo       = "video"
	MessageTypeAudio       = "audio"
	MessageTypeFile        = "file"
	MessageTypeVideoCircle = "video-circle"
)

// Message represents a chat message in MongoDB.
//
// The _id doubles as the wire-visible message id: ObjectIDs are time-prefixed,
// so hex ids sort well enough for pagination.
type Message struct {
	ID            primitive.ObjectID  `json:"id" bson:"_id,omitempty"`
	ChatID        string              `json:"chatId" bson:"chat_id"`
	SenderID      string              `json:"senderId" bson:"sender_id"`
	Content       string              `json:"content" bson:"content"`
	Type          string              `json:"type" bson:"type"`
	MediaRef      string              `json:"mediaRef,omitempty" bson:"media_ref,omitempty"`
	Timestamp     time.Time           `json:"timestamp" bson:"timestamp"`
	IsEdited      bool                `json:"isEdited" bson:"is_edited"`
	IsDeleted     bool                `json:"isDeleted" bson:"is_deleted"`
	Reactions     map[string][]string `json:"reactions" bson:"reactions"`
	ReadBy        []string            `json:"readBy" bson:"read_by"`
	ClientTempID  string              `json:"clientTempId,omitempty" bson:"client_temp_id,omitempty"`
	ForwardedFrom string              `json:"forwardedFrom,omitempty" bson:"forwarded_from,omitempty"`
}

// IsValidType reports whether t is a known message content type.
func IsValidType(t string) bool {
	switch t {
	case MessageTypeText, MessageTypeImage, MessageTypeVideo,
		MessageTypeAudio, MessageTypeFile, MessageTypeVideoCircle:
		return true
	default:
		return false
	}
}

// HasReaction reports whether userID already reacted with key.
func (m *Message) HasReaction(key, userID string) bool {
	for _, id := range m.Reactions[key] {
		if id == userID {
			return true
		}
	}
	return false
}
