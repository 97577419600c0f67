package event

import (
	"encoding/json"

	"github.com/pomsfgend/Messenger-sub000/internal/model"
)

// Client to Server
const (
	EventJoinRoom           = "joinRoom"
	EventLeaveRoom          = "leaveRoom"
	EventSendMessage        = "sendMessage"
	EventEditMessage        = "editMessage"
	EventBulkDeleteMessages = "bulkDeleteMessages"
	EventReactToMessage     = "reactToMessage"
	EventForwardMessage     = "forwardMessage"
	EventMarkMessagesRead   = "markMessagesAsRead"
	EventStartTyping        = "start-typing"
	EventStopTyping         = "stop-typing"
	EventWindowFocusChanged = "windowFocusChanged"
)

// Server to Client
const (
	EventNewMessage             = "newMessage"
	EventMessageEdited          = "messageEdited"
	EventMessagesDeleted        = "messagesDeleted"
	EventMessageReactionUpdated = "messageReactionUpdated"
	EventMessagesRead           = "messagesRead"
	EventUserOnline             = "user-online"
	EventUserOffline            = "user-offline"
	EventUserIsTyping           = "user-is-typing"
	EventUserStoppedTyping      = "user-stopped-typing"
	EventActionFailedMute       = "actionFailedMute"
	EventSendFailed             = "sendFailed"
	EventError                  = "error"
)

// WsEvent is the wire envelope for every frame in both directions.
type WsEvent struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// New marshals payload into an envelope. Marshal errors are impossible for
// the payload structs in this package, so they are swallowed.
func New(eventType string, payload any) WsEvent {
	raw, _ := json.Marshal(payload)
	return WsEvent{Event: eventType, Payload: raw}
}

// -----------------------------------------------------------------
// Client to Server payloads
// -----------------------------------------------------------------

type JoinRoomPayload struct {
	ChatID string `json:"chatId"`
}

type SendMessagePayload struct {
	ChatID       string `json:"chatId"`
	Content      string `json:"content"`
	MediaRef     string `json:"mediaRef,omitempty"`
	Type         string `json:"type"`
	ClientTempID string `json:"clientTempId,omitempty"`
}

type EditMessagePayload struct {
	MessageID string `json:"messageId"`
	Content   string `json:"content"`
}

type BulkDeletePayload struct {
	ChatID     string   `json:"chatId"`
	MessageIDs []string `json:"messageIds"`
}

type ReactPayload struct {
	MessageID   string `json:"messageId"`
	ReactionKey string `json:"reactionKey"`
}

type ForwardMessagePayload struct {
	MessageID    string `json:"messageId"`
	ToChatID     string `json:"toChatId"`
	ClientTempID string `json:"clientTempId,omitempty"`
}

type MarkReadPayload struct {
	ChatID string `json:"chatId"`
}

type TypingPayload struct {
	ChatID string `json:"chatId"`
}

type WindowFocusPayload struct {
	IsFocused bool `json:"isFocused"`
}

// -----------------------------------------------------------------
// Server to Client payloads
// -----------------------------------------------------------------

// NewMessageEvent delivers a persisted message. ClientTempID is echoed
// unchanged so the author's own connections can replace their optimistic
// placeholder instead of appending a duplicate.
type NewMessageEvent struct {
	Message model.Message `json:"message"`
}

type MessageEditedEvent struct {
	MessageID string `json:"messageId"`
	ChatID    string `json:"chatId"`
	Content   string `json:"content"`
}

// MessagesDeletedEvent instructs clients to grey out the rows immediately and
// purge them locally after PurgeAfterSeconds (the undo window).
type MessagesDeletedEvent struct {
	ChatID            string   `json:"chatId"`
	MessageIDs        []string `json:"messageIds"`
	PurgeAfterSeconds int      `json:"purgeAfterSeconds"`
}

// ReactionUpdatedEvent carries the full reaction map for one message, not a
// delta, so late or repeated deliveries converge.
type ReactionUpdatedEvent struct {
	MessageID string              `json:"messageId"`
	ChatID    string              `json:"chatId"`
	Reactions map[string][]string `json:"reactions"`
}

// MessagesReadEvent is one batch per markMessagesAsRead, never one per message.
type MessagesReadEvent struct {
	ChatID     string   `json:"chatId"`
	MessageIDs []string `json:"messageIds"`
	ReaderID   string   `json:"readerId"`
}

type PresenceEvent struct {
	UserID   string `json:"userId"`
	LastSeen string `json:"lastSeen,omitempty"` // RFC3339, empty while online or hidden
}

type TypingEvent struct {
	ChatID string `json:"chatId"`
	UserID string `json:"userId"`
}

// MuteRejectionEvent is sent to the muted sender only.
type MuteRejectionEvent struct {
	Reason    string `json:"reason"`
	ExpiresAt string `json:"expiresAt,omitempty"` // RFC3339, empty for bans
}

// SendFailedEvent reports a persistence failure for an optimistic message.
type SendFailedEvent struct {
	ChatID       string `json:"chatId"`
	ClientTempID string `json:"clientTempId,omitempty"`
	Error        string `json:"error"`
}

// ErrorEvent reports a malformed or rejected inbound event to one connection.
type ErrorEvent struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
