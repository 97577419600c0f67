package hub

import (
	"context"
	"log"
	"time"

	"github.com/pomsfgend/Messenger-sub000/internal/event"
	"github.com/pomsfgend/Messenger-sub000/internal/model"
)

// deletePurgeGraceSeconds is how long clients keep a soft-deleted row around
// for the undo window before purging it locally.
const deletePurgeGraceSeconds = 15

// rejectIfMuted checks the sender's mute window. When muted it emits the
// rejection to the sender only and reports true; nothing is persisted or
// broadcast in that case.
func (h *Hub) rejectIfMuted(c *Client) bool {
	ctx, cancel := context.WithTimeout(c.ctx, 5*time.Second)
	defer cancel()

	status, err := h.users.GetMuteStatus(ctx, c.userID)
	if err != nil {
		log.Printf("mute lookup failed for user %s: %v", c.userID, err)
		c.SafeSend(event.New(event.EventError, event.ErrorEvent{
			Code:    "identity_unavailable",
			Message: "could not verify sender status",
		}), sendTimeout)
		return true
	}
	if !status.Muted {
		return false
	}

	rejection := event.MuteRejectionEvent{Reason: status.Reason}
	if status.ExpiresAt != nil {
		rejection.ExpiresAt = status.ExpiresAt.UTC().Format(time.RFC3339)
	}
	c.SafeSend(event.New(event.EventActionFailedMute, rejection), sendTimeout)
	return true
}

// handleSendMessage persists a client-composed message and multicasts it to
// the room, echoing clientTempId unchanged so the author's connections can
// replace their optimistic placeholder instead of appending a duplicate.
func (h *Hub) handleSendMessage(c *Client, payload event.SendMessagePayload) {
	if payload.ChatID == "" {
		c.SafeSend(event.New(event.EventError, event.ErrorEvent{
			Code:    "invalid_chat_id",
			Message: "chatId is required",
		}), sendTimeout)
		return
	}
	if !model.IsValidType(payload.Type) {
		c.SafeSend(event.New(event.EventError, event.ErrorEvent{
			Code:    "invalid_message_type",
			Message: "unknown message type: " + payload.Type,
		}), sendTimeout)
		return
	}
	if payload.Content == "" && payload.MediaRef == "" {
		c.SafeSend(event.New(event.EventError, event.ErrorEvent{
			Code:    "empty_message",
			Message: "message needs content or a media reference",
		}), sendTimeout)
		return
	}

	if h.rejectIfMuted(c) {
		return
	}

	msg := &model.Message{
		ChatID:       payload.ChatID,
		SenderID:     c.userID,
		Content:      payload.Content,
		MediaRef:     payload.MediaRef,
		Type:         payload.Type,
		Timestamp:    time.Now().UTC(),
		Reactions:    map[string][]string{},
		ReadBy:       []string{},
		ClientTempID: payload.ClientTempID,
	}

	h.persistAndBroadcast(c, msg)
}

// persistAndBroadcast writes the message, then multicasts it. The write must
// complete before the broadcast: a client must never observe a broadcast for
// a message that failed to persist.
func (h *Hub) persistAndBroadcast(c *Client, msg *model.Message) {
	if _, err := h.messages.InsertMessage(c.ctx, msg); err != nil {
		log.Printf("persist failed for user %s in chat %s: %v", c.userID, msg.ChatID, err)
		c.SafeSend(event.New(event.EventSendFailed, event.SendFailedEvent{
			ChatID:       msg.ChatID,
			ClientTempID: msg.ClientTempID,
			Error:        "message could not be stored",
		}), sendTimeout)
		return
	}

	ev := event.New(event.EventNewMessage, event.NewMessageEvent{Message: *msg})
	h.publishToRoom(ev, msg.ChatID)

	// The author gets the persisted form exactly once even when this
	// connection never joined the room it addressed.
	if !h.roomHasClient(msg.ChatID, c.ID) {
		c.SafeSend(ev, sendTimeout)
	}
}

func (h *Hub) handleEditMessage(c *Client, payload event.EditMessagePayload) {
	if payload.Content == "" {
		c.SafeSend(event.New(event.EventError, event.ErrorEvent{
			Code:    "empty_message",
			Message: "edited content cannot be empty",
		}), sendTimeout)
		return
	}

	if h.rejectIfMuted(c) {
		return
	}

	original, err := h.messages.GetMessage(c.ctx, payload.MessageID)
	if err != nil {
		c.SafeSend(event.New(event.EventError, event.ErrorEvent{
			Code:    "message_not_found",
			Message: "message does not exist",
		}), sendTimeout)
		return
	}
	if original.SenderID != c.userID {
		c.SafeSend(event.New(event.EventError, event.ErrorEvent{
			Code:    "forbidden",
			Message: "only the author can edit a message",
		}), sendTimeout)
		return
	}

	updated, err := h.messages.EditMessage(c.ctx, payload.MessageID, payload.Content)
	if err != nil {
		c.SafeSend(event.New(event.EventSendFailed, event.SendFailedEvent{
			ChatID: original.ChatID,
			Error:  "edit could not be stored",
		}), sendTimeout)
		return
	}

	h.publishToRoom(event.New(event.EventMessageEdited, event.MessageEditedEvent{
		MessageID: updated.ID.Hex(),
		ChatID:    updated.ChatID,
		Content:   updated.Content,
	}), updated.ChatID)
}

// handleBulkDelete soft-deletes a batch. Regular users can only delete their
// own messages; moderators and admins can delete anything in the batch.
func (h *Hub) handleBulkDelete(c *Client, payload event.BulkDeletePayload) {
	if payload.ChatID == "" || len(payload.MessageIDs) == 0 {
		return
	}

	senderFilter := c.userID
	if user, err := h.users.GetUserByID(c.ctx, c.userID); err == nil {
		if user.Role == model.RoleModerator || user.Role == model.RoleAdmin {
			senderFilter = ""
		}
	}

	deleted, err := h.messages.SoftDeleteMessages(c.ctx, payload.ChatID, payload.MessageIDs, senderFilter)
	if err != nil {
		c.SafeSend(event.New(event.EventError, event.ErrorEvent{
			Code:    "delete_failed",
			Message: "messages could not be deleted",
		}), sendTimeout)
		return
	}
	if len(deleted) == 0 {
		return
	}

	h.publishToRoom(event.New(event.EventMessagesDeleted, event.MessagesDeletedEvent{
		ChatID:            payload.ChatID,
		MessageIDs:        deleted,
		PurgeAfterSeconds: deletePurgeGraceSeconds,
	}), payload.ChatID)
}

// handleReact toggles a reaction and broadcasts the full reaction map for the
// message, so repeated or late deliveries converge instead of double-counting.
func (h *Hub) handleReact(c *Client, payload event.ReactPayload) {
	if payload.MessageID == "" || payload.ReactionKey == "" {
		return
	}

	updated, err := h.messages.ToggleReaction(c.ctx, payload.MessageID, payload.ReactionKey, c.userID)
	if err != nil {
		c.SafeSend(event.New(event.EventError, event.ErrorEvent{
			Code:    "reaction_failed",
			Message: "reaction could not be stored",
		}), sendTimeout)
		return
	}

	h.publishToRoom(event.New(event.EventMessageReactionUpdated, event.ReactionUpdatedEvent{
		MessageID: updated.ID.Hex(),
		ChatID:    updated.ChatID,
		Reactions: updated.Reactions,
	}), updated.ChatID)
}

// handleForward re-sends an existing message into another chat as a fresh
// message carrying the origin author's display name.
func (h *Hub) handleForward(c *Client, payload event.ForwardMessagePayload) {
	if payload.MessageID == "" || payload.ToChatID == "" {
		return
	}

	if h.rejectIfMuted(c) {
		return
	}

	original, err := h.messages.GetMessage(c.ctx, payload.MessageID)
	if err != nil || original.IsDeleted {
		c.SafeSend(event.New(event.EventError, event.ErrorEvent{
			Code:    "message_not_found",
			Message: "message does not exist",
		}), sendTimeout)
		return
	}

	forwardedFrom := original.ForwardedFrom
	if forwardedFrom == "" {
		if author, err := h.users.GetUserByID(c.ctx, original.SenderID); err == nil {
			forwardedFrom = author.DisplayName
		}
	}

	msg := &model.Message{
		ChatID:        payload.ToChatID,
		SenderID:      c.userID,
		Content:       original.Content,
		MediaRef:      original.MediaRef,
		Type:          original.Type,
		Timestamp:     time.Now().UTC(),
		Reactions:     map[string][]string{},
		ReadBy:        []string{},
		ClientTempID:  payload.ClientTempID,
		ForwardedFrom: forwardedFrom,
	}

	h.persistAndBroadcast(c, msg)
}

// handleMarkRead computes the batch of previously-unread message ids from
// other senders, appends the reader to each, and broadcasts once per batch.
// Only accepted from connections that are subscribed and foreground-focused.
func (h *Hub) handleMarkRead(c *Client, payload event.MarkReadPayload) {
	if payload.ChatID == "" {
		return
	}
	if !c.InRoom(payload.ChatID) || !c.IsFocused() {
		return
	}

	ids, err := h.messages.MarkMessagesRead(c.ctx, payload.ChatID, c.userID)
	if err != nil {
		log.Printf("mark read failed for user %s in chat %s: %v", c.userID, payload.ChatID, err)
		return
	}
	if len(ids) == 0 {
		// idempotent: nothing newly read, nothing broadcast
		return
	}

	h.publishToRoom(event.New(event.EventMessagesRead, event.MessagesReadEvent{
		ChatID:     payload.ChatID,
		MessageIDs: ids,
		ReaderID:   c.userID,
	}), payload.ChatID)
}

// -----------------------------------------------------------------
// Typing indicators
// -----------------------------------------------------------------

func (h *Hub) handleStartTyping(c *Client, chatID string) {
	if chatID == "" {
		return
	}
	if !h.showTyping(c) {
		return
	}

	if h.typing.Start(chatID, c.userID, c.ID) {
		h.publishToRoom(event.New(event.EventUserIsTyping, event.TypingEvent{
			ChatID: chatID,
			UserID: c.userID,
		}), chatID, c.userID)
	}
}

func (h *Hub) handleStopTyping(c *Client, chatID string) {
	if h.typing.Stop(chatID, c.userID, c.ID) {
		h.publishToRoom(event.New(event.EventUserStoppedTyping, event.TypingEvent{
			ChatID: chatID,
			UserID: c.userID,
		}), chatID, c.userID)
	}
}

// typingExpired runs on the tracker's timer goroutine when an indicator hits
// its silence window without an explicit stop.
func (h *Hub) typingExpired(chatID, userID string) {
	h.publishToRoom(event.New(event.EventUserStoppedTyping, event.TypingEvent{
		ChatID: chatID,
		UserID: userID,
	}), chatID, userID)
}

func (h *Hub) showTyping(c *Client) bool {
	ctx, cancel := context.WithTimeout(c.ctx, 2*time.Second)
	defer cancel()

	user, err := h.users.GetUserByID(ctx, c.userID)
	if err != nil {
		return false
	}
	return user.Privacy.ShowTyping
}
