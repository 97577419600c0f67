package hub

import (
	"testing"
	"time"

	"github.com/pomsfgend/Messenger-sub000/internal/event"
	"github.com/pomsfgend/Messenger-sub000/internal/model"

	"github.com/stretchr/testify/require"
)

func TestSendMessageEchoesClientTempID(t *testing.T) {
	t.Parallel()

	h, messages, users := newTestHub(t)

	sender := connect(t, h, users, "alice")
	senderPhone := connect(t, h, users, "alice") // second device, same user
	peer := connect(t, h, users, "bob")

	chatID := model.DeriveDirectChatID("alice", "bob")
	h.joinRoom(sender, chatID)
	h.joinRoom(senderPhone, chatID)
	h.joinRoom(peer, chatID)
	drain(sender, senderPhone, peer)

	h.handleSendMessage(sender, event.SendMessagePayload{
		ChatID:       chatID,
		Content:      "hello",
		Type:         model.MessageTypeText,
		ClientTempID: "tmp-42",
	})

	for _, c := range []*Client{sender, senderPhone, peer} {
		ev := recvEvent(t, c, event.EventNewMessage)
		payload := decodePayload[event.NewMessageEvent](t, ev)
		require.Equal(t, "tmp-42", payload.Message.ClientTempID)
		require.Equal(t, "hello", payload.Message.Content)
		require.False(t, payload.Message.ID.IsZero())
		requireNoEvent(t, c) // exactly one delivery per connection
	}
	require.Equal(t, 1, messages.count())
}

func TestSendMessageWithoutJoiningStillEchoes(t *testing.T) {
	t.Parallel()

	h, _, users := newTestHub(t)

	sender := connect(t, h, users, "alice")
	peer := connect(t, h, users, "bob")

	chatID := model.DeriveDirectChatID("alice", "bob")
	h.joinRoom(peer, chatID)
	drain(sender, peer)

	// sender addresses a room it never subscribed to
	h.handleSendMessage(sender, event.SendMessagePayload{
		ChatID:       chatID,
		Content:      "drive-by",
		Type:         model.MessageTypeText,
		ClientTempID: "tmp-1",
	})

	recvEvent(t, peer, event.EventNewMessage)

	ev := recvEvent(t, sender, event.EventNewMessage)
	payload := decodePayload[event.NewMessageEvent](t, ev)
	require.Equal(t, "tmp-1", payload.Message.ClientTempID)
	requireNoEvent(t, sender)
}

func TestMutedSenderIsRejectedWithoutBroadcast(t *testing.T) {
	t.Parallel()

	h, messages, users := newTestHub(t)

	until := time.Now().Add(time.Hour)
	users.addUser(model.User{
		UserID:      "mallory",
		Role:        model.RoleUser,
		MutedUntil:  &until,
		MutedReason: "spam",
		Privacy:     model.PrivacySettings{ShowLastSeen: true, ShowTyping: true},
	})

	sender := connect(t, h, users, "mallory")
	peer := connect(t, h, users, "bob")

	h.joinRoom(sender, model.GlobalChatID)
	h.joinRoom(peer, model.GlobalChatID)
	drain(sender, peer)

	h.handleSendMessage(sender, event.SendMessagePayload{
		ChatID:  model.GlobalChatID,
		Content: "buy now",
		Type:    model.MessageTypeText,
	})

	ev := recvEvent(t, sender, event.EventActionFailedMute)
	rejection := decodePayload[event.MuteRejectionEvent](t, ev)
	require.Equal(t, "spam", rejection.Reason)
	require.Equal(t, until.UTC().Format(time.RFC3339), rejection.ExpiresAt)

	requireNoEvent(t, peer)
	require.Zero(t, messages.count())
}

func TestPersistFailureSurfacesToSenderOnly(t *testing.T) {
	t.Parallel()

	h, messages, users := newTestHub(t)
	messages.failInsert = true

	sender := connect(t, h, users, "alice")
	peer := connect(t, h, users, "bob")

	h.joinRoom(sender, model.GlobalChatID)
	h.joinRoom(peer, model.GlobalChatID)
	drain(sender, peer)

	h.handleSendMessage(sender, event.SendMessagePayload{
		ChatID:       model.GlobalChatID,
		Content:      "lost",
		Type:         model.MessageTypeText,
		ClientTempID: "tmp-9",
	})

	ev := recvEvent(t, sender, event.EventSendFailed)
	failure := decodePayload[event.SendFailedEvent](t, ev)
	require.Equal(t, "tmp-9", failure.ClientTempID)

	requireNoEvent(t, peer)
	require.Zero(t, messages.count())
}

func TestSameTickDoubleSendDeliversBothExactlyOnce(t *testing.T) {
	t.Parallel()

	h, _, users := newTestHub(t)

	alice := connect(t, h, users, "alice")
	bob := connect(t, h, users, "bob")

	chatID := model.DeriveDirectChatID("alice", "bob")
	h.joinRoom(alice, chatID)
	h.joinRoom(bob, chatID)
	drain(alice, bob)

	h.handleSendMessage(alice, event.SendMessagePayload{
		ChatID: chatID, Content: "from alice", Type: model.MessageTypeText,
	})
	h.handleSendMessage(bob, event.SendMessagePayload{
		ChatID: chatID, Content: "from bob", Type: model.MessageTypeText,
	})

	for _, c := range []*Client{alice, bob} {
		first := decodePayload[event.NewMessageEvent](t, recvEvent(t, c, event.EventNewMessage))
		second := decodePayload[event.NewMessageEvent](t, recvEvent(t, c, event.EventNewMessage))
		requireNoEvent(t, c)

		require.NotEqual(t, first.Message.ID, second.Message.ID)
		// server-assigned timestamps decide timeline order, not arrival race
		require.False(t, second.Message.Timestamp.Before(first.Message.Timestamp))
	}
}

func TestEditMessageOnlyByAuthor(t *testing.T) {
	t.Parallel()

	h, _, users := newTestHub(t)

	alice := connect(t, h, users, "alice")
	bob := connect(t, h, users, "bob")

	chatID := model.DeriveDirectChatID("alice", "bob")
	h.joinRoom(alice, chatID)
	h.joinRoom(bob, chatID)
	drain(alice, bob)

	h.handleSendMessage(alice, event.SendMessagePayload{
		ChatID: chatID, Content: "draft", Type: model.MessageTypeText,
	})
	msg := decodePayload[event.NewMessageEvent](t, recvEvent(t, alice, event.EventNewMessage)).Message
	recvEvent(t, bob, event.EventNewMessage)

	h.handleEditMessage(bob, event.EditMessagePayload{MessageID: msg.ID.Hex(), Content: "hijack"})
	recvEvent(t, bob, event.EventError)
	requireNoEvent(t, alice)

	h.handleEditMessage(alice, event.EditMessagePayload{MessageID: msg.ID.Hex(), Content: "final"})
	for _, c := range []*Client{alice, bob} {
		edited := decodePayload[event.MessageEditedEvent](t, recvEvent(t, c, event.EventMessageEdited))
		require.Equal(t, "final", edited.Content)
		require.Equal(t, msg.ID.Hex(), edited.MessageID)
	}
}

func TestBulkDeleteRespectsOwnership(t *testing.T) {
	t.Parallel()

	h, _, users := newTestHub(t)

	alice := connect(t, h, users, "alice")
	bob := connect(t, h, users, "bob")

	chatID := model.DeriveDirectChatID("alice", "bob")
	h.joinRoom(alice, chatID)
	h.joinRoom(bob, chatID)
	drain(alice, bob)

	h.handleSendMessage(alice, event.SendMessagePayload{
		ChatID: chatID, Content: "mine", Type: model.MessageTypeText,
	})
	aliceMsg := decodePayload[event.NewMessageEvent](t, recvEvent(t, alice, event.EventNewMessage)).Message
	recvEvent(t, bob, event.EventNewMessage)

	h.handleSendMessage(bob, event.SendMessagePayload{
		ChatID: chatID, Content: "bobs", Type: model.MessageTypeText,
	})
	bobMsg := decodePayload[event.NewMessageEvent](t, recvEvent(t, bob, event.EventNewMessage)).Message
	recvEvent(t, alice, event.EventNewMessage)

	// alice tries to delete both; only her own row flips
	h.handleBulkDelete(alice, event.BulkDeletePayload{
		ChatID:     chatID,
		MessageIDs: []string{aliceMsg.ID.Hex(), bobMsg.ID.Hex()},
	})

	for _, c := range []*Client{alice, bob} {
		deleted := decodePayload[event.MessagesDeletedEvent](t, recvEvent(t, c, event.EventMessagesDeleted))
		require.Equal(t, []string{aliceMsg.ID.Hex()}, deleted.MessageIDs)
		require.Positive(t, deleted.PurgeAfterSeconds)
	}
}

func TestReactionToggleBroadcastsFullMap(t *testing.T) {
	t.Parallel()

	h, _, users := newTestHub(t)

	alice := connect(t, h, users, "alice")
	bob := connect(t, h, users, "bob")

	chatID := model.DeriveDirectChatID("alice", "bob")
	h.joinRoom(alice, chatID)
	h.joinRoom(bob, chatID)
	drain(alice, bob)

	h.handleSendMessage(alice, event.SendMessagePayload{
		ChatID: chatID, Content: "react to me", Type: model.MessageTypeText,
	})
	msg := decodePayload[event.NewMessageEvent](t, recvEvent(t, alice, event.EventNewMessage)).Message
	recvEvent(t, bob, event.EventNewMessage)

	h.handleReact(bob, event.ReactPayload{MessageID: msg.ID.Hex(), ReactionKey: "👍"})
	for _, c := range []*Client{alice, bob} {
		update := decodePayload[event.ReactionUpdatedEvent](t, recvEvent(t, c, event.EventMessageReactionUpdated))
		require.Equal(t, []string{"bob"}, update.Reactions["👍"])
	}

	// toggling again removes the reaction
	h.handleReact(bob, event.ReactPayload{MessageID: msg.ID.Hex(), ReactionKey: "👍"})
	for _, c := range []*Client{alice, bob} {
		update := decodePayload[event.ReactionUpdatedEvent](t, recvEvent(t, c, event.EventMessageReactionUpdated))
		require.Empty(t, update.Reactions)
	}
}

func TestForwardCarriesOriginDisplayName(t *testing.T) {
	t.Parallel()

	h, _, users := newTestHub(t)
	users.addUser(model.User{
		UserID:      "alice",
		DisplayName: "Alice A.",
		Role:        model.RoleUser,
		Privacy:     model.PrivacySettings{ShowLastSeen: true, ShowTyping: true},
	})

	alice := connect(t, h, users, "alice")
	bob := connect(t, h, users, "bob")
	carol := connect(t, h, users, "carol")

	srcChat := model.DeriveDirectChatID("alice", "bob")
	dstChat := model.DeriveDirectChatID("bob", "carol")
	h.joinRoom(alice, srcChat)
	h.joinRoom(bob, srcChat)
	h.joinRoom(bob, dstChat)
	h.joinRoom(carol, dstChat)
	drain(alice, bob, carol)

	h.handleSendMessage(alice, event.SendMessagePayload{
		ChatID: srcChat, Content: "original", Type: model.MessageTypeText,
	})
	original := decodePayload[event.NewMessageEvent](t, recvEvent(t, alice, event.EventNewMessage)).Message
	recvEvent(t, bob, event.EventNewMessage)

	h.handleForward(bob, event.ForwardMessagePayload{
		MessageID: original.ID.Hex(),
		ToChatID:  dstChat,
	})

	forwarded := decodePayload[event.NewMessageEvent](t, recvEvent(t, carol, event.EventNewMessage)).Message
	recvEvent(t, bob, event.EventNewMessage)
	require.Equal(t, "original", forwarded.Content)
	require.Equal(t, "bob", forwarded.SenderID)
	require.Equal(t, "Alice A.", forwarded.ForwardedFrom)
	require.NotEqual(t, original.ID, forwarded.ID)
}

func TestMarkReadIsBatchedAndIdempotent(t *testing.T) {
	t.Parallel()

	h, _, users := newTestHub(t)

	alice := connect(t, h, users, "alice")
	bob := connect(t, h, users, "bob")

	chatID := model.DeriveDirectChatID("alice", "bob")
	h.joinRoom(alice, chatID)
	h.joinRoom(bob, chatID)
	drain(alice, bob)

	var sent []string
	for _, content := range []string{"one", "two", "three"} {
		h.handleSendMessage(alice, event.SendMessagePayload{
			ChatID: chatID, Content: content, Type: model.MessageTypeText,
		})
		msg := decodePayload[event.NewMessageEvent](t, recvEvent(t, alice, event.EventNewMessage)).Message
		recvEvent(t, bob, event.EventNewMessage)
		sent = append(sent, msg.ID.Hex())
	}

	// unfocused connections do not produce receipts
	h.handleMarkRead(bob, event.MarkReadPayload{ChatID: chatID})
	requireNoEvent(t, alice)

	bob.setFocused(true)
	h.handleMarkRead(bob, event.MarkReadPayload{ChatID: chatID})

	read := decodePayload[event.MessagesReadEvent](t, recvEvent(t, alice, event.EventMessagesRead))
	require.Equal(t, "bob", read.ReaderID)
	require.ElementsMatch(t, sent, read.MessageIDs)
	recvEvent(t, bob, event.EventMessagesRead)

	// second call finds nothing unread: no broadcast at all
	h.handleMarkRead(bob, event.MarkReadPayload{ChatID: chatID})
	requireNoEvent(t, alice)
	requireNoEvent(t, bob)
}

func TestMalformedPayloadRejectsConnectionOnly(t *testing.T) {
	t.Parallel()

	h, _, users := newTestHub(t)

	alice := connect(t, h, users, "alice")
	bob := connect(t, h, users, "bob")
	h.joinRoom(alice, model.GlobalChatID)
	h.joinRoom(bob, model.GlobalChatID)
	drain(alice, bob)

	h.handleEvent(event.WsEvent{Event: event.EventSendMessage, Payload: []byte(`{not json`)}, alice)

	ev := recvEvent(t, alice, event.EventError)
	errPayload := decodePayload[event.ErrorEvent](t, ev)
	require.Equal(t, "malformed_payload", errPayload.Code)
	requireNoEvent(t, bob)
}
