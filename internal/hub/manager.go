package hub

import (
	"context"
	"crypto/sha1"
	"encoding/binary"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/pomsfgend/Messenger-sub000/internal/event"
	"github.com/pomsfgend/Messenger-sub000/internal/repo"

	"github.com/gorilla/websocket"
)

const (
	shardCount = 64 // tune: 16/64/128 depending on load
)

type inboundMessage struct {
	event  event.WsEvent
	client *Client
}

type clientBucket struct {
	sync.RWMutex
	rooms map[string]map[string]*Client
}

// Hub owns room membership, presence, typing state and the call relay. All
// connection handlers funnel through it; no component touches another's maps.
type Hub struct {
	shards     [shardCount]*clientBucket
	register   chan *Client
	unregister chan *Client
	inbound    chan inboundMessage

	// userID -> clientID -> client; one user may hold several connections
	onlineUsers   map[string]map[string]*Client
	onlineUsersMu sync.RWMutex

	presence    *PresenceTracker
	typing      *TypingTracker
	callHandler *CallHandler

	messages repo.MessageRepository
	users    repo.UserRepository

	wg       sync.WaitGroup
	ctx      context.Context
	cancel   context.CancelFunc
	stopOnce sync.Once
}

func NewHub(messages repo.MessageRepository, users repo.UserRepository) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	h := &Hub{
		register:    make(chan *Client, 1024),
		unregister:  make(chan *Client, 1024),
		inbound:     make(chan inboundMessage, 4096), // buffer for burst handling
		onlineUsers: make(map[string]map[string]*Client),
		presence:    NewPresenceTracker(),
		messages:    messages,
		users:       users,
		ctx:         ctx,
		cancel:      cancel,
	}

	for i := 0; i < shardCount; i++ {
		h.shards[i] = &clientBucket{
			rooms: make(map[string]map[string]*Client),
		}
	}

	h.typing = NewTypingTracker(h.typingExpired)
	h.callHandler = NewCallHandler(h)

	// run manager loop
	go h.run()

	// start worker loop
	for i := 0; i < workerPoolSize; i++ {
		h.wg.Add(1)
		go func() {
			defer h.wg.Done()
			for {
				select {
				case <-h.ctx.Done():
					return
				case in, ok := <-h.inbound:
					if !ok {
						return
					}
					h.handleEvent(in.event, in.client)
				}
			}
		}()
	}

	return h
}

func (h *Hub) run() {
	for {
		select {
		case <-h.ctx.Done():
			return
		case c := <-h.register:
			h.addClient(c)
		case c := <-h.unregister:
			h.removeClient(c)
		}
	}
}

// handleEvent dispatches one inbound chat-side frame. Call frames never reach
// here; the reader routes them straight to the call handler.
func (h *Hub) handleEvent(ev event.WsEvent, c *Client) {
	switch ev.Event {
	case event.EventJoinRoom:
		var payload event.JoinRoomPayload
		if !h.decode(ev, &payload, c) {
			return
		}
		h.joinRoom(c, payload.ChatID)
	case event.EventLeaveRoom:
		var payload event.JoinRoomPayload
		if !h.decode(ev, &payload, c) {
			return
		}
		h.leaveRoom(c, payload.ChatID)
	case event.EventSendMessage:
		var payload event.SendMessagePayload
		if !h.decode(ev, &payload, c) {
			return
		}
		h.handleSendMessage(c, payload)
	case event.EventEditMessage:
		var payload event.EditMessagePayload
		if !h.decode(ev, &payload, c) {
			return
		}
		h.handleEditMessage(c, payload)
	case event.EventBulkDeleteMessages:
		var payload event.BulkDeletePayload
		if !h.decode(ev, &payload, c) {
			return
		}
		h.handleBulkDelete(c, payload)
	case event.EventReactToMessage:
		var payload event.ReactPayload
		if !h.decode(ev, &payload, c) {
			return
		}
		h.handleReact(c, payload)
	case event.EventForwardMessage:
		var payload event.ForwardMessagePayload
		if !h.decode(ev, &payload, c) {
			return
		}
		h.handleForward(c, payload)
	case event.EventMarkMessagesRead:
		var payload event.MarkReadPayload
		if !h.decode(ev, &payload, c) {
			return
		}
		h.handleMarkRead(c, payload)
	case event.EventStartTyping:
		var payload event.TypingPayload
		if !h.decode(ev, &payload, c) {
			return
		}
		h.handleStartTyping(c, payload.ChatID)
	case event.EventStopTyping:
		var payload event.TypingPayload
		if !h.decode(ev, &payload, c) {
			return
		}
		h.handleStopTyping(c, payload.ChatID)
	case event.EventWindowFocusChanged:
		var payload event.WindowFocusPayload
		if !h.decode(ev, &payload, c) {
			return
		}
		c.setFocused(payload.IsFocused)
	default:
		log.Printf("unknown event type %q from client %s", ev.Event, c.ID)
		c.SafeSend(event.New(event.EventError, event.ErrorEvent{
			Code:    "unknown_event",
			Message: "unknown event type: " + ev.Event,
		}), sendTimeout)
	}
}

// decode unmarshals a payload; a malformed frame is rejected for this
// connection only and never takes the process down.
func (h *Hub) decode(ev event.WsEvent, dst any, c *Client) bool {
	if err := json.Unmarshal(ev.Payload, dst); err != nil {
		log.Printf("malformed %s payload from client %s: %v", ev.Event, c.ID, err)
		c.SafeSend(event.New(event.EventError, event.ErrorEvent{
			Code:    "malformed_payload",
			Message: "could not parse " + ev.Event + " payload",
		}), sendTimeout)
		return false
	}
	return true
}

// -----------------------------------------------------------------
// Room membership
// -----------------------------------------------------------------

func getShard(chatID string) uint32 {
	if chatID == "" {
		return 0
	}

	h := sha1.Sum([]byte(chatID))
	return binary.BigEndian.Uint32(h[:4]) % shardCount
}

func (h *Hub) joinRoom(c *Client, chatID string) {
	if chatID == "" {
		return
	}

	sh := getShard(chatID)
	b := h.shards[sh]
	b.Lock()
	room, ok := b.rooms[chatID]
	if !ok {
		room = make(map[string]*Client)
		b.rooms[chatID] = room
	}
	room[c.ID] = c
	b.Unlock()

	c.trackRoom(chatID)
	log.Printf("client %s joined room %s (shard %d)", c.ID, chatID, sh)
}

func (h *Hub) leaveRoom(c *Client, chatID string) {
	sh := getShard(chatID)
	b := h.shards[sh]
	b.Lock()
	if room, ok := b.rooms[chatID]; ok {
		delete(room, c.ID)
		if len(room) == 0 {
			delete(b.rooms, chatID)
		}
	}
	b.Unlock()

	c.untrackRoom(chatID)
}

// publishToRoom multicasts an event to every connection subscribed to chatID,
// skipping connections whose user id is in exceptUsers.
func (h *Hub) publishToRoom(ev event.WsEvent, chatID string, exceptUsers ...string) {
	sh := getShard(chatID)
	b := h.shards[sh]

	// collect clients while holding RLock
	b.RLock()
	room, ok := b.rooms[chatID]
	if !ok || len(room) == 0 {
		b.RUnlock()
		return
	}

	clients := make([]*Client, 0, len(room))
	for _, c := range room {
		clients = append(clients, c)
	}
	b.RUnlock()

	// deliver to clients without holding lock
	for _, c := range clients {
		if containsString(exceptUsers, c.userID) {
			continue
		}
		if !c.SafeSend(ev, sendTimeout) {
			log.Printf("egress full for client %s in room %s", c.ID, chatID)
			if kickOnFull {
				h.unregister <- c
			}
		}
	}
}

// roomHasClient reports whether the given connection is currently subscribed.
func (h *Hub) roomHasClient(chatID, clientID string) bool {
	b := h.shards[getShard(chatID)]
	b.RLock()
	defer b.RUnlock()
	room, ok := b.rooms[chatID]
	if !ok {
		return false
	}
	_, ok = room[clientID]
	return ok
}

// userInCall reports whether any of the user's live connections is party to a
// call. The one-call-per-user rule counts every device, not just the latest
// registration.
func (h *Hub) userInCall(userID string) bool {
	h.onlineUsersMu.RLock()
	defer h.onlineUsersMu.RUnlock()

	for _, c := range h.onlineUsers[userID] {
		if c.InCall() {
			return true
		}
	}
	return false
}

// sendToUser delivers an event to every live connection of one user.
func (h *Hub) sendToUser(userID string, ev event.WsEvent) bool {
	h.onlineUsersMu.RLock()
	conns := make([]*Client, 0, len(h.onlineUsers[userID]))
	for _, c := range h.onlineUsers[userID] {
		conns = append(conns, c)
	}
	h.onlineUsersMu.RUnlock()

	delivered := false
	for _, c := range conns {
		if c.SafeSend(ev, sendTimeout) {
			delivered = true
		}
	}
	return delivered
}

// -----------------------------------------------------------------
// Connection lifecycle
// -----------------------------------------------------------------

func (h *Hub) addClient(c *Client) {
	h.onlineUsersMu.Lock()
	conns, known := h.onlineUsers[c.userID]
	if !known {
		conns = make(map[string]*Client)
		h.onlineUsers[c.userID] = conns
	}
	conns[c.ID] = c
	firstConnection := len(conns) == 1
	h.onlineUsersMu.Unlock()

	if firstConnection && h.presence.Connect(c.userID) {
		h.broadcastPresence(event.EventUserOnline, c.userID, nil)
	}

	log.Printf("client %s connected (user %s)", c.ID, c.userID)
}

// removeClient runs the synchronous disconnect sequence: drop all room
// memberships, clear typing state, purge the call registry entry, end any
// live call, and flip presence once the user's last connection is gone.
func (h *Hub) removeClient(c *Client) {
	for _, chatID := range c.joinedRooms() {
		h.leaveRoom(c, chatID)
	}

	for _, chatID := range h.typing.ClearClient(c.ID, c.userID) {
		h.publishToRoom(event.New(event.EventUserStoppedTyping, event.TypingEvent{
			ChatID: chatID,
			UserID: c.userID,
		}), chatID, c.userID)
	}

	h.callHandler.HandleDisconnect(c)

	h.onlineUsersMu.Lock()
	lastConnection := false
	if conns, ok := h.onlineUsers[c.userID]; ok {
		delete(conns, c.ID)
		if len(conns) == 0 {
			delete(h.onlineUsers, c.userID)
			lastConnection = true
		}
	}
	h.onlineUsersMu.Unlock()

	if lastConnection {
		lastSeen := h.presence.Disconnect(c.userID)
		h.broadcastPresence(event.EventUserOffline, c.userID, &lastSeen)
	}

	c.Close()
	log.Printf("client %s removed (user %s)", c.ID, c.userID)
}

// broadcastPresence is fire-and-forget: no acknowledgment is awaited and a
// full egress drops the frame.
func (h *Hub) broadcastPresence(eventType, userID string, lastSeen *time.Time) {
	payload := event.PresenceEvent{UserID: userID}
	if lastSeen != nil && h.showLastSeen(userID) {
		payload.LastSeen = lastSeen.UTC().Format(time.RFC3339)
	}

	ev := event.New(eventType, payload)

	h.onlineUsersMu.RLock()
	clients := make([]*Client, 0, len(h.onlineUsers))
	for uid, conns := range h.onlineUsers {
		if uid == userID {
			continue
		}
		for _, c := range conns {
			clients = append(clients, c)
		}
	}
	h.onlineUsersMu.RUnlock()

	for _, c := range clients {
		c.SafeSend(ev, sendTimeout)
	}
}

func (h *Hub) showLastSeen(userID string) bool {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	user, err := h.users.GetUserByID(ctx, userID)
	if err != nil {
		// default to hiding the timestamp when the profile is unavailable
		return false
	}
	return user.Privacy.ShowLastSeen
}

// Presence exposes the tracker for the HTTP surface.
func (h *Hub) Presence() *PresenceTracker {
	return h.presence
}

// Stop is idempotent: the server shutdown path and the container teardown
// both call it.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() {
		h.cancel()

		for _, shard := range h.shards {
			shard.RLock()
			for _, room := range shard.rooms {
				for _, client := range room {
					client.Close()
				}
			}
			shard.RUnlock()
		}

		h.typing.StopAll()
		close(h.inbound)
		h.wg.Wait()
	})
}

// -----------------------------------------------------------------
// WebSocket upgrade
// -----------------------------------------------------------------

var websocketUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     checkOrigin,
}

func checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")

	switch origin {
	case "", "http://localhost:4200", "https://app.veilmessenger.net":
		return true
	default:
		return false
	}
}

// ServeWS validates the opaque session token, upgrades the connection and
// registers the client. The token is the only identity material on the wire;
// every later frame is attributed to the resolved user id.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")

	userID, err := h.users.ValidateSession(r.Context(), token)
	if err != nil {
		http.Error(w, "invalid session token", http.StatusUnauthorized)
		return
	}

	conn, err := websocketUpgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Println(err)
		return
	}

	RegisterClient(userID, conn, h)
}

func containsString(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
