package hub

import (
	"context"
	"log"
	"net"
	"sync"
	"time"

	"github.com/pomsfgend/Messenger-sub000/internal/event"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Per-connection call states. A connection is a call party at most once.
const (
	CallStateIdle      = "idle"
	CallStateOutgoing  = "outgoing"
	CallStateIncoming  = "incoming"
	CallStateConnected = "connected"
)

// Client is one live WebSocket connection. A user may hold several clients at
// once (multiple devices); room membership and call state are per connection.
type Client struct {
	ID     string
	userID string

	conn    *websocket.Conn
	manager *Hub
	egress  chan event.WsEvent

	// rooms this connection joined, for disconnect cleanup
	rooms   map[string]struct{}
	roomsMu sync.RWMutex

	// call state for this connection
	callState string
	callID    string
	tempID    string // call-registry temp-id, empty until call:register
	focused   bool
	statusMu  sync.RWMutex

	cancel         context.CancelFunc
	ctx            context.Context
	once           sync.Once
	connClosed     chan struct{}
	connClosedOnce sync.Once
	closed         bool
	closedMu       sync.RWMutex
}

var (
	// tuning parameters
	writeWait          = 10 * time.Second       // time allowed to write a message to the peer
	pongWait           = 20 * time.Second       // time allowed to read the next pong message from the peer
	pingInterval       = (pongWait * 9) / 10    // send pings to peer with this period
	maxMessageSize     = 64 * 1024              // max inbound message size (64KB)
	sendBufSize        = 256                    // per-connection outbound buffer size
	workerPoolSize     = 16                     // number of workers to process inbound chat events
	sendTimeout        = 2 * time.Second        // timeout for enqueuing outbound messages
	kickOnFull         = true                   // when true, disconnect client when egress is full
	registerTimeout    = 5 * time.Second        // timeout for client registration
	unregisterTimeout  = 5 * time.Second        // timeout for client unregistration
	inboundSendTimeout = 500 * time.Millisecond // timeout for sending to inbound channel
)

func newClient(userID string, conn *websocket.Conn, h *Hub) *Client {
	ctx, cancel := context.WithCancel(context.Background())

	return &Client{
		ID:         uuid.New().String(),
		userID:     userID,
		conn:       conn,
		manager:    h,
		egress:     make(chan event.WsEvent, sendBufSize),
		rooms:      make(map[string]struct{}),
		callState:  CallStateIdle,
		cancel:     cancel,
		ctx:        ctx,
		connClosed: make(chan struct{}),
	}
}

// RegisterClient creates a client for an authenticated connection and starts
// its read/write pumps.
func RegisterClient(userID string, conn *websocket.Conn, h *Hub) *Client {
	client := newClient(userID, conn, h)

	select {
	case h.register <- client:
		go client.ReadMessages()
		go client.WriteMessages()
		log.Printf("client %s registered for user %s", client.ID, userID)
		return client
	case <-time.After(registerTimeout):
		log.Printf("failed to register client %s: timeout", client.ID)
		client.cancel()
		conn.Close()
		return nil
	}
}

func (c *Client) UserID() string { return c.userID }

func (c *Client) ReadMessages() {
	defer func() {
		select {
		case c.manager.unregister <- c:
			// unregistered
		case <-time.After(unregisterTimeout):
			log.Printf("failed to unregister client %s: timeout", c.ID)
		}
		c.Close()
	}()

	c.conn.SetReadLimit(int64(maxMessageSize))
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(c.pongHandler)

	for {
		select {
		case <-c.ctx.Done():
			return
		default:
			var ev event.WsEvent

			if err := c.conn.ReadJSON(&ev); err != nil {
				if websocket.IsCloseError(err,
					websocket.CloseNormalClosure,
					websocket.CloseGoingAway,
					websocket.CloseAbnormalClosure,
				) {
					log.Printf("client disconnected: %v", c.ID)
					return
				}

				if websocket.IsUnexpectedCloseError(err,
					websocket.CloseInternalServerErr,
					websocket.CloseProtocolError,
				) {
					log.Printf("unexpected close for %s: %v", c.ID, err)
				}

				if ne, ok := err.(net.Error); ok && ne.Timeout() {
					log.Printf("client %s timed out - closing connection", c.ID)
					return
				}

				log.Printf("error reading from client %s: %v", c.ID, err)
				return
			}

			// Call signaling frames must keep the sender's own ordering
			// (offer before answer before candidates), so they bypass the
			// worker pool and run on this goroutine.
			if event.IsCallEvent(ev.Event) {
				c.manager.callHandler.HandleCallEvent(ev, c)
				continue
			}

			select {
			case c.manager.inbound <- inboundMessage{client: c, event: ev}:
				// accepted for processing
			case <-time.After(inboundSendTimeout):
				log.Printf("inbound send timeout: dropping client %s", c.ID)
				c.cancel()
				c.conn.Close()
			case <-c.ctx.Done():
				return
			}
		}
	}
}

func (c *Client) WriteMessages() {
	ticker := time.NewTicker(pingInterval)

	defer func() {
		ticker.Stop()
		c.Close()
		_ = c.conn.Close()

		c.connClosedOnce.Do(func() {
			close(c.connClosed)
		})
	}()

	for {
		select {
		case <-c.ctx.Done():
			return
		case ev, ok := <-c.egress:
			if !ok {
				if err := c.conn.WriteMessage(websocket.CloseMessage, nil); err != nil {
					log.Printf("connection closed: %v", err)
				}
				return
			}

			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(ev); err != nil {
				log.Printf("write error for client %s: %v", c.ID, err)
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				log.Printf("ping error for client %s: %v", c.ID, err)
				return
			}
		}
	}
}

func (c *Client) pongHandler(string) error {
	return c.conn.SetReadDeadline(time.Now().Add(pongWait))
}

func (c *Client) Close() {
	c.once.Do(func() {
		c.closedMu.Lock()
		c.closed = true
		c.closedMu.Unlock()

		c.cancel()
		close(c.egress)

		// Wait for WriteMessages to close conn, or force close after timeout
		go func() {
			select {
			case <-c.connClosed:
				// WriteMessages closed it
			case <-time.After(5 * time.Second):
				if c.conn != nil {
					_ = c.conn.Close()
				}
				log.Printf("safety timeout: force closed connection for client %s", c.ID)
			}
		}()
	})
}

// IsClosed returns true if the client has been closed
func (c *Client) IsClosed() bool {
	c.closedMu.RLock()
	defer c.closedMu.RUnlock()
	return c.closed
}

// SafeSend attempts to enqueue an event for this connection. Returns false if
// the client is closed or the egress buffer stays full past the timeout.
func (c *Client) SafeSend(ev event.WsEvent, timeout time.Duration) bool {
	if c.IsClosed() {
		return false
	}

	select {
	case <-c.ctx.Done():
		return false
	case c.egress <- ev:
		return true
	case <-time.After(timeout):
		return false
	}
}

// -----------------------------------------------------------------
// Room membership bookkeeping (per connection)
// -----------------------------------------------------------------

func (c *Client) trackRoom(chatID string) {
	c.roomsMu.Lock()
	c.rooms[chatID] = struct{}{}
	c.roomsMu.Unlock()
}

func (c *Client) untrackRoom(chatID string) {
	c.roomsMu.Lock()
	delete(c.rooms, chatID)
	c.roomsMu.Unlock()
}

func (c *Client) joinedRooms() []string {
	c.roomsMu.RLock()
	defer c.roomsMu.RUnlock()

	rooms := make([]string, 0, len(c.rooms))
	for chatID := range c.rooms {
		rooms = append(rooms, chatID)
	}
	return rooms
}

// InRoom reports whether this connection is subscribed to chatID.
func (c *Client) InRoom(chatID string) bool {
	c.roomsMu.RLock()
	defer c.roomsMu.RUnlock()
	_, ok := c.rooms[chatID]
	return ok
}

// -----------------------------------------------------------------
// Call and focus state
// -----------------------------------------------------------------

// CallState returns this connection's call-machine state.
func (c *Client) CallState() string {
	c.statusMu.RLock()
	defer c.statusMu.RUnlock()
	return c.callState
}

// CallID returns the call this connection is a party to, if any.
func (c *Client) CallID() string {
	c.statusMu.RLock()
	defer c.statusMu.RUnlock()
	return c.callID
}

func (c *Client) setCallState(state, callID string) {
	c.statusMu.Lock()
	c.callState = state
	c.callID = callID
	c.statusMu.Unlock()
}

func (c *Client) clearCallState() {
	c.setCallState(CallStateIdle, "")
}

// InCall reports whether this connection is party to any non-idle call.
func (c *Client) InCall() bool {
	return c.CallState() != CallStateIdle
}

// TempID returns the call-registry temp-id for this connection, or "".
func (c *Client) TempID() string {
	c.statusMu.RLock()
	defer c.statusMu.RUnlock()
	return c.tempID
}

func (c *Client) setTempID(tempID string) {
	c.statusMu.Lock()
	c.tempID = tempID
	c.statusMu.Unlock()
}

// IsFocused reports whether the client window currently has foreground focus.
// Read receipts are only accepted from focused connections.
func (c *Client) IsFocused() bool {
	c.statusMu.RLock()
	defer c.statusMu.RUnlock()
	return c.focused
}

func (c *Client) setFocused(focused bool) {
	c.statusMu.Lock()
	c.focused = focused
	c.statusMu.Unlock()
}
