package hub

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/pomsfgend/Messenger-sub000/internal/event"
	"github.com/pomsfgend/Messenger-sub000/internal/model"
	"github.com/pomsfgend/Messenger-sub000/internal/seal"
)

// CallHandler is the signaling relay: it validates session and party
// identity, then forwards sealed blobs it cannot read. One state machine per
// call, one active call per connection.
type CallHandler struct {
	hub      *Hub
	registry *CallRegistry

	// callID -> session
	sessions   map[string]*CallSession
	sessionsMu sync.RWMutex
}

// CallSession tracks one live call attempt. It is never persisted and dies
// with teardown: accept-failure, rejection, explicit end, or disconnect.
type CallSession struct {
	CallID       string
	CallerTempID string
	CalleeTempID string
	CallerUserID string
	CalleeUserID string
	State        string // model.CallStateRinging or model.CallStateConnected
	CreatedAt    time.Time
	mu           sync.Mutex
}

func NewCallHandler(hub *Hub) *CallHandler {
	return &CallHandler{
		hub:      hub,
		registry: NewCallRegistry(),
		sessions: make(map[string]*CallSession),
	}
}

// Registry exposes the call registry for the monitor surface.
func (ch *CallHandler) Registry() *CallRegistry {
	return ch.registry
}

// HandleCallEvent processes call signaling frames. Frames of one connection
// arrive in the order it sent them; the relay must not reorder.
func (ch *CallHandler) HandleCallEvent(ev event.WsEvent, c *Client) {
	switch ev.Event {
	case event.EventCallRegister:
		ch.handleRegister(ev, c)
	case event.EventCallInitiate:
		ch.handleInitiate(ev, c)
	case event.EventCallAccept:
		ch.handleAccept(ev, c)
	case event.EventCallReject:
		ch.handleReject(ev, c)
	case event.EventCallEnd:
		ch.handleEnd(ev, c)
	case event.EventCallSignal:
		ch.handleSignal(ev, c)
	default:
		log.Printf("unknown call event type: %s", ev.Event)
	}
}

// handleRegister mints a temp-id for the connection's fresh public key.
func (ch *CallHandler) handleRegister(ev event.WsEvent, c *Client) {
	var payload model.CallRegisterPayload
	if err := json.Unmarshal(ev.Payload, &payload); err != nil {
		ch.sendCallError(c, "", "invalid_payload", "failed to parse register request")
		return
	}

	if _, err := seal.ParsePublicKey(payload.PublicKey); err != nil {
		ch.sendCallError(c, "", "invalid_public_key", "public key must be a 32-byte base64 value")
		return
	}

	tempID := ch.registry.Register(c, payload.PublicKey)
	c.setTempID(tempID)

	c.SafeSend(event.New(event.EventCallRegistered, model.CallRegisteredEvent{
		TempID: tempID,
	}), sendTimeout)

	log.Printf("call registry: client %s registered temp-id %s", c.ID, tempID)
}

// handleInitiate rings the callee's current connection. The callee learns
// only the caller's temp-id, public key and display name; the caller gets
// nothing back until accept.
func (ch *CallHandler) handleInitiate(ev event.WsEvent, c *Client) {
	var payload model.CallInitiatePayload
	if err := json.Unmarshal(ev.Payload, &payload); err != nil {
		ch.sendCallError(c, "", "invalid_payload", "failed to parse initiate request")
		return
	}
	if payload.CallID == "" || payload.CalleeUserID == "" {
		ch.sendCallError(c, payload.CallID, "invalid_payload", "callId and calleeUserId are required")
		return
	}

	callerEntry, ok := ch.registry.Resolve(c.TempID())
	if !ok {
		ch.sendCallError(c, payload.CallID, "not_registered", "register a key pair before initiating")
		return
	}

	if ch.hub.userInCall(c.userID) {
		ch.sendCallError(c, payload.CallID, "caller_busy", "already in a call")
		return
	}

	if ch.getSession(payload.CallID) != nil {
		ch.sendCallError(c, payload.CallID, "call_exists", "callId is already active")
		return
	}

	calleeEntry, ok := ch.registry.ResolveUser(payload.CalleeUserID)
	if !ok {
		// soft failure: no registry entry means no reachable peer, no session
		c.SafeSend(event.New(event.EventCallUnreachable, model.CallEndedEvent{
			CallID: payload.CallID,
			Reason: model.CallEndReasonUnreachable,
		}), sendTimeout)
		return
	}

	// at most one active call per user, across all of their devices:
	// busy targets auto-reject
	if ch.hub.userInCall(payload.CalleeUserID) {
		c.SafeSend(event.New(event.EventCallRejected, model.CallRejectedEvent{
			CallID: payload.CallID,
			Reason: model.CallEndReasonBusy,
		}), sendTimeout)
		return
	}

	session := &CallSession{
		CallID:       payload.CallID,
		CallerTempID: callerEntry.tempID,
		CalleeTempID: calleeEntry.tempID,
		CallerUserID: c.userID,
		CalleeUserID: payload.CalleeUserID,
		State:        model.CallStateRinging,
		CreatedAt:    time.Now(),
	}
	ch.registerSession(session)

	c.setCallState(CallStateOutgoing, payload.CallID)
	calleeEntry.client.setCallState(CallStateIncoming, payload.CallID)

	incoming := model.CallIncomingEvent{
		CallID:            payload.CallID,
		CallerTempID:      callerEntry.tempID,
		CallerPublicKey:   callerEntry.publicKey,
		CallerDisplayInfo: ch.callerDisplayInfo(c.userID),
	}
	if !calleeEntry.client.SafeSend(event.New(event.EventCallIncoming, incoming), sendTimeout) {
		// callee connection died between resolve and send
		ch.teardown(session)
		c.SafeSend(event.New(event.EventCallUnreachable, model.CallEndedEvent{
			CallID: payload.CallID,
			Reason: model.CallEndReasonUnreachable,
		}), sendTimeout)
		return
	}

	log.Printf("call %s: %s -> %s ringing", payload.CallID, callerEntry.tempID, calleeEntry.tempID)
}

// handleAccept moves the session to connected and hands the caller the
// callee's temp-id and public key so it can seal the offer.
func (ch *CallHandler) handleAccept(ev event.WsEvent, c *Client) {
	var payload model.CallAcceptPayload
	if err := json.Unmarshal(ev.Payload, &payload); err != nil {
		ch.sendCallError(c, "", "invalid_payload", "failed to parse accept request")
		return
	}

	session := ch.getSession(payload.CallID)
	if session == nil {
		ch.sendCallError(c, payload.CallID, "call_not_found", "call not found or already ended")
		return
	}
	if session.CalleeTempID != c.TempID() || session.CallerTempID != payload.TargetTempID {
		ch.sendCallError(c, payload.CallID, "not_party", "temp-id is not a party to this call")
		return
	}

	session.mu.Lock()
	if session.State != model.CallStateRinging {
		session.mu.Unlock()
		ch.sendCallError(c, payload.CallID, "invalid_state", "call is not ringing")
		return
	}
	session.State = model.CallStateConnected
	session.mu.Unlock()

	calleeEntry, ok := ch.registry.Resolve(session.CalleeTempID)
	callerEntry, callerOK := ch.registry.Resolve(session.CallerTempID)
	if !ok || !callerOK {
		// accept-failure: caller vanished before pickup completed
		ch.teardown(session)
		c.SafeSend(event.New(event.EventCallEnded, model.CallEndedEvent{
			CallID: session.CallID,
			Reason: model.CallEndReasonDisconnected,
		}), sendTimeout)
		return
	}

	c.setCallState(CallStateConnected, session.CallID)
	callerEntry.client.setCallState(CallStateConnected, session.CallID)

	callerEntry.client.SafeSend(event.New(event.EventCallAccepted, model.CallAcceptedEvent{
		CallID:          session.CallID,
		CalleeTempID:    calleeEntry.tempID,
		CalleePublicKey: calleeEntry.publicKey,
	}), sendTimeout)

	log.Printf("call %s: accepted", session.CallID)
}

// handleReject tears down a ringing call. Either party may reject: the callee
// declining or the caller cancelling before pickup land here the same way, and
// the remaining party gets a single call:rejected.
func (ch *CallHandler) handleReject(ev event.WsEvent, c *Client) {
	var payload model.CallRejectPayload
	if err := json.Unmarshal(ev.Payload, &payload); err != nil {
		ch.sendCallError(c, "", "invalid_payload", "failed to parse reject request")
		return
	}

	session := ch.getSession(payload.CallID)
	if session == nil {
		c.clearCallState()
		return
	}

	peerTempID, ok := session.peerOf(c.TempID())
	if !ok {
		ch.sendCallError(c, payload.CallID, "not_party", "temp-id is not a party to this call")
		return
	}

	reason := payload.Reason
	if reason == "" {
		reason = model.CallEndReasonRejected
	}

	ch.teardown(session)

	if peer, ok := ch.registry.Resolve(peerTempID); ok {
		peer.client.SafeSend(event.New(event.EventCallRejected, model.CallRejectedEvent{
			CallID: session.CallID,
			Reason: reason,
		}), sendTimeout)
	}

	log.Printf("call %s: rejected (%s)", session.CallID, reason)
}

// handleEnd tears the session down and forwards a single call:ended to the
// live peer, whichever side hung up.
func (ch *CallHandler) handleEnd(ev event.WsEvent, c *Client) {
	var payload model.CallEndPayload
	if err := json.Unmarshal(ev.Payload, &payload); err != nil {
		ch.sendCallError(c, "", "invalid_payload", "failed to parse end request")
		return
	}

	session := ch.getSession(payload.CallID)
	if session == nil {
		c.clearCallState()
		return
	}

	peerTempID, ok := session.peerOf(c.TempID())
	if !ok {
		ch.sendCallError(c, payload.CallID, "not_party", "temp-id is not a party to this call")
		return
	}

	ch.teardown(session)

	if peer, ok := ch.registry.Resolve(peerTempID); ok {
		peer.client.SafeSend(event.New(event.EventCallEnded, model.CallEndedEvent{
			CallID: session.CallID,
			Reason: model.CallEndReasonNormal,
		}), sendTimeout)
	}

	log.Printf("call %s: ended", session.CallID)
}

// handleSignal forwards one sealed blob. The relay checks only that the call
// is active and both temp-ids are its registered parties; the payload itself
// stays opaque and is forwarded byte-for-byte.
func (ch *CallHandler) handleSignal(ev event.WsEvent, c *Client) {
	var payload model.CallSignalPayload
	if err := json.Unmarshal(ev.Payload, &payload); err != nil {
		ch.sendCallError(c, "", "invalid_payload", "failed to parse signal")
		return
	}

	session := ch.getSession(payload.CallID)
	if session == nil {
		ch.sendCallError(c, payload.CallID, "call_not_found", "call not found or already ended")
		return
	}

	fromTempID := c.TempID()
	peerTempID, ok := session.peerOf(fromTempID)
	if !ok || peerTempID != payload.TargetTempID {
		ch.sendCallError(c, payload.CallID, "not_party", "temp-ids are not the parties of this call")
		return
	}

	target, ok := ch.registry.Resolve(payload.TargetTempID)
	if !ok {
		// at-most-once, best-effort: target disconnected, drop and log
		log.Printf("call %s: dropping %s signal, temp-id %s is gone",
			payload.CallID, payload.Type, payload.TargetTempID)
		return
	}

	target.client.SafeSend(event.New(event.EventCallSignal, model.CallSignalEvent{
		CallID:     payload.CallID,
		Type:       payload.Type,
		FromTempID: fromTempID,
		Sealed:     payload.Sealed,
	}), sendTimeout)
}

// HandleDisconnect purges the connection's registry entry and synthesizes an
// end to the remaining party of any call it was in. A live call must never be
// left with a peer believing it is still connected.
func (ch *CallHandler) HandleDisconnect(c *Client) {
	tempID, registered := ch.registry.Purge(c)
	if !registered {
		return
	}

	for _, session := range ch.sessionsOf(tempID) {
		peerTempID, _ := session.peerOf(tempID)
		ch.teardown(session)

		if peer, ok := ch.registry.Resolve(peerTempID); ok {
			peer.client.SafeSend(event.New(event.EventCallEnded, model.CallEndedEvent{
				CallID: session.CallID,
				Reason: model.CallEndReasonDisconnected,
			}), sendTimeout)
		}

		log.Printf("call %s: synthesized end, temp-id %s disconnected", session.CallID, tempID)
	}
}

// -----------------------------------------------------------------
// Session bookkeeping
// -----------------------------------------------------------------

func (ch *CallHandler) registerSession(s *CallSession) {
	ch.sessionsMu.Lock()
	ch.sessions[s.CallID] = s
	ch.sessionsMu.Unlock()
}

func (ch *CallHandler) getSession(callID string) *CallSession {
	ch.sessionsMu.RLock()
	defer ch.sessionsMu.RUnlock()
	return ch.sessions[callID]
}

func (ch *CallHandler) sessionsOf(tempID string) []*CallSession {
	ch.sessionsMu.RLock()
	defer ch.sessionsMu.RUnlock()

	var sessions []*CallSession
	for _, s := range ch.sessions {
		if s.CallerTempID == tempID || s.CalleeTempID == tempID {
			sessions = append(sessions, s)
		}
	}
	return sessions
}

// teardown removes the session and resets both parties' call state.
func (ch *CallHandler) teardown(s *CallSession) {
	ch.sessionsMu.Lock()
	delete(ch.sessions, s.CallID)
	ch.sessionsMu.Unlock()

	if caller, ok := ch.registry.Resolve(s.CallerTempID); ok && caller.client.CallID() == s.CallID {
		caller.client.clearCallState()
	}
	if callee, ok := ch.registry.Resolve(s.CalleeTempID); ok && callee.client.CallID() == s.CallID {
		callee.client.clearCallState()
	}
}

// ActiveSessions returns the number of live call sessions.
func (ch *CallHandler) ActiveSessions() int {
	ch.sessionsMu.RLock()
	defer ch.sessionsMu.RUnlock()
	return len(ch.sessions)
}

// peerOf returns the other party's temp-id, or false when tempID is not a
// party at all.
func (s *CallSession) peerOf(tempID string) (string, bool) {
	switch tempID {
	case s.CallerTempID:
		return s.CalleeTempID, true
	case s.CalleeTempID:
		return s.CallerTempID, true
	default:
		return "", false
	}
}

func (ch *CallHandler) callerDisplayInfo(userID string) string {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	user, err := ch.hub.users.GetUserByID(ctx, userID)
	if err != nil {
		return ""
	}
	return user.DisplayName
}

func (ch *CallHandler) sendCallError(c *Client, callID, code, message string) {
	c.SafeSend(event.New(event.EventCallError, model.CallErrorEvent{
		CallID: callID,
		Code:   code,
		Error:  message,
	}), sendTimeout)
}
