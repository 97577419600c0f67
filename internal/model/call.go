package model

import "encoding/json"

// Call session states. A session is created in StateRinging and removed on
// teardown; there is no persisted record of it.
const (
	CallStateRinging   = "ringing"
	CallStateConnected = "connected"
)

// Call end reasons
const (
	CallEndReasonNormal       = "normal"
	CallEndReasonBusy         = "busy"
	CallEndReasonRejected     = "rejected"
	CallEndReasonUnreachable  = "unreachable"
	CallEndReasonDisconnected = "peer_disconnected"
)

// -----------------------------------------------------------------
// WebSocket Call Payloads - Client to Server
// -----------------------------------------------------------------

// CallRegisterPayload announces a fresh per-connection public key.
type CallRegisterPayload struct {
	PublicKey string `json:"publicKey"` // base64, client-generated per connection
}

// CallInitiatePayload is sent by the caller to ring a user.
type CallInitiatePayload struct {
	CalleeUserID string `json:"calleeUserId"`
	CallID       string `json:"callId"` // client-generated, UUID-class unique
}

// CallAcceptPayload is sent by the callee to accept an incoming call.
type CallAcceptPayload struct {
	CallID       string `json:"callId"`
	TargetTempID string `json:"targetTempId"` // caller's temp-id
}

// CallRejectPayload is sent by the callee to reject an incoming call.
type CallRejectPayload struct {
	CallID       string `json:"callId"`
	TargetTempID string `json:"targetTempId"`
	Reason       string `json:"reason,omitempty"`
}

// CallEndPayload is sent by either party to hang up.
type CallEndPayload struct {
	CallID       string `json:"callId"`
	TargetTempID string `json:"targetTempId"`
}

// CallSignalPayload carries a sealed signaling blob (offer, answer or ICE
// candidate). The relay routes it by temp-id and never decrypts Sealed.
type CallSignalPayload struct {
	CallID       string          `json:"callId"`
	Type         string          `json:"type"` // "offer", "answer", "candidate"
	TargetTempID string          `json:"targetTempId"`
	Sealed       json.RawMessage `json:"sealed"` // opaque to the relay
}

// -----------------------------------------------------------------
// WebSocket Call Payloads - Server to Client
// -----------------------------------------------------------------

// CallRegisteredEvent returns the temp-id assigned to this connection.
type CallRegisteredEvent struct {
	TempID string `json:"tempId"`
}

// CallIncomingEvent notifies the callee of a ringing call. It carries only
// ephemeral caller identifiers, never the caller's durable user id.
type CallIncomingEvent struct {
	CallID            string `json:"callId"`
	CallerTempID      string `json:"callerTempId"`
	CallerPublicKey   string `json:"callerPublicKey"`
	CallerDisplayInfo string `json:"callerDisplayInfo,omitempty"`
}

// CallAcceptedEvent notifies the caller that the callee picked up.
type CallAcceptedEvent struct {
	CallID          string `json:"callId"`
	CalleeTempID    string `json:"calleeTempId"`
	CalleePublicKey string `json:"calleePublicKey"`
}

// CallSignalEvent forwards a sealed blob to its addressee.
type CallSignalEvent struct {
	CallID     string          `json:"callId"`
	Type       string          `json:"type"`
	FromTempID string          `json:"fromTempId"`
	Sealed     json.RawMessage `json:"sealed"`
}

// CallRejectedEvent notifies the caller of a rejection.
type CallRejectedEvent struct {
	CallID string `json:"callId"`
	Reason string `json:"reason,omitempty"`
}

// CallEndedEvent notifies the remaining party that the session is torn down.
type CallEndedEvent struct {
	CallID string `json:"callId"`
	Reason string `json:"reason"`
}

// CallErrorEvent reports a call-related failure to one connection only.
type CallErrorEvent struct {
	CallID string `json:"callId,omitempty"`
	Code   string `json:"code"`
	Error  string `json:"error"`
}
