package event

// Call Event Types - Client to Server
const (
	// EventCallRegister - Connection announces its ephemeral public key
	EventCallRegister = "call:register"

	// EventCallInitiate - Caller rings a user by durable id
	EventCallInitiate = "call:initiate"

	// EventCallAccept - Callee accepts the incoming call
	EventCallAccept = "call:accept"

	// EventCallReject - Callee rejects the incoming call
	EventCallReject = "call:reject"

	// EventCallEnd - Either party ends the call
	EventCallEnd = "call:end"

	// EventCallSignal - Sealed offer/answer/candidate blob, routed by temp-id
	EventCallSignal = "call:signal"
)

// Call Event Types - Server to Client
const (
	// EventCallRegistered - Returns the temp-id minted for this connection
	EventCallRegistered = "call:registered"

	// EventCallIncoming - Notify callee of a ringing call
	EventCallIncoming = "call:incoming"

	// EventCallAccepted - Notify caller that callee accepted
	EventCallAccepted = "call:accepted"

	// EventCallRejected - Notify caller that callee rejected
	EventCallRejected = "call:rejected"

	// EventCallEnded - Notify the remaining party of teardown
	EventCallEnded = "call:ended"

	// EventCallUnreachable - Callee has no live registry entry
	EventCallUnreachable = "call:unreachable"

	// EventCallError - Call-related failure, sent to one connection only
	EventCallError = "call:error"
)

// Signal blob types carried inside call:signal
const (
	SignalTypeOffer     = "offer"
	SignalTypeAnswer    = "answer"
	SignalTypeCandidate = "candidate"
)

// IsCallEvent reports whether eventType belongs to the call signaling relay.
func IsCallEvent(eventType string) bool {
	switch eventType {
	case EventCallRegister,
		EventCallInitiate,
		EventCallAccept,
		EventCallReject,
		EventCallEnd,
		EventCallSignal:
		return true
	default:
		return false
	}
}
