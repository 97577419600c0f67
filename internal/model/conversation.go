package model

import "strings"

// GlobalChatID is the well-known id of the global room. It is never derived.
const GlobalChatID = "global"

const directChatSep = ":"

// DeriveDirectChatID computes the room id for a private conversation between
// two users. The pair is sorted before joining, so the id is identical no
// matter which side initiates.
func DeriveDirectChatID(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return a + directChatSep + b
}

// DirectChatParticipants splits a derived direct-chat id back into its two
// participant ids. ok is false for the global room and malformed ids.
func DirectChatParticipants(chatID string) (a, b string, ok bool) {
	if chatID == GlobalChatID {
		return "", "", false
	}
	parts := strings.SplitN(chatID, directChatSep, 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], parts[1], true
}

// IsParticipant reports whether userID belongs to chatID. Everyone belongs to
// the global room.
func IsParticipant(chatID, userID string) bool {
	if chatID == GlobalChatID {
		return true
	}
	a, b, ok := DirectChatParticipants(chatID)
	return ok && (a == userID || b == userID)
}
