package model

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDeriveDirectChatIDCommutative(t *testing.T) {
	t.Parallel()

	require.Equal(t, DeriveDirectChatID("alice", "bob"), DeriveDirectChatID("bob", "alice"))
	require.Equal(t, "alice:bob", DeriveDirectChatID("bob", "alice"))
	require.Equal(t, DeriveDirectChatID("u1", "u2"), DeriveDirectChatID("u2", "u1"))
}

func TestDirectChatParticipants(t *testing.T) {
	t.Parallel()

	a, b, ok := DirectChatParticipants(DeriveDirectChatID("zoe", "adam"))
	require.True(t, ok)
	require.Equal(t, "adam", a)
	require.Equal(t, "zoe", b)

	_, _, ok = DirectChatParticipants(GlobalChatID)
	require.False(t, ok)

	_, _, ok = DirectChatParticipants("justoneid")
	require.False(t, ok)
}

func TestIsParticipant(t *testing.T) {
	t.Parallel()

	chatID := DeriveDirectChatID("alice", "bob")
	require.True(t, IsParticipant(chatID, "alice"))
	require.True(t, IsParticipant(chatID, "bob"))
	require.False(t, IsParticipant(chatID, "mallory"))

	// everyone belongs to the global room
	require.True(t, IsParticipant(GlobalChatID, "anyone"))
}
