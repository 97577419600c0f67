package hub

import (
	"testing"
	"time"

	"github.com/pomsfgend/Messenger-sub000/internal/event"
	"github.com/pomsfgend/Messenger-sub000/internal/model"

	"github.com/stretchr/testify/require"
)

func TestPresenceTrackerTransitions(t *testing.T) {
	t.Parallel()

	p := NewPresenceTracker()

	require.True(t, p.Connect("alice"))
	require.False(t, p.Connect("alice")) // already online
	require.Equal(t, 1, p.OnlineCount())

	lastSeen := p.Disconnect("alice")
	rec, ok := p.Get("alice")
	require.True(t, ok)
	require.False(t, rec.IsOnline)
	require.NotNil(t, rec.LastSeen)
	require.Equal(t, lastSeen, *rec.LastSeen)
	require.Zero(t, p.OnlineCount())

	// coming back clears the stamp
	require.True(t, p.Connect("alice"))
	rec, _ = p.Get("alice")
	require.True(t, rec.IsOnline)
	require.Nil(t, rec.LastSeen)
}

func TestPresenceBroadcastOnFirstAndLastConnection(t *testing.T) {
	t.Parallel()

	h, _, users := newTestHub(t)

	observer := connect(t, h, users, "observer")
	drain(observer)

	alice := connect(t, h, users, "alice")
	online := decodePayload[event.PresenceEvent](t, recvEvent(t, observer, event.EventUserOnline))
	require.Equal(t, "alice", online.UserID)

	// second device: no transition, no broadcast
	alicePhone := connect(t, h, users, "alice")
	requireNoEvent(t, observer)

	// first device drops: user still online through the phone
	h.removeClient(alice)
	requireNoEvent(t, observer)

	h.removeClient(alicePhone)
	offline := decodePayload[event.PresenceEvent](t, recvEvent(t, observer, event.EventUserOffline))
	require.Equal(t, "alice", offline.UserID)
	require.NotEmpty(t, offline.LastSeen)
	parsed, err := time.Parse(time.RFC3339, offline.LastSeen)
	require.NoError(t, err)
	require.WithinDuration(t, time.Now(), parsed, 5*time.Second)
}

func TestPresenceLastSeenHiddenByPrivacyFlag(t *testing.T) {
	t.Parallel()

	h, _, users := newTestHub(t)
	users.addUser(model.User{
		UserID:  "ghost",
		Role:    model.RoleUser,
		Privacy: model.PrivacySettings{ShowLastSeen: false, ShowTyping: true},
	})

	observer := connect(t, h, users, "observer")
	ghost := connect(t, h, users, "ghost")
	recvEvent(t, observer, event.EventUserOnline)
	drain(observer, ghost)

	h.removeClient(ghost)

	offline := decodePayload[event.PresenceEvent](t, recvEvent(t, observer, event.EventUserOffline))
	require.Equal(t, "ghost", offline.UserID)
	require.Empty(t, offline.LastSeen) // the state change is visible, the timestamp is not
}

func TestPresenceBroadcastSkipsTheUserThemselves(t *testing.T) {
	t.Parallel()

	h, _, users := newTestHub(t)

	alice := connect(t, h, users, "alice")
	alicePhone := connect(t, h, users, "alice")
	bob := connect(t, h, users, "bob")

	recvEvent(t, alice, event.EventUserOnline)
	recvEvent(t, alicePhone, event.EventUserOnline)
	requireNoEvent(t, alice)
	requireNoEvent(t, alicePhone)
	requireNoEvent(t, bob)
}
