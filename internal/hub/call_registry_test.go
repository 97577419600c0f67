package hub

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCallRegistryRegisterAndResolve(t *testing.T) {
	t.Parallel()

	h, _, users := newTestHub(t)
	r := NewCallRegistry()

	c := connect(t, h, users, "alice")
	tempID := r.Register(c, "key-a")

	require.NotEmpty(t, tempID)
	require.Equal(t, 1, r.Count())

	entry, ok := r.Resolve(tempID)
	require.True(t, ok)
	require.Equal(t, "alice", entry.userID)
	require.Equal(t, "key-a", entry.publicKey)
	require.Same(t, c, entry.client)

	byUser, ok := r.ResolveUser("alice")
	require.True(t, ok)
	require.Equal(t, tempID, byUser.tempID)
}

func TestCallRegistryReRegisterReplacesEntry(t *testing.T) {
	t.Parallel()

	h, _, users := newTestHub(t)
	r := NewCallRegistry()

	c := connect(t, h, users, "alice")
	first := r.Register(c, "key-1")
	second := r.Register(c, "key-2")

	require.NotEqual(t, first, second)
	require.Equal(t, 1, r.Count())

	_, ok := r.Resolve(first)
	require.False(t, ok) // old temp-id is dead along with its key

	entry, ok := r.Resolve(second)
	require.True(t, ok)
	require.Equal(t, "key-2", entry.publicKey)
}

func TestCallRegistryResolveUserPrefersLatestConnection(t *testing.T) {
	t.Parallel()

	h, _, users := newTestHub(t)
	r := NewCallRegistry()

	laptop := connect(t, h, users, "alice")
	phone := connect(t, h, users, "alice")

	laptopID := r.Register(laptop, "laptop-key")
	phoneID := r.Register(phone, "phone-key")

	entry, ok := r.ResolveUser("alice")
	require.True(t, ok)
	require.Equal(t, phoneID, entry.tempID)

	// both temp-ids stay individually resolvable for live calls
	_, ok = r.Resolve(laptopID)
	require.True(t, ok)
}

func TestCallRegistryPurge(t *testing.T) {
	t.Parallel()

	h, _, users := newTestHub(t)
	r := NewCallRegistry()

	c := connect(t, h, users, "alice")
	tempID := r.Register(c, "key-a")

	purged, ok := r.Purge(c)
	require.True(t, ok)
	require.Equal(t, tempID, purged)
	require.Zero(t, r.Count())

	_, ok = r.Resolve(tempID)
	require.False(t, ok)
	_, ok = r.ResolveUser("alice")
	require.False(t, ok)

	// purging twice is harmless
	_, ok = r.Purge(c)
	require.False(t, ok)
}

func TestCallRegistryPurgeKeepsOtherConnectionsEntry(t *testing.T) {
	t.Parallel()

	h, _, users := newTestHub(t)
	r := NewCallRegistry()

	laptop := connect(t, h, users, "alice")
	phone := connect(t, h, users, "alice")
	r.Register(laptop, "laptop-key")
	phoneID := r.Register(phone, "phone-key")

	// laptop drops; the phone registration survives
	_, ok := r.Purge(laptop)
	require.True(t, ok)

	entry, ok := r.Resolve(phoneID)
	require.True(t, ok)
	require.Equal(t, "phone-key", entry.publicKey)

	byUser, ok := r.ResolveUser("alice")
	require.True(t, ok)
	require.Equal(t, phoneID, byUser.tempID)
}
