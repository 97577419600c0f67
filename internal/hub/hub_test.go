package hub

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/pomsfgend/Messenger-sub000/internal/db"
	"github.com/pomsfgend/Messenger-sub000/internal/event"
	"github.com/pomsfgend/Messenger-sub000/internal/model"
	"github.com/pomsfgend/Messenger-sub000/internal/repo"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// -----------------------------------------------------------------
// In-memory stores implementing the repo collaborator interfaces
// -----------------------------------------------------------------

type fakeMessageStore struct {
	mu         sync.Mutex
	messages   map[string]*model.Message
	failInsert bool
}

func newFakeMessageStore() *fakeMessageStore {
	return &fakeMessageStore{messages: make(map[string]*model.Message)}
}

func (s *fakeMessageStore) InsertMessage(_ context.Context, msg *model.Message) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failInsert {
		return "", errors.New("store unavailable")
	}
	if msg.ID.IsZero() {
		msg.ID = primitive.NewObjectID()
	}
	stored := *msg
	s.messages[msg.ID.Hex()] = &stored
	return msg.ID.Hex(), nil
}

func (s *fakeMessageStore) GetMessage(_ context.Context, id string) (*model.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg, ok := s.messages[id]
	if !ok {
		return nil, repo.ErrMessageNotFound
	}
	cp := *msg
	return &cp, nil
}

func (s *fakeMessageStore) EditMessage(_ context.Context, id, content string) (*model.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg, ok := s.messages[id]
	if !ok || msg.IsDeleted {
		return nil, repo.ErrMessageNotFound
	}
	msg.Content = content
	msg.IsEdited = true
	cp := *msg
	return &cp, nil
}

func (s *fakeMessageStore) ToggleReaction(_ context.Context, id, key, userID string) (*model.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg, ok := s.messages[id]
	if !ok {
		return nil, repo.ErrMessageNotFound
	}
	if msg.Reactions == nil {
		msg.Reactions = map[string][]string{}
	}

	users := msg.Reactions[key]
	found := false
	for i, u := range users {
		if u == userID {
			msg.Reactions[key] = append(users[:i], users[i+1:]...)
			found = true
			break
		}
	}
	if !found {
		msg.Reactions[key] = append(users, userID)
	}
	if len(msg.Reactions[key]) == 0 {
		delete(msg.Reactions, key)
	}

	cp := *msg
	cp.Reactions = make(map[string][]string, len(msg.Reactions))
	for k, v := range msg.Reactions {
		cp.Reactions[k] = append([]string(nil), v...)
	}
	return &cp, nil
}

func (s *fakeMessageStore) SoftDeleteMessages(_ context.Context, chatID string, ids []string, senderID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var deleted []string
	for _, id := range ids {
		msg, ok := s.messages[id]
		if !ok || msg.ChatID != chatID || msg.IsDeleted {
			continue
		}
		if senderID != "" && msg.SenderID != senderID {
			continue
		}
		msg.IsDeleted = true
		deleted = append(deleted, id)
	}
	return deleted, nil
}

func (s *fakeMessageStore) MarkMessagesRead(_ context.Context, chatID, readerID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var ids []string
	for id, msg := range s.messages {
		if msg.ChatID != chatID || msg.IsDeleted || msg.SenderID == readerID {
			continue
		}
		already := false
		for _, r := range msg.ReadBy {
			if r == readerID {
				already = true
				break
			}
		}
		if already {
			continue
		}
		msg.ReadBy = append(msg.ReadBy, readerID)
		ids = append(ids, id)
	}
	return ids, nil
}

func (s *fakeMessageStore) ListMessagesByChat(_ context.Context, chatID string, page int64) (*db.PaginatedResult[model.Message], error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result []model.Message
	for _, msg := range s.messages {
		if msg.ChatID == chatID {
			result = append(result, *msg)
		}
	}
	return &db.PaginatedResult[model.Message]{Data: result, Total: int64(len(result)), Page: page}, nil
}

func (s *fakeMessageStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.messages)
}

type fakeUserStore struct {
	mu       sync.Mutex
	users    map[string]*model.User
	sessions map[string]string
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{
		users:    make(map[string]*model.User),
		sessions: make(map[string]string),
	}
}

func (s *fakeUserStore) addUser(u model.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.UserID] = &u
}

func (s *fakeUserStore) GetUserByID(_ context.Context, userID string) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[userID]
	if !ok {
		return nil, repo.ErrUserNotFound
	}
	cp := *user
	return &cp, nil
}

func (s *fakeUserStore) GetMuteStatus(ctx context.Context, userID string) (*model.MuteStatus, error) {
	user, err := s.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if user.IsBanned {
		return &model.MuteStatus{Muted: true, Reason: "banned"}, nil
	}
	if user.IsMutedAt(time.Now()) {
		return &model.MuteStatus{Muted: true, Reason: user.MutedReason, ExpiresAt: user.MutedUntil}, nil
	}
	return &model.MuteStatus{}, nil
}

func (s *fakeUserStore) ValidateSession(_ context.Context, token string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	userID, ok := s.sessions[token]
	if !ok {
		return "", repo.ErrInvalidSession
	}
	return userID, nil
}

// -----------------------------------------------------------------
// Harness
// -----------------------------------------------------------------

func newTestHub(t *testing.T) (*Hub, *fakeMessageStore, *fakeUserStore) {
	t.Helper()

	messages := newFakeMessageStore()
	users := newFakeUserStore()

	h := NewHub(messages, users)
	t.Cleanup(h.Stop)

	return h, messages, users
}

// connect attaches a pumpless test client; events are read straight off the
// egress channel.
func connect(t *testing.T, h *Hub, users *fakeUserStore, userID string) *Client {
	t.Helper()

	users.mu.Lock()
	if _, ok := users.users[userID]; !ok {
		users.users[userID] = &model.User{
			UserID:      userID,
			Username:    userID,
			DisplayName: userID,
			Role:        model.RoleUser,
			Privacy:     model.PrivacySettings{ShowLastSeen: true, ShowTyping: true},
		}
	}
	users.mu.Unlock()

	c := newClient(userID, nil, h)
	h.addClient(c)
	return c
}

func recvEvent(t *testing.T, c *Client, want string) event.WsEvent {
	t.Helper()

	select {
	case ev := <-c.egress:
		require.Equal(t, want, ev.Event)
		return ev
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for %s on client %s", want, c.ID)
		return event.WsEvent{}
	}
}

func requireNoEvent(t *testing.T, c *Client) {
	t.Helper()

	select {
	case ev := <-c.egress:
		t.Fatalf("unexpected event %s on client %s", ev.Event, c.ID)
	case <-time.After(50 * time.Millisecond):
	}
}

// drain discards everything already enqueued (presence chatter from earlier
// connects) so assertions start from a clean egress.
func drain(clients ...*Client) {
	for _, c := range clients {
		for empty := false; !empty; {
			select {
			case <-c.egress:
			default:
				empty = true
			}
		}
	}
}

func decodePayload[T any](t *testing.T, ev event.WsEvent) T {
	t.Helper()

	var payload T
	require.NoError(t, json.Unmarshal(ev.Payload, &payload))
	return payload
}
