package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pomsfgend/Messenger-sub000/internal/db"
	"github.com/pomsfgend/Messenger-sub000/internal/model"

	"go.mongodb.org/mongo-driver/mongo"
)

var (
	ErrUserNotFound   = errors.New("user not found")
	ErrInvalidSession = errors.New("invalid or expired session token")
)

const userLookupTimeout = 5 * time.Second

// UserRepository is the identity collaborator: the relay reads users and
// sessions, it never writes them.
type UserRepository interface {
	GetUserByID(ctx context.Context, userID string) (*model.User, error)
	GetMuteStatus(ctx context.Context, userID string) (*model.MuteStatus, error)
	ValidateSession(ctx context.Context, token string) (string, error)
}

type userRepository struct {
	con      *mongo.Database
	users    *db.Repository[model.User]
	sessions *db.Repository[model.Session]
}

func NewUserRepository(con *mongo.Database, users *db.Repository[model.User], sessions *db.Repository[model.Session]) UserRepository {
	return &userRepository{
		con:      con,
		users:    users,
		sessions: sessions,
	}
}

func (r *userRepository) GetUserByID(ctx context.Context, userID string) (*model.User, error) {
	ctx, cancel := context.WithTimeout(ctx, userLookupTimeout)
	defer cancel()

	user, err := r.users.FindOne(ctx, db.NewFilter().Eq("user_id", userID).Build())
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get user failed: %w", err)
	}
	return user, nil
}

// GetMuteStatus resolves the sender's mute/ban window. A ban is reported as an
// open-ended mute with no expiry.
func (r *userRepository) GetMuteStatus(ctx context.Context, userID string) (*model.MuteStatus, error) {
	user, err := r.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if user.IsBanned {
		return &model.MuteStatus{Muted: true, Reason: "banned"}, nil
	}

	if user.IsMutedAt(time.Now()) {
		reason := user.MutedReason
		if reason == "" {
			reason = "muted"
		}
		return &model.MuteStatus{Muted: true, Reason: reason, ExpiresAt: user.MutedUntil}, nil
	}

	return &model.MuteStatus{}, nil
}

// ValidateSession resolves an opaque handshake token to a durable user id.
func (r *userRepository) ValidateSession(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", ErrInvalidSession
	}

	ctx, cancel := context.WithTimeout(ctx, userLookupTimeout)
	defer cancel()

	session, err := r.sessions.FindOne(ctx, db.NewFilter().Eq("token", token).Build())
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return "", ErrInvalidSession
		}
		return "", fmt.Errorf("session lookup failed: %w", err)
	}

	if session.ExpiresAt != nil && session.ExpiresAt.Before(time.Now()) {
		return "", ErrInvalidSession
	}

	return session.UserID, nil
}
