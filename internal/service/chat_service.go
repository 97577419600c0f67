package service

import (
	"context"

	"github.com/pomsfgend/Messenger-sub000/internal/db"
	"github.com/pomsfgend/Messenger-sub000/internal/model"
	"github.com/pomsfgend/Messenger-sub000/internal/repo"
)

// ChatService backs the read-only HTTP surface: history pagination and
// public profile lookup. All writes go through the relay.
type ChatService interface {
	GetChatHistory(ctx context.Context, chatID string, page int64) (*db.PaginatedResult[model.Message], error)
	GetUserProfile(ctx context.Context, userID string) (*model.PublicProfile, error)
}

type chatService struct {
	messages repo.MessageRepository
	users    repo.UserRepository
}

func NewChatService(messages repo.MessageRepository, users repo.UserRepository) ChatService {
	return &chatService{
		messages: messages,
		users:    users,
	}
}

func (s *chatService) GetChatHistory(ctx context.Context, chatID string, page int64) (*db.PaginatedResult[model.Message], error) {
	return s.messages.ListMessagesByChat(ctx, chatID, page)
}

func (s *chatService) GetUserProfile(ctx context.Context, userID string) (*model.PublicProfile, error) {
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	profile := user.Public()
	return &profile, nil
}
