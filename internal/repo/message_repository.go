package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pomsfgend/Messenger-sub000/internal/db"
	"github.com/pomsfgend/Messenger-sub000/internal/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

var (
	ErrMaxRetriesExceeded = errors.New("maximum retry attempts exceeded")
	ErrInvalidMessage     = errors.New("invalid message: message cannot be nil")
	ErrInvalidChatID      = errors.New("invalid chat ID: cannot be empty")
	ErrMessageNotFound    = errors.New("message not found")
	ErrOperationTimeout   = errors.New("operation timeout exceeded")
)

const (
	defaultWriteTimeout = 5 * time.Second
	defaultReadTimeout  = 30 * time.Second

	maxRetries     = 3
	baseRetryDelay = 100 * time.Millisecond
	maxRetryDelay  = 2 * time.Second

	historyPageSize = 30
)

// MessageRepository is the persistence collaborator consumed by the relay.
// Insert must complete (or fail) before any broadcast happens.
type MessageRepository interface {
	InsertMessage(ctx context.Context, msg *model.Message) (string, error)
	GetMessage(ctx context.Context, id string) (*model.Message, error)
	EditMessage(ctx context.Context, id, content string) (*model.Message, error)
	ToggleReaction(ctx context.Context, id, reactionKey, userID string) (*model.Message, error)
	SoftDeleteMessages(ctx context.Context, chatID string, ids []string, senderID string) ([]string, error)
	MarkMessagesRead(ctx context.Context, chatID, readerID string) ([]string, error)
	ListMessagesByChat(ctx context.Context, chatID string, page int64) (*db.PaginatedResult[model.Message], error)
}

type messageRepository struct {
	con       *mongo.Database
	mongoRepo *db.Repository[model.Message]
	logger    *zap.Logger
}

func NewMessageRepository(con *mongo.Database, repo *db.Repository[model.Message], logger *zap.Logger) MessageRepository {
	return &messageRepository{
		con:       con,
		mongoRepo: repo,
		logger:    logger,
	}
}

// -----------------------------------------------------------------------------
// InsertMessage
// -----------------------------------------------------------------------------

func (m *messageRepository) InsertMessage(ctx context.Context, msg *model.Message) (string, error) {
	if msg == nil {
		return "", ErrInvalidMessage
	}
	if msg.ChatID == "" {
		return "", ErrInvalidChatID
	}

	if msg.ID.IsZero() {
		msg.ID = primitive.NewObjectID()
	}

	ctx, cancel := m.ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			if err := m.waitForRetry(ctx, attempt); err != nil {
				return "", err
			}
		}

		_, err := m.mongoRepo.Create(ctx, *msg)
		if err == nil {
			m.logger.Info("message inserted",
				zap.String("message_id", msg.ID.Hex()),
				zap.String("chat_id", msg.ChatID),
				zap.Int("attempt", attempt+1),
			)
			return msg.ID.Hex(), nil
		}

		lastErr = err
		if !m.isRetryableError(err) {
			break
		}

		m.logger.Warn("insert attempt failed, retrying",
			zap.Error(err),
			zap.Int("attempt", attempt+1),
			zap.Int("max_attempts", maxRetries),
		)
	}

	m.logger.Error("failed to insert message after all retries",
		zap.Error(lastErr),
		zap.String("chat_id", msg.ChatID),
	)

	return "", fmt.Errorf("insert message failed: %w", lastErr)
}

// -----------------------------------------------------------------------------
// GetMessage / EditMessage
// -----------------------------------------------------------------------------

func (m *messageRepository) GetMessage(ctx context.Context, id string) (*model.Message, error) {
	ctx, cancel := m.ensureTimeout(ctx, defaultReadTimeout)
	defer cancel()

	msg, err := m.mongoRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrMessageNotFound
		}
		return nil, fmt.Errorf("get message failed: %w", err)
	}
	return msg, nil
}

func (m *messageRepository) EditMessage(ctx context.Context, id, content string) (*model.Message, error) {
	ctx, cancel := m.ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	filter := db.NewFilter().ObjectID("_id", id).Eq("is_deleted", false).Build()
	result, err := m.mongoRepo.Update(ctx, filter, bson.M{"content": content, "is_edited": true})
	if err != nil {
		return nil, fmt.Errorf("edit message failed: %w", err)
	}
	if result.MatchedCount == 0 {
		return nil, ErrMessageNotFound
	}

	return m.GetMessage(ctx, id)
}

// -----------------------------------------------------------------------------
// ToggleReaction - add the reaction if missing, remove it if present
// -----------------------------------------------------------------------------

func (m *messageRepository) ToggleReaction(ctx context.Context, id, reactionKey, userID string) (*model.Message, error) {
	ctx, cancel := m.ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	msg, err := m.GetMessage(ctx, id)
	if err != nil {
		return nil, err
	}

	field := "reactions." + reactionKey
	filter := db.NewFilter().ObjectID("_id", id).Build()

	var update bson.M
	if msg.HasReaction(reactionKey, userID) {
		update = bson.M{"$pull": bson.M{field: userID}}
	} else {
		update = bson.M{"$addToSet": bson.M{field: userID}}
	}

	if _, err := m.mongoRepo.UpdateRaw(ctx, filter, update); err != nil {
		return nil, fmt.Errorf("toggle reaction failed: %w", err)
	}

	updated, err := m.GetMessage(ctx, id)
	if err != nil {
		return nil, err
	}

	// Drop keys the $pull emptied so clients never see dangling reactions.
	if users, ok := updated.Reactions[reactionKey]; ok && len(users) == 0 {
		if _, err := m.mongoRepo.UpdateRaw(ctx, filter, bson.M{"$unset": bson.M{field: ""}}); err != nil {
			m.logger.Warn("failed to unset empty reaction key", zap.Error(err), zap.String("message_id", id))
		}
		delete(updated.Reactions, reactionKey)
	}
	return updated, nil
}

// -----------------------------------------------------------------------------
// SoftDeleteMessages - bulk soft delete, returns the ids actually flipped.
// A non-empty senderID restricts the batch to that author's messages.
// -----------------------------------------------------------------------------

func (m *messageRepository) SoftDeleteMessages(ctx context.Context, chatID string, ids []string, senderID string) ([]string, error) {
	if chatID == "" {
		return nil, ErrInvalidChatID
	}
	if len(ids) == 0 {
		return nil, nil
	}

	ctx, cancel := m.ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	builder := db.NewFilter().
		Eq("chat_id", chatID).
		Eq("is_deleted", false).
		ObjectIDs("_id", ids)
	if senderID != "" {
		builder.Eq("sender_id", senderID)
	}
	filter := builder.Build()

	targets, err := m.mongoRepo.FindAll(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("bulk delete lookup failed: %w", err)
	}
	if len(targets) == 0 {
		return nil, nil
	}

	deleted := make([]string, 0, len(targets))
	for _, t := range targets {
		deleted = append(deleted, t.ID.Hex())
	}

	delFilter := db.NewFilter().Eq("chat_id", chatID).ObjectIDs("_id", deleted).Build()
	if _, err := m.mongoRepo.UpdateManyRaw(ctx, delFilter, bson.M{"$set": bson.M{"is_deleted": true}}); err != nil {
		return nil, fmt.Errorf("bulk delete failed: %w", err)
	}

	m.logger.Info("messages soft-deleted",
		zap.String("chat_id", chatID),
		zap.Int("count", len(deleted)),
	)
	return deleted, nil
}

// -----------------------------------------------------------------------------
// MarkMessagesRead - returns the ids that were unread by readerID, after
// appending the reader to their read_by sets
// -----------------------------------------------------------------------------

func (m *messageRepository) MarkMessagesRead(ctx context.Context, chatID, readerID string) ([]string, error) {
	if chatID == "" {
		return nil, ErrInvalidChatID
	}

	ctx, cancel := m.ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	// Only messages from other senders count as unread.
	filter := db.NewFilter().
		Eq("chat_id", chatID).
		Eq("is_deleted", false).
		Ne("sender_id", readerID).
		Ne("read_by", readerID).
		Build()

	unread, err := m.mongoRepo.FindAll(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("mark read lookup failed: %w", err)
	}
	if len(unread) == 0 {
		return nil, nil
	}

	ids := make([]string, 0, len(unread))
	for _, msg := range unread {
		ids = append(ids, msg.ID.Hex())
	}

	updFilter := db.NewFilter().Eq("chat_id", chatID).ObjectIDs("_id", ids).Build()
	if _, err := m.mongoRepo.UpdateManyRaw(ctx, updFilter, bson.M{"$addToSet": bson.M{"read_by": readerID}}); err != nil {
		return nil, fmt.Errorf("mark read failed: %w", err)
	}

	m.logger.Debug("messages marked read",
		zap.String("chat_id", chatID),
		zap.String("reader_id", readerID),
		zap.Int("count", len(ids)),
	)
	return ids, nil
}

// -----------------------------------------------------------------------------
// ListMessagesByChat
// -----------------------------------------------------------------------------

func (m *messageRepository) ListMessagesByChat(ctx context.Context, chatID string, page int64) (*db.PaginatedResult[model.Message], error) {
	if chatID == "" {
		return nil, ErrInvalidChatID
	}

	ctx, cancel := m.ensureTimeout(ctx, defaultReadTimeout)
	defer cancel()

	filter := db.NewFilter().Eq("chat_id", chatID).Build()

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			if err := m.waitForRetry(ctx, attempt); err != nil {
				return nil, err
			}
			m.logger.Warn("retrying history query",
				zap.String("chat_id", chatID),
				zap.Int("attempt", attempt+1),
			)
		}

		result, err := m.mongoRepo.FindWithPagination(ctx, filter, db.PaginationParams{
			Page:     page,
			PageSize: historyPageSize,
			SortBy:   "_id",
			SortDesc: true,
		})
		if err == nil {
			return result, nil
		}

		lastErr = err
		if !m.isRetryableError(err) {
			break
		}
	}

	return nil, m.handleReadError(lastErr, chatID)
}

// -----------------------------------------------------------------------------
// Private Helper Methods
// -----------------------------------------------------------------------------

func (m *messageRepository) ensureTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if _, hadDeadline := ctx.Deadline(); hadDeadline {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

func (m *messageRepository) waitForRetry(ctx context.Context, attempt int) error {
	delay := time.Duration(1<<uint(attempt)) * baseRetryDelay
	if delay > maxRetryDelay {
		delay = maxRetryDelay
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return fmt.Errorf("retry wait cancelled: %w", ctx.Err())
	case <-timer.C:
		return nil
	}
}

func (m *messageRepository) isRetryableError(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return false
	}

	return mongo.IsTimeout(err) || mongo.IsNetworkError(err)
}

func (m *messageRepository) handleReadError(err error, chatID string) error {
	if errors.Is(err, context.DeadlineExceeded) {
		m.logger.Error("read timeout", zap.String("chat_id", chatID))
		return ErrOperationTimeout
	}

	if errors.Is(err, context.Canceled) {
		m.logger.Debug("read cancelled", zap.String("chat_id", chatID))
		return err
	}

	m.logger.Error("read failed", zap.Error(err), zap.String("chat_id", chatID))
	return fmt.Errorf("list messages failed: %w", err)
}
