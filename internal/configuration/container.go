package configuration

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/pomsfgend/Messenger-sub000/internal/db"
	"github.com/pomsfgend/Messenger-sub000/internal/handler"
	"github.com/pomsfgend/Messenger-sub000/internal/hub"
	"github.com/pomsfgend/Messenger-sub000/internal/model"
	"github.com/pomsfgend/Messenger-sub000/internal/repo"
	"github.com/pomsfgend/Messenger-sub000/internal/service"

	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

const defaultConfigPath = "config/config.json"

type Container struct {
	ChatHandler    handler.ChatHandler
	MonitorHandler *handler.MonitorHandler
	Hub            *hub.Hub
	Config         Config
	Logger         *zap.Logger

	// private - for cleanup
	mongoClient *mongo.Database
}

func BuildContainer() (*Container, error) {
	configPath := os.Getenv("VEIL_CONFIG")
	if configPath == "" {
		configPath = defaultConfigPath
	}

	config, err := LoadConfig(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	con, err := db.OpenConnection(config.ChatDatabase.Uri, config.ChatDatabase.Database)
	if err != nil {
		return nil, err
	}

	logger, _ := zap.NewProduction()

	messageStore := db.NewRepository[model.Message](con, config.ChatDatabase.MessagesCollection)
	userStore := db.NewRepository[model.User](con, config.ChatDatabase.UsersCollection)
	sessionStore := db.NewRepository[model.Session](con, config.ChatDatabase.SessionsCollection)

	messageRepo := repo.NewMessageRepository(con, messageStore, logger)
	userRepo := repo.NewUserRepository(con, userStore, sessionStore)

	chatService := service.NewChatService(messageRepo, userRepo)
	chatHandler := handler.NewChatHandler(chatService)

	relayHub := hub.NewHub(messageRepo, userRepo)
	monitorHandler := handler.NewMonitorHandler(hub.NewMonitorService(relayHub))

	return &Container{
		ChatHandler:    chatHandler,
		MonitorHandler: monitorHandler,
		Hub:            relayHub,
		Config:         *config,
		Logger:         logger,
		mongoClient:    con,
	}, nil
}

// Close gracefully shuts down all connections
func (c *Container) Close() error {
	// Stop the hub first (closes all WebSocket connections)
	if c.Hub != nil {
		c.Hub.Stop()
	}

	if c.Logger != nil {
		_ = c.Logger.Sync()
	}

	if c.mongoClient != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := c.mongoClient.Client().Disconnect(ctx); err != nil {
			return fmt.Errorf("failed to close MongoDB connection: %w", err)
		}
	}

	return nil
}
