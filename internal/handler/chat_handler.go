package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/pomsfgend/Messenger-sub000/internal/repo"
	"github.com/pomsfgend/Messenger-sub000/internal/service"

	"github.com/gin-gonic/gin"
)

type ChatHandler interface {
	GetChatHistory(c *gin.Context)
	GetUserProfile(c *gin.Context)
}

type chatHandler struct {
	service service.ChatService
}

func NewChatHandler(service service.ChatService) ChatHandler {
	return &chatHandler{
		service: service,
	}
}

func (h *chatHandler) GetChatHistory(c *gin.Context) {
	chatID := c.Param("chatId")
	page := c.DefaultQuery("page", "1")
	pageNumber, err := strconv.ParseInt(page, 10, 64)
	if err != nil || pageNumber < 1 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "invalid page number",
		})
		return
	}

	result, err := h.service.GetChatHistory(c.Request.Context(), chatID, pageNumber)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "failed to get messages",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"messages":   result.Data,
		"page":       result.Page,
		"totalPages": result.TotalPages,
	})
}

func (h *chatHandler) GetUserProfile(c *gin.Context) {
	userID := c.Param("userId")

	profile, err := h.service.GetUserProfile(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, repo.ErrUserNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get user"})
		return
	}

	c.JSON(http.StatusOK, profile)
}
