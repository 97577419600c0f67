package approuters

import (
	"github.com/pomsfgend/Messenger-sub000/internal/configuration"

	"github.com/gin-gonic/gin"
)

func ChatRouters(router *gin.Engine, container *configuration.Container) {
	chats := router.Group("/chats")
	{
		chats.GET("/:chatId/messages", container.ChatHandler.GetChatHistory)
	}

	users := router.Group("/users")
	{
		users.GET("/:userId", container.ChatHandler.GetUserProfile)
	}
}
