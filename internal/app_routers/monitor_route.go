package approuters

import (
	"github.com/pomsfgend/Messenger-sub000/internal/configuration"

	"github.com/gin-gonic/gin"
)

func MonitorRouters(router *gin.Engine, container *configuration.Container) {
	router.GET("/monitor", container.MonitorHandler.GetStats)
}
