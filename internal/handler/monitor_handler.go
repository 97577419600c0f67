package handler

import (
	"net/http"

	"github.com/pomsfgend/Messenger-sub000/internal/hub"

	"github.com/gin-gonic/gin"
)

// MonitorHandler serves hub statistics
type MonitorHandler struct {
	monitor *hub.MonitorService
}

func NewMonitorHandler(monitor *hub.MonitorService) *MonitorHandler {
	return &MonitorHandler{monitor: monitor}
}

func (h *MonitorHandler) GetStats(c *gin.Context) {
	c.JSON(http.StatusOK, h.monitor.GetStats())
}
