package hub

import (
	"github.com/pomsfgend/Messenger-sub000/internal/model"
)

// MonitorService gathers hub statistics for the monitor endpoint
type MonitorService struct {
	hub *Hub
}

// NewMonitorService creates a new monitor service
func NewMonitorService(hub *Hub) *MonitorService {
	return &MonitorService{hub: hub}
}

// GetStats gathers and returns all hub statistics
func (ms *MonitorService) GetStats() model.MonitorResponse {
	connectionStats := ms.getConnectionStats()
	roomStats := ms.getRoomStats()
	callStats := ms.getCallStats()

	status := "healthy"
	if connectionStats.TotalConnections == 0 {
		status = "idle"
	}

	return model.MonitorResponse{
		Status:      status,
		Connections: connectionStats,
		Rooms:       roomStats,
		Calls:       callStats,
	}
}

func (ms *MonitorService) getConnectionStats() model.ConnectionStats {
	ms.hub.onlineUsersMu.RLock()
	defer ms.hub.onlineUsersMu.RUnlock()

	stats := model.ConnectionStats{
		TotalUsers: len(ms.hub.onlineUsers),
	}

	for _, conns := range ms.hub.onlineUsers {
		stats.TotalConnections += len(conns)
		for _, client := range conns {
			switch client.CallState() {
			case CallStateConnected:
				stats.TotalInCall++
			case CallStateOutgoing, CallStateIncoming:
				stats.TotalRinging++
			}
		}
	}

	return stats
}

func (ms *MonitorService) getRoomStats() model.RoomStats {
	stats := model.RoomStats{
		RoomDetails: make([]model.RoomInfo, 0),
	}

	for _, bucket := range ms.hub.shards {
		bucket.RLock()
		for chatID, room := range bucket.rooms {
			stats.RoomDetails = append(stats.RoomDetails, model.RoomInfo{
				ChatID:      chatID,
				Connections: len(room),
			})
			stats.TotalRooms++
		}
		bucket.RUnlock()
	}

	return stats
}

func (ms *MonitorService) getCallStats() model.CallStats {
	return model.CallStats{
		TotalActiveCalls: ms.hub.callHandler.ActiveSessions(),
		RegisteredPeers:  ms.hub.callHandler.Registry().Count(),
	}
}
