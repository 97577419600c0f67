package model

// -----------------------------------------------------------------
// Monitor API Response Models
// -----------------------------------------------------------------

// MonitorResponse is the main response for the monitor API
type MonitorResponse struct {
	Status      string          `json:"status"` // "healthy" or "idle"
	Connections ConnectionStats `json:"connections"`
	Rooms       RoomStats       `json:"rooms"`
	Calls       CallStats       `json:"calls"`
}

// ConnectionStats holds connection-related statistics
type ConnectionStats struct {
	TotalConnections int `json:"totalConnections"` // open sockets
	TotalUsers       int `json:"totalUsers"`       // distinct online users
	TotalInCall      int `json:"totalInCall"`
	TotalRinging     int `json:"totalRinging"`
}

// RoomStats holds room membership statistics
type RoomStats struct {
	TotalRooms  int        `json:"totalRooms"`
	RoomDetails []RoomInfo `json:"roomDetails"`
}

// RoomInfo describes one room's current membership
type RoomInfo struct {
	ChatID      string `json:"chatId"`
	Connections int    `json:"connections"`
}

// CallStats holds active call-session statistics
type CallStats struct {
	TotalActiveCalls int `json:"totalActiveCalls"`
	RegisteredPeers  int `json:"registeredPeers"` // live call-registry entries
}
