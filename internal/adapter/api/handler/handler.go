package handler

// Handlers groups every HTTP handler the router mounts.
type Handlers struct {
	Chat      *ChatHandler
	WebSocket *WebSocketHandler
	Device    *DeviceHandler
	Alert     *AlertHandler
	Health    *HealthHandler
}
