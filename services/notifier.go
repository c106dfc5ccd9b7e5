package services

// Outbound event names pushed to client sessions.
const (
	EventUserOnline            = "user-online"
	EventUserOffline           = "user-offline"
	EventWaiting               = "waiting"
	EventBattleStart           = "battle-start"
	EventOnlineUsers           = "online-users"
	EventBattleRequest         = "battle-request"
	EventBattleRequestDeclined = "battle-request-declined"
	EventBattleRequestTimeout  = "battle-request-timeout"
	EventBattleMessage         = "battle-message"
	EventBattleEnd             = "battle-end"
	EventRateLimited           = "rate-limited"
	EventRejected              = "rejected"
)

// Notifier is the session-notification capability injected into every
// service that needs to reach a connected client. The WebSocket hub in
// handlers implements it; pushes to users without a live session are
// silently dropped.
type Notifier interface {
	Push(userID string, event string, payload any)
	Broadcast(event string, payload any, excludeUserID string)
}
