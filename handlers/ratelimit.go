package handlers

import (
	"sync"
	"time"
)

// MessageLimiter enforces the per-user send-message cooldown and the
// maximum message length ahead of the battle engine. Neither rejection
// touches battle state.
type MessageLimiter struct {
	mu       sync.Mutex
	lastSent map[string]time.Time
	cooldown time.Duration
	maxLen   int
}

func NewMessageLimiter(cooldown time.Duration, maxLen int) *MessageLimiter {
	return &MessageLimiter{
		lastSent: make(map[string]time.Time),
		cooldown: cooldown,
		maxLen:   maxLen,
	}
}

// Check validates one outgoing message. An over-length message does not
// consume the cooldown.
func (l *MessageLimiter) Check(userID, text string) (ok bool, reason string, remaining time.Duration) {
	if len(text) > l.maxLen {
		return false, "message_too_long", 0
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	if last, seen := l.lastSent[userID]; seen {
		if elapsed := now.Sub(last); elapsed < l.cooldown {
			return false, "cooldown", l.cooldown - elapsed
		}
	}
	l.lastSent[userID] = now
	return true, "", 0
}

// Forget drops a user's cooldown state (called when they disconnect).
func (l *MessageLimiter) Forget(userID string) {
	l.mu.Lock()
	delete(l.lastSent, userID)
	l.mu.Unlock()
}
