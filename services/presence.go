package services

import (
	"log"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
)

const (
	OfflineReasonManual     = "manual"
	OfflineReasonDisconnect = "disconnect"
	OfflineReasonHeartbeat  = "heartbeat_timeout"
)

// OnlineEntry binds a user to their live session.
type OnlineEntry struct {
	UserID        string
	SessionID     string
	Profile       Profile
	LastHeartbeat time.Time
}

// OfflineHook is one step of the offline cascade (leave queue, forfeit
// battle, clear swipe requests). Hooks run isolated: a panic in one step
// never blocks the others.
type OfflineHook func(userID, reason string)

// PresenceRegistry tracks which users are online and drives the offline
// cascade when they leave, disconnect, or stop heartbeating.
type PresenceRegistry struct {
	mu     sync.Mutex
	online map[string]*OnlineEntry

	hooks            []OfflineHook
	notifier         Notifier
	heartbeatTimeout time.Duration
	sched            gocron.Scheduler
}

func NewPresenceRegistry(notifier Notifier, heartbeatTimeout time.Duration) *PresenceRegistry {
	return &PresenceRegistry{
		online:           make(map[string]*OnlineEntry),
		notifier:         notifier,
		heartbeatTimeout: heartbeatTimeout,
	}
}

// OnOffline registers a cascade step. Must be called during wiring,
// before any traffic.
func (r *PresenceRegistry) OnOffline(hook OfflineHook) {
	r.hooks = append(r.hooks, hook)
}

// GoOnline binds or rebinds a user. Idempotent; a reconnect overwrites
// the previous session binding.
func (r *PresenceRegistry) GoOnline(userID, sessionID string, profile Profile) {
	r.mu.Lock()
	r.online[userID] = &OnlineEntry{
		UserID:        userID,
		SessionID:     sessionID,
		Profile:       profile,
		LastHeartbeat: time.Now(),
	}
	r.mu.Unlock()

	log.Printf("[PRESENCE] %s online (session %s)", userID, sessionID)
	r.notifier.Broadcast(EventUserOnline, map[string]any{"user_id": userID, "display_name": profile.DisplayName}, userID)
}

// Heartbeat refreshes liveness. No-op for unknown users.
func (r *PresenceRegistry) Heartbeat(userID string) {
	r.mu.Lock()
	if entry, ok := r.online[userID]; ok {
		entry.LastHeartbeat = time.Now()
	}
	r.mu.Unlock()
}

// GoOffline removes the binding and runs the offline cascade. No-op if
// the user was not online.
func (r *PresenceRegistry) GoOffline(userID, reason string) {
	r.goOffline(userID, "", reason)
}

// GoOfflineSession runs the cascade only while the binding still belongs
// to the given session. A stale socket's deferred cleanup firing after a
// fast reconnect finds its binding replaced and does nothing.
func (r *PresenceRegistry) GoOfflineSession(userID, sessionID, reason string) {
	r.goOffline(userID, sessionID, reason)
}

func (r *PresenceRegistry) goOffline(userID, sessionID, reason string) {
	r.mu.Lock()
	entry, ok := r.online[userID]
	if ok && sessionID != "" && entry.SessionID != sessionID {
		r.mu.Unlock()
		log.Printf("[PRESENCE] stale offline for %s ignored (session %s superseded)", userID, sessionID)
		return
	}
	if ok {
		delete(r.online, userID)
	}
	r.mu.Unlock()

	if !ok {
		return
	}

	log.Printf("[PRESENCE] %s offline (%s)", userID, reason)
	for _, hook := range r.hooks {
		r.runHook(hook, userID, reason)
	}
	r.notifier.Broadcast(EventUserOffline, map[string]any{"user_id": userID, "reason": reason}, userID)
}

func (r *PresenceRegistry) runHook(hook OfflineHook, userID, reason string) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Printf("[PRESENCE] offline cascade step panicked for %s: %v", userID, rec)
		}
	}()
	hook(userID, reason)
}

// IsOnline reports whether a user has a live session bound.
func (r *PresenceRegistry) IsOnline(userID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.online[userID]
	return ok
}

// SessionOf resolves the current session binding.
func (r *PresenceRegistry) SessionOf(userID string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.online[userID]
	if !ok {
		return "", false
	}
	return entry.SessionID, true
}

// ProfileOf returns the cached profile of an online user.
func (r *PresenceRegistry) ProfileOf(userID string) (Profile, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.online[userID]
	if !ok {
		return Profile{}, false
	}
	return entry.Profile, true
}

// ListOnline returns a point-in-time snapshot of online profiles,
// excluding the given user.
func (r *PresenceRegistry) ListOnline(excluding string) []Profile {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Profile, 0, len(r.online))
	for id, entry := range r.online {
		if id == excluding {
			continue
		}
		out = append(out, entry.Profile)
	}
	return out
}

// CleanupStale force-removes every binding whose heartbeat age exceeds
// the timeout, via the same cascade as a manual go-offline.
func (r *PresenceRegistry) CleanupStale() {
	cutoff := time.Now().Add(-r.heartbeatTimeout)

	r.mu.Lock()
	var stale []string
	for id, entry := range r.online {
		if entry.LastHeartbeat.Before(cutoff) {
			stale = append(stale, id)
		}
	}
	r.mu.Unlock()

	for _, id := range stale {
		log.Printf("[PRESENCE] heartbeat timeout for %s", id)
		r.GoOffline(id, OfflineReasonHeartbeat)
	}
}

// StartSweeper schedules the periodic stale-presence sweep.
func (r *PresenceRegistry) StartSweeper(interval time.Duration) {
	sched, _ := gocron.NewScheduler()
	sched.Start()

	_, _ = sched.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(r.CleanupStale),
	)
	r.sched = sched
}

// StopSweeper stops the sweep scheduler.
func (r *PresenceRegistry) StopSweeper() {
	if r.sched != nil {
		_ = r.sched.Shutdown()
	}
}
