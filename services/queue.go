package services

import (
	"log"
	"sync"
	"time"
)

// QueueEntry is one waiting user. The bot-fallback timer is owned by the
// entry and must be canceled on every exit path except its own firing.
type QueueEntry struct {
	UserID   string
	Profile  Profile
	JoinedAt time.Time
	fallback *time.Timer
}

// MatchQueue pairs waiting users strictly FIFO, no skill weighting, with
// a per-entry bot fallback when no human shows up in time.
type MatchQueue struct {
	mu     sync.Mutex
	order  []*QueueEntry
	queued map[string]*QueueEntry

	battles       *BattleEngine
	personas      *PersonaDeck
	notifier      Notifier
	fallbackAfter time.Duration
}

func NewMatchQueue(battles *BattleEngine, personas *PersonaDeck, notifier Notifier, fallbackAfter time.Duration) *MatchQueue {
	return &MatchQueue{
		queued:        make(map[string]*QueueEntry),
		battles:       battles,
		personas:      personas,
		notifier:      notifier,
		fallbackAfter: fallbackAfter,
	}
}

// Join appends the user and tries an immediate match. No-op if already
// queued.
func (q *MatchQueue) Join(userID string, profile Profile) {
	q.mu.Lock()
	if _, ok := q.queued[userID]; ok {
		q.mu.Unlock()
		return
	}

	entry := &QueueEntry{
		UserID:   userID,
		Profile:  profile,
		JoinedAt: time.Now(),
	}
	entry.fallback = time.AfterFunc(q.fallbackAfter, func() {
		q.fireBotFallback(userID)
	})
	q.order = append(q.order, entry)
	q.queued[userID] = entry
	log.Printf("[QUEUE] %s joined (depth %d)", userID, len(q.order))

	if len(q.order) >= 2 {
		// FIFO: dequeue the two oldest and cancel both fallback timers.
		first, second := q.order[0], q.order[1]
		q.order = q.order[2:]
		delete(q.queued, first.UserID)
		delete(q.queued, second.UserID)
		first.fallback.Stop()
		second.fallback.Stop()
		q.mu.Unlock()

		q.startBattle(first.Profile, second.Profile)
		return
	}
	q.mu.Unlock()

	q.notifier.Push(userID, EventWaiting, map[string]any{"queued_at": entry.JoinedAt})
}

// Leave removes the entry and cancels its fallback timer. Safe if absent.
func (q *MatchQueue) Leave(userID string) {
	q.mu.Lock()
	entry, ok := q.queued[userID]
	if !ok {
		q.mu.Unlock()
		return
	}
	entry.fallback.Stop()
	delete(q.queued, userID)
	q.removeFromOrder(userID)
	q.mu.Unlock()

	log.Printf("[QUEUE] %s left", userID)
}

// Depth reports the current queue length.
func (q *MatchQueue) Depth() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.order)
}

// fireBotFallback is the timer path: no human arrived in time, so the
// user fights a synthetic persona instead.
func (q *MatchQueue) fireBotFallback(userID string) {
	q.mu.Lock()
	entry, ok := q.queued[userID]
	if !ok {
		// Matched or left between firing and lock acquisition.
		q.mu.Unlock()
		return
	}
	delete(q.queued, userID)
	q.removeFromOrder(userID)
	q.mu.Unlock()

	persona := q.personas.Random()
	log.Printf("[QUEUE] bot fallback for %s -> %s", userID, persona.ID)
	q.startBattle(entry.Profile, persona)
}

func (q *MatchQueue) startBattle(p1, p2 Profile) {
	if _, err := q.battles.CreateBattle(ParticipantFrom(p1), ParticipantFrom(p2), RandomTopic()); err != nil {
		log.Printf("[QUEUE] failed to start battle %s vs %s: %v", p1.ID, p2.ID, err)
		// One of the pair may have entered a battle elsewhere between
		// dequeue and creation; re-queue whoever is not fighting so the
		// innocent partner is not stranded.
		for _, p := range []Profile{p1, p2} {
			if p.Bot {
				continue
			}
			if _, fighting := q.battles.ActiveBattleOf(p.ID); !fighting {
				q.Join(p.ID, p)
			}
		}
	}
}

// removeFromOrder must be called with the lock held.
func (q *MatchQueue) removeFromOrder(userID string) {
	for i, e := range q.order {
		if e.UserID == userID {
			q.order = append(q.order[:i], q.order[i+1:]...)
			return
		}
	}
}
