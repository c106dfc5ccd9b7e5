package services

import (
	"errors"
	"log"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	ErrRequestNotFound  = errors.New("request_not_found")
	ErrNotRequestTarget = errors.New("not_request_target")
)

// Swipe outcomes returned to the swiping user.
const (
	SwipeOutcomeMatched = "matched" // synthetic target, battle started
	SwipeOutcomeOffline = "offline" // target has no live session
	SwipeOutcomePending = "pending" // request created (or already pending)
)

// SwipeRequest is a pending battle invitation. Exactly one of
// accept/decline/expire/offline-cleanup terminates it; every terminal
// path removes it from the table before reacting.
type SwipeRequest struct {
	ID        string
	FromID    string
	FromName  string
	ToID      string
	Topic     string
	CreatedAt time.Time
	ExpiresAt time.Time
	expiry    *time.Timer
}

// SwipeOutcome reports what a swipe-right produced.
type SwipeOutcome struct {
	Status       string `json:"status"`
	RequestID    string `json:"request_id,omitempty"`
	TTLRemaining int    `json:"ttl_remaining_sec,omitempty"`
}

// SwipeMatcher runs the discovery deck and the request/accept/decline/
// expire flow. A swiped (A,B) pair never re-enters either party's deck
// for the process lifetime.
type SwipeMatcher struct {
	mu       sync.Mutex
	requests map[string]*SwipeRequest
	swiped   map[string]bool // unordered pair key

	presence *PresenceRegistry
	battles  *BattleEngine
	personas *PersonaDeck
	notifier Notifier

	requestTTL time.Duration
	deckSize   int
}

func NewSwipeMatcher(presence *PresenceRegistry, battles *BattleEngine, personas *PersonaDeck, notifier Notifier, requestTTL time.Duration, deckSize int) *SwipeMatcher {
	return &SwipeMatcher{
		requests:   make(map[string]*SwipeRequest),
		swiped:     make(map[string]bool),
		presence:   presence,
		battles:    battles,
		personas:   personas,
		notifier:   notifier,
		requestTTL: requestTTL,
		deckSize:   deckSize,
	}
}

func pairKey(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return a + "|" + b
}

// ListCandidates builds the discovery deck: online humans first
// (shuffled), then synthetic personas (shuffled), excluding self and
// anyone already forming a swiped pair with the caller.
func (s *SwipeMatcher) ListCandidates(userID string) []Profile {
	humans := s.presence.ListOnline(userID)
	rand.Shuffle(len(humans), func(i, j int) {
		humans[i], humans[j] = humans[j], humans[i]
	})

	s.mu.Lock()
	deck := make([]Profile, 0, s.deckSize)
	for _, p := range humans {
		if s.swiped[pairKey(userID, p.ID)] {
			continue
		}
		deck = append(deck, p)
		if len(deck) == s.deckSize {
			break
		}
	}
	for _, p := range s.personas.Shuffled() {
		if len(deck) == s.deckSize {
			break
		}
		if s.swiped[pairKey(userID, p.ID)] {
			continue
		}
		deck = append(deck, p)
	}
	s.mu.Unlock()

	return deck
}

// SwipeRight marks the pair swiped (permanent) and either starts a
// battle (synthetic target), reports an offline target, or creates a
// pending request delivered to the target. A duplicate pending request
// from the same sender to the same target is returned idempotently with
// its remaining TTL.
func (s *SwipeMatcher) SwipeRight(from Profile, targetID string) SwipeOutcome {
	s.mu.Lock()
	s.swiped[pairKey(from.ID, targetID)] = true

	if persona, ok := s.personas.Get(targetID); ok {
		s.mu.Unlock()
		log.Printf("[SWIPE] %s matched persona %s", from.ID, targetID)
		if _, err := s.battles.CreateBattle(ParticipantFrom(from), ParticipantFrom(persona), RandomTopic()); err != nil {
			log.Printf("[SWIPE] persona battle failed for %s: %v", from.ID, err)
		}
		return SwipeOutcome{Status: SwipeOutcomeMatched}
	}

	if !s.presence.IsOnline(targetID) {
		s.mu.Unlock()
		return SwipeOutcome{Status: SwipeOutcomeOffline}
	}

	for _, req := range s.requests {
		if req.FromID == from.ID && req.ToID == targetID {
			ttl := int(time.Until(req.ExpiresAt).Seconds())
			s.mu.Unlock()
			return SwipeOutcome{Status: SwipeOutcomePending, RequestID: req.ID, TTLRemaining: ttl}
		}
	}

	req := &SwipeRequest{
		ID:        uuid.NewString(),
		FromID:    from.ID,
		FromName:  from.DisplayName,
		ToID:      targetID,
		Topic:     RandomTopic(),
		CreatedAt: time.Now(),
		ExpiresAt: time.Now().Add(s.requestTTL),
	}
	req.expiry = time.AfterFunc(s.requestTTL, func() {
		s.ExpireRequest(req.ID)
	})
	s.requests[req.ID] = req
	s.mu.Unlock()

	log.Printf("[SWIPE] request %s: %s -> %s", req.ID, from.ID, targetID)
	s.notifier.Push(targetID, EventBattleRequest, map[string]any{
		"request_id": req.ID,
		"from":       map[string]any{"id": from.ID, "display_name": from.DisplayName, "level": from.Level},
		"topic":      req.Topic,
	})
	return SwipeOutcome{Status: SwipeOutcomePending, RequestID: req.ID, TTLRemaining: int(s.requestTTL.Seconds())}
}

// SwipeLeft only marks the pair swiped; the target never hears about it.
func (s *SwipeMatcher) SwipeLeft(userID, targetID string) {
	s.mu.Lock()
	s.swiped[pairKey(userID, targetID)] = true
	s.mu.Unlock()
}

// AcceptBattle validates and consumes the request, then starts a battle,
// unless the requester went offline while the request was pending.
func (s *SwipeMatcher) AcceptBattle(requestID, acceptingUserID string) error {
	req, err := s.takeRequest(requestID, acceptingUserID)
	if err != nil {
		return err
	}

	requester, ok := s.presence.ProfileOf(req.FromID)
	if !ok {
		// Requester vanished between sending and acceptance.
		s.notifier.Push(acceptingUserID, EventBattleRequestTimeout, map[string]any{
			"request_id": req.ID,
			"reason":     "offline",
		})
		return nil
	}

	accepter, ok := s.presence.ProfileOf(acceptingUserID)
	if !ok {
		accepter = Profile{ID: acceptingUserID, DisplayName: acceptingUserID}
	}
	if _, err := s.battles.CreateBattle(ParticipantFrom(requester), ParticipantFrom(accepter), req.Topic); err != nil {
		log.Printf("[SWIPE] accepted battle failed (%s vs %s): %v", req.FromID, acceptingUserID, err)
	}
	return nil
}

// DeclineBattle validates and consumes the request, then notifies the
// original sender. A second decline with the same ID is a no-op.
func (s *SwipeMatcher) DeclineBattle(requestID, decliningUserID string) error {
	req, err := s.takeRequest(requestID, decliningUserID)
	if err != nil {
		return err
	}

	if s.presence.IsOnline(req.FromID) {
		s.notifier.Push(req.FromID, EventBattleRequestDeclined, map[string]any{
			"request_id": req.ID,
			"target_id":  req.ToID,
		})
	}
	return nil
}

// takeRequest removes the request from the table before anyone reacts to
// it, enforcing the exactly-one-terminal-path invariant.
func (s *SwipeMatcher) takeRequest(requestID, userID string) (*SwipeRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	req, ok := s.requests[requestID]
	if !ok {
		return nil, ErrRequestNotFound
	}
	if req.ToID != userID {
		return nil, ErrNotRequestTarget
	}
	req.expiry.Stop()
	delete(s.requests, requestID)
	return req, nil
}

// ExpireRequest is the timer path. The requester is told only if still
// online.
func (s *SwipeMatcher) ExpireRequest(requestID string) {
	s.mu.Lock()
	req, ok := s.requests[requestID]
	if !ok {
		s.mu.Unlock()
		return
	}
	delete(s.requests, requestID)
	s.mu.Unlock()

	log.Printf("[SWIPE] request %s expired", requestID)
	if s.presence.IsOnline(req.FromID) {
		s.notifier.Push(req.FromID, EventBattleRequestTimeout, map[string]any{
			"request_id": req.ID,
			"reason":     "timeout",
		})
	}
}

// HandleUserOffline clears every pending request involving the user.
// The counterpart is notified only when the offline user was the
// request's target; a requester silently dropping out just kills the
// request.
func (s *SwipeMatcher) HandleUserOffline(userID string) {
	s.mu.Lock()
	var cleared []*SwipeRequest
	for id, req := range s.requests {
		if req.FromID == userID || req.ToID == userID {
			req.expiry.Stop()
			delete(s.requests, id)
			cleared = append(cleared, req)
		}
	}
	s.mu.Unlock()

	for _, req := range cleared {
		if req.ToID == userID && s.presence.IsOnline(req.FromID) {
			s.notifier.Push(req.FromID, EventBattleRequestTimeout, map[string]any{
				"request_id": req.ID,
				"reason":     "offline",
			})
		}
	}
}

// PendingRequestCount reports how many requests are outstanding.
func (s *SwipeMatcher) PendingRequestCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}
