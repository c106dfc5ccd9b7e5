package services

import (
	"sync"

	"debate-arena-system/models"
)

type capturedEvent struct {
	UserID  string // empty for broadcasts
	Event   string
	Payload any
}

type fakeNotifier struct {
	mu     sync.Mutex
	events []capturedEvent
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{}
}

func (n *fakeNotifier) Push(userID string, event string, payload any) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, capturedEvent{UserID: userID, Event: event, Payload: payload})
}

func (n *fakeNotifier) Broadcast(event string, payload any, excludeUserID string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, capturedEvent{Event: event, Payload: payload})
}

func (n *fakeNotifier) countOf(userID, event string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	count := 0
	for _, e := range n.events {
		if e.UserID == userID && e.Event == event {
			count++
		}
	}
	return count
}

func (n *fakeNotifier) lastOf(userID, event string) (capturedEvent, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for i := len(n.events) - 1; i >= 0; i-- {
		if n.events[i].UserID == userID && n.events[i].Event == event {
			return n.events[i], true
		}
	}
	return capturedEvent{}, false
}

func (n *fakeNotifier) broadcastCount(event string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	count := 0
	for _, e := range n.events {
		if e.UserID == "" && e.Event == event {
			count++
		}
	}
	return count
}

type fakeScorer struct {
	mu      sync.Mutex
	scores  Scores
	err     error
	entered chan struct{} // when set, closed once on first Analyze entry
	block   chan struct{} // when set, Analyze waits for it to close
}

func (s *fakeScorer) Analyze(text, topic string, context []string) (Scores, error) {
	s.mu.Lock()
	scores, err, block := s.scores, s.err, s.block
	if s.entered != nil {
		close(s.entered)
		s.entered = nil
	}
	s.mu.Unlock()
	if block != nil {
		<-block
	}
	return scores, err
}

func (s *fakeScorer) set(scores Scores) {
	s.mu.Lock()
	s.scores = scores
	s.mu.Unlock()
}

type fakeRecordStore struct {
	mu   sync.Mutex
	recs []*models.BattleRecord
}

func newFakeRecordStore() *fakeRecordStore {
	return &fakeRecordStore{}
}

func (s *fakeRecordStore) AppendBattleRecord(rec *models.BattleRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recs = append(s.recs, rec)
	return nil
}

func (s *fakeRecordStore) forUser(userID string) []*models.BattleRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.BattleRecord
	for _, r := range s.recs {
		if r.ExternalUserID == userID {
			out = append(out, r)
		}
	}
	return out
}

func (s *fakeRecordStore) total() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.recs)
}
