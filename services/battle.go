package services

import (
	"errors"
	"log"
	"math"
	"sync"
	"time"

	"debate-arena-system/models"

	"github.com/google/uuid"
)

const InitialHP = 100

// How many recent messages are handed to the judge as context.
const scoreContextSize = 4

// Strike classifications assigned to a scored message.
const (
	StrikeGood    = "good"
	StrikeToxic   = "toxic"
	StrikeNeutral = "neutral"
)

// Terminal battle reasons.
const (
	EndReasonTimeout  = "timeout"
	EndReasonKnockout = "knockout"
	EndReasonForfeit  = "forfeit"
)

var (
	ErrBattleNotFound  = errors.New("battle_not_found")
	ErrNotParticipant  = errors.New("not_participant")
	ErrAlreadyInBattle = errors.New("already_in_battle")
)

// Participant identifies one side of a battle.
type Participant struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Bot  bool   `json:"is_bot"`
}

// ParticipantFrom builds a Participant out of a profile.
func ParticipantFrom(p Profile) Participant {
	return Participant{ID: p.ID, Name: p.DisplayName, Bot: p.Bot}
}

// Analysis is the judge verdict attached to a message.
type Analysis struct {
	Wit        int    `json:"wit"`
	Relevance  int    `json:"relevance"`
	Toxicity   int    `json:"toxicity"`
	Damage     int    `json:"damage"`
	StrikeType string `json:"strike_type"`
}

// BattleMessage is one scored exchange entry. Immutable once appended.
type BattleMessage struct {
	ID        string    `json:"id"`
	SenderID  string    `json:"sender_id"`
	Text      string    `json:"text"`
	Analysis  Analysis  `json:"analysis"`
	Timestamp time.Time `json:"timestamp"`
}

type playerState struct {
	Participant
	HP       int
	Messages int
}

// Battle is one active timed 1v1 exchange. Owned exclusively by the
// engine for its lifetime; the duration timer handle never leaves it.
type Battle struct {
	ID        string
	Topic     string
	StartedAt time.Time
	Duration  time.Duration

	players [2]*playerState
	log     []BattleMessage
	timer   *time.Timer
}

func (b *Battle) player(userID string) *playerState {
	for _, p := range b.players {
		if p.ID == userID {
			return p
		}
	}
	return nil
}

func (b *Battle) opponentOf(userID string) *playerState {
	for _, p := range b.players {
		if p.ID != userID {
			return p
		}
	}
	return nil
}

// PlayerSnapshot is the client-facing view of one side.
type PlayerSnapshot struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Bot      bool   `json:"is_bot"`
	HP       int    `json:"hp"`
	Messages int    `json:"messages"`
}

// BattleSnapshot is the client-facing view of a battle.
type BattleSnapshot struct {
	ID          string           `json:"id"`
	Topic       string           `json:"topic"`
	TopicTitle  string           `json:"topic_title"`
	StartedAt   time.Time        `json:"started_at"`
	DurationSec int              `json:"duration_sec"`
	Players     []PlayerSnapshot `json:"players"`
}

// BattleResult is the write-once terminal outcome.
type BattleResult struct {
	BattleID    string           `json:"battle_id"`
	Topic       string           `json:"topic"`
	WinnerID    string           `json:"winner_id"` // empty = draw
	Reason      string           `json:"reason"`
	DurationSec int              `json:"duration_sec"`
	Players     []PlayerSnapshot `json:"players"`
}

// RecordStore is the persistence handoff for finished battles.
// Appends are fire-and-forget: failures are logged, never retried,
// never surfaced to clients.
type RecordStore interface {
	AppendBattleRecord(rec *models.BattleRecord) error
}

// TranscriptSink receives the full message log of a finished battle for
// archival. Must never block the caller.
type TranscriptSink interface {
	ArchiveBattle(battleID, topic string, startedAt time.Time, messages []BattleMessage)
}

// BattleEngine owns the battle life cycle: creation, damage resolution,
// timers, forfeits, and the persistence handoff.
type BattleEngine struct {
	mu      sync.Mutex
	battles map[string]*Battle
	byUser  map[string]string // userID -> battleID, humans only

	scorer   Scorer
	records  RecordStore
	sink     TranscriptSink // optional
	notifier Notifier
	duration time.Duration
}

func NewBattleEngine(scorer Scorer, records RecordStore, sink TranscriptSink, notifier Notifier, duration time.Duration) *BattleEngine {
	return &BattleEngine{
		battles:  make(map[string]*Battle),
		byUser:   make(map[string]string),
		scorer:   scorer,
		records:  records,
		sink:     sink,
		notifier: notifier,
		duration: duration,
	}
}

// CreateBattle registers a new battle, starts its duration timer, and
// delivers battle-start to both human participants. A user can be in at
// most one active battle; personas are exempt from that bound.
func (e *BattleEngine) CreateBattle(p1, p2 Participant, topic string) (*BattleSnapshot, error) {
	b := &Battle{
		ID:        uuid.NewString(),
		Topic:     topic,
		StartedAt: time.Now(),
		Duration:  e.duration,
		players: [2]*playerState{
			{Participant: p1, HP: InitialHP},
			{Participant: p2, HP: InitialHP},
		},
	}

	e.mu.Lock()
	for _, p := range b.players {
		if p.Bot {
			continue
		}
		if existing, ok := e.byUser[p.ID]; ok {
			e.mu.Unlock()
			log.Printf("[BATTLE] refused battle for %s: already in %s", p.ID, existing)
			return nil, ErrAlreadyInBattle
		}
	}
	e.battles[b.ID] = b
	for _, p := range b.players {
		if !p.Bot {
			e.byUser[p.ID] = b.ID
		}
	}
	b.timer = time.AfterFunc(e.duration, func() {
		e.EndBattle(b.ID, EndReasonTimeout, "")
	})
	snap := snapshotLocked(b)
	e.mu.Unlock()

	log.Printf("[BATTLE] %s started: %s vs %s, topic %q", b.ID, p1.ID, p2.ID, topic)
	for _, p := range b.players {
		if !p.Bot {
			e.notifier.Push(p.ID, EventBattleStart, snap)
		}
	}
	return snap, nil
}

// SendMessage scores a message and resolves damage.
//
// The judge call happens outside the engine lock, so the battle may end
// (timeout, forfeit) while scoring is in flight; the engine re-validates
// after the call and treats a vanished battle as a benign no-op.
func (e *BattleEngine) SendMessage(battleID, senderID, text string) error {
	e.mu.Lock()
	b, ok := e.battles[battleID]
	if !ok {
		e.mu.Unlock()
		return ErrBattleNotFound
	}
	if b.player(senderID) == nil {
		e.mu.Unlock()
		return ErrNotParticipant
	}
	topic := b.Topic
	context := recentContextLocked(b)
	e.mu.Unlock()

	scores, err := e.scorer.Analyze(text, topic, context)
	if err != nil {
		// Neutral default keeps the battle moving when the judge is down.
		log.Printf("[BATTLE] judge failed for %s, using neutral scores: %v", battleID, err)
		scores = Scores{}
	}

	e.mu.Lock()
	b, ok = e.battles[battleID]
	if !ok {
		// Battle ended while the judge call was outstanding.
		e.mu.Unlock()
		log.Printf("[BATTLE] %s ended mid-score, dropping message from %s", battleID, senderID)
		return nil
	}
	sender := b.player(senderID)
	opponent := b.opponentOf(senderID)
	if sender == nil || opponent == nil {
		e.mu.Unlock()
		return ErrNotParticipant
	}

	analysis := resolveDamage(scores)
	switch analysis.StrikeType {
	case StrikeToxic:
		sender.HP = clampHP(sender.HP - analysis.Damage)
	case StrikeGood:
		opponent.HP = clampHP(opponent.HP - analysis.Damage)
	}
	sender.Messages++

	msg := BattleMessage{
		ID:        uuid.NewString(),
		SenderID:  senderID,
		Text:      text,
		Analysis:  analysis,
		Timestamp: time.Now(),
	}
	b.log = append(b.log, msg)

	// Knockout check for both sides before anything is delivered.
	var koWinner string
	if sender.HP == 0 {
		koWinner = opponent.ID
	} else if opponent.HP == 0 {
		koWinner = sender.ID
	}

	if koWinner != "" {
		result, humans := e.endLocked(b, EndReasonKnockout, koWinner)
		e.mu.Unlock()
		e.finish(b, result, humans)
		return nil
	}

	snap := snapshotLocked(b)
	e.mu.Unlock()

	payload := map[string]any{
		"battle_id": battleID,
		"message":   msg,
		"players":   snap.Players,
	}
	for _, p := range snap.Players {
		if !p.Bot {
			e.notifier.Push(p.ID, EventBattleMessage, payload)
		}
	}
	return nil
}

// HandleDisconnect forfeits the (at most one) active battle containing
// the user, with the remaining participant as winner.
func (e *BattleEngine) HandleDisconnect(userID string) {
	e.mu.Lock()
	battleID, ok := e.byUser[userID]
	if !ok {
		e.mu.Unlock()
		return
	}
	b := e.battles[battleID]
	winner := ""
	if opp := b.opponentOf(userID); opp != nil {
		winner = opp.ID
	}
	result, humans := e.endLocked(b, EndReasonForfeit, winner)
	e.mu.Unlock()

	log.Printf("[BATTLE] %s forfeited by %s", battleID, userID)
	e.finish(b, result, humans)
}

// EndBattle terminates a battle. Safe to call from the duration timer
// and from explicit paths; a battle already gone is a no-op, which is
// what makes the timeout/knockout double-fire race harmless.
func (e *BattleEngine) EndBattle(battleID, reason, explicitWinner string) {
	e.mu.Lock()
	b, ok := e.battles[battleID]
	if !ok {
		e.mu.Unlock()
		return
	}
	result, humans := e.endLocked(b, reason, explicitWinner)
	e.mu.Unlock()

	e.finish(b, result, humans)
}

// endLocked performs the terminal transition: timer cancellation and
// removal from the active set happen atomically under the engine lock.
func (e *BattleEngine) endLocked(b *Battle, reason, explicitWinner string) (*BattleResult, []Participant) {
	b.timer.Stop()
	delete(e.battles, b.ID)

	var humans []Participant
	for _, p := range b.players {
		if !p.Bot {
			delete(e.byUser, p.ID)
			humans = append(humans, p.Participant)
		}
	}

	winner := explicitWinner
	if winner == "" {
		// Timeout path: higher HP wins, equal is a draw.
		if b.players[0].HP > b.players[1].HP {
			winner = b.players[0].ID
		} else if b.players[1].HP > b.players[0].HP {
			winner = b.players[1].ID
		}
	}

	snap := snapshotLocked(b)
	return &BattleResult{
		BattleID:    b.ID,
		Topic:       b.Topic,
		WinnerID:    winner,
		Reason:      reason,
		DurationSec: int(time.Since(b.StartedAt).Seconds()),
		Players:     snap.Players,
	}, humans
}

// finish delivers battle-end and hands the outcome to persistence.
// Persistence is a detached task: the delivered in-memory result is
// authoritative and a store failure can never reopen the battle.
func (e *BattleEngine) finish(b *Battle, result *BattleResult, humans []Participant) {
	log.Printf("[BATTLE] %s ended: reason=%s winner=%q", result.BattleID, result.Reason, result.WinnerID)
	for _, p := range humans {
		e.notifier.Push(p.ID, EventBattleEnd, result)
	}

	messages := b.log
	go func() {
		for _, p := range humans {
			rec := recordFor(p, result)
			if err := e.records.AppendBattleRecord(rec); err != nil {
				log.Printf("[BATTLE] failed to persist record for %s (battle %s): %v", p.ID, result.BattleID, err)
			}
		}
		if e.sink != nil {
			e.sink.ArchiveBattle(result.BattleID, result.Topic, b.StartedAt, messages)
		}
	}()
}

func recordFor(p Participant, result *BattleResult) *models.BattleRecord {
	outcome := "draw"
	if result.WinnerID == p.ID {
		outcome = "win"
	} else if result.WinnerID != "" {
		outcome = "loss"
	}

	rec := &models.BattleRecord{
		ID:             uuid.NewString(),
		BattleID:       result.BattleID,
		ExternalUserID: p.ID,
		Topic:          result.Topic,
		Result:         outcome,
		Reason:         result.Reason,
		DurationSec:    result.DurationSec,
	}
	for _, ps := range result.Players {
		if ps.ID == p.ID {
			rec.FinalHP = ps.HP
			rec.MessageCount = ps.Messages
		} else {
			rec.OpponentID = ps.ID
			rec.OpponentName = ps.Name
			rec.OpponentBot = ps.Bot
			rec.OpponentHP = ps.HP
		}
	}
	return rec
}

// ActiveBattleOf returns the battle ID a user is currently fighting in.
func (e *BattleEngine) ActiveBattleOf(userID string) (string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	id, ok := e.byUser[userID]
	return id, ok
}

// Stats reports live engine counters.
func (e *BattleEngine) Stats() map[string]any {
	e.mu.Lock()
	defer e.mu.Unlock()
	return map[string]any{
		"active_battles": len(e.battles),
		"users_fighting": len(e.byUser),
	}
}

// resolveDamage applies the damage policy, in order: toxic self-damage,
// then good opponent damage, else neutral.
func resolveDamage(s Scores) Analysis {
	a := Analysis{
		Wit:        s.Wit,
		Relevance:  s.Relevance,
		Toxicity:   s.Toxicity,
		StrikeType: StrikeNeutral,
	}
	switch {
	case s.Toxicity > 6:
		a.StrikeType = StrikeToxic
		a.Damage = s.Toxicity * 2
	case s.Wit >= 5 && s.Relevance >= 5:
		a.StrikeType = StrikeGood
		a.Damage = int(math.Round(float64(s.Wit+s.Relevance) * 1.5))
	}
	return a
}

func clampHP(hp int) int {
	if hp < 0 {
		return 0
	}
	if hp > InitialHP {
		return InitialHP
	}
	return hp
}

func snapshotLocked(b *Battle) *BattleSnapshot {
	snap := &BattleSnapshot{
		ID:          b.ID,
		Topic:       b.Topic,
		TopicTitle:  TopicTitle(b.Topic),
		StartedAt:   b.StartedAt,
		DurationSec: int(b.Duration.Seconds()),
	}
	for _, p := range b.players {
		snap.Players = append(snap.Players, PlayerSnapshot{
			ID:       p.ID,
			Name:     p.Name,
			Bot:      p.Bot,
			HP:       p.HP,
			Messages: p.Messages,
		})
	}
	return snap
}

func recentContextLocked(b *Battle) []string {
	start := len(b.log) - scoreContextSize
	if start < 0 {
		start = 0
	}
	out := make([]string, 0, scoreContextSize)
	for _, m := range b.log[start:] {
		out = append(out, m.Text)
	}
	return out
}
