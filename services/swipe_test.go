package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type swipeFixture struct {
	swipe    *SwipeMatcher
	presence *PresenceRegistry
	notifier *fakeNotifier
	store    *fakeRecordStore
}

func newSwipeFixture(t *testing.T, ttl time.Duration) *swipeFixture {
	t.Helper()
	notifier := newFakeNotifier()
	store := newFakeRecordStore()
	presence := NewPresenceRegistry(notifier, time.Minute)
	engine := NewBattleEngine(&fakeScorer{}, store, nil, notifier, time.Hour)
	swipe := NewSwipeMatcher(presence, engine, NewPersonaDeck(), notifier, ttl, 20)
	presence.OnOffline(func(userID, reason string) { swipe.HandleUserOffline(userID) })

	presence.GoOnline("alice", "s1", Profile{ID: "alice", DisplayName: "Alice", Level: 3})
	presence.GoOnline("bob", "s2", Profile{ID: "bob", DisplayName: "Bob", Level: 5})
	return &swipeFixture{swipe: swipe, presence: presence, notifier: notifier, store: store}
}

func deckIDs(deck []Profile) []string {
	ids := make([]string, 0, len(deck))
	for _, p := range deck {
		ids = append(ids, p.ID)
	}
	return ids
}

func TestSwipeRightDeliversRequestToTarget(t *testing.T) {
	f := newSwipeFixture(t, time.Minute)

	outcome := f.swipe.SwipeRight(Profile{ID: "alice", DisplayName: "Alice"}, "bob")
	require.Equal(t, SwipeOutcomePending, outcome.Status)
	require.NotEmpty(t, outcome.RequestID)

	ev, ok := f.notifier.lastOf("bob", EventBattleRequest)
	require.True(t, ok)
	payload := ev.Payload.(map[string]any)
	assert.Equal(t, outcome.RequestID, payload["request_id"])
	assert.NotEmpty(t, payload["topic"])
}

func TestSwipeRightDuplicateIsIdempotent(t *testing.T) {
	f := newSwipeFixture(t, time.Minute)

	first := f.swipe.SwipeRight(Profile{ID: "alice", DisplayName: "Alice"}, "bob")
	second := f.swipe.SwipeRight(Profile{ID: "alice", DisplayName: "Alice"}, "bob")

	assert.Equal(t, first.RequestID, second.RequestID, "same pending request returned")
	assert.LessOrEqual(t, second.TTLRemaining, first.TTLRemaining)
	assert.Equal(t, 1, f.swipe.PendingRequestCount())
	assert.Equal(t, 1, f.notifier.countOf("bob", EventBattleRequest), "target notified once")
}

func TestSwipeRightOfflineTarget(t *testing.T) {
	f := newSwipeFixture(t, time.Minute)

	outcome := f.swipe.SwipeRight(Profile{ID: "alice", DisplayName: "Alice"}, "carol")
	assert.Equal(t, SwipeOutcomeOffline, outcome.Status)
	assert.Zero(t, f.swipe.PendingRequestCount(), "no request created for an offline target")
}

func TestSwipedPairNeverReturnsToEitherDeck(t *testing.T) {
	f := newSwipeFixture(t, time.Minute)

	assert.Contains(t, deckIDs(f.swipe.ListCandidates("alice")), "bob")

	outcome := f.swipe.SwipeRight(Profile{ID: "alice", DisplayName: "Alice"}, "bob")
	require.Equal(t, SwipeOutcomePending, outcome.Status)

	assert.NotContains(t, deckIDs(f.swipe.ListCandidates("alice")), "bob")
	assert.NotContains(t, deckIDs(f.swipe.ListCandidates("bob")), "alice")

	// Still excluded after the request resolves.
	require.NoError(t, f.swipe.DeclineBattle(outcome.RequestID, "bob"))
	assert.NotContains(t, deckIDs(f.swipe.ListCandidates("alice")), "bob")
	assert.NotContains(t, deckIDs(f.swipe.ListCandidates("bob")), "alice")
}

func TestSwipeLeftRemovesPairFromDecks(t *testing.T) {
	f := newSwipeFixture(t, time.Minute)

	f.swipe.SwipeLeft("alice", "bob")

	assert.NotContains(t, deckIDs(f.swipe.ListCandidates("alice")), "bob")
	assert.NotContains(t, deckIDs(f.swipe.ListCandidates("bob")), "alice")
	assert.Zero(t, f.notifier.countOf("bob", EventBattleRequest), "target never hears about a left swipe")
}

func TestDeckListsHumansBeforePersonas(t *testing.T) {
	f := newSwipeFixture(t, time.Minute)

	deck := f.swipe.ListCandidates("alice")
	require.NotEmpty(t, deck)
	assert.Equal(t, "bob", deck[0].ID, "online humans come first")
	assert.False(t, deck[0].Bot)
	assert.True(t, deck[len(deck)-1].Bot, "personas fill the tail")
	for _, p := range deck {
		assert.NotEqual(t, "alice", p.ID, "own card never appears")
	}
}

func TestAcceptBattleValidatesTarget(t *testing.T) {
	f := newSwipeFixture(t, time.Minute)

	outcome := f.swipe.SwipeRight(Profile{ID: "alice", DisplayName: "Alice"}, "bob")
	require.Equal(t, SwipeOutcomePending, outcome.Status)

	assert.ErrorIs(t, f.swipe.AcceptBattle("unknown", "bob"), ErrRequestNotFound)
	assert.ErrorIs(t, f.swipe.AcceptBattle(outcome.RequestID, "mallory"), ErrNotRequestTarget)
	assert.Equal(t, 1, f.swipe.PendingRequestCount(), "failed accept leaves the request pending")

	require.NoError(t, f.swipe.AcceptBattle(outcome.RequestID, "bob"))
	assert.Equal(t, 1, f.notifier.countOf("alice", EventBattleStart))
	assert.Equal(t, 1, f.notifier.countOf("bob", EventBattleStart))
	assert.Zero(t, f.swipe.PendingRequestCount())
}

func TestDeclineBattleNotifiesSenderOnce(t *testing.T) {
	f := newSwipeFixture(t, time.Minute)

	outcome := f.swipe.SwipeRight(Profile{ID: "alice", DisplayName: "Alice"}, "bob")
	require.Equal(t, SwipeOutcomePending, outcome.Status)

	require.NoError(t, f.swipe.DeclineBattle(outcome.RequestID, "bob"))
	assert.Equal(t, 1, f.notifier.countOf("alice", EventBattleRequestDeclined))

	// Second decline with the same ID is a no-op.
	assert.ErrorIs(t, f.swipe.DeclineBattle(outcome.RequestID, "bob"), ErrRequestNotFound)
	assert.Equal(t, 1, f.notifier.countOf("alice", EventBattleRequestDeclined))
}

func TestRequestExpiryNotifiesRequester(t *testing.T) {
	f := newSwipeFixture(t, 30*time.Millisecond)

	outcome := f.swipe.SwipeRight(Profile{ID: "alice", DisplayName: "Alice"}, "bob")
	require.Equal(t, SwipeOutcomePending, outcome.Status)

	require.Eventually(t, func() bool {
		ev, ok := f.notifier.lastOf("alice", EventBattleRequestTimeout)
		return ok && ev.Payload.(map[string]any)["reason"] == "timeout"
	}, time.Second, 10*time.Millisecond)

	assert.ErrorIs(t, f.swipe.AcceptBattle(outcome.RequestID, "bob"), ErrRequestNotFound)
}

func TestTargetGoingOfflineClearsRequest(t *testing.T) {
	f := newSwipeFixture(t, time.Minute)

	outcome := f.swipe.SwipeRight(Profile{ID: "alice", DisplayName: "Alice"}, "bob")
	require.Equal(t, SwipeOutcomePending, outcome.Status)

	f.presence.GoOffline("bob", OfflineReasonDisconnect)

	assert.Zero(t, f.swipe.PendingRequestCount())
	ev, ok := f.notifier.lastOf("alice", EventBattleRequestTimeout)
	require.True(t, ok, "requester is told the target vanished")
	assert.Equal(t, "offline", ev.Payload.(map[string]any)["reason"])
}

func TestRequesterGoingOfflineIsSilent(t *testing.T) {
	f := newSwipeFixture(t, time.Minute)

	outcome := f.swipe.SwipeRight(Profile{ID: "alice", DisplayName: "Alice"}, "bob")
	require.Equal(t, SwipeOutcomePending, outcome.Status)

	f.presence.GoOffline("alice", OfflineReasonDisconnect)

	assert.Zero(t, f.swipe.PendingRequestCount())
	assert.Zero(t, f.notifier.countOf("bob", EventBattleRequestTimeout), "target is not notified")

	// The accept now finds nothing.
	assert.ErrorIs(t, f.swipe.AcceptBattle(outcome.RequestID, "bob"), ErrRequestNotFound)
}

func TestAcceptAfterRequesterVanishedReportsOffline(t *testing.T) {
	notifier := newFakeNotifier()
	presence := NewPresenceRegistry(notifier, time.Minute)
	engine := NewBattleEngine(&fakeScorer{}, newFakeRecordStore(), nil, notifier, time.Hour)
	swipe := NewSwipeMatcher(presence, engine, NewPersonaDeck(), notifier, time.Minute, 20)
	// No offline cascade wired here: mimics the accept landing after
	// the requester's presence is gone but before cleanup has run.
	presence.GoOnline("alice", "s1", Profile{ID: "alice", DisplayName: "Alice"})
	presence.GoOnline("bob", "s2", Profile{ID: "bob", DisplayName: "Bob"})

	outcome := swipe.SwipeRight(Profile{ID: "alice", DisplayName: "Alice"}, "bob")
	require.Equal(t, SwipeOutcomePending, outcome.Status)

	presence.GoOffline("alice", OfflineReasonDisconnect)

	require.NoError(t, swipe.AcceptBattle(outcome.RequestID, "bob"))
	ev, ok := notifier.lastOf("bob", EventBattleRequestTimeout)
	require.True(t, ok)
	assert.Equal(t, "offline", ev.Payload.(map[string]any)["reason"])
	assert.Zero(t, notifier.countOf("bob", EventBattleStart))
}

func TestPersonaSwipeStartsBattleImmediately(t *testing.T) {
	f := newSwipeFixture(t, time.Minute)

	deck := f.swipe.ListCandidates("alice")
	var personaID string
	for _, p := range deck {
		if p.Bot {
			personaID = p.ID
			break
		}
	}
	require.NotEmpty(t, personaID)

	outcome := f.swipe.SwipeRight(Profile{ID: "alice", DisplayName: "Alice"}, personaID)
	assert.Equal(t, SwipeOutcomeMatched, outcome.Status)
	assert.Equal(t, 1, f.notifier.countOf("alice", EventBattleStart))
	assert.NotContains(t, deckIDs(f.swipe.ListCandidates("alice")), personaID)
}
