package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGoOnlineBroadcastsAndBinds(t *testing.T) {
	notifier := newFakeNotifier()
	reg := NewPresenceRegistry(notifier, time.Minute)

	reg.GoOnline("alice", "s1", Profile{ID: "alice", DisplayName: "Alice"})

	assert.True(t, reg.IsOnline("alice"))
	session, ok := reg.SessionOf("alice")
	require.True(t, ok)
	assert.Equal(t, "s1", session)
	assert.Equal(t, 1, notifier.broadcastCount(EventUserOnline))
}

func TestReconnectOverwritesSessionBinding(t *testing.T) {
	notifier := newFakeNotifier()
	reg := NewPresenceRegistry(notifier, time.Minute)

	reg.GoOnline("alice", "s1", Profile{ID: "alice", DisplayName: "Alice"})
	reg.GoOnline("alice", "s2", Profile{ID: "alice", DisplayName: "Alice"})

	session, ok := reg.SessionOf("alice")
	require.True(t, ok)
	assert.Equal(t, "s2", session, "newest session wins")
	assert.Len(t, reg.ListOnline(""), 1)
}

func TestGoOfflineRunsCascadeOnce(t *testing.T) {
	notifier := newFakeNotifier()
	reg := NewPresenceRegistry(notifier, time.Minute)

	var calls []string
	reg.OnOffline(func(userID, reason string) { calls = append(calls, userID+":"+reason) })

	reg.GoOnline("alice", "s1", Profile{ID: "alice"})
	reg.GoOffline("alice", OfflineReasonManual)
	reg.GoOffline("alice", OfflineReasonManual)

	assert.Equal(t, []string{"alice:manual"}, calls, "second offline is a no-op")
	assert.Equal(t, 1, notifier.broadcastCount(EventUserOffline))
	assert.False(t, reg.IsOnline("alice"))
}

func TestStaleSessionOfflineIsNoop(t *testing.T) {
	notifier := newFakeNotifier()
	reg := NewPresenceRegistry(notifier, time.Minute)

	var cascaded int
	reg.OnOffline(func(userID, reason string) { cascaded++ })

	reg.GoOnline("alice", "s1", Profile{ID: "alice"})
	reg.GoOnline("alice", "s2", Profile{ID: "alice"})

	// The old socket's cleanup fires after the rebind.
	reg.GoOfflineSession("alice", "s1", OfflineReasonDisconnect)

	assert.True(t, reg.IsOnline("alice"), "live rebind survives stale cleanup")
	assert.Zero(t, cascaded)
	assert.Zero(t, notifier.broadcastCount(EventUserOffline))

	reg.GoOfflineSession("alice", "s2", OfflineReasonDisconnect)
	assert.False(t, reg.IsOnline("alice"))
	assert.Equal(t, 1, cascaded)
}

func TestReconnectKeepsBattleThroughStaleDisconnect(t *testing.T) {
	notifier := newFakeNotifier()
	reg := NewPresenceRegistry(notifier, time.Minute)
	engine := NewBattleEngine(&fakeScorer{}, newFakeRecordStore(), nil, notifier, time.Hour)
	reg.OnOffline(func(userID, reason string) { engine.HandleDisconnect(userID) })

	reg.GoOnline("alice", "s1", Profile{ID: "alice", DisplayName: "Alice"})
	_, err := engine.CreateBattle(
		Participant{ID: "alice", Name: "Alice"},
		Participant{ID: "bob", Name: "Bob"},
		"tabs are better than spaces",
	)
	require.NoError(t, err)

	reg.GoOnline("alice", "s2", Profile{ID: "alice", DisplayName: "Alice"})
	reg.GoOfflineSession("alice", "s1", OfflineReasonDisconnect)

	assert.True(t, reg.IsOnline("alice"))
	_, active := engine.ActiveBattleOf("alice")
	assert.True(t, active, "battle survives the old socket's cleanup")
	assert.Zero(t, notifier.countOf("bob", EventBattleEnd), "no forfeit delivered")
}

func TestGoOfflineUnknownUserIsNoop(t *testing.T) {
	notifier := newFakeNotifier()
	reg := NewPresenceRegistry(notifier, time.Minute)

	var fired bool
	reg.OnOffline(func(userID, reason string) { fired = true })

	reg.GoOffline("ghost", OfflineReasonDisconnect)

	assert.False(t, fired)
	assert.Zero(t, notifier.broadcastCount(EventUserOffline))
}

func TestCascadeStepPanicDoesNotBlockOthers(t *testing.T) {
	notifier := newFakeNotifier()
	reg := NewPresenceRegistry(notifier, time.Minute)

	var second bool
	reg.OnOffline(func(userID, reason string) { panic("boom") })
	reg.OnOffline(func(userID, reason string) { second = true })

	reg.GoOnline("alice", "s1", Profile{ID: "alice"})
	require.NotPanics(t, func() { reg.GoOffline("alice", OfflineReasonDisconnect) })

	assert.True(t, second, "later steps still run after a panic")
	assert.Equal(t, 1, notifier.broadcastCount(EventUserOffline), "offline still broadcast")
}

func TestHeartbeatKeepsUserAlive(t *testing.T) {
	notifier := newFakeNotifier()
	reg := NewPresenceRegistry(notifier, 50*time.Millisecond)

	reg.GoOnline("alice", "s1", Profile{ID: "alice"})

	time.Sleep(30 * time.Millisecond)
	reg.Heartbeat("alice")
	time.Sleep(30 * time.Millisecond)
	reg.CleanupStale()

	assert.True(t, reg.IsOnline("alice"), "recent heartbeat survives the sweep")
}

func TestCleanupStaleCascadesWithHeartbeatReason(t *testing.T) {
	notifier := newFakeNotifier()
	reg := NewPresenceRegistry(notifier, 20*time.Millisecond)

	var reasons []string
	reg.OnOffline(func(userID, reason string) { reasons = append(reasons, reason) })

	reg.GoOnline("alice", "s1", Profile{ID: "alice"})
	time.Sleep(40 * time.Millisecond)
	reg.CleanupStale()

	assert.False(t, reg.IsOnline("alice"))
	assert.Equal(t, []string{OfflineReasonHeartbeat}, reasons)
}

func TestHeartbeatUnknownUserIsNoop(t *testing.T) {
	reg := NewPresenceRegistry(newFakeNotifier(), time.Minute)
	reg.Heartbeat("ghost")
	assert.False(t, reg.IsOnline("ghost"))
}

func TestListOnlineExcludesRequestedUser(t *testing.T) {
	reg := NewPresenceRegistry(newFakeNotifier(), time.Minute)

	reg.GoOnline("alice", "s1", Profile{ID: "alice", DisplayName: "Alice"})
	reg.GoOnline("bob", "s2", Profile{ID: "bob", DisplayName: "Bob"})

	list := reg.ListOnline("alice")
	require.Len(t, list, 1)
	assert.Equal(t, "bob", list[0].ID)

	assert.Len(t, reg.ListOnline(""), 2)
}

func TestProfileOfReturnsCachedProfile(t *testing.T) {
	reg := NewPresenceRegistry(newFakeNotifier(), time.Minute)

	reg.GoOnline("alice", "s1", Profile{ID: "alice", DisplayName: "Alice", Level: 7})

	profile, ok := reg.ProfileOf("alice")
	require.True(t, ok)
	assert.Equal(t, "Alice", profile.DisplayName)
	assert.Equal(t, 7, profile.Level)

	_, ok = reg.ProfileOf("ghost")
	assert.False(t, ok)
}
