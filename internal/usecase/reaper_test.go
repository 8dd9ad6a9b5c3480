package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/GeruIndu/Intelligent-Building-Management-System/internal/core/domain"
)

func reaperFixture(t *testing.T) (*StaleSessionReaper, *memorySessionRepo, *recordingPublisher) {
	t.Helper()

	sessions := newMemorySessionRepo()
	publisher := &recordingPublisher{}

	reaper := NewStaleSessionReaper(sessions, publisher, ReaperConfig{
		IdleThreshold: 600 * time.Second,
	}, nil).WithClock(fixedClock(testInstant))

	return reaper, sessions, publisher
}

func openSessionSeenAt(id string, lastSeen time.Time) *domain.AccessSession {
	return &domain.AccessSession{
		ID:        id,
		UserID:    "user-" + id,
		SpaceID:   "space-1",
		EntryTime: lastSeen.Add(-time.Hour),
		LastSeen:  lastSeen,
	}
}

func TestSweepClosesIdleSessions(t *testing.T) {
	reaper, sessions, publisher := reaperFixture(t)

	lastSeen := testInstant.Add(-20 * time.Minute)
	sessions.sessions["stale"] = openSessionSeenAt("stale", lastSeen)

	reaper.Sweep(context.Background())

	stored := sessions.sessions["stale"]
	if stored.ExitTime == nil {
		t.Fatal("expected stale session to be closed")
	}
	if want := lastSeen.Add(time.Second); !stored.ExitTime.Equal(want) {
		t.Fatalf("exit time = %v, want %v", stored.ExitTime, want)
	}

	if len(publisher.closed) != 1 {
		t.Fatalf("closed events = %d, want 1", len(publisher.closed))
	}
	if publisher.closed[0].Reason != domain.CloseReasonIdle {
		t.Fatalf("reason = %s, want %s", publisher.closed[0].Reason, domain.CloseReasonIdle)
	}
}

func TestSweepLeavesLiveSessionsOpen(t *testing.T) {
	reaper, sessions, publisher := reaperFixture(t)

	// Heartbeat just inside the threshold: last seen 9m59s ago.
	sessions.sessions["live"] = openSessionSeenAt("live", testInstant.Add(-600*time.Second+time.Second))
	// Exactly at the threshold: not yet past it.
	sessions.sessions["edge"] = openSessionSeenAt("edge", testInstant.Add(-600*time.Second))

	reaper.Sweep(context.Background())

	if sessions.sessions["live"].ExitTime != nil {
		t.Fatal("session inside the threshold must stay open")
	}
	if sessions.sessions["edge"].ExitTime != nil {
		t.Fatal("session exactly at the threshold must stay open")
	}
	if len(publisher.closed) != 0 {
		t.Fatalf("closed events = %d, want 0", len(publisher.closed))
	}
}

func TestSweepIgnoresAlreadyClosedSessions(t *testing.T) {
	reaper, sessions, publisher := reaperFixture(t)

	closed := openSessionSeenAt("done", testInstant.Add(-time.Hour))
	exit := testInstant.Add(-30 * time.Minute)
	closed.ExitTime = &exit
	sessions.sessions["done"] = closed

	reaper.Sweep(context.Background())

	if !sessions.sessions["done"].ExitTime.Equal(exit) {
		t.Fatal("closed session must not be touched")
	}
	if len(publisher.closed) != 0 {
		t.Fatalf("closed events = %d, want 0", len(publisher.closed))
	}
}

func TestSweepSurvivesStoreFailure(t *testing.T) {
	reaper, sessions, publisher := reaperFixture(t)

	sessions.sessions["stale"] = openSessionSeenAt("stale", testInstant.Add(-time.Hour))
	sessions.failWith = errors.New("connection reset")

	reaper.Sweep(context.Background())

	if len(publisher.closed) != 0 {
		t.Fatal("no events expected on failed sweep")
	}

	// The session stays selectable; the next sweep picks it up.
	sessions.failWith = nil
	reaper.Sweep(context.Background())

	if sessions.sessions["stale"].ExitTime == nil {
		t.Fatal("expected retry sweep to close the session")
	}
}

func TestSweepRespectsBatchSize(t *testing.T) {
	sessions := newMemorySessionRepo()
	publisher := &recordingPublisher{}
	reaper := NewStaleSessionReaper(sessions, publisher, ReaperConfig{
		IdleThreshold: 600 * time.Second,
		BatchSize:     2,
	}, nil).WithClock(fixedClock(testInstant))

	for _, id := range []string{"a", "b", "c"} {
		sessions.sessions[id] = openSessionSeenAt(id, testInstant.Add(-time.Hour))
	}

	reaper.Sweep(context.Background())

	stillOpen := 0
	for _, s := range sessions.sessions {
		if s.ExitTime == nil {
			stillOpen++
		}
	}
	if stillOpen != 1 {
		t.Fatalf("open sessions after batch sweep = %d, want 1", stillOpen)
	}
}

func TestReaperStartStop(t *testing.T) {
	reaper, sessions, _ := reaperFixture(t)
	sessions.sessions["stale"] = openSessionSeenAt("stale", testInstant.Add(-time.Hour))

	reaper.Start(context.Background())
	reaper.Stop()

	// Startup runs an immediate sweep before the first tick.
	if sessions.sessions["stale"].ExitTime == nil {
		t.Fatal("expected startup sweep to close the stale session")
	}
}

func TestReaperStopWithoutStartReturns(t *testing.T) {
	reaper, _, _ := reaperFixture(t)

	done := make(chan struct{})
	go func() {
		reaper.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop blocked on a reaper that was never started")
	}
}
