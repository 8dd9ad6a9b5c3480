package usecase

import (
	"context"
	"errors"
	"testing"
	"time"
)

func sweeperFixture(t *testing.T) (*ExpiredGrantSweeper, *memoryGrantRepo, *stubGrantCache, *recordingPublisher) {
	t.Helper()

	grants := newMemoryGrantRepo()
	cache := newStubGrantCache()
	publisher := &recordingPublisher{}

	sweeper := NewExpiredGrantSweeper(grants, cache, publisher, 0, nil).
		WithClock(fixedClock(testInstant))

	return sweeper, grants, cache, publisher
}

func TestSweepRevokesExpiredGrants(t *testing.T) {
	sweeper, grants, cache, publisher := sweeperFixture(t)

	expired := activeGrant("user-1", "space-1")
	expiresAt := testInstant.Add(-time.Minute)
	expired.ExpiresAt = &expiresAt
	grants.put(expired)
	cache.entries[pairKey("user-1", "space-1")] = expired

	unexpired := activeGrant("user-2", "space-1")
	future := testInstant.Add(time.Hour)
	unexpired.ExpiresAt = &future
	grants.put(unexpired)

	perpetual := activeGrant("user-3", "space-1")
	grants.put(perpetual)

	sweeper.Sweep(context.Background())

	stored, err := grants.Get(context.Background(), "user-1", "space-1")
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if !stored.Revoked {
		t.Fatal("expected expired grant to be revoked")
	}
	if _, ok := cache.entries[pairKey("user-1", "space-1")]; ok {
		t.Fatal("expected cache entry to be invalidated")
	}

	for _, userID := range []string{"user-2", "user-3"} {
		g, err := grants.Get(context.Background(), userID, "space-1")
		if err != nil {
			t.Fatalf("Get returned error: %v", err)
		}
		if g.Revoked {
			t.Fatalf("grant for %s must stay active", userID)
		}
	}

	if len(publisher.revoked) != 1 {
		t.Fatalf("revoked events = %d, want 1", len(publisher.revoked))
	}
	event := publisher.revoked[0]
	if event.RevokedBy != "system" || event.Reason != "expired" {
		t.Fatalf("event = %+v, want revoked_by system reason expired", event)
	}
}

func TestSweepIsIdempotent(t *testing.T) {
	sweeper, grants, _, publisher := sweeperFixture(t)

	expired := activeGrant("user-1", "space-1")
	expiresAt := testInstant.Add(-time.Minute)
	expired.ExpiresAt = &expiresAt
	grants.put(expired)

	sweeper.Sweep(context.Background())
	sweeper.Sweep(context.Background())

	if len(publisher.revoked) != 1 {
		t.Fatalf("revoked events = %d, want 1 after repeated sweeps", len(publisher.revoked))
	}
}

func TestGrantSweepSurvivesStoreFailure(t *testing.T) {
	sweeper, grants, _, publisher := sweeperFixture(t)

	expired := activeGrant("user-1", "space-1")
	expiresAt := testInstant.Add(-time.Minute)
	expired.ExpiresAt = &expiresAt
	grants.put(expired)
	grants.failWith = errors.New("connection reset")

	sweeper.Sweep(context.Background())

	if len(publisher.revoked) != 0 {
		t.Fatal("no events expected on failed sweep")
	}

	grants.failWith = nil
	sweeper.Sweep(context.Background())

	stored, err := grants.Get(context.Background(), "user-1", "space-1")
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if !stored.Revoked {
		t.Fatal("expected retry sweep to revoke the grant")
	}
}

func TestSweeperStartStop(t *testing.T) {
	sweeper, grants, _, _ := sweeperFixture(t)

	expired := activeGrant("user-1", "space-1")
	expiresAt := testInstant.Add(-time.Minute)
	expired.ExpiresAt = &expiresAt
	grants.put(expired)

	sweeper.Start(context.Background())
	sweeper.Stop()

	stored, err := grants.Get(context.Background(), "user-1", "space-1")
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if !stored.Revoked {
		t.Fatal("expected startup sweep to revoke the expired grant")
	}
}

func TestSweeperStopWithoutStartReturns(t *testing.T) {
	sweeper, _, _, _ := sweeperFixture(t)

	done := make(chan struct{})
	go func() {
		sweeper.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop blocked on a sweeper that was never started")
	}
}
