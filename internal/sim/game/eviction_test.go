package game

import (
	"context"
	"testing"
	"time"

	"housevault/internal/persistence/store"
)

// holdEvictions parks every SetEvicted(true) until release is closed.
type holdEvictions struct {
	store.Store
	reached chan string
	release chan struct{}
}

func (h *holdEvictions) SetEvicted(ctx context.Context, playerID string, evicted bool) error {
	if evicted {
		h.reached <- playerID
		<-h.release
	}
	return h.Store.SetEvicted(ctx, playerID, evicted)
}

func TestSweepDoesNotUndoConcurrentCreateHouse(t *testing.T) {
	hold := &holdEvictions{reached: make(chan string, 1), release: make(chan struct{})}
	e := newEnvWith(t, func(s store.Store) store.Store {
		hold.Store = s
		return hold
	})

	target := e.owner(t, "alice")
	if err := e.svc.Leave(e.ctx, "alice"); err != nil {
		t.Fatalf("leave: %v", err)
	}
	if _, err := e.svc.Register(e.ctx, "bob", badge); err != nil {
		t.Fatalf("register bob: %v", err)
	}
	if _, err := e.svc.Enter(e.ctx, "bob", target, true); err != nil {
		t.Fatalf("bob enters: %v", err)
	}
	e.now = e.now.Add(time.Minute)

	type sweepResult struct {
		n   int
		err error
	}
	done := make(chan sweepResult, 1)
	go func() {
		n, err := e.svc.TriggerEvictions(e.ctx, false)
		done <- sweepResult{n, err}
	}()

	select {
	case id := <-hold.reached:
		if id != "bob" {
			t.Fatalf("evicting %q, want bob", id)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("sweep never reached the eviction")
	}

	// bob's player lock is free while the sweep holds alice's house.
	h, err := e.svc.CreateHouse(e.ctx, "bob")
	if err != nil {
		t.Fatalf("create house during sweep: %v", err)
	}
	close(hold.release)

	select {
	case r := <-done:
		if r.err != nil || r.n != 1 {
			t.Fatalf("sweep = %d, %v; want 1", r.n, r.err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("sweep did not finish")
	}

	bob, err := e.st.GetPlayer(e.ctx, "bob")
	if err != nil {
		t.Fatalf("get bob: %v", err)
	}
	if bob.HouseID != h.ID {
		t.Fatalf("bob.HouseID = %q after sweep, want %q", bob.HouseID, h.ID)
	}
	if !bob.Evicted {
		t.Fatalf("evicted flag lost")
	}
	if _, err := e.svc.CreateHouse(e.ctx, "bob"); err == nil {
		t.Fatalf("bob created a second house")
	}
}
