package keylock

import (
	"sync"
	"testing"
)

func TestLockSerializesSameKey(t *testing.T) {
	m := New()
	var (
		wg      sync.WaitGroup
		counter int
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := m.Lock("house-1")
			v := counter
			counter = v + 1
			unlock()
		}()
	}
	wg.Wait()
	if counter != 50 {
		t.Fatalf("counter=%d", counter)
	}
	if m.Len() != 0 {
		t.Fatalf("entries leaked: %d", m.Len())
	}
}

func TestLockAllOppositeOrderNoDeadlock(t *testing.T) {
	m := New()
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			m.LockAll("a", "b")()
		}()
		go func() {
			defer wg.Done()
			m.LockAll("b", "a", "a", "")()
		}()
	}
	wg.Wait()
	if m.Len() != 0 {
		t.Fatalf("entries leaked: %d", m.Len())
	}
}

func TestDistinctKeysIndependent(t *testing.T) {
	m := New()
	unlockA := m.Lock("a")
	done := make(chan struct{})
	go func() {
		m.Lock("b")()
		close(done)
	}()
	<-done
	unlockA()
}
