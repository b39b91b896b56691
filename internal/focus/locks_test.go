package focus

import (
	"sync"
	"testing"
	"time"
)

func TestUserLocks_SerializesSameUser(t *testing.T) {
	locks := newUserLocks()

	var mu sync.Mutex
	inside := 0
	maxInside := 0

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := locks.Lock("user-1")
			defer unlock()

			mu.Lock()
			inside++
			if inside > maxInside {
				maxInside = inside
			}
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			inside--
			mu.Unlock()
		}()
	}
	wg.Wait()

	if maxInside != 1 {
		t.Errorf("max concurrent holders = %d, want 1", maxInside)
	}
	if n := locks.size(); n != 0 {
		t.Errorf("locks retained = %d, want 0", n)
	}
}

func TestUserLocks_DifferentUsersDoNotBlock(t *testing.T) {
	locks := newUserLocks()

	unlock1 := locks.Lock("user-1")
	defer unlock1()

	done := make(chan struct{})
	go func() {
		unlock2 := locks.Lock("user-2")
		unlock2()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock for another user blocked")
	}
}
