// Meet Tracker - Presence Session Tracking for Recurring Meeting Rooms
// Copyright 2026 Sarmad Makhdoom
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sarmadmakhdoom/meet-tracker-sub000

package tracker

import (
	"sync"
	"testing"
)

func TestKeyedMutexSerializesSameKey(t *testing.T) {
	km := newKeyedMutex()
	counter := 0

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := km.lock("room-a")
			counter++
			unlock()
		}()
	}
	wg.Wait()

	if counter != 100 {
		t.Errorf("counter = %d, want 100", counter)
	}
}

func TestKeyedMutexIndependentKeys(t *testing.T) {
	km := newKeyedMutex()

	unlockA := km.lock("room-a")
	done := make(chan struct{})
	go func() {
		unlockB := km.lock("room-b")
		unlockB()
		close(done)
	}()
	<-done // must not deadlock while room-a is held
	unlockA()
}

func TestKeyedMutexCleansUpEntries(t *testing.T) {
	km := newKeyedMutex()

	unlock := km.lock("room-a")
	unlock()

	km.mu.Lock()
	n := len(km.locks)
	km.mu.Unlock()
	if n != 0 {
		t.Errorf("lock table has %d entries after release, want 0", n)
	}
}
