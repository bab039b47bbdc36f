package reservation

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSlotLocks_SerializesSameSlot(t *testing.T) {
	locks := newSlotLocks()

	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l := locks.acquire(1)
			counter++
			locks.release(1, l)
		}()
	}
	wg.Wait()

	assert.Equal(t, 100, counter)
}

func TestSlotLocks_DropsUnusedEntries(t *testing.T) {
	locks := newSlotLocks()

	l := locks.acquire(1)
	locks.release(1, l)

	locks.mu.Lock()
	defer locks.mu.Unlock()
	assert.Empty(t, locks.locks)
}

func TestSlotLocks_DifferentSlotsDoNotBlock(t *testing.T) {
	locks := newSlotLocks()

	l1 := locks.acquire(1)
	done := make(chan struct{})
	go func() {
		l2 := locks.acquire(2)
		locks.release(2, l2)
		close(done)
	}()
	<-done

	locks.release(1, l1)
}
