package session

import (
	"sync"
	"testing"
)

func Test_keyedMutex_lock(t *testing.T) {
	km := newKeyedMutex()

	var (
		wg    sync.WaitGroup
		count int
	)
	const n = 100
	wg.Add(2 * n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			unlock := km.lock("shared")
			defer unlock()
			count++
		}()
		go func() {
			defer wg.Done()
			unlock := km.lock("other")
			defer unlock()
		}()
	}
	wg.Wait()

	if count != n {
		t.Errorf("count = %d, want %d", count, n)
	}
	if len(km.locks) != 0 {
		t.Errorf("len(locks) = %d, want 0 once all holders released", len(km.locks))
	}
}
