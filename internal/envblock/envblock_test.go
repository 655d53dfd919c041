package envblock

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
)

func TestSlotResolvesOnce(t *testing.T) {
	t.Parallel()

	var s slot[func() int]
	var calls atomic.Int32
	resolve := func() (func() int, error) {
		calls.Add(1)
		return func() int { return 42 }, nil
	}

	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fn, ok := s.get("answer", resolve)
			if !ok || fn() != 42 {
				t.Errorf("get = %v", ok)
			}
		}()
	}
	wg.Wait()
	if n := calls.Load(); n != 1 {
		t.Errorf("resolve called %d times, want 1", n)
	}
}

func TestSlotRemembersFailure(t *testing.T) {
	t.Parallel()

	var s slot[int]
	var calls int
	fail := func() (int, error) {
		calls++
		return 0, errors.New("missing")
	}
	for range 3 {
		if _, ok := s.get("missing", fail); ok {
			t.Fatal("get succeeded")
		}
	}
	if calls != 1 {
		t.Errorf("resolve called %d times, want 1", calls)
	}
}
