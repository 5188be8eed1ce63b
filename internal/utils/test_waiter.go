package utils

import (
	"fmt"
	"testing"
	"time"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/karagenc/eio-server/internal/sync"
)

const DefaultTestWaitTimeout = time.Second * 12

// This is a sync.WaitGroup with a WaitTimeout function. Use this for testing purposes.
type TestWaiter struct {
	wg *sync.WaitGroup
}

func NewTestWaiter(delta int) *TestWaiter {
	wg := new(sync.WaitGroup)
	wg.Add(delta)
	return &TestWaiter{
		wg: wg,
	}
}

func (w *TestWaiter) Add(delta int) { w.wg.Add(delta) }

func (w *TestWaiter) Done() { w.wg.Done() }

func (w *TestWaiter) WaitTimeout(t *testing.T, timeout time.Duration) (timedout bool) {
	return waitTimeout(t, w.wg, timeout)
}

// TestWaiterSet waits for every added key to be marked done exactly once.
// Marking a key that was never added, or marking it twice, panics.
type TestWaiterSet[T comparable] struct {
	wg      *sync.WaitGroup
	pending mapset.Set[T]
}

func NewTestWaiterSet[T comparable](keys ...T) *TestWaiterSet[T] {
	w := &TestWaiterSet[T]{
		wg:      new(sync.WaitGroup),
		pending: mapset.NewSet[T](),
	}
	for _, key := range keys {
		w.Add(key)
	}
	return w
}

func (w *TestWaiterSet[T]) Add(key T) {
	if w.pending.Add(key) {
		w.wg.Add(1)
	}
}

func (w *TestWaiterSet[T]) Done(key T) {
	if !w.pending.Contains(key) {
		panic(fmt.Errorf("TestWaiterSet: Done was already called on '%v'", key))
	}
	w.pending.Remove(key)
	w.wg.Done()
}

// Pending returns the keys not yet marked done.
func (w *TestWaiterSet[T]) Pending() []T { return w.pending.ToSlice() }

func (w *TestWaiterSet[T]) WaitTimeout(t *testing.T, timeout time.Duration) (timedout bool) {
	return waitTimeout(t, w.wg, timeout)
}

func waitTimeout(t *testing.T, wg *sync.WaitGroup, timeout time.Duration) (timedout bool) {
	c := make(chan struct{})

	go func() {
		defer close(c)
		wg.Wait()
	}()

	select {
	case <-c:
		return false
	case <-time.After(timeout):
		t.Error("timeout exceeded")
		return true
	}
}
