// Package testing holds helpers for tests that drive the job runner from
// several goroutines.
//
// t.Fatal only stops the goroutine that calls it, so helper goroutines
// return errors and Group reports them from the test goroutine.
package testing

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

// Group runs functions concurrently and fails the test with every error
// they returned.
//
//	g := vtesting.NewGroup(t, 5*time.Second)
//	for i := range 8 {
//	    g.Go(func(ctx context.Context) error {
//	        return pool.Submit(fmt.Sprintf("w%d", i), fn)
//	    })
//	}
//	g.Wait()
type Group struct {
	t      testing.TB
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc

	mu  sync.Mutex
	err error
}

// NewGroup creates a Group whose context expires after timeout. A zero
// timeout means no deadline.
func NewGroup(t testing.TB, timeout time.Duration) *Group {
	var (
		ctx    context.Context
		cancel context.CancelFunc
	)
	if timeout > 0 {
		ctx, cancel = context.WithTimeout(context.Background(), timeout)
	} else {
		ctx, cancel = context.WithCancel(context.Background())
	}
	t.Cleanup(cancel)
	return &Group{t: t, ctx: ctx, cancel: cancel}
}

// Go runs fn in a new goroutine.
func (g *Group) Go(fn func(ctx context.Context) error) {
	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		if err := fn(g.ctx); err != nil {
			g.mu.Lock()
			g.err = errors.Join(g.err, err)
			g.mu.Unlock()
		}
	}()
}

// Context is cancelled once Wait returns or the timeout passes.
func (g *Group) Context() context.Context {
	return g.ctx
}

// Err waits for all goroutines and returns their joined errors.
func (g *Group) Err() error {
	g.wg.Wait()
	g.cancel()

	g.mu.Lock()
	defer g.mu.Unlock()
	return g.err
}

// Wait is Err followed by t.Fatal when any goroutine failed.
func (g *Group) Wait() {
	g.t.Helper()
	if err := g.Err(); err != nil {
		g.t.Fatalf("goroutines failed:\n%v", err)
	}
}

// =============================================================================
// Timing helpers
// =============================================================================

// Within returns an error if fn has not returned after d. fn keeps running
// in the background in that case.
func Within(d time.Duration, fn func() error) error {
	done := make(chan error, 1)
	go func() { done <- fn() }()

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case err := <-done:
		return err
	case <-timer.C:
		return fmt.Errorf("not done after %v", d)
	}
}

// Poll calls cond every interval until it returns true or d passes.
func Poll(d, interval time.Duration, cond func() bool) error {
	deadline := time.Now().Add(d)
	for {
		if cond() {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("condition still false after %v", d)
		}
		time.Sleep(interval)
	}
}

// Equal returns an error describing the mismatch when got != want.
func Equal[T comparable](what string, got, want T) error {
	if got != want {
		return fmt.Errorf("%s = %v, want %v", what, got, want)
	}
	return nil
}
