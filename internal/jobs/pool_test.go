package jobs

import (
	"context"
	"fmt"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/xtxerr/velinterp/internal/errors"
	vtesting "github.com/xtxerr/velinterp/internal/testing"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func value(v float64) Func {
	return func() (float64, error) { return v, nil }
}

func TestPoolCollectsResults(t *testing.T) {
	p := NewPool(&Config{Workers: 4, QueueSize: 8})
	defer p.Shutdown()

	const n = 100
	for i := 0; i < n; i++ {
		if err := p.Submit(strconv.Itoa(i), value(float64(i))); err != nil {
			t.Fatalf("Submit %d: %v", i, err)
		}
	}

	if err := p.AwaitAll(context.Background()); err != nil {
		t.Fatalf("AwaitAll: %v", err)
	}

	for i := 0; i < n; i++ {
		r, ok := p.Result(strconv.Itoa(i))
		if !ok {
			t.Fatalf("missing result %d", i)
		}
		if !r.OK() || r.Value != float64(i) {
			t.Errorf("result %d: %v", i, r)
		}
	}

	stats := p.Stats()
	if stats.Completed != n || stats.Pending != 0 || stats.Stored != n {
		t.Errorf("unexpected stats %+v", stats)
	}
}

func TestPoolFailureIsolation(t *testing.T) {
	p := NewPool(&Config{Workers: 2, QueueSize: 4})
	defer p.Shutdown()

	boom := fmt.Errorf("row 2: %w", errors.ErrDegenerateGeometry)
	for i := 0; i < 5; i++ {
		fn := value(float64(i))
		if i == 2 {
			fn = func() (float64, error) { return 0, boom }
		}
		if err := p.Submit(strconv.Itoa(i), fn); err != nil {
			t.Fatalf("Submit: %v", err)
		}
	}
	if err := p.AwaitAll(context.Background()); err != nil {
		t.Fatalf("AwaitAll: %v", err)
	}

	for i := 0; i < 5; i++ {
		r, _ := p.Result(strconv.Itoa(i))
		if i == 2 {
			if r.OK() || !errors.Is(r.Err, errors.ErrDegenerateGeometry) {
				t.Errorf("expected failure for 2, got %v", r)
			}
			continue
		}
		if !r.OK() {
			t.Errorf("sibling %d failed: %v", i, r)
		}
	}
}

func TestPoolRecoversPanic(t *testing.T) {
	p := NewPool(&Config{Workers: 1, QueueSize: 1})
	defer p.Shutdown()

	if err := p.Submit("bad", func() (float64, error) { panic("kaboom") }); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if err := p.Submit("good", value(1)); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if err := p.AwaitAll(context.Background()); err != nil {
		t.Fatalf("AwaitAll: %v", err)
	}

	r, _ := p.Result("bad")
	if !errors.Is(r.Err, errors.ErrWorkerPanic) {
		t.Errorf("expected ErrWorkerPanic, got %v", r.Err)
	}
	if !errors.IsFatal(r.Err) {
		t.Error("a worker panic must be fatal")
	}

	// The worker survives the panic
	if r, _ := p.Result("good"); !r.OK() {
		t.Errorf("expected good result, got %v", r)
	}
	if p.Stats().Panics != 1 {
		t.Errorf("expected 1 panic, got %d", p.Stats().Panics)
	}
}

func TestPoolDuplicateKey(t *testing.T) {
	p := NewPool(&Config{Workers: 1, QueueSize: 1})
	defer p.Shutdown()

	release := make(chan struct{})
	if err := p.Submit("k", func() (float64, error) { <-release; return 1, nil }); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	// In flight
	if err := p.Submit("k", value(2)); !errors.Is(err, errors.ErrDuplicateJobKey) {
		t.Errorf("expected ErrDuplicateJobKey while running, got %v", err)
	}

	close(release)
	if err := p.AwaitAll(context.Background()); err != nil {
		t.Fatalf("AwaitAll: %v", err)
	}

	// Stored
	if err := p.Submit("k", value(2)); !errors.Is(err, errors.ErrDuplicateJobKey) {
		t.Errorf("expected ErrDuplicateJobKey while stored, got %v", err)
	}

	p.Forget("k")
	if _, ok := p.Result("k"); ok {
		t.Error("expected result to be forgotten")
	}
	if err := p.Submit("k", value(3)); err != nil {
		t.Errorf("expected resubmit after Forget to succeed, got %v", err)
	}
	if err := p.AwaitAll(context.Background()); err != nil {
		t.Fatalf("AwaitAll: %v", err)
	}
	if r, _ := p.Result("k"); r.Value != 3 {
		t.Errorf("expected 3, got %v", r)
	}
}

func TestPoolAwaitAllRespectsContext(t *testing.T) {
	p := NewPool(&Config{Workers: 1, QueueSize: 1})
	defer p.Shutdown()

	release := make(chan struct{})
	defer close(release)
	if err := p.Submit("slow", func() (float64, error) { <-release; return 0, nil }); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := p.AwaitAll(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
}

func TestPoolAwaitAllWhenIdle(t *testing.T) {
	p := NewPool(nil)
	defer p.Shutdown()

	err := vtesting.Within(time.Second, func() error {
		return p.AwaitAll(context.Background())
	})
	if err != nil {
		t.Errorf("AwaitAll on idle pool: %v", err)
	}
}

func TestPoolShutdown(t *testing.T) {
	p := NewPool(&Config{Workers: 1, QueueSize: 4})

	release := make(chan struct{})
	started := make(chan struct{})
	if err := p.Submit("running", func() (float64, error) {
		close(started)
		<-release
		return 1, nil
	}); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	<-started
	if err := p.Submit("queued", value(2)); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	done := make(chan struct{})
	go func() {
		p.Shutdown()
		close(done)
	}()

	// Shutdown waits for the running job
	late := 0
	if err := vtesting.Poll(time.Second, time.Millisecond, func() bool {
		late++
		return errors.Is(p.Submit(fmt.Sprintf("late%d", late), value(3)), errors.ErrRunnerClosed)
	}); err != nil {
		t.Fatal(err)
	}
	close(release)
	<-done

	if r, _ := p.Result("running"); !r.OK() {
		t.Errorf("running job should finish, got %v", r)
	}
	// The queued job may have been picked up before the worker saw shutdown.
	if r, ok := p.Result("queued"); !ok || (!r.OK() && !errors.Is(r.Err, errors.ErrRunnerClosed)) {
		t.Errorf("queued job: %v ok=%v", r, ok)
	}
	if err := p.AwaitAll(context.Background()); err != nil {
		t.Errorf("AwaitAll after shutdown: %v", err)
	}

	// Idempotent
	p.Shutdown()
}

func TestPoolConcurrentSubmit(t *testing.T) {
	p := NewPool(&Config{Workers: 4, QueueSize: 2})
	defer p.Shutdown()

	var ran atomic.Int64
	group := vtesting.NewGroup(t, 10*time.Second)
	for g := 0; g < 8; g++ {
		group.Go(func(context.Context) error {
			for i := 0; i < 50; i++ {
				key := fmt.Sprintf("%d/%d", g, i)
				if err := p.Submit(key, func() (float64, error) {
					ran.Add(1)
					return 0, nil
				}); err != nil {
					return fmt.Errorf("submit %s: %w", key, err)
				}
			}
			return nil
		})
	}
	group.Wait()

	if err := p.AwaitAll(context.Background()); err != nil {
		t.Fatalf("AwaitAll: %v", err)
	}
	if err := vtesting.Equal("jobs run", ran.Load(), int64(400)); err != nil {
		t.Error(err)
	}
}
