// Package jobs provides the concurrent job runner.
//
// A Pool executes submitted functions on a fixed set of workers and keeps
// each outcome, keyed by the caller's job key, until the caller forgets it.
//
// Key features:
//   - Bounded job queue; Submit blocks while it is full
//   - Panics in a job become ErrWorkerPanic failures instead of crashing
//   - AwaitAll blocks until every outstanding submission has completed
//   - Shutdown is idempotent and fails jobs still queued
package jobs

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"

	defaults "github.com/xtxerr/velinterp/config"
	"github.com/xtxerr/velinterp/internal/errors"
	"github.com/xtxerr/velinterp/internal/logging"
)

var log = logging.Component("jobs")

// =============================================================================
// Types
// =============================================================================

// Func is the unit of work run by a worker.
type Func func() (float64, error)

type job struct {
	key string
	fn  Func
}

// Config holds pool configuration.
type Config struct {
	// Workers is the number of concurrent workers. Zero means one per CPU.
	Workers int

	// QueueSize is the job queue capacity.
	QueueSize int
}

// DefaultConfig returns default pool configuration.
func DefaultConfig() *Config {
	return &Config{
		Workers:   defaults.DefaultWorkers,
		QueueSize: defaults.DefaultQueueSize,
	}
}

// Stats is a snapshot of pool counters.
type Stats struct {
	Workers   int
	Pending   int
	Stored    int
	Active    int
	Submitted int64
	Completed int64
	Failed    int64
	Panics    int64
}

// =============================================================================
// Pool
// =============================================================================

// Pool runs jobs on a fixed set of workers.
//
// Pool is safe for concurrent use.
type Pool struct {
	mu       sync.Mutex
	results  map[string]Result
	inflight map[string]struct{}
	pending  int
	idle     chan struct{} // closed when pending drops to zero
	closed   bool

	// sendMu lets Shutdown wait for Submit calls that are mid-send.
	sendMu sync.RWMutex

	jobs     chan job
	shutdown chan struct{}
	once     sync.Once
	wg       sync.WaitGroup

	workers int

	// Metrics
	activeWorkers atomic.Int32
	submitted     atomic.Int64
	completed     atomic.Int64
	failed        atomic.Int64
	panics        atomic.Int64
}

// NewPool creates a pool and starts its workers.
func NewPool(cfg *Config) *Pool {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	queue := cfg.QueueSize
	if queue <= 0 {
		queue = defaults.DefaultQueueSize
	}

	idle := make(chan struct{})
	close(idle)

	p := &Pool{
		results:  make(map[string]Result),
		inflight: make(map[string]struct{}),
		idle:     idle,
		jobs:     make(chan job, queue),
		shutdown: make(chan struct{}),
		workers:  workers,
	}

	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}

	log.Debug("job pool started", "workers", workers, "queue_size", queue)
	return p
}

// Submit queues fn under key. Keys must be unique among the results the pool
// currently holds; forget a key before reusing it.
func (p *Pool) Submit(key string, fn Func) error {
	if fn == nil {
		return fmt.Errorf("job %s: nil function", key)
	}

	p.sendMu.RLock()
	defer p.sendMu.RUnlock()

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return fmt.Errorf("submit %s: %w", key, errors.ErrRunnerClosed)
	}
	if _, ok := p.inflight[key]; ok {
		p.mu.Unlock()
		return fmt.Errorf("submit %s: %w", key, errors.ErrDuplicateJobKey)
	}
	if _, ok := p.results[key]; ok {
		p.mu.Unlock()
		return fmt.Errorf("submit %s: %w", key, errors.ErrDuplicateJobKey)
	}
	if p.pending == 0 {
		p.idle = make(chan struct{})
	}
	p.pending++
	p.inflight[key] = struct{}{}
	p.mu.Unlock()

	p.submitted.Add(1)

	select {
	case p.jobs <- job{key: key, fn: fn}:
		return nil
	case <-p.shutdown:
		p.complete(Failure(key, errors.ErrRunnerClosed))
		return fmt.Errorf("submit %s: %w", key, errors.ErrRunnerClosed)
	}
}

// AwaitAll blocks until every submitted job has a result or ctx is done.
func (p *Pool) AwaitAll(ctx context.Context) error {
	p.mu.Lock()
	idle := p.idle
	p.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Result returns the outcome stored under key. The boolean is false while
// the job is still running or when the key is unknown.
func (p *Pool) Result(key string) (Result, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	r, ok := p.results[key]
	return r, ok
}

// Forget drops the stored outcomes for keys.
func (p *Pool) Forget(keys ...string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, k := range keys {
		delete(p.results, k)
	}
}

// Shutdown stops the workers. Jobs still queued complete with
// ErrRunnerClosed. It is safe to call more than once.
func (p *Pool) Shutdown() {
	p.once.Do(func() {
		p.mu.Lock()
		p.closed = true
		p.mu.Unlock()

		close(p.shutdown)

		// No Submit is mid-send past this point.
		p.sendMu.Lock()
		p.sendMu.Unlock()

		p.wg.Wait()

		dropped := 0
	drain:
		for {
			select {
			case j := <-p.jobs:
				p.complete(Failure(j.key, errors.ErrRunnerClosed))
				dropped++
			default:
				break drain
			}
		}

		log.Debug("job pool stopped",
			"completed", p.completed.Load(),
			"failed", p.failed.Load(),
			"dropped", dropped)
	})
}

// Stats returns pool statistics.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	pending := p.pending
	stored := len(p.results)
	p.mu.Unlock()

	return Stats{
		Workers:   p.workers,
		Pending:   pending,
		Stored:    stored,
		Active:    int(p.activeWorkers.Load()),
		Submitted: p.submitted.Load(),
		Completed: p.completed.Load(),
		Failed:    p.failed.Load(),
		Panics:    p.panics.Load(),
	}
}

// =============================================================================
// Worker
// =============================================================================

func (p *Pool) worker() {
	defer p.wg.Done()

	for {
		select {
		case j := <-p.jobs:
			p.complete(p.executeWithRecovery(j))
		case <-p.shutdown:
			return
		}
	}
}

// executeWithRecovery runs a job and converts a panic into a failure.
func (p *Pool) executeWithRecovery(j job) (result Result) {
	p.activeWorkers.Add(1)

	defer func() {
		p.activeWorkers.Add(-1)

		if r := recover(); r != nil {
			p.panics.Add(1)
			log.Error("panic in job execution",
				"key", j.key,
				"panic", r)

			result = Failure(j.key, fmt.Errorf("job %s: %w: %v", j.key, errors.ErrWorkerPanic, r))
		}
	}()

	v, err := j.fn()
	if err != nil {
		return Failure(j.key, err)
	}
	return Success(j.key, v)
}

func (p *Pool) complete(r Result) {
	if r.OK() {
		p.completed.Add(1)
	} else {
		p.failed.Add(1)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	delete(p.inflight, r.Key)
	p.results[r.Key] = r
	p.pending--
	if p.pending == 0 {
		close(p.idle)
	}
}
