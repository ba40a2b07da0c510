package orchestrator

import (
	"context"
	"runtime"
	"sync/atomic"

	"github.com/vaultbuild/vaultbuild/pkg/telemetry"
)

// Pool bounds the number of concurrent compiler invocations. The compiler is
// CPU-heavy; any number of projects may hold a running BuildState, but only
// this many jobs occupy the toolchain at once.
type Pool struct {
	sem     chan struct{}
	queued  atomic.Int64
	metrics *telemetry.Metrics
}

// NewPool creates a pool with the given number of slots. A size of zero or
// less defaults to the number of available CPUs.
func NewPool(size int, metrics *telemetry.Metrics) *Pool {
	if size <= 0 {
		size = runtime.GOMAXPROCS(0)
	}
	p := &Pool{
		sem:     make(chan struct{}, size),
		metrics: metrics,
	}
	if metrics != nil {
		metrics.SetWorkerSlots(float64(size))
	}
	return p
}

// Size returns the pool's slot count.
func (p *Pool) Size() int {
	return cap(p.sem)
}

// InUse returns the number of occupied slots.
func (p *Pool) InUse() int {
	return len(p.sem)
}

// Acquire blocks until a slot frees up or the context is cancelled.
func (p *Pool) Acquire(ctx context.Context) error {
	select {
	case p.sem <- struct{}{}:
		return nil
	default:
	}

	p.setQueued(p.queued.Add(1))
	defer p.setQueued(p.queued.Add(-1))

	select {
	case p.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TryAcquire takes a slot without waiting.
func (p *Pool) TryAcquire() bool {
	select {
	case p.sem <- struct{}{}:
		return true
	default:
		return false
	}
}

// Release frees a slot taken by Acquire or TryAcquire.
func (p *Pool) Release() {
	select {
	case <-p.sem:
	default:
		panic("orchestrator: pool release without acquire")
	}
}

func (p *Pool) setQueued(n int64) {
	if p.metrics != nil {
		p.metrics.SetQueuedBuilds(float64(n))
	}
}
