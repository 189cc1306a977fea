package dispatch

import (
	"context"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// PoolConfig sizes one channel's worker pool. Pools are owned per channel,
// not per tenant, so one tenant's large broadcast cannot monopolize a
// provider's rate limit alone.
type PoolConfig struct {
	Workers       int64
	RatePerSecond float64
	Burst         int
	SendTimeout   time.Duration
}

// Pool bounds concurrent sends on one channel and paces them against the
// provider's rate limit. Every invocation carries an explicit timeout; a
// timed-out send is a sender failure.
type Pool struct {
	sem     *semaphore.Weighted
	limiter *rate.Limiter
	timeout time.Duration
}

// NewPool creates a bounded, rate-limited pool
func NewPool(cfg PoolConfig) *Pool {
	workers := cfg.Workers
	if workers <= 0 {
		workers = 4
	}
	timeout := cfg.SendTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RatePerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), burst)
	}
	return &Pool{
		sem:     semaphore.NewWeighted(workers),
		limiter: limiter,
		timeout: timeout,
	}
}

// Invoke runs one send through the pool: admission, pacing, then the sender
// call under the pool's timeout
func (p *Pool) Invoke(ctx context.Context, sender Sender, destination string, payload Payload) (*SendResult, error) {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer p.sem.Release(1)

	if err := p.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	sendCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	return sender.Send(sendCtx, destination, payload)
}
