// Package ratelimit implements the crawler rate limiter: a global and
// per-domain token bucket gating outbound requests, with a per-domain
// circuit breaker that trips on hostile responses.
package ratelimit

import (
	"context"
	"net/url"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/clausevault/clausevault/internal/clauseerr"
)

// Config tunes the limiter. Defaults: QPS 0.8 globally and per
// domain, breaker enabled with a 300s cooldown.
type Config struct {
	GlobalQPS             float64
	PerDomainQPS          float64
	CircuitBreakerEnabled bool
	CooldownSec           int
}

// Limiter gates outbound crawl requests: acquire/
// try_acquire/record_success/record_failure, global bucket acquired before
// the per-domain bucket so a new domain never bypasses system-wide load
// bounds.
type Limiter struct {
	cfg    Config
	global *tokenBucket

	mu      sync.Mutex
	domains map[string]*domainState
	nowFn   func() time.Time
	logger  *zap.Logger
}

type domainState struct {
	bucket  *tokenBucket
	breaker *circuitBreaker
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithLogger attaches a zap logger; nil-safe if never set.
func WithLogger(l *zap.Logger) Option {
	return func(lim *Limiter) { lim.logger = l }
}

// withNow overrides the limiter's clock; used by tests to avoid real sleeps.
func withNow(nowFn func() time.Time) Option {
	return func(lim *Limiter) { lim.nowFn = nowFn }
}

// New builds a Limiter from cfg.
func New(cfg Config, opts ...Option) *Limiter {
	lim := &Limiter{
		cfg:     cfg,
		domains: make(map[string]*domainState),
		nowFn:   time.Now,
	}
	for _, opt := range opts {
		opt(lim)
	}
	lim.global = newTokenBucket(cfg.GlobalQPS, lim.nowFn)
	return lim
}

func (l *Limiter) domainFor(rawURL string) (string, *domainState, error) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "", nil, clauseerr.New(clauseerr.InvalidInput, "ratelimit.domainFor", err)
	}
	host := u.Hostname()

	l.mu.Lock()
	defer l.mu.Unlock()
	ds, ok := l.domains[host]
	if !ok {
		ds = &domainState{
			bucket:  newTokenBucket(l.cfg.PerDomainQPS, l.nowFn),
			breaker: newCircuitBreaker(time.Duration(l.cfg.CooldownSec)*time.Second, l.nowFn),
		}
		l.domains[host] = ds
	}
	return host, ds, nil
}

// Acquire blocks until a token is available under both the global and
// per-domain bucket, or returns a CircuitOpen error immediately if the
// domain's breaker is tripped. It honors ctx cancellation while waiting.
func (l *Limiter) Acquire(ctx context.Context, rawURL string) error {
	host, ds, err := l.domainFor(rawURL)
	if err != nil {
		return err
	}

	if l.cfg.CircuitBreakerEnabled && !ds.breaker.allow() {
		return clauseerr.New(clauseerr.CircuitOpen, "ratelimit.Acquire", nil)
	}

	if err := l.waitForToken(ctx, l.global); err != nil {
		return err
	}
	if err := l.waitForToken(ctx, ds.bucket); err != nil {
		return err
	}

	if l.logger != nil {
		l.logger.Debug("ratelimit: acquired", zap.String("domain", host))
	}
	return nil
}

// TryAcquire is the non-blocking variant of Acquire: it returns immediately
// with ok=false rather than waiting if either bucket is empty or the
// domain's breaker is open.
func (l *Limiter) TryAcquire(rawURL string) (ok bool, err error) {
	_, ds, err := l.domainFor(rawURL)
	if err != nil {
		return false, err
	}
	if l.cfg.CircuitBreakerEnabled && !ds.breaker.allow() {
		return false, clauseerr.New(clauseerr.CircuitOpen, "ratelimit.TryAcquire", nil)
	}
	if !l.global.tryTake() {
		return false, nil
	}
	if !ds.bucket.tryTake() {
		l.global.refund()
		return false, nil
	}
	return true, nil
}

func (l *Limiter) waitForToken(ctx context.Context, b *tokenBucket) error {
	for {
		if b.tryTake() {
			return nil
		}
		d := b.waitDuration()
		if d <= 0 {
			d = time.Millisecond
		}
		timer := time.NewTimer(d)
		select {
		case <-ctx.Done():
			timer.Stop()
			return clauseerr.New(clauseerr.Timeout, "ratelimit.waitForToken", ctx.Err())
		case <-timer.C:
		}
	}
}

// RecordSuccess resets the domain's consecutive-failure counter and closes
// its breaker.
func (l *Limiter) RecordSuccess(rawURL string) error {
	_, ds, err := l.domainFor(rawURL)
	if err != nil {
		return err
	}
	ds.breaker.recordSuccess()
	return nil
}

// RecordFailure advances the domain's consecutive-failure counter, tripping
// the breaker open on a 403/429 status or upon reaching tripThreshold
// consecutive failures.
func (l *Limiter) RecordFailure(rawURL string, statusCode int) error {
	_, ds, err := l.domainFor(rawURL)
	if err != nil {
		return err
	}
	ds.breaker.recordFailure(statusCode)
	return nil
}
