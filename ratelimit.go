package access

import (
	"context"
	"sync"
	"time"
)

// DefaultMaxLoginAttempts is the number of failed attempts an identifier
// gets inside the window before being blocked.
const DefaultMaxLoginAttempts = 5

// DefaultAttemptWindow is the sliding window the attempts are counted over.
const DefaultAttemptWindow = 15 * time.Minute

// AttemptStore persists failed-attempt timestamps per identifier. The
// default store is process-local; redisrate provides a shared one.
type AttemptStore interface {
	RecordAttempt(ctx context.Context, identifier string, at time.Time) error
	CountAttempts(ctx context.Context, identifier string, window time.Duration, reference time.Time) (int, error)
	Reset(ctx context.Context, identifier string) error
}

// LoginRateLimiter tracks failed sign-in attempts and decides block state.
// It is advisory: the backend enforces its own limits, so store failures
// are logged and treated as not-blocked rather than locking everyone out.
type LoginRateLimiter struct {
	store       AttemptStore
	maxAttempts int
	window      time.Duration
	now         func() time.Time
	logger      Logger
}

// RateLimiterOption customizes limiter construction.
type RateLimiterOption func(*LoginRateLimiter)

// WithRateLimiterStore overrides the backing attempt store.
func WithRateLimiterStore(store AttemptStore) RateLimiterOption {
	return func(l *LoginRateLimiter) {
		if store != nil {
			l.store = store
		}
	}
}

// WithRateLimiterThreshold overrides attempts and window.
func WithRateLimiterThreshold(maxAttempts int, window time.Duration) RateLimiterOption {
	return func(l *LoginRateLimiter) {
		if maxAttempts > 0 {
			l.maxAttempts = maxAttempts
		}
		if window > 0 {
			l.window = window
		}
	}
}

// WithRateLimiterClock injects a custom clock (useful for tests).
func WithRateLimiterClock(clock func() time.Time) RateLimiterOption {
	return func(l *LoginRateLimiter) {
		if clock != nil {
			l.now = clock
		}
	}
}

// WithRateLimiterLogger overrides the logger.
func WithRateLimiterLogger(logger Logger) RateLimiterOption {
	return func(l *LoginRateLimiter) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// NewLoginRateLimiter returns a limiter backed by an in-memory store unless
// configured otherwise.
func NewLoginRateLimiter(opts ...RateLimiterOption) *LoginRateLimiter {
	l := &LoginRateLimiter{
		store:       newMemoryAttemptStore(),
		maxAttempts: DefaultMaxLoginAttempts,
		window:      DefaultAttemptWindow,
		now:         time.Now,
		logger:      defLogger{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(l)
		}
	}

	return l
}

// IsBlocked reports whether the identifier reached the attempt threshold
// within the window. Unknown identifiers are never blocked.
func (l *LoginRateLimiter) IsBlocked(ctx context.Context, identifier string) bool {
	count, err := l.store.CountAttempts(ctx, identifier, l.window, l.now())
	if err != nil {
		l.logger.Warn("rate limiter count failed, allowing attempt", "identifier", identifier, "error", err)
		return false
	}
	return count >= l.maxAttempts
}

// RecordAttempt registers a failed attempt for the identifier.
func (l *LoginRateLimiter) RecordAttempt(ctx context.Context, identifier string) {
	if err := l.store.RecordAttempt(ctx, identifier, l.now()); err != nil {
		l.logger.Warn("rate limiter record failed", "identifier", identifier, "error", err)
	}
}

// Reset clears the identifier's record, restoring full remaining attempts.
func (l *LoginRateLimiter) Reset(ctx context.Context, identifier string) {
	if err := l.store.Reset(ctx, identifier); err != nil {
		l.logger.Warn("rate limiter reset failed", "identifier", identifier, "error", err)
	}
}

// Remaining returns how many attempts the identifier has left in the
// current window, never below zero.
func (l *LoginRateLimiter) Remaining(ctx context.Context, identifier string) int {
	count, err := l.store.CountAttempts(ctx, identifier, l.window, l.now())
	if err != nil {
		l.logger.Warn("rate limiter count failed", "identifier", identifier, "error", err)
		return l.maxAttempts
	}

	remaining := l.maxAttempts - count
	if remaining < 0 {
		return 0
	}
	return remaining
}

// MaxAttempts returns the configured threshold.
func (l *LoginRateLimiter) MaxAttempts() int {
	return l.maxAttempts
}

// memoryAttemptStore keeps attempt timestamps per identifier in process
// memory. State is lost on restart, which is acceptable for an advisory
// limiter backed by server-side enforcement.
type memoryAttemptStore struct {
	mu       sync.Mutex
	attempts map[string][]time.Time
}

func newMemoryAttemptStore() *memoryAttemptStore {
	return &memoryAttemptStore{
		attempts: map[string][]time.Time{},
	}
}

func (m *memoryAttemptStore) RecordAttempt(_ context.Context, identifier string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attempts[identifier] = append(m.attempts[identifier], at)
	return nil
}

func (m *memoryAttemptStore) CountAttempts(_ context.Context, identifier string, window time.Duration, reference time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stamps, ok := m.attempts[identifier]
	if !ok {
		return 0, nil
	}

	cutoff := reference.Add(-window)
	kept := stamps[:0]
	for _, ts := range stamps {
		if ts.After(cutoff) && !ts.After(reference) {
			kept = append(kept, ts)
		}
	}

	if len(kept) == 0 {
		delete(m.attempts, identifier)
		return 0, nil
	}

	m.attempts[identifier] = kept
	return len(kept), nil
}

func (m *memoryAttemptStore) Reset(_ context.Context, identifier string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.attempts, identifier)
	return nil
}

var _ AttemptStore = (*memoryAttemptStore)(nil)
