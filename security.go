package access

import (
	"context"
	"sync"
	"time"
)

// Inactivity defaults: warn five minutes before a thirty minute timeout,
// checking once a minute. Minute granularity is deliberate; the activity
// timestamp changes far too often for a single rescheduled timer.
const (
	DefaultSessionTimeout       = 30 * time.Minute
	DefaultTimeoutWarningLead   = 5 * time.Minute
	DefaultActivityPollInterval = time.Minute
)

type sessionPhase string

const (
	phaseNormal   sessionPhase = "normal"
	phaseWarning  sessionPhase = "warning"
	phaseTimedOut sessionPhase = "timed_out"
)

// TimeoutHandler is invoked exactly once per continuous inactive period
// when the session timeout is crossed. The surrounding application uses it
// to force sign-out.
type TimeoutHandler func()

// Coordinator composes the login rate limiter with inactivity tracking into
// a single policy surface. It owns the SecurityState snapshot the UI reads.
type Coordinator struct {
	limiter      *LoginRateLimiter
	timeout      time.Duration
	warningLead  time.Duration
	pollInterval time.Duration
	onTimeout    TimeoutHandler
	sink         ActivitySink
	logger       Logger
	now          func() time.Time

	mu           sync.Mutex
	phase        sessionPhase
	lastActivity time.Time
	state        SecurityState
	stopCh       chan struct{}
	stopOnce     sync.Once
	started      bool
}

// CoordinatorOption customizes coordinator construction.
type CoordinatorOption func(*Coordinator)

// WithCoordinatorClock injects a custom clock (useful for tests).
func WithCoordinatorClock(clock func() time.Time) CoordinatorOption {
	return func(c *Coordinator) {
		if clock != nil {
			c.now = clock
		}
	}
}

// WithCoordinatorThresholds overrides timeout, warning lead and poll
// interval. Zero values keep the defaults.
func WithCoordinatorThresholds(timeout, warningLead, pollInterval time.Duration) CoordinatorOption {
	return func(c *Coordinator) {
		if timeout > 0 {
			c.timeout = timeout
		}
		if warningLead > 0 {
			c.warningLead = warningLead
		}
		if pollInterval > 0 {
			c.pollInterval = pollInterval
		}
	}
}

// WithCoordinatorActivitySink sets the sink used for timeout events.
func WithCoordinatorActivitySink(sink ActivitySink) CoordinatorOption {
	return func(c *Coordinator) {
		c.sink = normalizeActivitySink(sink)
	}
}

// WithCoordinatorLogger overrides the logger.
func WithCoordinatorLogger(logger Logger) CoordinatorOption {
	return func(c *Coordinator) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewCoordinator returns a coordinator around the given limiter. The
// timeout handler is mandatory wiring, not ambient state: pass the sign-out
// trigger here instead of broadcasting through globals.
func NewCoordinator(limiter *LoginRateLimiter, onTimeout TimeoutHandler, opts ...CoordinatorOption) *Coordinator {
	if limiter == nil {
		limiter = NewLoginRateLimiter()
	}

	c := &Coordinator{
		limiter:      limiter,
		timeout:      DefaultSessionTimeout,
		warningLead:  DefaultTimeoutWarningLead,
		pollInterval: DefaultActivityPollInterval,
		onTimeout:    onTimeout,
		sink:         noopActivitySink{},
		logger:       defLogger{},
		now:          time.Now,
		phase:        phaseNormal,
		stopCh:       make(chan struct{}),
	}

	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}

	c.lastActivity = c.now()
	c.state = SecurityState{AttemptsRemaining: limiter.MaxAttempts()}

	return c
}

// Start launches the inactivity poll. It returns immediately; Stop halts
// the poll and must be called on teardown to avoid post-teardown firing.
func (c *Coordinator) Start(ctx context.Context) {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return
	}
	c.started = true
	c.mu.Unlock()

	go c.poll(ctx)
}

// Stop halts the inactivity poll.
func (c *Coordinator) Stop() {
	c.stopOnce.Do(func() {
		close(c.stopCh)
	})
}

func (c *Coordinator) poll(ctx context.Context) {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.stopCh:
			return
		case <-ticker.C:
			c.evaluate(ctx)
		}
	}
}

// evaluate runs one poll tick: compare elapsed inactivity against the
// warning and timeout thresholds and transition accordingly. The timeout
// handler fires on the single tick that crosses the threshold; later ticks
// in the same inactive period are no-ops until activity resets the phase.
func (c *Coordinator) evaluate(ctx context.Context) {
	c.mu.Lock()

	elapsed := c.now().Sub(c.lastActivity)
	var fire bool

	switch {
	case elapsed >= c.timeout:
		if c.phase != phaseTimedOut {
			c.phase = phaseTimedOut
			c.state.SessionTimeoutWarning = false
			fire = true
		}
	case elapsed >= c.timeout-c.warningLead:
		if c.phase == phaseNormal {
			c.phase = phaseWarning
			c.state.SessionTimeoutWarning = true
		}
	default:
		c.phase = phaseNormal
		c.state.SessionTimeoutWarning = false
	}

	handler := c.onTimeout
	c.mu.Unlock()

	if !fire {
		return
	}

	c.recordActivity(ctx, ActivityEvent{
		EventType: ActivityEventSessionTimeout,
		Actor:     ActorRef{Type: "system"},
		Metadata:  map[string]any{"inactive_for": elapsed.String()},
	})

	if handler != nil {
		handler()
	}
}

// Touch registers user activity: any pointer, key, scroll or touch event
// funnels here. It resets the inactivity clock and returns the coordinator
// to the normal phase from any state.
func (c *Coordinator) Touch() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastActivity = c.now()
	c.phase = phaseNormal
	c.state.SessionTimeoutWarning = false
}

// State returns the current SecurityState snapshot.
func (c *Coordinator) State() SecurityState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// CheckLoginAllowed rejects identifiers that exhausted their attempts. It
// refreshes the shared snapshot either way.
func (c *Coordinator) CheckLoginAllowed(ctx context.Context, identifier string) error {
	if c.limiter.IsBlocked(ctx, identifier) {
		c.setLimitState(true, 0)
		return ErrTooManyLoginAttempts.WithMetadata(map[string]any{
			"identifier": identifier,
		})
	}

	c.setLimitState(false, c.limiter.Remaining(ctx, identifier))
	return nil
}

// RecordFailedAttempt notes a failed sign-in for the identifier.
func (c *Coordinator) RecordFailedAttempt(ctx context.Context, identifier string) {
	c.limiter.RecordAttempt(ctx, identifier)
	remaining := c.limiter.Remaining(ctx, identifier)
	c.setLimitState(remaining == 0, remaining)
}

// ResetAttempts clears the identifier's limiter record and returns the
// snapshot to defaults. Called after every successful authentication.
func (c *Coordinator) ResetAttempts(ctx context.Context, identifier string) {
	c.limiter.Reset(ctx, identifier)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = SecurityState{AttemptsRemaining: c.limiter.MaxAttempts()}
	c.phase = phaseNormal
	c.lastActivity = c.now()
}

func (c *Coordinator) setLimitState(blocked bool, remaining int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.IsBlocked = blocked
	c.state.AttemptsRemaining = remaining
}

func (c *Coordinator) recordActivity(ctx context.Context, event ActivityEvent) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = c.now()
	}

	sink := normalizeActivitySink(c.sink)
	if err := sink.Record(ctx, event); err != nil {
		c.logger.Warn("coordinator activity sink error: %v", err)
	}
}
