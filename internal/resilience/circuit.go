package resilience

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/rfp-evaluator/internal/logger"
)

// CircuitState is the state of one provider circuit.
type CircuitState int

const (
	CircuitClosed CircuitState = iota
	CircuitOpen
	CircuitHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half_open"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// CircuitConfig configures every circuit held by Breakers.
type CircuitConfig struct {
	// FailureThreshold is the number of failures inside FailureWindow that opens the circuit.
	FailureThreshold int `mapstructure:"failure-threshold"`
	// FailureWindow is the rolling window failures are counted in.
	FailureWindow time.Duration `mapstructure:"failure-window"`
	// OpenState is how long an open circuit rejects calls before probing.
	OpenState time.Duration `mapstructure:"open-state"`
	// HalfOpenSuccesses is the number of consecutive probe successes that close the circuit.
	HalfOpenSuccesses int `mapstructure:"half-open-successes"`
}

// DefaultCircuitConfig returns the production defaults.
func DefaultCircuitConfig() CircuitConfig {
	return CircuitConfig{
		FailureThreshold:  5,
		FailureWindow:     time.Minute,
		OpenState:         30 * time.Second,
		HalfOpenSuccesses: 2,
	}
}

type circuit struct {
	mu                sync.Mutex
	state             CircuitState
	failureCount      int
	windowStartAt     time.Time
	openUntilAt       time.Time
	halfOpenSuccesses int
}

// CircuitSnapshot is a copy of one circuit's state.
type CircuitSnapshot struct {
	State             CircuitState
	FailureCount      int
	WindowStartAt     time.Time
	OpenUntilAt       time.Time
	HalfOpenSuccesses int
}

// Breakers holds one circuit per provider key.
type Breakers struct {
	cfg    CircuitConfig
	now    func() time.Time
	logger *zap.Logger

	mu       sync.Mutex
	circuits map[string]*circuit
}

// NewBreakers creates an empty circuit table. Zero config fields take defaults.
func NewBreakers(cfg CircuitConfig, l *zap.Logger) *Breakers {
	def := DefaultCircuitConfig()
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = def.FailureThreshold
	}
	if cfg.FailureWindow <= 0 {
		cfg.FailureWindow = def.FailureWindow
	}
	if cfg.OpenState <= 0 {
		cfg.OpenState = def.OpenState
	}
	if cfg.HalfOpenSuccesses <= 0 {
		cfg.HalfOpenSuccesses = def.HalfOpenSuccesses
	}
	return &Breakers{
		cfg:      cfg,
		now:      time.Now,
		logger:   logger.OrNop(l),
		circuits: make(map[string]*circuit),
	}
}

// CanExecute reports whether a call to key may go out. An open circuit whose
// open window has elapsed moves to half-open and lets the probe through.
func (b *Breakers) CanExecute(key string) bool {
	c := b.circuit(key)
	now := b.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case CircuitOpen:
		if now.Before(c.openUntilAt) {
			return false
		}
		c.state = CircuitHalfOpen
		c.halfOpenSuccesses = 0
		b.logger.Info("circuit half-open", zap.String("provider", key))
		return true
	default:
		return true
	}
}

// Allow is CanExecute expressed as an error.
func (b *Breakers) Allow(key string) error {
	if !b.CanExecute(key) {
		return fmt.Errorf("%w for %q", ErrCircuitOpen, key)
	}
	return nil
}

// RecordSuccess registers a successful call to key.
func (b *Breakers) RecordSuccess(key string) {
	c := b.circuit(key)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != CircuitHalfOpen {
		return
	}

	c.halfOpenSuccesses++
	if c.halfOpenSuccesses >= b.cfg.HalfOpenSuccesses {
		c.state = CircuitClosed
		c.failureCount = 0
		c.halfOpenSuccesses = 0
		c.windowStartAt = time.Time{}
		c.openUntilAt = time.Time{}
		b.logger.Info("circuit closed", zap.String("provider", key))
	}
}

// RecordFailure registers a failed call to key.
func (b *Breakers) RecordFailure(key string) {
	c := b.circuit(key)
	now := b.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case CircuitHalfOpen:
		b.open(c, key, now)
	case CircuitOpen:
		// calls should not be going out; nothing to count
	default:
		if c.windowStartAt.IsZero() || now.Sub(c.windowStartAt) > b.cfg.FailureWindow {
			c.windowStartAt = now
			c.failureCount = 0
		}
		c.failureCount++
		if c.failureCount >= b.cfg.FailureThreshold {
			b.open(c, key, now)
		}
	}
}

// State returns the current state of key without advancing it.
func (b *Breakers) State(key string) CircuitState {
	return b.Snapshot(key).State
}

// Snapshot copies the state of key.
func (b *Breakers) Snapshot(key string) CircuitSnapshot {
	c := b.circuit(key)

	c.mu.Lock()
	defer c.mu.Unlock()

	return CircuitSnapshot{
		State:             c.state,
		FailureCount:      c.failureCount,
		WindowStartAt:     c.windowStartAt,
		OpenUntilAt:       c.openUntilAt,
		HalfOpenSuccesses: c.halfOpenSuccesses,
	}
}

// Reset closes every circuit.
func (b *Breakers) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.circuits = make(map[string]*circuit)
}

// open must be called with c.mu held.
func (b *Breakers) open(c *circuit, key string, now time.Time) {
	c.state = CircuitOpen
	c.openUntilAt = now.Add(b.cfg.OpenState)
	c.halfOpenSuccesses = 0
	b.logger.Warn("circuit opened",
		zap.String("provider", key),
		zap.Int("failures", c.failureCount),
		zap.Time("open_until", c.openUntilAt),
	)
}

func (b *Breakers) circuit(key string) *circuit {
	b.mu.Lock()
	defer b.mu.Unlock()

	c, ok := b.circuits[key]
	if !ok {
		c = &circuit{}
		b.circuits[key] = c
	}
	return c
}
