package routing

import (
	"sync"
	"time"

	"github.com/RogueTeam/remit/rails"
	"github.com/RogueTeam/remit/utils"
	"github.com/sirupsen/logrus"
)

type BreakerState int

const (
	BreakerClosed BreakerState = iota
	BreakerOpen
	BreakerHalfOpen
)

func (s BreakerState) String() (name string) {
	switch s {
	case BreakerClosed:
		return "CLOSED"
	case BreakerOpen:
		return "OPEN"
	case BreakerHalfOpen:
		return "HALF_OPEN"
	default:
		return "UNKNOWN"
	}
}

type BreakerConfig struct {
	// Consecutive rail failures before the rail is taken out of selection
	MaxFailures int `yaml:"max-failures"`
	// Time the rail stays out before a trial request is let through
	Cooldown time.Duration `yaml:"cooldown"`
	// Consecutive successes needed to close from half open
	SuccessThreshold int `yaml:"success-threshold"`
}

// Breaker tracks the health of one rail. Only failures that blame the rail
// count, a declined card says nothing about the rail
type Breaker struct {
	mu          sync.Mutex
	rail        rails.Rail
	config      BreakerConfig
	clock       utils.Clock
	logger      logrus.FieldLogger
	state       BreakerState
	failures    int
	successes   int
	lastFailure time.Time
	// Set while the single half open trial request is in flight
	trial      bool
	trialStart time.Time
}

func NewBreaker(rail rails.Rail, config BreakerConfig, clock utils.Clock, logger logrus.FieldLogger) (b *Breaker) {
	if config.MaxFailures <= 0 {
		config.MaxFailures = 5
	}
	if config.Cooldown <= 0 {
		config.Cooldown = time.Minute
	}
	if config.SuccessThreshold <= 0 {
		config.SuccessThreshold = 1
	}
	return &Breaker{
		rail:   rail,
		config: config,
		clock:  clock,
		logger: logger,
	}
}

// Must be called with the lock held
func (b *Breaker) setState(state BreakerState) {
	if b.state == state {
		return
	}
	b.logger.Infof("[%s] Circuit breaker state changed: %s -> %s", b.rail, b.state, state)
	b.state = state
}

// Must be called with the lock held
func (b *Breaker) admits(now time.Time) (admits bool) {
	switch b.state {
	case BreakerOpen:
		return now.Sub(b.lastFailure) >= b.config.Cooldown
	case BreakerHalfOpen:
		// A trial that never recorded an outcome expires after a cooldown
		return !b.trial || now.Sub(b.trialStart) >= b.config.Cooldown
	default:
		return true
	}
}

// Available reports whether Allow would let a request through, without
// changing the breaker state
func (b *Breaker) Available() (available bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.admits(b.clock.Now())
}

// Allow reports whether the rail may take new work. Once the cooldown is over
// a single trial request is admitted until its outcome is recorded
func (b *Breaker) Allow() (allowed bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.clock.Now()
	if !b.admits(now) {
		return false
	}
	switch b.state {
	case BreakerOpen:
		b.setState(BreakerHalfOpen)
		b.successes = 0
		fallthrough
	case BreakerHalfOpen:
		b.trial = true
		b.trialStart = now
	}
	return true
}

func (b *Breaker) State() (state BreakerState) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func blamesRail(err error) (blames bool) {
	e := rails.Classify(err)
	return e != nil && e.FallbackEligible
}

func (b *Breaker) Record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.trial = false

	switch {
	case err == nil:
		b.failures = 0
		b.successes++
		if b.state == BreakerHalfOpen && b.successes >= b.config.SuccessThreshold {
			b.setState(BreakerClosed)
		}
	case blamesRail(err):
		b.failures++
		b.successes = 0
		b.lastFailure = b.clock.Now()
		switch b.state {
		case BreakerClosed:
			if b.failures >= b.config.MaxFailures {
				b.logger.Warnf("[%s] Circuit breaker OPENED after %d failures", b.rail, b.failures)
				b.setState(BreakerOpen)
			}
		case BreakerHalfOpen:
			b.setState(BreakerOpen)
		}
	}
}
