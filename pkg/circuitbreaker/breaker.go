// Package circuitbreaker guards calls to an unreliable dependency with a
// three-state breaker: closed passes traffic, open rejects it outright,
// half-open probes with a limited number of requests after a cooldown.
package circuitbreaker

import (
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

var ErrOpen = errors.New("circuit breaker is open")

type State int

const (
	StateClosed State = iota
	StateHalfOpen
	StateOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateHalfOpen:
		return "half-open"
	case StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

type Config struct {
	// FailureThreshold consecutive failures trip the breaker open.
	FailureThreshold int
	// SuccessThreshold consecutive half-open successes close it again.
	SuccessThreshold int
	// Cooldown is how long the breaker stays open before probing.
	Cooldown time.Duration
	// HalfOpenRequests caps concurrent probes while half-open.
	HalfOpenRequests int
	Logger           *zap.Logger
}

type Breaker struct {
	name             string
	failureThreshold int
	successThreshold int
	cooldown         time.Duration
	halfOpenRequests int
	logger           *zap.Logger

	mu        sync.Mutex
	state     State
	failures  int
	successes int
	inFlight  int
	openedAt  time.Time
}

func New(name string, cfg Config) *Breaker {
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.SuccessThreshold == 0 {
		cfg.SuccessThreshold = 2
	}
	if cfg.Cooldown == 0 {
		cfg.Cooldown = 60 * time.Second
	}
	if cfg.HalfOpenRequests == 0 {
		cfg.HalfOpenRequests = 1
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return &Breaker{
		name:             name,
		failureThreshold: cfg.FailureThreshold,
		successThreshold: cfg.SuccessThreshold,
		cooldown:         cfg.Cooldown,
		halfOpenRequests: cfg.HalfOpenRequests,
		logger:           cfg.Logger,
	}
}

// Execute runs fn if the breaker admits the call and records the outcome.
func (b *Breaker) Execute(fn func() error) error {
	if err := b.admit(); err != nil {
		return err
	}

	err := fn()
	b.record(err == nil)
	return err
}

func (b *Breaker) admit() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateOpen:
		if time.Since(b.openedAt) < b.cooldown {
			return ErrOpen
		}
		b.transition(StateHalfOpen)
		fallthrough
	case StateHalfOpen:
		if b.inFlight >= b.halfOpenRequests {
			return ErrOpen
		}
	}

	b.inFlight++
	return nil
}

func (b *Breaker) record(success bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.inFlight--

	if success {
		b.failures = 0
		if b.state == StateHalfOpen {
			b.successes++
			if b.successes >= b.successThreshold {
				b.transition(StateClosed)
			}
		}
		return
	}

	b.successes = 0
	b.failures++
	if b.state == StateHalfOpen || b.failures >= b.failureThreshold {
		b.transition(StateOpen)
	}
}

func (b *Breaker) transition(to State) {
	if b.state == to {
		return
	}

	from := b.state
	b.state = to
	b.failures = 0
	b.successes = 0
	if to == StateOpen {
		b.openedAt = time.Now()
	}

	b.logger.Info("Circuit breaker state changed",
		zap.String("name", b.name),
		zap.String("from", from.String()),
		zap.String("to", to.String()),
	)
}

func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}
