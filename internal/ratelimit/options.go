package ratelimit

import (
	"time"

	"github.com/jaevor/go-nanoid"
	"go.uber.org/zap"
)

// DefaultKeyPrefix namespaces limiter keys in a shared store.
const DefaultKeyPrefix = "ratelimit:"

const tokenLength = 21

// Outcome classifies an evaluation for observers.
type Outcome string

const (
	OutcomeAllowed    Outcome = "allowed"
	OutcomeRejected   Outcome = "rejected"
	OutcomeFailedOpen Outcome = "failed_open"
)

// Observer is notified once per evaluation.
type Observer interface {
	Observe(outcome Outcome)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(outcome Outcome)

func (f ObserverFunc) Observe(outcome Outcome) { f(outcome) }

type noopObserver struct{}

func (noopObserver) Observe(Outcome) {}

// TokenGenerator produces the random part of an event member.
type TokenGenerator func() string

// Option configures a SlidingWindowLimiter.
type Option func(*SlidingWindowLimiter)

// WithClock replaces the wall clock, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(l *SlidingWindowLimiter) {
		if now != nil {
			l.now = now
		}
	}
}

// WithKeyPrefix sets the namespace prepended to every identifier.
func WithKeyPrefix(prefix string) Option {
	return func(l *SlidingWindowLimiter) {
		l.prefix = prefix
	}
}

// WithTokenGenerator replaces the random member token source.
func WithTokenGenerator(gen TokenGenerator) Option {
	return func(l *SlidingWindowLimiter) {
		if gen != nil {
			l.newToken = gen
		}
	}
}

// WithLogger sets the logger used to report store failures.
func WithLogger(logger *zap.Logger) Option {
	return func(l *SlidingWindowLimiter) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// WithObserver registers an observer for evaluation outcomes.
func WithObserver(observer Observer) Option {
	return func(l *SlidingWindowLimiter) {
		if observer != nil {
			l.observer = observer
		}
	}
}

func defaultTokenGenerator() TokenGenerator {
	// nanoid.Standard only fails for lengths outside 2..255.
	gen, err := nanoid.Standard(tokenLength)
	if err != nil {
		panic(err)
	}

	return gen
}
