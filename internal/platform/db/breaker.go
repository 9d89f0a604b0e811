package db

import (
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"

	"github.com/ehr/ehrcore/internal/platform/apperr"
	"github.com/ehr/ehrcore/internal/platform/metrics"
)

// BreakerConfig tunes the storage circuit breaker.
type BreakerConfig struct {
	Name             string
	FailureThreshold uint32
	Timeout          time.Duration
	Logger           zerolog.Logger
	Metrics          *metrics.Metrics
}

// Breaker trips after consecutive backend failures so that callers fail
// fast with a StorageError instead of piling onto a dead database.
type Breaker struct {
	cb *gobreaker.CircuitBreaker[any]
}

// NewBreaker builds a Breaker. A zero FailureThreshold defaults to 5.
func NewBreaker(cfg BreakerConfig) *Breaker {
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.Name == "" {
		cfg.Name = "storage"
	}

	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: 1,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		// A missing row is an answer, not a backend failure.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, apperr.ErrNotFound)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			cfg.Logger.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("circuit breaker state changed")
			cfg.Metrics.SetBreakerState(name, float64(to))
		},
	}
	cfg.Metrics.SetBreakerState(cfg.Name, float64(gobreaker.StateClosed))
	return &Breaker{cb: gobreaker.NewCircuitBreaker[any](settings)}
}

// State returns the current breaker state.
func (b *Breaker) State() gobreaker.State {
	return b.cb.State()
}

// Guard runs fn through b and converts every failure other than ErrNotFound
// into an *apperr.StorageError tagged with op. A nil breaker only converts.
func Guard[T any](b *Breaker, op string, fn func() (T, error)) (T, error) {
	var zero T
	if b == nil {
		v, err := fn()
		if err != nil {
			return zero, apperr.Storage(op, err)
		}
		return v, nil
	}

	out, err := b.cb.Execute(func() (any, error) {
		return fn()
	})
	if err != nil {
		return zero, apperr.Storage(op, err)
	}
	v, _ := out.(T)
	return v, nil
}

// GuardErr is Guard for operations that return only an error.
func GuardErr(b *Breaker, op string, fn func() error) error {
	_, err := Guard(b, op, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}
