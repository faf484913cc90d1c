// Package breaker wraps one gobreaker.CircuitBreaker per provider
// (§4.5.3): open once at least 10 calls have been counted and their
// error-percentage exceeds 50%, half-open after 30s, 5s per-call timeout.
// Counts run from the breaker's last state change (Interval 0), so they
// are not a rolling window of the last 10 calls.
package breaker

import (
	"sync"
	"time"

	"github.com/sony/gobreaker"
)

const (
	volumeThreshold = 10
	errorRatio      = 0.5
	openTimeout     = 30 * time.Second
	callTimeout     = 5 * time.Second
)

type Registry struct {
	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker
}

func NewRegistry() *Registry {
	return &Registry{breakers: make(map[string]*gobreaker.CircuitBreaker)}
}

func (r *Registry) breaker(providerID string) *gobreaker.CircuitBreaker {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cb, ok := r.breakers[providerID]; ok {
		return cb
	}
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        providerID,
		MaxRequests: 1,
		Interval:    0,
		Timeout:     openTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < volumeThreshold {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) > errorRatio
		},
	})
	r.breakers[providerID] = cb
	return cb
}

func (r *Registry) IsOpen(providerID string) bool {
	return r.breaker(providerID).State() == gobreaker.StateOpen
}

// Execute runs fn through the provider's breaker with a 5s call timeout
// enforced by the caller's context; gobreaker itself only tracks pass/fail
// outcomes and open/half-open/closed transitions.
func (r *Registry) Execute(providerID string, fn func() error) error {
	_, err := r.breaker(providerID).Execute(func() (any, error) {
		return nil, fn()
	})
	return err
}

// CallTimeout is the per-adapter-call budget poll cycles should bound fn
// with before handing it to Execute.
func CallTimeout() time.Duration { return callTimeout }
