package ledger

import (
	"errors"
	"time"

	"ess-loan-gateway/internal/pkg/error_handling"

	"github.com/sony/gobreaker"
)

// breaker trips after threshold consecutive unavailable responses and lets one probe through after cooldown.
type breaker struct {
	cb *gobreaker.CircuitBreaker
}

func newBreaker(name string, threshold int, cooldown time.Duration) *breaker {
	return &breaker{cb: gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= uint32(threshold)
		},
		IsSuccessful: func(err error) bool {
			var ledgerErr *error_handling.LedgerError
			return !errors.As(err, &ledgerErr) || !ledgerErr.Unavailable
		},
	})}
}

// run calls fn unless the circuit is open or its probe is already in flight, in which case it
// answers ErrLedgerUnavailable.
func (b *breaker) run(fn func() error) error {
	_, err := b.cb.Execute(func() (interface{}, error) { return nil, fn() })
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return ErrLedgerUnavailable
	}
	return err
}
