package tts

import (
	"context"
	"errors"
	"fmt"

	"github.com/lexiqai/speech-bench/internal/resilience"
)

// errServiceCanceled marks a transient cancellation as a breaker failure
// without turning it into a call error for the caller.
var errServiceCanceled = errors.New("speech service canceled synthesis")

// BreakerSynthesizer fails fast while the speech service keeps misbehaving
type BreakerSynthesizer struct {
	next    Synthesizer
	breaker *resilience.CircuitBreaker
}

// WithCircuitBreaker wraps next so every call goes through cb
func WithCircuitBreaker(next Synthesizer, cb *resilience.CircuitBreaker) *BreakerSynthesizer {
	return &BreakerSynthesizer{next: next, breaker: cb}
}

// Breaker returns the circuit breaker guarding the wrapped synthesizer
func (b *BreakerSynthesizer) Breaker() *resilience.CircuitBreaker {
	return b.breaker
}

// SpeakText forwards to the wrapped synthesizer unless the circuit is open
func (b *BreakerSynthesizer) SpeakText(ctx context.Context, text string) (*Result, error) {
	var result *Result

	err := b.breaker.Call(func() error {
		var err error
		result, err = b.next.SpeakText(ctx, text)
		if err != nil {
			return err
		}
		if result != nil && result.Reason == ReasonCanceled && result.Cancellation != nil && result.Cancellation.ErrorCode.Transient() {
			return errServiceCanceled
		}
		return nil
	})

	switch {
	case errors.Is(err, errServiceCanceled):
		return result, nil
	case errors.Is(err, resilience.ErrCircuitOpen):
		return nil, fmt.Errorf("%s: %w", b.breaker.Name(), err)
	case err != nil:
		return nil, err
	}

	return result, nil
}
