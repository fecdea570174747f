package resilience

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/rs/zerolog/log"
)

// ReconnectConfig holds configuration for reconnection logic
type ReconnectConfig struct {
	MaxAttempts int           // Maximum number of attempts; 0 means unlimited
	Backoff     time.Duration // Backoff before the second attempt
	Multiplier  float64       // Backoff multiplier for exponential backoff
	MaxBackoff  time.Duration // Maximum backoff duration, before jitter
	Jitter      float64       // Random spread as a fraction of the backoff (0.2 = ±20%)

	// Rand returns a value in [0,1); defaults to math/rand
	Rand func() float64
}

// DefaultReconnectConfig returns the caption transport policy: 500ms base,
// doubling up to 30s, ±20% jitter, retrying until cancelled
func DefaultReconnectConfig() *ReconnectConfig {
	return &ReconnectConfig{
		MaxAttempts: 0,
		Backoff:     500 * time.Millisecond,
		Multiplier:  2.0,
		MaxBackoff:  30 * time.Second,
		Jitter:      0.2,
	}
}

// CalculateBackoff calculates the backoff duration for a given attempt
func CalculateBackoff(attempt int, initialBackoff time.Duration, maxBackoff time.Duration, multiplier float64) time.Duration {
	backoff := float64(initialBackoff) * math.Pow(multiplier, float64(attempt))
	if backoff > float64(maxBackoff) || math.IsInf(backoff, 0) {
		return maxBackoff
	}
	return time.Duration(backoff)
}

// Delay returns the jittered wait before retrying after the given failed
// attempt (0-based)
func (c *ReconnectConfig) Delay(attempt int) time.Duration {
	backoff := CalculateBackoff(attempt, c.Backoff, c.MaxBackoff, c.Multiplier)
	if c.Jitter <= 0 {
		return backoff
	}

	random := rand.Float64
	if c.Rand != nil {
		random = c.Rand
	}
	// Scale by a factor in [1-jitter, 1+jitter)
	factor := 1 + c.Jitter*(2*random()-1)
	return time.Duration(float64(backoff) * factor)
}

// ReconnectFunc is a function that attempts to reconnect. attempt counts
// from 0.
type ReconnectFunc func(attempt int) error

// Reconnect calls fn until it succeeds, the attempts are exhausted or ctx is
// cancelled, waiting with exponential backoff and jitter in between
func Reconnect(ctx context.Context, fn ReconnectFunc, config *ReconnectConfig) error {
	if config == nil {
		config = DefaultReconnectConfig()
	}

	for attempt := 0; config.MaxAttempts <= 0 || attempt < config.MaxAttempts; attempt++ {
		// Check if context is cancelled
		if err := ctx.Err(); err != nil {
			return err
		}

		err := fn(attempt)
		if err == nil {
			if attempt > 0 {
				log.Info().Int("attempts", attempt+1).Msg("Reconnection successful")
			}
			return nil
		}

		// Don't sleep after the last attempt
		if config.MaxAttempts > 0 && attempt >= config.MaxAttempts-1 {
			break
		}

		delay := config.Delay(attempt)
		log.Warn().
			Err(err).
			Int("attempt", attempt+1).
			Dur("retry_in", delay).
			Msg("Reconnection attempt failed")

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	return fmt.Errorf("failed to reconnect after %d attempts", config.MaxAttempts)
}
