// Package boot waits for the preconditions of a shadow session: a working
// network and a plausible wall clock.
//
// Each check is retried at a fixed interval up to a bounded number of
// attempts. When the budget runs out Wait returns ErrBudgetExhausted and the
// process exits non-zero so the supervisor restarts the device.
package boot

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"
)

// ErrBudgetExhausted is returned when a check never passes.
var ErrBudgetExhausted = errors.New("boot: attempt budget exhausted")

// minPlausibleUnix is 2001-09-09. Clocks behind it have not been set.
const minPlausibleUnix = 1_000_000_000

// Logger is the logging surface used during boot.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

// Check is one named precondition.
type Check struct {
	Name  string
	Probe func(ctx context.Context) error
}

// Config bounds the retry loop.
type Config struct {
	Attempts int
	Interval time.Duration
}

// Resolver looks up host names. *net.Resolver satisfies it.
type Resolver interface {
	LookupHost(ctx context.Context, host string) ([]string, error)
}

// NetworkCheck passes once host resolves.
func NetworkCheck(r Resolver, host string) Check {
	if r == nil {
		r = net.DefaultResolver
	}
	return Check{
		Name: "network",
		Probe: func(ctx context.Context) error {
			addrs, err := r.LookupHost(ctx, host)
			if err != nil {
				return err
			}
			if len(addrs) == 0 {
				return fmt.Errorf("no addresses for %s", host)
			}
			return nil
		},
	}
}

// ClockCheck passes once now reports a time after 2001-09-09.
// TLS certificate validation fails with an unset clock.
func ClockCheck(now func() time.Time) Check {
	if now == nil {
		now = time.Now
	}
	return Check{
		Name: "clock",
		Probe: func(context.Context) error {
			if t := now(); t.Unix() < minPlausibleUnix {
				return fmt.Errorf("clock not set: %s", t.UTC().Format(time.RFC3339))
			}
			return nil
		},
	}
}

// Wait runs checks in order. Each check gets its own attempt budget.
func Wait(ctx context.Context, cfg Config, logger Logger, checks ...Check) error {
	attempts := max(cfg.Attempts, 1)

	for _, check := range checks {
		if err := waitFor(ctx, check, attempts, cfg.Interval, logger); err != nil {
			return err
		}
	}
	return nil
}

func waitFor(ctx context.Context, check Check, attempts int, interval time.Duration, logger Logger) error {
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		lastErr = check.Probe(ctx)
		if lastErr == nil {
			if logger != nil {
				logger.Info("boot check passed", "check", check.Name, "attempt", attempt)
			}
			return nil
		}

		if logger != nil {
			logger.Warn("boot check failed",
				"check", check.Name,
				"attempt", attempt,
				"max_attempts", attempts,
				"error", lastErr,
			)
		}

		if attempt == attempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
	}
	return fmt.Errorf("%w: %s after %d attempts: %w", ErrBudgetExhausted, check.Name, attempts, lastErr)
}
