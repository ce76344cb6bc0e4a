package retry

import (
	"context"
	"time"

	"github.com/avast/retry-go/v4"
)

// Config holds retry configuration. MaxRetries counts retries after the first
// attempt, so a call is tried at most MaxRetries+1 times.
type Config struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration // 0 disables the cap
}

// DefaultConfig returns default retry configuration
func DefaultConfig() Config {
	return Config{
		MaxRetries: 3,
		BaseDelay:  1 * time.Second,
	}
}

// Attempts is the total number of tries the config allows.
func (c Config) Attempts() uint {
	if c.MaxRetries < 0 {
		return 1
	}
	return uint(c.MaxRetries) + 1
}

// Backoff returns the delay before retry n (0-based): base * 2^n, capped at
// MaxDelay when one is set.
func (c Config) Backoff(n uint) time.Duration {
	if c.BaseDelay <= 0 {
		return 0
	}
	if n > 62 {
		n = 62
	}
	d := c.BaseDelay << n
	if d <= 0 || d>>n != c.BaseDelay {
		d = time.Duration(1<<63 - 1)
	}
	if c.MaxDelay > 0 && d > c.MaxDelay {
		return c.MaxDelay
	}
	return d
}

// Timer lets tests observe or skip backoff sleeps.
type Timer interface {
	After(time.Duration) <-chan time.Time
}

// Option tweaks a single Do call.
type Option func(*options)

type options struct {
	retryIf func(error) bool
	onRetry func(n uint, delay time.Duration, err error)
	timer   Timer
}

// If restricts retries to errors for which fn returns true.
func If(fn func(error) bool) Option {
	return func(o *options) { o.retryIf = fn }
}

// OnRetry is called before each backoff sleep with the retry index and delay.
func OnRetry(fn func(n uint, delay time.Duration, err error)) Option {
	return func(o *options) { o.onRetry = fn }
}

// WithTimer replaces the timer used for backoff sleeps.
func WithTimer(t Timer) Option {
	return func(o *options) { o.timer = t }
}

// Do executes a function with exponential backoff retry
func Do(ctx context.Context, cfg Config, fn func() error, opts ...Option) error {
	o := options{retryIf: func(error) bool { return true }}
	for _, opt := range opts {
		opt(&o)
	}

	retryOpts := []retry.Option{
		retry.Context(ctx),
		retry.Attempts(cfg.Attempts()),
		// retry-go counts the retry being delayed from 1.
		retry.DelayType(func(n uint, _ error, _ *retry.Config) time.Duration {
			if n == 0 {
				return cfg.Backoff(0)
			}
			return cfg.Backoff(n - 1)
		}),
		retry.LastErrorOnly(true),
		retry.RetryIf(o.retryIf),
		retry.OnRetry(func(n uint, err error) {
			// retry-go also reports the final failure; only announce real retries.
			if o.onRetry != nil && n+1 < cfg.Attempts() {
				o.onRetry(n, cfg.Backoff(n), err)
			}
		}),
	}
	if o.timer != nil {
		retryOpts = append(retryOpts, retry.WithTimer(o.timer))
	}

	return retry.Do(fn, retryOpts...)
}

// DoWithResult executes a function with exponential backoff retry and returns a result
func DoWithResult[T any](ctx context.Context, cfg Config, fn func() (T, error), opts ...Option) (T, error) {
	var result T
	err := Do(ctx, cfg, func() error {
		var err error
		result, err = fn()
		return err
	}, opts...)
	return result, err
}
