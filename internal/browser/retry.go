package browser

import (
	"context"
	"time"

	"tabgrip-mcp-server/internal/config"
)

// RetryHook observes each failed attempt before the dispatcher sleeps and
// re-acquires. Used to emit retry facts.
type RetryHook func(targetID string, class Class, attempt int)

// Dispatcher executes units of work against pooled sessions with bounded
// retry. A session implicated in a failure is always discarded, never reused.
type Dispatcher struct {
	pool    *Pool
	cfg     config.SessionsConfig
	onRetry RetryHook
}

func NewDispatcher(pool *Pool, cfg config.SessionsConfig, onRetry RetryHook) *Dispatcher {
	return &Dispatcher{pool: pool, cfg: cfg, onRetry: onRetry}
}

// Pool exposes the underlying session pool for explicit close operations.
func (d *Dispatcher) Pool() *Pool { return d.pool }

// WithSession runs work against an acquired session. On failure the session
// is discarded, the dispatcher sleeps a class-selected delay, and a fresh
// session is attached, up to MaxRetries extra attempts. Acquisition failures
// count toward the same budget. The last error is returned after exhaustion.
func (d *Dispatcher) WithSession(ctx context.Context, targetID string, work func(*Session) error) error {
	maxAttempts := d.cfg.GetMaxRetries() + 1

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		sess, err := d.pool.GetOrCreate(ctx, targetID)
		if err != nil {
			lastErr = err
		} else {
			if err := work(sess); err == nil {
				sess.Touch(d.cfg.IdleTimeout())
				return nil
			} else {
				lastErr = err
				d.pool.Discard(targetID, sess)
			}
		}

		if attempt == maxAttempts {
			break
		}

		class := Classify(lastErr)
		if d.onRetry != nil {
			d.onRetry(targetID, class, attempt)
		}
		if err := sleep(ctx, d.retryDelay(class)); err != nil {
			return err
		}
	}
	return lastErr
}

func (d *Dispatcher) retryDelay(class Class) time.Duration {
	if class == ClassDebugging {
		return d.cfg.DebugRetryDelay()
	}
	return d.cfg.RetryDelay()
}

// sleep is a context-aware pause so cancellation cuts the backoff short.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
