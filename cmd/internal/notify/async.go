package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"swapi/cmd/internal/metrics"
)

const defaultAsyncTimeout = 30 * time.Second

// Async delivers every message on its own goroutine.
// Notify never blocks on delivery and never returns a delivery error.
type Async struct {
	next    Notifier
	timeout time.Duration
	log     *slog.Logger
	metrics *metrics.Metrics

	wg sync.WaitGroup
}

// AsyncOption configures Async.
type AsyncOption func(*Async)

// WithTimeout bounds each delivery.
func WithTimeout(d time.Duration) AsyncOption {
	return func(a *Async) {
		if d > 0 {
			a.timeout = d
		}
	}
}

// WithLogger sets the failure logger.
func WithLogger(log *slog.Logger) AsyncOption {
	return func(a *Async) {
		if log != nil {
			a.log = log
		}
	}
}

// WithMetrics counts deliveries.
func WithMetrics(m *metrics.Metrics) AsyncOption {
	return func(a *Async) { a.metrics = m }
}

// NewAsync wraps next.
func NewAsync(next Notifier, opts ...AsyncOption) *Async {
	a := &Async{
		next:    next,
		timeout: defaultAsyncTimeout,
		log:     slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Notify schedules delivery and returns nil immediately.
// The delivery context is detached from ctx so request cancellation does not abort it.
func (a *Async) Notify(ctx context.Context, msg Message) error {
	if a == nil || a.next == nil {
		return nil
	}

	base := context.WithoutCancel(ctx)

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()

		dctx, cancel := context.WithTimeout(base, a.timeout)
		defer cancel()

		err := a.next.Notify(dctx, msg)
		a.metrics.ObserveNotification(err == nil)
		if err != nil {
			a.log.Warn("notify.send.fail", "subject", msg.Subject, "err", err)
		}
	}()
	return nil
}

// Wait blocks until every scheduled delivery has finished or ctx is done.
func (a *Async) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
