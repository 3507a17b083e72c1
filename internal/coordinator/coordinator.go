// Package coordinator implements the write → signal → poll → verify cycle
// that backs every configuration replacement.
//
// "The controller accepted my bytes" and "the controller successfully applied
// my bytes" are two distinct facts. The coordinator refuses to report success
// until both are independently confirmed: the written content must hash to
// the value the controller reports for its loaded config, the controller must
// report no load error, and optionally a fraction of datapaths must have
// acknowledged the update.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/opennetsys/faucet-agent/internal/controller"
	"github.com/opennetsys/faucet-agent/internal/observability"
	"github.com/opennetsys/faucet-agent/internal/store"
)

// A StatusSource yields controller status snapshots. A (nil, nil) return
// means the controller is currently unreachable; the poll loop skips the
// iteration and tries again.
type StatusSource interface {
	FetchStatus(ctx context.Context) (*controller.Status, error)
}

// TimeoutError reports that the verification predicate never held within the
// configured deadline. The write itself has already succeeded by the time
// polling starts, so the on-disk config still carries the submitted bytes.
type TimeoutError struct {
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("controller did not confirm configuration reload within %s", e.Timeout)
}

// Options tune a Coordinator.
type Options struct {
	// Timeout bounds a whole write-and-reload attempt (default 120s).
	Timeout time.Duration

	// PollInterval is the status poll cadence (default 1s).
	PollInterval time.Duration

	// DPWaitFraction is the minimum fraction of datapaths that must have
	// acknowledged the new configuration (default 0, i.e. no wait).
	DPWaitFraction float64
}

func (o Options) withDefaults() Options {
	if o.Timeout <= 0 {
		o.Timeout = 120 * time.Second
	}
	if o.PollInterval <= 0 {
		o.PollInterval = time.Second
	}
	return o
}

// Coordinator orchestrates configuration replacement against a live
// controller.
type Coordinator struct {
	store   *store.Store
	status  StatusSource
	trigger controller.ReloadTrigger
	opts    Options
	logger  *slog.Logger
	metrics *observability.Metrics

	// mu serializes write-and-reload attempts end to end. Two concurrent
	// writers racing to write-then-verify against the same reported hash
	// would otherwise satisfy each other's hash checks.
	mu sync.Mutex
}

// New creates a coordinator. metrics may be nil, in which case a private
// metric set is created.
func New(st *store.Store, status StatusSource, trigger controller.ReloadTrigger,
	opts Options, logger *slog.Logger, metrics *observability.Metrics) *Coordinator {
	if metrics == nil {
		metrics = observability.NewMetrics()
	}
	return &Coordinator{
		store:   st,
		status:  status,
		trigger: trigger,
		opts:    opts.withDefaults(),
		logger:  logger,
		metrics: metrics,
	}
}

// WriteAndReload persists data, triggers a controller reload, and polls the
// controller's status until it demonstrably runs the new configuration or the
// timeout elapses. It runs synchronously on the calling goroutine and honors
// ctx cancellation during the polling phase.
func (c *Coordinator) WriteAndReload(ctx context.Context, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	log := c.logger.With("attempt", uuid.NewString())
	start := time.Now()

	err := c.writeAndAwait(ctx, log, data)
	c.metrics.ReloadDuration.Observe(time.Since(start).Seconds())
	c.metrics.ReloadAttempts.WithLabelValues(outcomeLabel(err)).Inc()
	if err != nil {
		log.Warn("configuration reload failed", "error", err, "elapsed", time.Since(start))
		return err
	}
	log.Info("configuration reload verified", "bytes", len(data), "elapsed", time.Since(start))
	return nil
}

func (c *Coordinator) writeAndAwait(ctx context.Context, log *slog.Logger, data []byte) error {
	if err := c.store.Write(data); err != nil {
		return err
	}
	if err := c.trigger.Trigger(ctx); err != nil {
		return err
	}
	return c.awaitReload(ctx, log, data)
}

// awaitReload polls the controller at a fixed cadence until the verification
// predicate holds. The predicate is re-evaluated from scratch on every tick;
// there is no partial-credit memory between iterations.
func (c *Coordinator) awaitReload(ctx context.Context, log *slog.Logger, data []byte) error {
	start := time.Now()
	ticker := time.NewTicker(c.opts.PollInterval)
	defer ticker.Stop()

	for {
		c.metrics.PollIterations.Inc()
		status, err := c.status.FetchStatus(ctx)
		if err != nil {
			return fmt.Errorf("fetch controller status: %w", err)
		}
		if status == nil {
			log.Debug("controller status unknown, will retry")
		} else if c.verified(log, status, data) {
			return nil
		}
		if time.Since(start) >= c.opts.Timeout {
			return &TimeoutError{Timeout: c.opts.Timeout}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// verified evaluates the verification predicate against one status snapshot:
// a single reported config file and hash, the reported hash matching the
// just-written bytes under the reported algorithm, no load error, and enough
// datapaths converged.
func (c *Coordinator) verified(log *slog.Logger, status *controller.Status, data []byte) bool {
	if len(status.ConfigFiles) != 1 || len(status.Hashes) != 1 {
		log.Debug("cannot verify: need exactly one reported config file and hash",
			"config_files", status.ConfigFiles, "hashes", status.Hashes)
		return false
	}
	if reported, err := filepath.Abs(status.ConfigFiles[0]); err != nil || reported != c.store.Path() {
		// Advisory only: a path mismatch does not block verification.
		log.Warn("controller config file may not be ours",
			"reported", status.ConfigFiles[0], "path", c.store.Path())
	}

	if len(status.HashFuncs) != 1 {
		log.Debug("cannot verify: need exactly one reported hash function",
			"hash_funcs", status.HashFuncs)
		return false
	}
	digest, ok := digestFor(status.HashFuncs[0], data)
	if !ok {
		log.Debug("cannot verify: unrecognized hash function", "name", status.HashFuncs[0])
		return false
	}
	if digest != status.Hashes[0] {
		log.Debug("hash mismatch", "want", digest, "reported", status.Hashes[0])
		return false
	}

	if status.LoadError {
		log.Debug("controller reports configuration load error")
		return false
	}
	if status.Applied < c.opts.DPWaitFraction {
		log.Debug("waiting for datapaths",
			"applied", status.Applied, "want", c.opts.DPWaitFraction)
		return false
	}
	return true
}

func outcomeLabel(err error) string {
	var timeout *TimeoutError
	switch {
	case err == nil:
		return observability.OutcomeVerified
	case errors.As(err, &timeout):
		return observability.OutcomeTimeout
	case errors.Is(err, store.ErrStorage):
		return observability.OutcomeStorage
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return observability.OutcomeCanceled
	default:
		return observability.OutcomeTransport
	}
}
