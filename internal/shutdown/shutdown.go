// Package shutdown provides the process-wide teardown barrier.  Subsystems
// that need to finish work before the process exits register themselves as
// named blockers; on shutdown every blocker is given a chance to run its
// teardown and remove itself.
package shutdown

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/AdguardTeam/golibs/errors"
	"github.com/AdguardTeam/golibs/service"
)

// Blocker is a subsystem that blocks the shutdown barrier until its teardown
// work is done.  Implementations must call [Client.RemoveBlocker] from within
// BlockShutdown once they no longer need to block.
type Blocker interface {
	// Name returns a human-readable name and state of the blocker.
	Name() (name string)

	// BlockShutdown runs the blocker's teardown.  client is the barrier
	// client the blocker was added to.
	BlockShutdown(ctx context.Context, client *Client) (err error)
}

// Barrier is the shutdown barrier.  Its [Barrier.Shutdown] method closes the
// barrier and drives all registered blockers.
type Barrier struct {
	logger   *slog.Logger
	mu       *sync.Mutex
	client   *Client
	blockers []Blocker
	closed   bool
}

// NewBarrier returns a new open barrier.  logger must not be nil.
func NewBarrier(logger *slog.Logger) (b *Barrier) {
	b = &Barrier{
		logger: logger,
		mu:     &sync.Mutex{},
	}

	b.client = &Client{
		barrier: b,
	}

	return b
}

// Client returns the client subsystems use to register with the barrier.
func (b *Barrier) Client() (c *Client) {
	return b.client
}

// type check
var _ service.Interface = (*Barrier)(nil)

// Start implements the [service.Interface] interface for *Barrier.  err is
// always nil.
func (b *Barrier) Start(_ context.Context) (err error) {
	return nil
}

// Shutdown implements the [service.Interface] interface for *Barrier.  It
// closes the barrier and calls every registered blocker.  Blockers added
// after this point are rejected.
func (b *Barrier) Shutdown(ctx context.Context) (err error) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()

		return nil
	}

	b.closed = true
	blockers := slices.Clone(b.blockers)
	b.mu.Unlock()

	var errs []error
	for _, bl := range blockers {
		b.logger.InfoContext(ctx, "blocking on", "name", bl.Name())

		blErr := bl.BlockShutdown(ctx, b.client)
		if blErr != nil {
			errs = append(errs, fmt.Errorf("blocker %q: %w", bl.Name(), blErr))
		}
	}

	b.mu.Lock()
	remaining := len(b.blockers)
	b.mu.Unlock()

	if remaining > 0 {
		errs = append(errs, fmt.Errorf("%d blockers did not remove themselves", remaining))
	}

	return errors.Join(errs...)
}

// Client registers and removes blockers on behalf of one barrier.
type Client struct {
	barrier *Barrier
}

// Closed reports whether the barrier has already been closed.
func (c *Client) Closed() (ok bool) {
	b := c.barrier

	b.mu.Lock()
	defer b.mu.Unlock()

	return b.closed
}

// AddBlocker registers bl with the barrier.  It returns an error if the
// barrier is already closed or if bl is already registered.
func (c *Client) AddBlocker(bl Blocker) (err error) {
	b := c.barrier

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return errors.Error("shutdown: barrier is closed")
	}

	if slices.Contains(b.blockers, bl) {
		return fmt.Errorf("shutdown: blocker %q is already added", bl.Name())
	}

	b.blockers = append(b.blockers, bl)

	return nil
}

// RemoveBlocker removes bl from the barrier.  Removing a blocker that is not
// registered is an error.
func (c *Client) RemoveBlocker(bl Blocker) (err error) {
	b := c.barrier

	b.mu.Lock()
	defer b.mu.Unlock()

	i := slices.Index(b.blockers, bl)
	if i < 0 {
		return fmt.Errorf("shutdown: no blocker %q", bl.Name())
	}

	b.blockers = slices.Delete(b.blockers, i, i+1)

	return nil
}
