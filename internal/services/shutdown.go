package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/MuhibNayem/Evaluation-Process-sub001/internal/logger"
)

const defaultHookTimeout = 10 * time.Second

// ShutdownHook is a function called during graceful shutdown
type ShutdownHook func(ctx context.Context) error

type namedHook struct {
	name string
	hook ShutdownHook
}

// ShutdownCoordinator runs shutdown hooks in registration order. Intake
// (HTTP, scheduler) is registered before the stores it writes to, so
// in-flight runs finish before connections close.
type ShutdownCoordinator struct {
	logger      *logger.Logger
	hookTimeout time.Duration

	mu             sync.Mutex
	hooks          []namedHook
	isShuttingDown bool
	done           chan struct{}
}

// NewShutdownCoordinator creates a coordinator with a per-hook timeout
func NewShutdownCoordinator(log *logger.Logger, hookTimeout time.Duration) *ShutdownCoordinator {
	if hookTimeout <= 0 {
		hookTimeout = defaultHookTimeout
	}
	return &ShutdownCoordinator{
		logger:      log,
		hookTimeout: hookTimeout,
		done:        make(chan struct{}),
	}
}

// RegisterShutdownHook appends a hook
func (c *ShutdownCoordinator) RegisterShutdownHook(name string, hook ShutdownHook) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.hooks = append(c.hooks, namedHook{name: name, hook: hook})
	c.logger.WithField("hook_name", name).Debug("Registered shutdown hook")
}

// Shutdown runs every hook once. A failing hook does not stop later hooks;
// all failures are joined into the returned error.
func (c *ShutdownCoordinator) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	if c.isShuttingDown {
		c.mu.Unlock()
		return fmt.Errorf("shutdown already in progress")
	}
	c.isShuttingDown = true
	hooks := append([]namedHook(nil), c.hooks...)
	c.mu.Unlock()
	defer close(c.done)

	c.logger.WithField("hook_count", len(hooks)).Info("Initiating graceful shutdown")

	var errs []error
	for _, h := range hooks {
		if err := c.run(ctx, h); err != nil {
			c.logger.WithError(err).WithField("hook_name", h.name).Error("Shutdown hook failed")
			errs = append(errs, fmt.Errorf("shutdown hook '%s' failed: %w", h.name, err))
		}
	}

	if len(errs) > 0 {
		c.logger.WithField("error_count", len(errs)).Warn("Some shutdown hooks failed")
		return errors.Join(errs...)
	}
	c.logger.Info("Graceful shutdown completed")
	return nil
}

// Done is closed once Shutdown has returned
func (c *ShutdownCoordinator) Done() <-chan struct{} {
	return c.done
}

func (c *ShutdownCoordinator) run(ctx context.Context, h namedHook) error {
	hookCtx, cancel := context.WithTimeout(ctx, c.hookTimeout)
	defer cancel()

	result := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				result <- fmt.Errorf("panicked: %v", r)
			}
		}()
		result <- h.hook(hookCtx)
	}()

	select {
	case err := <-result:
		return err
	case <-hookCtx.Done():
		return hookCtx.Err()
	}
}
