package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShutdownCoordinator_RunsHooksInOrder(t *testing.T) {
	c := NewShutdownCoordinator(testLogger(testConfig()), time.Second)

	var order []string
	for _, name := range []string{"http_server", "scheduler", "redis", "database"} {
		name := name
		c.RegisterShutdownHook(name, func(context.Context) error {
			order = append(order, name)
			return nil
		})
	}

	require.NoError(t, c.Shutdown(context.Background()))
	assert.Equal(t, []string{"http_server", "scheduler", "redis", "database"}, order)

	select {
	case <-c.Done():
	default:
		t.Fatal("done channel not closed")
	}

	assert.Error(t, c.Shutdown(context.Background()), "second shutdown is rejected")
}

func TestShutdownCoordinator_FailuresDoNotStopLaterHooks(t *testing.T) {
	c := NewShutdownCoordinator(testLogger(testConfig()), 50*time.Millisecond)

	closed := false
	c.RegisterShutdownHook("redis", func(context.Context) error {
		return errors.New("connection reset")
	})
	c.RegisterShutdownHook("scheduler", func(ctx context.Context) error {
		<-ctx.Done()
		time.Sleep(10 * time.Millisecond)
		return nil
	})
	c.RegisterShutdownHook("panicky", func(context.Context) error {
		panic("boom")
	})
	c.RegisterShutdownHook("database", func(context.Context) error {
		closed = true
		return nil
	})

	err := c.Shutdown(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "shutdown hook 'redis' failed: connection reset")
	assert.Contains(t, err.Error(), "shutdown hook 'scheduler' failed")
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Contains(t, err.Error(), "shutdown hook 'panicky' failed")
	assert.True(t, closed)
}
