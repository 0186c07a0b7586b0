package signal

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const testTimeout = 5 * time.Second

func startTestInterceptor() *Interceptor {
	c := newInterceptor()
	go c.mainInterruptHandler()

	return &c
}

func waitShutdown(t *testing.T, c *Interceptor) {
	select {
	case <-c.ShutdownChannel():
	case <-time.After(testTimeout):
		t.Fatalf("interceptor did not shut down")
	}
}

func TestRequestShutdown(t *testing.T) {
	c := startTestInterceptor()
	require.True(t, c.Alive())

	c.RequestShutdown()
	waitShutdown(t, c)
	require.False(t, c.Alive())

	// A second request after the handler exited must not block.
	c.RequestShutdown()
}

func TestInterruptSignal(t *testing.T) {
	c := startTestInterceptor()

	c.interruptChannel <- os.Interrupt
	waitShutdown(t, c)
	require.False(t, c.Alive())
}

func TestContextCancelledOnShutdown(t *testing.T) {
	c := startTestInterceptor()

	ctx, cancel := c.Context(context.Background())
	defer cancel()
	require.NoError(t, ctx.Err())

	c.RequestShutdown()

	select {
	case <-ctx.Done():
	case <-time.After(testTimeout):
		t.Fatalf("context not cancelled")
	}
	require.ErrorIs(t, ctx.Err(), context.Canceled)
}

func TestInterceptOnce(t *testing.T) {
	c, err := Intercept()
	require.NoError(t, err)

	_, err = Intercept()
	require.Error(t, err)

	c.RequestShutdown()
	waitShutdown(t, &c)
}
