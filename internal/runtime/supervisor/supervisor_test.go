package supervisor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStopWaitsForGoroutines(t *testing.T) {
	s := NewSupervisor(context.Background())
	exited := make(chan struct{})
	s.Go0("loop", func(ctx context.Context) {
		<-ctx.Done()
		time.Sleep(20 * time.Millisecond)
		close(exited)
	})

	require.NoError(t, s.Stop(context.Background()))
	select {
	case <-exited:
	default:
		t.Fatal("Stop returned before goroutine exited")
	}
	assert.Equal(t, int64(0), s.Counters().Active)
	assert.Equal(t, uint64(1), s.Counters().Started)

	// Second stop is a no-op.
	require.NoError(t, s.Stop(context.Background()))
}

func TestFirstErrorWinsAndCancels(t *testing.T) {
	s := NewSupervisor(context.Background(), WithCancelOnError(true))
	first := errors.New("first")
	s.Go("a", func(ctx context.Context) error { return first })
	s.Go("b", func(ctx context.Context) error {
		<-ctx.Done()
		return errors.New("second")
	})

	err := s.Wait(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, first)
	assert.Contains(t, err.Error(), "a:")
}

func TestPanicIsRecorded(t *testing.T) {
	s := NewSupervisor(context.Background())
	s.Go0("boom", func(ctx context.Context) { panic("kaboom") })

	err := s.Wait(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panic in boom")
}

func TestWaitHonoursContext(t *testing.T) {
	s := NewSupervisor(context.Background())
	s.Go0("stuck", func(ctx context.Context) { <-ctx.Done() })
	t.Cleanup(func() { _ = s.Stop(context.Background()) })

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, s.Wait(ctx), context.DeadlineExceeded)
}
