package oneshot

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveWakesWaiter(t *testing.T) {
	s := New[[]string]()
	go func() {
		time.Sleep(5 * time.Millisecond)
		_ = s.Resolve([]string{"a", "b"})
	}()

	v, err := s.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, v)
}

func TestFailWakesWaiter(t *testing.T) {
	s := New[int]()
	boom := errors.New("connect refused")
	require.NoError(t, s.Fail(boom))

	v, err := s.Wait(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.Zero(t, v)
}

func TestSecondSignalIsRejected(t *testing.T) {
	s := New[int]()
	require.NoError(t, s.Resolve(1))
	assert.ErrorIs(t, s.Resolve(2), ErrAlreadySignaled)
	assert.ErrorIs(t, s.Fail(errors.New("late")), ErrAlreadySignaled)

	v, err := s.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, v)
}

func TestOnlyOneProducerWins(t *testing.T) {
	for i := 0; i < 50; i++ {
		s := New[int]()
		var wins atomic.Int32
		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			if s.Resolve(1) == nil {
				wins.Add(1)
			}
		}()
		go func() {
			defer wg.Done()
			if s.Fail(errors.New("x")) == nil {
				wins.Add(1)
			}
		}()
		wg.Wait()
		assert.Equal(t, int32(1), wins.Load())
	}
}

func TestWaitHonoursContext(t *testing.T) {
	s := New[int]()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := s.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	select {
	case <-s.Done():
		t.Fatal("signal should not be fired")
	default:
	}
}

func TestFailNilIsStillFailure(t *testing.T) {
	s := New[int]()
	require.NoError(t, s.Fail(nil))
	_, err := s.Wait(context.Background())
	assert.Error(t, err)
}
