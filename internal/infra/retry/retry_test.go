package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yndnr/pairmesh-go/internal/core/domain"
)

func fastPolicy(attempts int) Policy {
	return Policy{
		MaxAttempts: attempts,
		BaseDelay:   time.Millisecond,
		MaxDelay:    4 * time.Millisecond,
	}
}

func TestDo_SucceedsFirstTry(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastPolicy(3), func(context.Context) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestDo_RetriesRetryableUntilSuccess(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastPolicy(5), func(context.Context) error {
		calls++
		if calls < 3 {
			return domain.StorageError(errors.New("503"), true)
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDo_AttemptCeiling(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastPolicy(4), func(context.Context) error {
		calls++
		return domain.NetworkError(errors.New("reset"), true)
	})
	require.Error(t, err)
	assert.Equal(t, 4, calls)
	assert.Equal(t, domain.KindNetwork, domain.KindOf(err))
}

func TestDo_NonRetryableSurfacesImmediately(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"authentication", domain.ErrTokenInvalid},
		{"validation", domain.ErrBadRequest},
		{"permanent storage", domain.StorageError(errors.New("403"), false)},
		{"filesystem", domain.FilesystemError(errors.New("eio"), true)},
		{"unclassified", errors.New("boom")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			err := Do(context.Background(), fastPolicy(5), func(context.Context) error {
				calls++
				return tt.err
			})
			assert.Same(t, tt.err, err)
			assert.Equal(t, 1, calls)
		})
	}
}

func TestDo_RespectsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := Do(ctx, fastPolicy(3), func(context.Context) error {
		calls++
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, calls)
}

func TestDo_CancelDuringBackoffReturnsLastError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := Policy{MaxAttempts: 5, BaseDelay: time.Hour, MaxDelay: time.Hour}
	p.OnRetry = func(int, time.Duration, error) { cancel() }

	storageErr := domain.StorageError(errors.New("503"), true)
	calls := 0
	err := Do(ctx, p, func(context.Context) error {
		calls++
		return storageErr
	})
	assert.Same(t, storageErr, err)
	assert.Equal(t, 1, calls)
}

func TestDo_AttemptTimeout(t *testing.T) {
	p := fastPolicy(2)
	p.AttemptTimeout = 10 * time.Millisecond

	var deadlines int
	err := Do(context.Background(), p, func(ctx context.Context) error {
		if _, ok := ctx.Deadline(); ok {
			deadlines++
		}
		<-ctx.Done()
		return domain.StorageError(ctx.Err(), true)
	})
	require.Error(t, err)
	assert.Equal(t, 2, deadlines)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestDo_OnRetryObservesAttempts(t *testing.T) {
	var attempts []int
	p := fastPolicy(3)
	p.OnRetry = func(attempt int, delay time.Duration, err error) {
		attempts = append(attempts, attempt)
		assert.LessOrEqual(t, delay, p.Backoff(attempt))
	}

	_ = Do(context.Background(), p, func(context.Context) error {
		return domain.StorageError(errors.New("503"), true)
	})
	assert.Equal(t, []int{1, 2}, attempts)
}

func TestDoValue(t *testing.T) {
	calls := 0
	v, err := DoValue(context.Background(), fastPolicy(3), func(context.Context) (string, error) {
		calls++
		if calls == 1 {
			return "", domain.StorageError(errors.New("503"), true)
		}
		return "/v1/blobs/p/x", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "/v1/blobs/p/x", v)
}

func TestPolicy_Backoff(t *testing.T) {
	p := Policy{BaseDelay: 100 * time.Millisecond, MaxDelay: time.Second}

	assert.Equal(t, 100*time.Millisecond, p.Backoff(1))
	assert.Equal(t, 200*time.Millisecond, p.Backoff(2))
	assert.Equal(t, 400*time.Millisecond, p.Backoff(3))
	assert.Equal(t, 800*time.Millisecond, p.Backoff(4))
	assert.Equal(t, time.Second, p.Backoff(5))
	assert.Equal(t, time.Second, p.Backoff(50))
}

func TestJitterWithinCeiling(t *testing.T) {
	for i := 0; i < 1000; i++ {
		d := jitter(50 * time.Millisecond)
		require.GreaterOrEqual(t, d, time.Duration(0))
		require.LessOrEqual(t, d, 50*time.Millisecond)
	}
	assert.Equal(t, time.Duration(0), jitter(0))
}

func TestDefaultPolicy(t *testing.T) {
	p := DefaultPolicy()
	assert.Equal(t, 3, p.MaxAttempts)
	assert.Positive(t, p.AttemptTimeout)
	assert.LessOrEqual(t, p.BaseDelay, p.MaxDelay)
}

func TestDo_SingleAttemptPolicies(t *testing.T) {
	for _, attempts := range []int{0, 1} {
		calls := 0
		storageErr := domain.StorageError(errors.New("503"), true)
		err := Do(context.Background(), fastPolicy(attempts), func(context.Context) error {
			calls++
			return storageErr
		})
		assert.Same(t, storageErr, err, "MaxAttempts=%d", attempts)
		assert.Equal(t, 1, calls, "MaxAttempts=%d", attempts)
	}
}

func TestDo_UnboundedMaxDelay(t *testing.T) {
	p := Policy{BaseDelay: time.Millisecond}
	assert.Equal(t, 8*time.Millisecond, p.Backoff(4))
}
