package auth_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fivetwenty-io/hubwire/pkg/auth"
	"github.com/fivetwenty-io/hubwire/pkg/hub"
)

// fakeClock is a settable clock shared by a cache and its test.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.now = c.now.Add(d)
}

func TestCredential_ValidAt(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	margin := 30 * time.Second

	tests := []struct {
		name     string
		cred     *auth.Credential
		expected bool
	}{
		{name: "nil credential", cred: nil, expected: false},
		{name: "empty encoded value", cred: &auth.Credential{}, expected: false},
		{name: "no expiry", cred: &auth.Credential{Encoded: "Bearer x"}, expected: true},
		{name: "future expiry", cred: &auth.Credential{Encoded: "Bearer x", ValidUntil: now.Add(time.Hour)}, expected: true},
		{name: "expired", cred: &auth.Credential{Encoded: "Bearer x", ValidUntil: now.Add(-time.Hour)}, expected: false},
		{name: "expiring within margin", cred: &auth.Credential{Encoded: "Bearer x", ValidUntil: now.Add(15 * time.Second)}, expected: false},
		{name: "expiring just outside margin", cred: &auth.Credential{Encoded: "Bearer x", ValidUntil: now.Add(45 * time.Second)}, expected: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, tt.cred.ValidAt(now, margin))
		})
	}
}

func TestCredentialCache_ReusesValidCredential(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()

	var calls atomic.Int32

	cache := auth.NewCredentialCache("test", func(context.Context) (auth.Credential, error) {
		n := calls.Add(1)

		return auth.Credential{Encoded: "Bearer t" + string(rune('0'+n)), ValidUntil: clock.Now().Add(10 * time.Minute)}, nil
	}, auth.WithMargin(2*time.Minute), auth.WithClock(clock.Now))

	assert.False(t, cache.Valid())

	for range 3 {
		got, err := cache.EncodedAuthorization(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "Bearer t1", got)
	}

	clock.Advance(7 * time.Minute)
	got, err := cache.EncodedAuthorization(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Bearer t1", got)

	clock.Advance(90 * time.Second)
	got, err = cache.EncodedAuthorization(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Bearer t2", got, "a credential inside the margin is refreshed")
	assert.Equal(t, int32(2), calls.Load())
}

func TestCredentialCache_SingleRefreshForConcurrentCallers(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32

	release := make(chan struct{})
	started := make(chan struct{})

	cache := auth.NewCredentialCache("test", func(context.Context) (auth.Credential, error) {
		if calls.Add(1) == 1 {
			close(started)
		}

		<-release

		return auth.Credential{Encoded: "Bearer shared", ValidUntil: time.Now().Add(time.Hour)}, nil
	})

	const callers = 16

	var wg sync.WaitGroup

	results := make([]string, callers)
	errs := make([]error, callers)

	for i := range callers {
		wg.Add(1)

		go func() {
			defer wg.Done()

			results[i], errs[i] = cache.EncodedAuthorization(context.Background())
		}()
	}

	<-started
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())

	for i := range callers {
		require.NoError(t, errs[i])
		assert.Equal(t, "Bearer shared", results[i])
	}
}

func TestCredentialCache_RefreshFailure(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	boom := errors.New("token endpoint unavailable")
	fail := true

	cache := auth.NewCredentialCache("test", func(context.Context) (auth.Credential, error) {
		if fail {
			return auth.Credential{}, boom
		}

		return auth.Credential{Encoded: "Bearer fresh", ValidUntil: clock.Now().Add(time.Hour)}, nil
	}, auth.WithClock(clock.Now), auth.WithMargin(time.Minute))

	cache.Seed(auth.Credential{Encoded: "Bearer stale", ValidUntil: clock.Now().Add(30 * time.Second)})

	got, err := cache.EncodedAuthorization(context.Background())
	require.Error(t, err)
	assert.Empty(t, got)
	assert.ErrorIs(t, err, hub.ErrCredentialRefreshFailed)
	assert.ErrorIs(t, err, boom)

	var refreshErr *auth.RefreshError
	require.ErrorAs(t, err, &refreshErr)
	assert.Equal(t, "test", refreshErr.Provider)

	_, ok := cache.Current()
	assert.False(t, ok, "a failed refresh empties the cache")

	fail = false
	got, err = cache.EncodedAuthorization(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Bearer fresh", got)
}

func TestCredentialCache_EmptyCredentialIsFailure(t *testing.T) {
	t.Parallel()

	cache := auth.NewCredentialCache("test", func(context.Context) (auth.Credential, error) {
		return auth.Credential{ValidUntil: time.Now().Add(time.Hour)}, nil
	})

	_, err := cache.EncodedAuthorization(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, hub.ErrEmptyCredential)
	assert.ErrorIs(t, err, hub.ErrCredentialRefreshFailed)
}

func TestCredentialCache_CallerCancellationDoesNotAbortRefresh(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})

	var refreshCtxErr atomic.Value

	cache := auth.NewCredentialCache("test", func(ctx context.Context) (auth.Credential, error) {
		<-release

		if ctx.Err() != nil {
			refreshCtxErr.Store(ctx.Err())
		}

		return auth.Credential{Encoded: "Bearer late", ValidUntil: time.Now().Add(time.Hour)}, nil
	})

	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)

	go func() {
		_, err := cache.EncodedAuthorization(ctx)
		errCh <- err
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	err := <-errCh
	require.Error(t, err)
	assert.True(t, hub.IsTransport(err))
	assert.ErrorIs(t, err, context.Canceled)

	close(release)

	assert.Eventually(t, cache.Valid, time.Second, 5*time.Millisecond)
	assert.Nil(t, refreshCtxErr.Load())

	got, err := cache.EncodedAuthorization(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Bearer late", got)
}

func TestCredentialCache_InvalidateAndHook(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32

	var hooked []string

	cache := auth.NewCredentialCache("test", func(context.Context) (auth.Credential, error) {
		calls.Add(1)

		return auth.Credential{Encoded: "Bearer x"}, nil
	}, auth.WithRefreshHook(func(c auth.Credential) {
		hooked = append(hooked, c.Encoded)
	}))

	_, err := cache.EncodedAuthorization(context.Background())
	require.NoError(t, err)

	cache.Invalidate()
	assert.False(t, cache.Valid())

	require.NoError(t, cache.Refresh(context.Background()))
	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, []string{"Bearer x", "Bearer x"}, hooked)
}
