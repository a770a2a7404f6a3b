package auth

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/fivetwenty-io/hubwire/pkg/hub"
)

// RefreshFunc obtains a new credential.
type RefreshFunc func(ctx context.Context) (Credential, error)

// CacheOption configures a CredentialCache.
type CacheOption func(*CredentialCache)

// WithMargin sets how long before ValidUntil a credential is refreshed.
func WithMargin(margin time.Duration) CacheOption {
	return func(c *CredentialCache) {
		c.margin = margin
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) CacheOption {
	return func(c *CredentialCache) {
		c.now = now
	}
}

// WithRefreshHook is called with every newly obtained credential.
func WithRefreshHook(fn func(Credential)) CacheOption {
	return func(c *CredentialCache) {
		c.onRefresh = fn
	}
}

// CredentialCache holds one credential and refreshes it when it falls inside
// the margin. Concurrent callers share a single refresh.
type CredentialCache struct {
	name      string
	refresh   RefreshFunc
	margin    time.Duration
	now       func() time.Time
	onRefresh func(Credential)

	mu      sync.RWMutex
	current *Credential

	group singleflight.Group
}

// NewCredentialCache creates a cache around refresh. name identifies the
// provider in errors.
func NewCredentialCache(name string, refresh RefreshFunc, opts ...CacheOption) *CredentialCache {
	c := &CredentialCache{
		name:    name,
		refresh: refresh,
		now:     time.Now,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// EncodedAuthorization returns the cached credential, refreshing it first
// when it is missing or about to expire. A refresh is never abandoned because
// one caller gave up; each caller still returns as soon as its own ctx ends.
func (c *CredentialCache) EncodedAuthorization(ctx context.Context) (string, error) {
	if cred, ok := c.valid(); ok {
		return cred.Encoded, nil
	}

	ch := c.group.DoChan("refresh", func() (interface{}, error) {
		if cred, ok := c.valid(); ok {
			return cred, nil
		}

		return c.doRefresh(context.WithoutCancel(ctx))
	})

	select {
	case <-ctx.Done():
		return "", &hub.TransportError{Err: ctx.Err()}
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}

		cred, _ := res.Val.(Credential)

		return cred.Encoded, nil
	}
}

func (c *CredentialCache) doRefresh(ctx context.Context) (Credential, error) {
	if c.refresh == nil {
		return Credential{}, &RefreshError{Provider: c.name, Err: ErrNilRefreshFunc}
	}

	cred, err := c.refresh(ctx)
	if err == nil && cred.Encoded == "" {
		err = hub.ErrEmptyCredential
	}

	if err != nil {
		c.mu.Lock()
		c.current = nil
		c.mu.Unlock()

		return Credential{}, &RefreshError{Provider: c.name, Err: err}
	}

	c.mu.Lock()
	c.current = &cred
	c.mu.Unlock()

	if c.onRefresh != nil {
		c.onRefresh(cred)
	}

	return cred, nil
}

func (c *CredentialCache) valid() (Credential, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.current.ValidAt(c.now(), c.margin) {
		return Credential{}, false
	}

	return *c.current, true
}

// Valid reports whether the cached credential is usable without a refresh.
func (c *CredentialCache) Valid() bool {
	_, ok := c.valid()

	return ok
}

// Current returns the cached credential, valid or not.
func (c *CredentialCache) Current() (Credential, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.current == nil {
		return Credential{}, false
	}

	return *c.current, true
}

// Seed stores cred as if it had just been refreshed.
func (c *CredentialCache) Seed(cred Credential) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.current = &cred
}

// Invalidate discards the cached credential so the next call refreshes.
func (c *CredentialCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.current = nil
}

// Refresh forces a new credential regardless of the cached one.
func (c *CredentialCache) Refresh(ctx context.Context) error {
	c.Invalidate()

	_, err := c.EncodedAuthorization(ctx)

	return err
}
