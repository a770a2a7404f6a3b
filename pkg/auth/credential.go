package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/fivetwenty-io/hubwire/pkg/hub"
)

// Static errors for err113 compliance.
var (
	ErrNoGrant        = errors.New("no OAuth2 grant configured: need a refresh token, client credentials or username and password")
	ErrNilRefreshFunc = errors.New("refresh function is nil")
	ErrNilTokenFetch  = errors.New("token fetcher is nil")
)

// Credential is an encoded Authorization value with the instant it stops
// being valid. A zero ValidUntil never expires.
type Credential struct {
	Encoded    string
	ValidUntil time.Time
}

// ValidAt reports whether the credential can still be used at now, keeping
// margin in reserve before ValidUntil.
func (c *Credential) ValidAt(now time.Time, margin time.Duration) bool {
	if c == nil || c.Encoded == "" {
		return false
	}

	if c.ValidUntil.IsZero() {
		return true
	}

	return now.Before(c.ValidUntil.Add(-margin))
}

// RefreshError reports that a credential could not be obtained.
type RefreshError struct {
	Provider string
	Err      error
}

// Error implements the error interface.
func (e *RefreshError) Error() string {
	return fmt.Sprintf("refreshing %s credential: %v", e.Provider, e.Err)
}

func (e *RefreshError) Unwrap() error {
	return e.Err
}

// Is reports the credential refresh class.
func (e *RefreshError) Is(target error) bool {
	return target == hub.ErrCredentialRefreshFailed
}
