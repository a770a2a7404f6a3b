package commands

import (
	"sync"
	"time"

	"golang.org/x/oauth2"
)

// ConfigPersister implements the auth.TokenPersister interface by writing
// refreshed OAuth2 tokens back to the CLI configuration file.
type ConfigPersister struct {
	mutex sync.Mutex
	now   func() time.Time
}

// NewConfigPersister creates a new config persister.
func NewConfigPersister() *ConfigPersister {
	return &ConfigPersister{now: time.Now}
}

// PersistToken updates the access token, its expiry and a rotated refresh
// token in the config.
func (p *ConfigPersister) PersistToken(token *oauth2.Token) error {
	if token == nil {
		return nil
	}

	p.mutex.Lock()
	defer p.mutex.Unlock()

	config := loadConfig()

	config.Token = token.AccessToken
	config.TokenExpiresAt = nil

	if !token.Expiry.IsZero() {
		expiresAt := token.Expiry
		config.TokenExpiresAt = &expiresAt
	}

	if token.RefreshToken != "" {
		config.RefreshToken = token.RefreshToken
	}

	now := p.now()
	config.LastRefreshed = &now

	return saveConfigStruct(config)
}
