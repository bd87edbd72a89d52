package token

import (
	"errors"
	"fmt"
	"os"
	"time"
)

const (
	DefaultIssuer     = "pitchfork-auth"
	DefaultAccessTTL  = 15 * time.Minute
	DefaultRefreshTTL = 7 * 24 * time.Hour

	minSecretLen = 32
)

// Config is read once at startup and treated as immutable afterwards. There
// is a single signing secret; rotating it invalidates every issued token.
type Config struct {
	Secret     []byte
	Issuer     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// ConfigFromEnv reads JWT_SECRET, JWT_ISSUER, JWT_ACCESS_TTL and JWT_REFRESH_TTL.
func ConfigFromEnv() (Config, error) {
	cfg := Config{
		Secret:     []byte(os.Getenv("JWT_SECRET")),
		Issuer:     os.Getenv("JWT_ISSUER"),
		AccessTTL:  DefaultAccessTTL,
		RefreshTTL: DefaultRefreshTTL,
	}
	if cfg.Issuer == "" {
		cfg.Issuer = DefaultIssuer
	}
	if v := os.Getenv("JWT_ACCESS_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("JWT_ACCESS_TTL: %w", err)
		}
		cfg.AccessTTL = d
	}
	if v := os.Getenv("JWT_REFRESH_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("JWT_REFRESH_TTL: %w", err)
		}
		cfg.RefreshTTL = d
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	if len(c.Secret) < minSecretLen {
		return fmt.Errorf("JWT_SECRET must be at least %d bytes", minSecretLen)
	}
	// Token expiry has second precision, so only whole seconds count.
	access, refresh := c.AccessTTL.Truncate(time.Second), c.RefreshTTL.Truncate(time.Second)
	if access <= 0 {
		return errors.New("access token lifetime must be at least one second")
	}
	if refresh <= access {
		return errors.New("refresh token lifetime must exceed access token lifetime by at least one second")
	}
	return nil
}
