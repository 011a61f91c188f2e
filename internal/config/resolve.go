package config

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jask/finbridge/internal/secrets"
)

// SettingGetter reads runtime settings edited by the user.
type SettingGetter interface {
	Get(ctx context.Context, key string) (string, error)
}

// SecretGetter reads credentials from the local secrets store.
type SecretGetter interface {
	Fetch(provider string) (string, error)
}

// Resolver looks values up in the settings store first, then the loaded
// configuration, then (for secrets) the local secrets store.
type Resolver struct {
	Settings SettingGetter
	Secrets  SecretGetter
}

// Value returns the settings value for key or the configured fallback.
func (r Resolver) Value(ctx context.Context, key, configured string) (string, error) {
	if r.Settings != nil {
		v, err := r.Settings.Get(ctx, key)
		if err != nil {
			return "", err
		}
		if v = strings.TrimSpace(v); v != "" {
			return v, nil
		}
	}
	return strings.TrimSpace(configured), nil
}

// Secret behaves like Value and additionally consults the secrets store under
// provider. A missing secret is not an error; an unreadable store is.
func (r Resolver) Secret(ctx context.Context, key, configured, provider string) (string, error) {
	v, err := r.Value(ctx, key, configured)
	if err != nil || v != "" {
		return v, err
	}
	if r.Secrets == nil {
		return "", nil
	}
	s, err := r.Secrets.Fetch(provider)
	if errors.Is(err, secrets.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read %s secret: %w", provider, err)
	}
	return s, nil
}
