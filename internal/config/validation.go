package config

import (
	"strings"

	nerrors "github.com/chebizarro/nostr-git-sub004/pkg/errors"
)

// MinJWTSecretLength matches the HS256 256-bit minimum.
const MinJWTSecretLength = 32

// Validate rejects configuration combinations that can't work at runtime,
// such as an enabled feature with no usable credentials behind it.
func Validate(cfg *Config) error {
	if cfg.Relays.EnableGrasp && len(cfg.Relays.Grasp) == 0 {
		return nerrors.ErrInvalidInput("enable_grasp is true but relays.grasp has no entries")
	}

	if cfg.CacheMode != CacheModeOn && cfg.CacheMode != CacheModeOff {
		return nerrors.ErrInvalidInput("cache_mode must be \"on\" or \"off\", got " + string(cfg.CacheMode))
	}

	if cfg.TimeoutMs <= 0 {
		return nerrors.ErrInvalidInput("timeout_ms must be positive")
	}

	if len(cfg.Relays.Default) == 0 && len(cfg.Relays.Fallback) == 0 {
		return nerrors.ErrInvalidInput("at least one of relays.default or relays.fallback must be configured")
	}

	if len(cfg.Webhook.Secrets) > 0 && strings.TrimSpace(cfg.Webhook.JWTSecret) == "" {
		return nerrors.ErrInvalidInput("webhook.jwt_secret must be set when webhook vendor secrets are configured")
	}
	if cfg.Webhook.JWTSecret != "" && len(cfg.Webhook.JWTSecret) < MinJWTSecretLength {
		return nerrors.ErrInvalidInput("webhook.jwt_secret must be at least 32 characters")
	}

	return nil
}
