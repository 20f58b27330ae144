package config

import (
	"fmt"
	"strings"
)

// Validate checks cross-field constraints after defaults were applied.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config: nil")
	}
	if cfg.RateLimit.RequestsPerMinute < 0 || cfg.RateLimit.Burst < 0 {
		return fmt.Errorf("rate_limit: values must not be negative")
	}
	if cfg.Auth.ClockSkewSeconds < 0 {
		return fmt.Errorf("auth: ClockSkewSeconds must not be negative")
	}
	if cfg.RPCMaxBodyBytes > 16<<20 {
		return fmt.Errorf("RPCMaxBodyBytes above 16 MiB")
	}
	seen := make(map[string]struct{}, len(cfg.Campaigns))
	for i, entry := range cfg.Campaigns {
		name := strings.TrimSpace(entry.Name)
		if name == "" {
			return fmt.Errorf("campaigns[%d]: Name required", i)
		}
		if _, dup := seen[name]; dup {
			return fmt.Errorf("campaigns[%d]: duplicate name %q", i, name)
		}
		seen[name] = struct{}{}
		_, params, err := entry.Params()
		if err != nil {
			return fmt.Errorf("campaigns[%d]: %w", i, err)
		}
		if err := params.Validate(); err != nil {
			return fmt.Errorf("campaigns[%d]: %w", i, err)
		}
	}
	return nil
}
