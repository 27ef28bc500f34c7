package library

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

const (
	DefaultMaxCheckoutLimit    = 5
	DefaultMaxOrganizationFine = 100
)

// Config holds the circulation limits and the material type schedule a
// LendingService is built from.
type Config struct {
	MaxCheckoutLimit    int
	MaxOrganizationFine int
	Types               *TypeRegistry
}

type envLimits struct {
	MaxCheckoutLimit    int `env:"LIBRARY_MAX_CHECKOUT_LIMIT" envDefault:"5"`
	MaxOrganizationFine int `env:"LIBRARY_MAX_ORGANIZATION_FINE" envDefault:"100"`
}

// DefaultConfig returns the standard limits with the default type registry.
func DefaultConfig() Config {
	return Config{
		MaxCheckoutLimit:    DefaultMaxCheckoutLimit,
		MaxOrganizationFine: DefaultMaxOrganizationFine,
		Types:               DefaultTypeRegistry(),
	}
}

// ConfigFromEnv loads the limits from the environment. Types is left nil for
// the caller to fill from a seed file or DefaultTypeRegistry.
func ConfigFromEnv() (Config, error) {
	var limits envLimits
	if err := env.Parse(&limits); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return Config{
		MaxCheckoutLimit:    limits.MaxCheckoutLimit,
		MaxOrganizationFine: limits.MaxOrganizationFine,
	}, nil
}

// Validate checks the limits and that a type registry is present.
func (c Config) Validate() error {
	if c.MaxCheckoutLimit < 1 {
		return fmt.Errorf("max checkout limit %d must be at least 1: %w", c.MaxCheckoutLimit, ErrInvalidArgument)
	}
	if c.MaxOrganizationFine < 0 {
		return fmt.Errorf("max organization fine %d must not be negative: %w", c.MaxOrganizationFine, ErrInvalidArgument)
	}
	if c.Types == nil {
		return fmt.Errorf("material type registry missing: %w", ErrInvalidArgument)
	}
	return nil
}
