// Package config loads service configuration from the process environment.
// Every variable carries the BLINDLOG_ prefix, declared on the env tags of
// each component's Config struct.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// ParseEnv populates target from its env struct tags, applying envDefault
// values for variables that are unset.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}
