package config

import (
	"fmt"

	"github.com/caarlos0/env/v10"
)

// Load populates cfg from the process environment using `env` and
// `envDefault` struct tags.
func Load(cfg any) error {
	return parse(cfg, env.Options{})
}

// LoadFrom populates cfg from the given variables instead of the process
// environment. Tags and defaults behave exactly as in Load.
func LoadFrom(cfg any, vars map[string]string) error {
	return parse(cfg, env.Options{Environment: vars})
}

func parse(cfg any, opts env.Options) error {
	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	return nil
}
