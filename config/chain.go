package config

import "fmt"

// ChainConfig selects how the commit chain guards concurrent appends.
// "none" preserves the historical read-then-write behavior (concurrent
// appenders can fork the chain), "mutex" serializes appends in-process,
// and "compare-append" rejects an append when the tail moved.
type ChainConfig struct {
	Guard string `yaml:"guard"`
}

// SetDefaults sets the default guard mode.
func (c *ChainConfig) SetDefaults() {
	if c.Guard == "" {
		c.Guard = "none"
		fmt.Printf("Warning: chain.guard not set, defaulting to %s\n", c.Guard)
	}
}

// Validate checks the guard mode value.
func (c *ChainConfig) Validate() error {
	switch c.Guard {
	case "none", "mutex", "compare-append":
		return nil
	default:
		return fmt.Errorf("chain.guard must be one of none, mutex, compare-append (got %q)", c.Guard)
	}
}
