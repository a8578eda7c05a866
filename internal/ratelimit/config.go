package ratelimit

import (
	"fmt"
	"time"
)

// Config holds rate limiter parameters. WindowSize is in seconds to match
// the policy file format; zero values are filled from DefaultConfig by the
// policy loader.
type Config struct {
	GlobalLimit          int      `yaml:"global_limit"`
	PerAddressLimit      int      `yaml:"per_address_limit"`
	BurstCapacity        int      `yaml:"burst_capacity"`
	WindowSize           float64  `yaml:"window_size"`
	CriticalAddressLimit int      `yaml:"critical_address_limit"`
	CriticalAddresses    []uint32 `yaml:"critical_addresses"`
}

// DefaultConfig returns the built-in limits: 1000 msg/s global, 100 msg/s
// per address, 10 msg/s for critical addresses, burst capacity 10, in a
// one-second rolling window.
func DefaultConfig() Config {
	return Config{
		GlobalLimit:          1000,
		PerAddressLimit:      100,
		BurstCapacity:        10,
		WindowSize:           1.0,
		CriticalAddressLimit: 10,
		CriticalAddresses: []uint32{
			0x180, 0x200, 0x220, 0x260, // core control
			0x343, 0x394, // safety systems
		},
	}
}

// Window returns the rolling window as a duration.
func (c Config) Window() time.Duration {
	return time.Duration(c.WindowSize * float64(time.Second))
}

// Validate rejects configurations that would disable or break the limiter.
func (c Config) Validate() error {
	if c.GlobalLimit <= 0 {
		return fmt.Errorf("global_limit must be positive, got %d", c.GlobalLimit)
	}
	if c.PerAddressLimit <= 0 {
		return fmt.Errorf("per_address_limit must be positive, got %d", c.PerAddressLimit)
	}
	if c.CriticalAddressLimit <= 0 {
		return fmt.Errorf("critical_address_limit must be positive, got %d", c.CriticalAddressLimit)
	}
	if c.BurstCapacity < 0 {
		return fmt.Errorf("burst_capacity must not be negative, got %d", c.BurstCapacity)
	}
	if c.WindowSize <= 0 {
		return fmt.Errorf("window_size must be positive, got %v", c.WindowSize)
	}
	return nil
}
