// Package policy holds the address policy table and operating-mode
// configuration for the safety gate. The table is loaded once, validated,
// and treated as read-only for the lifetime of the engine that snapshots it.
package policy

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/ppiankov/canward/internal/frame"
	"github.com/ppiankov/canward/internal/ratelimit"
)

// AddressInfo describes one known safety-relevant address.
type AddressInfo struct {
	Name        string   `yaml:"name"`
	Severity    Severity `yaml:"severity"`
	Description string   `yaml:"description"`
}

// ModePolicy holds the per-mode address restrictions.
type ModePolicy struct {
	Blocked []uint32 `yaml:"blocked"`
}

// Config is the full address policy: the critical-address table, per-mode
// blocked sets, and rate limit parameters.
type Config struct {
	Addresses  map[uint32]AddressInfo `yaml:"addresses"`
	Modes      map[Mode]ModePolicy    `yaml:"modes"`
	RateLimits ratelimit.Config       `yaml:"rate_limits"`
}

// Default returns the built-in policy. The address table covers actuator
// commands common across many vehicles; real deployments should customize
// it per platform.
func Default() *Config {
	addresses := map[uint32]AddressInfo{
		// Steering
		0x180: {Name: "Steering Control", Severity: SeverityCritical, Description: "Direct steering torque command"},
		0x2E4: {Name: "Steering Assist", Severity: SeverityCritical, Description: "Lane keeping assist command"},
		// Brakes
		0x200: {Name: "Brake Command", Severity: SeverityCritical, Description: "Direct brake actuation"},
		0x343: {Name: "AEB Control", Severity: SeverityCritical, Description: "Automatic emergency braking"},
		0x1FA: {Name: "Brake Pressure", Severity: SeverityCritical, Description: "Brake pressure request"},
		// Throttle and engine
		0x220: {Name: "Throttle Control", Severity: SeverityCritical, Description: "Throttle position command"},
		0x2C1: {Name: "Engine Torque", Severity: SeverityCritical, Description: "Engine torque request"},
		// Transmission
		0x260: {Name: "Transmission Control", Severity: SeverityCritical, Description: "Gear selection command"},
		0x1D2: {Name: "Shift Request", Severity: SeverityCritical, Description: "Transmission shift request"},
		// Safety systems
		0x326: {Name: "Cruise Control", Severity: SeverityHigh, Description: "ACC/Cruise commands"},
		0x394: {Name: "Airbag Control", Severity: SeverityCritical, Description: "Airbag deployment control"},
		// Other
		0x3B7: {Name: "Power Steering", Severity: SeverityHigh, Description: "EPS control"},
		0x451: {Name: "Stability Control", Severity: SeverityHigh, Description: "ESC/VSC commands"},
	}

	allCritical := make([]uint32, 0, len(addresses))
	for addr := range addresses {
		allCritical = append(allCritical, addr)
	}
	sort.Slice(allCritical, func(i, j int) bool { return allCritical[i] < allCritical[j] })

	return &Config{
		Addresses: addresses,
		Modes: map[Mode]ModePolicy{
			ModeLocked:      {Blocked: allCritical},
			ModeProduction:  {Blocked: []uint32{0x180, 0x200, 0x220, 0x260, 0x343, 0x394}},
			ModeTesting:     {Blocked: []uint32{0x180, 0x200, 0x394}},
			ModeDevelopment: {},
		},
		RateLimits: ratelimit.DefaultConfig(),
	}
}

// Info looks up the policy entry for an address.
func (c *Config) Info(address uint32) (AddressInfo, bool) {
	info, ok := c.Addresses[address]
	return info, ok
}

// Blocked returns the blocked-address set for a mode.
func (c *Config) Blocked(mode Mode) map[uint32]bool {
	mp := c.Modes[mode]
	set := make(map[uint32]bool, len(mp.Blocked))
	for _, addr := range mp.Blocked {
		set[addr] = true
	}
	return set
}

// Validate rejects malformed policy tables. A failure here is fatal at
// engine construction; the gate never runs on a table it cannot trust.
func (c *Config) Validate() error {
	for addr, info := range c.Addresses {
		if addr > frame.MaxAddress {
			return fmt.Errorf("address 0x%X out of 29-bit range", addr)
		}
		if _, err := ParseSeverity(string(info.Severity)); err != nil {
			return fmt.Errorf("address 0x%03X: %w", addr, err)
		}
		if info.Name == "" {
			return fmt.Errorf("address 0x%03X: name is required", addr)
		}
	}
	for mode, mp := range c.Modes {
		if _, err := ParseMode(string(mode)); err != nil {
			return fmt.Errorf("modes: %w", err)
		}
		for _, addr := range mp.Blocked {
			if addr > frame.MaxAddress {
				return fmt.Errorf("mode %s: blocked address 0x%X out of 29-bit range", mode, addr)
			}
		}
	}
	if err := c.RateLimits.Validate(); err != nil {
		return fmt.Errorf("rate_limits: %w", err)
	}
	return nil
}

// Load reads policy configuration from a YAML file. An empty path or a
// missing file returns the built-in defaults; YAML overwrites only the
// sections it specifies. The result is validated.
func Load(path string) (*Config, error) {
	cfg, _, err := LoadWithHash(path)
	return cfg, err
}

// LoadWithHash loads policy configuration and returns the SHA-256 hash of
// the raw YAML bytes, for audit records. Defaults hash as empty input.
func LoadWithHash(path string) (*Config, string, error) {
	cfg := Default()

	var raw []byte
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, "", fmt.Errorf("failed to read policy config: %w", err)
		}
		if err == nil {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, "", fmt.Errorf("failed to parse policy config: %w", err)
			}
			raw = data
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", fmt.Errorf("invalid policy config: %w", err)
	}

	h := sha256.Sum256(raw)
	return cfg, "sha256:" + hex.EncodeToString(h[:]), nil
}

// DefaultYAML returns a commented policy file for `canward policy init`.
func DefaultYAML() string {
	return `# canward address policy
# Generated by: canward policy init
#
# Validation order (cannot be changed):
#   1. locked mode gate
#   2. blocked address check (per-mode "blocked" lists below)
#   3. critical address classification (the "addresses" table below)
#   4. payload length (8 bytes classic, 64 bytes CAN FD)
#   5. bus range (0, 1, 2)

# Known safety-relevant addresses. Writes to these produce a confirmation
# requirement in production mode and a warning elsewhere (unless blocked).
# Severity: low | medium | high | critical
addresses:
  0x180: {name: "Steering Control", severity: critical, description: "Direct steering torque command"}
  0x2E4: {name: "Steering Assist", severity: critical, description: "Lane keeping assist command"}
  0x200: {name: "Brake Command", severity: critical, description: "Direct brake actuation"}
  0x343: {name: "AEB Control", severity: critical, description: "Automatic emergency braking"}
  0x1FA: {name: "Brake Pressure", severity: critical, description: "Brake pressure request"}
  0x220: {name: "Throttle Control", severity: critical, description: "Throttle position command"}
  0x2C1: {name: "Engine Torque", severity: critical, description: "Engine torque request"}
  0x260: {name: "Transmission Control", severity: critical, description: "Gear selection command"}
  0x1D2: {name: "Shift Request", severity: critical, description: "Transmission shift request"}
  0x326: {name: "Cruise Control", severity: high, description: "ACC/Cruise commands"}
  0x394: {name: "Airbag Control", severity: critical, description: "Airbag deployment control"}
  0x3B7: {name: "Power Steering", severity: high, description: "EPS control"}
  0x451: {name: "Stability Control", severity: high, description: "ESC/VSC commands"}

# Per-mode blocked addresses. Blocked supersedes the critical classification.
# In development mode a blocked-address violation can be overridden.
modes:
  locked:
    blocked: [0x180, 0x1D2, 0x1FA, 0x200, 0x220, 0x260, 0x2C1, 0x2E4, 0x326, 0x343, 0x394, 0x3B7, 0x451]
  production:
    blocked: [0x180, 0x200, 0x220, 0x260, 0x343, 0x394]
  testing:
    blocked: [0x180, 0x200, 0x394]
  development:
    blocked: []

# Rate limits. window_size is in seconds. Critical addresses get the lower
# critical_address_limit and share the same burst-token mechanics.
rate_limits:
  global_limit: 1000
  per_address_limit: 100
  burst_capacity: 10
  window_size: 1.0
  critical_address_limit: 10
  critical_addresses: [0x180, 0x200, 0x220, 0x260, 0x343, 0x394]
`
}
