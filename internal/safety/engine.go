// Package safety implements the rule engine that classifies candidate CAN
// frames against operating-mode policy. Validation is pure: the engine owns
// an immutable policy snapshot taken at construction and mutates nothing
// per call, so concurrent reads need no synchronization.
package safety

import (
	"fmt"

	"github.com/ppiankov/canward/internal/frame"
	"github.com/ppiankov/canward/internal/policy"
)

// Engine validates frames against the address policy table. Create one per
// process with NewEngine; a malformed table is fatal at construction.
type Engine struct {
	cfg     *policy.Config
	blocked map[policy.Mode]map[uint32]bool
}

// NewEngine validates the policy table and snapshots it. The engine never
// reads the config again after construction, so later mutation of the
// caller's copy cannot affect validation.
func NewEngine(cfg *policy.Config) (*Engine, error) {
	if cfg == nil {
		cfg = policy.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("safety: %w", err)
	}
	blocked := make(map[policy.Mode]map[uint32]bool, len(cfg.Modes))
	for _, mode := range policy.Modes() {
		blocked[mode] = cfg.Blocked(mode)
	}
	return &Engine{cfg: cfg, blocked: blocked}, nil
}

// Validate classifies a frame under the given mode. All checks run and
// violations accumulate; there is no short circuit except that locked mode
// skips address classification. Never returns an error: every rejection is
// a violation in the verdict.
func (e *Engine) Validate(f frame.Frame, mode policy.Mode) Verdict {
	var violations []Violation
	var warnings []string

	switch {
	case mode == policy.ModeLocked:
		violations = append(violations, Violation{
			Rule:     RuleLockedMode,
			Message:  "write operations are not allowed in locked mode",
			Severity: policy.SeverityCritical,
		})

	case e.blocked[mode][f.Address]:
		// Blocked supersedes the critical classification: one outcome per
		// address per call, never both.
		name := fmt.Sprintf("0x%03X", f.Address)
		severity := policy.SeverityCritical
		if info, ok := e.cfg.Info(f.Address); ok {
			name = info.Name
			severity = info.Severity
		}
		violations = append(violations, Violation{
			Rule:        RuleBlockedAddress,
			Message:     fmt.Sprintf("address %s (0x%03X) is blocked in %s mode", name, f.Address, mode),
			Severity:    severity,
			CanOverride: mode == policy.ModeDevelopment,
		})

	default:
		if info, ok := e.cfg.Info(f.Address); ok {
			if mode == policy.ModeProduction {
				violations = append(violations, Violation{
					Rule:                 RuleCriticalMessage,
					Message:              fmt.Sprintf("critical message: %s - %s", info.Name, info.Description),
					Severity:             info.Severity,
					RequiresConfirmation: true,
					CanOverride:          true,
				})
			} else {
				warnings = append(warnings, fmt.Sprintf(
					"CRITICAL: sending to %s (0x%03X) - %s", info.Name, f.Address, info.Description))
			}
		}
	}

	// Structural checks run in every mode, locked included.
	if len(f.Data) > f.MaxPayload() {
		format := "classic CAN"
		if f.FD {
			format = "CAN FD"
		}
		violations = append(violations, Violation{
			Rule:     RuleInvalidDataLength,
			Message:  fmt.Sprintf("data length %d exceeds %s limit of %d bytes", len(f.Data), format, f.MaxPayload()),
			Severity: policy.SeverityHigh,
		})
	}

	if f.Bus < 0 || f.Bus > 2 {
		violations = append(violations, Violation{
			Rule:     RuleInvalidBus,
			Message:  fmt.Sprintf("invalid bus number: %d (valid: 0, 1, 2)", f.Bus),
			Severity: policy.SeverityHigh,
		})
	}

	// Advisories. Cosmetic only; Passed depends on violations alone.
	if mode == policy.ModeDevelopment && len(violations) == 0 {
		warnings = append(warnings, "development mode active - safety checks reduced")
	} else if mode == policy.ModeProduction && len(violations) == 0 && len(warnings) == 0 && len(f.Data) == 0 {
		warnings = append(warnings, "sending empty data payload")
	}

	return Verdict{
		Passed:     len(violations) == 0,
		Violations: violations,
		Warnings:   warnings,
	}
}

// Info describes the engine's active policy for status output.
type Info struct {
	CriticalAddresses int            `json:"critical_addresses"`
	BlockedPerMode    map[string]int `json:"blocked_per_mode"`
}

// Describe summarizes the policy snapshot.
func (e *Engine) Describe() Info {
	info := Info{
		CriticalAddresses: len(e.cfg.Addresses),
		BlockedPerMode:    make(map[string]int, len(e.blocked)),
	}
	for mode, set := range e.blocked {
		info.BlockedPerMode[string(mode)] = len(set)
	}
	return info
}
