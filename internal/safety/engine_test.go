package safety

import (
	"testing"

	"github.com/ppiankov/canward/internal/frame"
	"github.com/ppiankov/canward/internal/policy"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := NewEngine(policy.Default())
	if err != nil {
		t.Fatalf("failed to create engine: %v", err)
	}
	return e
}

func mustFrame(t *testing.T, address uint32, data []byte, bus int) frame.Frame {
	t.Helper()
	f, err := frame.New(address, data, bus)
	if err != nil {
		t.Fatalf("frame: %v", err)
	}
	return f
}

func hasRule(v Verdict, rule string) bool {
	for _, viol := range v.Violations {
		if viol.Rule == rule {
			return true
		}
	}
	return false
}

// --- Locked mode ---

func TestLockedModeAlwaysFails(t *testing.T) {
	e := newTestEngine(t)

	for _, addr := range []uint32{0x100, 0x180, 0x7FF} {
		v := e.Validate(mustFrame(t, addr, []byte{0x01}, 0), policy.ModeLocked)
		if v.Passed {
			t.Errorf("addr 0x%03X: expected failure in locked mode", addr)
		}
		if !hasRule(v, RuleLockedMode) {
			t.Errorf("addr 0x%03X: expected locked_mode violation", addr)
		}
		if v.CanOverride() {
			t.Errorf("addr 0x%03X: locked mode must not be overridable", addr)
		}
	}
}

func TestLockedModeSkipsAddressClassification(t *testing.T) {
	e := newTestEngine(t)

	// 0x180 is both critical and blocked, but locked mode reports only the
	// mode gate for the address.
	v := e.Validate(mustFrame(t, 0x180, []byte{0x01}, 0), policy.ModeLocked)
	if hasRule(v, RuleBlockedAddress) || hasRule(v, RuleCriticalMessage) {
		t.Errorf("locked mode should not classify addresses, got %+v", v.Violations)
	}
	if len(v.Warnings) != 0 {
		t.Errorf("expected no warnings, got %v", v.Warnings)
	}
}

func TestLockedModeStillRunsStructuralChecks(t *testing.T) {
	e := newTestEngine(t)

	long := make([]byte, 9)
	v := e.Validate(mustFrame(t, 0x100, long, 5), policy.ModeLocked)
	if !hasRule(v, RuleInvalidDataLength) {
		t.Error("expected invalid_data_length in locked mode")
	}
	if !hasRule(v, RuleInvalidBus) {
		t.Error("expected invalid_bus in locked mode")
	}
}

// --- Blocked addresses ---

func TestBlockedAddressInProduction(t *testing.T) {
	e := newTestEngine(t)

	v := e.Validate(mustFrame(t, 0x180, []byte{0x01}, 0), policy.ModeProduction)
	if v.Passed {
		t.Fatal("expected failure for blocked address")
	}
	if !hasRule(v, RuleBlockedAddress) {
		t.Fatalf("expected blocked_address, got %+v", v.Violations)
	}
	if v.CanOverride() {
		t.Error("blocked address must not be overridable outside development")
	}
}

func TestBlockedAddressOverridableInDevelopment(t *testing.T) {
	cfg := policy.Default()
	cfg.Modes[policy.ModeDevelopment] = policy.ModePolicy{Blocked: []uint32{0x180}}
	e, err := NewEngine(cfg)
	if err != nil {
		t.Fatalf("engine: %v", err)
	}

	v := e.Validate(mustFrame(t, 0x180, []byte{0x01}, 0), policy.ModeDevelopment)
	if v.Passed {
		t.Fatal("expected failure for blocked address")
	}
	if !v.CanOverride() {
		t.Error("blocked address in development mode should be overridable")
	}
}

func TestBlockedSupersedesCritical(t *testing.T) {
	e := newTestEngine(t)

	// 0x180 is blocked in production; only blocked_address may fire.
	v := e.Validate(mustFrame(t, 0x180, []byte{0x01}, 0), policy.ModeProduction)
	if hasRule(v, RuleCriticalMessage) {
		t.Error("blocked address must not also emit critical_message")
	}
	if len(v.Warnings) != 0 {
		t.Errorf("blocked address must not also warn, got %v", v.Warnings)
	}
}

func TestBlockedUnknownAddressDefaultsCritical(t *testing.T) {
	cfg := policy.Default()
	cfg.Modes[policy.ModeTesting] = policy.ModePolicy{Blocked: []uint32{0x555}}
	e, err := NewEngine(cfg)
	if err != nil {
		t.Fatalf("engine: %v", err)
	}

	v := e.Validate(mustFrame(t, 0x555, []byte{0x01}, 0), policy.ModeTesting)
	if len(v.Violations) != 1 {
		t.Fatalf("expected 1 violation, got %d", len(v.Violations))
	}
	if v.Violations[0].Severity != policy.SeverityCritical {
		t.Errorf("unknown blocked address should default to critical, got %s", v.Violations[0].Severity)
	}
}

// --- Critical classification ---

func TestCriticalAddressInProduction(t *testing.T) {
	e := newTestEngine(t)

	// 0x2E4 is critical but not in the production blocked set.
	v := e.Validate(mustFrame(t, 0x2E4, []byte{0x01}, 0), policy.ModeProduction)
	if v.Passed {
		t.Fatal("expected failure for critical address in production")
	}
	if len(v.Violations) != 1 {
		t.Fatalf("expected exactly 1 violation, got %d", len(v.Violations))
	}
	viol := v.Violations[0]
	if viol.Rule != RuleCriticalMessage {
		t.Errorf("expected critical_message, got %s", viol.Rule)
	}
	if !viol.RequiresConfirmation {
		t.Error("critical_message must require confirmation")
	}
	if !viol.CanOverride {
		t.Error("critical_message must be overridable")
	}
	if len(v.Warnings) != 0 {
		t.Errorf("expected zero warnings, got %v", v.Warnings)
	}
}

func TestCriticalAddressWarnsOutsideProduction(t *testing.T) {
	e := newTestEngine(t)

	// 0x2E4 is not blocked in testing mode.
	v := e.Validate(mustFrame(t, 0x2E4, []byte{0x01}, 0), policy.ModeTesting)
	if !v.Passed {
		t.Fatalf("expected pass with warning, got %+v", v.Violations)
	}
	if len(v.Warnings) != 1 {
		t.Fatalf("expected 1 warning, got %v", v.Warnings)
	}
}

func TestUnknownAddressPasses(t *testing.T) {
	e := newTestEngine(t)

	v := e.Validate(mustFrame(t, 0x42A, []byte{0x01, 0x02}, 1), policy.ModeProduction)
	if !v.Passed {
		t.Fatalf("expected pass for unknown address, got %+v", v.Violations)
	}
	if v.RequiresConfirmation() {
		t.Error("no violations should mean no confirmation requirement")
	}
	if !v.CanOverride() {
		t.Error("CanOverride must be vacuously true with no violations")
	}
}

// --- Structural checks ---

func TestClassicPayloadLimit(t *testing.T) {
	e := newTestEngine(t)

	for _, mode := range policy.Modes() {
		v := e.Validate(mustFrame(t, 0x100, make([]byte, 9), 0), mode)
		if !hasRule(v, RuleInvalidDataLength) {
			t.Errorf("mode %s: expected invalid_data_length for 9-byte classic payload", mode)
		}
		for _, viol := range v.Violations {
			if viol.Rule == RuleInvalidDataLength && viol.CanOverride {
				t.Errorf("mode %s: invalid_data_length must not be overridable", mode)
			}
		}
	}
}

func TestFDPayloadLimit(t *testing.T) {
	e := newTestEngine(t)

	f, err := frame.NewFD(0x100, make([]byte, 64), 0)
	if err != nil {
		t.Fatalf("frame: %v", err)
	}
	if v := e.Validate(f, policy.ModeTesting); !v.Passed {
		t.Errorf("64-byte FD payload should pass, got %+v", v.Violations)
	}

	f, err = frame.NewFD(0x100, make([]byte, 65), 0)
	if err != nil {
		t.Fatalf("frame: %v", err)
	}
	if v := e.Validate(f, policy.ModeTesting); !hasRule(v, RuleInvalidDataLength) {
		t.Error("65-byte FD payload should fail")
	}
}

func TestInvalidBus(t *testing.T) {
	e := newTestEngine(t)

	for _, bus := range []int{-1, 3, 7} {
		v := e.Validate(mustFrame(t, 0x100, []byte{0x01}, bus), policy.ModeDevelopment)
		if !hasRule(v, RuleInvalidBus) {
			t.Errorf("bus %d: expected invalid_bus violation", bus)
		}
	}
	for _, bus := range []int{0, 1, 2} {
		v := e.Validate(mustFrame(t, 0x100, []byte{0x01}, bus), policy.ModeDevelopment)
		if hasRule(v, RuleInvalidBus) {
			t.Errorf("bus %d: unexpected invalid_bus violation", bus)
		}
	}
}

// --- Advisories ---

func TestDevelopmentAdvisory(t *testing.T) {
	e := newTestEngine(t)

	v := e.Validate(mustFrame(t, 0x100, []byte{0x01}, 0), policy.ModeDevelopment)
	if !v.Passed {
		t.Fatalf("expected pass, got %+v", v.Violations)
	}
	if len(v.Warnings) != 1 {
		t.Fatalf("expected development advisory, got %v", v.Warnings)
	}
}

func TestEmptyPayloadAdvisoryInProduction(t *testing.T) {
	e := newTestEngine(t)

	v := e.Validate(mustFrame(t, 0x100, nil, 0), policy.ModeProduction)
	if !v.Passed {
		t.Fatalf("expected pass, got %+v", v.Violations)
	}
	if len(v.Warnings) != 1 {
		t.Fatalf("expected empty payload advisory, got %v", v.Warnings)
	}
}

func TestAdvisoriesDoNotAffectPassed(t *testing.T) {
	e := newTestEngine(t)

	v := e.Validate(mustFrame(t, 0x100, nil, 0), policy.ModeProduction)
	if !v.Passed {
		t.Error("advisory warnings must never fail a frame")
	}
}

// --- Construction ---

func TestNewEngineRejectsMalformedPolicy(t *testing.T) {
	cfg := policy.Default()
	cfg.Addresses[0x999] = policy.AddressInfo{Name: "Bogus", Severity: "extreme"}
	if _, err := NewEngine(cfg); err == nil {
		t.Error("expected error for unknown severity")
	}
}

func TestNewEngineNilConfigUsesDefaults(t *testing.T) {
	e, err := NewEngine(nil)
	if err != nil {
		t.Fatalf("nil config should use defaults: %v", err)
	}
	v := e.Validate(mustFrame(t, 0x180, []byte{0x01}, 0), policy.ModeProduction)
	if v.Passed {
		t.Error("default policy should block 0x180 in production")
	}
}
