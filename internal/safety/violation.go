package safety

import "github.com/ppiankov/canward/internal/policy"

// Rule identifiers emitted in violations.
const (
	RuleLockedMode        = "locked_mode"
	RuleBlockedAddress    = "blocked_address"
	RuleCriticalMessage   = "critical_message"
	RuleInvalidDataLength = "invalid_data_length"
	RuleInvalidBus        = "invalid_bus"
)

// Violation is one failed safety rule. RequiresConfirmation marks
// violations that may proceed after explicit confirmation; CanOverride
// marks violations a caller may force past at all.
type Violation struct {
	Rule                 string          `json:"rule"`
	Message              string          `json:"message"`
	Severity             policy.Severity `json:"severity"`
	RequiresConfirmation bool            `json:"requires_confirmation"`
	CanOverride          bool            `json:"can_override"`
}

// Verdict is the result of validating one frame. Passed is true exactly
// when Violations is empty; Warnings are advisory and never affect Passed.
type Verdict struct {
	Passed     bool        `json:"passed"`
	Violations []Violation `json:"violations"`
	Warnings   []string    `json:"warnings"`
}

// RequiresConfirmation reports whether any violation requires confirmation.
func (v Verdict) RequiresConfirmation() bool {
	for _, viol := range v.Violations {
		if viol.RequiresConfirmation {
			return true
		}
	}
	return false
}

// CanOverride reports whether every violation can be overridden. Vacuously
// true when there are no violations.
func (v Verdict) CanOverride() bool {
	for _, viol := range v.Violations {
		if !viol.CanOverride {
			return false
		}
	}
	return true
}
