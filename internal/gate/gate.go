// Package gate combines the safety rule engine and the rate limiter into
// the single decision every outbound frame must pass. Validation runs
// first, then rate limiting; a rate limit denial is never overridable.
package gate

import (
	"encoding/hex"
	"fmt"
	"time"

	"github.com/ppiankov/canward/internal/audit"
	"github.com/ppiankov/canward/internal/frame"
	"github.com/ppiankov/canward/internal/policy"
	"github.com/ppiankov/canward/internal/ratelimit"
	"github.com/ppiankov/canward/internal/safety"
)

// Status is the terminal classification of a submit.
type Status string

const (
	StatusSent              Status = "sent"
	StatusRejected          Status = "rejected"
	StatusNeedsConfirmation Status = "needs_confirmation"
)

// Outcome is the gate's decision for one frame. NeedsConfirmation is not
// terminal: the caller obtains confirmation and re-submits with
// override=true. Nothing inside the gate blocks waiting for it.
type Outcome struct {
	Status  Status         `json:"status"`
	Verdict safety.Verdict `json:"verdict"`
	Reason  string         `json:"reason,omitempty"`
}

// Transmitter hands an approved frame to the transport. Implementations
// live behind this interface; the gate only ever calls Transmit for a Sent
// outcome.
type Transmitter interface {
	Transmit(f frame.Frame) error
}

// Config wires the gate's collaborators. Engine and Limiter are required;
// Transmitter and Audit are optional (a nil Transmitter makes Dispatch a
// dry run, a nil Audit disables audit records).
type Config struct {
	Engine      *safety.Engine
	Limiter     *ratelimit.Limiter
	Transmitter Transmitter
	Audit       *audit.Log
	PolicyHash  string
}

// Gate is the orchestrator in front of the transport.
type Gate struct {
	cfg Config
}

// New creates a gate. Missing engine or limiter is a construction error.
func New(cfg Config) (*Gate, error) {
	if cfg.Engine == nil {
		return nil, fmt.Errorf("gate: engine is required")
	}
	if cfg.Limiter == nil {
		return nil, fmt.Errorf("gate: limiter is required")
	}
	return &Gate{cfg: cfg}, nil
}

// Submit runs the two-stage decision for a frame. Stage order is fixed:
// rule engine first, rate limiter second, so a frame that fails validation
// never consumes rate limit quota.
//
// Confirmation is a two-phase protocol: a verdict that requires
// confirmation returns NeedsConfirmation, and the caller re-submits with
// override=true once confirmed. Overridable violations without a
// confirmation requirement still reject unless override is set.
func (g *Gate) Submit(f frame.Frame, mode policy.Mode, now time.Time, override bool) Outcome {
	verdict := g.cfg.Engine.Validate(f, mode)

	if !verdict.Passed {
		if !verdict.CanOverride() {
			return Outcome{Status: StatusRejected, Verdict: verdict, Reason: firstMessage(verdict)}
		}
		if !override {
			if verdict.RequiresConfirmation() {
				return Outcome{Status: StatusNeedsConfirmation, Verdict: verdict, Reason: firstMessage(verdict)}
			}
			return Outcome{Status: StatusRejected, Verdict: verdict, Reason: firstMessage(verdict)}
		}
		// Overridden: proceed as confirmed.
	} else if verdict.RequiresConfirmation() && !override {
		return Outcome{Status: StatusNeedsConfirmation, Verdict: verdict, Reason: firstMessage(verdict)}
	}

	if dec := g.cfg.Limiter.CheckAndRecord(f.Address, now); !dec.Allowed {
		return Outcome{Status: StatusRejected, Verdict: verdict, Reason: dec.Reason}
	}

	return Outcome{Status: StatusSent, Verdict: verdict}
}

// Dispatch submits a frame and, on a Sent outcome, hands it to the
// transmitter. One audit record is written per terminal outcome; a pending
// confirmation writes nothing. A transport failure is reported as an error
// with the frame treated as not sent, but the consumed rate limit quota is
// not refunded.
func (g *Gate) Dispatch(f frame.Frame, mode policy.Mode, now time.Time, override bool) (Outcome, error) {
	out := g.Submit(f, mode, now, override)

	switch out.Status {
	case StatusSent:
		if g.cfg.Transmitter != nil {
			if err := g.cfg.Transmitter.Transmit(f); err != nil {
				if aerr := g.record(f, mode, "transmit_failed", err.Error(), override); aerr != nil {
					return out, fmt.Errorf("transmit: %v (audit: %w)", err, aerr)
				}
				return out, fmt.Errorf("transmit: %w", err)
			}
		}
		if err := g.record(f, mode, string(StatusSent), out.Reason, override); err != nil {
			return out, err
		}
	case StatusRejected:
		if err := g.record(f, mode, string(StatusRejected), out.Reason, override); err != nil {
			return out, err
		}
	case StatusNeedsConfirmation:
		// Not terminal. The resolved re-submit produces the audit record.
	}

	return out, nil
}

// record appends one audit entry, if an audit log is configured.
func (g *Gate) record(f frame.Frame, mode policy.Mode, outcome, reason string, override bool) error {
	if g.cfg.Audit == nil {
		return nil
	}
	return g.cfg.Audit.Record(audit.Entry{
		Address:    fmt.Sprintf("0x%03X", f.Address),
		Data:       hex.EncodeToString(f.Data),
		Bus:        f.Bus,
		Mode:       string(mode),
		Outcome:    outcome,
		Reason:     reason,
		Overridden: override,
		PolicyHash: g.cfg.PolicyHash,
	})
}

// firstMessage returns the leading violation message for the outcome reason.
func firstMessage(v safety.Verdict) string {
	if len(v.Violations) == 0 {
		return ""
	}
	return v.Violations[0].Message
}
