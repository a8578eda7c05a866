// Package daemon implements the long-lived injector service. Frame
// requests arrive as JSON files in the inbox directory, pass through the
// gate, and results are written to the outbox directory. Rate limiter state
// lives in the daemon process, so limits apply across all requests it
// serves.
package daemon

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/ppiankov/canward/internal/frame"
	"github.com/ppiankov/canward/internal/policy"
	"github.com/ppiankov/canward/internal/safety"
)

// validID matches alphanumeric characters, dashes, and underscores only.
var validID = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// Request is one frame-injection request dropped into the inbox.
// Address accepts hex ("0x180") or decimal notation; Data is payload hex.
type Request struct {
	ID        string    `json:"id"`
	Address   string    `json:"address"`
	Data      string    `json:"data"`
	Bus       int       `json:"bus"`
	FD        bool      `json:"fd,omitempty"`
	Mode      string    `json:"mode,omitempty"` // defaults to the daemon's mode
	Override  bool      `json:"override,omitempty"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

// Result is written to the outbox after a request is processed.
type Result struct {
	ID          string             `json:"id"`
	Status      string             `json:"status"`
	Reason      string             `json:"reason,omitempty"`
	Violations  []safety.Violation `json:"violations,omitempty"`
	Warnings    []string           `json:"warnings,omitempty"`
	Error       string             `json:"error,omitempty"`
	CompletedAt time.Time          `json:"completed_at"`
}

// Result status values. sent/rejected/needs_confirmation mirror gate
// outcomes; failed covers malformed requests and transport errors.
const (
	ResultSent              = "sent"
	ResultRejected          = "rejected"
	ResultNeedsConfirmation = "needs_confirmation"
	ResultFailed            = "failed"
)

// ValidateRequest checks that a request has all required fields and safe
// values, and resolves the frame and mode it describes.
func ValidateRequest(r *Request, defaultMode policy.Mode) (frame.Frame, policy.Mode, error) {
	if r.ID == "" {
		return frame.Frame{}, "", fmt.Errorf("request ID is required")
	}
	if strings.Contains(r.ID, "..") {
		return frame.Frame{}, "", fmt.Errorf("request ID must not contain '..'")
	}
	if !validID.MatchString(r.ID) {
		return frame.Frame{}, "", fmt.Errorf("request ID contains invalid characters: only alphanumeric, dash, and underscore allowed")
	}

	addr, err := frame.ParseAddress(r.Address)
	if err != nil {
		return frame.Frame{}, "", err
	}
	data, err := frame.ParsePayload(r.Data)
	if err != nil {
		return frame.Frame{}, "", err
	}

	mode := defaultMode
	if r.Mode != "" {
		parsed, err := policy.ParseMode(r.Mode)
		if err != nil {
			return frame.Frame{}, "", err
		}
		// A request may tighten the daemon's mode but never loosen it.
		if policy.ModeRank[parsed] < policy.ModeRank[defaultMode] {
			return frame.Frame{}, "", fmt.Errorf(
				"request mode %s is less restrictive than daemon mode %s", parsed, defaultMode)
		}
		mode = parsed
	}

	var f frame.Frame
	if r.FD {
		f, err = frame.NewFD(addr, data, r.Bus)
	} else {
		f, err = frame.New(addr, data, r.Bus)
	}
	if err != nil {
		return frame.Frame{}, "", err
	}
	return f, mode, nil
}
