// Package transport provides Transmitter implementations for the gate.
// The real vehicle gateway driver is an external collaborator; what lives
// here is the recording mock used by tests and a line writer that spools
// approved frames in candump log format.
package transport

import (
	"encoding/hex"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/ppiankov/canward/internal/frame"
)

// Mock records transmitted frames in memory. FailWith, when set, makes
// every Transmit call fail without recording; tests use it to exercise the
// no-refund path.
type Mock struct {
	mu       sync.Mutex
	FailWith error
	sent     []frame.Frame
}

// Transmit records the frame, or fails if FailWith is set.
func (m *Mock) Transmit(f frame.Frame) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWith != nil {
		return m.FailWith
	}
	m.sent = append(m.sent, f)
	return nil
}

// Sent returns a copy of the frames transmitted so far.
func (m *Mock) Sent() []frame.Frame {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]frame.Frame(nil), m.sent...)
}

// Writer spools frames to an io.Writer, one per line, in candump -l
// format: "(epoch.micros) canN ADDR#PAYLOAD". Downstream tooling that
// already parses candump logs can replay the spool directly.
type Writer struct {
	mu  sync.Mutex
	w   io.Writer
	now func() time.Time
}

// NewWriter creates a line-writer transmitter.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w, now: time.Now}
}

// Transmit writes one candump-format line for the frame.
func (t *Writer) Transmit(f frame.Frame) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	ts := t.now()
	_, err := fmt.Fprintf(t.w, "(%d.%06d) can%d %s#%s\n",
		ts.Unix(), ts.Nanosecond()/1000, f.Bus, formatAddress(f), strings.ToUpper(hex.EncodeToString(f.Data)))
	if err != nil {
		return fmt.Errorf("transport: write frame: %w", err)
	}
	return nil
}

// formatAddress renders the identifier the way candump does: three hex
// digits for standard IDs, eight for extended.
func formatAddress(f frame.Frame) string {
	if f.Extended() {
		return fmt.Sprintf("%08X", f.Address)
	}
	return fmt.Sprintf("%03X", f.Address)
}
