// Package frame defines the CAN frame value type used throughout canward.
// A Frame is validated at construction and treated as immutable afterwards;
// length and bus checks that depend on policy belong to the safety engine,
// not here.
package frame

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
)

// Identifier and payload limits.
const (
	MaxStdAddress = 0x7FF      // 11-bit standard identifier
	MaxAddress    = 0x1FFFFFFF // 29-bit extended identifier

	MaxClassicPayload = 8  // classic CAN 2.0
	MaxFDPayload      = 64 // CAN FD
)

// Frame is one candidate CAN frame. Construct via New or NewFD; the payload
// is copied so the frame cannot be mutated through the caller's slice.
type Frame struct {
	Address uint32
	Data    []byte
	Bus     int
	FD      bool
}

// New creates a classic-CAN frame. The only construction-time rejection is
// an identifier above the 29-bit range; bus and payload length validity are
// policy questions answered by the safety engine.
func New(address uint32, data []byte, bus int) (Frame, error) {
	if address > MaxAddress {
		return Frame{}, fmt.Errorf("invalid CAN address: 0x%X (max 0x%X)", address, MaxAddress)
	}
	return Frame{
		Address: address,
		Data:    append([]byte(nil), data...),
		Bus:     bus,
	}, nil
}

// NewFD creates a CAN FD frame. Same construction rules as New; the FD flag
// raises the payload ceiling the safety engine applies from 8 to 64 bytes.
func NewFD(address uint32, data []byte, bus int) (Frame, error) {
	f, err := New(address, data, bus)
	if err != nil {
		return Frame{}, err
	}
	f.FD = true
	return f, nil
}

// Extended reports whether the frame uses a 29-bit identifier.
func (f Frame) Extended() bool {
	return f.Address > MaxStdAddress
}

// MaxPayload returns the payload ceiling for this frame's format.
func (f Frame) MaxPayload() int {
	if f.FD {
		return MaxFDPayload
	}
	return MaxClassicPayload
}

// String renders the frame as "[bus] 0xADDR: payload-hex".
func (f Frame) String() string {
	return fmt.Sprintf("[%d] 0x%03X: %s", f.Bus, f.Address, hex.EncodeToString(f.Data))
}

// ParsePayload decodes a hex payload string. Accepts an optional "0x" prefix
// and ignores spaces, so "DE AD BE EF" and "0xdeadbeef" are equivalent.
// An empty string is a valid zero-length payload.
func ParsePayload(s string) ([]byte, error) {
	s = strings.ReplaceAll(s, " ", "")
	s = strings.TrimPrefix(s, "0x")
	s = strings.TrimPrefix(s, "0X")
	if s == "" {
		return []byte{}, nil
	}
	data, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid hex payload: %w", err)
	}
	return data, nil
}

// ParseAddress parses a CAN identifier from decimal ("384") or hex ("0x180")
// notation and validates the 29-bit range.
func ParseAddress(s string) (uint32, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty address")
	}
	addr, err := strconv.ParseUint(s, 0, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid address %q: %w", s, err)
	}
	if addr > MaxAddress {
		return 0, fmt.Errorf("invalid CAN address: 0x%X (max 0x%X)", addr, MaxAddress)
	}
	return uint32(addr), nil
}
