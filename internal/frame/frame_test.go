package frame

import (
	"bytes"
	"testing"
)

func TestNewRejectsOutOfRangeAddress(t *testing.T) {
	if _, err := New(MaxAddress+1, nil, 0); err == nil {
		t.Error("expected error for address above 29-bit range")
	}
	if _, err := New(MaxAddress, nil, 0); err != nil {
		t.Errorf("max address should be accepted: %v", err)
	}
}

func TestNewCopiesPayload(t *testing.T) {
	data := []byte{0x01, 0x02}
	f, err := New(0x100, data, 0)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	data[0] = 0xFF
	if f.Data[0] != 0x01 {
		t.Error("frame payload must not alias the caller's slice")
	}
}

func TestExtended(t *testing.T) {
	f, _ := New(0x7FF, nil, 0)
	if f.Extended() {
		t.Error("0x7FF is a standard identifier")
	}
	f, _ = New(0x800, nil, 0)
	if !f.Extended() {
		t.Error("0x800 is an extended identifier")
	}
}

func TestMaxPayload(t *testing.T) {
	f, _ := New(0x100, nil, 0)
	if f.MaxPayload() != 8 {
		t.Errorf("classic frame: expected 8, got %d", f.MaxPayload())
	}
	fd, _ := NewFD(0x100, nil, 0)
	if fd.MaxPayload() != 64 {
		t.Errorf("FD frame: expected 64, got %d", fd.MaxPayload())
	}
}

func TestParsePayload(t *testing.T) {
	got, err := ParsePayload("DE AD be ef")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !bytes.Equal(got, []byte{0xDE, 0xAD, 0xBE, 0xEF}) {
		t.Errorf("unexpected payload: %x", got)
	}

	got, err = ParsePayload("0x0102")
	if err != nil {
		t.Fatalf("parse with prefix: %v", err)
	}
	if !bytes.Equal(got, []byte{0x01, 0x02}) {
		t.Errorf("unexpected payload: %x", got)
	}

	got, err = ParsePayload("")
	if err != nil {
		t.Fatalf("empty payload: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected zero-length payload, got %x", got)
	}

	if _, err := ParsePayload("zz"); err == nil {
		t.Error("expected error for non-hex payload")
	}
}

func TestParseAddress(t *testing.T) {
	cases := []struct {
		in   string
		want uint32
	}{
		{"0x180", 0x180},
		{"384", 384},
		{" 0x7FF ", 0x7FF},
	}
	for _, tc := range cases {
		got, err := ParseAddress(tc.in)
		if err != nil {
			t.Errorf("%q: %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("%q: expected 0x%X, got 0x%X", tc.in, tc.want, got)
		}
	}

	for _, bad := range []string{"", "steering", "0x20000000"} {
		if _, err := ParseAddress(bad); err == nil {
			t.Errorf("%q: expected error", bad)
		}
	}
}

func TestString(t *testing.T) {
	f, _ := New(0x180, []byte{0xDE, 0xAD}, 1)
	if got := f.String(); got != "[1] 0x180: dead" {
		t.Errorf("unexpected string: %q", got)
	}
}
