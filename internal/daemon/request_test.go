package daemon

import (
	"testing"

	"github.com/ppiankov/canward/internal/policy"
)

func validRequest() *Request {
	return &Request{
		ID:      "req-001",
		Address: "0x555",
		Data:    "deadbeef",
		Bus:     0,
	}
}

func TestValidateRequestResolvesFrame(t *testing.T) {
	f, mode, err := ValidateRequest(validRequest(), policy.ModeProduction)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if f.Address != 0x555 {
		t.Errorf("expected address 0x555, got 0x%X", f.Address)
	}
	if len(f.Data) != 4 {
		t.Errorf("expected 4 payload bytes, got %d", len(f.Data))
	}
	if mode != policy.ModeProduction {
		t.Errorf("expected daemon mode, got %s", mode)
	}
}

func TestValidateRequestRejectsBadIDs(t *testing.T) {
	for _, id := range []string{"", "../etc/passwd", "a/b", "id with spaces", "id..name"} {
		r := validRequest()
		r.ID = id
		if _, _, err := ValidateRequest(r, policy.ModeProduction); err == nil {
			t.Errorf("%q: expected error", id)
		}
	}
}

func TestValidateRequestRejectsBadAddressOrPayload(t *testing.T) {
	r := validRequest()
	r.Address = "steering"
	if _, _, err := ValidateRequest(r, policy.ModeProduction); err == nil {
		t.Error("expected error for unparseable address")
	}

	r = validRequest()
	r.Data = "zz"
	if _, _, err := ValidateRequest(r, policy.ModeProduction); err == nil {
		t.Error("expected error for non-hex payload")
	}
}

func TestValidateRequestModeMayTightenNotLoosen(t *testing.T) {
	r := validRequest()
	r.Mode = "locked"
	_, mode, err := ValidateRequest(r, policy.ModeProduction)
	if err != nil {
		t.Fatalf("tightening to locked should be allowed: %v", err)
	}
	if mode != policy.ModeLocked {
		t.Errorf("expected locked, got %s", mode)
	}

	r = validRequest()
	r.Mode = "development"
	if _, _, err := ValidateRequest(r, policy.ModeProduction); err == nil {
		t.Error("loosening to development must be rejected")
	}

	r = validRequest()
	r.Mode = "debug"
	if _, _, err := ValidateRequest(r, policy.ModeProduction); err == nil {
		t.Error("unknown mode must be rejected")
	}
}

func TestValidateRequestFDFlag(t *testing.T) {
	r := validRequest()
	r.FD = true
	f, _, err := ValidateRequest(r, policy.ModeProduction)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if !f.FD || f.MaxPayload() != 64 {
		t.Error("FD request should produce an FD frame")
	}
}

func TestRequestID(t *testing.T) {
	cases := []struct {
		path string
		want string
	}{
		{"/inbox/req-001.json", "req-001"},
		{"/inbox/weird name.json", "invalid-request"},
		{"/inbox/.json", "invalid-request"},
	}
	for _, tc := range cases {
		if got := requestID(tc.path); got != tc.want {
			t.Errorf("%s: expected %q, got %q", tc.path, tc.want, got)
		}
	}
}
