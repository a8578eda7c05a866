// Package systemd generates the service unit for the canward daemon and
// checks it for post-install tampering. The daemon's whole value is that
// requests cannot reach the bus around it, so the unit file that pins its
// mode and directories is part of the trusted surface.
package systemd

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// UnitFilePaths are the paths checked for the canward daemon unit file.
var UnitFilePaths = []string{
	"/etc/systemd/system/canward-daemon.service",
	"/etc/systemd/system/canward.service",
}

// DaemonTemplate returns the systemd unit for the canward daemon. The home
// directory holds the inbox/outbox/state layout; ReadWritePaths restricts
// writes to exactly those plus the audit and history files.
func DaemonTemplate(home, mode string) string {
	return fmt.Sprintf(`[Unit]
Description=canward CAN injection safety gate
After=network-online.target

[Service]
Type=simple
User=canward
ExecStart=/usr/local/bin/canward serve --dir %[1]s/daemon --mode %[2]s --audit-log %[1]s/audit.jsonl --history-db %[1]s/history.db
Restart=on-failure
RestartSec=2
NoNewPrivileges=true
PrivateTmp=true
ProtectSystem=strict
ProtectHome=tmpfs
ReadWritePaths=%[1]s/daemon/inbox %[1]s/daemon/outbox %[1]s/daemon/state %[1]s/audit.jsonl %[1]s/history.db

[Install]
WantedBy=multi-user.target
`, home, mode)
}

// UnitHashPath returns where the install-time hash of the unit file is
// stored, under the daemon state directory.
func UnitHashPath(home string) string {
	return filepath.Join(home, "daemon", "state", "unit-file.sha256")
}

// CheckUnitFileIntegrity compares the current unit file hash against the
// stored install-time hash. Returns a warning message if the unit file has
// been modified, or empty string if integrity is confirmed or checking is
// not applicable (no unit file or no stored hash).
func CheckUnitFileIntegrity(home string) string {
	var unitPath string
	for _, p := range UnitFilePaths {
		if _, err := os.Stat(p); err == nil {
			unitPath = p
			break
		}
	}
	if unitPath == "" {
		return "" // Not running under systemd or unit file not found.
	}

	stored, err := os.ReadFile(UnitHashPath(home))
	if err != nil {
		return "" // No stored hash — first install or non-systemd environment.
	}
	expectedHash := strings.TrimSpace(string(stored))
	if len(expectedHash) != 64 {
		return "" // Invalid stored hash.
	}

	data, err := os.ReadFile(unitPath)
	if err != nil {
		return fmt.Sprintf("cannot read unit file %s: %v", unitPath, err)
	}
	h := sha256.Sum256(data)
	actualHash := hex.EncodeToString(h[:])

	if actualHash == expectedHash {
		return ""
	}

	return fmt.Sprintf("systemd unit file %s has been modified since installation (expected %s, got %s)",
		unitPath, expectedHash[:16], actualHash[:16])
}

// RecordUnitFileHash writes the SHA-256 hash of the installed unit file to
// the state directory. Called during installation to record the baseline.
func RecordUnitFileHash(home string) error {
	for _, p := range UnitFilePaths {
		data, err := os.ReadFile(p)
		if err != nil {
			continue
		}
		h := sha256.Sum256(data)
		hash := hex.EncodeToString(h[:])
		return os.WriteFile(UnitHashPath(home), []byte(hash+"\n"), 0600)
	}
	return fmt.Errorf("no unit file found at expected paths")
}
