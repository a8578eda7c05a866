package daemon

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ppiankov/canward/internal/frame"
	"github.com/ppiankov/canward/internal/gate"
	"github.com/ppiankov/canward/internal/history"
	"github.com/ppiankov/canward/internal/policy"
)

// ProcessorConfig holds runtime configuration for request processing.
type ProcessorConfig struct {
	Dirs    DirConfig
	Mode    policy.Mode
	Gate    *gate.Gate
	History *history.Store // optional
}

// Processor handles request lifecycle transitions.
type Processor struct {
	cfg ProcessorConfig
}

// NewProcessor creates a processor with the given configuration.
func NewProcessor(cfg ProcessorConfig) *Processor {
	if cfg.Mode == "" {
		cfg.Mode = policy.ModeProduction
	}
	return &Processor{cfg: cfg}
}

// Process handles a single request file through its full lifecycle:
// read, validate, move to processing, run the gate, write the result to
// the outbox, archive the request.
func (p *Processor) Process(_ context.Context, reqPath string) error {
	// Structural symlink defense: reject symlinks before reading, so an
	// inbox file cannot point the daemon at an arbitrary filesystem path.
	fi, err := os.Lstat(reqPath)
	if err != nil {
		return fmt.Errorf("stat request file: %w", err)
	}
	if fi.Mode()&os.ModeSymlink != 0 {
		return fmt.Errorf("rejected symlink: %s", filepath.Base(reqPath))
	}

	data, err := os.ReadFile(reqPath)
	if err != nil {
		return fmt.Errorf("read request file: %w", err)
	}

	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		_ = os.Remove(reqPath)
		return p.writeFailedResult(requestID(reqPath), fmt.Sprintf("invalid JSON: %v", err))
	}

	f, mode, err := ValidateRequest(&req, p.cfg.Mode)
	if err != nil {
		_ = os.Remove(reqPath)
		return p.writeFailedResult(requestID(reqPath), fmt.Sprintf("validation failed: %v", err))
	}

	// Move to processing state. Uses moveFile to handle bind mounts (EXDEV).
	processingPath := filepath.Join(p.cfg.Dirs.ProcessingDir(), req.ID+".json")
	if err := moveFile(reqPath, processingPath); err != nil {
		return fmt.Errorf("move to processing: %w", err)
	}

	result := p.run(&req, f, mode)

	if err := p.writeResult(result); err != nil {
		return fmt.Errorf("write result: %w", err)
	}

	// Keep the processed request for traceability.
	archivePath := filepath.Join(p.cfg.Dirs.ArchiveDir(), req.ID+".json")
	if err := moveFile(processingPath, archivePath); err != nil {
		return fmt.Errorf("archive request: %w", err)
	}
	return nil
}

// run sends the frame through the gate and records history.
func (p *Processor) run(req *Request, f frame.Frame, mode policy.Mode) *Result {
	out, err := p.cfg.Gate.Dispatch(f, mode, time.Now(), req.Override)

	result := &Result{
		ID:          req.ID,
		Status:      string(out.Status),
		Reason:      out.Reason,
		Violations:  out.Verdict.Violations,
		Warnings:    out.Verdict.Warnings,
		CompletedAt: time.Now().UTC(),
	}
	if err != nil {
		result.Status = ResultFailed
		result.Error = err.Error()
	}

	if p.cfg.History != nil {
		_ = p.cfg.History.Record(history.Dispatch{
			Address: f.Address,
			Data:    hex.EncodeToString(f.Data),
			Bus:     f.Bus,
			Mode:    string(mode),
			Outcome: result.Status,
			Reason:  result.Reason,
		})
	}
	return result
}

// writeResult writes a result JSON file to the outbox.
func (p *Processor) writeResult(result *Result) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	path := filepath.Join(p.cfg.Dirs.Outbox, result.ID+".result.json")
	if err := os.WriteFile(path, data, 0640); err != nil {
		return fmt.Errorf("write result file: %w", err)
	}
	return nil
}

// writeFailedResult records a terminal failure for a request that never
// reached the gate.
func (p *Processor) writeFailedResult(id, reason string) error {
	return p.writeResult(&Result{
		ID:          id,
		Status:      ResultFailed,
		Error:       reason,
		CompletedAt: time.Now().UTC(),
	})
}

// requestID derives a result ID from a file path when the request itself
// could not be parsed.
func requestID(path string) string {
	base := filepath.Base(path)
	if ext := filepath.Ext(base); ext != "" {
		base = base[:len(base)-len(ext)]
	}
	if base == "" || !validID.MatchString(base) {
		return "invalid-request"
	}
	return base
}
