package daemon

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ppiankov/canward/internal/audit"
	"github.com/ppiankov/canward/internal/gate"
	"github.com/ppiankov/canward/internal/history"
	"github.com/ppiankov/canward/internal/policy"
	"github.com/ppiankov/canward/internal/ratelimit"
	"github.com/ppiankov/canward/internal/safety"
	"github.com/ppiankov/canward/internal/transport"
)

// Config holds full daemon configuration.
type Config struct {
	Dirs         DirConfig
	Mode         policy.Mode
	PolicyPath   string
	AuditLog     string
	HistoryDB    string
	SpoolPath    string // candump-format spool of approved frames
	Transmitter  gate.Transmitter
	PollMode     bool
	PollInterval time.Duration
}

// Daemon watches the inbox directory and processes frame requests. The
// rate limiter is shared across the daemon's lifetime; policy hot-reload
// replaces the rule engine without touching limiter state.
type Daemon struct {
	cfg      Config
	limiter  *ratelimit.Limiter
	auditLog *audit.Log
	hist     *history.Store
	spool    *os.File
	tx       gate.Transmitter

	mu   sync.RWMutex
	proc *Processor
}

// New creates a daemon with validated configuration. The policy file is
// loaded (or defaults applied) and the gate is assembled; a malformed
// policy is fatal here, before anything starts watching.
func New(cfg Config) (*Daemon, error) {
	if cfg.Mode == "" {
		cfg.Mode = policy.ModeProduction
	}
	if _, err := policy.ParseMode(string(cfg.Mode)); err != nil {
		return nil, err
	}

	d := &Daemon{cfg: cfg}

	pcfg, hash, err := policy.LoadWithHash(cfg.PolicyPath)
	if err != nil {
		return nil, err
	}
	d.limiter = ratelimit.New(pcfg.RateLimits)

	if cfg.AuditLog != "" {
		log, err := audit.Open(cfg.AuditLog)
		if err != nil {
			return nil, err
		}
		d.auditLog = log
	}
	if cfg.HistoryDB != "" {
		hist, err := history.Open(cfg.HistoryDB)
		if err != nil {
			d.close()
			return nil, err
		}
		d.hist = hist
	}

	d.tx = cfg.Transmitter
	if d.tx == nil && cfg.SpoolPath != "" {
		spool, err := os.OpenFile(cfg.SpoolPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0640)
		if err != nil {
			d.close()
			return nil, fmt.Errorf("open spool: %w", err)
		}
		d.spool = spool
		d.tx = transport.NewWriter(spool)
	}

	if err := d.buildProcessor(pcfg, hash); err != nil {
		d.close()
		return nil, err
	}
	return d, nil
}

// buildProcessor assembles an engine and gate from a policy config and
// swaps the active processor.
func (d *Daemon) buildProcessor(pcfg *policy.Config, hash string) error {
	engine, err := safety.NewEngine(pcfg)
	if err != nil {
		return err
	}
	g, err := gate.New(gate.Config{
		Engine:      engine,
		Limiter:     d.limiter,
		Transmitter: d.tx,
		Audit:       d.auditLog,
		PolicyHash:  hash,
	})
	if err != nil {
		return err
	}

	d.mu.Lock()
	d.proc = NewProcessor(ProcessorConfig{
		Dirs:    d.cfg.Dirs,
		Mode:    d.cfg.Mode,
		Gate:    g,
		History: d.hist,
	})
	d.mu.Unlock()
	return nil
}

// ReloadPolicy re-reads the policy file and swaps in a new engine. Rate
// limiter state is deliberately preserved: a policy edit must not grant a
// fresh window to a sender that is already at its limit. Changed rate
// limit parameters take effect on restart.
func (d *Daemon) ReloadPolicy() error {
	pcfg, hash, err := policy.LoadWithHash(d.cfg.PolicyPath)
	if err != nil {
		return err
	}
	return d.buildProcessor(pcfg, hash)
}

// handle processes one inbox file with the current processor.
func (d *Daemon) handle(path string) {
	d.mu.RLock()
	proc := d.proc
	d.mu.RUnlock()

	if err := proc.Process(context.Background(), path); err != nil {
		fmt.Fprintf(os.Stderr, "process %s: %v\n", path, err)
	}
}

// Run ensures the directory layout, drains any requests already in the
// inbox, and then watches for new ones. Blocks until ctx is cancelled.
func (d *Daemon) Run(ctx context.Context) error {
	defer d.close()

	if err := EnsureDirs(d.cfg.Dirs); err != nil {
		return err
	}

	// Drain requests that arrived while the daemon was down.
	entries, err := os.ReadDir(d.cfg.Dirs.Inbox)
	if err != nil {
		return fmt.Errorf("read inbox: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() || !isRequestFile(entry.Name()) {
			continue
		}
		d.handle(filepath.Join(d.cfg.Dirs.Inbox, entry.Name()))
	}

	var wg sync.WaitGroup

	if d.cfg.PolicyPath != "" {
		reloader, err := NewReloader(d.ReloadPolicy, []string{d.cfg.PolicyPath})
		if err != nil {
			return err
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = reloader.Run(ctx)
		}()
	}

	var watchErr error
	if d.cfg.PollMode {
		watchErr = NewPollWatcher(d.cfg.Dirs.Inbox, d.handle, d.cfg.PollInterval).Run(ctx)
	} else {
		watchErr = NewInboxWatcher(d.cfg.Dirs.Inbox, d.handle).Run(ctx)
	}

	wg.Wait()
	return watchErr
}

// close releases daemon-owned resources. Safe to call multiple times.
func (d *Daemon) close() {
	if d.auditLog != nil {
		_ = d.auditLog.Close()
		d.auditLog = nil
	}
	if d.hist != nil {
		_ = d.hist.Close()
		d.hist = nil
	}
	if d.spool != nil {
		_ = d.spool.Close()
		d.spool = nil
	}
}
