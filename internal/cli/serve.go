package cli

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/canward/internal/daemon"
	"github.com/ppiankov/canward/internal/policy"
	"github.com/ppiankov/canward/internal/systemd"
)

var (
	serveDir       string
	serveMode      string
	servePolicy    string
	serveAuditLog  string
	serveHistory   string
	serveSpool     string
	servePoll      bool
	servePollSecs  int
	servePrintUnit bool
	serveHome      string
)

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveDir, "dir", "", "Base directory for inbox/outbox/state (default ~/.canward/daemon)")
	serveCmd.Flags().StringVar(&serveMode, "mode", "production", "Operating mode for the daemon")
	serveCmd.Flags().StringVar(&servePolicy, "policy", "", "Path to policy YAML (hot-reloaded on change)")
	serveCmd.Flags().StringVar(&serveAuditLog, "audit-log", "", "Path to audit log JSONL file")
	serveCmd.Flags().StringVar(&serveHistory, "history-db", "", "Path to history SQLite database")
	serveCmd.Flags().StringVar(&serveSpool, "spool", "", "Spool file for approved frames (default <dir>/spool.log)")
	serveCmd.Flags().BoolVar(&servePoll, "poll", false, "Poll the inbox instead of using fsnotify")
	serveCmd.Flags().IntVar(&servePollSecs, "poll-interval", 5, "Polling interval in seconds")
	serveCmd.Flags().BoolVar(&servePrintUnit, "print-unit", false, "Print a systemd unit for this daemon and exit")
	serveCmd.Flags().StringVar(&serveHome, "home", "/var/lib/canward", "Home directory used in the generated systemd unit")
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the long-lived injector daemon",
	Long: "Watches an inbox directory for JSON frame requests, runs each through\n" +
		"the safety gate, and writes results to the outbox. Rate limiter state\n" +
		"is shared across all requests the daemon serves. The policy file is\n" +
		"hot-reloaded on change; limiter state survives reloads.",
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	mode, err := policy.ParseMode(serveMode)
	if err != nil {
		return err
	}

	if servePrintUnit {
		fmt.Print(systemd.DaemonTemplate(serveHome, string(mode)))
		return nil
	}

	if warn := systemd.CheckUnitFileIntegrity(serveHome); warn != "" {
		fmt.Fprintf(os.Stderr, "canward daemon: WARNING: %s\n", warn)
	}

	base := serveDir
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("cannot determine home directory: %w", err)
		}
		base = filepath.Join(home, ".canward", "daemon")
	}
	spool := serveSpool
	if spool == "" {
		spool = filepath.Join(base, "spool.log")
	}

	d, err := daemon.New(daemon.Config{
		Dirs:         daemon.DefaultDirConfig(base),
		Mode:         mode,
		PolicyPath:   servePolicy,
		AuditLog:     serveAuditLog,
		HistoryDB:    serveHistory,
		SpoolPath:    spool,
		PollMode:     servePoll,
		PollInterval: time.Duration(servePollSecs) * time.Second,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fmt.Fprintf(os.Stderr, "canward daemon: mode=%s inbox=%s\n", mode, filepath.Join(base, "inbox"))
	return d.Run(ctx)
}
