package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/canward/internal/audit"
	"github.com/ppiankov/canward/internal/frame"
	"github.com/ppiankov/canward/internal/gate"
	"github.com/ppiankov/canward/internal/policy"
	"github.com/ppiankov/canward/internal/ratelimit"
	"github.com/ppiankov/canward/internal/safety"
	"github.com/ppiankov/canward/internal/transport"
)

var (
	sendAddress  string
	sendData     string
	sendBus      int
	sendFD       bool
	sendMode     string
	sendPolicy   string
	sendYes      bool
	sendAuditLog string
	sendSpool    string
)

func init() {
	rootCmd.AddCommand(sendCmd)
	sendCmd.Flags().StringVar(&sendAddress, "address", "", "CAN identifier, hex (0x180) or decimal (required)")
	sendCmd.Flags().StringVar(&sendData, "data", "", "Payload hex (e.g. DEADBEEF); empty for a zero-length payload")
	sendCmd.Flags().IntVar(&sendBus, "bus", 0, "CAN bus number (0, 1, 2)")
	sendCmd.Flags().BoolVar(&sendFD, "fd", false, "CAN FD frame (payload up to 64 bytes)")
	sendCmd.Flags().StringVar(&sendMode, "mode", "production", "Operating mode (locked|production|testing|development)")
	sendCmd.Flags().StringVar(&sendPolicy, "policy", "", "Path to policy YAML (defaults built in)")
	sendCmd.Flags().BoolVarP(&sendYes, "yes", "y", false, "Confirm critical messages / override overridable violations")
	sendCmd.Flags().StringVar(&sendAuditLog, "audit-log", "", "Path to audit log JSONL file")
	sendCmd.Flags().StringVar(&sendSpool, "out", "", "Spool file for the approved frame (default stdout)")
	sendCmd.MarkFlagRequired("address")
}

var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Send one CAN frame through the safety gate",
	Long: "Validates the frame against the address policy, applies rate limits,\n" +
		"and on approval writes it to the spool in candump format.\n\n" +
		"Critical messages in production mode require confirmation: the first\n" +
		"invocation reports needs_confirmation (exit 75); re-run with --yes to\n" +
		"confirm. Rejections exit 77. Rate limit denials cannot be overridden.",
	RunE: runSend,
}

func runSend(cmd *cobra.Command, args []string) error {
	mode, err := policy.ParseMode(sendMode)
	if err != nil {
		return err
	}
	addr, err := frame.ParseAddress(sendAddress)
	if err != nil {
		return err
	}
	data, err := frame.ParsePayload(sendData)
	if err != nil {
		return err
	}

	var f frame.Frame
	if sendFD {
		f, err = frame.NewFD(addr, data, sendBus)
	} else {
		f, err = frame.New(addr, data, sendBus)
	}
	if err != nil {
		return err
	}

	pcfg, hash, err := policy.LoadWithHash(sendPolicy)
	if err != nil {
		return err
	}
	engine, err := safety.NewEngine(pcfg)
	if err != nil {
		return err
	}

	cfg := gate.Config{
		Engine:     engine,
		Limiter:    ratelimit.New(pcfg.RateLimits),
		PolicyHash: hash,
	}

	if sendSpool != "" {
		spool, err := os.OpenFile(sendSpool, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0640)
		if err != nil {
			return fmt.Errorf("open spool: %w", err)
		}
		defer spool.Close()
		cfg.Transmitter = transport.NewWriter(spool)
	} else {
		cfg.Transmitter = transport.NewWriter(os.Stdout)
	}

	if sendAuditLog != "" {
		log, err := audit.Open(sendAuditLog)
		if err != nil {
			return err
		}
		defer log.Close()
		cfg.Audit = log
	}

	g, err := gate.New(cfg)
	if err != nil {
		return err
	}

	out, err := g.Dispatch(f, mode, time.Now(), sendYes)
	printVerdict(out.Verdict)
	if err != nil {
		return err
	}

	switch out.Status {
	case gate.StatusSent:
		fmt.Fprintf(os.Stderr, "sent %s\n", f)
	case gate.StatusNeedsConfirmation:
		fmt.Fprintf(os.Stderr, "needs confirmation: %s\nre-run with --yes to confirm\n", out.Reason)
		os.Exit(75)
	case gate.StatusRejected:
		fmt.Fprintf(os.Stderr, "rejected: %s\n", out.Reason)
		os.Exit(77)
	}
	return nil
}

// printVerdict writes violations and warnings to stderr.
func printVerdict(v safety.Verdict) {
	for _, viol := range v.Violations {
		fmt.Fprintf(os.Stderr, "violation [%s/%s]: %s\n", viol.Rule, viol.Severity, viol.Message)
	}
	for _, w := range v.Warnings {
		fmt.Fprintf(os.Stderr, "warning: %s\n", w)
	}
}
