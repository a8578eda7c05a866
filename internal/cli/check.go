package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ppiankov/canward/internal/frame"
	"github.com/ppiankov/canward/internal/policy"
	"github.com/ppiankov/canward/internal/safety"
)

var (
	checkAddress string
	checkData    string
	checkBus     int
	checkFD      bool
	checkMode    string
	checkPolicy  string
	checkFormat  string
)

func init() {
	rootCmd.AddCommand(checkCmd)
	checkCmd.Flags().StringVar(&checkAddress, "address", "", "CAN identifier, hex (0x180) or decimal (required)")
	checkCmd.Flags().StringVar(&checkData, "data", "", "Payload hex")
	checkCmd.Flags().IntVar(&checkBus, "bus", 0, "CAN bus number (0, 1, 2)")
	checkCmd.Flags().BoolVar(&checkFD, "fd", false, "CAN FD frame")
	checkCmd.Flags().StringVar(&checkMode, "mode", "production", "Operating mode")
	checkCmd.Flags().StringVar(&checkPolicy, "policy", "", "Path to policy YAML")
	checkCmd.Flags().StringVarP(&checkFormat, "format", "f", "text", "Output format (text|json)")
	checkCmd.MarkFlagRequired("address")
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate a frame without sending it",
	Long: "Runs the rule engine only: no rate limit is consumed and nothing is\n" +
		"transmitted or audited. Exit code 0 if the frame passes, 1 if not.",
	RunE: runCheck,
}

func runCheck(cmd *cobra.Command, args []string) error {
	mode, err := policy.ParseMode(checkMode)
	if err != nil {
		return err
	}
	addr, err := frame.ParseAddress(checkAddress)
	if err != nil {
		return err
	}
	data, err := frame.ParsePayload(checkData)
	if err != nil {
		return err
	}

	var f frame.Frame
	if checkFD {
		f, err = frame.NewFD(addr, data, checkBus)
	} else {
		f, err = frame.New(addr, data, checkBus)
	}
	if err != nil {
		return err
	}

	pcfg, err := policy.Load(checkPolicy)
	if err != nil {
		return err
	}
	engine, err := safety.NewEngine(pcfg)
	if err != nil {
		return err
	}

	verdict := engine.Validate(f, mode)

	switch checkFormat {
	case "json":
		out, err := json.MarshalIndent(verdict, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
	default:
		printVerdict(verdict)
		if verdict.Passed {
			fmt.Printf("pass: %s in %s mode\n", f, mode)
		} else {
			fmt.Printf("fail: %s in %s mode (%d violation(s))\n", f, mode, len(verdict.Violations))
		}
	}

	if !verdict.Passed {
		os.Exit(1)
	}
	return nil
}
