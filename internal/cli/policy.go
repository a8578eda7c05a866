package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"

	"github.com/ppiankov/canward/internal/policy"
)

var (
	policyInitPath string
	policyShowPath string
)

func init() {
	rootCmd.AddCommand(policyCmd)
	policyCmd.AddCommand(policyInitCmd)
	policyCmd.AddCommand(policyShowCmd)
	policyInitCmd.Flags().StringVar(&policyInitPath, "path", "", "Destination (default ~/.canward/policy.yaml)")
	policyShowCmd.Flags().StringVar(&policyShowPath, "policy", "", "Path to policy YAML")
}

var policyCmd = &cobra.Command{
	Use:   "policy",
	Short: "Manage the address policy",
}

var policyInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Generate a default policy.yaml with comments",
	Long:  "Creates ~/.canward/policy.yaml with the built-in address table,\nper-mode blocked sets, and rate limits. Edit it to customize the gate.",
	RunE:  runPolicyInit,
}

func runPolicyInit(cmd *cobra.Command, args []string) error {
	path := policyInitPath
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("cannot determine home directory: %w", err)
		}
		path = filepath.Join(home, ".canward", "policy.yaml")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("cannot create config directory: %w", err)
	}
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("policy.yaml already exists at %s", path)
	}

	if err := os.WriteFile(path, []byte(policy.DefaultYAML()), 0644); err != nil {
		return fmt.Errorf("failed to write policy.yaml: %w", err)
	}

	fmt.Printf("Created %s\n", path)
	return nil
}

var policyShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective policy",
	RunE:  runPolicyShow,
}

func runPolicyShow(cmd *cobra.Command, args []string) error {
	cfg, hash, err := policy.LoadWithHash(policyShowPath)
	if err != nil {
		return err
	}

	fmt.Printf("policy hash: %s\n\n", hash)

	addrs := make([]uint32, 0, len(cfg.Addresses))
	for addr := range cfg.Addresses {
		addrs = append(addrs, addr)
	}
	sort.Slice(addrs, func(i, j int) bool { return addrs[i] < addrs[j] })

	fmt.Printf("addresses (%d):\n", len(addrs))
	for _, addr := range addrs {
		info := cfg.Addresses[addr]
		fmt.Printf("  0x%03X  %-10s %-22s %s\n", addr, info.Severity, info.Name, info.Description)
	}

	fmt.Println("\nblocked per mode:")
	for _, mode := range policy.Modes() {
		blocked := cfg.Modes[mode].Blocked
		fmt.Printf("  %-12s %d address(es)\n", mode, len(blocked))
	}

	rl := cfg.RateLimits
	fmt.Println("\nrate limits:")
	fmt.Printf("  global          %d msg per %v\n", rl.GlobalLimit, rl.Window())
	fmt.Printf("  per address     %d msg per %v\n", rl.PerAddressLimit, rl.Window())
	fmt.Printf("  critical        %d msg per %v (%d address(es))\n", rl.CriticalAddressLimit, rl.Window(), len(rl.CriticalAddresses))
	fmt.Printf("  burst capacity  %d\n", rl.BurstCapacity)
	return nil
}
