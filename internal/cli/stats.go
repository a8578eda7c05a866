package cli

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/ppiankov/canward/internal/history"
	"github.com/ppiankov/canward/internal/policy"
)

var (
	statsDB     string
	statsPolicy string
	statsTop    int
)

func init() {
	rootCmd.AddCommand(statsCmd)
	statsCmd.Flags().StringVar(&statsDB, "db", "", "Path to history SQLite database (required)")
	statsCmd.Flags().StringVar(&statsPolicy, "policy", "", "Path to policy YAML")
	statsCmd.Flags().IntVar(&statsTop, "top", 10, "Number of top addresses to show")
	statsCmd.MarkFlagRequired("db")
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Summarize dispatch outcomes and configured limits",
	RunE:  runStats,
}

func runStats(cmd *cobra.Command, args []string) error {
	store, err := history.Open(statsDB)
	if err != nil {
		return err
	}
	defer store.Close()

	sum, err := store.Summarize(statsTop)
	if err != nil {
		return err
	}

	fmt.Printf("dispatches: %d\n", sum.Total)
	outcomes := make([]string, 0, len(sum.ByOutcome))
	for outcome := range sum.ByOutcome {
		outcomes = append(outcomes, outcome)
	}
	sort.Strings(outcomes)
	for _, outcome := range outcomes {
		fmt.Printf("  %-20s %d\n", outcome, sum.ByOutcome[outcome])
	}

	if len(sum.TopAddresses) > 0 {
		fmt.Println("\ntop addresses:")
		for _, ac := range sum.TopAddresses {
			fmt.Printf("  0x%03X  %d\n", ac.Address, ac.Count)
		}
	}

	cfg, err := policy.Load(statsPolicy)
	if err != nil {
		return err
	}
	rl := cfg.RateLimits
	fmt.Println("\nconfigured limits:")
	fmt.Printf("  global          %d msg per %v\n", rl.GlobalLimit, rl.Window())
	fmt.Printf("  per address     %d msg per %v\n", rl.PerAddressLimit, rl.Window())
	fmt.Printf("  critical        %d msg per %v\n", rl.CriticalAddressLimit, rl.Window())
	fmt.Printf("  burst capacity  %d\n", rl.BurstCapacity)
	return nil
}
