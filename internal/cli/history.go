package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ppiankov/canward/internal/history"
)

var (
	historyDB     string
	historyLimit  int
	historyFormat string
)

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().StringVar(&historyDB, "db", "", "Path to history SQLite database (required)")
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Number of dispatches to show")
	historyCmd.Flags().StringVarP(&historyFormat, "format", "f", "text", "Output format (text|json)")
	historyCmd.MarkFlagRequired("db")
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent dispatches from the history database",
	RunE:  runHistory,
}

func runHistory(cmd *cobra.Command, args []string) error {
	store, err := history.Open(historyDB)
	if err != nil {
		return err
	}
	defer store.Close()

	dispatches, err := store.Recent(historyLimit)
	if err != nil {
		return err
	}

	if historyFormat == "json" {
		out, err := json.MarshalIndent(dispatches, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	}

	if len(dispatches) == 0 {
		fmt.Println("no dispatches recorded")
		return nil
	}
	for _, d := range dispatches {
		fmt.Printf("%s  [%d] 0x%03X %-12s %-20s %s\n",
			d.Timestamp.Format("2006-01-02 15:04:05"), d.Bus, d.Address, d.Mode, d.Outcome, d.Reason)
	}
	return nil
}
