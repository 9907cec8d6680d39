package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var defaultsCmd = &cobra.Command{
	Use:   "defaults <lead-id>",
	Short: "Show derived CMA parameters for a lead's property",
	Long: `Runs the smart-defaults cascade against the lead's property and prints the
derived search radius, lookback window, comparable count, and price variance,
with the reasoning for each. Nothing is persisted or written to the CRM.`,
	Args: cobra.ExactArgs(1),
	RunE: runDefaults,
}

func init() {
	defaultsCmd.Flags().String("format", "table", "output format: table or json")
	rootCmd.AddCommand(defaultsCmd)
}

func runDefaults(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	format, _ := cmd.Flags().GetString("format")

	env, err := initEnv(ctx)
	if err != nil {
		return err
	}
	defer env.Close()

	result, err := env.Pipeline.Preview(ctx, args[0])
	if err != nil {
		return err
	}
	d := result.Defaults

	if format == "json" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(d)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "Radius:\t%.1f mi\t%s\n", d.RadiusMiles, d.Reasons.Radius)
	fmt.Fprintf(w, "Lookback:\t%d days\t%s\n", d.LookbackDays, d.Reasons.Lookback)
	fmt.Fprintf(w, "Comparables:\t%d\t%s\n", d.Comparables, d.Reasons.Comparables)
	fmt.Fprintf(w, "Variance:\t%d%%\t%s\n", d.PriceVariancePct, d.Reasons.Variance)
	fmt.Fprintf(w, "Confidence:\t%s\n", d.Confidence)
	for _, rule := range d.RulesApplied {
		fmt.Fprintf(w, "Rule:\t%s\n", rule)
	}
	w.Flush()
	return nil
}
