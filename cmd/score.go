package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sells-group/willow/internal/intel"
)

var scoreCmd = &cobra.Command{
	Use:   "score <lead-id>...",
	Short: "Score a lead and write the result back to the CRM",
	Long: `Fetches the lead from Follow Up Boss, pulls property data, computes the
composite seller score across all platform signals, and writes the Willow
fields back to the lead record.

Examples:
  # Score lead 12345 and update the CRM
  willow score 12345

  # Inspect the score without writing anything
  willow score 12345 --dry-run

  # Score a batch, bounded by pipeline.max_concurrent_leads
  willow score 12345 12346 12347

  # Machine-readable output
  willow score 12345 --format json`,
	Args: cobra.MinimumNArgs(1),
	RunE: runScore,
}

func init() {
	scoreCmd.Flags().Bool("dry-run", false, "compute without persisting or updating the CRM")
	scoreCmd.Flags().String("format", "table", "output format: table or json")
	rootCmd.AddCommand(scoreCmd)
}

func runScore(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dryRun, _ := cmd.Flags().GetBool("dry-run")
	format, _ := cmd.Flags().GetString("format")

	env, err := initEnv(ctx)
	if err != nil {
		return err
	}
	defer env.Close()

	var results []*intel.Intelligence
	if dryRun {
		for _, id := range args {
			r, err := env.Pipeline.Preview(ctx, id)
			if err != nil {
				return err
			}
			results = append(results, r)
		}
	} else {
		results, err = env.Pipeline.AnalyzeMany(ctx, args)
		if err != nil {
			return err
		}
	}

	if format == "json" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if len(results) == 1 {
			return enc.Encode(results[0])
		}
		return enc.Encode(results)
	}
	for i, r := range results {
		if i > 0 {
			fmt.Println()
		}
		printIntelligence(r)
	}
	return nil
}

func printIntelligence(in *intel.Intelligence) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "Lead:\t%s %s (%s)\n", in.Lead.FirstName, in.Lead.LastName, in.Lead.ID)
	if in.Lead.Address != "" {
		fmt.Fprintf(w, "Address:\t%s\n", in.Lead.Address)
	}
	fmt.Fprintf(w, "Composite:\t%d\n", in.Score.Composite)
	fmt.Fprintf(w, "Tier:\t%s\n", in.Score.Tier)
	fmt.Fprintf(w, "Sources:\tfello=%.1f cloudcma=%.1f willow=%.1f sierra=%.1f\n",
		in.Score.Sources.Fello, in.Score.Sources.CloudCMA, in.Score.Sources.Willow, in.Score.Sources.Sierra)
	for _, t := range in.Score.Triggers {
		fmt.Fprintf(w, "Trigger:\t%s (%s) %s\n", t.Name, t.Source, t.Detail)
	}
	fmt.Fprintf(w, "Valuation:\t$%d center ($%d baseline, %s)\n",
		in.Estimate.Center, in.Estimate.Baseline, in.Estimate.Source)
	w.Flush()
}
