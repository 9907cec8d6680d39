package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sells-group/willow/internal/model"
)

var cmaCmd = &cobra.Command{
	Use:   "cma",
	Short: "Cloud CMA report operations",
}

var cmaGenerateCmd = &cobra.Command{
	Use:   "generate <lead-id>",
	Short: "Request a CMA report for a lead",
	Long: `Derives smart-default parameters from the lead's property, computes the
center price, requests a Cloud CMA report, and records the correlation job
that matches the completion webhook back to the lead.`,
	Args: cobra.ExactArgs(1),
	RunE: runCMAGenerate,
}

var cmaStatusCmd = &cobra.Command{
	Use:   "status <token>",
	Short: "Show a CMA job by its correlation token",
	Args:  cobra.ExactArgs(1),
	RunE:  runCMAStatus,
}

func init() {
	cmaGenerateCmd.Flags().String("format", "table", "output format: table or json")
	cmaCmd.AddCommand(cmaGenerateCmd)
	cmaCmd.AddCommand(cmaStatusCmd)
	rootCmd.AddCommand(cmaCmd)
}

func runCMAGenerate(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	format, _ := cmd.Flags().GetString("format")

	env, err := initEnv(ctx)
	if err != nil {
		return err
	}
	defer env.Close()

	out, err := env.Pipeline.GenerateCMA(ctx, args[0])
	if err != nil {
		return err
	}

	if format == "json" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	fmt.Printf("Report %s requested for %s\n", out.Report.ID, out.Job.Address)
	fmt.Printf("  token:       %s\n", out.Job.Token)
	fmt.Printf("  center:      $%d (%s)\n", out.Estimate.Center, out.Estimate.Source)
	fmt.Printf("  radius:      %.1f mi\n", out.Defaults.RadiusMiles)
	fmt.Printf("  lookback:    %d days\n", out.Defaults.LookbackDays)
	fmt.Printf("  comparables: %d\n", out.Defaults.Comparables)
	if out.Report.EditURL != "" {
		fmt.Printf("  edit:        %s\n", out.Report.EditURL)
	}
	return nil
}

func runCMAStatus(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	env, err := initEnv(ctx)
	if err != nil {
		return err
	}
	defer env.Close()

	job, err := env.Store.GetCMAJobByToken(ctx, args[0])
	if err != nil {
		return err
	}
	if job == nil {
		return fmt.Errorf("no CMA job for token %s", args[0])
	}

	fmt.Printf("Job %s (%s)\n", job.ID, job.Status)
	fmt.Printf("  lead:    %s\n", job.LeadID)
	fmt.Printf("  address: %s\n", job.Address)
	fmt.Printf("  center:  $%d\n", job.CenterValue)
	if job.Status == model.CMAJobCompleted {
		fmt.Printf("  edit:    %s\n", job.EditURL)
		fmt.Printf("  pdf:     %s\n", job.PDFURL)
	}
	return nil
}
