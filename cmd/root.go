package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/willow/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "willow",
	Short: "Seller intelligence for the Sells Group CRM",
	Long:  "Fuses Fello, Cloud CMA, and Sierra engagement signals into a composite seller score, derives CMA parameters per property, and writes results back to Follow Up Boss.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
