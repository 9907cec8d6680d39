package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete expired property-cache entries",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		n, err := st.DeleteExpiredProperties(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("pruned %d expired entries\n", n)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(pruneCmd)
}
