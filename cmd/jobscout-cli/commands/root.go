package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cachePath *string
var historyPath *string

var rootCmd = &cobra.Command{
	Use:   "jobscout-cli",
	Short: "jobscout-cli scrapes job listings and inspects the local cache.",
}

func init() {
	cachePath = rootCmd.PersistentFlags().String("cache", "jobscout.badger", "The badger directory holding cached job records.")
	historyPath = rootCmd.PersistentFlags().String("history", "history.db", "The sqlite database logging scrape runs.")
}

func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
