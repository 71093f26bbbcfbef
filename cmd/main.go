package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "orb-trader",
	Short: "A CLI for the opening range breakout trading services",
	Long: `orb-trader runs an intraday opening range breakout strategy across broker accounts.
Use trading-service for the engine and API, notification-service for Telegram alerts
and migrate for the database schema.`,
}

func main() {

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Whoops. There was an error while executing your CLI '%s'", err)
		os.Exit(1)
	}
}
