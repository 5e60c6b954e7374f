// Package main provides the enricher command line: a one-shot CSV run and an HTTP server.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "enricher",
	Short: "Fill missing product names and eBay categories in product CSVs",
	Long: `enricher reads every *.csv in an input directory, looks up rows whose "Product name"
is empty in the eBay Browse API (by upc, then by name) and writes the enriched rows to a
single output CSV. The same lookup is also available over HTTP via "enricher serve".`,
	SilenceUsage: true,
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
