// Package main provides the entry point for the claim processor CLI and HTTP API server.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "claim_agent",
	Short: "Vehicle insurance claim processing agent",
	Long:  "Claim agent runs the multi-stage claim analysis pipeline, either as a one-shot CLI run or as an HTTP API server with live progress streaming.",
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
