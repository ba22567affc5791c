// Package main provides the entry point for the interview progress HTTP API server.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "progress_api",
	Short: "Interview Progress HTTP API Server",
	Long:  "Interview Progress records answered interview questions per user and domain and raises question difficulty as users demonstrate mastery.",
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
