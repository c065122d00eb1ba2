// Package main provides the cvtailor CLI and HTTP API entry point.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "cvtailor",
	Short: "Tailor career profiles to job descriptions",
	Long:  "cvtailor indexes a candidate's career history, retrieves and ranks the entries most relevant to a job description, and rewrites their bullets toward the posting without fabricating experience.",
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
