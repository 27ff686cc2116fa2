// Package main provides the entry point for the content repurposer API server.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "repurposer",
	Short: "Content repurposer HTTP API server",
	Long:  "Content repurposer turns web articles and YouTube transcripts into post ideas and social media drafts via a REST API.",
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
