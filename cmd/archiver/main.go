// Package main is the entry point for the media-archiver service.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	// version can be set at build time via -ldflags
	version = "dev"

	// configPath holds the path to the configuration file.
	configPath string

	rootCmd = &cobra.Command{
		Use:   "archiver",
		Short: "Content-addressed media archival service",
		Long: `Offloads media files to a chat platform's attachment store with
content-hash deduplication, adaptive compression, and channel routing,
and rehydrates fresh download URLs from stored identifiers.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config.yml", "path to configuration file")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(archiveCmd)
	rootCmd.AddCommand(rehydrateCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the archiver version",
	Run: func(_ *cobra.Command, _ []string) {
		fmt.Printf("media-archiver %s\n", version)
	},
}

func main() {
	// Load .env file early so environment variables are available
	_ = godotenv.Load()

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
