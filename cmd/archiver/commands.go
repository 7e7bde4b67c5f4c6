package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jonesrussell/media-archiver/internal/app"
	"github.com/jonesrussell/media-archiver/internal/models"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the archiver HTTP service",
	RunE: func(cmd *cobra.Command, _ []string) error {
		application, err := app.New(app.Options{ConfigPath: configPath, Version: version})
		if err != nil {
			return fmt.Errorf("initialize application: %w", err)
		}
		defer func() { _ = application.Close() }()

		return application.Run(cmd.Context())
	},
}

var (
	archiveTenant     string
	archiveWorkspace  string
	archiveVisibility string
	archiveFilename   string
	archiveTags       []string

	archiveCmd = &cobra.Command{
		Use:   "archive <file>",
		Short: "Archive a single file and print its manifest record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := app.New(app.Options{ConfigPath: configPath, Version: version})
			if err != nil {
				return fmt.Errorf("initialize application: %w", err)
			}
			defer func() { _ = application.Close() }()

			meta := models.FileMeta{
				Filename:   archiveFilename,
				Visibility: archiveVisibility,
				Tags:       archiveTags,
			}
			if archiveTenant != "" {
				meta.Tenant = &archiveTenant
			}
			if archiveWorkspace != "" {
				meta.Workspace = &archiveWorkspace
			}

			record, err := application.Service().ArchiveFile(cmd.Context(), args[0], meta)
			if err != nil {
				return err
			}
			return printJSON(record)
		},
	}
)

var rehydrateCmd = &cobra.Command{
	Use:   "rehydrate <content-hash>",
	Short: "Resolve a content hash to a fresh download URL",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		application, err := app.New(app.Options{ConfigPath: configPath, Version: version})
		if err != nil {
			return fmt.Errorf("initialize application: %w", err)
		}
		defer func() { _ = application.Close() }()

		result, err := application.Service().Rehydrate(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printJSON(result)
	},
}

var (
	searchLimit  int
	searchOffset int

	searchCmd = &cobra.Command{
		Use:   "search <tag-substring>",
		Short: "Search manifest records by tag substring",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := app.New(app.Options{ConfigPath: configPath, Version: version})
			if err != nil {
				return fmt.Errorf("initialize application: %w", err)
			}
			defer func() { _ = application.Close() }()

			results, err := application.Service().SearchTag(cmd.Context(), args[0], searchLimit, searchOffset)
			if err != nil {
				return err
			}
			return printJSON(results)
		},
	}
)

func init() {
	archiveCmd.Flags().StringVar(&archiveTenant, "tenant", "", "tenant identifier for routing overrides")
	archiveCmd.Flags().StringVar(&archiveWorkspace, "workspace", "", "workspace identifier")
	archiveCmd.Flags().StringVar(&archiveVisibility, "visibility", "", "visibility tier (public, internal, restricted)")
	archiveCmd.Flags().StringVar(&archiveFilename, "filename", "", "override the stored filename")
	archiveCmd.Flags().StringSliceVar(&archiveTags, "tag", nil, "tag to attach (repeatable)")

	searchCmd.Flags().IntVar(&searchLimit, "limit", 50, "maximum number of results")
	searchCmd.Flags().IntVar(&searchOffset, "offset", 0, "result offset for pagination")
}

func printJSON(v any) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
