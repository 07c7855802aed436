package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"meeting-analyzer/internal/apiclient"
	"meeting-analyzer/internal/domain"
)

func newExportCmd(global *globalOptions) *cobra.Command {
	var outputDir string
	cmd := &cobra.Command{
		Use:   "export <result.json>",
		Short: "Export a saved analysis result as a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := global.settings()
			if err != nil {
				return err
			}
			if outputDir != "" {
				settings.OutputDir = outputDir
			}

			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read result: %w", err)
			}
			var result domain.AnalysisResult
			if err := json.Unmarshal(data, &result); err != nil {
				return fmt.Errorf("decode result: %w", err)
			}

			saved, err := exportDocument(cmd, apiclient.New(settings.BaseURL), settings.OutputDir, result.Normalize())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), successStyle.Render("Document exported to "+saved))
			return nil
		},
	}
	cmd.Flags().StringVar(&outputDir, "output-dir", "", "directory for the exported document (default from settings)")
	return cmd
}
