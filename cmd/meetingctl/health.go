package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"meeting-analyzer/internal/apiclient"
)

func newHealthCmd(global *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check whether the analysis service responds",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := global.settings()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			status, err := apiclient.New(settings.BaseURL).HealthCheck(cmd.Context())
			if err != nil {
				fmt.Fprintln(out, warnStyle.Render(fmt.Sprintf("%s: %s", settings.BaseURL, apiclient.MessageOf(err))))
				return err
			}

			fmt.Fprintln(out, successStyle.Render(fmt.Sprintf("%s: %s (HTTP %d)", settings.BaseURL, status.Status, status.HTTPStatus)))
			keys := make([]string, 0, len(status.Details))
			for key := range status.Details {
				keys = append(keys, key)
			}
			sort.Strings(keys)
			for _, key := range keys {
				fmt.Fprintf(out, "  %s: %v\n", labelStyle.Render(key), status.Details[key])
			}
			return nil
		},
	}
}
