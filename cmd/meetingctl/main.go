// Command meetingctl submits meeting recordings to the analysis service from a terminal.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"meeting-analyzer/internal/config"
	"meeting-analyzer/internal/domain"
	xlog "meeting-analyzer/internal/log"
	"meeting-analyzer/internal/telemetry"
)

type globalOptions struct {
	baseURL     string
	logLevel    string
	metricsAddr string

	telemetry *telemetry.Runtime
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := &globalOptions{}
	if err := runRoot(ctx, newRootCmd(opts), opts); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("error: "+err.Error()))
		os.Exit(1)
	}
}

// runRoot executes root and releases telemetry even when the command failed.
func runRoot(ctx context.Context, root *cobra.Command, opts *globalOptions) error {
	defer opts.closeTelemetry(context.WithoutCancel(ctx))
	return root.ExecuteContext(ctx)
}

func newRootCmd(opts *globalOptions) *cobra.Command {
	root := &cobra.Command{
		Use:           "meetingctl",
		Short:         "Analyze meeting recordings",
		Long:          "Upload a meeting recording to the analysis service and print its transcript, summary, participants, decisions and action items.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			xlog.Reconfigure(xlog.Config{
				Level:   opts.logLevel,
				Output:  cmd.ErrOrStderr(),
				Service: "meetingctl",
			})
			opts.telemetry = telemetry.Start(cmd.Context(), "meetingctl", opts.metricsAddr, os.Getenv)
		},
	}

	root.PersistentFlags().StringVar(&opts.baseURL, "base-url", "", "analysis service URL (default from settings or "+config.EnvBaseURL+")")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&opts.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address while the command runs, e.g. 127.0.0.1:9464")

	root.AddCommand(
		newAnalyzeCmd(opts),
		newExportCmd(opts),
		newHealthCmd(opts),
	)
	return root
}

func (o *globalOptions) closeTelemetry(ctx context.Context) {
	if o.telemetry != nil {
		o.telemetry.Close(ctx)
		o.telemetry = nil
	}
}

// settings resolves the settings file, environment and flags, in that order.
func (o *globalOptions) settings() (domain.Settings, error) {
	path, err := config.DefaultPath()
	if err != nil {
		return domain.Settings{}, fmt.Errorf("resolve settings path: %w", err)
	}
	settings, err := config.WithEnv(config.NewJSONStore(path)).Load()
	if err != nil {
		return domain.Settings{}, fmt.Errorf("load settings: %w", err)
	}
	if o.baseURL != "" {
		settings.BaseURL = o.baseURL
	}
	return config.Normalize(settings), nil
}
