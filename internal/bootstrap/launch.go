package bootstrap

import (
	"context"
	"fmt"
	"io/fs"
	"os"

	"meeting-analyzer/internal/config"
	"meeting-analyzer/internal/telemetry"
)

// ServiceName identifies the desktop process in traces.
const ServiceName = "meeting-analyzer"

// Launch runs the desktop app with tracing from the OTEL_* environment and,
// when MEETING_METRICS_ADDR is set, a Prometheus endpoint. Nil assets serve
// ./frontend from disk.
func Launch(assets fs.FS) error {
	ctx := context.Background()
	rt := telemetry.Start(ctx, ServiceName, os.Getenv(config.EnvMetricsAddr), os.Getenv)
	defer rt.Close(ctx)

	app, err := NewWithAssets(assets)
	if err != nil {
		return fmt.Errorf("bootstrap app: %w", err)
	}
	return app.Run()
}
