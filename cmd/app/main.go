// Command app runs the desktop application against the frontend on disk
// (./frontend), for working on the UI without rebuilding.
package main

import (
	"meeting-analyzer/internal/bootstrap"
	xlog "meeting-analyzer/internal/log"
)

func main() {
	xlog.Configure(xlog.Config{Service: "meeting-analyzer"})
	logger := xlog.WithComponent("main")

	if err := bootstrap.Launch(nil); err != nil {
		logger.Fatal().Err(err).Msg("run app")
	}
}
