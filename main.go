package main

import (
	"embed"
	"io/fs"

	"meeting-analyzer/internal/bootstrap"
	xlog "meeting-analyzer/internal/log"
)

//go:embed frontend/index.html frontend/app.js frontend/style.css
var appAssets embed.FS

func main() {
	xlog.Configure(xlog.Config{Service: "meeting-analyzer"})
	logger := xlog.WithComponent("main")

	assets, err := fs.Sub(appAssets, "frontend")
	if err != nil {
		logger.Fatal().Err(err).Msg("load frontend assets")
	}

	if err := bootstrap.Launch(assets); err != nil {
		logger.Fatal().Err(err).Msg("run app")
	}
}
