// Command gizmo inspects game containers and archives and serves their
// assets through the persistent asset cache.
package main

import (
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/meigma/gizmo/internal/config"
)

var Version = "dev"

func main() {
	app := newApp()
	err := app.Run(os.Args)
	if err != nil {
		fmt.Println(fmt.Errorf("error: %v", err))
		os.Exit(1)
	}
}

func newApp() *cli.App {
	app := cli.NewApp()
	app.Version = Version
	app.Name = "gizmo"
	app.Usage = "extract and cache assets from NE containers and GRP archives"
	app.Commands = append(
		app.Commands,
		&listCommand,
		&extractCommand,
		&getCommand,
		&preloadCommand,
		&validateCommand,
		&statsCommand,
		&exportCommand,
		&pruneCommand,
	)
	app.Flags = config.Flags
	app.Before = func(ctx *cli.Context) error {
		cfg, err := config.LoadConfig(ctx)
		if err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}
		log.SetLevel(log.Level(cfg.LogLevel))
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
		ctx.App.Metadata = map[string]any{configKey: cfg}
		return nil
	}
	return app
}
