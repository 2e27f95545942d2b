package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/gaborage/go-tiledmap/config"
	"github.com/gaborage/go-tiledmap/datastore"
	"github.com/gaborage/go-tiledmap/server"
	"github.com/gaborage/go-tiledmap/windshaft"
)

var (
	serveHost string
	servePort int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve tiles and map-info documents over HTTP",
	Long: `Serve proxies tile requests to the renderer:

  GET /tiles/{style}/{resource}/{z}/{x}/{y}.png
  GET /tiles/{style}/{resource}/{z}/{x}/{y}.grid.json
  GET /map-info/{resource}
  GET /health

filters, q and fields are read from the query string. map-info needs
datastore.readurl; without it the endpoint answers 503.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Flags().Changed("host") {
			cfg.Server.Host = serveHost
		}
		if cmd.Flags().Changed("port") {
			cfg.Server.Port = servePort
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		flush, err := startTelemetry(cmd)
		if err != nil {
			return err
		}
		defer flush()

		var extents server.ExtentQuerier
		store, err := datastore.Connect(ctx, cfg, datastore.ReadOnly, log)
		switch {
		case err == nil:
			defer store.Close()
			extents = store
		case config.IsNotConfigured(err):
			log.Warn().Msg("Datastore not configured, map-info disabled")
		default:
			return err
		}

		client := windshaft.New(cfg.Windshaft, newGenerator(), log)
		return server.New(cfg, client, extents, log).Run(ctx)
	},
}

func init() {
	f := serveCmd.Flags()
	f.StringVar(&serveHost, "host", "", "listen host (default: server.host)")
	f.IntVar(&servePort, "port", 0, "listen port (default: server.port)")
}
