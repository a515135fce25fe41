package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/lu-zhengda/launchdeck/internal/metrics"
	"github.com/lu-zhengda/launchdeck/internal/server"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the launcher over HTTP",
	Long:  "Serve the launcher API, a scan progress websocket and Prometheus metrics.\nThe runtime poll loop runs for as long as the server does.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		m := metrics.New()
		app, err := openApp(ctx, false, m)
		if err != nil {
			return err
		}
		defer closeApp(app)

		addr := serveAddr
		if addr == "" {
			addr = currentConfig().Server.Addr
		}
		srv := server.New(app.Session, server.Options{
			Addr:       addr,
			Logger:     app.Logger.Named("server"),
			Metrics:    m,
			ClearCache: app.ClearCache,
		})

		if _, err := app.Session.Load(ctx, false, nil); err != nil {
			app.Logger.Warn("initial scan failed", zap.Error(err))
		}

		fmt.Fprintf(os.Stderr, "Serving on http://%s\n", srv.Addr())
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			return srv.Run(gctx)
		})
		g.Go(func() error {
			if err := app.Session.Loop().Run(gctx); err != nil && gctx.Err() == nil {
				return err
			}
			return nil
		})
		return g.Wait()
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (default from config, 127.0.0.1:7420)")
}
