package main

import (
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/bure-project/bure/internal/estimate"
	"github.com/bure-project/bure/internal/selector"
	"github.com/bure-project/bure/internal/web"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the rental estimate HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.Migrate(ctx); err != nil {
			return err
		}

		reg, err := initRegistry()
		if err != nil {
			return err
		}

		sessions := web.NewSessions(reg, web.MapConfig{
			Center:      selector.LatLng{Lat: cfg.Map.CenterLat, Lon: cfg.Map.CenterLon},
			Zoom:        cfg.Map.Zoom,
			TileURL:     cfg.Map.TileURL,
			Attribution: cfg.Map.Attribution,
		}, time.Duration(cfg.Picker.SessionTTLMins)*time.Minute)
		go sessions.Run(ctx)

		var tiles *web.TileProxy
		if cfg.Map.TileUpstream != "" {
			cache := web.NewTileCache(cfg.Map.TileCacheSize, time.Duration(cfg.Map.TileCacheTTL)*time.Minute)
			tiles = web.NewTileProxy(cfg.Map.TileUpstream, "png", cache)
		}

		server := web.NewServer(reg, st, estimate.NewEstimator(st, reg), sessions, tiles)

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: server.Router(),
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			srv.Shutdown(ctx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
