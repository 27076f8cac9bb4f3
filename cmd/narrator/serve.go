package main

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/narration-lab/internal/logging"
	"github.com/narration-lab/internal/mcp"
	"github.com/narration-lab/internal/server"
	"github.com/narration-lab/internal/voice"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API (and the MCP WebSocket endpoint)",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides NARRATOR_HTTP_ADDR)")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := buildApp(ctx, cfg)
	if err != nil {
		return err
	}
	addr := cfg.HTTP.Address
	if serveAddr != "" {
		addr = serveAddr
	}

	opts := server.Options{Password: cfg.HTTP.Password, Metrics: a.metrics}
	if cfg.HTTP.MCPEnabled {
		opts.MCP = mcp.WebSocketHandler(mcp.NewServer(a.service, version))
	}
	srv := server.NewHTTPServer(addr, server.New(a.service, opts))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logging.Infow("narrator: http listening", "addr", addr, "mcp", cfg.HTTP.MCPEnabled, "auth", cfg.HTTP.Password != "")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		logging.Infow("narrator: shutting down")
		return srv.Shutdown(shutdownCtx)
	})

	var wg sync.WaitGroup
	if a.archive != nil && cfg.Archive.Interval > 0 {
		wg.Add(1)
		voice.StartSaveAudioCleaner(gctx, &wg, a.archive.Dir, cfg.Archive.Retention, cfg.Archive.Interval, cfg.Archive.MaxFiles)
	}

	err = g.Wait()
	wg.Wait()
	return err
}
