package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	askdhttp "github.com/fyrsmithlabs/askd/internal/http"
)

var (
	serveHost string
	servePort int
)

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "", "listen host (default localhost)")
	serveCmd.Flags().IntVar(&servePort, "port", 0, "listen port (default 9191)")
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the engine over a JSON HTTP API",
	Long: `Serve the engine over a JSON HTTP API until interrupted.

Routes:
  GET    /health
  GET    /metrics
  GET    /api/v1/status
  POST   /api/v1/query              {"query": "..."}
  PUT    /api/v1/modes              {"answer_mode": "rag", "privacy_filter": true, ...}
  GET    /api/v1/history
  POST   /api/v1/scrub              {"content": "..."}
  GET    /api/v1/sessions
  POST   /api/v1/sessions
  DELETE /api/v1/sessions
  GET    /api/v1/sessions/search?q=...&k=5
  POST   /api/v1/sessions/:id/load
  DELETE /api/v1/sessions/:id

The engine keeps one conversation, so concurrent clients share it.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	rt, err := newRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()

	hcfg := &askdhttp.Config{Host: "localhost", Port: 9191}
	if err := rt.cfg.UnmarshalSection("server", hcfg); err != nil {
		return err
	}
	if serveHost != "" {
		hcfg.Host = serveHost
	}
	if servePort != 0 {
		hcfg.Port = servePort
	}

	scrubber, err := newScrubFilter(rt.cfg)
	if err != nil {
		return err
	}
	server, err := askdhttp.NewServer(rt.engine, scrubber, rt.logger.Underlying(), hcfg,
		askdhttp.WithMeter(rt.tel.Meter("askd.http")),
	)
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()
	fmt.Fprintln(cmd.OutOrStdout(), okStyle.Render(fmt.Sprintf("askd listening on http://%s:%d", hcfg.Host, hcfg.Port)))

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownWait)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		rt.logger.Warn(shutdownCtx, "http shutdown", zap.Error(err))
	}
	return nil
}
