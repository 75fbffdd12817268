package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Ting2004/katachi/internal/client"
	"github.com/Ting2004/katachi/internal/engine"
	"github.com/Ting2004/katachi/internal/server"
	"github.com/Ting2004/katachi/internal/telemetry"
)

const shutdownTimeout = 5 * time.Second

func (a *app) serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server and the background scheduler",
		Args:  cobra.NoArgs,
		RunE:  a.runServe,
	}
}

func (a *app) runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	otelShutdown, err := telemetry.Init(ctx, a.cfg.Telemetry.Endpoint, "katachi", Version, a.cfg.Telemetry.Insecure)
	if err != nil {
		return err
	}
	defer func() { _ = otelShutdown(context.Background()) }()

	if c := client.New(a.cfg.BaseURL()); c.Healthy(ctx) {
		return fmt.Errorf("a katachi server is already running at %s", c.URL())
	}

	eng, closer, err := a.openEngine(ctx, telemetry.Meter("github.com/Ting2004/katachi"))
	if err != nil {
		return err
	}
	defer closer.Close()

	if err := eng.CatchUp(ctx); err != nil {
		a.logger.Warn("catch-up maintenance failed", "err", err)
	}
	eng.Start(engine.Schedule{
		Decay: a.cfg.Schedule.Decay,
		Save:  a.cfg.Schedule.Save,
		Reset: a.cfg.Schedule.Reset,
	})

	addr := a.cfg.ListenAddr()
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           server.New(eng, VersionString(), a.logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.logger.Info("katachi serving", "addr", addr, "backend", a.cfg.Storage.Backend, "version", Version)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen %s: %w", addr, err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		a.logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})
	err = g.Wait()

	closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if cerr := eng.Close(closeCtx); cerr != nil {
		err = errors.Join(err, fmt.Errorf("final save: %w", cerr))
	}
	return err
}
