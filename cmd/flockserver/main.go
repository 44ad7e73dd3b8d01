package main

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
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/lao-tseu-is-alive/go-boids/internal/cli"
	"github.com/lao-tseu-is-alive/go-boids/internal/observability"
	"github.com/lao-tseu-is-alive/go-boids/pkg/server"
	"github.com/lao-tseu-is-alive/go-boids/pkg/simulation"
)

const shutdownTimeout = 5 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	v := cli.NewViper()
	cmd := &cobra.Command{
		Use:          "flockserver",
		Short:        "Headless boids simulation streaming snapshots over websocket",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := cli.Resolve(v)
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg)
		},
	}
	if err := cli.BindFlags(cmd, v, true); err != nil {
		panic(err)
	}
	return cmd
}

func run(ctx context.Context, cfg *simulation.Config) error {
	logger, err := observability.New(cfg.Log)
	if err != nil {
		return err
	}
	defer observability.Sync(logger)

	engine, err := simulation.NewEngine(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := engine.Stop(context.Background()); err != nil {
			logger.Error("engine stop failed", zap.Error(err))
		}
	}()

	hub := server.New(engine, logger.Named("server"))
	httpServer := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           hub.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return tickLoop(ctx, engine, cfg.TickInterval(), logger)
	})
	g.Go(func() error {
		return hub.Run(ctx, engine.Updates())
	})
	g.Go(func() error {
		logger.Info("listening", zap.String("addr", cfg.ListenAddr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down")
		_ = hub.Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// tickLoop advances the world at a fixed rate until ctx is done.
func tickLoop(ctx context.Context, engine *simulation.Engine, interval time.Duration, logger *zap.Logger) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := engine.Tick(ctx); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				logger.Warn("tick failed", zap.Error(err))
			}
		}
	}
}
