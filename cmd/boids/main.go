package main

import (
	"context"
	"fmt"
	"os"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/lao-tseu-is-alive/go-boids/internal/cli"
	"github.com/lao-tseu-is-alive/go-boids/internal/observability"
	"github.com/lao-tseu-is-alive/go-boids/pkg/simulation"
)

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	v := cli.NewViper()
	cmd := &cobra.Command{
		Use:          "boids",
		Short:        "Interactive boids flocking window",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := cli.Resolve(v)
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg)
		},
	}
	if err := cli.BindFlags(cmd, v, false); err != nil {
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

	game, err := newGame(ctx, engine, cfg, logger.Named("window"))
	if err != nil {
		return err
	}

	ebiten.SetWindowSize(int(cfg.WorldWidth), int(cfg.WorldHeight))
	ebiten.SetWindowTitle("Boids")
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	ebiten.SetTPS(cfg.TickRate)

	logger.Info("starting window",
		zap.Int("population", cfg.Population),
		zap.Int("tick_rate", cfg.TickRate))
	return ebiten.RunGame(game)
}
