// Command medtracker serves the medication tracker API and offers one-shot
// inspection of the stored dataset.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"medtracker/internal/adapters/httpapi"
	"medtracker/internal/config"
	"medtracker/internal/core"
	"medtracker/internal/platform/logging"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string
	rootCmd := &cobra.Command{
		Use:          "medtracker",
		Short:        "Medication and temperature tracker",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "optional config file (yaml, json or toml)")

	rootCmd.AddCommand(serveCmd(&configPath))
	rootCmd.AddCommand(snapshotCmd(&configPath))
	return rootCmd
}

func serveCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API and the refresh loop",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServer(ctx, *configPath, cmd.OutOrStdout())
		},
	}
}

func snapshotCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "snapshot",
		Short: "Load the dataset once and print the derived snapshot as JSON",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSnapshot(cmd.Context(), *configPath, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}
}

type app struct {
	cfg    *config.Config
	logger *logging.Zerolog
	coord  *core.Coordinator
	close  func()
}

func setup(ctx context.Context, configPath string, logOut io.Writer, reg prometheus.Registerer) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat, logOut)
	if err != nil {
		return nil, err
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	gw, err := core.OpenGateway(ctx, cfg.Storage(logger))
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	closeGateway := func() {
		if c, ok := gw.(io.Closer); ok {
			if err := c.Close(); err != nil {
				logger.Warn("close storage failed", "error", err)
			}
		}
	}

	opts := []core.Option{
		core.WithLogger(logger),
		core.WithSaveTimeout(cfg.SaveTimeout),
		core.WithLocation(loc),
	}
	if reg != nil {
		metrics, err := core.NewPrometheusMetricsRecorder(reg)
		if err != nil {
			closeGateway()
			return nil, err
		}
		opts = append(opts, core.WithMetricsRecorder(metrics))
	}
	if cfg.SeedFile != "" {
		seed, err := core.LoadSeed(cfg.SeedFile)
		if err != nil {
			closeGateway()
			return nil, err
		}
		opts = append(opts, core.WithSeed(seed))
	}

	coord := core.NewCoordinator(gw, opts...)
	if err := coord.Setup(ctx); err != nil {
		closeGateway()
		return nil, fmt.Errorf("setup: %w", err)
	}
	return &app{cfg: cfg, logger: logger, coord: coord, close: closeGateway}, nil
}

func runServer(ctx context.Context, configPath string, logOut io.Writer) error {
	a, err := setup(ctx, configPath, logOut, prometheus.DefaultRegisterer)
	if err != nil {
		return err
	}
	defer a.close()

	e := httpapi.NewServer(a.coord, a.logger.Zerolog(), prometheus.DefaultGatherer)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return a.coord.Poll(gctx, a.cfg.PollInterval)
	})
	g.Go(func() error {
		a.logger.Info("starting server", "addr", a.cfg.HTTPAddr)
		if err := e.Start(a.cfg.HTTPAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		a.logger.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return e.Shutdown(shutdownCtx)
	})
	runErr := g.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := a.coord.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("final save failed", "error", err)
		return errors.Join(runErr, err)
	}
	a.logger.Info("server stopped")
	return runErr
}

func runSnapshot(ctx context.Context, configPath string, out, logOut io.Writer) error {
	a, err := setup(ctx, configPath, logOut, nil)
	if err != nil {
		return err
	}
	defer a.close()

	snap, ok := a.coord.Latest()
	if !ok {
		return core.ErrNotReady
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(snap)
}
