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

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/forgecms/forge/internal/config"
	"github.com/forgecms/forge/internal/lifecycle"
	"github.com/forgecms/forge/internal/model"
	"github.com/forgecms/forge/internal/store"
	"github.com/forgecms/forge/internal/web"
)

var serveFlags struct {
	configPath string
	memory     bool
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long:  "Load model definitions, build the registry, and serve the generated CRUD API",
	RunE: func(cmd *cobra.Command, args []string) error {
		logger, err := zap.NewProduction()
		if err != nil {
			return err
		}
		defer logger.Sync()

		cfg, err := config.Load(serveFlags.configPath)
		if err != nil {
			return err
		}
		if serveFlags.memory {
			cfg.Database.Provider = "memory"
		}

		registry, err := model.LoadDir(cfg.Models.Dir, nil)
		if err != nil {
			return fmt.Errorf("loading models: %w", err)
		}
		logger.Info("registry built", zap.Int("models", registry.Count()))

		adapter, err := buildAdapter(cfg, registry)
		if err != nil {
			return err
		}

		engine := lifecycle.NewEngine(registry, adapter, lifecycle.NewHookRegistry(), logger)

		var opts []web.Option
		if cfg.Auth.Secret != "" {
			opts = append(opts, web.WithAuthSecret(cfg.Auth.Secret))
		}
		if cfg.Redis.Addr != "" {
			client := redis.NewClient(&redis.Options{
				Addr:     cfg.Redis.Addr,
				Password: cfg.Redis.Password,
				DB:       cfg.Redis.DB,
			})
			limiter, err := web.NewSlidingWindow(client)
			if err != nil {
				return err
			}
			opts = append(opts, web.WithRateLimiter(limiter))
		}
		if cfg.Auth.APIKey {
			opts = append(opts, web.WithAPIKeyAuth())
		}
		if cfg.Metrics.Enabled {
			opts = append(opts, web.WithMetrics())
		}

		server, err := web.NewServer(registry, engine, logger, opts...)
		if err != nil {
			return err
		}

		httpServer := &http.Server{
			Addr:              cfg.Server.Address(),
			Handler:           server.Handler(),
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      15 * time.Second,
			IdleTimeout:       60 * time.Second,
			ReadHeaderTimeout: 10 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			logger.Info("listening", zap.String("addr", httpServer.Addr))
			if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
		}()

		stop := make(chan os.Signal, 1)
		signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

		select {
		case err := <-errCh:
			return err
		case sig := <-stop:
			logger.Info("shutting down", zap.String("signal", sig.String()))
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(ctx)
	},
}

func buildAdapter(cfg *config.Config, registry *model.Registry) (store.Adapter, error) {
	switch cfg.Database.Provider {
	case "memory":
		return store.NewMemory(registry), nil
	case "postgres", "sqlite":
		return store.OpenSQL(registry, cfg.Database.Provider, cfg.Database.URL)
	}
	return nil, fmt.Errorf("unknown database provider: %s", cfg.Database.Provider)
}

func init() {
	serveCmd.Flags().StringVarP(&serveFlags.configPath, "config", "c", "", "path to config file")
	serveCmd.Flags().BoolVar(&serveFlags.memory, "memory", false, "use the in-memory adapter")
}
