package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/codefionn/threadgate/internal/config"
	"github.com/codefionn/threadgate/internal/engine"
	"github.com/codefionn/threadgate/internal/logger"
	"github.com/codefionn/threadgate/internal/relay"
	"github.com/codefionn/threadgate/internal/store"
)

func main() {
	configPath := flag.String("config", "", "path to JSON config file")
	listen := flag.String("listen", "", "listen address, overrides config")
	logLevel := flag.String("log-level", "", "log level (debug, info, warn, error, none), overrides config")
	writeConfig := flag.Bool("write-config", false, "write the effective config to the config file and exit")
	flag.Parse()

	if err := run(*configPath, *listen, *logLevel, *writeConfig); err != nil {
		fmt.Fprintf(os.Stderr, "threadgate: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, listen, logLevel string, writeConfig bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if listen != "" {
		cfg.Listen = listen
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}

	if writeConfig {
		if err := cfg.Save(); err != nil {
			return err
		}
		fmt.Printf("wrote config to %s\n", cfg.SourcePath)
		return nil
	}

	if err := logger.Init(logger.ParseLevel(cfg.LogLevel), cfg.LogPath); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer logger.Global().Close()

	gateway, err := newGateway(cfg)
	if err != nil {
		return err
	}

	server := relay.NewServer(cfg, gateway, engine.NewLoopback())
	if err := server.Listen(); err != nil {
		return err
	}
	logger.Info("threadgate starting on %s (store: %s)", server.Addr(), storeDriver(cfg))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	g.Go(func() error {
		// Live reload only touches the log level; address and store changes
		// need a restart.
		if err := config.Watch(gctx, cfg.SourcePath, func(updated *config.Config) {
			logger.Global().SetLevel(logger.ParseLevel(updated.LogLevel))
		}); err != nil {
			logger.Warn("Config watching disabled: %v", err)
			<-gctx.Done()
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()

		timeout := time.Duration(cfg.ShutdownTimeoutSeconds) * time.Second
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		logger.Info("Shutting down")
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// newGateway builds the persistence gateway selected by the config
func newGateway(cfg *config.Config) (store.Gateway, error) {
	switch cfg.Store.Driver {
	case "", "none":
		return store.NewNop(), nil
	case "sqlite":
		return store.NewSQLite(cfg.Store.Path)
	case "remote":
		timeout := time.Duration(cfg.Store.TimeoutSeconds) * time.Second
		return store.NewRemote(cfg.Store.Endpoint, cfg.Store.APIKey, timeout), nil
	default:
		return nil, fmt.Errorf("unknown store driver: %s", cfg.Store.Driver)
	}
}

func storeDriver(cfg *config.Config) string {
	if cfg.Store.Driver == "" {
		return "none"
	}
	return cfg.Store.Driver
}
