package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"crowdfund/config"
	"crowdfund/core"
	"crowdfund/observability/logging"
	"crowdfund/rpc"
	"crowdfund/storage"
)

const shutdownTimeout = 10 * time.Second

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file (TOML or YAML)")
	flag.Parse()

	if err := run(*configFile); err != nil {
		fmt.Fprintf(os.Stderr, "campaignd: %v\n", err)
		os.Exit(1)
	}
}

func run(configFile string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := logging.Setup("campaignd", cfg.Env, cfg.LogFile, logging.ParseLevel(cfg.LogLevel))

	db, err := storage.NewLevelDB(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("open database %s: %w", cfg.DataDir, err)
	}
	defer db.Close()

	node, err := core.NewNode(db)
	if err != nil {
		return err
	}
	node.SetLogger(logger)
	node.SetPauses(cfg.Pauses.View())

	if err := bootstrap(node, cfg.Campaigns, logger); err != nil {
		return fmt.Errorf("bootstrap campaigns: %w", err)
	}

	server, err := rpc.NewServer(node, serverConfig(cfg), logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.Start(cfg.RPCAddress)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("rpc server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down", slog.Duration("timeout", shutdownTimeout))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("rpc shutdown: %w", err)
	}
	return <-serveErr
}

func serverConfig(cfg *config.Config) rpc.ServerConfig {
	return rpc.ServerConfig{
		MaxBodyBytes: cfg.RPCMaxBodyBytes,
		ReadTimeout:  time.Duration(cfg.RPCReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.RPCWriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.RPCIdleTimeout) * time.Second,
		Auth: rpc.AuthConfig{
			HMACSecret:    cfg.Auth.HMACSecret,
			HMACSecretEnv: cfg.Auth.HMACSecretEnv,
			Issuer:        cfg.Auth.Issuer,
			Audience:      cfg.Auth.Audience,
			ClockSkew:     time.Duration(cfg.Auth.ClockSkewSeconds) * time.Second,
		},
		RateLimit: rpc.RateLimitConfig{
			RequestsPerMinute: cfg.RateLimit.RequestsPerMinute,
			Burst:             cfg.RateLimit.Burst,
		},
	}
}
