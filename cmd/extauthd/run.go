package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/danmuck/extauthd/internal/auth"
	"github.com/danmuck/extauthd/internal/config"
	"github.com/danmuck/extauthd/internal/engine"
	"github.com/danmuck/extauthd/internal/logging"
	"github.com/danmuck/extauthd/internal/observability"
	"github.com/danmuck/extauthd/internal/paths"
	"github.com/rs/zerolog/log"
)

// drainTimeout bounds how long shutdown waits for the event loop.
var drainTimeout = 2 * time.Second

// RunCmd serves the protocol on the process's standard streams.
type RunCmd struct{}

func (c *RunCmd) Run(ctx context.Context, root *RootCmd) error {
	cfg, err := resolveConfig(root)
	if err != nil {
		return err
	}
	return serve(ctx, cfg, os.Stdin, os.Stdout)
}

// resolveConfig layers defaults, the config file, the environment, then flags.
func resolveConfig(root *RootCmd) (config.Config, error) {
	cfg := config.Default()
	path := root.Config
	if path == "" {
		path = paths.DefaultConfig()
	}
	if path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return config.Config{}, err
		}
		cfg = loaded
		log.Info().Str("path", path).Msg("loaded config")
	}
	cfg.ApplyEnv()

	if root.Log != "" {
		cfg.Log.Path = root.Log
	}
	if root.Debug {
		cfg.Log.Debug = true
	}
	if root.Backend != "" {
		cfg.Backend.Kind = root.Backend
	}
	if root.UsersFile != "" {
		cfg.Backend.UsersFile = root.UsersFile
	}
	if root.RedisURL != "" {
		cfg.Backend.RedisURL = root.RedisURL
	}
	if root.SQLitePath != "" {
		cfg.Backend.SQLitePath = root.SQLitePath
	}
	if root.ReadOnly {
		cfg.Backend.ReadOnly = true
	}
	if root.ExactPayload {
		cfg.Protocol.ExactPayload = true
	}
	if root.MetricsAddr != "" {
		cfg.Metrics.Addr = root.MetricsAddr
	}

	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func serve(ctx context.Context, cfg config.Config, in io.Reader, out io.Writer) error {
	logger, err := logging.Open(cfg.LoggingConfig())
	if err != nil {
		return err
	}
	defer logger.Close()

	logger.Log("Starting auth service...", logging.Info)

	provider, closer, err := config.OpenProvider(ctx, cfg.Backend)
	if err != nil {
		logger.Logf(logging.Critical, "Backend unavailable: %v", err)
		return err
	}
	defer closer.Close()

	if cfg.Metrics.Addr != "" {
		observability.RegisterMetrics()
		go func() {
			if err := observability.ServeMetrics(ctx, cfg.Metrics.Addr, log.Logger); err != nil {
				log.Error().Err(err).Str("addr", cfg.Metrics.Addr).Msg("metrics listener stopped")
			}
		}()
	}

	eng, err := engine.New(engine.Config{
		In:       in,
		Out:      out,
		Provider: provider,
		Log:      logger,
		Frame:    cfg.FrameOptions(),
	})
	if err != nil {
		return err
	}
	logger.Logf(logging.Info, "Backend %s ready: %s", cfg.Backend.Kind, describe(eng.Capabilities()))

	// Reads on stdin cannot be interrupted, so the loop runs on its own
	// goroutine and a signal returns without waiting for it.
	done := make(chan error, 1)
	go func() { done <- eng.Run(ctx) }()

	select {
	case err = <-done:
	case <-ctx.Done():
		logger.Logf(logging.Info, "Termination requested: %v", context.Cause(ctx))
		// The loop sees cancellation between frames. Give it drainTimeout to
		// finish before the provider and log sink are closed; a read still
		// blocked after that is abandoned to process exit.
		select {
		case <-done:
		case <-time.After(drainTimeout):
			logger.Log("Event loop still blocked on input, closing anyway", logging.Warning)
		}
		err = nil
	}
	logger.Log("Exiting...", logging.Info)
	if err != nil {
		return fmt.Errorf("event loop: %w", err)
	}
	return nil
}

func describe(c auth.Capabilities) string {
	if c.UserManagement {
		return "authentication and user management"
	}
	return "authentication only"
}
