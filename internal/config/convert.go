package config

import (
	"context"
	"fmt"
	"io"

	"github.com/danmuck/extauthd/internal/auth"
	"github.com/danmuck/extauthd/internal/auth/memory"
	"github.com/danmuck/extauthd/internal/auth/redisauth"
	"github.com/danmuck/extauthd/internal/auth/sqlauth"
	"github.com/danmuck/extauthd/internal/logging"
	"github.com/danmuck/extauthd/internal/protocol/frame"
)

// ApplyEnv layers EXTAUTHD_LOG_* over the [log] section.
func (c *Config) ApplyEnv() {
	lc := c.LoggingConfig()
	logging.ApplyEnv(&lc)
	c.Log.Path, c.Log.Debug = lc.Path, lc.Debug
}

func (c Config) LoggingConfig() logging.Config {
	return logging.Config{Path: c.Log.Path, Debug: c.Log.Debug}
}

func (c Config) FrameOptions() frame.Options {
	return frame.Options{ExactPayload: c.Protocol.ExactPayload}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// OpenProvider builds the backend described by b. The returned closer
// releases backend connections and is never nil on success.
func OpenProvider(ctx context.Context, b BackendConfig) (auth.Authenticator, io.Closer, error) {
	if err := b.Validate(); err != nil {
		return nil, nil, err
	}

	var (
		p      auth.Authenticator
		closer io.Closer = nopCloser{}
	)
	switch b.Kind {
	case BackendMemory:
		store := memory.New()
		if b.UsersFile != "" {
			loaded, err := memory.LoadFile(b.UsersFile)
			if err != nil {
				return nil, nil, err
			}
			store = loaded
		}
		p = store
	case BackendRedis:
		store, err := redisauth.Open(ctx, b.RedisURL, b.RedisPrefix)
		if err != nil {
			return nil, nil, fmt.Errorf("open redis backend: %w", err)
		}
		p, closer = store, store
	case BackendSQLite:
		store, err := sqlauth.Open(ctx, b.SQLitePath)
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite backend: %w", err)
		}
		p, closer = store, store
	}

	if b.ReadOnly {
		p = auth.CoreOnly(p)
	}
	return p, closer, nil
}
