// Package redisauth stores credentials in Redis hashes, one hash per XMPP
// server keyed by user name.
package redisauth

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/danmuck/extauthd/internal/auth"
	"github.com/redis/go-redis/v9"
)

const DefaultPrefix = "extauth"

// Store implements auth.Authenticator and auth.UserManager.
type Store struct {
	client redis.UniversalClient
	prefix string
}

// Open connects to the given Redis URL and verifies the connection.
func Open(ctx context.Context, addr, prefix string) (*Store, error) {
	opts, err := parseRedisURL(addr)
	if err != nil {
		return nil, err
	}
	c := redis.NewUniversalClient(opts)
	if err := c.Ping(ctx).Err(); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("redis: ping %s: %w", addr, err)
	}
	return New(c, prefix), nil
}

// New wraps an existing client.
func New(c redis.UniversalClient, prefix string) *Store {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Store{client: c, prefix: prefix}
}

// parseRedisURL parses addr into UniversalOptions supporting single, cluster,
// and sentinel Redis deployments. If no scheme is present, addr is treated as
// a plain host:port string.
func parseRedisURL(addr string) (*redis.UniversalOptions, error) {
	if !strings.Contains(addr, "://") {
		return &redis.UniversalOptions{Addrs: []string{addr}}, nil
	}

	u, err := url.Parse(addr)
	if err != nil {
		return nil, err
	}

	opts := &redis.UniversalOptions{}
	if u.User != nil {
		opts.Username = u.User.Username()
		if pw, ok := u.User.Password(); ok {
			opts.Password = pw
		}
	}
	opts.Addrs = strings.Split(u.Host, ",")

	q := u.Query()
	tlsCfg := &tls.Config{MinVersion: tls.VersionTLS12}
	switch u.Scheme {
	case "redis", "rediss":
		if u.Path != "" && u.Path != "/" {
			db, err := strconv.Atoi(strings.TrimPrefix(u.Path, "/"))
			if err != nil {
				return nil, fmt.Errorf("redis: invalid db: %v", err)
			}
			opts.DB = db
		} else if dbStr := q.Get("db"); dbStr != "" {
			db, err := strconv.Atoi(dbStr)
			if err != nil {
				return nil, fmt.Errorf("redis: invalid db: %v", err)
			}
			opts.DB = db
		}
		if u.Scheme == "rediss" {
			opts.TLSConfig = tlsCfg
		}
	case "redis-sentinel", "rediss-sentinel":
		opts.MasterName = strings.TrimPrefix(u.Path, "/")
		if dbStr := q.Get("db"); dbStr != "" {
			db, err := strconv.Atoi(dbStr)
			if err != nil {
				return nil, fmt.Errorf("redis: invalid db: %v", err)
			}
			opts.DB = db
		}
		if v := q.Get("sentinel_username"); v != "" {
			opts.SentinelUsername = v
		}
		if v := q.Get("sentinel_password"); v != "" {
			opts.SentinelPassword = v
		}
		if u.Scheme == "rediss-sentinel" {
			opts.TLSConfig = tlsCfg
		}
	default:
		return nil, fmt.Errorf("redis: invalid URL scheme: %s", u.Scheme)
	}

	return opts, nil
}

func (s *Store) key(server string) string {
	return s.prefix + ":users:" + server
}

func (s *Store) hash(ctx context.Context, user, server string) (string, bool, error) {
	h, err := s.client.HGet(ctx, s.key(server), user).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return h, true, nil
}

func (s *Store) Authenticate(ctx context.Context, user, server, password string) (bool, error) {
	h, ok, err := s.hash(ctx, user, server)
	if err != nil || !ok {
		return false, err
	}
	return auth.CheckPassword(h, password)
}

func (s *Store) Exists(ctx context.Context, user, server string) (bool, error) {
	return s.client.HExists(ctx, s.key(server), user).Result()
}

func (s *Store) SetPassword(ctx context.Context, user, server, password string) (bool, error) {
	ok, err := s.Exists(ctx, user, server)
	if err != nil || !ok {
		return false, err
	}
	h, err := auth.HashPassword(password)
	if errors.Is(err, auth.ErrPasswordTooLong) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := s.client.HSet(ctx, s.key(server), user, h).Err(); err != nil {
		return false, err
	}
	return true, nil
}

func (s *Store) Register(ctx context.Context, user, server, password string) (bool, error) {
	h, err := auth.HashPassword(password)
	if errors.Is(err, auth.ErrPasswordTooLong) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return s.client.HSetNX(ctx, s.key(server), user, h).Result()
}

func (s *Store) Remove(ctx context.Context, user, server string) (bool, error) {
	n, err := s.client.HDel(ctx, s.key(server), user).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *Store) RemoveSafely(ctx context.Context, user, server, password string) (bool, error) {
	h, ok, err := s.hash(ctx, user, server)
	if err != nil || !ok {
		return false, err
	}
	match, err := auth.CheckPassword(h, password)
	if err != nil || !match {
		return false, err
	}
	return s.Remove(ctx, user, server)
}

// Close releases the Redis connection pool.
func (s *Store) Close() error {
	return s.client.Close()
}
