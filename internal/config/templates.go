package config

import (
	"fmt"
	"os"
	"strings"
)

func Template(kind string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case BackendMemory:
		return memoryTemplate, nil
	case BackendRedis:
		return redisTemplate, nil
	case BackendSQLite:
		return sqliteTemplate, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownBackend, kind)
	}
}

func WriteTemplate(path, kind string, overwrite bool) error {
	template, err := Template(kind)
	if err != nil {
		return err
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(template), 0o600)
}

const commonTemplate = `[log]
path = "/var/log/extauthd/extauth.log"
debug = false

[protocol]
exact_payload = false

[metrics]
# addr = "127.0.0.1:9464"
`

const memoryTemplate = commonTemplate + `
[backend]
kind = "memory"
read_only = false
users_file = "/etc/extauthd/users.toml"
`

const redisTemplate = commonTemplate + `
[backend]
kind = "redis"
read_only = false
redis_url = "redis://localhost:6379/0"
redis_prefix = "extauth"
`

const sqliteTemplate = commonTemplate + `
[backend]
kind = "sqlite"
read_only = false
sqlite_path = "/var/lib/extauthd/users.db"
`
