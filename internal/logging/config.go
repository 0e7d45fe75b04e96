package logging

import (
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	EnvLogPath  = "EXTAUTHD_LOG_PATH"
	EnvLogDebug = "EXTAUTHD_LOG_DEBUG"
)

// Config selects the sink and whether debug entries are allowed.
type Config struct {
	Path  string
	Debug bool
}

// defaultEnabled excludes notice and debug.
var defaultEnabled = []Severity{Emergency, Alert, Critical, Error, Warning, Info, Kernel}

func (c Config) enabledSet() map[Severity]bool {
	set := make(map[Severity]bool, len(defaultEnabled)+1)
	for _, s := range defaultEnabled {
		set[s] = true
	}
	if c.Debug {
		set[Debug] = true
	}
	return set
}

// ApplyEnv overrides cfg from EXTAUTHD_LOG_* variables.
func ApplyEnv(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv(EnvLogPath)); v != "" {
		cfg.Path = v
	}
	if v, ok := parseBool(os.Getenv(EnvLogDebug)); ok {
		cfg.Debug = v
	}
}

func parseBool(raw string) (bool, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return false, false
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false
	}
	return v, true
}

var configureTestsOnce sync.Once

// ConfigureTests routes the global zerolog logger to stderr at debug level.
func ConfigureTests() {
	configureTestsOnce.Do(func() {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, NoColor: true})
	})
}
