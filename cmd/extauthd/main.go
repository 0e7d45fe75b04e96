package main

import (
	"os"

	"github.com/danmuck/extauthd/internal/buildinfo"
	"github.com/danmuck/extauthd/internal/observability"
	"github.com/rs/zerolog/log"
)

// Diagnostics go to stderr; stdout is reserved for protocol responses.
func main() {
	observability.InitLogger(buildinfo.Name)
	log.Debug().Str("version", buildinfo.VersionString()).Int("pid", os.Getpid()).Msg("build")

	if err := Execute(os.Args[1:]); err != nil {
		log.Error().Err(err).Msg("extauthd stopped")
		os.Exit(1)
	}
}
