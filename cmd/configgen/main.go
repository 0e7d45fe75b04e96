package main

import (
	"os"
	"path/filepath"

	"github.com/alecthomas/kong"
	"github.com/danmuck/extauthd/internal/config"
	"github.com/danmuck/extauthd/internal/observability"
	"github.com/danmuck/extauthd/internal/paths"
	"github.com/rs/zerolog/log"
)

type cli struct {
	Kind     string `short:"k" default:"memory" help:"Backend kind for the template: memory, redis or sqlite."`
	Output   string `short:"o" help:"Output path for the template (defaults to the user config path)." placeholder:"PATH"`
	Validate bool   `help:"Validate an existing config file instead of writing one."`
	Input    string `short:"i" help:"Config path for validation (defaults to the resolved config path)." placeholder:"PATH"`
	Force    bool   `short:"f" help:"Overwrite an existing config file."`
}

func (c *cli) Run() error {
	if c.Validate {
		path := c.Input
		if path == "" {
			path = paths.DefaultConfig()
		}
		if path == "" {
			path = paths.UserConfig()
		}
		cfg, err := config.Load(path)
		if err != nil {
			return err
		}
		log.Info().Str("path", path).Str("backend", cfg.Backend.Kind).Msg("validated config")
		return nil
	}

	target := c.Output
	if target == "" {
		target = paths.UserConfig()
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	if err := config.WriteTemplate(target, c.Kind, c.Force); err != nil {
		return err
	}
	log.Info().Str("kind", c.Kind).Str("path", target).Msg("wrote config template")
	return nil
}

func main() {
	observability.InitLogger("configgen")
	var args cli
	kong.Parse(&args,
		kong.Name("configgen"),
		kong.Description("Write or validate extauthd configuration files."),
		kong.UsageOnError(),
	)
	if err := args.Run(); err != nil {
		log.Fatal().Err(err).Msg("configgen failed")
	}
}
