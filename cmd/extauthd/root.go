package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/danmuck/extauthd/internal/buildinfo"
)

// RootCmd is the extauthd command line.
type RootCmd struct {
	Config       string `short:"c" help:"Configuration file. Defaults to the XDG config dir, then /etc/extauthd." placeholder:"PATH" type:"path"`
	Log          string `short:"l" help:"Log file path. Empty disables the log." placeholder:"PATH"`
	Debug        bool   `short:"d" help:"Include debug entries in the log."`
	Backend      string `help:"Credential backend: memory, redis or sqlite." placeholder:"KIND"`
	UsersFile    string `help:"TOML users file for the memory backend." placeholder:"PATH"`
	RedisURL     string `help:"Redis URL for the redis backend." placeholder:"URL"`
	SQLitePath   string `help:"Database path for the sqlite backend." placeholder:"PATH"`
	ReadOnly     bool   `help:"Advertise authentication only; management commands answer failure."`
	ExactPayload bool   `help:"Read exactly the declared payload length instead of stopping at a newline."`
	MetricsAddr  string `help:"Serve /metrics and /healthz on this address." placeholder:"ADDR"`

	Run     RunCmd     `cmd:"" default:"withargs" help:"Serve auth requests on stdin/stdout (default)."`
	Version VersionCmd `cmd:"" help:"Show version information."`
}

func newParser(root *RootCmd, options ...kong.Option) (*kong.Kong, error) {
	opts := append([]kong.Option{
		kong.Name(buildinfo.Name),
		kong.Description("External authentication helper.\n\nReads length-prefixed requests on stdin and answers on stdout."),
		kong.UsageOnError(),
		kong.Vars{"version": buildinfo.VersionString()},
	}, options...)
	return kong.New(root, opts...)
}

// Execute parses args and runs the selected subcommand until it returns or
// a termination signal arrives.
func Execute(args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer cancel()

	root := &RootCmd{}
	parser, err := newParser(root, kong.BindTo(ctx, (*context.Context)(nil)))
	if err != nil {
		return err
	}
	kongCtx, err := parser.Parse(args)
	if err != nil {
		parser.FatalIfErrorf(err)
		return err
	}
	return kongCtx.Run(root)
}
