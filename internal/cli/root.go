// Package cli is the crew command line front end.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nidhogg/crew/internal/config"
	"github.com/nidhogg/crew/internal/logging"
)

const version = "0.1.0"

// options carries global flags and the process streams.
type options struct {
	cfgFile  string
	logLevel string
	pretty   bool

	in  io.Reader
	out io.Writer
	err io.Writer
}

// exitError ends the process with code after output has been written.
type exitError struct{ code int }

func (e *exitError) Error() string { return fmt.Sprintf("exit status %d", e.code) }

func newRootCmd(o *options) *cobra.Command {
	root := &cobra.Command{
		Use:   "crew [prompt]",
		Short: "crew - fan one prompt out to a roster of model agents",
		Long: `crew sends a prompt to every agent in its roster concurrently, merges the
successful answers into one document ordered by content digest, and prints a
JSON report of the round.`,
		Version:       version,
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRound(cmd.Context(), o, args)
		},
	}
	root.SetIn(o.in)
	root.SetOut(o.out)
	root.SetErr(o.err)

	root.PersistentFlags().StringVar(&o.cfgFile, "config", "", "config file, JSON or YAML (default $CREW_CONFIG, then ./crew.json)")
	root.PersistentFlags().StringVar(&o.logLevel, "log-level", "", "log level (debug, info, warn, error); overrides the config file")
	root.Flags().BoolVar(&o.pretty, "pretty", false, "print a round summary to stderr")

	root.SetVersionTemplate(`{{with .Name}}{{printf "%s " .}}{{end}}{{printf "version %s" .Version}}
`)

	root.AddCommand(
		newRunCmd(o),
		newServeCmd(o),
		newRosterCmd(o),
		newCacheCmd(o),
		newWatchCmd(o),
	)
	return root
}

// Execute runs the command line and returns the process exit code.
func Execute(ctx context.Context, args []string, in io.Reader, out, errOut io.Writer) int {
	o := &options{in: in, out: out, err: errOut}
	root := newRootCmd(o)
	root.SetArgs(args)

	err := root.ExecuteContext(ctx)
	if err == nil {
		return 0
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	fmt.Fprintln(errOut, "Error:", err)
	return 1
}

// configPath resolves which file, if any, to load.
func (o *options) configPath() string {
	if o.cfgFile != "" {
		return o.cfgFile
	}
	if p := os.Getenv("CREW_CONFIG"); p != "" {
		return p
	}
	for _, p := range []string{"crew.json", "crew.yaml", "crew.yml"} {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

func (o *options) loadConfig() (*config.Config, string, error) {
	path := o.configPath()
	if path == "" {
		return config.Default(), "", nil
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, path, err
	}
	return cfg, path, nil
}

func (o *options) newLogger(cfg *config.Config) (*zap.Logger, error) {
	level := cfg.Server.LogLevel
	if o.logLevel != "" {
		level = o.logLevel
	}
	return logging.New(level, o.err)
}

// setup loads config and builds a logger for subcommands.
func (o *options) setup() (*config.Config, string, *zap.Logger, error) {
	cfg, path, err := o.loadConfig()
	if err != nil {
		return nil, path, nil, err
	}
	logger, err := o.newLogger(cfg)
	if err != nil {
		return nil, path, nil, err
	}
	return cfg, path, logger, nil
}
