// Command authcore runs the authentication service, its cleanup worker and
// maintenance tasks.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/MrEthical07/authcore/internal/app"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

type rootOptions struct {
	logFormat string
	devMode   bool
}

func (o *rootOptions) addFlags(fs *pflag.FlagSet) {
	fs.StringVar(&o.logFormat, "log-format", "", "log output format: text or json (overrides LOG_FORMAT)")
	fs.BoolVar(&o.devMode, "dev", false, "use in-process Redis and an in-memory principal store (overrides AUTH_DEV_INMEMORY)")
}

// load reads configuration and applies command-line overrides.
func (o *rootOptions) load(cmd *cobra.Command) (*app.Config, error) {
	if o.devMode {
		if err := os.Setenv("AUTH_DEV_INMEMORY", "true"); err != nil {
			return nil, err
		}
	}
	cfg, err := app.LoadConfig()
	if err != nil {
		return nil, err
	}
	if cmd.Flags().Changed("log-format") {
		cfg.LogFormat = o.logFormat
	}
	return cfg, nil
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "authcore",
		Short:         "Authentication and token lifecycle service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	opts.addFlags(cmd.PersistentFlags())

	cmd.AddCommand(
		newServeCommand(opts),
		newWorkerCommand(opts),
		newSweepCommand(opts),
		newHashPasswordCommand(),
	)
	return cmd
}
