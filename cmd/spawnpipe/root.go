package main

import (
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/askiada/go-spawn/internal/config"
	"github.com/askiada/go-spawn/internal/logging"
)

var errUnknownMode = errors.New("unknown mode")

func newRootCmd() *cobra.Command {
	cfg := config.Default()

	cmd := &cobra.Command{
		Use:   "spawnpipe [flags] [files...]",
		Short: "Run files through an external command",
		Long: "spawnpipe feeds files to an external command and writes what it produces.\n" +
			"Without files, standard input is processed as a single item.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			HiddenDefaultCmd: true,
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			err := config.LoadConfig(cfg, cmd.Flags())
			if err != nil {
				return err
			}

			level, err := logging.ParseLevel(cfg.LogLevel)
			if err != nil {
				return err
			}
			logging.Init(level, cfg.LogFormat, cmd.ErrOrStderr())

			return run(cmd.Context(), cfg, args, streams{in: cmd.InOrStdin(), out: cmd.OutOrStdout(), err: cmd.ErrOrStderr()})
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&cfg.Config, "config", "c", "", "TOML or YAML configuration file")
	flags.StringVarP(&cfg.Mode, "mode", "m", cfg.Mode, "stream, once, each or run")
	flags.StringVar(&cfg.Cmd, "cmd", "", "command to run")
	flags.StringArrayVar(&cfg.Args, "args", nil, "command argument, repeat for several; templated in each mode")
	flags.StringVar(&cfg.Cwd, "cwd", "", "working directory of the command; templated in each mode")
	flags.StringArrayVar(&cfg.Env, "env", nil, "KEY=VALUE added to the command environment")
	flags.DurationVar(&cfg.Timeout, "timeout", 0, "kill a command running longer than this")
	flags.StringVar(&cfg.Rename, "rename", "", "file name template in stream mode, e.g. '{{ .Base }}.min{{ .Ext }}'")
	flags.BoolVar(&cfg.Stream, "stream", false, "stream files instead of loading them in memory")
	flags.StringVarP(&cfg.Out, "out", "o", "", "directory receiving the results, standard output when empty")
	flags.BoolVar(&cfg.ContinueOnError, "continue-on-error", false, "drop failing files and keep going")
	flags.IntVar(&cfg.MaxErrors, "max-errors", 0, "with --continue-on-error, stop after this many failures")
	flags.StringVar(&cfg.Draw, "draw", "", "write the pipeline graph in DOT format to this file")
	flags.StringVar(&cfg.MetricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	flags.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "debug, info, warn or error")
	flags.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "text or json")

	return cmd
}
