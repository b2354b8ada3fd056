package main

import (
	"io"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/vincentbai/pagetrace/internal/config"
	"github.com/vincentbai/pagetrace/internal/logging"
)

type app struct {
	v          *viper.Viper
	configFile string
	cfg        *config.Config
	logger     zerolog.Logger
	logCloser  io.Closer
}

func newRootCommand() *cobra.Command {
	a := &app{v: config.New()}

	root := &cobra.Command{
		Use:   "pagetrace-agent",
		Short: "Local agent that runs page tracking for browser tabs",
		Long: `pagetrace-agent receives raw signals from a page shim or browser extension,
replays them against one simulated tab per browser tab, and forwards the
resulting pageviews and engagement events to GA4, a local SQLite file and
the log.`,
		Version:            version,
		SilenceUsage:       true,
		PersistentPreRunE:  a.setup,
		PersistentPostRunE: a.teardown,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.configFile, "config", "", "config file (default is $HOME/.pagetrace.yaml)")
	flags.String("log-level", "", "log level (trace, debug, info, warn, error)")
	flags.String("log-format", "", "log format (auto, json, console)")
	cobra.CheckErr(a.v.BindPFlag("log.level", flags.Lookup("log-level")))
	cobra.CheckErr(a.v.BindPFlag("log.format", flags.Lookup("log-format")))

	root.AddCommand(newServeCommand(a), newConfigCommand(a), newCallsCommand(a))
	return root
}

func (a *app) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(a.v, a.configFile)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.logger, a.logCloser = logging.Open(cfg.Logging())
	if used := a.v.ConfigFileUsed(); used != "" {
		a.logger.Debug().Str("file", used).Msg("Using config file")
	}
	cmd.SetContext(logging.WithLogger(cmd.Context(), a.logger))
	return nil
}

func (a *app) teardown(*cobra.Command, []string) error {
	if a.logCloser == nil {
		return nil
	}
	return a.logCloser.Close()
}
