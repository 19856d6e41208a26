package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/lowc1012/cooldown/internal/config"
	"github.com/lowc1012/cooldown/internal/log"
)

// rootOptions are the persistent flags shared by every subcommand.
type rootOptions struct {
	cfgFile  string
	verbose  bool
	logLevel string

	cfg *config.Config
	v   *viper.Viper
}

// NewRootCommand builds the command tree. Each call returns an independent tree.
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:   "cooldown",
		Short: "Per-actor cooldown and escalating penalty admission control",
		Long: `cooldown decides whether an actor's action may run now or must wait,
based on how recently and how often the same actor triggered it.

Use the subcommands to run the HTTP service, inspect configuration or
replay a sequence of calls against a limiter.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.init()
		},
	}

	rootCmd.PersistentFlags().StringVar(&opts.cfgFile, "config", "", "config file (YAML); env COOLDOWN_* overrides it")
	rootCmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "verbose output (sets log level to debug)")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn, error (overrides config)")

	rootCmd.AddCommand(
		newServeCommand(opts),
		newConfigCommand(opts),
		newSimulateCommand(opts),
	)
	return rootCmd
}

// Execute runs the root command against os.Args.
func Execute() error {
	defer log.Sync()
	return NewRootCommand().Execute()
}

func (o *rootOptions) init() error {
	cfg, v, err := config.Load(o.cfgFile)
	if err != nil {
		return err
	}
	o.cfg, o.v = cfg, v

	level := cfg.Logging.Level
	if o.logLevel != "" {
		level = o.logLevel
	}
	if o.verbose {
		level = "debug"
	}
	if err := log.Init(level, cfg.Logging.Format); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	return nil
}

// ExitOnError prints err to stderr and exits non-zero.
func ExitOnError(err error) {
	if err == nil {
		return
	}
	fmt.Fprintln(os.Stderr, "Error:", err)
	os.Exit(1)
}
