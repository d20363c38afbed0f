// Package cmd implements the scriptnet command line.
package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/reglet-dev/scriptnet/internal/config"
	"github.com/reglet-dev/scriptnet/log"
)

// Version information set by main package.
var versionInfo = struct {
	Version   string
	Commit    string
	BuildDate string
}{Version: "dev", Commit: "unknown", BuildDate: "unknown"}

// SetVersionInfo is called by main package to set version information.
func SetVersionInfo(version, commit, buildDate string) {
	versionInfo.Version = version
	versionInfo.Commit = commit
	versionInfo.BuildDate = buildDate
}

// app carries what PersistentPreRunE loaded into every subcommand.
type app struct {
	v       *viper.Viper
	cfg     *config.Config
	logger  *zap.Logger
	cfgFile string
	verbose bool
}

// NewRootCommand builds the command tree.
func NewRootCommand() *cobra.Command {
	a := &app{v: config.New()}

	root := &cobra.Command{
		Use:   "scriptnet",
		Short: "Asynchronous HTTP transport for script hosts",
		Long: `scriptnet drives validated, rate limited, non-blocking HTTP requests on
behalf of scripts and delivers each result through a callback.

Use the subcommands to issue requests, run batches, open a REPL or host a
WASM plugin.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.init,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.cfgFile, "config", "", "config file (default ./scriptnet.yaml or $XDG_CONFIG_HOME/scriptnet/scriptnet.yaml)")
	flags.BoolVarP(&a.verbose, "verbose", "v", false, "verbose output (sets log level to debug)")
	flags.String("log-level", "", "log level: trace, debug, info, warn, error")
	flags.String("log-format", "", "log format: console, json")
	flags.Bool("ssrf-protection", false, "refuse private, loopback and link-local targets")
	flags.Bool("allow-private", false, "with --ssrf-protection, still allow private ranges")
	flags.String("user-agent", "", "default User-Agent header")

	_ = a.v.BindPFlag("log.level", flags.Lookup("log-level"))
	_ = a.v.BindPFlag("log.format", flags.Lookup("log-format"))
	_ = a.v.BindPFlag("network.ssrf_protection", flags.Lookup("ssrf-protection"))
	_ = a.v.BindPFlag("network.allow_private", flags.Lookup("allow-private"))
	_ = a.v.BindPFlag("network.user_agent", flags.Lookup("user-agent"))

	root.AddCommand(
		newFetchCmd(a),
		newBatchCmd(a),
		newReplCmd(a),
		newRunCmd(a),
		newStubCmd(a),
		newSchemaCmd(a),
		newVersionCmd(),
	)
	return root
}

// Execute runs the command line until ctx is cancelled.
func Execute(ctx context.Context) error {
	return NewRootCommand().ExecuteContext(ctx)
}

// init loads config and installs the logger before any subcommand runs.
func (a *app) init(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(a.v, a.cfgFile)
	if err != nil {
		return err
	}
	if a.verbose {
		cfg.Log.Level = "debug"
	}

	logger, err := log.New(cfg.Log)
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	log.SetLogger(logger)

	a.cfg = cfg
	a.logger = logger
	a.logger.Debug("config loaded",
		zap.String("command", cmd.Name()),
		zap.String("config_file", a.v.ConfigFileUsed()),
	)
	return nil
}
