// Package cli provides the lmo command-line interface.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"lmo-cli/client"
	"lmo-cli/config"
)

// App holds what every subcommand needs once flags are parsed
type App struct {
	Config *config.CLIConfig
	Logger *zap.Logger
	Client *client.Client
	Out    *Output
}

// reportedError marks an error whose details were already printed
type reportedError struct {
	err error
}

func (e *reportedError) Error() string { return e.err.Error() }
func (e *reportedError) Unwrap() error { return e.err }

func reported(err error) error {
	return &reportedError{err: err}
}

// NewRootCommand builds the lmo command tree
func NewRootCommand() *cobra.Command {
	app := &App{}
	var cfgFile string

	root := &cobra.Command{
		Use:   "lmo",
		Short: "Manage models on an lmo server",
		Long: `lmo talks to a running lmo server to download and manage models.

Downloads run on the server; the CLI starts them and follows their progress
until they finish. Press Ctrl-C during a download to ask the server to
cancel it.

Configuration is read from flags, LMO_* environment variables, a .env file
and $XDG_CONFIG_HOME/lmo/config.{yaml,toml,json}, in that order of precedence.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// Skip initialization for commands that don't talk to the server
			switch cmd.Name() {
			case "help", "completion":
				return nil
			}
			return app.init(cmd, cfgFile)
		},
		PersistentPostRun: func(_ *cobra.Command, _ []string) {
			app.close()
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default $XDG_CONFIG_HOME/lmo/config.yaml)")
	pf.String("server", config.DefaultServerURL, "lmo server base URL")
	pf.Duration("timeout", config.DefaultRequestTimeout, "timeout for API requests")
	pf.String("log-level", config.DefaultLogLevel, "log level (DEBUG, INFO, WARN, ERROR, FATAL)")
	pf.Bool("no-color", false, "disable colored output")

	root.AddCommand(
		newDownloadCmd(app),
		newHealthCmd(app),
		newCancelCmd(app),
		newModelsCmd(app),
		newLoadCmd(app),
		newUnloadCmd(app),
		newStatusCmd(app),
	)
	return root
}

func (a *App) init(cmd *cobra.Command, cfgFile string) error {
	cfg, err := config.LoadConfig(cfgFile, cmd.Flags())
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	logger, err := NewLogger(cfg.LogLevel)
	if err != nil {
		return err
	}

	opts := client.DefaultOptions()
	opts.Timeout = cfg.RequestTimeout
	c, err := client.New(cfg.ServerURL, opts, logger)
	if err != nil {
		_ = logger.Sync()
		return fmt.Errorf("create client: %w", err)
	}

	a.Config = cfg
	a.Logger = logger
	a.Client = c
	a.Out = NewOutput(cmd.OutOrStdout(), cfg.NoColor)

	logger.Debug("configuration loaded",
		zap.String("server_url", cfg.ServerURL),
		zap.Duration("request_timeout", cfg.RequestTimeout),
		zap.Duration("stream_wait_timeout", cfg.StreamWaitTimeout),
		zap.Int("max_stream_timeouts", cfg.MaxStreamTimeouts))
	return nil
}

func (a *App) close() {
	if a.Logger != nil {
		_ = a.Logger.Sync()
	}
}

// Run executes the command tree with args and returns the process exit code
func Run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	root := NewRootCommand()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	if err == nil {
		return 0
	}

	var rerr *reportedError
	if !errors.As(err, &rerr) {
		fmt.Fprintln(stderr, "Error:", err)
	}
	return 1
}

// Execute runs the root command against the process arguments
func Execute() int {
	return Run(context.Background(), os.Args[1:], os.Stdout, os.Stderr)
}
