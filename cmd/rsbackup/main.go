package main

// rsbackup

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"unicode"
	"unicode/utf8"

	"github.com/spf13/cobra"

	"github.com/adrian-griffin/rsbackup/backup"
	"github.com/adrian-griffin/rsbackup/input"
	"github.com/adrian-griffin/rsbackup/job"
	"github.com/adrian-griffin/rsbackup/logger"
	"github.com/adrian-griffin/rsbackup/metrics"
	"github.com/adrian-griffin/rsbackup/runner"
	"github.com/adrian-griffin/rsbackup/util"
)

const Version = "v0.4.2"

// app carries the persistent flags & the io every subcommand shares
type app struct {
	in     io.Reader
	out    io.Writer
	runner util.Runner

	verbose    bool
	debug      bool
	all        bool
	configPath string
}

// transfer flags shared by push, sync, fetch, run & config
type transferFlags struct {
	target string
	user   string
	server string
	port   int
}

func (f *transferFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.target, "output", "o", "", "Target directory on the server")
	cmd.Flags().StringVarP(&f.user, "user", "u", "", "User name on the server")
	cmd.Flags().StringVarP(&f.server, "server", "s", "", "Server address")
	cmd.Flags().IntVarP(&f.port, "port", "p", job.DefaultPort, "SSH port on the server")
}

// only flags the operator actually passed become CLI overrides
func (a *app) cliArgs(cmd *cobra.Command, command job.Command, f *transferFlags, args []string) input.CLIArgs {
	cli := input.CLIArgs{
		Command: command,
		Verbose: a.verbose,
		DryRun:  a.debug,
		All:     a.all,
	}
	if len(args) > 0 {
		cli.SrcDir = &args[0]
	}
	if f == nil {
		return cli
	}
	if cmd.Flags().Changed("output") {
		cli.TargetDir = &f.target
	}
	if cmd.Flags().Changed("user") {
		cli.User = &f.user
	}
	if cmd.Flags().Changed("server") {
		cli.Server = &f.server
	}
	if cmd.Flags().Changed("port") {
		cli.Port = &f.port
	}
	return cli
}

// loads the global configfile & initializes logging from it
func (a *app) loadGlobal() (*input.GlobalConfig, io.Closer, error) {
	path := a.configPath
	if path == "" {
		var err error
		if path, err = input.GlobalConfigPath(); err != nil {
			return nil, nil, err
		}
	}

	global, err := input.LoadGlobalConfig(path)
	if err != nil {
		return nil, nil, err
	}

	opts := logger.Options{Level: "info", Format: "text"}
	if global != nil {
		if global.LogLevel != "" {
			opts.Level = global.LogLevel
		}
		if global.LogFormat != "" {
			opts.Format = global.LogFormat
		}
		opts.TextColour = global.LogTextColour
		opts.LogFile = global.LogFile
	}
	if a.verbose || a.debug {
		opts.Level = "debug"
	}

	closer, err := logger.InitLogging(opts)
	if err != nil {
		return nil, nil, err
	}

	logger.LogxWithFields("debug", fmt.Sprintf("Looking for global config file at: %s", path), map[string]interface{}{
		"package": "main",
		"found":   global != nil,
	})
	return global, closer, nil
}

// single pipeline behind every directory-oriented subcommand
func (a *app) run(ctx context.Context, action runner.Action, cli input.CLIArgs) error {
	if err := input.ValidateSource(cli); err != nil {
		return err
	}

	global, closer, err := a.loadGlobal()
	if err != nil {
		return err
	}
	defer closer.Close()

	executor := backup.NewExecutor(a.runner, a.out)
	handler := runner.NewJobHandler(executor, metrics.NewMetrics(), a.out)

	return handler.Run(ctx, runner.Request{
		Action: action,
		CLI:    cli,
		Global: global,
	})
}

func (a *app) transferCommand(use, short string, command job.Command) *cobra.Command {
	var flags transferFlags
	cmd := &cobra.Command{
		Use:   use + " [SRC]",
		Short: short,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd.Context(), runner.Transfer, a.cliArgs(cmd, command, &flags, args))
		},
	}
	flags.register(cmd)
	return cmd
}

func newRootCmd(a *app) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "rsbackup",
		Short:         "Back up directories to a remote server with rsync over ssh",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return input.ErrNoCommand
		},
	}
	rootCmd.SetIn(a.in)
	rootCmd.SetOut(a.out)

	rootCmd.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().BoolVarP(&a.debug, "debug", "d", false, "Print the commands but do not run them")
	rootCmd.PersistentFlags().BoolVar(&a.all, "all", false, "Back up all folders listed in the global config file (~/.backup.toml)")
	rootCmd.PersistentFlags().StringVar(&a.configPath, "config", "", "Global config file (default ~/.backup.toml)")

	pushCmd := a.transferCommand("push", "Push files without deleting anything", job.Push)
	syncCmd := a.transferCommand("sync", "Synchronize the directories, deleting extraneous files on the target", job.Sync)
	fetchCmd := a.transferCommand("fetch", "Fetch files from the server (not implemented)", job.Fetch)
	runCmd := a.transferCommand("run", "Run the directory's default command from its .backup.toml", job.None)

	initCmd := &cobra.Command{
		Use:   "init [SRC]",
		Short: "Set up a .backup.toml config file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := job.DefaultSrcDir
			if len(args) > 0 {
				dir = args[0]
			}
			_, err := input.InitTool(a.in, a.out, dir)
			return err
		},
	}

	var writeDate bool
	whenCmd := &cobra.Command{
		Use:   "when",
		Short: "When is the last time the folder was backed up",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			action := runner.When
			if writeDate {
				action = runner.WhenWrite
			}
			return a.run(cmd.Context(), action, a.cliArgs(cmd, job.None, nil, args))
		},
	}
	whenCmd.Flags().BoolVarP(&writeDate, "write", "w", false, "Write the current date into the date file")

	infoCmd := &cobra.Command{
		Use:   "info",
		Short: "Print some information about the backed up directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd.Context(), runner.Info, a.cliArgs(cmd, job.None, nil, args))
		},
	}

	var showFlags transferFlags
	configCmd := &cobra.Command{
		Use:   "config [SRC]",
		Short: "Print the effective settings for the directory as YAML",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd.Context(), runner.Show, a.cliArgs(cmd, job.None, &showFlags, args))
		},
	}
	showFlags.register(configCmd)

	rootCmd.AddCommand(pushCmd, syncCmd, fetchCmd, runCmd, initCmd, whenCmd, infoCmd, configCmd)
	return rootCmd
}

// operator-facing text for err, first letter capitalized
func errorMessage(err error) string {
	msg := err.Error()
	r, size := utf8.DecodeRuneInString(msg)
	if size == 0 {
		return msg
	}
	return string(unicode.ToUpper(r)) + msg[size:]
}

// main loop
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	a := &app{
		in:     os.Stdin,
		out:    os.Stdout,
		runner: util.NewExecRunner(),
	}

	err := newRootCmd(a).ExecuteContext(ctx)
	stop()
	if err != nil {
		logger.LogxWithFields("error", errorMessage(err), map[string]interface{}{
			"package": "main",
			"success": false,
		})
		os.Exit(1)
	}
}
