package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/loykin/waitforme/internal/launch"
	"github.com/loykin/waitforme/internal/liveness"
	"github.com/loykin/waitforme/internal/supervisor"
	"github.com/loykin/waitforme/internal/ui"
	"github.com/loykin/waitforme/pkg/client"
	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	root := buildRoot(command{out: os.Stdout, errOut: os.Stderr, in: os.Stdin})
	err := root.ExecuteContext(ctx)
	stop()
	if err != nil {
		var ec *exitCodeError
		if errors.As(err, &ec) {
			os.Exit(ec.code)
		}
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// buildRoot creates the root command. Running it without a subcommand
// behaves like "run".
func buildRoot(c command) *cobra.Command {
	globalFlags := &GlobalFlags{}
	runFlags := &RunFlags{}
	clientFlags := &ClientFlags{}

	root := createRootCommand(c, globalFlags, runFlags)
	root.SetOut(c.out)
	root.AddCommand(
		createRunCommand(c, globalFlags, runFlags),
		createRetryCommand(c, clientFlags),
		createStatusCommand(c, clientFlags),
		createLogsCommand(c, clientFlags),
		createCloseCommand(c, clientFlags),
		createConfigCommand(c, globalFlags),
	)
	return root
}

// createRootCommand creates the root command with minimal persistent flags
func createRootCommand(c command, globalFlags *GlobalFlags, runFlags *RunFlags) *cobra.Command {
	root := &cobra.Command{
		Use:   "waitforme",
		Short: "Start komorebi and wait until it is really running",
		Long: `waitforme starts komorebi through komorebic, checks that the window manager
actually came up and retries when it did not. A splash is shown meanwhile.

Examples:
  waitforme                          # same as 'waitforme run'
  waitforme run --log-level=debug
  waitforme status                   # ask a running launcher
  waitforme retry
  waitforme config show`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := *runFlags
			f.ConfigPath = globalFlags.ConfigPath
			return c.Run(cmd.Context(), f)
		},
	}
	root.PersistentFlags().StringVar(&globalFlags.ConfigPath, "config", "", "path to JSON config file (default: user config dir)")
	bindRunFlags(root, runFlags)
	return root
}

// createRunCommand creates the run subcommand
func createRunCommand(c command, globalFlags *GlobalFlags, runFlags *RunFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start komorebi and show the splash",
		Long: `Spawn "komorebic start" with the options from the config file, verify that
komorebi is running and retry up to --max-attempts times.

The process exits 0 once komorebi is confirmed running. After a failure it
stays up so the attempt can be retried; closing it then exits 1.

Examples:
  waitforme run
  waitforme run --listen="" --no-console
  waitforme run --inspector=process --metrics`,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := *runFlags
			f.ConfigPath = globalFlags.ConfigPath
			return c.Run(cmd.Context(), f)
		},
	}
	bindRunFlags(cmd, runFlags)
	return cmd
}

func bindRunFlags(cmd *cobra.Command, f *RunFlags) {
	cmd.Flags().StringVar(&f.LogLevel, "log-level", "info", "log level: debug|info|warn|error")
	cmd.Flags().StringVar(&f.Listen, "listen", "127.0.0.1:7390", "control API address (empty disables)")
	cmd.Flags().StringVar(&f.BasePath, "base-path", "/api", "control API base path")
	cmd.Flags().IntVar(&f.MaxAttempts, "max-attempts", supervisor.DefaultMaxAttempts, "retries before giving up")
	cmd.Flags().DurationVar(&f.Settle, "settle", supervisor.DefaultSettleDelay, "delay between success and fade out")
	cmd.Flags().DurationVar(&f.Fade, "fade", ui.DefaultFadeDuration, "fade out duration")
	cmd.Flags().StringVar(&f.Command, "command", launch.DefaultBinary, "komorebic executable")
	cmd.Flags().StringVar(&f.PrimaryImage, "primary-image", liveness.DefaultPrimary, "process image that must be running")
	cmd.Flags().StringVar(&f.CompanionImage, "companion-image", liveness.DefaultBar, "bar process image, required when the bar is enabled")
	cmd.Flags().StringVar(&f.Inspector, "inspector", "tasklist", "process inspector: tasklist|process")
	cmd.Flags().BoolVar(&f.Metrics, "metrics", false, "expose Prometheus metrics on the control API")
	cmd.Flags().BoolVar(&f.NoConsole, "no-console", false, "do not render the splash or read commands from the terminal")
}

func bindClientFlags(cmd *cobra.Command, f *ClientFlags) {
	cmd.Flags().StringVar(&f.APIUrl, "api-url", client.DefaultBaseURL, "launcher control API URL")
	cmd.Flags().DurationVar(&f.APITimeout, "api-timeout", 10*time.Second, "request timeout")
}

// createRetryCommand creates the retry subcommand
func createRetryCommand(c command, clientFlags *ClientFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "retry",
		Short: "Ask a running launcher to start a new attempt",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.Retry(cmd.Context(), *clientFlags)
		},
	}
	bindClientFlags(cmd, clientFlags)
	return cmd
}

// createStatusCommand creates the status subcommand
func createStatusCommand(c command, clientFlags *ClientFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the state of a running launcher",
		Long: `Show the supervisor state of a running launcher.

Examples:
  waitforme status
  waitforme status --processes       # include komorebi resource usage`,
		RunE: func(cmd *cobra.Command, args []string) error {
			withProcs, _ := cmd.Flags().GetBool("processes")
			return c.Status(cmd.Context(), *clientFlags, withProcs)
		},
	}
	bindClientFlags(cmd, clientFlags)
	cmd.Flags().Bool("processes", false, "include CPU and memory of the komorebi processes")
	return cmd
}

// createLogsCommand creates the logs subcommand
func createLogsCommand(c command, clientFlags *ClientFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Open the launcher log file",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.ShowLogs(cmd.Context(), *clientFlags)
		},
	}
	bindClientFlags(cmd, clientFlags)
	return cmd
}

// createCloseCommand creates the close subcommand
func createCloseCommand(c command, clientFlags *ClientFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "close",
		Short: "Close the splash and stop the launcher",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.Close(cmd.Context(), *clientFlags)
		},
	}
	bindClientFlags(cmd, clientFlags)
	return cmd
}

// createConfigCommand creates the config command group
func createConfigCommand(c command, globalFlags *GlobalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect or create the config file",
	}
	initFlags := &ConfigInitFlags{}

	pathCmd := &cobra.Command{
		Use:   "path",
		Short: "Print the config file location",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.ConfigPath(globalFlags.ConfigPath)
		},
	}
	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective config, backfilling missing keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.ConfigShow(globalFlags.ConfigPath)
		},
	}
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			f := *initFlags
			f.ConfigPath = globalFlags.ConfigPath
			return c.ConfigInit(f)
		},
	}
	initCmd.Flags().BoolVar(&initFlags.Force, "force", false, "overwrite an existing file")

	cmd.AddCommand(pathCmd, showCmd, initCmd)
	return cmd
}
