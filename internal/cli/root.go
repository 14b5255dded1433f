// Package cli provides the todoshm command line.
package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/tebeka/atexit"
	"go.opentelemetry.io/otel"

	"github.com/srediag/todo-shm/internal/logging"
	"github.com/srediag/todo-shm/pkg/shm"
	"github.com/srediag/todo-shm/pkg/todo"
)

const instrumentationName = "github.com/srediag/todo-shm"

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "todoshm",
	Short: "A to-do list shared by processes through a shared memory segment.",
	Long: `todoshm keeps a small to-do list in a named shared memory segment.

One process runs "todoshm server" and owns the list. Any number of processes
on the same host can then run "todoshm client" or the one-shot commands
(add, complete, view) against the same name. The list disappears when the
server exits.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	addConfigFlags(rootCmd.PersistentFlags())

	rootCmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usage(err)
	})

	rootCmd.AddCommand(serverCmd, clientCmd, addCmd, completeCmd, viewCmd)
}

// Execute runs the command line and terminates the process, running the
// registered exit handlers first.
func Execute() {
	err := rootCmd.Execute()
	if err != nil && strings.HasPrefix(err.Error(), "unknown command") {
		err = usage(err)
	}
	if err != nil {
		var silent silentError
		if !errors.As(err, &silent) {
			fmt.Fprintln(os.Stderr, todo.Message(err))
		}
	}
	atexit.Exit(exitCode(err))
}

// usageError marks errors caused by the invocation itself.
type usageError struct{ error }

func (e usageError) Unwrap() error { return e.error }

func usage(err error) error {
	if err == nil {
		return nil
	}
	return usageError{err}
}

// silentError is returned once the message was already shown to the user.
type silentError struct{ error }

func (e silentError) Unwrap() error { return e.error }

// shellError adapts the result of an interactive session. The shell already
// printed the message of errors that ended it because the list went away.
func shellError(err error) error {
	if errors.Is(err, shm.ErrAlreadyDestroyed) || errors.Is(err, shm.ErrDetached) {
		return silentError{err}
	}
	return err
}

func exitCode(err error) int {
	var u usageError
	if errors.As(err, &u) {
		return todo.ExitUsage
	}
	return todo.ExitCode(err)
}

func args(validate cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, a []string) error {
		return usage(validate(cmd, a))
	}
}

// addConfigFlags declares the flags that override TODOSHM_* settings.
func addConfigFlags(f *pflag.FlagSet) {
	f.StringP("name", "n", "todoshm", "name of the shared list")
	f.String("dir", "/dev/shm", "directory holding shared memory segments")
	f.Int("capacity", 10, "number of records, used when creating")
	f.Duration("lock-timeout", 0, "bound on each wait for the shared lock (0 waits forever)")
	f.Duration("attach-timeout", time.Second, "how long to wait for a list that is still initializing")
	f.String("env-file", "", "load TODOSHM_* settings from this file (default .env if present)")
	f.String("log-level", "warn", "log level (debug, info, warn, error)")
	f.Bool("dev", false, "human readable logs")
}

// loadConfig resolves settings from the env file, the environment and the
// command line, in increasing order of precedence.
func loadConfig(flags *pflag.FlagSet, create bool) (todo.Config, error) {
	envFile, _ := flags.GetString("env-file")
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return todo.Config{}, usage(fmt.Errorf("env file: %w", err))
		}
	} else {
		_ = godotenv.Load()
	}

	cfg, err := todo.LoadConfig()
	if err != nil {
		return todo.Config{}, usage(err)
	}
	if flags.Changed("name") {
		cfg.Name, _ = flags.GetString("name")
	}
	if flags.Changed("dir") {
		cfg.Dir, _ = flags.GetString("dir")
	}
	if flags.Changed("capacity") {
		cfg.Capacity, _ = flags.GetInt("capacity")
	}
	if flags.Changed("lock-timeout") {
		cfg.LockTimeout, _ = flags.GetDuration("lock-timeout")
	}
	if flags.Changed("attach-timeout") {
		cfg.AttachTimeout, _ = flags.GetDuration("attach-timeout")
	}
	if flags.Changed("log-level") {
		cfg.LogLevel, _ = flags.GetString("log-level")
	}
	if flags.Changed("dev") {
		cfg.LogDevelopment, _ = flags.GetBool("dev")
	}
	if flags.Changed("admin-addr") {
		cfg.AdminAddr, _ = flags.GetString("admin-addr")
	}
	cfg.Create = create

	if err := todo.VerifyConfig(cfg); err != nil {
		return todo.Config{}, usage(err)
	}
	return cfg, nil
}

func newLogger(cfg todo.Config) (*logging.Logger, error) {
	logger, err := logging.New(logging.Config{
		Level:       cfg.LogLevel,
		Development: cfg.LogDevelopment,
		OutputPaths: []string{"stderr"},
	})
	if err != nil {
		return nil, usage(err)
	}
	return logger, nil
}

// openList opens the list described by cfg. The list is closed by the exit
// handlers even when the process is interrupted.
func openList(cmd *cobra.Command, cfg todo.Config, opts ...todo.Option) (*todo.Client, *logging.Logger, error) {
	logger, err := newLogger(cfg)
	if err != nil {
		return nil, nil, err
	}
	opts = append([]todo.Option{
		todo.WithLogger(logger),
		todo.WithMeter(otel.Meter(instrumentationName)),
		todo.WithTracer(otel.Tracer(instrumentationName)),
	}, opts...)

	c, err := todo.Open(cmd.Context(), cfg, opts...)
	if err != nil {
		_ = logger.Sync()
		return nil, nil, err
	}
	atexit.Register(func() {
		_ = c.Close()
		_ = logger.Sync()
	})
	exitOnSignal(logger)
	return c, logger, nil
}
