package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/schaermu/gemmirror/internal/config"
	"github.com/schaermu/gemmirror/internal/mirror"
)

var (
	// Set by goreleaser
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// errUsage marks malformed command lines
var errUsage = errors.New("usage error")

func main() {
	os.Exit(execute(os.Args, os.Stdout, os.Stderr))
}

// execute runs the command line argv and returns the process exit code.
func execute(argv []string, stdout, stderr io.Writer) int {
	cmd := newRootCmd(stdout, stderr)
	cmd.SetArgs(argv[1:])

	if err := cmd.Execute(); err != nil {
		if errors.Is(err, errUsage) {
			_, _ = fmt.Fprintf(stderr, "usage: %s <input_dir> <output_dir> [-v]\n", argv[0])
		} else {
			_, _ = fmt.Fprintf(stderr, "error: %v\n", err)
		}
		return 1
	}
	return 0
}

// options holds the flag values of one invocation
type options struct {
	cfgFile   string
	logLevel  string
	logFormat string
	workers   int
	verbose   bool
	watch     bool
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	var opts options

	cmd := &cobra.Command{
		Use:   "gemmirror <input_dir> <output_dir> [-v]",
		Short: "Mirror a directory tree, rendering Gemtext to HTML",
		Long: `gemmirror copies every file below input_dir to the same place below
output_dir. Gemtext documents (.gmi) are converted to HTML fragments (.html)
on every run; other files are copied only when the destination does not exist
yet.`,
		Version: fmt.Sprintf("%s (commit %s, built %s)", version, commit, date),
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) != 2 {
				return errUsage
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMirror(cmd, args, &opts, stdout, stderr)
		},
	}

	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetFlagErrorFunc(func(*cobra.Command, error) error {
		return errUsage
	})

	flags := cmd.Flags()
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "print one line per processed entry")
	flags.StringVar(&opts.cfgFile, "config", "", "optional YAML config file")
	flags.StringVar(&opts.logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	flags.StringVar(&opts.logFormat, "log-format", "text", "log format (text, json)")
	flags.IntVar(&opts.workers, "workers", 0, "number of workers (default: number of CPUs)")
	flags.BoolVar(&opts.watch, "watch", false, "keep running and mirror again whenever the input changes")

	return cmd
}

func runMirror(cmd *cobra.Command, args []string, opts *options, stdout, stderr io.Writer) error {
	cfg, err := loadConfig(cmd, opts)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	cfg.Paths = config.PathsConfig{Input: args[0], Output: args[1]}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if err := cfg.Resolve(); err != nil {
		return err
	}

	logger := setupLogger(cfg.Log, stderr)
	logger.Debug("configuration loaded",
		"input", cfg.Paths.Input,
		"output", cfg.Paths.Output,
		"workers", cfg.Workers,
		"watch", cfg.Watch.Enabled)

	var progress *mirror.Progress
	if cfg.Verbose {
		progress = mirror.NewProgress(stdout)
	}

	workers := cfg.Workers
	if workers < 1 {
		workers = runtime.NumCPU()
	}

	engine := mirror.NewEngine(afero.NewOsFs(), workers, logger, progress)
	seed := mirror.NewEntry(cfg.Paths.Input, cfg.Paths.Output)

	progress.Printf("Starting with %d workers", workers)

	if cfg.Watch.Enabled {
		ctx, cancel := setupSignalHandler()
		defer cancel()

		if err := mirror.NewWatcher(engine, seed, cfg.Watch.Debounce).Watch(ctx); err != nil {
			return err
		}
	} else if _, err := engine.Run(seed); err != nil {
		return err
	}

	progress.Printf("Done")
	return nil
}

// loadConfig reads the config file when one is given and lets explicitly
// set flags override it.
func loadConfig(cmd *cobra.Command, opts *options) (*config.Config, error) {
	cfg := config.Default()
	if opts.cfgFile != "" {
		loaded, err := config.Load(opts.cfgFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	flags := cmd.Flags()
	if flags.Changed("verbose") {
		cfg.Verbose = opts.verbose
	}
	if flags.Changed("workers") {
		cfg.Workers = opts.workers
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = opts.logLevel
	}
	if flags.Changed("log-format") {
		cfg.Log.Format = config.LogFormat(opts.logFormat)
	}
	if flags.Changed("watch") {
		cfg.Watch.Enabled = opts.watch
	}

	return cfg, nil
}

func setupLogger(cfg config.LogConfig, w io.Writer) *slog.Logger {
	// Parse log level
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	// Create handler based on format
	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: level}

	if cfg.Format == config.LogFormatJSON {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	return slog.New(handler)
}

func setupSignalHandler() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	go func() {
		select {
		case <-sigCh:
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()

	return ctx, cancel
}
