package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/schaermu/filedeploy/internal/config"
	"github.com/schaermu/filedeploy/internal/deploy"
	"github.com/schaermu/filedeploy/internal/hook"
	"github.com/schaermu/filedeploy/internal/logfields"
	"github.com/schaermu/filedeploy/internal/manifest"
	"github.com/schaermu/filedeploy/internal/report"
	"github.com/schaermu/filedeploy/internal/watch"
)

// Exit codes
const (
	exitOK               = 0
	exitManifestNotFound = 1
	exitManifestInvalid  = 2
	exitFailure          = 3
)

var (
	// Set by goreleaser
	version = "dev"
	commit  = "none"
	date    = "unknown"

	// Global flags
	cfgFile      string
	manifestFile string
	logLevel     string
	logFormat    string
	colorMode    string
	verbose      bool
	checkHost    bool
	dryRun       bool
)

func main() {
	os.Exit(run())
}

func run() int {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return exitCode(err)
	}
	return exitOK
}

// exitCode maps manifest-level errors to their documented exit codes.
func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, manifest.ErrNotFound):
		return exitManifestNotFound
	case errors.Is(err, manifest.ErrMalformed):
		return exitManifestInvalid
	default:
		return exitFailure
	}
}

var rootCmd = &cobra.Command{
	Use:   "filedeploy",
	Short: "Compare and install files listed in a manifest",
	Long: `filedeploy reads a manifest of (source, mode, destination, command) lines and
reports or enacts the differences between the source tree and the installed files.

By default the manifest is filelist.<host>.<user> or filelist.<user> in the
current directory. Each line has the form:

  <source> <octal-mode> <destination> [post-install command...]`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var statusCmd = &cobra.Command{
	Use:     "status",
	Aliases: []string{"check"},
	Short:   "Report which installed files are missing or differ",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAction(cmd, "status", func(s *session) deploy.Handler {
			return &deploy.StatusHandler{Console: s.console, Verbose: s.verbose}
		})
	},
}

var diffCmd = &cobra.Command{
	Use:   "diff",
	Short: "Show a unified diff for every installed file that differs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAction(cmd, "diff", func(s *session) deploy.Handler {
			return &deploy.DiffHandler{Console: s.console}
		})
	},
}

var installCmd = &cobra.Command{
	Use:   "install",
	Short: "Install missing and changed files and run their post-install commands",
	Long: `Install copies every source whose installed copy is missing or differs, sets
the permission bits from the manifest and runs the post-install command, if any.

A failing record is reported and the remaining records are still processed.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAction(cmd, "install", func(s *session) deploy.Handler {
			return &deploy.InstallHandler{
				Console: s.console,
				Runner:  s.runner,
				Logger:  s.logger,
				Verbose: s.verbose,
				DryRun:  dryRun,
			}
		})
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Report status again whenever a listed file or the manifest changes",
	Args:  cobra.NoArgs,
	RunE:  runWatch,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		_, _ = fmt.Fprintf(out, "filedeploy %s\n", version)
		_, _ = fmt.Fprintf(out, "  commit: %s\n", commit)
		_, _ = fmt.Fprintf(out, "  built:  %s\n", date)
	},
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $XDG_CONFIG_HOME/filedeploy/config.yaml)")
	rootCmd.PersistentFlags().StringVarP(&manifestFile, "manifest", "f", "", "manifest file (default is filelist.<host>.<user> or filelist.<user>)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "also report files that are already installed")
	rootCmd.PersistentFlags().BoolVar(&checkHost, "check-host", false, "require the manifest's first line to name this host")
	rootCmd.PersistentFlags().StringVar(&colorMode, "color", "auto", "colorize output (auto, always, never)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log format (text, json)")

	// Install command flags
	installCmd.Flags().BoolVar(&dryRun, "dry-run", false, "show what would be installed without making changes")

	// Add commands
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(diffCmd)
	rootCmd.AddCommand(installCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(versionCmd)
}

// session carries everything a command needs, resolved once per invocation.
type session struct {
	env     config.Env
	cfg     *config.Config
	logger  *slog.Logger
	console *report.Console
	runner  *hook.ExecRunner
	verbose bool
	check   bool
}

func newSession(cmd *cobra.Command) (*session, error) {
	runID := uuid.NewString()
	logger := setupLogger().With(logfields.RunID(runID), logfields.Action(cmd.Name()))

	env, err := config.ResolveEnv()
	if err != nil {
		return nil, err
	}

	cfg, err := loadConfig(logger, env)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	flags := cmd.Flags()
	if flags.Changed("manifest") {
		cfg.Manifest = manifestFile
	}
	if flags.Changed("color") {
		cfg.Color = report.ColorMode(colorMode)
	}
	if flags.Changed("verbose") {
		cfg.Verbose = verbose
	}
	if flags.Changed("check-host") {
		cfg.CheckHost = checkHost
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	runner := hook.NewExecRunner()
	runner.Env = []string{"FILEDEPLOY_RUN_ID=" + runID}

	console := report.NewConsole(cmd.OutOrStdout(), cfg.Color)
	logger.Debug("console ready", slog.String("color_mode", string(cfg.Color)), slog.Bool("colored", console.Colored()))

	return &session{
		env:     env,
		cfg:     cfg,
		logger:  logger,
		console: console,
		runner:  runner,
		verbose: cfg.Verbose,
		check:   cfg.CheckHost,
	}, nil
}

func (s *session) loadManifest() (*manifest.Manifest, error) {
	path := config.ManifestPath(s.cfg.Manifest, s.env)
	s.logger.Info("loading manifest", logfields.Manifest(path))

	p := &manifest.Parser{Home: s.env.Home}
	if s.check {
		p.Host = s.env.ShortHost()
	}

	m, err := p.Load(path, s.logger)
	if err != nil {
		return nil, err
	}

	s.logger.Debug("manifest loaded",
		logfields.Manifest(path),
		slog.Int("records", len(m.Records)),
		slog.Int("skipped", len(m.Warnings)))
	return m, nil
}

// runAction loads the manifest and runs one handler over all of its records.
func runAction(cmd *cobra.Command, name string, newHandler func(*session) deploy.Handler) error {
	ctx, cancel := setupSignalHandler()
	defer cancel()

	s, err := newSession(cmd)
	if err != nil {
		return err
	}

	m, err := s.loadManifest()
	if err != nil {
		return err
	}

	engine := deploy.NewEngine(m.Records, newHandler(s), s.console, s.logger)
	s.logger.Info("starting "+name, slog.Int("records", len(m.Records)))
	if _, err := engine.Run(ctx); err != nil {
		return fmt.Errorf("%s interrupted: %w", name, err)
	}
	return nil
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, cancel := setupSignalHandler()
	defer cancel()

	s, err := newSession(cmd)
	if err != nil {
		return err
	}

	status := &deploy.StatusHandler{Console: s.console, Verbose: s.verbose}
	check := func(ctx context.Context) ([]string, error) {
		m, err := s.loadManifest()
		if err != nil {
			s.console.Println(report.Error, err.Error())
			return []string{config.ManifestPath(s.cfg.Manifest, s.env)}, err
		}

		summary, err := deploy.NewEngine(m.Records, status, s.console, s.logger).Run(ctx)
		if err != nil {
			return nil, err
		}
		s.console.Printf(report.Info, "-- checked %d of %d files", summary.Total(), len(m.Records))

		paths := []string{m.Path}
		for _, rec := range m.Records {
			paths = append(paths, rec.Source, rec.Destination)
		}
		return paths, nil
	}

	w, err := watch.New(check, watch.DefaultDebounce, s.logger)
	if err != nil {
		return err
	}
	defer func() {
		_ = w.Close()
	}()

	s.logger.Info("watching for changes")
	return w.Run(ctx)
}

func setupLogger() *slog.Logger {
	// Parse log level
	var level slog.Level
	switch logLevel {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelWarn
	}

	// Create handler based on format. Logs go to stderr, stdout carries the report.
	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: level}

	if logFormat == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}

	return slog.New(handler)
}

func loadConfig(logger *slog.Logger, env config.Env) (*config.Config, error) {
	// An explicit config file must exist; the default one is optional.
	if cfgFile != "" {
		logger.Info("loading configuration", "path", cfgFile)
		return config.Load(cfgFile)
	}

	configPath := config.DefaultPath(env.Home)
	logger.Debug("loading configuration", "path", configPath)

	cfg, err := config.LoadOptional(configPath)
	if err != nil {
		return nil, err
	}

	logger.Debug("configuration loaded",
		"manifest", cfg.Manifest,
		"check_host", cfg.CheckHost,
		"color", cfg.Color)

	return cfg, nil
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
