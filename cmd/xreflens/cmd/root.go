package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/abramin/xreflens/internal/config"
)

var (
	cfgFile string
	verbose bool
	cfg     *config.Config
	logger  *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "xreflens",
	Short: "xreflens - cross-reference index for C++ projects",
	Long: `xreflens indexes a C++ project from its compile_commands.json and
answers navigation queries: definition, declaration, references,
references through overrides, symbol info and class hierarchies.

The index is stored in .xreflens/index.db and updated incrementally:
only sources modified since the last run are parsed again.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if verbose {
			cfg.Log.Level = "debug"
		}
		logger, err = newLogger(cfg)
		if err != nil {
			return err
		}
		slog.SetDefault(logger)
		return nil
	},
}

// Execute runs the CLI. SIGINT and SIGTERM cancel the command's context.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./xreflens.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

func GetConfig() *config.Config {
	return cfg
}

func newLogger(cfg *config.Config) (*slog.Logger, error) {
	level, err := cfg.SlogLevel()
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts)), nil
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts)), nil
}

// projectDir applies an optional [path] argument to the configured base
// directory and returns it as an absolute path.
func projectDir(args []string) (string, error) {
	if len(args) > 0 {
		cfg.Project.BaseDir = args[0]
	}
	dir, err := filepath.Abs(cfg.Project.BaseDir)
	if err != nil {
		return "", fmt.Errorf("resolving %s: %w", cfg.Project.BaseDir, err)
	}
	cfg.Project.BaseDir = dir
	return dir, nil
}
