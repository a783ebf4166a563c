package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/abramin/xreflens/internal/cppast"
	"github.com/abramin/xreflens/internal/index"
)

var (
	indexSequential  bool
	indexDryRun      bool
	indexWorkers     int
	indexMaxFileSize int64
)

var indexCmd = &cobra.Command{
	Use:   "index [path]",
	Short: "Index a C++ project",
	Long: `Parse the project's translation units and update the cross-reference index.

The index command:
- Derives jobs from <build_dir>/compile_commands.json
- Skips sources unchanged since the previous run
- Parses stale sources in parallel with the tree-sitter C++ front end
- Drops facts from removed and re-indexed files
- Persists results to .xreflens/index.db`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := projectDir(args)
		if err != nil {
			return err
		}

		cfg := GetConfig()
		if cmd.Flags().Changed("workers") {
			cfg.Index.Workers = indexWorkers
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Indexing project at: %s\n", path)

		provider := cppast.New(cppast.WithLogger(logger), cppast.WithMaxFileSize(indexMaxFileSize))
		indexer := index.NewIndexer(cfg, provider, logger)
		result, err := indexer.Run(cmd.Context(), index.Options{
			Sequential: indexSequential,
			DryRun:     indexDryRun,
		})
		if err != nil {
			return fmt.Errorf("indexing failed: %w", err)
		}

		if indexDryRun {
			fmt.Fprintf(out, "\n%d of %d translation units modified\n", len(result.Stale), result.Jobs)
			for _, f := range result.Stale {
				fmt.Fprintf(out, "  modified: %s\n", f)
			}
			for _, f := range result.Removed {
				fmt.Fprintf(out, "  removed:  %s\n", f)
			}
			return nil
		}

		fmt.Fprintln(out)
		fmt.Fprintf(out, "Indexing complete!\n")
		fmt.Fprintf(out, "  Indexed:  %d of %d\n", len(result.Indexed), result.Jobs)
		if len(result.Skipped) > 0 {
			fmt.Fprintf(out, "  Skipped:  %d (parse failures, retried next run)\n", len(result.Skipped))
		}
		if len(result.Failed) > 0 {
			fmt.Fprintf(out, "  Failed:   %d\n", len(result.Failed))
		}
		fmt.Fprintf(out, "  Removed:  %d\n", len(result.Removed))
		fmt.Fprintf(out, "  Files:    %d\n", result.FileCount)
		fmt.Fprintf(out, "  Symbols:  %d\n", result.SymbolCount)
		fmt.Fprintf(out, "  Duration: %s\n", result.Duration.Round(time.Millisecond))
		fmt.Fprintf(out, "  Database: %s\n", result.DBPath)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(indexCmd)
	indexCmd.Flags().BoolVar(&indexSequential, "sequential", false, "parse on a single goroutine")
	indexCmd.Flags().BoolVar(&indexDryRun, "dry-run", false, "list modified and removed files without indexing")
	indexCmd.Flags().IntVarP(&indexWorkers, "workers", "j", 0, "number of parallel workers (default: number of CPUs)")
	indexCmd.Flags().Int64Var(&indexMaxFileSize, "max-file-size", cppast.DefaultMaxFileSize, "largest source file to parse, in bytes")
}
