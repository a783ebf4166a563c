package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/abramin/xreflens/internal/index"
)

var scanCmd = &cobra.Command{
	Use:   "scan [path]",
	Short: "List the translation units derived from the build directory",
	Long: `Read compile_commands.json from the build directory and print every
source and companion header that would be indexed, with its compiler
arguments. Nothing is parsed or written.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := projectDir(args); err != nil {
			return err
		}

		jobs, err := index.NewIndexer(GetConfig(), nil, logger).Scan()
		if err != nil {
			return fmt.Errorf("scanning failed: %w", err)
		}

		out := cmd.OutOrStdout()
		for _, job := range jobs {
			fmt.Fprintf(out, "%s\t%s\n", job.File, strings.Join(job.Args, " "))
		}
		fmt.Fprintf(out, "%d translation units\n", len(jobs))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(scanCmd)
}
