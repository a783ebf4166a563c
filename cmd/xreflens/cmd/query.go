package cmd

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/abramin/xreflens/internal/query"
	"github.com/abramin/xreflens/internal/store"
)

var (
	queryFormat string
	queryOutput string
	queryDir    string
)

var queryCmd = &cobra.Command{
	Use:   "query <kind> <file:line:column>",
	Short: "Answer a navigation query against the index",
	Long: `Resolve the symbol at file:line:column and answer one of:

  Definition        where the symbol is defined (else declared)
  Declaration       where the symbol is declared (else defined)
  Reference         every reference to the symbol
  ReferenceInherit  references, including overrides up and down the class hierarchy
  SymbolInfo        the raw index entries for the location and its symbol
  ClassHierarchy    inheritance edges around a class

Locations are printed with the source line they point at. Class
hierarchies print as "Derived -> Base" lines, as graphviz DOT
(--format dot), or as an image rendered by graphviz (--format png).`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, err := query.ParseKind(args[0])
		if err != nil {
			return err
		}
		var dirArgs []string
		if queryDir != "" {
			dirArgs = []string{queryDir}
		}
		dir, err := projectDir(dirArgs)
		if err != nil {
			return err
		}

		st, err := store.Open(GetConfig().DBPath(dir), store.Options{ReadOnly: true})
		if err != nil {
			return fmt.Errorf("opening index (run `xreflens index` first): %w", err)
		}
		defer st.Close()

		src := store.NewSource(st)
		res, err := query.New(src, logger).Query(kind, args[1])
		if err != nil {
			return err
		}
		return printResult(cmd, res, src.Base())
	},
}

func init() {
	rootCmd.AddCommand(queryCmd)
	queryCmd.Flags().StringVarP(&queryFormat, "format", "f", "text", "class hierarchy output: text, dot, image (render.image_format) or a graphviz format such as png")
	queryCmd.Flags().StringVarP(&queryOutput, "output", "o", "", "image file for rendered hierarchies (default: class_hierarchy_<class>.<format> in the project)")
	queryCmd.Flags().StringVarP(&queryDir, "dir", "C", "", "project directory (default: project.base_dir)")
}

func printResult(cmd *cobra.Command, res *query.Result, baseDir string) error {
	out := cmd.OutOrStdout()

	switch res.Kind {
	case query.Definition, query.Declaration:
		if res.Location != "" {
			printLocations(out, []string{res.Location}, baseDir)
		}
	case query.Reference, query.ReferenceInherit:
		printLocations(out, query.SortLocations(res.Locations), baseDir)
	case query.SymbolInfo:
		if res.Info == nil {
			return nil
		}
		data, err := json.MarshalIndent(res.Info, "", "    ")
		if err != nil {
			return err
		}
		fmt.Fprintln(out, string(data))
	case query.ClassHierarchy:
		if res.Hierarchy == nil {
			return nil
		}
		return printHierarchy(cmd, res.Hierarchy, baseDir)
	}
	return nil
}

func printLocations(out io.Writer, locs []string, baseDir string) {
	for _, l := range locs {
		line, err := query.LocationWithText(l, baseDir)
		if err != nil {
			logger.Debug("location text unavailable", "location", l, "error", err)
			line = l
		}
		fmt.Fprintln(out, line)
	}
}

func printHierarchy(cmd *cobra.Command, h *query.Hierarchy, baseDir string) error {
	out := cmd.OutOrStdout()

	switch queryFormat {
	case "text", "":
		for _, e := range h.Edges {
			fmt.Fprintf(out, "%s -> %s\n", e.Derived, e.Base)
		}
		return nil
	case "dot":
		return query.WriteDOT(out, h)
	}

	cfg := GetConfig()
	format := queryFormat
	if format == "image" {
		format = cfg.Render.ImageFormat
	}
	output := queryOutput
	if output == "" {
		output = query.DefaultImageName(baseDir, h.Root, format)
	}
	path, err := query.NewGraphvizRenderer(cfg.Render.GraphvizCommand, format).Render(cmd.Context(), h, output)
	if err != nil {
		return fmt.Errorf("rendering hierarchy: %w", err)
	}
	fmt.Fprintln(out, path)
	return nil
}
