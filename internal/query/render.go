package query

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

// WriteDOT writes h as a graphviz digraph with bases above derived
// classes and the root class highlighted.
func WriteDOT(w io.Writer, h *Hierarchy) error {
	var b strings.Builder
	b.WriteString("digraph class_hierarchy {\n")
	b.WriteString("  rankdir=BT;\n")
	b.WriteString("  node [shape=record, fontname=\"Helvetica\", fontsize=10];\n")
	b.WriteString("  edge [arrowhead=onormal];\n")
	fmt.Fprintf(&b, "  %s [color=black, fillcolor=grey75, style=filled];\n", strconv.Quote(h.Root))
	for _, e := range h.Edges {
		fmt.Fprintf(&b, "  %s -> %s;\n", strconv.Quote(e.Derived), strconv.Quote(e.Base))
	}
	b.WriteString("}\n")

	_, err := io.WriteString(w, b.String())
	return err
}

// DefaultImageName is where a rendered hierarchy goes when the caller
// names no output file.
func DefaultImageName(baseDir, root, format string) string {
	name := "class_hierarchy_" + strings.ReplaceAll(root, " ", "_") + "." + format
	return filepath.Join(baseDir, name)
}

// GraphvizRenderer renders hierarchies to images with the graphviz dot
// command.
type GraphvizRenderer struct {
	Command string
	Format  string
}

// NewGraphvizRenderer creates a renderer. Empty arguments select "dot"
// and "png".
func NewGraphvizRenderer(command, format string) *GraphvizRenderer {
	if command == "" {
		command = "dot"
	}
	if format == "" {
		format = "png"
	}
	return &GraphvizRenderer{Command: command, Format: format}
}

// Render writes h to output and returns its absolute path.
func (r *GraphvizRenderer) Render(ctx context.Context, h *Hierarchy, output string) (string, error) {
	var dot bytes.Buffer
	if err := WriteDOT(&dot, h); err != nil {
		return "", err
	}

	cmd := exec.CommandContext(ctx, r.Command, "-T"+r.Format, "-o", output)
	cmd.Stdin = &dot
	if out, err := cmd.CombinedOutput(); err != nil {
		return "", fmt.Errorf("running %s: %w: %s", r.Command, err, bytes.TrimSpace(out))
	}

	abs, err := filepath.Abs(output)
	if err != nil {
		return "", fmt.Errorf("resolving %s: %w", output, err)
	}
	return abs, nil
}
