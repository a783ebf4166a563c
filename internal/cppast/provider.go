// Package cppast is an approximate C++ front end built on tree-sitter.
//
// It implements ast.Provider without a compiler: names are resolved
// within one translation unit (the source plus its quoted includes) by
// spelling, and USRs are synthesized in clang's format. Overload
// resolution, macros, and template instantiation are out of reach; a
// reference it cannot resolve is simply left without a target.
package cppast

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/cpp"

	"github.com/abramin/xreflens/internal/ast"
)

// DefaultMaxFileSize is the largest file the provider will parse (10MB).
const DefaultMaxFileSize = 10 * 1024 * 1024

// ErrFileTooLarge is returned when a source file exceeds the size limit.
var ErrFileTooLarge = errors.New("file exceeds maximum size limit")

// Option configures a Provider.
type Option func(*Provider)

// WithMaxFileSize sets the maximum file size the provider will accept.
func WithMaxFileSize(bytes int64) Option {
	return func(p *Provider) {
		if bytes > 0 {
			p.maxFileSize = bytes
		}
	}
}

// WithLogger sets the logger for include resolution and syntax errors.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Provider) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// Provider parses C++ translation units with tree-sitter. It is safe for
// concurrent use: each Parse call creates its own tree-sitter parser.
type Provider struct {
	maxFileSize int64
	logger      *slog.Logger
}

var _ ast.Provider = (*Provider)(nil)

// New creates a Provider.
func New(opts ...Option) *Provider {
	p := &Provider{
		maxFileSize: DefaultMaxFileSize,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// unit is one parsed file of a translation unit.
type unit struct {
	file string
	src  []byte
	tree *sitter.Tree
}

func (u *unit) text(n *sitter.Node) string {
	return n.Content(u.src)
}

// Parse parses file and every quoted include reachable from it, and
// returns the translation unit cursor. Included files come first, in
// inclusion order, as a preprocessor would lay them out.
func (p *Provider) Parse(ctx context.Context, file string, args []string) (*ast.Cursor, error) {
	file = filepath.Clean(file)
	if err := ctx.Err(); err != nil {
		return nil, &ast.ParseError{File: file, Err: err}
	}

	tu := &translationUnit{
		provider: p,
		ctx:      ctx,
		includes: includeDirs(file, args),
		seen:     make(map[string]bool),
	}
	defer tu.close()

	if err := tu.load(file); err != nil {
		return nil, &ast.ParseError{File: file, Err: err}
	}
	if err := ctx.Err(); err != nil {
		return nil, &ast.ParseError{File: file, Err: err}
	}

	return newEmitter().translationUnit(file, tu.units), nil
}

type translationUnit struct {
	provider *Provider
	ctx      context.Context
	includes []string
	seen     map[string]bool
	units    []*unit
}

func (tu *translationUnit) close() {
	for _, u := range tu.units {
		u.tree.Close()
	}
}

// load parses file, then its includes, then appends file itself.
func (tu *translationUnit) load(file string) error {
	tu.seen[file] = true

	src, err := tu.provider.read(file)
	if err != nil {
		return err
	}

	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(cpp.GetLanguage())
	tree, err := parser.ParseCtx(tu.ctx, nil, src)
	if err != nil {
		return fmt.Errorf("tree-sitter parse failed: %w", err)
	}
	u := &unit{file: file, src: src, tree: tree}

	root := tree.RootNode()
	if root == nil {
		tree.Close()
		return errors.New("tree-sitter returned nil root node")
	}
	if root.HasError() {
		tu.provider.logger.Debug("source contains syntax errors", "file", file)
	}

	for _, inc := range quotedIncludes(u, root) {
		path := tu.resolve(file, inc)
		if path == "" {
			tu.provider.logger.Debug("include not found", "file", file, "include", inc)
			continue
		}
		if tu.seen[path] {
			continue
		}
		if err := tu.load(path); err != nil {
			tu.provider.logger.Debug("skipping include", "file", path, "error", err)
		}
	}

	tu.units = append(tu.units, u)
	return nil
}

func (p *Provider) read(file string) ([]byte, error) {
	info, err := os.Stat(file)
	if err != nil {
		return nil, err
	}
	if info.Size() > p.maxFileSize {
		return nil, fmt.Errorf("%w: size %d exceeds limit %d", ErrFileTooLarge, info.Size(), p.maxFileSize)
	}
	return os.ReadFile(file)
}

// resolve finds a quoted include next to the including file, then on the
// -I search path.
func (tu *translationUnit) resolve(from, inc string) string {
	candidates := []string{filepath.Join(filepath.Dir(from), inc)}
	for _, dir := range tu.includes {
		candidates = append(candidates, filepath.Join(dir, inc))
	}
	for _, c := range candidates {
		if info, err := os.Stat(c); err == nil && !info.IsDir() {
			return filepath.Clean(c)
		}
	}
	return ""
}

// includeDirs extracts -I directories. Relative directories are taken
// relative to the source file.
func includeDirs(file string, args []string) []string {
	var dirs []string
	add := func(dir string) {
		if !filepath.IsAbs(dir) {
			dir = filepath.Join(filepath.Dir(file), dir)
		}
		dirs = append(dirs, dir)
	}
	for i := 0; i < len(args); i++ {
		switch a := args[i]; {
		case a == "-I" || a == "-iquote":
			if i+1 < len(args) {
				add(args[i+1])
				i++
			}
		case strings.HasPrefix(a, "-I"):
			add(a[2:])
		}
	}
	return dirs
}

// quotedIncludes lists the paths of #include "..." directives, including
// those nested in conditional blocks.
func quotedIncludes(u *unit, root *sitter.Node) []string {
	var out []string
	for _, n := range topLevel(root) {
		if n.Type() != "preproc_include" {
			continue
		}
		path := n.ChildByFieldName("path")
		if path == nil || path.Type() != "string_literal" {
			continue
		}
		out = append(out, strings.Trim(u.text(path), `"`))
	}
	return out
}

// topLevel flattens preprocessor conditionals and linkage blocks so that
// guarded headers expose their declarations.
func topLevel(n *sitter.Node) []*sitter.Node {
	var out []*sitter.Node
	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		switch child.Type() {
		case "preproc_ifdef", "preproc_if", "preproc_else", "preproc_elif", "preproc_elifdef":
			out = append(out, topLevel(child)...)
		case "linkage_specification":
			if body := child.ChildByFieldName("body"); body != nil && body.Type() == "declaration_list" {
				out = append(out, topLevel(body)...)
			} else if body != nil {
				out = append(out, body)
			}
		default:
			out = append(out, child)
		}
	}
	return out
}
