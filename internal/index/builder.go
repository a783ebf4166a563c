package index

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/abramin/xreflens/internal/ast"
	"github.com/abramin/xreflens/internal/model"
)

// DefinitionKinds are the node kinds that declare or define a symbol.
var DefinitionKinds = []ast.Kind{
	ast.FunctionDecl,
	ast.ClassDecl,
	ast.CXXMethod,
	ast.FieldDecl,
	ast.ClassTemplate,
	ast.FunctionTemplate,
}

// ReferenceKinds are the node kinds that refer to a symbol declared elsewhere.
var ReferenceKinds = []ast.Kind{
	ast.DeclRefExpr,
	ast.MemberRefExpr,
	ast.TemplateRef,
	ast.BaseSpecifier,
	ast.TypeRef,
}

// Builder converts one parsed translation unit into a partial index.
// A Builder holds no per-file state and may be shared across workers.
type Builder struct {
	baseDir        string
	systemPrefixes []string
	defKinds       map[ast.Kind]bool
	refKinds       map[ast.Kind]bool
	logger         *slog.Logger
}

// NewBuilder creates a builder recording files relative to baseDir and
// skipping nodes located under any of systemPrefixes.
func NewBuilder(baseDir string, systemPrefixes []string, logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	b := &Builder{
		baseDir:  baseDir,
		defKinds: make(map[ast.Kind]bool),
		refKinds: make(map[ast.Kind]bool),
		logger:   logger,
	}
	for _, p := range systemPrefixes {
		b.systemPrefixes = append(b.systemPrefixes, filepath.Clean(p))
	}
	for _, k := range DefinitionKinds {
		b.defKinds[k] = true
	}
	for _, k := range ReferenceKinds {
		b.refKinds[k] = true
	}
	return b
}

// BuildFile parses job with p and builds its partial index. A parse
// failure is logged and returned as an *ast.ParseError with an empty index.
func (b *Builder) BuildFile(ctx context.Context, p ast.Provider, job Job) (*model.Index, error) {
	root, err := p.Parse(ctx, job.File, job.Args)
	if err != nil {
		var pe *ast.ParseError
		if !errors.As(err, &pe) {
			pe = &ast.ParseError{File: job.File, Err: err}
		}
		b.logger.Warn("skipping translation unit", "file", job.File, "error", pe.Err)
		return model.New(b.baseDir), pe
	}
	return b.Build(root), nil
}

// Build walks root in pre-order and records every recognized node.
func (b *Builder) Build(root *ast.Cursor) *model.Index {
	idx := model.New(b.baseDir)
	root.Walk(func(c *ast.Cursor) bool {
		if !b.defKinds[c.Kind] && !b.refKinds[c.Kind] {
			return true
		}
		if !c.HasLocation() {
			b.logger.Debug("cursor without location", "cursor", c.String())
			return true
		}
		if b.isSystem(c.File) {
			return true
		}
		if b.refKinds[c.Kind] {
			b.addReference(idx, c)
		}
		if b.defKinds[c.Kind] {
			b.addDefinition(idx, c)
		}
		return true
	})
	return idx
}

func (b *Builder) isSystem(file string) bool {
	clean := filepath.Clean(file)
	for _, prefix := range b.systemPrefixes {
		if clean == prefix || strings.HasPrefix(clean, prefix+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

func (b *Builder) addReference(idx *model.Index, c *ast.Cursor) {
	ref := c.Referenced
	if ref == nil || ref.USR == "" {
		return
	}
	rel := model.RelPath(b.baseDir, c.File)
	loc := idx.LocationAt(rel, c.Locus())

	target := ref.USR
	if tmpl := templateOf(c); tmpl != "" {
		loc.TemplateUSR = tmpl
		target = tmpl
	} else {
		loc.RefUSR = ref.USR
	}

	sym := idx.SymbolFor(target)
	sym.AddRef(model.FileLocus(rel, c.Locus()))
	if c.Kind == ast.BaseSpecifier && sym.Kind == "" {
		sym.Kind = string(c.Kind)
		sym.Spell = c.Spelling
	}
}

// templateOf returns the template a reference resolves through, or "".
// Template-ness is read from the referenced node itself.
func templateOf(c *ast.Cursor) string {
	ref := c.Referenced
	switch c.Kind {
	case ast.TemplateRef:
		if ref.Kind == ast.ClassTemplate {
			return ref.USR
		}
	case ast.MemberRefExpr:
		if ref.Kind == ast.FunctionTemplate {
			return ref.USR
		}
		if t := ref.Template; t != nil && t.Kind == ast.FunctionTemplate && t.USR != "" {
			return t.USR
		}
	}
	return ""
}

func (b *Builder) addDefinition(idx *model.Index, c *ast.Cursor) {
	if c.USR == "" {
		b.logger.Debug("definition without USR", "cursor", c.String())
		return
	}
	rel := model.RelPath(b.baseDir, c.File)
	site := model.FileLocus(rel, c.Locus())

	sym := idx.SymbolFor(c.USR)
	if c.IsDefinition {
		sym.Defi = site
	} else {
		sym.Decl = site
	}
	sym.Kind = string(c.Kind)
	sym.Spell = c.Spelling
	sym.Type = c.TypeKind
	if sym.Refs == nil {
		sym.Refs = []string{}
	}

	idx.LocationAt(rel, c.Locus()).USR = c.USR

	if c.Kind == ast.ClassDecl {
		b.addBases(idx, c)
	}
}

// addBases records an inheritance edge for every base specifier child of
// class c that resolves to a concrete base.
func (b *Builder) addBases(idx *model.Index, c *ast.Cursor) {
	for _, child := range c.Children {
		if child.Kind != ast.BaseSpecifier {
			continue
		}
		base := child.Definition
		if base == nil {
			base = child.Referenced
		}
		if base == nil || base.USR == "" {
			continue
		}
		b.logger.Debug("inheritance", "derived", c.Spelling, "base", base.Spelling)
		idx.AddInheritance(c.USR, base.USR)
	}
}

// describeJob is used in timing logs.
func describeJob(job Job) string {
	if len(job.Args) == 0 {
		return job.File
	}
	return fmt.Sprintf("%s %s", job.File, strings.Join(job.Args, " "))
}
