// Package query answers navigation queries against a merged index.
package query

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/abramin/xreflens/internal/model"
)

var (
	// ErrUnsupportedKind is returned when a class hierarchy is requested
	// for a symbol that is not a class.
	ErrUnsupportedKind = errors.New("unsupported symbol kind")
	// ErrInvalidLocus is returned for a malformed file:line:column string.
	ErrInvalidLocus = errors.New("invalid locus")
)

// Source is the read side of an index. *model.Index and *store.Source
// both implement it.
type Source interface {
	Location(file, locus string) (*model.Location, error)
	Symbol(usr string) (*model.Symbol, error)
	Base() string
}

// Kind is a query kind.
type Kind int

const (
	Definition Kind = iota
	Declaration
	Reference
	ReferenceInherit
	SymbolInfo
	ClassHierarchy
)

var kindNames = []string{
	Definition:       "Definition",
	Declaration:      "Declaration",
	Reference:        "Reference",
	ReferenceInherit: "ReferenceInherit",
	SymbolInfo:       "SymbolInfo",
	ClassHierarchy:   "ClassHierarchy",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return "Kind(" + strconv.Itoa(int(k)) + ")"
	}
	return kindNames[k]
}

// ParseKind parses a query kind name, case-insensitively.
func ParseKind(s string) (Kind, error) {
	for i, name := range kindNames {
		if strings.EqualFold(s, name) {
			return Kind(i), nil
		}
	}
	return 0, fmt.Errorf("unknown query kind %q", s)
}

// Info is the SymbolInfo answer: the raw location entry and the symbol it
// resolves to.
type Info struct {
	Locus    string          `json:"locus"`
	Location *model.Location `json:"location"`
	USR      string          `json:"usr,omitempty"`
	Symbol   *model.Symbol   `json:"symbol,omitempty"`
}

// Result is the answer to one query. Which field is set depends on Kind.
type Result struct {
	Kind Kind `json:"-"`
	// Location answers Definition and Declaration; empty when the symbol
	// has neither site.
	Location string `json:"location,omitempty"`
	// Locations answers Reference and ReferenceInherit.
	Locations []string   `json:"locations,omitempty"`
	Info      *Info      `json:"info,omitempty"`
	Hierarchy *Hierarchy `json:"hierarchy,omitempty"`
}

// Engine resolves queries. It holds no state beyond its source.
type Engine struct {
	src    Source
	logger *slog.Logger
}

// New creates an engine reading from src.
func New(src Source, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{src: src, logger: logger}
}

// Query parses location ("file:line:column") and dispatches to the
// resolver for kind. An empty location yields an empty result.
func (e *Engine) Query(kind Kind, location string) (*Result, error) {
	res := &Result{Kind: kind}
	if location == "" {
		if kind == Reference || kind == ReferenceInherit {
			res.Locations = []string{}
		}
		return res, nil
	}

	file, locus, err := ParseLocation(location)
	if err != nil {
		return nil, err
	}

	switch kind {
	case Definition:
		res.Location, err = e.Definition(file, locus)
	case Declaration:
		res.Location, err = e.Declaration(file, locus)
	case Reference:
		res.Locations, err = e.References(file, locus)
	case ReferenceInherit:
		res.Locations, err = e.ReferencesInherit(file, locus)
	case SymbolInfo:
		res.Info, err = e.SymbolInfo(file, locus)
	case ClassHierarchy:
		res.Hierarchy, err = e.ClassHierarchy(file, locus)
	default:
		return nil, fmt.Errorf("unknown query kind %v", kind)
	}
	if err != nil {
		return nil, err
	}
	return res, nil
}

// ParseLocation splits "file:line:column" into a file and a normalized
// "line:column" locus.
func ParseLocation(location string) (file, locus string, err error) {
	file, lc, err := model.SplitFileLocus(location)
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", ErrInvalidLocus, err)
	}
	lineStr, colStr, _ := strings.Cut(lc, ":")
	line, err := strconv.Atoi(lineStr)
	if err != nil || line <= 0 {
		return "", "", fmt.Errorf("%w: bad line in %q", ErrInvalidLocus, location)
	}
	col, err := strconv.Atoi(colStr)
	if err != nil || col <= 0 {
		return "", "", fmt.Errorf("%w: bad column in %q", ErrInvalidLocus, location)
	}
	return file, model.Locus(line, col), nil
}

// relative maps absolute paths under the base directory to the relative
// form the index is keyed by. Relative paths are cleaned, so ./a.cpp and
// a.cpp name the same file.
func (e *Engine) relative(file string) string {
	if filepath.IsAbs(file) {
		return model.RelPath(e.src.Base(), file)
	}
	return filepath.Clean(file)
}

// AnyUSR returns the symbol declared at, or referenced from, file:locus.
func (e *Engine) AnyUSR(file, locus string) (string, error) {
	loc, err := e.src.Location(e.relative(file), locus)
	if err != nil {
		return "", err
	}
	return loc.AnyUSR(), nil
}

// TemplateUSR returns the template referenced from file:locus, if any.
func (e *Engine) TemplateUSR(file, locus string) (string, error) {
	loc, err := e.src.Location(e.relative(file), locus)
	if err != nil {
		return "", err
	}
	return loc.TemplateUSR, nil
}

// sites returns the declaration and definition sites of the symbol at
// file:locus, falling back to the referenced template when the direct
// symbol has neither.
func (e *Engine) sites(file, locus string) (decl, defi string, err error) {
	loc, err := e.src.Location(e.relative(file), locus)
	if err != nil {
		return "", "", err
	}
	for _, usr := range []string{loc.AnyUSR(), loc.TemplateUSR} {
		if usr == "" {
			continue
		}
		sym, err := e.src.Symbol(usr)
		if errors.Is(err, model.ErrNotIndexed) {
			continue
		}
		if err != nil {
			return "", "", err
		}
		if sym.Decl != "" || sym.Defi != "" {
			return sym.Decl, sym.Defi, nil
		}
	}
	return "", "", nil
}

// Definition returns the definition site of the symbol at file:locus,
// else its declaration site.
func (e *Engine) Definition(file, locus string) (string, error) {
	decl, defi, err := e.sites(file, locus)
	if err != nil {
		return "", err
	}
	if defi != "" {
		return defi, nil
	}
	return decl, nil
}

// Declaration returns the declaration site of the symbol at file:locus,
// else its definition site.
func (e *Engine) Declaration(file, locus string) (string, error) {
	decl, defi, err := e.sites(file, locus)
	if err != nil {
		return "", err
	}
	if decl != "" {
		return decl, nil
	}
	return defi, nil
}

// resolve returns the symbol at file:locus: the direct one, else the
// referenced template. usr is empty when the locus names neither.
func (e *Engine) resolve(file, locus string) (usr string, sym *model.Symbol, err error) {
	loc, err := e.src.Location(e.relative(file), locus)
	if err != nil {
		return "", nil, err
	}
	usr = loc.AnyUSR()
	if usr == "" {
		usr = loc.TemplateUSR
	}
	if usr == "" {
		return "", nil, nil
	}
	sym, err = e.src.Symbol(usr)
	if err != nil {
		return "", nil, err
	}
	return usr, sym, nil
}

// References returns every recorded reference to the symbol at file:locus.
func (e *Engine) References(file, locus string) ([]string, error) {
	_, sym, err := e.resolve(file, locus)
	if err != nil {
		return nil, err
	}
	if sym == nil || len(sym.Refs) == 0 {
		return []string{}, nil
	}
	return dedup(sym.Refs), nil
}

// ReferencesInherit returns the references to the symbol at file:locus
// and, for methods, the references to the same method on every class
// related to its owner by inheritance.
func (e *Engine) ReferencesInherit(file, locus string) ([]string, error) {
	usr, sym, err := e.resolve(file, locus)
	if err != nil {
		return nil, err
	}
	if sym == nil {
		return []string{}, nil
	}

	refs := append([]string{}, sym.Refs...)
	if sym.Kind == model.KindCXXMethod {
		if class, method, ok := splitMethod(usr); ok {
			for _, related := range e.relatives(class) {
				other, err := e.src.Symbol(related + method)
				if err != nil {
					continue
				}
				refs = append(refs, other.Refs...)
			}
		}
	}
	return dedup(refs), nil
}

// splitMethod cuts a method USR into its owning class and the method
// suffix, which starts at the last "@F@".
func splitMethod(usr string) (class, method string, ok bool) {
	i := strings.LastIndex(usr, "@F@")
	if i <= 0 {
		return "", "", false
	}
	return usr[:i], usr[i:], true
}

// SymbolInfo returns the location entry at file:locus and its symbol.
func (e *Engine) SymbolInfo(file, locus string) (*Info, error) {
	rel := e.relative(file)
	loc, err := e.src.Location(rel, locus)
	if err != nil {
		return nil, err
	}
	info := &Info{Locus: model.FileLocus(rel, locus), Location: loc}

	usr, sym, err := e.resolve(file, locus)
	if err != nil && !errors.Is(err, model.ErrNotIndexed) {
		return nil, err
	}
	info.USR = usr
	info.Symbol = sym
	return info, nil
}

func dedup(list []string) []string {
	seen := make(map[string]bool, len(list))
	out := make([]string, 0, len(list))
	for _, v := range list {
		if seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}
