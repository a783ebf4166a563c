// Package model defines the cross-reference index: per-file location
// entries, per-USR symbol entries, and per-file indexing timestamps.
package model

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
)

// ErrNotIndexed is returned when a file, locus, or symbol is absent from the index.
var ErrNotIndexed = errors.New("not indexed")

// Kind names as reported by the AST provider.
const (
	KindFunctionDecl     = "FUNCTION_DECL"
	KindClassDecl        = "CLASS_DECL"
	KindCXXMethod        = "CXX_METHOD"
	KindFieldDecl        = "FIELD_DECL"
	KindClassTemplate    = "CLASS_TEMPLATE"
	KindFunctionTemplate = "FUNCTION_TEMPLATE"
	KindDeclRefExpr      = "DECL_REF_EXPR"
	KindMemberRefExpr    = "MEMBER_REF_EXPR"
	KindTemplateRef      = "TEMPLATE_REF"
	KindBaseSpecifier    = "CXX_BASE_SPECIFIER"
	KindTypeRef          = "TYPE_REF"
)

// Location is the entry recorded for one file locus.
type Location struct {
	// USR of the symbol declared or defined at this locus.
	USR string `json:"usr,omitempty"`
	// RefUSR is the symbol referenced from this locus.
	RefUSR string `json:"ref_usr,omitempty"`
	// TemplateUSR is set instead of RefUSR when the reference targets a template.
	TemplateUSR string `json:"template_usr,omitempty"`
}

// AnyUSR returns the declared symbol, else the referenced one.
func (l *Location) AnyUSR() string {
	if l.USR != "" {
		return l.USR
	}
	return l.RefUSR
}

// Symbol is the entry recorded for one USR.
type Symbol struct {
	Decl       string   `json:"decl,omitempty"`
	Defi       string   `json:"defi,omitempty"`
	Kind       string   `json:"kind,omitempty"`
	Spell      string   `json:"spell,omitempty"`
	Type       string   `json:"type,omitempty"`
	Refs       []string `json:"refs,omitempty"`
	BaseClass  []string `json:"base_class,omitempty"`
	ChildClass []string `json:"child_class,omitempty"`
}

// FileLocations maps locus ("line:column") to its entry.
type FileLocations map[string]*Location

// Locus formats a 1-based line/column pair.
func Locus(line, column int) string {
	return strconv.Itoa(line) + ":" + strconv.Itoa(column)
}

// FileLocus formats a File-Locus Key.
func FileLocus(file, locus string) string {
	return file + ":" + locus
}

// SplitFileLocus splits "file:line:column" into file and locus.
func SplitFileLocus(key string) (file, locus string, err error) {
	last := strings.LastIndexByte(key, ':')
	if last <= 0 {
		return "", "", fmt.Errorf("malformed file locus %q", key)
	}
	prev := strings.LastIndexByte(key[:last], ':')
	if prev <= 0 {
		return "", "", fmt.Errorf("malformed file locus %q", key)
	}
	return key[:prev], key[prev+1:], nil
}

// FileOf returns the file part of a File-Locus Key, or "" if malformed.
func FileOf(key string) string {
	file, _, err := SplitFileLocus(key)
	if err != nil {
		return ""
	}
	return file
}

// RelPath makes filename relative to baseDir when it lies beneath it.
// Files outside baseDir keep their cleaned absolute path.
func RelPath(baseDir, filename string) string {
	filename = filepath.Clean(filename)
	if baseDir == "" || !filepath.IsAbs(filename) {
		return filename
	}
	rel, err := filepath.Rel(filepath.Clean(baseDir), filename)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return filename
	}
	return rel
}
