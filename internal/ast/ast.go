// Package ast is the boundary between the indexer and a compiler front end.
// A Provider turns one translation unit into a tree of Cursors.
package ast

import (
	"context"
	"fmt"

	"github.com/abramin/xreflens/internal/model"
)

// Kind is a cursor kind, using the front end's own names.
type Kind string

const (
	FunctionDecl     Kind = model.KindFunctionDecl
	ClassDecl        Kind = model.KindClassDecl
	CXXMethod        Kind = model.KindCXXMethod
	FieldDecl        Kind = model.KindFieldDecl
	ClassTemplate    Kind = model.KindClassTemplate
	FunctionTemplate Kind = model.KindFunctionTemplate
	DeclRefExpr      Kind = model.KindDeclRefExpr
	MemberRefExpr    Kind = model.KindMemberRefExpr
	TemplateRef      Kind = model.KindTemplateRef
	BaseSpecifier    Kind = model.KindBaseSpecifier
	TypeRef          Kind = model.KindTypeRef

	TranslationUnit Kind = "TRANSLATION_UNIT"
	Namespace       Kind = "NAMESPACE"
	StructDecl      Kind = "STRUCT_DECL"
	VarDecl         Kind = "VAR_DECL"
	ParmDecl        Kind = "PARM_DECL"
	CallExpr        Kind = "CALL_EXPR"
	Constructor     Kind = "CONSTRUCTOR"
	Destructor      Kind = "DESTRUCTOR"
)

// Cursor is one node of a parsed translation unit.
type Cursor struct {
	Kind     Kind
	Spelling string
	// TypeKind is the spelling of the node's type kind, e.g. "FUNCTIONPROTO".
	TypeKind string
	File     string
	Line     int
	Column   int
	// IsDefinition reports whether the node defines (rather than declares) its entity.
	IsDefinition bool
	USR          string

	// Referenced is the node a reference points at.
	Referenced *Cursor
	// Definition is the defining node of the referenced entity, when known.
	Definition *Cursor
	// Template is the template this node was instantiated from, when known.
	Template *Cursor

	Children []*Cursor
}

// HasLocation reports whether the cursor has a usable source position.
func (c *Cursor) HasLocation() bool {
	return c.File != "" && c.Line > 0 && c.Column > 0
}

// Locus returns "line:column".
func (c *Cursor) Locus() string {
	return model.Locus(c.Line, c.Column)
}

// String is a one-line description used in debug logs.
func (c *Cursor) String() string {
	s := fmt.Sprintf("%s|%s|%s|%s:%d:%d|%s", c.Kind, c.Spelling, c.TypeKind, c.File, c.Line, c.Column, c.USR)
	if r := c.Referenced; r != nil {
		s += fmt.Sprintf(" -> %s|%s|%s:%d:%d|%s", r.Kind, r.Spelling, r.File, r.Line, r.Column, r.USR)
	}
	return s
}

// Walk visits c and its descendants in pre-order. Returning false from fn
// skips the node's children.
func (c *Cursor) Walk(fn func(*Cursor) bool) {
	stack := []*Cursor{c}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if n == nil || !fn(n) {
			continue
		}
		for i := len(n.Children) - 1; i >= 0; i-- {
			stack = append(stack, n.Children[i])
		}
	}
}

// Provider parses one translation unit.
type Provider interface {
	Parse(ctx context.Context, file string, args []string) (*Cursor, error)
}

// ParseError reports a translation unit that could not be parsed.
type ParseError struct {
	File string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parsing %s: %v", e.File, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As
func (e *ParseError) Unwrap() error {
	return e.Err
}
