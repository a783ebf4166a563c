package cppast

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/abramin/xreflens/internal/ast"
)

// classInfo is what the emitter knows about one class or class template.
type classInfo struct {
	// cursor is the definition once seen, else the first declaration.
	cursor  *ast.Cursor
	defined bool
	bases   []string
	members map[string]*ast.Cursor
}

// emitter converts the syntax trees of a translation unit into cursors.
// Declarations are registered as they are emitted; references are resolved
// after every file has been emitted, so a use may precede its declaration.
type emitter struct {
	classes     map[string]*classInfo
	classByName map[string]string
	functions   map[string]*ast.Cursor
	pending     []func()
}

func newEmitter() *emitter {
	return &emitter{
		classes:     make(map[string]*classInfo),
		classByName: make(map[string]string),
		functions:   make(map[string]*ast.Cursor),
	}
}

// scope is the lexical position of a declaration.
type scope struct {
	// usr prefixes identifiers declared here.
	usr string
	// class is the enclosing class USR, empty outside classes.
	class string
}

// funcCtx tracks what a function body can see.
type funcCtx struct {
	scope  scope
	locals map[string]string // variable name -> type spelling
}

func newFuncCtx(sc scope) *funcCtx {
	return &funcCtx{scope: sc, locals: make(map[string]string)}
}

func (e *emitter) translationUnit(file string, units []*unit) *ast.Cursor {
	root := &ast.Cursor{Kind: ast.TranslationUnit, Spelling: file}
	for _, u := range units {
		sc := scope{usr: usrRoot}
		for _, n := range topLevel(u.tree.RootNode()) {
			root.Children = append(root.Children, e.declaration(u, n, sc)...)
		}
	}
	for _, resolve := range e.pending {
		resolve()
	}
	return root
}

func (u *unit) cursor(kind ast.Kind, spelling string, n *sitter.Node) *ast.Cursor {
	p := n.StartPoint()
	return &ast.Cursor{
		Kind:     kind,
		Spelling: spelling,
		File:     u.file,
		Line:     int(p.Row) + 1,
		Column:   int(p.Column) + 1,
	}
}

func (e *emitter) declaration(u *unit, n *sitter.Node, sc scope) []*ast.Cursor {
	switch n.Type() {
	case "namespace_definition":
		return e.namespace(u, n, sc)
	case "class_specifier", "struct_specifier":
		return one(e.class(u, n, sc, 0))
	case "template_declaration":
		return e.template(u, n, sc)
	case "function_definition":
		return one(e.function(u, n, sc, 0))
	case "declaration", "field_declaration":
		return e.simpleDeclaration(u, n, sc, 0)
	}
	return nil
}

func one(c *ast.Cursor) []*ast.Cursor {
	if c == nil {
		return nil
	}
	return []*ast.Cursor{c}
}

func (e *emitter) namespace(u *unit, n *sitter.Node, sc scope) []*ast.Cursor {
	body := n.ChildByFieldName("body")
	if body == nil {
		return nil
	}
	nameNode := n.ChildByFieldName("name")
	if nameNode == nil {
		// Anonymous namespace: members keep the enclosing scope.
		var out []*ast.Cursor
		for _, d := range topLevel(body) {
			out = append(out, e.declaration(u, d, sc)...)
		}
		return out
	}

	name := u.text(nameNode)
	c := u.cursor(ast.Namespace, name, nameNode)
	c.USR = namespaceUSR(sc.usr, name)
	c.IsDefinition = true
	inner := scope{usr: c.USR}
	for _, d := range topLevel(body) {
		c.Children = append(c.Children, e.declaration(u, d, inner)...)
	}
	return []*ast.Cursor{c}
}

func (e *emitter) template(u *unit, n *sitter.Node, sc scope) []*ast.Cursor {
	params := 0
	if p := n.ChildByFieldName("parameters"); p != nil {
		params = int(p.NamedChildCount())
	}
	var out []*ast.Cursor
	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		switch child.Type() {
		case "class_specifier", "struct_specifier":
			out = append(out, one(e.class(u, child, sc, params))...)
		case "function_definition":
			out = append(out, one(e.function(u, child, sc, params))...)
		case "declaration", "field_declaration":
			out = append(out, e.simpleDeclaration(u, child, sc, params)...)
		case "template_declaration":
			out = append(out, e.template(u, child, sc)...)
		}
	}
	return out
}

func (e *emitter) class(u *unit, n *sitter.Node, sc scope, tmplParams int) *ast.Cursor {
	nameNode := n.ChildByFieldName("name")
	if nameNode == nil || nameNode.Type() == "template_type" {
		return nil // anonymous, or a specialization
	}
	name := typeName(u, nameNode)
	body := n.ChildByFieldName("body")

	kind := ast.ClassDecl
	if n.Type() == "struct_specifier" {
		kind = ast.StructDecl
	}
	usr := classUSR(sc.usr, name)
	if tmplParams > 0 {
		kind = ast.ClassTemplate
		usr = classTemplateUSR(sc.usr, name, tmplParams)
	}

	c := u.cursor(kind, name, nameNode)
	c.USR = usr
	c.TypeKind = "RECORD"
	c.IsDefinition = body != nil
	info := e.addClass(name, c)

	for i := 0; i < int(n.NamedChildCount()); i++ {
		clause := n.NamedChild(i)
		if clause.Type() != "base_class_clause" {
			continue
		}
		for j := 0; j < int(clause.NamedChildCount()); j++ {
			b := clause.NamedChild(j)
			switch b.Type() {
			case "type_identifier", "qualified_type_identifier", "qualified_identifier", "template_type":
			default:
				continue
			}
			baseName := typeName(u, b)
			spec := u.cursor(ast.BaseSpecifier, u.text(b), b)
			e.resolveClass(spec, baseName)
			c.Children = append(c.Children, spec)
			if body != nil && !contains(info.bases, baseName) {
				info.bases = append(info.bases, baseName)
			}
		}
	}

	if body == nil {
		return c
	}
	inner := scope{usr: usr, class: usr}
	for _, m := range topLevel(body) {
		c.Children = append(c.Children, e.declaration(u, m, inner)...)
	}
	return c
}

func (e *emitter) addClass(name string, c *ast.Cursor) *classInfo {
	info, ok := e.classes[c.USR]
	if !ok {
		info = &classInfo{cursor: c, members: make(map[string]*ast.Cursor)}
		e.classes[c.USR] = info
	}
	if c.IsDefinition && !info.defined {
		info.cursor = c
		info.defined = true
	}
	prev, ok := e.classByName[name]
	if !ok || (c.IsDefinition && !e.classes[prev].defined) {
		e.classByName[name] = c.USR
	}
	return info
}

func (e *emitter) addMember(class, name string, c *ast.Cursor) {
	info := e.classes[class]
	if info == nil {
		return
	}
	if _, ok := info.members[name]; !ok {
		info.members[name] = c
	}
}

func (e *emitter) classNamed(name string) *classInfo {
	usr, ok := e.classByName[name]
	if !ok {
		return nil
	}
	return e.classes[usr]
}

// member finds name in class or, breadth first, in its bases.
func (e *emitter) member(class, name string) *ast.Cursor {
	seen := make(map[string]bool)
	queue := []string{class}
	for len(queue) > 0 {
		usr := queue[0]
		queue = queue[1:]
		if seen[usr] {
			continue
		}
		seen[usr] = true
		info := e.classes[usr]
		if info == nil {
			continue
		}
		if m, ok := info.members[name]; ok {
			return m
		}
		for _, b := range info.bases {
			if bi := e.classNamed(b); bi != nil {
				queue = append(queue, bi.cursor.USR)
			}
		}
	}
	return nil
}

// resolveClass points c at the class spelled name once all files are known.
func (e *emitter) resolveClass(c *ast.Cursor, name string) {
	e.pending = append(e.pending, func() {
		info := e.classNamed(name)
		if info == nil {
			return
		}
		c.Referenced = info.cursor
		if info.defined {
			c.Definition = info.cursor
		}
	})
}

func (e *emitter) function(u *unit, n *sitter.Node, sc scope, tmplParams int) *ast.Cursor {
	decl := functionDeclarator(n.ChildByFieldName("declarator"))
	if decl == nil {
		return nil
	}
	c, owner := e.functionCursor(u, decl, sc, tmplParams, true)
	if c == nil {
		return nil
	}

	fc := newFuncCtx(sc)
	if owner != "" {
		fc.scope = scope{usr: owner, class: owner}
	}
	c.Children = append(c.Children, e.typeRefs(u, n.ChildByFieldName("type"))...)
	c.Children = append(c.Children, e.params(u, decl, fc)...)
	if body := n.ChildByFieldName("body"); body != nil {
		c.Children = append(c.Children, e.refs(u, body, fc)...)
	}
	return c
}

// functionCursor creates the cursor for a function declarator and returns
// the USR of its owning class, if any.
func (e *emitter) functionCursor(u *unit, decl *sitter.Node, sc scope, tmplParams int, isDef bool) (*ast.Cursor, string) {
	nameNode := decl.ChildByFieldName("declarator")
	if nameNode == nil {
		return nil, ""
	}
	owner := sc.class
	scopeUSR := sc.usr
	name := nameOf(u, nameNode)

	if nameNode.Type() == "qualified_identifier" {
		parts := qualifiedParts(u, nameNode)
		name = parts[len(parts)-1]
		nameNode = qualifiedLeaf(nameNode)
		for _, part := range parts[:len(parts)-1] {
			if info := e.classNamed(part); info != nil {
				owner = info.cursor.USR
				scopeUSR = owner
			} else {
				owner = ""
				scopeUSR = namespaceUSR(scopeUSR, part)
			}
		}
	}

	kind := ast.FunctionDecl
	if owner != "" {
		kind = ast.CXXMethod
		scopeUSR = owner
	}
	switch {
	case strings.HasPrefix(name, "~"):
		kind = ast.Destructor
	case owner != "" && name == e.classes[owner].cursor.Spelling:
		kind = ast.Constructor
	}

	usr := functionUSR(scopeUSR, name)
	if tmplParams > 0 && (kind == ast.FunctionDecl || kind == ast.CXXMethod) {
		kind = ast.FunctionTemplate
		usr = functionTemplateUSR(scopeUSR, name, tmplParams)
	}

	c := u.cursor(kind, name, nameNode)
	c.USR = usr
	c.TypeKind = "FUNCTIONPROTO"
	c.IsDefinition = isDef

	switch {
	case kind == ast.Constructor || kind == ast.Destructor:
	case owner != "":
		e.addMember(owner, name, c)
	default:
		if _, ok := e.functions[name]; !ok {
			e.functions[name] = c
		}
	}
	return c, owner
}

func (e *emitter) simpleDeclaration(u *unit, n *sitter.Node, sc scope, tmplParams int) []*ast.Cursor {
	typeNode := n.ChildByFieldName("type")
	decls := declarators(n)

	var out []*ast.Cursor
	if typeNode != nil && (typeNode.Type() == "class_specifier" || typeNode.Type() == "struct_specifier") {
		if typeNode.ChildByFieldName("body") != nil || len(decls) == 0 {
			out = append(out, one(e.class(u, typeNode, sc, tmplParams))...)
		}
	}

	typeRefsEmitted := false
	for _, d := range decls {
		if fd := functionDeclarator(d); fd != nil {
			c, owner := e.functionCursor(u, fd, sc, tmplParams, false)
			if c == nil {
				continue
			}
			fc := newFuncCtx(sc)
			if owner != "" {
				fc.scope = scope{usr: owner, class: owner}
			}
			c.Children = append(c.Children, e.typeRefs(u, typeNode)...)
			c.Children = append(c.Children, e.params(u, fd, fc)...)
			out = append(out, c)
			continue
		}

		nameNode := declaratorName(d)
		if nameNode == nil {
			continue
		}
		name := u.text(nameNode)
		var c *ast.Cursor
		if sc.class != "" && n.Type() == "field_declaration" {
			c = u.cursor(ast.FieldDecl, name, nameNode)
			c.USR = fieldUSR(sc.class, name)
			c.IsDefinition = true
			e.addMember(sc.class, name, c)
		} else {
			c = u.cursor(ast.VarDecl, name, nameNode)
		}
		c.TypeKind = e.typeKind(u, typeNode, d)
		if !typeRefsEmitted {
			c.Children = append(c.Children, e.typeRefs(u, typeNode)...)
			typeRefsEmitted = true
		}
		if d.Type() == "init_declarator" {
			if v := d.ChildByFieldName("value"); v != nil {
				c.Children = append(c.Children, e.refs(u, v, newFuncCtx(sc))...)
			}
		}
		out = append(out, c)
	}
	return out
}

// params emits type references for a parameter list and records the
// parameters as locals of fc.
func (e *emitter) params(u *unit, decl *sitter.Node, fc *funcCtx) []*ast.Cursor {
	list := decl.ChildByFieldName("parameters")
	if list == nil {
		return nil
	}
	var out []*ast.Cursor
	for i := 0; i < int(list.NamedChildCount()); i++ {
		out = append(out, e.parameter(u, list.NamedChild(i), fc)...)
	}
	return out
}

func (e *emitter) parameter(u *unit, p *sitter.Node, fc *funcCtx) []*ast.Cursor {
	switch p.Type() {
	case "parameter_declaration", "optional_parameter_declaration":
	default:
		return nil
	}
	t := p.ChildByFieldName("type")
	out := e.typeRefs(u, t)
	if d := p.ChildByFieldName("declarator"); d != nil {
		if name := declaratorName(d); name != nil {
			fc.locals[u.text(name)] = typeName(u, t)
		}
	}
	if v := p.ChildByFieldName("default_value"); v != nil {
		out = append(out, e.refs(u, v, fc)...)
	}
	return out
}

// typeRefs emits a reference for every class named in a type.
func (e *emitter) typeRefs(u *unit, t *sitter.Node) []*ast.Cursor {
	if t == nil {
		return nil
	}
	switch t.Type() {
	case "type_identifier":
		c := u.cursor(ast.TypeRef, u.text(t), t)
		e.resolveClass(c, u.text(t))
		return []*ast.Cursor{c}
	case "qualified_type_identifier", "qualified_identifier":
		return e.typeRefs(u, t.ChildByFieldName("name"))
	case "template_type":
		name := t.ChildByFieldName("name")
		if name == nil {
			return nil
		}
		c := u.cursor(ast.TemplateRef, u.text(name), name)
		e.resolveClass(c, u.text(name))
		out := []*ast.Cursor{c}
		if args := t.ChildByFieldName("arguments"); args != nil {
			for i := 0; i < int(args.NamedChildCount()); i++ {
				if arg := args.NamedChild(i); arg.Type() == "type_descriptor" {
					out = append(out, e.typeRefs(u, arg.ChildByFieldName("type"))...)
				}
			}
		}
		return out
	}
	return nil
}

// refs collects the references made inside a function body or initializer.
func (e *emitter) refs(u *unit, n *sitter.Node, fc *funcCtx) []*ast.Cursor {
	var out []*ast.Cursor
	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		if n == nil {
			return
		}
		switch n.Type() {
		case "declaration":
			t := n.ChildByFieldName("type")
			out = append(out, e.typeRefs(u, t)...)
			tn := typeName(u, t)
			for _, d := range declarators(n) {
				if name := declaratorName(d); name != nil {
					fc.locals[u.text(name)] = tn
				}
				if d.Type() == "init_declarator" {
					walk(d.ChildByFieldName("value"))
				}
			}
			return
		case "parameter_declaration", "optional_parameter_declaration":
			out = append(out, e.parameter(u, n, fc)...)
			return
		case "for_range_loop":
			t := n.ChildByFieldName("type")
			out = append(out, e.typeRefs(u, t)...)
			if d := n.ChildByFieldName("declarator"); d != nil {
				if name := declaratorName(d); name != nil {
					fc.locals[u.text(name)] = typeName(u, t)
				}
			}
			walk(n.ChildByFieldName("right"))
			walk(n.ChildByFieldName("body"))
			return
		case "type_identifier", "qualified_type_identifier", "template_type":
			out = append(out, e.typeRefs(u, n)...)
			return
		case "call_expression":
			fn := n.ChildByFieldName("function")
			switch {
			case fn == nil:
			case fn.Type() == "identifier":
				if _, local := fc.locals[u.text(fn)]; !local {
					out = append(out, e.nameRef(u, fn, u.text(fn), fc))
				}
			case fn.Type() == "qualified_identifier":
				out = append(out, e.qualifiedRef(u, fn))
			case fn.Type() == "template_function":
				if name := fn.ChildByFieldName("name"); name != nil {
					out = append(out, e.nameRef(u, name, u.text(name), fc))
				}
				walk(fn.ChildByFieldName("arguments"))
			default:
				walk(fn)
			}
			walk(n.ChildByFieldName("arguments"))
			return
		case "field_expression":
			arg := n.ChildByFieldName("argument")
			walk(arg)
			if field := n.ChildByFieldName("field"); field != nil {
				if c := e.memberRef(u, arg, field, fc); c != nil {
					out = append(out, c)
				}
			}
			return
		case "identifier":
			if _, local := fc.locals[u.text(n)]; !local {
				out = append(out, e.nameRef(u, n, u.text(n), fc))
			}
			return
		case "qualified_identifier":
			out = append(out, e.qualifiedRef(u, n))
			return
		}
		for i := 0; i < int(n.NamedChildCount()); i++ {
			walk(n.NamedChild(i))
		}
	}
	walk(n)
	return out
}

// nameRef references an unqualified name: a member of the enclosing class
// (through an implicit this), else a free function.
func (e *emitter) nameRef(u *unit, n *sitter.Node, name string, fc *funcCtx) *ast.Cursor {
	c := u.cursor(ast.DeclRefExpr, name, n)
	class := fc.scope.class
	e.pending = append(e.pending, func() {
		if class != "" {
			if m := e.member(class, name); m != nil {
				c.Kind = ast.MemberRefExpr
				c.Referenced = m
				return
			}
		}
		if f, ok := e.functions[name]; ok {
			c.Referenced = f
		}
	})
	return c
}

// qualifiedRef references Class::member or namespace::function.
func (e *emitter) qualifiedRef(u *unit, n *sitter.Node) *ast.Cursor {
	parts := qualifiedParts(u, n)
	name := parts[len(parts)-1]
	c := u.cursor(ast.DeclRefExpr, name, qualifiedLeaf(n))
	owner := ""
	if len(parts) > 1 {
		owner = parts[len(parts)-2]
	}
	e.pending = append(e.pending, func() {
		if info := e.classNamed(owner); owner != "" && info != nil {
			if m := e.member(info.cursor.USR, name); m != nil {
				c.Kind = ast.MemberRefExpr
				c.Referenced = m
			}
			return
		}
		if f, ok := e.functions[name]; ok {
			c.Referenced = f
		}
	})
	return c
}

// memberRef references obj.field or ptr->field where the object's class
// is known: this, or a local or parameter with a declared class type.
func (e *emitter) memberRef(u *unit, arg, field *sitter.Node, fc *funcCtx) *ast.Cursor {
	nameNode := field
	if field.Type() == "template_method" {
		nameNode = field.ChildByFieldName("name")
	}
	if nameNode == nil || arg == nil {
		return nil
	}

	var ownerUSR, ownerName string
	switch arg.Type() {
	case "this":
		ownerUSR = fc.scope.class
	case "identifier":
		ownerName = fc.locals[u.text(arg)]
	}
	if ownerUSR == "" && ownerName == "" {
		return nil
	}

	name := u.text(nameNode)
	c := u.cursor(ast.MemberRefExpr, name, nameNode)
	e.pending = append(e.pending, func() {
		usr := ownerUSR
		if usr == "" {
			info := e.classNamed(ownerName)
			if info == nil {
				return
			}
			usr = info.cursor.USR
		}
		if m := e.member(usr, name); m != nil {
			c.Referenced = m
		}
	})
	return c
}

var primitiveTypeKinds = map[string]string{
	"bool":     "BOOL",
	"char":     "CHAR_S",
	"short":    "SHORT",
	"int":      "INT",
	"long":     "LONG",
	"unsigned": "UINT",
	"float":    "FLOAT",
	"double":   "DOUBLE",
	"void":     "VOID",
}

func (e *emitter) typeKind(u *unit, t *sitter.Node, d *sitter.Node) string {
	switch d.Type() {
	case "pointer_declarator":
		return "POINTER"
	case "reference_declarator":
		return "LVALUEREFERENCE"
	case "array_declarator":
		return "CONSTANTARRAY"
	case "init_declarator":
		if inner := d.ChildByFieldName("declarator"); inner != nil {
			return e.typeKind(u, t, inner)
		}
	}
	if t == nil {
		return "UNEXPOSED"
	}
	switch t.Type() {
	case "primitive_type":
		if k, ok := primitiveTypeKinds[u.text(t)]; ok {
			return k
		}
	case "type_identifier", "qualified_type_identifier", "qualified_identifier", "template_type":
		if e.classNamed(typeName(u, t)) != nil {
			return "RECORD"
		}
		return "ELABORATED"
	}
	return "UNEXPOSED"
}

var declaratorTypes = map[string]bool{
	"identifier":               true,
	"field_identifier":         true,
	"qualified_identifier":     true,
	"function_declarator":      true,
	"pointer_declarator":       true,
	"reference_declarator":     true,
	"array_declarator":         true,
	"init_declarator":          true,
	"parenthesized_declarator": true,
	"destructor_name":          true,
	"operator_name":            true,
}

// declarators returns the declarator children of a declaration, skipping
// its type (which may itself be a qualified_identifier) and any default
// member initializer.
func declarators(n *sitter.Node) []*sitter.Node {
	typ := n.ChildByFieldName("type")
	skip := n.ChildByFieldName("default_value")
	var out []*sitter.Node
	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		if !declaratorTypes[child.Type()] || sameNode(child, typ) || sameNode(child, skip) {
			continue
		}
		out = append(out, child)
	}
	return out
}

func sameNode(a, b *sitter.Node) bool {
	if a == nil || b == nil {
		return false
	}
	return a.StartByte() == b.StartByte() && a.EndByte() == b.EndByte() && a.Type() == b.Type()
}

// functionDeclarator unwraps pointer, reference and parenthesized
// declarators down to a function declarator, if there is one.
func functionDeclarator(d *sitter.Node) *sitter.Node {
	for d != nil {
		switch d.Type() {
		case "function_declarator":
			return d
		case "pointer_declarator", "reference_declarator", "parenthesized_declarator":
			d = innerDeclarator(d)
		default:
			return nil
		}
	}
	return nil
}

// declaratorName returns the identifier a declarator declares.
func declaratorName(d *sitter.Node) *sitter.Node {
	for d != nil {
		switch d.Type() {
		case "identifier", "field_identifier", "destructor_name", "operator_name":
			return d
		case "qualified_identifier":
			return qualifiedLeaf(d)
		default:
			d = innerDeclarator(d)
		}
	}
	return nil
}

func innerDeclarator(d *sitter.Node) *sitter.Node {
	if inner := d.ChildByFieldName("declarator"); inner != nil {
		return inner
	}
	// reference_declarator has no field names.
	for i := int(d.NamedChildCount()) - 1; i >= 0; i-- {
		if child := d.NamedChild(i); declaratorTypes[child.Type()] {
			return child
		}
	}
	return nil
}

// typeName returns the unqualified class name a type spells, or its text.
// The grammar parses a namespace-qualified type as a qualified_identifier.
func typeName(u *unit, t *sitter.Node) string {
	if t == nil {
		return ""
	}
	switch t.Type() {
	case "qualified_type_identifier", "qualified_identifier":
		return typeName(u, t.ChildByFieldName("name"))
	case "template_type":
		if name := t.ChildByFieldName("name"); name != nil {
			return u.text(name)
		}
	}
	return u.text(t)
}

// nameOf returns the spelling of a declarator name, without template arguments.
func nameOf(u *unit, n *sitter.Node) string {
	switch n.Type() {
	case "template_function", "template_method", "template_type":
		if name := n.ChildByFieldName("name"); name != nil {
			return u.text(name)
		}
	}
	return u.text(n)
}

// qualifiedParts splits a::B<T>::c into [a B c].
func qualifiedParts(u *unit, n *sitter.Node) []string {
	var parts []string
	for n != nil && n.Type() == "qualified_identifier" {
		if s := n.ChildByFieldName("scope"); s != nil {
			parts = append(parts, nameOf(u, s))
		}
		n = n.ChildByFieldName("name")
	}
	if n != nil {
		parts = append(parts, nameOf(u, n))
	}
	if len(parts) == 0 {
		parts = []string{""}
	}
	return parts
}

func qualifiedLeaf(n *sitter.Node) *sitter.Node {
	for n.Type() == "qualified_identifier" {
		next := n.ChildByFieldName("name")
		if next == nil {
			return n
		}
		n = next
	}
	if n.Type() == "template_function" || n.Type() == "template_method" {
		if name := n.ChildByFieldName("name"); name != nil {
			return name
		}
	}
	return n
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
