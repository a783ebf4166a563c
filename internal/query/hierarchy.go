package query

import (
	"fmt"
	"sort"

	"github.com/abramin/xreflens/internal/model"
)

// hierarchyKinds are the symbol kinds a class hierarchy can start from.
var hierarchyKinds = map[string]bool{
	model.KindTypeRef:       true,
	model.KindClassDecl:     true,
	model.KindBaseSpecifier: true,
}

// Edge is one inheritance relation.
type Edge struct {
	Derived    string `json:"derived"`
	Base       string `json:"base"`
	DerivedUSR string `json:"derived_usr"`
	BaseUSR    string `json:"base_usr"`
}

// Hierarchy is the inheritance graph around one class.
type Hierarchy struct {
	Root    string `json:"root"`
	RootUSR string `json:"root_usr"`
	Edges   []Edge `json:"edges"`
}

// relatives returns every class reachable from root over base and child
// edges, excluding root itself.
func (e *Engine) relatives(root string) []string {
	visited := map[string]bool{root: true}
	var out []string
	stack := []string{root}
	for len(stack) > 0 {
		usr := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		sym, err := e.src.Symbol(usr)
		if err != nil {
			continue
		}
		for _, next := range append(append([]string{}, sym.BaseClass...), sym.ChildClass...) {
			if visited[next] {
				continue
			}
			visited[next] = true
			e.logger.Debug("visit hierarchy", "from", usr, "to", next)
			out = append(out, next)
			stack = append(stack, next)
		}
	}
	return out
}

// ClassHierarchy collects the inheritance edges reachable from the class
// at file:locus in both directions.
func (e *Engine) ClassHierarchy(file, locus string) (*Hierarchy, error) {
	usr, err := e.AnyUSR(file, locus)
	if err != nil {
		return nil, err
	}
	if usr == "" {
		return nil, fmt.Errorf("%s:%s: %w", file, locus, model.ErrNotIndexed)
	}
	root, err := e.src.Symbol(usr)
	if err != nil {
		return nil, err
	}
	if !hierarchyKinds[root.Kind] {
		return nil, fmt.Errorf("%s is %s: %w", root.Spell, root.Kind, ErrUnsupportedKind)
	}

	h := &Hierarchy{Root: root.Spell, RootUSR: usr, Edges: []Edge{}}
	seenEdges := make(map[[2]string]bool)
	seenNodes := map[string]bool{usr: true}
	stack := []string{usr}

	add := func(derived, base string) {
		key := [2]string{derived, base}
		if seenEdges[key] {
			return
		}
		seenEdges[key] = true
		h.Edges = append(h.Edges, Edge{
			Derived:    e.spelling(derived),
			Base:       e.spelling(base),
			DerivedUSR: derived,
			BaseUSR:    base,
		})
	}
	visit := func(next string) {
		if !seenNodes[next] {
			seenNodes[next] = true
			stack = append(stack, next)
		}
	}

	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		sym, err := e.src.Symbol(cur)
		if err != nil {
			continue
		}
		for _, base := range sym.BaseClass {
			add(cur, base)
			visit(base)
		}
		for _, derived := range sym.ChildClass {
			add(derived, cur)
			visit(derived)
		}
	}

	sort.Slice(h.Edges, func(i, j int) bool {
		a, b := h.Edges[i], h.Edges[j]
		if a.Derived != b.Derived {
			return a.Derived < b.Derived
		}
		if a.Base != b.Base {
			return a.Base < b.Base
		}
		if a.DerivedUSR != b.DerivedUSR {
			return a.DerivedUSR < b.DerivedUSR
		}
		return a.BaseUSR < b.BaseUSR
	})
	return h, nil
}

func (e *Engine) spelling(usr string) string {
	if sym, err := e.src.Symbol(usr); err == nil && sym.Spell != "" {
		return sym.Spell
	}
	return usr
}
