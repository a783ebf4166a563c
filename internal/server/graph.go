package server

import (
	"path/filepath"
	"strconv"
	"strings"

	"github.com/abramin/xreflens/internal/model"
	"github.com/abramin/xreflens/internal/query"
)

// GraphFilter specifies filters for hierarchy graphs.
type GraphFilter struct {
	// HideExternal drops classes defined outside the project base directory.
	HideExternal bool `json:"hideExternal"`
}

// DefaultGraphFilter returns the default filter, which keeps every class.
func DefaultGraphFilter() GraphFilter {
	return GraphFilter{}
}

// GraphNode represents a class in the graph response.
type GraphNode struct {
	USR  string `json:"usr"`
	Name string `json:"name"`
	Kind string `json:"kind,omitempty"`
	File string `json:"file,omitempty"`
	Line int    `json:"line,omitempty"`
	Root bool   `json:"root"`
}

// GraphEdge points from a derived class to its base.
type GraphEdge struct {
	SourceUSR string `json:"source_usr"`
	TargetUSR string `json:"target_usr"`
}

// GraphResponse is the response format for /api/hierarchy.
type GraphResponse struct {
	Nodes    []GraphNode `json:"nodes"`
	Edges    []GraphEdge `json:"edges"`
	RootUSR  string      `json:"root_usr"`
	Filtered int         `json:"filtered_count"`
}

// symbolSource is the part of the index the graph builder reads.
type symbolSource interface {
	Symbol(usr string) (*model.Symbol, error)
}

// GraphBuilder turns a class hierarchy into nodes and edges.
type GraphBuilder struct {
	src      symbolSource
	filter   GraphFilter
	nodes    map[string]*GraphNode
	order    []string
	hidden   map[string]bool
	filtered int
}

// NewGraphBuilder creates a new graph builder.
func NewGraphBuilder(src symbolSource, filter GraphFilter) *GraphBuilder {
	return &GraphBuilder{
		src:    src,
		filter: filter,
		nodes:  make(map[string]*GraphNode),
		hidden: make(map[string]bool),
	}
}

// Build converts h. Edges touching a filtered class are dropped.
func (gb *GraphBuilder) Build(h *query.Hierarchy) *GraphResponse {
	gb.addNode(h.RootUSR, h.Root, true)

	edges := []GraphEdge{}
	for _, e := range h.Edges {
		gb.addNode(e.DerivedUSR, e.Derived, false)
		gb.addNode(e.BaseUSR, e.Base, false)
		if gb.hidden[e.DerivedUSR] || gb.hidden[e.BaseUSR] {
			continue
		}
		edges = append(edges, GraphEdge{SourceUSR: e.DerivedUSR, TargetUSR: e.BaseUSR})
	}

	nodes := make([]GraphNode, 0, len(gb.order))
	for _, usr := range gb.order {
		nodes = append(nodes, *gb.nodes[usr])
	}
	return &GraphResponse{
		Nodes:    nodes,
		Edges:    edges,
		RootUSR:  h.RootUSR,
		Filtered: gb.filtered,
	}
}

// addNode adds a node to the graph if it passes filters.
func (gb *GraphBuilder) addNode(usr, name string, root bool) {
	if _, exists := gb.nodes[usr]; exists || gb.hidden[usr] {
		return
	}

	node := &GraphNode{USR: usr, Name: name, Root: root}
	if sym, err := gb.src.Symbol(usr); err == nil {
		node.Kind = sym.Kind
		site := sym.Defi
		if site == "" {
			site = sym.Decl
		}
		node.File, node.Line = splitSite(site)
	}

	if !root && gb.shouldFilter(node) {
		gb.hidden[usr] = true
		gb.filtered++
		return
	}

	gb.nodes[usr] = node
	gb.order = append(gb.order, usr)
}

// shouldFilter returns true if the class should be left out.
func (gb *GraphBuilder) shouldFilter(node *GraphNode) bool {
	return gb.filter.HideExternal && isExternal(node.File)
}

// isExternal reports whether a recorded file lies outside the base
// directory. Such files are stored with their absolute path.
func isExternal(file string) bool {
	return filepath.IsAbs(file)
}

func splitSite(site string) (string, int) {
	file, locus, err := model.SplitFileLocus(site)
	if err != nil {
		return "", 0
	}
	lineStr, _, _ := strings.Cut(locus, ":")
	line, _ := strconv.Atoi(lineStr)
	return file, line
}
