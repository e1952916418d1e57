package ir

import (
	"github.com/gomlx/exceptions"
	"github.com/gomlx/gomlx/pkg/support/sets"
	"k8s.io/klog/v2"
)

// Graph owns the nodes of one computation. It deduplicates structurally equal nodes, see Intern.
//
// It is not safe for concurrent use: a Graph is built and consumed by a single compiler pass.
type Graph struct {
	nodes  []Node
	byHash map[Hash][]Node
}

// NewGraph creates an empty Graph.
func NewGraph() *Graph {
	return &Graph{byHash: make(map[Hash][]Node)}
}

// Nodes returns the registered nodes in registration order.
func (g *Graph) Nodes() []Node {
	return g.nodes
}

// Len returns the number of registered nodes.
func (g *Graph) Len() int {
	return len(g.nodes)
}

// Find returns the registered node structurally equal to n, or nil if there is none.
func (g *Graph) Find(n Node) Node {
	for _, candidate := range g.byHash[n.Hash()] {
		if Equivalent(candidate, n) {
			return candidate
		}
	}
	return nil
}

// Intern registers n in the graph, unless a structurally equal node is already registered, in which case
// the registered node is returned and n is discarded.
//
// Operands of n are expected to have been interned already: operand identity is part of node equality.
func Intern[T Node](g *Graph, n T) T {
	if existing := g.Find(n); existing != nil {
		typed, ok := existing.(T)
		if !ok {
			exceptions.Panicf("ir.Intern: node %s is equivalent to registered node %s of a different type (%T)", n, existing, existing)
		}
		if klog.V(2).Enabled() {
			klog.Infof("ir.Intern: reusing %s", existing)
		}
		return typed
	}
	g.nodes = append(g.nodes, n)
	g.byHash[n.Hash()] = append(g.byHash[n.Hash()], n)
	return n
}

// Equivalent reports whether a and b are structurally equal: same operator, same hash, same operand
// identity and, for nodes with attributes, equal attributes.
func Equivalent(a, b Node) bool {
	if a == b {
		return true
	}
	if a.Op() != b.Op() || a.Hash() != b.Hash() || a.NumOperands() != b.NumOperands() || a.NumOutputs() != b.NumOutputs() {
		return false
	}
	for ii, operand := range a.Operands() {
		if operand != b.Operand(ii) {
			return false
		}
	}
	if comparer, ok := a.(AttributesComparer); ok {
		return comparer.AttributesEqual(b)
	}
	return true
}

// TopologicalSort returns the nodes reachable from roots, each once, with every node listed after all of its
// operands. Lowering uses it to process nodes in dependency order.
//
// It panics (throws an exception) if a cycle is found.
func TopologicalSort(roots ...Node) []Node {
	var sorted []Node
	done := sets.Make[Node]()
	visiting := sets.Make[Node]()
	var visit func(n Node)
	visit = func(n Node) {
		if done.Has(n) {
			return
		}
		if visiting.Has(n) {
			exceptions.Panicf("ir.TopologicalSort: cycle detected at node %s", n)
		}
		visiting.Insert(n)
		for _, operand := range n.Operands() {
			visit(operand.Node)
		}
		delete(visiting, n)
		done.Insert(n)
		sorted = append(sorted, n)
	}
	for _, root := range roots {
		visit(root)
	}
	return sorted
}
