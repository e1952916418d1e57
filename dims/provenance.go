package dims

import (
	"github.com/gomlx/exceptions"
	"github.com/gomlx/gomlx/pkg/support/sets"
)

// Provenance tells where the value of a dimension expression comes from.
// Values are ordered from the most to the least static.
type Provenance int

const (
	// ProvenanceUnknown - provenance not determined.
	ProvenanceUnknown Provenance = iota

	// ProvenanceStatic - all leaves read axes marked static in their input shapes.
	ProvenanceStatic

	// ProvenanceSymbolic - some leaf reads an axis marked symbolic.
	ProvenanceSymbolic

	// ProvenanceUnannotated - some leaf reads a shape without any symbolic information, and it is
	// conservatively treated as dynamic.
	ProvenanceUnannotated
)

// String returns a human-readable name for the provenance.
func (p Provenance) String() string {
	switch p {
	case ProvenanceUnknown:
		return "unknown"
	case ProvenanceStatic:
		return "static"
	case ProvenanceSymbolic:
		return "symbolic"
	case ProvenanceUnannotated:
		return "unannotated"
	default:
		return "invalid"
	}
}

// IsDynamic returns whether the provenance implies a dynamic value.
func (p Provenance) IsDynamic() bool {
	return p == ProvenanceSymbolic || p == ProvenanceUnannotated
}

// ProvenanceOf returns the least static provenance of the leaves of d.
func ProvenanceOf(d DimensionNode) Provenance {
	provenance := ProvenanceUnknown
	walkLeaves(d, func(leaf *SizeNode) {
		provenance = max(provenance, leafProvenance(leaf))
	})
	return provenance
}

// leafProvenance returns the provenance of a single SizeNode.
func leafProvenance(leaf *SizeNode) Provenance {
	symbolic, ok := leaf.Input().Shape().SymbolicAxes()
	switch {
	case !ok:
		return ProvenanceUnannotated
	case leaf.dim < 0 || leaf.dim >= len(symbolic):
		return ProvenanceUnknown
	case symbolic[leaf.dim]:
		return ProvenanceSymbolic
	default:
		return ProvenanceStatic
	}
}

// DynamicLeaves returns the dynamic SizeNode leaves of d, each once, in depth-first order.
func DynamicLeaves(d DimensionNode) []*SizeNode {
	var leaves []*SizeNode
	e := NewEvaluator()
	walkLeaves(d, func(leaf *SizeNode) {
		if e.IsDynamic(leaf) {
			leaves = append(leaves, leaf)
		}
	})
	return leaves
}

// walkLeaves calls fn for every SizeNode reachable from d, once each, depth-first and left to right.
//
// It panics (throws an exception) if a cycle is found.
func walkLeaves(d DimensionNode, fn func(leaf *SizeNode)) {
	done := sets.Make[DimensionNode]()
	visiting := sets.Make[DimensionNode]()
	var visit func(d DimensionNode)
	visit = func(d DimensionNode) {
		if done.Has(d) {
			return
		}
		if visiting.Has(d) {
			exceptions.Panicf("cycle detected in dimension expression at %s (op %s)", d, d.Op())
		}
		visiting.Insert(d)
		if leaf, ok := d.(*SizeNode); ok {
			fn(leaf)
		} else {
			for ii := range d.NumOperands() {
				visit(mustOpDim(d, ii))
			}
		}
		delete(visiting, d)
		done.Insert(d)
	}
	visit(d)
}
