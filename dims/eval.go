package dims

import (
	"github.com/gomlx/exceptions"
	"github.com/gomlx/gomlx/pkg/support/sets"
)

// Evaluator computes static values and dynamism of dimension expressions.
//
// Results are memoized by node for the lifetime of the Evaluator, so sub-expressions shared by several paths
// are evaluated once. Shapes are read when a node is first evaluated: create a new Evaluator for each pass.
// An Evaluator is not safe for concurrent use.
type Evaluator struct {
	values   map[DimensionNode]int64
	dynamics map[DimensionNode]bool

	// inValue and inDynamic hold the nodes currently being evaluated, to detect cycles.
	inValue, inDynamic sets.Set[DimensionNode]
}

// NewEvaluator creates an Evaluator with an empty memo.
func NewEvaluator() *Evaluator {
	return &Evaluator{
		values:    make(map[DimensionNode]int64),
		dynamics:  make(map[DimensionNode]bool),
		inValue:   sets.Make[DimensionNode](),
		inDynamic: sets.Make[DimensionNode](),
	}
}

// StaticValue returns the static value of d. See DimensionNode.StaticValue.
//
// It panics (throws an exception) for malformed expressions: division by zero, dimensions out of range
// or cycles.
func (e *Evaluator) StaticValue(d DimensionNode) int64 {
	if value, found := e.values[d]; found {
		return value
	}
	if e.inValue.Has(d) {
		exceptions.Panicf("cycle detected in dimension expression at %s (op %s)", d, d.Op())
	}
	e.inValue.Insert(d)
	value := d.evaluate(e)
	delete(e.inValue, d)
	e.values[d] = value
	return value
}

// IsDynamic returns whether d is dynamic. See DimensionNode.IsDynamic.
//
// It panics (throws an exception) if a cycle is found.
func (e *Evaluator) IsDynamic(d DimensionNode) bool {
	if dynamic, found := e.dynamics[d]; found {
		return dynamic
	}
	if e.inDynamic.Has(d) {
		exceptions.Panicf("cycle detected in dimension expression at %s (op %s)", d, d.Op())
	}
	e.inDynamic.Insert(d)
	dynamic := d.dynamic(e)
	delete(e.inDynamic, d)
	e.dynamics[d] = dynamic
	return dynamic
}

// NumMemoized returns the number of nodes whose static value or dynamism is memoized.
func (e *Evaluator) NumMemoized() int {
	seen := sets.Make[DimensionNode](len(e.values))
	for d := range e.values {
		seen.Insert(d)
	}
	for d := range e.dynamics {
		seen.Insert(d)
	}
	return len(seen)
}
