// Package dims implements symbolic tensor dimensions as IR nodes: expressions over the sizes of tensor axes
// that may be known when the graph is built (static) or only at run time (dynamic).
//
//   - SizeNode: the size of one axis of a tensor-producing node.
//   - SizeAdd, SizeMul, SizeDiv: binary combinators over dimension expressions.
//   - DimensionNode: the capability shared by all of them: is the value dynamic, and if not, what is it.
//
// Dimension nodes are ordinary ir.Node values: they are hashed and deduplicated by an ir.Graph like any other
// node, and they lower themselves into an executable graph (see the lower package) when their value is only
// known at run time.
//
// As with graph building code, errors that indicate a malformed program (division by a static zero, a
// dimension out of range, a cycle) panic with an exception. Use Materialize or lower.Lower to get them as errors.
package dims

import (
	"github.com/gomlx/exceptions"
	"github.com/gomlx/gomlx/pkg/core/dtypes"
	"github.com/gomlx/symdims/ir"
	"github.com/gomlx/symdims/lower"
)

// Kind enumerates the node kinds that can take part in dimension expressions.
type Kind int

const (
	// KindOpaque is any node that is not a dimension expression.
	KindOpaque Kind = iota
	KindSize
	KindAdd
	KindMul
	KindDiv
)

// String implements fmt.Stringer.
func (k Kind) String() string {
	switch k {
	case KindOpaque:
		return "opaque"
	case KindSize:
		return "size"
	case KindAdd:
		return "add"
	case KindMul:
		return "mul"
	case KindDiv:
		return "div"
	default:
		return "invalid"
	}
}

// DimensionNode is an IR node that represents an integer tensor dimension.
//
// It is implemented only by the nodes of this package: SizeNode and Binary.
type DimensionNode interface {
	ir.Node
	lower.Lowerer

	// Kind of the dimension expression. It is never KindOpaque.
	Kind() Kind

	// OpDim returns the i-th operand as a dimension expression, or false if the operand
	// is not a dimension expression.
	OpDim(i int) (DimensionNode, bool)

	// IsDynamic returns true if the value can't be determined from the static shape information available.
	IsDynamic() bool

	// StaticValue returns the value of the expression. It is only meaningful if IsDynamic is false, otherwise
	// it returns the value computed from whatever dimensions are currently recorded in the shapes.
	StaticValue() int64

	// String returns a short fixed tag for the kind of node.
	String() string

	// evaluate and dynamic are the per-node steps of an Evaluator pass.
	evaluate(e *Evaluator) int64
	dynamic(e *Evaluator) bool
}

// AsDimension returns node as a DimensionNode, or false if it is not a dimension expression.
func AsDimension(node ir.Node) (DimensionNode, bool) {
	d, ok := node.(DimensionNode)
	return d, ok
}

// KindOf returns the Kind of node, KindOpaque if it is not a dimension expression.
func KindOf(node ir.Node) Kind {
	if d, ok := AsDimension(node); ok {
		return d.Kind()
	}
	return KindOpaque
}

// opDim implements DimensionNode.OpDim for any node.
func opDim(node ir.Node, i int) (DimensionNode, bool) {
	return AsDimension(node.Operand(i).Node)
}

// mustOpDim is like opDim, but panics (throws an exception) if the operand is not a dimension expression.
func mustOpDim(node DimensionNode, i int) DimensionNode {
	d, ok := node.OpDim(i)
	if !ok {
		exceptions.Panicf("%s: operand #%d (%s) is not a dimension expression", node, i, node.Operand(i).Node)
	}
	return d
}

// dimensionShape is the output shape of every dimension node: a static Int64 scalar.
func dimensionShape() []ir.Shape {
	return []ir.Shape{ir.ScalarShape(dtypes.Int64)}
}

// evaluatorKey is the lower.Context.Memo key of the Evaluator shared by a lowering pass.
type evaluatorKey struct{}

// contextEvaluator returns the Evaluator shared by all dimension nodes lowered with ctx.
func contextEvaluator(ctx *lower.Context) *Evaluator {
	return ctx.Memo(evaluatorKey{}, func() any { return NewEvaluator() }).(*Evaluator)
}

// lowerStatic lowers d to a constant if static folding is enabled and d is static.
func lowerStatic(ctx *lower.Context, d DimensionNode) (ops []lower.Op, folded bool) {
	if !ctx.StaticFolding() {
		return nil, false
	}
	e := contextEvaluator(ctx)
	if e.IsDynamic(d) {
		return nil, false
	}
	return []lower.Op{ctx.Constant(e.StaticValue(d))}, true
}

// mustSingleResult panics (throws an exception) if results doesn't hold exactly one op.
func mustSingleResult(d DimensionNode, primitive lower.Primitive, results []lower.Op) []lower.Op {
	if len(results) != 1 {
		exceptions.Panicf("%s: primitive %q returned %d results, expected exactly 1", d, primitive, len(results))
	}
	return results
}
