package dims

import (
	"fmt"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/symdims/ir"
	"github.com/gomlx/symdims/lower"
)

// OpSize is the operator tag of SizeNode.
var OpSize = ir.MakeOpKind("size-of")

// SizeNode is the size of axis Dim of the tensor Input. It is the only dimension expression that reads
// the shapes of the IR.
type SizeNode struct {
	ir.BaseNode
	dim int
}

var _ DimensionNode = (*SizeNode)(nil)

// NewSizeNode returns the dimension expression for the size of axis dim of input.
//
// dim must be a valid axis of input's shape, this is only checked when the node is evaluated.
func NewSizeNode(input ir.Value, dim int) *SizeNode {
	return &SizeNode{
		BaseNode: ir.NewBaseNode(OpSize, []ir.Value{input}, dimensionShape(), ir.MHash(dim)),
		dim:      dim,
	}
}

// Input returns the tensor whose shape is queried.
func (n *SizeNode) Input() ir.Value { return n.Operand(0) }

// Dim returns the axis whose size is queried.
func (n *SizeNode) Dim() int { return n.dim }

// Kind implements DimensionNode.
func (n *SizeNode) Kind() Kind { return KindSize }

// OpDim implements DimensionNode. The input of a SizeNode is a tensor, so it usually returns false.
func (n *SizeNode) OpDim(i int) (DimensionNode, bool) { return opDim(n, i) }

// IsDynamic implements DimensionNode.
//
// It is true if the input shape marks the axis as symbolic, and also if the input shape has no symbolic
// information at all: it's safer to resolve it at run time than to fold a wrong value.
func (n *SizeNode) IsDynamic() bool { return NewEvaluator().IsDynamic(n) }

// StaticValue implements DimensionNode. It reads the dimension currently recorded in the input shape.
func (n *SizeNode) StaticValue() int64 { return NewEvaluator().StaticValue(n) }

// String implements DimensionNode.
func (n *SizeNode) String() string { return "SizeNode" }

// Describe returns a description including the input and the axis, for error messages.
func (n *SizeNode) Describe() string {
	return fmt.Sprintf("SizeNode(%s, dim=%d)", n.Input(), n.dim)
}

// AttributesEqual implements ir.AttributesComparer.
func (n *SizeNode) AttributesEqual(other ir.Node) bool {
	o, ok := other.(*SizeNode)
	return ok && o.dim == n.dim
}

func (n *SizeNode) evaluate(*Evaluator) int64 {
	shape := n.Input().Shape()
	if n.dim < 0 || n.dim >= shape.Rank() {
		exceptions.Panicf("%s: dim %d out of range for input shape %s", n.Describe(), n.dim, shape)
	}
	return int64(shape.Dim(n.dim))
}

func (n *SizeNode) dynamic(*Evaluator) bool {
	symbolic, ok := n.Input().Shape().SymbolicAxes()
	if !ok {
		return true
	}
	if n.dim < 0 || n.dim >= len(symbolic) {
		exceptions.Panicf("%s: dim %d out of range for %d symbolic flags", n.Describe(), n.dim, len(symbolic))
	}
	return symbolic[n.dim]
}

// Lower implements lower.Lowerer: it emits a call to the "size" primitive with the lowered input tensor and a
// constant axis.
func (n *SizeNode) Lower(ctx *lower.Context) []lower.Op {
	if ops, folded := lowerStatic(ctx, n); folded {
		return ops
	}
	dimOp := ctx.Constant(int64(n.dim))
	input := ctx.MustOutputOp(n.Input())
	return mustSingleResult(n, lower.PrimitiveSize, ctx.Call(lower.PrimitiveSize, input, dimOp))
}
