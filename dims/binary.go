package dims

import (
	"fmt"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/symdims/ir"
	"github.com/gomlx/symdims/lower"
)

// BinaryOp enumerates the binary combinators of dimension expressions.
type BinaryOp int

const (
	OpAdd BinaryOp = iota
	OpMul
	OpDiv
)

// binaryOpInfo describes how a BinaryOp combines the static values of its operands, and how it is lowered.
type binaryOpInfo struct {
	kind      Kind
	opKind    ir.OpKind
	tag       string
	primitive lower.Primitive
	apply     func(a, b int64) int64

	// check, if set, is a precondition on the static operand values. It panics if it is not met.
	check func(n *Binary, a, b int64)
}

var binaryOps = [...]binaryOpInfo{
	OpAdd: {
		kind:      KindAdd,
		opKind:    ir.MakeOpKind("add"),
		tag:       "SizeAdd",
		primitive: lower.PrimitiveAdd,
		apply:     func(a, b int64) int64 { return a + b },
	},
	OpMul: {
		kind:      KindMul,
		opKind:    ir.MakeOpKind("mul"),
		tag:       "SizeMul",
		primitive: lower.PrimitiveMul,
		apply:     func(a, b int64) int64 { return a * b },
	},
	OpDiv: {
		kind:      KindDiv,
		opKind:    ir.MakeOpKind("div"),
		tag:       "SizeDiv",
		primitive: lower.PrimitiveDiv,
		apply:     func(a, b int64) int64 { return a / b },
		check: func(n *Binary, _, b int64) {
			if b == 0 {
				exceptions.Panicf("%s: can't divide a dimension by zero", n)
			}
		},
	},
}

// info returns the description of the op.
func (op BinaryOp) info() *binaryOpInfo {
	if op < 0 || int(op) >= len(binaryOps) {
		exceptions.Panicf("invalid dims.BinaryOp %d", int(op))
	}
	return &binaryOps[op]
}

// OpKind returns the IR operator tag of op.
func (op BinaryOp) OpKind() ir.OpKind { return op.info().opKind }

// String implements fmt.Stringer.
func (op BinaryOp) String() string {
	if op < 0 || int(op) >= len(binaryOps) {
		return fmt.Sprintf("BinaryOp(%d)", int(op))
	}
	return binaryOps[op].kind.String()
}

// Binary is a dimension expression combining two dimension expressions. Create it with SizeAdd, SizeMul
// or SizeDiv.
type Binary struct {
	ir.BaseNode
	op BinaryOp
}

var _ DimensionNode = (*Binary)(nil)

// NewBinary returns the combination of a and b with op.
func NewBinary(op BinaryOp, a, b DimensionNode) *Binary {
	return &Binary{
		BaseNode: ir.NewBaseNode(op.OpKind(), []ir.Value{ir.Output(a, 0), ir.Output(b, 0)}, dimensionShape(), 0),
		op:       op,
	}
}

// SizeAdd returns the dimension expression a + b.
func SizeAdd(a, b DimensionNode) *Binary { return NewBinary(OpAdd, a, b) }

// SizeMul returns the dimension expression a * b.
func SizeMul(a, b DimensionNode) *Binary { return NewBinary(OpMul, a, b) }

// SizeDiv returns the dimension expression a / b, truncated toward zero.
// Evaluating it panics if b is statically zero.
func SizeDiv(a, b DimensionNode) *Binary { return NewBinary(OpDiv, a, b) }

// BinaryOp returns the combinator of the node.
func (n *Binary) BinaryOp() BinaryOp { return n.op }

// Kind implements DimensionNode.
func (n *Binary) Kind() Kind { return n.op.info().kind }

// OpDim implements DimensionNode.
func (n *Binary) OpDim(i int) (DimensionNode, bool) { return opDim(n, i) }

// IsDynamic implements DimensionNode: it is true if any of the operands is dynamic.
func (n *Binary) IsDynamic() bool { return NewEvaluator().IsDynamic(n) }

// StaticValue implements DimensionNode.
func (n *Binary) StaticValue() int64 { return NewEvaluator().StaticValue(n) }

// String implements DimensionNode.
func (n *Binary) String() string { return n.op.info().tag }

func (n *Binary) evaluate(e *Evaluator) int64 {
	info := n.op.info()
	a := e.StaticValue(mustOpDim(n, 0))
	b := e.StaticValue(mustOpDim(n, 1))
	if info.check != nil {
		info.check(n, a, b)
	}
	return info.apply(a, b)
}

func (n *Binary) dynamic(e *Evaluator) bool {
	return e.IsDynamic(mustOpDim(n, 0)) || e.IsDynamic(mustOpDim(n, 1))
}

// Lower implements lower.Lowerer: it calls the primitive of the combinator on the lowered operands.
func (n *Binary) Lower(ctx *lower.Context) []lower.Op {
	if ops, folded := lowerStatic(ctx, n); folded {
		return ops
	}
	primitive := n.op.info().primitive
	a := ctx.MustOutputOp(n.Operand(0))
	b := ctx.MustOutputOp(n.Operand(1))
	return mustSingleResult(n, primitive, ctx.Call(primitive, a, b))
}
