// Package lower defines how IR nodes are lowered into an executable graph.
//
//   - Builder: the executable graph builder. It inserts constants and invokes named primitives.
//   - Context: per code-generation pass state. It maps IR values to the Op handles already generated for them,
//     and holds the lowering configuration.
//   - Lowerer: implemented by IR nodes that know how to lower themselves.
//   - Lower: lowers a DAG in dependency order.
package lower

import (
	"github.com/gomlx/exceptions"
	"github.com/gomlx/symdims/ir"
)

// Op is a handle to a run-time value generated by a Builder. Its concrete type is defined by the Builder.
type Op any

// Primitive is the name of a run-time primitive a Builder can invoke.
type Primitive string

const (
	// PrimitiveSize takes (tensor, axis) and returns the run-time size of the axis.
	PrimitiveSize Primitive = "size"

	// PrimitiveAdd takes two scalars and returns their sum.
	PrimitiveAdd Primitive = "add"

	// PrimitiveMul takes two scalars and returns their product.
	PrimitiveMul Primitive = "mul"

	// PrimitiveDiv takes two scalars and returns their integer quotient, truncated toward zero.
	PrimitiveDiv Primitive = "div"
)

// Builder of executable graphs.
type Builder interface {
	// Constant inserts a compile-time integer constant and returns its handle.
	Constant(value int64) (Op, error)

	// Call invokes the named primitive with positional and keyword arguments, and returns the handles to its results.
	Call(primitive Primitive, args []Op, kwargs map[string]Op) ([]Op, error)
}

// Lowerer is implemented by IR nodes that can lower themselves.
//
// Lower appends to ctx.Builder() the instructions needed to produce the node outputs, and returns one Op per
// output. Operands are already lowered when Lower is called, see Context.MustOutputOp.
//
// It panics (throws an exception) in case of errors.
type Lowerer interface {
	ir.Node
	Lower(ctx *Context) []Op
}

// Context of one lowering pass. It is not safe for concurrent use.
type Context struct {
	builder       Builder
	outputs       map[ir.Value]Op
	staticFolding bool

	// memos holds state shared by lowering rules for the lifetime of the context, see Memo.
	memos map[any]any
}

// NewContext creates a lowering context that emits into builder.
func NewContext(builder Builder) *Context {
	return &Context{
		builder: builder,
		outputs: make(map[ir.Value]Op),
		memos:   make(map[any]any),
	}
}

// Memo returns the value stored in the context under key, calling create to build it the first time.
//
// Lowering rules use it to keep state across the nodes of a lowering pass, e.g. an evaluator whose results
// are reused by every node. Keys should be of an unexported type of the package using them.
func (ctx *Context) Memo(key any, create func() any) any {
	if value, found := ctx.memos[key]; found {
		return value
	}
	value := create()
	ctx.memos[key] = value
	return value
}

// WithStaticFolding configures whether dimension expressions whose value is statically known are lowered
// to a single constant, instead of instructions computing them at run time.
//
// Default is false. It returns the context itself, so configuration calls can be chained.
func (ctx *Context) WithStaticFolding(enabled bool) *Context {
	ctx.staticFolding = enabled
	return ctx
}

// StaticFolding returns the value configured with WithStaticFolding.
func (ctx *Context) StaticFolding() bool {
	return ctx.staticFolding
}

// Builder returns the executable graph builder.
func (ctx *Context) Builder() Builder {
	return ctx.builder
}

// Bind associates the IR value with the given lowered op. It is used for the inputs of the computation
// (parameters), and by Lower for every lowered node output.
//
// It panics (throws an exception) if the value was already bound.
func (ctx *Context) Bind(value ir.Value, op Op) {
	if _, found := ctx.outputs[value]; found {
		exceptions.Panicf("lower.Context.Bind: %s already lowered", value)
	}
	ctx.outputs[value] = op
}

// OutputOp returns the op the IR value was lowered to, if any.
func (ctx *Context) OutputOp(value ir.Value) (op Op, found bool) {
	op, found = ctx.outputs[value]
	return
}

// MustOutputOp returns the op the IR value was lowered to.
//
// It panics (throws an exception) if value hasn't been lowered yet.
func (ctx *Context) MustOutputOp(value ir.Value) Op {
	op, found := ctx.outputs[value]
	if !found {
		exceptions.Panicf("%s has not been lowered yet, operands must be lowered before their users", value)
	}
	return op
}

// Constant inserts a constant in the builder.
//
// It panics (throws an exception) if the builder fails.
func (ctx *Context) Constant(value int64) Op {
	op, err := ctx.builder.Constant(value)
	if err != nil {
		panic(err)
	}
	return op
}

// Call invokes the primitive with the positional arguments args.
//
// It panics (throws an exception) if the builder fails.
func (ctx *Context) Call(primitive Primitive, args ...Op) []Op {
	results, err := ctx.builder.Call(primitive, args, nil)
	if err != nil {
		panic(err)
	}
	return results
}
