package dims

import (
	"testing"

	"github.com/gomlx/gomlx/pkg/core/dtypes"
	"github.com/gomlx/gomlx/pkg/core/shapes"
	"github.com/gomlx/symdims/ir"
	"github.com/gomlx/symdims/lower"
	"github.com/gomlx/symdims/program"
	"github.com/janpfeifer/must"
	"github.com/stretchr/testify/require"
)

// multiResultBuilder is a lower.Builder whose primitives return the wrong number of results.
type multiResultBuilder struct {
	numResults int
}

func (b *multiResultBuilder) Constant(value int64) (lower.Op, error) { return value, nil }

func (b *multiResultBuilder) Call(lower.Primitive, []lower.Op, map[string]lower.Op) ([]lower.Op, error) {
	return make([]lower.Op, b.numResults), nil
}

func TestLowerSizeNode(t *testing.T) {
	x := ir.NewParameter("x", ir.MakeShape(dtypes.Float32, 2, 3, 5).WithSymbolic(2))
	n := NewSizeNode(ir.Output(x, 0), 2)

	p := program.New()
	tensor := p.Input("x")
	ctx := lower.NewContext(p)
	ctx.Bind(ir.Output(x, 0), tensor)
	ops := n.Lower(ctx)
	require.Len(t, ops, 1)
	require.Equal(t, 1, p.NumCalls())

	call := p.Instructions()[len(p.Instructions())-1]
	require.Equal(t, program.OpcodeCall, call.Opcode)
	require.Equal(t, lower.PrimitiveSize, call.Primitive)
	require.Len(t, call.Args, 2)
	require.Same(t, tensor, call.Args[0])
	require.Equal(t, program.OpcodeConstant, p.Instructions()[call.Args[1].Id()].Opcode)
	require.Equal(t, int64(2), p.Instructions()[call.Args[1].Id()].Constant)
	require.Same(t, call.Result, ops[0])

	// Run with the actual run-time shape.
	got := must.M1(p.Run(map[string]shapes.Shape{"x": shapes.Make(dtypes.Float32, 2, 3, 11)}, call.Result))
	require.Equal(t, []int64{11}, got)
}

func TestLowerSizeNodeInputNotLowered(t *testing.T) {
	x := ir.NewParameter("x", ir.MakeShape(dtypes.Float32, 2, 3))
	n := NewSizeNode(ir.Output(x, 0), 1)
	ctx := lower.NewContext(program.New())
	require.Panics(t, func() { n.Lower(ctx) })

	_, err := lower.Lower(lower.NewContext(program.New()), n)
	require.Error(t, err)
	require.Contains(t, err.Error(), `parameter "x" was not bound`)
}

func TestLowerWrongNumberOfResults(t *testing.T) {
	x := ir.NewParameter("x", ir.MakeShape(dtypes.Float32, 2, 3))
	n := NewSizeNode(ir.Output(x, 0), 1)
	for _, numResults := range []int{0, 2} {
		ctx := lower.NewContext(&multiResultBuilder{numResults: numResults})
		ctx.Bind(ir.Output(x, 0), "x")
		require.Panics(t, func() { n.Lower(ctx) })
	}

	ctx := lower.NewContext(&multiResultBuilder{numResults: 2})
	ctx.Bind(ir.Output(x, 0), "x")
	_, err := lower.Lower(ctx, n)
	require.Error(t, err)
	require.Contains(t, err.Error(), "returned 2 results")
}

func TestLowerCombinators(t *testing.T) {
	x := ir.NewParameter("x", ir.MakeShape(dtypes.Float32, 4, 6).WithSymbolic(0))
	batch := NewSizeNode(ir.Output(x, 0), 0)
	features := NewSizeNode(ir.Output(x, 0), 1)
	total := SizeMul(batch, features)
	one := ir.NewParameter("one", ir.MakeShape(dtypes.Float32, 1))
	oneDim := NewSizeNode(ir.Output(one, 0), 0)
	half := SizeDiv(total, SizeAdd(oneDim, oneDim))

	p := program.New()
	ctx := lower.NewContext(p)
	ctx.Bind(ir.Output(x, 0), p.Input("x"))
	ctx.Bind(ir.Output(one, 0), p.Input("one"))
	ops, err := lower.Lower(ctx, half, total)
	require.NoError(t, err)
	require.Len(t, ops, 2)

	// size(batch), size(features), mul, size(one), add, div.
	require.Equal(t, 6, p.NumCalls())

	inputs := map[string]shapes.Shape{
		"x":   shapes.Make(dtypes.Float32, 10, 6),
		"one": shapes.Make(dtypes.Float32, 1),
	}
	got := must.M1(p.Run(inputs, ops[0].(*program.Value), ops[1].(*program.Value)))
	require.Equal(t, []int64{30, 60}, got)
}

func TestLowerStaticFolding(t *testing.T) {
	x := ir.NewParameter("x", ir.MakeShape(dtypes.Float32, 4, 6).WithSymbolic(0))
	batch := NewSizeNode(ir.Output(x, 0), 0)
	features := NewSizeNode(ir.Output(x, 0), 1)
	expr := SizeAdd(batch, SizeMul(features, features))

	p := program.New()
	ctx := lower.NewContext(p).WithStaticFolding(true)
	ctx.Bind(ir.Output(x, 0), p.Input("x"))
	ops, err := lower.Lower(ctx, expr)
	require.NoError(t, err)

	// Only batch is computed at run time: features*features is folded into constants.
	require.Equal(t, 2, p.NumCalls())
	got := must.M1(p.Run(map[string]shapes.Shape{"x": shapes.Make(dtypes.Float32, 9, 6)}, ops[0].(*program.Value)))
	require.Equal(t, []int64{45}, got)

	// One evaluator is shared by the whole pass: each dimension node is evaluated once.
	require.Equal(t, 4, contextEvaluator(ctx).NumMemoized())
}

func TestLowerStaticFoldingSharedEvaluator(t *testing.T) {
	// Each level references the previous one three times.
	x := ir.NewParameter("x", ir.MakeShape(dtypes.Float32, 4, 6).WithSymbolic(0))
	batch := NewSizeNode(ir.Output(x, 0), 0)
	var expr DimensionNode = NewSizeNode(ir.Output(x, 0), 1)
	const depth = 40
	for range depth {
		expr = SizeDiv(SizeMul(expr, expr), expr)
	}
	expr = SizeAdd(batch, expr)

	p := program.New()
	ctx := lower.NewContext(p).WithStaticFolding(true)
	ctx.Bind(ir.Output(x, 0), p.Input("x"))
	ops := must.M1(lower.Lower(ctx, expr))
	require.Equal(t, 2, p.NumCalls())
	require.Equal(t, 2*depth+3, contextEvaluator(ctx).NumMemoized())
	got := must.M1(p.Run(map[string]shapes.Shape{"x": shapes.Make(dtypes.Float32, 3, 6)}, ops[0].(*program.Value)))
	require.Equal(t, []int64{9}, got)
}

func TestLowerFoldedConstant(t *testing.T) {
	g := ir.NewGraph()
	folded := Fold(g, SizeMul(staticDim(3), staticDim(4)))
	p := program.New()
	ops, err := lower.Lower(lower.NewContext(p), folded)
	require.NoError(t, err)
	require.Equal(t, 0, p.NumCalls())
	require.Equal(t, []int64{12}, must.M1(p.Run(nil, ops[0].(*program.Value))))
}

func TestLowerDivisionByZeroAtRunTime(t *testing.T) {
	x := ir.NewParameter("x", ir.MakeShape(dtypes.Float32, 4, 2).WithSymbolic(1))
	n := SizeDiv(NewSizeNode(ir.Output(x, 0), 0), NewSizeNode(ir.Output(x, 0), 1))
	p := program.New()
	ctx := lower.NewContext(p)
	ctx.Bind(ir.Output(x, 0), p.Input("x"))
	ops, err := lower.Lower(ctx, n)
	require.NoError(t, err)
	_, err = p.Run(map[string]shapes.Shape{"x": {DType: dtypes.Float32, Dimensions: []int{4, 0}}}, ops[0].(*program.Value))
	require.Error(t, err)
}
