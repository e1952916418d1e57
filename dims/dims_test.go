package dims

import (
	"fmt"
	"testing"

	"github.com/gomlx/gomlx/pkg/core/dtypes"
	"github.com/gomlx/symdims/ir"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"k8s.io/klog/v2"
)

func init() {
	klog.InitFlags(nil)
}

// staticDim returns a static dimension expression with the given value: the size of axis 0 of a new parameter.
func staticDim(value int) *SizeNode {
	p := ir.NewParameter(fmt.Sprintf("static_%d", value), ir.MakeShape(dtypes.Float32, value))
	return NewSizeNode(ir.Output(p, 0), 0)
}

// dynamicDim returns a dynamic dimension expression whose currently recorded value is the given one.
func dynamicDim(value int) *SizeNode {
	p := ir.NewParameter(fmt.Sprintf("dynamic_%d", value), ir.MakeShape(dtypes.Float32, value).WithSymbolic(0))
	return NewSizeNode(ir.Output(p, 0), 0)
}

func TestSizeNodeStatic(t *testing.T) {
	x := ir.NewParameter("x", ir.MakeShape(dtypes.Float32, 2, 3, 5))
	for dim, want := range []int64{2, 3, 5} {
		n := NewSizeNode(ir.Output(x, 0), dim)
		assert.False(t, n.IsDynamic(), "dim=%d", dim)
		assert.Equal(t, want, n.StaticValue(), "dim=%d", dim)
		assert.Equal(t, dim, n.Dim())
		assert.Equal(t, KindSize, n.Kind())
		assert.Equal(t, "SizeNode", n.String())
		assert.Equal(t, 1, n.NumOutputs())
		assert.Equal(t, ProvenanceStatic, ProvenanceOf(n))
	}
}

func TestSizeNodeSymbolic(t *testing.T) {
	x := ir.NewParameter("x", ir.MakeShape(dtypes.Float32, 2, 3, 5).WithSymbolic(1))
	assert.False(t, NewSizeNode(ir.Output(x, 0), 0).IsDynamic())
	n := NewSizeNode(ir.Output(x, 0), 1)
	assert.True(t, n.IsDynamic())
	// The recorded value is still returned.
	assert.Equal(t, int64(3), n.StaticValue())
	assert.Equal(t, ProvenanceSymbolic, ProvenanceOf(n))
}

func TestSizeNodeUnannotated(t *testing.T) {
	x := ir.NewParameter("x", ir.MakeUnannotatedShape(dtypes.Float32, 2, 3))
	for dim := range 2 {
		n := NewSizeNode(ir.Output(x, 0), dim)
		assert.True(t, n.IsDynamic(), "dim=%d", dim)
		assert.Equal(t, ProvenanceUnannotated, ProvenanceOf(n))
	}
	assert.Equal(t, int64(3), NewSizeNode(ir.Output(x, 0), 1).StaticValue())
}

func TestSizeNodeOverOpaqueOp(t *testing.T) {
	x := ir.NewParameter("x", ir.MakeShape(dtypes.Float32, 4, 6))
	transposed := ir.NewOp(ir.MakeOpKind("transpose"), []ir.Value{ir.Output(x, 0)},
		ir.MakeShape(dtypes.Float32, 6, 4))
	n := NewSizeNode(ir.Output(transposed, 0), 0)
	require.False(t, n.IsDynamic())
	require.Equal(t, int64(6), n.StaticValue())
}

func TestSizeNodeDimOutOfRange(t *testing.T) {
	x := ir.NewParameter("x", ir.MakeShape(dtypes.Float32, 2, 3))
	n := NewSizeNode(ir.Output(x, 0), 2)
	require.Panics(t, func() { _ = n.StaticValue() })
	require.Panics(t, func() { _ = n.IsDynamic() })
}

func TestCombinatorsStaticValue(t *testing.T) {
	pairs := [][2]int{{6, 3}, {7, 2}, {0, 5}, {1, 1}, {1024, 7}}
	for _, pair := range pairs {
		a, b := staticDim(pair[0]), staticDim(pair[1])
		av, bv := int64(pair[0]), int64(pair[1])
		add, mul, div := SizeAdd(a, b), SizeMul(a, b), SizeDiv(a, b)
		assert.Equal(t, av+bv, add.StaticValue(), "SizeAdd%v", pair)
		assert.Equal(t, av*bv, mul.StaticValue(), "SizeMul%v", pair)
		assert.Equal(t, av/bv, div.StaticValue(), "SizeDiv%v", pair)
		for _, n := range []*Binary{add, mul, div} {
			assert.False(t, n.IsDynamic())
		}
	}
}

func TestCombinatorsTags(t *testing.T) {
	a, b := staticDim(2), staticDim(3)
	for _, tc := range []struct {
		n    *Binary
		kind Kind
		tag  string
		op   string
	}{
		{SizeAdd(a, b), KindAdd, "SizeAdd", "add"},
		{SizeMul(a, b), KindMul, "SizeMul", "mul"},
		{SizeDiv(a, b), KindDiv, "SizeDiv", "div"},
	} {
		assert.Equal(t, tc.kind, tc.n.Kind())
		assert.Equal(t, tc.tag, tc.n.String())
		assert.Equal(t, tc.op, tc.n.Op().Name)
		assert.Equal(t, 2, tc.n.NumOperands())
		assert.Equal(t, 1, tc.n.NumOutputs())
	}
	assert.Equal(t, "size-of", a.Op().Name)
}

func TestSizeDivByZero(t *testing.T) {
	div := SizeDiv(staticDim(6), staticDim(0))
	require.Panics(t, func() { _ = div.StaticValue() })

	_, err := Materialize(div)
	require.Error(t, err)
	require.Contains(t, err.Error(), "divide a dimension by zero")

	// The zero check happens at evaluation time, also for nested expressions.
	nested := SizeAdd(staticDim(1), div)
	require.Panics(t, func() { _ = nested.StaticValue() })
}

func TestCombinatorsDynamism(t *testing.T) {
	constructors := map[string]func(a, b DimensionNode) *Binary{
		"SizeAdd": SizeAdd,
		"SizeMul": SizeMul,
		"SizeDiv": SizeDiv,
	}
	for name, fn := range constructors {
		for _, aDynamic := range []bool{false, true} {
			for _, bDynamic := range []bool{false, true} {
				var a, b DimensionNode = staticDim(6), staticDim(3)
				if aDynamic {
					a = dynamicDim(6)
				}
				if bDynamic {
					b = dynamicDim(3)
				}
				n := fn(a, b)
				assert.Equal(t, aDynamic || bDynamic, n.IsDynamic(), "%s(dynamic=%v, dynamic=%v)", name, aDynamic, bDynamic)
			}
		}
	}
}

func TestOpDim(t *testing.T) {
	x := ir.NewParameter("x", ir.MakeShape(dtypes.Float32, 2, 3))
	size := NewSizeNode(ir.Output(x, 0), 1)
	_, ok := size.OpDim(0)
	assert.False(t, ok, "the input of a SizeNode is a tensor")

	add := SizeAdd(size, staticDim(4))
	d, ok := add.OpDim(0)
	require.True(t, ok)
	assert.Same(t, size, d)
	d, ok = add.OpDim(1)
	require.True(t, ok)
	assert.Equal(t, int64(4), d.StaticValue())

	assert.Equal(t, KindOpaque, KindOf(x))
	assert.Equal(t, KindSize, KindOf(size))
	assert.Equal(t, KindAdd, KindOf(add))
	_, ok = AsDimension(x)
	assert.False(t, ok)
}

func TestStructuralHash(t *testing.T) {
	x := ir.NewParameter("x", ir.MakeShape(dtypes.Float32, 2, 3))
	s1 := NewSizeNode(ir.Output(x, 0), 1)
	s2 := NewSizeNode(ir.Output(x, 0), 1)
	assert.Equal(t, s1.Hash(), s2.Hash())
	assert.NotEqual(t, s1.Hash(), NewSizeNode(ir.Output(x, 0), 0).Hash())

	// The operator tag takes part in the hash: same operands and seed, different op.
	operands := []ir.Value{ir.Output(s1, 0), ir.Output(s2, 0)}
	asSize := ir.NewBaseNode(OpSize, operands, dimensionShape(), 0)
	asAdd := ir.NewBaseNode(OpAdd.OpKind(), operands, dimensionShape(), 0)
	assert.NotEqual(t, asSize.Hash(), asAdd.Hash())
	assert.NotEqual(t, SizeAdd(s1, s2).Hash(), SizeMul(s1, s2).Hash())
	assert.Equal(t, SizeAdd(s1, s2).Hash(), SizeAdd(s1, s2).Hash())

	// Operand order matters.
	s0 := NewSizeNode(ir.Output(x, 0), 0)
	assert.NotEqual(t, SizeDiv(s0, s1).Hash(), SizeDiv(s1, s0).Hash())
}

func TestGraphDeduplication(t *testing.T) {
	g := ir.NewGraph()
	x := ir.Intern(g, ir.NewParameter("x", ir.MakeShape(dtypes.Float32, 2, 3)))
	s1 := ir.Intern(g, NewSizeNode(ir.Output(x, 0), 1))
	s2 := ir.Intern(g, NewSizeNode(ir.Output(x, 0), 1))
	require.Same(t, s1, s2)
	s0 := ir.Intern(g, NewSizeNode(ir.Output(x, 0), 0))
	require.NotSame(t, s0, s1)

	add1 := ir.Intern(g, SizeAdd(s0, s1))
	add2 := ir.Intern(g, SizeAdd(s0, s2))
	require.Same(t, add1, add2)
	mul := ir.Intern(g, SizeMul(s0, s1))
	require.NotSame(t, add1, mul)
	require.Equal(t, 5, g.Len())
}

func TestCycleDetection(t *testing.T) {
	leaf := staticDim(3)
	x := &Binary{op: OpAdd}
	x.BaseNode = ir.NewBaseNode(OpAdd.OpKind(), []ir.Value{ir.Output(leaf, 0), ir.Output(leaf, 0)}, dimensionShape(), 0)
	require.Equal(t, int64(6), x.StaticValue())

	// Rewire x to use itself as its second operand.
	x.BaseNode = ir.NewBaseNode(OpAdd.OpKind(), []ir.Value{ir.Output(leaf, 0), ir.Output(x, 0)}, dimensionShape(), 0)
	require.Panics(t, func() { _ = x.StaticValue() })
	require.Panics(t, func() { _ = x.IsDynamic() })
	require.Panics(t, func() { _ = ProvenanceOf(x) })
	_, err := Materialize(x)
	require.Error(t, err)
	require.Contains(t, err.Error(), "cycle detected")
}

func TestEvaluatorMemoization(t *testing.T) {
	// Each level uses the previous one twice: without memoization evaluation would take 2^depth steps.
	const depth = 62
	var d DimensionNode = staticDim(1)
	for range depth {
		d = SizeAdd(d, d)
	}
	e := NewEvaluator()
	require.False(t, e.IsDynamic(d))
	require.Equal(t, int64(1)<<depth, e.StaticValue(d))
	require.Equal(t, depth+1, e.NumMemoized())
	require.Equal(t, ProvenanceStatic, ProvenanceOf(d))
}

func TestDynamicLeaves(t *testing.T) {
	batch := dynamicDim(3)
	x := ir.NewParameter("x", ir.MakeUnannotatedShape(dtypes.Float32, 7))
	unannotated := NewSizeNode(ir.Output(x, 0), 0)
	features := staticDim(16)

	d := SizeMul(SizeAdd(batch, features), SizeAdd(batch, unannotated))
	leaves := DynamicLeaves(d)
	require.Len(t, leaves, 2)
	require.Same(t, batch, leaves[0])
	require.Same(t, unannotated, leaves[1])
	require.Equal(t, ProvenanceUnannotated, ProvenanceOf(d))
	require.Equal(t, ProvenanceSymbolic, ProvenanceOf(SizeAdd(batch, features)))
	require.Empty(t, DynamicLeaves(features))
}

func TestMaterialize(t *testing.T) {
	value, err := Materialize(SizeMul(staticDim(4), SizeAdd(staticDim(2), staticDim(3))))
	require.NoError(t, err)
	require.Equal(t, int64(20), value)

	_, err = Materialize(SizeMul(staticDim(4), dynamicDim(2)))
	require.Error(t, err)
	require.Contains(t, err.Error(), "is symbolic")
	fmt.Printf("Expected error: %v\n", err)
}

func TestFold(t *testing.T) {
	g := ir.NewGraph()
	static := SizeMul(staticDim(4), staticDim(5))
	folded := Fold(g, static)
	constant, ok := folded.(*ir.Constant)
	require.True(t, ok)
	require.Equal(t, int64(20), constant.Value())
	// Folding the same value twice returns the same interned constant.
	require.Same(t, constant, Fold(g, SizeAdd(staticDim(10), staticDim(10))))
	require.Equal(t, 1, g.Len())

	dynamic := SizeMul(staticDim(4), dynamicDim(5))
	require.Same(t, dynamic, Fold(g, dynamic))
}

func TestStringers(t *testing.T) {
	assert.Equal(t, "size", KindSize.String())
	assert.Equal(t, "opaque", KindOpaque.String())
	assert.Equal(t, "invalid", Kind(100).String())
	assert.Equal(t, "div", OpDiv.String())
	assert.Equal(t, "BinaryOp(7)", BinaryOp(7).String())
	assert.Equal(t, "unannotated", ProvenanceUnannotated.String())
	assert.True(t, ProvenanceSymbolic.IsDynamic())
	assert.False(t, ProvenanceStatic.IsDynamic())
}
