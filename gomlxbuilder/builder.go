// Package gomlxbuilder implements a lower.Builder that emits GoMLX graph operations.
//
// GoMLX graphs are specialized to the shapes of their inputs when they are built: a graph built for a batch of
// 5 is not reused for a batch of 7. So the "size" primitive is resolved to a constant of the graph being built,
// while arithmetic over dimensions is emitted as regular graph ops.
package gomlxbuilder

import (
	"github.com/gomlx/exceptions"
	"github.com/gomlx/gomlx/pkg/core/graph"
	"github.com/gomlx/symdims/internal/togomlx"
	"github.com/gomlx/symdims/ir"
	"github.com/gomlx/symdims/lower"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Builder emits lowered dimension expressions into a GoMLX Graph. Ops are *graph.Node.
type Builder struct {
	g *graph.Graph

	// constants holds the value of the nodes known at build time: the ones created with Constant, sizes and
	// arithmetic over them. Axes given to "size" must be constants.
	constants map[*graph.Node]int64
}

var _ lower.Builder = (*Builder)(nil)

// New creates a Builder that emits into g.
func New(g *graph.Graph) *Builder {
	return &Builder{
		g:         g,
		constants: make(map[*graph.Node]int64),
	}
}

// Graph returns the graph being built.
func (b *Builder) Graph() *graph.Graph {
	return b.g
}

// Constant implements lower.Builder. It creates a scalar Int64 constant.
func (b *Builder) Constant(value int64) (lower.Op, error) {
	var node *graph.Node
	err := exceptions.TryCatch[error](func() { node = graph.Const(b.g, value) })
	if err != nil {
		return nil, errors.WithMessagef(err, "gomlxbuilder.Constant(%d)", value)
	}
	b.constants[node] = value
	return node, nil
}

// Call implements lower.Builder.
func (b *Builder) Call(primitive lower.Primitive, args []lower.Op, kwargs map[string]lower.Op) (results []lower.Op, err error) {
	if len(kwargs) > 0 {
		return nil, errors.Errorf("gomlxbuilder.Call(%s): keyword arguments not supported", primitive)
	}
	if len(args) != 2 {
		return nil, errors.Errorf("gomlxbuilder.Call(%s): expected 2 arguments, got %d", primitive, len(args))
	}
	nodes := make([]*graph.Node, len(args))
	for ii, arg := range args {
		node, ok := arg.(*graph.Node)
		if !ok || node == nil {
			return nil, errors.Errorf("gomlxbuilder.Call(%s): argument #%d is a %T, not a *graph.Node", primitive, ii, arg)
		}
		if node.Graph() != b.g {
			return nil, errors.Errorf("gomlxbuilder.Call(%s): argument #%d belongs to a different graph", primitive, ii)
		}
		nodes[ii] = node
	}
	var result *graph.Node
	err = exceptions.TryCatch[error](func() { result = b.call(primitive, nodes[0], nodes[1]) })
	if err != nil {
		return nil, errors.WithMessagef(err, "gomlxbuilder.Call(%s)", primitive)
	}
	if klog.V(2).Enabled() {
		klog.Infof("gomlxbuilder: %s -> %s", primitive, result.Shape())
	}
	return []lower.Op{result}, nil
}

// call emits the primitive. It panics (throws an exception) in case of errors.
//
// Sizes are constants of the shape-specialized graph, and so are add/mul/div over constants: their values are
// recorded in b.constants, so a division by zero is reported while building instead of when executing.
func (b *Builder) call(primitive lower.Primitive, x, y *graph.Node) *graph.Node {
	var result *graph.Node
	xValue, xIsConstant := b.constants[x]
	yValue, yIsConstant := b.constants[y]
	known := xIsConstant && yIsConstant
	var value int64
	switch primitive {
	case lower.PrimitiveSize:
		if !yIsConstant {
			exceptions.Panicf("axis must be a constant created by this builder")
		}
		if yValue < 0 || int(yValue) >= x.Rank() {
			exceptions.Panicf("axis %d out of range for shape %s", yValue, x.Shape())
		}
		value = int64(x.Shape().Dim(int(yValue)))
		known = true
		result = graph.Const(b.g, value)
	case lower.PrimitiveAdd:
		value = xValue + yValue
		result = graph.Add(x, y)
	case lower.PrimitiveMul:
		value = xValue * yValue
		result = graph.Mul(x, y)
	case lower.PrimitiveDiv:
		if yIsConstant && yValue == 0 {
			exceptions.Panicf("division by constant zero")
		}
		if known {
			value = xValue / yValue
		}
		result = graph.Div(x, y)
	default:
		exceptions.Panicf("unknown primitive %q", primitive)
		panic(nil) // lint.
	}
	if known {
		b.constants[result] = value
	}
	return result
}

// BindParameters binds the IR parameters to the given GoMLX nodes in ctx, after checking that the shape of each
// node is compatible with the parameter shape: static axes must match, symbolic axes can take any value.
func BindParameters(ctx *lower.Context, bindings map[*ir.Parameter]*graph.Node) error {
	for param, node := range bindings {
		if err := togomlx.CheckCompatible(param.Shape(0), node.Shape()); err != nil {
			return errors.WithMessagef(err, "binding parameter %q", param.Name())
		}
		err := exceptions.TryCatch[error](func() { ctx.Bind(ir.Output(param, 0), node) })
		if err != nil {
			return errors.WithMessagef(err, "binding parameter %q", param.Name())
		}
	}
	return nil
}
