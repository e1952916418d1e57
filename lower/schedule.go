package lower

import (
	"github.com/gomlx/exceptions"
	"github.com/gomlx/symdims/ir"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Lower lowers the DAG reachable from roots into ctx, in dependency order, and returns the op of the
// first output of each root.
//
// Nodes already bound in ctx (see Context.Bind) are not lowered again, so Lower can be called multiple times
// with the same context. Nodes implementing Lowerer lower themselves, ir.Constant becomes a builder constant.
// Parameters must have been bound by the caller, and opaque ops are not supported.
func Lower(ctx *Context, roots ...ir.Node) (outputs []Op, err error) {
	var sorted []ir.Node
	err = exceptions.TryCatch[error](func() { sorted = ir.TopologicalSort(roots...) })
	if err != nil {
		return nil, errors.WithMessage(err, "lower.Lower() failed to sort nodes")
	}
	for ii, node := range sorted {
		if isLowered(ctx, node) {
			continue
		}
		err = exceptions.TryCatch[error](func() { lowerNode(ctx, node) })
		if err != nil {
			return nil, errors.WithMessagef(err, "while lowering node %d out of %d (%s)", ii, len(sorted), node)
		}
	}
	outputs = make([]Op, len(roots))
	for ii, root := range roots {
		outputs[ii] = ctx.outputs[ir.Output(root, 0)]
	}
	return outputs, nil
}

// isLowered returns whether all outputs of node are bound.
func isLowered(ctx *Context, node ir.Node) bool {
	for output := range node.NumOutputs() {
		if _, found := ctx.OutputOp(ir.Output(node, output)); !found {
			return false
		}
	}
	return true
}

// lowerNode lowers one node whose operands are all lowered already.
//
// It panics (throws an exception) in case of errors.
func lowerNode(ctx *Context, node ir.Node) {
	var results []Op
	switch n := node.(type) {
	case Lowerer:
		results = n.Lower(ctx)
	case *ir.Constant:
		results = []Op{ctx.Constant(n.Value())}
	case *ir.Parameter:
		exceptions.Panicf("parameter %q was not bound in the lowering context, bind all inputs with Context.Bind", n.Name())
	default:
		exceptions.Panicf("no lowering defined for op %q (%T)", node.Op(), node)
	}
	if len(results) != node.NumOutputs() {
		exceptions.Panicf("lowering %s returned %d ops, but node has %d outputs", node, len(results), node.NumOutputs())
	}
	for output, op := range results {
		ctx.Bind(ir.Output(node, output), op)
	}
	if klog.V(1).Enabled() {
		klog.Infof("lowered %s", node)
	}
}
