package dims

import (
	"strings"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/symdims/ir"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Materialize returns the static value of d.
//
// It returns an error if d is dynamic, listing the leaves that make it dynamic, or if evaluating it fails
// (e.g. division by zero).
func Materialize(d DimensionNode) (value int64, err error) {
	var dynamic bool
	err = exceptions.TryCatch[error](func() {
		e := NewEvaluator()
		dynamic = e.IsDynamic(d)
		if !dynamic {
			value = e.StaticValue(d)
		}
	})
	if err != nil {
		return 0, errors.WithMessagef(err, "dims.Materialize(%s)", d)
	}
	if dynamic {
		leaves := DynamicLeaves(d)
		descriptions := make([]string, len(leaves))
		for ii, leaf := range leaves {
			descriptions[ii] = leaf.Describe() + " is " + leafProvenance(leaf).String()
		}
		return 0, errors.Errorf("cannot materialize static value of %s: it depends on dynamic dimensions: %s",
			d, strings.Join(descriptions, "; "))
	}
	return value, nil
}

// Fold returns an ir.Constant interned in g if d is static, or d itself otherwise.
//
// The outer compiler uses it before code generation, so that only expressions that are truly dynamic are
// lowered to run-time instructions.
//
// It panics (throws an exception) if evaluating a static d fails.
func Fold(g *ir.Graph, d DimensionNode) ir.Node {
	e := NewEvaluator()
	if e.IsDynamic(d) {
		if klog.V(2).Enabled() {
			klog.Infof("dims.Fold: %s is dynamic (%s), not folded", d, ProvenanceOf(d))
		}
		return d
	}
	value := e.StaticValue(d)
	if klog.V(2).Enabled() {
		klog.Infof("dims.Fold: %s folded to %d", d, value)
	}
	return ir.Intern(g, ir.NewConstant(value))
}
