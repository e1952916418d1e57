package ir

import (
	"fmt"

	"github.com/gomlx/gomlx/pkg/core/dtypes"
)

var (
	OpParameter = MakeOpKind("parameter")
	OpConstant  = MakeOpKind("constant")
)

// Parameter is a named tensor input of the computation.
// Its value is only available at run time, but its shape (and symbolic axes) is known when the graph is built.
type Parameter struct {
	BaseNode
	name string
}

// NewParameter creates a parameter node with the given name and shape.
func NewParameter(name string, shape Shape) *Parameter {
	return &Parameter{
		BaseNode: NewBaseNode(OpParameter, nil, []Shape{shape}, HashCombine(MHash(name), shapeHash(shape))),
		name:     name,
	}
}

// Name of the parameter.
func (p *Parameter) Name() string { return p.name }

// AttributesEqual implements AttributesComparer.
func (p *Parameter) AttributesEqual(other Node) bool {
	o, ok := other.(*Parameter)
	return ok && o.name == p.name && shapesEqual(o.Shape(0), p.Shape(0))
}

// String implements Node.
func (p *Parameter) String() string {
	return fmt.Sprintf("Parameter(%q: %s)", p.name, p.Shape(0))
}

// Constant is a scalar Int64 constant. Static dimension expressions are folded to it.
type Constant struct {
	BaseNode
	value int64
}

// NewConstant creates a scalar Int64 constant node.
func NewConstant(value int64) *Constant {
	return &Constant{
		BaseNode: NewBaseNode(OpConstant, nil, []Shape{ScalarShape(dtypes.Int64)}, MHash(value)),
		value:    value,
	}
}

// Value of the constant.
func (c *Constant) Value() int64 { return c.value }

// AttributesEqual implements AttributesComparer.
func (c *Constant) AttributesEqual(other Node) bool {
	o, ok := other.(*Constant)
	return ok && o.value == c.value
}

// String implements Node.
func (c *Constant) String() string {
	return fmt.Sprintf("Constant(%d)", c.value)
}

// Op is an opaque tensor operation: the IR only knows its operator tag, operands and output shapes.
// The outer compiler uses it for every ordinary (non-dimension) operation.
type Op struct {
	BaseNode
}

// NewOp creates an opaque operation node.
func NewOp(op OpKind, operands []Value, outputShapes ...Shape) *Op {
	seed := Hash(0)
	for _, shape := range outputShapes {
		seed = HashCombine(seed, shapeHash(shape))
	}
	return &Op{BaseNode: NewBaseNode(op, operands, outputShapes, seed)}
}

// AttributesEqual implements AttributesComparer.
func (o *Op) AttributesEqual(other Node) bool {
	o2, ok := other.(*Op)
	if !ok || o2.NumOutputs() != o.NumOutputs() {
		return false
	}
	for ii := range o.NumOutputs() {
		if !shapesEqual(o.Shape(ii), o2.Shape(ii)) {
			return false
		}
	}
	return true
}

func shapeHash(s Shape) Hash {
	h := MHash(int(s.DType), s.Rank(), s.Symbolic == nil)
	for axis, dim := range s.Dimensions {
		h = HashCombine(h, MHash(dim, s.Symbolic != nil && s.Symbolic[axis]))
	}
	return h
}

func shapesEqual(a, b Shape) bool {
	if !a.Shape.Equal(b.Shape) {
		return false
	}
	if (a.Symbolic == nil) != (b.Symbolic == nil) {
		return false
	}
	for axis := range a.Symbolic {
		if a.Symbolic[axis] != b.Symbolic[axis] {
			return false
		}
	}
	return true
}
