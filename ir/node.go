// Package ir holds the base intermediate representation used by the symbolic dimension algebra:
// nodes, their structural hashes, output shapes, and the Graph arena that deduplicates them.
//
//   - Node: interface implemented by every IR node. Concrete nodes embed BaseNode.
//   - Value: a reference to one output of a Node. Operands are Values.
//   - Shape: a GoMLX shape plus optional per-axis symbolic flags.
//   - Graph: owns the nodes of one computation and returns the already registered node for
//     structurally equal constructions (see Intern).
package ir

import (
	"fmt"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/gomlx/exceptions"
)

// OpKind identifies the operator of a node.
type OpKind struct {
	Name string
}

// MakeOpKind returns the OpKind with the given name.
func MakeOpKind(name string) OpKind {
	return OpKind{Name: name}
}

// Hash of the operator tag.
func (op OpKind) Hash() Hash {
	return Hash(xxhash.Sum64String(op.Name))
}

// String implements fmt.Stringer.
func (op OpKind) String() string {
	return op.Name
}

// Node is an IR node. Nodes never own their operands: they reference nodes owned by the Graph.
type Node interface {
	// Op returns the operator tag.
	Op() OpKind

	// Operands returns the list of operands. It must not be modified.
	Operands() []Value

	// Operand returns the i-th operand.
	Operand(i int) Value

	// NumOperands returns len(Operands()).
	NumOperands() int

	// NumOutputs returns the number of outputs of the node.
	NumOutputs() int

	// Shape returns the shape of the given output.
	Shape(output int) Shape

	// Hash returns the structural hash of the node.
	Hash() Hash

	// String returns a short description of the node.
	String() string
}

// AttributesComparer is implemented by nodes with attributes that are not operands.
// Graph.Intern uses it to tell apart nodes that differ only in attributes.
type AttributesComparer interface {
	AttributesEqual(other Node) bool
}

// Value references one output of a node.
type Value struct {
	Node  Node
	Index int
}

// Output returns the Value of the given output of node.
func Output(node Node, index int) Value {
	return Value{Node: node, Index: index}
}

// Shape of the referenced output.
func (v Value) Shape() Shape {
	return v.Node.Shape(v.Index)
}

// String implements fmt.Stringer.
func (v Value) String() string {
	if v.Node == nil {
		return "<nil>"
	}
	if v.Index == 0 && v.Node.NumOutputs() == 1 {
		return v.Node.String()
	}
	return fmt.Sprintf("%s#%d", v.Node, v.Index)
}

// BaseNode implements the bookkeeping common to every node: operator tag, operands, output shapes and
// structural hash. Concrete nodes embed it and are created with NewBaseNode.
type BaseNode struct {
	op           OpKind
	operands     []Value
	outputShapes []Shape
	hash         Hash
}

// NewBaseNode creates the base of a node with len(outputShapes) outputs.
//
// The structural hash folds the operator tag hash with hashSeed (used to encode attributes)
// and with the hash and output index of every operand.
func NewBaseNode(op OpKind, operands []Value, outputShapes []Shape, hashSeed Hash) BaseNode {
	for ii, operand := range operands {
		if operand.Node == nil {
			exceptions.Panicf("ir.NewBaseNode(%s): operand #%d is nil", op, ii)
		}
		if operand.Index < 0 || operand.Index >= operand.Node.NumOutputs() {
			exceptions.Panicf("ir.NewBaseNode(%s): operand #%d references output %d of %s, which has %d outputs",
				op, ii, operand.Index, operand.Node, operand.Node.NumOutputs())
		}
	}
	hash := HashCombine(op.Hash(), hashSeed)
	for _, operand := range operands {
		hash = HashCombine(hash, operand.Node.Hash())
		hash = HashCombine(hash, Hash(operand.Index))
	}
	return BaseNode{
		op:           op,
		operands:     operands,
		outputShapes: outputShapes,
		hash:         hash,
	}
}

// Op implements Node.
func (n *BaseNode) Op() OpKind { return n.op }

// Operands implements Node.
func (n *BaseNode) Operands() []Value { return n.operands }

// Operand implements Node.
func (n *BaseNode) Operand(i int) Value {
	if i < 0 || i >= len(n.operands) {
		exceptions.Panicf("%s: operand %d out of range, node has %d operands", n.op, i, len(n.operands))
	}
	return n.operands[i]
}

// NumOperands implements Node.
func (n *BaseNode) NumOperands() int { return len(n.operands) }

// NumOutputs implements Node.
func (n *BaseNode) NumOutputs() int { return len(n.outputShapes) }

// Shape implements Node.
func (n *BaseNode) Shape(output int) Shape {
	if output < 0 || output >= len(n.outputShapes) {
		exceptions.Panicf("%s: output %d out of range, node has %d outputs", n.op, output, len(n.outputShapes))
	}
	return n.outputShapes[output]
}

// Hash implements Node.
func (n *BaseNode) Hash() Hash { return n.hash }

// String implements Node. Concrete nodes usually override it.
func (n *BaseNode) String() string {
	parts := make([]string, len(n.operands))
	for ii, operand := range n.operands {
		parts[ii] = operand.String()
	}
	return fmt.Sprintf("%s(%s)", n.op, strings.Join(parts, ", "))
}
