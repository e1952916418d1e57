// Package program implements a lower.Builder that records the lowered instructions as a flat program, which
// can be printed and executed against concrete input shapes.
//
// It is the reference executable graph builder: tests and tools use it to inspect exactly what a dimension
// expression lowers to.
package program

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/gomlx/symdims/lower"
	"github.com/pkg/errors"
)

// ValueKind is the kind of a program value.
type ValueKind int

const (
	// KindTensor values are input tensors, only their shapes are available.
	KindTensor ValueKind = iota

	// KindScalar values are Int64 scalars.
	KindScalar
)

// String implements fmt.Stringer.
func (k ValueKind) String() string {
	switch k {
	case KindTensor:
		return "tensor"
	case KindScalar:
		return "scalar"
	default:
		return "invalid"
	}
}

// Value is a handle to a value of a Program. It is the lower.Op type used by Program.
type Value struct {
	program *Program
	id      int
	kind    ValueKind
}

// Id of the value within its program. Values are numbered in creation order.
func (v *Value) Id() int { return v.id }

// Kind of the value.
func (v *Value) Kind() ValueKind { return v.kind }

// String implements fmt.Stringer.
func (v *Value) String() string { return fmt.Sprintf("%%%d", v.id) }

// Opcode of an instruction.
type Opcode int

const (
	OpcodeInput Opcode = iota
	OpcodeConstant
	OpcodeCall
)

// Instruction of a Program. Each instruction defines exactly one value.
type Instruction struct {
	Opcode Opcode
	Result *Value

	// Name of the input, for OpcodeInput.
	Name string

	// Constant value, for OpcodeConstant.
	Constant int64

	// Primitive and Args, for OpcodeCall.
	Primitive lower.Primitive
	Args      []*Value
}

// String implements fmt.Stringer.
func (inst *Instruction) String() string {
	switch inst.Opcode {
	case OpcodeInput:
		return fmt.Sprintf("%s = input %q", inst.Result, inst.Name)
	case OpcodeConstant:
		return fmt.Sprintf("%s = constant %d", inst.Result, inst.Constant)
	case OpcodeCall:
		args := make([]string, len(inst.Args))
		for ii, arg := range inst.Args {
			args[ii] = arg.String()
		}
		return fmt.Sprintf("%s = %s(%s)", inst.Result, inst.Primitive, strings.Join(args, ", "))
	default:
		return fmt.Sprintf("%s = <invalid opcode %d>", inst.Result, int(inst.Opcode))
	}
}

// primitiveSignature lists the kinds of the positional arguments of each supported primitive.
var primitiveSignature = map[lower.Primitive][]ValueKind{
	lower.PrimitiveSize: {KindTensor, KindScalar},
	lower.PrimitiveAdd:  {KindScalar, KindScalar},
	lower.PrimitiveMul:  {KindScalar, KindScalar},
	lower.PrimitiveDiv:  {KindScalar, KindScalar},
}

// Program is a recording lower.Builder. It is not safe for concurrent use.
type Program struct {
	instructions []*Instruction
	inputs       map[string]*Value
}

var _ lower.Builder = (*Program)(nil)

// New creates an empty Program.
func New() *Program {
	return &Program{inputs: make(map[string]*Value)}
}

// newValue appends an instruction defining a new value of the given kind.
func (p *Program) newValue(kind ValueKind, inst *Instruction) *Value {
	v := &Value{program: p, id: len(p.instructions), kind: kind}
	inst.Result = v
	p.instructions = append(p.instructions, inst)
	return v
}

// Input returns the tensor input with the given name, creating it if needed.
func (p *Program) Input(name string) *Value {
	if v, found := p.inputs[name]; found {
		return v
	}
	v := p.newValue(KindTensor, &Instruction{Opcode: OpcodeInput, Name: name})
	p.inputs[name] = v
	return v
}

// Constant implements lower.Builder.
func (p *Program) Constant(value int64) (lower.Op, error) {
	return p.newValue(KindScalar, &Instruction{Opcode: OpcodeConstant, Constant: value}), nil
}

// Call implements lower.Builder. Every supported primitive returns exactly one scalar, and none takes keyword
// arguments.
func (p *Program) Call(primitive lower.Primitive, args []lower.Op, kwargs map[string]lower.Op) ([]lower.Op, error) {
	signature, found := primitiveSignature[primitive]
	if !found {
		return nil, errors.Errorf("program.Call: unknown primitive %q", primitive)
	}
	if len(kwargs) > 0 {
		return nil, errors.Errorf("program.Call(%s): keyword arguments not supported, got %d", primitive, len(kwargs))
	}
	if len(args) != len(signature) {
		return nil, errors.Errorf("program.Call(%s): expected %d arguments, got %d", primitive, len(signature), len(args))
	}
	values := make([]*Value, len(args))
	for ii, arg := range args {
		v, ok := arg.(*Value)
		if !ok {
			return nil, errors.Errorf("program.Call(%s): argument #%d is a %T, not a *program.Value", primitive, ii, arg)
		}
		if v.program != p {
			return nil, errors.Errorf("program.Call(%s): argument #%d (%s) belongs to a different program", primitive, ii, v)
		}
		if v.kind != signature[ii] {
			return nil, errors.Errorf("program.Call(%s): argument #%d (%s) must be a %s, got a %s",
				primitive, ii, v, signature[ii], v.kind)
		}
		values[ii] = v
	}
	result := p.newValue(KindScalar, &Instruction{Opcode: OpcodeCall, Primitive: primitive, Args: values})
	return []lower.Op{result}, nil
}

// Instructions returns the recorded instructions, in order.
func (p *Program) Instructions() []*Instruction {
	return p.instructions
}

// NumCalls returns the number of recorded primitive calls.
func (p *Program) NumCalls() int {
	count := 0
	for _, inst := range p.instructions {
		if inst.Opcode == OpcodeCall {
			count++
		}
	}
	return count
}

// String implements fmt.Stringer: it lists one instruction per line.
func (p *Program) String() string {
	var buf bytes.Buffer
	for _, inst := range p.instructions {
		buf.WriteString(inst.String())
		buf.WriteString("\n")
	}
	return buf.String()
}
