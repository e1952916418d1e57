package program

import (
	"github.com/gomlx/gomlx/pkg/core/shapes"
	"github.com/gomlx/symdims/lower"
	"github.com/pkg/errors"
)

// Run executes the program with the given input shapes and returns the values of outputs.
//
// Inputs are given by name. It returns an error if an input is missing, if the program reads an axis out of
// range, or on a division by zero.
func (p *Program) Run(inputs map[string]shapes.Shape, outputs ...*Value) ([]int64, error) {
	for ii, output := range outputs {
		if output == nil {
			return nil, errors.Errorf("program.Run: output #%d is nil", ii)
		}
		if output.program != p {
			return nil, errors.Errorf("program.Run: output %s belongs to a different program", output)
		}
		if output.kind != KindScalar {
			return nil, errors.Errorf("program.Run: output %s is a %s, only scalars can be returned", output, output.kind)
		}
	}
	tensors := make(map[int]shapes.Shape)
	scalars := make(map[int]int64)
	for _, inst := range p.instructions {
		id := inst.Result.id
		switch inst.Opcode {
		case OpcodeInput:
			shape, found := inputs[inst.Name]
			if !found {
				return nil, errors.Errorf("program.Run: missing input %q", inst.Name)
			}
			tensors[id] = shape
		case OpcodeConstant:
			scalars[id] = inst.Constant
		case OpcodeCall:
			value, err := runCall(inst, tensors, scalars)
			if err != nil {
				return nil, errors.WithMessagef(err, "program.Run: instruction %q", inst)
			}
			scalars[id] = value
		default:
			return nil, errors.Errorf("program.Run: invalid instruction %q", inst)
		}
	}
	results := make([]int64, len(outputs))
	for ii, output := range outputs {
		results[ii] = scalars[output.id]
	}
	return results, nil
}

// runCall evaluates one primitive call. Argument kinds were validated when the call was recorded.
func runCall(inst *Instruction, tensors map[int]shapes.Shape, scalars map[int]int64) (int64, error) {
	if inst.Primitive == lower.PrimitiveSize {
		shape := tensors[inst.Args[0].id]
		axis := scalars[inst.Args[1].id]
		if axis < 0 || int(axis) >= shape.Rank() {
			return 0, errors.Errorf("axis %d out of range for shape %s", axis, shape)
		}
		return int64(shape.Dim(int(axis))), nil
	}
	a, b := scalars[inst.Args[0].id], scalars[inst.Args[1].id]
	switch inst.Primitive {
	case lower.PrimitiveAdd:
		return a + b, nil
	case lower.PrimitiveMul:
		return a * b, nil
	case lower.PrimitiveDiv:
		if b == 0 {
			return 0, errors.New("division by zero")
		}
		return a / b, nil
	default:
		return 0, errors.Errorf("unknown primitive %q", inst.Primitive)
	}
}
