// Package togomlx converts between the IR shapes and GoMLX shapes.
package togomlx

import (
	"github.com/gomlx/gomlx/pkg/core/shapes"
	"github.com/gomlx/symdims/ir"
	"github.com/pkg/errors"
)

// Shape converts an IR shape to a GoMLX shape, dropping the symbolic metadata.
// Symbolic axes keep the dimension recorded in the IR.
func Shape(shape ir.Shape) shapes.Shape {
	return shape.Shape.Clone()
}

// FromShape converts a GoMLX shape to an IR shape, with the given axes marked as symbolic.
func FromShape(shape shapes.Shape, symbolicAxes ...int) (irShape ir.Shape, err error) {
	irShape = ir.Shape{Shape: shape.Clone(), Symbolic: make([]bool, shape.Rank())}
	for _, axis := range symbolicAxes {
		if axis < 0 || axis >= shape.Rank() {
			err = errors.Errorf("symbolic axis %d out of range for shape %s", axis, shape)
			return
		}
		irShape.Symbolic[axis] = true
	}
	return
}

// CheckCompatible returns an error if actual (the shape of a GoMLX node) can't be a value of the IR shape:
// the dtype and rank must match, and so must every axis that is known to be static.
//
// Symbolic axes, and every axis of shapes without symbolic metadata, can take any dimension.
func CheckCompatible(shape ir.Shape, actual shapes.Shape) error {
	if shape.DType != actual.DType {
		return errors.Errorf("dtype mismatch: IR shape %s, got %s", shape, actual)
	}
	if shape.Rank() != actual.Rank() {
		return errors.Errorf("rank mismatch: IR shape %s, got %s", shape, actual)
	}
	for axis, dim := range shape.Dimensions {
		if shape.IsSymbolic(axis) {
			continue
		}
		if actual.Dimensions[axis] != dim {
			return errors.Errorf("static axis %d mismatch: IR shape %s, got %s", axis, shape, actual)
		}
	}
	return nil
}
