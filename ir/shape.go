package ir

import (
	"fmt"
	"slices"
	"strings"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/gomlx/pkg/core/dtypes"
	"github.com/gomlx/gomlx/pkg/core/shapes"
)

// Shape is the shape of one output of a node: a GoMLX shape plus optional per-axis symbolic
// flags.
//
// A symbolic axis has a recorded dimension (usually the size seen when the graph was traced, or an
// upper bound) that is not guaranteed to hold at run time.
//
// Symbolic == nil means the shape carries no symbolic metadata at all: nothing is known about
// which axes are static.
type Shape struct {
	shapes.Shape

	// Symbolic holds one flag per axis, or is nil if there is no symbolic metadata.
	Symbolic []bool
}

// MakeShape returns a fully static shape: symbolic metadata is present and no axis is symbolic.
//
// Unlike shapes.Make, axes of dimension 0 are accepted: a dimension expression can legitimately be zero.
func MakeShape(dtype dtypes.DType, dimensions ...int) Shape {
	return Shape{
		Shape:    shapes.Shape{DType: dtype, Dimensions: slices.Clone(dimensions)},
		Symbolic: make([]bool, len(dimensions)),
	}
}

// MakeUnannotatedShape returns a shape without any symbolic metadata.
func MakeUnannotatedShape(dtype dtypes.DType, dimensions ...int) Shape {
	return Shape{Shape: shapes.Shape{DType: dtype, Dimensions: slices.Clone(dimensions)}}
}

// ScalarShape returns the static shape of a scalar of the given dtype.
func ScalarShape(dtype dtypes.DType) Shape {
	return MakeShape(dtype)
}

// WithSymbolic returns a copy of the shape with the given axes marked as symbolic.
// It creates the symbolic metadata if the shape had none.
func (s Shape) WithSymbolic(axes ...int) Shape {
	symbolic := make([]bool, s.Rank())
	copy(symbolic, s.Symbolic)
	for _, axis := range axes {
		if axis < 0 || axis >= s.Rank() {
			exceptions.Panicf("ir.Shape.WithSymbolic: axis %d out of range for shape %s", axis, s.Shape)
		}
		symbolic[axis] = true
	}
	return Shape{Shape: s.Shape.Clone(), Symbolic: symbolic}
}

// SymbolicAxes returns the per-axis symbolic flags, and whether the shape has symbolic metadata.
func (s Shape) SymbolicAxes() (symbolic []bool, ok bool) {
	if s.Symbolic == nil {
		return nil, false
	}
	return s.Symbolic, true
}

// IsSymbolic reports whether the axis is marked symbolic.
// Shapes without symbolic metadata report every axis as symbolic.
//
// It panics (throws an exception) if axis is out of range.
func (s Shape) IsSymbolic(axis int) bool {
	if axis < 0 || axis >= s.Rank() {
		exceptions.Panicf("ir.Shape.IsSymbolic: axis %d out of range for shape %s", axis, s.Shape)
	}
	if s.Symbolic == nil {
		return true
	}
	return s.Symbolic[axis]
}

// String implements fmt.Stringer. Symbolic axes are suffixed with "?", and shapes without
// metadata are suffixed with "{unannotated}".
func (s Shape) String() string {
	if !s.Ok() {
		return s.Shape.String()
	}
	parts := make([]string, s.Rank())
	for axis, dim := range s.Dimensions {
		parts[axis] = fmt.Sprintf("%d", dim)
		if s.Symbolic != nil && s.Symbolic[axis] {
			parts[axis] += "?"
		}
	}
	str := fmt.Sprintf("(%s)[%s]", s.DType, strings.Join(parts, " "))
	if s.Symbolic == nil {
		str += "{unannotated}"
	}
	return str
}
