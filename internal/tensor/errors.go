package tensor

import "fmt"

// ShapeError reports a tensor whose rank or dimensions do not match what an
// operator expects. It is returned at the point the mismatched operator is
// applied.
type ShapeError struct {
	Op     string // Operator that rejected the input (e.g. "conv2d")
	Got    Shape  // Offending shape
	Detail string // What was expected
}

// Error implements the error interface.
func (e *ShapeError) Error() string {
	return fmt.Sprintf("%s: shape %v: %s", e.Op, e.Got, e.Detail)
}

// NewShapeError builds a ShapeError with a formatted detail message.
func NewShapeError(op string, got Shape, format string, args ...any) *ShapeError {
	return &ShapeError{
		Op:     op,
		Got:    got.Clone(),
		Detail: fmt.Sprintf(format, args...),
	}
}

// CheckRank returns a ShapeError unless s has exactly rank dimensions.
func CheckRank(op string, s Shape, rank int) error {
	if len(s) != rank {
		return NewShapeError(op, s, "expected %dD tensor, got %dD", rank, len(s))
	}
	return nil
}

// CheckNCHW validates a 4D activation with the given channel count.
func CheckNCHW(op string, s Shape, channels int) error {
	if err := CheckRank(op, s, 4); err != nil {
		return err
	}
	if s[1] != channels {
		return NewShapeError(op, s, "input channels %d != expected %d", s[1], channels)
	}
	return nil
}
