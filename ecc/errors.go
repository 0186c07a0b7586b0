package ecc

import (
	"errors"
	"fmt"
)

var (
	// ErrArithmetic is matched by every ArithmeticError. It signals a
	// logic bug or an invalid curve parameter rather than bad user input.
	ErrArithmetic = errors.New("ecc: arithmetic failure")

	// ErrUnknownCurve is returned when a curve is not in the curve table.
	ErrUnknownCurve = errors.New("ecc: unknown curve")

	// ErrPointNotOnCurve is returned when coordinates do not satisfy the
	// curve equation or are not reduced modulo p.
	ErrPointNotOnCurve = errors.New("ecc: point is not on the curve")

	// ErrNegativeScalar is returned by ScalarMult for scalars below zero.
	ErrNegativeScalar = errors.New("ecc: scalar must not be negative")

	// ErrCurveMismatch is returned when two points on different curves are
	// combined.
	ErrCurveMismatch = errors.New("ecc: points belong to different curves")
)

// ArithmeticError describes a failed modular operation.
type ArithmeticError struct {
	// Op is the operation that failed, e.g. "invert".
	Op string

	// Reason is a human readable description of the failure.
	Reason string
}

// Error implements the error interface.
func (e *ArithmeticError) Error() string {
	return fmt.Sprintf("ecc: %s: %s", e.Op, e.Reason)
}

// Is allows errors.Is(err, ErrArithmetic) to match any ArithmeticError.
func (e *ArithmeticError) Is(target error) bool {
	return target == ErrArithmetic
}

func arithmeticErrorf(op, format string, args ...interface{}) error {
	return &ArithmeticError{
		Op:     op,
		Reason: fmt.Sprintf(format, args...),
	}
}
